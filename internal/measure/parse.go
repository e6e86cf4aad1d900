package measure

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Measurement is one successfully parsed reading. Sequence is the acquisition
// loop's iteration counter at the time the frame was read.
type Measurement struct {
	Sequence float64 `json:"sequence"`
	Value    float32 `json:"value"`
}

// NewMeasurement builds a Measurement.
func NewMeasurement(sequence float64, value float32) Measurement {
	return Measurement{Sequence: sequence, Value: value}
}

// Parse converts normalized text into a float32. Surrounding whitespace,
// usually the instrument's line terminator, is ignored. NaN and infinities are
// rejected.
func Parse(text string) (float32, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0, fmt.Errorf("parse %q: %w: %w", text, ErrNumberFormat, ErrEmptyReading)
	}

	v, err := strconv.ParseFloat(trimmed, 32)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", trimmed, ErrNumberFormat)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("parse %q: not a finite value: %w", trimmed, ErrNumberFormat)
	}

	return float32(v), nil
}

// Decode runs a sanitized frame through Normalize and Parse, returning the
// normalized text alongside the value so callers can display it.
func Decode(frame []byte) (string, float32, error) {
	text, err := Normalize(frame)
	if err != nil {
		return "", 0, err
	}
	v, err := Parse(text)
	if err != nil {
		return text, 0, err
	}
	return text, v, nil
}
