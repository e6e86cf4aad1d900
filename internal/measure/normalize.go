package measure

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// fractionDigits is the fixed precision of decoded scientific readings.
const fractionDigits = 8

// HasExponent reports whether b contains an 'E' or 'e' byte.
func HasExponent(b []byte) bool {
	return bytes.IndexByte(b, 'E') >= 0 || bytes.IndexByte(b, 'e') >= 0
}

// Normalize rewrites a scientific-notation reading such as "1.234E-02" into
// fixed notation with eight fractional digits ("0.01234000"). Frames without
// an exponent marker are returned byte-for-byte as a string.
func Normalize(b []byte) (string, error) {
	if !HasExponent(b) {
		return string(b), nil
	}

	if !utf8.Valid(b) {
		return "", fmt.Errorf("normalize %q: %w", b, ErrInvalidEncoding)
	}

	text := strings.TrimSpace(string(b))
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return "", fmt.Errorf("normalize %q: %w", text, ErrMalformedNumber)
	}

	return strconv.FormatFloat(v, 'f', fractionDigits, 64), nil
}
