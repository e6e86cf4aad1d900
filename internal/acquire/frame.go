package acquire

import (
	"time"

	"github.com/banshee-data/multimeter/internal/measure"
)

// Frame is what one loop iteration hands to the renderers. It holds copies
// only, so a renderer may keep it after Render returns.
type Frame struct {
	Sequence float64   `json:"sequence"`
	Time     time.Time `json:"time"`
	Channel  int       `json:"channel"`
	Unit     string    `json:"unit"`

	// Raw is the bytes returned by the transport read, before sanitizing.
	Raw []byte `json:"-"`
	// Text is the normalized reading text, empty when nothing decoded.
	Text string `json:"text"`
	// Measurement is set when the frame parsed as a number.
	Measurement *measure.Measurement `json:"measurement,omitempty"`
	// Logged reports whether the measurement was appended to the CSV log.
	Logged bool `json:"logged"`

	// Err is the first non-transient failure of the iteration.
	Err error `json:"-"`

	// Bins is the normalized histogram after this iteration.
	Bins []float32 `json:"bins"`
	// Counts is the raw histogram after this iteration.
	Counts    []uint64 `json:"counts"`
	SeriesLen int      `json:"series_len"`
	Stats     Stats    `json:"stats"`
}

// ErrorText returns Err as a string, or "" when the iteration succeeded.
func (f Frame) ErrorText() string {
	if f.Err == nil {
		return ""
	}
	return f.Err.Error()
}

// Stats counts iteration outcomes since the loop started.
type Stats struct {
	Iterations      uint64 `json:"iterations"`
	Timeouts        uint64 `json:"timeouts"`
	QueryErrors     uint64 `json:"query_errors"`
	TransportErrors uint64 `json:"transport_errors"`
	DecodeErrors    uint64 `json:"decode_errors"`
	Accepted        uint64 `json:"accepted"`
	Logged          uint64 `json:"logged"`
	LogErrors       uint64 `json:"log_errors"`
	StoreErrors     uint64 `json:"store_errors"`
}

// Renderer consumes one Frame per loop iteration. Render is called on the
// loop goroutine and should return quickly.
type Renderer interface {
	Render(f Frame)
}

// CloseRequester is implemented by renderers that can ask the loop to stop,
// such as a window being closed.
type CloseRequester interface {
	CloseRequested() bool
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(f Frame)

// Render calls fn(f).
func (fn RendererFunc) Render(f Frame) { fn(f) }
