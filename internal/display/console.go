// Package display renders acquisition frames as console text.
package display

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/banshee-data/multimeter/internal/acquire"
	"github.com/banshee-data/multimeter/internal/measure"
	"github.com/banshee-data/multimeter/internal/units"
)

// Messages shown in place of a value when a frame cannot be displayed.
const (
	ConversionErrorText = "Data From Serial Port Conversion Error"
	InvalidDataText     = "Invalid Data From Serial Port"
	TransportErrorText  = "Error reading data from port"
)

// ConsoleOptions configures a Console renderer.
type ConsoleOptions struct {
	// Echo copies the raw bytes of every read to the output.
	Echo bool
	// Color selects the value colour: "r", "g" or "b". Anything else is red.
	Color string
	// NoColor disables ANSI colouring.
	NoColor bool
}

// Console writes one line per change of the displayed value, in the form
// "CH:1  0.01234000 V". Timeouts keep the previous value on screen.
type Console struct {
	mu      sync.Mutex
	w       io.Writer
	echo    bool
	value   *color.Color
	channel *color.Color
	last    string
}

// NewConsole returns a console renderer writing to w.
func NewConsole(w io.Writer, opts ConsoleOptions) *Console {
	value := color.New(valueColor(opts.Color), color.Bold)
	channel := color.New(color.FgWhite)
	if opts.NoColor {
		value.DisableColor()
		channel.DisableColor()
	} else {
		value.EnableColor()
		channel.EnableColor()
	}
	return &Console{w: w, echo: opts.Echo, value: value, channel: channel}
}

func valueColor(code string) color.Attribute {
	switch strings.ToLower(code) {
	case "g":
		return color.FgGreen
	case "b":
		return color.FgBlue
	default:
		return color.FgRed
	}
}

// Render implements acquire.Renderer.
func (c *Console) Render(f acquire.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.echo && len(f.Raw) > 0 {
		c.w.Write(f.Raw)
	}

	text, ok := Text(f)
	if !ok || text == c.last {
		return
	}
	c.last = text

	fmt.Fprintf(c.w, "%s  %s %s\n",
		c.channel.Sprintf("CH:%d", f.Channel),
		c.value.Sprint(text),
		c.value.Sprint(units.Symbol(f.Unit)),
	)
}

// Text returns the string shown for a frame. The second result is false when
// the frame carries nothing new, as after a read timeout.
func Text(f acquire.Frame) (string, bool) {
	switch {
	case f.Measurement != nil:
		return strings.TrimSpace(f.Text), true
	case f.Err == nil:
		return "", false
	case errors.Is(f.Err, measure.ErrInvalidEncoding):
		return ConversionErrorText, true
	case errors.Is(f.Err, acquire.ErrTransport):
		return TransportErrorText, true
	default:
		return InvalidDataText, true
	}
}
