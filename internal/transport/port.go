// Package transport abstracts the byte-oriented link to the instrument. The
// acquisition loop only needs raw reads bounded by a timeout and raw writes
// for the optional query command.
package transport

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

var (
	// ErrWriteFailed is returned when a command is only partially written.
	ErrWriteFailed = fmt.Errorf("failed to write to serial port")

	// ErrTimeout marks a read or write that ended because the port timeout
	// elapsed. It is expected and carries no data.
	ErrTimeout = errors.New("serial port timeout")
)

// Port defines the minimal interface needed for an instrument link.
// This abstraction enables unit testing without real serial hardware.
type Port interface {
	io.ReadWriter
	io.Closer
}

// TimeoutPort extends Port with timeout capabilities.
// This is an optional interface that ports may implement.
type TimeoutPort interface {
	Port
	// SetReadTimeout sets the read timeout for the port.
	SetReadTimeout(timeout time.Duration) error
}

// Factory defines an interface for opening instrument ports.
type Factory interface {
	// Open opens the port at path with the given options.
	Open(path string, opts PortOptions) (Port, error)
}

// ApplyReadTimeout sets the read timeout on ports that implement
// TimeoutPort. Other ports are left as they are.
func ApplyReadTimeout(p Port, timeout time.Duration) error {
	tp, ok := p.(TimeoutPort)
	if !ok {
		return nil
	}
	if err := tp.SetReadTimeout(timeout); err != nil {
		return fmt.Errorf("failed to set read timeout: %w", err)
	}
	return nil
}

// Opener is a function type for opening ports. It satisfies Factory.
type Opener func(path string, opts PortOptions) (Port, error)

// Open calls o.
func (o Opener) Open(path string, opts PortOptions) (Port, error) {
	return o(path, opts)
}

// IsTimeout reports whether err is a transient timeout rather than a failure.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// ReadFrame performs a single read into a freshly allocated buffer of size
// bytes. Bytes past n stay zero. A read that returns no data and no error is
// reported as ErrTimeout, which is how go.bug.st/serial signals an elapsed
// read timeout.
func ReadFrame(p Port, size int) ([]byte, int, error) {
	buf := make([]byte, size)
	n, err := p.Read(buf)
	if n < 0 {
		n = 0
	}
	if err == nil && n == 0 {
		return buf, 0, ErrTimeout
	}
	if err != nil && IsTimeout(err) {
		return buf, n, fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return buf, n, err
}

// SendCommand writes command to the port, appending a newline if missing.
func SendCommand(p Port, command string) error {
	if !strings.HasSuffix(command, "\n") {
		command += "\n" // ensure command ends with a newline
	}
	n, err := p.Write([]byte(command))
	if err != nil {
		return err
	}
	if n != len(command) {
		return ErrWriteFailed
	}
	return nil
}
