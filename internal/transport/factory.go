package transport

import (
	"go.bug.st/serial"
)

// RealFactory opens hardware serial ports through go.bug.st/serial.
type RealFactory struct{}

// NewRealFactory returns the production port factory.
func NewRealFactory() *RealFactory {
	return &RealFactory{}
}

// Open opens the serial device at path and applies the read timeout.
func (f *RealFactory) Open(path string, opts PortOptions) (Port, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}

	if err := ApplyReadTimeout(port, opts.ReadTimeout); err != nil {
		port.Close()
		return nil, err
	}

	return port, nil
}

// ListPorts returns the serial device names present on this machine.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
