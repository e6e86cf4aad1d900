package transport

import (
	"testing"
	"time"

	"go.bug.st/serial"
)

func TestPortOptions_Normalize_Defaults(t *testing.T) {
	// Zero-value options should get defaults applied
	got, err := PortOptions{}.Normalize()
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if got.BaudRate != 9600 {
		t.Errorf("BaudRate = %d, want 9600", got.BaudRate)
	}
	if got.DataBits != 8 {
		t.Errorf("DataBits = %d, want 8", got.DataBits)
	}
	if got.StopBits != 1 {
		t.Errorf("StopBits = %d, want 1", got.StopBits)
	}
	if got.Parity != "N" {
		t.Errorf("Parity = %q, want %q", got.Parity, "N")
	}
	if got.ReadTimeout != DefaultReadTimeout {
		t.Errorf("ReadTimeout = %v, want %v", got.ReadTimeout, DefaultReadTimeout)
	}
}

func TestPortOptions_Normalize_ExplicitValues(t *testing.T) {
	opts := PortOptions{BaudRate: 115200, DataBits: 7, StopBits: 2, Parity: "even", ReadTimeout: 50 * time.Millisecond}
	got, err := opts.Normalize()
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if got.BaudRate != 115200 {
		t.Errorf("BaudRate = %d, want 115200", got.BaudRate)
	}
	if got.DataBits != 7 {
		t.Errorf("DataBits = %d, want 7", got.DataBits)
	}
	if got.StopBits != 2 {
		t.Errorf("StopBits = %d, want 2", got.StopBits)
	}
	if got.Parity != "E" {
		t.Errorf("Parity = %q, want %q", got.Parity, "E")
	}
	if got.ReadTimeout != 50*time.Millisecond {
		t.Errorf("ReadTimeout = %v", got.ReadTimeout)
	}
}

func TestPortOptions_Normalize_Invalid(t *testing.T) {
	tests := []struct {
		name string
		opts PortOptions
	}{
		{"non-standard baud", PortOptions{BaudRate: 12345}},
		{"data bits too small", PortOptions{DataBits: 4}},
		{"data bits too large", PortOptions{DataBits: 9}},
		{"stop bits", PortOptions{StopBits: 3}},
		{"parity", PortOptions{Parity: "mark"}},
		{"negative timeout", PortOptions{ReadTimeout: -time.Second}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.opts.Normalize(); err == nil {
				t.Errorf("Normalize(%+v) expected error", tc.opts)
			}
		})
	}
}

func TestPortOptions_String(t *testing.T) {
	got := PortOptions{BaudRate: 19200, Parity: "odd"}.String()
	if got != "19200 8O1" {
		t.Errorf("String() = %q, want %q", got, "19200 8O1")
	}
}

func TestPortOptions_SerialMode(t *testing.T) {
	tests := []struct {
		name       string
		opts       PortOptions
		wantParity serial.Parity
		wantStop   serial.StopBits
	}{
		{"defaults", PortOptions{}, serial.NoParity, serial.OneStopBit},
		{"even two stop", PortOptions{Parity: "E", StopBits: 2}, serial.EvenParity, serial.TwoStopBits},
		{"odd", PortOptions{Parity: "O"}, serial.OddParity, serial.OneStopBit},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mode, err := tc.opts.SerialMode()
			if err != nil {
				t.Fatalf("SerialMode() error = %v", err)
			}
			if mode.Parity != tc.wantParity {
				t.Errorf("Parity = %v, want %v", mode.Parity, tc.wantParity)
			}
			if mode.StopBits != tc.wantStop {
				t.Errorf("StopBits = %v, want %v", mode.StopBits, tc.wantStop)
			}
			if mode.BaudRate != 9600 {
				t.Errorf("BaudRate = %d, want 9600", mode.BaudRate)
			}
		})
	}
}

func TestPortOptions_SerialMode_Invalid(t *testing.T) {
	if _, err := (PortOptions{DataBits: 12}).SerialMode(); err == nil {
		t.Error("expected error for invalid data bits")
	}
}
