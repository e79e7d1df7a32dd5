package sim900

import (
	"context"
	"io"

	"go.bug.st/serial"
)

//go:generate go tool mockgen -source=transport.go -destination=mock_transport.go -package=sim900

// Transport represents an established, bidirectional byte stream to a
// SIM900 modem.
//
// A Transport is assumed to be already connected and ready for use.
// Typical implementations include serial ports, TCP connections to
// emulators, or in-memory fakes used for testing.
type Transport interface {
	io.ReadWriteCloser
}

// Dialer opens a Transport to a SIM900 modem.
//
// Dialer abstracts how the modem connection is created (serial port,
// TCP-based emulator, or test double) and is used during construction
// only. Once a Transport is obtained, the Dialer is no longer needed.
type Dialer interface {
	// Dial creates and returns a connected Transport. It may block and
	// should respect cancellation and deadlines provided by the context.
	Dial(ctx context.Context) (Transport, error)
}

// SerialDialer opens a SIM900 modem over a serial port at 8N1.
type SerialDialer struct {
	// PortName is the device path, e.g. "/dev/ttyAMA0".
	PortName string
	// BaudRate in bits per second, e.g. 115200.
	BaudRate int
}

// Dial opens the configured serial port.
func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	port, err := serial.Open(d.PortName, &serial.Mode{
		BaudRate: d.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	return port, nil
}
