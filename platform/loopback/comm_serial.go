package loopback

import (
	"context"
	"fmt"
	"io"

	"go.bug.st/serial"
)

// SerialComm is a platform.Comm backed by a real serial port, opened
// through go.bug.st/serial the same way the reference serial tooling
// in this corpus does (mode struct, then blocking Read/Write on the
// returned io.ReadWriteCloser).
type SerialComm struct {
	port serial.Port
	rx   chan byte
	errc chan error
}

// NewSerialComm opens portName at baud and starts the background
// reader goroutine that feeds ReceiveChar/HasReceiveData. RSP is a
// byte-oriented protocol and go.bug.st/serial's Read is blocking, so a
// single reader goroutine decouples "is there a byte ready" from
// "block until one arrives".
func NewSerialComm(portName string, baud int) (*SerialComm, error) {
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", portName, err)
	}
	c := &SerialComm{
		port: port,
		rx:   make(chan byte, 256),
		errc: make(chan error, 1),
	}
	go c.readLoop()
	return c, nil
}

func (c *SerialComm) readLoop() {
	buf := make([]byte, 1)
	for {
		n, err := c.port.Read(buf)
		if err != nil {
			if err != io.EOF {
				c.errc <- err
			}
			close(c.rx)
			return
		}
		if n > 0 {
			c.rx <- buf[0]
		}
	}
}

func (c *SerialComm) HasReceiveData() bool {
	return len(c.rx) > 0
}

func (c *SerialComm) ReceiveChar(ctx context.Context) (byte, error) {
	select {
	case b, ok := <-c.rx:
		if !ok {
			select {
			case err := <-c.errc:
				return 0, err
			default:
				return 0, io.EOF
			}
		}
		return b, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (c *SerialComm) HasTransmitCompleted() bool { return true }

func (c *SerialComm) SendChar(b byte) error {
	_, err := c.port.Write([]byte{b})
	return err
}

func (c *SerialComm) SendBuffer(p []byte) error {
	_, err := c.port.Write(p)
	return err
}

// Close releases the underlying serial port.
func (c *SerialComm) Close() error {
	return c.port.Close()
}
