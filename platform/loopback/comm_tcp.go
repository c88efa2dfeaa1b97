package loopback

import (
	"bufio"
	"context"
	"net"
)

// TCPComm is a platform.Comm backed by a plain net.Conn, the way a
// gdbserver conventionally listens on a TCP port rather than a UART
// when no physical target is attached.
type TCPComm struct {
	conn net.Conn
	r    *bufio.Reader
}

// ListenAndAcceptTCP listens on addr and blocks for exactly one
// incoming GDB connection (spec.md's no-multi-client-concurrency
// non-goal: one Monitor talks to one client at a time).
func ListenAndAcceptTCP(addr string) (*TCPComm, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	defer ln.Close()
	conn, err := ln.Accept()
	if err != nil {
		return nil, err
	}
	return NewTCPComm(conn), nil
}

// NewTCPComm wraps an already-connected net.Conn.
func NewTCPComm(conn net.Conn) *TCPComm {
	return &TCPComm{conn: conn, r: bufio.NewReader(conn)}
}

func (c *TCPComm) HasReceiveData() bool {
	return c.r.Buffered() > 0
}

func (c *TCPComm) ReceiveChar(ctx context.Context) (byte, error) {
	type result struct {
		b   byte
		err error
	}
	ch := make(chan result, 1)
	go func() {
		b, err := c.r.ReadByte()
		ch <- result{b, err}
	}()
	select {
	case res := <-ch:
		return res.b, res.err
	case <-ctx.Done():
		c.conn.Close()
		return 0, ctx.Err()
	}
}

func (c *TCPComm) HasTransmitCompleted() bool { return true }

func (c *TCPComm) SendChar(b byte) error {
	_, err := c.conn.Write([]byte{b})
	return err
}

func (c *TCPComm) SendBuffer(p []byte) error {
	_, err := c.conn.Write(p)
	return err
}

// Close closes the underlying connection.
func (c *TCPComm) Close() error { return c.conn.Close() }
