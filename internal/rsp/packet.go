// Package rsp implements the GDB Remote Serial Protocol framing layer:
// parsing "$payload#cc" with checksum validation, ack/nak handling,
// escape encoding on send, and skipping interleaved Ctrl-C (spec.md
// §4.5). It is the only package that talks to platform.Comm directly
// on the receive/send hot path.
package rsp

import (
	"context"

	"github.com/ehrlich-b/go-mri/internal/buffer"
	"github.com/ehrlich-b/go-mri/internal/hexconvert"
	"github.com/ehrlich-b/go-mri/internal/platform"
)

const (
	charCtrlC   = 0x03
	charDollar  = '$'
	charHash    = '#'
	charEscape  = '}'
	charStar    = '*'
	escapeXOR   = 0x20
	charAck     = '+'
	charNak     = '-'
)

// Packet binds transient framing state to a Comm and a reused Buffer.
type Packet struct {
	comm     platform.Comm
	lastChar byte

	// CtrlCSeen latches true if a literal Ctrl-C byte was observed in
	// place of an ack/nak during Send; the dispatcher surfaces it as
	// the semihostCtrlC flag.
	CtrlCSeen bool
}

// New binds a Packet to a comm channel.
func New(comm platform.Comm) *Packet {
	return &Packet{comm: comm}
}

func (p *Packet) nextChar(ctx context.Context) (byte, error) {
	c, err := p.comm.ReceiveChar(ctx)
	if err != nil {
		return 0, err
	}
	p.lastChar = c
	return c, nil
}

// Get blocks until a checksum-valid packet has been received into buf,
// acking each attempt and nak-ing failures, then leaves buf positioned
// at the payload (cursor 0, end at payload length) ready for dispatch.
func (p *Packet) Get(ctx context.Context, buf *buffer.Buffer) error {
	for {
		ok, err := p.getOnePacket(ctx, buf)
		if err != nil {
			return err
		}
		if !ok {
			if err := p.comm.SendChar(charNak); err != nil {
				return err
			}
			continue
		}
		// If more data is already waiting, only the latest packet is
		// answered: loop without acking the stale one.
		if p.comm.HasReceiveData() {
			continue
		}
		if err := p.comm.SendChar(charAck); err != nil {
			return err
		}
		buf.SetEnd()
		buf.Reset()
		return nil
	}
}

// getOnePacket reads one $...#cc frame into buf and reports whether its
// checksum matched.
func (p *Packet) getOnePacket(ctx context.Context, buf *buffer.Buffer) (bool, error) {
	// Wait for start-of-packet, ignoring everything else.
	for p.lastChar != charDollar {
		if _, err := p.nextChar(ctx); err != nil {
			return false, err
		}
	}

	buf.ResetFull()
	var checksum byte
	c, err := p.nextChar(ctx)
	if err != nil {
		return false, err
	}
	for buf.BytesLeft() > 0 && c != charDollar && c != charHash {
		checksum += c
		if err := buf.WriteChar(c); err != nil {
			return false, err
		}
		c, err = p.nextChar(ctx)
		if err != nil {
			return false, err
		}
	}
	if c != charHash {
		// Either overrun or a fresh '$' arrived mid-packet: restart.
		return false, nil
	}

	hi, err := p.nextChar(ctx)
	if err != nil {
		return false, err
	}
	lo, err := p.nextChar(ctx)
	if err != nil {
		return false, err
	}
	expected, err := hexconvert.HexToByte(hi, lo)
	if err != nil {
		return false, nil
	}
	return expected == checksum, nil
}

// Send transmits buf's content as "$payload#cc", escaping $#}* on the
// way out, then waits for '+'. A '-' triggers a resend; a literal
// Ctrl-C is recorded and skipped; a fresh '$' abandons the retransmit
// (the next Get call will pick up the new inbound packet).
func (p *Packet) Send(ctx context.Context, buf *buffer.Buffer) error {
	for {
		if err := p.sendOnce(buf); err != nil {
			return err
		}
		reply, err := p.receiveAfterSkippingCtrlC(ctx)
		if err != nil {
			return err
		}
		switch reply {
		case charAck, charDollar:
			return nil
		default:
			// Treat anything else, including '-', as a request to
			// resend.
		}
	}
}

func (p *Packet) sendOnce(buf *buffer.Buffer) error {
	if err := p.comm.SendChar(charDollar); err != nil {
		return err
	}
	for _, c := range buf.Bytes() {
		if isEscaped(c) {
			if err := p.comm.SendChar(charEscape); err != nil {
				return err
			}
			c ^= escapeXOR
		}
		if err := p.comm.SendChar(c); err != nil {
			return err
		}
	}
	// The checksum is the 8-bit sum of the unescaped payload bytes
	// (spec.md §6.1), computed independently of the escaped bytes on
	// the wire.
	checksum := sum(buf.Bytes())
	if err := p.comm.SendChar(charHash); err != nil {
		return err
	}
	hex := hexconvert.ByteToHex(checksum)
	if err := p.comm.SendChar(hex[0]); err != nil {
		return err
	}
	return p.comm.SendChar(hex[1])
}

func sum(data []byte) byte {
	var s byte
	for _, c := range data {
		s += c
	}
	return s
}

func isEscaped(c byte) bool {
	return c == charDollar || c == charHash || c == charEscape || c == charStar
}

func (p *Packet) receiveAfterSkippingCtrlC(ctx context.Context) (byte, error) {
	for {
		c, err := p.nextChar(ctx)
		if err != nil {
			return 0, err
		}
		if c == charCtrlC {
			p.CtrlCSeen = true
			continue
		}
		return c, nil
	}
}
