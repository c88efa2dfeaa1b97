// Package buffer implements the cursor-bounded byte buffer shared by the
// packet engine, the command dispatcher, and the register context: the
// same storage is read as the incoming command and then rewound and
// reused to assemble the outgoing reply.
package buffer

import (
	"errors"

	"github.com/ehrlich-b/go-mri/internal/hexconvert"
)

// Sentinel errors surfaced by buffer primitives. Callers that need the
// spec's "most severe error wins" exception discipline map these onto an
// mri.Code themselves (e.g. the root package's codeForMemoryErr); the
// buffer package itself knows nothing about that mapping.
var (
	ErrOverrun      = errors.New("buffer: overrun")
	ErrInvalidValue = errors.New("buffer: no hex digits consumed")
)

// Buffer is a cursor over a fixed byte slice. It never grows: the slice
// backing it is allocated once by the caller (the monitor's single
// packet buffer) and reused across every command/response pair, which
// is how this implementation honors "no dynamic allocation at runtime"
// without needing a true static array the way the C original did.
type Buffer struct {
	data    []byte
	end     int // logical end of valid content, <= len(data)
	cur     int // read/write cursor
	overrun bool
}

// New allocates a Buffer backed by a size-byte slice. The slice is
// allocated exactly once; Reset/SetEnd never reallocate it.
func New(size int) *Buffer {
	b := &Buffer{data: make([]byte, size), end: size}
	b.Reset()
	return b
}

// Wrap constructs a Buffer directly over an existing slice, with the
// logical end at the slice's full length, used by tests that want to
// assert on the backing array.
func Wrap(data []byte) *Buffer {
	b := &Buffer{data: data, end: len(data)}
	b.Reset()
	return b
}

// Reset rewinds the cursor to the start and clears overrun, without
// changing the logical end (callers that want a completely fresh
// buffer should also call SetEnd after writing is done, or construct a
// new Buffer).
func (b *Buffer) Reset() {
	b.cur = 0
	b.overrun = false
}

// ResetFull rewinds the cursor and restores the end to the full backing
// capacity — used by the packet receiver and the Monitor's beginReply
// before assembling a fresh command or reply.
func (b *Buffer) ResetFull() {
	b.end = len(b.data)
	b.Reset()
}

// SetEnd truncates the logical end to the current cursor position. It
// marks "here is where the finished response stops" and is a no-op if
// the cursor is already at or past the end.
func (b *Buffer) SetEnd() {
	if b.cur < b.end {
		b.end = b.cur
	}
}

// BytesLeft reports how many bytes remain before overrun, or 0 if
// overrun has already been recorded.
func (b *Buffer) BytesLeft() int {
	if b.OverrunDetected() {
		return 0
	}
	return b.end - b.cur
}

// OverrunDetected reports the sticky overrun flag.
func (b *Buffer) OverrunDetected() bool {
	return b.overrun
}

// Len returns the logical length of the buffer's content.
func (b *Buffer) Len() int {
	if b.end < 0 {
		return 0
	}
	return b.end
}

// Bytes returns the valid content, [0:end).
func (b *Buffer) Bytes() []byte {
	return b.data[:b.end]
}

// Cap returns the backing capacity, used to size outgoing PacketSize
// advertisements.
func (b *Buffer) Cap() int {
	return len(b.data)
}

func (b *Buffer) recordOverrun() {
	b.overrun = true
	b.cur = b.end + 1
}

func (b *Buffer) needs(n int) error {
	if b.BytesLeft() < n {
		b.recordOverrun()
		return ErrOverrun
	}
	return nil
}

// WriteChar appends a single byte.
func (b *Buffer) WriteChar(c byte) error {
	if err := b.needs(1); err != nil {
		return err
	}
	b.data[b.cur] = c
	b.cur++
	return nil
}

// ReadChar consumes and returns a single byte.
func (b *Buffer) ReadChar() (byte, error) {
	if err := b.needs(1); err != nil {
		return 0, err
	}
	c := b.data[b.cur]
	b.cur++
	return c, nil
}

// WriteByteAsHex appends the two hex digits for byte v.
func (b *Buffer) WriteByteAsHex(v byte) error {
	if err := b.needs(2); err != nil {
		return err
	}
	hex := hexconvert.ByteToHex(v)
	b.data[b.cur] = hex[0]
	b.data[b.cur+1] = hex[1]
	b.cur += 2
	return nil
}

// ReadByteAsHex consumes two hex digits and returns the decoded byte.
func (b *Buffer) ReadByteAsHex() (byte, error) {
	if err := b.needs(2); err != nil {
		return 0, err
	}
	v, err := hexconvert.HexToByte(b.data[b.cur], b.data[b.cur+1])
	if err != nil {
		return 0, err
	}
	b.cur += 2
	return v, nil
}

// WriteString appends s verbatim.
func (b *Buffer) WriteString(s string) error {
	return b.WriteSizedString(s)
}

// WriteSizedString appends s verbatim, failing atomically (no partial
// write) if it would not fit.
func (b *Buffer) WriteSizedString(s string) error {
	if err := b.needs(len(s)); err != nil {
		return err
	}
	copy(b.data[b.cur:], s)
	b.cur += len(s)
	return nil
}

// WriteUIntegerAsHex writes v as big-endian hex with leading zero bytes
// suppressed (but at least one hex pair for zero).
func (b *Buffer) WriteUIntegerAsHex(v uint64) error {
	if v == 0 {
		return b.WriteByteAsHex(0)
	}
	leadingZeroBytes := 0
	mask := uint64(0xFF) << 56
	for mask != 0 && v&mask == 0 {
		leadingZeroBytes++
		mask >>= 8
	}
	for i := 7 - leadingZeroBytes; i >= 0; i-- {
		shift := uint(i) * 8
		if err := b.WriteByteAsHex(byte(v >> shift)); err != nil {
			return err
		}
	}
	return nil
}

// ReadUIntegerAsHex consumes the longest run of hex digits, stopping
// (and pushing back) at the first non-hex character or at overrun. It
// reports ErrInvalidValue if zero digits were consumed; a mid-scan
// overrun is swallowed exactly like the reference implementation.
func (b *Buffer) ReadUIntegerAsHex() (uint64, error) {
	var value uint64
	digits := 0
	for {
		c, err := b.ReadChar()
		if err != nil {
			break
		}
		nibble, err := hexconvert.CharToNibble(c)
		if err != nil {
			b.pushBack()
			break
		}
		value = value<<4 + uint64(nibble)
		digits++
	}
	b.clearOverrun()
	if digits == 0 {
		return 0, ErrInvalidValue
	}
	return value, nil
}

func (b *Buffer) pushBack() {
	if b.cur > 0 {
		b.cur--
	}
}

func (b *Buffer) clearOverrun() {
	if b.OverrunDetected() {
		b.cur = b.end
		b.overrun = false
	}
}

// WriteIntegerAsHex writes v with an optional leading '-'.
func (b *Buffer) WriteIntegerAsHex(v int32) error {
	abs := v
	if v < 0 {
		if err := b.WriteChar('-'); err != nil {
			return err
		}
		abs = -v
	}
	return b.WriteUIntegerAsHex(uint64(uint32(abs)))
}

// ReadIntegerAsHex reads an optional '-' followed by a hex magnitude,
// range-checked against int32.
func (b *Buffer) ReadIntegerAsHex() (int32, error) {
	negative, err := b.IsNextCharEqualTo('-')
	if err != nil {
		return 0, err
	}
	value, err := b.ReadUIntegerAsHex()
	if err != nil {
		return 0, err
	}
	if !negative && value > 0x7FFFFFFF {
		return 0x7FFFFFFF, ErrInvalidValue
	}
	if negative && value > 0x80000000 {
		return -0x80000000, ErrInvalidValue
	}
	if negative {
		return -int32(value), nil
	}
	return int32(value), nil
}

// IsNextCharEqualTo peeks the next byte; on match it is consumed and
// true is returned, otherwise the cursor is untouched and false is
// returned.
func (b *Buffer) IsNextCharEqualTo(c byte) (bool, error) {
	if err := b.needs(1); err != nil {
		return false, err
	}
	if b.data[b.cur] == c {
		b.cur++
		return true, nil
	}
	return false, nil
}

// MatchesString reports whether the next len(s) bytes equal s and are
// followed by either end-of-buffer or ':' — the reference grammar for
// "qFoo:" style query prefixes. On success the matched bytes (not the
// trailing ':') are consumed.
func (b *Buffer) MatchesString(s string) (bool, error) {
	if err := b.needs(len(s)); err != nil {
		return false, err
	}
	if string(b.data[b.cur:b.cur+len(s)]) != s {
		return false, nil
	}
	next := b.cur + len(s)
	if next < b.end && b.data[next] != ':' {
		return false, nil
	}
	b.cur += len(s)
	return true, nil
}

// Remaining returns the unread tail of the buffer without consuming it,
// for handlers that want to hand the rest of the payload to a
// sub-parser (e.g. raw binary payloads on X).
func (b *Buffer) Remaining() []byte {
	if b.OverrunDetected() || b.cur > b.end {
		return nil
	}
	return b.data[b.cur:b.end]
}

// Advance consumes n bytes without interpreting them, used once a
// sub-parser (like the X command's escape unpacker) has already
// inspected Remaining().
func (b *Buffer) Advance(n int) {
	b.cur += n
}
