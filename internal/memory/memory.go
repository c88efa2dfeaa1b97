// Package memory implements the size-dispatched, alignment-aware,
// fault-tolerant memory read/write paths used by the m/M/X command
// handlers (spec.md §4.4). It depends only on platform.Memory; it
// knows nothing about RSP framing.
package memory

import (
	"errors"

	"github.com/ehrlich-b/go-mri/internal/buffer"
	"github.com/ehrlich-b/go-mri/internal/platform"
)

// ErrFault is returned when the platform reports a bus/memory fault
// partway through an access.
var ErrFault = errors.New("memory: access fault")

// ErrBufferUnderflow surfaces a short hex payload on write (spec.md's
// E04 BUFFER_OVERRUN for M/X).
var ErrBufferUnderflow = buffer.ErrOverrun

func aligned(addr uint64, size int) bool {
	return addr%uint64(size) == 0
}

// ReadHex implements `m addr,len`: it dispatches to one aligned
// half/word/dword transfer when len is 2, 4, or 8 and addr is
// naturally aligned for that size; otherwise it falls back to
// byte-at-a-time. After each unit it checks FaultOccurred; on fault it
// stops and returns whatever was already encoded as hex. The caller
// (command handler) decides how to render zero bytes read as E03.
func ReadHex(mem platform.Memory, out *buffer.Buffer, addr uint64, length int) (bytesRead int, faulted bool) {
	if length == 4 && aligned(addr, 4) {
		v := mem.Read32(addr)
		if mem.FaultOccurred() {
			return 0, true
		}
		writeLE(out, uint64(v), 4)
		return 4, false
	}
	if length == 8 && aligned(addr, 8) {
		v := mem.Read64(addr)
		if mem.FaultOccurred() {
			return 0, true
		}
		writeLE(out, v, 8)
		return 8, false
	}
	if length == 2 && aligned(addr, 2) {
		v := mem.Read16(addr)
		if mem.FaultOccurred() {
			return 0, true
		}
		writeLE(out, uint64(v), 2)
		return 2, false
	}
	for i := 0; i < length; i++ {
		v := mem.Read8(addr + uint64(i))
		if mem.FaultOccurred() {
			return i, true
		}
		out.WriteByteAsHex(v)
	}
	return length, false
}

func writeLE(out *buffer.Buffer, v uint64, size int) {
	for i := 0; i < size; i++ {
		out.WriteByteAsHex(byte(v >> (8 * uint(i))))
	}
}

// WriteHex implements `M addr,len:<hex>`: parses length hex-encoded
// bytes from in and writes them with the same size-dispatch as
// ReadHex. Returns ErrFault on a platform fault, or a buffer error if
// the hex payload was short.
func WriteHex(mem platform.Memory, in *buffer.Buffer, addr uint64, length int) error {
	readByte := func() (byte, error) { return in.ReadByteAsHex() }

	if length == 4 && aligned(addr, 4) {
		v, err := readLE32(readByte)
		if err != nil {
			return err
		}
		mem.Write32(addr, v)
		if mem.FaultOccurred() {
			return ErrFault
		}
		return nil
	}
	if length == 8 && aligned(addr, 8) {
		v, err := readLE64(readByte)
		if err != nil {
			return err
		}
		mem.Write64(addr, v)
		if mem.FaultOccurred() {
			return ErrFault
		}
		return nil
	}
	if length == 2 && aligned(addr, 2) {
		lo, err := readByte()
		if err != nil {
			return err
		}
		hi, err := readByte()
		if err != nil {
			return err
		}
		mem.Write16(addr, uint16(lo)|uint16(hi)<<8)
		if mem.FaultOccurred() {
			return ErrFault
		}
		return nil
	}
	for i := 0; i < length; i++ {
		v, err := readByte()
		if err != nil {
			return err
		}
		mem.Write8(addr+uint64(i), v)
		if mem.FaultOccurred() {
			return ErrFault
		}
	}
	return nil
}

func readLE32(readByte func() (byte, error)) (uint32, error) {
	var v uint32
	for i := 0; i < 4; i++ {
		b, err := readByte()
		if err != nil {
			return 0, err
		}
		v |= uint32(b) << (8 * uint(i))
	}
	return v, nil
}

func readLE64(readByte func() (byte, error)) (uint64, error) {
	var v uint64
	for i := 0; i < 8; i++ {
		b, err := readByte()
		if err != nil {
			return 0, err
		}
		v |= uint64(b) << (8 * uint(i))
	}
	return v, nil
}

// WriteBinary implements the X command: length raw bytes, `}`-escaped
// on the wire, already unescaped into raw by the caller (the packet
// layer never sees binary payloads, only the command handler does).
// After a successful write it invokes SyncICacheToDCache.
func WriteBinary(mem platform.Memory, data []byte, addr uint64) error {
	for i, b := range data {
		mem.Write8(addr+uint64(i), b)
		if mem.FaultOccurred() {
			return ErrFault
		}
	}
	return mem.SyncICacheToDCache(addr, len(data))
}

// UnescapeBinary reverses the RSP `}`-escape convention: a `}` byte is
// dropped and the following byte is XORed with 0x20.
func UnescapeBinary(raw []byte) []byte {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] == '}' && i+1 < len(raw) {
			i++
			out = append(out, raw[i]^0x20)
			continue
		}
		out = append(out, raw[i])
	}
	return out
}
