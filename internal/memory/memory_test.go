package memory

import (
	"testing"

	"github.com/ehrlich-b/go-mri/internal/buffer"
)

// fakeMem is a tiny in-memory Memory with per-call tracking, enough to
// assert the size-dispatch invariant (universal invariant 4).
type fakeMem struct {
	data    map[uint64]byte
	fault   bool
	calls8  int
	calls16 int
	calls32 int
	calls64 int
	synced  []uint64
}

func newFakeMem() *fakeMem { return &fakeMem{data: map[uint64]byte{}} }

func (m *fakeMem) Read8(addr uint64) uint8 { m.calls8++; return m.data[addr] }
func (m *fakeMem) Read16(addr uint64) uint16 {
	m.calls16++
	return uint16(m.data[addr]) | uint16(m.data[addr+1])<<8
}
func (m *fakeMem) Read32(addr uint64) uint32 {
	m.calls32++
	var v uint32
	for i := 0; i < 4; i++ {
		v |= uint32(m.data[addr+uint64(i)]) << (8 * uint(i))
	}
	return v
}
func (m *fakeMem) Read64(addr uint64) uint64 {
	m.calls64++
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(m.data[addr+uint64(i)]) << (8 * uint(i))
	}
	return v
}
func (m *fakeMem) Write8(addr uint64, v uint8) { m.calls8++; m.data[addr] = v }
func (m *fakeMem) Write16(addr uint64, v uint16) {
	m.calls16++
	m.data[addr] = byte(v)
	m.data[addr+1] = byte(v >> 8)
}
func (m *fakeMem) Write32(addr uint64, v uint32) {
	m.calls32++
	for i := 0; i < 4; i++ {
		m.data[addr+uint64(i)] = byte(v >> (8 * uint(i)))
	}
}
func (m *fakeMem) Write64(addr uint64, v uint64) {
	m.calls64++
	for i := 0; i < 8; i++ {
		m.data[addr+uint64(i)] = byte(v >> (8 * uint(i)))
	}
}
func (m *fakeMem) FaultOccurred() bool { return m.fault }
func (m *fakeMem) SyncICacheToDCache(addr uint64, n int) error {
	m.synced = append(m.synced, addr)
	return nil
}

func TestReadHexAlignedDispatches32(t *testing.T) {
	mem := newFakeMem()
	mem.data[0x1000] = 0x78
	mem.data[0x1001] = 0x56
	mem.data[0x1002] = 0x34
	mem.data[0x1003] = 0x12

	out := buffer.New(32)
	n, faulted := ReadHex(mem, out, 0x1000, 4)
	if faulted || n != 4 {
		t.Fatalf("n=%d faulted=%v", n, faulted)
	}
	if mem.calls32 != 1 || mem.calls8 != 0 {
		t.Errorf("calls32=%d calls8=%d, want 1/0", mem.calls32, mem.calls8)
	}
	out.SetEnd()
	if got := string(out.Bytes()); got != "78563412" {
		t.Errorf("hex = %q, want 78563412", got)
	}
}

func TestReadHexMisalignedFallsBackToBytes(t *testing.T) {
	mem := newFakeMem()
	mem.data[0x1001] = 0x12
	mem.data[0x1002] = 0x34

	out := buffer.New(32)
	n, faulted := ReadHex(mem, out, 0x1001, 2)
	if faulted || n != 2 {
		t.Fatalf("n=%d faulted=%v", n, faulted)
	}
	if mem.calls8 != 2 || mem.calls16 != 0 {
		t.Errorf("calls8=%d calls16=%d, want 2/0", mem.calls8, mem.calls16)
	}
}

func TestReadHexStopsOnFault(t *testing.T) {
	mem := newFakeMem()
	out := buffer.New(32)
	n, faulted := ReadHex(mem, out, 0x2000, 4)
	_ = n
	if mem.calls32 != 1 {
		t.Fatalf("expected single aligned attempt, got calls32=%d", mem.calls32)
	}
	mem.fault = true
	n2, faulted2 := ReadHex(mem, out, 0x2000, 4)
	if !faulted2 || n2 != 0 {
		t.Errorf("n2=%d faulted2=%v, want 0/true", n2, faulted2)
	}
	_ = faulted
}

func TestWriteHexUnalignedUsesByteWrites(t *testing.T) {
	mem := newFakeMem()
	in := buffer.Wrap([]byte("1234"))
	if err := WriteHex(mem, in, 0x1001, 2); err != nil {
		t.Fatal(err)
	}
	if mem.calls8 != 2 {
		t.Errorf("calls8 = %d, want 2", mem.calls8)
	}
	if mem.data[0x1001] != 0x12 || mem.data[0x1002] != 0x34 {
		t.Errorf("data = %#x %#x, want 0x12 0x34", mem.data[0x1001], mem.data[0x1002])
	}
}

func TestWriteBinaryUnescapeAndSync(t *testing.T) {
	mem := newFakeMem()
	raw := UnescapeBinary([]byte{'}', 0x5d})
	if len(raw) != 1 || raw[0] != 0x7d {
		t.Fatalf("unescape = %#v, want [0x7d]", raw)
	}
	if err := WriteBinary(mem, raw, 0x3000); err != nil {
		t.Fatal(err)
	}
	if mem.data[0x3000] != 0x7d {
		t.Errorf("data = %#x, want 0x7d", mem.data[0x3000])
	}
	if len(mem.synced) != 1 || mem.synced[0] != 0x3000 {
		t.Errorf("synced = %#v, want [0x3000]", mem.synced)
	}
}
