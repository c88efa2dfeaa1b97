// Package loopback provides a runnable, non-hardware
// platform.Platform: memory backed by a plain byte slice, comm backed
// by a real serial port, raw TTY or TCP connection, execution/RTOS/semihost concerns
// stubbed to the degree a demo target needs. It exists so cmd/mri-serve
// has something to attach a real GDB client to without any actual
// target hardware.
package loopback

import (
	"encoding/binary"
	"sync"
)

// Memory is a flat byte-slice-backed implementation of
// platform.Memory. The teacher's backend.Memory sharded its locking
// across 64KB regions for parallel queue I/O; a debug session has
// exactly one command in flight at a time (spec.md §5's no-concurrency
// model), so a single mutex replaces the shard array entirely — the
// locking exists here only to let ArmFault be called from a test
// goroutine concurrently with ReceiveChar blocking in another.
type Memory struct {
	mu           sync.Mutex
	data         []byte
	faultAddr    uint64
	faultArmed   bool
	faultLatched bool
}

// NewMemory allocates a zeroed Memory of the given size.
func NewMemory(size int) *Memory {
	return &Memory{data: make([]byte, size)}
}

// ArmFault makes the next access to addr report a fault, for exercising
// the m/M/X handlers' fault path (spec.md §4.4) against a real
// platform.Memory rather than the mock.
func (m *Memory) ArmFault(addr uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faultAddr = addr
	m.faultArmed = true
}

func (m *Memory) checkFault(addr uint64, width int) {
	if m.faultArmed && addr <= m.faultAddr && m.faultAddr < addr+uint64(width) {
		m.faultLatched = true
	}
}

func (m *Memory) Read8(addr uint64) uint8 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkFault(addr, 1)
	if m.faultLatched || int(addr) >= len(m.data) {
		return 0
	}
	return m.data[addr]
}

func (m *Memory) Read16(addr uint64) uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkFault(addr, 2)
	if m.faultLatched || int(addr)+2 > len(m.data) {
		return 0
	}
	return binary.LittleEndian.Uint16(m.data[addr:])
}

func (m *Memory) Read32(addr uint64) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkFault(addr, 4)
	if m.faultLatched || int(addr)+4 > len(m.data) {
		return 0
	}
	return binary.LittleEndian.Uint32(m.data[addr:])
}

func (m *Memory) Read64(addr uint64) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkFault(addr, 8)
	if m.faultLatched || int(addr)+8 > len(m.data) {
		return 0
	}
	return binary.LittleEndian.Uint64(m.data[addr:])
}

func (m *Memory) Write8(addr uint64, v uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkFault(addr, 1)
	if m.faultLatched || int(addr) >= len(m.data) {
		return
	}
	m.data[addr] = v
}

func (m *Memory) Write16(addr uint64, v uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkFault(addr, 2)
	if m.faultLatched || int(addr)+2 > len(m.data) {
		return
	}
	binary.LittleEndian.PutUint16(m.data[addr:], v)
}

func (m *Memory) Write32(addr uint64, v uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkFault(addr, 4)
	if m.faultLatched || int(addr)+4 > len(m.data) {
		return
	}
	binary.LittleEndian.PutUint32(m.data[addr:], v)
}

func (m *Memory) Write64(addr uint64, v uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkFault(addr, 8)
	if m.faultLatched || int(addr)+8 > len(m.data) {
		return
	}
	binary.LittleEndian.PutUint64(m.data[addr:], v)
}

func (m *Memory) FaultOccurred() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := m.faultLatched
	m.faultLatched = false
	return f
}

// SyncICacheToDCache is a no-op: a pure-Go in-memory target has no
// split instruction/data cache to invalidate.
func (m *Memory) SyncICacheToDCache(addr uint64, length int) error {
	return nil
}

// Bytes exposes the backing slice for test assertions and for seeding
// a demo image before a GDB session attaches.
func (m *Memory) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data
}
