// Package mock provides a MockPlatform implementing platform.Platform
// entirely in memory, for driving the monitor's command handlers in
// tests without real hardware. It is modeled on the teacher's
// MockBackend: call-count tracking plus small knobs (fault injection,
// canned trap causes) that tests flip before invoking the Monitor.
package mock

import (
	"context"
	"encoding/binary"
	"io"
	"sync"

	"github.com/ehrlich-b/go-mri/internal/platform"
	"github.com/ehrlich-b/go-mri/internal/regcontext"
)

// MockPlatform is a single-threaded test double; it is not safe for
// concurrent command dispatch (the real monitor never does that
// either — spec.md's no-multi-client-concurrency non-goal). None of its
// methods take mu, so tests must not poke at it from a different
// goroutine than the one driving the Monitor.
type MockPlatform struct {
	mu sync.Mutex

	Mem          []byte
	FaultAddr    uint64
	HasFault     bool
	faultLatched bool

	InBytes  []byte
	inCursor int
	Out      []byte

	RegCtx *regcontext.Context

	TrapKind       platform.TrapKind
	TrapCause      platform.TrapCause
	Signal         int
	SingleStepping bool
	ProgramCounter uint64
	PCModified     bool

	BreakpointSets   int
	BreakpointClears int
	WatchpointSets   int
	WatchpointClears int
	LastBreakErr     error

	SemihostOp             int
	SemihostParams         [4]uint64
	SemihostReturn         int
	SemihostErrno          int
	WaitForConnect         bool
	MemoryMap              []byte
	TargetXML              []byte
	PacketBufferSize       int
	ThreadStateSupported   bool
	ThreadStates           map[int]platform.ThreadState
	RestoredThreadState    bool
	ActiveThreads          map[int]bool
	CurrentThreadSelection int

	EnteringCalls int
	LeavingCalls  int
	InitFlags     map[string]string
	ResetCalls    int
}

// New builds a MockPlatform with memSize bytes of backing memory.
func New(memSize int) *MockPlatform {
	return &MockPlatform{
		Mem:                  make([]byte, memSize),
		RegCtx:               regcontext.New(regcontext.Section{Values: make([]uint64, 16)}),
		PacketBufferSize:     1024,
		ThreadStates:         make(map[int]platform.ThreadState),
		ActiveThreads:        make(map[int]bool),
		ThreadStateSupported: false,
	}
}

// --- Memory ---

func (p *MockPlatform) checkFault(addr uint64) {
	if p.HasFault && addr == p.FaultAddr {
		p.faultLatched = true
	}
}

func (p *MockPlatform) Read8(addr uint64) uint8 {
	p.checkFault(addr)
	if p.faultLatched || int(addr) >= len(p.Mem) {
		return 0
	}
	return p.Mem[addr]
}

func (p *MockPlatform) Read16(addr uint64) uint16 {
	p.checkFault(addr)
	if p.faultLatched || int(addr)+2 > len(p.Mem) {
		return 0
	}
	return binary.LittleEndian.Uint16(p.Mem[addr:])
}

func (p *MockPlatform) Read32(addr uint64) uint32 {
	p.checkFault(addr)
	if p.faultLatched || int(addr)+4 > len(p.Mem) {
		return 0
	}
	return binary.LittleEndian.Uint32(p.Mem[addr:])
}

func (p *MockPlatform) Read64(addr uint64) uint64 {
	p.checkFault(addr)
	if p.faultLatched || int(addr)+8 > len(p.Mem) {
		return 0
	}
	return binary.LittleEndian.Uint64(p.Mem[addr:])
}

func (p *MockPlatform) Write8(addr uint64, v uint8) {
	p.checkFault(addr)
	if p.faultLatched || int(addr) >= len(p.Mem) {
		return
	}
	p.Mem[addr] = v
}

func (p *MockPlatform) Write16(addr uint64, v uint16) {
	p.checkFault(addr)
	if p.faultLatched || int(addr)+2 > len(p.Mem) {
		return
	}
	binary.LittleEndian.PutUint16(p.Mem[addr:], v)
}

func (p *MockPlatform) Write32(addr uint64, v uint32) {
	p.checkFault(addr)
	if p.faultLatched || int(addr)+4 > len(p.Mem) {
		return
	}
	binary.LittleEndian.PutUint32(p.Mem[addr:], v)
}

func (p *MockPlatform) Write64(addr uint64, v uint64) {
	p.checkFault(addr)
	if p.faultLatched || int(addr)+8 > len(p.Mem) {
		return
	}
	binary.LittleEndian.PutUint64(p.Mem[addr:], v)
}

func (p *MockPlatform) FaultOccurred() bool {
	f := p.faultLatched
	p.faultLatched = false
	return f
}

func (p *MockPlatform) SyncICacheToDCache(addr uint64, length int) error {
	return nil
}

// --- Comm ---

func (p *MockPlatform) HasReceiveData() bool { return p.inCursor < len(p.InBytes) }

func (p *MockPlatform) ReceiveChar(ctx context.Context) (byte, error) {
	if p.inCursor >= len(p.InBytes) {
		return 0, io.EOF
	}
	c := p.InBytes[p.inCursor]
	p.inCursor++
	return c, nil
}

func (p *MockPlatform) HasTransmitCompleted() bool { return true }

func (p *MockPlatform) SendChar(c byte) error {
	p.Out = append(p.Out, c)
	return nil
}

func (p *MockPlatform) SendBuffer(b []byte) error {
	p.Out = append(p.Out, b...)
	return nil
}

// --- Execution ---

func (p *MockPlatform) DetermineCauseOfException() int { return p.Signal }
func (p *MockPlatform) GetTrapReason() platform.TrapCause { return p.TrapCause }
func (p *MockPlatform) DisplayFaultCauseToGdbConsole(write func(string)) {}
func (p *MockPlatform) EnableSingleStep()                { p.SingleStepping = true }
func (p *MockPlatform) DisableSingleStep()               { p.SingleStepping = false }
func (p *MockPlatform) IsSingleStepping() bool           { return p.SingleStepping }
func (p *MockPlatform) GetProgramCounter() uint64        { return p.ProgramCounter }
func (p *MockPlatform) SetProgramCounter(pc uint64) {
	p.ProgramCounter = pc
	p.PCModified = true
}
func (p *MockPlatform) AdvanceProgramCounterToNextInstruction() { p.ProgramCounter += 2 }
func (p *MockPlatform) WasProgramCounterModifiedByUser() bool   { return p.PCModified }

// --- ContextEmitter ---

func (p *MockPlatform) WriteTResponseRegisters(write func(string)) {
	write("")
}

func (p *MockPlatform) Context() *regcontext.Context { return p.RegCtx }

// --- BreakWatch ---

func (p *MockPlatform) SetHardwareBreakpoint(addr uint64, kind platform.BreakpointKind, extra uint32) error {
	p.BreakpointSets++
	return p.LastBreakErr
}

func (p *MockPlatform) ClearHardwareBreakpoint(addr uint64, kind platform.BreakpointKind, extra uint32) error {
	p.BreakpointClears++
	return nil
}

func (p *MockPlatform) SetHardwareWatchpoint(addr uint64, kind platform.BreakpointKind, size uint32) error {
	p.WatchpointSets++
	return p.LastBreakErr
}

func (p *MockPlatform) ClearHardwareWatchpoint(addr uint64, kind platform.BreakpointKind, size uint32) error {
	p.WatchpointClears++
	return nil
}

// --- InstructionClassifier ---

func (p *MockPlatform) TypeOfCurrentInstruction() platform.TrapKind { return p.TrapKind }

// --- Semihost ---

func (p *MockPlatform) GetSemihostOpNumber() int { return p.SemihostOp }

func (p *MockPlatform) GetSemihostCallParameters() (uint64, uint64, uint64, uint64) {
	return p.SemihostParams[0], p.SemihostParams[1], p.SemihostParams[2], p.SemihostParams[3]
}

func (p *MockPlatform) SetSemihostCallReturnAndErrnoValues(ret, errno int) {
	p.SemihostReturn, p.SemihostErrno = ret, errno
}

// --- Device ---

func (p *MockPlatform) Init(flags map[string]string) { p.InitFlags = flags }
func (p *MockPlatform) ResetDevice()                 { p.ResetCalls++ }
func (p *MockPlatform) GetUID() []byte               { return []byte("mock-uid") }

// --- RTOS ---

func (p *MockPlatform) GetHaltedThreadID() int { return 1 }

func (p *MockPlatform) GetFirstThreadID() (int, bool) {
	return p.GetNextThreadID(0)
}

func (p *MockPlatform) GetNextThreadID(prev int) (int, bool) {
	best := -1
	for tid := range p.ActiveThreads {
		if tid > prev && (best == -1 || tid < best) {
			best = tid
		}
	}
	if best == -1 {
		return 0, false
	}
	return best, true
}

func (p *MockPlatform) GetExtraThreadInfo(tid int) string { return "" }

func (p *MockPlatform) SetCurrentThread(tid int) bool {
	if tid == platform.AllThreads {
		p.CurrentThreadSelection = tid
		return true
	}
	if _, ok := p.ActiveThreads[tid]; !ok {
		return false
	}
	p.CurrentThreadSelection = tid
	return true
}

func (p *MockPlatform) IsThreadActive(tid int) bool { return p.ActiveThreads[tid] }

func (p *MockPlatform) IsSetThreadStateSupported() bool { return p.ThreadStateSupported }

func (p *MockPlatform) SetThreadState(tid int, state platform.ThreadState) {
	p.ThreadStates[tid] = state
}

func (p *MockPlatform) RestorePrevThreadState() { p.RestoredThreadState = true }

// --- FaultHook ---

func (p *MockPlatform) HandleFaultFromHighPriorityCode() {}

// --- Platform aggregate extras ---

func (p *MockPlatform) GetPacketBufferSize() int { return p.PacketBufferSize }
func (p *MockPlatform) EnteringDebugger()        { p.EnteringCalls++ }
func (p *MockPlatform) LeavingDebugger()         { p.LeavingCalls++ }

type xmlBlob struct{ data []byte }

func (b xmlBlob) Bytes() []byte { return b.data }

func (p *MockPlatform) GetMemoryMapXML() platform.XMLBlob { return xmlBlob{p.MemoryMap} }
func (p *MockPlatform) GetTargetXML() platform.XMLBlob    { return xmlBlob{p.TargetXML} }
func (p *MockPlatform) ShouldWaitForGdbConnect() bool     { return p.WaitForConnect }

var _ platform.Platform = (*MockPlatform)(nil)
