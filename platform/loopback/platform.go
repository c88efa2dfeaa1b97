package loopback

import (
	"context"
	"fmt"

	"github.com/ehrlich-b/go-mri/internal/platform"
	"github.com/ehrlich-b/go-mri/internal/regcontext"
)

// Platform is a runnable, non-hardware platform.Platform: *Memory for
// storage, a caller-supplied platform.Comm (SerialComm, TTYComm or TCPComm) for
// the wire, and a minimal, single-threaded "virtual CPU" standing in
// for the CPU-specific context save/restore and RTOS hooks spec.md
// explicitly leaves out of scope. It exists so cmd/mri-serve has a
// live target to attach a real GDB client to with no hardware in the
// loop.
type Platform struct {
	*Memory
	comm platform.Comm

	regs           *regcontext.Context
	pc             uint64
	pcModified     bool
	singleStepping bool
	lastSignal     int

	breakpoints  map[uint64]platform.BreakpointKind
	watchpoints  map[uint64]platform.BreakpointKind
	lastHitWatch platform.TrapCause

	memoryMapXML xmlBlob
	targetXML    xmlBlob
	bufferSize   int
	waitForGdb   bool

	initFlags map[string]string
}

type xmlBlob struct{ data []byte }

func (b xmlBlob) Bytes() []byte { return b.data }

// NewPlatform builds a Platform with memSize bytes of RAM, a 16-register
// 32-bit general purpose bank (the common ARM-like shape every example
// in this corpus's register dump assumes), and the given comm driver.
func NewPlatform(memSize int, comm platform.Comm) *Platform {
	return &Platform{
		Memory:       NewMemory(memSize),
		comm:         comm,
		regs:         regcontext.New(regcontext.Section{Values: make([]uint64, 16)}),
		breakpoints:  make(map[uint64]platform.BreakpointKind),
		watchpoints:  make(map[uint64]platform.BreakpointKind),
		memoryMapXML: xmlBlob{defaultMemoryMapXML(memSize)},
		targetXML:    xmlBlob{defaultTargetXML},
		bufferSize:   1024,
	}
}

// SetWaitForGdbConnect controls whether the first DebugException blocks
// for the initial '+' handshake (spec.md §2); a demo run dialing out
// over TCP typically wants this off since the dial itself is the sync
// point.
func (p *Platform) SetWaitForGdbConnect(wait bool) { p.waitForGdb = wait }

// --- Comm passthrough ---

func (p *Platform) HasReceiveData() bool                             { return p.comm.HasReceiveData() }
func (p *Platform) ReceiveChar(ctx context.Context) (byte, error)    { return p.comm.ReceiveChar(ctx) }
func (p *Platform) HasTransmitCompleted() bool                       { return p.comm.HasTransmitCompleted() }
func (p *Platform) SendChar(c byte) error                            { return p.comm.SendChar(c) }
func (p *Platform) SendBuffer(b []byte) error                        { return p.comm.SendBuffer(b) }

// --- Execution ---

// DetermineCauseOfException reports SIGTRAP for every entry: a demo
// target only ever "traps" because the driving code entered the
// monitor, never from an asynchronous fault.
func (p *Platform) DetermineCauseOfException() int { return 5 } // SIGTRAP

func (p *Platform) GetTrapReason() platform.TrapCause { return p.lastHitWatch }

func (p *Platform) DisplayFaultCauseToGdbConsole(write func(string)) {
	write(fmt.Sprintf("stopped at pc=%#x\r\n", p.pc))
}

func (p *Platform) EnableSingleStep()  { p.singleStepping = true }
func (p *Platform) DisableSingleStep() { p.singleStepping = false }
func (p *Platform) IsSingleStepping() bool { return p.singleStepping }

func (p *Platform) GetProgramCounter() uint64 { return p.pc }
func (p *Platform) SetProgramCounter(pc uint64) {
	p.pc = pc
	p.pcModified = true
}
func (p *Platform) AdvanceProgramCounterToNextInstruction() {
	p.pc += 2
	p.pcModified = false
}
func (p *Platform) WasProgramCounterModifiedByUser() bool { return p.pcModified }

// --- ContextEmitter ---

func (p *Platform) WriteTResponseRegisters(write func(string)) {
	write(fmt.Sprintf("pc:%08x;", uint32(p.pc)))
}

func (p *Platform) Context() *regcontext.Context { return p.regs }

// --- BreakWatch ---

func (p *Platform) SetHardwareBreakpoint(addr uint64, kind platform.BreakpointKind, extra uint32) error {
	p.breakpoints[addr] = kind
	return nil
}

func (p *Platform) ClearHardwareBreakpoint(addr uint64, kind platform.BreakpointKind, extra uint32) error {
	delete(p.breakpoints, addr)
	return nil
}

func (p *Platform) SetHardwareWatchpoint(addr uint64, kind platform.BreakpointKind, size uint32) error {
	p.watchpoints[addr] = kind
	return nil
}

func (p *Platform) ClearHardwareWatchpoint(addr uint64, kind platform.BreakpointKind, size uint32) error {
	delete(p.watchpoints, addr)
	return nil
}

// --- InstructionClassifier ---

// TypeOfCurrentInstruction always reports TrapOther: this demo target
// never executes real instructions, so it never encounters a hardcoded
// breakpoint opcode or a semihost trap instruction on its own — tests
// that want those paths drive platform/mock instead.
func (p *Platform) TypeOfCurrentInstruction() platform.TrapKind { return platform.TrapOther }

// --- Semihost ---

func (p *Platform) GetSemihostOpNumber() int                          { return 0 }
func (p *Platform) GetSemihostCallParameters() (uint64, uint64, uint64, uint64) {
	return 0, 0, 0, 0
}
func (p *Platform) SetSemihostCallReturnAndErrnoValues(ret, errno int) {}

// --- Device ---

// Init stores the parsed MRI_UART_*-style init flags (spec.md §6.3).
// This demo target has no UART to reconfigure, so it only remembers
// them; a real platform would read MRI_UART_BAUD/MRI_UART_SHARE here
// to set up its comm driver.
func (p *Platform) Init(flags map[string]string) {
	p.initFlags = flags
}

func (p *Platform) ResetDevice() {
	p.pc = 0
	p.pcModified = false
	for i := 0; i < p.regs.Count(); i++ {
		_ = p.regs.Set(i, 0)
	}
}

func (p *Platform) GetUID() []byte { return []byte("go-mri-loopback") }

// --- RTOS ---

// No RTOS: every method reports "single thread, no enumeration
// support", matching spec.md's RTOS-thread-enumeration non-goal.
func (p *Platform) GetHaltedThreadID() int                { return 1 }
func (p *Platform) GetFirstThreadID() (int, bool)         { return 0, false }
func (p *Platform) GetNextThreadID(prev int) (int, bool)  { return 0, false }
func (p *Platform) GetExtraThreadInfo(tid int) string     { return "" }
func (p *Platform) SetCurrentThread(tid int) bool         { return tid == platform.AllThreads || tid == 1 }
func (p *Platform) IsThreadActive(tid int) bool           { return tid == 1 }
func (p *Platform) IsSetThreadStateSupported() bool       { return false }
func (p *Platform) SetThreadState(tid int, s platform.ThreadState) {}
func (p *Platform) RestorePrevThreadState()               {}

// --- FaultHook ---

func (p *Platform) HandleFaultFromHighPriorityCode() {}

// --- aggregate extras ---

func (p *Platform) GetPacketBufferSize() int { return p.bufferSize }
func (p *Platform) EnteringDebugger()        {}
func (p *Platform) LeavingDebugger()         {}
func (p *Platform) GetMemoryMapXML() platform.XMLBlob { return p.memoryMapXML }
func (p *Platform) GetTargetXML() platform.XMLBlob    { return p.targetXML }
func (p *Platform) ShouldWaitForGdbConnect() bool      { return p.waitForGdb }

func defaultMemoryMapXML(size int) []byte {
	return []byte(fmt.Sprintf(
		`<?xml version="1.0"?><memory-map><memory type="ram" start="0x0" length="%#x"/></memory-map>`,
		size))
}

var defaultTargetXML = []byte(
	`<?xml version="1.0"?><target version="1.0"><architecture>arm</architecture></target>`)

var _ platform.Platform = (*Platform)(nil)
