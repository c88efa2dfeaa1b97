// Package platform declares the narrow collaborator interfaces the
// monitor core consumes (spec.md §6.2). It lives in its own package —
// mirroring the teacher's internal/interfaces split — so that the root
// mri package and any concrete implementation (platform/mock,
// platform/loopback) can both depend on these contracts without an
// import cycle.
//
// Everything CPU-specific, comm-driver-specific, semihost-ABI-specific,
// board/device-init-specific, and RTOS-enumeration-specific is a
// collaborator behind one of these interfaces; the core never reaches
// past them.
package platform

import (
	"context"

	"github.com/ehrlich-b/go-mri/internal/regcontext"
)

// TrapKind classifies what the current trapped instruction is, as
// decided by the platform's instruction classifier.
type TrapKind int

const (
	TrapOther TrapKind = iota
	TrapMbedSemihost
	TrapNewlibSemihost
	TrapHardcodedBreakpoint
)

// StopReason distinguishes why the target stopped, for the T-stop-reply
// (spec.md §4.7).
type StopReason int

const (
	StopUnknown StopReason = iota
	StopHardwareBreak
	StopSoftwareBreak
	StopWatch
	StopReadWatch
	StopAccessWatch
)

// TrapCause carries the stop reason and, for watchpoints, the
// triggering address.
type TrapCause struct {
	Reason  StopReason
	Address uint64
	HasAddr bool
}

// BreakpointKind mirrors the z/Z "kind" field (spec.md §4.6.1).
type BreakpointKind int

const (
	BreakpointSoftware BreakpointKind = iota
	BreakpointHardware
	WatchpointWrite
	WatchpointRead
	WatchpointAccess
)

// ThreadState is passed to RTOS.SetThreadState.
type ThreadState int

const (
	ThreadThawed ThreadState = iota
	ThreadSingleStepping
	ThreadFrozen
)

// Sentinel thread IDs, mirroring MRI_PLATFORM_ALL_THREADS and
// MRI_PLATFORM_ALL_FROZEN_THREADS.
const (
	AllThreads       = -1
	AllFrozenThreads = -2
)

// Memory is the fault-tolerant, size-dispatched leaf memory access
// surface used by the m/M/X command handlers (spec.md §4.4).
type Memory interface {
	Read8(addr uint64) uint8
	Read16(addr uint64) uint16
	Read32(addr uint64) uint32
	Read64(addr uint64) uint64
	Write8(addr uint64, v uint8)
	Write16(addr uint64, v uint16)
	Write32(addr uint64, v uint32)
	Write64(addr uint64, v uint64)
	// FaultOccurred reports whether the most recent Read/Write hit a
	// bus/memory fault; the platform's fault hook is expected to set
	// this rather than the call panicking or erroring directly.
	FaultOccurred() bool
	// SyncICacheToDCache is invoked after a successful X write so code
	// patches become executable.
	SyncICacheToDCache(addr uint64, length int) error
}

// Comm is the byte-at-a-time communication driver (spec.md §6.2 Comm).
type Comm interface {
	HasReceiveData() bool
	ReceiveChar(ctx context.Context) (byte, error)
	HasTransmitCompleted() bool
	SendChar(c byte) error
	SendBuffer(p []byte) error
}

// Execution exposes trap-cause determination and program-counter
// control.
type Execution interface {
	DetermineCauseOfException() int // returns a POSIX signal number
	GetTrapReason() TrapCause
	DisplayFaultCauseToGdbConsole(write func(string))
	EnableSingleStep()
	DisableSingleStep()
	IsSingleStepping() bool
	GetProgramCounter() uint64
	SetProgramCounter(pc uint64)
	AdvanceProgramCounterToNextInstruction()
	WasProgramCounterModifiedByUser() bool
}

// ContextEmitter supplies the platform-specific register fragment
// appended to every T-stop-reply (spec.md §4.7), e.g. "r7:...;pc:...;",
// and the scatter/gather register Context currently backing g/G.
// Context() always reflects the halted thread until RTOS.SetCurrentThread
// (called by the H handler) retargets it at a different thread's saved
// state; the core never builds or owns register storage itself
// (spec.md §5: "shared between platform save/restore code and the
// handlers").
type ContextEmitter interface {
	WriteTResponseRegisters(write func(string))
	Context() *regcontext.Context
}

// XMLBlob is an opaque, platform-owned document served verbatim via
// qXfer (memory-map or target-description XML).
type XMLBlob interface {
	Bytes() []byte
}

// BreakWatch programs hardware breakpoint/watchpoint comparators.
type BreakWatch interface {
	SetHardwareBreakpoint(addr uint64, kind BreakpointKind, extra uint32) error
	ClearHardwareBreakpoint(addr uint64, kind BreakpointKind, extra uint32) error
	SetHardwareWatchpoint(addr uint64, kind BreakpointKind, size uint32) error
	ClearHardwareWatchpoint(addr uint64, kind BreakpointKind, size uint32) error
}

// InstructionClassifier identifies what kind of instruction the program
// counter currently refers to, driving the semihost dispatch.
type InstructionClassifier interface {
	TypeOfCurrentInstruction() TrapKind
}

// Semihost fetches semihost call arguments and injects the return
// value/errno the core computed for them (spec.md §4.8).
type Semihost interface {
	GetSemihostOpNumber() int
	GetSemihostCallParameters() (p1, p2, p3, p4 uint64)
	SetSemihostCallReturnAndErrnoValues(ret int, errno int)
}

// Device exposes device identity and the (out-of-scope) reset action
// the monitor invokes on the next continue after qRcmd's "reset".
type Device interface {
	// Init is called once at Monitor construction with the parsed
	// MRI_UART_*-style init flags (spec.md §6.3); a platform with no
	// init-time configuration may implement it as a no-op.
	Init(flags map[string]string)
	ResetDevice()
	GetUID() []byte
}

// RTOS is the thread-enumeration hook; a platform with no RTOS may
// implement it as a no-op that reports unsupported.
type RTOS interface {
	GetHaltedThreadID() int
	GetFirstThreadID() (int, bool)
	GetNextThreadID(prev int) (int, bool)
	GetExtraThreadInfo(tid int) string
	SetCurrentThread(tid int) bool // retargets ContextEmitter.Context() at tid's saved state
	IsThreadActive(tid int) bool
	IsSetThreadStateSupported() bool
	SetThreadState(tid int, state ThreadState)
	RestorePrevThreadState()
}

// FaultHook is invoked when the monitor itself traps outside a
// memory-access primitive; spec.md §7 treats this as fatal and
// platform-defined.
type FaultHook interface {
	HandleFaultFromHighPriorityCode()
}

// Platform aggregates every collaborator surface the core consumes.
// Concrete implementations (platform/mock, platform/loopback) satisfy
// this as one struct; individual packages (internal/memory,
// internal/semihost, ...) only ever depend on the narrow interface
// they need.
type Platform interface {
	Memory
	Comm
	Execution
	ContextEmitter
	BreakWatch
	InstructionClassifier
	Semihost
	Device
	RTOS
	FaultHook

	GetPacketBufferSize() int
	EnteringDebugger()
	LeavingDebugger()
	GetMemoryMapXML() XMLBlob
	GetTargetXML() XMLBlob
	ShouldWaitForGdbConnect() bool
}
