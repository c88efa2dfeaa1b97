// Package semihost identifies and completes semihost-style traps so
// the host debugger never sees them (spec.md §4.8). The semihost ABI
// itself (argument encoding, per-target op numbers) is an out-of-scope
// platform concern; this package only decides "is the current trap a
// semihost call" and, for the calls that require host file I/O,
// constructs the GDB file-I/O request string; the caller sends it and
// waits for the matching F reply synchronously (IssueFileIO is the
// shape of that step) and hands the result to Finalize — this
// resolves the core/semihost/cmd_file cyclic dependency the original
// C implementation has with an explicit callback rather than a
// coroutine.
package semihost

import (
	"fmt"

	"github.com/ehrlich-b/go-mri/internal/platform"
)

// Op identifies a semihost operation in a target-agnostic way. The
// platform's Semihost implementation is responsible for mapping its
// own ABI's raw op number onto one of these before calling Dispatch.
type Op int

const (
	OpUnknown Op = iota
	OpOpen
	OpClose
	OpRead
	OpWrite
	OpLseek
	OpFStat
	OpStat
	OpUnlink
	OpRename
	OpIsTTY
)

// FileIOResult is what the main dispatcher learns once a matching F
// reply has arrived (spec.md §4.6.1's F handler).
type FileIOResult struct {
	Ret       int
	Errno     int
	CtrlCSeen bool
}

// IssueFileIO sends a GDB file-I/O request packet built from req and
// blocks for the matching F reply. It is supplied by the monitor core,
// which owns the packet send/receive loop.
type IssueFileIO func(request string) (FileIOResult, error)

// IsSemihostTrap reports whether the classified trap kind is a
// semihost call at all.
func IsSemihostTrap(kind platform.TrapKind) bool {
	return kind == platform.TrapMbedSemihost || kind == platform.TrapNewlibSemihost
}

// Decision is the outcome of Dispatch: either the call was completed
// immediately (Ret/Errno are final) or a file-I/O request needs to be
// issued via IssueFileIO before the caller can finalize.
type Decision struct {
	Handled  bool
	Ret      int
	Errno    int
	Request  string // non-empty when the caller must IssueFileIO(Request)
}

// Dispatch decides what a semihost call identified by op, with
// arguments p1..p4, requires. Operations the core can resolve without
// host help (e.g. OpIsTTY) are completed immediately; others produce
// a GDB file-I/O request string for the caller to send via
// IssueFileIO.
func Dispatch(op Op, p1, p2, p3, p4 uint64) Decision {
	switch op {
	case OpIsTTY:
		return Decision{Handled: true, Ret: 0}
	case OpOpen:
		return Decision{Request: fmt.Sprintf("Fopen,%x/%x,%x,%x", p1, p2, p3, p4)}
	case OpClose:
		return Decision{Request: fmt.Sprintf("Fclose,%x", p1)}
	case OpRead:
		return Decision{Request: fmt.Sprintf("Fread,%x,%x,%x", p1, p2, p3)}
	case OpWrite:
		return Decision{Request: fmt.Sprintf("Fwrite,%x,%x,%x", p1, p2, p3)}
	case OpLseek:
		return Decision{Request: fmt.Sprintf("Flseek,%x,%x,%x", p1, p2, p3)}
	case OpFStat:
		return Decision{Request: fmt.Sprintf("Ffstat,%x,%x", p1, p2)}
	case OpStat:
		return Decision{Request: fmt.Sprintf("Fstat,%x/%x,%x", p1, p2, p3)}
	case OpUnlink:
		return Decision{Request: fmt.Sprintf("Funlink,%x/%x", p1, p2)}
	case OpRename:
		return Decision{Request: fmt.Sprintf("Frename,%x/%x,%x/%x", p1, p2, p3, p4)}
	default:
		return Decision{Handled: true, Ret: -1, Errno: 88 /* ENOSYS */}
	}
}

// Finalize applies a completed semihost result to the platform: unless
// the call was cancelled by the host (CtrlCSeen with Errno==EINTR), the
// program counter is advanced past the semihost instruction and the
// return value/errno are injected; a cancelled call leaves the PC
// where it was so the instruction can be retried or abandoned by the
// debuggee, matching FlagSemihostCallAsHandled / WasSemihostCallCancelledByGdb.
func Finalize(exec platform.Execution, sh platform.Semihost, result FileIOResult) {
	const eintr = 4
	cancelled := result.CtrlCSeen && result.Errno == eintr
	if !cancelled {
		exec.AdvanceProgramCounterToNextInstruction()
	}
	sh.SetSemihostCallReturnAndErrnoValues(result.Ret, result.Errno)
}
