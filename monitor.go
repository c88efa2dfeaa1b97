package mri

import (
	"context"
	"time"

	"github.com/ehrlich-b/go-mri/internal/buffer"
	"github.com/ehrlich-b/go-mri/internal/logging"
	"github.com/ehrlich-b/go-mri/internal/platform"
	"github.com/ehrlich-b/go-mri/internal/rsp"
	"github.com/ehrlich-b/go-mri/internal/token"
)

// Handler return flags (spec.md §4.6).
const (
	ResumeProgram = 1 << iota
	ReturnImmediately
	SkippedOverBreak
)

// handlerFunc implements one RSP command letter. It runs with m.buf
// positioned just past the command byte(s) it was dispatched on, and
// replies by writing into m.buf after calling m.beginReply.
type handlerFunc func(m *Monitor) int

// tempBreakpoint is the one-shot hardware breakpoint described in
// spec.md §4.9.
type tempBreakpoint struct {
	addr     uint64
	isSet    bool
	callback func(ctx any) int
	ctx      any
}

// stepRange is the "r start,end" hint from vCont (spec.md §4.6.3).
type stepRange struct {
	start, end uint64
	active     bool
}

// Monitor holds the single debug session's state (spec.md §3's
// "Monitor core state"). It is constructed once and reused across
// every trap entry; there is exactly one Monitor per target, matching
// the no-multi-client-concurrency non-goal.
type Monitor struct {
	platform platform.Platform
	opts     Options
	log      *logging.Logger

	pkt  *rsp.Packet
	buf  *buffer.Buffer
	errs errorState

	// Metrics is optional instrumentation; nil unless Options.Metrics
	// was set, in which case commandLoop records every dispatch.
	Metrics *Metrics

	firstException       bool
	semihostCtrlC        bool
	restorePrevRtosState bool
	resetOnResume        bool
	currentSignal        int
	lastSemihostRet      int
	lastSemihostErrno    int
	temp                 tempBreakpoint
	step                 stepRange
	selectedThread       int
	lastThreadIDSeen     int
}

// dispatchTable maps a single command byte to its handler. Multi-
// character command families (q/Q, v) are represented by one entry
// each that does its own prefix dispatch once it owns the buffer.
var dispatchTable = map[byte]handlerFunc{
	'?': handleQueryHaltReason,
	'g': handleReadRegisters,
	'G': handleWriteRegisters,
	'm': handleReadMemory,
	'M': handleWriteMemory,
	'X': handleWriteMemoryBinary,
	'c': handleContinue,
	'C': handleContinueWithSignal,
	's': handleStep,
	'S': handleStepWithSignal,
	'z': handleClearBreakWatch,
	'Z': handleSetBreakWatch,
	'q': handleQuery,
	'Q': handleQuery,
	'H': handleSetThread,
	'T': handleIsThreadAlive,
	'D': handleDetach,
	'v': handleVPacket,
}

// New constructs a Monitor bound to a concrete platform. If
// opts.Raw is set, it is parsed per spec.md §6.3's grammar and handed
// to the platform's Init before the session starts; a malformed Raw
// string (too many tokens) is logged and otherwise ignored, matching
// the reference implementation's non-fatal treatment of a bad init
// string.
func New(p platform.Platform, opts Options) *Monitor {
	opts = opts.withDefaults()
	if opts.Raw != "" {
		flags, err := token.ParseFlags(opts.Raw)
		if err != nil {
			opts.Logger.Errorf("mri: ignoring malformed init string %q: %v", opts.Raw, err)
		} else {
			p.Init(flags)
		}
	}
	return &Monitor{
		platform:       p,
		opts:           opts,
		log:            opts.Logger,
		pkt:            rsp.New(p),
		buf:            buffer.New(opts.PacketBufferSize),
		Metrics:        opts.Metrics,
		firstException: true,
		selectedThread: platform.AllThreads,
	}
}

// beginReply rewinds the shared buffer so a handler can write a fresh
// response; the receive and response buffers are the same Buffer
// (spec.md §3's invariant), so this must happen before any write.
func (m *Monitor) beginReply() {
	m.buf.ResetFull()
}

func (m *Monitor) replyOK() {
	m.beginReply()
	m.buf.WriteString("OK")
}

func (m *Monitor) replyEmpty() {
	m.beginReply()
}

// replyErr converts the monitor's latched error code into an E<nn>
// reply and clears the latch, per spec.md §7: "Handlers always convert
// a thrown exception into an E<nn> string reply; they do not leak
// exceptions back to the dispatcher."
func (m *Monitor) replyErr() {
	code := m.errs.get()
	m.beginReply()
	m.buf.WriteString(replyFor(code))
	m.errs.clear()
}

// raise records a failure for the current handler and is idempotent
// under re-raising a less severe code (spec.md §4.1 max() discipline).
func (m *Monitor) raise(code Code) {
	m.errs.raise(code)
}

// DebugException runs exactly one debug session: handshake, optional
// semihost interception, the stop-reply, then the command loop until a
// handler resumes the program (spec.md §2, §4.6).
func (m *Monitor) DebugException(ctx context.Context) error {
	m.platform.EnteringDebugger()

	if m.platform.IsSetThreadStateSupported() && m.restorePrevRtosState {
		m.platform.RestorePrevThreadState()
		m.restorePrevRtosState = false
	}

	if m.firstException && m.platform.ShouldWaitForGdbConnect() {
		if err := m.waitForGdbConnect(ctx); err != nil {
			return err
		}
	}

	if m.checkTempBreakpoint() {
		m.platform.LeavingDebugger()
		m.firstException = false
		return nil
	}

	m.currentSignal = m.platform.DetermineCauseOfException()

	if m.currentSignal == SignalTrap && m.handleSemihostIfAny(ctx) {
		m.platform.LeavingDebugger()
		m.firstException = false
		return nil
	}

	if m.checkStepRangeSwallow() {
		m.platform.LeavingDebugger()
		m.firstException = false
		return nil
	}

	m.platform.DisplayFaultCauseToGdbConsole(func(s string) { m.consoleWrite(ctx, s) })
	if err := m.sendStopReply(ctx); err != nil {
		return err
	}

	if err := m.commandLoop(ctx); err != nil {
		return err
	}

	m.platform.LeavingDebugger()
	m.firstException = false
	return nil
}

func (m *Monitor) commandLoop(ctx context.Context) error {
	for {
		if err := m.pkt.Get(ctx, m.buf); err != nil {
			return err
		}
		if m.pkt.CtrlCSeen {
			m.currentSignal = SignalInt
			m.pkt.CtrlCSeen = false
		}

		flags := 0
		start := time.Now()
		if cmdByte, err := m.buf.ReadChar(); err != nil {
			m.replyEmpty()
		} else if h, ok := dispatchTable[cmdByte]; !ok {
			m.replyEmpty()
			m.Metrics.recordUnknownCommand()
		} else {
			flags = h(m)
		}

		if flags&ReturnImmediately != 0 {
			m.Metrics.recordCommand(false, uint64(time.Since(start)))
			if flags&ResumeProgram != 0 {
				return nil
			}
			continue
		}
		// The handler left its reply written but unterminated; close it
		// off and rewind for Packet.Send to read from position 0.
		m.buf.SetEnd()
		errored := len(m.buf.Bytes()) > 0 && m.buf.Bytes()[0] == 'E'
		m.Metrics.recordCommand(errored, uint64(time.Since(start)))
		m.buf.Reset()
		if err := m.pkt.Send(ctx, m.buf); err != nil {
			return err
		}
		if flags&ResumeProgram != 0 {
			return nil
		}
	}
}

func (m *Monitor) waitForGdbConnect(ctx context.Context) error {
	for {
		c, err := m.platform.ReceiveChar(ctx)
		if err != nil {
			return err
		}
		if c == '+' {
			return nil
		}
	}
}

// handleSemihostIfAny classifies the current trap and, if it is a
// semihost call, completes it (spec.md §4.8). It reports whether the
// session should end invisibly (the debugger never saw this trap).
func (m *Monitor) handleSemihostIfAny(ctx context.Context) bool {
	kind := m.platform.TypeOfCurrentInstruction()
	if !isSemihostKind(kind) {
		return false
	}
	decision := dispatchSemihostTrap(kind, m.platform)
	result := semihostOutcome{Ret: decision.Ret, Errno: decision.Errno}
	if decision.Request != "" {
		var err error
		result, err = m.issueFileIO(ctx, decision.Request)
		if err != nil {
			return false
		}
	}
	m.finalizeSemihost(result)
	return !m.platform.IsSingleStepping()
}

func (m *Monitor) checkTempBreakpoint() bool {
	if !m.temp.isSet {
		return false
	}
	if m.platform.GetProgramCounter() != m.temp.addr {
		return false
	}
	_ = m.platform.ClearHardwareBreakpoint(m.temp.addr, platform.BreakpointHardware, 0)
	m.temp.isSet = false
	if m.temp.callback != nil {
		return m.temp.callback(m.temp.ctx) != 0
	}
	return false
}

// setTempBreakpoint arms a one-shot breakpoint (spec.md §4.9).
func (m *Monitor) setTempBreakpoint(addr uint64, cb func(ctx any) int, cbCtx any) error {
	if m.temp.isSet {
		return nil
	}
	addr &^= 1
	if err := m.platform.SetHardwareBreakpoint(addr, platform.BreakpointHardware, 0); err != nil {
		return err
	}
	m.temp = tempBreakpoint{addr: addr, isSet: true, callback: cb, ctx: cbCtx}
	return nil
}

func (m *Monitor) consoleWrite(ctx context.Context, s string) {
	writeGdbConsole(m, ctx, s)
}
