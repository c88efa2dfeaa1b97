package mri

import "github.com/ehrlich-b/go-mri/internal/platform"

// handleStep implements "s[addr]": continue-one-step semantics. If the
// current instruction is a hardcoded breakpoint, continuing would just
// skip over it without ever single-stepping, so the monitor instead
// synthesizes a stop reply and waits for the next command (spec.md
// §4.6.1's `s` row, S6).
func handleStep(m *Monitor) int {
	if addr, ok := optionalAddress(m); ok {
		m.platform.SetProgramCounter(addr)
	}
	return stepCommon(m)
}

// handleStepWithSignal implements "S sig[;addr]".
func handleStepWithSignal(m *Monitor) int {
	sig, err := m.buf.ReadUIntegerAsHex()
	if err != nil {
		m.raise(CodeInvalidArgument)
		m.replyErr()
		return 0
	}
	m.currentSignal = int(sig)
	if match, _ := m.buf.IsNextCharEqualTo(';'); match {
		if addr, err := m.buf.ReadUIntegerAsHex(); err == nil {
			m.platform.SetProgramCounter(addr)
		}
	}
	return stepCommon(m)
}

func stepCommon(m *Monitor) int {
	if m.platform.TypeOfCurrentInstruction() == platform.TrapHardcodedBreakpoint &&
		!m.platform.WasProgramCounterModifiedByUser() {
		m.platform.AdvanceProgramCounterToNextInstruction()
		m.writeStopReplyBody()
		return ReturnImmediately | SkippedOverBreak | sendStopReplyNow(m)
	}
	m.platform.EnableSingleStep()
	m.applyRtosResumeState(platform.ThreadSingleStepping)
	return ResumeProgram | ReturnImmediately
}

// sendStopReplyNow pushes the already-rendered T-reply (written by
// writeStopReplyBody) out immediately; used by the synthesized-stop
// path where the session keeps running the command loop rather than
// waiting for the dispatcher's normal auto-send.
func sendStopReplyNow(m *Monitor) int {
	m.buf.SetEnd()
	m.buf.Reset()
	if err := m.pkt.Send(m.opts.Context, m.buf); err != nil {
		m.log.Errorf("synthesized stop reply failed: %v", err)
	}
	return 0
}
