package mri

import "github.com/ehrlich-b/go-mri/internal/platform"

// handleContinue implements "c[addr]".
func handleContinue(m *Monitor) int {
	if addr, ok := optionalAddress(m); ok {
		m.platform.SetProgramCounter(addr)
	}
	return continueCommon(m)
}

// handleContinueWithSignal implements "C sig[;addr]".
func handleContinueWithSignal(m *Monitor) int {
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
	return continueCommon(m)
}

// handleDetach implements "D": same as continue but the OK reply is
// sent before the program actually resumes (spec.md §4.6.1).
func handleDetach(m *Monitor) int {
	m.replyOK()
	m.buf.SetEnd()
	m.buf.Reset()
	if err := m.pkt.Send(m.opts.Context, m.buf); err != nil {
		m.log.Errorf("detach reply failed: %v", err)
	}
	return continueCommon(m) | ReturnImmediately
}

func optionalAddress(m *Monitor) (uint64, bool) {
	addr, err := m.buf.ReadUIntegerAsHex()
	if err != nil {
		return 0, false
	}
	return addr, true
}

// continueCommon implements the shared "c"/"C"/"D" resume logic: if
// the current instruction is a hardcoded breakpoint and the user
// hasn't already moved the PC, step over it first (spec.md §4.6.1's
// `c` row), then resume. Continue never produces a reply packet of its
// own (spec.md S5: "no explicit reply, session ends"), so
// ReturnImmediately is always set alongside ResumeProgram.
func continueCommon(m *Monitor) int {
	if m.resetOnResume {
		m.resetOnResume = false
		m.platform.ResetDevice()
	}

	flags := ResumeProgram | ReturnImmediately
	if m.platform.TypeOfCurrentInstruction() == platform.TrapHardcodedBreakpoint &&
		!m.platform.WasProgramCounterModifiedByUser() {
		m.platform.AdvanceProgramCounterToNextInstruction()
		flags |= SkippedOverBreak
	}
	m.applyRtosResumeState(platform.ThreadThawed)
	return flags
}

// applyRtosResumeState calls rtosSetThreadState for every known thread
// before resuming, when the platform advertises the hook (spec.md §5's
// "RTOS thread-state hook" paragraph), and arranges for the next entry
// to restore it.
func (m *Monitor) applyRtosResumeState(state platform.ThreadState) {
	if !m.platform.IsSetThreadStateSupported() {
		return
	}
	m.platform.SetThreadState(platform.AllThreads, state)
	m.restorePrevRtosState = true
}
