package mri

import (
	"strconv"
	"strings"

	"github.com/ehrlich-b/go-mri/internal/platform"
)

// handleVPacket dispatches the "v..." command family; this subset only
// implements vCont and vCont? (spec.md §4.6.1).
func handleVPacket(m *Monitor) int {
	rest := string(m.buf.Remaining())
	switch {
	case rest == "Cont?":
		m.beginReply()
		m.buf.WriteString("vCont;c;C;s;S;r")
		return 0
	case strings.HasPrefix(rest, "Cont"):
		return handleVCont(m, strings.TrimPrefix(rest, "Cont"))
	default:
		m.replyEmpty()
		return 0
	}
}

type vContAction struct {
	letter string
	sig    int
	start  uint64
	end    uint64
	tid    int // 0 means "no tid suffix" (applies to the halted thread)
}

// handleVCont parses "[;action[:tid]]..." and applies the single
// default action this single-target core supports (spec.md §4.6.3).
// A numeric, non -1 tid is rejected as invalid-argument, preserving
// the reference implementation's restrictive behavior so as to match
// its own test suite (spec.md §9's open question).
func handleVCont(m *Monitor, rest string) int {
	var actions []vContAction
	for _, field := range strings.Split(strings.TrimPrefix(rest, ";"), ";") {
		if field == "" {
			continue
		}
		action, tidPart, hasTid := strings.Cut(field, ":")
		parsed, ok := parseVContAction(action)
		if !ok {
			m.raise(CodeInvalidArgument)
			m.replyErr()
			return 0
		}
		parsed.tid = 0
		if hasTid {
			tid, err := strconv.Atoi(tidPart)
			if err != nil || tid != platform.AllThreads {
				m.raise(CodeInvalidArgument)
				m.replyErr()
				return 0
			}
			parsed.tid = tid
		}
		actions = append(actions, parsed)
	}
	if len(actions) == 0 {
		m.raise(CodeInvalidArgument)
		m.replyErr()
		return 0
	}

	// The default action is the last one without an explicit tid, or
	// the sole action if only one was given.
	chosen := actions[len(actions)-1]
	for _, a := range actions {
		if a.tid == 0 {
			chosen = a
		}
	}

	switch chosen.letter {
	case "c":
		return continueCommon(m)
	case "C":
		m.currentSignal = chosen.sig
		return continueCommon(m)
	case "s":
		return stepCommon(m)
	case "S":
		m.currentSignal = chosen.sig
		return stepCommon(m)
	case "r":
		m.step = stepRange{start: chosen.start, end: chosen.end, active: true}
		if m.platform.TypeOfCurrentInstruction() == platform.TrapHardcodedBreakpoint &&
			!m.platform.WasProgramCounterModifiedByUser() {
			m.skipHardcodedBreakpointInRange()
			return ResumeProgram | ReturnImmediately
		}
		m.platform.EnableSingleStep()
		m.applyRtosResumeState(platform.ThreadSingleStepping)
		return ResumeProgram | ReturnImmediately
	default:
		m.raise(CodeInvalidArgument)
		m.replyErr()
		return 0
	}
}

func parseVContAction(s string) (vContAction, bool) {
	if s == "" {
		return vContAction{}, false
	}
	switch s[0] {
	case 'c', 's':
		return vContAction{letter: string(s[0])}, true
	case 'C', 'S':
		sig, err := strconv.ParseUint(s[1:], 16, 32)
		if err != nil {
			return vContAction{}, false
		}
		return vContAction{letter: string(s[0]), sig: int(sig)}, true
	case 'r':
		parts := strings.SplitN(s[1:], ",", 2)
		if len(parts) != 2 {
			return vContAction{}, false
		}
		start, err1 := strconv.ParseUint(parts[0], 16, 64)
		end, err2 := strconv.ParseUint(parts[1], 16, 64)
		if err1 != nil || err2 != nil {
			return vContAction{}, false
		}
		return vContAction{letter: "r", start: start, end: end}, true
	default:
		return vContAction{}, false
	}
}

// checkStepRangeSwallow implements the vCont;r follow-up logic (spec.md
// §4.6.3, S7): called by DebugException before sending a stop reply,
// this swallows the event (no reply, stay resumed) while PC remains in
// [start,end) and the cause is still a plain single-step.
func (m *Monitor) checkStepRangeSwallow() bool {
	if !m.step.active {
		return false
	}
	if m.currentSignal != SignalTrap {
		m.step.active = false
		return false
	}
	pc := m.platform.GetProgramCounter()
	if pc < m.step.start || pc >= m.step.end {
		m.step.active = false
		return false
	}
	if m.platform.TypeOfCurrentInstruction() == platform.TrapHardcodedBreakpoint &&
		!m.platform.WasProgramCounterModifiedByUser() {
		return m.skipHardcodedBreakpointInRange()
	}
	cause := m.platform.GetTrapReason()
	if cause.Reason == platform.StopUnknown {
		return true
	}
	m.step.active = false
	return false
}

// skipHardcodedBreakpointInRange handles a ranged single-step (vCont;r)
// landing on a hardcoded breakpoint instruction: single-stepping it
// would just re-trap on the same address, so the monitor instead
// advances past it, arms a one-shot temp breakpoint there (spec.md
// §4.9), and continues. The temp breakpoint's callback re-enables
// single-stepping so ranged stepping resumes once it's hit.
func (m *Monitor) skipHardcodedBreakpointInRange() bool {
	m.platform.AdvanceProgramCounterToNextInstruction()
	next := m.platform.GetProgramCounter()
	err := m.setTempBreakpoint(next, func(ctx any) int {
		m.platform.EnableSingleStep()
		return 1
	}, nil)
	if err != nil {
		m.step.active = false
		return false
	}
	m.platform.DisableSingleStep()
	return true
}
