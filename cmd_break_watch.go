package mri

import "github.com/ehrlich-b/go-mri/internal/platform"

// parseBreakWatchArgs reads the shared "<kind>,addr,<extra>" triple
// for z/Z (spec.md §4.6.1).
func parseBreakWatchArgs(m *Monitor) (kind uint64, addr uint64, extra uint64, ok bool) {
	kind, err := m.buf.ReadUIntegerAsHex()
	if err != nil {
		m.raise(CodeInvalidArgument)
		return 0, 0, 0, false
	}
	if match, err := m.buf.IsNextCharEqualTo(','); err != nil || !match {
		m.raise(CodeInvalidArgument)
		return 0, 0, 0, false
	}
	addr, err = m.buf.ReadUIntegerAsHex()
	if err != nil {
		m.raise(CodeInvalidArgument)
		return 0, 0, 0, false
	}
	if match, err := m.buf.IsNextCharEqualTo(','); err != nil || !match {
		m.raise(CodeInvalidArgument)
		return 0, 0, 0, false
	}
	extra, err = m.buf.ReadUIntegerAsHex()
	if err != nil {
		m.raise(CodeInvalidArgument)
		return 0, 0, 0, false
	}
	return kind, addr, extra, true
}

func breakpointKindFor(gdbKind uint64) (platform.BreakpointKind, bool) {
	switch gdbKind {
	case 1:
		return platform.BreakpointHardware, true
	case 2:
		return platform.WatchpointWrite, true
	case 3:
		return platform.WatchpointRead, true
	case 4:
		return platform.WatchpointAccess, true
	default:
		return 0, false
	}
}

// handleSetBreakWatch implements "Z<kind>,addr,<extra>".
func handleSetBreakWatch(m *Monitor) int {
	gdbKind, addr, extra, ok := parseBreakWatchArgs(m)
	if !ok {
		m.replyErr()
		return 0
	}
	kind, known := breakpointKindFor(gdbKind)
	if !known {
		m.replyEmpty()
		return 0
	}
	var err error
	if kind == platform.BreakpointHardware {
		err = m.platform.SetHardwareBreakpoint(addr, kind, uint32(extra))
	} else {
		err = m.platform.SetHardwareWatchpoint(addr, kind, uint32(extra))
	}
	if err != nil {
		m.raise(codeForBreakWatchErr(err))
		m.replyErr()
		return 0
	}
	m.replyOK()
	return 0
}

// handleClearBreakWatch implements "z<kind>,addr,<extra>".
func handleClearBreakWatch(m *Monitor) int {
	gdbKind, addr, extra, ok := parseBreakWatchArgs(m)
	if !ok {
		m.replyErr()
		return 0
	}
	kind, known := breakpointKindFor(gdbKind)
	if !known {
		m.replyEmpty()
		return 0
	}
	var err error
	if kind == platform.BreakpointHardware {
		err = m.platform.ClearHardwareBreakpoint(addr, kind, uint32(extra))
	} else {
		err = m.platform.ClearHardwareWatchpoint(addr, kind, uint32(extra))
	}
	if err != nil {
		m.raise(codeForBreakWatchErr(err))
		m.replyErr()
		return 0
	}
	m.replyOK()
	return 0
}

// codeForBreakWatchErr maps platform break/watch failures onto E01/E02
// (spec.md §4.6.1: "invalidArgument -> E01, exceededHardwareResources/
// timeout -> E02").
func codeForBreakWatchErr(err error) Code {
	if me, ok := err.(*Error); ok {
		switch me.Code {
		case CodeExceededHardwareResources, CodeTimeout:
			return me.Code
		default:
			return CodeInvalidArgument
		}
	}
	return CodeInvalidArgument
}
