package mri

// handleSetThread implements "H<op><tid>": selects the thread whose
// saved context subsequent g/G operate on (spec.md §4.6.1). The <op>
// byte (commonly 'g' or 'c') is part of the wire format but the
// reference core does not distinguish by it — there is only the one
// "current thread for register access" notion in this subset.
func handleSetThread(m *Monitor) int {
	if _, err := m.buf.ReadChar(); err != nil { // <op>, unused
		m.raise(CodeInvalidArgument)
		m.replyErr()
		return 0
	}
	tid, err := m.buf.ReadIntegerAsHex()
	if err != nil {
		m.raise(CodeInvalidArgument)
		m.replyErr()
		return 0
	}
	if !m.platform.SetCurrentThread(int(tid)) {
		m.raise(CodeInvalidArgument)
		m.replyErr()
		return 0
	}
	m.selectedThread = int(tid)
	m.replyOK()
	return 0
}

// handleIsThreadAlive implements "T<tid>".
func handleIsThreadAlive(m *Monitor) int {
	tid, err := m.buf.ReadIntegerAsHex()
	if err != nil {
		m.raise(CodeInvalidArgument)
		m.replyErr()
		return 0
	}
	if !m.platform.IsThreadActive(int(tid)) {
		m.raise(CodeInvalidArgument)
		m.replyErr()
		return 0
	}
	m.replyOK()
	return 0
}
