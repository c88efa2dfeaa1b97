package mri

// handleReadRegisters implements "g": Context.copyToBuffer (spec.md
// §4.3, §4.6.1).
func handleReadRegisters(m *Monitor) int {
	ctx := m.platform.Context()
	m.beginReply()
	if err := ctx.CopyToBuffer(m.buf); err != nil {
		m.raise(CodeBufferOverrun)
		m.replyErr()
		return 0
	}
	return 0
}

// handleWriteRegisters implements "G<hex-regs>": Context.copyFromBuffer,
// replying OK or E04 on a short buffer (spec.md §4.6.1).
func handleWriteRegisters(m *Monitor) int {
	ctx := m.platform.Context()
	if err := ctx.CopyFromBuffer(m.buf); err != nil {
		m.raise(CodeBufferOverrun)
		m.replyErr()
		return 0
	}
	m.replyOK()
	return 0
}
