package mri

import (
	"github.com/ehrlich-b/go-mri/internal/memory"
)

// parseAddrLen reads the common "AAAA…,LL" argument pair shared by
// m/M/X.
func parseAddrLen(m *Monitor) (addr uint64, length int, ok bool) {
	a, err := m.buf.ReadUIntegerAsHex()
	if err != nil {
		m.raise(CodeInvalidArgument)
		return 0, 0, false
	}
	if match, err := m.buf.IsNextCharEqualTo(','); err != nil || !match {
		m.raise(CodeInvalidArgument)
		return 0, 0, false
	}
	l, err := m.buf.ReadUIntegerAsHex()
	if err != nil {
		m.raise(CodeInvalidArgument)
		return 0, 0, false
	}
	return a, int(l), true
}

// handleReadMemory implements "m addr,len" (spec.md §4.4, §4.6.1).
func handleReadMemory(m *Monitor) int {
	addr, length, ok := parseAddrLen(m)
	if !ok {
		m.replyErr()
		return 0
	}
	m.beginReply()
	n, faulted := memory.ReadHex(m.platform, m.buf, addr, length)
	if n == 0 && faulted {
		m.raise(CodeMemFault)
		m.replyErr()
		return 0
	}
	m.Metrics.recordMemoryRead(n)
	return 0
}

// handleWriteMemory implements "M addr,len:<hex>".
func handleWriteMemory(m *Monitor) int {
	addr, length, ok := parseAddrLen(m)
	if !ok {
		m.replyErr()
		return 0
	}
	if match, err := m.buf.IsNextCharEqualTo(':'); err != nil || !match {
		m.raise(CodeInvalidArgument)
		m.replyErr()
		return 0
	}
	if err := memory.WriteHex(m.platform, m.buf, addr, length); err != nil {
		m.raise(codeForMemoryErr(err))
		m.replyErr()
		return 0
	}
	m.Metrics.recordMemoryWritten(length)
	m.replyOK()
	return 0
}

// handleWriteMemoryBinary implements "X addr,len:<raw>" with `}`-escaping
// and a post-write icache sync.
func handleWriteMemoryBinary(m *Monitor) int {
	addr, length, ok := parseAddrLen(m)
	if !ok {
		m.replyErr()
		return 0
	}
	if match, err := m.buf.IsNextCharEqualTo(':'); err != nil || !match {
		m.raise(CodeInvalidArgument)
		m.replyErr()
		return 0
	}
	raw := memory.UnescapeBinary(m.buf.Remaining())
	if len(raw) < length {
		m.raise(CodeBufferOverrun)
		m.replyErr()
		return 0
	}
	if err := memory.WriteBinary(m.platform, raw[:length], addr); err != nil {
		m.raise(CodeMemFault)
		m.replyErr()
		return 0
	}
	m.Metrics.recordMemoryWritten(length)
	m.replyOK()
	return 0
}

func codeForMemoryErr(err error) Code {
	if err == memory.ErrBufferUnderflow {
		return CodeBufferOverrun
	}
	return CodeMemFault
}
