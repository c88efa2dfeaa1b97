package mri

import (
	"context"

	"github.com/ehrlich-b/go-mri/internal/platform"
)

// sendStopReply formats and sends T<sig>[thread:..;][watch:..;]<regs>
// immediately, ahead of the command loop (spec.md §4.7, §5: "T-stop-
// replies are sent before the dispatch loop begins to iterate on
// commands").
func (m *Monitor) sendStopReply(ctx context.Context) error {
	m.writeStopReplyBody()
	m.buf.SetEnd()
	m.buf.Reset()
	return m.pkt.Send(ctx, m.buf)
}

// writeStopReplyBody renders the T-reply into m.buf without sending
// it, so the '?' handler and the step handler's synthesized stop reply
// reuse the same formatting.
func (m *Monitor) writeStopReplyBody() {
	m.beginReply()
	m.buf.WriteChar('T')
	m.buf.WriteByteAsHex(byte(m.currentSignal))

	m.buf.WriteString("thread:")
	m.buf.WriteUIntegerAsHex(uint64(m.platform.GetHaltedThreadID()))
	m.buf.WriteChar(';')

	cause := m.platform.GetTrapReason()
	switch cause.Reason {
	case platform.StopWatch, platform.StopReadWatch, platform.StopAccessWatch:
		m.buf.WriteString(watchKeyword(cause.Reason))
		m.buf.WriteChar(':')
		m.buf.WriteUIntegerAsHex(cause.Address)
		m.buf.WriteChar(';')
	}

	m.platform.WriteTResponseRegisters(func(fragment string) {
		m.buf.WriteString(fragment)
	})
}

func watchKeyword(r platform.StopReason) string {
	switch r {
	case platform.StopReadWatch:
		return "rwatch"
	case platform.StopAccessWatch:
		return "awatch"
	default:
		return "watch"
	}
}

func handleQueryHaltReason(m *Monitor) int {
	m.writeStopReplyBody()
	return 0
}
