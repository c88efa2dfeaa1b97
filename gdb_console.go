package mri

import (
	"context"

	"github.com/ehrlich-b/go-mri/internal/hexconvert"
)

// writeGdbConsole sends s to the host as an "O<hex>" packet (spec.md
// §2's component table: "GDB console — formats human-readable output
// as O... hex-encoded packets"). It is used for fault-cause dumps and
// qRcmd monitor-command output, and sends immediately rather than
// riding the next command reply, since it may be called multiple
// times before the host sends anything.
func writeGdbConsole(m *Monitor, ctx context.Context, s string) {
	m.beginReply()
	m.buf.WriteChar('O')
	for i := 0; i < len(s); i++ {
		hex := hexconvert.ByteToHex(s[i])
		m.buf.WriteChar(hex[0])
		m.buf.WriteChar(hex[1])
	}
	m.buf.SetEnd()
	m.buf.Reset()
	_ = m.pkt.Send(ctx, m.buf)
}
