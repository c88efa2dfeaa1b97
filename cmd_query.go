package mri

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ehrlich-b/go-mri/internal/hexconvert"
)

// handleQuery dispatches the q/Q command family by matching known
// prefixes against whatever is left in the buffer after the command
// letter (spec.md §4.6.2). Anything unrecognized gets an empty reply.
func handleQuery(m *Monitor) int {
	rest := string(m.buf.Remaining())
	switch {
	case rest == "Supported" || strings.HasPrefix(rest, "Supported:"):
		return handleQSupported(m)
	case strings.HasPrefix(rest, "Xfer:"):
		return handleQXfer(m, rest[len("Xfer:"):])
	case strings.HasPrefix(rest, "Rcmd,"):
		return handleQRcmd(m, rest[len("Rcmd,"):])
	case rest == "fThreadInfo":
		return handleThreadInfo(m, true)
	case rest == "sThreadInfo":
		return handleThreadInfo(m, false)
	default:
		m.replyEmpty()
		return 0
	}
}

// handleQSupported replies with the feature set this monitor
// advertises and its packet size (spec.md §4.6.2).
func handleQSupported(m *Monitor) int {
	m.beginReply()
	m.buf.WriteString(fmt.Sprintf(
		"qXfer:memory-map:read+;qXfer:features:read+;PacketSize=%x",
		m.buf.Cap(),
	))
	return 0
}

// handleQXfer serves one chunk of an opaque platform blob (memory-map
// or target-description XML), prefixed 'm' (more follows) or 'l' (this
// is the last chunk) per spec.md §4.6.2 and scenario S8.
func handleQXfer(m *Monitor, rest string) int {
	// rest is "<object>:read::<off>,<len>"
	parts := strings.SplitN(rest, ":", 4)
	if len(parts) != 4 {
		m.replyEmpty()
		return 0
	}
	object, _, _, offLen := parts[0], parts[1], parts[2], parts[3]
	offStr, lenStr, found := strings.Cut(offLen, ",")
	if !found {
		m.replyEmpty()
		return 0
	}
	off, err1 := strconv.ParseUint(offStr, 16, 64)
	length, err2 := strconv.ParseUint(lenStr, 16, 64)
	if err1 != nil || err2 != nil {
		m.raise(CodeInvalidArgument)
		m.replyErr()
		return 0
	}

	var blob []byte
	switch object {
	case "memory-map":
		blob = m.platform.GetMemoryMapXML().Bytes()
	case "features":
		blob = m.platform.GetTargetXML().Bytes()
	default:
		m.replyEmpty()
		return 0
	}

	m.beginReply()
	total := uint64(len(blob))
	if off >= total {
		m.buf.WriteChar('l')
		return 0
	}
	end := off + length
	more := end < total
	if end > total {
		end = total
	}
	if more {
		m.buf.WriteChar('m')
	} else {
		m.buf.WriteChar('l')
	}
	chunk := blob[off:end]
	maxChunk := m.buf.BytesLeft()
	if len(chunk) > maxChunk {
		chunk = chunk[:maxChunk]
	}
	m.buf.WriteString(string(chunk))
	return 0
}

// handleQRcmd decodes a hex-encoded ASCII monitor command and replies
// OK after optionally writing console output (spec.md §4.6.2).
func handleQRcmd(m *Monitor, hexCmd string) int {
	cmd, err := decodeHexASCII(hexCmd)
	if err != nil {
		m.raise(CodeInvalidArgument)
		m.replyErr()
		return 0
	}
	switch strings.TrimSpace(cmd) {
	case "reset":
		m.resetOnResume = true
		writeGdbConsole(m, m.opts.Context, "Will reset on next continue.\r\n")
	case "showfault":
		m.platform.DisplayFaultCauseToGdbConsole(func(s string) { writeGdbConsole(m, m.opts.Context, s) })
	case "help":
		writeGdbConsole(m, m.opts.Context, monitorHelpText)
	default:
		writeGdbConsole(m, m.opts.Context, "Unrecognized monitor command.\r\n"+monitorHelpText)
	}
	m.replyOK()
	return 0
}

const monitorHelpText = "reset - reset the device on next continue\r\nshowfault - display the cause of the current fault\r\nhelp - this text\r\n"

func decodeHexASCII(s string) (string, error) {
	if len(s)%2 != 0 {
		return "", fmt.Errorf("odd-length hex string")
	}
	out := make([]byte, len(s)/2)
	for i := 0; i < len(out); i++ {
		b, err := hexconvert.HexToByte(s[2*i], s[2*i+1])
		if err != nil {
			return "", err
		}
		out[i] = b
	}
	return string(out), nil
}

// handleThreadInfo implements qfThreadInfo/qsThreadInfo: walk the RTOS
// thread iterator and emit "m<id>[,<id>]…", ending with "l" once
// exhausted (spec.md §4.6.2). ID 0 is skipped.
func handleThreadInfo(m *Monitor, first bool) int {
	m.beginReply()
	var tid int
	var ok bool
	if first {
		tid, ok = m.platform.GetFirstThreadID()
	} else {
		tid, ok = m.platform.GetNextThreadID(m.lastThreadIDSeen)
	}

	if !ok {
		m.buf.WriteChar('l')
		return 0
	}

	m.buf.WriteChar('m')
	wroteAny := false
	for ok {
		if tid == 0 {
			tid, ok = m.platform.GetNextThreadID(tid)
			continue
		}
		prefix := ""
		if wroteAny {
			prefix = ","
		}
		entry := prefix + strconv.FormatInt(int64(tid), 16)
		if m.buf.BytesLeft() < len(entry) {
			break
		}
		m.buf.WriteString(entry)
		wroteAny = true
		m.lastThreadIDSeen = tid
		tid, ok = m.platform.GetNextThreadID(tid)
	}
	if !wroteAny {
		m.buf.ResetFull() // nothing fit or nothing left; report done
		m.buf.WriteChar('l')
	}
	return 0
}
