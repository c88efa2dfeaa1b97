package mri

import (
	"context"

	"github.com/ehrlich-b/go-mri/internal/buffer"
	"github.com/ehrlich-b/go-mri/internal/platform"
	"github.com/ehrlich-b/go-mri/internal/semihost"
)

// semihostOutcome is another name for semihost.FileIOResult;
// parseFileIOReply fills in CtrlCSeen once the F reply actually
// arrives.
type semihostOutcome = semihost.FileIOResult

func isSemihostKind(kind platform.TrapKind) bool {
	return semihost.IsSemihostTrap(kind)
}

// dispatchSemihostTrap asks the platform for its already-decoded op
// number and four call parameters (the ABI encoding of both is
// platform-specific and out of scope, spec.md §1) and resolves what
// the call requires.
func dispatchSemihostTrap(kind platform.TrapKind, p platform.Semihost) semihost.Decision {
	op := p.GetSemihostOpNumber()
	p1, p2, p3, p4 := p.GetSemihostCallParameters()
	return semihost.Dispatch(semihost.Op(op), p1, p2, p3, p4)
}

// issueFileIO sends a GDB file-I/O request and synchronously waits for
// the matching F reply, bypassing the normal dispatch table the way
// real RSP implementations do: GDB only ever sends F in direct
// response to a target-initiated request, so the monitor's own
// packet-send/receive pair is the only place this command letter is
// ever parsed (spec.md §9's cyclic-dependency note, resolved here via
// this callback instead of a coroutine).
func (m *Monitor) issueFileIO(ctx context.Context, request string) (semihost.FileIOResult, error) {
	m.beginReply()
	m.buf.WriteString(request)
	m.buf.SetEnd()
	m.buf.Reset()
	if err := m.pkt.Send(ctx, m.buf); err != nil {
		return semihost.FileIOResult{}, err
	}

	if err := m.pkt.Get(ctx, m.buf); err != nil {
		return semihost.FileIOResult{}, err
	}
	return parseFileIOReply(m.buf)
}

// parseFileIOReply decodes "Fret[,errno[,C]]" (spec.md §4.6.1's F
// handler row).
func parseFileIOReply(buf *buffer.Buffer) (semihost.FileIOResult, error) {
	if _, err := buf.ReadChar(); err != nil { // 'F'
		return semihost.FileIOResult{}, err
	}
	ret, err := buf.ReadIntegerAsHex()
	if err != nil {
		return semihost.FileIOResult{}, err
	}
	result := semihost.FileIOResult{Ret: int(ret)}

	if ok, _ := buf.IsNextCharEqualTo(','); ok {
		errno, err := buf.ReadIntegerAsHex()
		if err != nil {
			return semihost.FileIOResult{}, err
		}
		result.Errno = int(errno)
		if ok, _ := buf.IsNextCharEqualTo(','); ok {
			if c, err := buf.ReadChar(); err == nil && c == 'C' {
				result.CtrlCSeen = true
			}
		}
	}
	return result, nil
}

func (m *Monitor) finalizeSemihost(result semihost.FileIOResult) {
	semihost.Finalize(m.platform, m.platform, result)
	m.lastSemihostRet = result.Ret
	m.lastSemihostErrno = result.Errno
	if result.CtrlCSeen {
		m.semihostCtrlC = true
	}
}
