package mri

import (
	"context"
	"strings"
	"testing"

	"github.com/ehrlich-b/go-mri/internal/hexconvert"
	"github.com/ehrlich-b/go-mri/internal/platform"
	"github.com/ehrlich-b/go-mri/platform/mock"
	"github.com/stretchr/testify/require"
)

func newTestMonitor(t *testing.T) (*Monitor, *mock.MockPlatform) {
	t.Helper()
	p := mock.New(256)
	m := New(p, Options{Context: context.Background()})
	return m, p
}

// dispatch writes cmdLine into m.buf as if it were the payload just
// delivered by Packet.Get (cursor at 1, past the command letter) and
// runs the matching handler, returning its flags.
func dispatch(t *testing.T, m *Monitor, cmdLine string) int {
	t.Helper()
	m.buf.ResetFull()
	require.NoError(t, m.buf.WriteString(cmdLine))
	m.buf.SetEnd()
	m.buf.Reset()
	b, err := m.buf.ReadChar()
	require.NoError(t, err)
	h, ok := dispatchTable[b]
	require.True(t, ok, "no handler for %q", cmdLine)
	return h(m)
}

func replyString(m *Monitor) string {
	m.buf.SetEnd()
	return string(m.buf.Bytes())
}

func TestHandleReadWriteRegistersRoundTrip(t *testing.T) {
	m, p := newTestMonitor(t)
	for i := 0; i < p.RegCtx.Count(); i++ {
		require.NoError(t, p.RegCtx.Set(i, uint64(i+1)))
	}

	flags := dispatch(t, m, "g")
	require.Equal(t, 0, flags)
	hexRegs := replyString(m)
	require.Len(t, hexRegs, p.RegCtx.Count()*8) // 4-byte registers, 2 hex chars/byte

	// Zero everything out, then write the captured hex back via G.
	for i := 0; i < p.RegCtx.Count(); i++ {
		require.NoError(t, p.RegCtx.Set(i, 0))
	}
	flags = dispatch(t, m, "G"+hexRegs)
	require.Equal(t, 0, flags)
	require.Equal(t, "OK", replyString(m))
	v, err := p.RegCtx.Get(0)
	require.NoError(t, err)
	require.Equal(t, uint64(1), v)
}

func TestHandleReadMemory(t *testing.T) {
	m, p := newTestMonitor(t)
	p.Mem[0x10] = 0xAB
	p.Mem[0x11] = 0xCD

	flags := dispatch(t, m, "m10,2")
	require.Equal(t, 0, flags)
	require.Equal(t, "abcd", replyString(m))
}

func TestHandleReadMemoryFault(t *testing.T) {
	m, p := newTestMonitor(t)
	p.HasFault = true
	p.FaultAddr = 0x10

	flags := dispatch(t, m, "m10,4")
	require.Equal(t, 0, flags)
	require.Equal(t, errMemoryAccessFailure, replyString(m))
}

func TestHandleWriteMemory(t *testing.T) {
	m, _ := newTestMonitor(t)
	flags := dispatch(t, m, "M20,2:abcd")
	require.Equal(t, 0, flags)
	require.Equal(t, "OK", replyString(m))

	flags = dispatch(t, m, "m20,2")
	require.Equal(t, 0, flags)
	require.Equal(t, "abcd", replyString(m))
}

func TestHandleWriteMemoryBadArgs(t *testing.T) {
	m, _ := newTestMonitor(t)
	flags := dispatch(t, m, "Mzz,2:abcd")
	require.Equal(t, 0, flags)
	require.Equal(t, errInvalidArgument, replyString(m))
}

func TestHandleWriteMemoryBinary(t *testing.T) {
	m, p := newTestMonitor(t)
	// Escaped '}' (0x7d) followed by 0x23^0x20=0x03 decodes to 0x03;
	// plain 0x41 passes through unescaped.
	flags := dispatch(t, m, "X30,2:"+string([]byte{'}', 0x23, 0x41}))
	require.Equal(t, 0, flags)
	require.Equal(t, "OK", replyString(m))
	require.Equal(t, byte(0x03), p.Mem[0x30])
	require.Equal(t, byte(0x41), p.Mem[0x31])
}

func TestHandleContinueReturnsImmediatelyWithNoReply(t *testing.T) {
	m, _ := newTestMonitor(t)
	flags := dispatch(t, m, "c")
	require.Equal(t, ResumeProgram|ReturnImmediately, flags)
}

func TestHandleContinueSkipsHardcodedBreakpoint(t *testing.T) {
	m, p := newTestMonitor(t)
	p.TrapKind = platform.TrapHardcodedBreakpoint
	p.ProgramCounter = 0x100
	flags := dispatch(t, m, "c")
	require.Equal(t, ResumeProgram|ReturnImmediately|SkippedOverBreak, flags)
	require.Equal(t, uint64(0x102), p.ProgramCounter)
}

func TestHandleStepEnablesSingleStep(t *testing.T) {
	m, p := newTestMonitor(t)
	flags := dispatch(t, m, "s")
	require.Equal(t, ResumeProgram|ReturnImmediately, flags)
	require.True(t, p.SingleStepping)
}

func TestHandleSetAndClearBreakpoint(t *testing.T) {
	m, p := newTestMonitor(t)
	flags := dispatch(t, m, "Z1,1000,0")
	require.Equal(t, 0, flags)
	require.Equal(t, "OK", replyString(m))
	require.Equal(t, 1, p.BreakpointSets)

	flags = dispatch(t, m, "z1,1000,0")
	require.Equal(t, 0, flags)
	require.Equal(t, "OK", replyString(m))
	require.Equal(t, 1, p.BreakpointClears)
}

func TestHandleSetWatchpointHardwareResourceError(t *testing.T) {
	m, p := newTestMonitor(t)
	p.LastBreakErr = newError("SetHardwareWatchpoint", CodeExceededHardwareResources)
	flags := dispatch(t, m, "Z2,2000,4")
	require.Equal(t, 0, flags)
	require.Equal(t, errExceededHardwareResources, replyString(m))
}

func TestHandleSetThread(t *testing.T) {
	m, p := newTestMonitor(t)
	p.ActiveThreads[7] = true
	flags := dispatch(t, m, "Hg7")
	require.Equal(t, 0, flags)
	require.Equal(t, "OK", replyString(m))
	require.Equal(t, 7, m.selectedThread)
	require.Equal(t, 7, p.CurrentThreadSelection)
}

func TestHandleSetThreadUnknownRejected(t *testing.T) {
	m, _ := newTestMonitor(t)
	flags := dispatch(t, m, "Hg99")
	require.Equal(t, 0, flags)
	require.Equal(t, errInvalidArgument, replyString(m))
}

func TestHandleIsThreadAlive(t *testing.T) {
	m, p := newTestMonitor(t)
	p.ActiveThreads[3] = true
	flags := dispatch(t, m, "T3")
	require.Equal(t, 0, flags)
	require.Equal(t, "OK", replyString(m))

	flags = dispatch(t, m, "T4")
	require.Equal(t, 0, flags)
	require.Equal(t, errInvalidArgument, replyString(m))
}

func TestHandleQSupported(t *testing.T) {
	m, _ := newTestMonitor(t)
	flags := dispatch(t, m, "qSupported:multiprocess+")
	require.Equal(t, 0, flags)
	require.Contains(t, replyString(m), "qXfer:memory-map:read+")
	require.Contains(t, replyString(m), "PacketSize=")
}

func TestHandleQXferServesWholeBlobInOneChunk(t *testing.T) {
	m, p := newTestMonitor(t)
	p.TargetXML = []byte(`<target/>`)
	flags := dispatch(t, m, "qXfer:features:read::0,1000")
	require.Equal(t, 0, flags)
	require.Equal(t, "l<target/>", replyString(m))
}

func TestHandleQXferPaginatesAcrossChunks(t *testing.T) {
	m, p := newTestMonitor(t)
	p.TargetXML = []byte("0123456789")
	flags := dispatch(t, m, "qXfer:features:read::0,4")
	require.Equal(t, 0, flags)
	require.Equal(t, "m0123", replyString(m))

	flags = dispatch(t, m, "qXfer:features:read::4,100")
	require.Equal(t, 0, flags)
	require.Equal(t, "l456789", replyString(m))
}

func TestHandleQRcmdReset(t *testing.T) {
	m, _ := newTestMonitor(t)
	flags := dispatch(t, m, "qRcmd,"+encodeHexASCII("reset"))
	require.Equal(t, 0, flags)
	require.Equal(t, "OK", replyString(m))
	require.True(t, m.resetOnResume)
}

func encodeHexASCII(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		hex := hexconvert.ByteToHex(s[i])
		sb.WriteByte(hex[0])
		sb.WriteByte(hex[1])
	}
	return sb.String()
}

func TestHandleThreadInfoNoRTOS(t *testing.T) {
	m, _ := newTestMonitor(t)
	flags := dispatch(t, m, "qfThreadInfo")
	require.Equal(t, 0, flags)
	require.Equal(t, "l", replyString(m))
}

func TestHandleThreadInfoWalksActiveThreads(t *testing.T) {
	m, p := newTestMonitor(t)
	p.ActiveThreads[1] = true
	p.ActiveThreads[2] = true

	flags := dispatch(t, m, "qfThreadInfo")
	require.Equal(t, 0, flags)
	require.Equal(t, "m1,2", replyString(m))

	flags = dispatch(t, m, "qsThreadInfo")
	require.Equal(t, 0, flags)
	require.Equal(t, "l", replyString(m))
}

func TestHandleVContQuery(t *testing.T) {
	m, _ := newTestMonitor(t)
	flags := dispatch(t, m, "vCont?")
	require.Equal(t, 0, flags)
	require.Equal(t, "vCont;c;C;s;S;r", replyString(m))
}

func TestHandleVContContinue(t *testing.T) {
	m, _ := newTestMonitor(t)
	flags := dispatch(t, m, "vCont;c")
	require.Equal(t, ResumeProgram|ReturnImmediately, flags)
}

func TestHandleVContRejectsOtherThreadID(t *testing.T) {
	m, _ := newTestMonitor(t)
	flags := dispatch(t, m, "vCont;c:2")
	require.Equal(t, 0, flags)
	require.Equal(t, errInvalidArgument, replyString(m))
}

func TestHandleVContRangeStepThenSwallow(t *testing.T) {
	m, p := newTestMonitor(t)
	p.ProgramCounter = 0x1000
	flags := dispatch(t, m, "vCont;r1000,2000")
	require.Equal(t, ResumeProgram|ReturnImmediately, flags)
	require.True(t, p.SingleStepping)
	require.True(t, m.step.active)

	// Still inside the range on a plain single-step trap: swallow.
	p.ProgramCounter = 0x1500
	m.currentSignal = SignalTrap
	require.True(t, m.checkStepRangeSwallow())

	// PC has left the range: no longer swallowed, and the range
	// tracking is cleared.
	p.ProgramCounter = 0x3000
	require.False(t, m.checkStepRangeSwallow())
	require.False(t, m.step.active)
}

func TestWriteStopReplyBodyIncludesSignalAndRegisters(t *testing.T) {
	m, _ := newTestMonitor(t)
	m.currentSignal = SignalTrap
	m.writeStopReplyBody()
	require.True(t, strings.HasPrefix(replyString(m), "T05"))
}

func TestQueryHaltReasonMatchesStopReply(t *testing.T) {
	m, _ := newTestMonitor(t)
	m.currentSignal = SignalTrap
	flags := dispatch(t, m, "?")
	require.Equal(t, 0, flags)
	require.True(t, strings.HasPrefix(replyString(m), "T05"))
}

// TestDebugExceptionFullSession drives DebugException end to end over
// the mock Comm, exercising the real RSP wire framing (internal/rsp)
// together with the dispatcher: the unsolicited stop reply (S4.7)
// followed by scenario S5 (continue, no reply).
func TestDebugExceptionFullSession(t *testing.T) {
	m, p := newTestMonitor(t)
	p.WaitForConnect = false
	p.Signal = 5 // SIGTRAP

	// The monitor opens with an unsolicited stop reply; the client acks
	// it, then sends "c" (continue), which never gets a reply of its
	// own (spec.md S5) and ends the session.
	var in []byte
	in = append(in, '+')
	in = append(in, frame("c")...)
	p.InBytes = in

	require.NoError(t, m.DebugException(context.Background()))

	out := string(p.Out)
	require.Contains(t, out, "T05")
	require.Contains(t, out, "+") // the ack this monitor sent for the "c" frame
}

func TestWriteStopReplyBodyIncludesThreadField(t *testing.T) {
	m, _ := newTestMonitor(t)
	m.currentSignal = 5
	m.writeStopReplyBody()
	require.Equal(t, "T05thread:01;", replyString(m))
}

// TestSetTempBreakpointArmsHardwareBreakpoint exercises spec.md §4.9:
// setTempBreakpoint clears the thumb bit and arms exactly one hardware
// breakpoint, and a second call while one is already set is a no-op.
func TestSetTempBreakpointArmsHardwareBreakpoint(t *testing.T) {
	m, p := newTestMonitor(t)
	require.NoError(t, m.setTempBreakpoint(0xBAADF00D, nil, nil))
	require.Equal(t, 1, p.BreakpointSets)
	require.True(t, m.temp.isSet)
	require.Equal(t, uint64(0xBAADF00D&^1), m.temp.addr)

	require.NoError(t, m.setTempBreakpoint(0xBAADF00D, nil, nil))
	require.Equal(t, 1, p.BreakpointSets, "a second arm attempt while one is set must not re-arm")
}

// TestCheckTempBreakpointFiresOnlyAtItsAddress exercises the
// checkTempBreakpoint half of §4.9: it's a no-op until the PC reaches
// the remembered address, then clears the hardware breakpoint and
// invokes the callback with its context.
func TestCheckTempBreakpointFiresOnlyAtItsAddress(t *testing.T) {
	m, p := newTestMonitor(t)
	require.NoError(t, m.setTempBreakpoint(0x2000, nil, nil))

	p.ProgramCounter = 0x1000
	require.False(t, m.checkTempBreakpoint())
	require.Equal(t, 0, p.BreakpointClears)

	p.ProgramCounter = 0x2000
	var calledWith any
	m.temp.callback = func(ctx any) int {
		calledWith = ctx
		return 1
	}
	m.temp.ctx = "payload"
	require.True(t, m.checkTempBreakpoint())
	require.Equal(t, 1, p.BreakpointClears)
	require.False(t, m.temp.isSet)
	require.Equal(t, "payload", calledWith)
}

// TestVContRangeStepSkipsHardcodedBreakpoint covers the vCont;r case
// where the range-step lands on a hardcoded breakpoint instruction
// (spec.md §4.9's temp-breakpoint primitive, wired through
// skipHardcodedBreakpointInRange): single-stepping can't get past it,
// so the monitor advances the PC, arms a temp breakpoint just past it,
// and disables single-stepping until that breakpoint is hit.
func TestVContRangeStepSkipsHardcodedBreakpoint(t *testing.T) {
	m, p := newTestMonitor(t)
	p.ProgramCounter = 0x1000
	p.TrapKind = platform.TrapHardcodedBreakpoint

	flags := dispatch(t, m, "vCont;r1000,2000")
	require.Equal(t, ResumeProgram|ReturnImmediately, flags)
	require.True(t, m.step.active)
	require.True(t, m.temp.isSet)
	require.Equal(t, uint64(0x1002), m.temp.addr)
	require.False(t, p.SingleStepping, "continuing over the breakpoint, not single-stepping")

	// The temp breakpoint fires: single-stepping resumes and the event
	// stays invisible to gdb.
	p.ProgramCounter = 0x1002
	m.currentSignal = SignalTrap
	require.True(t, m.checkTempBreakpoint())
	require.True(t, p.SingleStepping)
}

func TestContinueResetsDeviceWhenResetOnResumeIsSet(t *testing.T) {
	m, p := newTestMonitor(t)
	m.resetOnResume = true

	flags := dispatch(t, m, "c")
	require.Equal(t, ResumeProgram|ReturnImmediately, flags)
	require.Equal(t, 1, p.ResetCalls)
	require.False(t, m.resetOnResume, "the flag must be consumed, not sticky across continues")

	dispatch(t, m, "c")
	require.Equal(t, 1, p.ResetCalls, "a second continue with the flag already cleared must not reset again")
}

// TestNewParsesRawIntoPlatformInit exercises options.go's Options.Raw
// contract (spec.md §6.3): a non-empty Raw string is parsed with
// internal/token.ParseFlags and handed to the platform's Init before
// the session starts.
func TestNewParsesRawIntoPlatformInit(t *testing.T) {
	p := mock.New(256)
	New(p, Options{Context: context.Background(), Raw: "MRI_UART_MBED_USB MRI_UART_BAUD=230400"})
	require.Equal(t, "", p.InitFlags["MRI_UART_MBED_USB"])
	require.Equal(t, "230400", p.InitFlags["MRI_UART_BAUD"])
}

// frame renders payload as a checksummed "$payload#cc" RSP frame.
func frame(payload string) []byte {
	var sum byte
	for _, c := range []byte(payload) {
		sum += c
	}
	hex := "0123456789abcdef"
	cc := []byte{hex[sum>>4], hex[sum&0xF]}
	out := append([]byte{'$'}, []byte(payload)...)
	out = append(out, '#')
	out = append(out, cc...)
	return out
}
