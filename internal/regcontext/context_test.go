package regcontext

import (
	"testing"

	"github.com/ehrlich-b/go-mri/internal/buffer"
)

func TestCountAcrossSections(t *testing.T) {
	ctx := New(Section{Values: make([]uint64, 4)}, Section{Values: make([]uint64, 2)})
	if ctx.Count() != 6 {
		t.Errorf("Count() = %d, want 6", ctx.Count())
	}
}

func TestGetSetCrossesSections(t *testing.T) {
	ctx := New(Section{Values: make([]uint64, 2)}, Section{Values: make([]uint64, 2)})
	if err := ctx.Set(0, 0x11); err != nil {
		t.Fatal(err)
	}
	if err := ctx.Set(2, 0x33); err != nil {
		t.Fatal(err)
	}
	got, err := ctx.Get(2)
	if err != nil || got != 0x33 {
		t.Errorf("Get(2) = %#x, %v", got, err)
	}
}

func TestGetSetOutOfRange(t *testing.T) {
	ctx := New(Section{Values: make([]uint64, 1)})
	if _, err := ctx.Get(5); err != ErrOutOfRange {
		t.Errorf("Get(5) err = %v, want ErrOutOfRange", err)
	}
	if err := ctx.Set(5, 0); err != ErrOutOfRange {
		t.Errorf("Set(5) err = %v, want ErrOutOfRange", err)
	}
}

func TestCopyToFromBufferRoundTrip32Bit(t *testing.T) {
	ctx := New(Section{Values: []uint64{0x12345678, 0xAABBCCDD}})
	ctx.SetWidth(4)

	buf := buffer.New(64)
	if err := ctx.CopyToBuffer(buf); err != nil {
		t.Fatal(err)
	}
	buf.SetEnd()

	// Host byte order (little-endian) hex: 0x12345678 -> "78563412".
	if got, want := string(buf.Bytes()[:8]), "78563412"; got != want {
		t.Errorf("first register hex = %q, want %q", got, want)
	}

	out := New(Section{Values: make([]uint64, 2)})
	out.SetWidth(4)
	buf.Reset()
	if err := out.CopyFromBuffer(buf); err != nil {
		t.Fatal(err)
	}
	v0, _ := out.Get(0)
	v1, _ := out.Get(1)
	if v0 != 0x12345678 || v1 != 0xAABBCCDD {
		t.Errorf("round trip = %#x, %#x", v0, v1)
	}
}

func TestCopyToFromBufferRoundTrip64Bit(t *testing.T) {
	ctx := New(Section{Values: []uint64{0x0123456789ABCDEF}})
	ctx.SetWidth(8)

	buf := buffer.New(32)
	ctx.CopyToBuffer(buf)
	buf.SetEnd()
	buf.Reset()

	out := New(Section{Values: make([]uint64, 1)})
	out.SetWidth(8)
	if err := out.CopyFromBuffer(buf); err != nil {
		t.Fatal(err)
	}
	got, _ := out.Get(0)
	if got != 0x0123456789ABCDEF {
		t.Errorf("round trip = %#x", got)
	}
}
