// Package regcontext implements the scatter/gather register view that
// command handlers manipulate on g/G: an ordered list of sections, each
// a slice of machine words, indexed as one flat logical array without
// ever copying the underlying storage into one contiguous block. This
// lets registers be harvested from wherever the trap left them
// (exception frame, saved-MSP area, RTOS TCB, ...).
package regcontext

import (
	"errors"

	"github.com/ehrlich-b/go-mri/internal/buffer"
)

// ErrOutOfRange is returned by Get/Set for an out-of-bounds logical index.
var ErrOutOfRange = errors.New("regcontext: index out of range")

// Section is one contiguous run of register storage, e.g. the general
// purpose registers saved on the exception stack frame, or a floating
// point bank saved elsewhere.
type Section struct {
	Values []uint64
}

// Context is an ordered list of Sections, addressed as one flat index
// space.
type Context struct {
	sections []Section
	// Width is the register width in bytes (4 or 8) used for the hex
	// wire encoding; it does not affect in-memory storage, which is
	// always uint64.
	Width int
}

// New constructs a Context over the given sections. Width defaults to 4
// (32-bit targets); call SetWidth for 64-bit targets.
func New(sections ...Section) *Context {
	return &Context{sections: sections, Width: 4}
}

// SetWidth sets the per-register wire width in bytes (4 or 8).
func (c *Context) SetWidth(bytes int) {
	c.Width = bytes
}

// Count returns the total number of registers across all sections.
func (c *Context) Count() int {
	n := 0
	for _, s := range c.sections {
		n += len(s.Values)
	}
	return n
}

// locate finds the section and intra-section offset for a logical index.
func (c *Context) locate(index int) (sectionIdx, offset int, ok bool) {
	base := 0
	for i, s := range c.sections {
		next := base + len(s.Values)
		if index < next {
			return i, index - base, true
		}
		base = next
	}
	return 0, 0, false
}

// Get returns the register at logical index i.
func (c *Context) Get(i int) (uint64, error) {
	si, off, ok := c.locate(i)
	if !ok {
		return 0, ErrOutOfRange
	}
	return c.sections[si].Values[off], nil
}

// Set writes the register at logical index i.
func (c *Context) Set(i int, v uint64) error {
	si, off, ok := c.locate(i)
	if !ok {
		return ErrOutOfRange
	}
	c.sections[si].Values[off] = v
	return nil
}

// CopyToBuffer writes every register, in logical order, as
// Width-byte host-byte-order (little-endian) hex into buf — the g
// command's reply body.
func (c *Context) CopyToBuffer(buf *buffer.Buffer) error {
	n := c.Count()
	for i := 0; i < n; i++ {
		reg, err := c.Get(i)
		if err != nil {
			return err
		}
		for b := 0; b < c.Width; b++ {
			if err := buf.WriteByteAsHex(byte(reg >> (8 * uint(b)))); err != nil {
				return err
			}
		}
	}
	return nil
}

// CopyFromBuffer reads Width-byte host-byte-order hex for every
// register, in logical order, from buf — the G command's payload.
func (c *Context) CopyFromBuffer(buf *buffer.Buffer) error {
	n := c.Count()
	for i := 0; i < n; i++ {
		var reg uint64
		for b := 0; b < c.Width; b++ {
			v, err := buf.ReadByteAsHex()
			if err != nil {
				return err
			}
			reg |= uint64(v) << (8 * uint(b))
		}
		if err := c.Set(i, reg); err != nil {
			return err
		}
	}
	return nil
}
