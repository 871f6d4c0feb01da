package bitpack

import (
	"errors"
	"fmt"
)

// MaxWidth is the widest field ReadBits and WriteBits accept.
const MaxWidth = 32

var (
	// ErrOutOfBounds is returned when a field extends past the end of the buffer.
	ErrOutOfBounds = errors.New("bit field out of bounds")
	// ErrWidth is returned for field widths outside 1..MaxWidth.
	ErrWidth = errors.New("invalid bit field width")
)

func checkField(buf []byte, offset, width uint) error {
	if width == 0 || width > MaxWidth {
		return fmt.Errorf("%w: %d", ErrWidth, width)
	}
	if offset+width > uint(len(buf))*8 {
		return fmt.Errorf("%w: offset %d width %d exceeds %d bits", ErrOutOfBounds, offset, width, len(buf)*8)
	}
	return nil
}

// ReadBits returns the width-bit unsigned field starting at bit offset.
func ReadBits(buf []byte, offset, width uint) (uint32, error) {
	if err := checkField(buf, offset, width); err != nil {
		return 0, err
	}

	var value uint64
	var shift uint
	for shift < width {
		pos := offset + shift
		bitInByte := pos % 8
		take := 8 - bitInByte
		if take > width-shift {
			take = width - shift
		}
		chunk := (uint64(buf[pos/8]) >> bitInByte) & (1<<take - 1)
		value |= chunk << shift
		shift += take
	}
	return uint32(value), nil
}

// WriteBits stores the low width bits of value at bit offset. Bits outside
// the field are left untouched.
func WriteBits(buf []byte, offset, width uint, value uint32) error {
	if err := checkField(buf, offset, width); err != nil {
		return err
	}

	v := uint64(value) & (1<<width - 1)
	var shift uint
	for shift < width {
		pos := offset + shift
		bitInByte := pos % 8
		take := 8 - bitInByte
		if take > width-shift {
			take = width - shift
		}
		mask := byte((1<<take - 1) << bitInByte)
		chunk := byte((v>>shift)&(1<<take-1)) << bitInByte
		buf[pos/8] = buf[pos/8]&^mask | chunk
		shift += take
	}
	return nil
}

// Cursor walks a buffer field by field. The first error sticks: later reads
// return zero and later writes are ignored until the caller checks Err.
type Cursor struct {
	buf    []byte
	offset uint
	err    error
}

// NewCursor returns a Cursor positioned at bit 0 of buf.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Read consumes the next width bits.
func (c *Cursor) Read(width uint) uint32 {
	if c.err != nil {
		return 0
	}
	v, err := ReadBits(c.buf, c.offset, width)
	if err != nil {
		c.err = err
		return 0
	}
	c.offset += width
	return v
}

// Write stores value in the next width bits.
func (c *Cursor) Write(width uint, value uint32) {
	if c.err != nil {
		return
	}
	if err := WriteBits(c.buf, c.offset, width, value); err != nil {
		c.err = err
		return
	}
	c.offset += width
}

// Skip advances the cursor without touching the buffer.
func (c *Cursor) Skip(width uint) {
	if c.err != nil {
		return
	}
	if c.offset+width > uint(len(c.buf))*8 {
		c.err = fmt.Errorf("%w: skip %d from %d", ErrOutOfBounds, width, c.offset)
		return
	}
	c.offset += width
}

// Seek moves the cursor to an absolute bit offset.
func (c *Cursor) Seek(offset uint) {
	if c.err != nil {
		return
	}
	if offset > uint(len(c.buf))*8 {
		c.err = fmt.Errorf("%w: seek to %d", ErrOutOfBounds, offset)
		return
	}
	c.offset = offset
}

// Offset returns the current bit position.
func (c *Cursor) Offset() uint {
	return c.offset
}

// Err returns the first error encountered, if any.
func (c *Cursor) Err() error {
	return c.err
}

// Bytes returns the underlying buffer.
func (c *Cursor) Bytes() []byte {
	return c.buf
}
