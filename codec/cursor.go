// Package codec implements the bounded little-endian byte cursor used to
// serialize every fixed-size page and block in this module.
//
// The cursor is a slice-bounded wrapper that returns an error the moment a
// write or read would run past the end of the buffer, so page and block
// overflows (ErrPageOverflow / ErrCorruptedBlock) are caught at the point of
// serialization rather than discovered later as corruption.
package codec

import (
	"encoding/binary"
	"errors"
)

// ErrOverflow is returned when a Put/Get would read or write past the end
// of the cursor's buffer.
var ErrOverflow = errors.New("codec: cursor overflow")

// Cursor writes or reads little-endian fields into a fixed-size buffer,
// advancing an internal offset and refusing to run past the buffer's end.
type Cursor struct {
	buf []byte
	off int
}

// NewWriter wraps buf for sequential little-endian writes starting at
// offset 0. buf's length is the hard limit every Put call is checked
// against.
func NewWriter(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// NewReader wraps buf for sequential little-endian reads starting at
// offset 0.
func NewReader(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Offset returns the cursor's current position.
func (c *Cursor) Offset() int {
	return c.off
}

// Remaining returns the number of bytes left before the cursor overflows.
func (c *Cursor) Remaining() int {
	return len(c.buf) - c.off
}

func (c *Cursor) reserve(n int) ([]byte, error) {
	if n < 0 || c.off+n > len(c.buf) {
		return nil, ErrOverflow
	}
	b := c.buf[c.off : c.off+n]
	c.off += n
	return b, nil
}

// PutUint8 writes a single byte.
func (c *Cursor) PutUint8(v uint8) error {
	b, err := c.reserve(1)
	if err != nil {
		return err
	}
	b[0] = v
	return nil
}

// PutUint16 writes a little-endian uint16.
func (c *Cursor) PutUint16(v uint16) error {
	b, err := c.reserve(2)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(b, v)
	return nil
}

// PutUint32 writes a little-endian uint32.
func (c *Cursor) PutUint32(v uint32) error {
	b, err := c.reserve(4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b, v)
	return nil
}

// PutInt32 writes a little-endian int32.
func (c *Cursor) PutInt32(v int32) error {
	return c.PutUint32(uint32(v))
}

// PutUint64 writes a little-endian uint64.
func (c *Cursor) PutUint64(v uint64) error {
	b, err := c.reserve(8)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(b, v)
	return nil
}

// PutBytes writes p verbatim.
func (c *Cursor) PutBytes(p []byte) error {
	b, err := c.reserve(len(p))
	if err != nil {
		return err
	}
	copy(b, p)
	return nil
}

// PutBytesWithSize writes an 8-byte little-endian length prefix followed by
// p, matching the `foo_size u64 | foo` shape used throughout this module's
// wire formats (pid, key, ...).
func (c *Cursor) PutBytesWithSize(p []byte) error {
	if err := c.PutUint64(uint64(len(p))); err != nil {
		return err
	}
	return c.PutBytes(p)
}

// Zero advances the cursor by n bytes, zeroing them. Used to pad a page or
// block out to its declared fixed size.
func (c *Cursor) Zero(n int) error {
	b, err := c.reserve(n)
	if err != nil {
		return err
	}
	for i := range b {
		b[i] = 0
	}
	return nil
}

// PadTo zero-fills from the current offset to size. size must be >= the
// current offset.
func (c *Cursor) PadTo(size int) error {
	if size < c.off {
		return ErrOverflow
	}
	return c.Zero(size - c.off)
}

// GetUint8 reads a single byte.
func (c *Cursor) GetUint8() (uint8, error) {
	b, err := c.reserve(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// GetUint16 reads a little-endian uint16.
func (c *Cursor) GetUint16() (uint16, error) {
	b, err := c.reserve(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// GetUint32 reads a little-endian uint32.
func (c *Cursor) GetUint32() (uint32, error) {
	b, err := c.reserve(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// GetInt32 reads a little-endian int32.
func (c *Cursor) GetInt32() (int32, error) {
	v, err := c.GetUint32()
	return int32(v), err
}

// GetUint64 reads a little-endian uint64.
func (c *Cursor) GetUint64() (uint64, error) {
	b, err := c.reserve(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// GetBytes reads n raw bytes. The returned slice aliases the cursor's
// backing buffer; callers that need to retain it past the buffer's
// lifetime must copy.
func (c *Cursor) GetBytes(n int) ([]byte, error) {
	return c.reserve(n)
}

// GetBytesWithSize reads an 8-byte little-endian length prefix followed by
// that many bytes, the inverse of PutBytesWithSize. The returned slice is a
// copy, safe to retain.
func (c *Cursor) GetBytesWithSize() ([]byte, error) {
	n, err := c.GetUint64()
	if err != nil {
		return nil, err
	}
	b, err := c.reserve(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// Skip advances the cursor by n bytes without reading them.
func (c *Cursor) Skip(n int) error {
	_, err := c.reserve(n)
	return err
}
