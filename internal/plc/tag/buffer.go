package tag

import (
	"encoding/binary"
	"math"

	"github.com/tturner/ab-eip-client/internal/plc/status"
)

// Buffer is the raw byte backing store a Tag's value lives in, with the
// bounds-checked typed accessor family `libplctag_tag.c`'s `plc_tag_get_*`
// / `plc_tag_set_*` functions expose, generalized from "one CIP value" to
// an arbitrary byte-offset-addressed buffer (so a multi-element or
// structured tag's members can be read/written individually).
type Buffer struct {
	data []byte
}

// NewBuffer allocates a zeroed buffer of n bytes.
func NewBuffer(n int) *Buffer {
	return &Buffer{data: make([]byte, n)}
}

// Bytes returns the buffer's backing slice directly (used by the wire
// codec to serialise a write or deserialise a read).
func (b *Buffer) Bytes() []byte { return b.data }

// SetBytes replaces the buffer contents wholesale, resizing if needed
// (used when a read reply's size does not match the caller's Resize).
func (b *Buffer) SetBytes(data []byte) {
	b.data = append(b.data[:0], data...)
}

// Resize grows or truncates the buffer to n bytes, zero-filling any new
// space.
func (b *Buffer) Resize(n int) {
	if n <= len(b.data) {
		b.data = b.data[:n]
		return
	}
	grown := make([]byte, n)
	copy(grown, b.data)
	b.data = grown
}

// Len returns the buffer size in bytes.
func (b *Buffer) Len() int { return len(b.data) }

func (b *Buffer) bounds(offset, size int) error {
	if offset < 0 || size < 0 || offset+size > len(b.data) {
		return status.New(status.OutOfBounds, "tag: offset %d size %d exceeds buffer length %d", offset, size, len(b.data))
	}
	return nil
}

// GetBit reads a single bit at byteOffset, bitIndex (0..7).
func (b *Buffer) GetBit(byteOffset, bitIndex int) (bool, error) {
	if err := b.bounds(byteOffset, 1); err != nil {
		return false, err
	}
	if bitIndex < 0 || bitIndex > 7 {
		return false, status.New(status.OutOfBounds, "tag: bit index %d out of range 0..7", bitIndex)
	}
	return b.data[byteOffset]&(1<<uint(bitIndex)) != 0, nil
}

// SetBit writes a single bit at byteOffset, bitIndex (0..7).
func (b *Buffer) SetBit(byteOffset, bitIndex int, v bool) error {
	if err := b.bounds(byteOffset, 1); err != nil {
		return err
	}
	if bitIndex < 0 || bitIndex > 7 {
		return status.New(status.OutOfBounds, "tag: bit index %d out of range 0..7", bitIndex)
	}
	mask := byte(1 << uint(bitIndex))
	if v {
		b.data[byteOffset] |= mask
	} else {
		b.data[byteOffset] &^= mask
	}
	return nil
}

func (b *Buffer) GetUint8(offset int) (uint8, error) {
	if err := b.bounds(offset, 1); err != nil {
		return 0, err
	}
	return b.data[offset], nil
}

func (b *Buffer) SetUint8(offset int, v uint8) error {
	if err := b.bounds(offset, 1); err != nil {
		return err
	}
	b.data[offset] = v
	return nil
}

func (b *Buffer) GetInt8(offset int) (int8, error) {
	v, err := b.GetUint8(offset)
	return int8(v), err
}

func (b *Buffer) SetInt8(offset int, v int8) error {
	return b.SetUint8(offset, uint8(v))
}

func (b *Buffer) GetUint16(offset int) (uint16, error) {
	if err := b.bounds(offset, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b.data[offset:]), nil
}

func (b *Buffer) SetUint16(offset int, v uint16) error {
	if err := b.bounds(offset, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(b.data[offset:], v)
	return nil
}

func (b *Buffer) GetInt16(offset int) (int16, error) {
	v, err := b.GetUint16(offset)
	return int16(v), err
}

func (b *Buffer) SetInt16(offset int, v int16) error {
	return b.SetUint16(offset, uint16(v))
}

func (b *Buffer) GetUint32(offset int) (uint32, error) {
	if err := b.bounds(offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b.data[offset:]), nil
}

func (b *Buffer) SetUint32(offset int, v uint32) error {
	if err := b.bounds(offset, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b.data[offset:], v)
	return nil
}

func (b *Buffer) GetInt32(offset int) (int32, error) {
	v, err := b.GetUint32(offset)
	return int32(v), err
}

func (b *Buffer) SetInt32(offset int, v int32) error {
	return b.SetUint32(offset, uint32(v))
}

func (b *Buffer) GetUint64(offset int) (uint64, error) {
	if err := b.bounds(offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b.data[offset:]), nil
}

func (b *Buffer) SetUint64(offset int, v uint64) error {
	if err := b.bounds(offset, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(b.data[offset:], v)
	return nil
}

func (b *Buffer) GetInt64(offset int) (int64, error) {
	v, err := b.GetUint64(offset)
	return int64(v), err
}

func (b *Buffer) SetInt64(offset int, v int64) error {
	return b.SetUint64(offset, uint64(v))
}

func (b *Buffer) GetFloat32(offset int) (float32, error) {
	v, err := b.GetUint32(offset)
	return math.Float32frombits(v), err
}

func (b *Buffer) SetFloat32(offset int, v float32) error {
	return b.SetUint32(offset, math.Float32bits(v))
}

func (b *Buffer) GetFloat64(offset int) (float64, error) {
	v, err := b.GetUint64(offset)
	return math.Float64frombits(v), err
}

func (b *Buffer) SetFloat64(offset int, v float64) error {
	return b.SetUint64(offset, math.Float64bits(v))
}
