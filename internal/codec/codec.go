// Package codec converts queued items to and from the raw bytes stored in a
// durable record.
//
// Records carry no header and no length prefix, so a reader must know the
// exact encoded size of an item in advance. BinaryCodec covers values with a
// fixed binary layout (integers, floats, bools and arrays or structs of
// those). Its layout is packed little-endian; types whose meaning depends on
// padding or host byte order need their own Codec.
package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrVariableSize is returned for types without a fixed binary size.
	ErrVariableSize = errors.New("codec: type has no fixed binary size")
	// ErrSizeMismatch is returned when a blob does not have the encoded item size.
	ErrSizeMismatch = errors.New("codec: blob size mismatch")
)

// Codec encodes one item to bytes and back. Decode must be the exact inverse
// of Encode.
type Codec[T any] interface {
	Encode(item T) ([]byte, error)
	Decode(data []byte) (T, error)
}

// BinaryCodec is the default codec for fixed-size values.
type BinaryCodec[T any] struct {
	size int
}

// NewBinaryCodec returns a codec for T, or ErrVariableSize when T contains
// slices, strings, maps, pointers or other values without a fixed layout.
func NewBinaryCodec[T any]() (*BinaryCodec[T], error) {
	var zero T
	size := binary.Size(zero)
	if size <= 0 {
		return nil, fmt.Errorf("%w: %T", ErrVariableSize, zero)
	}
	return &BinaryCodec[T]{size: size}, nil
}

// MustBinaryCodec is like NewBinaryCodec but panics on error.
func MustBinaryCodec[T any]() *BinaryCodec[T] {
	c, err := NewBinaryCodec[T]()
	if err != nil {
		panic(err)
	}
	return c
}

// Size returns the number of bytes of one encoded item.
func (c *BinaryCodec[T]) Size() int {
	return c.size
}

// Encode implements Codec.
func (c *BinaryCodec[T]) Encode(item T) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, c.size))
	if err := binary.Write(buf, binary.LittleEndian, item); err != nil {
		return nil, fmt.Errorf("codec: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode implements Codec.
func (c *BinaryCodec[T]) Decode(data []byte) (T, error) {
	var item T
	if len(data) != c.size {
		return item, fmt.Errorf("%w: got %d bytes, want %d", ErrSizeMismatch, len(data), c.size)
	}
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &item); err != nil {
		return item, fmt.Errorf("codec: decode: %w", err)
	}
	return item, nil
}
