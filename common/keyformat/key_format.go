// Package keyformat builds and parses typed keys for ordered key-value
// storage.
package keyformat

import (
	"encoding"
	"encoding/binary"
	"fmt"
)

// KeyFormat is a key formatting helper to be used together with key-value
// backends for constructing keys.
type KeyFormat struct {
	prefix byte
	// layout holds the byte size of each element, -1 for the single
	// variable-sized element.
	layout []int
	size   int
}

// New constructs a new key format.
func New(prefix byte, layout ...interface{}) *KeyFormat {
	kf := &KeyFormat{
		prefix: prefix,
		layout: make([]int, len(layout)),
	}

	hasVarSize := false
	for i, item := range layout {
		size := elemSize(item)
		if size == -1 {
			if hasVarSize {
				panic("key format: there can be only one variable-sized element")
			}
			hasVarSize = true
		} else {
			kf.size += size
		}

		kf.layout[i] = size
	}

	return kf
}

// Prefix returns the key prefix byte.
func (k *KeyFormat) Prefix() byte {
	return k.prefix
}

// Size returns the minimum size in bytes of the resulting key.
func (k *KeyFormat) Size() int {
	return 1 + k.size
}

// Encode encodes values into a key.
//
// Passing fewer values than the layout has yields a prefix key suitable for
// range iteration. Passing none yields the bare prefix.
func (k *KeyFormat) Encode(values ...interface{}) []byte {
	if len(values) > len(k.layout) {
		panic("key format: number of values greater than layout")
	}

	size := 1
	for i := range values {
		elemLen := k.layout[i]
		if elemLen == -1 {
			elemLen = len(values[i].([]byte))
		}
		size += elemLen
	}
	result := make([]byte, size)

	result[0] = k.prefix
	offset := 1
	for i, v := range values {
		elemLen := k.layout[i]
		if elemLen == -1 {
			elemLen = len(v.([]byte))
		}
		buf := result[offset : offset+elemLen]
		offset += elemLen

		switch t := v.(type) {
		case uint8:
			buf[0] = t
		case uint64:
			// Big endian so keys sort numerically.
			binary.BigEndian.PutUint64(buf, t)
		case *uint64:
			binary.BigEndian.PutUint64(buf, *t)
		case encoding.BinaryMarshaler:
			data, err := t.MarshalBinary()
			if err != nil {
				panic(fmt.Sprintf("key format: failed to marshal: %s", err))
			}
			if len(data) != elemLen {
				panic(fmt.Sprintf("key format: element %d has size %d, expected %d", i, len(data), elemLen))
			}
			copy(buf, data)
		case []byte:
			copy(buf, t)
		default:
			panic(fmt.Sprintf("key format: unsupported type: %T", t))
		}
	}

	return result
}

// Decode decodes a key into its individual values.
//
// Returns false and doesn't modify the passed values if the key prefix
// doesn't match.
func (k *KeyFormat) Decode(data []byte, values ...interface{}) bool {
	if len(data) == 0 || data[0] != k.prefix {
		return false
	}

	if len(values) > len(k.layout) {
		panic("key format: number of values greater than layout")
	}
	if len(data) < k.Size() {
		panic("key format: malformed input")
	}

	offset := 1
	for i, v := range values {
		elemLen := k.layout[i]
		if elemLen == -1 {
			elemLen = len(data) - k.Size()
		}
		buf := data[offset : offset+elemLen]
		offset += elemLen

		switch t := v.(type) {
		case *uint8:
			*t = buf[0]
		case *uint64:
			*t = binary.BigEndian.Uint64(buf)
		case encoding.BinaryUnmarshaler:
			if err := t.UnmarshalBinary(buf); err != nil {
				panic(fmt.Sprintf("key format: failed to unmarshal: %s", err))
			}
		case *[]byte:
			*t = make([]byte, elemLen)
			copy(*t, buf)
		default:
			panic(fmt.Sprintf("key format: unsupported type: %T", t))
		}
	}

	return true
}

func elemSize(l interface{}) int {
	switch t := l.(type) {
	case uint8, *uint8:
		return 1
	case uint64, *uint64:
		return 8
	case encoding.BinaryMarshaler:
		_ = l.(encoding.BinaryUnmarshaler)

		data, _ := t.MarshalBinary()
		return len(data)
	case []byte:
		return -1
	default:
		panic(fmt.Sprintf("key format: unsupported type: %T", l))
	}
}
