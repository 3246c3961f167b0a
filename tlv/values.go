/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package tlv

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeInt encodes a signed integer in the shortest of the 1, 2, 4 or 8
// byte big-endian representations
func EncodeInt(v int64) []byte {
	switch {
	case v >= math.MinInt8 && v <= math.MaxInt8:
		return []byte{byte(v)}
	case v >= math.MinInt16 && v <= math.MaxInt16:
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, uint16(v))
		return b
	case v >= math.MinInt32 && v <= math.MaxInt32:
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, uint32(v))
		return b
	default:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, uint64(v))
		return b
	}
}

// DecodeInt decodes a big-endian signed integer of 1, 2, 4 or 8 bytes
func DecodeInt(b []byte) (int64, error) {
	switch len(b) {
	case 1:
		return int64(int8(b[0])), nil
	case 2:
		return int64(int16(binary.BigEndian.Uint16(b))), nil
	case 4:
		return int64(int32(binary.BigEndian.Uint32(b))), nil
	case 8:
		return int64(binary.BigEndian.Uint64(b)), nil
	}
	return 0, fmt.Errorf("%w: integer of %d bytes", ErrValueLength, len(b))
}

// EncodeBool encodes a boolean as a single 0 or 1 byte
func EncodeBool(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}

// DecodeBool decodes a single-byte boolean; any value other than 0 or 1 is
// malformed
func DecodeBool(b []byte) (bool, error) {
	if len(b) != 1 || b[0] > 1 {
		return false, fmt.Errorf("%w: boolean %v", ErrValueLength, b)
	}
	return b[0] == 1, nil
}

// EncodeFloat encodes an IEEE-754 big-endian float, using 4 bytes when the
// value survives the single-precision roundtrip and 8 bytes otherwise
func EncodeFloat(v float64) []byte {
	if float64(float32(v)) == v {
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, math.Float32bits(float32(v)))
		return b
	}
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, math.Float64bits(v))
	return b
}

// DecodeFloat decodes a big-endian IEEE-754 float of 4 or 8 bytes
func DecodeFloat(b []byte) (float64, error) {
	switch len(b) {
	case 4:
		return float64(math.Float32frombits(binary.BigEndian.Uint32(b))), nil
	case 8:
		return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
	}
	return 0, fmt.Errorf("%w: float of %d bytes", ErrValueLength, len(b))
}

// IntResource builds a resource item holding an integer value
func IntResource(id uint16, v int64) Resource {
	return Resource{Type: TypeResource, ID: id, Value: EncodeInt(v)}
}

// BoolResource builds a resource item holding a boolean value
func BoolResource(id uint16, v bool) Resource {
	return Resource{Type: TypeResource, ID: id, Value: EncodeBool(v)}
}

// StringResource builds a resource item holding a UTF-8 string value
func StringResource(id uint16, v string) Resource {
	var value []byte
	if v != "" {
		value = []byte(v)
	}
	return Resource{Type: TypeResource, ID: id, Value: value}
}

// FloatResource builds a resource item holding a float value
func FloatResource(id uint16, v float64) Resource {
	return Resource{Type: TypeResource, ID: id, Value: EncodeFloat(v)}
}

// OpaqueResource builds a resource item holding raw bytes
func OpaqueResource(id uint16, v []byte) Resource {
	return Resource{Type: TypeResource, ID: id, Value: v}
}

// ObjectInstance builds an object-instance item wrapping resource items
func ObjectInstance(id uint16, items []Resource) Resource {
	return Resource{Type: TypeObjectInstance, ID: id, Children: items}
}

// MultipleResource builds a multi-resource item wrapping resource instances
func MultipleResource(id uint16, items []Resource) Resource {
	return Resource{Type: TypeMultipleResource, ID: id, Children: items}
}
