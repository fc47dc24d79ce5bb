// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package codec

import (
	"math"

	"github.com/bitmark-inc/drive/fault"
	"github.com/bitmark-inc/drive/value"
)

// markers inside a compound index key
const (
	KeyAbsent  = 0x00
	KeyPresent = 0x01

	escapeByte     = 0x00
	escapedZero    = 0xff
	terminatorByte = 0x01
)

// IndexKeyBytes - order preserving, self delimiting form of a scalar
//
// for same kind values a < b exactly when the keys compare a < b as
// unsigned bytes
func IndexKeyBytes(v value.Value) ([]byte, error) {
	return appendKey(nil, v)
}

func appendKey(buffer []byte, v value.Value) ([]byte, error) {
	switch tv := v.(type) {
	case value.Integer:
		return appendUint64(buffer, uint64(tv)^(1<<63)), nil

	case value.Date:
		return appendUint64(buffer, uint64(tv)^(1<<63)), nil

	case value.Number:
		f := float64(tv)
		if math.IsNaN(f) {
			return nil, fault.ErrNotIndexable
		}
		if 0 == f {
			f = 0 // fold -0
		}
		bits := math.Float64bits(f)
		if 0 != bits&(1<<63) {
			bits = ^bits
		} else {
			bits |= 1 << 63
		}
		return appendUint64(buffer, bits), nil

	case value.Boolean:
		if tv {
			return append(buffer, 0x01), nil
		}
		return append(buffer, 0x00), nil

	case value.String:
		return appendEscaped(buffer, []byte(tv)), nil

	case value.Bytes:
		return appendEscaped(buffer, tv), nil

	case value.Identifier:
		return append(buffer, tv[:]...), nil
	}
	return nil, fault.ErrNotIndexable
}

// 0x00 becomes 0x00 0xff and the end is marked by 0x00 0x01
func appendEscaped(buffer []byte, b []byte) []byte {
	for _, c := range b {
		if escapeByte == c {
			buffer = append(buffer, escapeByte, escapedZero)
		} else {
			buffer = append(buffer, c)
		}
	}
	return append(buffer, escapeByte, terminatorByte)
}

// FieldKey - one member of a compound index key
//
// nil is absent and sorts before every present value; a descending
// field has all of its bytes inverted so the whole order reverses
func FieldKey(v value.Value, descending bool) ([]byte, error) {
	return AppendFieldKey(nil, v, descending)
}

// AppendFieldKey - append FieldKey(v, descending) to buffer
func AppendFieldKey(buffer []byte, v value.Value, descending bool) ([]byte, error) {
	start := len(buffer)
	if nil == v {
		buffer = append(buffer, KeyAbsent)
	} else {
		var err error
		buffer, err = appendKey(append(buffer, KeyPresent), v)
		if nil != err {
			return nil, err
		}
	}
	if descending {
		for i := start; i < len(buffer); i += 1 {
			buffer[i] = ^buffer[i]
		}
	}
	return buffer, nil
}

// PrefixEnd - the smallest key greater than every key starting with prefix
//
// returns nil when no such key exists (prefix empty or all 0xff)
func PrefixEnd(prefix []byte) []byte {
	end := append([]byte{}, prefix...)
	for i := len(end) - 1; i >= 0; i -= 1 {
		if 0xff != end[i] {
			end[i] += 1
			return end[:i+1]
		}
	}
	return nil
}

// FieldPrefix - the leading bytes shared by the field key of every
// string starting with s
func FieldPrefix(s value.String, descending bool) []byte {
	buffer := append([]byte{KeyPresent}, escapePrefix([]byte(s))...)
	if descending {
		for i := range buffer {
			buffer[i] = ^buffer[i]
		}
	}
	return buffer
}

// appendEscaped without the terminator
func escapePrefix(b []byte) []byte {
	e := appendEscaped(nil, b)
	return e[:len(e)-2]
}
