// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package codec

import (
	"encoding/binary"
	"math"
	"sort"
	"unicode/utf8"

	"github.com/bitmark-inc/drive/fault"
	"github.com/bitmark-inc/drive/value"
)

// presence markers for optional object members
const (
	absent  = 0x00
	present = 0x01
)

// EncodeValue - canonical binary form of v as the declared type t
func EncodeValue(v value.Value, t *value.Type) ([]byte, error) {
	return appendTyped(nil, v, t)
}

// DecodeValue - inverse of EncodeValue, the whole buffer must be consumed
func DecodeValue(buffer []byte, t *value.Type) (value.Value, error) {
	d := &decoder{buffer: buffer}
	v, err := d.typed(t)
	if nil != err {
		return nil, err
	}
	if !d.finished() {
		return nil, fault.ErrCorruptEncoding
	}
	return v, nil
}

// EncodeTagged - self describing form used for undeclared values
func EncodeTagged(v value.Value) ([]byte, error) {
	return appendTagged(nil, v)
}

// DecodeTagged - inverse of EncodeTagged
func DecodeTagged(buffer []byte) (value.Value, error) {
	d := &decoder{buffer: buffer}
	v, err := d.tagged()
	if nil != err {
		return nil, err
	}
	if !d.finished() {
		return nil, fault.ErrCorruptEncoding
	}
	return v, nil
}

// AppendValue - append the canonical form of v to buffer
func AppendValue(buffer []byte, v value.Value, t *value.Type) ([]byte, error) {
	return appendTyped(buffer, v, t)
}

// Decoder - sequential reader over a canonical buffer
type Decoder struct {
	d decoder
}

// NewDecoder - start reading buffer
func NewDecoder(buffer []byte) *Decoder {
	return &Decoder{d: decoder{buffer: buffer}}
}

// Value - read one typed value
func (r *Decoder) Value(t *value.Type) (value.Value, error) { return r.d.typed(t) }

// Tagged - read one tagged value
func (r *Decoder) Tagged() (value.Value, error) { return r.d.tagged() }

// Varint - read one Varint64
func (r *Decoder) Varint() (uint64, error) { return r.d.varint() }

// Bytes - read n raw bytes
func (r *Decoder) Bytes(n int) ([]byte, error) { return r.d.take(n) }

// Byte - read a single byte
func (r *Decoder) Byte() (byte, error) { return r.d.byte() }

// Finished - true when every byte was consumed
func (r *Decoder) Finished() bool { return r.d.finished() }

func appendTyped(buffer []byte, v value.Value, t *value.Type) ([]byte, error) {
	if nil == t {
		return appendTagged(buffer, v)
	}
	if nil == v || v.Kind() != t.Kind {
		return nil, fault.ErrTypeMismatch
	}
	switch tv := v.(type) {
	case value.Array:
		buffer = AppendVarint64(buffer, uint64(len(tv)))
		for _, item := range tv {
			var err error
			buffer, err = appendTyped(buffer, item, t.Items)
			if nil != err {
				return nil, err
			}
		}
		return buffer, nil

	case value.Object:
		return appendObject(buffer, tv, t)

	default:
		return appendScalar(buffer, v)
	}
}

// declared members in declared order, then any extras sorted by name
func appendObject(buffer []byte, o value.Object, t *value.Type) ([]byte, error) {
	declared := 0
	for _, p := range t.Properties {
		member, ok := o.Get(p.Name)
		if !ok {
			buffer = append(buffer, absent)
			continue
		}
		declared += 1
		buffer = append(buffer, present)
		var err error
		buffer, err = appendTyped(buffer, member, p.Type)
		if nil != err {
			return nil, err
		}
	}

	extra := len(o) - declared
	if !t.AdditionalProperties {
		if 0 != extra {
			return nil, fault.ErrTypeMismatch
		}
		return buffer, nil
	}

	fields := make([]value.Field, 0, extra)
	for _, f := range o {
		if nil == t.Property(f.Name) {
			fields = append(fields, f)
		}
	}
	return appendFields(buffer, fields)
}

func appendFields(buffer []byte, fields []value.Field) ([]byte, error) {
	sorted := make([]value.Field, len(fields))
	copy(sorted, fields)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	buffer = AppendVarint64(buffer, uint64(len(sorted)))
	for i, f := range sorted {
		if i > 0 && sorted[i-1].Name == f.Name {
			return nil, fault.ErrTypeMismatch
		}
		if !utf8.ValidString(f.Name) {
			return nil, fault.ErrTypeMismatch
		}
		buffer = AppendVarint64(buffer, uint64(len(f.Name)))
		buffer = append(buffer, f.Name...)
		var err error
		buffer, err = appendTagged(buffer, f.Value)
		if nil != err {
			return nil, err
		}
	}
	return buffer, nil
}

func appendTagged(buffer []byte, v value.Value) ([]byte, error) {
	if nil == v {
		return nil, fault.ErrTypeMismatch
	}
	buffer = append(buffer, byte(v.Kind()))
	switch tv := v.(type) {
	case value.Array:
		buffer = AppendVarint64(buffer, uint64(len(tv)))
		for _, item := range tv {
			var err error
			buffer, err = appendTagged(buffer, item)
			if nil != err {
				return nil, err
			}
		}
		return buffer, nil
	case value.Object:
		return appendFields(buffer, tv)
	default:
		return appendScalar(buffer, v)
	}
}

func appendScalar(buffer []byte, v value.Value) ([]byte, error) {
	switch tv := v.(type) {
	case value.Integer:
		return appendUint64(buffer, uint64(tv)), nil
	case value.Date:
		return appendUint64(buffer, uint64(tv)), nil
	case value.Number:
		f := float64(tv)
		if math.IsNaN(f) {
			return nil, fault.ErrTypeMismatch
		}
		if 0 == f {
			f = 0 // fold -0
		}
		return appendUint64(buffer, math.Float64bits(f)), nil
	case value.String:
		if !utf8.ValidString(string(tv)) {
			return nil, fault.ErrTypeMismatch
		}
		buffer = AppendVarint64(buffer, uint64(len(tv)))
		return append(buffer, tv...), nil
	case value.Bytes:
		buffer = AppendVarint64(buffer, uint64(len(tv)))
		return append(buffer, tv...), nil
	case value.Boolean:
		if tv {
			return append(buffer, 0x01), nil
		}
		return append(buffer, 0x00), nil
	case value.Identifier:
		return append(buffer, tv[:]...), nil
	}
	return nil, fault.ErrTypeMismatch
}

func appendUint64(buffer []byte, n uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], n)
	return append(buffer, b[:]...)
}

// bounds checked reader
type decoder struct {
	buffer []byte
	pos    int
}

func (d *decoder) finished() bool {
	return d.pos == len(d.buffer)
}

func (d *decoder) take(n int) ([]byte, error) {
	if n < 0 || n > len(d.buffer)-d.pos {
		return nil, fault.ErrCorruptEncoding
	}
	b := d.buffer[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) byte() (byte, error) {
	b, err := d.take(1)
	if nil != err {
		return 0, err
	}
	return b[0], nil
}

func (d *decoder) varint() (uint64, error) {
	n, count, err := FromVarint64(d.buffer[d.pos:])
	if nil != err {
		return 0, err
	}
	d.pos += count
	return n, nil
}

// a length prefix can never exceed the bytes that remain
func (d *decoder) length() (int, error) {
	n, err := d.varint()
	if nil != err {
		return 0, err
	}
	if n > uint64(len(d.buffer)-d.pos) {
		return 0, fault.ErrCorruptEncoding
	}
	return int(n), nil
}

func (d *decoder) uint64() (uint64, error) {
	b, err := d.take(8)
	if nil != err {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (d *decoder) typed(t *value.Type) (value.Value, error) {
	if nil == t {
		return d.tagged()
	}
	switch t.Kind {
	case value.KindArray:
		n, err := d.length()
		if nil != err {
			return nil, err
		}
		a := make(value.Array, 0, n)
		for i := 0; i < n; i += 1 {
			item, err := d.typed(t.Items)
			if nil != err {
				return nil, err
			}
			a = append(a, item)
		}
		return a, nil

	case value.KindObject:
		return d.object(t)

	default:
		return d.scalar(t.Kind)
	}
}

func (d *decoder) object(t *value.Type) (value.Value, error) {
	o := make(value.Object, 0, len(t.Properties))
	for _, p := range t.Properties {
		flag, err := d.byte()
		if nil != err {
			return nil, err
		}
		switch flag {
		case absent:
			continue
		case present:
		default:
			return nil, fault.ErrCorruptEncoding
		}
		member, err := d.typed(p.Type)
		if nil != err {
			return nil, err
		}
		o = append(o, value.Field{Name: p.Name, Value: member})
	}
	if !t.AdditionalProperties {
		return o, nil
	}

	extras, err := d.fields()
	if nil != err {
		return nil, err
	}
	for _, f := range extras {
		if nil != t.Property(f.Name) {
			return nil, fault.ErrCorruptEncoding
		}
	}
	return append(o, extras...), nil
}

func (d *decoder) fields() (value.Object, error) {
	n, err := d.length()
	if nil != err {
		return nil, err
	}
	o := make(value.Object, 0, n)
	for i := 0; i < n; i += 1 {
		size, err := d.length()
		if nil != err {
			return nil, err
		}
		name, err := d.take(size)
		if nil != err {
			return nil, err
		}
		if !utf8.Valid(name) {
			return nil, fault.ErrCorruptEncoding
		}
		if i > 0 && o[i-1].Name >= string(name) {
			return nil, fault.ErrCorruptEncoding
		}
		member, err := d.tagged()
		if nil != err {
			return nil, err
		}
		o = append(o, value.Field{Name: string(name), Value: member})
	}
	return o, nil
}

func (d *decoder) tagged() (value.Value, error) {
	tag, err := d.byte()
	if nil != err {
		return nil, err
	}
	switch k := value.Kind(tag); k {
	case value.KindArray:
		n, err := d.length()
		if nil != err {
			return nil, err
		}
		a := make(value.Array, 0, n)
		for i := 0; i < n; i += 1 {
			item, err := d.tagged()
			if nil != err {
				return nil, err
			}
			a = append(a, item)
		}
		return a, nil
	case value.KindObject:
		return d.fields()
	default:
		return d.scalar(k)
	}
}

func (d *decoder) scalar(k value.Kind) (value.Value, error) {
	switch k {
	case value.KindInteger:
		n, err := d.uint64()
		if nil != err {
			return nil, err
		}
		return value.Integer(int64(n)), nil

	case value.KindDate:
		n, err := d.uint64()
		if nil != err {
			return nil, err
		}
		return value.Date(int64(n)), nil

	case value.KindNumber:
		n, err := d.uint64()
		if nil != err {
			return nil, err
		}
		f := math.Float64frombits(n)
		if math.IsNaN(f) || 0x8000000000000000 == n {
			return nil, fault.ErrCorruptEncoding
		}
		return value.Number(f), nil

	case value.KindString:
		n, err := d.length()
		if nil != err {
			return nil, err
		}
		b, _ := d.take(n)
		if !utf8.Valid(b) {
			return nil, fault.ErrCorruptEncoding
		}
		return value.String(b), nil

	case value.KindBytes:
		n, err := d.length()
		if nil != err {
			return nil, err
		}
		b, _ := d.take(n)
		return value.Bytes(append([]byte{}, b...)), nil

	case value.KindBoolean:
		b, err := d.byte()
		if nil != err {
			return nil, err
		}
		switch b {
		case 0x00:
			return value.Boolean(false), nil
		case 0x01:
			return value.Boolean(true), nil
		}
		return nil, fault.ErrCorruptEncoding

	case value.KindIdentifier:
		b, err := d.take(value.IdentifierLength)
		if nil != err {
			return nil, err
		}
		var id value.Identifier
		copy(id[:], b)
		return id, nil
	}
	return nil, fault.ErrCorruptEncoding
}
