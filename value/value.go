// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package value

import (
	"bytes"
	"math"

	"github.com/mr-tron/base58"

	"github.com/bitmark-inc/drive/fault"
)

// Kind - the closed set of property value variants
type Kind uint8

// value kinds, the numeric values are persisted as tags
const (
	KindInvalid    Kind = 0x00
	KindInteger    Kind = 0x01
	KindNumber     Kind = 0x02
	KindString     Kind = 0x03
	KindBoolean    Kind = 0x04
	KindBytes      Kind = 0x05
	KindIdentifier Kind = 0x06
	KindDate       Kind = 0x07
	KindArray      Kind = 0x08
	KindObject     Kind = 0x09
)

// String - for the fmt package
func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBoolean:
		return "boolean"
	case KindBytes:
		return "byteArray"
	case KindIdentifier:
		return "identifier"
	case KindDate:
		return "date"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "*invalid*"
	}
}

// Indexable - scalar kinds that have an order preserving key form
func (k Kind) Indexable() bool {
	switch k {
	case KindInteger, KindNumber, KindString, KindBoolean, KindBytes, KindIdentifier, KindDate:
		return true
	default:
		return false
	}
}

// Value - one property value
type Value interface {
	Kind() Kind
	isValue()
}

// the variants
type Integer int64
type Number float64
type String string
type Boolean bool
type Bytes []byte
type Date int64 // milliseconds since the Unix epoch
type Array []Value
type Object []Field

// IdentifierLength - bytes in a document, owner or contract id
const IdentifierLength = 32

// Identifier - 32 byte id, printed as base58
type Identifier [IdentifierLength]byte

// Field - a named member of an Object
type Field struct {
	Name  string
	Value Value
}

func (Integer) Kind() Kind    { return KindInteger }
func (Number) Kind() Kind     { return KindNumber }
func (String) Kind() Kind     { return KindString }
func (Boolean) Kind() Kind    { return KindBoolean }
func (Bytes) Kind() Kind      { return KindBytes }
func (Identifier) Kind() Kind { return KindIdentifier }
func (Date) Kind() Kind       { return KindDate }
func (Array) Kind() Kind      { return KindArray }
func (Object) Kind() Kind     { return KindObject }

func (Integer) isValue()    {}
func (Number) isValue()     {}
func (String) isValue()     {}
func (Boolean) isValue()    {}
func (Bytes) isValue()      {}
func (Identifier) isValue() {}
func (Date) isValue()       {}
func (Array) isValue()      {}
func (Object) isValue()     {}

// Get - value of a named field
func (o Object) Get(name string) (Value, bool) {
	for _, f := range o {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// String - base58 form of an identifier
func (id Identifier) String() string {
	return base58.Encode(id[:])
}

// MarshalText - base58 text for JSON
func (id Identifier) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText - from base58 text
func (id *Identifier) UnmarshalText(s []byte) error {
	i, err := ParseIdentifier(string(s))
	if nil != err {
		return err
	}
	*id = i
	return nil
}

// ParseIdentifier - decode a base58 identifier
func ParseIdentifier(s string) (Identifier, error) {
	b, err := base58.Decode(s)
	if nil != err {
		return Identifier{}, fault.ErrInvalidIdentifier
	}
	return IdentifierFromBytes(b)
}

// IdentifierFromBytes - validate length and copy
func IdentifierFromBytes(b []byte) (Identifier, error) {
	var id Identifier
	if IdentifierLength != len(b) {
		return id, fault.ErrInvalidIdentifier
	}
	copy(id[:], b)
	return id, nil
}

// Equal - deep equality, NaN never occurs in a validated value
func Equal(a Value, b Value) bool {
	if nil == a || nil == b {
		return nil == a && nil == b
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Bytes:
		return bytes.Equal(av, b.(Bytes))
	case Array:
		bv := b.(Array)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Object:
		bv := b.(Object)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i].Name != bv[i].Name || !Equal(av[i].Value, bv[i].Value) {
				return false
			}
		}
		return true
	case Number:
		bn := b.(Number)
		return av == bn || (0 == av && 0 == bn)
	default:
		return a == b
	}
}

// Compare - natural order of two scalar values of the same kind
//
// returns -1, 0 or +1; mixed or composite kinds are a type mismatch
func Compare(a Value, b Value) (int, error) {
	if nil == a || nil == b || a.Kind() != b.Kind() || !a.Kind().Indexable() {
		return 0, fault.ErrTypeMismatch
	}
	switch av := a.(type) {
	case Integer:
		return compareInt(int64(av), int64(b.(Integer))), nil
	case Date:
		return compareInt(int64(av), int64(b.(Date))), nil
	case Number:
		x, y := float64(av), float64(b.(Number))
		if math.IsNaN(x) || math.IsNaN(y) {
			return 0, fault.ErrTypeMismatch
		}
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		}
		return 0, nil
	case String:
		bs := b.(String)
		switch {
		case av < bs:
			return -1, nil
		case av > bs:
			return 1, nil
		}
		return 0, nil
	case Boolean:
		x, y := bool(av), bool(b.(Boolean))
		switch {
		case x == y:
			return 0, nil
		case y:
			return -1, nil
		}
		return 1, nil
	case Bytes:
		return bytes.Compare(av, b.(Bytes)), nil
	case Identifier:
		bi := b.(Identifier)
		return bytes.Compare(av[:], bi[:]), nil
	}
	return 0, fault.ErrTypeMismatch
}

func compareInt(x int64, y int64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}
