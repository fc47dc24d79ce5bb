// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package document

import (
	"fmt"
	"strings"

	"github.com/bitmark-inc/drive/codec"
	"github.com/bitmark-inc/drive/contract"
	"github.com/bitmark-inc/drive/fault"
	"github.com/bitmark-inc/drive/merkle"
	"github.com/bitmark-inc/drive/value"
)

// ProtocolVersion - first varint of the canonical form
const ProtocolVersion = 1

// flag bits of the canonical form
const (
	hasCreatedAt = 0x01
	hasUpdatedAt = 0x02
)

var dateType = value.Scalar(value.KindDate)

// Document - one instance of a document type
//
// Properties are held in schema order followed by any additional
// properties sorted by name
type Document struct {
	ID         value.Identifier
	OwnerID    value.Identifier
	Revision   uint64
	CreatedAt  *int64 // milliseconds
	UpdatedAt  *int64
	Properties value.Object
}

// New - validate properties against the document type
func New(id value.Identifier, ownerID value.Identifier, properties map[string]value.Value, dt *contract.DocumentType) (*Document, error) {
	fields := make(value.Object, 0, len(properties))
	for name, v := range properties {
		fields = append(fields, value.Field{Name: name, Value: v})
	}
	return newDocument(id, ownerID, fields, dt)
}

func newDocument(id value.Identifier, ownerID value.Identifier, fields value.Object, dt *contract.DocumentType) (*Document, error) {
	o, err := coerceObject("", fields, dt.Schema)
	if nil != err {
		return nil, err
	}
	return &Document{
		ID:         id,
		OwnerID:    ownerID,
		Revision:   1,
		Properties: o,
	}, nil
}

// GenerateID - derive a document id from its creator and some entropy
func GenerateID(contractID value.Identifier, ownerID value.Identifier, typeName string, entropy []byte) value.Identifier {
	return value.Identifier(merkle.NewDigestOf(contractID[:], ownerID[:], []byte(typeName), entropy))
}

// Get - a system property or a dotted path, nil if absent
func (d *Document) Get(path string) value.Value {
	switch path {
	case contract.IDProperty:
		return d.ID
	case contract.OwnerIDProperty:
		return d.OwnerID
	case contract.CreatedAtProperty:
		if nil == d.CreatedAt {
			return nil
		}
		return value.Date(*d.CreatedAt)
	case contract.UpdatedAtProperty:
		if nil == d.UpdatedAt {
			return nil
		}
		return value.Date(*d.UpdatedAt)
	}

	var current value.Value = d.Properties
	for _, name := range strings.Split(path, ".") {
		o, ok := current.(value.Object)
		if !ok {
			return nil
		}
		if current, ok = o.Get(name); !ok {
			return nil
		}
	}
	return current
}

// String - for the fmt package
func (d *Document) String() string {
	return fmt.Sprintf("%s rev: %d", d.ID, d.Revision)
}

// ToCanonicalBytes - the persisted form
//
//   varint(version) ++ id ++ ownerId ++ varint(revision) ++ flags
//   ++ [createdAt] ++ [updatedAt] ++ properties
func (d *Document) ToCanonicalBytes(dt *contract.DocumentType) ([]byte, error) {
	buffer := make([]byte, 0, 128)
	buffer = codec.AppendVarint64(buffer, ProtocolVersion)
	buffer = append(buffer, d.ID[:]...)
	buffer = append(buffer, d.OwnerID[:]...)
	buffer = codec.AppendVarint64(buffer, d.Revision)

	flags := byte(0)
	if nil != d.CreatedAt {
		flags |= hasCreatedAt
	}
	if nil != d.UpdatedAt {
		flags |= hasUpdatedAt
	}
	buffer = append(buffer, flags)

	var err error
	for _, ts := range []*int64{d.CreatedAt, d.UpdatedAt} {
		if nil == ts {
			continue
		}
		buffer, err = codec.AppendValue(buffer, value.Date(*ts), dateType)
		if nil != err {
			return nil, err
		}
	}

	return codec.AppendValue(buffer, d.Properties, dt.Schema)
}

// FromCanonicalBytes - decode the persisted form
func FromCanonicalBytes(buffer []byte, dt *contract.DocumentType) (*Document, error) {
	r := codec.NewDecoder(buffer)

	version, err := r.Varint()
	if nil != err {
		return nil, err
	}
	if ProtocolVersion != version {
		return nil, fmt.Errorf("protocol version: %d: %w", version, fault.ErrCorruptEncoding)
	}

	d := &Document{}
	for _, id := range []*value.Identifier{&d.ID, &d.OwnerID} {
		b, err := r.Bytes(value.IdentifierLength)
		if nil != err {
			return nil, err
		}
		copy(id[:], b)
	}

	if d.Revision, err = r.Varint(); nil != err {
		return nil, err
	}

	flags, err := r.Byte()
	if nil != err {
		return nil, err
	}
	if 0 != flags&^(hasCreatedAt|hasUpdatedAt) {
		return nil, fault.ErrCorruptEncoding
	}
	if 0 != flags&hasCreatedAt {
		if d.CreatedAt, err = timestamp(r); nil != err {
			return nil, err
		}
	}
	if 0 != flags&hasUpdatedAt {
		if d.UpdatedAt, err = timestamp(r); nil != err {
			return nil, err
		}
	}

	properties, err := r.Value(dt.Schema)
	if nil != err {
		return nil, err
	}
	if !r.Finished() {
		return nil, fault.ErrCorruptEncoding
	}
	d.Properties = properties.(value.Object)
	return d, nil
}

func timestamp(r *codec.Decoder) (*int64, error) {
	v, err := r.Value(dateType)
	if nil != err {
		return nil, err
	}
	ts := int64(v.(value.Date))
	return &ts, nil
}
