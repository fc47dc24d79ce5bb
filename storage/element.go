// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"bytes"
	"fmt"

	"github.com/bitmark-inc/drive/codec"
	"github.com/bitmark-inc/drive/fault"
	"github.com/bitmark-inc/drive/merkle"
)

// ElementKind - the stored tag of an element
type ElementKind byte

// element kinds
const (
	ItemKind      ElementKind = 0x01
	ReferenceKind ElementKind = 0x02
	TreeKind      ElementKind = 0x03
)

func (k ElementKind) String() string {
	switch k {
	case ItemKind:
		return "item"
	case ReferenceKind:
		return "reference"
	case TreeKind:
		return "tree"
	default:
		return fmt.Sprintf("kind(%d)", byte(k))
	}
}

// Path - list of subtree segments from the root
type Path [][]byte

// Reference - location of another element
type Reference struct {
	Path Path
	Key  []byte
}

// Element - the value stored under one key
type Element struct {
	Kind      ElementKind
	Value     []byte     // items only
	Reference *Reference // references only
}

// NewItem - an element holding raw bytes
func NewItem(value []byte) Element {
	return Element{Kind: ItemKind, Value: value}
}

// NewReference - an element pointing at path/key
func NewReference(path Path, key []byte) Element {
	return Element{Kind: ReferenceKind, Reference: &Reference{Path: path, Key: key}}
}

// NewTree - an empty subtree marker
func NewTree() Element {
	return Element{Kind: TreeKind}
}

// IsTree - true for a subtree marker
func (e *Element) IsTree() bool {
	return nil != e && TreeKind == e.Kind
}

// Child - the path of the subtree held at key under path
func (p Path) Child(key []byte) Path {
	c := make(Path, len(p), len(p)+1)
	copy(c, p)
	return append(c, key)
}

// Parent - path and key of the element holding this subtree
func (p Path) Parent() (Path, []byte) {
	if 0 == len(p) {
		return nil, nil
	}
	return p[:len(p)-1], p[len(p)-1]
}

// Equal - segment by segment comparison
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if !bytes.Equal(p[i], other[i]) {
			return false
		}
	}
	return true
}

// HasPrefix - true if prefix is p or one of its ancestors
func (p Path) HasPrefix(prefix Path) bool {
	return len(prefix) <= len(p) && p[:len(prefix)].Equal(prefix)
}

// String - for logging
func (p Path) String() string {
	return fmt.Sprintf("%q", [][]byte(p))
}

// Bytes - the path encoding
func (p Path) Bytes() []byte {
	return appendPath(nil, p)
}

func appendPath(buffer []byte, p Path) []byte {
	buffer = codec.AppendVarint64(buffer, uint64(len(p)))
	for _, segment := range p {
		buffer = codec.AppendVarint64(buffer, uint64(len(segment)))
		buffer = append(buffer, segment...)
	}
	return buffer
}

func readPath(d *codec.Decoder) (Path, error) {
	n, err := d.Varint()
	if nil != err {
		return nil, err
	}
	p := Path{}
	for i := uint64(0); i < n; i += 1 {
		segment, err := readBytes(d)
		if nil != err {
			return nil, err
		}
		p = append(p, segment)
	}
	return p, nil
}

func readBytes(d *codec.Decoder) ([]byte, error) {
	n, err := d.Varint()
	if nil != err {
		return nil, err
	}
	if n > 1<<30 {
		return nil, fault.ErrCorruptEncoding
	}
	b, err := d.Bytes(int(n))
	if nil != err {
		return nil, err
	}
	return append([]byte{}, b...), nil
}

// the stored form of an element
func (e *Element) encode() ([]byte, error) {
	switch e.Kind {
	case ItemKind:
		return append([]byte{byte(ItemKind)}, e.Value...), nil
	case ReferenceKind:
		if nil == e.Reference {
			return nil, fault.ErrCorruptEncoding
		}
		buffer := appendPath([]byte{byte(ReferenceKind)}, e.Reference.Path)
		buffer = codec.AppendVarint64(buffer, uint64(len(e.Reference.Key)))
		return append(buffer, e.Reference.Key...), nil
	case TreeKind:
		return []byte{byte(TreeKind)}, nil
	}
	return nil, fault.ErrCorruptEncoding
}

func decodeElement(buffer []byte) (*Element, error) {
	if 0 == len(buffer) {
		return nil, fault.ErrCorruptEncoding
	}
	switch ElementKind(buffer[0]) {
	case ItemKind:
		return &Element{Kind: ItemKind, Value: append([]byte{}, buffer[1:]...)}, nil

	case ReferenceKind:
		d := codec.NewDecoder(buffer[1:])
		p, err := readPath(d)
		if nil != err {
			return nil, err
		}
		key, err := readBytes(d)
		if nil != err {
			return nil, err
		}
		if !d.Finished() {
			return nil, fault.ErrCorruptEncoding
		}
		return &Element{Kind: ReferenceKind, Reference: &Reference{Path: p, Key: key}}, nil

	case TreeKind:
		if 1 != len(buffer) {
			return nil, fault.ErrCorruptEncoding
		}
		return &Element{Kind: TreeKind}, nil
	}
	return nil, fault.ErrCorruptEncoding
}

// value hash of an item or a reference, a tree uses its child root
func (e *Element) valueHash() (merkle.Digest, error) {
	b, err := e.encode()
	if nil != err {
		return merkle.Digest{}, err
	}
	return merkle.NewDigest(b), nil
}

func leafHash(kind ElementKind, key []byte, valueHash merkle.Digest) merkle.Digest {
	prefix := codec.AppendVarint64([]byte{byte(kind)}, uint64(len(key)))
	return merkle.NewDigestOf(prefix, key, valueHash[:])
}
