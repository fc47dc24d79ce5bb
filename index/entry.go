// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package index

import (
	"fmt"

	"github.com/bitmark-inc/drive/codec"
	"github.com/bitmark-inc/drive/contract"
	"github.com/bitmark-inc/drive/document"
	"github.com/bitmark-inc/drive/fault"
	"github.com/bitmark-inc/drive/storage"
	"github.com/bitmark-inc/drive/value"
)

// Entry - one slot a document occupies
//
// the primary entry stores the document itself, every other entry a
// reference to Target
type Entry struct {
	Index  *contract.Index
	Path   storage.Path
	Key    []byte
	Target storage.Reference

	// the key carries no document id, a second document with the
	// same key would collide
	EnforceUnique bool
}

// BuildEntries - the primary entry followed by one entry per declared index
func BuildEntries(c *contract.DataContract, dt *contract.DocumentType, doc *document.Document) ([]Entry, error) {
	target := storage.Reference{
		Path: PrimaryPath(c, dt),
		Key:  append([]byte{}, doc.ID[:]...),
	}

	indices := dt.AllIndices()
	entries := make([]Entry, 0, len(indices))
	for _, idx := range indices {
		key, complete, err := buildKey(idx, doc)
		if nil != err {
			return nil, err
		}
		entries = append(entries, Entry{
			Index:         idx,
			Path:          Path(c, dt, idx),
			Key:           key,
			Target:        target,
			EnforceUnique: idx.Unique && complete,
		})
	}
	return entries, nil
}

// Key - the key of doc in one index
func Key(idx *contract.Index, doc *document.Document) ([]byte, error) {
	key, _, err := buildKey(idx, doc)
	return key, err
}

// complete is true when the key holds no id suffix
func buildKey(idx *contract.Index, doc *document.Document) ([]byte, bool, error) {
	if idx.Primary {
		return append([]byte{}, doc.ID[:]...), true, nil
	}

	key := make([]byte, 0, 64)
	complete := true
	for _, p := range idx.Properties {
		v := doc.Get(p.Path)
		if nil == v {
			complete = false
		}
		var err error
		key, err = codec.AppendFieldKey(key, v, p.Descending)
		if nil != err {
			return nil, false, fmt.Errorf("index %s property %s: %w", idx.Name, p.Path, err)
		}
	}
	if !idx.Unique || !complete {
		return append(key, doc.ID[:]...), false, nil
	}
	return key, true, nil
}

// FieldKey - key bytes of v at one position of an index
func FieldKey(idx *contract.Index, position int, v value.Value) ([]byte, error) {
	if idx.Primary {
		if _, ok := v.(value.Identifier); !ok {
			return nil, fmt.Errorf("$id needs an identifier: %w", fault.ErrTypeMismatch)
		}
		return codec.IndexKeyBytes(v)
	}
	return codec.FieldKey(v, idx.Properties[position].Descending)
}

// PresentRange - the key span of every present value at one position
//
// nil bounds mean unbounded
func PresentRange(idx *contract.Index, position int) ([]byte, []byte) {
	if idx.Primary {
		return nil, nil
	}
	if idx.Properties[position].Descending {
		return []byte{^byte(codec.KeyPresent)}, []byte{^byte(codec.KeyAbsent)}
	}
	return []byte{codec.KeyPresent}, []byte{codec.KeyPresent + 1}
}
