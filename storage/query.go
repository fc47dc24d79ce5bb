// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"bytes"
	"fmt"

	"github.com/bitmark-inc/drive/fault"
)

// MaxReferenceHops - longest chain of references that is followed
const MaxReferenceHops = 10

// KeyRange - keys within one subtree
//
// Start is inclusive and End is exclusive, nil is unbounded
type KeyRange struct {
	Start []byte
	End   []byte
}

// Empty - true if no key can be inside the range
func (r KeyRange) Empty() bool {
	return nil != r.Start && nil != r.End && bytes.Compare(r.Start, r.End) >= 0
}

// PathQuery - ordered scan of one subtree
//
// ranges must be ascending and disjoint; a reverse query visits the
// ranges last to first and each range from its end; a zero limit
// returns every match
type PathQuery struct {
	Path    Path
	Ranges  []KeyRange
	Reverse bool
	Limit   int
}

// Result - one element found by a query
//
// Value is the item bytes after following any reference
type Result struct {
	Key     []byte
	Element *Element
	Value   []byte
}

// Reader - read access shared by transactions, recorders and proofs
type Reader interface {
	Get(Path, []byte) (*Element, error)
	Query(*PathQuery) ([]Result, error)
}

type scanFunc func(key []byte, e *Element) (bool, error)

// the primitive reads a query is built from
type source interface {
	element(Path, []byte) (*Element, error)
	scan(Path, KeyRange, bool, scanFunc) error
}

// every ancestor must hold a tree element for the next segment
func checkPath(src source, path Path) error {
	for i := 1; i <= len(path); i += 1 {
		e, err := src.element(path[:i-1], path[i-1])
		if nil != err {
			return err
		}
		if nil == e {
			return fault.ErrPathNotFound
		}
		if !e.IsTree() {
			return fault.ErrNotATree
		}
	}
	return nil
}

func executeQuery(src source, q *PathQuery) ([]Result, error) {
	if err := checkPath(src, q.Path); nil != err {
		return nil, err
	}

	ranges := q.Ranges
	if 0 == len(ranges) {
		ranges = []KeyRange{{}}
	}
	for i := 1; i < len(ranges); i += 1 {
		if nil == ranges[i-1].End || nil == ranges[i].Start || bytes.Compare(ranges[i-1].End, ranges[i].Start) > 0 {
			return nil, fmt.Errorf("ranges overlap or are out of order: %w", fault.ErrInvalidQueryStructure)
		}
	}

	results := make([]Result, 0, 16)
	full := func() bool { return q.Limit > 0 && len(results) >= q.Limit }

	for n := 0; n < len(ranges) && !full(); n += 1 {
		r := ranges[n]
		if q.Reverse {
			r = ranges[len(ranges)-1-n]
		}
		if r.Empty() {
			continue
		}
		err := src.scan(q.Path, r, q.Reverse, func(key []byte, e *Element) (bool, error) {
			result := Result{Key: key, Element: e}
			switch e.Kind {
			case ItemKind:
				result.Value = e.Value
			case ReferenceKind:
				v, err := resolve(src, e)
				if nil != err {
					return false, err
				}
				result.Value = v
			}
			results = append(results, result)
			return !full(), nil
		})
		if nil != err {
			return nil, err
		}
	}
	return results, nil
}

// follow references to an item
func resolve(src source, e *Element) ([]byte, error) {
	for hops := 0; hops < MaxReferenceHops; hops += 1 {
		if ReferenceKind != e.Kind {
			break
		}
		r := e.Reference
		target, err := src.element(r.Path, r.Key)
		if nil != err {
			return nil, err
		}
		if nil == target {
			return nil, fmt.Errorf("dangling reference to %s key: %x: %w", r.Path, r.Key, fault.ErrKeyNotFound)
		}
		e = target
	}
	switch e.Kind {
	case ItemKind:
		return e.Value, nil
	case TreeKind:
		return nil, nil
	}
	return nil, fault.ErrReferenceLimit
}
