// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

// Backend - an ordered key/value database
type Backend interface {
	Begin() (Access, error)
	Close() error
}

// Access - one transaction on a backend
//
// reads must observe the transaction's own writes
type Access interface {
	Abort()
	Commit() error
	Delete([]byte) error
	Get([]byte) ([]byte, error) // nil, nil if absent
	Iterate(*Span, IterateFunc) error
	Put([]byte, []byte) error
}

// IterateFunc - called for each key/value in order, return false to stop
//
// key and value are only valid for the duration of the call
type IterateFunc func(key []byte, value []byte) (bool, error)

// Span - a physical key range
//
// Start is inclusive and Limit is exclusive, nil is unbounded
type Span struct {
	Start   []byte
	Limit   []byte
	Reverse bool
}
