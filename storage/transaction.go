// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"sync"

	"github.com/bitmark-inc/drive/codec"
	"github.com/bitmark-inc/drive/fault"
	"github.com/bitmark-inc/drive/merkle"
	"github.com/bitmark-inc/logger"
)

// prefix byte of every element key
const elementPrefix = 'E'

// Transaction - all reads and writes happen inside one of these
//
// nothing is visible to other transactions until Commit, Rollback
// leaves the database exactly as it was
type Transaction struct {
	sync.Mutex
	access   Access
	log      *logger.L
	finished bool

	// subtree roots computed so far, keyed by subtree prefix
	// TODO: persist subtree roots next to the tree element so RootHash
	// does not rescan every subtree on a fresh transaction
	roots map[string]merkle.Digest
}

func newTransaction(access Access, log *logger.L) *Transaction {
	return &Transaction{
		access: access,
		log:    log,
		roots:  make(map[string]merkle.Digest),
	}
}

// Insert - store an element, the path must already exist
//
// inserting a tree over an existing tree keeps the existing subtree
func (t *Transaction) Insert(path Path, key []byte, e Element) error {
	t.Lock()
	defer t.Unlock()

	if t.finished {
		return fault.ErrTransactionFinished
	}
	if err := checkPath(t, path); nil != err {
		return err
	}

	existing, err := t.element(path, key)
	if nil != err {
		return err
	}
	return t.insert(path, key, e, existing)
}

// InsertIfNotExists - store an element only if the key is free
//
// returns false and writes nothing when the key is already occupied
func (t *Transaction) InsertIfNotExists(path Path, key []byte, e Element) (bool, error) {
	t.Lock()
	defer t.Unlock()

	if t.finished {
		return false, fault.ErrTransactionFinished
	}
	if err := checkPath(t, path); nil != err {
		return false, err
	}

	existing, err := t.element(path, key)
	if nil != err {
		return false, err
	}
	if nil != existing {
		return false, nil
	}
	return true, t.insert(path, key, e, nil)
}

func (t *Transaction) insert(path Path, key []byte, e Element, existing *Element) error {
	if existing.IsTree() {
		if TreeKind == e.Kind {
			return nil
		}
		empty, err := t.isEmpty(path.Child(key))
		if nil != err {
			return err
		}
		if !empty {
			return fault.ErrSubtreeNotEmpty
		}
		delete(t.roots, string(subtreePrefix(path.Child(key))))
	}

	b, err := e.encode()
	if nil != err {
		return err
	}
	if err := t.access.Put(physicalKey(path, key), b); nil != err {
		return fault.Storage("put", err)
	}
	t.invalidate(path)
	t.log.Tracef("insert: %s  key: %x  kind: %s", path, key, e.Kind)
	return nil
}

// Get - fetch one element, nil if absent
func (t *Transaction) Get(path Path, key []byte) (*Element, error) {
	t.Lock()
	defer t.Unlock()

	if t.finished {
		return nil, fault.ErrTransactionFinished
	}
	if err := checkPath(t, path); nil != err {
		return nil, err
	}
	return t.element(path, key)
}

// Resolve - the item bytes at path/key after following references
//
// nil if the key is absent or holds a tree
func (t *Transaction) Resolve(path Path, key []byte) ([]byte, error) {
	t.Lock()
	defer t.Unlock()

	if t.finished {
		return nil, fault.ErrTransactionFinished
	}
	if err := checkPath(t, path); nil != err {
		return nil, err
	}
	e, err := t.element(path, key)
	if nil != err || nil == e {
		return nil, err
	}
	return resolve(t, e)
}

// Delete - remove an element, a tree must be empty
func (t *Transaction) Delete(path Path, key []byte) error {
	t.Lock()
	defer t.Unlock()

	if t.finished {
		return fault.ErrTransactionFinished
	}
	if err := checkPath(t, path); nil != err {
		return err
	}

	existing, err := t.element(path, key)
	if nil != err {
		return err
	}
	if nil == existing {
		return fault.ErrKeyNotFound
	}
	if existing.IsTree() {
		empty, err := t.isEmpty(path.Child(key))
		if nil != err {
			return err
		}
		if !empty {
			return fault.ErrSubtreeNotEmpty
		}
		delete(t.roots, string(subtreePrefix(path.Child(key))))
	}

	if err := t.access.Delete(physicalKey(path, key)); nil != err {
		return fault.Storage("delete", err)
	}
	t.invalidate(path)
	t.log.Tracef("delete: %s  key: %x", path, key)
	return nil
}

// Query - run a path query
func (t *Transaction) Query(q *PathQuery) ([]Result, error) {
	t.Lock()
	defer t.Unlock()

	if t.finished {
		return nil, fault.ErrTransactionFinished
	}
	return executeQuery(t, q)
}

// RootHash - root of the whole tree including uncommitted writes
func (t *Transaction) RootHash() (merkle.Digest, error) {
	t.Lock()
	defer t.Unlock()

	if t.finished {
		return merkle.Digest{}, fault.ErrTransactionFinished
	}
	return t.subtreeRoot(nil)
}

// Commit - make all writes visible
func (t *Transaction) Commit() error {
	t.Lock()
	defer t.Unlock()

	if t.finished {
		return fault.ErrTransactionFinished
	}
	t.finished = true

	if err := t.access.Commit(); nil != err {
		fault.Criticalf("commit failed: %s", err)
		t.access.Abort()
		return fault.Storage("commit", err)
	}
	return nil
}

// Rollback - discard all writes, safe to call after Commit
func (t *Transaction) Rollback() {
	t.Lock()
	defer t.Unlock()

	if t.finished {
		return
	}
	t.finished = true
	t.access.Abort()
}

// Recorder - a reader that collects proof material
func (t *Transaction) Recorder() *Recorder {
	return newRecorder(t)
}

// forget the cached roots of path and every ancestor
func (t *Transaction) invalidate(path Path) {
	for i := len(path); i >= 0; i -= 1 {
		delete(t.roots, string(subtreePrefix(path[:i])))
	}
}

// source interface, callers hold the lock

func (t *Transaction) element(path Path, key []byte) (*Element, error) {
	b, err := t.access.Get(physicalKey(path, key))
	if nil != err {
		return nil, fault.Storage("get", err)
	}
	if nil == b {
		return nil, nil
	}
	return decodeElement(b)
}

func (t *Transaction) scan(path Path, r KeyRange, reverse bool, f scanFunc) error {
	prefix := subtreePrefix(path)
	span := &Span{
		Start:   append(append([]byte{}, prefix...), r.Start...),
		Limit:   codec.PrefixEnd(prefix),
		Reverse: reverse,
	}
	if nil != r.End {
		span.Limit = append(append([]byte{}, prefix...), r.End...)
	}

	// errors from f are returned as they are
	var inner error
	err := t.access.Iterate(span, func(k []byte, v []byte) (bool, error) {
		e, err := decodeElement(v)
		if nil == err {
			var more bool
			more, err = f(copyBytes(k[len(prefix):]), e)
			if nil == err {
				return more, nil
			}
		}
		inner = err
		return false, nil
	})
	if nil != inner {
		return inner
	}
	return fault.Storage("iterate", err)
}

func (t *Transaction) isEmpty(path Path) (bool, error) {
	empty := true
	err := t.scan(path, KeyRange{}, false, func([]byte, *Element) (bool, error) {
		empty = false
		return false, nil
	})
	return empty, err
}

// root of one subtree, memoised until a write below it
func (t *Transaction) subtreeRoot(path Path) (merkle.Digest, error) {
	memo := string(subtreePrefix(path))
	if d, ok := t.roots[memo]; ok {
		return d, nil
	}

	leaves := make([]merkle.Digest, 0, 16)
	err := t.scan(path, KeyRange{}, false, func(key []byte, e *Element) (bool, error) {
		vh, err := t.elementHash(path, key, e)
		if nil != err {
			return false, err
		}
		leaves = append(leaves, leafHash(e.Kind, key, vh))
		return true, nil
	})
	if nil != err {
		return merkle.Digest{}, err
	}

	root := merkle.Root(leaves)
	t.roots[memo] = root
	return root, nil
}

func (t *Transaction) elementHash(path Path, key []byte, e *Element) (merkle.Digest, error) {
	if e.IsTree() {
		return t.subtreeRoot(path.Child(key))
	}
	return e.valueHash()
}

// 'E' ++ H(path)
func subtreePrefix(path Path) []byte {
	h := merkle.NewDigest(path.Bytes())
	return append([]byte{elementPrefix}, h[:]...)
}

func physicalKey(path Path, key []byte) []byte {
	return append(subtreePrefix(path), key...)
}
