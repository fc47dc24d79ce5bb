// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"bytes"
	"sort"

	"github.com/bitmark-inc/drive/fault"
	"github.com/bitmark-inc/drive/merkle"
)

// Proof - the subtrees a read touched, enough to recompute the root
//
// every leaf of a touched subtree is present with its value hash;
// only the elements that were actually read are revealed
type Proof struct {
	Layers []Layer
}

// Layer - all leaves of one subtree in key order
type Layer struct {
	Path   Path
	Leaves []Leaf
}

// Leaf - one key of a layer
type Leaf struct {
	Key       []byte
	Kind      ElementKind
	ValueHash merkle.Digest
	Element   *Element // nil unless revealed, never set for trees
}

// Recorder - a Reader over a transaction that remembers what it read
type Recorder struct {
	tx       *Transaction
	paths    map[string]Path
	revealed map[string]struct{}
}

func newRecorder(tx *Transaction) *Recorder {
	return &Recorder{
		tx:       tx,
		paths:    make(map[string]Path),
		revealed: make(map[string]struct{}),
	}
}

// Get - as Transaction.Get
func (r *Recorder) Get(path Path, key []byte) (*Element, error) {
	r.tx.Lock()
	defer r.tx.Unlock()

	if r.tx.finished {
		return nil, fault.ErrTransactionFinished
	}
	if err := checkPath(r, path); nil != err {
		return nil, err
	}
	return r.element(path, key)
}

// Query - as Transaction.Query
func (r *Recorder) Query(q *PathQuery) ([]Result, error) {
	r.tx.Lock()
	defer r.tx.Unlock()

	if r.tx.finished {
		return nil, fault.ErrTransactionFinished
	}
	return executeQuery(r, q)
}

// Proof - build a proof of everything read so far
func (r *Recorder) Proof() (*Proof, error) {
	r.tx.Lock()
	defer r.tx.Unlock()

	if r.tx.finished {
		return nil, fault.ErrTransactionFinished
	}

	// every touched path and its ancestors
	all := make(map[string]Path)
	for _, p := range r.paths {
		for i := 0; i <= len(p); i += 1 {
			all[string(p[:i].Bytes())] = p[:i]
		}
	}
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	proof := &Proof{}
	for _, name := range names {
		p := all[name]
		err := checkPath(r.tx, p)
		if fault.ErrPathNotFound == err || fault.ErrNotATree == err {
			continue // its parent layer shows it is missing
		}
		if nil != err {
			return nil, err
		}
		layer, err := r.layer(p)
		if nil != err {
			return nil, err
		}
		proof.Layers = append(proof.Layers, layer)
	}
	return proof, nil
}

func (r *Recorder) layer(p Path) (Layer, error) {
	layer := Layer{Path: p}
	err := r.tx.scan(p, KeyRange{}, false, func(key []byte, e *Element) (bool, error) {
		vh, err := r.tx.elementHash(p, key, e)
		if nil != err {
			return false, err
		}
		leaf := Leaf{Key: key, Kind: e.Kind, ValueHash: vh}
		if _, ok := r.revealed[revealKey(p, key)]; ok && !e.IsTree() {
			leaf.Element = e
		}
		layer.Leaves = append(layer.Leaves, leaf)
		return true, nil
	})
	return layer, err
}

func (r *Recorder) touch(p Path) {
	r.paths[string(p.Bytes())] = p
}

func (r *Recorder) element(path Path, key []byte) (*Element, error) {
	r.touch(path)
	r.revealed[revealKey(path, key)] = struct{}{}
	return r.tx.element(path, key)
}

func (r *Recorder) scan(path Path, kr KeyRange, reverse bool, f scanFunc) error {
	r.touch(path)
	return r.tx.scan(path, kr, reverse, func(key []byte, e *Element) (bool, error) {
		r.revealed[revealKey(path, key)] = struct{}{}
		return f(key, e)
	})
}

func revealKey(path Path, key []byte) string {
	return string(append(path.Bytes(), key...))
}

// Verify - check the proof is self consistent and return the root it proves
func (p *Proof) Verify() (merkle.Digest, error) {
	roots := make(map[string]merkle.Digest, len(p.Layers))

	for _, layer := range p.Layers {
		name := string(layer.Path.Bytes())
		if _, ok := roots[name]; ok {
			return merkle.Digest{}, fault.ErrInvalidProof
		}

		leaves := make([]merkle.Digest, 0, len(layer.Leaves))
		for i, leaf := range layer.Leaves {
			if i > 0 && bytes.Compare(layer.Leaves[i-1].Key, leaf.Key) >= 0 {
				return merkle.Digest{}, fault.ErrInvalidProof
			}
			if nil != leaf.Element {
				if leaf.Element.Kind != leaf.Kind || TreeKind == leaf.Kind {
					return merkle.Digest{}, fault.ErrInvalidProof
				}
				vh, err := leaf.Element.valueHash()
				if nil != err || vh != leaf.ValueHash {
					return merkle.Digest{}, fault.ErrInvalidProof
				}
			}
			leaves = append(leaves, leafHash(leaf.Kind, leaf.Key, leaf.ValueHash))
		}
		roots[name] = merkle.Root(leaves)
	}

	root, ok := roots[string(Path(nil).Bytes())]
	if !ok {
		return merkle.Digest{}, fault.ErrInvalidProof
	}

	// each subtree must be committed by its parent
	for _, layer := range p.Layers {
		if 0 == len(layer.Path) {
			continue
		}
		parent, key := layer.Path.Parent()
		pl := p.layer(parent)
		if nil == pl {
			return merkle.Digest{}, fault.ErrInvalidProof
		}
		leaf := pl.find(key)
		if nil == leaf || TreeKind != leaf.Kind || leaf.ValueHash != roots[string(layer.Path.Bytes())] {
			return merkle.Digest{}, fault.ErrInvalidProof
		}
	}
	return root, nil
}

// Get - read from the proof, ErrIncompleteProof if it was not recorded
func (p *Proof) Get(path Path, key []byte) (*Element, error) {
	if err := checkPath(p, path); nil != err {
		return nil, err
	}
	return p.element(path, key)
}

// Query - re-run a query against the proof
func (p *Proof) Query(q *PathQuery) ([]Result, error) {
	return executeQuery(p, q)
}

func (p *Proof) layer(path Path) *Layer {
	for i := range p.Layers {
		if p.Layers[i].Path.Equal(path) {
			return &p.Layers[i]
		}
	}
	return nil
}

func (l *Layer) find(key []byte) *Leaf {
	i := sort.Search(len(l.Leaves), func(i int) bool { return bytes.Compare(l.Leaves[i].Key, key) >= 0 })
	if i < len(l.Leaves) && bytes.Equal(l.Leaves[i].Key, key) {
		return &l.Leaves[i]
	}
	return nil
}

func (leaf *Leaf) element() (*Element, error) {
	if TreeKind == leaf.Kind {
		return &Element{Kind: TreeKind}, nil
	}
	if nil == leaf.Element {
		return nil, fault.ErrIncompleteProof
	}
	return leaf.Element, nil
}

func (p *Proof) element(path Path, key []byte) (*Element, error) {
	l := p.layer(path)
	if nil == l {
		return nil, fault.ErrIncompleteProof
	}
	leaf := l.find(key)
	if nil == leaf {
		return nil, nil
	}
	return leaf.element()
}

func (p *Proof) scan(path Path, r KeyRange, reverse bool, f scanFunc) error {
	l := p.layer(path)
	if nil == l {
		return fault.ErrIncompleteProof
	}

	first := 0
	if nil != r.Start {
		first = sort.Search(len(l.Leaves), func(i int) bool { return bytes.Compare(l.Leaves[i].Key, r.Start) >= 0 })
	}
	last := len(l.Leaves)
	if nil != r.End {
		last = sort.Search(len(l.Leaves), func(i int) bool { return bytes.Compare(l.Leaves[i].Key, r.End) >= 0 })
	}

	for n := 0; n < last-first; n += 1 {
		i := first + n
		if reverse {
			i = last - 1 - n
		}
		e, err := l.Leaves[i].element()
		if nil != err {
			return err
		}
		more, err := f(l.Leaves[i].Key, e)
		if nil != err {
			return err
		}
		if !more {
			break
		}
	}
	return nil
}
