// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package query

import (
	"bytes"
	"sort"

	"github.com/bitmark-inc/drive/contract"
	"github.com/bitmark-inc/drive/document"
	"github.com/bitmark-inc/drive/fault"
	"github.com/bitmark-inc/drive/index"
	"github.com/bitmark-inc/drive/merkle"
	"github.com/bitmark-inc/drive/storage"
	"github.com/bitmark-inc/drive/value"
)

// Execute - run the query, documents come back in index order
func (q *DriveQuery) Execute(r storage.Reader) ([]*document.Document, error) {
	if nil != q.BlockTime {
		return q.executeAt(r, *q.BlockTime)
	}

	ranges, err := q.startRanges(r, func(id value.Identifier) (*document.Document, error) {
		return Current(r, q.Contract, q.Type, id)
	})
	if nil != err {
		return nil, err
	}
	if 0 == len(ranges) {
		return []*document.Document{}, nil
	}

	results, err := r.Query(&storage.PathQuery{
		Path:    q.Path,
		Ranges:  ranges,
		Reverse: q.Reverse,
		Limit:   q.Limit,
	})
	if nil != err {
		return nil, err
	}

	documents := make([]*document.Document, 0, len(results))
	seen := make(map[value.Identifier]struct{}, len(results))
	for _, result := range results {
		if 0 == len(result.Value) {
			return nil, fault.ErrCorruptEncoding
		}
		d, err := document.FromCanonicalBytes(result.Value, q.Type)
		if nil != err {
			return nil, err
		}
		if _, ok := seen[d.ID]; ok {
			continue
		}
		seen[d.ID] = struct{}{}
		documents = append(documents, d)
	}
	q.log.Debugf("index: %s  found: %d", q.Index, len(documents))
	return documents, nil
}

// ExecuteWithProof - run the query and prove every read against the root
func (q *DriveQuery) ExecuteWithProof(tx *storage.Transaction) ([]*document.Document, *storage.Proof, error) {
	recorder := tx.Recorder()
	documents, err := q.Execute(recorder)
	if nil != err {
		return nil, nil, err
	}
	proof, err := recorder.Proof()
	if nil != err {
		return nil, nil, err
	}
	return documents, proof, nil
}

// Verify - the root hash a proof commits to and the query result it holds
//
// the caller compares the root with the one it trusts
func (q *DriveQuery) Verify(proof *storage.Proof) (merkle.Digest, []*document.Document, error) {
	root, err := proof.Verify()
	if nil != err {
		return merkle.Digest{}, nil, err
	}
	documents, err := q.Execute(proof)
	if nil != err {
		return merkle.Digest{}, nil, err
	}
	return root, documents, nil
}

// Current - the stored head of a document, nil if there is none
func Current(r storage.Reader, c *contract.DataContract, dt *contract.DocumentType, id value.Identifier) (*document.Document, error) {
	e, err := r.Get(index.PrimaryPath(c, dt), id[:])
	if nil != err || nil == e {
		return nil, err
	}
	if storage.ItemKind != e.Kind {
		return nil, fault.ErrCorruptEncoding
	}
	return document.FromCanonicalBytes(e.Value, dt)
}

// At - the latest revision stored at or before blockTime
//
// nil if the document did not exist or was deleted at that time
func At(r storage.Reader, c *contract.DataContract, dt *contract.DocumentType, id value.Identifier, blockTime int64) (*document.Document, error) {
	if !dt.KeepsHistory {
		return nil, fault.ErrHistoricalQueryUnsupported
	}
	path := index.RevisionsPath(c, dt, id)

	// an unknown id has no revisions subtree
	e, err := r.Get(index.HistoryPath(c, dt), id[:])
	if nil != err || nil == e {
		return nil, err
	}

	results, err := r.Query(&storage.PathQuery{
		Path:    path,
		Ranges:  []storage.KeyRange{{End: index.TimeKey(uint64(blockTime) + 1)}},
		Reverse: true,
		Limit:   1,
	})
	if nil != err {
		return nil, err
	}
	if 0 == len(results) || 0 == len(results[0].Value) {
		return nil, nil
	}
	return document.FromCanonicalBytes(results[0].Value, dt)
}

// clip the planned ranges at the startAt or startAfter document
func (q *DriveQuery) startRanges(r storage.Reader, fetch func(value.Identifier) (*document.Document, error)) ([]storage.KeyRange, error) {
	id := q.StartAt
	inclusive := true
	name := "startAt"
	if nil == id {
		id = q.StartAfter
		inclusive = false
		name = "startAfter"
	}
	if nil == id {
		return q.Ranges, nil
	}

	d, err := fetch(*id)
	if nil != err {
		return nil, err
	}
	if nil == d {
		return nil, &fault.StartDocumentNotFound{Message: name + " document not found"}
	}
	key, err := index.Key(q.Index, d)
	if nil != err {
		return nil, err
	}
	return clip(q.Ranges, key, inclusive, q.Reverse), nil
}

// keys are unique per document, so key ++ 0x00 is the next possible key
func clip(ranges []storage.KeyRange, key []byte, inclusive bool, reverse bool) []storage.KeyRange {
	next := append(append([]byte{}, key...), 0x00)
	clipped := make([]storage.KeyRange, 0, len(ranges))
	for _, r := range ranges {
		if reverse {
			limit := key
			if inclusive {
				limit = next
			}
			if nil == r.End || bytes.Compare(r.End, limit) > 0 {
				r.End = limit
			}
		} else {
			limit := next
			if inclusive {
				limit = key
			}
			if nil == r.Start || bytes.Compare(r.Start, limit) < 0 {
				r.Start = limit
			}
		}
		if !r.Empty() {
			clipped = append(clipped, r)
		}
	}
	return clipped
}

func contains(ranges []storage.KeyRange, key []byte) bool {
	for _, r := range ranges {
		if (nil == r.Start || bytes.Compare(key, r.Start) >= 0) && (nil == r.End || bytes.Compare(key, r.End) < 0) {
			return true
		}
	}
	return false
}

type keyed struct {
	key      []byte
	document *document.Document
}

// a point in time view: every document ever stored is resolved to
// its revision at blockTime, then filtered and ordered by the same
// index key ranges a current query scans
func (q *DriveQuery) executeAt(r storage.Reader, blockTime int64) ([]*document.Document, error) {
	ranges, err := q.startRanges(r, func(id value.Identifier) (*document.Document, error) {
		return At(r, q.Contract, q.Type, id, blockTime)
	})
	if nil != err {
		return nil, err
	}
	if 0 == len(ranges) {
		return []*document.Document{}, nil
	}

	ids, err := r.Query(&storage.PathQuery{
		Path: index.HistoryPath(q.Contract, q.Type),
	})
	if nil != err {
		return nil, err
	}

	matches := make([]keyed, 0, len(ids))
	for _, result := range ids {
		id, err := value.IdentifierFromBytes(result.Key)
		if nil != err {
			return nil, fault.ErrCorruptEncoding
		}
		d, err := At(r, q.Contract, q.Type, id, blockTime)
		if nil != err {
			return nil, err
		}
		if nil == d {
			continue
		}
		key, err := index.Key(q.Index, d)
		if nil != err {
			return nil, err
		}
		if contains(ranges, key) {
			matches = append(matches, keyed{key: key, document: d})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if q.Reverse {
			return bytes.Compare(matches[i].key, matches[j].key) > 0
		}
		return bytes.Compare(matches[i].key, matches[j].key) < 0
	})
	if len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}

	documents := make([]*document.Document, len(matches))
	for i, m := range matches {
		documents[i] = m.document
	}
	q.log.Debugf("index: %s  block time: %d  found: %d", q.Index, blockTime, len(documents))
	return documents, nil
}
