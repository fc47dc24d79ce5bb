// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package drive

import (
	"bytes"
	"fmt"

	"github.com/bitmark-inc/drive/codec"
	"github.com/bitmark-inc/drive/contract"
	"github.com/bitmark-inc/drive/document"
	"github.com/bitmark-inc/drive/fault"
	"github.com/bitmark-inc/drive/index"
	"github.com/bitmark-inc/drive/storage"
	"github.com/bitmark-inc/drive/value"
)

// Insert - store a new document as revision 1
//
// missing required timestamps are taken from the block; on error the
// caller must roll the transaction back
func (d *Drive) Insert(tx *storage.Transaction, c *contract.DataContract, dt *contract.DocumentType, doc *document.Document, block BlockInfo) (*document.Document, error) {
	if err := d.checkFresh(tx, c, dt, doc.ID); nil != err {
		return nil, err
	}

	stored := *doc
	stored.Revision = 1
	now := int64(block.TimeMs)
	if dt.RequiresCreatedAt && nil == stored.CreatedAt {
		stored.CreatedAt = &now
	}
	if dt.RequiresUpdatedAt && nil == stored.UpdatedAt {
		stored.UpdatedAt = &now
	}

	b, err := stored.ToCanonicalBytes(dt)
	if nil != err {
		return nil, err
	}
	entries, err := index.BuildEntries(c, dt, &stored)
	if nil != err {
		return nil, err
	}
	if err := d.checkUnique(tx, entries); nil != err {
		return nil, err
	}

	for _, e := range entries {
		if err := d.writeEntry(tx, e, b); nil != err {
			return nil, err
		}
	}
	if err := d.writeRevision(tx, c, dt, stored.ID, block, b); nil != err {
		return nil, err
	}

	d.log.Debugf("insert: %s/%s  id: %s  block: %d", c.ID, dt.Name, stored.ID, block.Height)
	return &stored, nil
}

// Update - replace a document with its next revision
//
// a zero revision means the next one; only index entries whose key
// changed are moved
func (d *Drive) Update(tx *storage.Transaction, c *contract.DataContract, dt *contract.DocumentType, doc *document.Document, block BlockInfo) (*document.Document, error) {
	if !dt.Mutable {
		return nil, fmt.Errorf("document type %q: %w", dt.Name, fault.ErrDocumentNotMutable)
	}
	current, err := d.current(tx, c, dt, doc.ID)
	if nil != err {
		return nil, err
	}
	if current.OwnerID != doc.OwnerID {
		d.log.Warnf("update: %s  owner: %s  not: %s", doc.ID, doc.OwnerID, current.OwnerID)
		return nil, fault.ErrOwnerMismatch
	}

	stored := *doc
	switch stored.Revision {
	case 0:
		stored.Revision = current.Revision + 1
	case current.Revision + 1:
	default:
		return nil, fmt.Errorf("revision %d does not follow %d: %w", stored.Revision, current.Revision, fault.ErrInvalidRevision)
	}
	now := int64(block.TimeMs)
	stored.CreatedAt = current.CreatedAt
	if dt.RequiresUpdatedAt || nil != current.UpdatedAt {
		stored.UpdatedAt = &now
	}

	b, err := stored.ToCanonicalBytes(dt)
	if nil != err {
		return nil, err
	}
	previous, err := index.BuildEntries(c, dt, current)
	if nil != err {
		return nil, err
	}
	entries, err := index.BuildEntries(c, dt, &stored)
	if nil != err {
		return nil, err
	}

	moved := make([]index.Entry, 0, len(entries))
	for i, e := range entries {
		if !e.Index.Primary && bytes.Equal(e.Key, previous[i].Key) {
			continue
		}
		moved = append(moved, e)
	}
	if err := d.checkUnique(tx, moved); nil != err {
		return nil, err
	}

	for i, e := range entries {
		if e.Index.Primary {
			if err := tx.Insert(e.Path, e.Key, storage.NewItem(b)); nil != err {
				return nil, err
			}
			continue
		}
		if bytes.Equal(e.Key, previous[i].Key) {
			continue
		}
		if err := tx.Delete(previous[i].Path, previous[i].Key); nil != err {
			return nil, err
		}
		if err := d.writeEntry(tx, e, b); nil != err {
			return nil, err
		}
	}
	if err := d.writeRevision(tx, c, dt, stored.ID, block, b); nil != err {
		return nil, err
	}

	d.log.Debugf("update: %s/%s  id: %s  revision: %d  moved: %d", c.ID, dt.Name, stored.ID, stored.Revision, len(moved)-1)
	return &stored, nil
}

// Delete - remove a document and retire its id
//
// revisions already in the history stay readable
func (d *Drive) Delete(tx *storage.Transaction, c *contract.DataContract, dt *contract.DocumentType, id value.Identifier, block BlockInfo) error {
	current, err := d.current(tx, c, dt, id)
	if nil != err {
		return err
	}
	entries, err := index.BuildEntries(c, dt, current)
	if nil != err {
		return err
	}

	// references first so none is left dangling
	for i := len(entries) - 1; i >= 0; i -= 1 {
		if err := tx.Delete(entries[i].Path, entries[i].Key); nil != err {
			return err
		}
	}
	if err := d.writeRevision(tx, c, dt, id, block, []byte{}); nil != err {
		return err
	}
	revision := codec.AppendVarint64(nil, current.Revision)
	if err := tx.Insert(index.DeletedPath(c, dt), id[:], storage.NewItem(revision)); nil != err {
		return err
	}

	d.log.Debugf("delete: %s/%s  id: %s  revision: %d", c.ID, dt.Name, id, current.Revision)
	return nil
}

// the id was never used by this document type
func (d *Drive) checkFresh(tx *storage.Transaction, c *contract.DataContract, dt *contract.DocumentType, id value.Identifier) error {
	e, err := tx.Get(index.DeletedPath(c, dt), id[:])
	if nil != err {
		return err
	}
	if nil != e {
		d.log.Warnf("insert: %s  reuses a deleted id", id)
		return fmt.Errorf("%s: %w", id, fault.ErrDocumentDeleted)
	}
	e, err = tx.Get(index.PrimaryPath(c, dt), id[:])
	if nil != err {
		return err
	}
	if nil != e {
		return fmt.Errorf("%s: %w", id, fault.ErrDocumentAlreadyExists)
	}
	return nil
}

// the stored head, distinguishing deleted from never inserted
func (d *Drive) current(tx *storage.Transaction, c *contract.DataContract, dt *contract.DocumentType, id value.Identifier) (*document.Document, error) {
	e, err := tx.Get(index.DeletedPath(c, dt), id[:])
	if nil != err {
		return nil, err
	}
	if nil != e {
		return nil, fmt.Errorf("%s: %w", id, fault.ErrDocumentDeleted)
	}
	return d.Fetch(tx, c, dt, id)
}

// every unique key must be free before anything is written
func (d *Drive) checkUnique(tx *storage.Transaction, entries []index.Entry) error {
	for _, e := range entries {
		if !e.EnforceUnique || e.Index.Primary {
			continue
		}
		existing, err := tx.Get(e.Path, e.Key)
		if nil != err {
			return err
		}
		if nil != existing {
			d.log.Warnf("unique index: %s  key: %x  taken", e.Index.Signature(), e.Key)
			return &fault.UniqueIndexViolation{IndexSignature: e.Index.Signature()}
		}
	}
	return nil
}

func (d *Drive) writeEntry(tx *storage.Transaction, e index.Entry, canonical []byte) error {
	element := storage.NewItem(canonical)
	if !e.Index.Primary {
		element = storage.NewReference(e.Target.Path, e.Target.Key)
	}
	if !e.EnforceUnique {
		return tx.Insert(e.Path, e.Key, element)
	}
	ok, err := tx.InsertIfNotExists(e.Path, e.Key, element)
	if nil != err {
		return err
	}
	if !ok {
		if e.Index.Primary {
			return fault.ErrDocumentAlreadyExists
		}
		return &fault.UniqueIndexViolation{IndexSignature: e.Index.Signature()}
	}
	return nil
}

// an empty revision marks a delete
func (d *Drive) writeRevision(tx *storage.Transaction, c *contract.DataContract, dt *contract.DocumentType, id value.Identifier, block BlockInfo, canonical []byte) error {
	if !dt.KeepsHistory {
		return nil
	}
	if err := tx.Insert(index.HistoryPath(c, dt), id[:], storage.NewTree()); nil != err {
		return err
	}
	return tx.Insert(index.RevisionsPath(c, dt, id), index.TimeKey(block.TimeMs), storage.NewItem(canonical))
}
