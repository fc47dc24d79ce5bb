// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package drive

import (
	"fmt"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/drive/codec"
	"github.com/bitmark-inc/drive/contract"
	"github.com/bitmark-inc/drive/document"
	"github.com/bitmark-inc/drive/fault"
	"github.com/bitmark-inc/drive/index"
	"github.com/bitmark-inc/drive/merkle"
	"github.com/bitmark-inc/drive/query"
	"github.com/bitmark-inc/drive/storage"
	"github.com/bitmark-inc/drive/value"
)

// Configuration - engine settings
type Configuration struct {
	Query query.Configuration `gluamapper:"query" json:"query"`
}

// BlockInfo - the block a write belongs to
type BlockInfo struct {
	Height uint64
	TimeMs uint64
}

// Drive - contracts and documents over one store
type Drive struct {
	store    *storage.Store
	registry *contract.Registry
	planner  *query.Planner
	log      *logger.L
}

// New - create an engine on an open store
func New(store *storage.Store, configuration Configuration) *Drive {
	log := logger.New("drive")
	return &Drive{
		store:    store,
		registry: contract.NewRegistry(logger.New("contract")),
		planner:  query.NewPlanner(configuration.Query),
		log:      log,
	}
}

// StartTransaction - every operation runs inside one of these
func (d *Drive) StartTransaction() (*storage.Transaction, error) {
	return d.store.StartTransaction()
}

// ApplyContract - store a new contract and create its document subtrees
func (d *Drive) ApplyContract(tx *storage.Transaction, c *contract.DataContract) error {
	e, err := tx.Get(storage.Path{}, c.ID[:])
	if nil != err {
		return err
	}
	if nil != e {
		return fmt.Errorf("%s: %w", c.ID, fault.ErrContractAlreadyExists)
	}

	if err := tx.Insert(storage.Path{}, c.ID[:], storage.NewTree()); nil != err {
		return err
	}
	if err := d.writeContract(tx, c); nil != err {
		return err
	}
	d.registry.Add(c)
	d.log.Infof("apply contract: %s  types: %d", c, len(c.Types))
	return nil
}

// UpdateContract - replace a contract with its next version
//
// new document types get their subtrees, existing ones are unchanged
func (d *Drive) UpdateContract(tx *storage.Transaction, next *contract.DataContract) error {
	current, err := d.Contract(tx, next.ID)
	if nil != err {
		return err
	}
	if err := current.CheckUpdate(next); nil != err {
		d.log.Warnf("update contract: %s  rejected: %s", next, err)
		return err
	}
	if err := d.writeContract(tx, next); nil != err {
		return err
	}
	d.registry.Add(next)
	d.log.Infof("update contract: %s  types: %d", next, len(next.Types))
	return nil
}

// item: varint(version) ++ JSON, then a subtree per type
func (d *Drive) writeContract(tx *storage.Transaction, c *contract.DataContract) error {
	item := codec.AppendVarint64(nil, c.Version)
	item = append(item, c.Raw...)
	if err := tx.Insert(index.ContractPath(c.ID), index.ContractKey, storage.NewItem(item)); nil != err {
		return err
	}

	for _, dt := range c.Types {
		if err := tx.Insert(index.ContractPath(c.ID), []byte(dt.Name), storage.NewTree()); nil != err {
			return err
		}
		for _, key := range index.TypeSubtrees(dt) {
			if err := tx.Insert(index.TypePath(c, dt), key, storage.NewTree()); nil != err {
				return err
			}
		}
		for _, idx := range dt.Indices {
			if err := tx.Insert(index.IndicesPath(c, dt), []byte(idx.Signature()), storage.NewTree()); nil != err {
				return err
			}
		}
	}
	return nil
}

// Contract - the stored version of a contract
func (d *Drive) Contract(r storage.Reader, id value.Identifier) (*contract.DataContract, error) {
	e, err := r.Get(index.ContractPath(id), index.ContractKey)
	if fault.ErrPathNotFound == err || (nil == err && nil == e) {
		return nil, fmt.Errorf("%s: %w", id, fault.ErrContractNotFound)
	}
	if nil != err {
		return nil, err
	}
	if storage.ItemKind != e.Kind {
		return nil, fault.ErrCorruptEncoding
	}

	version, n, err := codec.FromVarint64(e.Value)
	if nil != err {
		return nil, err
	}
	return d.registry.Load(id, version, e.Value[n:])
}

// DocumentType - resolve a stored contract and one of its types
func (d *Drive) DocumentType(r storage.Reader, id value.Identifier, name string) (*contract.DataContract, *contract.DocumentType, error) {
	c, err := d.Contract(r, id)
	if nil != err {
		return nil, nil, err
	}
	dt, err := c.DocumentType(name)
	if nil != err {
		return nil, nil, err
	}
	return c, dt, nil
}

// Fetch - the current revision of a document
func (d *Drive) Fetch(r storage.Reader, c *contract.DataContract, dt *contract.DocumentType, id value.Identifier) (*document.Document, error) {
	doc, err := query.Current(r, c, dt, id)
	if nil != err {
		return nil, err
	}
	if nil == doc {
		return nil, fmt.Errorf("%s: %w", id, fault.ErrDocumentNotFound)
	}
	return doc, nil
}

// FetchAt - the revision of a document current at blockTime
func (d *Drive) FetchAt(r storage.Reader, c *contract.DataContract, dt *contract.DocumentType, id value.Identifier, blockTime int64) (*document.Document, error) {
	if !dt.KeepsHistory {
		return nil, fmt.Errorf("document type %q: %w", dt.Name, fault.ErrHistoricalQueryUnsupported)
	}
	doc, err := query.At(r, c, dt, id, blockTime)
	if nil != err {
		return nil, err
	}
	if nil == doc {
		return nil, fmt.Errorf("%s at %d: %w", id, blockTime, fault.ErrDocumentNotFound)
	}
	return doc, nil
}

// Query - run the JSON form of a query
func (d *Drive) Query(r storage.Reader, c *contract.DataContract, dt *contract.DocumentType, raw []byte) ([]*document.Document, error) {
	q, err := d.planner.Parse(raw, c, dt)
	if nil != err {
		return nil, err
	}
	return q.Execute(r)
}

// QueryWithProof - run a query and prove the result
func (d *Drive) QueryWithProof(tx *storage.Transaction, c *contract.DataContract, dt *contract.DocumentType, raw []byte) ([]*document.Document, *storage.Proof, error) {
	q, err := d.planner.Parse(raw, c, dt)
	if nil != err {
		return nil, nil, err
	}
	return q.ExecuteWithProof(tx)
}

// VerifyQuery - replay a query against a proof
//
// returns the root hash the proof commits to and the proved result
func (d *Drive) VerifyQuery(proof *storage.Proof, c *contract.DataContract, dt *contract.DocumentType, raw []byte) (merkle.Digest, []*document.Document, error) {
	q, err := d.planner.Parse(raw, c, dt)
	if nil != err {
		return merkle.Digest{}, nil, err
	}
	return q.Verify(proof)
}
