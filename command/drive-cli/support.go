// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"time"

	"github.com/urfave/cli"

	"github.com/bitmark-inc/drive/contract"
	"github.com/bitmark-inc/drive/document"
	"github.com/bitmark-inc/drive/drive"
	"github.com/bitmark-inc/drive/storage"
	"github.com/bitmark-inc/drive/value"
)

// run f in a transaction, committing only if it succeeds
func inTransaction(m *metadata, f func(tx *storage.Transaction) error) error {
	tx, err := m.drive.StartTransaction()
	if nil != err {
		return err
	}
	if err := f(tx); nil != err {
		tx.Rollback()
		m.log.Warnf("transaction rolled back: %s", err)
		return err
	}
	return tx.Commit()
}

// read only work, never committed
func inSnapshot(m *metadata, f func(tx *storage.Transaction) error) error {
	tx, err := m.drive.StartTransaction()
	if nil != err {
		return err
	}
	defer tx.Rollback()
	return f(tx)
}

func checkRequired(c *cli.Context, names ...string) error {
	for _, name := range names {
		if "" == c.String(name) {
			return fmt.Errorf("missing required option: --%s", name)
		}
	}
	return nil
}

func readJSON(c *cli.Context, name string) ([]byte, error) {
	if err := checkRequired(c, name); nil != err {
		return nil, err
	}
	return ioutil.ReadFile(c.String(name))
}

func identifier(c *cli.Context, name string) (value.Identifier, error) {
	if err := checkRequired(c, name); nil != err {
		return value.Identifier{}, err
	}
	return value.ParseIdentifier(c.String(name))
}

// the contract and document type named by the options
func documentType(m *metadata, tx *storage.Transaction, c *cli.Context) (*contract.DataContract, *contract.DocumentType, error) {
	if err := checkRequired(c, "type"); nil != err {
		return nil, nil, err
	}
	id, err := identifier(c, "contract")
	if nil != err {
		return nil, nil, err
	}
	return m.drive.DocumentType(tx, id, c.String("type"))
}

func blockInfo(c *cli.Context) drive.BlockInfo {
	ms := c.Uint64("time")
	if 0 == ms {
		ms = uint64(time.Now().UnixNano() / int64(time.Millisecond))
	}
	return drive.BlockInfo{
		Height: c.Uint64("height"),
		TimeMs: ms,
	}
}

func documentsJSON(docs []*document.Document) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, len(docs))
	for i, d := range docs {
		b, err := d.JSON()
		if nil != err {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}
