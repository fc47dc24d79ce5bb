// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli"

	"github.com/bitmark-inc/drive/contract"
	"github.com/bitmark-inc/drive/document"
	"github.com/bitmark-inc/drive/drive"
	"github.com/bitmark-inc/drive/storage"
)

type writeFunc func(*drive.Drive, *storage.Transaction, *contract.DataContract, *contract.DocumentType, *document.Document, drive.BlockInfo) (*document.Document, error)

func runInsert(c *cli.Context) error {
	return writeDocument(c, (*drive.Drive).Insert)
}

func runUpdate(c *cli.Context) error {
	return writeDocument(c, (*drive.Drive).Update)
}

func writeDocument(c *cli.Context, f writeFunc) error {
	m := c.App.Metadata["config"].(*metadata)

	raw, err := readJSON(c, "json")
	if nil != err {
		return err
	}
	block := blockInfo(c)

	var stored *document.Document
	err = inTransaction(m, func(tx *storage.Transaction) error {
		dc, dt, err := documentType(m, tx, c)
		if nil != err {
			return err
		}
		doc, err := document.FromJSON(raw, dt)
		if nil != err {
			return err
		}
		if m.verbose {
			fmt.Fprintf(m.e, "document: %s  block: %d  time: %d\n", doc.ID, block.Height, block.TimeMs)
		}
		stored, err = f(m.drive, tx, dc, dt, doc, block)
		return err
	})
	if nil != err {
		return err
	}

	b, err := stored.JSON()
	if nil != err {
		return err
	}
	return printJson(m.w, json.RawMessage(b))
}

func runDelete(c *cli.Context) error {
	m := c.App.Metadata["config"].(*metadata)

	id, err := identifier(c, "id")
	if nil != err {
		return err
	}
	block := blockInfo(c)

	err = inTransaction(m, func(tx *storage.Transaction) error {
		dc, dt, err := documentType(m, tx, c)
		if nil != err {
			return err
		}
		return m.drive.Delete(tx, dc, dt, id, block)
	})
	if nil != err {
		return err
	}
	return printJson(m.w, map[string]interface{}{
		"deleted": id.String(),
		"time":    block.TimeMs,
	})
}

func runFetch(c *cli.Context) error {
	m := c.App.Metadata["config"].(*metadata)

	id, err := identifier(c, "id")
	if nil != err {
		return err
	}
	at := c.Int64("at")

	return inSnapshot(m, func(tx *storage.Transaction) error {
		dc, dt, err := documentType(m, tx, c)
		if nil != err {
			return err
		}

		var doc *document.Document
		if at < 0 {
			doc, err = m.drive.Fetch(tx, dc, dt, id)
		} else {
			doc, err = m.drive.FetchAt(tx, dc, dt, id, at)
		}
		if nil != err {
			return err
		}

		b, err := doc.JSON()
		if nil != err {
			return err
		}
		return printJson(m.w, json.RawMessage(b))
	})
}
