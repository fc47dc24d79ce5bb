// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"io/ioutil"

	"github.com/urfave/cli"

	"github.com/bitmark-inc/drive/document"
	"github.com/bitmark-inc/drive/merkle"
	"github.com/bitmark-inc/drive/storage"
)

type queryReply struct {
	Root      *merkle.Digest    `json:"root,omitempty"`
	Count     int               `json:"count"`
	Documents []json.RawMessage `json:"documents"`
}

func runQuery(c *cli.Context) error {
	m := c.App.Metadata["config"].(*metadata)

	raw := []byte(c.String("query"))
	proofFile := c.String("prove")

	return inSnapshot(m, func(tx *storage.Transaction) error {
		dc, dt, err := documentType(m, tx, c)
		if nil != err {
			return err
		}

		var docs []*document.Document
		var root *merkle.Digest
		if "" == proofFile {
			docs, err = m.drive.Query(tx, dc, dt, raw)
			if nil != err {
				return err
			}
		} else {
			var proof *storage.Proof
			docs, proof, err = m.drive.QueryWithProof(tx, dc, dt, raw)
			if nil != err {
				return err
			}
			r, err := tx.RootHash()
			if nil != err {
				return err
			}
			root = &r
			b, err := proof.MarshalBinary()
			if nil != err {
				return err
			}
			if err := ioutil.WriteFile(proofFile, b, 0600); nil != err {
				return err
			}
			if m.verbose {
				fmt.Fprintf(m.e, "proof: %s  bytes: %d\n", proofFile, len(b))
			}
		}
		return printDocuments(m, root, docs)
	})
}

// the contract is read from the local database, the documents only
// from the proof
func runVerify(c *cli.Context) error {
	m := c.App.Metadata["config"].(*metadata)

	raw := []byte(c.String("query"))
	if err := checkRequired(c, "proof"); nil != err {
		return err
	}
	b, err := ioutil.ReadFile(c.String("proof"))
	if nil != err {
		return err
	}
	proof := &storage.Proof{}
	if err := proof.UnmarshalBinary(b); nil != err {
		return err
	}

	return inSnapshot(m, func(tx *storage.Transaction) error {
		dc, dt, err := documentType(m, tx, c)
		if nil != err {
			return err
		}
		root, docs, err := m.drive.VerifyQuery(proof, dc, dt, raw)
		if nil != err {
			return err
		}
		return printDocuments(m, &root, docs)
	})
}

func printDocuments(m *metadata, root *merkle.Digest, docs []*document.Document) error {
	out, err := documentsJSON(docs)
	if nil != err {
		return err
	}
	return printJson(m.w, &queryReply{
		Root:      root,
		Count:     len(docs),
		Documents: out,
	})
}

func runRootHash(c *cli.Context) error {
	m := c.App.Metadata["config"].(*metadata)

	return inSnapshot(m, func(tx *storage.Transaction) error {
		root, err := tx.RootHash()
		if nil != err {
			return err
		}
		return printJson(m.w, map[string]string{
			"root": root.String(),
		})
	})
}
