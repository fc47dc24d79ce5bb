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
	"github.com/bitmark-inc/drive/storage"
)

type contractReply struct {
	ID      string          `json:"id"`
	OwnerID string          `json:"ownerId"`
	Version uint64          `json:"version"`
	Types   []string        `json:"types"`
	Raw     json.RawMessage `json:"contract,omitempty"`
}

func reply(c *contract.DataContract, full bool) *contractReply {
	r := &contractReply{
		ID:      c.ID.String(),
		OwnerID: c.OwnerID.String(),
		Version: c.Version,
		Types:   make([]string, len(c.Types)),
	}
	for i, dt := range c.Types {
		r.Types[i] = dt.Name
	}
	if full {
		r.Raw = c.Raw
	}
	return r
}

func runApplyContract(c *cli.Context) error {
	return writeContract(c, func(m *metadata, tx *storage.Transaction, dc *contract.DataContract) error {
		return m.drive.ApplyContract(tx, dc)
	})
}

func runUpdateContract(c *cli.Context) error {
	return writeContract(c, func(m *metadata, tx *storage.Transaction, dc *contract.DataContract) error {
		return m.drive.UpdateContract(tx, dc)
	})
}

func writeContract(c *cli.Context, f func(*metadata, *storage.Transaction, *contract.DataContract) error) error {
	m := c.App.Metadata["config"].(*metadata)

	raw, err := readJSON(c, "json")
	if nil != err {
		return err
	}
	dc, err := contract.Parse(raw)
	if nil != err {
		return err
	}
	if m.verbose {
		fmt.Fprintf(m.e, "contract: %s  version: %d\n", dc.ID, dc.Version)
	}

	err = inTransaction(m, func(tx *storage.Transaction) error {
		return f(m, tx, dc)
	})
	if nil != err {
		return err
	}
	return printJson(m.w, reply(dc, false))
}

func runContract(c *cli.Context) error {
	m := c.App.Metadata["config"].(*metadata)

	id, err := identifier(c, "contract")
	if nil != err {
		return err
	}
	return inSnapshot(m, func(tx *storage.Transaction) error {
		dc, err := m.drive.Contract(tx, id)
		if nil != err {
			return err
		}
		return printJson(m.w, reply(dc, true))
	})
}
