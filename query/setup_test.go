// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package query_test

import (
	"bytes"
	"io/ioutil"
	"os"
	"sort"
	"testing"

	"github.com/bitmark-inc/logger"
	"github.com/tidwall/gjson"

	"github.com/bitmark-inc/drive/contract"
	"github.com/bitmark-inc/drive/document"
	"github.com/bitmark-inc/drive/index"
	"github.com/bitmark-inc/drive/storage"
	"github.com/bitmark-inc/drive/value"
)

const (
	dir = "testing"
)

func TestMain(m *testing.M) {
	_ = os.RemoveAll(dir)
	_ = os.Mkdir(dir, 0700)
	_ = logger.Initialise(logger.Configuration{
		Directory: dir,
		File:      "testing.log",
		Size:      1048576,
		Count:     10,
		Levels: map[string]string{
			logger.DefaultTag: "critical",
		},
	})

	rc := m.Run()

	logger.Finalise()
	_ = os.RemoveAll(dir)
	os.Exit(rc)
}

func readFile(t *testing.T, name string) []byte {
	raw, err := ioutil.ReadFile(name)
	if nil != err {
		t.Fatalf("read %s error: %s", name, err)
	}
	return raw
}

func family(t *testing.T) (*contract.DataContract, *contract.DocumentType) {
	c, err := contract.Parse(readFile(t, "../testdata/family-contract.json"))
	if nil != err {
		t.Fatalf("parse contract error: %s", err)
	}
	dt, err := c.DocumentType("person")
	if nil != err {
		t.Fatalf("document type error: %s", err)
	}
	return c, dt
}

// the fixture people, revision 1 created at time 1000
func people(t *testing.T, dt *contract.DocumentType) []*document.Document {
	created := int64(1000)
	docs := []*document.Document{}
	for _, item := range gjson.ParseBytes(readFile(t, "../testdata/people.json")).Array() {
		d, err := document.FromJSON([]byte(item.Raw), dt)
		if nil != err {
			t.Fatalf("person %s error: %s", item.Raw, err)
		}
		d.CreatedAt = &created
		d.UpdatedAt = &created
		docs = append(docs, d)
	}
	return docs
}

func named(t *testing.T, docs []*document.Document, firstName string) *document.Document {
	for _, d := range docs {
		if s, _ := d.Properties.Get("firstName"); value.String(firstName) == s {
			return d
		}
	}
	t.Fatalf("no person named %s", firstName)
	return nil
}

func firstNames(docs []*document.Document) []string {
	names := make([]string, len(docs))
	for i, d := range docs {
		v, _ := d.Properties.Get("firstName")
		names[i] = string(v.(value.String))
	}
	return names
}

func byID(docs []*document.Document) []*document.Document {
	sorted := append([]*document.Document{}, docs...)
	sort.Slice(sorted, func(i, j int) bool { return bytes.Compare(sorted[i].ID[:], sorted[j].ID[:]) < 0 })
	return sorted
}

func begin(t *testing.T) *storage.Transaction {
	s, err := storage.Open(storage.Configuration{Backend: storage.LevelDBBackend})
	if nil != err {
		t.Fatalf("open error: %s", err)
	}
	tx, err := s.StartTransaction()
	if nil != err {
		t.Fatalf("start transaction error: %s", err)
	}
	return tx
}

// create the type subtrees
func prepare(t *testing.T, tx *storage.Transaction, c *contract.DataContract, dt *contract.DocumentType) {
	insert(t, tx, storage.Path{}, c.ID[:], storage.NewTree())
	insert(t, tx, index.ContractPath(c.ID), []byte(dt.Name), storage.NewTree())
	for _, key := range index.TypeSubtrees(dt) {
		insert(t, tx, index.TypePath(c, dt), key, storage.NewTree())
	}
	for _, idx := range dt.Indices {
		insert(t, tx, index.IndicesPath(c, dt), []byte(idx.Signature()), storage.NewTree())
	}
}

// write documents with their index entries and one revision at time
func store(t *testing.T, tx *storage.Transaction, c *contract.DataContract, dt *contract.DocumentType, time uint64, docs ...*document.Document) {
	for _, d := range docs {
		b, err := d.ToCanonicalBytes(dt)
		if nil != err {
			t.Fatalf("canonical bytes error: %s", err)
		}
		entries, err := index.BuildEntries(c, dt, d)
		if nil != err {
			t.Fatalf("entries error: %s", err)
		}
		for _, e := range entries {
			if e.Index.Primary {
				insert(t, tx, e.Path, e.Key, storage.NewItem(b))
			} else {
				insert(t, tx, e.Path, e.Key, storage.NewReference(e.Target.Path, e.Target.Key))
			}
		}
		if dt.KeepsHistory {
			insert(t, tx, index.HistoryPath(c, dt), d.ID[:], storage.NewTree())
			insert(t, tx, index.RevisionsPath(c, dt, d.ID), index.TimeKey(time), storage.NewItem(b))
		}
	}
}

func insert(t *testing.T, tx *storage.Transaction, p storage.Path, key []byte, e storage.Element) {
	if err := tx.Insert(p, key, e); nil != err {
		t.Fatalf("insert %s %x error: %s", p, key, err)
	}
}
