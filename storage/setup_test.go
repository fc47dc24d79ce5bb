// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage_test

import (
	"os"
	"testing"

	"github.com/bitmark-inc/drive/storage"
	"github.com/bitmark-inc/logger"
)

const (
	dir = "testing"
)

func setupTestLogger() {
	removeFiles()
	_ = os.Mkdir(dir, 0700)

	logging := logger.Configuration{
		Directory: dir,
		File:      "testing.log",
		Size:      1048576,
		Count:     10,
		Console:   false,
		Levels: map[string]string{
			logger.DefaultTag: "critical",
		},
	}

	// start logging
	_ = logger.Initialise(logging)
}

func teardownTestLogger() {
	logger.Finalise()
	removeFiles()
}

func removeFiles() {
	_ = os.RemoveAll(dir)
}

func TestMain(m *testing.M) {
	setupTestLogger()
	rc := m.Run()
	teardownTestLogger()
	os.Exit(rc)
}

// both backends in memory
var backends = []string{storage.LevelDBBackend, storage.BadgerBackend}

func openStore(t *testing.T, backend string) *storage.Store {
	s, err := storage.Open(storage.Configuration{Backend: backend})
	if nil != err {
		t.Fatalf("open %s error: %s", backend, err)
	}
	return s
}

func begin(t *testing.T, s *storage.Store) *storage.Transaction {
	tx, err := s.StartTransaction()
	if nil != err {
		t.Fatalf("start transaction error: %s", err)
	}
	return tx
}

func path(segments ...string) storage.Path {
	p := storage.Path{}
	for _, s := range segments {
		p = append(p, []byte(s))
	}
	return p
}

func mustInsert(t *testing.T, tx *storage.Transaction, p storage.Path, key string, e storage.Element) {
	if err := tx.Insert(p, []byte(key), e); nil != err {
		t.Fatalf("insert %s %q error: %s", p, key, err)
	}
}
