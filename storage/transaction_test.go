// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bitmark-inc/drive/fault"
	"github.com/bitmark-inc/drive/merkle"
	"github.com/bitmark-inc/drive/storage"
)

// build a small tree:
//   [] "c" -> tree
//   [c] "people" -> tree
//   [c, people] "a" / "b" -> items
//   [c] "ref" -> reference to [c, people] "b"
func buildTree(t *testing.T, tx *storage.Transaction) {
	mustInsert(t, tx, path(), "c", storage.NewTree())
	mustInsert(t, tx, path("c"), "people", storage.NewTree())
	mustInsert(t, tx, path("c", "people"), "a", storage.NewItem([]byte("Adey")))
	mustInsert(t, tx, path("c", "people"), "b", storage.NewItem([]byte("Briney")))
	mustInsert(t, tx, path("c"), "ref", storage.NewReference(path("c", "people"), []byte("b")))
}

func TestInsertGet(t *testing.T) {
	for _, backend := range backends {
		s := openStore(t, backend)
		tx := begin(t, s)
		buildTree(t, tx)

		e, err := tx.Get(path("c", "people"), []byte("a"))
		assert.Nil(t, err, "%s: get error", backend)
		assert.Equal(t, storage.ItemKind, e.Kind, "%s: kind", backend)
		assert.Equal(t, []byte("Adey"), e.Value, "%s: value", backend)

		e, err = tx.Get(path("c"), []byte("ref"))
		assert.Nil(t, err, "%s: get error", backend)
		assert.Equal(t, storage.ReferenceKind, e.Kind, "%s: kind", backend)
		assert.True(t, e.Reference.Path.Equal(path("c", "people")), "%s: reference path", backend)

		e, err = tx.Get(path("c", "people"), []byte("zz"))
		assert.Nil(t, err, "%s: absent key error", backend)
		assert.Nil(t, e, "%s: absent key found", backend)

		_, err = tx.Get(path("c", "missing"), []byte("a"))
		assert.Equal(t, fault.ErrPathNotFound, err, "%s: missing path", backend)

		_, err = tx.Get(path("c", "people", "a"), []byte("x"))
		assert.Equal(t, fault.ErrNotATree, err, "%s: item used as path", backend)

		err = tx.Insert(path("x", "y"), []byte("k"), storage.NewItem(nil))
		assert.Equal(t, fault.ErrPathNotFound, err, "%s: insert without parent", backend)

		tx.Rollback()
		s.Close()
	}
}

func TestDelete(t *testing.T) {
	s := openStore(t, storage.LevelDBBackend)
	defer s.Close()

	tx := begin(t, s)
	defer tx.Rollback()

	buildTree(t, tx)

	err := tx.Delete(path("c"), []byte("people"))
	assert.Equal(t, fault.ErrSubtreeNotEmpty, err, "non-empty subtree deleted")

	err = tx.Delete(path("c", "people"), []byte("zz"))
	assert.Equal(t, fault.ErrKeyNotFound, err, "absent key deleted")

	err = tx.Insert(path("c"), []byte("people"), storage.NewItem([]byte("x")))
	assert.Equal(t, fault.ErrSubtreeNotEmpty, err, "non-empty subtree overwritten")

	assert.Nil(t, tx.Delete(path("c", "people"), []byte("a")), "delete a")
	assert.Nil(t, tx.Delete(path("c", "people"), []byte("b")), "delete b")
	assert.Nil(t, tx.Delete(path("c"), []byte("people")), "delete empty subtree")

	_, err = tx.Get(path("c", "people"), []byte("a"))
	assert.Equal(t, fault.ErrPathNotFound, err, "deleted subtree still present")
}

func TestRootHashDeterministic(t *testing.T) {
	roots := make([]merkle.Digest, 0, len(backends))
	for _, backend := range backends {
		s := openStore(t, backend)
		tx := begin(t, s)

		empty, err := tx.RootHash()
		assert.Nil(t, err, "%s: root hash error", backend)
		assert.True(t, empty.IsZero(), "%s: empty database root", backend)

		buildTree(t, tx)
		root, err := tx.RootHash()
		assert.Nil(t, err, "%s: root hash error", backend)
		assert.False(t, root.IsZero(), "%s: zero root", backend)
		roots = append(roots, root)

		tx.Rollback()
		s.Close()
	}
	assert.Equal(t, roots[0], roots[1], "backends disagree")
}

func TestRootHashOrderIndependent(t *testing.T) {
	s := openStore(t, storage.LevelDBBackend)
	defer s.Close()

	tx := begin(t, s)
	buildTree(t, tx)
	first, err := tx.RootHash()
	assert.Nil(t, err, "root hash error")
	tx.Rollback()

	// same content inserted in another order
	tx = begin(t, s)
	defer tx.Rollback()
	mustInsert(t, tx, path(), "c", storage.NewTree())
	mustInsert(t, tx, path("c"), "ref", storage.NewReference(path("c", "people"), []byte("b")))
	mustInsert(t, tx, path("c"), "people", storage.NewTree())
	mustInsert(t, tx, path("c", "people"), "b", storage.NewItem([]byte("Briney")))

	// a root taken mid-way must not be reused after more writes
	_, err = tx.RootHash()
	assert.Nil(t, err, "root hash error")

	mustInsert(t, tx, path("c", "people"), "a", storage.NewItem([]byte("Adey")))
	second, err := tx.RootHash()
	assert.Nil(t, err, "root hash error")
	assert.Equal(t, first, second, "insert order changed the root")

	mustInsert(t, tx, path("c", "people"), "a", storage.NewItem([]byte("Adey!")))
	third, err := tx.RootHash()
	assert.Nil(t, err, "root hash error")
	assert.NotEqual(t, first, third, "nested change not reflected in the root")
}

func TestCommitRollback(t *testing.T) {
	s := openStore(t, storage.LevelDBBackend)
	defer s.Close()

	tx := begin(t, s)
	buildTree(t, tx)
	committed, _ := tx.RootHash()
	assert.Nil(t, tx.Commit(), "commit error")
	assert.Equal(t, fault.ErrTransactionFinished, tx.Commit(), "second commit")
	tx.Rollback() // no effect after commit

	tx = begin(t, s)
	mustInsert(t, tx, path("c", "people"), "z", storage.NewItem([]byte("Zed")))
	tx.Rollback()

	_, err := tx.Get(path("c"), []byte("people"))
	assert.Equal(t, fault.ErrTransactionFinished, err, "read after rollback")

	tx = begin(t, s)
	defer tx.Rollback()
	root, err := tx.RootHash()
	assert.Nil(t, err, "root hash error")
	assert.Equal(t, committed, root, "rollback left a change behind")
}

func TestReopen(t *testing.T) {
	directory := filepath.Join(dir, "reopen")
	for _, backend := range backends {
		configuration := storage.Configuration{
			Backend:   backend,
			Directory: directory,
			Name:      "tree",
		}
		s, err := storage.Open(configuration)
		if nil != err {
			t.Fatalf("%s: open error: %s", backend, err)
		}
		tx := begin(t, s)
		buildTree(t, tx)
		before, _ := tx.RootHash()
		assert.Nil(t, tx.Commit(), "%s: commit error", backend)
		assert.Nil(t, s.Close(), "%s: close error", backend)

		s, err = storage.Open(configuration)
		if nil != err {
			t.Fatalf("%s: reopen error: %s", backend, err)
		}
		tx = begin(t, s)
		after, err := tx.RootHash()
		assert.Nil(t, err, "%s: root hash error", backend)
		assert.Equal(t, before, after, "%s: root changed over reopen", backend)
		tx.Rollback()
		s.Close()
	}
}

func TestUnknownBackend(t *testing.T) {
	_, err := storage.Open(storage.Configuration{Backend: "bolt"})
	assert.Equal(t, fault.ErrUnknownBackend, err, "unknown backend accepted")
}

func TestInsertIfNotExists(t *testing.T) {
	for _, backend := range backends {
		s := openStore(t, backend)
		tx := begin(t, s)
		buildTree(t, tx)
		before, _ := tx.RootHash()

		ok, err := tx.InsertIfNotExists(path("c", "people"), []byte("a"), storage.NewItem([]byte("other")))
		assert.Nil(t, err, "%s: occupied key error", backend)
		assert.False(t, ok, "%s: occupied key overwritten", backend)
		after, _ := tx.RootHash()
		assert.Equal(t, before, after, "%s: root changed", backend)

		ok, err = tx.InsertIfNotExists(path("c", "people"), []byte("c"), storage.NewItem([]byte("Cammi")))
		assert.Nil(t, err, "%s: free key error", backend)
		assert.True(t, ok, "%s: free key not written", backend)
		e, _ := tx.Get(path("c", "people"), []byte("c"))
		assert.Equal(t, []byte("Cammi"), e.Value, "%s: value", backend)

		_, err = tx.InsertIfNotExists(path("x"), []byte("c"), storage.NewItem(nil))
		assert.Equal(t, fault.ErrPathNotFound, err, "%s: missing path", backend)
		tx.Rollback()
		s.Close()
	}
}

func TestResolve(t *testing.T) {
	for _, backend := range backends {
		s := openStore(t, backend)
		tx := begin(t, s)
		buildTree(t, tx)

		v, err := tx.Resolve(path("c"), []byte("ref"))
		assert.Nil(t, err, "%s: resolve error", backend)
		assert.Equal(t, []byte("Briney"), v, "%s: reference target", backend)

		v, err = tx.Resolve(path("c", "people"), []byte("a"))
		assert.Nil(t, err, "%s: resolve error", backend)
		assert.Equal(t, []byte("Adey"), v, "%s: item", backend)

		v, err = tx.Resolve(path("c"), []byte("nobody"))
		assert.Nil(t, err, "%s: absent error", backend)
		assert.Nil(t, v, "%s: absent value", backend)

		assert.Nil(t, tx.Delete(path("c", "people"), []byte("b")), "%s: delete error", backend)
		_, err = tx.Resolve(path("c"), []byte("ref"))
		assert.True(t, fault.IsErrNotFound(err), "%s: dangling reference: %v", backend, err)
		tx.Rollback()
		s.Close()
	}
}
