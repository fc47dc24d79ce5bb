// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"github.com/syndtr/goleveldb/leveldb"
	ldb_opt "github.com/syndtr/goleveldb/leveldb/opt"
	ldb_storage "github.com/syndtr/goleveldb/leveldb/storage"
	ldb_util "github.com/syndtr/goleveldb/leveldb/util"
)

type levelBackend struct {
	db *leveldb.DB
}

// open a LevelDB database, an empty name gives an in-memory database
func openLevelDB(name string, readOnly bool) (Backend, error) {
	if "" == name {
		db, err := leveldb.Open(ldb_storage.NewMemStorage(), nil)
		if nil != err {
			return nil, err
		}
		return &levelBackend{db: db}, nil
	}

	opt := &ldb_opt.Options{
		ErrorIfExist:   false,
		ErrorIfMissing: readOnly,
		ReadOnly:       readOnly,
	}
	db, err := leveldb.OpenFile(name, opt)
	if nil != err {
		return nil, err
	}
	return &levelBackend{db: db}, nil
}

// Begin - LevelDB transactions are exclusive, this blocks until any
// other open transaction finishes
func (b *levelBackend) Begin() (Access, error) {
	trx, err := b.db.OpenTransaction()
	if nil != err {
		return nil, err
	}
	return &levelAccess{trx: trx}, nil
}

func (b *levelBackend) Close() error {
	return b.db.Close()
}

type levelAccess struct {
	trx *leveldb.Transaction
}

func (a *levelAccess) Abort() {
	a.trx.Discard()
}

func (a *levelAccess) Commit() error {
	return a.trx.Commit()
}

func (a *levelAccess) Delete(key []byte) error {
	return a.trx.Delete(key, nil)
}

func (a *levelAccess) Get(key []byte) ([]byte, error) {
	v, err := a.trx.Get(key, nil)
	if leveldb.ErrNotFound == err {
		return nil, nil
	}
	if nil != err {
		return nil, err
	}
	return v, nil
}

func (a *levelAccess) Put(key []byte, value []byte) error {
	return a.trx.Put(key, value, nil)
}

func (a *levelAccess) Iterate(span *Span, f IterateFunc) error {
	iter := a.trx.NewIterator(&ldb_util.Range{Start: span.Start, Limit: span.Limit}, nil)
	defer iter.Release()

	var ok bool
	if span.Reverse {
		ok = iter.Last()
	} else {
		ok = iter.First()
	}
	for ok {
		more, err := f(iter.Key(), iter.Value())
		if nil != err {
			return err
		}
		if !more {
			break
		}
		if span.Reverse {
			ok = iter.Prev()
		} else {
			ok = iter.Next()
		}
	}
	return iter.Error()
}
