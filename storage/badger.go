// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"bytes"

	"github.com/dgraph-io/badger/v4"

	"github.com/bitmark-inc/logger"
)

type badgerBackend struct {
	db *badger.DB
}

// badger wants Warningf, the logger channel has Warnf
type badgerLogger struct {
	log *logger.L
}

func (l badgerLogger) Errorf(format string, arguments ...interface{}) {
	l.log.Errorf(format, arguments...)
}

func (l badgerLogger) Warningf(format string, arguments ...interface{}) {
	l.log.Warnf(format, arguments...)
}

func (l badgerLogger) Infof(format string, arguments ...interface{}) {
	l.log.Infof(format, arguments...)
}

func (l badgerLogger) Debugf(format string, arguments ...interface{}) {
	l.log.Debugf(format, arguments...)
}

// open a Badger database, an empty directory gives an in-memory database
func openBadger(directory string, readOnly bool, log *logger.L) (Backend, error) {
	opts := badger.DefaultOptions(directory).
		WithLogger(badgerLogger{log: log}).
		WithReadOnly(readOnly)
	if "" == directory {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if nil != err {
		return nil, err
	}
	return &badgerBackend{db: db}, nil
}

func (b *badgerBackend) Begin() (Access, error) {
	return &badgerAccess{txn: b.db.NewTransaction(true)}, nil
}

func (b *badgerBackend) Close() error {
	return b.db.Close()
}

type badgerAccess struct {
	txn *badger.Txn
}

func (a *badgerAccess) Abort() {
	a.txn.Discard()
}

// Commit - fails with badger.ErrConflict if a concurrent transaction
// committed a key this one read
func (a *badgerAccess) Commit() error {
	return a.txn.Commit()
}

func (a *badgerAccess) Delete(key []byte) error {
	return a.txn.Delete(copyBytes(key))
}

func (a *badgerAccess) Get(key []byte) ([]byte, error) {
	item, err := a.txn.Get(key)
	if badger.ErrKeyNotFound == err {
		return nil, nil
	}
	if nil != err {
		return nil, err
	}
	return item.ValueCopy(nil)
}

// badger keeps the slices until commit so they must not be reused
func (a *badgerAccess) Put(key []byte, value []byte) error {
	return a.txn.Set(copyBytes(key), copyBytes(value))
}

func (a *badgerAccess) Iterate(span *Span, f IterateFunc) error {
	opts := badger.DefaultIteratorOptions
	opts.Reverse = span.Reverse
	iter := a.txn.NewIterator(opts)
	defer iter.Close()

	if span.Reverse {
		// reverse seek finds the largest key <= the seek key
		if nil == span.Limit {
			iter.Rewind()
		} else {
			iter.Seek(span.Limit)
		}
	} else {
		iter.Seek(span.Start)
	}

	for ; iter.Valid(); iter.Next() {
		item := iter.Item()
		key := item.Key()
		if nil != span.Limit && bytes.Compare(key, span.Limit) >= 0 {
			if span.Reverse {
				continue
			}
			break
		}
		if nil != span.Start && bytes.Compare(key, span.Start) < 0 {
			if span.Reverse {
				break
			}
			continue
		}
		v, err := item.ValueCopy(nil)
		if nil != err {
			return err
		}
		more, err := f(key, v)
		if nil != err {
			return err
		}
		if !more {
			break
		}
	}
	return nil
}

func copyBytes(b []byte) []byte {
	return append([]byte{}, b...)
}
