// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/bitmark-inc/drive/fault"
	"github.com/bitmark-inc/logger"
)

// backend names
const (
	LevelDBBackend = "leveldb"
	BadgerBackend  = "badger"
)

// for database version
var versionKey = []byte{0x00, 'V', 'E', 'R', 'S', 'I', 'O', 'N'}

const currentDBVersion = 0x100

// Configuration - database settings
//
// an empty directory selects an in-memory database
type Configuration struct {
	Backend   string `gluamapper:"backend" json:"backend"`
	Directory string `gluamapper:"directory" json:"directory"`
	Name      string `gluamapper:"name" json:"name"`
	ReadOnly  bool   `gluamapper:"read_only" json:"read_only"`
}

// Store - an open tree database
type Store struct {
	sync.Mutex
	backend Backend
	log     *logger.L
	closed  bool
}

// Open - open up the database selected by the configuration
func Open(configuration Configuration) (*Store, error) {
	log := logger.New("storage")

	var backend Backend
	var err error

	switch configuration.Backend {
	case "", LevelDBBackend:
		name := ""
		if "" != configuration.Directory {
			name = filepath.Join(configuration.Directory, configuration.Name+".leveldb")
		}
		backend, err = openLevelDB(name, configuration.ReadOnly)
	case BadgerBackend:
		directory := ""
		if "" != configuration.Directory {
			directory = filepath.Join(configuration.Directory, configuration.Name+".badger")
		}
		backend, err = openBadger(directory, configuration.ReadOnly, log)
	default:
		return nil, fault.ErrUnknownBackend
	}
	if nil != err {
		return nil, fault.Storage("open", err)
	}

	s, err := newStore(backend, log, !configuration.ReadOnly)
	if nil != err {
		backend.Close()
		return nil, err
	}
	log.Infof("opened backend: %q  directory: %q  name: %q", configuration.Backend, configuration.Directory, configuration.Name)
	return s, nil
}

// NewStore - wrap an already open backend
func NewStore(backend Backend) (*Store, error) {
	return newStore(backend, logger.New("storage"), true)
}

func newStore(backend Backend, log *logger.L, writable bool) (*Store, error) {
	access, err := backend.Begin()
	if nil != err {
		return nil, fault.Storage("begin", err)
	}
	defer access.Abort()

	versionValue, err := access.Get(versionKey)
	if nil != err {
		return nil, fault.Storage("get", err)
	}

	switch {
	case nil == versionValue && writable:
		// database was empty so tag as current version
		v := make([]byte, 4)
		binary.BigEndian.PutUint32(v, currentDBVersion)
		if err := access.Put(versionKey, v); nil != err {
			return nil, fault.Storage("put", err)
		}
		if err := access.Commit(); nil != err {
			return nil, fault.Storage("commit", err)
		}

	case nil == versionValue:

	case 4 != len(versionValue):
		return nil, fmt.Errorf("incompatible database version length: expected: %d  actual: %d: %w", 4, len(versionValue), fault.ErrIncompatibleDatabase)

	default:
		version := binary.BigEndian.Uint32(versionValue)
		if version > currentDBVersion {
			log.Criticalf("database version: %d > current version: %d", version, currentDBVersion)
			return nil, fault.ErrIncompatibleDatabase
		}
	}

	return &Store{
		backend: backend,
		log:     log,
	}, nil
}

// StartTransaction - begin a read/write transaction
func (s *Store) StartTransaction() (*Transaction, error) {
	s.Lock()
	closed := s.closed
	s.Unlock()
	if closed {
		return nil, fault.ErrNotInitialised
	}

	access, err := s.backend.Begin()
	if nil != err {
		return nil, fault.Storage("begin", err)
	}
	return newTransaction(access, s.log), nil
}

// Close - close the database connection
func (s *Store) Close() error {
	s.Lock()
	defer s.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.log.Info("closing")
	s.log.Flush()
	return fault.Storage("close", s.backend.Close())
}
