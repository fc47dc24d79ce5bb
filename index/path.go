// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package index

import (
	"encoding/binary"

	"github.com/bitmark-inc/drive/contract"
	"github.com/bitmark-inc/drive/storage"
	"github.com/bitmark-inc/drive/value"
)

// fixed keys of the layout
var (
	ContractKey = []byte("$contract")

	primaryKey = []byte("primary")
	indicesKey = []byte("indices")
	historyKey = []byte("history")
	deletedKey = []byte("deleted")
)

// ContractPath - subtree of one contract
func ContractPath(contractID value.Identifier) storage.Path {
	return storage.Path{contractID[:]}
}

// TypePath - subtree of one document type
func TypePath(c *contract.DataContract, dt *contract.DocumentType) storage.Path {
	return storage.Path{c.ID[:], []byte(dt.Name)}
}

// TypeSubtrees - the keys created below TypePath
func TypeSubtrees(dt *contract.DocumentType) [][]byte {
	keys := [][]byte{primaryKey, indicesKey, deletedKey}
	if dt.KeepsHistory {
		keys = append(keys, historyKey)
	}
	return keys
}

// PrimaryPath - documents keyed by id
func PrimaryPath(c *contract.DataContract, dt *contract.DocumentType) storage.Path {
	return TypePath(c, dt).Child(primaryKey)
}

// IndicesPath - holds one subtree per declared index
func IndicesPath(c *contract.DataContract, dt *contract.DocumentType) storage.Path {
	return TypePath(c, dt).Child(indicesKey)
}

// Path - subtree of one index
func Path(c *contract.DataContract, dt *contract.DocumentType, idx *contract.Index) storage.Path {
	if idx.Primary {
		return PrimaryPath(c, dt)
	}
	return IndicesPath(c, dt).Child([]byte(idx.Signature()))
}

// HistoryPath - holds one revision subtree per document
func HistoryPath(c *contract.DataContract, dt *contract.DocumentType) storage.Path {
	return TypePath(c, dt).Child(historyKey)
}

// RevisionsPath - revisions of one document keyed by time
func RevisionsPath(c *contract.DataContract, dt *contract.DocumentType, id value.Identifier) storage.Path {
	return HistoryPath(c, dt).Child(id[:])
}

// DeletedPath - ids that can no longer be used
func DeletedPath(c *contract.DataContract, dt *contract.DocumentType) storage.Path {
	return TypePath(c, dt).Child(deletedKey)
}

// TimeKey - big endian milliseconds so revisions sort by time
func TimeKey(ms uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], ms)
	return b[:]
}

// TimeFromKey - inverse of TimeKey
func TimeFromKey(key []byte) (uint64, bool) {
	if 8 != len(key) {
		return 0, false
	}
	return binary.BigEndian.Uint64(key), true
}
