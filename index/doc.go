// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package index - where documents and their index entries live in the tree
//
// paths are lists of keys from the root, a contract id is the raw 32
// bytes and a document id likewise
//
//   path                                key              element
//   ----------------------------------  ---------------  ------------------------------
//   []                                  contractId       tree
//   [contractId]                        "$contract"      item: varint(version) ++ JSON
//   [contractId]                        typeName         tree
//   [contractId, type]                  "primary"        tree
//   [contractId, type]                  "indices"        tree
//   [contractId, type]                  "history"        tree (history types only)
//   [contractId, type]                  "deleted"        tree
//   [contractId, type, "primary"]       id               item: canonical document
//   [contractId, type, "indices"]       signature        tree
//   [contractId, type, "indices", sig]  index key        reference -> primary, id
//   [contractId, type, "history"]       id               tree
//   [contractId, type, "history", id]   be64(time ms)    item: canonical document or empty
//   [contractId, type, "deleted"]       id               item: varint(last revision)
//
// an index key is the field key of every index property in index
// order:
//
//   0x00                    value absent
//   0x01 ++ key bytes       value present
//
// with every byte inverted for a descending property; the document id
// is appended unless the index is unique and every value is present,
// so a unique index only ever holds one key for a complete value
//
// the primary index ($id) is keyed by the raw id alone
package index
