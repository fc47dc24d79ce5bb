// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package storage - authenticated hierarchical key/value tree
//
// A tree is a set of nested subtrees.  Each subtree is addressed by
// a path (a list of byte string segments) and holds keys mapped to
// elements.  An element is an item (raw bytes), a reference to some
// other path/key or a tree (the subtree one segment deeper).
//
// Every subtree has a merkle root over its leaves in key order and
// a tree element commits to its child's root, so the root of the
// empty path authenticates the whole database.
//
// Notes:
// 1. ++            = concatenation of byte data
// 2. varint        = Varint64 as in the codec package
// 3. H()           = SHA3-256
// 4. path encoding = varint(segment count) ++ [varint(length) ++ segment]
//
// Physical layout in the underlying ordered key/value database:
//
//   0x00 ++ "VERSION"           - database version
//                                 data: big endian uint32
//   E ++ H(path) ++ key         - one element
//                                 data: kind ++ payload
//
// Element payloads:
//
//   0x01 ++ bytes               - item
//   0x02 ++ path ++ varint(length) ++ key
//                               - reference
//   0x03                        - tree
//
// Hashes:
//
//   item value hash             = H(0x01 ++ bytes)
//   reference value hash        = H(0x02 ++ path ++ varint(length) ++ key)
//   tree value hash             = root of the child subtree
//   leaf                        = H(kind ++ varint(length) ++ key ++ value hash)
//   subtree root                = merkle root of leaves in key order
//                                 (zero digest for an empty subtree)
//
// Two backends are provided: LevelDB (exclusive transactions) and
// Badger (optimistic transactions, a conflicting commit fails).
package storage
