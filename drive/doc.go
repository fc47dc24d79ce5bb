// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package drive - contracts and documents on a provable tree store
//
// every operation takes the transaction it runs in; a failed write
// leaves partial changes in that transaction so the caller rolls it
// back, a block is committed only when all of its writes succeed
//
// layout below the root:
//
//   [contractId] "$contract"                 varint(version) ++ contract JSON
//   [contractId, type, "primary"]            id -> canonical document
//   [contractId, type, "indices", signature] index key -> reference
//   [contractId, type, "history", id]        block time -> revision
//   [contractId, type, "deleted"]            id -> varint(last revision)
package drive
