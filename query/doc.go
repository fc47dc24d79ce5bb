// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package query - plan and run document queries
//
// a request is reduced to one index of the document type and a list of
// disjoint key ranges inside that index subtree; the ranges are built
// from equality values first, then one in clause, then one range
// clause, in index order
//
// a query with a block time is answered from the revision history
// instead of the index, the same key ranges then filter and order the
// revisions found
package query
