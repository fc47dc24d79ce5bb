// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package contract - data contracts and their document types
//
// a data contract is a JSON document:
//
//   {
//     "$id": "<base58 32 bytes>",
//     "ownerId": "<base58 32 bytes>",
//     "version": 1,
//     "documents": {
//       "<type name>": {
//         "type": "object",
//         "documentsKeepHistory": false,
//         "documentsMutable": true,
//         "indices": [
//           {"name": "<index name>", "unique": false,
//            "properties": [{"<path>": "asc"}, {"<path>": "desc"}]}
//         ],
//         "properties": {"<name>": {"type": "string", ...}, ...},
//         "required": ["<name>", "$createdAt"],
//         "additionalProperties": false
//       }
//     }
//   }
//
// property order inside "properties" is significant: it is the order
// used by the canonical document encoding
//
// every document type also has an implicit unique index on $id which
// is the primary storage slot
package contract
