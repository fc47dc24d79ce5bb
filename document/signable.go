// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package document

import (
	"github.com/bitmark-inc/drive/codec"
	"github.com/bitmark-inc/drive/contract"
	"github.com/bitmark-inc/drive/value"
)

// Signable - the capabilities a state transition needs from a document
type Signable interface {
	ToCanonicalBytes(dt *contract.DocumentType) ([]byte, error)
	SignatureBytes(dt *contract.DocumentType) ([]byte, error)
	Owner() value.Identifier
}

var _ Signable = (*Document)(nil)

// SignatureBytes - the bytes an owner signs
//
//   varint(len name) ++ document type name ++ canonical form
func (d *Document) SignatureBytes(dt *contract.DocumentType) ([]byte, error) {
	b, err := d.ToCanonicalBytes(dt)
	if nil != err {
		return nil, err
	}
	buffer := codec.AppendVarint64(make([]byte, 0, len(dt.Name)+len(b)+1), uint64(len(dt.Name)))
	buffer = append(buffer, dt.Name...)
	return append(buffer, b...), nil
}

// Owner - the identity that may update or delete the document
func (d *Document) Owner() value.Identifier {
	return d.OwnerID
}
