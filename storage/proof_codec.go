// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"github.com/bitmark-inc/drive/codec"
	"github.com/bitmark-inc/drive/fault"
	"github.com/bitmark-inc/drive/merkle"
)

// MarshalBinary - serialise a proof
//
//   varint(layers) ++ [path ++ varint(leaves) ++ [leaf]]
//   leaf = varint(length) ++ key ++ kind ++ value hash ++ 0x00
//        | varint(length) ++ key ++ kind ++ value hash ++ 0x01 ++ varint(length) ++ element
func (p *Proof) MarshalBinary() ([]byte, error) {
	buffer := codec.ToVarint64(uint64(len(p.Layers)))
	for _, layer := range p.Layers {
		buffer = appendPath(buffer, layer.Path)
		buffer = codec.AppendVarint64(buffer, uint64(len(layer.Leaves)))
		for _, leaf := range layer.Leaves {
			buffer = codec.AppendVarint64(buffer, uint64(len(leaf.Key)))
			buffer = append(buffer, leaf.Key...)
			buffer = append(buffer, byte(leaf.Kind))
			buffer = append(buffer, leaf.ValueHash[:]...)
			if nil == leaf.Element {
				buffer = append(buffer, 0x00)
				continue
			}
			b, err := leaf.Element.encode()
			if nil != err {
				return nil, err
			}
			buffer = append(buffer, 0x01)
			buffer = codec.AppendVarint64(buffer, uint64(len(b)))
			buffer = append(buffer, b...)
		}
	}
	return buffer, nil
}

// UnmarshalBinary - inverse of MarshalBinary, the result still needs Verify
func (p *Proof) UnmarshalBinary(buffer []byte) error {
	d := codec.NewDecoder(buffer)
	layerCount, err := d.Varint()
	if nil != err {
		return err
	}

	layers := make([]Layer, 0)
	for i := uint64(0); i < layerCount; i += 1 {
		path, err := readPath(d)
		if nil != err {
			return err
		}
		leafCount, err := d.Varint()
		if nil != err {
			return err
		}
		layer := Layer{Path: path}
		for j := uint64(0); j < leafCount; j += 1 {
			leaf, err := readLeaf(d)
			if nil != err {
				return err
			}
			layer.Leaves = append(layer.Leaves, leaf)
		}
		layers = append(layers, layer)
	}
	if !d.Finished() {
		return fault.ErrCorruptEncoding
	}
	p.Layers = layers
	return nil
}

func readLeaf(d *codec.Decoder) (Leaf, error) {
	key, err := readBytes(d)
	if nil != err {
		return Leaf{}, err
	}
	kind, err := d.Byte()
	if nil != err {
		return Leaf{}, err
	}
	h, err := d.Bytes(merkle.DigestLength)
	if nil != err {
		return Leaf{}, err
	}
	leaf := Leaf{Key: key, Kind: ElementKind(kind)}
	if err := merkle.DigestFromBytes(&leaf.ValueHash, h); nil != err {
		return Leaf{}, err
	}

	flag, err := d.Byte()
	if nil != err {
		return Leaf{}, err
	}
	switch flag {
	case 0x00:
	case 0x01:
		b, err := readBytes(d)
		if nil != err {
			return Leaf{}, err
		}
		leaf.Element, err = decodeElement(b)
		if nil != err {
			return Leaf{}, err
		}
	default:
		return Leaf{}, fault.ErrCorruptEncoding
	}
	return leaf, nil
}
