// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package merkle

// FullMerkleTree - compute the complete tree from a set of leaf digests
//
// structure is:
//   1. N * leaf digests
//   2. level 1..m digests
//   3. merkle root digest
//
// an odd node at any level is paired with itself
func FullMerkleTree(leaves []Digest) []Digest {

	// compute length of leaves + all tree levels including root
	leafCount := len(leaves)

	totalLength := 1 // all leaves + space for the final root
	for n := leafCount; n > 1; n = (n + 1) / 2 {
		totalLength += n
	}

	tree := make([]Digest, totalLength)
	copy(tree[:], leaves)

	n := leafCount
	j := 0
	for workLength := leafCount; workLength > 1; workLength = (workLength + 1) / 2 {
		for i := 0; i < workLength; i += 2 {
			k := j + 1
			if i+1 == workLength {
				k = j // compensate for odd number
			}
			tree[n] = NewDigestOf(tree[j][:], tree[k][:])
			n += 1
			j = k + 1
		}
	}
	return tree
}

// Root - the root of the full tree over leaves
//
// an empty set of leaves has the zero digest as its root
func Root(leaves []Digest) Digest {
	if 0 == len(leaves) {
		return Digest{}
	}
	tree := FullMerkleTree(leaves)
	return tree[len(tree)-1]
}
