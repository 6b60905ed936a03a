// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package merkle

import (
	"bytes"
	"errors"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/crypto"
)

// EmptyRoot is the on-chain sentinel for "no pool rebalance needed". No valid
// bundle ever commits it.
var EmptyRoot = common.Hash{}

var ErrLeafNotFound = errors.New("leaf not in tree")

// Tree is a Keccak-256 Merkle tree over pre-encoded leaves. Interior nodes
// hash the concatenation of the sorted child pair, so proofs verify without
// position bits; an odd node is promoted unchanged.
type Tree struct {
	leaves []common.Hash
	layers [][]common.Hash
}

// NewTree hashes [encodedLeaves] and builds the tree. An empty input yields a
// tree whose root is EmptyRoot.
func NewTree(encodedLeaves [][]byte) *Tree {
	leaves := make([]common.Hash, len(encodedLeaves))
	for i, leaf := range encodedLeaves {
		leaves[i] = crypto.Keccak256Hash(leaf)
	}
	t := &Tree{leaves: leaves}
	t.build()
	return t
}

func (t *Tree) build() {
	if len(t.leaves) == 0 {
		return
	}
	layer := t.leaves
	t.layers = [][]common.Hash{layer}
	for len(layer) > 1 {
		next := make([]common.Hash, 0, (len(layer)+1)/2)
		for i := 0; i < len(layer); i += 2 {
			if i+1 == len(layer) {
				next = append(next, layer[i])
				continue
			}
			next = append(next, hashPair(layer[i], layer[i+1]))
		}
		t.layers = append(t.layers, next)
		layer = next
	}
}

func hashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return crypto.Keccak256Hash(a[:], b[:])
}

// Root returns the tree root, or EmptyRoot for an empty tree.
func (t *Tree) Root() common.Hash {
	if len(t.layers) == 0 {
		return EmptyRoot
	}
	top := t.layers[len(t.layers)-1]
	return top[0]
}

// HexRoot returns the 0x-prefixed root.
func (t *Tree) HexRoot() string {
	return t.Root().Hex()
}

// LeafCount returns the number of leaves.
func (t *Tree) LeafCount() int {
	return len(t.leaves)
}

// Proof returns the sibling path for the leaf at [index].
func (t *Tree) Proof(index int) ([]common.Hash, error) {
	if index < 0 || index >= len(t.leaves) {
		return nil, ErrLeafNotFound
	}
	var proof []common.Hash
	for _, layer := range t.layers[:len(t.layers)-1] {
		sibling := index ^ 1
		if sibling < len(layer) {
			proof = append(proof, layer[sibling])
		}
		index >>= 1
	}
	return proof, nil
}

// Verify checks [proof] for an encoded leaf against [root].
func Verify(root common.Hash, encodedLeaf []byte, proof []common.Hash) bool {
	node := crypto.Keccak256Hash(encodedLeaf)
	for _, sibling := range proof {
		node = hashPair(node, sibling)
	}
	return node == root
}
