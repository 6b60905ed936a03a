// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package merkle

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// Encoder packs scalars into the canonical leaf layout: one 32-byte
// big-endian word per value, dynamic vectors prefixed with a length word.
// This is the layout the settlement contracts hash, so both proposers and
// validators must produce it byte-for-byte.
type Encoder struct {
	buf []byte
}

// Bytes returns the encoded leaf.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Uint64 appends an unsigned scalar word.
func (e *Encoder) Uint64(v uint64) *Encoder {
	word := uint256.NewInt(v).Bytes32()
	e.buf = append(e.buf, word[:]...)
	return e
}

// Uint appends a non-negative big integer word. Negative or oversized values
// are upstream bugs and fail loudly.
func (e *Encoder) Uint(v *big.Int) *Encoder {
	if v.Sign() < 0 {
		panic(fmt.Sprintf("merkle: negative value %s in unsigned lane", v))
	}
	word, overflow := uint256.FromBig(v)
	if overflow {
		panic(fmt.Sprintf("merkle: value %s exceeds 256 bits", v))
	}
	b := word.Bytes32()
	e.buf = append(e.buf, b[:]...)
	return e
}

// Int appends a signed big integer word in two's complement.
func (e *Encoder) Int(v *big.Int) *Encoder {
	if v.Sign() >= 0 {
		return e.Uint(v)
	}
	word, overflow := uint256.FromBig(new(big.Int).Abs(v))
	if overflow {
		panic(fmt.Sprintf("merkle: value %s exceeds 256 bits", v))
	}
	word.Neg(word)
	b := word.Bytes32()
	e.buf = append(e.buf, b[:]...)
	return e
}

// Address appends an address left-padded to a word.
func (e *Encoder) Address(a common.Address) *Encoder {
	var word [32]byte
	copy(word[12:], a[:])
	e.buf = append(e.buf, word[:]...)
	return e
}

// AddressVec appends a length word followed by one word per address.
func (e *Encoder) AddressVec(addrs []common.Address) *Encoder {
	e.Uint64(uint64(len(addrs)))
	for _, a := range addrs {
		e.Address(a)
	}
	return e
}

// UintVec appends a length word followed by one unsigned word per value.
func (e *Encoder) UintVec(vals []*big.Int) *Encoder {
	e.Uint64(uint64(len(vals)))
	for _, v := range vals {
		e.Uint(v)
	}
	return e
}

// IntVec appends a length word followed by one signed word per value.
func (e *Encoder) IntVec(vals []*big.Int) *Encoder {
	e.Uint64(uint64(len(vals)))
	for _, v := range vals {
		e.Int(v)
	}
	return e
}
