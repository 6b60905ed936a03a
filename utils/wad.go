// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package utils

import "math/big"

// Wad is the fixed-point scale for protocol percentages: 1e18 = 100%.
var Wad = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// WadMul multiplies a token amount by a wad-scaled percentage, truncating
// toward zero. The product saturates to the wad scale before division, so
// amount*pct never loses precision ahead of the truncation.
func WadMul(amount, pct *big.Int) *big.Int {
	out := new(big.Int).Mul(amount, pct)
	return out.Quo(out, Wad)
}

// WadComplement returns amount * (1 - pct), truncating toward zero. It is
// computed as amount - WadMul(amount, pct) so that the complement and the fee
// always sum back to the original amount.
func WadComplement(amount, pct *big.Int) *big.Int {
	return new(big.Int).Sub(amount, WadMul(amount, pct))
}

// BigSum returns the sum of [vals] without mutating any input.
func BigSum(vals ...*big.Int) *big.Int {
	out := new(big.Int)
	for _, v := range vals {
		out.Add(out, v)
	}
	return out
}
