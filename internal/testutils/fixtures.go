// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package testutils

import (
	"math/big"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/dataworker/interfaces"
)

// Wad-scaled 1%: the default realized LP fee used by fixtures.
var OnePercent = big.NewInt(1e16)

// DepositOpts parameterizes a fixture deposit.
type DepositOpts struct {
	DepositID        uint32
	Origin           uint64
	Destination      uint64
	OriginToken      common.Address
	DestinationToken common.Address
	Amount           int64
	Block            uint64
	QuoteBlock       uint64
}

// NewDeposit builds a deposit with a 1% realized LP fee and deterministic
// depositor/recipient addresses.
func NewDeposit(opts DepositOpts) interfaces.DepositWithBlock {
	return interfaces.DepositWithBlock{
		Deposit: interfaces.Deposit{
			DepositID:          opts.DepositID,
			OriginChainID:      opts.Origin,
			DestinationChainID: opts.Destination,
			Depositor:          common.BytesToAddress([]byte{0xd0, byte(opts.DepositID)}),
			Recipient:          common.BytesToAddress([]byte{0xec, byte(opts.DepositID)}),
			OriginToken:        opts.OriginToken,
			DestinationToken:   opts.DestinationToken,
			Amount:             big.NewInt(opts.Amount),
			RelayerFeePct:      new(big.Int),
			RealizedLpFeePct:   new(big.Int).Set(OnePercent),
			QuoteTimestamp:     1000,
			QuoteBlockNumber:   opts.QuoteBlock,
		},
		BlockNumber: opts.Block,
	}
}

// FillOpts parameterizes a fixture fill against a deposit.
type FillOpts struct {
	Amount         int64
	TotalFilled    int64
	RepaymentChain uint64
	Relayer        common.Address
	IsSlowRelay    bool
	Block          uint64
	TxIndex        uint32
	LogIndex       uint32
}

// NewFill builds a fill repeating [deposit]'s on-chain fields.
func NewFill(deposit interfaces.DepositWithBlock, opts FillOpts) interfaces.FillWithBlock {
	return interfaces.FillWithBlock{
		Fill: interfaces.Fill{
			Deposit:           deposit.Deposit,
			FillAmount:        big.NewInt(opts.Amount),
			TotalFilledAmount: big.NewInt(opts.TotalFilled),
			RepaymentChainID:  opts.RepaymentChain,
			Relayer:           opts.Relayer,
			IsSlowRelay:       opts.IsSlowRelay,
		},
		BlockNumber:      opts.Block,
		TransactionIndex: opts.TxIndex,
		LogIndex:         opts.LogIndex,
	}
}
