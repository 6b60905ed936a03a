// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package interfaces

import (
	"math/big"

	"github.com/luxfi/geth/common"
)

// Deposit is a user deposit recorded by an origin SpokePool. Percentages
// (relayer fee, realized LP fee) are wad-scaled: 1e18 is 100%. Identity is
// (OriginChainID, DepositID); the event source enforces global uniqueness.
type Deposit struct {
	DepositID          uint32
	OriginChainID      uint64
	DestinationChainID uint64
	Depositor          common.Address
	Recipient          common.Address
	OriginToken        common.Address
	DestinationToken   common.Address
	Amount             *big.Int
	RelayerFeePct      *big.Int
	RealizedLpFeePct   *big.Int
	QuoteTimestamp     uint32
	// QuoteBlockNumber is the mainnet block the quote timestamp resolves to.
	QuoteBlockNumber uint64
}

// DepositWithBlock carries the origin-chain block the deposit landed in.
type DepositWithBlock struct {
	Deposit
	BlockNumber uint64
}

// DepositKey is the global identity of a deposit.
type DepositKey struct {
	OriginChainID uint64
	DepositID     uint32
}

// Key returns the deposit's global identity.
func (d *Deposit) Key() DepositKey {
	return DepositKey{OriginChainID: d.OriginChainID, DepositID: d.DepositID}
}

// Fill is a relayer's delivery against a deposit, recorded by the destination
// SpokePool. It repeats the deposit fields as emitted on-chain.
type Fill struct {
	Deposit
	FillAmount        *big.Int
	TotalFilledAmount *big.Int
	RepaymentChainID  uint64
	Relayer           common.Address
	IsSlowRelay       bool
}

// FillWithBlock carries the fill's destination-chain block coordinates.
type FillWithBlock struct {
	Fill
	BlockNumber      uint64
	TransactionIndex uint32
	LogIndex         uint32
}

// IsFirstFill reports whether this is the earliest fill for its deposit. The
// first fill is the only one whose cumulative total equals its own amount.
func (f *Fill) IsFirstFill() bool {
	return f.TotalFilledAmount.Cmp(f.FillAmount) == 0
}

// FullyFilled reports whether the fill completes its deposit.
func (f *Fill) FullyFilled() bool {
	return f.TotalFilledAmount.Cmp(f.Amount) == 0
}

// UnfilledDeposit is a deposit with a positive remainder after all fills in
// the loaded history are accounted for.
type UnfilledDeposit struct {
	Deposit             Deposit
	UnfilledAmount      *big.Int
	HasFirstFillInRange bool
}

// PendingRootBundle mirrors the HubPool's view of a pending proposal.
type PendingRootBundle struct {
	Proposer                        common.Address
	ChallengePeriodEndTimestamp     uint64
	BundleEvaluationBlockNumbers    []uint64
	UnclaimedPoolRebalanceLeafCount uint64
	PoolRebalanceRoot               common.Hash
	RelayerRefundRoot               common.Hash
	SlowRelayRoot                   common.Hash
}

// TokenInfo describes a token for human-readable diagnostics.
type TokenInfo struct {
	Symbol   string
	Decimals uint8
}
