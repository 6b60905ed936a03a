// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bundle

import (
	"errors"
	"math/big"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/dataworker/interfaces"
)

var (
	// ErrHubPoolNotUpdated is returned when the HubPool client has not
	// finished its event sync.
	ErrHubPoolNotUpdated = errors.New("hub pool client not updated")

	// ErrConfigStoreNotUpdated is returned when the ConfigStore client has
	// not finished its event sync.
	ErrConfigStoreNotUpdated = errors.New("config store client not updated")

	// ErrSpokePoolNotUpdated is returned when a required SpokePool client is
	// missing or has not finished its event sync.
	ErrSpokePoolNotUpdated = errors.New("spoke pool client not updated")

	// ErrBlockRangeMismatch is returned when the block-range list does not
	// line up with the chain-ID evaluation order.
	ErrBlockRangeMismatch = errors.New("block range count does not match chain list")
)

// BlockRange is an inclusive per-chain block window.
type BlockRange struct {
	Start uint64
	End   uint64
}

// Contains reports whether [block] falls inside the range.
func (r BlockRange) Contains(block uint64) bool {
	return block >= r.Start && block <= r.End
}

// RefundGroup accumulates the refunds owed on one (repayment chain, L2 token)
// pair. Map insertion order is never observed; the refund root builder
// imposes the traversal order.
type RefundGroup struct {
	TotalRefundAmount *big.Int
	RealizedLpFees    *big.Int
	Fills             []interfaces.FillWithBlock
	Refunds           map[common.Address]*big.Int
}

func newRefundGroup() *RefundGroup {
	return &RefundGroup{
		TotalRefundAmount: new(big.Int),
		RealizedLpFees:    new(big.Int),
		Refunds:           make(map[common.Address]*big.Int),
	}
}

// FillsToRefund maps repaymentChainID -> l2Token -> refund group.
type FillsToRefund map[uint64]map[common.Address]*RefundGroup

// Group returns the group for (chainID, l2Token), inserting an empty one if
// absent.
func (f FillsToRefund) Group(chainID uint64, l2Token common.Address) *RefundGroup {
	tokens, ok := f[chainID]
	if !ok {
		tokens = make(map[common.Address]*RefundGroup)
		f[chainID] = tokens
	}
	group, ok := tokens[l2Token]
	if !ok {
		group = newRefundGroup()
		tokens[l2Token] = group
	}
	return group
}

// addRefund credits [amount] to [relayer] inside the group.
func (g *RefundGroup) addRefund(relayer common.Address, amount *big.Int) {
	cur, ok := g.Refunds[relayer]
	if !ok {
		cur = new(big.Int)
		g.Refunds[relayer] = cur
	}
	cur.Add(cur, amount)
}

// RunningBalances maps chainID -> l1Token -> signed balance. The same shape
// carries realized LP fees (non-negative) and net-send amounts.
type RunningBalances map[uint64]map[common.Address]*big.Int

// Get returns the stored balance, or zero if absent. The returned value is
// owned by the map; callers must not mutate it.
func (r RunningBalances) Get(chainID uint64, l1Token common.Address) *big.Int {
	if tokens, ok := r[chainID]; ok {
		if bal, ok := tokens[l1Token]; ok {
			return bal
		}
	}
	return new(big.Int)
}

// Add credits [delta] to (chainID, l1Token), inserting a zero entry first.
func (r RunningBalances) Add(chainID uint64, l1Token common.Address, delta *big.Int) {
	tokens, ok := r[chainID]
	if !ok {
		tokens = make(map[common.Address]*big.Int)
		r[chainID] = tokens
	}
	bal, ok := tokens[l1Token]
	if !ok {
		bal = new(big.Int)
		tokens[l1Token] = bal
	}
	bal.Add(bal, delta)
}

// Sub debits [delta] from (chainID, l1Token).
func (r RunningBalances) Sub(chainID uint64, l1Token common.Address, delta *big.Int) {
	r.Add(chainID, l1Token, new(big.Int).Neg(delta))
}

// Data is the loader's output: a cycle-scoped snapshot consumed by the three
// root builders.
type Data struct {
	// ChainIDs and BlockRanges echo the loader inputs, index-aligned.
	ChainIDs    []uint64
	BlockRanges []BlockRange

	FillsToRefund    FillsToRefund
	UnfilledDeposits []interfaces.UnfilledDeposit
	// AllValidFills holds every fill that matched a deposit, in range or
	// not; the pool rebalance builder needs the full history to detect
	// deposits already slow-filled by a prior bundle.
	AllValidFills []interfaces.FillWithBlock
	Deposits      []interfaces.DepositWithBlock
	// InvalidFills matched no deposit; they never influence any root.
	InvalidFills []interfaces.FillWithBlock

	// slowFillCandidates holds the in-range fast fills per deposit; the pool
	// rebalance builder turns them into excess-from-slow-fill corrections.
	slowFillCandidates map[interfaces.DepositKey][]interfaces.FillWithBlock
	// firstFillInRange records deposits whose first-ever fill landed inside
	// the destination range. Such deposits were never slow-filled before.
	firstFillInRange map[interfaces.DepositKey]bool
}

func newData(chainIDs []uint64, blockRanges []BlockRange) *Data {
	return &Data{
		ChainIDs:           chainIDs,
		BlockRanges:        blockRanges,
		FillsToRefund:      make(FillsToRefund),
		slowFillCandidates: make(map[interfaces.DepositKey][]interfaces.FillWithBlock),
		firstFillInRange:   make(map[interfaces.DepositKey]bool),
	}
}

// RangeFor returns the block range for [chainID].
func (d *Data) RangeFor(chainID uint64) (BlockRange, bool) {
	for i, id := range d.ChainIDs {
		if id == chainID {
			return d.BlockRanges[i], true
		}
	}
	return BlockRange{}, false
}
