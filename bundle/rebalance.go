// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bundle

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/luxfi/geth/common"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/luxfi/dataworker/interfaces"
	"github.com/luxfi/dataworker/merkle"
)

// BuildConfig carries the optional protocol-parameter overrides. A zero or
// nil field defers to the ConfigStore value at the bundle-end mainnet block.
type BuildConfig struct {
	MaxRefundCount          uint64
	MaxL1TokenCount         uint64
	TokenTransferThresholds map[common.Address]*big.Int
}

func (c *BuildConfig) transferThreshold(clients *interfaces.Clients, l1Token common.Address, endMainnetBlock uint64) (*big.Int, error) {
	if c != nil {
		if threshold, ok := c.TokenTransferThresholds[l1Token]; ok {
			return threshold, nil
		}
	}
	return clients.ConfigStore.GetTokenTransferThresholdForBlock(l1Token, endMainnetBlock)
}

func (c *BuildConfig) maxL1TokenCount(clients *interfaces.Clients, endMainnetBlock uint64) (uint64, error) {
	if c != nil && c.MaxL1TokenCount > 0 {
		return c.MaxL1TokenCount, nil
	}
	return clients.ConfigStore.GetMaxL1TokenCountForPoolRebalanceLeafForBlock(endMainnetBlock)
}

func (c *BuildConfig) maxRefundCount(clients *interfaces.Clients, endMainnetBlock uint64) (uint64, error) {
	if c != nil && c.MaxRefundCount > 0 {
		return c.MaxRefundCount, nil
	}
	return clients.ConfigStore.GetMaxRefundCountForRelayerRefundLeafForBlock(endMainnetBlock)
}

// PoolRebalanceLeaf instructs the HubPool how much of each L1 token to move
// to or from one chain's SpokePool. All inner vectors are index-aligned.
type PoolRebalanceLeaf struct {
	ChainID         uint64
	GroupIndex      uint64
	BundleLpFees    []*big.Int
	NetSendAmounts  []*big.Int
	RunningBalances []*big.Int
	L1Tokens        []common.Address
	LeafID          uint32
}

// Encode packs the leaf into the canonical word layout.
func (l *PoolRebalanceLeaf) Encode() []byte {
	var enc merkle.Encoder
	return enc.
		Uint64(l.ChainID).
		Uint64(l.GroupIndex).
		Uint64(uint64(l.LeafID)).
		UintVec(l.BundleLpFees).
		IntVec(l.NetSendAmounts).
		IntVec(l.RunningBalances).
		AddressVec(l.L1Tokens).
		Bytes()
}

// PoolRebalanceRoot is the committed pool rebalance artifact plus the
// accounting maps the refund root builder borrows.
type PoolRebalanceRoot struct {
	Leaves []PoolRebalanceLeaf
	Tree   *merkle.Tree
	// RunningBalances holds the pre-threshold balances; NetSendAmounts and
	// CarriedBalances the post-policy split.
	RunningBalances RunningBalances
	NetSendAmounts  RunningBalances
	CarriedBalances RunningBalances
	RealizedLpFees  RunningBalances
}

// BuildPoolRebalanceRoot derives running balances from the refund credits,
// corrects for slow fills a prior bundle over-provisioned, subtracts in-range
// deposit outflows and emits per-chain leaves chunked by the L1-token cap.
func BuildPoolRebalanceRoot(endMainnetBlock uint64, data *Data, clients *interfaces.Clients, cfg *BuildConfig) (*PoolRebalanceRoot, error) {
	root := &PoolRebalanceRoot{
		RunningBalances: make(RunningBalances),
		NetSendAmounts:  make(RunningBalances),
		CarriedBalances: make(RunningBalances),
		RealizedLpFees:  make(RunningBalances),
	}

	if err := initFromRefunds(root, endMainnetBlock, data, clients); err != nil {
		return nil, err
	}
	if err := subtractSlowFillExcess(root, endMainnetBlock, data, clients); err != nil {
		return nil, err
	}
	if err := subtractDepositOutflows(root, data, clients); err != nil {
		return nil, err
	}
	if err := emitLeaves(root, endMainnetBlock, data, clients, cfg); err != nil {
		return nil, err
	}
	return root, nil
}

// initFromRefunds seeds running balances and LP fees from the refund groups,
// converted to L1 units at the bundle-end mainnet block.
func initFromRefunds(root *PoolRebalanceRoot, endMainnetBlock uint64, data *Data, clients *interfaces.Clients) error {
	for chainID, tokens := range data.FillsToRefund {
		for l2Token, group := range tokens {
			l1Token, err := clients.HubPool.GetL1TokenCounterpartAtBlock(chainID, l2Token, endMainnetBlock)
			if err != nil {
				return fmt.Errorf("resolving l1 counterpart of %s on chain %d: %w", l2Token, chainID, err)
			}
			root.RunningBalances.Add(chainID, l1Token, group.TotalRefundAmount)
			root.RealizedLpFees.Add(chainID, l1Token, group.RealizedLpFees)
		}
	}
	return nil
}

// subtractSlowFillExcess walks every deposit that received fast fills in
// range. If the deposit's first-ever fill predates the destination range, a
// prior bundle committed a slow relay leaf for the then-unfilled amount; each
// in-range fast fill eats into that provisioned liquidity, so the surplus is
// pulled back from the destination chain's running balance.
func subtractSlowFillExcess(root *PoolRebalanceRoot, endMainnetBlock uint64, data *Data, clients *interfaces.Clients) error {
	fillHistory := make(map[interfaces.DepositKey][]interfaces.FillWithBlock)
	for _, fill := range data.AllValidFills {
		key := fill.Deposit.Key()
		fillHistory[key] = append(fillHistory[key], fill)
	}

	keys := maps.Keys(data.slowFillCandidates)
	slices.SortFunc(keys, compareDepositKeys)

	for _, key := range keys {
		if data.firstFillInRange[key] {
			continue
		}
		candidates := data.slowFillCandidates[key]
		deposit := candidates[0].Deposit

		destinationRange, ok := data.RangeFor(deposit.DestinationChainID)
		if !ok {
			continue
		}

		// Highest cumulative fill before the range opened: the remainder at
		// that point is what the prior bundle's slow relay leaf provisioned.
		provisionedFrom := new(big.Int)
		sawPriorFill := false
		for _, fill := range fillHistory[key] {
			if fill.BlockNumber >= destinationRange.Start {
				continue
			}
			sawPriorFill = true
			if fill.TotalFilledAmount.Cmp(provisionedFrom) > 0 {
				provisionedFrom.Set(fill.TotalFilledAmount)
			}
		}
		if !sawPriorFill {
			continue
		}
		provisioned := new(big.Int).Sub(deposit.Amount, provisionedFrom)
		if provisioned.Sign() <= 0 {
			continue
		}

		fastFilled := new(big.Int)
		for _, fill := range candidates {
			fastFilled.Add(fastFilled, fill.FillAmount)
		}
		excess := fastFilled
		if excess.Cmp(provisioned) > 0 {
			excess = provisioned
		}

		l1Token, err := clients.HubPool.GetL1TokenCounterpartAtBlock(deposit.DestinationChainID, deposit.DestinationToken, endMainnetBlock)
		if err != nil {
			return fmt.Errorf("resolving l1 counterpart for slow fill excess of deposit %d: %w", deposit.DepositID, err)
		}
		root.RunningBalances.Sub(deposit.DestinationChainID, l1Token, excess)
	}
	return nil
}

// subtractDepositOutflows debits each in-range deposit at its origin chain.
// The L1 counterpart resolves at the deposit's quote block: fees were priced
// at quote time, not at bundle end.
func subtractDepositOutflows(root *PoolRebalanceRoot, data *Data, clients *interfaces.Clients) error {
	for _, deposit := range data.Deposits {
		l1Token, err := clients.HubPool.GetL1TokenCounterpartAtBlock(deposit.OriginChainID, deposit.OriginToken, deposit.QuoteBlockNumber)
		if err != nil {
			return fmt.Errorf("resolving l1 counterpart for deposit %d: %w", deposit.DepositID, err)
		}
		root.RunningBalances.Sub(deposit.OriginChainID, l1Token, deposit.Amount)
	}
	return nil
}

// emitLeaves walks chains in evaluation order and L1 tokens in address order,
// applies the transfer-threshold policy and chunks each chain's tokens into
// groups of at most the L1-token cap.
func emitLeaves(root *PoolRebalanceRoot, endMainnetBlock uint64, data *Data, clients *interfaces.Clients, cfg *BuildConfig) error {
	maxL1Tokens, err := cfg.maxL1TokenCount(clients, endMainnetBlock)
	if err != nil {
		return fmt.Errorf("reading max l1 token count: %w", err)
	}
	if maxL1Tokens == 0 {
		return fmt.Errorf("max l1 token count is zero")
	}

	leafID := uint32(0)
	for _, chainID := range data.ChainIDs {
		l1Tokens := chainTokens(root, chainID)
		if len(l1Tokens) == 0 {
			continue
		}

		groupIndex := uint64(0)
		for start := 0; start < len(l1Tokens); start += int(maxL1Tokens) {
			end := start + int(maxL1Tokens)
			if end > len(l1Tokens) {
				end = len(l1Tokens)
			}
			leaf := PoolRebalanceLeaf{
				ChainID:    chainID,
				GroupIndex: groupIndex,
				LeafID:     leafID,
			}
			for _, l1Token := range l1Tokens[start:end] {
				threshold, err := cfg.transferThreshold(clients, l1Token, endMainnetBlock)
				if err != nil {
					return fmt.Errorf("reading transfer threshold for %s: %w", l1Token, err)
				}
				balance := root.RunningBalances.Get(chainID, l1Token)
				netSend, carry := applyTransferThreshold(threshold, balance)
				root.NetSendAmounts.Add(chainID, l1Token, netSend)
				root.CarriedBalances.Add(chainID, l1Token, carry)

				leaf.L1Tokens = append(leaf.L1Tokens, l1Token)
				leaf.BundleLpFees = append(leaf.BundleLpFees, root.RealizedLpFees.Get(chainID, l1Token))
				leaf.NetSendAmounts = append(leaf.NetSendAmounts, netSend)
				leaf.RunningBalances = append(leaf.RunningBalances, carry)
			}
			root.Leaves = append(root.Leaves, leaf)
			leafID++
			groupIndex++
		}
	}

	encoded := make([][]byte, len(root.Leaves))
	for i := range root.Leaves {
		encoded[i] = root.Leaves[i].Encode()
	}
	root.Tree = merkle.NewTree(encoded)
	return nil
}

// applyTransferThreshold suppresses dust movements: a balance at or above the
// threshold in magnitude is sent in full and nothing carries forward; a
// smaller balance carries forward in full and nothing is sent.
func applyTransferThreshold(threshold, balance *big.Int) (netSend, carry *big.Int) {
	if new(big.Int).Abs(balance).Cmp(threshold) >= 0 {
		return new(big.Int).Set(balance), new(big.Int)
	}
	return new(big.Int), new(big.Int).Set(balance)
}

// chainTokens returns the chain's L1 tokens (running balances and LP fees
// combined) in ascending address order.
func chainTokens(root *PoolRebalanceRoot, chainID uint64) []common.Address {
	seen := make(map[common.Address]struct{})
	for l1Token := range root.RunningBalances[chainID] {
		seen[l1Token] = struct{}{}
	}
	for l1Token := range root.RealizedLpFees[chainID] {
		seen[l1Token] = struct{}{}
	}
	tokens := maps.Keys(seen)
	slices.SortFunc(tokens, func(a, b common.Address) int {
		return bytes.Compare(a[:], b[:])
	})
	return tokens
}

func compareDepositKeys(a, b interfaces.DepositKey) int {
	if a.OriginChainID != b.OriginChainID {
		if a.OriginChainID < b.OriginChainID {
			return -1
		}
		return 1
	}
	if a.DepositID < b.DepositID {
		return -1
	}
	if a.DepositID > b.DepositID {
		return 1
	}
	return 0
}
