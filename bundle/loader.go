// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bundle

import (
	"fmt"
	"math/big"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/log"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/luxfi/dataworker/interfaces"
	"github.com/luxfi/dataworker/utils"
)

// unfilledTracker follows one deposit across its in-range fills.
type unfilledTracker struct {
	deposit             interfaces.Deposit
	maxTotalFilled      *big.Int
	hasFirstFillInRange bool
}

// LoadData walks every ordered (origin, destination) chain pair, correlates
// fills with deposits and accumulates the refund-credit and unfilled-deposit
// maps. [blockRanges] is index-aligned with [chainIDs]; chainIDs[0] is the
// hub chain, whose range end pins token-mapping lookups.
func LoadData(blockRanges []BlockRange, clients *interfaces.Clients, chainIDs []uint64, logger log.Logger) (*Data, error) {
	if clients.HubPool == nil || !clients.HubPool.IsUpdated() {
		return nil, ErrHubPoolNotUpdated
	}
	if clients.ConfigStore == nil || !clients.ConfigStore.IsUpdated() {
		return nil, ErrConfigStoreNotUpdated
	}
	if len(blockRanges) != len(chainIDs) {
		return nil, fmt.Errorf("%w: %d ranges for %d chains", ErrBlockRangeMismatch, len(blockRanges), len(chainIDs))
	}
	for _, chainID := range chainIDs {
		client, ok := clients.SpokePools[chainID]
		if !ok || !client.IsUpdated() {
			return nil, fmt.Errorf("%w: chain %d", ErrSpokePoolNotUpdated, chainID)
		}
	}

	data := newData(chainIDs, blockRanges)
	endMainnetBlock := blockRanges[0].End
	seenDeposits := mapset.NewThreadUnsafeSet[interfaces.DepositKey]()
	trackers := make(map[interfaces.DepositKey]*unfilledTracker)

	for i, originChainID := range chainIDs {
		originClient := clients.SpokePools[originChainID]
		originRange := blockRanges[i]
		for j, destinationChainID := range chainIDs {
			if originChainID == destinationChainID {
				continue
			}
			destinationClient := clients.SpokePools[destinationChainID]
			destinationRange := blockRanges[j]

			// In-range deposits bound for this destination. The earliest
			// indexed occurrence of a deposit key wins.
			for _, deposit := range originClient.GetDepositsForDestinationChain(destinationChainID) {
				if !originRange.Contains(deposit.BlockNumber) {
					continue
				}
				if !seenDeposits.Add(deposit.Key()) {
					continue
				}
				data.Deposits = append(data.Deposits, deposit)
			}

			for _, fill := range destinationClient.GetFillsWithBlockForOriginChain(originChainID) {
				if _, ok := originClient.GetDepositForFill(fill.Fill); !ok {
					data.InvalidFills = append(data.InvalidFills, fill)
					continue
				}

				// Keep every valid fill, in range or not: out-of-range
				// history tells the pool rebalance builder whether a prior
				// bundle already dispatched a slow fill for this deposit.
				data.AllValidFills = append(data.AllValidFills, fill)
				if !destinationRange.Contains(fill.BlockNumber) {
					continue
				}

				refundChainID, refundToken, err := refundDestination(clients, fill, endMainnetBlock)
				if err != nil {
					return nil, err
				}

				group := data.FillsToRefund.Group(refundChainID, refundToken)
				refund := utils.WadComplement(fill.FillAmount, fill.RealizedLpFeePct)
				group.TotalRefundAmount.Add(group.TotalRefundAmount, refund)
				group.RealizedLpFees.Add(group.RealizedLpFees, utils.WadMul(fill.FillAmount, fill.RealizedLpFeePct))
				group.Fills = append(group.Fills, fill)
				group.addRefund(fill.Relayer, refund)

				updateTracker(trackers, fill)
				if !fill.IsSlowRelay {
					key := fill.Deposit.Key()
					data.slowFillCandidates[key] = append(data.slowFillCandidates[key], fill)
				}
			}
		}
	}

	for key, tracker := range trackers {
		data.firstFillInRange[key] = tracker.hasFirstFillInRange
	}
	data.UnfilledDeposits = flattenUnfilled(trackers)

	if len(data.InvalidFills) > 0 {
		logger.Info("Invalid fills in range", "count", len(data.InvalidFills))
	}
	return data, nil
}

// refundDestination derives where a fill's refund is paid. Slow-relay fills
// are always refunded on the deposit's destination chain in the destination
// token; fast fills are refunded on their repayment chain in that chain's L2
// counterpart of the filled token.
func refundDestination(clients *interfaces.Clients, fill interfaces.FillWithBlock, endMainnetBlock uint64) (uint64, common.Address, error) {
	if fill.IsSlowRelay {
		return fill.DestinationChainID, fill.DestinationToken, nil
	}
	l1Token, err := clients.HubPool.GetL1TokenCounterpartAtBlock(fill.DestinationChainID, fill.DestinationToken, endMainnetBlock)
	if err != nil {
		return 0, common.Address{}, fmt.Errorf("resolving l1 counterpart for fill of deposit %d: %w", fill.DepositID, err)
	}
	return fill.RepaymentChainID, clients.HubPool.GetDestinationTokenForL1Token(l1Token, fill.RepaymentChainID), nil
}

func updateTracker(trackers map[interfaces.DepositKey]*unfilledTracker, fill interfaces.FillWithBlock) {
	key := fill.Deposit.Key()
	tracker, ok := trackers[key]
	if !ok {
		tracker = &unfilledTracker{
			deposit:        fill.Deposit,
			maxTotalFilled: new(big.Int),
		}
		trackers[key] = tracker
	}
	if fill.TotalFilledAmount.Cmp(tracker.maxTotalFilled) > 0 {
		tracker.maxTotalFilled = new(big.Int).Set(fill.TotalFilledAmount)
	}
	if fill.IsFirstFill() {
		tracker.hasFirstFillInRange = true
	}
}

// flattenUnfilled emits one UnfilledDeposit per deposit with a positive
// remainder, in deposit-key order.
func flattenUnfilled(trackers map[interfaces.DepositKey]*unfilledTracker) []interfaces.UnfilledDeposit {
	keys := maps.Keys(trackers)
	slices.SortFunc(keys, compareDepositKeys)

	var out []interfaces.UnfilledDeposit
	for _, key := range keys {
		tracker := trackers[key]
		unfilled := new(big.Int).Sub(tracker.deposit.Amount, tracker.maxTotalFilled)
		if unfilled.Sign() <= 0 {
			continue
		}
		out = append(out, interfaces.UnfilledDeposit{
			Deposit:             tracker.deposit,
			UnfilledAmount:      unfilled,
			HasFirstFillInRange: tracker.hasFirstFillInRange,
		})
	}
	return out
}
