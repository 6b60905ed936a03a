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

// RelayerRefundLeaf instructs one SpokePool how to reimburse relayers for one
// L2 token, and how much excess liquidity to return to the hub.
type RelayerRefundLeaf struct {
	ChainID         uint64
	L2TokenAddress  common.Address
	AmountToReturn  *big.Int
	RefundAddresses []common.Address
	RefundAmounts   []*big.Int
	LeafID          uint32
}

// Encode packs the leaf into the canonical word layout.
func (l *RelayerRefundLeaf) Encode() []byte {
	var enc merkle.Encoder
	return enc.
		Uint64(uint64(l.LeafID)).
		Uint64(l.ChainID).
		Uint(l.AmountToReturn).
		Address(l.L2TokenAddress).
		AddressVec(l.RefundAddresses).
		UintVec(l.RefundAmounts).
		Bytes()
}

// refundLeafBuild is the construction variant: it carries the transient group
// index the final sort consumes. Final leaves never expose it.
type refundLeafBuild struct {
	chainID         uint64
	l2TokenAddress  common.Address
	amountToReturn  *big.Int
	refundAddresses []common.Address
	refundAmounts   []*big.Int
	groupIndex      uint64
}

// RelayerRefundRoot is the committed relayer refund artifact.
type RelayerRefundRoot struct {
	Leaves []RelayerRefundLeaf
	Tree   *merkle.Tree
}

// BuildRelayerRefundRoot groups the cycle's refunds by (repayment chain, L2
// token), chunks oversize groups by the refund cap, injects return-only
// leaves for negative net-send lanes without refunds, and assigns leaf ids in
// the final total order.
func BuildRelayerRefundRoot(endMainnetBlock uint64, data *Data, poolRebalance *PoolRebalanceRoot, clients *interfaces.Clients, cfg *BuildConfig) (*RelayerRefundRoot, error) {
	maxRefunds, err := cfg.maxRefundCount(clients, endMainnetBlock)
	if err != nil {
		return nil, fmt.Errorf("reading max refund count: %w", err)
	}
	if maxRefunds == 0 {
		return nil, fmt.Errorf("max refund count is zero")
	}

	var building []refundLeafBuild

	// Phase A: one leaf chain per refund group, chunked by the refund cap.
	// The first sub-leaf carries the group's full amount to return.
	chainIDs := maps.Keys(data.FillsToRefund)
	slices.Sort(chainIDs)
	for _, chainID := range chainIDs {
		tokens := maps.Keys(data.FillsToRefund[chainID])
		slices.SortFunc(tokens, func(a, b common.Address) int {
			return bytes.Compare(a[:], b[:])
		})
		for _, l2Token := range tokens {
			group := data.FillsToRefund[chainID][l2Token]
			recipients, amounts := sortRefunds(group.Refunds)

			amountToReturn, err := amountToReturnFor(chainID, l2Token, endMainnetBlock, poolRebalance, clients)
			if err != nil {
				return nil, err
			}

			for start := 0; start < len(recipients); start += int(maxRefunds) {
				end := start + int(maxRefunds)
				if end > len(recipients) {
					end = len(recipients)
				}
				leafAmount := new(big.Int)
				if start == 0 {
					leafAmount = amountToReturn
				}
				building = append(building, refundLeafBuild{
					chainID:         chainID,
					l2TokenAddress:  l2Token,
					amountToReturn:  leafAmount,
					refundAddresses: recipients[start:end],
					refundAmounts:   amounts[start:end],
					groupIndex:      uint64(start),
				})
			}
		}
	}

	// Phase B: return-only leaves for negative net-send lanes with no refund
	// group, so SpokePools can hand excess liquidity back even when no
	// relayers are owed there.
	for _, leaf := range poolRebalance.Leaves {
		for i, netSend := range leaf.NetSendAmounts {
			if netSend.Sign() >= 0 {
				continue
			}
			l2Token := clients.HubPool.GetDestinationTokenForL1Token(leaf.L1Tokens[i], leaf.ChainID)
			if hasRefundLeaf(building, leaf.ChainID, l2Token) {
				continue
			}
			building = append(building, refundLeafBuild{
				chainID:        leaf.ChainID,
				l2TokenAddress: l2Token,
				amountToReturn: new(big.Int).Neg(netSend),
				groupIndex:     0,
			})
		}
	}

	// Phase C: total order and leaf ids; the group index is dropped.
	slices.SortFunc(building, func(a, b refundLeafBuild) int {
		if a.chainID != b.chainID {
			if a.chainID < b.chainID {
				return -1
			}
			return 1
		}
		if c := bytes.Compare(a.l2TokenAddress[:], b.l2TokenAddress[:]); c != 0 {
			return c
		}
		if a.groupIndex != b.groupIndex {
			if a.groupIndex < b.groupIndex {
				return -1
			}
			return 1
		}
		panic(fmt.Sprintf("duplicate relayer refund leaf: chain %d token %s group %d", a.chainID, a.l2TokenAddress, a.groupIndex))
	})

	root := &RelayerRefundRoot{Leaves: make([]RelayerRefundLeaf, len(building))}
	encoded := make([][]byte, len(building))
	for i, b := range building {
		root.Leaves[i] = RelayerRefundLeaf{
			ChainID:         b.chainID,
			L2TokenAddress:  b.l2TokenAddress,
			AmountToReturn:  b.amountToReturn,
			RefundAddresses: b.refundAddresses,
			RefundAmounts:   b.refundAmounts,
			LeafID:          uint32(i),
		}
		encoded[i] = root.Leaves[i].Encode()
	}
	root.Tree = merkle.NewTree(encoded)
	return root, nil
}

// sortRefunds orders a group's recipients by descending refund amount, ties
// broken by ascending address. A full tie means the same address appeared
// twice, which the map shape forbids; fail loudly.
func sortRefunds(refunds map[common.Address]*big.Int) ([]common.Address, []*big.Int) {
	recipients := maps.Keys(refunds)
	slices.SortFunc(recipients, func(a, b common.Address) int {
		if c := refunds[b].Cmp(refunds[a]); c != 0 {
			return c
		}
		if c := bytes.Compare(a[:], b[:]); c != 0 {
			return c
		}
		panic(fmt.Sprintf("duplicate refund recipient %s", a))
	})

	amounts := make([]*big.Int, len(recipients))
	for i, recipient := range recipients {
		amounts[i] = refunds[recipient]
	}
	return recipients, amounts
}

// amountToReturnFor derives max(-netSendAmount, 0) for the L1 counterpart of
// (chainID, l2Token), using the pool rebalance builder's net-send output.
func amountToReturnFor(chainID uint64, l2Token common.Address, endMainnetBlock uint64, poolRebalance *PoolRebalanceRoot, clients *interfaces.Clients) (*big.Int, error) {
	l1Token, err := clients.HubPool.GetL1TokenCounterpartAtBlock(chainID, l2Token, endMainnetBlock)
	if err != nil {
		return nil, fmt.Errorf("resolving l1 counterpart of %s on chain %d: %w", l2Token, chainID, err)
	}
	netSend := poolRebalance.NetSendAmounts.Get(chainID, l1Token)
	if netSend.Sign() < 0 {
		return new(big.Int).Neg(netSend), nil
	}
	return new(big.Int), nil
}

func hasRefundLeaf(building []refundLeafBuild, chainID uint64, l2Token common.Address) bool {
	for _, b := range building {
		if b.chainID == chainID && b.l2TokenAddress == l2Token {
			return true
		}
	}
	return false
}
