// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bundle

import (
	"math/big"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/dataworker/internal/testutils"
)

// buildRefundRoots loads the scenario and builds C4 then C3.
func buildRefundRoots(t *testing.T, s *scenario, cfg *BuildConfig) (*Data, *PoolRebalanceRoot, *RelayerRefundRoot) {
	t.Helper()
	data, err := s.load()
	require.NoError(t, err)
	pool, err := BuildPoolRebalanceRoot(s.ranges[0].End, data, s.clients, cfg)
	require.NoError(t, err)
	refund, err := BuildRelayerRefundRoot(s.ranges[0].End, data, pool, s.clients, cfg)
	require.NoError(t, err)
	return data, pool, refund
}

func TestRelayerRefundRootSimple(t *testing.T) {
	s := newScenario()
	d := s.deposit(7, 1000, 150)
	s.fill(d, testutils.FillOpts{
		Amount: 1000, TotalFilled: 1000, RepaymentChain: chainB, Relayer: relayer1, Block: 550,
	})

	_, _, refund := buildRefundRoots(t, s, s.buildConfig())

	// Chain A gets a return-only leaf for the negative net send; chain B the
	// refund leaf.
	require.Len(t, refund.Leaves, 2)

	returnLeaf := refund.Leaves[0]
	require.Equal(t, chainA, returnLeaf.ChainID)
	require.Equal(t, tokenL1, returnLeaf.L2TokenAddress)
	require.Equal(t, big.NewInt(1000), returnLeaf.AmountToReturn)
	require.Empty(t, returnLeaf.RefundAddresses)
	require.Equal(t, uint32(0), returnLeaf.LeafID)

	refundLeaf := refund.Leaves[1]
	require.Equal(t, chainB, refundLeaf.ChainID)
	require.Equal(t, tokenB, refundLeaf.L2TokenAddress)
	require.Zero(t, refundLeaf.AmountToReturn.Sign())
	require.Equal(t, []common.Address{relayer1}, refundLeaf.RefundAddresses)
	require.Equal(t, []*big.Int{big.NewInt(990)}, refundLeaf.RefundAmounts)
	require.Equal(t, uint32(1), refundLeaf.LeafID)
}

func TestRelayerRefundRecipientOrdering(t *testing.T) {
	s := newScenario()
	d1 := s.deposit(7, 1000, 150)
	d2 := s.deposit(8, 1000, 160)
	// relayer2 earns the larger refund and must sort first.
	s.fill(d1, testutils.FillOpts{Amount: 200, TotalFilled: 200, RepaymentChain: chainB, Relayer: relayer1, Block: 510})
	s.fill(d2, testutils.FillOpts{Amount: 700, TotalFilled: 700, RepaymentChain: chainB, Relayer: relayer2, Block: 520})

	_, _, refund := buildRefundRoots(t, s, s.buildConfig())

	var leaf *RelayerRefundLeaf
	for i := range refund.Leaves {
		if refund.Leaves[i].ChainID == chainB {
			leaf = &refund.Leaves[i]
		}
	}
	require.NotNil(t, leaf)
	require.Equal(t, []common.Address{relayer2, relayer1}, leaf.RefundAddresses)
	require.Equal(t, []*big.Int{big.NewInt(693), big.NewInt(198)}, leaf.RefundAmounts)
}

func TestRelayerRefundTieBrokenByAddress(t *testing.T) {
	s := newScenario()
	d1 := s.deposit(7, 1000, 150)
	d2 := s.deposit(8, 1000, 160)
	// Equal refunds: ascending address order breaks the tie.
	s.fill(d1, testutils.FillOpts{Amount: 500, TotalFilled: 500, RepaymentChain: chainB, Relayer: relayer2, Block: 510})
	s.fill(d2, testutils.FillOpts{Amount: 500, TotalFilled: 500, RepaymentChain: chainB, Relayer: relayer1, Block: 520})

	_, _, refund := buildRefundRoots(t, s, s.buildConfig())

	for _, leaf := range refund.Leaves {
		if leaf.ChainID == chainB {
			require.Equal(t, []common.Address{relayer1, relayer2}, leaf.RefundAddresses)
		}
	}
}

func TestRelayerRefundChunking(t *testing.T) {
	s := newScenario()
	relayers := make([]common.Address, 5)
	for i := range relayers {
		relayers[i] = common.BytesToAddress([]byte{0x40, byte(i + 1)})
		d := s.deposit(uint32(10+i), 1000, 150)
		// Distinct amounts keep the expected order unambiguous.
		s.fill(d, testutils.FillOpts{
			Amount: int64(1000 - 100*i), TotalFilled: int64(1000 - 100*i),
			RepaymentChain: chainB, Relayer: relayers[i], Block: uint64(510 + i),
		})
	}

	cfg := &BuildConfig{MaxRefundCount: 2}
	_, pool, refund := buildRefundRoots(t, s, cfg)

	var chainBLeaves []RelayerRefundLeaf
	for _, leaf := range refund.Leaves {
		if leaf.ChainID == chainB {
			chainBLeaves = append(chainBLeaves, leaf)
		}
	}
	require.Len(t, chainBLeaves, 3)
	require.Len(t, chainBLeaves[0].RefundAddresses, 2)
	require.Len(t, chainBLeaves[1].RefundAddresses, 2)
	require.Len(t, chainBLeaves[2].RefundAddresses, 1)

	// Only the first sub-leaf of a group carries the amount to return; here
	// the net send is positive so it is zero everywhere.
	require.True(t, pool.NetSendAmounts.Get(chainB, tokenL1).Sign() > 0)
	for _, leaf := range chainBLeaves {
		require.Zero(t, leaf.AmountToReturn.Sign())
	}

	// Leaf ids are assigned in final traversal order.
	for i := 1; i < len(refund.Leaves); i++ {
		require.Equal(t, refund.Leaves[i-1].LeafID+1, refund.Leaves[i].LeafID)
	}

	// Refund conservation: the chunked sub-leaves sum to the group total.
	total := new(big.Int)
	for _, leaf := range chainBLeaves {
		for _, amount := range leaf.RefundAmounts {
			total.Add(total, amount)
		}
	}
	expected := new(big.Int)
	for i := range relayers {
		amount := big.NewInt(int64(1000 - 100*i))
		expected.Add(expected, new(big.Int).Sub(amount, new(big.Int).Div(amount, big.NewInt(100))))
	}
	require.Equal(t, expected, total)
}

func TestRelayerRefundAmountToReturn(t *testing.T) {
	s := newScenario()
	d := s.deposit(7, 1000, 150)
	// A slow relay fill is refunded on the destination chain, where a prior
	// partial fill already pulled the running balance negative.
	s.fill(d, testutils.FillOpts{
		Amount: 300, TotalFilled: 300, RepaymentChain: chainB, Relayer: relayer1, Block: 450,
	})
	s.fill(d, testutils.FillOpts{
		Amount: 200, TotalFilled: 500, RepaymentChain: chainB, Relayer: relayer2, Block: 550,
	})

	_, pool, refund := buildRefundRoots(t, s, s.buildConfig())

	netSend := pool.NetSendAmounts.Get(chainB, tokenL1)
	require.True(t, netSend.Sign() < 0)

	for _, leaf := range refund.Leaves {
		if leaf.ChainID == chainB {
			require.Equal(t, new(big.Int).Neg(netSend), leaf.AmountToReturn)
		}
	}
}

func TestRelayerRefundLeafTotalOrder(t *testing.T) {
	s := newScenario()
	d1 := s.deposit(7, 1000, 150)
	d2 := s.deposit(8, 800, 160)
	s.fill(d1, testutils.FillOpts{Amount: 1000, TotalFilled: 1000, RepaymentChain: chainB, Relayer: relayer1, Block: 510})
	// A fill repaid on chain A produces a second refund group.
	s.fill(d2, testutils.FillOpts{Amount: 800, TotalFilled: 800, RepaymentChain: chainA, Relayer: relayer2, Block: 520})

	_, _, refund := buildRefundRoots(t, s, s.buildConfig())

	for i := 1; i < len(refund.Leaves); i++ {
		prev, cur := refund.Leaves[i-1], refund.Leaves[i]
		if prev.ChainID != cur.ChainID {
			require.Less(t, prev.ChainID, cur.ChainID)
			continue
		}
		require.NotEqual(t, prev.L2TokenAddress, cur.L2TokenAddress)
	}
	for i, leaf := range refund.Leaves {
		require.Equal(t, uint32(i), leaf.LeafID)
	}
}

func TestRelayerRefundDeterminism(t *testing.T) {
	build := func() *RelayerRefundRoot {
		s := newScenario()
		d1 := s.deposit(7, 1000, 150)
		d2 := s.deposit(8, 800, 160)
		s.fill(d1, testutils.FillOpts{Amount: 1000, TotalFilled: 1000, RepaymentChain: chainB, Relayer: relayer1, Block: 510})
		s.fill(d2, testutils.FillOpts{Amount: 800, TotalFilled: 800, RepaymentChain: chainB, Relayer: relayer2, Block: 520})
		_, _, refund := buildRefundRoots(t, s, s.buildConfig())
		return refund
	}

	a, b := build(), build()
	require.Equal(t, a.Leaves, b.Leaves)
	require.Equal(t, a.Tree.Root(), b.Tree.Root())
}
