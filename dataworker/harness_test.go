// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dataworker

import (
	"context"
	"math/big"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/log"
	"go.uber.org/goleak"

	"github.com/luxfi/dataworker/interfaces"
	"github.com/luxfi/dataworker/internal/testutils"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	chainA uint64 = 1
	chainB uint64 = 10

	tokenL1 = common.HexToAddress("0xaa00000000000000000000000000000000000001")
	tokenB  = common.HexToAddress("0xbb00000000000000000000000000000000000002")

	relayer1 = common.HexToAddress("0x1100000000000000000000000000000000000011")

	spokeAddrA = common.HexToAddress("0x5a00000000000000000000000000000000000001")
	spokeAddrB = common.HexToAddress("0x5a00000000000000000000000000000000000002")
)

type harness struct {
	hub      *testutils.FakeHubPool
	cfgStore *testutils.FakeConfigStore
	spokeA   *testutils.FakeSpokePool
	spokeB   *testutils.FakeSpokePool
	queue    *testutils.RecordingQueue
	worker   *Dataworker
}

// newHarness wires a two-chain Dataworker over fakes: hub chain 1 with head
// 200, chain 10 with head 600, next bundle starts 100 and 500.
func newHarness() *harness {
	h := &harness{
		hub: &testutils.FakeHubPool{
			Updated:     true,
			Time:        1000,
			LatestBlock: 200,
			NextStartBlocks: map[uint64]uint64{
				chainA: 100,
				chainB: 500,
			},
			SpokeAddresses: map[uint64]common.Address{
				chainA: spokeAddrA,
				chainB: spokeAddrB,
			},
			Pairs: []testutils.TokenPair{
				{ChainID: chainA, L1Token: tokenL1, L2Token: tokenL1},
				{ChainID: chainB, L1Token: tokenL1, L2Token: tokenB},
			},
			TokenInfos: map[common.Address]interfaces.TokenInfo{
				tokenL1: {Symbol: "WETH", Decimals: 18},
			},
		},
		cfgStore: &testutils.FakeConfigStore{
			Updated:          true,
			MaxRefundCount:   25,
			MaxL1TokenCount:  100,
			DefaultThreshold: new(big.Int),
		},
		spokeA: &testutils.FakeSpokePool{Chain: chainA, Updated: true},
		spokeB: &testutils.FakeSpokePool{Chain: chainB, Updated: true},
		queue:  &testutils.RecordingQueue{},
	}

	clients := &interfaces.Clients{
		HubPool:     h.hub,
		ConfigStore: h.cfgStore,
		SpokePools: map[uint64]interfaces.SpokePoolClient{
			chainA: h.spokeA,
			chainB: h.spokeB,
		},
		Providers: map[uint64]interfaces.Provider{
			chainA: &testutils.FakeProvider{Chain: chainA, Block: 200},
			chainB: &testutils.FakeProvider{Chain: chainB, Block: 600},
		},
		SpokeFactory: &testutils.FakeSpokeFactory{
			Spokes: map[uint64]*testutils.FakeSpokePool{
				chainA: h.spokeA,
				chainB: h.spokeB,
			},
		},
		TxQueue: h.queue,
	}

	h.worker = New(log.NewLogger(log.DiscardHandler()), clients, &Config{
		ChainIDs:        []uint64{chainA, chainB},
		EndBlockBuffers: map[uint64]uint64{},
	}, nil)
	return h
}

// seedSimpleBundle adds one full fill against one deposit, the smallest
// input that yields a proposable bundle.
func (h *harness) seedSimpleBundle() {
	d := testutils.NewDeposit(testutils.DepositOpts{
		DepositID: 7, Origin: chainA, Destination: chainB,
		OriginToken: tokenL1, DestinationToken: tokenB,
		Amount: 1000, Block: 150, QuoteBlock: 150,
	})
	h.spokeA.Deposits = append(h.spokeA.Deposits, d)
	h.spokeB.Fills = append(h.spokeB.Fills, testutils.NewFill(d, testutils.FillOpts{
		Amount: 1000, TotalFilled: 1000, RepaymentChain: chainB, Relayer: relayer1, Block: 550,
	}))
}

// pendFromProposal runs a proposal cycle and converts the enqueued
// transaction into the hub's pending bundle.
func (h *harness) pendFromProposal(t *testing.T) {
	t.Helper()
	if err := h.worker.Propose(context.Background()); err != nil {
		t.Fatalf("propose: %v", err)
	}
	tx, ok := h.queue.Last()
	if !ok {
		t.Fatal("no proposal enqueued")
	}
	h.queue.Txs = nil
	h.hub.Pending = &interfaces.PendingRootBundle{
		Proposer:                        relayer1,
		ChallengePeriodEndTimestamp:     h.hub.Time + 3600,
		BundleEvaluationBlockNumbers:    tx.Args[0].([]uint64),
		UnclaimedPoolRebalanceLeafCount: tx.Args[1].(uint64),
		PoolRebalanceRoot:               tx.Args[2].(common.Hash),
		RelayerRefundRoot:               tx.Args[3].(common.Hash),
		SlowRelayRoot:                   tx.Args[4].(common.Hash),
	}
}
