// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bundle

import (
	"math/big"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/log"

	"github.com/luxfi/dataworker/interfaces"
	"github.com/luxfi/dataworker/internal/testutils"
)

// Two-chain scenario: hub chain 1 with token L1, destination chain 10 with
// its counterpart token B. Block ranges [100,200] and [500,600].
var (
	chainA uint64 = 1
	chainB uint64 = 10

	tokenL1 = common.HexToAddress("0xaa00000000000000000000000000000000000001")
	tokenB  = common.HexToAddress("0xbb00000000000000000000000000000000000002")

	relayer1 = common.HexToAddress("0x1100000000000000000000000000000000000011")
	relayer2 = common.HexToAddress("0x2200000000000000000000000000000000000022")
)

type scenario struct {
	chainIDs []uint64
	ranges   []BlockRange
	hub      *testutils.FakeHubPool
	cfgStore *testutils.FakeConfigStore
	spokeA   *testutils.FakeSpokePool
	spokeB   *testutils.FakeSpokePool
	clients  *interfaces.Clients
}

func newScenario() *scenario {
	s := &scenario{
		chainIDs: []uint64{chainA, chainB},
		ranges:   []BlockRange{{Start: 100, End: 200}, {Start: 500, End: 600}},
		hub: &testutils.FakeHubPool{
			Updated: true,
			Pairs: []testutils.TokenPair{
				{ChainID: chainA, L1Token: tokenL1, L2Token: tokenL1},
				{ChainID: chainB, L1Token: tokenL1, L2Token: tokenB},
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
	}
	s.clients = &interfaces.Clients{
		HubPool:     s.hub,
		ConfigStore: s.cfgStore,
		SpokePools: map[uint64]interfaces.SpokePoolClient{
			chainA: s.spokeA,
			chainB: s.spokeB,
		},
	}
	return s
}

// deposit adds a chain A -> chain B deposit and returns it.
func (s *scenario) deposit(id uint32, amount int64, block uint64) interfaces.DepositWithBlock {
	d := testutils.NewDeposit(testutils.DepositOpts{
		DepositID:        id,
		Origin:           chainA,
		Destination:      chainB,
		OriginToken:      tokenL1,
		DestinationToken: tokenB,
		Amount:           amount,
		Block:            block,
		QuoteBlock:       block,
	})
	s.spokeA.Deposits = append(s.spokeA.Deposits, d)
	return d
}

// fill adds a chain B fill against [d] and returns it.
func (s *scenario) fill(d interfaces.DepositWithBlock, opts testutils.FillOpts) interfaces.FillWithBlock {
	f := testutils.NewFill(d, opts)
	s.spokeB.Fills = append(s.spokeB.Fills, f)
	return f
}

func (s *scenario) load() (*Data, error) {
	return LoadData(s.ranges, s.clients, s.chainIDs, testLogger())
}

func (s *scenario) buildConfig() *BuildConfig {
	return &BuildConfig{}
}

func testLogger() log.Logger {
	return log.NewLogger(log.DiscardHandler())
}
