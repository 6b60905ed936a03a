// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package testutils provides in-memory fakes of the Dataworker's external
// collaborators for tests.
package testutils

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/dataworker/interfaces"
)

var (
	_ interfaces.HubPoolClient          = (*FakeHubPool)(nil)
	_ interfaces.ConfigStoreClient      = (*FakeConfigStore)(nil)
	_ interfaces.SpokePoolClient        = (*FakeSpokePool)(nil)
	_ interfaces.SpokePoolClientFactory = (*FakeSpokeFactory)(nil)
	_ interfaces.Provider               = (*FakeProvider)(nil)
	_ interfaces.TransactionQueue       = (*RecordingQueue)(nil)
)

// TokenPair registers an L1 token and its counterpart on one chain.
type TokenPair struct {
	ChainID uint64
	L1Token common.Address
	L2Token common.Address
}

// FakeHubPool is an in-memory HubPoolClient.
type FakeHubPool struct {
	Updated     bool
	Pending     *interfaces.PendingRootBundle
	Time        uint64
	LatestBlock uint64
	// NextStartBlocks maps chainID to the next bundle start block.
	NextStartBlocks map[uint64]uint64
	// SpokeAddresses maps chainID to the canonical SpokePool address.
	SpokeAddresses map[uint64]common.Address
	// Pairs registers token mappings, symmetric in both directions.
	Pairs      []TokenPair
	TokenInfos map[common.Address]interfaces.TokenInfo
}

func (h *FakeHubPool) IsUpdated() bool          { return h.Updated }
func (h *FakeHubPool) HasPendingProposal() bool { return h.Pending != nil }
func (h *FakeHubPool) GetPendingRootBundleProposal() *interfaces.PendingRootBundle {
	return h.Pending
}
func (h *FakeHubPool) CurrentTime() uint64       { return h.Time }
func (h *FakeHubPool) LatestBlockNumber() uint64 { return h.LatestBlock }

func (h *FakeHubPool) GetSpokePoolForBlock(mainnetBlock uint64, chainID uint64) common.Address {
	return h.SpokeAddresses[chainID]
}

func (h *FakeHubPool) GetDestinationTokenForL1Token(l1Token common.Address, chainID uint64) common.Address {
	for _, pair := range h.Pairs {
		if pair.ChainID == chainID && pair.L1Token == l1Token {
			return pair.L2Token
		}
	}
	return common.Address{}
}

func (h *FakeHubPool) GetL1TokenCounterpartAtBlock(chainID uint64, l2Token common.Address, mainnetBlock uint64) (common.Address, error) {
	for _, pair := range h.Pairs {
		if pair.ChainID == chainID && pair.L2Token == l2Token {
			return pair.L1Token, nil
		}
	}
	return common.Address{}, fmt.Errorf("no l1 counterpart for %s on chain %d", l2Token, chainID)
}

func (h *FakeHubPool) GetNextBundleStartBlockNumber(chainList []uint64, latestMainnetBlock uint64, chainID uint64) uint64 {
	return h.NextStartBlocks[chainID]
}

func (h *FakeHubPool) GetTokenInfo(chainID uint64, token common.Address) (interfaces.TokenInfo, bool) {
	info, ok := h.TokenInfos[token]
	return info, ok
}

// FakeConfigStore is an in-memory ConfigStoreClient.
type FakeConfigStore struct {
	Updated          bool
	MaxRefundCount   uint64
	MaxL1TokenCount  uint64
	Thresholds       map[common.Address]*big.Int
	DefaultThreshold *big.Int
}

func (c *FakeConfigStore) IsUpdated() bool { return c.Updated }

func (c *FakeConfigStore) GetMaxRefundCountForRelayerRefundLeafForBlock(mainnetBlock uint64) (uint64, error) {
	return c.MaxRefundCount, nil
}

func (c *FakeConfigStore) GetMaxL1TokenCountForPoolRebalanceLeafForBlock(mainnetBlock uint64) (uint64, error) {
	return c.MaxL1TokenCount, nil
}

func (c *FakeConfigStore) GetTokenTransferThresholdForBlock(l1Token common.Address, mainnetBlock uint64) (*big.Int, error) {
	if threshold, ok := c.Thresholds[l1Token]; ok {
		return threshold, nil
	}
	if c.DefaultThreshold != nil {
		return c.DefaultThreshold, nil
	}
	return new(big.Int), nil
}

// FakeSpokePool is an in-memory SpokePoolClient over fixed event slices.
type FakeSpokePool struct {
	Chain     uint64
	Updated   bool
	UpdateErr error
	Deposits  []interfaces.DepositWithBlock
	Fills     []interfaces.FillWithBlock
}

func (s *FakeSpokePool) IsUpdated() bool { return s.Updated }
func (s *FakeSpokePool) ChainID() uint64 { return s.Chain }

func (s *FakeSpokePool) Update(ctx context.Context) error {
	if s.UpdateErr != nil {
		return s.UpdateErr
	}
	s.Updated = true
	return nil
}

func (s *FakeSpokePool) GetDepositsForDestinationChain(destinationChainID uint64) []interfaces.DepositWithBlock {
	var out []interfaces.DepositWithBlock
	for _, deposit := range s.Deposits {
		if deposit.DestinationChainID == destinationChainID {
			out = append(out, deposit)
		}
	}
	return out
}

func (s *FakeSpokePool) GetFillsWithBlockForOriginChain(originChainID uint64) []interfaces.FillWithBlock {
	var out []interfaces.FillWithBlock
	for _, fill := range s.Fills {
		if fill.OriginChainID == originChainID {
			out = append(out, fill)
		}
	}
	return out
}

func (s *FakeSpokePool) GetDepositForFill(fill interfaces.Fill) (interfaces.DepositWithBlock, bool) {
	for _, deposit := range s.Deposits {
		if deposit.Key() == fill.Deposit.Key() {
			return deposit, true
		}
	}
	return interfaces.DepositWithBlock{}, false
}

// FakeSpokeFactory hands out pre-registered FakeSpokePools.
type FakeSpokeFactory struct {
	Spokes map[uint64]*FakeSpokePool
}

func (f *FakeSpokeFactory) NewSpokePoolClient(chainID uint64, spokePool common.Address) interfaces.SpokePoolClient {
	return f.Spokes[chainID]
}

// FakeProvider serves a fixed head block.
type FakeProvider struct {
	Chain uint64
	Block uint64
	Err   error
}

func (p *FakeProvider) ChainID() uint64 { return p.Chain }

func (p *FakeProvider) GetBlockNumber(ctx context.Context) (uint64, error) {
	if p.Err != nil {
		return 0, p.Err
	}
	return p.Block, nil
}

// RecordingQueue captures enqueued transactions.
type RecordingQueue struct {
	mu  sync.Mutex
	Txs []interfaces.Transaction
	Err error
}

func (q *RecordingQueue) Enqueue(tx interfaces.Transaction) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.Err != nil {
		return q.Err
	}
	q.Txs = append(q.Txs, tx)
	return nil
}

// Last returns the most recently enqueued transaction.
func (q *RecordingQueue) Last() (interfaces.Transaction, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.Txs) == 0 {
		return interfaces.Transaction{}, false
	}
	return q.Txs[len(q.Txs)-1], true
}
