// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package dataworker drives the off-chain bundle lifecycle: proposing a
// fresh root bundle when none is pending, and validating a peer's pending
// proposal, disputing it when the independently rebuilt roots disagree.
package dataworker

import (
	"context"
	"errors"
	"fmt"

	"github.com/luxfi/geth/log"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/dataworker/bundle"
	"github.com/luxfi/dataworker/interfaces"
	"github.com/luxfi/dataworker/metrics"
	"github.com/luxfi/dataworker/utils"
)

var (
	// ErrHubPoolNotUpdated is returned when the HubPool client has not
	// finished its event sync.
	ErrHubPoolNotUpdated = errors.New("hub pool client not updated")

	// ErrMissingProvider is returned when a chain in the evaluation order
	// has no RPC provider.
	ErrMissingProvider = errors.New("no provider for chain")
)

// Config is the Dataworker's immutable configuration.
type Config struct {
	// ChainIDs is the protocol's fixed chain evaluation order. ChainIDs[0]
	// is the hub chain.
	ChainIDs []uint64
	// EndBlockBuffers allows a pending proposal's end block to run ahead of
	// this node's view by up to the per-chain buffer before it is disputed.
	// A missing entry means zero.
	EndBlockBuffers map[uint64]uint64
	// Build carries the optional protocol-parameter overrides.
	Build bundle.BuildConfig
}

// BufferFor returns the end-block buffer for [chainID].
func (c *Config) BufferFor(chainID uint64) uint64 {
	return c.EndBlockBuffers[chainID]
}

// Dataworker proposes and validates root bundles. It is stateless across
// cycles; every cycle re-reads its inputs from the clients.
type Dataworker struct {
	logger  log.Logger
	clients *interfaces.Clients
	cfg     *Config
	metrics *metrics.Metrics
	clock   utils.Clock
}

// New wires a Dataworker. [m] may be nil to disable instrumentation.
func New(logger log.Logger, clients *interfaces.Clients, cfg *Config, m *metrics.Metrics) *Dataworker {
	return &Dataworker{
		logger:  logger,
		clients: clients,
		cfg:     cfg,
		metrics: m,
		clock:   utils.RealClock{},
	}
}

// SetClock replaces the wall clock; tests use a mockable one.
func (d *Dataworker) SetClock(clock utils.Clock) {
	d.clock = clock
}

// roots bundles one cycle's outputs.
type roots struct {
	data          *bundle.Data
	poolRebalance *bundle.PoolRebalanceRoot
	relayerRefund *bundle.RelayerRefundRoot
	slowRelay     *bundle.SlowRelayRoot
}

// expectedBlockRanges computes the widest legal block range per chain: the
// next bundle start from the HubPool and each chain's head, read in
// parallel and reassembled index-by-index.
func (d *Dataworker) expectedBlockRanges(ctx context.Context) ([]bundle.BlockRange, error) {
	latestMainnet := d.clients.HubPool.LatestBlockNumber()
	ranges := make([]bundle.BlockRange, len(d.cfg.ChainIDs))
	providers := make([]interfaces.Provider, len(d.cfg.ChainIDs))
	for i, chainID := range d.cfg.ChainIDs {
		provider, ok := d.clients.Providers[chainID]
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrMissingProvider, chainID)
		}
		providers[i] = provider
		ranges[i].Start = d.clients.HubPool.GetNextBundleStartBlockNumber(d.cfg.ChainIDs, latestMainnet, chainID)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for i, chainID := range d.cfg.ChainIDs {
		i, chainID := i, chainID
		provider := providers[i]
		group.Go(func() error {
			head, err := provider.GetBlockNumber(groupCtx)
			if err != nil {
				return fmt.Errorf("reading head of chain %d: %w", chainID, err)
			}
			ranges[i].End = head
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return ranges, nil
}

// spokeClientsAt constructs read-only SpokePool clients pinned to the
// addresses canonical at [endMainnetBlock] and updates them in parallel, so
// refunds owed against a deprecated SpokePool are still paid.
func (d *Dataworker) spokeClientsAt(ctx context.Context, endMainnetBlock uint64) (map[uint64]interfaces.SpokePoolClient, error) {
	spokes := make(map[uint64]interfaces.SpokePoolClient, len(d.cfg.ChainIDs))
	for _, chainID := range d.cfg.ChainIDs {
		address := d.clients.HubPool.GetSpokePoolForBlock(endMainnetBlock, chainID)
		spokes[chainID] = d.clients.SpokeFactory.NewSpokePoolClient(chainID, address)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for chainID, client := range spokes {
		chainID, client := chainID, client
		group.Go(func() error {
			if err := client.Update(groupCtx); err != nil {
				return fmt.Errorf("updating spoke pool client for chain %d: %w", chainID, err)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return spokes, nil
}

// buildRoots loads the bundle data over [blockRanges] and builds all three
// roots. The refund root borrows the pool rebalance root's running balances.
func (d *Dataworker) buildRoots(ctx context.Context, blockRanges []bundle.BlockRange) (*roots, error) {
	started := d.clock.Time()

	spokes, err := d.spokeClientsAt(ctx, blockRanges[0].End)
	if err != nil {
		return nil, err
	}
	clients := *d.clients
	clients.SpokePools = spokes

	data, err := bundle.LoadData(blockRanges, &clients, d.cfg.ChainIDs, d.logger)
	if err != nil {
		return nil, err
	}
	if d.metrics != nil {
		d.metrics.InvalidFillsTotal.Add(float64(len(data.InvalidFills)))
	}

	endMainnetBlock := blockRanges[0].End
	poolRebalance, err := bundle.BuildPoolRebalanceRoot(endMainnetBlock, data, &clients, &d.cfg.Build)
	if err != nil {
		return nil, err
	}
	relayerRefund, err := bundle.BuildRelayerRefundRoot(endMainnetBlock, data, poolRebalance, &clients, &d.cfg.Build)
	if err != nil {
		return nil, err
	}
	slowRelay := bundle.BuildSlowRelayRoot(data)

	if d.metrics != nil {
		d.metrics.RootBuildSeconds.Observe(d.clock.Time().Sub(started).Seconds())
	}
	return &roots{
		data:          data,
		poolRebalance: poolRebalance,
		relayerRefund: relayerRefund,
		slowRelay:     slowRelay,
	}, nil
}

// enqueue hands a transaction to the sink. Construction failures are logged,
// not propagated: they must not crash the controller.
func (d *Dataworker) enqueue(tx interfaces.Transaction) {
	if err := d.clients.TxQueue.Enqueue(tx); err != nil {
		d.logger.Error("Failed to enqueue transaction", "method", tx.Method, "err", err)
	}
}

func (d *Dataworker) countCycle(role, result string) {
	if d.metrics != nil {
		d.metrics.CyclesTotal.WithLabelValues(role, result).Inc()
	}
}
