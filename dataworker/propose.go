// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dataworker

import (
	"context"

	"github.com/luxfi/dataworker/interfaces"
)

// Propose runs one proposal cycle: if no bundle is pending, it computes the
// widest legal block range, builds all three roots over it and enqueues a
// proposeRootBundle transaction.
func (d *Dataworker) Propose(ctx context.Context) error {
	if !d.clients.HubPool.IsUpdated() {
		d.countCycle("propose", "error")
		return ErrHubPoolNotUpdated
	}
	if d.clients.HubPool.HasPendingProposal() {
		d.logger.Info("Proposal already pending, skipping")
		d.countCycle("propose", "pending")
		return nil
	}

	blockRanges, err := d.expectedBlockRanges(ctx)
	if err != nil {
		d.countCycle("propose", "error")
		return err
	}

	built, err := d.buildRoots(ctx, blockRanges)
	if err != nil {
		d.countCycle("propose", "error")
		return err
	}
	if len(built.poolRebalance.Leaves) == 0 {
		d.logger.Info("No pool rebalance leaves, nothing to propose")
		d.countCycle("propose", "empty")
		return nil
	}

	endBlocks := make([]uint64, len(blockRanges))
	for i, r := range blockRanges {
		endBlocks[i] = r.End
	}

	d.logger.Info("Proposing root bundle",
		"poolRebalanceRoot", built.poolRebalance.Tree.HexRoot(),
		"relayerRefundRoot", built.relayerRefund.Tree.HexRoot(),
		"slowRelayRoot", built.slowRelay.Tree.HexRoot(),
		"poolRebalanceLeaves", len(built.poolRebalance.Leaves),
	)
	d.enqueue(interfaces.Transaction{
		Contract: "HubPool",
		Method:   "proposeRootBundle",
		Args: []any{
			endBlocks,
			uint64(len(built.poolRebalance.Leaves)),
			built.poolRebalance.Tree.Root(),
			built.relayerRefund.Tree.Root(),
			built.slowRelay.Tree.Root(),
		},
		Message:  "Proposed root bundle",
		Markdown: d.proposeMarkdown(blockRanges, built),
	})
	if d.metrics != nil {
		d.metrics.ProposalsTotal.Inc()
	}
	d.countCycle("propose", "proposed")
	return nil
}
