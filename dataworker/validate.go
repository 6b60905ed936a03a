// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dataworker

import (
	"context"
	"fmt"

	"github.com/luxfi/dataworker/bundle"
	"github.com/luxfi/dataworker/interfaces"
	"github.com/luxfi/dataworker/merkle"
)

// Outcome is a validation cycle's terminal state.
type Outcome int

const (
	// OutcomeSkip: no pending proposal, or the challenge window expired.
	OutcomeSkip Outcome = iota
	// OutcomeDefer: an end block runs ahead of this node's view but within
	// the configured buffer; the peer may simply be better synced.
	OutcomeDefer
	// OutcomeAccept: all three rebuilt roots match the pending proposal.
	OutcomeAccept
	// OutcomeDispute: a structural check or root comparison failed.
	OutcomeDispute
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkip:
		return "skip"
	case OutcomeDefer:
		return "defer"
	case OutcomeAccept:
		return "accept"
	case OutcomeDispute:
		return "dispute"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// ValidationResult reports how a validation cycle ended. Reason is set for
// disputes only.
type ValidationResult struct {
	Outcome Outcome
	Reason  string
}

// Validate runs one validation cycle over the pending proposal, if any. A
// dispute enqueues disputeRootBundle; every other outcome is a quiet return.
func (d *Dataworker) Validate(ctx context.Context) (ValidationResult, error) {
	result, err := d.validate(ctx)
	if err != nil {
		d.countCycle("validate", "error")
		return result, err
	}
	d.countCycle("validate", result.Outcome.String())
	return result, nil
}

func (d *Dataworker) validate(ctx context.Context) (ValidationResult, error) {
	hub := d.clients.HubPool
	if !hub.IsUpdated() {
		return ValidationResult{}, ErrHubPoolNotUpdated
	}
	if !hub.HasPendingProposal() {
		d.logger.Debug("No pending proposal")
		return ValidationResult{Outcome: OutcomeSkip}, nil
	}
	pending := hub.GetPendingRootBundleProposal()

	if pending.ChallengePeriodEndTimestamp <= hub.CurrentTime() {
		d.logger.Debug("Challenge window expired", "challengeEnd", pending.ChallengePeriodEndTimestamp)
		return ValidationResult{Outcome: OutcomeSkip}, nil
	}

	if pending.PoolRebalanceRoot == merkle.EmptyRoot {
		return d.dispute(pending, "Empty pool rebalance root"), nil
	}

	if len(pending.BundleEvaluationBlockNumbers) != len(d.cfg.ChainIDs) {
		return d.dispute(pending, fmt.Sprintf(
			"Unexpected bundle block range length: got %d, expected %d",
			len(pending.BundleEvaluationBlockNumbers), len(d.cfg.ChainIDs))), nil
	}

	expected, err := d.expectedBlockRanges(ctx)
	if err != nil {
		return ValidationResult{}, err
	}

	deferring := false
	for i, chainID := range d.cfg.ChainIDs {
		pendingEnd := pending.BundleEvaluationBlockNumbers[i]
		if pendingEnd < expected[i].Start {
			return d.dispute(pending, fmt.Sprintf(
				"End block %d for chain %d is before expected start block %d",
				pendingEnd, chainID, expected[i].Start)), nil
		}
		buffer := d.cfg.BufferFor(chainID)
		if pendingEnd > expected[i].End+buffer {
			return d.dispute(pending, fmt.Sprintf(
				"End block %d for chain %d is past the latest block %d plus buffer %d",
				pendingEnd, chainID, expected[i].End, buffer)), nil
		}
		if pendingEnd > expected[i].End {
			deferring = true
		}
	}
	if deferring {
		// An end block is ahead of our head but within the buffer: the
		// proposer may simply be better synced. Wait for the next cycle.
		d.logger.Info("Pending end block ahead of local head within buffer, deferring")
		return ValidationResult{Outcome: OutcomeDefer}, nil
	}

	rebuildRanges := make([]bundle.BlockRange, len(d.cfg.ChainIDs))
	for i := range d.cfg.ChainIDs {
		rebuildRanges[i] = bundle.BlockRange{
			Start: expected[i].Start,
			End:   pending.BundleEvaluationBlockNumbers[i],
		}
	}

	built, err := d.buildRoots(ctx, rebuildRanges)
	if err != nil {
		return ValidationResult{}, err
	}

	if uint64(len(built.poolRebalance.Leaves)) != pending.UnclaimedPoolRebalanceLeafCount {
		return d.dispute(pending, fmt.Sprintf(
			"Unexpected pool rebalance leaf count: got %d, expected %d",
			pending.UnclaimedPoolRebalanceLeafCount, len(built.poolRebalance.Leaves))), nil
	}
	if built.poolRebalance.Tree.Root() != pending.PoolRebalanceRoot {
		return d.dispute(pending, "Unexpected pool rebalance root"), nil
	}
	if built.relayerRefund.Tree.Root() != pending.RelayerRefundRoot {
		return d.dispute(pending, "Unexpected relayer refund root"), nil
	}
	if built.slowRelay.Tree.Root() != pending.SlowRelayRoot {
		return d.dispute(pending, "Unexpected slow relay root"), nil
	}

	d.logger.Info("Pending root bundle matches local rebuild",
		"poolRebalanceRoot", pending.PoolRebalanceRoot.Hex())
	return ValidationResult{Outcome: OutcomeAccept}, nil
}

// dispute enqueues a disputeRootBundle transaction with a Markdown
// diagnostic naming the failed check.
func (d *Dataworker) dispute(pending *interfaces.PendingRootBundle, reason string) ValidationResult {
	d.logger.Warn("Disputing pending root bundle", "reason", reason, "proposer", pending.Proposer)
	d.enqueue(interfaces.Transaction{
		Contract: "HubPool",
		Method:   "disputeRootBundle",
		Message:  "Disputed pending root bundle",
		Markdown: d.disputeMarkdown(pending, reason),
	})
	if d.metrics != nil {
		d.metrics.DisputesTotal.Inc()
	}
	return ValidationResult{Outcome: OutcomeDispute, Reason: reason}
}
