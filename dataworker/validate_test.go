// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dataworker

import (
	"context"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/dataworker/merkle"
)

func TestValidateNoPendingProposal(t *testing.T) {
	h := newHarness()

	result, err := h.worker.Validate(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeSkip, result.Outcome)
	require.Empty(t, h.queue.Txs)
}

func TestValidateChallengeWindowExpired(t *testing.T) {
	h := newHarness()
	h.seedSimpleBundle()
	h.pendFromProposal(t)
	h.hub.Time = h.hub.Pending.ChallengePeriodEndTimestamp

	result, err := h.worker.Validate(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeSkip, result.Outcome)
	require.Empty(t, h.queue.Txs)
}

func TestValidateAccept(t *testing.T) {
	h := newHarness()
	h.seedSimpleBundle()
	h.pendFromProposal(t)

	result, err := h.worker.Validate(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeAccept, result.Outcome)
	require.Empty(t, h.queue.Txs)
}

func TestValidateDisputeEmptyPoolRebalanceRoot(t *testing.T) {
	h := newHarness()
	h.seedSimpleBundle()
	h.pendFromProposal(t)
	h.hub.Pending.PoolRebalanceRoot = merkle.EmptyRoot

	result, err := h.worker.Validate(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeDispute, result.Outcome)
	require.Contains(t, result.Reason, "Empty pool rebalance root")

	tx, ok := h.queue.Last()
	require.True(t, ok)
	require.Equal(t, "disputeRootBundle", tx.Method)
}

func TestValidateDisputeBlockRangeLength(t *testing.T) {
	h := newHarness()
	h.seedSimpleBundle()
	h.pendFromProposal(t)
	h.hub.Pending.BundleEvaluationBlockNumbers = []uint64{200}

	result, err := h.worker.Validate(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeDispute, result.Outcome)
	require.Contains(t, result.Reason, "block range length")
}

func TestValidateDisputeEndBeforeStart(t *testing.T) {
	h := newHarness()
	h.seedSimpleBundle()
	h.pendFromProposal(t)
	h.hub.Pending.BundleEvaluationBlockNumbers = []uint64{99, 600}

	result, err := h.worker.Validate(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeDispute, result.Outcome)
	require.Contains(t, result.Reason, "before expected start")
}

func TestValidateDisputeEndBeyondBuffer(t *testing.T) {
	h := newHarness()
	h.seedSimpleBundle()
	h.pendFromProposal(t)
	h.worker.cfg.EndBlockBuffers[chainA] = 5
	h.hub.Pending.BundleEvaluationBlockNumbers = []uint64{206, 600}

	result, err := h.worker.Validate(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeDispute, result.Outcome)
	require.Contains(t, result.Reason, "plus buffer")
}

func TestValidateDeferWithinBuffer(t *testing.T) {
	h := newHarness()
	h.seedSimpleBundle()
	h.pendFromProposal(t)
	h.worker.cfg.EndBlockBuffers[chainA] = 5
	h.hub.Pending.BundleEvaluationBlockNumbers = []uint64{203, 600}

	result, err := h.worker.Validate(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeDefer, result.Outcome)
	require.Empty(t, h.queue.Txs)
}

func TestValidateDisputeRelayerRefundRootMismatch(t *testing.T) {
	h := newHarness()
	h.seedSimpleBundle()
	h.pendFromProposal(t)
	h.hub.Pending.RelayerRefundRoot = common.HexToHash("0xdeadbeef")

	result, err := h.worker.Validate(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeDispute, result.Outcome)
	require.Equal(t, "Unexpected relayer refund root", result.Reason)

	tx, ok := h.queue.Last()
	require.True(t, ok)
	require.Contains(t, tx.Markdown, "Unexpected relayer refund root")
}

func TestValidateDisputePoolRebalanceRootMismatch(t *testing.T) {
	h := newHarness()
	h.seedSimpleBundle()
	h.pendFromProposal(t)
	h.hub.Pending.PoolRebalanceRoot = common.HexToHash("0x01")

	result, err := h.worker.Validate(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeDispute, result.Outcome)
	require.Equal(t, "Unexpected pool rebalance root", result.Reason)
}

func TestValidateDisputeSlowRelayRootMismatch(t *testing.T) {
	h := newHarness()
	h.seedSimpleBundle()
	h.pendFromProposal(t)
	h.hub.Pending.SlowRelayRoot = common.HexToHash("0x02")

	result, err := h.worker.Validate(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeDispute, result.Outcome)
	require.Equal(t, "Unexpected slow relay root", result.Reason)
}

func TestValidateDisputeLeafCountMismatch(t *testing.T) {
	h := newHarness()
	h.seedSimpleBundle()
	h.pendFromProposal(t)
	h.hub.Pending.UnclaimedPoolRebalanceLeafCount++

	result, err := h.worker.Validate(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeDispute, result.Outcome)
	require.Contains(t, result.Reason, "leaf count")
}

func TestValidateHubNotUpdated(t *testing.T) {
	h := newHarness()
	h.hub.Updated = false

	_, err := h.worker.Validate(context.Background())
	require.ErrorIs(t, err, ErrHubPoolNotUpdated)
}
