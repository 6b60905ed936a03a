// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package interfaces

import (
	"context"
	"math/big"

	"github.com/luxfi/geth/common"
)

// HubPoolClient exposes the mainnet HubPool state the Dataworker reads. The
// client must be updated (a finished event sync) before any getter is used.
type HubPoolClient interface {
	IsUpdated() bool
	HasPendingProposal() bool
	GetPendingRootBundleProposal() *PendingRootBundle
	// CurrentTime is the HubPool's on-chain clock, in unix seconds.
	CurrentTime() uint64
	LatestBlockNumber() uint64
	// GetSpokePoolForBlock returns the SpokePool address that was canonical
	// for [chainID] at [mainnetBlock].
	GetSpokePoolForBlock(mainnetBlock uint64, chainID uint64) common.Address
	// GetDestinationTokenForL1Token maps an L1 token to its counterpart on
	// [chainID] at the latest known block.
	GetDestinationTokenForL1Token(l1Token common.Address, chainID uint64) common.Address
	// GetL1TokenCounterpartAtBlock maps an L2 token on [chainID] back to its
	// L1 token, as registered at [mainnetBlock].
	GetL1TokenCounterpartAtBlock(chainID uint64, l2Token common.Address, mainnetBlock uint64) (common.Address, error)
	// GetNextBundleStartBlockNumber returns one past the last executed
	// bundle's end block for [chainID], or 0 if none executed yet.
	GetNextBundleStartBlockNumber(chainList []uint64, latestMainnetBlock uint64, chainID uint64) uint64
	GetTokenInfo(chainID uint64, token common.Address) (TokenInfo, bool)
}

// ConfigStoreClient exposes per-block protocol parameters.
type ConfigStoreClient interface {
	IsUpdated() bool
	GetMaxRefundCountForRelayerRefundLeafForBlock(mainnetBlock uint64) (uint64, error)
	GetMaxL1TokenCountForPoolRebalanceLeafForBlock(mainnetBlock uint64) (uint64, error)
	GetTokenTransferThresholdForBlock(l1Token common.Address, mainnetBlock uint64) (*big.Int, error)
}

// SpokePoolClient is a read-only view over one chain's SpokePool events.
type SpokePoolClient interface {
	IsUpdated() bool
	// Update syncs the client's event snapshot. It must complete before any
	// read; a failed update aborts the cycle.
	Update(ctx context.Context) error
	ChainID() uint64
	// GetDepositsForDestinationChain enumerates every known deposit bound for
	// [destinationChainID], in indexing order.
	GetDepositsForDestinationChain(destinationChainID uint64) []DepositWithBlock
	// GetFillsWithBlockForOriginChain enumerates every fill recorded on this
	// chain whose deposit originated on [originChainID], in indexing order.
	GetFillsWithBlockForOriginChain(originChainID uint64) []FillWithBlock
	// GetDepositForFill looks the fill's deposit up in the client's full
	// history, not limited to any block range.
	GetDepositForFill(fill Fill) (DepositWithBlock, bool)
}

// SpokePoolClientFactory constructs read-only SpokePool clients pinned to a
// SpokePool address, so refunds owed against a deprecated SpokePool are still
// reachable.
type SpokePoolClientFactory interface {
	NewSpokePoolClient(chainID uint64, spokePool common.Address) SpokePoolClient
}

// Provider is the minimal chain RPC surface the controllers need.
type Provider interface {
	ChainID() uint64
	GetBlockNumber(ctx context.Context) (uint64, error)
}

// Transaction is the boundary artifact handed to the submission sink.
type Transaction struct {
	Contract string
	Method   string
	Args     []any
	// Message is a short human-readable summary; Markdown carries the full
	// diagnostic rendered into operator channels.
	Message  string
	Markdown string
}

// TransactionQueue is a fire-and-forget multi-caller sink. Enqueueing is
// idempotent-by-intent: the HubPool rejects duplicate proposals on-chain.
type TransactionQueue interface {
	Enqueue(tx Transaction) error
}

// Clients bundles every external collaborator the Dataworker consumes.
type Clients struct {
	HubPool      HubPoolClient
	ConfigStore  ConfigStoreClient
	SpokePools   map[uint64]SpokePoolClient
	Providers    map[uint64]Provider
	SpokeFactory SpokePoolClientFactory
	TxQueue      TransactionQueue
}
