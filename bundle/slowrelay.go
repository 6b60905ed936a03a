// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bundle

import (
	"fmt"
	"math/big"

	"github.com/luxfi/geth/common"
	"golang.org/x/exp/slices"

	"github.com/luxfi/dataworker/interfaces"
	"github.com/luxfi/dataworker/merkle"
)

// RelayData is the nine-field slow relay leaf consumed on-chain. The leaf
// commits the deposit's full amount; the SpokePool pays out only the unfilled
// remainder.
type RelayData struct {
	Depositor          common.Address
	Recipient          common.Address
	DestinationToken   common.Address
	Amount             *big.Int
	OriginChainID      uint64
	DestinationChainID uint64
	RealizedLpFeePct   *big.Int
	RelayerFeePct      *big.Int
	DepositID          uint32
}

func relayDataFromDeposit(d interfaces.Deposit) RelayData {
	return RelayData{
		Depositor:          d.Depositor,
		Recipient:          d.Recipient,
		DestinationToken:   d.DestinationToken,
		Amount:             d.Amount,
		OriginChainID:      d.OriginChainID,
		DestinationChainID: d.DestinationChainID,
		RealizedLpFeePct:   d.RealizedLpFeePct,
		RelayerFeePct:      d.RelayerFeePct,
		DepositID:          d.DepositID,
	}
}

// Encode packs the leaf into the canonical word layout.
func (r *RelayData) Encode() []byte {
	var enc merkle.Encoder
	return enc.
		Address(r.Depositor).
		Address(r.Recipient).
		Address(r.DestinationToken).
		Uint(r.Amount).
		Uint64(r.OriginChainID).
		Uint64(r.DestinationChainID).
		Int(r.RealizedLpFeePct).
		Int(r.RelayerFeePct).
		Uint64(uint64(r.DepositID)).
		Bytes()
}

// SlowRelayRoot is the committed slow relay artifact.
type SlowRelayRoot struct {
	Leaves []RelayData
	Tree   *merkle.Tree
}

// BuildSlowRelayRoot projects the unfilled deposits into relay-data leaves,
// sorts them by (originChainId, depositId) and hashes the Merkle tree.
// (originChainId, depositId) is globally unique, so a comparator tie is an
// upstream bug and fails loudly.
func BuildSlowRelayRoot(data *Data) *SlowRelayRoot {
	leaves := make([]RelayData, 0, len(data.UnfilledDeposits))
	for _, unfilled := range data.UnfilledDeposits {
		leaves = append(leaves, relayDataFromDeposit(unfilled.Deposit))
	}

	slices.SortFunc(leaves, func(a, b RelayData) int {
		if a.OriginChainID != b.OriginChainID {
			if a.OriginChainID < b.OriginChainID {
				return -1
			}
			return 1
		}
		if a.DepositID != b.DepositID {
			if a.DepositID < b.DepositID {
				return -1
			}
			return 1
		}
		panic(fmt.Sprintf("duplicate slow relay leaf: origin chain %d deposit %d", a.OriginChainID, a.DepositID))
	})

	encoded := make([][]byte, len(leaves))
	for i := range leaves {
		encoded[i] = leaves[i].Encode()
	}
	return &SlowRelayRoot{
		Leaves: leaves,
		Tree:   merkle.NewTree(encoded),
	}
}
