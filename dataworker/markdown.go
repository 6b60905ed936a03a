// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dataworker

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/dataworker/bundle"
	"github.com/luxfi/dataworker/interfaces"
)

// proposeMarkdown renders the operator-channel summary for a proposal.
func (d *Dataworker) proposeMarkdown(blockRanges []bundle.BlockRange, built *roots) string {
	var b strings.Builder
	b.WriteString("## Proposed root bundle\n\n")
	b.WriteString("| Chain | Start | End |\n|---|---|---|\n")
	for i, chainID := range d.cfg.ChainIDs {
		fmt.Fprintf(&b, "| %d | %d | %d |\n", chainID, blockRanges[i].Start, blockRanges[i].End)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "- Pool rebalance root: `%s` (%d leaves)\n",
		built.poolRebalance.Tree.HexRoot(), len(built.poolRebalance.Leaves))
	fmt.Fprintf(&b, "- Relayer refund root: `%s` (%d leaves)\n",
		built.relayerRefund.Tree.HexRoot(), len(built.relayerRefund.Leaves))
	fmt.Fprintf(&b, "- Slow relay root: `%s` (%d leaves)\n",
		built.slowRelay.Tree.HexRoot(), len(built.slowRelay.Leaves))

	for _, leaf := range built.poolRebalance.Leaves {
		fmt.Fprintf(&b, "\n### Chain %d (leaf %d)\n", leaf.ChainID, leaf.LeafID)
		for i, l1Token := range leaf.L1Tokens {
			fmt.Fprintf(&b, "- %s: net send %s, lp fees %s, carried %s\n",
				d.describeToken(l1Token),
				d.formatAmount(l1Token, leaf.NetSendAmounts[i]),
				d.formatAmount(l1Token, leaf.BundleLpFees[i]),
				d.formatAmount(l1Token, leaf.RunningBalances[i]),
			)
		}
	}
	return b.String()
}

// disputeMarkdown renders the operator-channel diagnostic for a dispute.
func (d *Dataworker) disputeMarkdown(pending *interfaces.PendingRootBundle, reason string) string {
	var b strings.Builder
	b.WriteString("## Disputed pending root bundle\n\n")
	fmt.Fprintf(&b, "**%s**\n\n", reason)
	fmt.Fprintf(&b, "- Proposer: `%s`\n", pending.Proposer.Hex())
	fmt.Fprintf(&b, "- Challenge period end: %d\n", pending.ChallengePeriodEndTimestamp)
	fmt.Fprintf(&b, "- Bundle end blocks: %v\n", pending.BundleEvaluationBlockNumbers)
	fmt.Fprintf(&b, "- Pool rebalance root: `%s`\n", pending.PoolRebalanceRoot.Hex())
	fmt.Fprintf(&b, "- Relayer refund root: `%s`\n", pending.RelayerRefundRoot.Hex())
	fmt.Fprintf(&b, "- Slow relay root: `%s`\n", pending.SlowRelayRoot.Hex())
	return b.String()
}

// describeToken names an L1 token by symbol when the HubPool knows it. The
// hub chain is ChainIDs[0].
func (d *Dataworker) describeToken(l1Token common.Address) string {
	if info, ok := d.clients.HubPool.GetTokenInfo(d.cfg.ChainIDs[0], l1Token); ok {
		return info.Symbol
	}
	return l1Token.Hex()
}

// formatAmount renders a token amount scaled by the token's decimals, or the
// raw integer when the token is unknown.
func (d *Dataworker) formatAmount(l1Token common.Address, amount *big.Int) string {
	info, ok := d.clients.HubPool.GetTokenInfo(d.cfg.ChainIDs[0], l1Token)
	if !ok || info.Decimals == 0 {
		return amount.String()
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(info.Decimals)), nil)
	whole, frac := new(big.Int).QuoRem(new(big.Int).Abs(amount), scale, new(big.Int))
	sign := ""
	if amount.Sign() < 0 {
		sign = "-"
	}
	if frac.Sign() == 0 {
		return fmt.Sprintf("%s%s", sign, whole)
	}
	fracStr := frac.String()
	if pad := int(info.Decimals) - len(fracStr); pad > 0 {
		fracStr = strings.Repeat("0", pad) + fracStr
	}
	return fmt.Sprintf("%s%s.%s", sign, whole, strings.TrimRight(fracStr, "0"))
}
