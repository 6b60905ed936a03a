// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config builds the Dataworker's immutable configuration from flags
// and environment variables.
package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix = "DATAWORKER"

	ChainIDsKey           = "chain-ids"
	EndBlockBuffersKey    = "end-block-buffers"
	MaxRefundCountKey     = "max-refund-count"
	MaxL1TokenCountKey    = "max-l1-token-count"
	TransferThresholdsKey = "transfer-thresholds"
	LogLevelKey           = "log-level"
	LogJSONKey            = "log-json"
	LogFileKey            = "log-file"
	MetricsAddrKey        = "metrics-addr"
	LoopIntervalKey       = "loop-interval"
)

// Config is the parsed, immutable configuration record.
type Config struct {
	// ChainIDs is the fixed chain evaluation order; ChainIDs[0] is the hub
	// chain.
	ChainIDs []uint64
	// EndBlockBuffers is the per-chain tolerance for pending end blocks that
	// run ahead of this node's view.
	EndBlockBuffers map[uint64]uint64
	// MaxRefundCount and MaxL1TokenCount override the ConfigStore values
	// when non-zero.
	MaxRefundCount  uint64
	MaxL1TokenCount uint64
	// TransferThresholds overrides the per-L1-token dust threshold.
	TransferThresholds map[common.Address]*big.Int

	LogLevel     string
	LogJSON      bool
	LogFile      string
	MetricsAddr  string
	LoopInterval time.Duration
}

// BuildFlagSet declares every Dataworker flag with its default.
func BuildFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("dataworker", pflag.ContinueOnError)
	fs.StringSlice(ChainIDsKey, nil, "chain evaluation order, hub chain first (e.g. 1,10,137)")
	fs.StringSlice(EndBlockBuffersKey, nil, "per-chain end block buffers as chainId=blocks")
	fs.Uint64(MaxRefundCountKey, 0, "override for the max refunds per relayer refund leaf (0: config store)")
	fs.Uint64(MaxL1TokenCountKey, 0, "override for the max L1 tokens per pool rebalance leaf (0: config store)")
	fs.StringSlice(TransferThresholdsKey, nil, "per-token transfer thresholds as 0xToken=amount")
	fs.String(LogLevelKey, "info", "log level")
	fs.Bool(LogJSONKey, false, "emit JSON logs")
	fs.String(LogFileKey, "", "log file path (rotated); empty logs to stderr")
	fs.String(MetricsAddrKey, "", "prometheus listen address; empty disables metrics")
	fs.Duration(LoopIntervalKey, time.Minute, "delay between cycles in run mode")
	return fs
}

// BuildViper parses [args] into a viper bound to the flag set, with
// DATAWORKER_* environment variables layered underneath.
func BuildViper(fs *pflag.FlagSet, args []string) (*viper.Viper, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}
	return v, nil
}

// BuildConfig extracts and validates the configuration record.
func BuildConfig(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		MaxRefundCount:  v.GetUint64(MaxRefundCountKey),
		MaxL1TokenCount: v.GetUint64(MaxL1TokenCountKey),
		LogLevel:        v.GetString(LogLevelKey),
		LogJSON:         v.GetBool(LogJSONKey),
		LogFile:         v.GetString(LogFileKey),
		MetricsAddr:     v.GetString(MetricsAddrKey),
		LoopInterval:    v.GetDuration(LoopIntervalKey),
	}

	for _, raw := range v.GetStringSlice(ChainIDsKey) {
		chainID, err := cast.ToUint64E(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid chain id %q: %w", raw, err)
		}
		cfg.ChainIDs = append(cfg.ChainIDs, chainID)
	}
	if len(cfg.ChainIDs) == 0 {
		return nil, fmt.Errorf("%s must list at least the hub chain", ChainIDsKey)
	}

	cfg.EndBlockBuffers = make(map[uint64]uint64)
	for _, raw := range v.GetStringSlice(EndBlockBuffersKey) {
		chainID, value, err := splitPair(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid end block buffer %q: %w", raw, err)
		}
		buffer, err := cast.ToUint64E(value)
		if err != nil {
			return nil, fmt.Errorf("invalid end block buffer %q: %w", raw, err)
		}
		cfg.EndBlockBuffers[chainID] = buffer
	}

	cfg.TransferThresholds = make(map[common.Address]*big.Int)
	for _, raw := range v.GetStringSlice(TransferThresholdsKey) {
		token, value, ok := strings.Cut(raw, "=")
		if !ok || !common.IsHexAddress(token) {
			return nil, fmt.Errorf("invalid transfer threshold %q", raw)
		}
		threshold, ok := new(big.Int).SetString(value, 10)
		if !ok || threshold.Sign() < 0 {
			return nil, fmt.Errorf("invalid transfer threshold amount %q", raw)
		}
		cfg.TransferThresholds[common.HexToAddress(token)] = threshold
	}
	return cfg, nil
}

func splitPair(raw string) (uint64, string, error) {
	key, value, ok := strings.Cut(raw, "=")
	if !ok {
		return 0, "", fmt.Errorf("expected key=value")
	}
	chainID, err := cast.ToUint64E(key)
	if err != nil {
		return 0, "", err
	}
	return chainID, value, nil
}
