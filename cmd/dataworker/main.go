// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// dataworker proposes and validates cross-chain root bundles.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/luxfi/geth/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/luxfi/dataworker/bundle"
	"github.com/luxfi/dataworker/config"
	"github.com/luxfi/dataworker/dataworker"
	"github.com/luxfi/dataworker/interfaces"
	"github.com/luxfi/dataworker/metrics"
)

const clientIdentifier = "dataworker"

// NewClients constructs the external collaborators (event-indexing clients,
// providers, transaction sink). Integrations link their own implementation;
// the default refuses to run.
var NewClients = func(cfg *config.Config, logger log.Logger) (*interfaces.Clients, error) {
	return nil, fmt.Errorf("no client integration linked into this binary")
}

var app = &cli.App{
	Name:    clientIdentifier,
	Usage:   "Cross-chain bundle construction and validation",
	Version: "1.0.0",
}

func init() {
	app.Commands = []*cli.Command{
		{
			Name:            "propose",
			Usage:           "Run a single proposal cycle",
			SkipFlagParsing: true,
			Action:          func(ctx *cli.Context) error { return runOnce(ctx, proposeCycle) },
		},
		{
			Name:            "validate",
			Usage:           "Run a single validation cycle",
			SkipFlagParsing: true,
			Action:          func(ctx *cli.Context) error { return runOnce(ctx, validateCycle) },
		},
		{
			Name:            "run",
			Usage:           "Alternate proposal and validation cycles on an interval",
			SkipFlagParsing: true,
			Action:          runLoop,
		},
	}
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup parses flags after the command name, initializes logging and metrics
// and wires the Dataworker.
func setup(ctx *cli.Context) (*dataworker.Dataworker, *config.Config, log.Logger, error) {
	fs := config.BuildFlagSet()
	v, err := config.BuildViper(fs, ctx.Args().Slice())
	if err != nil {
		return nil, nil, nil, err
	}
	cfg, err := config.BuildConfig(v)
	if err != nil {
		return nil, nil, nil, err
	}

	logger, err := initLogger(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	registry := prometheus.NewRegistry()
	var m *metrics.Metrics
	if cfg.MetricsAddr != "" {
		m = metrics.New(registry)
		go serveMetrics(cfg.MetricsAddr, registry, logger)
	}

	clients, err := NewClients(cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	worker := dataworker.New(logger, clients, &dataworker.Config{
		ChainIDs:        cfg.ChainIDs,
		EndBlockBuffers: cfg.EndBlockBuffers,
		Build: bundle.BuildConfig{
			MaxRefundCount:          cfg.MaxRefundCount,
			MaxL1TokenCount:         cfg.MaxL1TokenCount,
			TokenTransferThresholds: cfg.TransferThresholds,
		},
	}, m)
	return worker, cfg, logger, nil
}

func initLogger(cfg *config.Config) (log.Logger, error) {
	var writer io.Writer = os.Stderr
	if cfg.LogFile != "" {
		writer = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    100,
			MaxBackups: 3,
		}
	}
	level, err := log.LvlFromString(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	var handler slog.Handler
	if cfg.LogJSON {
		handler = log.JSONHandlerWithLevel(writer, level)
	} else {
		handler = log.NewTerminalHandlerWithLevel(writer, level, writer == os.Stderr)
	}
	logger := log.NewLogger(handler)
	log.SetDefault(logger)
	return logger, nil
}

func serveMetrics(addr string, registry *prometheus.Registry, logger log.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("Metrics server stopped", "err", err)
	}
}

func proposeCycle(ctx context.Context, worker *dataworker.Dataworker, logger log.Logger) error {
	return worker.Propose(ctx)
}

func validateCycle(ctx context.Context, worker *dataworker.Dataworker, logger log.Logger) error {
	result, err := worker.Validate(ctx)
	if err != nil {
		return err
	}
	logger.Info("Validation cycle finished", "outcome", result.Outcome.String(), "reason", result.Reason)
	return nil
}

type cycle func(context.Context, *dataworker.Dataworker, log.Logger) error

func runOnce(ctx *cli.Context, run cycle) error {
	worker, _, logger, err := setup(ctx)
	if err != nil {
		return err
	}
	return run(ctx.Context, worker, logger)
}

// runLoop alternates validation and proposal. A failed cycle is logged and
// the next one starts clean; retry is this loop's only recovery.
func runLoop(ctx *cli.Context) error {
	worker, cfg, logger, err := setup(ctx)
	if err != nil {
		return err
	}
	ticker := time.NewTicker(cfg.LoopInterval)
	defer ticker.Stop()
	for {
		if err := validateCycle(ctx.Context, worker, logger); err != nil {
			logger.Error("Validation cycle failed", "err", err)
		}
		if err := proposeCycle(ctx.Context, worker, logger); err != nil {
			logger.Error("Proposal cycle failed", "err", err)
		}
		select {
		case <-ctx.Context.Done():
			return nil
		case <-ticker.C:
		}
	}
}
