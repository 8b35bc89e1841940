// Command sshcheck probes SSH reachability across a batch of servers.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/HerbHall/sshcheck/internal/batch"
	"github.com/HerbHall/sshcheck/internal/config"
	"github.com/HerbHall/sshcheck/internal/probe"
	"github.com/HerbHall/sshcheck/internal/render"
	"github.com/HerbHall/sshcheck/internal/targets"
)

const (
	exitOK          = 0
	exitError       = 1
	exitInterrupted = 130
)

// exportTimeout bounds the post-run exports, which still run after an interrupt.
const exportTimeout = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitError
	}

	v, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "sshcheck: %v\n", err)
		return exitError
	}
	opts.apply(v)

	settings, err := config.Decode(v)
	if err != nil {
		fmt.Fprintf(stderr, "sshcheck: %v\n", err)
		return exitError
	}

	logger, err := config.NewLogger(v)
	if err != nil {
		fmt.Fprintf(stderr, "sshcheck: %v\n", err)
		return exitError
	}
	defer func() { _ = logger.Sync() }()

	colored := !opts.noColor && !color.NoColor

	if opts.querying() {
		if err := showHistory(ctx, stdout, opts, settings, colored); err != nil {
			logger.Error("history query failed", zap.Error(err))
			return exitError
		}
		return exitOK
	}

	hosts, err := loadTargets(opts, settings.Input.MaxManualTargets, logger)
	if err != nil {
		logger.Error("no targets to check", zap.Error(err))
		return exitError
	}

	reg := prometheus.NewRegistry()
	metrics, err := batch.NewMetrics(reg)
	if err != nil {
		logger.Error("registering metrics", zap.Error(err))
		return exitError
	}

	runner := batch.New(probe.New(logger), logger,
		batch.WithMaxParallelism(settings.Batch.MaxParallelism),
		batch.WithStartRate(settings.Batch.StartRate, settings.Batch.StartBurst),
		batch.WithMetrics(metrics),
	)

	result, err := runner.Run(ctx, hosts, settings.CheckConfig(), render.Progress(stderr))
	if err != nil {
		logger.Error("batch rejected", zap.Error(err))
		return exitError
	}

	if err := render.Table(stdout, result.Results, colored); err != nil {
		logger.Error("rendering results", zap.Error(err))
	}
	fmt.Fprintln(stdout)
	if err := render.Summary(stdout, result.Summary()); err != nil {
		logger.Error("rendering summary", zap.Error(err))
	}

	// The caller's context may already be cancelled; exports get their own deadline.
	exportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), exportTimeout)
	defer cancel()
	exportErr := exportRun(exportCtx, result, settings, reg, logger)

	if ctx.Err() != nil {
		logger.Warn("batch interrupted", zap.String("run_id", result.ID))
		return exitInterrupted
	}
	if exportErr != nil {
		return exitError
	}
	return exitOK
}

func loadTargets(opts *options, maxManual int, logger *zap.Logger) ([]string, error) {
	if opts.file != "" {
		return targets.ParseFile(opts.file, logger)
	}
	hosts, err := targets.Manual(opts.hosts, maxManual)
	if err != nil {
		return nil, err
	}
	if len(hosts) == 0 {
		return nil, fmt.Errorf("%w: give -host, -file or host arguments", targets.ErrNoTargets)
	}
	return hosts, nil
}
