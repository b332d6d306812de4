// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/workerlog/lib/capture"
	"github.com/bureau-foundation/workerlog/lib/config"
	"github.com/bureau-foundation/workerlog/lib/logbridge"
	"github.com/bureau-foundation/workerlog/lib/logging"
	"github.com/bureau-foundation/workerlog/lib/process"
	"github.com/bureau-foundation/workerlog/lib/version"
	"github.com/bureau-foundation/workerlog/lib/workeropts"
)

// captureDrainTimeout bounds the wait for redirected output still in
// the pipes after the worker exits. A grandchild that inherited the
// descriptors and outlives the worker would otherwise hold it open.
const captureDrainTimeout = 2 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	inv, err := parseArgs(os.Args[1:], os.Stderr)
	if errors.Is(err, errHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "workerlog-bridge: %v\n", err)
		return process.ExitFailure
	}
	if inv.showVersion {
		fmt.Printf("workerlog-bridge %s\n", version.Info())
		return 0
	}

	cfg, err := config.Resolve(inv.configPath)
	if err != nil {
		process.Fatal(err)
	}
	inv.apply(cfg)
	if err := cfg.Validate(); err != nil {
		process.Fatal(fmt.Errorf("invalid configuration: %w", err))
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		process.Fatal(err)
	}
	grpcLevel, _ := logging.ParseLevel(cfg.Log.Level)
	logging.InstallGRPC(logger, grpcLevel)

	if cfg.Worker.ID == "" {
		cfg.Worker.ID = uuid.NewString()
		logger.Warn("no worker id given, generated one", "worker_id", cfg.Worker.ID)
	}

	options, err := workeropts.Parse(inv.pipelineOptions)
	if err != nil {
		logger.Error("invalid pipeline options", "error", err)
		return process.ExitFailure
	}
	modules, err := options.RegisteredModules()
	if err != nil {
		logger.Error("invalid pipeline options", "error", err)
		return process.ExitFailure
	}
	if len(modules) > 0 {
		logger.Info("pipeline registers worker modules", "modules", modules)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	task, release, err := startShipping(ctx, cfg, logger)
	if err != nil {
		logger.Error("starting log shipping", "error", err, "endpoint", cfg.Worker.LoggingEndpoint)
		return process.ExitFailure
	}
	defer release()

	logger.Info("starting worker",
		"worker_id", cfg.Worker.ID,
		"command", inv.command[0],
		"version", version.Short(),
	)

	child := exec.Command(inv.command[0], inv.command[1:]...)
	child.Stdin = os.Stdin
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr
	child.Env = append(os.Environ(), workerEnvironment(cfg, options)...)

	if err := child.Start(); err != nil {
		logger.Error("starting worker", "error", err, "command", inv.command[0])
		release()
		if task != nil {
			task.Stop()
		}
		return process.ExitCannotExecute
	}

	signals := make(chan os.Signal, 4)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)
	go forwardSignals(signals, child.Process)
	defer func() {
		signal.Stop(signals)
		close(signals)
	}()

	code := supervise(child, task, release, logger)
	if code != 0 {
		logger.Info("worker exited", "exit_code", code)
	}
	return code
}

// startShipping captures stdio and starts the bridge when a logging
// endpoint is configured. Without one it returns a nil task and a
// no-op release. release restores the standard descriptors and waits
// (bounded) for the pipes to drain; it is idempotent.
func startShipping(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*logbridge.Task, func(), error) {
	if cfg.Worker.LoggingEndpoint == "" {
		logger.Info("no logging endpoint, worker output is not shipped")
		return nil, func() {}, nil
	}

	stdio, err := capture.CaptureStdio(capture.StdioOptions{
		Stdout: cfg.Capture.Stdout,
		Stderr: cfg.Capture.Stderr,
	})
	if err != nil {
		return nil, nil, err
	}

	release := sync.OnceFunc(func() {
		if err := stdio.Close(); err != nil {
			logger.Warn("restoring standard streams", "error", err)
		}
		select {
		case <-stdio.Done():
		case <-time.After(captureDrainTimeout):
			logger.Warn("captured output still pending after worker exit")
		}
	})

	task, err := logbridge.Start(ctx, logbridge.Config{
		WorkerID:    cfg.Worker.ID,
		Endpoint:    cfg.Worker.LoggingEndpoint,
		Source:      stdio,
		Compression: cfg.Transport.Compression,
		Logger:      logger,
	})
	if err != nil {
		release()
		return nil, nil, err
	}

	logger.Info("shipping worker output",
		"endpoint", cfg.Worker.LoggingEndpoint,
		"streams", stdio.Streams(),
		"compression", cfg.Transport.Compression,
	)
	return task, release, nil
}

// workerEnvironment is what the worker learns about its surroundings.
func workerEnvironment(cfg *config.Config, options *workeropts.Options) []string {
	return []string{
		"WORKER_ID=" + cfg.Worker.ID,
		"CONTROL_ENDPOINT=" + cfg.Worker.ControlEndpoint,
		"PIPELINE_OPTIONS=" + string(options.JSON()),
	}
}

// supervise waits for the started child and the shipping task
// together and returns the bridge's exit code.
//
// If the task fails first, the child is killed: a worker whose logs
// cannot be delivered is not allowed to keep running. If the child
// exits first, release flushes the capture pipes into the queue and
// the task is stopped, which ships what is queued. task may be nil
// when shipping is disabled.
func supervise(child *exec.Cmd, task *logbridge.Task, release func(), logger *slog.Logger) int {
	childExited := make(chan struct{})
	var waitErr error
	var group errgroup.Group

	group.Go(func() error {
		waitErr = child.Wait()
		close(childExited)
		return nil
	})

	if task != nil {
		group.Go(func() error {
			select {
			case <-task.Done():
				err := task.Wait()
				if err == nil {
					return nil
				}
				logger.Error("log shipping failed, terminating worker", "error", err)
				if killErr := child.Process.Kill(); killErr != nil && !errors.Is(killErr, os.ErrProcessDone) {
					logger.Warn("killing worker", "error", killErr)
				}
				return err
			case <-childExited:
				release()
				err := task.Stop()
				stats := task.Stats()
				logger.Debug("log shipping finished",
					"batches", stats.Batches,
					"records", stats.Records,
					"abandoned", stats.Queued,
				)
				return err
			}
		})
	}

	if err := group.Wait(); err != nil {
		return process.ExitFailure
	}
	return process.ExitCode(waitErr)
}

// forwardSignals relays signals to the worker until the channel is
// closed. Delivery errors mean the worker already exited.
func forwardSignals(signals <-chan os.Signal, worker *os.Process) {
	for sig := range signals {
		if sysSig, ok := sig.(syscall.Signal); ok {
			_ = worker.Signal(sysSig)
		}
	}
}
