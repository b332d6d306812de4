// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/workerlog/lib/config"
)

// invocation is the parsed command line.
type invocation struct {
	command         []string
	configPath      string
	pipelineOptions string
	showVersion     bool

	// overrides hold only the flags given explicitly, so that file
	// values survive flags left at their defaults.
	overrides []func(*config.Config)
}

// errHelp is returned by parseArgs for -h/--help.
var errHelp = pflag.ErrHelp

func newFlagSet(output io.Writer) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("workerlog-bridge", pflag.ContinueOnError)
	flagSet.SetOutput(output)
	// Everything after the worker command belongs to the worker.
	flagSet.SetInterspersed(false)
	flagSet.Usage = func() {
		fmt.Fprintf(output, "Usage:\n  workerlog-bridge [flags] [--] <worker command> [args...]\n\nFlags:\n%s", flagSet.FlagUsages())
	}
	return flagSet
}

// parseArgs reads the bridge's flags and the worker command:
//
//	workerlog-bridge [flags] [--] <command> [args...]
func parseArgs(args []string, output io.Writer) (*invocation, error) {
	flagSet := newFlagSet(output)

	var (
		inv             invocation
		workerID        string
		loggingEndpoint string
		controlEndpoint string
		compression     string
		logLevel        string
		logFormat       string
	)
	flagSet.StringVar(&workerID, "id", "", "worker id sent to the collector as worker_id (generated when empty)")
	flagSet.StringVar(&loggingEndpoint, "logging_endpoint", "", "gRPC target of the log collector; empty disables shipping")
	flagSet.StringVar(&controlEndpoint, "control_endpoint", "", "control endpoint passed to the worker")
	flagSet.StringVar(&inv.pipelineOptions, "options", "", "pipeline options as a JSON object")
	flagSet.StringVar(&inv.configPath, "config", "", "YAML config file (default: $WORKERLOG_CONFIG)")
	flagSet.StringVar(&compression, "compression", "", "log stream compression: none, gzip, zstd, lz4")
	flagSet.StringVar(&logLevel, "log-level", "", "bridge log level: debug, info, warn, error")
	flagSet.StringVar(&logFormat, "log-format", "", "bridge log format: json, text, auto")
	flagSet.BoolVar(&inv.showVersion, "version", false, "print version and exit")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	if help, _ := flagSet.GetBool("help"); help {
		flagSet.Usage()
		return nil, errHelp
	}
	if inv.showVersion {
		return &inv, nil
	}

	inv.command = flagSet.Args()
	if len(inv.command) == 0 {
		return nil, errors.New("no worker command given; usage: workerlog-bridge [flags] [--] <command> [args...]")
	}

	set := func(name string, apply func(*config.Config)) {
		if flagSet.Changed(name) {
			inv.overrides = append(inv.overrides, apply)
		}
	}
	set("id", func(c *config.Config) { c.Worker.ID = workerID })
	set("logging_endpoint", func(c *config.Config) { c.Worker.LoggingEndpoint = loggingEndpoint })
	set("control_endpoint", func(c *config.Config) { c.Worker.ControlEndpoint = controlEndpoint })
	set("compression", func(c *config.Config) { c.Transport.Compression = compression })
	set("log-level", func(c *config.Config) { c.Log.Level = logLevel })
	set("log-format", func(c *config.Config) { c.Log.Format = logFormat })

	return &inv, nil
}

// apply writes explicitly given flags over cfg.
func (inv *invocation) apply(cfg *config.Config) {
	for _, override := range inv.overrides {
		override(cfg)
	}
}
