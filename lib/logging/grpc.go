// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"google.golang.org/grpc/grpclog"
)

// InstallGRPC makes logger gRPC's library logger. gRPC's own
// severities are shifted down one step: its INFO chatter (connection
// state changes, resolver updates) is logged at slog DEBUG, WARNING at
// WARN, and ERROR and FATAL at ERROR. level is the least severe slog
// level to pass on, which also sets the verbosity gRPC reports from V.
//
// Call it once, before any gRPC connection is created.
func InstallGRPC(logger *slog.Logger, level slog.Level) {
	grpclog.SetLoggerV2(newGRPCLogger(logger, level))
}

// grpcLogger adapts slog to grpclog.LoggerV2.
type grpcLogger struct {
	logger    *slog.Logger
	verbosity int
}

func newGRPCLogger(logger *slog.Logger, level slog.Level) *grpcLogger {
	return &grpcLogger{
		logger:    logger.With("component", "grpc"),
		verbosity: verbosityFor(level),
	}
}

// verbosityFor maps a slog threshold to gRPC verbosity: V(0) errors,
// V(1) warnings, V(2) info.
func verbosityFor(level slog.Level) int {
	switch {
	case level > slog.LevelError:
		return -1
	case level > slog.LevelWarn:
		return 0
	case level > slog.LevelDebug:
		return 1
	default:
		return 2
	}
}

func (g *grpcLogger) log(level slog.Level, message string) {
	g.logger.Log(context.Background(), level, message)
}

func (g *grpcLogger) Info(args ...any) {
	if g.V(2) {
		g.log(slog.LevelDebug, fmt.Sprint(args...))
	}
}

func (g *grpcLogger) Infoln(args ...any) {
	if g.V(2) {
		g.log(slog.LevelDebug, sprintln(args))
	}
}

func (g *grpcLogger) Infof(format string, args ...any) {
	if g.V(2) {
		g.log(slog.LevelDebug, fmt.Sprintf(format, args...))
	}
}

func (g *grpcLogger) Warning(args ...any) {
	if g.V(1) {
		g.log(slog.LevelWarn, fmt.Sprint(args...))
	}
}

func (g *grpcLogger) Warningln(args ...any) {
	if g.V(1) {
		g.log(slog.LevelWarn, sprintln(args))
	}
}

func (g *grpcLogger) Warningf(format string, args ...any) {
	if g.V(1) {
		g.log(slog.LevelWarn, fmt.Sprintf(format, args...))
	}
}

func (g *grpcLogger) Error(args ...any) {
	if g.V(0) {
		g.log(slog.LevelError, fmt.Sprint(args...))
	}
}

func (g *grpcLogger) Errorln(args ...any) {
	if g.V(0) {
		g.log(slog.LevelError, sprintln(args))
	}
}

func (g *grpcLogger) Errorf(format string, args ...any) {
	if g.V(0) {
		g.log(slog.LevelError, fmt.Sprintf(format, args...))
	}
}

func (g *grpcLogger) Fatal(args ...any) {
	g.log(slog.LevelError, fmt.Sprint(args...))
	fatalExit()
}

func (g *grpcLogger) Fatalln(args ...any) {
	g.log(slog.LevelError, sprintln(args))
	fatalExit()
}

func (g *grpcLogger) Fatalf(format string, args ...any) {
	g.log(slog.LevelError, fmt.Sprintf(format, args...))
	fatalExit()
}

// V reports whether gRPC verbosity level l is enabled.
func (g *grpcLogger) V(l int) bool {
	return g.verbosity >= l
}

// sprintln joins like fmt.Sprintln without the trailing newline.
func sprintln(args []any) string {
	message := fmt.Sprintln(args...)
	return message[:len(message)-1]
}

// fatalExit is replaced in tests.
var fatalExit = func() { os.Exit(1) }
