// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package logging builds the bridge's structured logger and routes
// gRPC's internal logging into it.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// Options configures New. Zero values mean info level, automatic
// format, and standard error.
type Options struct {
	// Level is debug, info, warn, or error.
	Level string

	// Format is json, text, or auto. Auto picks text when Writer is a
	// terminal and JSON otherwise.
	Format string

	Writer io.Writer
}

// New creates the logger and installs it as the slog default so that
// library code calling slog.Info shares the handler.
func New(options Options) (*slog.Logger, error) {
	level, err := ParseLevel(options.Level)
	if err != nil {
		return nil, err
	}
	writer := options.Writer
	if writer == nil {
		writer = os.Stderr
	}

	handlerOptions := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch format := strings.ToLower(options.Format); format {
	case "json":
		handler = slog.NewJSONHandler(writer, handlerOptions)
	case "text":
		handler = slog.NewTextHandler(writer, handlerOptions)
	case "", "auto":
		if isTerminal(writer) {
			handler = slog.NewTextHandler(writer, handlerOptions)
		} else {
			handler = slog.NewJSONHandler(writer, handlerOptions)
		}
	default:
		return nil, fmt.Errorf("unknown log format %q (want json, text, or auto)", options.Format)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}

// ParseLevel maps a level name to its slog.Level. Empty means info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q (want debug, info, warn, or error)", name)
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}
