// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fnapi

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/encoding/gzip"
)

// Names of the stream compressors a channel may request. Gzip is
// provided by gRPC itself; the other two are registered by this
// package.
const (
	CompressionNone = "none"
	CompressionGzip = gzip.Name
	CompressionZstd = "zstd"
	CompressionLZ4  = "lz4"
)

// ValidCompression reports whether name is a known compressor (or
// "none"/empty for no compression).
func ValidCompression(name string) bool {
	switch name {
	case "", CompressionNone, CompressionGzip, CompressionZstd, CompressionLZ4:
		return true
	}
	return false
}

// zstdEncoder and zstdDecoder are shared by every message. Both are
// safe for concurrent use through EncodeAll and DecodeAll.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("fnapi: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("fnapi: zstd decoder initialization failed: " + err.Error())
	}

	encoding.RegisterCompressor(zstdCompressor{})
	encoding.RegisterCompressor(lz4Compressor{})
}

// zstdCompressor compresses each gRPC message as one zstd frame.
type zstdCompressor struct{}

func (zstdCompressor) Name() string { return CompressionZstd }

func (zstdCompressor) Compress(w io.Writer) (io.WriteCloser, error) {
	return &frameWriter{destination: w}, nil
}

func (zstdCompressor) Decompress(r io.Reader) (io.Reader, error) {
	compressed, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data, err := zstdDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return bytes.NewReader(data), nil
}

// frameWriter buffers one message and emits it as a single zstd
// frame on Close.
type frameWriter struct {
	destination io.Writer
	buffer      bytes.Buffer
}

func (w *frameWriter) Write(p []byte) (int, error) {
	return w.buffer.Write(p)
}

func (w *frameWriter) Close() error {
	_, err := w.destination.Write(zstdEncoder.EncodeAll(w.buffer.Bytes(), nil))
	return err
}

// lz4Compressor uses the lz4 frame format, streaming.
type lz4Compressor struct{}

func (lz4Compressor) Name() string { return CompressionLZ4 }

func (lz4Compressor) Compress(w io.Writer) (io.WriteCloser, error) {
	return lz4.NewWriter(w), nil
}

func (lz4Compressor) Decompress(r io.Reader) (io.Reader, error) {
	return lz4.NewReader(r), nil
}
