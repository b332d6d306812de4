// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fnapi

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"google.golang.org/grpc/encoding"
)

func TestRegisteredCompressorsRoundTrip(t *testing.T) {
	payload := []byte(strings.Repeat("worker output line\n", 500))

	for _, name := range []string{CompressionGzip, CompressionZstd, CompressionLZ4} {
		t.Run(name, func(t *testing.T) {
			compressor := encoding.GetCompressor(name)
			if compressor == nil {
				t.Fatalf("compressor %q not registered", name)
			}

			var compressed bytes.Buffer
			writer, err := compressor.Compress(&compressed)
			if err != nil {
				t.Fatalf("Compress: %v", err)
			}
			if _, err := writer.Write(payload); err != nil {
				t.Fatalf("Write: %v", err)
			}
			if err := writer.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}
			if compressed.Len() >= len(payload) {
				t.Fatalf("compressed %d bytes into %d", len(payload), compressed.Len())
			}

			reader, err := compressor.Decompress(&compressed)
			if err != nil {
				t.Fatalf("Decompress: %v", err)
			}
			restored, err := io.ReadAll(reader)
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			if !bytes.Equal(restored, payload) {
				t.Fatalf("round trip changed %d bytes into %d bytes", len(payload), len(restored))
			}
		})
	}
}

func TestValidCompression(t *testing.T) {
	for _, name := range []string{"", "none", "gzip", "zstd", "lz4"} {
		if !ValidCompression(name) {
			t.Errorf("ValidCompression(%q) = false", name)
		}
	}
	for _, name := range []string{"snappy", "GZIP", "brotli"} {
		if ValidCompression(name) {
			t.Errorf("ValidCompression(%q) = true", name)
		}
	}
}
