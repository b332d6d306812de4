// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fnapi

import "fmt"

// Codec is a gRPC codec (google.golang.org/grpc/encoding.Codec) for
// the messages in this package. It reports the name "proto" so that
// the content type on the wire is application/grpc+proto, which is
// what a Beam collector expects.
//
// Clients install it per call with grpc.ForceCodec; servers with
// grpc.ForceServerCodec. It is not registered globally so it never
// shadows the real protobuf codec in a process that also uses
// generated messages.
type Codec struct{}

// Marshal encodes v, which must implement [Message].
func (Codec) Marshal(v any) ([]byte, error) {
	message, ok := v.(Message)
	if !ok {
		return nil, fmt.Errorf("fnapi: cannot marshal %T", v)
	}
	return message.MarshalWire()
}

// Unmarshal decodes data into v, which must implement [Message].
func (Codec) Unmarshal(data []byte, v any) error {
	message, ok := v.(Message)
	if !ok {
		return fmt.Errorf("fnapi: cannot unmarshal into %T", v)
	}
	return message.UnmarshalWire(data)
}

// Name returns the codec's content subtype.
func (Codec) Name() string { return "proto" }
