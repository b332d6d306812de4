// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fnapi

import (
	"context"

	"google.golang.org/grpc"
)

const (
	// LoggingServiceName is the fully qualified collector service.
	LoggingServiceName = "org.apache.beam.model.fn_execution.v1.BeamFnLogging"

	// LoggingMethod is the full method name of the logging stream.
	LoggingMethod = "/" + LoggingServiceName + "/Logging"

	// WorkerIDMetadataKey is the single metadata key attached to the
	// logging stream, carrying the worker identity.
	WorkerIDMetadataKey = "worker_id"
)

// LoggingStreamDesc describes the bidirectional logging stream for
// grpc.ClientConn.NewStream.
var LoggingStreamDesc = grpc.StreamDesc{
	StreamName:    "Logging",
	ServerStreams: true,
	ClientStreams: true,
}

// LoggingServer is the collector side of the logging stream.
type LoggingServer interface {
	Logging(stream LoggingStream) error
}

// LoggingStream is the server's view of one worker's logging stream.
type LoggingStream interface {
	Context() context.Context
	Recv() (*LogEntryList, error)
	Send(*LogControl) error
}

// RegisterLoggingServer registers server on registrar. The gRPC server
// must be created with grpc.ForceServerCodec(Codec{}).
func RegisterLoggingServer(registrar grpc.ServiceRegistrar, server LoggingServer) {
	registrar.RegisterService(&loggingServiceDesc, server)
}

var loggingServiceDesc = grpc.ServiceDesc{
	ServiceName: LoggingServiceName,
	HandlerType: (*LoggingServer)(nil),
	Streams: []grpc.StreamDesc{{
		StreamName:    "Logging",
		Handler:       loggingHandler,
		ServerStreams: true,
		ClientStreams: true,
	}},
	Metadata: "beam_fn_api.proto",
}

func loggingHandler(server any, stream grpc.ServerStream) error {
	return server.(LoggingServer).Logging(&loggingServerStream{stream})
}

type loggingServerStream struct {
	grpc.ServerStream
}

func (s *loggingServerStream) Recv() (*LogEntryList, error) {
	list := new(LogEntryList)
	if err := s.ServerStream.RecvMsg(list); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *loggingServerStream) Send(control *LogControl) error {
	return s.ServerStream.SendMsg(control)
}
