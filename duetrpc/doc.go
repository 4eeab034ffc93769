// Copyright 2025-2026, Duet RPC authors
// SPDX-License-Identifier: Apache-2.0

// Package duetrpc exposes one set of RPC handler implementations over two
// wire protocols at once: the Twirp HTTP+POST convention and gRPC.
//
// Handlers are plain functions over protobuf messages. The bridge owns
// content-type negotiation, message transcoding between binary protobuf and
// JSON, adaptation into the four gRPC capability shapes, and a canonical
// error taxonomy whose codes map to exactly one status on each surface.
// Handler code never sees which transport a request arrived on: every
// invocation receives the same [RequestParts] view.
//
// # Twirp surface
//
// [TwirpRouter] binds POST /<package>.<Service>/<Method> paths. Bodies are
// application/protobuf or application/json, negotiated per request from the
// Content-Type header and mirrored in the response. Failures produce the
// canonical JSON error body:
//
//	{"code":"<taxonomy-code>","msg":"<message>"}
//
// with the HTTP status derived from the taxonomy. Paths whose method has a
// streaming cardinality are bound with [TwirpRouter.RouteStreaming] and
// always answer Unimplemented, since Twirp has no streaming capability.
//
// # gRPC surface
//
// [GrpcRouter] presents the same handlers through grpc.ServiceDesc method
// and stream tables, one descriptor per service, registered with
// [GrpcRouter.Register]. Four shapes are supported: [Unary], [ServerStream],
// [ClientStream], and [BidiStream]. Streaming sequences are lazy pull
// streams typed iter.Seq2; an error item is always terminal and becomes the
// stream's gRPC status.
//
// # Errors
//
// [Error] carries a taxonomy code and a message that crosses the wire
// verbatim on both surfaces. An optional wrapped cause is for local
// diagnostics only and is never serialized. [ErrorFromResponse] lifts a
// generic HTTP response into the taxonomy.
//
// # Observability
//
// A [DispatchHook] is called around every dispatch on both surfaces. The
// duetrpc/otel subpackage implements it with OpenTelemetry tracing and
// metrics.
package duetrpc
