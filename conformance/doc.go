// © Copyright 2025-2026, Duet RPC authors
// SPDX-License-Identifier: Apache-2.0

// Package conformance implements the reference service used to validate
// duetrpc implementations across both protocol surfaces.
//
// The service exposes one method per capability shape, all over a single
// [Payload] message:
//
//   - Echo: unary, returns the payload unchanged
//   - Fail: unary, always answers NotFound
//   - EchoStream: server-streaming, emits the text count times
//   - Collect: client-streaming, concatenates inbound texts
//   - Chat: bidi-streaming, echoes each inbound message
//
// [NewTwirpRouter] serves the unary methods over Twirp and binds the
// streaming methods to the mandated Unimplemented answer. [NewGrpcRouter]
// serves all five shapes over gRPC. The cmd/duet-conformance binary runs
// both surfaces side by side.
package conformance
