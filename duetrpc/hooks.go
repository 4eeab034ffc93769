// © Copyright 2025-2026, Duet RPC authors
// SPDX-License-Identifier: Apache-2.0

package duetrpc

import (
	"context"
	"log/slog"

	"google.golang.org/protobuf/proto"
)

// Transport name constants for DispatchInfo.Transport.
const (
	DispatchTransportTwirp = "twirp"
	DispatchTransportGrpc  = "grpc"
)

// Shape constants for DispatchInfo.Shape.
const (
	DispatchShapeUnary        = "unary"
	DispatchShapeServerStream = "server_stream"
	DispatchShapeClientStream = "client_stream"
	DispatchShapeBidiStream   = "bidi_stream"
)

// DispatchHook provides observability callpoints around RPC dispatch on both
// surfaces. Implementations must be safe for concurrent use.
type DispatchHook interface {
	OnDispatchStart(ctx context.Context, info DispatchInfo) (context.Context, HookToken)
	OnDispatchEnd(ctx context.Context, token HookToken, info DispatchInfo, stats *CallStatistics, err error)
}

// HookToken is an opaque value returned by OnDispatchStart and passed back to
// OnDispatchEnd. Only meaningful to the DispatchHook that created it.
type HookToken interface{}

// DispatchInfo carries method metadata passed to hooks.
type DispatchInfo struct {
	Path              string            // full method path, /<package>.<Service>/<Method>
	Transport         string            // DispatchTransportTwirp or DispatchTransportGrpc
	Shape             string            // one of the DispatchShape constants
	TransportMetadata map[string]string // lowercase header / metadata map
}

// CallStatistics holds per-call message counters.
type CallStatistics struct {
	InputMessages  int64
	OutputMessages int64
	InputBytes     int64
	OutputBytes    int64
}

// RecordInput records one inbound message.
func (s *CallStatistics) RecordInput(m proto.Message) {
	s.InputMessages++
	s.InputBytes += int64(proto.Size(m))
}

// RecordOutput records one outbound message.
func (s *CallStatistics) RecordOutput(m proto.Message) {
	s.OutputMessages++
	s.OutputBytes += int64(proto.Size(m))
}

// hookStart invokes the hook's start callpoint, tolerating panics so a
// misbehaving hook cannot abort request processing.
func hookStart(ctx context.Context, hook DispatchHook, info DispatchInfo) (context.Context, HookToken, bool) {
	if hook == nil {
		return ctx, nil, false
	}
	var token HookToken
	var active bool
	func() {
		defer func() {
			if rv := recover(); rv != nil {
				slog.Error("dispatch hook start panic", "err", rv)
			}
		}()
		var hookCtx context.Context
		hookCtx, token = hook.OnDispatchStart(ctx, info)
		if hookCtx != nil {
			ctx = hookCtx
		}
		active = true
	}()
	return ctx, token, active
}

// hookEnd invokes the hook's end callpoint, panic-safe like hookStart.
func hookEnd(ctx context.Context, hook DispatchHook, token HookToken, info DispatchInfo, stats *CallStatistics, err error) {
	func() {
		defer func() {
			if rv := recover(); rv != nil {
				slog.Error("dispatch hook end panic", "err", rv)
			}
		}()
		hook.OnDispatchEnd(ctx, token, info, stats, err)
	}()
}
