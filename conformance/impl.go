// © Copyright 2025-2026, Duet RPC authors
// SPDX-License-Identifier: Apache-2.0

package conformance

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/duetrpc/duetrpc/duetrpc"

	"google.golang.org/grpc"
)

// Method paths of the conformance service on both surfaces.
const (
	PathEcho       = "/duet.conformance.Conformance/Echo"
	PathFail       = "/duet.conformance.Conformance/Fail"
	PathEchoStream = "/duet.conformance.Conformance/EchoStream"
	PathCollect    = "/duet.conformance.Conformance/Collect"
	PathChat       = "/duet.conformance.Conformance/Chat"
)

// Service implements the conformance methods. The zero value is ready to
// use; a non-empty Greeting is prepended to every Echo response.
type Service struct {
	Greeting string
}

// Echo returns the request payload unchanged, with the optional greeting
// prepended to the text.
func (s Service) Echo(ctx context.Context, in *Payload) (*Payload, error) {
	out := NewPayload(s.Greeting + in.GetText())
	out.SetCount(in.GetCount())
	return out, nil
}

// Fail always answers with a NotFound error carrying the request text, to
// exercise error propagation on both surfaces.
func (s Service) Fail(ctx context.Context, in *Payload) (*Payload, error) {
	return nil, duetrpc.NotFound(fmt.Sprintf("no such thing: %s", in.GetText()))
}

// EchoStream emits the request text count times, numbering each item.
func (s Service) EchoStream(ctx context.Context, in *Payload) (iter.Seq2[*Payload, error], error) {
	if in.GetCount() < 0 {
		return nil, duetrpc.InvalidArgument("count must not be negative")
	}
	text, n := in.GetText(), in.GetCount()
	return func(yield func(*Payload, error) bool) {
		for i := int64(0); i < n; i++ {
			item := NewPayload(text)
			item.SetIndex(i)
			if !yield(item, nil) {
				return
			}
		}
	}, nil
}

// Collect concatenates the text of every inbound message and reports how
// many arrived.
func (s Service) Collect(ctx context.Context, stream *duetrpc.RecvStream[Payload]) (*Payload, error) {
	var sb strings.Builder
	var n int64
	for m, err := range stream.Messages() {
		if err != nil {
			return nil, err
		}
		sb.WriteString(m.GetText())
		n++
	}
	out := NewPayload(sb.String())
	out.SetCount(n)
	return out, nil
}

// Chat echoes each inbound message back as it arrives, numbering the
// responses.
func (s Service) Chat(ctx context.Context, stream *duetrpc.RecvStream[Payload]) (iter.Seq2[*Payload, error], error) {
	return func(yield func(*Payload, error) bool) {
		var i int64
		for m, err := range stream.Messages() {
			if err != nil {
				yield(nil, err)
				return
			}
			item := NewPayload(m.GetText())
			item.SetIndex(i)
			i++
			if !yield(item, nil) {
				return
			}
		}
	}, nil
}

// NewTwirpRouter binds the conformance service on the Twirp surface.
// Streaming methods are bound with RouteStreaming and answer Unimplemented.
func NewTwirpRouter(svc Service) *duetrpc.TwirpRouter[Service, struct{}] {
	r := duetrpc.NewTwirpRouter(svc, struct{}{})

	// Unary methods.
	duetrpc.Route(r, PathEcho, func(ctx context.Context, s Service, in *Payload, _ duetrpc.RequestParts, _ struct{}) (*Payload, error) {
		return s.Echo(ctx, in)
	})
	duetrpc.Route(r, PathFail, func(ctx context.Context, s Service, in *Payload, _ duetrpc.RequestParts, _ struct{}) (*Payload, error) {
		return s.Fail(ctx, in)
	})

	// Streaming methods have no Twirp rendition.
	r.RouteStreaming(PathEchoStream)
	r.RouteStreaming(PathCollect)
	r.RouteStreaming(PathChat)

	return r
}

// NewGrpcRouter binds the conformance service on the gRPC surface, one
// registration per capability shape.
func NewGrpcRouter(svc Service) *duetrpc.GrpcRouter[Service] {
	g := duetrpc.NewGrpcRouter(svc)

	duetrpc.Unary(g, PathEcho, func(ctx context.Context, s Service, in *Payload, _ duetrpc.RequestParts) (*Payload, error) {
		return s.Echo(ctx, in)
	})
	duetrpc.Unary(g, PathFail, func(ctx context.Context, s Service, in *Payload, _ duetrpc.RequestParts) (*Payload, error) {
		return s.Fail(ctx, in)
	})
	duetrpc.ServerStream(g, PathEchoStream, func(ctx context.Context, s Service, in *Payload, _ duetrpc.RequestParts) (iter.Seq2[*Payload, error], error) {
		return s.EchoStream(ctx, in)
	})
	duetrpc.ClientStream(g, PathCollect, func(ctx context.Context, s Service, stream *duetrpc.RecvStream[Payload], _ duetrpc.RequestParts) (*Payload, error) {
		return s.Collect(ctx, stream)
	})
	duetrpc.BidiStream(g, PathChat, func(ctx context.Context, s Service, stream *duetrpc.RecvStream[Payload], _ duetrpc.RequestParts) (iter.Seq2[*Payload, error], error) {
		return s.Chat(ctx, stream)
	})

	return g
}

// RegisterGrpc binds the conformance service and registers it with a gRPC
// server in one step.
func RegisterGrpc(svc Service, reg grpc.ServiceRegistrar) {
	NewGrpcRouter(svc).Register(reg)
}
