// © Copyright 2025-2026, Duet RPC authors
// SPDX-License-Identifier: Apache-2.0

package duetrpc

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
)

// GrpcRouter presents handlers bound by path through whichever of the four
// capability shapes the streaming transport requests for each method: unary,
// server-streaming, client-streaming, or bidi-streaming. Bindings are
// grouped into one grpc.ServiceDesc per <package>.<Service> and registered
// with [GrpcRouter.Register]. Like the Twirp surface, the binding table is
// write-once at startup.
type GrpcRouter[S any] struct {
	service  S
	hook     DispatchHook
	services map[string]*grpcServiceEntry
	order    []string
	paths    map[string]bool
}

// grpcServiceEntry collects the method and stream tables for one service.
type grpcServiceEntry struct {
	methods []grpc.MethodDesc
	streams []grpc.StreamDesc
}

// NewGrpcRouter creates a router around a service instance. The service
// value is copied before each invocation, exactly as on the Twirp surface;
// the adapter performs no synchronization of its own.
func NewGrpcRouter[S any](service S) *GrpcRouter[S] {
	return &GrpcRouter[S]{
		service:  service,
		services: make(map[string]*grpcServiceEntry),
		paths:    make(map[string]bool),
	}
}

// SetDispatchHook registers a hook that is called around each dispatch.
func (g *GrpcRouter[S]) SetDispatchHook(hook DispatchHook) {
	g.hook = hook
}

// Register materializes the collected bindings as gRPC service descriptors
// and registers them with the transport engine, in registration order.
func (g *GrpcRouter[S]) Register(reg grpc.ServiceRegistrar) {
	for _, name := range g.order {
		entry := g.services[name]
		reg.RegisterService(&grpc.ServiceDesc{
			ServiceName: name,
			HandlerType: (*any)(nil),
			Methods:     entry.methods,
			Streams:     entry.streams,
			Metadata:    "duetrpc",
		}, g)
	}
}

// bind validates and records a path binding, returning its service and
// method components.
func (g *GrpcRouter[S]) bind(path string) (service, method string) {
	service, method, ok := splitMethodPath(path)
	if !ok {
		panic(fmt.Sprintf("duetrpc: path %q is not of the form /<package>.<Service>/<Method>", path))
	}
	if g.paths[path] {
		panic(fmt.Sprintf("duetrpc: path %q bound twice", path))
	}
	g.paths[path] = true
	if _, ok := g.services[service]; !ok {
		g.services[service] = &grpcServiceEntry{}
		g.order = append(g.order, service)
	}
	return service, method
}

// splitMethodPath splits "/<package>.<Service>/<Method>" into its service
// and method names.
func splitMethodPath(path string) (service, method string, ok bool) {
	rest, found := strings.CutPrefix(path, "/")
	if !found {
		return "", "", false
	}
	service, method, found = strings.Cut(rest, "/")
	if !found || service == "" || method == "" || strings.Contains(method, "/") {
		return "", "", false
	}
	return service, method, true
}

// grpcDispatchInfo builds the hook metadata for one gRPC dispatch.
func grpcDispatchInfo(path, shape string, parts RequestParts) DispatchInfo {
	return DispatchInfo{
		Path:              path,
		Transport:         DispatchTransportGrpc,
		Shape:             shape,
		TransportMetadata: parts.metadataMap(),
	}
}

// Unary binds a handler with one input and one output. The transport engine
// decodes the framed request before the handler runs; a handler error
// replaces the response with the taxonomy-derived terminal status.
func Unary[S, I, O any, PI Message[I], PO Message[O]](
	g *GrpcRouter[S],
	path string,
	handler func(ctx context.Context, service S, request PI, parts RequestParts) (PO, error),
) {
	service, method := g.bind(path)

	h := func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := PI(new(I))
		if err := dec(in); err != nil {
			return nil, err
		}
		call := func(ctx context.Context, req any) (any, error) {
			parts := partsFromIncomingContext(ctx, path)
			info := grpcDispatchInfo(path, DispatchShapeUnary, parts)
			ctx, token, active := hookStart(ctx, g.hook, info)
			stats := &CallStatistics{}
			stats.RecordInput(req.(PI))

			out, callErr := invokeGrpcUnary(ctx, g.service, req.(PI), parts, handler)
			if callErr == nil {
				stats.RecordOutput(out)
			}
			if active {
				hookEnd(ctx, g.hook, token, info, stats, callErr)
			}
			if callErr != nil {
				return nil, statusError(callErr)
			}
			return out, nil
		}
		if interceptor == nil {
			return call(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: path}
		return interceptor(ctx, in, info, call)
	}

	g.services[service].methods = append(g.services[service].methods, grpc.MethodDesc{
		MethodName: method,
		Handler:    h,
	})
}

// invokeGrpcUnary calls the handler with panic containment, mirroring the
// Twirp surface.
func invokeGrpcUnary[S, I, O any, PI Message[I], PO Message[O]](
	ctx context.Context,
	service S,
	in PI,
	parts RequestParts,
	handler func(context.Context, S, PI, RequestParts) (PO, error),
) (out PO, err error) {
	defer func() {
		if rv := recover(); rv != nil {
			slog.Error("handler panic", "path", parts.Path, "err", rv)
			err = Internal("Internal server error")
		}
	}()
	return handler(ctx, service, in, parts)
}

// ServerStream binds a handler with one input and an output sequence. Each
// emitted message becomes one frame; the first error item ends the stream
// with the taxonomy-derived terminal status and nothing follows it.
func ServerStream[S, I, O any, PI Message[I], PO Message[O]](
	g *GrpcRouter[S],
	path string,
	handler func(ctx context.Context, service S, request PI, parts RequestParts) (iter.Seq2[PO, error], error),
) {
	service, method := g.bind(path)

	h := func(_ any, stream grpc.ServerStream) error {
		in := PI(new(I))
		if err := stream.RecvMsg(any(in)); err != nil {
			return err
		}
		ctx := stream.Context()
		parts := partsFromIncomingContext(ctx, path)
		info := grpcDispatchInfo(path, DispatchShapeServerStream, parts)
		ctx, token, active := hookStart(ctx, g.hook, info)
		stats := &CallStatistics{}
		stats.RecordInput(in)

		appErr, transportErr := func() (appErr, transportErr error) {
			defer func() {
				if rv := recover(); rv != nil {
					slog.Error("handler panic", "path", path, "err", rv)
					appErr = Internal("Internal server error")
				}
			}()
			seq, err := handler(ctx, g.service, in, parts)
			if err != nil {
				return err, nil
			}
			return sendAll(stream, seq, stats)
		}()

		if active {
			hookEnd(ctx, g.hook, token, info, stats, appErr)
		}
		if appErr != nil {
			return statusError(appErr)
		}
		return transportErr
	}

	g.services[service].streams = append(g.services[service].streams, grpc.StreamDesc{
		StreamName:    method,
		Handler:       h,
		ServerStreams: true,
	})
}

// ClientStream binds a handler that consumes an input sequence and produces
// one output. The inbound framed sequence is exposed through a [RecvStream];
// per-item decode failures reach the handler as taxonomy errors.
func ClientStream[S, I, O any, PI Message[I], PO Message[O]](
	g *GrpcRouter[S],
	path string,
	handler func(ctx context.Context, service S, stream *RecvStream[I], parts RequestParts) (PO, error),
) {
	service, method := g.bind(path)

	h := func(_ any, stream grpc.ServerStream) error {
		ctx := stream.Context()
		parts := partsFromIncomingContext(ctx, path)
		info := grpcDispatchInfo(path, DispatchShapeClientStream, parts)
		ctx, token, active := hookStart(ctx, g.hook, info)
		stats := &CallStatistics{}

		out, appErr := func() (out PO, appErr error) {
			defer func() {
				if rv := recover(); rv != nil {
					slog.Error("handler panic", "path", path, "err", rv)
					appErr = Internal("Internal server error")
				}
			}()
			return handler(ctx, g.service, newRecvStream[I](stream, stats), parts)
		}()

		var transportErr error
		if appErr == nil {
			stats.RecordOutput(out)
			transportErr = stream.SendMsg(any(out))
		}
		if active {
			hookEnd(ctx, g.hook, token, info, stats, appErr)
		}
		if appErr != nil {
			return statusError(appErr)
		}
		return transportErr
	}

	g.services[service].streams = append(g.services[service].streams, grpc.StreamDesc{
		StreamName:    method,
		Handler:       h,
		ClientStreams: true,
	})
}

// BidiStream binds a handler that consumes an input sequence and produces an
// output sequence. Input and output are independent pull streams; the
// consumer side drives progress on each.
func BidiStream[S, I, O any, PI Message[I], PO Message[O]](
	g *GrpcRouter[S],
	path string,
	handler func(ctx context.Context, service S, stream *RecvStream[I], parts RequestParts) (iter.Seq2[PO, error], error),
) {
	service, method := g.bind(path)

	h := func(_ any, stream grpc.ServerStream) error {
		ctx := stream.Context()
		parts := partsFromIncomingContext(ctx, path)
		info := grpcDispatchInfo(path, DispatchShapeBidiStream, parts)
		ctx, token, active := hookStart(ctx, g.hook, info)
		stats := &CallStatistics{}

		appErr, transportErr := func() (appErr, transportErr error) {
			defer func() {
				if rv := recover(); rv != nil {
					slog.Error("handler panic", "path", path, "err", rv)
					appErr = Internal("Internal server error")
				}
			}()
			seq, err := handler(ctx, g.service, newRecvStream[I](stream, stats), parts)
			if err != nil {
				return err, nil
			}
			return sendAll(stream, seq, stats)
		}()

		if active {
			hookEnd(ctx, g.hook, token, info, stats, appErr)
		}
		if appErr != nil {
			return statusError(appErr)
		}
		return transportErr
	}

	g.services[service].streams = append(g.services[service].streams, grpc.StreamDesc{
		StreamName:    method,
		Handler:       h,
		ServerStreams: true,
		ClientStreams: true,
	})
}
