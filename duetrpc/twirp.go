// © Copyright 2025-2026, Duet RPC authors
// SPDX-License-Identifier: Apache-2.0

package duetrpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/klauspost/compress/gzhttp"
)

// defaultMaxBodyBytes bounds request body buffering against hostile clients.
// 10 MiB comfortably covers RPC payloads; raise it per router with
// SetMaxBodyBytes if a service genuinely needs more.
const defaultMaxBodyBytes = 10 << 20

// TwirpRouter binds Twirp method paths to handlers over a shared service
// instance S and router-level state RS. The binding table is built at
// startup and immutable afterwards; concurrent lookups need no
// synchronization. Use [Route] and [TwirpRouter.RouteStreaming] to bind
// paths, then [TwirpRouter.Build] to obtain the http.Handler.
type TwirpRouter[S, RS any] struct {
	mux          *http.ServeMux
	service      S
	state        RS
	maxBodyBytes int64
	hook         DispatchHook
	compress     bool
	paths        map[string]bool
}

// NewTwirpRouter creates a router around a service instance and router-level
// state. The service value is copied before each invocation; synchronization
// of shared service state is the service's own responsibility.
func NewTwirpRouter[S, RS any](service S, state RS) *TwirpRouter[S, RS] {
	r := &TwirpRouter[S, RS]{
		mux:          http.NewServeMux(),
		service:      service,
		state:        state,
		maxBodyBytes: defaultMaxBodyBytes,
		paths:        make(map[string]bool),
	}
	r.mux.HandleFunc("/", r.badRoute)
	return r
}

// SetMaxBodyBytes overrides the enforced request body size limit.
func (r *TwirpRouter[S, RS]) SetMaxBodyBytes(limit int64) {
	r.maxBodyBytes = limit
}

// SetDispatchHook registers a hook that is called around each dispatch.
func (r *TwirpRouter[S, RS]) SetDispatchHook(hook DispatchHook) {
	r.hook = hook
}

// EnableCompression wraps the built handler with gzip transport compression
// for clients that send Accept-Encoding: gzip.
func (r *TwirpRouter[S, RS]) EnableCompression() {
	r.compress = true
}

// RouteStreaming binds a path whose method has a streaming cardinality.
// Twirp has no streaming capability, so the binding always answers with an
// Unimplemented error regardless of payload.
func (r *TwirpRouter[S, RS]) RouteStreaming(path string) {
	r.bind(path)
	r.mux.HandleFunc("POST "+path, func(w http.ResponseWriter, _ *http.Request) {
		writeTwirpError(w, Unimplemented("Streaming is not supported by Twirp"))
	})
}

// Build returns the router as an http.Handler.
func (r *TwirpRouter[S, RS]) Build() http.Handler {
	if r.compress {
		return gzhttp.GzipHandler(r.mux)
	}
	return r.mux
}

// Route binds a unary handler at path. The handler runs the
// negotiate-decode-invoke-encode pipeline: the wire format negotiated from
// the request headers is reused for the response, and any failure maps to
// the canonical JSON error body. Registering the same path twice panics.
func Route[S, RS, I, O any, PI Message[I], PO Message[O]](
	r *TwirpRouter[S, RS],
	path string,
	handler func(ctx context.Context, service S, request PI, parts RequestParts, state RS) (PO, error),
) {
	r.bind(path)
	codec := codecFor[I, PI]()
	responseCodec := codecFor[O, PO]()

	r.mux.HandleFunc("POST "+path, func(w http.ResponseWriter, req *http.Request) {
		body, readErr := readBody(w, req, r.maxBodyBytes)
		if readErr != nil {
			writeTwirpError(w, readErr)
			return
		}

		format, negErr := negotiateFormat(req.Header)
		if negErr != nil {
			writeTwirpError(w, negErr)
			return
		}

		in := PI(new(I))
		if decErr := codec.decode(format, body, in); decErr != nil {
			writeTwirpError(w, decErr)
			return
		}

		parts := partsFromRequest(req)
		info := DispatchInfo{
			Path:              path,
			Transport:         DispatchTransportTwirp,
			Shape:             DispatchShapeUnary,
			TransportMetadata: parts.metadataMap(),
		}
		ctx, token, hookActive := hookStart(req.Context(), r.hook, info)
		stats := &CallStatistics{}
		stats.RecordInput(in)

		out, callErr := invokeUnary(ctx, r.service, in, parts, r.state, handler)
		if callErr == nil {
			stats.RecordOutput(out)
		}
		if hookActive {
			hookEnd(ctx, r.hook, token, info, stats, callErr)
		}
		if callErr != nil {
			writeTwirpError(w, toError(callErr))
			return
		}

		data, encErr := responseCodec.encode(format, out)
		if encErr != nil {
			writeTwirpError(w, encErr)
			return
		}
		w.Header().Set("Content-Type", format.contentType())
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	})
}

// invokeUnary calls the handler with panic containment. A panicking handler
// is downgraded to a generic Internal record; the panic value is logged, not
// sent to the client.
func invokeUnary[S, RS, I, O any, PI Message[I], PO Message[O]](
	ctx context.Context,
	service S,
	in PI,
	parts RequestParts,
	state RS,
	handler func(context.Context, S, PI, RequestParts, RS) (PO, error),
) (out PO, err error) {
	defer func() {
		if rv := recover(); rv != nil {
			slog.Error("handler panic", "path", parts.Path, "err", rv)
			err = Internal("Internal server error")
		}
	}()
	return handler(ctx, service, in, parts, state)
}

// bind records a path binding, enforcing at-most-once registration, and
// installs the routing-miss answer for non-POST methods on the path.
func (r *TwirpRouter[S, RS]) bind(path string) {
	if r.paths[path] {
		panic(fmt.Sprintf("duetrpc: path %q bound twice", path))
	}
	r.paths[path] = true
	r.mux.HandleFunc(path, r.badRoute)
}

// badRoute answers unbound paths and non-POST methods.
func (r *TwirpRouter[S, RS]) badRoute(w http.ResponseWriter, req *http.Request) {
	writeTwirpError(w, BadRoute(req.URL.Path+" is not a supported Twirp method"))
}

// readBody fully reads the request body under the enforced size limit.
func readBody(w http.ResponseWriter, req *http.Request, limit int64) ([]byte, *Error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, WrapError(CodeResourceExhausted, "Request body too large", err)
		}
		return nil, WrapError(CodeInternal, "Failed to read the request body", err)
	}
	return body, nil
}

// writeTwirpError renders the canonical JSON error body with the
// taxonomy-derived status. The body is fully built before the status line is
// written, so responses are all-or-nothing.
func writeTwirpError(w http.ResponseWriter, e *Error) {
	body := e.marshalBody()
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(e.Code.HTTPStatus())
	_, _ = w.Write(body)
}
