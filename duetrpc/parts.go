package duetrpc

import (
	"context"
	"net/http"
	"net/textproto"
	"strings"

	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
)

// RequestParts is the immutable transport-agnostic view of an inbound request
// passed to every handler, regardless of which surface the request arrived
// on. On the gRPC surface Method is fixed to POST and Header holds the
// incoming connection metadata, so handler code never branches on transport.
type RequestParts struct {
	// Method is the HTTP method. Always POST on both surfaces.
	Method string
	// Path is the full method path, /<package>.<Service>/<Method>.
	Path string
	// Header holds the request headers (Twirp) or the incoming metadata
	// converted to header form (gRPC).
	Header http.Header
	// Peer is the remote address, when the transport exposes one.
	Peer string
}

// partsFromRequest builds RequestParts from an HTTP request.
func partsFromRequest(r *http.Request) RequestParts {
	return RequestParts{
		Method: r.Method,
		Path:   r.URL.Path,
		Header: r.Header,
		Peer:   r.RemoteAddr,
	}
}

// partsFromIncomingContext builds RequestParts from gRPC connection metadata.
// The framed body is not touched here; the transport engine owns message
// framing.
func partsFromIncomingContext(ctx context.Context, path string) RequestParts {
	parts := RequestParts{
		Method: http.MethodPost,
		Path:   path,
		Header: http.Header{},
	}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		for key, values := range md {
			canonical := textproto.CanonicalMIMEHeaderKey(key)
			for _, value := range values {
				parts.Header.Add(canonical, value)
			}
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		parts.Peer = p.Addr.String()
	}
	return parts
}

// metadataMap flattens the parts headers into a lowercase-keyed map for
// dispatch hooks. Keys are lowercased because trace context extraction reads
// the map as a case-sensitive carrier ("traceparent", "tracestate").
func (p RequestParts) metadataMap() map[string]string {
	m := make(map[string]string, len(p.Header)+2)
	for key, values := range p.Header {
		if len(values) > 0 {
			m[strings.ToLower(key)] = values[0]
		}
	}
	if p.Peer != "" {
		m["remote_addr"] = p.Peer
	}
	return m
}
