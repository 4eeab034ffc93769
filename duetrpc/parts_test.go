// © Copyright 2025-2026, Duet RPC authors
// SPDX-License-Identifier: Apache-2.0

package duetrpc

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/grpc/metadata"
)

func TestPartsFromRequest(t *testing.T) {
	req := httptest.NewRequest("POST", "/duet.test.Svc/Echo", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "10.0.0.1:4242"

	parts := partsFromRequest(req)
	if parts.Method != "POST" {
		t.Errorf("Method = %q, want POST", parts.Method)
	}
	if parts.Path != "/duet.test.Svc/Echo" {
		t.Errorf("Path = %q, want the request path", parts.Path)
	}
	if parts.Peer != "10.0.0.1:4242" {
		t.Errorf("Peer = %q, want the remote address", parts.Peer)
	}
}

func TestPartsFromIncomingContext(t *testing.T) {
	md := metadata.Pairs("user-agent", "grpc-go/1.78.0", "traceparent", "00-abc-def-01")
	ctx := metadata.NewIncomingContext(context.Background(), md)

	parts := partsFromIncomingContext(ctx, "/duet.test.Svc/Echo")
	if parts.Method != "POST" {
		t.Errorf("Method = %q, want POST", parts.Method)
	}
	if got := parts.Header.Get("User-Agent"); got != "grpc-go/1.78.0" {
		t.Errorf("User-Agent = %q, want the metadata value", got)
	}

	m := parts.metadataMap()
	// Keys are lowercased so trace context extraction finds "traceparent".
	if got := m["traceparent"]; got != "00-abc-def-01" {
		t.Errorf("traceparent = %q, want the metadata value", got)
	}
	if got := m["user-agent"]; got != "grpc-go/1.78.0" {
		t.Errorf("user-agent = %q, want the metadata value", got)
	}
}

func TestMetadataMapIncludesPeer(t *testing.T) {
	parts := RequestParts{Peer: "10.0.0.1:4242"}
	if got := parts.metadataMap()["remote_addr"]; got != "10.0.0.1:4242" {
		t.Errorf("remote_addr = %q, want the peer address", got)
	}
}
