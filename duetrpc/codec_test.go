// © Copyright 2025-2026, Duet RPC authors
// SPDX-License-Identifier: Apache-2.0

package duetrpc

import (
	"net/http"
	"strings"
	"testing"

	"google.golang.org/protobuf/proto"
)

func TestNegotiateFormat(t *testing.T) {
	tests := []struct {
		name        string
		contentType []string
		want        wireFormat
		wantErr     string
	}{
		{name: "protobuf", contentType: []string{"application/protobuf"}, want: formatProtobuf},
		{name: "json", contentType: []string{"application/json"}, want: formatJSON},
		{name: "missing", contentType: nil, wantErr: "No content-type header"},
		{name: "unsupported", contentType: []string{"foo/bar"}, wantErr: "Unsupported content type: foo/bar"},
		{name: "no media type parameters", contentType: []string{"application/json; charset=utf-8"},
			wantErr: "Unsupported content type: application/json; charset=utf-8"},
		{name: "first value wins", contentType: []string{"application/json", "foo/bar"}, want: formatJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for _, v := range tt.contentType {
				h.Add("Content-Type", v)
			}
			got, err := negotiateFormat(h)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("negotiateFormat = %v, want error", got)
				}
				if err.Code != CodeMalformed {
					t.Errorf("code = %q, want malformed", err.Code)
				}
				if err.Msg != tt.wantErr {
					t.Errorf("msg = %q, want %q", err.Msg, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("negotiateFormat: %v", err)
			}
			if got != tt.want {
				t.Errorf("format = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCodecBinaryRoundTrip(t *testing.T) {
	c := codecFor[note, *note]()
	in := newNote("round trip", 42)

	data, encErr := c.encode(formatProtobuf, in)
	if encErr != nil {
		t.Fatalf("encode: %v", encErr)
	}
	out := &note{}
	if decErr := c.decode(formatProtobuf, data, out); decErr != nil {
		t.Fatalf("decode: %v", decErr)
	}
	if !proto.Equal(in, out) {
		t.Errorf("round trip mismatch: got text=%q number=%d", out.getText(), out.getNumber())
	}
}

func TestCodecJSONRoundTrip(t *testing.T) {
	c := codecFor[note, *note]()
	in := newNote("round trip", 42)

	data, encErr := c.encode(formatJSON, in)
	if encErr != nil {
		t.Fatalf("encode: %v", encErr)
	}
	out := &note{}
	if decErr := c.decode(formatJSON, data, out); decErr != nil {
		t.Fatalf("decode %s: %v", data, decErr)
	}
	if !proto.Equal(in, out) {
		t.Errorf("round trip mismatch: got text=%q number=%d", out.getText(), out.getNumber())
	}
}

func TestCodecEmptyBinaryIsDefaultMessage(t *testing.T) {
	c := codecFor[note, *note]()
	out := &note{}
	if decErr := c.decode(formatProtobuf, nil, out); decErr != nil {
		t.Fatalf("decode: %v", decErr)
	}
	if out.getText() != "" || out.getNumber() != 0 {
		t.Errorf("got text=%q number=%d, want defaults", out.getText(), out.getNumber())
	}
}

func TestCodecTruncatedBinary(t *testing.T) {
	c := codecFor[note, *note]()
	decErr := c.decode(formatProtobuf, []byte("1234"), &note{})
	if decErr == nil {
		t.Fatal("decode accepted truncated input")
	}
	if decErr.Code != CodeMalformed {
		t.Errorf("code = %q, want malformed", decErr.Code)
	}
	if !strings.HasPrefix(decErr.Msg, "Invalid binary protobuf request: ") {
		t.Errorf("msg = %q, want decode failure description", decErr.Msg)
	}
}

func TestCodecMalformedJSON(t *testing.T) {
	c := codecFor[note, *note]()
	decErr := c.decode(formatJSON, []byte("foo"), &note{})
	if decErr == nil {
		t.Fatal("decode accepted malformed input")
	}
	if decErr.Code != CodeMalformed {
		t.Errorf("code = %q, want malformed", decErr.Code)
	}
	if !strings.HasPrefix(decErr.Msg, "Invalid JSON protobuf request: ") {
		t.Errorf("msg = %q, want parse failure description", decErr.Msg)
	}
}

func TestCodecJSONTrailingContent(t *testing.T) {
	// Decoding is strict to EOF: anything after the top-level value is a
	// parse error, not ignored input.
	c := codecFor[note, *note]()
	decErr := c.decode(formatJSON, []byte(`{"text":"a"} trailing`), &note{})
	if decErr == nil {
		t.Fatal("decode accepted trailing content")
	}
	if decErr.Code != CodeMalformed {
		t.Errorf("code = %q, want malformed", decErr.Code)
	}
	if !strings.HasPrefix(decErr.Msg, "Invalid JSON protobuf request: ") {
		t.Errorf("msg = %q, want parse failure description", decErr.Msg)
	}
}

func TestCodecUnknownJSONFieldIsClientFault(t *testing.T) {
	c := codecFor[note, *note]()
	decErr := c.decode(formatJSON, []byte(`{"nope":1}`), &note{})
	if decErr == nil {
		t.Fatal("decode accepted unknown field")
	}
	if decErr.Code != CodeMalformed {
		t.Errorf("code = %q, want malformed", decErr.Code)
	}
}

func TestCodecJSONInt64AsString(t *testing.T) {
	// protojson accepts int64 both as a number and as a decimal string.
	c := codecFor[note, *note]()
	out := &note{}
	if decErr := c.decode(formatJSON, []byte(`{"text":"n","number":"7"}`), out); decErr != nil {
		t.Fatalf("decode: %v", decErr)
	}
	if got := out.getNumber(); got != 7 {
		t.Errorf("number = %d, want 7", got)
	}
}
