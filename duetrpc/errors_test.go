// © Copyright 2025-2026, Duet RPC authors
// SPDX-License-Identifier: Apache-2.0

package duetrpc

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorCodeMappings(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		httpWant int
		grpcWant codes.Code
	}{
		{CodeCanceled, http.StatusRequestTimeout, codes.Canceled},
		{CodeUnknown, http.StatusInternalServerError, codes.Unknown},
		{CodeInvalidArgument, http.StatusBadRequest, codes.InvalidArgument},
		{CodeMalformed, http.StatusBadRequest, codes.InvalidArgument},
		{CodeDeadlineExceeded, http.StatusRequestTimeout, codes.DeadlineExceeded},
		{CodeNotFound, http.StatusNotFound, codes.NotFound},
		{CodeBadRoute, http.StatusNotFound, codes.NotFound},
		{CodeAlreadyExists, http.StatusConflict, codes.AlreadyExists},
		{CodePermissionDenied, http.StatusForbidden, codes.PermissionDenied},
		{CodeUnauthenticated, http.StatusUnauthorized, codes.Unauthenticated},
		{CodeResourceExhausted, http.StatusTooManyRequests, codes.ResourceExhausted},
		{CodeFailedPrecondition, http.StatusPreconditionFailed, codes.FailedPrecondition},
		{CodeAborted, http.StatusConflict, codes.Aborted},
		{CodeOutOfRange, http.StatusBadRequest, codes.OutOfRange},
		{CodeUnimplemented, http.StatusNotImplemented, codes.Unimplemented},
		{CodeInternal, http.StatusInternalServerError, codes.Internal},
		{CodeUnavailable, http.StatusServiceUnavailable, codes.Unavailable},
		{CodeDataLoss, http.StatusInternalServerError, codes.DataLoss},
	}

	for _, tt := range tests {
		if got := tt.code.HTTPStatus(); got != tt.httpWant {
			t.Errorf("%s HTTPStatus = %d, want %d", tt.code, got, tt.httpWant)
		}
		if got := tt.code.GRPCCode(); got != tt.grpcWant {
			t.Errorf("%s GRPCCode = %v, want %v", tt.code, got, tt.grpcWant)
		}
	}
}

func TestCodeFromGRPCIsTotal(t *testing.T) {
	// Every native gRPC code must lift to a taxonomy code that maps back to
	// itself; unknown numeric codes fold into unknown.
	for c := codes.Canceled; c <= codes.Unauthenticated; c++ {
		lifted := codeFromGRPC(c)
		if got := lifted.GRPCCode(); got != c {
			t.Errorf("codeFromGRPC(%v).GRPCCode() = %v, want %v", c, got, c)
		}
	}
	if got := codeFromGRPC(codes.Code(999)); got != CodeUnknown {
		t.Errorf("codeFromGRPC(999) = %q, want unknown", got)
	}
	// OK never accompanies a non-nil error; it folds into unknown.
	if got := codeFromGRPC(codes.OK); got != CodeUnknown {
		t.Errorf("codeFromGRPC(OK) = %q, want unknown", got)
	}
}

func TestErrorIs(t *testing.T) {
	err := NotFound("nothing here")
	if !errors.Is(err, ErrDuet) {
		t.Error("errors.Is(NotFound, ErrDuet) = false, want true")
	}
	wrapped := fmt.Errorf("outer: %w", err)
	if !errors.Is(wrapped, ErrDuet) {
		t.Error("errors.Is(wrapped, ErrDuet) = false, want true")
	}
	var de *Error
	if !errors.As(wrapped, &de) || de.Code != CodeNotFound {
		t.Errorf("errors.As = %v, want the NotFound record", de)
	}
}

func TestToError(t *testing.T) {
	de := InvalidArgument("bad input")
	if got := toError(de); got != de {
		t.Errorf("toError(*Error) = %v, want identity", got)
	}

	plain := errors.New("disk on fire")
	lifted := toError(plain)
	if lifted.Code != CodeInternal {
		t.Errorf("code = %q, want internal", lifted.Code)
	}
	if lifted.Msg != "disk on fire" {
		t.Errorf("msg = %q, want the error text", lifted.Msg)
	}
	if !errors.Is(lifted, plain) {
		t.Error("lifted error does not wrap its cause")
	}
}

func TestGRPCStatus(t *testing.T) {
	st, ok := status.FromError(NotFound("no such thing"))
	if !ok {
		t.Fatal("status.FromError did not recognize *Error")
	}
	if st.Code() != codes.NotFound {
		t.Errorf("code = %v, want NotFound", st.Code())
	}
	if st.Message() != "no such thing" {
		t.Errorf("message = %q, want %q", st.Message(), "no such thing")
	}
}

func TestMarshalBody(t *testing.T) {
	got := string(Malformed("No content-type header").marshalBody())
	want := `{"code":"malformed","msg":"No content-type header"}`
	if got != want {
		t.Errorf("body = %s, want %s", got, want)
	}
}

func TestErrorFromResponse(t *testing.T) {
	e := ErrorFromResponse(404, []byte(`{"code":"not_found","msg":"gone"}`))
	if e.Code != CodeNotFound || e.Msg != "gone" {
		t.Errorf("lifted = %v, want not_found/gone", e)
	}

	e = ErrorFromResponse(503, []byte("<html>bad gateway</html>"))
	if e.Code != CodeInternal {
		t.Errorf("code = %q, want internal", e.Code)
	}
	if e.Msg != "Failed to map an internal error" {
		t.Errorf("msg = %q, want the mapping failure text", e.Msg)
	}

	e = ErrorFromResponse(500, []byte(`{"msg":"no code field"}`))
	if e.Code != CodeInternal || e.Msg != "Failed to map an internal error" {
		t.Errorf("lifted = %v, want the mapping failure record", e)
	}
}
