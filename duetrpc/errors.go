// © Copyright 2025-2026, Duet RPC authors
// SPDX-License-Identifier: Apache-2.0

package duetrpc

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorCode is a canonical error classification shared by the Twirp and gRPC
// surfaces. The wire representation is the Twirp code string; every code has
// exactly one HTTP status and exactly one gRPC status code.
type ErrorCode string

const (
	CodeCanceled           ErrorCode = "canceled"
	CodeUnknown            ErrorCode = "unknown"
	CodeInvalidArgument    ErrorCode = "invalid_argument"
	CodeMalformed          ErrorCode = "malformed"
	CodeDeadlineExceeded   ErrorCode = "deadline_exceeded"
	CodeNotFound           ErrorCode = "not_found"
	CodeBadRoute           ErrorCode = "bad_route"
	CodeAlreadyExists      ErrorCode = "already_exists"
	CodePermissionDenied   ErrorCode = "permission_denied"
	CodeUnauthenticated    ErrorCode = "unauthenticated"
	CodeResourceExhausted  ErrorCode = "resource_exhausted"
	CodeFailedPrecondition ErrorCode = "failed_precondition"
	CodeAborted            ErrorCode = "aborted"
	CodeOutOfRange         ErrorCode = "out_of_range"
	CodeUnimplemented      ErrorCode = "unimplemented"
	CodeInternal           ErrorCode = "internal"
	CodeUnavailable        ErrorCode = "unavailable"
	CodeDataLoss           ErrorCode = "data_loss"
)

// HTTPStatus returns the HTTP status for this code on the Twirp surface.
// Unrecognized codes report 500.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case CodeCanceled, CodeDeadlineExceeded:
		return http.StatusRequestTimeout
	case CodeInvalidArgument, CodeMalformed, CodeOutOfRange:
		return http.StatusBadRequest
	case CodeNotFound, CodeBadRoute:
		return http.StatusNotFound
	case CodeAlreadyExists, CodeAborted:
		return http.StatusConflict
	case CodePermissionDenied:
		return http.StatusForbidden
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeResourceExhausted:
		return http.StatusTooManyRequests
	case CodeFailedPrecondition:
		return http.StatusPreconditionFailed
	case CodeUnimplemented:
		return http.StatusNotImplemented
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	case CodeUnknown, CodeInternal, CodeDataLoss:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// GRPCCode returns the gRPC status code for this code on the streaming
// surface. Codes without a native gRPC counterpart fold into the nearest one
// (malformed becomes InvalidArgument, bad_route becomes NotFound).
func (c ErrorCode) GRPCCode() codes.Code {
	switch c {
	case CodeCanceled:
		return codes.Canceled
	case CodeInvalidArgument, CodeMalformed:
		return codes.InvalidArgument
	case CodeDeadlineExceeded:
		return codes.DeadlineExceeded
	case CodeNotFound, CodeBadRoute:
		return codes.NotFound
	case CodeAlreadyExists:
		return codes.AlreadyExists
	case CodePermissionDenied:
		return codes.PermissionDenied
	case CodeUnauthenticated:
		return codes.Unauthenticated
	case CodeResourceExhausted:
		return codes.ResourceExhausted
	case CodeFailedPrecondition:
		return codes.FailedPrecondition
	case CodeAborted:
		return codes.Aborted
	case CodeOutOfRange:
		return codes.OutOfRange
	case CodeUnimplemented:
		return codes.Unimplemented
	case CodeInternal:
		return codes.Internal
	case CodeUnavailable:
		return codes.Unavailable
	case CodeDataLoss:
		return codes.DataLoss
	case CodeUnknown:
		return codes.Unknown
	default:
		return codes.Unknown
	}
}

// codeFromGRPC lifts a gRPC status code into the taxonomy. Total: every gRPC
// code maps to exactly one ErrorCode. Only non-nil errors are lifted, so
// codes.OK has no arm; an error pathologically carrying an OK status folds
// into unknown with the rest of the unrecognized codes.
func codeFromGRPC(c codes.Code) ErrorCode {
	switch c {
	case codes.Canceled:
		return CodeCanceled
	case codes.InvalidArgument:
		return CodeInvalidArgument
	case codes.DeadlineExceeded:
		return CodeDeadlineExceeded
	case codes.NotFound:
		return CodeNotFound
	case codes.AlreadyExists:
		return CodeAlreadyExists
	case codes.PermissionDenied:
		return CodePermissionDenied
	case codes.Unauthenticated:
		return CodeUnauthenticated
	case codes.ResourceExhausted:
		return CodeResourceExhausted
	case codes.FailedPrecondition:
		return CodeFailedPrecondition
	case codes.Aborted:
		return CodeAborted
	case codes.OutOfRange:
		return CodeOutOfRange
	case codes.Unimplemented:
		return CodeUnimplemented
	case codes.Internal:
		return CodeInternal
	case codes.Unavailable:
		return CodeUnavailable
	case codes.DataLoss:
		return CodeDataLoss
	default:
		return CodeUnknown
	}
}

// ErrDuet is a sentinel for use with errors.Is to check whether any error in
// a chain is a *duetrpc.Error.
var ErrDuet = &Error{}

// Error is the canonical error record carried across both protocol surfaces.
// Msg appears verbatim on the wire; the wrapped cause is for local
// diagnostics only and is never serialized.
type Error struct {
	Code ErrorCode
	Msg  string

	cause error
}

// NewError creates an Error with the given code and message.
func NewError(code ErrorCode, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// WrapError creates an Error with the given code and message and attaches a
// cause for local logging. The cause does not cross the wire.
func WrapError(code ErrorCode, msg string, cause error) *Error {
	return &Error{Code: code, Msg: msg, cause: cause}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Unwrap exposes the diagnostic cause to errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.cause }

// Is supports errors.Is by matching any *Error target.
func (e *Error) Is(target error) bool {
	_, ok := target.(*Error)
	return ok
}

// GRPCStatus converts the error into a gRPC status. grpc-go picks this up via
// status.FromError, so handler errors terminate streams with the taxonomy
// code and the verbatim message.
func (e *Error) GRPCStatus() *status.Status {
	return status.New(e.Code.GRPCCode(), e.Msg)
}

// Constructors, one per taxonomy code.

func Canceled(msg string) *Error           { return NewError(CodeCanceled, msg) }
func Unknown(msg string) *Error            { return NewError(CodeUnknown, msg) }
func InvalidArgument(msg string) *Error    { return NewError(CodeInvalidArgument, msg) }
func Malformed(msg string) *Error          { return NewError(CodeMalformed, msg) }
func DeadlineExceeded(msg string) *Error   { return NewError(CodeDeadlineExceeded, msg) }
func NotFound(msg string) *Error           { return NewError(CodeNotFound, msg) }
func BadRoute(msg string) *Error           { return NewError(CodeBadRoute, msg) }
func AlreadyExists(msg string) *Error      { return NewError(CodeAlreadyExists, msg) }
func PermissionDenied(msg string) *Error   { return NewError(CodePermissionDenied, msg) }
func Unauthenticated(msg string) *Error    { return NewError(CodeUnauthenticated, msg) }
func ResourceExhausted(msg string) *Error  { return NewError(CodeResourceExhausted, msg) }
func FailedPrecondition(msg string) *Error { return NewError(CodeFailedPrecondition, msg) }
func Aborted(msg string) *Error            { return NewError(CodeAborted, msg) }
func OutOfRange(msg string) *Error         { return NewError(CodeOutOfRange, msg) }
func Unimplemented(msg string) *Error      { return NewError(CodeUnimplemented, msg) }
func Internal(msg string) *Error           { return NewError(CodeInternal, msg) }
func Unavailable(msg string) *Error        { return NewError(CodeUnavailable, msg) }
func DataLoss(msg string) *Error           { return NewError(CodeDataLoss, msg) }

// errorBody is the canonical Twirp JSON error shape.
type errorBody struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// marshalBody renders the wire JSON body for the Twirp surface.
func (e *Error) marshalBody() []byte {
	data, err := json.Marshal(errorBody{Code: string(e.Code), Msg: e.Msg})
	if err != nil {
		// Cannot happen for two plain strings; kept as a defect guard.
		slog.Error("failed to marshal error body", "err", err)
		return []byte(`{"code":"internal","msg":"Failed to build the error response"}`)
	}
	return data
}

// toError lifts an arbitrary handler error into the taxonomy. *Error values
// pass through unchanged; anything else becomes an Internal record whose
// message is the error text, with the original error kept as the cause.
func toError(err error) *Error {
	if de, ok := err.(*Error); ok {
		return de
	}
	return WrapError(CodeInternal, err.Error(), err)
}

// statusError converts a handler error into the gRPC surface representation.
func statusError(err error) error {
	e := toError(err)
	return status.Error(e.Code.GRPCCode(), e.Msg)
}

// errorFromGRPC lifts a gRPC status error produced by the transport (for
// example an inbound per-message decode failure) into the taxonomy.
func errorFromGRPC(err error) *Error {
	st, ok := status.FromError(err)
	if !ok {
		return WrapError(CodeInternal, err.Error(), err)
	}
	return WrapError(codeFromGRPC(st.Code()), st.Message(), err)
}

// ErrorFromResponse lifts a generic HTTP response produced outside the bridge
// (for example by unrelated middleware) into the taxonomy by reading its
// status and body. A body that does not parse as the canonical JSON error
// shape yields an Internal record; the parse failure is logged and never
// propagated to the caller.
func ErrorFromResponse(statusCode int, body []byte) *Error {
	var wire errorBody
	if err := json.Unmarshal(body, &wire); err != nil || wire.Code == "" {
		if err == nil {
			err = fmt.Errorf("missing error code in body %q", body)
		}
		slog.Error("failed to parse generic HTTP response as a Twirp error",
			"status", statusCode, "err", err)
		return WrapError(CodeInternal, "Failed to map an internal error", err)
	}
	return NewError(ErrorCode(wire.Code), wire.Msg)
}
