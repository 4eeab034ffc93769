// © Copyright 2025-2026, Duet RPC authors
// SPDX-License-Identifier: Apache-2.0

package duetrpc

import (
	"log/slog"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Message is the constraint for protobuf request and response types: a
// pointer to T that implements proto.Message. Generated protoc-gen-go types
// satisfy it, as do hand-rolled dynamic-backed types whose ProtoReflect
// lazily attaches a descriptor.
type Message[T any] interface {
	*T
	proto.Message
}

// messageCodec converts between wire bytes and one concrete message type in
// both wire formats. It is keyed by the type's schema descriptor and built
// once at registration time; JSON conversion goes through a schema-described
// dynamic intermediate so field-name decoding needs no compiled bindings.
type messageCodec struct {
	descriptor protoreflect.MessageDescriptor
}

// codecFor builds the codec for a message type from its prototype.
func codecFor[T any, PT Message[T]]() messageCodec {
	prototype := PT(new(T))
	return messageCodec{descriptor: prototype.ProtoReflect().Descriptor()}
}

// decode parses wire bytes into the typed message using the negotiated
// format. Decode failures are client-facing (Malformed), except the
// dynamic-to-typed JSON conversion step, which is a server fault.
func (c messageCodec) decode(format wireFormat, data []byte, into proto.Message) *Error {
	if format == formatJSON {
		return c.decodeJSON(data, into)
	}
	// Empty input is a valid encoding of the default message.
	if err := proto.Unmarshal(data, into); err != nil {
		return WrapError(CodeMalformed, "Invalid binary protobuf request: "+err.Error(), err)
	}
	return nil
}

// decodeJSON is a two-step decode. Step 1 parses the raw bytes into a
// dynamic message driven by the target type's descriptor; any parse failure
// is the client's fault. Step 2 converts the dynamic value into the concrete
// typed message; a failure there means the descriptor and the compiled type
// have drifted, which is a server fault. The asymmetry is intentional.
func (c messageCodec) decodeJSON(data []byte, into proto.Message) *Error {
	dyn := dynamicpb.NewMessage(c.descriptor)
	if err := protojson.Unmarshal(data, dyn); err != nil {
		return WrapError(CodeMalformed, "Invalid JSON protobuf request: "+err.Error(), err)
	}
	if err := transcode(dyn, into); err != nil {
		slog.Error("failed to cast input message", "type", c.descriptor.FullName(), "err", err)
		return WrapError(CodeInternal, "Internal error while parsing the JSON request", err)
	}
	return nil
}

// encode serializes the typed message with the negotiated format. Encode of
// an already-typed value should not fail; failures are defects, not client
// faults.
func (c messageCodec) encode(format wireFormat, m proto.Message) ([]byte, *Error) {
	if format == formatJSON {
		return c.encodeJSON(m)
	}
	data, err := proto.Marshal(m)
	if err != nil {
		return nil, WrapError(CodeInternal, "Failed to serialize to protobuf: "+err.Error(), err)
	}
	return data, nil
}

// encodeJSON converts the typed message into the dynamic intermediate and
// serializes it as JSON.
func (c messageCodec) encodeJSON(m proto.Message) ([]byte, *Error) {
	dyn := dynamicpb.NewMessage(c.descriptor)
	if err := transcode(m, dyn); err != nil {
		slog.Error("failed to build the JSON response", "type", c.descriptor.FullName(), "err", err)
		return nil, WrapError(CodeInternal, "Failed to build the response", err)
	}
	data, err := protojson.Marshal(dyn)
	if err != nil {
		slog.Error("failed to serialize the JSON response", "type", c.descriptor.FullName(), "err", err)
		return nil, WrapError(CodeInternal, "Failed to build the response", err)
	}
	return data, nil
}

// transcode copies a message into another with the same schema through the
// binary wire form.
func transcode(from, into proto.Message) error {
	wire, err := proto.Marshal(from)
	if err != nil {
		return err
	}
	return proto.Unmarshal(wire, into)
}
