// © Copyright 2025-2026, Duet RPC authors
// SPDX-License-Identifier: Apache-2.0

package conformance

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

// The conformance schema is built at runtime from a descriptor so the
// repository needs no protoc step. Production services are expected to use
// protoc-gen-go generated types; any proto.Message works with the routers.
var payloadFile = &descriptorpb.FileDescriptorProto{
	Name:    proto.String("duet/conformance/conformance.proto"),
	Package: proto.String("duet.conformance"),
	Syntax:  proto.String("proto3"),
	MessageType: []*descriptorpb.DescriptorProto{{
		Name: proto.String("Payload"),
		Field: []*descriptorpb.FieldDescriptorProto{
			{
				Name:     proto.String("text"),
				Number:   proto.Int32(1),
				Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
				Type:     descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(),
				JsonName: proto.String("text"),
			},
			{
				Name:     proto.String("count"),
				Number:   proto.Int32(2),
				Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
				Type:     descriptorpb.FieldDescriptorProto_TYPE_INT64.Enum(),
				JsonName: proto.String("count"),
			},
			{
				Name:     proto.String("index"),
				Number:   proto.Int32(3),
				Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
				Type:     descriptorpb.FieldDescriptorProto_TYPE_INT64.Enum(),
				JsonName: proto.String("index"),
			},
		},
	}},
}

var (
	payloadDesc  protoreflect.MessageDescriptor
	payloadText  protoreflect.FieldDescriptor
	payloadCount protoreflect.FieldDescriptor
	payloadIndex protoreflect.FieldDescriptor
)

func init() {
	fd, err := protodesc.NewFile(payloadFile, nil)
	if err != nil {
		panic(fmt.Sprintf("conformance: building schema: %v", err))
	}
	payloadDesc = fd.Messages().ByName("Payload")
	payloadText = payloadDesc.Fields().ByName("text")
	payloadCount = payloadDesc.Fields().ByName("count")
	payloadIndex = payloadDesc.Fields().ByName("index")
}

// Payload is the message used by every conformance method, in both
// directions. It is a concrete proto.Message backed by a dynamic message
// whose descriptor attaches lazily, so *Payload works with the generic
// registration API exactly like a generated type.
type Payload struct {
	dyn *dynamicpb.Message
}

var _ proto.Message = (*Payload)(nil)

// NewPayload creates a payload carrying the given text.
func NewPayload(text string) *Payload {
	p := &Payload{}
	p.SetText(text)
	return p
}

// ProtoReflect implements proto.Message.
func (m *Payload) ProtoReflect() protoreflect.Message {
	if m.dyn == nil {
		m.dyn = dynamicpb.NewMessage(payloadDesc)
	}
	return m.dyn
}

func (m *Payload) GetText() string { return m.ProtoReflect().Get(payloadText).String() }
func (m *Payload) GetCount() int64 { return m.ProtoReflect().Get(payloadCount).Int() }
func (m *Payload) GetIndex() int64 { return m.ProtoReflect().Get(payloadIndex).Int() }

func (m *Payload) SetText(v string) {
	m.ProtoReflect().Set(payloadText, protoreflect.ValueOfString(v))
}

func (m *Payload) SetCount(v int64) {
	m.ProtoReflect().Set(payloadCount, protoreflect.ValueOfInt64(v))
}

func (m *Payload) SetIndex(v int64) {
	m.ProtoReflect().Set(payloadIndex, protoreflect.ValueOfInt64(v))
}
