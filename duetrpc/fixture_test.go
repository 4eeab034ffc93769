// © Copyright 2025-2026, Duet RPC authors
// SPDX-License-Identifier: Apache-2.0

package duetrpc

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

// The test schema is built at runtime so the package tests need no protoc
// step: one message with a string and an int64 field.
var noteFile = &descriptorpb.FileDescriptorProto{
	Name:    proto.String("duet/internal/test.proto"),
	Package: proto.String("duet.internal.test"),
	Syntax:  proto.String("proto3"),
	MessageType: []*descriptorpb.DescriptorProto{{
		Name: proto.String("Note"),
		Field: []*descriptorpb.FieldDescriptorProto{
			{
				Name:     proto.String("text"),
				Number:   proto.Int32(1),
				Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
				Type:     descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(),
				JsonName: proto.String("text"),
			},
			{
				Name:     proto.String("number"),
				Number:   proto.Int32(2),
				Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
				Type:     descriptorpb.FieldDescriptorProto_TYPE_INT64.Enum(),
				JsonName: proto.String("number"),
			},
		},
	}},
}

var (
	noteDesc   protoreflect.MessageDescriptor
	noteText   protoreflect.FieldDescriptor
	noteNumber protoreflect.FieldDescriptor
)

func init() {
	fd, err := protodesc.NewFile(noteFile, nil)
	if err != nil {
		panic(fmt.Sprintf("building test schema: %v", err))
	}
	noteDesc = fd.Messages().ByName("Note")
	noteText = noteDesc.Fields().ByName("text")
	noteNumber = noteDesc.Fields().ByName("number")
}

// note is a concrete proto.Message backed by a dynamic message, standing in
// for a protoc-gen-go generated type in tests.
type note struct {
	dyn *dynamicpb.Message
}

var _ proto.Message = (*note)(nil)

func newNote(text string, number int64) *note {
	n := &note{}
	n.setText(text)
	n.setNumber(number)
	return n
}

func (m *note) ProtoReflect() protoreflect.Message {
	if m.dyn == nil {
		m.dyn = dynamicpb.NewMessage(noteDesc)
	}
	return m.dyn
}

func (m *note) getText() string  { return m.ProtoReflect().Get(noteText).String() }
func (m *note) getNumber() int64 { return m.ProtoReflect().Get(noteNumber).Int() }

func (m *note) setText(v string) {
	m.ProtoReflect().Set(noteText, protoreflect.ValueOfString(v))
}

func (m *note) setNumber(v int64) {
	m.ProtoReflect().Set(noteNumber, protoreflect.ValueOfInt64(v))
}
