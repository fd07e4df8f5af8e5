// Copyright 2018-2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package proto

import (
	"fmt"
	"reflect"

	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/runtime/protoimpl"
	"google.golang.org/protobuf/types/descriptorpb"
)

// fileStatusProtoMsgTypes backs the ProtoReflect method of every message
// type in this package. protoc-gen-go would populate these through a
// protoimpl.TypeBuilder fed a compiled FileDescriptorProto; there is no
// protoc here, so descriptor.go builds the same FileDescriptorProto by
// hand as a Go literal, resolves it with protodesc (the same package
// grpc-reflection and grpcurl use to work with descriptors that never
// went through a .proto file), and wires each MessageInfo directly.
var fileStatusProtoMsgTypes = make([]protoimpl.MessageInfo, 5)

const statusProtoPackage = "pldm"

func strp(s string) *string { return &s }
func i32p(v int32) *int32   { return &v }

func fieldType(t descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto_Type {
	return &t
}

func fieldLabel(l descriptorpb.FieldDescriptorProto_Label) *descriptorpb.FieldDescriptorProto_Label {
	return &l
}

func scalarField(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type, jsonName string) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:     strp(name),
		Number:   i32p(number),
		Label:    fieldLabel(descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL),
		Type:     fieldType(typ),
		JsonName: strp(jsonName),
	}
}

func messageField(name string, number int32, typeName, jsonName string) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:     strp(name),
		Number:   i32p(number),
		Label:    fieldLabel(descriptorpb.FieldDescriptorProto_LABEL_REPEATED),
		Type:     fieldType(descriptorpb.FieldDescriptorProto_TYPE_MESSAGE),
		TypeName: strp(typeName),
		JsonName: strp(jsonName),
	}
}

// statusFileDescriptorProto is what protoc would have produced from a
// status.proto declaring this package's five messages and the
// StatusService RPCs, written out as a Go literal instead of parsed from
// source text.
func statusFileDescriptorProto() *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:    strp("statusrpc/proto/status.proto"),
		Package: strp(statusProtoPackage),
		Syntax:  strp("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{Name: strp("GetVersionRequest")},
			{
				Name: strp("GetVersionResponse"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalarField("version", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING, "version"),
					scalarField("git_hash", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING, "gitHash"),
				},
			},
			{Name: strp("GetStatusRequest")},
			{
				Name: strp("Session"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalarField("instance_id", 1, descriptorpb.FieldDescriptorProto_TYPE_UINT32, "instanceId"),
					scalarField("command", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING, "command"),
					scalarField("state", 3, descriptorpb.FieldDescriptorProto_TYPE_STRING, "state"),
				},
			},
			{
				Name: strp("GetStatusResponse"),
				Field: []*descriptorpb.FieldDescriptorProto{
					messageField("session", 1, "."+statusProtoPackage+".Session", "session"),
					scalarField("pending_notifies", 2, descriptorpb.FieldDescriptorProto_TYPE_UINT32, "pendingNotifies"),
					scalarField("active_sessions", 3, descriptorpb.FieldDescriptorProto_TYPE_UINT32, "activeSessions"),
				},
			},
		},
		Service: []*descriptorpb.ServiceDescriptorProto{
			{
				Name: strp("StatusService"),
				Method: []*descriptorpb.MethodDescriptorProto{
					{
						Name:       strp("GetVersion"),
						InputType:  strp("." + statusProtoPackage + ".GetVersionRequest"),
						OutputType: strp("." + statusProtoPackage + ".GetVersionResponse"),
					},
					{
						Name:       strp("GetStatus"),
						InputType:  strp("." + statusProtoPackage + ".GetStatusRequest"),
						OutputType: strp("." + statusProtoPackage + ".GetStatusResponse"),
					},
				},
			},
		},
	}
}

func init() {
	fd, err := protodesc.NewFile(statusFileDescriptorProto(), protoregistry.GlobalFiles)
	if err != nil {
		panic(fmt.Sprintf("statusrpc/proto: building file descriptor: %v", err))
	}
	if err := protoregistry.GlobalFiles.RegisterFile(fd); err != nil {
		panic(fmt.Sprintf("statusrpc/proto: registering file descriptor: %v", err))
	}

	msgs := fd.Messages()
	bind := func(i int, goType interface{}) {
		fileStatusProtoMsgTypes[i].GoReflectType = reflect.TypeOf(goType)
		fileStatusProtoMsgTypes[i].Desc = msgs.Get(i)
	}
	bind(0, (*GetVersionRequest)(nil))
	bind(1, (*GetVersionResponse)(nil))
	bind(2, (*GetStatusRequest)(nil))
	bind(3, (*Session)(nil))
	bind(4, (*GetStatusResponse)(nil))

	if !protoimpl.UnsafeEnabled {
		fileStatusProtoMsgTypes[0].Exporter = func(v interface{}, i int) interface{} {
			switch v := v.(*GetVersionRequest); i {
			case 0:
				return &v.state
			case 1:
				return &v.sizeCache
			case 2:
				return &v.unknownFields
			default:
				return nil
			}
		}
		fileStatusProtoMsgTypes[1].Exporter = func(v interface{}, i int) interface{} {
			switch v := v.(*GetVersionResponse); i {
			case 0:
				return &v.state
			case 1:
				return &v.sizeCache
			case 2:
				return &v.unknownFields
			default:
				return nil
			}
		}
		fileStatusProtoMsgTypes[2].Exporter = func(v interface{}, i int) interface{} {
			switch v := v.(*GetStatusRequest); i {
			case 0:
				return &v.state
			case 1:
				return &v.sizeCache
			case 2:
				return &v.unknownFields
			default:
				return nil
			}
		}
		fileStatusProtoMsgTypes[3].Exporter = func(v interface{}, i int) interface{} {
			switch v := v.(*Session); i {
			case 0:
				return &v.state
			case 1:
				return &v.sizeCache
			case 2:
				return &v.unknownFields
			default:
				return nil
			}
		}
		fileStatusProtoMsgTypes[4].Exporter = func(v interface{}, i int) interface{} {
			switch v := v.(*GetStatusResponse); i {
			case 0:
				return &v.state
			case 1:
				return &v.sizeCache
			case 2:
				return &v.unknownFields
			default:
				return nil
			}
		}
	}
}
