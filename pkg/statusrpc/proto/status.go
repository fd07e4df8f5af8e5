// Copyright 2018-2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package proto is the wire contract for the debug/introspection gRPC
// surface (pkg/statusrpc), in the shape of a protoc-gen-go /
// protoc-gen-go-grpc pair: messages backed by a real protoreflect
// descriptor (see descriptor.go) plus the ServiceDesc/handler glue
// grpc.Server.RegisterService needs. It is hand-maintained rather than
// run through protoc because this surface carries no wire-compatibility
// requirement of its own — it mirrors u-bmc/pkg/service/grpc/proto's
// ManagementService contract, not a checked-in .proto file — but the
// messages still need to satisfy proto.Message for real over the wire,
// so descriptor.go builds and registers a FileDescriptorProto for them
// at init time instead of leaving Reset/String/ProtoMessage as the only
// implemented methods.
package proto

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/runtime/protoimpl"
)

// GetVersionRequest takes no fields.
type GetVersionRequest struct {
	state         protoimpl.MessageState
	sizeCache     protoimpl.SizeCache
	unknownFields protoimpl.UnknownFields
}

func (x *GetVersionRequest) Reset() {
	*x = GetVersionRequest{}
	if protoimpl.UnsafeEnabled {
		protoimpl.X.MessageStateOf(protoimpl.Pointer(x)).StoreMessageInfo(&fileStatusProtoMsgTypes[0])
	}
}

func (*GetVersionRequest) ProtoMessage() {}

func (x *GetVersionRequest) String() string { return protoimpl.X.MessageStringOf(x) }

func (x *GetVersionRequest) ProtoReflect() protoreflect.Message {
	return fileStatusProtoMsgTypes[0].MessageOf(x)
}

// GetVersionResponse reports the running build, mirroring
// u-bmc/pkg/service/grpc/proto's GetVersionResponse.
type GetVersionResponse struct {
	state         protoimpl.MessageState
	sizeCache     protoimpl.SizeCache
	unknownFields protoimpl.UnknownFields

	Version string `protobuf:"bytes,1,opt,name=version,proto3" json:"version,omitempty"`
	GitHash string `protobuf:"bytes,2,opt,name=git_hash,json=gitHash,proto3" json:"git_hash,omitempty"`
}

func (x *GetVersionResponse) Reset() {
	*x = GetVersionResponse{}
	if protoimpl.UnsafeEnabled {
		protoimpl.X.MessageStateOf(protoimpl.Pointer(x)).StoreMessageInfo(&fileStatusProtoMsgTypes[1])
	}
}

func (*GetVersionResponse) ProtoMessage() {}

func (x *GetVersionResponse) String() string { return protoimpl.X.MessageStringOf(x) }

func (x *GetVersionResponse) ProtoReflect() protoreflect.Message {
	return fileStatusProtoMsgTypes[1].MessageOf(x)
}

// GetStatusRequest takes no fields.
type GetStatusRequest struct {
	state         protoimpl.MessageState
	sizeCache     protoimpl.SizeCache
	unknownFields protoimpl.UnknownFields
}

func (x *GetStatusRequest) Reset() {
	*x = GetStatusRequest{}
	if protoimpl.UnsafeEnabled {
		protoimpl.X.MessageStateOf(protoimpl.Pointer(x)).StoreMessageInfo(&fileStatusProtoMsgTypes[2])
	}
}

func (*GetStatusRequest) ProtoMessage() {}

func (x *GetStatusRequest) String() string { return protoimpl.X.MessageStringOf(x) }

func (x *GetStatusRequest) ProtoReflect() protoreflect.Message {
	return fileStatusProtoMsgTypes[2].MessageOf(x)
}

// Session is one in-flight TransferSession, keyed by instance id.
type Session struct {
	state         protoimpl.MessageState
	sizeCache     protoimpl.SizeCache
	unknownFields protoimpl.UnknownFields

	InstanceId uint32 `protobuf:"varint,1,opt,name=instance_id,json=instanceId,proto3" json:"instance_id,omitempty"`
	Command    string `protobuf:"bytes,2,opt,name=command,proto3" json:"command,omitempty"`
	State      string `protobuf:"bytes,3,opt,name=state,proto3" json:"state,omitempty"`
}

func (x *Session) Reset() {
	*x = Session{}
	if protoimpl.UnsafeEnabled {
		protoimpl.X.MessageStateOf(protoimpl.Pointer(x)).StoreMessageInfo(&fileStatusProtoMsgTypes[3])
	}
}

func (*Session) ProtoMessage() {}

func (x *Session) String() string { return protoimpl.X.MessageStringOf(x) }

func (x *Session) ProtoReflect() protoreflect.Message {
	return fileStatusProtoMsgTypes[3].MessageOf(x)
}

// GetStatusResponse snapshots the agent's live session table and pending
// host-notification count, for the debug GetStatus RPC (pkg/statusrpc).
type GetStatusResponse struct {
	state         protoimpl.MessageState
	sizeCache     protoimpl.SizeCache
	unknownFields protoimpl.UnknownFields

	Session         []*Session `protobuf:"bytes,1,rep,name=session,proto3" json:"session,omitempty"`
	PendingNotifies uint32     `protobuf:"varint,2,opt,name=pending_notifies,json=pendingNotifies,proto3" json:"pending_notifies,omitempty"`
	ActiveSessions  uint32     `protobuf:"varint,3,opt,name=active_sessions,json=activeSessions,proto3" json:"active_sessions,omitempty"`
}

func (x *GetStatusResponse) Reset() {
	*x = GetStatusResponse{}
	if protoimpl.UnsafeEnabled {
		protoimpl.X.MessageStateOf(protoimpl.Pointer(x)).StoreMessageInfo(&fileStatusProtoMsgTypes[4])
	}
}

func (*GetStatusResponse) ProtoMessage() {}

func (x *GetStatusResponse) String() string { return protoimpl.X.MessageStringOf(x) }

func (x *GetStatusResponse) ProtoReflect() protoreflect.Message {
	return fileStatusProtoMsgTypes[4].MessageOf(x)
}

// StatusServiceServer is the interface pkg/statusrpc implements.
type StatusServiceServer interface {
	GetVersion(context.Context, *GetVersionRequest) (*GetVersionResponse, error)
	GetStatus(context.Context, *GetStatusRequest) (*GetStatusResponse, error)
}

// UnimplementedStatusServiceServer is embedded for forward compatibility
// with future methods on StatusServiceServer, mirroring the teacher's
// proto.UnimplementedManagementServiceServer.
type UnimplementedStatusServiceServer struct{}

func (UnimplementedStatusServiceServer) GetVersion(context.Context, *GetVersionRequest) (*GetVersionResponse, error) {
	return nil, fmt.Errorf("statusrpc: GetVersion not implemented")
}

func (UnimplementedStatusServiceServer) GetStatus(context.Context, *GetStatusRequest) (*GetStatusResponse, error) {
	return nil, fmt.Errorf("statusrpc: GetStatus not implemented")
}

// RegisterStatusServiceServer wires srv into s, the way
// proto.RegisterManagementServiceServer does in the teacher.
func RegisterStatusServiceServer(s *grpc.Server, srv StatusServiceServer) {
	s.RegisterService(&statusServiceDesc, srv)
}

func statusServiceGetVersionHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetVersionRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StatusServiceServer).GetVersion(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/pldm.StatusService/GetVersion"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(StatusServiceServer).GetVersion(ctx, req.(*GetVersionRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func statusServiceGetStatusHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetStatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StatusServiceServer).GetStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/pldm.StatusService/GetStatus"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(StatusServiceServer).GetStatus(ctx, req.(*GetStatusRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var statusServiceDesc = grpc.ServiceDesc{
	ServiceName: "pldm.StatusService",
	HandlerType: (*StatusServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetVersion", Handler: statusServiceGetVersionHandler},
		{MethodName: "GetStatus", Handler: statusServiceGetStatusHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "statusrpc/proto/status.proto",
}
