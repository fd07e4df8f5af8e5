// Copyright 2018-2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package statusrpc is the debug/introspection gRPC surface: a
// read-only view of the agent's live session table and pending
// host-notification count, in the shape of
// u-bmc/pkg/service/grpc's mgmtServer/newServer/StartGRPC pattern.
package statusrpc

import (
	"context"
	"net"

	"github.com/baemyung/ibm-pldm/pkg/config"
	"github.com/baemyung/ibm-pldm/pkg/fileio"
	"github.com/baemyung/ibm-pldm/pkg/logger"
	"github.com/baemyung/ibm-pldm/pkg/statusrpc/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
)

var log = logger.LogContainer.GetSimpleLogger()

// rpcSessionSource is the fileio.Handler surface statusServer depends
// on, narrowed the way rpcGpioSystem/rpcFanSystem narrow the teacher's
// mgmtServer dependencies.
type rpcSessionSource interface {
	Sessions() []fileio.SessionInfo
}

// rpcNotifySource is the hostnotify.Notifier surface statusServer
// depends on.
type rpcNotifySource interface {
	Pending() int
}

type statusServer struct {
	sessions rpcSessionSource
	notifier rpcNotifySource
	version  config.Version
	proto.UnimplementedStatusServiceServer
}

func (s *statusServer) GetVersion(ctx context.Context, _ *proto.GetVersionRequest) (*proto.GetVersionResponse, error) {
	return &proto.GetVersionResponse{Version: s.version.Version, GitHash: s.version.GitHash}, nil
}

func (s *statusServer) GetStatus(ctx context.Context, _ *proto.GetStatusRequest) (*proto.GetStatusResponse, error) {
	infos := s.sessions.Sessions()
	r := &proto.GetStatusResponse{
		ActiveSessions:  uint32(len(infos)),
		PendingNotifies: uint32(s.notifier.Pending()),
	}
	for _, si := range infos {
		r.Session = append(r.Session, &proto.Session{
			InstanceId: uint32(si.InstanceID),
			Command:    si.Command.String(),
			State:      si.State.String(),
		})
	}
	return r, nil
}

func (s *statusServer) newServer(l net.Listener) {
	gServ := grpc.NewServer()
	proto.RegisterStatusServiceServer(gServ, s)
	reflection.Register(gServ)
	go func() {
		if err := gServ.Serve(l); err != nil {
			log.Errorw("statusrpc: serve exited", "err", err)
		}
	}()
}

// Start binds l and serves the status service on it, returning the
// server so callers can hold a reference (tests call its methods
// directly without going through the network).
func Start(l net.Listener, sessions rpcSessionSource, notifier rpcNotifySource, v config.Version) *statusServer {
	s := &statusServer{sessions: sessions, notifier: notifier, version: v}
	s.newServer(l)
	return s
}
