// Copyright 2018-2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package statusrpc

import (
	"context"
	"testing"

	"github.com/baemyung/ibm-pldm/pkg/config"
	"github.com/baemyung/ibm-pldm/pkg/fileio"
	"github.com/baemyung/ibm-pldm/pkg/pldm"
	"github.com/baemyung/ibm-pldm/pkg/statusrpc/proto"
	"github.com/baemyung/ibm-pldm/pkg/transfer"
)

type fakeSessions struct {
	infos []fileio.SessionInfo
}

func (f *fakeSessions) Sessions() []fileio.SessionInfo { return f.infos }

type fakeNotify struct {
	pending int
}

func (f *fakeNotify) Pending() int { return f.pending }

func TestGetVersion(t *testing.T) {
	s := &statusServer{
		sessions: &fakeSessions{},
		notifier: &fakeNotify{},
		version:  config.Version{Version: "1.2.3", GitHash: "abcdef"},
	}

	resp, err := s.GetVersion(context.Background(), &proto.GetVersionRequest{})
	if err != nil {
		t.Fatalf("GetVersion: %v", err)
	}
	if resp.Version != "1.2.3" || resp.GitHash != "abcdef" {
		t.Fatalf("GetVersion = %+v, want version 1.2.3/abcdef", resp)
	}
}

func TestGetStatus_ReportsSessionsAndPending(t *testing.T) {
	s := &statusServer{
		sessions: &fakeSessions{infos: []fileio.SessionInfo{
			{InstanceID: 3, Command: pldm.CmdReadFromMemory, State: transfer.ChunkInFlight},
			{InstanceID: 7, Command: pldm.CmdWriteFromMemory, State: transfer.Armed},
		}},
		notifier: &fakeNotify{pending: 2},
	}

	resp, err := s.GetStatus(context.Background(), &proto.GetStatusRequest{})
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if resp.ActiveSessions != 2 {
		t.Fatalf("ActiveSessions = %d, want 2", resp.ActiveSessions)
	}
	if resp.PendingNotifies != 2 {
		t.Fatalf("PendingNotifies = %d, want 2", resp.PendingNotifies)
	}
	if len(resp.Session) != 2 {
		t.Fatalf("got %d sessions, want 2", len(resp.Session))
	}
	seen := map[uint32]string{}
	for _, si := range resp.Session {
		seen[si.InstanceId] = si.Command
	}
	if seen[3] != pldm.CmdReadFromMemory.String() {
		t.Fatalf("session 3 command = %q, want %q", seen[3], pldm.CmdReadFromMemory.String())
	}
	if seen[7] != pldm.CmdWriteFromMemory.String() {
		t.Fatalf("session 7 command = %q, want %q", seen[7], pldm.CmdWriteFromMemory.String())
	}
}

func TestGetStatus_EmptyWhenIdle(t *testing.T) {
	s := &statusServer{sessions: &fakeSessions{}, notifier: &fakeNotify{}}

	resp, err := s.GetStatus(context.Background(), &proto.GetStatusRequest{})
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if resp.ActiveSessions != 0 || resp.PendingNotifies != 0 || len(resp.Session) != 0 {
		t.Fatalf("GetStatus = %+v, want all zero", resp)
	}
}
