// Copyright 2018-2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fileio

import (
	"fmt"
	"testing"

	"github.com/baemyung/ibm-pldm/pkg/pldm"
	"github.com/baemyung/ibm-pldm/pkg/reactor/reactortest"
	"github.com/baemyung/ibm-pldm/pkg/xdma"
	"github.com/baemyung/ibm-pldm/pkg/xdma/xdmatest"
	"github.com/spf13/afero"
)

func pathForTest(handle uint32) (string, error) {
	if handle == 42 {
		return "/data/resource.bin", nil
	}
	return "", fmt.Errorf("fileio: no path for handle %d", handle)
}

func newTestHandler(t *testing.T, dev *xdmatest.Device) (*Handler, afero.Fs, *reactortest.Reactor) {
	t.Helper()
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/data/resource.bin", []byte("hello world123456"), 0o644); err != nil {
		t.Fatalf("seed source file: %v", err)
	}
	r := reactortest.New()
	h := New(fs, r, func() (xdma.Interface, error) { return dev, nil }, pathForTest)
	return h, fs, r
}

// S6: FILE_ACK returns a synchronous success response and never touches
// the session table.
func TestDispatch_FileAckSynchronous(t *testing.T) {
	h, _, _ := newTestHandler(t, xdmatest.New())
	req := pldm.TransferRequest{Command: pldm.CmdFileAck, InstanceID: 5}

	resp := h.Dispatch(req, func(pldm.Response, bool) { t.Fatalf("respond callback invoked for a synchronous command") })

	if resp == nil {
		t.Fatalf("expected synchronous response, got nil")
	}
	if resp[3] != byte(pldm.Success) {
		t.Fatalf("completion byte = 0x%02x, want SUCCESS", resp[3])
	}
	if h.ActiveSessions() != 0 {
		t.Fatalf("ActiveSessions = %d, want 0", h.ActiveSessions())
	}
}

func TestDispatch_UnknownCommand(t *testing.T) {
	h, _, _ := newTestHandler(t, xdmatest.New())
	req := pldm.TransferRequest{Command: pldm.CommandCode(0x99), InstanceID: 1}

	resp := h.Dispatch(req, func(pldm.Response, bool) {})
	if resp == nil || resp[3] != byte(pldm.ErrorInvalidData) {
		t.Fatalf("resp = %v, want ERROR_INVALID_DATA", resp)
	}
}

// A memory command below MIN_CHUNK never constructs a session and answers
// synchronously with ERROR_INVALID_LENGTH (spec.md §8 item 12).
func TestDispatch_MemoryCommandBelowMinChunk(t *testing.T) {
	h, _, _ := newTestHandler(t, xdmatest.New())
	req := pldm.TransferRequest{
		Command: pldm.CmdReadFromMemory, InstanceID: 1, FileHandle: 42,
		Length: 4, HostAddress: 0x1000, Direction: pldm.ToHost,
	}

	resp := h.Dispatch(req, func(pldm.Response, bool) { t.Fatalf("respond invoked for a rejected request") })

	if resp == nil {
		t.Fatalf("expected synchronous rejection")
	}
	if resp[3] != byte(pldm.ErrorInvalidLen) {
		t.Fatalf("completion byte = 0x%02x, want ERROR_INVALID_LENGTH", resp[3])
	}
	if h.ActiveSessions() != 0 {
		t.Fatalf("ActiveSessions = %d, want 0", h.ActiveSessions())
	}
}

// A well-formed memory command starts a session and, once the reactor
// reports readiness, delivers exactly one success response.
func TestDispatch_MemoryCommandCompletesAsync(t *testing.T) {
	dev := xdmatest.New()
	h, _, r := newTestHandler(t, dev)
	req := pldm.TransferRequest{
		Command: pldm.CmdReadFromMemory, InstanceID: 7, FileHandle: 42,
		Length: 17, HostAddress: 0x2000, Direction: pldm.ToHost,
	}

	var responses []pldm.Response
	resp := h.Dispatch(req, func(r pldm.Response, ok bool) {
		if ok {
			responses = append(responses, r)
		}
	})
	if resp != nil {
		t.Fatalf("expected nil synchronous response for a memory command, got %v", resp)
	}
	if h.ActiveSessions() != 1 {
		t.Fatalf("ActiveSessions = %d, want 1", h.ActiveSessions())
	}

	r.Fire(dev.Fd(), 1)

	if len(responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(responses))
	}
	if responses[0].Completion != pldm.Success || responses[0].Length != 17 {
		t.Fatalf("response = %+v, want Success/17", responses[0])
	}
	if h.ActiveSessions() != 0 {
		t.Fatalf("ActiveSessions after completion = %d, want 0", h.ActiveSessions())
	}
}

// An unresolved file_handle answers synchronously with ERROR and never
// starts a session.
func TestDispatch_UnknownFileHandle(t *testing.T) {
	h, _, _ := newTestHandler(t, xdmatest.New())
	req := pldm.TransferRequest{
		Command: pldm.CmdReadFromMemory, InstanceID: 2, FileHandle: 999,
		Length: 32, HostAddress: 0x1000, Direction: pldm.ToHost,
	}

	resp := h.Dispatch(req, func(pldm.Response, bool) { t.Fatalf("respond invoked for unresolved handle") })
	if resp == nil || resp[3] != byte(pldm.Error) {
		t.Fatalf("resp = %v, want ERROR", resp)
	}
	if h.ActiveSessions() != 0 {
		t.Fatalf("ActiveSessions = %d, want 0", h.ActiveSessions())
	}
}

// A second memory command for an instance id that already has an active
// session is rejected rather than silently overwriting the running one.
func TestDispatch_DuplicateInstanceIDRejected(t *testing.T) {
	dev := xdmatest.New()
	h, _, _ := newTestHandler(t, dev)
	req := pldm.TransferRequest{
		Command: pldm.CmdReadFromMemory, InstanceID: 9, FileHandle: 42,
		Length: 17, HostAddress: 0x2000, Direction: pldm.ToHost,
	}

	if resp := h.Dispatch(req, func(pldm.Response, bool) {}); resp != nil {
		t.Fatalf("first dispatch returned synchronous response %v, want nil", resp)
	}
	resp := h.Dispatch(req, func(pldm.Response, bool) {})
	if resp == nil || resp[3] != byte(pldm.ErrorInvalidData) {
		t.Fatalf("second dispatch = %v, want ERROR_INVALID_DATA", resp)
	}
}
