// Copyright 2018-2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fileio is the PLDM command dispatcher (spec.md §4.4, C4). It
// decodes nothing itself — the wire codec is an out-of-scope collaborator
// (spec.md §1) — and instead sits downstream of it: callers hand Handler
// an already-parsed pldm.TransferRequest, and Handler either answers
// synchronously or spins up a pkg/transfer.Session and answers later
// through the same ResponseFunc the session uses.
package fileio

import (
	"errors"
	"os"
	"time"

	"github.com/baemyung/ibm-pldm/pkg/config"
	"github.com/baemyung/ibm-pldm/pkg/logger"
	"github.com/baemyung/ibm-pldm/pkg/pldm"
	"github.com/baemyung/ibm-pldm/pkg/reactor"
	"github.com/baemyung/ibm-pldm/pkg/transfer"
	"github.com/spf13/afero"
)

var log = logger.LogContainer.GetSimpleLogger()

// ErrSessionExists is returned when a memory command names an instance id
// that already has a session in flight.
var ErrSessionExists = errors.New("fileio: session already active for instance id")

// PathForHandle resolves the BMC-side path backing a file_handle. Handle
// resolution (mapping a numeric handle to a filesystem path) belongs to
// the out-of-scope file-table/PDR component; Handler only needs a way to
// ask for it, so tests can supply a trivial map.
type PathForHandle func(handle uint32) (string, error)

// Handler dispatches decoded PLDM requests to the right session-factory
// routine, per spec.md §4.4's validation table.
type Handler struct {
	fs           afero.Fs
	reactor      reactor.Binding
	deviceOpener transfer.DeviceOpener
	pathFor      PathForHandle
	watchdog     time.Duration
	interval     time.Duration

	sessions map[uint8]*transfer.Session
}

// New constructs a Handler. deviceOpener is called once per memory command
// to obtain a fresh xdma.Interface (agent.StartupWithConfig wires this to
// func() (xdma.Interface, error) { return xdma.Open(conf.XdmaDevicePath) }).
func New(fs afero.Fs, r reactor.Binding, deviceOpener transfer.DeviceOpener, pathFor PathForHandle) *Handler {
	return &Handler{
		fs:           fs,
		reactor:      r,
		deviceOpener: deviceOpener,
		pathFor:      pathFor,
		watchdog:     config.WatchdogDuration,
		interval:     config.WatchdogInterval,
		sessions:     make(map[uint8]*transfer.Session),
	}
}

// SetWatchdog overrides the per-session watchdog duration and re-check
// interval New defaulted to config.WatchdogDuration/config.WatchdogInterval.
// A watchdog <= 0 disables session timeouts entirely; agent.StartupWithConfig
// does this when config.NoTimeout is set.
func (h *Handler) SetWatchdog(watchdog, interval time.Duration) {
	h.watchdog = watchdog
	h.interval = interval
}

// Dispatch handles one decoded request. For synchronous commands it
// returns a non-nil encoded response immediately. For memory commands it
// starts a Session and returns nil; the eventual response arrives through
// respond, exactly once, per spec.md §4.4 and §8 property 1.
func (h *Handler) Dispatch(req pldm.TransferRequest, respond transfer.ResponseFunc) []byte {
	if pldm.IsMemoryCommand(req.Command) {
		return h.dispatchMemory(req, respond)
	}
	return h.dispatchSimple(req)
}

func (h *Handler) dispatchMemory(req pldm.TransferRequest, respond transfer.ResponseFunc) []byte {
	if err := req.Validate(); err != nil {
		log.Errorw("fileio: request validation failed",
			"command", req.Command.String(), "instance_id", req.InstanceID, "err", err)
		if errors.Is(err, pldm.ErrInvalidLength) {
			return pldm.EncodeMemoryResponse(req.InstanceID, req.Command, pldm.ErrorInvalidLen, 0)
		}
		return pldm.EncodeMemoryResponse(req.InstanceID, req.Command, pldm.ErrorInvalidData, 0)
	}

	if _, active := h.sessions[req.InstanceID]; active {
		log.Errorw("fileio: instance id already has an active session",
			"command", req.Command.String(), "instance_id", req.InstanceID)
		return pldm.EncodeMemoryResponse(req.InstanceID, req.Command, pldm.ErrorInvalidData, 0)
	}

	path, err := h.pathFor(req.FileHandle)
	if err != nil {
		log.Errorw("fileio: unresolved file handle",
			"command", req.Command.String(), "instance_id", req.InstanceID, "file_handle", req.FileHandle, "err", err)
		return pldm.EncodeMemoryResponse(req.InstanceID, req.Command, pldm.Error, 0)
	}

	flag := os.O_RDONLY
	if req.Direction == pldm.FromHost {
		flag = os.O_RDWR | os.O_CREATE
	}
	source, err := h.fs.OpenFile(path, flag, 0o644)
	if err != nil {
		log.Errorw("fileio: failed to open source file",
			"command", req.Command.String(), "instance_id", req.InstanceID, "path", path, "err", err)
		return pldm.EncodeMemoryResponse(req.InstanceID, req.Command, pldm.Error, 0)
	}

	instanceID := req.InstanceID
	wrapped := func(resp pldm.Response, ok bool) {
		delete(h.sessions, instanceID)
		if ok {
			respond(resp, true)
		}
	}

	session := transfer.New(req, xdmaSource{source}, h.deviceOpener, h.watchdog, h.interval, wrapped)
	h.sessions[instanceID] = session
	session.Start(h.reactor)

	// The real response for a memory command is asynchronous; nothing is
	// returned synchronously here (spec.md §4.4).
	return nil
}

func (h *Handler) dispatchSimple(req pldm.TransferRequest) []byte {
	switch req.Command {
	case pldm.CmdFileAck, pldm.CmdFileAckWithMeta,
		pldm.CmdNewFileAvailable, pldm.CmdNewFileAvailableWithMeta,
		pldm.CmdGetFileTable, pldm.CmdGetAlertStatus,
		pldm.CmdReadByType, pldm.CmdWriteByType,
		pldm.CmdReadFile, pldm.CmdWriteFile:
		return pldm.EncodeSimpleResponse(req.InstanceID, req.Command, pldm.Success)
	default:
		log.Warnw("fileio: unknown command code", "command", req.Command.String(), "instance_id", req.InstanceID)
		return pldm.EncodeSimpleResponse(req.InstanceID, req.Command, pldm.ErrorInvalidData)
	}
}

// ActiveSessions reports the number of in-flight memory-command sessions,
// for pkg/statusrpc introspection.
func (h *Handler) ActiveSessions() int {
	return len(h.sessions)
}

// SessionInfo is a snapshot of one in-flight session, for pkg/statusrpc.
type SessionInfo struct {
	InstanceID uint8
	Command    pldm.CommandCode
	State      transfer.SessionState
}

// Sessions snapshots every in-flight session. Order is unspecified.
func (h *Handler) Sessions() []SessionInfo {
	infos := make([]SessionInfo, 0, len(h.sessions))
	for id, s := range h.sessions {
		infos = append(infos, SessionInfo{InstanceID: id, Command: s.Command(), State: s.State()})
	}
	return infos
}

// xdmaSource adapts an afero.File to xdma.SourceFile.
type xdmaSource struct {
	afero.File
}
