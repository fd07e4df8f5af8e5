// Copyright 2018-2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transfer

import (
	"fmt"
	"time"

	"github.com/baemyung/ibm-pldm/pkg/logger"
	"github.com/baemyung/ibm-pldm/pkg/metric"
	"github.com/baemyung/ibm-pldm/pkg/pldm"
	"github.com/baemyung/ibm-pldm/pkg/reactor"
	"github.com/baemyung/ibm-pldm/pkg/xdma"
)

var log = logger.LogContainer.GetSimpleLogger()

// DeviceOpener constructs a fresh xdma.Interface for one session. In
// production this is xdma.Open bound to the configured device path; in
// tests it returns an xdmatest.Device. One device handle per session,
// opened lazily, is the resolution of spec.md §9's Open Question #3.
type DeviceOpener func() (xdma.Interface, error)

// ResponseFunc is invoked exactly once per session with the single PLDM
// response the session ever produces (spec.md §3's single-response
// guarantee). ok is false when cancellation policy suppresses the
// response entirely (spec.md §4.2, "On cancellation").
type ResponseFunc func(resp pldm.Response, ok bool)

// Session drives one TransferRequest to a terminal state. It is not
// safe for concurrent use; every method is called from the owning
// Reactor's goroutine.
type Session struct {
	req    pldm.TransferRequest
	source xdma.SourceFile

	opener   DeviceOpener
	dev      xdma.Interface
	watchdog time.Duration
	interval time.Duration

	state SessionState
	plan  Plan

	ioHandle    reactor.Handle
	timerHandle reactor.Handle

	responseSent bool
	respond      ResponseFunc
}

// New constructs a Session for req, whose bytes live in source (already
// open; the session takes ownership and closes it at every terminal
// transition, per spec.md §5's ownership rules).
func New(req pldm.TransferRequest, source xdma.SourceFile, opener DeviceOpener, watchdog, interval time.Duration, respond ResponseFunc) *Session {
	return &Session{
		req:      req,
		source:   source,
		opener:   opener,
		watchdog: watchdog,
		interval: interval,
		state:    Init,
		plan:     newPlan(req),
		respond:  respond,
	}
}

// State returns the session's current state, for introspection
// (pkg/statusrpc) and tests.
func (s *Session) State() SessionState {
	return s.state
}

// InstanceID and Command identify the request this session is driving,
// for pkg/statusrpc introspection.
func (s *Session) InstanceID() uint8         { return s.req.InstanceID }
func (s *Session) Command() pldm.CommandCode { return s.req.Command }

// Start transitions Init -> Armed: opens the DMA device, maps a buffer
// sized for the request, registers readiness on the device fd, and arms
// the watchdog (spec.md §4.2).
func (s *Session) Start(r reactor.Binding) {
	if s.state != Init {
		return
	}
	metric.SessionsStarted.Inc()

	dev, err := s.opener()
	if err != nil {
		log.Errorw("transfer: failed to open xdma device",
			"command", s.req.Command.String(), "instance_id", s.req.InstanceID, "err", err)
		s.finish(Failed, pldm.KindResourceUnavailable, err)
		return
	}
	s.dev = dev

	pageLen := xdma.PageAlignedLength(s.req.Length)
	if err := s.dev.Map(pageLen); err != nil {
		log.Errorw("transfer: failed to map xdma buffer",
			"command", s.req.Command.String(), "instance_id", s.req.InstanceID, "err", err)
		s.finish(Failed, pldm.KindResourceUnavailable, err)
		return
	}

	handle, err := r.RegisterIO(s.dev.Fd(), reactor.Readable|reactor.Writable, s.onReadiness)
	if err != nil {
		log.Errorw("transfer: failed to register io",
			"command", s.req.Command.String(), "instance_id", s.req.InstanceID, "err", err)
		s.finish(Failed, pldm.KindIoError, err)
		return
	}
	s.ioHandle = handle

	// watchdog <= 0 means the operator disabled session timeouts
	// (config.NoTimeout); leave the session
	// unbounded rather than arming a timer that would fire immediately.
	if s.watchdog > 0 {
		timer, err := r.TimerAt(time.Now().Add(s.watchdog), s.interval, s.onWatchdog)
		if err != nil {
			log.Errorw("transfer: failed to arm watchdog",
				"command", s.req.Command.String(), "instance_id", s.req.InstanceID, "err", err)
			s.finish(Failed, pldm.KindResourceUnavailable, err)
			return
		}
		s.timerHandle = timer
	}

	s.state = Armed
}

// onReadiness is the reactor callback registered on the DMA fd. It
// implements the chunked-transfer algorithm of spec.md §4.2.
func (s *Session) onReadiness(events uint32) {
	if s.state.Terminal() {
		return
	}
	readiness := s.dev.Readiness(events)
	if !readiness.Readable && !readiness.Writable {
		return
	}
	s.state = ChunkInFlight

	chunkLen := s.plan.nextChunkLength()
	n, err := s.dev.SubmitChunk(s.source, int64(s.plan.CursorOffset), chunkLen, s.plan.CursorHostAddress, s.req.Direction)
	metric.ChunksSubmitted.Inc()
	if err != nil {
		log.Errorw("transfer: chunk submission failed",
			"command", s.req.Command.String(), "instance_id", s.req.InstanceID,
			"cursor_offset", s.plan.CursorOffset, "err", err)
		s.finish(Failed, pldm.KindIoError, err)
		return
	}

	isFinal := chunkLen == s.plan.RemainingLength
	s.plan.advance(chunkLen)

	if s.plan.Done() && isFinal && uint32(n) == chunkLen {
		s.finish(Completed, pldm.KindNone, nil)
		return
	}
	if s.plan.Done() {
		// Final chunk returned fewer bytes than requested: the driver
		// under-delivered on what should have been the last operation.
		// The original transferAll re-attempts the tail on the next
		// readiness event instead of failing outright, but this agent does
		// not retry a failed DMA operation (spec.md §1 Non-goal), so a
		// short final chunk ends the session here rather than looping on a
		// chunk length that already produced a short read once.
		log.Errorw("transfer: short final chunk",
			"command", s.req.Command.String(), "instance_id", s.req.InstanceID,
			"expected", chunkLen, "got", n)
		s.finish(Failed, pldm.KindIoError, fmt.Errorf("transfer: short chunk: got %d want %d", n, chunkLen))
		return
	}
	// Otherwise remain in ChunkInFlight, awaiting the next readiness event.
}

// onWatchdog is the reactor callback for the 20s/1s timer. It respects
// the response latch: a session that has already produced its one
// response ignores every subsequent fire (spec.md §4.2, §8 property 5).
func (s *Session) onWatchdog() {
	if s.responseSent || s.state.Terminal() {
		return
	}
	log.Warnw("transfer: watchdog fired",
		"command", s.req.Command.String(), "instance_id", s.req.InstanceID, "state", s.state.String())
	s.finish(TimedOut, pldm.KindTimeout, nil)
}

// Cancel moves the session to TimedOut without emitting a response: the
// ResponseFunc is invoked once with ok set to false. Reactor.Stop does
// not call it.
func (s *Session) Cancel() {
	if s.state.Terminal() {
		return
	}
	s.responseSent = true
	s.state = TimedOut
	s.teardown()
	metric.SessionsTimedOut.Inc()
	s.respond(pldm.Response{InstanceID: s.req.InstanceID, Command: s.req.Command}, false)
}

// finish performs the single terminal transition: it tests-and-sets the
// response latch, releases every resource, and — if this is genuinely
// the first terminal transition — invokes the response callback exactly
// once (spec.md §3, §8 property 1). kind classifies why, for structured
// logging; the wire response itself only ever carries
// pldm.Success or the single generic pldm.Error completion code, since
// that is all the OEM file-I/O protocol defines for a session-level
// failure (spec.md §6).
func (s *Session) finish(next SessionState, kind pldm.ErrorKind, cause error) {
	if s.responseSent {
		return
	}
	s.responseSent = true
	s.state = next
	s.teardown()

	switch next {
	case Completed:
		metric.SessionsCompleted.Inc()
		s.respond(pldm.Response{
			InstanceID: s.req.InstanceID,
			Command:    s.req.Command,
			Completion: pldm.Success,
			Length:     s.req.Length,
		}, true)
	case Failed, TimedOut:
		if next == Failed {
			metric.SessionsFailed.Inc()
		} else {
			metric.SessionsTimedOut.Inc()
		}
		if cause != nil {
			log.Errorw("transfer: session terminated with error",
				"command", s.req.Command.String(), "instance_id", s.req.InstanceID,
				"kind", kind.String(), "err", cause)
		}
		s.respond(pldm.Response{
			InstanceID: s.req.InstanceID,
			Command:    s.req.Command,
			Completion: pldm.Error,
			Length:     0,
		}, true)
	}
}

// teardown drops the IO registration and timer before releasing the
// device and source file, breaking the session<->registration cycle
// described in spec.md §9 by dropping the reactor handles first.
func (s *Session) teardown() {
	if s.ioHandle != nil {
		s.ioHandle.Drop()
		s.ioHandle = nil
	}
	if s.timerHandle != nil {
		s.timerHandle.Drop()
		s.timerHandle = nil
	}
	if s.dev != nil {
		if err := s.dev.Close(); err != nil {
			log.Warnw("transfer: error closing xdma device", "err", err)
		}
		s.dev = nil
	}
	if closer, ok := s.source.(interface{ Close() error }); ok && closer != nil {
		if err := closer.Close(); err != nil {
			log.Warnw("transfer: error closing source file", "err", err)
		}
	}
	s.source = nil
}
