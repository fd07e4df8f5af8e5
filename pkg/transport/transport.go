// Copyright 2018-2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package transport is the calling contract at the boundary this agent
// does not implement: the MCTP socket carrying PLDM frames and the PLDM
// codec that decodes/encodes them (spec.md §1, GLOSSARY "MCTP"). Nothing
// here talks to a real MCTP device node; it exists so pkg/fileio and
// pkg/hostnotify can be wired to whatever real requester library a
// deployment provides without depending on its concrete type.
package transport

import (
	"github.com/baemyung/ibm-pldm/pkg/fileio"
	"github.com/baemyung/ibm-pldm/pkg/logger"
	"github.com/baemyung/ibm-pldm/pkg/pldm"
	"github.com/baemyung/ibm-pldm/pkg/reactor"
)

var log = logger.LogContainer.GetSimpleLogger()

// Frame is one inbound MCTP-delivered PLDM message, still in the codec's
// wire form.
type Frame struct {
	Raw         []byte
	ResponseKey int
}

// Decoder turns a raw inbound Frame into the typed request pkg/fileio
// dispatches on. The real PLDM decode routine lives in an out-of-scope
// protocol library; this interface is the seam a deployment plugs it in
// through.
type Decoder interface {
	Decode(f Frame) (pldm.TransferRequest, error)
}

// Endpoint is the MCTP socket boundary: Recv yields inbound frames, Reply
// sends an encoded response back keyed to the frame it answers, and Send
// issues a BMC-initiated request (used by pkg/hostnotify).
type Endpoint interface {
	Fd() int
	Recv() (Frame, error)
	Reply(responseKey int, encoded []byte) error
	Send(tid uint8, cmd pldm.CommandCode, instanceID uint8, payload []byte) error
}

// Loop drives one Endpoint: it decodes inbound frames, dispatches them to
// a fileio.Handler, and writes back whichever response — synchronous or
// session-driven — the handler produces, matching the outstanding frame
// by response key.
type Loop struct {
	ep      Endpoint
	decoder Decoder
	handler *fileio.Handler

	// keyByInstance tracks the response key of the frame that started
	// each in-flight memory-command session, so the asynchronous
	// response can be sent back to the request that originated it.
	keyByInstance map[uint8]int
}

// NewLoop builds a Loop over ep, decoding with decoder and dispatching
// through handler.
func NewLoop(ep Endpoint, decoder Decoder, handler *fileio.Handler) *Loop {
	return &Loop{
		ep:            ep,
		decoder:       decoder,
		handler:       handler,
		keyByInstance: make(map[uint8]int),
	}
}

// Attach registers the endpoint's fd with r so inbound frames are drained
// on the reactor goroutine, keeping FileIoHandler dispatch on the same
// single thread that owns TransferSession state (spec.md §5).
func (l *Loop) Attach(r reactor.Binding) (reactor.Handle, error) {
	return r.RegisterIO(l.ep.Fd(), reactor.Readable, l.onReadable)
}

func (l *Loop) onReadable(events uint32) {
	frame, err := l.ep.Recv()
	if err != nil {
		log.Errorw("transport: recv failed", "err", err)
		return
	}

	req, err := l.decoder.Decode(frame)
	if err != nil {
		log.Errorw("transport: decode failed", "err", err)
		return
	}
	req.ResponseKey = frame.ResponseKey

	respond := func(resp pldm.Response, ok bool) {
		key, tracked := l.keyByInstance[resp.InstanceID]
		delete(l.keyByInstance, resp.InstanceID)
		if !ok || !tracked {
			return
		}
		if err := l.ep.Reply(key, encodeResponse(req.Command, resp)); err != nil {
			log.Errorw("transport: reply failed", "instance_id", resp.InstanceID, "err", err)
		}
	}

	// Dispatch returns nil only when it started a session for req.InstanceID
	// (spec.md §4.4); recording/clearing keyByInstance here, after the fact
	// and only on that path, keeps a synchronously-rejected duplicate
	// request (e.g. an instance id already owning a live session) from
	// clobbering or dropping that live session's response key.
	if sync := l.handler.Dispatch(req, respond); sync != nil {
		if err := l.ep.Reply(frame.ResponseKey, sync); err != nil {
			log.Errorw("transport: synchronous reply failed", "instance_id", req.InstanceID, "err", err)
		}
		return
	}
	l.keyByInstance[req.InstanceID] = frame.ResponseKey
}

func encodeResponse(cmd pldm.CommandCode, resp pldm.Response) []byte {
	if pldm.IsMemoryCommand(cmd) {
		return pldm.EncodeMemoryResponse(resp.InstanceID, resp.Command, resp.Completion, resp.Length)
	}
	return pldm.EncodeSimpleResponse(resp.InstanceID, resp.Command, resp.Completion)
}
