// Copyright 2018-2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hostnotify is the outbound half of the PLDM OEM file protocol
// (spec.md §3 PendingHostRequest, C5): every operation is a BMC-initiated
// request — telling the host a file is ready (NEW_FILE_AVAILABLE[_WITH_META])
// or reporting the status of something the host asked for
// (FILE_ACK[_WITH_META]) — retried until Resolve reports the host's
// matching response or the retry budget is exhausted.
package hostnotify

import (
	"errors"
	"time"

	"github.com/baemyung/ibm-pldm/pkg/logger"
	"github.com/baemyung/ibm-pldm/pkg/metric"
	"github.com/baemyung/ibm-pldm/pkg/pldm"
	"github.com/baemyung/ibm-pldm/pkg/reactor"
	"github.com/cenkalti/backoff/v4"
)

var log = logger.LogContainer.GetSimpleLogger()

// ErrNoSuchPending is returned by Resolve when the instance id names no
// request this Notifier is currently awaiting a response for (already
// resolved, already timed out, or never sent).
var ErrNoSuchPending = errors.New("hostnotify: no pending request for instance id")

// notifyBackoff mirrors u-bmc/pkg/bmc/system.go's timeRetry: the same
// ExponentialBackOff shape and Reset/NextBackOff usage, driven here by a
// reactor timer instead of a blocking time.Sleep loop, to stay on the
// single reactor goroutine.
func notifyBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.RandomizationFactor = 0.2
	b.Multiplier = 2
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 2 * time.Minute
	b.Clock = backoff.SystemClock
	b.Reset()
	return b
}

// Sender is the out-of-scope PLDM requester/transport collaborator
// (spec.md §1): it frames and sends one PLDM request toward tid and
// returns once the frame is on the wire. The host's asynchronous response
// is delivered back to Notifier separately, through Resolve.
type Sender interface {
	Send(tid uint8, cmd pldm.CommandCode, instanceID uint8, payload []byte) error
}

// InstanceIDs is the capability Notifier needs to name its own outbound
// requests; satisfied by *pldm.InstanceIDAllocator.
type InstanceIDs interface {
	Alloc() (uint8, error)
	Free(id uint8)
}

// kind distinguishes the two outbound request families spec.md §4.5 names:
// telling the host a file is ready (new_file_available) versus reporting
// the status of an operation the host asked for (file_ack). Both are
// BMC-initiated requests awaiting the host's matching response, so they
// share every mechanic below except command selection and payload shape.
type kind int

const (
	kindNewFileAvailable kind = iota
	kindFileAck
)

type pending struct {
	kind       kind
	fileType   pldm.FileType
	fileHandle uint32
	length     uint32              // new_file_available[_with_meta] only
	status     pldm.CompletionCode // file_ack[_with_meta] only
	metadata   []byte
	withMeta   bool

	backoff *backoff.ExponentialBackOff
	timer   reactor.Handle
	started time.Time
}

// command picks the PLDM command code for p's kind and with_meta variant.
func (p *pending) command() pldm.CommandCode {
	switch p.kind {
	case kindFileAck:
		if p.withMeta {
			return pldm.CmdFileAckWithMeta
		}
		return pldm.CmdFileAck
	default:
		if p.withMeta {
			return pldm.CmdNewFileAvailableWithMeta
		}
		return pldm.CmdNewFileAvailable
	}
}

// encode builds p's payload, per spec.md §4.5: file type and file handle
// always, then either length (new_file_available) or status (file_ack),
// then the metadata blob for the with_meta variants. The wire
// header/instance-id byte is added by the out-of-scope transport codec.
func (p *pending) encode() []byte {
	buf := make([]byte, 0, 11+len(p.metadata))
	buf = appendUint16LE(buf, uint16(p.fileType))
	buf = appendUint32LE(buf, p.fileHandle)
	if p.kind == kindFileAck {
		buf = append(buf, byte(p.status))
	} else {
		buf = appendUint32LE(buf, p.length)
	}
	if p.withMeta {
		buf = append(buf, p.metadata...)
	}
	return buf
}

// Notifier tracks outbound new-file-available and file-ack requests
// awaiting the host's response, retrying on a backoff schedule until
// Resolve is called or the elapsed retry budget is exhausted.
type Notifier struct {
	sender  Sender
	r       reactor.Binding
	ids     InstanceIDs
	pending map[uint8]*pending
}

// New constructs a Notifier bound to sender for outbound sends and r for
// scheduling retries.
func New(sender Sender, r reactor.Binding, ids InstanceIDs) *Notifier {
	return &Notifier{
		sender:  sender,
		r:       r,
		ids:     ids,
		pending: make(map[uint8]*pending),
	}
}

// NewFileAvailable notifies the host that fileHandle (of fileType) is
// ready to read, retrying until Resolve is called with the returned
// instance id or the backoff budget expires.
func (n *Notifier) NewFileAvailable(fileType pldm.FileType, fileHandle, length uint32) (uint8, error) {
	return n.start(&pending{kind: kindNewFileAvailable, fileType: fileType, fileHandle: fileHandle, length: length})
}

// NewFileAvailableWithMeta is NewFileAvailable plus an opaque metadata
// blob carried in the notification payload (spec.md §3).
func (n *Notifier) NewFileAvailableWithMeta(fileType pldm.FileType, fileHandle, length uint32, metadata []byte) (uint8, error) {
	return n.start(&pending{kind: kindNewFileAvailable, fileType: fileType, fileHandle: fileHandle, length: length, metadata: metadata, withMeta: true})
}

// FileAck reports the completion status of an operation the host asked
// for on fileHandle (of fileType), per spec.md §4.5's file_ack. Like
// NewFileAvailable it is a BMC-initiated request: it retries until Resolve
// is called with the returned instance id or the backoff budget expires.
func (n *Notifier) FileAck(fileType pldm.FileType, fileHandle uint32, status pldm.CompletionCode) (uint8, error) {
	return n.start(&pending{kind: kindFileAck, fileType: fileType, fileHandle: fileHandle, status: status})
}

// FileAckWithMeta is FileAck plus an opaque metadata blob carried in the
// request payload (spec.md §4.5's file_ack_with_meta).
func (n *Notifier) FileAckWithMeta(fileType pldm.FileType, fileHandle uint32, status pldm.CompletionCode, metadata []byte) (uint8, error) {
	return n.start(&pending{kind: kindFileAck, fileType: fileType, fileHandle: fileHandle, status: status, metadata: metadata, withMeta: true})
}

// start allocates an instance id for p, sends its initial request, and
// arms the first retry timer. Shared by every operation spec.md §4.5
// names, since all four only differ in command code and payload shape.
func (n *Notifier) start(p *pending) (uint8, error) {
	id, err := n.ids.Alloc()
	if err != nil {
		return 0, err
	}

	p.backoff = notifyBackoff()
	p.started = time.Now()
	n.pending[id] = p

	if err := n.sender.Send(pldm.HypervisorTID, p.command(), id, p.encode()); err != nil {
		log.Errorw("hostnotify: initial send failed", "instance_id", id, "command", p.command().String(), "err", err)
	}
	n.armRetry(id, p)
	return id, nil
}

func (n *Notifier) armRetry(id uint8, p *pending) {
	delay := p.backoff.NextBackOff()
	if delay == backoff.Stop {
		n.giveUp(id, p)
		return
	}
	timer, err := n.r.TimerAt(time.Now().Add(delay), 0, func() { n.onRetry(id) })
	if err != nil {
		log.Errorw("hostnotify: failed to arm retry timer", "instance_id", id, "err", err)
		return
	}
	p.timer = timer
}

func (n *Notifier) onRetry(id uint8) {
	p, ok := n.pending[id]
	if !ok {
		return
	}
	if p.timer != nil {
		p.timer.Drop()
		p.timer = nil
	}

	metric.NotifyRetries.Inc()
	log.Warnw("hostnotify: retrying unacked request",
		"instance_id", id, "command", p.command().String(), "file_handle", p.fileHandle)
	if err := n.sender.Send(pldm.HypervisorTID, p.command(), id, p.encode()); err != nil {
		log.Errorw("hostnotify: retry send failed", "instance_id", id, "err", err)
	}
	n.armRetry(id, p)
}

func (n *Notifier) giveUp(id uint8, p *pending) {
	metric.NotifyTimeouts.Inc()
	log.Errorw("hostnotify: giving up on unanswered request",
		"instance_id", id, "command", p.command().String(), "file_handle", p.fileHandle,
		"elapsed", time.Since(p.started))
	delete(n.pending, id)
	n.ids.Free(id)
}

// Resolve marks the outbound request named by id as answered by the
// host's matching response (spec.md §4.5), stopping its retry timer and
// freeing the instance id for reuse. Matching the response frame to id is
// the out-of-scope transport codec's job (spec.md §1); this is the seam
// it calls into once it has.
func (n *Notifier) Resolve(id uint8) error {
	p, ok := n.pending[id]
	if !ok {
		return ErrNoSuchPending
	}
	if p.timer != nil {
		p.timer.Drop()
	}
	delete(n.pending, id)
	n.ids.Free(id)
	return nil
}

// Pending reports how many requests are awaiting a response, for
// pkg/statusrpc introspection.
func (n *Notifier) Pending() int {
	return len(n.pending)
}

func appendUint16LE(buf []byte, v uint16) []byte {
	return append(buf, byte(v), byte(v>>8))
}

func appendUint32LE(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}
