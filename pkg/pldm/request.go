// Copyright 2018-2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pldm

import (
	"errors"
	"fmt"
	"math"
)

// MinChunk is the smallest logical transfer length a TransferRequest may
// carry (checked by Validate); the tail chunk of a transfer may be
// shorter. MaxChunk bounds a single DMA driver operation and is the
// driver's compile-time maximum (spec.md §3/§6); it is a var, not a
// const, so tests can shrink it without touching production code paths.
const MinChunk = 16

var MaxChunk uint32 = 16 * 1024 * 1024 // DMA_MAXSIZE

// MaxTransferLength is the largest length a TransferRequest may carry,
// per spec.md §3 ("length <= 4 GiB - 1").
const MaxTransferLength = math.MaxUint32 // 4 GiB - 1

// ErrorKind classifies why a session failed to complete, per spec.md §7.
// It is not a Go error type: it is a structured-logging field pkg/transfer
// attaches to every non-success terminal transition, since the PLDM wire
// format itself only distinguishes Success from a single generic Error
// completion code (spec.md §6) for session-level failures.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindInvalidRequest
	KindResourceUnavailable
	KindIoError
	KindTimeout
	KindPeerError
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidRequest:
		return "InvalidRequest"
	case KindResourceUnavailable:
		return "ResourceUnavailable"
	case KindIoError:
		return "IoError"
	case KindTimeout:
		return "Timeout"
	case KindPeerError:
		return "PeerError"
	default:
		return "None"
	}
}

var (
	// ErrInvalidLength is returned when length < MinChunk or the
	// offset+length arithmetic overflows.
	ErrInvalidLength = errors.New("pldm: invalid transfer length")
	// ErrUnalignedHostAddress is returned when host_address is not
	// word-aligned, per the driver contract in spec.md §3.
	ErrUnalignedHostAddress = errors.New("pldm: host address not word-aligned")
)

// TransferRequest is the immutable, validated description of one PLDM
// memory command, per spec.md §3. It is produced by the transport's
// Decoder, stamped with the frame's ResponseKey by pkg/transport, and
// then handed to pkg/fileio, which does not mutate it.
type TransferRequest struct {
	Command     CommandCode
	InstanceID  uint8 // 0-31
	ResponseKey int   // opaque token used by the transport to match the response

	FileHandle  uint32
	Offset      uint32
	Length      uint32
	HostAddress uint64
	Direction   Direction
}

// Validate enforces the invariants of spec.md §3: length bounds, no
// offset+length overflow, and host-address word alignment.
func (r TransferRequest) Validate() error {
	if r.InstanceID > 31 {
		return fmt.Errorf("pldm: instance id %d out of range", r.InstanceID)
	}
	if r.Length < MinChunk || uint64(r.Length) > MaxTransferLength {
		return ErrInvalidLength
	}
	if uint64(r.Offset)+uint64(r.Length) > math.MaxUint32 {
		return ErrInvalidLength
	}
	if r.HostAddress%4 != 0 {
		return ErrUnalignedHostAddress
	}
	return nil
}
