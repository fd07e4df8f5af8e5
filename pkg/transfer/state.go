// Copyright 2018-2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package transfer implements the DMA-backed file-transfer state machine
// (spec.md §3/§4.2, C2): the core of this agent. A Session chunks a
// logical byte range, drives an xdma.Interface one chunk per reactor
// wake, and guarantees exactly one PLDM response and full resource
// release on every exit path.
package transfer

import "fmt"

// SessionState is the closed set of states a Session may occupy
// (spec.md §3). Init is the only initial state; Completed, Failed, and
// TimedOut are terminal.
type SessionState int

const (
	Init SessionState = iota
	Armed
	ChunkInFlight
	Completed
	Failed
	TimedOut
)

func (s SessionState) String() string {
	switch s {
	case Init:
		return "Init"
	case Armed:
		return "Armed"
	case ChunkInFlight:
		return "ChunkInFlight"
	case Completed:
		return "Completed"
	case Failed:
		return "Failed"
	case TimedOut:
		return "TimedOut"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

// Terminal reports whether s is one of {Completed, Failed, TimedOut}.
func (s SessionState) Terminal() bool {
	return s == Completed || s == Failed || s == TimedOut
}
