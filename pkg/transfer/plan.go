// Copyright 2018-2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transfer

import "github.com/baemyung/ibm-pldm/pkg/pldm"

// Plan is the mutable cursor over a TransferRequest's byte range
// (spec.md §3, TransferPlan). Chunks are issued strictly in offset order;
// the cursor never resets.
type Plan struct {
	RemainingLength   uint32
	CursorOffset      uint32
	CursorHostAddress uint64
}

func newPlan(req pldm.TransferRequest) Plan {
	return Plan{
		RemainingLength:   req.Length,
		CursorOffset:      req.Offset,
		CursorHostAddress: req.HostAddress,
	}
}

// Done reports whether every byte of the original request has been
// accounted for.
func (p Plan) Done() bool {
	return p.RemainingLength == 0
}

// nextChunkLength returns min(remaining, MaxChunk), per spec.md §3.
func (p Plan) nextChunkLength() uint32 {
	if p.RemainingLength > pldm.MaxChunk {
		return pldm.MaxChunk
	}
	return p.RemainingLength
}

// advance consumes chunkLength bytes from the plan, moving the cursor
// forward. It never reorders or rewinds.
func (p *Plan) advance(chunkLength uint32) {
	p.RemainingLength -= chunkLength
	p.CursorOffset += chunkLength
	p.CursorHostAddress += uint64(chunkLength)
}
