// Copyright 2018-2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transfer

import (
	"bytes"
	"testing"
	"time"

	"github.com/baemyung/ibm-pldm/pkg/pldm"
	"github.com/baemyung/ibm-pldm/pkg/reactor/reactortest"
	"github.com/baemyung/ibm-pldm/pkg/xdma"
	"github.com/baemyung/ibm-pldm/pkg/xdma/xdmatest"
	"github.com/spf13/afero"
)

// memFile adapts an afero.File to xdma.SourceFile and tracks Close calls,
// so tests can assert the source is released on every terminal transition.
type memFile struct {
	afero.File
	closed bool
}

func (f *memFile) Close() error {
	f.closed = true
	return f.File.Close()
}

func newMemSource(t *testing.T, contents []byte) *memFile {
	t.Helper()
	fs := afero.NewMemMapFs()
	f, err := fs.Create("/src")
	if err != nil {
		t.Fatalf("create mem file: %v", err)
	}
	if len(contents) > 0 {
		if _, err := f.Write(contents); err != nil {
			t.Fatalf("write mem file: %v", err)
		}
	}
	return &memFile{File: f}
}

func newSession(t *testing.T, req pldm.TransferRequest, source xdma.SourceFile, dev *xdmatest.Device) (*Session, *reactortest.Reactor, *[]pldm.Response) {
	t.Helper()
	r := reactortest.New()
	var responses []pldm.Response
	s := New(req, source, func() (xdma.Interface, error) { return dev, nil },
		20*time.Second, 1*time.Second,
		func(resp pldm.Response, ok bool) {
			if ok {
				responses = append(responses, resp)
			}
		})
	s.Start(r)
	return s, r, &responses
}

func baseRequest(length uint32) pldm.TransferRequest {
	return pldm.TransferRequest{
		Command:     pldm.CmdReadFromMemory,
		InstanceID:  3,
		FileHandle:  1,
		Offset:      0,
		Length:      length,
		HostAddress: 0x1000,
		Direction:   pldm.ToHost,
	}
}

// S1: a single-chunk transfer completes with exactly one Success response
// and releases every registration (spec.md §8 properties 1 and 2).
func TestSession_SingleChunkCompletes(t *testing.T) {
	contents := bytes.Repeat([]byte{0xAB}, 64)
	source := newMemSource(t, contents)
	dev := xdmatest.New()
	req := baseRequest(64)

	s, r, responses := newSession(t, req, source, dev)
	if s.State() != Armed {
		t.Fatalf("state after Start = %v, want Armed", s.State())
	}

	r.Fire(dev.Fd(), 1)

	if s.State() != Completed {
		t.Fatalf("state = %v, want Completed", s.State())
	}
	if len(*responses) != 1 {
		t.Fatalf("got %d responses, want exactly 1", len(*responses))
	}
	resp := (*responses)[0]
	if resp.Completion != pldm.Success || resp.Length != 64 {
		t.Fatalf("response = %+v, want Success/64", resp)
	}
	if len(dev.Chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(dev.Chunks))
	}
	if r.ActiveIO() != 0 || r.ActiveTimers() != 0 {
		t.Fatalf("active io=%d timers=%d, want 0/0 after completion", r.ActiveIO(), r.ActiveTimers())
	}
	if !source.closed {
		t.Fatalf("source file was not closed on completion")
	}
}

// S2: a transfer spanning multiple MaxChunk-sized pieces issues chunks in
// strictly increasing offset order and sums to the full length (spec.md §8
// properties 3 and 4).
func TestSession_MultiChunkOrderedAndSums(t *testing.T) {
	orig := pldm.MaxChunk
	pldm.MaxChunk = 16 // shrink so a small test body exercises multiple chunks
	defer func() { pldm.MaxChunk = orig }()

	total := uint32(16*3 + 5) // three full chunks plus a short tail
	contents := make([]byte, total)
	for i := range contents {
		contents[i] = byte(i)
	}
	source := newMemSource(t, contents)
	dev := xdmatest.New()
	req := baseRequest(total)

	s, r, responses := newSession(t, req, source, dev)

	for s.State() != Completed && s.State() != Failed {
		r.Fire(dev.Fd(), 1)
	}

	if s.State() != Completed {
		t.Fatalf("state = %v, want Completed", s.State())
	}
	if len(dev.Chunks) != 4 {
		t.Fatalf("got %d chunks, want 4", len(dev.Chunks))
	}
	var sum uint32
	var lastOffset int64 = -1
	for _, c := range dev.Chunks {
		if c.FileOffset <= lastOffset {
			t.Fatalf("chunk offsets not strictly increasing: %d after %d", c.FileOffset, lastOffset)
		}
		lastOffset = c.FileOffset
		sum += c.Length
	}
	if sum != total {
		t.Fatalf("chunk lengths sum to %d, want %d", sum, total)
	}
	if len(*responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(*responses))
	}
}

// S3: a chunk submission failure mid-transfer fails the session exactly
// once and still releases resources.
func TestSession_ChunkFailureTerminatesOnce(t *testing.T) {
	orig := pldm.MaxChunk
	pldm.MaxChunk = 16
	defer func() { pldm.MaxChunk = orig }()

	source := newMemSource(t, make([]byte, 48))
	dev := xdmatest.New()
	dev.FailAt = 2
	req := baseRequest(48)

	s, r, responses := newSession(t, req, source, dev)

	r.Fire(dev.Fd(), 1) // chunk 1 ok
	r.Fire(dev.Fd(), 1) // chunk 2 fails

	if s.State() != Failed {
		t.Fatalf("state = %v, want Failed", s.State())
	}
	// A late, spurious readiness fire must not produce a second response.
	r.Fire(dev.Fd(), 1)

	if len(*responses) != 1 {
		t.Fatalf("got %d responses, want exactly 1", len(*responses))
	}
	if (*responses)[0].Completion != pldm.Error {
		t.Fatalf("completion = %v, want Error", (*responses)[0].Completion)
	}
	if r.ActiveIO() != 0 || r.ActiveTimers() != 0 {
		t.Fatalf("resources not released after failure")
	}
	if !source.closed {
		t.Fatalf("source not closed after failure")
	}
}

// S4: a short final chunk (fewer bytes returned than requested) is treated
// as a failure, not a silent truncation.
func TestSession_ShortFinalChunkFails(t *testing.T) {
	source := newMemSource(t, make([]byte, 32))
	dev := xdmatest.New()
	dev.ShortAt = 1
	req := baseRequest(32)

	s, r, responses := newSession(t, req, source, dev)
	r.Fire(dev.Fd(), 1)

	if s.State() != Failed {
		t.Fatalf("state = %v, want Failed", s.State())
	}
	if len(*responses) != 1 || (*responses)[0].Completion != pldm.Error {
		t.Fatalf("responses = %+v, want single Error response", *responses)
	}
}

// S5: the watchdog fires before completion — TimedOut wins the race and no
// further readiness event may produce a second response (spec.md §8
// property 5).
func TestSession_WatchdogTimeoutWinsRace(t *testing.T) {
	source := newMemSource(t, make([]byte, 64))
	dev := xdmatest.New()
	req := baseRequest(64)

	s, r, responses := newSession(t, req, source, dev)

	r.FireTimer(0) // watchdog fires before any readiness

	if s.State() != TimedOut {
		t.Fatalf("state = %v, want TimedOut", s.State())
	}
	// A late readiness event must be ignored: the response latch is set.
	r.Fire(dev.Fd(), 1)

	if len(*responses) != 1 {
		t.Fatalf("got %d responses, want exactly 1", len(*responses))
	}
	if (*responses)[0].Completion != pldm.Error {
		t.Fatalf("completion = %v, want Error", (*responses)[0].Completion)
	}
	if len(dev.Chunks) != 0 {
		t.Fatalf("got %d chunks after timeout fired first, want 0", len(dev.Chunks))
	}
}

// A watchdog fire that arrives after a session has already completed must
// be a silent no-op: completion drops the timer, so the fire never reaches
// onWatchdog (which would also return early on the response latch).
func TestSession_LateWatchdogAfterCompletionIsNoop(t *testing.T) {
	source := newMemSource(t, make([]byte, 16))
	dev := xdmatest.New()
	req := baseRequest(16)

	s, r, responses := newSession(t, req, source, dev)
	r.Fire(dev.Fd(), 1)
	if s.State() != Completed {
		t.Fatalf("state = %v, want Completed", s.State())
	}

	r.FireTimer(0)

	if len(*responses) != 1 {
		t.Fatalf("got %d responses after late watchdog, want exactly 1", len(*responses))
	}
	if s.State() != Completed {
		t.Fatalf("state changed to %v after late watchdog", s.State())
	}
}

// Boundary: a request whose length is exactly MinChunk is a single chunk.
func TestSession_ExactlyMinChunk(t *testing.T) {
	source := newMemSource(t, make([]byte, pldm.MinChunk))
	dev := xdmatest.New()
	req := baseRequest(pldm.MinChunk)

	s, r, responses := newSession(t, req, source, dev)
	r.Fire(dev.Fd(), 1)

	if s.State() != Completed || len(*responses) != 1 {
		t.Fatalf("state=%v responses=%d, want Completed/1", s.State(), len(*responses))
	}
	if len(dev.Chunks) != 1 || dev.Chunks[0].Length != pldm.MinChunk {
		t.Fatalf("chunks = %+v, want single MinChunk-sized chunk", dev.Chunks)
	}
}

// Boundary: a request whose length is exactly MaxChunk+1 requires two
// chunks, not one oversized chunk.
func TestSession_MaxChunkPlusOneSplitsIntoTwo(t *testing.T) {
	orig := pldm.MaxChunk
	pldm.MaxChunk = 16
	defer func() { pldm.MaxChunk = orig }()

	total := uint32(17)
	source := newMemSource(t, make([]byte, total))
	dev := xdmatest.New()
	req := baseRequest(total)

	s, r, _ := newSession(t, req, source, dev)
	for s.State() != Completed && s.State() != Failed {
		r.Fire(dev.Fd(), 1)
	}

	if s.State() != Completed {
		t.Fatalf("state = %v, want Completed", s.State())
	}
	if len(dev.Chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(dev.Chunks))
	}
	if dev.Chunks[0].Length != 16 || dev.Chunks[1].Length != 1 {
		t.Fatalf("chunk lengths = %d, %d, want 16, 1", dev.Chunks[0].Length, dev.Chunks[1].Length)
	}
}

// A device that fails to map is a resource-unavailable failure surfaced
// with zero readiness registrations ever made.
func TestSession_MapFailureNeverRegistersIO(t *testing.T) {
	source := newMemSource(t, make([]byte, 32))
	dev := xdmatest.New()
	dev.FailMap = true
	req := baseRequest(32)

	s, r, responses := newSession(t, req, source, dev)

	if s.State() != Failed {
		t.Fatalf("state = %v, want Failed", s.State())
	}
	if len(*responses) != 1 || (*responses)[0].Completion != pldm.Error {
		t.Fatalf("responses = %+v, want single Error response", *responses)
	}
	if r.ActiveIO() != 0 || r.ActiveTimers() != 0 {
		t.Fatalf("resources registered despite map failure")
	}
	if !source.closed {
		t.Fatalf("source not closed after map failure")
	}
}

// Cancel suppresses the response entirely and releases resources.
func TestSession_CancelSuppressesResponse(t *testing.T) {
	source := newMemSource(t, make([]byte, 32))
	dev := xdmatest.New()
	req := baseRequest(32)

	s, r, responses := newSession(t, req, source, dev)
	s.Cancel()

	if s.State() != TimedOut {
		t.Fatalf("state = %v, want TimedOut", s.State())
	}
	if len(*responses) != 0 {
		t.Fatalf("got %d responses after cancel, want 0", len(*responses))
	}
	if r.ActiveIO() != 0 || r.ActiveTimers() != 0 {
		t.Fatalf("resources not released after cancel")
	}
}

// A watchdog <= 0 (config.NoTimeout) leaves the session unbounded: no timer is
// ever armed, so an in-flight session cannot be terminated by a fired
// watchdog it never registered.
func TestSession_ZeroWatchdogArmsNoTimer(t *testing.T) {
	source := newMemSource(t, make([]byte, 32))
	dev := xdmatest.New()
	req := baseRequest(32)

	r := reactortest.New()
	var responses []pldm.Response
	s := New(req, source, func() (xdma.Interface, error) { return dev, nil }, 0, 0,
		func(resp pldm.Response, ok bool) {
			if ok {
				responses = append(responses, resp)
			}
		})
	s.Start(r)

	if s.State() != Armed {
		t.Fatalf("state = %v, want Armed", s.State())
	}
	if r.ActiveTimers() != 0 {
		t.Fatalf("ActiveTimers = %d, want 0 with watchdog disabled", r.ActiveTimers())
	}

	r.Fire(dev.Fd(), 1)

	if s.State() != Completed || len(responses) != 1 {
		t.Fatalf("state=%v responses=%v, want Completed with 1 response", s.State(), responses)
	}
}
