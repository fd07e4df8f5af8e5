// Copyright 2018-2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package reactortest provides a deterministic fake reactor.Binding so
// pkg/transfer can be tested without a real epoll instance: the test
// drives readiness and timer firing explicitly instead of waiting on
// real I/O.
package reactortest

import (
	"time"

	"github.com/baemyung/ibm-pldm/pkg/reactor"
)

type ioReg struct {
	fd      int
	cb      func(events uint32)
	dropped bool
}

type timerReg struct {
	cb      func()
	dropped bool
}

// Reactor is a fake reactor.Binding. Fire and FireTimer let a test act
// as the epoll loop.
type Reactor struct {
	io     map[int]*ioReg
	timers []*timerReg
}

func New() *Reactor {
	return &Reactor{io: make(map[int]*ioReg)}
}

func (r *Reactor) RegisterIO(fd int, events reactor.IOEvents, cb func(events uint32)) (reactor.Handle, error) {
	reg := &ioReg{fd: fd, cb: cb}
	r.io[fd] = reg
	return &ioHandle{r: r, reg: reg}, nil
}

func (r *Reactor) TimerAt(deadline time.Time, interval time.Duration, cb func()) (reactor.Handle, error) {
	reg := &timerReg{cb: cb}
	r.timers = append(r.timers, reg)
	return &timerHandle{reg: reg}, nil
}

// Fire invokes the callback registered for fd, as if epoll reported
// events for it. It is a no-op if the registration was dropped.
func (r *Reactor) Fire(fd int, events uint32) {
	if reg, ok := r.io[fd]; ok && !reg.dropped {
		reg.cb(events)
	}
}

// FireTimer invokes the i-th still-armed timer callback registered so
// far, simulating a watchdog re-check firing.
func (r *Reactor) FireTimer(i int) {
	if i < len(r.timers) && !r.timers[i].dropped {
		r.timers[i].cb()
	}
}

// ActiveIO reports how many I/O registrations have not been dropped —
// used to assert the descriptor-leak property (spec.md §8, property 2).
func (r *Reactor) ActiveIO() int {
	n := 0
	for _, reg := range r.io {
		if !reg.dropped {
			n++
		}
	}
	return n
}

// ActiveTimers reports how many timers have not been dropped.
func (r *Reactor) ActiveTimers() int {
	n := 0
	for _, t := range r.timers {
		if !t.dropped {
			n++
		}
	}
	return n
}

type ioHandle struct {
	r   *Reactor
	reg *ioReg
}

func (h *ioHandle) Drop() {
	h.reg.dropped = true
	delete(h.r.io, h.reg.fd)
}

type timerHandle struct {
	reg *timerReg
}

func (h *timerHandle) Drop() {
	h.reg.dropped = true
}
