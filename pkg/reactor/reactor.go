// Copyright 2018-2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package reactor is the single-threaded cooperative event loop binding
// described in spec.md §4.3/§5. One Reactor owns every session's I/O
// registrations, timers, and the one-time bus attachment; all callbacks
// run on the goroutine that calls Run, never concurrently with each
// other.
package reactor

import (
	"fmt"
	"sync"
	"time"

	"github.com/baemyung/ibm-pldm/pkg/logger"
	"golang.org/x/sys/unix"
)

var log = logger.LogContainer.GetSimpleLogger()

// IOEvents mirrors the epoll bitmask a caller wants notifications for.
type IOEvents uint32

const (
	Readable IOEvents = unix.EPOLLIN
	Writable IOEvents = unix.EPOLLOUT
)

// Handle is returned by RegisterIO, TimerAt, and AttachBus. Drop removes
// the registration; it is idempotent and safe to call more than once,
// which lets pkg/transfer drop it unconditionally at every terminal
// transition without tracking whether it already did.
type Handle interface {
	Drop()
}

type ioCallback func(events uint32)

type registration struct {
	fd      int
	cb      ioCallback
	timerFd bool
}

// Reactor is a single epoll loop plus a registry of timerfd-backed
// timers. Nothing here is safe for concurrent use from two goroutines;
// only the goroutine running Run may call into the registered callbacks,
// per spec.md §5.
type Reactor struct {
	epfd int

	mu    sync.Mutex // guards regs only; Run and Register* may race from setup goroutines
	regs  map[int]*registration
	busFd int

	stopCh chan struct{}
	stopped bool
}

// New creates a Reactor with its own epoll instance.
func New() (*Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("reactor: epoll_create1: %w", err)
	}
	return &Reactor{
		epfd:   epfd,
		regs:   make(map[int]*registration),
		stopCh: make(chan struct{}),
	}, nil
}

// RegisterIO registers fd for the given events; cb is invoked on the
// reactor goroutine with the epoll revents bitmask whenever fd becomes
// ready. Per spec.md §4.2, TransferSession registers both Readable and
// Writable on the DMA fd since either can signal chunk completion
// depending on direction.
func (r *Reactor) RegisterIO(fd int, events IOEvents, cb func(events uint32)) (Handle, error) {
	ev := &unix.EpollEvent{Events: uint32(events), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		return nil, fmt.Errorf("reactor: epoll_ctl add: %w", err)
	}
	reg := &registration{fd: fd, cb: cb}
	r.mu.Lock()
	r.regs[fd] = reg
	r.mu.Unlock()
	return &ioHandle{r: r, fd: fd}, nil
}

// TimerAt arms a timerfd-backed timer that fires first at deadline, then
// every interval until dropped. The 20s/1s watchdog in spec.md §4.2 is
// exactly one such timer.
func (r *Reactor) TimerAt(deadline time.Time, interval time.Duration, cb func()) (Handle, error) {
	tfd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("reactor: timerfd_create: %w", err)
	}
	first := time.Until(deadline)
	if first < 0 {
		first = 0
	}
	spec := unix.ItimerSpec{
		Value:    unix.NsecToTimespec(first.Nanoseconds()),
		Interval: unix.NsecToTimespec(interval.Nanoseconds()),
	}
	if err := unix.TimerfdSettime(tfd, 0, &spec, nil); err != nil {
		unix.Close(tfd)
		return nil, fmt.Errorf("reactor: timerfd_settime: %w", err)
	}

	wrapped := func(events uint32) {
		buf := make([]byte, 8)
		if _, err := unix.Read(tfd, buf); err != nil {
			log.Warnf("reactor: timerfd read: %v", err)
		}
		cb()
	}
	if _, err := r.RegisterIO(tfd, Readable, wrapped); err != nil {
		unix.Close(tfd)
		return nil, err
	}
	r.mu.Lock()
	r.regs[tfd].timerFd = true
	r.mu.Unlock()
	return &ioHandle{r: r, fd: tfd}, nil
}

// AttachBus is the one-time startup hook that lets an external message
// bus implementation (pkg/dbusbridge) share this reactor's wakeups,
// rather than each session attaching it fresh (spec.md §9's guidance
// against per-session bus entanglement).
func (r *Reactor) AttachBus(fd int, cb func(events uint32)) (Handle, error) {
	r.mu.Lock()
	already := r.busFd != 0
	r.mu.Unlock()
	if already {
		return nil, fmt.Errorf("reactor: bus already attached")
	}
	h, err := r.RegisterIO(fd, Readable, cb)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.busFd = fd
	r.mu.Unlock()
	return h, nil
}

// Run drives the epoll loop until Stop is called. It is meant to be run
// on its own goroutine for the lifetime of the process.
func (r *Reactor) Run() error {
	events := make([]unix.EpollEvent, 64)
	for {
		select {
		case <-r.stopCh:
			return nil
		default:
		}

		n, err := unix.EpollWait(r.epfd, events, 250)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("reactor: epoll_wait: %w", err)
		}
		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			r.mu.Lock()
			reg, ok := r.regs[fd]
			r.mu.Unlock()
			if !ok {
				continue
			}
			reg.cb(events[i].Events)
		}
	}
}

// Stop ends Run. It does not cancel active sessions (it never calls
// pkg/transfer's Session.Cancel); Stop only tears down the loop itself.
func (r *Reactor) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()
	close(r.stopCh)
}

func (r *Reactor) drop(fd int) {
	r.mu.Lock()
	reg, ok := r.regs[fd]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.regs, fd)
	if r.busFd == fd {
		r.busFd = 0
	}
	r.mu.Unlock()
	unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if reg.timerFd {
		unix.Close(fd)
	}
}

type ioHandle struct {
	r    *Reactor
	fd   int
	once sync.Once
}

func (h *ioHandle) Drop() {
	h.once.Do(func() { h.r.drop(h.fd) })
}
