// Copyright 2018-2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package xdma is a thin typed wrapper over the Aspeed DMA character
// device (spec.md §4.1, C1). It owns exactly one open device fd and one
// mapped bounce buffer, and knows nothing about PLDM, sessions, or the
// reactor — those live in pkg/transfer.
package xdma

import (
	"errors"
	"fmt"
	"os"

	"github.com/baemyung/ibm-pldm/pkg/pldm"
	"golang.org/x/sys/unix"
)

// ErrDeviceUnavailable is returned by Open when the character device
// cannot be opened.
var ErrDeviceUnavailable = errors.New("xdma: device unavailable")

// ErrMapFailed is returned by Map when the mmap syscall fails.
var ErrMapFailed = errors.New("xdma: mmap failed")

// Readiness reports which half of a chunk transfer became ready.
type Readiness struct {
	Readable bool // downstream completion (from_host)
	Writable bool // upstream completion (to_host, see xdmaOp.upstream)
}

// SourceFile is the capability SubmitChunk needs from the BMC-side file
// named by a TransferRequest's file_handle. Both *os.File and afero's
// File type satisfy it, so pkg/fileio can hand SubmitChunk a real file
// in production and an afero.MemMapFs file in tests.
type SourceFile interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
}

// Device is the DMA character device wrapper. Its zero value is not
// usable; construct with Open.
type Device struct {
	f       *os.File
	mem     []byte
	pageLen int
}

// Open opens the DMA character device in non-blocking read/write mode,
// per spec.md §4.1 and §6.
func Open(path string) (*Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	return &Device{f: f}, nil
}

// Fd returns the underlying device file descriptor, for reactor
// readiness registration.
func (d *Device) Fd() int {
	return int(d.f.Fd())
}

// PageAlignedLength returns the ceiling of length to a page multiple,
// adding one extra page when length is not itself a multiple, per
// spec.md §4.1 and testable property 7.
func PageAlignedLength(length uint32) int {
	pageSize := os.Getpagesize()
	numPages := int(length) / pageSize
	aligned := numPages * pageSize
	if int(length) > aligned {
		aligned += pageSize
	}
	return aligned
}

// Map maps a shared read/write region at the device's offset 0, sized to
// pageAlignedLength bytes (spec.md §4.1).
func (d *Device) Map(pageAlignedLength int) error {
	mem, err := unix.Mmap(d.Fd(), 0, pageAlignedLength, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMapFailed, err)
	}
	d.mem = mem
	d.pageLen = pageAlignedLength
	return nil
}

// SubmitChunk issues one DMA operation between source at fileOffset and
// hostAddress, per spec.md §4.1. chunkLength must satisfy
// MinChunk <= chunkLength <= MaxChunk; callers (pkg/transfer) are
// responsible for that invariant, since the tail chunk of a transfer may
// legitimately be shorter than MinChunk (spec.md §9 Open Question #1) —
// this method only enforces the upper bound, which is a hard driver
// limit.
func (d *Device) SubmitChunk(source SourceFile, fileOffset int64, chunkLength uint32, hostAddress uint64, dir pldm.Direction) (int, error) {
	if chunkLength > pldm.MaxChunk {
		return 0, fmt.Errorf("xdma: chunk length %d exceeds MaxChunk %d", chunkLength, pldm.MaxChunk)
	}
	if int(chunkLength) > len(d.mem) {
		return 0, fmt.Errorf("xdma: chunk length %d exceeds mapped buffer %d", chunkLength, len(d.mem))
	}

	buf := d.mem[:chunkLength]
	switch dir {
	case pldm.ToHost:
		n, err := source.ReadAt(buf, fileOffset)
		if err != nil && n == 0 {
			return 0, fmt.Errorf("xdma: read source file: %w", err)
		}
		if err := d.kick(uint32(n), hostAddress, dir); err != nil {
			return 0, err
		}
		return n, nil
	case pldm.FromHost:
		if err := d.kick(chunkLength, hostAddress, dir); err != nil {
			return 0, err
		}
		n, err := source.WriteAt(buf, fileOffset)
		if err != nil {
			return 0, fmt.Errorf("xdma: write source file: %w", err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("xdma: unknown direction %v", dir)
	}
}

// kick asks the driver to move chunkLength bytes between the mapped
// buffer and hostAddress. The real Aspeed driver takes this via an
// ioctl/write on the device fd; that call is confined to this one
// method. Tests do not reach it: they substitute xdmatest.Device for the
// whole xdma.Interface.
func (d *Device) kick(chunkLength uint32, hostAddress uint64, dir pldm.Direction) error {
	req := xdmaOp{length: chunkLength, hostAddress: hostAddress, upstream: dir == pldm.ToHost}
	_, err := d.f.Write(req.encode())
	if err != nil {
		return fmt.Errorf("xdma: kick: %w", err)
	}
	return nil
}

// xdmaOp is the fixed-layout descriptor the Aspeed driver expects to
// find written to the device fd to start one DMA operation.
type xdmaOp struct {
	length      uint32
	hostAddress uint64
	upstream    bool
}

func (o xdmaOp) encode() []byte {
	b := make([]byte, 13)
	le := func(v uint64, n int, off int) {
		for i := 0; i < n; i++ {
			b[off+i] = byte(v >> (8 * i))
		}
	}
	le(uint64(o.length), 4, 0)
	le(o.hostAddress, 8, 4)
	if o.upstream {
		b[12] = 1
	}
	return b
}

// Readiness decodes the epoll events mask the reactor reported for Fd();
// it makes no system call of its own. This method
// exists to let pkg/transfer ask "why did we wake up" without embedding
// epoll details.
func (d *Device) Readiness(events uint32) Readiness {
	return Readiness{
		Readable: events&unix.EPOLLIN != 0,
		Writable: events&unix.EPOLLOUT != 0,
	}
}

// Close releases the mapping and the device fd. It is idempotent and
// safe to call on a Device that never successfully mapped.
func (d *Device) Close() error {
	var err error
	if d.mem != nil {
		if e := unix.Munmap(d.mem); e != nil {
			err = e
		}
		d.mem = nil
	}
	if d.f != nil {
		if e := d.f.Close(); e != nil && err == nil {
			err = e
		}
		d.f = nil
	}
	return err
}
