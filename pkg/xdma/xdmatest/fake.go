// Copyright 2018-2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package xdmatest provides a fake xdma.Interface for pkg/transfer and
// pkg/fileio tests, in the style of the teacher's fakeMemory helper
// (u-bmc/pkg/hardware/aspeed/scu_test.go).
package xdmatest

import (
	"errors"

	"github.com/baemyung/ibm-pldm/pkg/pldm"
	"github.com/baemyung/ibm-pldm/pkg/xdma"
)

// Chunk records one SubmitChunk call observed by the fake device.
type Chunk struct {
	FileOffset  int64
	Length      uint32
	HostAddress uint64
	Direction   pldm.Direction
}

// Device is a fake xdma.Interface. Configure FailMap/FailAt/ShortAt to
// exercise the error paths in spec.md §8 (S3, S4).
type Device struct {
	FailMap bool
	FailAt  int // 1-based chunk index that SubmitChunk should fail on, 0 = never
	ShortAt int // 1-based chunk index that should report one byte short, 0 = never

	Chunks []Chunk
	mem    int
	fd     int
	NextFd int
}

var ErrFakeMap = errors.New("xdmatest: forced map failure")
var ErrFakeIO = errors.New("xdmatest: forced io failure")

func New() *Device {
	return &Device{}
}

func (d *Device) Fd() int {
	if d.fd == 0 {
		d.fd = 100 + d.NextFd
	}
	return d.fd
}

func (d *Device) Map(pageAlignedLength int) error {
	if d.FailMap {
		return ErrFakeMap
	}
	d.mem = pageAlignedLength
	return nil
}

func (d *Device) SubmitChunk(source xdma.SourceFile, fileOffset int64, chunkLength uint32, hostAddress uint64, dir pldm.Direction) (int, error) {
	d.Chunks = append(d.Chunks, Chunk{FileOffset: fileOffset, Length: chunkLength, HostAddress: hostAddress, Direction: dir})
	if d.FailAt != 0 && len(d.Chunks) == d.FailAt {
		return 0, ErrFakeIO
	}

	buf := make([]byte, chunkLength)
	n := int(chunkLength)
	switch dir {
	case pldm.ToHost:
		var err error
		n, err = source.ReadAt(buf, fileOffset)
		if err != nil && n == 0 {
			return 0, err
		}
	case pldm.FromHost:
		if _, err := source.WriteAt(buf, fileOffset); err != nil {
			return 0, err
		}
	}
	if d.ShortAt != 0 && len(d.Chunks) == d.ShortAt {
		n--
	}
	return n, nil
}

func (d *Device) Readiness(events uint32) xdma.Readiness {
	return xdma.Readiness{Readable: events&1 != 0, Writable: events&2 != 0}
}

func (d *Device) Close() error {
	return nil
}

var _ xdma.Interface = (*Device)(nil)
