// Copyright 2018-2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xdma

import "github.com/baemyung/ibm-pldm/pkg/pldm"

// Interface is the capability pkg/transfer depends on. It exists so
// tests can substitute a fake device without a real /dev/aspeed-xdma
// node, per spec.md §9's guidance to keep the DMA interface a small
// fixed capability rather than an open-ended polymorphic surface.
type Interface interface {
	Fd() int
	Map(pageAlignedLength int) error
	SubmitChunk(source SourceFile, fileOffset int64, chunkLength uint32, hostAddress uint64, dir pldm.Direction) (int, error)
	Readiness(events uint32) Readiness
	Close() error
}

var _ Interface = (*Device)(nil)
