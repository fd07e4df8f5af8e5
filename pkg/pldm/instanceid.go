// Copyright 2018-2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pldm

import (
	"errors"
	"sync"
)

// ErrNoFreeInstanceID is returned when every instance id (0-31) has an
// in-flight outbound request.
var ErrNoFreeInstanceID = errors.New("pldm: no free instance id")

// InstanceIDAllocator hands out the 5-bit instance ids that pair a
// host-bound PLDM request with its response (spec.md GLOSSARY). It is
// passed explicitly to every caller rather than kept as a process-wide
// singleton, per spec.md §9's guidance against module-level mutable
// state.
type InstanceIDAllocator struct {
	mu   sync.Mutex
	used [32]bool
}

// NewInstanceIDAllocator returns an allocator with all 32 ids free.
func NewInstanceIDAllocator() *InstanceIDAllocator {
	return &InstanceIDAllocator{}
}

// Alloc reserves the lowest-numbered free instance id.
func (a *InstanceIDAllocator) Alloc() (uint8, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.used {
		if !a.used[i] {
			a.used[i] = true
			return uint8(i), nil
		}
	}
	return 0, ErrNoFreeInstanceID
}

// Free releases an instance id previously returned by Alloc.
func (a *InstanceIDAllocator) Free(id uint8) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if int(id) < len(a.used) {
		a.used[id] = false
	}
}
