// Copyright 2018-2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package reactor

import "time"

// Binding is the capability pkg/transfer depends on (spec.md §4.3). It
// is satisfied by *Reactor and by the deterministic fake in
// reactor/reactortest, so TransferSession tests never need a real epoll
// instance.
type Binding interface {
	RegisterIO(fd int, events IOEvents, cb func(events uint32)) (Handle, error)
	TimerAt(deadline time.Time, interval time.Duration, cb func()) (Handle, error)
}

var _ Binding = (*Reactor)(nil)
