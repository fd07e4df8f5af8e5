// Copyright 2018-2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config carries the constants with compatibility impact
// (spec.md §6) and the small set of CLI-overridable knobs this agent
// exposes, in the shape of the teacher's own config package.
package config

import "time"

// Version identifies the running build, mirroring the teacher's
// config.Version.
type Version struct {
	Version string
	GitHash string
}

const (
	// XdmaDevicePath is the DMA character device node (spec.md §6).
	XdmaDevicePath = "/dev/aspeed-xdma"

	// MinChunkBytes is the driver's minimum logical transfer size.
	MinChunkBytes = 16

	// WatchdogDuration bounds an entire TransferSession (spec.md §4.2).
	WatchdogDuration = 20 * time.Second

	// WatchdogInterval is the re-check interval at which the reactor
	// tests whether the response latch has already been set.
	WatchdogInterval = 1 * time.Second

	// HypervisorTID is the terminus id of the hypervisor endpoint.
	HypervisorTID = 208

	// HeartbeatDelta bounds how stale a host heartbeat may be before the
	// hypervisor endpoint is considered unresponsive.
	HeartbeatDelta = 10 * time.Second

	// MetricsListenAddr and StatusRPCAddr are the default bind addresses
	// for the /metrics and debug gRPC endpoints respectively.
	MetricsListenAddr = ":9110"
	StatusRPCAddr     = ":9111"

	// InventoryPath is the persisted, opaque-to-this-core inventory
	// object store (spec.md §6).
	InventoryPath = "/var/lib/pldm/inventory"
)

// Config bundles the knobs Startup needs, mirroring config.Config's
// shape in the teacher.
type Config struct {
	Version          Version
	XdmaDevicePath   string
	WatchdogDuration time.Duration
	WatchdogInterval time.Duration
	MetricsAddr      string
	StatusRPCAddr    string
	InventoryPath    string
	NoTimeout        bool
}

// DefaultConfig mirrors config.DefaultConfig in the teacher.
var DefaultConfig = &Config{
	XdmaDevicePath:   XdmaDevicePath,
	WatchdogDuration: WatchdogDuration,
	WatchdogInterval: WatchdogInterval,
	MetricsAddr:      MetricsListenAddr,
	StatusRPCAddr:    StatusRPCAddr,
	InventoryPath:    InventoryPath,
}
