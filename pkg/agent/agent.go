// Copyright 2018-2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package agent is the boot sequence for the PLDM OEM file-transfer
// agent, in the shape of u-bmc/pkg/bmc/system.go's Startup/
// StartupWithConfig: print a banner, wire subsystems in dependency
// order, start the metrics and debug-RPC listeners, and run the reactor
// loop on its own goroutine.
package agent

import (
	"fmt"
	"net"
	"net/http"

	"github.com/baemyung/ibm-pldm/pkg/config"
	"github.com/baemyung/ibm-pldm/pkg/dbusbridge"
	"github.com/baemyung/ibm-pldm/pkg/fileio"
	"github.com/baemyung/ibm-pldm/pkg/hostnotify"
	"github.com/baemyung/ibm-pldm/pkg/logger"
	"github.com/baemyung/ibm-pldm/pkg/metric"
	"github.com/baemyung/ibm-pldm/pkg/pldm"
	"github.com/baemyung/ibm-pldm/pkg/reactor"
	"github.com/baemyung/ibm-pldm/pkg/statusrpc"
	"github.com/baemyung/ibm-pldm/pkg/transport"
	"github.com/baemyung/ibm-pldm/pkg/xdma"
	"github.com/godbus/dbus/v5"
	"github.com/spf13/afero"
)

var log = logger.LogContainer.GetSimpleLogger()

const banner = `
 ____  _     ____  __  __       ____   ____
|  _ \| |   |  _ \|  \/  |     / __ \ / ___\
| |_) | |   | | | | |\/| |    | |  | | |
|  __/| |___| |_| | |  | |    | |__| | |___
|_|   |_____|____/|_|  |_|     \____/ \____|
`

// Deps bundles the collaborators Startup cannot construct itself: the
// MCTP endpoint and codec are an out-of-scope requester library
// (spec.md §1); DBusConn is nil when a deployment has no message bus to
// bridge (SUPPLEMENTED FEATURES is still exercised whenever it's set).
type Deps struct {
	Endpoint transport.Endpoint
	Decoder  transport.Decoder
	PathFor  fileio.PathForHandle
	DBusConn *dbus.Conn
}

// Agent holds the running subsystems, for tests and for callers of
// StartupWithConfig. Bridge is nil when Deps.DBusConn is nil.
type Agent struct {
	Reactor  *reactor.Reactor
	Handler  *fileio.Handler
	Notifier *hostnotify.Notifier
	Bridge   *dbusbridge.Bridge
	Loop     *transport.Loop
}

// Startup wires the agent with config.DefaultConfig.
func Startup(d Deps) (*Agent, error) {
	return StartupWithConfig(d, config.DefaultConfig)
}

// StartupWithConfig wires every subsystem and starts the reactor's
// event loop on its own goroutine. It returns once every listener is up;
// a fatal reactor error surfaces asynchronously through log, not through
// a returned channel, since the reactor loop itself has nothing further
// to report once running (mirrors u-bmc's asyncStartup only in shape,
// not in its TLS/ACME/time-sync concerns, which are Non-goals here).
func StartupWithConfig(d Deps, conf *config.Config) (*Agent, error) {
	fmt.Print("\n" + banner)
	fmt.Printf("Starting pldm-agent version %s\n\n", conf.Version.Version)

	systemVersion := metric.Counter(metric.MetricOpts{
		Namespace: "pldm",
		Subsystem: "agent",
		Name:      "version",
	}, []string{`version="` + conf.Version.Version + `"`})
	systemVersion.Inc()

	r, err := reactor.New()
	if err != nil {
		return nil, fmt.Errorf("agent: reactor.New: %w", err)
	}

	log.Infow("starting file I/O dispatcher")
	handler := fileio.New(afero.NewOsFs(), r, func() (xdma.Interface, error) {
		return xdma.Open(conf.XdmaDevicePath)
	}, d.PathFor)
	if conf.NoTimeout {
		log.Warnw("session watchdog disabled by configuration")
		handler.SetWatchdog(0, 0)
	} else {
		handler.SetWatchdog(conf.WatchdogDuration, conf.WatchdogInterval)
	}

	log.Infow("attaching transport loop")
	loop := transport.NewLoop(d.Endpoint, d.Decoder, handler)
	if _, err := loop.Attach(r); err != nil {
		return nil, fmt.Errorf("agent: transport.Attach: %w", err)
	}

	log.Infow("starting host notifier")
	notifier := hostnotify.New(d.Endpoint, r, pldm.NewInstanceIDAllocator())

	var bridge *dbusbridge.Bridge
	if d.DBusConn != nil {
		log.Infow("starting D-Bus bridge")
		b, err := dbusbridge.New(d.DBusConn, notifier)
		if err != nil {
			return nil, fmt.Errorf("agent: dbusbridge.New: %w", err)
		}
		if err := b.Start(r); err != nil {
			return nil, fmt.Errorf("agent: dbusbridge.Start: %w", err)
		}
		bridge = b
	} else {
		log.Warnw("no D-Bus connection supplied, resource dump/CSR/license notifications are disabled")
	}

	log.Infow("starting metrics listener", "addr", conf.MetricsAddr)
	mux := http.NewServeMux()
	metric.StartMetrics(mux)
	go func() {
		if err := http.ListenAndServe(conf.MetricsAddr, mux); err != nil {
			log.Errorw("agent: metrics listener exited", "err", err)
		}
	}()

	log.Infow("starting status RPC listener", "addr", conf.StatusRPCAddr)
	l, err := net.Listen("tcp", conf.StatusRPCAddr)
	if err != nil {
		return nil, fmt.Errorf("agent: status rpc listen: %w", err)
	}
	statusrpc.Start(l, handler, notifier, conf.Version)

	go func() {
		if err := r.Run(); err != nil {
			log.Errorw("agent: reactor exited", "err", err)
		}
	}()

	return &Agent{Reactor: r, Handler: handler, Notifier: notifier, Bridge: bridge, Loop: loop}, nil
}
