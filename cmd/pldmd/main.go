// Copyright 2018-2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"flag"

	"github.com/baemyung/ibm-pldm/pkg/agent"
	"github.com/baemyung/ibm-pldm/pkg/config"
	"github.com/baemyung/ibm-pldm/pkg/fileio"
	"github.com/baemyung/ibm-pldm/pkg/logger"
	"github.com/baemyung/ibm-pldm/pkg/pldm"
	"github.com/baemyung/ibm-pldm/pkg/transport"
	"github.com/godbus/dbus/v5"
)

var log = logger.LogContainer.GetSimpleLogger()

var (
	xdmaDevicePath = flag.String("xdma_device", config.XdmaDevicePath, "DMA character device node")
	metricsAddr    = flag.String("metrics_addr", config.MetricsListenAddr, "listen address for /metrics")
	statusRPCAddr  = flag.String("status_rpc_addr", config.StatusRPCAddr, "listen address for the debug status gRPC service")
	version        = flag.String("version", "dev", "build version reported by GetVersion")
	gitHash        = flag.String("git_hash", "", "build git hash reported by GetVersion")
)

// unwiredEndpoint and unwiredDecoder are placeholders for the MCTP
// socket and PLDM codec this agent does not implement (spec.md §1: "an
// out-of-scope requester library"). A deployment supplies its own
// transport.Endpoint/Decoder pair in place of these; Fd returning -1
// makes agent.StartupWithConfig fail fast at epoll registration instead
// of silently running with no way to ever receive a frame.
type unwiredEndpoint struct{}

func (unwiredEndpoint) Fd() int { return -1 }
func (unwiredEndpoint) Recv() (transport.Frame, error) {
	return transport.Frame{}, errors.New("pldmd: no MCTP transport wired up")
}
func (unwiredEndpoint) Reply(int, []byte) error {
	return errors.New("pldmd: no MCTP transport wired up")
}
func (unwiredEndpoint) Send(tid uint8, cmd pldm.CommandCode, instanceID uint8, payload []byte) error {
	return errors.New("pldmd: no MCTP transport wired up")
}

type unwiredDecoder struct{}

func (unwiredDecoder) Decode(transport.Frame) (pldm.TransferRequest, error) {
	return pldm.TransferRequest{}, errors.New("pldmd: no PLDM codec wired up")
}

func main() {
	flag.Parse()

	conf := *config.DefaultConfig
	conf.XdmaDevicePath = *xdmaDevicePath
	conf.MetricsAddr = *metricsAddr
	conf.StatusRPCAddr = *statusRPCAddr
	conf.Version = config.Version{Version: *version, GitHash: *gitHash}

	dbusConn, err := dbus.SystemBus()
	if err != nil {
		log.Warnw("pldmd: no system D-Bus connection, resource dump/CSR/license notifications are disabled", "err", err)
		dbusConn = nil
	}

	pathFor := func(handle uint32) (string, error) {
		return "", errors.New("pldmd: file-handle resolution requires the out-of-scope file table/PDR repository")
	}

	a, err := agent.StartupWithConfig(agent.Deps{
		Endpoint: unwiredEndpoint{},
		Decoder:  unwiredDecoder{},
		PathFor:  fileio.PathForHandle(pathFor),
		DBusConn: dbusConn,
	}, &conf)
	if err != nil {
		log.Fatalw("pldmd: startup failed", "err", err)
	}

	log.Infow("pldmd running", "active_sessions", a.Handler.ActiveSessions())
	select {}
}
