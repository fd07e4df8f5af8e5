// Copyright 2018-2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dbusbridge

import (
	"os"
	"testing"

	"github.com/baemyung/ibm-pldm/pkg/pldm"
	"github.com/godbus/dbus/v5"
)

type fakeNotifier struct {
	plain []struct {
		fileType   pldm.FileType
		fileHandle uint32
		length     uint32
	}
	withMeta []struct {
		fileType   pldm.FileType
		fileHandle uint32
		length     uint32
		metadata   []byte
	}
}

func (f *fakeNotifier) NewFileAvailable(fileType pldm.FileType, fileHandle, length uint32) (uint8, error) {
	f.plain = append(f.plain, struct {
		fileType   pldm.FileType
		fileHandle uint32
		length     uint32
	}{fileType, fileHandle, length})
	return uint8(len(f.plain)), nil
}

func (f *fakeNotifier) NewFileAvailableWithMeta(fileType pldm.FileType, fileHandle, length uint32, metadata []byte) (uint8, error) {
	f.withMeta = append(f.withMeta, struct {
		fileType   pldm.FileType
		fileHandle uint32
		length     uint32
		metadata   []byte
	}{fileType, fileHandle, length, metadata})
	return uint8(len(f.withMeta)), nil
}

func newTestBridge(t *testing.T, notifier Notifier) *Bridge {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	return &Bridge{notifier: notifier, wakeR: r, wakeW: w}
}

func TestHandleInterfacesAdded_ResourceDump(t *testing.T) {
	n := &fakeNotifier{}
	b := newTestBridge(t, n)

	sig := &dbus.Signal{
		Name: "org.freedesktop.DBus.ObjectManager.InterfacesAdded",
		Body: []interface{}{
			dbus.ObjectPath("/xyz/openbmc_project/dump/resource/entry/1"),
			map[string]map[string]dbus.Variant{
				dumpEntryInterface: {
					"VSPString": dbus.MakeVariant("vsp"),
					"Password":  dbus.MakeVariant("secret"),
				},
			},
		},
	}
	b.handleInterfacesAdded(sig)

	if len(b.queue) != 1 {
		t.Fatalf("got %d queued jobs, want 1", len(b.queue))
	}
	b.queue[0]()
	if len(n.withMeta) != 1 {
		t.Fatalf("got %d withMeta notifications, want 1", len(n.withMeta))
	}
	if n.withMeta[0].fileType != pldm.FileTypeResourceDump || string(n.withMeta[0].metadata) != "secret" {
		t.Fatalf("notification = %+v, want resource dump with password metadata", n.withMeta[0])
	}
}

func TestHandleInterfacesAdded_CSR(t *testing.T) {
	n := &fakeNotifier{}
	b := newTestBridge(t, n)

	sig := &dbus.Signal{
		Name: "org.freedesktop.DBus.ObjectManager.InterfacesAdded",
		Body: []interface{}{
			dbus.ObjectPath("/xyz/openbmc_project/certs/ca/1"),
			map[string]map[string]dbus.Variant{
				certAuthorityInterface: {"CSR": dbus.MakeVariant("-----BEGIN CSR-----")},
			},
		},
	}
	b.handleInterfacesAdded(sig)
	if len(b.queue) != 1 {
		t.Fatalf("got %d queued jobs, want 1", len(b.queue))
	}
	b.queue[0]()
	if len(n.withMeta) != 1 || n.withMeta[0].fileType != pldm.FileTypeCertSigning {
		t.Fatalf("notification = %+v, want CSR notification", n.withMeta)
	}
}

func TestHandlePropertiesChanged_License(t *testing.T) {
	n := &fakeNotifier{}
	b := newTestBridge(t, n)

	sig := &dbus.Signal{
		Path: licenseObjectPath,
		Name: "org.freedesktop.DBus.Properties.PropertiesChanged",
		Body: []interface{}{
			licenseInterface,
			map[string]dbus.Variant{"LicenseString": dbus.MakeVariant("LICENSE-XYZ")},
		},
	}
	b.handlePropertiesChanged(sig)
	if len(b.queue) != 1 {
		t.Fatalf("got %d queued jobs, want 1", len(b.queue))
	}
	b.queue[0]()
	if len(n.plain) != 1 || n.plain[0].fileType != pldm.FileTypeLicense {
		t.Fatalf("notification = %+v, want license notification", n.plain)
	}
}

func TestHandlePropertiesChanged_EmptyLicenseIgnored(t *testing.T) {
	n := &fakeNotifier{}
	b := newTestBridge(t, n)

	sig := &dbus.Signal{
		Path: licenseObjectPath,
		Name: "org.freedesktop.DBus.Properties.PropertiesChanged",
		Body: []interface{}{
			licenseInterface,
			map[string]dbus.Variant{"LicenseString": dbus.MakeVariant("")},
		},
	}
	b.handlePropertiesChanged(sig)
	if len(b.queue) != 0 {
		t.Fatalf("got %d queued jobs, want 0 for empty license string", len(b.queue))
	}
}

func TestEnqueueAndOnWake(t *testing.T) {
	n := &fakeNotifier{}
	b := newTestBridge(t, n)

	ran := false
	b.enqueue(func() { ran = true })
	if len(b.queue) != 1 {
		t.Fatalf("got %d queued jobs, want 1", len(b.queue))
	}

	b.onWake(0)

	if !ran {
		t.Fatalf("queued job did not run after onWake")
	}
	if len(b.queue) != 0 {
		t.Fatalf("queue not drained after onWake")
	}
}
