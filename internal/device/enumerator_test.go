package device

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// fakeHost builds a /dev + /sys tree under a temp dir with one ttyUSB0
// device backed by the given USB attributes.
type fakeHost struct {
	devRoot string
	sysRoot string
}

func newFakeHost(t *testing.T) fakeHost {
	t.Helper()
	root := t.TempDir()
	h := fakeHost{
		devRoot: filepath.Join(root, "dev"),
		sysRoot: filepath.Join(root, "sys"),
	}
	if err := os.MkdirAll(h.devRoot, 0o755); err != nil {
		t.Fatalf("creating fake /dev: %v", err)
	}
	return h
}

func (h fakeHost) addTTY(t *testing.T, name, vendorID, productID, product string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(h.devRoot, name), nil, 0o600); err != nil {
		t.Fatalf("creating fake device node: %v", err)
	}
	if vendorID == "" {
		return
	}
	// The tty "device" dir points one level below the USB device dir, so
	// the enumerator must walk up to find idVendor.
	usbDir := filepath.Join(h.sysRoot, "class", "tty", name)
	ifaceDir := filepath.Join(usbDir, "device")
	if err := os.MkdirAll(ifaceDir, 0o755); err != nil {
		t.Fatalf("creating fake sysfs: %v", err)
	}
	writeAttr := func(name, value string) {
		if err := os.WriteFile(filepath.Join(usbDir, name), []byte(value+"\n"), 0o600); err != nil {
			t.Fatalf("writing sysfs attr %s: %v", name, err)
		}
	}
	writeAttr("idVendor", vendorID)
	writeAttr("idProduct", productID)
	writeAttr("product", product)
	writeAttr("busnum", "1")
	writeAttr("devpath", "4")
}

func (h fakeHost) addByIDLink(t *testing.T, linkName, target string) {
	t.Helper()
	byID := filepath.Join(h.devRoot, "serial", "by-id")
	if err := os.MkdirAll(byID, 0o755); err != nil {
		t.Fatalf("creating by-id dir: %v", err)
	}
	if err := os.Symlink(target, filepath.Join(byID, linkName)); err != nil {
		t.Fatalf("creating by-id symlink: %v", err)
	}
}

func TestEnumerate_EmptyIsNotAnError(t *testing.T) {
	h := newFakeHost(t)
	e := &Enumerator{DevRoot: h.devRoot, SysRoot: h.sysRoot}

	devices, err := e.Enumerate(context.Background())
	if err != nil {
		t.Fatalf("Enumerate() error = %v, want nil", err)
	}
	if len(devices) != 0 {
		t.Errorf("len(devices) = %d, want 0", len(devices))
	}
}

func TestEnumerate_ScanUnavailable(t *testing.T) {
	e := &Enumerator{DevRoot: "/nonexistent-dev-root"}

	_, err := e.Enumerate(context.Background())
	if !errors.Is(err, ErrScanUnavailable) {
		t.Errorf("Enumerate() error = %v, want ErrScanUnavailable", err)
	}
}

func TestEnumerate_ReadsUSBAttrs(t *testing.T) {
	h := newFakeHost(t)
	h.addTTY(t, "ttyUSB0", "10c4", "ea60", "Sonoff Zigbee 3.0 USB Dongle Plus")
	e := &Enumerator{DevRoot: h.devRoot, SysRoot: h.sysRoot}

	devices, err := e.Enumerate(context.Background())
	if err != nil {
		t.Fatalf("Enumerate() error = %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("len(devices) = %d, want 1", len(devices))
	}

	d := devices[0]
	if d.VendorID != "10c4" || d.ProductID != "ea60" {
		t.Errorf("USB ID = %s:%s, want 10c4:ea60", d.VendorID, d.ProductID)
	}
	if d.Serial == "" {
		t.Error("Serial is empty, want product string")
	}
	if d.USBID() != "10c4:ea60" {
		t.Errorf("USBID() = %q, want 10c4:ea60", d.USBID())
	}
}

func TestEnumerate_StableOrder(t *testing.T) {
	h := newFakeHost(t)
	h.addTTY(t, "ttyUSB1", "", "", "")
	h.addTTY(t, "ttyACM0", "", "", "")
	h.addTTY(t, "ttyUSB0", "", "", "")
	e := &Enumerator{DevRoot: h.devRoot, SysRoot: h.sysRoot}

	devices, err := e.Enumerate(context.Background())
	if err != nil {
		t.Fatalf("Enumerate() error = %v", err)
	}

	want := []string{
		filepath.Join(h.devRoot, "ttyACM0"),
		filepath.Join(h.devRoot, "ttyUSB0"),
		filepath.Join(h.devRoot, "ttyUSB1"),
	}
	if len(devices) != len(want) {
		t.Fatalf("len(devices) = %d, want %d", len(devices), len(want))
	}
	for i, w := range want {
		if devices[i].Path != w {
			t.Errorf("devices[%d].Path = %q, want %q", i, devices[i].Path, w)
		}
	}
}

func TestEnumerate_ByIDAlias(t *testing.T) {
	h := newFakeHost(t)
	h.addTTY(t, "ttyUSB0", "1a86", "55d4", "")
	h.addByIDLink(t, "usb-ITEAD_SONOFF_ZBDongle-E-if00-port0", "../../ttyUSB0")
	e := &Enumerator{DevRoot: h.devRoot, SysRoot: h.sysRoot}

	devices, err := e.Enumerate(context.Background())
	if err != nil {
		t.Fatalf("Enumerate() error = %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("len(devices) = %d, want 1 (alias must not duplicate)", len(devices))
	}

	d := devices[0]
	if d.ByIDPath == "" {
		t.Fatal("ByIDPath is empty, want the by-id symlink path")
	}
	if d.PreferredPath() != d.ByIDPath {
		t.Errorf("PreferredPath() = %q, want by-id alias %q", d.PreferredPath(), d.ByIDPath)
	}
}

func TestEnumerate_ZigbeeAliasPreferred(t *testing.T) {
	h := newFakeHost(t)
	h.addTTY(t, "ttyACM0", "0451", "16a8", "")
	h.addByIDLink(t, "usb-TI_CC2531-if00", "../../ttyACM0")
	if err := os.Symlink("ttyACM0", filepath.Join(h.devRoot, "zigbee")); err != nil {
		t.Fatalf("creating zigbee alias: %v", err)
	}
	e := &Enumerator{DevRoot: h.devRoot, SysRoot: h.sysRoot}

	devices, err := e.Enumerate(context.Background())
	if err != nil {
		t.Fatalf("Enumerate() error = %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("len(devices) = %d, want 1", len(devices))
	}
	want := filepath.Join(h.devRoot, "zigbee")
	if devices[0].ByIDPath != want {
		t.Errorf("ByIDPath = %q, want udev alias %q to win over by-id", devices[0].ByIDPath, want)
	}
}

func TestEnumerate_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := &Enumerator{DevRoot: t.TempDir()}
	if _, err := e.Enumerate(ctx); err == nil {
		t.Error("Enumerate() with cancelled context error = nil, want context error")
	}
}
