package device

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Enumerator scans the host for serial devices that could be Zigbee
// coordinator adapters. It reads /dev for candidate character devices and
// the sysfs USB ancestry for vendor/product identification.
//
// DevRoot and SysRoot exist so tests can point the scanner at a fake tree;
// zero values mean the real /dev and /sys.
type Enumerator struct {
	DevRoot string
	SysRoot string
}

// serialPrefixes are the device name families considered candidates.
// USB-serial bridges appear as ttyUSB, CDC-ACM adapters as ttyACM.
var serialPrefixes = []string{"ttyUSB", "ttyACM"}

// zigbeeAlias is the udev-managed stable symlink installed by the packaged
// rules. When present it is surfaced as the preferred selection alias.
const zigbeeAlias = "zigbee"

// sysAncestryDepth bounds the walk up the sysfs tree from the tty device
// node to the USB device that carries idVendor/idProduct.
const sysAncestryDepth = 4

// Enumerate scans for candidate serial devices.
//
// An empty result is valid and not an error: it means the scan worked and
// found nothing. ErrScanUnavailable (wrapped, with the offending path) is
// returned only when the scanning mechanism itself is inaccessible.
//
// Descriptors are returned sorted by device path so downstream selection
// among equally-scored matches is deterministic.
func (e *Enumerator) Enumerate(ctx context.Context) ([]Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	devRoot := e.DevRoot
	if devRoot == "" {
		devRoot = "/dev"
	}

	entries, err := os.ReadDir(devRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrScanUnavailable, devRoot, err)
	}

	byPath := make(map[string]*Descriptor)
	for _, entry := range entries {
		name := entry.Name()
		if !hasSerialPrefix(name) {
			continue
		}
		d := Descriptor{Path: filepath.Join(devRoot, name)}
		e.fillUSBAttrs(&d, name)
		byPath[d.Path] = &d
	}

	e.attachStableAliases(devRoot, byPath)

	devices := make([]Descriptor, 0, len(byPath))
	for _, d := range byPath {
		devices = append(devices, *d)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Path < devices[j].Path })

	return devices, nil
}

func hasSerialPrefix(name string) bool {
	for _, p := range serialPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// fillUSBAttrs reads vendor/product/serial attributes from the sysfs USB
// ancestry of the tty device. The tty node sits under the USB interface,
// which sits under the USB device carrying the ID attributes, so we walk
// up a bounded number of levels looking for idVendor.
func (e *Enumerator) fillUSBAttrs(d *Descriptor, ttyName string) {
	sysRoot := e.SysRoot
	if sysRoot == "" {
		sysRoot = "/sys"
	}

	node := filepath.Join(sysRoot, "class", "tty", ttyName, "device")
	for i := 0; i < sysAncestryDepth; i++ {
		vendor := readSysAttr(filepath.Join(node, "idVendor"))
		if vendor == "" {
			node = filepath.Join(node, "..")
			continue
		}
		d.VendorID = strings.ToLower(vendor)
		d.ProductID = strings.ToLower(readSysAttr(filepath.Join(node, "idProduct")))
		d.BusPath = readSysAttr(filepath.Join(node, "busnum")) + "-" + readSysAttr(filepath.Join(node, "devpath"))

		serial := readSysAttr(filepath.Join(node, "serial"))
		product := readSysAttr(filepath.Join(node, "product"))
		manufacturer := readSysAttr(filepath.Join(node, "manufacturer"))
		d.Serial = strings.TrimSpace(strings.Join(nonEmpty(manufacturer, product, serial), " "))
		return
	}
}

func readSysAttr(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// attachStableAliases resolves /dev/serial/by-id symlinks and the udev
// /dev/zigbee alias onto already-discovered descriptors. A by-id link that
// resolves to a device we have not seen (e.g. a non-standard tty name) is
// added as its own descriptor so it is still listed.
func (e *Enumerator) attachStableAliases(devRoot string, byPath map[string]*Descriptor) {
	byIDDir := filepath.Join(devRoot, "serial", "by-id")
	if links, err := os.ReadDir(byIDDir); err == nil {
		for _, link := range links {
			linkPath := filepath.Join(byIDDir, link.Name())
			target, err := resolveLink(linkPath)
			if err != nil {
				continue
			}
			if d, ok := byPath[target]; ok {
				// First alias wins; by-id names are unique per device anyway.
				if d.ByIDPath == "" {
					d.ByIDPath = linkPath
				}
			} else {
				byPath[target] = &Descriptor{Path: target, ByIDPath: linkPath}
			}
		}
	}

	alias := filepath.Join(devRoot, zigbeeAlias)
	if target, err := resolveLink(alias); err == nil {
		if d, ok := byPath[target]; ok {
			// The udev alias is the preferred selection path, it overrides by-id.
			d.ByIDPath = alias
		} else {
			byPath[target] = &Descriptor{Path: target, ByIDPath: alias}
		}
	}
}

// resolveLink resolves a symlink to an absolute cleaned target path.
// A regular file resolves to itself.
func resolveLink(path string) (string, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return "", err
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return filepath.Clean(path), nil
	}
	target, err := os.Readlink(path)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(path), target)
	}
	return filepath.Clean(target), nil
}
