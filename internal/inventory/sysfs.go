package inventory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sigreer/diskclean/internal/hints"
	"github.com/sigreer/diskclean/internal/logging"
)

const defaultSysBlock = "/sys/block"

// SysfsSource reads disks straight from /sys/block without spawning
// processes, for ramdisks that ship no util-linux
type SysfsSource struct {
	Root string
}

func (s *SysfsSource) Devices(ctx context.Context) ([]hints.Device, error) {
	root := s.Root
	if root == "" {
		root = defaultSysBlock
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", root, err)
	}

	var devices []hints.Device
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		if isVirtualDisk(name) {
			continue
		}
		if d, ok := readSysfsDevice(filepath.Join(root, name), name); ok {
			devices = append(devices, d)
		}
	}
	return devices, nil
}

// readSysfsDevice reports false for block devices without a backing
// device (loop, dm, md)
func readSysfsDevice(blockPath, name string) (hints.Device, bool) {
	devicePath := filepath.Join(blockPath, "device")
	if _, err := os.Stat(devicePath); err != nil {
		return hints.Device{}, false
	}

	d := hints.Device{
		Name:   "/dev/" + name,
		Model:  readAttr(devicePath, "model"),
		Vendor: readAttr(devicePath, "vendor"),
		Serial: readAttr(devicePath, "serial"),
	}

	// SCSI disks expose the serial in VPD page 80 after a 4-byte header
	if d.Serial == nil {
		if data, err := os.ReadFile(filepath.Join(devicePath, "vpd_pg80")); err == nil && len(data) > 4 {
			d.Serial = ptr(printable(string(data[4:])))
		}
	}

	if wwid := readAttr(devicePath, "wwid"); wwid != nil {
		d.WWN = wwnFromWWID(*wwid)
	}

	// size is in 512-byte sectors regardless of the logical block size
	if v := readAttr(blockPath, "size"); v != nil {
		if sectors, err := strconv.ParseUint(*v, 10, 64); err == nil {
			size := sectors * 512
			d.Size = &size
		}
	}

	if v := readAttr(filepath.Join(blockPath, "queue"), "rotational"); v != nil {
		rot := *v == "1"
		d.Rotational = &rot
	}

	if entries, err := os.ReadDir(filepath.Join(devicePath, "scsi_device")); err == nil && len(entries) > 0 {
		d.HCTL = ptr(entries[0].Name())
	}

	return d, true
}

// wwnFromWWID converts an NAA wwid to the 0x form lsblk and udev report.
// t10. and eui. identifiers are not WWNs.
func wwnFromWWID(wwid string) *string {
	id, ok := strings.CutPrefix(wwid, "naa.")
	if !ok || id == "" {
		return nil
	}
	return ptr("0x" + strings.ToLower(id))
}

func readAttr(dir, name string) *string {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return nil
	}
	return ptr(strings.TrimSpace(string(data)))
}

func printable(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r >= 32 && r < 127 {
			return r
		}
		return -1
	}, s))
}

// Fallback returns the devices of the first source that succeeds
type Fallback []Source

func (f Fallback) Devices(ctx context.Context) ([]hints.Device, error) {
	var errs []error
	for _, src := range f {
		devices, err := src.Devices(ctx)
		if err == nil {
			return devices, nil
		}
		logging.Logger().Warnw("device source failed, trying next", "source", fmt.Sprintf("%T", src), "error", err)
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, errors.New("no device source configured")
	}
	return nil, errors.Join(errs...)
}
