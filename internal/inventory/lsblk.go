package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"slices"
	"strconv"
	"strings"

	"github.com/sigreer/diskclean/internal/hints"
)

const (
	defaultLsblk     = "lsblk"
	defaultUdevDir   = "/run/udev/data"
	defaultByPathDir = "/dev/disk/by-path"
)

// lsblkColumns are requested with -b so SIZE is in bytes
var lsblkColumns = "NAME,PATH,MAJ:MIN,TYPE,SIZE,ROTA,MODEL,VENDOR,SERIAL,WWN,HCTL"

// LsblkSource enumerates whole disks with lsblk, then fills in identifiers
// lsblk does not report (WWN extensions, by-path alias) from the udev
// database and /dev/disk/by-path. Old lsblk releases lack HCTL; lsscsi
// supplies it when installed.
type LsblkSource struct {
	Command   string
	Lsscsi    string
	UdevDir   string
	ByPathDir string
}

// lsblkOutput represents the JSON output from lsblk
type lsblkOutput struct {
	Blockdevices []lsblkDevice `json:"blockdevices"`
}

// lsblkDevice represents a single device in lsblk output. Older lsblk
// releases print every value as a string, newer ones use JSON numbers and
// booleans.
type lsblkDevice struct {
	Name   string      `json:"name"`
	Path   string      `json:"path"`
	MajMin string      `json:"maj:min"`
	Type   string      `json:"type"`
	Size   lsblkNumber `json:"size"`
	Rota   lsblkBool   `json:"rota"`
	Model  *string     `json:"model"`
	Vendor *string     `json:"vendor"`
	Serial *string     `json:"serial"`
	WWN    *string     `json:"wwn"`
	HCTL   *string     `json:"hctl"`
}

type lsblkNumber struct {
	value *uint64
}

func (n *lsblkNumber) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid lsblk size %s: %w", b, err)
	}
	n.value = &v
	return nil
}

type lsblkBool struct {
	value *bool
}

func (r *lsblkBool) UnmarshalJSON(b []byte) error {
	var v bool
	switch strings.Trim(string(b), `"`) {
	case "true", "1":
		v = true
	case "false", "0":
		v = false
	default:
		return nil
	}
	r.value = &v
	return nil
}

// record pairs a device with the maj:min needed to find its udev entry
type record struct {
	device hints.Device
	majMin string
}

// Devices runs lsblk and returns whole disks in the order lsblk reports them
func (s *LsblkSource) Devices(ctx context.Context) ([]hints.Device, error) {
	command := s.Command
	if command == "" {
		command = defaultLsblk
	}

	out, err := exec.CommandContext(ctx, command, "-J", "-b", "-d", "-o", lsblkColumns).Output()
	if err != nil {
		return nil, fmt.Errorf("lsblk failed: %w", err)
	}

	records, err := parseLsblk(out)
	if err != nil {
		return nil, err
	}

	udevDir := s.UdevDir
	if udevDir == "" {
		udevDir = defaultUdevDir
	}
	byPathDir := s.ByPathDir
	if byPathDir == "" {
		byPathDir = defaultByPathDir
	}
	enrich(records, udevDir, byPathDir)

	if slices.ContainsFunc(records, func(r record) bool { return r.device.HCTL == nil }) {
		applySCSIAddresses(records, scsiAddresses(ctx, s.Lsscsi))
	}

	devices := make([]hints.Device, 0, len(records))
	for _, r := range records {
		devices = append(devices, r.device)
	}
	return devices, nil
}

// parseLsblk converts lsblk JSON into device records, keeping only disks
func parseLsblk(data []byte) ([]record, error) {
	var output lsblkOutput
	if err := json.Unmarshal(data, &output); err != nil {
		return nil, fmt.Errorf("failed to parse lsblk output: %w", err)
	}

	var records []record
	for _, dev := range output.Blockdevices {
		if dev.Type != "disk" || isVirtualDisk(dev.Name) {
			continue
		}

		name := dev.Path
		if name == "" {
			name = "/dev/" + dev.Name
		}

		records = append(records, record{
			majMin: dev.MajMin,
			device: hints.Device{
				Name:       name,
				Size:       dev.Size.value,
				Rotational: dev.Rota.value,
				Model:      trimPtr(dev.Model),
				Vendor:     trimPtr(dev.Vendor),
				Serial:     trimPtr(dev.Serial),
				WWN:        trimPtr(dev.WWN),
				HCTL:       trimPtr(dev.HCTL),
			},
		})
	}

	return records, nil
}

// enrich fills identifiers missing from lsblk, never overwriting a value
func enrich(records []record, udevDir, byPathDir string) {
	for i := range records {
		if records[i].majMin == "" {
			continue
		}
		if props, err := readUdevData(udevDir, records[i].majMin); err == nil {
			applyUdev(&records[i].device, props)
		}
	}

	links := readByPathLinks(byPathDir)
	for i := range records {
		d := &records[i].device
		if d.ByPath != nil {
			continue
		}
		if link, ok := links[d.Name]; ok {
			d.ByPath = &link
		}
	}
}

func applySCSIAddresses(records []record, addrs map[string]string) {
	for i := range records {
		d := &records[i].device
		if d.HCTL != nil {
			continue
		}
		if addr, ok := addrs[d.Name]; ok {
			d.HCTL = &addr
		}
	}
}

// trimPtr trims whitespace and drops empty values
func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	return ptr(strings.TrimSpace(*s))
}

// ptr creates a pointer to a string, nil for empty strings
func ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
