package inventory

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"regexp"
	"strings"
)

const defaultLsscsi = "lsscsi"

// Match lines like: [0:0:0:0]  disk  SEAGATE  ST8000NM0055  SN02  /dev/sda
// Only disk devices, not cd, tape, enclosures, etc.
var lsscsiDiskRe = regexp.MustCompile(`^\[([^\]]+)\]\s+disk\s+.*\s(/dev/\S+)\s*$`)

// scsiAddresses maps device path to H:C:T:L using lsscsi. Hosts without
// lsscsi yield an empty map.
func scsiAddresses(ctx context.Context, command string) map[string]string {
	if command == "" {
		command = defaultLsscsi
	}
	out, err := exec.CommandContext(ctx, command).Output()
	if err != nil {
		return nil
	}
	return parseLsscsi(out)
}

func parseLsscsi(out []byte) map[string]string {
	addrs := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		m := lsscsiDiskRe.FindStringSubmatch(strings.TrimSpace(scanner.Text()))
		if m == nil {
			continue
		}
		addrs[m[2]] = m[1]
	}
	return addrs
}

// virtualPrefixes are kernel names of disks that are not backed by
// hardware. lsblk reports them as type "disk".
var virtualPrefixes = []string{
	"zram", // compressed swap
	"ram",  // RAM disks
	"nbd",  // network block devices
	"fd",   // floppy
}

func isVirtualDisk(name string) bool {
	name = strings.TrimPrefix(name, "/dev/")
	for _, prefix := range virtualPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
