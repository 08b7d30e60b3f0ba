package inventory

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sigreer/diskclean/internal/hints"
)

// readUdevData opens the udev database entry for a block device
// (/run/udev/data/b<major>:<minor>) and returns its E: properties
func readUdevData(dir, majMin string) (map[string]string, error) {
	file, err := os.Open(filepath.Join(dir, "b"+majMin))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return parseUdevData(file)
}

// parseUdevData reads the environment lines of a udev database file
func parseUdevData(r io.Reader) (map[string]string, error) {
	props := make(map[string]string)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		// Lines starting with E: are environment variables
		if !strings.HasPrefix(line, "E:") {
			continue
		}

		key, value, ok := strings.Cut(strings.TrimPrefix(line, "E:"), "=")
		if !ok {
			continue
		}
		props[key] = value
	}

	return props, scanner.Err()
}

// applyUdev fills device identifiers that are still unknown
func applyUdev(d *hints.Device, props map[string]string) {
	fill := func(dst **string, key string) {
		if *dst != nil {
			return
		}
		*dst = ptr(strings.TrimSpace(props[key]))
	}

	fill(&d.WWN, "ID_WWN")
	fill(&d.WWNWithExtension, "ID_WWN_WITH_EXTENSION")
	fill(&d.WWNVendorExtension, "ID_WWN_VENDOR_EXTENSION")
	fill(&d.Serial, "ID_SERIAL_SHORT")
	fill(&d.Model, "ID_MODEL")
	fill(&d.Vendor, "ID_VENDOR")

	if d.ByPath == nil {
		if idPath := strings.TrimSpace(props["ID_PATH"]); idPath != "" {
			link := filepath.Join(defaultByPathDir, idPath)
			d.ByPath = &link
		}
	}
}
