package inventory

import (
	"os"
	"path/filepath"
	"strings"
)

// readByPathLinks maps each device node to the first /dev/disk/by-path
// alias that resolves to it. Partition links are skipped.
func readByPathLinks(dir string) map[string]string {
	result := make(map[string]string)

	// ReadDir returns entries sorted by name, so the choice is stable
	entries, err := os.ReadDir(dir)
	if err != nil {
		return result
	}

	for _, entry := range entries {
		if entry.Type()&os.ModeSymlink == 0 {
			continue
		}
		if strings.Contains(entry.Name(), "-part") {
			continue
		}

		linkPath := filepath.Join(dir, entry.Name())
		target, err := filepath.EvalSymlinks(linkPath)
		if err != nil {
			continue
		}

		if _, ok := result[target]; !ok {
			result[target] = linkPath
		}
	}

	return result
}
