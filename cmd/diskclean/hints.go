package main

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// hintFlag collects repeated --hint key=value flags into a raw hint map.
// Values stay strings; the matcher parses them per key.
type hintFlag struct {
	values map[string]any
}

var _ pflag.Value = (*hintFlag)(nil)

func newHintFlag() *hintFlag {
	return &hintFlag{values: make(map[string]any)}
}

func (f *hintFlag) Set(s string) error {
	key, value, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return fmt.Errorf("expected key=value, got %q", s)
	}
	f.values[key] = strings.TrimSpace(value)
	return nil
}

func (f *hintFlag) String() string {
	parts := make([]string, 0, len(f.values))
	for _, k := range slices.Sorted(maps.Keys(f.values)) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, f.values[k]))
	}
	return strings.Join(parts, ",")
}

func (f *hintFlag) Type() string {
	return "key=value"
}

// loadHintsFile reads a YAML or JSON mapping of hints
func loadHintsFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read hints file: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse hints file: %w", err)
	}
	return raw, nil
}

// mergeHints layers raw hint maps; later maps win
func mergeHints(layers ...map[string]any) map[string]any {
	merged := make(map[string]any)
	for _, layer := range layers {
		maps.Copy(merged, layer)
	}
	return merged
}
