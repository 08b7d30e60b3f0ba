package inventory

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sigreer/diskclean/internal/cache"
	"github.com/sigreer/diskclean/internal/hints"
	"github.com/sigreer/diskclean/internal/logging"
)

// Source is the interface for block device enumerators
type Source interface {
	Devices(ctx context.Context) ([]hints.Device, error)
}

const cacheKey = "inventory:devices"

// Enumerator caches the device list of a Source. Cleaning steps run back to
// back and would otherwise re-run lsblk for each one.
type Enumerator struct {
	source Source
	cache  *cache.Cache[[]hints.Device]
	ttl    time.Duration
}

// NewEnumerator wraps src with a short-lived cache
func NewEnumerator(src Source) *Enumerator {
	return &Enumerator{
		source: src,
		cache:  cache.New[[]hints.Device](),
		ttl:    cache.TTLFast,
	}
}

// Devices returns the cached device list, enumerating if it is stale
func (e *Enumerator) Devices(ctx context.Context) ([]hints.Device, error) {
	if cached, ok := e.cache.Get(cacheKey); ok {
		return cloneDevices(cached), nil
	}
	return e.Refresh(ctx)
}

// Refresh enumerates devices regardless of the cache
func (e *Enumerator) Refresh(ctx context.Context) ([]hints.Device, error) {
	devices, err := e.source.Devices(ctx)
	if err != nil {
		return nil, err
	}

	logging.Logger().Debugw("enumerated block devices", "count", len(devices))
	e.cache.Set(cacheKey, devices, e.ttl)
	return cloneDevices(devices), nil
}

// Invalidate drops the cached list, e.g. after a disk was wiped
func (e *Enumerator) Invalidate() {
	e.cache.Delete(cacheKey)
}

// cloneDevices copies the list and every attribute it points to
func cloneDevices(devices []hints.Device) []hints.Device {
	if devices == nil {
		return nil
	}
	out := make([]hints.Device, len(devices))
	for i, d := range devices {
		d.Size = clonePtr(d.Size)
		d.Model = clonePtr(d.Model)
		d.Vendor = clonePtr(d.Vendor)
		d.Serial = clonePtr(d.Serial)
		d.WWN = clonePtr(d.WWN)
		d.WWNWithExtension = clonePtr(d.WWNWithExtension)
		d.WWNVendorExtension = clonePtr(d.WWNVendorExtension)
		d.Rotational = clonePtr(d.Rotational)
		d.HCTL = clonePtr(d.HCTL)
		d.ByPath = clonePtr(d.ByPath)
		out[i] = d
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// FileSource reads a static device list from a YAML or JSON file, either a
// bare list or a mapping with a "devices" key
type FileSource struct {
	Path string
}

func (s *FileSource) Devices(ctx context.Context) ([]hints.Device, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read device file: %w", err)
	}
	return parseDeviceFile(data)
}

func parseDeviceFile(data []byte) ([]hints.Device, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse device file: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	var devices []hints.Device
	root := doc.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&devices); err != nil {
			return nil, fmt.Errorf("failed to decode devices: %w", err)
		}
	case yaml.MappingNode:
		var wrapper struct {
			Devices []hints.Device `yaml:"devices"`
		}
		if err := root.Decode(&wrapper); err != nil {
			return nil, fmt.Errorf("failed to decode devices: %w", err)
		}
		devices = wrapper.Devices
	default:
		return nil, fmt.Errorf("device file must be a list or contain a devices key")
	}

	for i, d := range devices {
		if d.Name == "" {
			return nil, fmt.Errorf("device %d has no name", i)
		}
	}
	return devices, nil
}
