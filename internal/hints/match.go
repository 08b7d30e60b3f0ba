package hints

import (
	"iter"
	"slices"
	"strings"
)

// Match reports whether d satisfies every hint in the set
func (h *HintSet) Match(d Device) bool {
	if h == nil {
		return true
	}

	for key, sh := range h.strs {
		attr := d.stringAttr(key)
		if attr == nil || !sh.match(*attr) {
			return false
		}
	}

	if h.size != nil {
		if d.Size == nil || !h.size.match(*d.Size) {
			return false
		}
	}

	if h.rotational != nil {
		if d.Rotational == nil || *d.Rotational != *h.rotational {
			return false
		}
	}

	return true
}

// Filter lazily yields the devices that satisfy the set, in input order.
// The sequence can be ranged over any number of times.
func (h *HintSet) Filter(devices []Device) iter.Seq[Device] {
	return func(yield func(Device) bool) {
		for _, d := range devices {
			if h.Match(d) && !yield(d) {
				return
			}
		}
	}
}

// FindDevicesByHints validates raw and returns the devices satisfying all of
// its hints. An invalid hint fails the whole call before any device is
// looked at. An empty hint set yields every device.
func FindDevicesByHints(devices []Device, raw map[string]any) (iter.Seq[Device], error) {
	hs, err := ParseHints(raw)
	if err != nil {
		return nil, err
	}
	return hs.Filter(slices.Clone(devices)), nil
}

// MatchRootDevice returns the first device satisfying raw, or nil if none do
func MatchRootDevice(devices []Device, raw map[string]any) (*Device, error) {
	seq, err := FindDevicesByHints(devices, raw)
	if err != nil {
		return nil, err
	}
	for d := range seq {
		return &d, nil
	}
	return nil, nil
}

func (sh stringHint) match(attr string) bool {
	attr = strings.ToLower(attr)
	switch sh.op {
	case strNe:
		return attr != sh.values[0]
	case strIn:
		return strings.Contains(attr, sh.values[0])
	case strOr:
		return slices.Contains(sh.values, attr)
	default:
		return attr == sh.values[0]
	}
}

func (sh *sizeHint) match(size uint64) bool {
	switch sh.op {
	case sizeNe:
		return size != sh.bytes
	case sizeGe:
		return size >= sh.bytes
	case sizeLe:
		return size <= sh.bytes
	case sizeGt:
		return size > sh.bytes
	case sizeLt:
		return size < sh.bytes
	default:
		return size == sh.bytes
	}
}
