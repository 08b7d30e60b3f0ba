package hints

import (
	"fmt"
	"maps"
	"math"
	"math/big"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/dustin/go-humanize"
)

const (
	devPrefix    = "/dev/"
	byPathPrefix = "/dev/disk/by-path/"
)

type stringOp int

const (
	strEq stringOp = iota
	strNe
	strIn
	strOr
)

type stringHint struct {
	op     stringOp
	values []string // lowercased
}

type sizeOp string

const (
	sizeEq sizeOp = "=="
	sizeNe sizeOp = "!="
	sizeGe sizeOp = ">="
	sizeLe sizeOp = "<="
	sizeGt sizeOp = ">"
	sizeLt sizeOp = "<"
)

// two-character operators must be tried before their one-character prefixes
var sizeOps = []sizeOp{sizeGe, sizeLe, sizeEq, sizeNe, sizeGt, sizeLt}

type sizeHint struct {
	op    sizeOp
	bytes uint64
}

// HintSet is a validated set of root device hints. The zero value matches
// every device.
type HintSet struct {
	strs       map[string]stringHint
	size       *sizeHint
	rotational *bool
}

// ParseHints validates raw hints, typically decoded from YAML, JSON or
// command line flags. Keys are checked in sorted order so the first reported
// error is stable.
func ParseHints(raw map[string]any) (*HintSet, error) {
	hs := &HintSet{strs: make(map[string]stringHint)}

	for _, key := range slices.Sorted(maps.Keys(raw)) {
		value := raw[key]
		if value == nil {
			return nil, invalid(key, nil, "value is empty")
		}

		switch {
		case stringKeys[key]:
			sh, err := parseStringHint(key, value)
			if err != nil {
				return nil, err
			}
			hs.strs[key] = sh
		case key == KeySize:
			sh, err := parseSizeHint(value)
			if err != nil {
				return nil, err
			}
			hs.size = sh
		case key == KeyRotational:
			b, err := parseBool(value)
			if err != nil {
				return nil, err
			}
			hs.rotational = &b
		default:
			return nil, invalid(key, value, "unknown hint, expected one of %s", strings.Join(Keys(), ", "))
		}
	}

	return hs, nil
}

// Len returns the number of hints in the set
func (h *HintSet) Len() int {
	if h == nil {
		return 0
	}
	n := len(h.strs)
	if h.size != nil {
		n++
	}
	if h.rotational != nil {
		n++
	}
	return n
}

// String renders the set in sorted key order, for logs
func (h *HintSet) String() string {
	if h.Len() == 0 {
		return "{}"
	}
	var parts []string
	for _, key := range slices.Sorted(maps.Keys(h.strs)) {
		sh := h.strs[key]
		var v string
		switch sh.op {
		case strNe:
			v = "s!= " + sh.values[0]
		case strIn:
			v = "<in> " + sh.values[0]
		case strOr:
			v = "<or> " + strings.Join(sh.values, " <or> ")
		default:
			v = sh.values[0]
		}
		parts = append(parts, key+"="+v)
	}
	if h.size != nil {
		parts = append(parts, fmt.Sprintf("%s=%s %d", KeySize, h.size.op, h.size.bytes))
	}
	if h.rotational != nil {
		parts = append(parts, fmt.Sprintf("%s=%t", KeyRotational, *h.rotational))
	}
	slices.Sort(parts)
	return "{" + strings.Join(parts, ", ") + "}"
}

func parseStringHint(key string, value any) (stringHint, error) {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		// YAML decodes all-digit serials as integers
		s = fmt.Sprintf("%d", v)
	default:
		return stringHint{}, invalid(key, value, "expected a string, got %T", value)
	}

	s = strings.TrimSpace(s)
	sh := stringHint{op: strEq}

	switch {
	case strings.HasPrefix(s, "<or>"):
		sh.op = strOr
		for _, alt := range strings.Split(s, "<or>") {
			alt = strings.TrimSpace(alt)
			if alt != "" {
				sh.values = append(sh.values, alt)
			}
		}
	case strings.HasPrefix(s, "<in>"):
		sh.op = strIn
		s = strings.TrimSpace(strings.TrimPrefix(s, "<in>"))
		if s != "" {
			sh.values = []string{s}
		}
	case strings.HasPrefix(s, "s=="):
		s = strings.TrimSpace(strings.TrimPrefix(s, "s=="))
		if s != "" {
			sh.values = []string{s}
		}
	case strings.HasPrefix(s, "s!="):
		sh.op = strNe
		s = strings.TrimSpace(strings.TrimPrefix(s, "s!="))
		if s != "" {
			sh.values = []string{s}
		}
	default:
		if s != "" {
			sh.values = []string{s}
		}
	}

	if len(sh.values) == 0 {
		return stringHint{}, invalid(key, value, "value is empty")
	}

	for i, v := range sh.values {
		if sh.op != strIn {
			v = normalizePath(key, v)
		}
		sh.values[i] = strings.ToLower(v)
	}
	return sh, nil
}

// normalizePath expands bare device names and by-path aliases to full paths
func normalizePath(key, v string) string {
	switch key {
	case KeyName:
		if !strings.HasPrefix(v, devPrefix) {
			return devPrefix + v
		}
	case KeyByPath:
		if !strings.HasPrefix(v, byPathPrefix) {
			return byPathPrefix + v
		}
	}
	return v
}

func parseSizeHint(value any) (*sizeHint, error) {
	if n, negative, ok := integerValue(value); ok {
		if negative {
			return nil, invalid(KeySize, value, "size cannot be negative")
		}
		return &sizeHint{op: sizeEq, bytes: n}, nil
	}

	switch v := value.(type) {
	case string:
		return parseSizeExpr(v)
	case float64:
		// JSON numbers decode as float64
		if v < 0 || v != math.Trunc(v) || v >= math.MaxUint64 {
			return nil, invalid(KeySize, value, "expected a non-negative whole number of bytes")
		}
		return &sizeHint{op: sizeEq, bytes: uint64(v)}, nil
	}
	return nil, invalid(KeySize, value, "expected a byte count or comparison expression, got %T", value)
}

// integerValue widens any Go integer kind, since YAML, JSON and flag
// decoders each pick a different one
func integerValue(value any) (n uint64, negative, ok bool) {
	switch v := value.(type) {
	case int:
		return signedValue(int64(v))
	case int8:
		return signedValue(int64(v))
	case int16:
		return signedValue(int64(v))
	case int32:
		return signedValue(int64(v))
	case int64:
		return signedValue(v)
	case uint:
		return uint64(v), false, true
	case uint8:
		return uint64(v), false, true
	case uint16:
		return uint64(v), false, true
	case uint32:
		return uint64(v), false, true
	case uint64:
		return v, false, true
	}
	return 0, false, false
}

func signedValue(v int64) (uint64, bool, bool) {
	if v < 0 {
		return 0, true, true
	}
	return uint64(v), false, true
}

// parseSizeExpr accepts "[op] amount" where amount is a byte count or a
// humanized size such as "500GB" or "1.5 TiB"
func parseSizeExpr(expr string) (*sizeHint, error) {
	s := strings.TrimSpace(expr)
	op := sizeEq
	for _, candidate := range sizeOps {
		if strings.HasPrefix(s, string(candidate)) {
			op = candidate
			s = strings.TrimSpace(strings.TrimPrefix(s, string(candidate)))
			break
		}
	}

	if s == "" {
		return nil, invalid(KeySize, expr, "missing size amount")
	}

	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return &sizeHint{op: op, bytes: n}, nil
	}

	n, err := humanize.ParseBytes(s)
	if err != nil {
		return nil, invalid(KeySize, expr, "cannot parse size amount %q", s)
	}
	if !wholeBytes(s) {
		return nil, invalid(KeySize, expr, "size amount %q is not a whole number of bytes", s)
	}
	return &sizeHint{op: op, bytes: n}, nil
}

// wholeBytes reports whether a humanized amount that go-humanize accepted
// scales to an integral byte count. go-humanize truncates the fraction.
func wholeBytes(s string) bool {
	split := strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.' && r != ','
	})
	if split < 0 {
		split = len(s)
	}

	amount, ok := new(big.Rat).SetString(strings.ReplaceAll(s[:split], ",", ""))
	if !ok {
		return false
	}

	multiplier := uint64(1)
	if unit := strings.TrimSpace(s[split:]); unit != "" {
		m, err := humanize.ParseBytes("1 " + unit)
		if err != nil {
			return false
		}
		multiplier = m
	}
	return amount.Mul(amount, new(big.Rat).SetUint64(multiplier)).IsInt()
}

func parseBool(value any) (bool, error) {
	if n, negative, ok := integerValue(value); ok {
		if !negative && n <= 1 {
			return n == 1, nil
		}
		return false, invalid(KeyRotational, value, "expected a boolean")
	}

	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "on", "1", "y", "t":
			return true, nil
		case "false", "no", "off", "0", "n", "f":
			return false, nil
		}
	case float64:
		if v == 0 || v == 1 {
			return v == 1, nil
		}
	}
	return false, invalid(KeyRotational, value, "expected a boolean")
}
