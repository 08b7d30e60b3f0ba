package hints

import (
	"errors"
	"fmt"
)

// ErrInvalidHint is matched by every ValidationError via errors.Is
var ErrInvalidHint = errors.New("invalid root device hint")

// Hint keys. Each one names a Device attribute.
const (
	KeyName               = "name"
	KeySize               = "size"
	KeyModel              = "model"
	KeyVendor             = "vendor"
	KeySerial             = "serial"
	KeyWWN                = "wwn"
	KeyWWNWithExtension   = "wwn_with_extension"
	KeyWWNVendorExtension = "wwn_vendor_extension"
	KeyRotational         = "rotational"
	KeyHCTL               = "hctl"
	KeyByPath             = "by_path"
)

// stringKeys are matched case-insensitively against the device attribute
var stringKeys = map[string]bool{
	KeyName:               true,
	KeyModel:              true,
	KeyVendor:             true,
	KeySerial:             true,
	KeyWWN:                true,
	KeyWWNWithExtension:   true,
	KeyWWNVendorExtension: true,
	KeyHCTL:               true,
	KeyByPath:             true,
}

// Keys returns every recognized hint key
func Keys() []string {
	return []string{
		KeyName, KeySize, KeyModel, KeyVendor, KeySerial,
		KeyWWN, KeyWWNWithExtension, KeyWWNVendorExtension,
		KeyRotational, KeyHCTL, KeyByPath,
	}
}

// Device describes one block device as reported by the host.
// Everything except Name is optional; a nil attribute never matches a hint.
type Device struct {
	Name               string  `json:"name" yaml:"name"`
	Size               *uint64 `json:"size,omitempty" yaml:"size,omitempty"`
	Model              *string `json:"model,omitempty" yaml:"model,omitempty"`
	Vendor             *string `json:"vendor,omitempty" yaml:"vendor,omitempty"`
	Serial             *string `json:"serial,omitempty" yaml:"serial,omitempty"`
	WWN                *string `json:"wwn,omitempty" yaml:"wwn,omitempty"`
	WWNWithExtension   *string `json:"wwn_with_extension,omitempty" yaml:"wwn_with_extension,omitempty"`
	WWNVendorExtension *string `json:"wwn_vendor_extension,omitempty" yaml:"wwn_vendor_extension,omitempty"`
	Rotational         *bool   `json:"rotational,omitempty" yaml:"rotational,omitempty"`
	HCTL               *string `json:"hctl,omitempty" yaml:"hctl,omitempty"`
	ByPath             *string `json:"by_path,omitempty" yaml:"by_path,omitempty"`
}

// stringAttr returns the string attribute named by key
func (d *Device) stringAttr(key string) *string {
	switch key {
	case KeyName:
		if d.Name == "" {
			return nil
		}
		return &d.Name
	case KeyModel:
		return d.Model
	case KeyVendor:
		return d.Vendor
	case KeySerial:
		return d.Serial
	case KeyWWN:
		return d.WWN
	case KeyWWNWithExtension:
		return d.WWNWithExtension
	case KeyWWNVendorExtension:
		return d.WWNVendorExtension
	case KeyHCTL:
		return d.HCTL
	case KeyByPath:
		return d.ByPath
	}
	return nil
}

// ValidationError reports a hint that could not be accepted
type ValidationError struct {
	Key    string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("invalid root device hint %q: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("invalid root device hint %q=%v: %s", e.Key, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidHint
}

func invalid(key string, value any, format string, args ...any) *ValidationError {
	return &ValidationError{Key: key, Value: value, Reason: fmt.Sprintf(format, args...)}
}
