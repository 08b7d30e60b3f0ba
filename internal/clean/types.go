package clean

import (
	"context"
	"errors"
	"fmt"

	"github.com/sigreer/diskclean/internal/hints"
)

var (
	ErrDuplicateManager  = errors.New("hardware manager already registered")
	ErrDuplicateStep     = errors.New("clean step declared twice")
	ErrUnknownStep       = errors.New("unknown clean step")
	ErrNoRootDeviceHints = errors.New("node has no root device hints")
	ErrNoRootDisk        = errors.New("no device matches the root device hints")
	ErrRebootRequested   = errors.New("clean step requested a reboot")
	ErrNoEraseCommand    = errors.New("no erase command configured")
)

// HardwareSupport is how well a manager claims to handle this machine.
// Managers reporting SupportNone contribute no steps.
type HardwareSupport int

const (
	SupportNone HardwareSupport = iota
	SupportGeneric
	SupportMainline
	SupportServiceProvider
)

func (h HardwareSupport) String() string {
	switch h {
	case SupportNone:
		return "none"
	case SupportGeneric:
		return "generic"
	case SupportMainline:
		return "mainline"
	case SupportServiceProvider:
		return "service_provider"
	default:
		return fmt.Sprintf("support(%d)", int(h))
	}
}

// Node is the machine being cleaned. Properties is opaque except for the
// "root_device" hint mapping.
type Node struct {
	UUID       string         `json:"uuid,omitempty" yaml:"uuid,omitempty"`
	Name       string         `json:"name" yaml:"name"`
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`

	// RootDisks is filled in by get_root_disks
	RootDisks []hints.Device `json:"root_disks,omitempty" yaml:"-"`
}

// RootDeviceHints returns the node's root_device property, or nil if unset
func (n *Node) RootDeviceHints() (map[string]any, error) {
	v, ok := n.Properties["root_device"]
	if !ok || v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("root_device property must be a mapping, got %T", v)
	}
	return m, nil
}

// Port is a network port of the node, passed through to steps untouched
type Port struct {
	Address    string `json:"address" yaml:"address"`
	PXEEnabled bool   `json:"pxe_enabled" yaml:"pxe_enabled"`
}

// StepInfo is the declaration of a clean step
type StepInfo struct {
	Step            string `json:"step"`
	Priority        int    `json:"priority"`
	Interface       string `json:"interface"`
	RebootRequested bool   `json:"reboot_requested"`
	Abortable       bool   `json:"abortable"`
}

// Step is a unit of cleaning work
type Step interface {
	Name() string
	// Priority orders execution; lower values run first
	Priority() int
	Interface() string
	// RebootRequested steps end the run once they succeed
	RebootRequested() bool
	// Abortable steps see cancellation of the run context while executing
	Abortable() bool
	Execute(ctx context.Context, node *Node, ports []Port) error
}

// Manager declares a set of clean steps for the hardware it supports
type Manager interface {
	Name() string
	// Version must change whenever the steps change
	Version() string
	EvaluateHardwareSupport() HardwareSupport
	CleanSteps(node *Node, ports []Port) []Step
}

// StepError wraps the failure of a single step
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("clean step %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
