package clean

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/sigreer/diskclean/internal/hints"
	"github.com/sigreer/diskclean/internal/logging"
)

const (
	CustomManagerName    = "custom_cleaning_manager"
	CustomManagerVersion = "1.0"

	InterfaceDeploy = "deploy"
)

// DeviceLister enumerates the candidate block devices of the node
type DeviceLister interface {
	Devices(ctx context.Context) ([]hints.Device, error)
}

// invalidator is implemented by listers that cache, so the erase steps can
// drop a listing that predates the wipe
type invalidator interface {
	Invalidate()
}

// CustomCleaningManager enforces site policy during cleaning: wipe every
// disk, then locate and wipe the root disks named by the node's hints.
type CustomCleaningManager struct {
	devices DeviceLister
	eraser  Eraser
}

func NewCustomCleaningManager(devices DeviceLister, eraser Eraser) *CustomCleaningManager {
	return &CustomCleaningManager{devices: devices, eraser: eraser}
}

func (m *CustomCleaningManager) Name() string    { return CustomManagerName }
func (m *CustomCleaningManager) Version() string { return CustomManagerVersion }

// EvaluateHardwareSupport claims every machine; the steps encode business
// rules rather than hardware specifics
func (m *CustomCleaningManager) EvaluateHardwareSupport() HardwareSupport {
	return SupportServiceProvider
}

func (m *CustomCleaningManager) CleanSteps(node *Node, ports []Port) []Step {
	return []Step{
		NewStep(StepInfo{
			Step:      "erase_devices",
			Priority:  0,
			Interface: InterfaceDeploy,
		}, m.eraseDevices),
		NewStep(StepInfo{
			Step:      "erase_devices_metadata",
			Priority:  0,
			Interface: InterfaceDeploy,
		}, m.eraseDevicesMetadata),
		NewStep(StepInfo{
			Step:      "get_root_disks",
			Priority:  90,
			Interface: InterfaceDeploy,
		}, m.getRootDisks),
		NewStep(StepInfo{
			Step:      "erase_root_disks",
			Priority:  80,
			Interface: InterfaceDeploy,
		}, m.eraseRootDisks),
	}
}

func (m *CustomCleaningManager) eraseDevices(ctx context.Context, node *Node, ports []Port) error {
	devices, err := m.devices.Devices(ctx)
	if err != nil {
		return err
	}
	defer m.invalidate()
	return eraseEach(ctx, devices, m.eraser.Erase)
}

func (m *CustomCleaningManager) eraseDevicesMetadata(ctx context.Context, node *Node, ports []Port) error {
	devices, err := m.devices.Devices(ctx)
	if err != nil {
		return err
	}
	defer m.invalidate()
	return eraseEach(ctx, devices, m.eraser.EraseMetadata)
}

// getRootDisks stores every device matching the node's root device hints on
// the node. A node without hints is refused rather than treated as "all
// disks are root disks".
func (m *CustomCleaningManager) getRootDisks(ctx context.Context, node *Node, ports []Port) error {
	raw, err := node.RootDeviceHints()
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return ErrNoRootDeviceHints
	}

	devices, err := m.devices.Devices(ctx)
	if err != nil {
		return err
	}

	matches, err := hints.FindDevicesByHints(devices, raw)
	if err != nil {
		return err
	}

	node.RootDisks = slices.Collect(matches)
	if len(node.RootDisks) == 0 {
		return fmt.Errorf("%w among %d devices", ErrNoRootDisk, len(devices))
	}

	names := make([]string, 0, len(node.RootDisks))
	for _, d := range node.RootDisks {
		names = append(names, d.Name)
	}
	logging.Logger().Infow("found root disks", "node", node.Name, "disks", names)
	return nil
}

// eraseRootDisks runs before get_root_disks in the default order, so it
// discovers the root disks itself when none are known yet
func (m *CustomCleaningManager) eraseRootDisks(ctx context.Context, node *Node, ports []Port) error {
	if len(node.RootDisks) == 0 {
		if err := m.getRootDisks(ctx, node, ports); err != nil {
			return err
		}
	}
	defer m.invalidate()
	return eraseEach(ctx, node.RootDisks, m.eraser.Erase)
}

func (m *CustomCleaningManager) invalidate() {
	if inv, ok := m.devices.(invalidator); ok {
		inv.Invalidate()
	}
}

// eraseEach attempts every device and joins the failures
func eraseEach(ctx context.Context, devices []hints.Device, erase func(context.Context, hints.Device) error) error {
	var errs []error
	for _, d := range devices {
		if err := erase(ctx, d); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.Name, err))
		}
	}
	return errors.Join(errs...)
}
