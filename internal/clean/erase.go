package clean

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sigreer/diskclean/internal/hints"
	"github.com/sigreer/diskclean/internal/logging"
)

// Eraser destroys data on a device. How it does so is up to the operator.
type Eraser interface {
	Erase(ctx context.Context, d hints.Device) error
	EraseMetadata(ctx context.Context, d hints.Device) error
}

// CommandEraser runs operator-configured commands. Arguments may contain
// {device} and {serial}, replaced with the device's path and serial.
type CommandEraser struct {
	Command         []string
	MetadataCommand []string
}

func (e *CommandEraser) Erase(ctx context.Context, d hints.Device) error {
	return runTemplate(ctx, e.Command, d)
}

func (e *CommandEraser) EraseMetadata(ctx context.Context, d hints.Device) error {
	return runTemplate(ctx, e.MetadataCommand, d)
}

func runTemplate(ctx context.Context, template []string, d hints.Device) error {
	if len(template) == 0 {
		return ErrNoEraseCommand
	}

	args := expandArgs(template, d)
	logging.Logger().Infow("erasing device", "device", d.Name, "command", args)

	out, err := exec.CommandContext(ctx, args[0], args[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed on %s: %w: %s", args[0], d.Name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func expandArgs(template []string, d hints.Device) []string {
	serial := ""
	if d.Serial != nil {
		serial = *d.Serial
	}
	r := strings.NewReplacer("{device}", d.Name, "{serial}", serial)

	args := make([]string, len(template))
	for i, a := range template {
		args[i] = r.Replace(a)
	}
	return args
}

// DryRunEraser only logs what would be erased
type DryRunEraser struct{}

func (DryRunEraser) Erase(ctx context.Context, d hints.Device) error {
	logging.Logger().Infow("dry run: would erase device", "device", d.Name)
	return nil
}

func (DryRunEraser) EraseMetadata(ctx context.Context, d hints.Device) error {
	logging.Logger().Infow("dry run: would erase device metadata", "device", d.Name)
	return nil
}
