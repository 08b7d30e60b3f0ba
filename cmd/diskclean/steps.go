package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sigreer/diskclean/internal/clean"
	"github.com/sigreer/diskclean/internal/config"
	"github.com/sigreer/diskclean/internal/inventory"
)

var stepsCmd = &cobra.Command{
	Use:   "steps",
	Short: "List the clean steps in execution order",
	Long: `List the clean steps declared by every hardware manager that supports
this machine, after config overrides, in the order they would run.
Lower priorities run first.`,
	Run: runSteps,
}

func init() {
	stepsCmd.Flags().Bool("json", false, "Output as JSON")
}

// buildSteps registers the managers and returns the ordered steps
func buildSteps(cmd *cobra.Command, cfg *config.Config, node *clean.Node, dryRun bool) (*clean.Registry, []clean.Step, error) {
	var eraser clean.Eraser = &clean.CommandEraser{
		Command:         cfg.Erase.Command,
		MetadataCommand: cfg.Erase.MetadataCommand,
	}
	if dryRun {
		eraser = clean.DryRunEraser{}
	}
	devices := inventory.NewEnumerator(deviceSource(cmd, cfg))

	registry := clean.NewRegistry()
	if err := registry.Register(clean.NewCustomCleaningManager(devices, eraser)); err != nil {
		return nil, nil, err
	}

	steps, err := registry.Steps(node, nil)
	if err != nil {
		return nil, nil, err
	}

	overrides := make(map[string]clean.Override, len(cfg.Steps))
	for name, o := range cfg.Steps {
		overrides[name] = clean.Override{Priority: o.Priority, Disabled: o.Disabled}
	}
	return registry, clean.Order(steps, overrides), nil
}

// newNode describes the machine being cleaned
func newNode(cfg *config.Config, name string, rootDevice map[string]any) *clean.Node {
	if name == "" {
		name = cfg.Node
	}
	node := &clean.Node{Name: name, Properties: map[string]any{}}
	if len(rootDevice) > 0 {
		node.Properties["root_device"] = rootDevice
	}
	return node
}

func runSteps(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	jsonOut, _ := cmd.Flags().GetBool("json")

	node := newNode(cfg, "", cfg.RootDevice)
	_, steps, err := buildSteps(cmd, cfg, node, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error collecting clean steps: %v\n", err)
		os.Exit(1)
	}

	if !jsonOut {
		printSteps(os.Stdout, steps)
		return
	}

	infos := make([]clean.StepInfo, 0, len(steps))
	for _, s := range steps {
		infos = append(infos, clean.Info(s))
	}
	if err := printJSON(os.Stdout, infos); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding output: %v\n", err)
		os.Exit(1)
	}
}
