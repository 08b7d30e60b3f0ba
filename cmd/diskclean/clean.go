package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sigreer/diskclean/internal/clean"
	"github.com/sigreer/diskclean/internal/db"
	"github.com/sigreer/diskclean/internal/logging"
)

var cleanHints = newHintFlag()

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Run the clean steps against this node",
	Long: `Run every clean step in priority order, stopping at the first failure.

Data is destroyed by the erase commands from the config; without them, or
with --dry-run, steps only log the devices they would erase. Each run, its
step results and the root disks it matched are recorded in the history
database.

A step that requests a reboot ends the run. After rebooting, continue with
--resume-after <step>.`,
	Run: runClean,
}

func init() {
	cleanCmd.Flags().String("node", "", "node name recorded with the run (default: config or hostname)")
	cleanCmd.Flags().Var(cleanHints, "hint", "root device hint as key=value, overriding the config (repeatable)")
	cleanCmd.Flags().String("devices", "", "read devices from a YAML/JSON file instead of lsblk")
	cleanCmd.Flags().Bool("dry-run", false, "log instead of erasing")
	cleanCmd.Flags().String("resume-after", "", "skip to the steps after this one")
	cleanCmd.Flags().Bool("json", false, "Output the report as JSON")
}

func runClean(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	log := logging.Logger()
	ctx := cmd.Context()

	nodeName, _ := cmd.Flags().GetString("node")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	resumeAfter, _ := cmd.Flags().GetString("resume-after")
	jsonOut, _ := cmd.Flags().GetBool("json")
	dryRun = dryRun || cfg.DryRun

	node := newNode(cfg, nodeName, mergeHints(cfg.RootDevice, cleanHints.values))

	registry, steps, err := buildSteps(cmd, cfg, node, dryRun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error collecting clean steps: %v\n", err)
		os.Exit(1)
	}

	database, err := db.New(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	runner := clean.NewRunner(steps, database)
	runner.Managers = registry.Versions()

	log.Infow("starting cleaning", "node", node.Name, "steps", len(steps), "dry_run", dryRun)

	var report *clean.Report
	if resumeAfter != "" {
		report, err = runner.Resume(ctx, node, nil, resumeAfter)
	} else {
		report, err = runner.Run(ctx, node, nil)
	}
	if report == nil {
		fmt.Fprintf(os.Stderr, "Error starting cleaning: %v\n", err)
		os.Exit(1)
	}

	if len(node.RootDisks) > 0 {
		// the run may have been interrupted; its root disks are recorded regardless
		if rerr := database.RecordRootDisks(context.WithoutCancel(ctx), report.ID, node.RootDisks); rerr != nil {
			log.Warnw("failed to record root disks", "run", report.ID, "error", rerr)
		}
	}

	if jsonOut {
		if perr := printJSON(os.Stdout, report); perr != nil {
			fmt.Fprintf(os.Stderr, "Error encoding output: %v\n", perr)
		}
	} else {
		printReport(os.Stdout, report)
	}

	switch {
	case err == nil:
	case errors.Is(err, clean.ErrRebootRequested):
		fmt.Fprintf(os.Stderr, "Reboot requested; afterwards run: diskclean clean --resume-after %s\n",
			report.Results[len(report.Results)-1].Step)
		database.Close()
		os.Exit(3)
	default:
		fmt.Fprintf(os.Stderr, "Error cleaning node %s: %v\n", node.Name, err)
		database.Close()
		os.Exit(1)
	}
}
