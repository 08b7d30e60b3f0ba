package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/sigreer/diskclean/internal/clean"
	"github.com/sigreer/diskclean/internal/db"
	"github.com/sigreer/diskclean/internal/hints"
)

const (
	formatJSON  = "json"
	formatTable = "table"
)

// outputFormat returns the -o flag, or table for a terminal and json for pipes
func outputFormat(cmd *cobra.Command) string {
	format, _ := cmd.Flags().GetString("output")
	switch format {
	case formatJSON, formatTable:
		return format
	case "":
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q, using json\n", format)
		return formatJSON
	}

	fd := os.Stdout.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return formatTable
	}
	return formatJSON
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printDevices(w io.Writer, devices []hints.Device) {
	fmt.Fprintf(w, "%-14s %8s %-4s %-24s %-20s %-20s %-9s %s\n",
		"NAME", "SIZE", "ROT", "MODEL", "SERIAL", "WWN", "HCTL", "BY-PATH")
	fmt.Fprintln(w, strings.Repeat("-", 120))

	for _, d := range devices {
		size := "-"
		if d.Size != nil {
			size = humanize.Bytes(*d.Size)
		}
		rot := "-"
		if d.Rotational != nil {
			rot = "no"
			if *d.Rotational {
				rot = "yes"
			}
		}
		fmt.Fprintf(w, "%-14s %8s %-4s %-24s %-20s %-20s %-9s %s\n",
			d.Name, size, rot, str(d.Model), str(d.Serial), str(d.WWN), str(d.HCTL), str(d.ByPath))
	}
}

func printSteps(w io.Writer, steps []clean.Step) {
	fmt.Fprintf(w, "%-4s %-28s %8s %-10s %-8s %s\n", "#", "STEP", "PRIORITY", "INTERFACE", "REBOOT", "ABORTABLE")
	fmt.Fprintln(w, strings.Repeat("-", 72))
	for i, s := range steps {
		fmt.Fprintf(w, "%-4d %-28s %8d %-10s %-8t %t\n",
			i+1, s.Name(), s.Priority(), s.Interface(), s.RebootRequested(), s.Abortable())
	}
}

func printReport(w io.Writer, report *clean.Report) {
	fmt.Fprintf(w, "Run:    %s\n", report.ID)
	fmt.Fprintf(w, "Node:   %s\n", report.Node)
	fmt.Fprintf(w, "Status: %s\n", report.Status)
	fmt.Fprintln(w)
	printStepResults(w, report.Results)
}

func printStepResults(w io.Writer, results []clean.StepResult) {
	fmt.Fprintf(w, "%-28s %8s %-16s %10s %s\n", "STEP", "PRIORITY", "STATUS", "DURATION", "ERROR")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, r := range results {
		fmt.Fprintf(w, "%-28s %8d %-16s %10s %s\n",
			r.Step, r.Priority, r.Status, r.Duration.Round(time.Millisecond), r.Error)
	}
}

func printRuns(w io.Writer, runs []*db.Run) {
	fmt.Fprintf(w, "%-36s %-16s %-16s %-14s %s\n", "RUN", "NODE", "STATUS", "STARTED", "ERROR")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, r := range runs {
		fmt.Fprintf(w, "%-36s %-16s %-16s %-14s %s\n",
			r.UUID, r.Node, r.Status, humanize.Time(r.StartedAt), r.Error)
	}
}

func str(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
