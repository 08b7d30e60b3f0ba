package main

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/sigreer/diskclean/internal/hints"
	"github.com/sigreer/diskclean/internal/inventory"
)

var matchHints = newHintFlag()

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Show the devices matching root device hints",
	Long: `Evaluate root device hints against the node's block devices.

Hints come from the config's root_device, then --hints-file, then --hint
flags; later sources override earlier ones per key. A device matches when it
satisfies every hint.

Examples:
  diskclean match --hint serial=S3Z9NB0K123456
  diskclean match --hint "size=>= 200GB" --hint rotational=false
  diskclean match --hint "model=<or> Samsung SSD 860 <or> INTEL SSDSC2KB48"
  diskclean match --hint name=sda --first`,
	Run: runMatch,
}

func init() {
	matchCmd.Flags().Var(matchHints, "hint", "root device hint as key=value (repeatable)")
	matchCmd.Flags().String("hints-file", "", "YAML/JSON file with a mapping of hints")
	matchCmd.Flags().String("devices", "", "read devices from a YAML/JSON file instead of lsblk")
	matchCmd.Flags().Bool("first", false, "only print the first matching device")
	matchCmd.Flags().StringP("output", "o", "", "Output format: json, table (default: table on a terminal)")
}

func runMatch(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	var fileHints map[string]any
	if path, _ := cmd.Flags().GetString("hints-file"); path != "" {
		var err error
		if fileHints, err = loadHintsFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading hints: %v\n", err)
			os.Exit(1)
		}
	}
	raw := mergeHints(cfg.RootDevice, fileHints, matchHints.values)

	devices, err := inventory.NewEnumerator(deviceSource(cmd, cfg)).Devices(cmd.Context())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error enumerating devices: %v\n", err)
		os.Exit(1)
	}

	var matched []hints.Device
	if first, _ := cmd.Flags().GetBool("first"); first {
		d, err := hints.MatchRootDevice(devices, raw)
		exitOnHintError(err)
		if d != nil {
			matched = []hints.Device{*d}
		}
	} else {
		seq, err := hints.FindDevicesByHints(devices, raw)
		exitOnHintError(err)
		matched = slices.Collect(seq)
	}

	if len(matched) == 0 {
		fmt.Fprintf(os.Stderr, "No device among %d matches the hints\n", len(devices))
		os.Exit(1)
	}

	if outputFormat(cmd) == formatTable {
		printDevices(os.Stdout, matched)
		return
	}
	if err := printJSON(os.Stdout, matched); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding output: %v\n", err)
		os.Exit(1)
	}
}

func exitOnHintError(err error) {
	if err == nil {
		return
	}
	var verr *hints.ValidationError
	if errors.As(err, &verr) {
		fmt.Fprintf(os.Stderr, "Invalid hint %q: %v\n", verr.Key, err)
		os.Exit(2)
	}
	fmt.Fprintf(os.Stderr, "Error matching devices: %v\n", err)
	os.Exit(1)
}
