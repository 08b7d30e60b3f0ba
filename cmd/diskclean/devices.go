package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sigreer/diskclean/internal/config"
	"github.com/sigreer/diskclean/internal/inventory"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List the candidate block devices",
	Long: `List the whole disks that hints are matched against.

Devices come from lsblk, enriched with the udev database and
/dev/disk/by-path, or from /sys/block when lsblk is unavailable. With
--devices (or "devices" in the config) a static YAML/JSON device list is
read instead.`,
	Run: runDevices,
}

func init() {
	devicesCmd.Flags().String("devices", "", "read devices from a YAML/JSON file instead of lsblk")
	devicesCmd.Flags().StringP("output", "o", "", "Output format: json, table (default: table on a terminal)")
}

// deviceSource picks a static file over live enumeration when one is configured
func deviceSource(cmd *cobra.Command, cfg *config.Config) inventory.Source {
	path, _ := cmd.Flags().GetString("devices")
	if path == "" {
		path = cfg.Devices
	}
	if path != "" {
		return &inventory.FileSource{Path: path}
	}
	return inventory.Fallback{&inventory.LsblkSource{}, &inventory.SysfsSource{}}
}

func runDevices(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	devices, err := inventory.NewEnumerator(deviceSource(cmd, cfg)).Devices(cmd.Context())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error enumerating devices: %v\n", err)
		os.Exit(1)
	}

	if outputFormat(cmd) == formatTable {
		printDevices(os.Stdout, devices)
		return
	}
	if err := printJSON(os.Stdout, devices); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding output: %v\n", err)
		os.Exit(1)
	}
}
