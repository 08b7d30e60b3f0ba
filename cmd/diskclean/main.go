package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sigreer/diskclean/internal/config"
	"github.com/sigreer/diskclean/internal/logging"
	"github.com/sigreer/diskclean/internal/version"
)

var (
	cfgFile  string
	logLevel string
	dbPath   string
)

var rootCmd = &cobra.Command{
	Use:   "diskclean",
	Short: "Root disk matching and cleaning for bare-metal nodes",
	Long: `diskclean finds a node's root disks from root device hints and runs
priority-ordered cleaning steps against the node's block devices before it
is handed to the next tenant. Every run is recorded in a local history
database.`,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("diskclean %s\n", version.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/diskclean/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "history database path (overrides config)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(stepsCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(historyCmd)
}

// loadConfig loads the config, applies flag overrides and starts logging.
// Failures end the process.
func loadConfig() *config.Config {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if dbPath != "" {
		cfg.Database = dbPath
	}

	if err := logging.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func main() {
	// abortable clean steps stop on SIGINT/SIGTERM; the others finish first
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
