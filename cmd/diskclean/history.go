package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sigreer/diskclean/internal/clean"
	"github.com/sigreer/diskclean/internal/db"
	"github.com/sigreer/diskclean/internal/hints"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded cleaning runs",
	Run:   runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the steps and root disks of a run",
	Args:  cobra.ExactArgs(1),
	Run:   runHistoryShow,
}

func init() {
	historyCmd.AddCommand(historyShowCmd)

	historyCmd.Flags().Int("limit", 20, "Maximum number of runs to show")
	historyCmd.Flags().Bool("json", false, "Output as JSON")
	historyShowCmd.Flags().Bool("json", false, "Output as JSON")
}

func openDB() *db.DB {
	cfg := loadConfig()
	database, err := db.New(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	return database
}

func runHistory(cmd *cobra.Command, args []string) {
	database := openDB()
	defer database.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	jsonOut, _ := cmd.Flags().GetBool("json")

	runs, err := database.GetRuns(cmd.Context(), limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error querying runs: %v\n", err)
		os.Exit(1)
	}

	if jsonOut {
		if runs == nil {
			runs = []*db.Run{}
		}
		if err := printJSON(os.Stdout, runs); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding output: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if len(runs) == 0 {
		fmt.Printf("No cleaning runs recorded in %s. Run 'diskclean clean' first.\n", database.Path())
		return
	}
	printRuns(os.Stdout, runs)
}

type runDetail struct {
	*db.Run
	Results   []clean.StepResult `json:"results"`
	RootDisks []hints.Device     `json:"root_disks"`
}

func runHistoryShow(cmd *cobra.Command, args []string) {
	database := openDB()
	defer database.Close()

	ctx := cmd.Context()
	jsonOut, _ := cmd.Flags().GetBool("json")

	run, err := database.GetRun(ctx, args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error querying run: %v\n", err)
		os.Exit(1)
	}
	if run == nil {
		fmt.Fprintf(os.Stderr, "Not found: %s\n", args[0])
		os.Exit(1)
	}

	detail := runDetail{Run: run}
	if detail.Results, err = database.GetStepResults(ctx, run.UUID); err != nil {
		fmt.Fprintf(os.Stderr, "Error querying step results: %v\n", err)
		os.Exit(1)
	}
	if detail.RootDisks, err = database.GetRootDisks(ctx, run.UUID); err != nil {
		fmt.Fprintf(os.Stderr, "Error querying root disks: %v\n", err)
		os.Exit(1)
	}

	if jsonOut {
		if err := printJSON(os.Stdout, detail); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding output: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Printf("Run:      %s\n", run.UUID)
	fmt.Printf("Node:     %s\n", run.Node)
	fmt.Printf("Managers: %s\n", run.Managers)
	fmt.Printf("Status:   %s\n", run.Status)
	fmt.Printf("Started:  %s\n", run.StartedAt.Format("2006-01-02 15:04:05"))
	if run.FinishedAt != nil {
		fmt.Printf("Finished: %s\n", run.FinishedAt.Format("2006-01-02 15:04:05"))
	}
	if run.Error != "" {
		fmt.Printf("Error:    %s\n", run.Error)
	}
	fmt.Println()
	printStepResults(os.Stdout, detail.Results)

	if len(detail.RootDisks) > 0 {
		fmt.Println()
		printDevices(os.Stdout, detail.RootDisks)
	}
}
