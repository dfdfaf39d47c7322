package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/newthinker/btsweep/internal/storage/sqlstore"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var batchesCmd = &cobra.Command{
	Use:   "batches",
	Short: "List the sweeps recorded in the results database",
	RunE:  runBatches,
}

func init() {
	rootCmd.AddCommand(batchesCmd)
}

func runBatches(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	defer log.Sync()
	if err != nil {
		return err
	}

	store, err := sqlstore.Open(cfg.Storage.DBPath, log)
	if err != nil {
		return err
	}
	defer store.Close()

	batches, err := store.Batches(cmd.Context())
	if err != nil {
		return err
	}
	printBatches(cmd.OutOrStdout(), batches)
	return nil
}

// printBatches renders batches newest first.
func printBatches(w io.Writer, batches []sqlstore.Batch) {
	if len(batches) == 0 {
		fmt.Fprintln(w, "No batches recorded.")
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"batch", "runtime", "started", "scenes", "completed", "with trades", "failed", "final value", "elapsed"})
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, b := range batches {
		table.Append([]string{
			b.Name, b.Runtime, b.StartedAt.Local().Format(time.DateTime),
			strconv.Itoa(b.Scenes), strconv.Itoa(b.Completed), strconv.Itoa(b.WithTrades),
			strconv.Itoa(b.Failed), strconv.FormatFloat(b.FinalValue, 'f', 2, 64),
			b.Elapsed.Round(time.Millisecond).String(),
		})
	}
	table.Render()
}
