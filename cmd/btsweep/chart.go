package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/newthinker/btsweep/internal/report/chart"
	"github.com/newthinker/btsweep/internal/result"
	"github.com/newthinker/btsweep/internal/storage/sqlstore"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var chartOut string

var chartCmd = &cobra.Command{
	Use:   "chart [test_number]",
	Short: "Plot a stored scene from the results database",
	Long: `chart renders the dashboard and equity curve of one stored scene.
Without a test number it lists the test numbers in the database.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runChart,
}

func init() {
	chartCmd.Flags().StringVarP(&chartOut, "out", "o", ".", "output directory")
	rootCmd.AddCommand(chartCmd)
}

func runChart(cmd *cobra.Command, args []string) error {
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

	if len(args) == 0 {
		return listTestNumbers(cmd.Context(), cmd.OutOrStdout(), store)
	}
	testNumber := args[0]

	var tables []result.Table
	for _, name := range []string{result.TableOHLCV, result.TableTransaction, result.TableValue} {
		t, err := store.ReadTable(cmd.Context(), name, testNumber)
		if err != nil {
			log.Debug("table unavailable", zap.String("table", name), zap.Error(err))
			continue
		}
		tables = append(tables, t)
	}
	data := chart.FromTables(tables...)

	if err := os.MkdirAll(chartOut, 0755); err != nil {
		return err
	}
	html := filepath.Join(chartOut, testNumber+".html")
	f, err := os.Create(html)
	if err != nil {
		return err
	}
	if err := chart.RenderDashboard(f, data, fmt.Sprintf("%s %s", data.Symbol, testNumber)); err != nil {
		f.Close()
		os.Remove(html)
		return fmt.Errorf("test number %s: %w", testNumber, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), html)

	if len(data.Values) > 0 {
		png := filepath.Join(chartOut, testNumber+"-equity.png")
		if err := chart.SaveEquityPNG(png, data.Values); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), png)
	}
	return nil
}

func listTestNumbers(ctx context.Context, w io.Writer, store *sqlstore.Store) error {
	tns, err := store.TestNumbers(ctx)
	if err != nil {
		return err
	}
	for _, tn := range tns {
		fmt.Fprintln(w, tn)
	}
	return nil
}
