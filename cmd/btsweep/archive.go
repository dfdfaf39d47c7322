package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/newthinker/btsweep/internal/core"
	"github.com/newthinker/btsweep/internal/storage/archive"
	"github.com/spf13/cobra"
)

var archiveOut string

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Browse archived result files",
	Long:  `Commands for the archive configured under storage.archive (localfs or s3).`,
}

var archiveLsCmd = &cobra.Command{
	Use:   "ls [prefix]",
	Short: "List archived files",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runArchiveLs,
}

var archiveGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Download an archived file",
	Args:  cobra.ExactArgs(1),
	RunE:  runArchiveGet,
}

var archiveRmCmd = &cobra.Command{
	Use:   "rm <key>...",
	Short: "Delete archived files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runArchiveRm,
}

func init() {
	archiveGetCmd.Flags().StringVarP(&archiveOut, "out", "o", "", "output file (default stdout)")

	archiveCmd.AddCommand(archiveLsCmd, archiveGetCmd, archiveRmCmd)
	rootCmd.AddCommand(archiveCmd)
}

// openArchive returns the configured archive, failing when archiving is off.
func openArchive() (archive.Storage, func(), error) {
	cfg, log, err := setup()
	done := func() { log.Sync() }
	if err != nil {
		return nil, done, err
	}
	store, err := archive.New(cfg.Storage.Archive)
	if err != nil {
		return nil, done, err
	}
	if store == nil {
		return nil, done, core.WrapError(core.ErrConfigMissing, fmt.Errorf("storage.archive.type is not set"))
	}
	return store, done, nil
}

func runArchiveLs(cmd *cobra.Command, args []string) error {
	store, done, err := openArchive()
	defer done()
	if err != nil {
		return err
	}
	prefix := ""
	if len(args) == 1 {
		prefix = args[0]
	}
	return listArchive(cmd.Context(), cmd.OutOrStdout(), store, prefix)
}

func listArchive(ctx context.Context, w io.Writer, store archive.Storage, prefix string) error {
	keys, err := store.List(ctx, prefix)
	if err != nil {
		return err
	}
	for _, k := range keys {
		fmt.Fprintln(w, k)
	}
	return nil
}

func runArchiveGet(cmd *cobra.Command, args []string) error {
	store, done, err := openArchive()
	defer done()
	if err != nil {
		return err
	}
	data, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	if archiveOut == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	return os.WriteFile(archiveOut, data, 0644)
}

func runArchiveRm(cmd *cobra.Command, args []string) error {
	store, done, err := openArchive()
	defer done()
	if err != nil {
		return err
	}
	return removeArchived(cmd.Context(), cmd.OutOrStdout(), store, args)
}

// removeArchived deletes keys, refusing keys that do not exist.
func removeArchived(ctx context.Context, w io.Writer, store archive.Storage, keys []string) error {
	for _, k := range keys {
		ok, err := store.Exists(ctx, k)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%s: %w", k, archive.ErrNotFound)
		}
		if err := store.Delete(ctx, k); err != nil {
			return err
		}
		fmt.Fprintf(w, "deleted %s\n", k)
	}
	return nil
}
