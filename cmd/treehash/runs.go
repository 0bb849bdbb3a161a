package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bamsammich/treehash/internal/engine"
	"github.com/bamsammich/treehash/internal/manifest"
	"github.com/bamsammich/treehash/internal/ui"
)

var runsCmd = &cobra.Command{
	Use:   "runs --db FILE [--delete] [run-id]",
	Short: "List runs recorded with --db, print one run's digests, or delete a run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().String("db", "", "SQLite manifest written by --db")
	runsCmd.Flags().String("format", "sum", "output format for a single run (plain, sum or json)")
	runsCmd.Flags().Bool("delete", false, "delete the given run and its digests")
	_ = runsCmd.MarkFlagRequired("db") //nolint:errcheck // flag name is hardcoded
}

func runRuns(cmd *cobra.Command, args []string) error {
	dbPath, _ := cmd.Flags().GetString("db")     //nolint:errcheck // flag name is hardcoded
	fmtName, _ := cmd.Flags().GetString("format") //nolint:errcheck // flag name is hardcoded
	del, _ := cmd.Flags().GetBool("delete")       //nolint:errcheck // flag name is hardcoded

	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("manifest: %w", err)
	}
	store, err := manifest.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if del {
		if len(args) == 0 {
			return fmt.Errorf("--delete needs a run id")
		}
		return store.Delete(ctx, args[0])
	}
	if len(args) == 0 {
		return listRuns(ctx, cmd.OutOrStdout(), store)
	}

	format, err := ui.ParseFormat(fmtName)
	if err != nil {
		return err
	}
	runs, err := store.Runs(ctx)
	if err != nil {
		return err
	}
	algo := engine.SHA256
	for _, r := range runs {
		if r.ID == args[0] {
			algo = r.Algorithm
		}
	}
	digests, err := store.Digests(ctx, args[0])
	if err != nil {
		return err
	}
	return ui.NewResultWriter(cmd.OutOrStdout(), cmd.ErrOrStderr(), format, ui.DefaultStyles(), false).
		Write(algo, digests)
}

func listRuns(ctx context.Context, w io.Writer, store *manifest.Store) error {
	runs, err := store.Runs(ctx)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %s  %-6s  files %s  failed %d  %s\n",
			r.ID,
			r.Started.Local().Format("2006-01-02 15:04:05"),
			r.Algorithm,
			ui.FormatCount(int64(r.Files)),
			r.Failed,
			r.Root,
		)
	}
	return nil
}

// recordRun writes a finished run to the manifest at path.
func recordRun(path string, run manifest.Run, digests map[string]engine.HashResult) error {
	store, err := manifest.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Record(context.Background(), run, digests); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}
