package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/yungbote/slidedeck-backend/internal/app"
	"github.com/yungbote/slidedeck-backend/internal/services"
)

var reconcileFlags struct {
	dropDangling  bool
	removeOrphans bool
	adoptOrphans  bool
	concurrency   int
	minAge        time.Duration
	asJSON        bool
	strict        bool
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Compare material records with material files on disk",
	Long: "Lists material records whose file is missing and material files that have no record.\n" +
		"Without flags nothing is changed.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		opts := services.ReconcileOptions{
			DropDanglingRecords: reconcileFlags.dropDangling,
			RemoveOrphanFiles:   reconcileFlags.removeOrphans,
			AdoptOrphanFiles:    reconcileFlags.adoptOrphans,
			MinOrphanAge:        reconcileFlags.minAge,
			Concurrency:         reconcileFlags.concurrency,
		}
		return withApp(func(a *app.App) error {
			report, err := a.Services.Reconciler.Run(cmd.Context(), opts)
			if report != nil {
				if perr := printReport(cmd.OutOrStdout(), report, reconcileFlags.asJSON); perr != nil {
					return perr
				}
			}
			if err != nil {
				return err
			}
			if reconcileFlags.strict && !report.Consistent() {
				return fmt.Errorf("store is inconsistent")
			}
			return nil
		})
	},
}

func printReport(w io.Writer, r *services.ReconcileReport, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	fmt.Fprintf(w, "records: %d\nfiles:   %d\n", r.Records, r.Files)
	fmt.Fprintf(w, "missing files (%d):\n", len(r.MissingFiles))
	for _, rel := range r.MissingFiles {
		fmt.Fprintf(w, "  %s\n", rel)
	}
	fmt.Fprintf(w, "orphan files (%d):\n", len(r.OrphanFiles))
	for _, rel := range r.OrphanFiles {
		fmt.Fprintf(w, "  %s\n", rel)
	}
	if len(r.RecentFiles) > 0 {
		fmt.Fprintf(w, "skipped recent files (%d):\n", len(r.RecentFiles))
		for _, rel := range r.RecentFiles {
			fmt.Fprintf(w, "  %s\n", rel)
		}
	}
	fmt.Fprintf(w, "dropped=%d removed=%d adopted=%d\n", r.DroppedRecords, r.RemovedFiles, r.AdoptedFiles)
	return nil
}

func init() {
	f := reconcileCmd.Flags()
	f.BoolVar(&reconcileFlags.dropDangling, "drop-dangling", false, "delete records whose file is missing")
	f.BoolVar(&reconcileFlags.removeOrphans, "remove-orphans", false, "delete material files that have no record")
	f.BoolVar(&reconcileFlags.adoptOrphans, "adopt-orphans", false, "create records for material files that have none")
	f.DurationVar(&reconcileFlags.minAge, "min-age", 5*time.Minute, "ignore files without a record that are younger than this")
	f.IntVar(&reconcileFlags.concurrency, "concurrency", 4, "parallel file operations")
	f.BoolVar(&reconcileFlags.asJSON, "json", false, "print the report as JSON")
	f.BoolVar(&reconcileFlags.strict, "strict", false, "exit non-zero when the store is inconsistent")
	reconcileCmd.MarkFlagsMutuallyExclusive("remove-orphans", "adopt-orphans")
	rootCmd.AddCommand(reconcileCmd)
}
