package main

import (
	"fmt"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/untoldecay/RuneEcho/internal/config"
	"github.com/untoldecay/RuneEcho/internal/storage/sqlite"
)

var (
	pruneDays   int
	pruneBefore string
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove old access-log rows",
	Long: `Delete access-log rows older than a cutoff. The cutoff comes from
--days N (exact) or --before with a natural-language date such as
"yesterday" or "last friday". Aged retry failures are swept as well.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := setupEnv(); err != nil {
			return err
		}
		ctx := cmd.Context()

		cutoff, err := pruneCutoff(time.Now())
		if err != nil {
			return err
		}

		store, err := sqlite.Open(ctx, config.DBPath())
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		removed, err := store.PruneAccessBefore(ctx, cutoff)
		if err != nil {
			return err
		}
		failures, err := store.CleanupAgedFailures(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Removed %d access rows older than %s\n", removed, cutoff.UTC().Format("2006-01-02"))
		if failures > 0 {
			fmt.Printf("Removed %d aged retry failures\n", failures)
		}
		return nil
	},
}

// pruneCutoff resolves the --days / --before flags into a timestamp.
// Exactly one of the two must be given.
func pruneCutoff(now time.Time) (time.Time, error) {
	switch {
	case pruneDays > 0 && pruneBefore != "":
		return time.Time{}, fmt.Errorf("--days and --before are mutually exclusive")
	case pruneDays > 0:
		return now.AddDate(0, 0, -pruneDays), nil
	case pruneBefore != "":
		w := when.New(nil)
		w.Add(en.All...)
		w.Add(common.All...)
		r, err := w.Parse(pruneBefore, now)
		if err != nil {
			return time.Time{}, fmt.Errorf("cannot parse --before %q: %w", pruneBefore, err)
		}
		if r == nil {
			return time.Time{}, fmt.Errorf("cannot parse --before %q as a date", pruneBefore)
		}
		if !r.Time.Before(now) {
			return time.Time{}, fmt.Errorf("--before %q resolves to the future", pruneBefore)
		}
		return r.Time, nil
	default:
		return time.Time{}, fmt.Errorf("one of --days or --before is required")
	}
}

func init() {
	pruneCmd.Flags().IntVar(&pruneDays, "days", 0, "remove rows older than N days")
	pruneCmd.Flags().StringVar(&pruneBefore, "before", "", "remove rows older than a natural-language date")
	rootCmd.AddCommand(pruneCmd)
}
