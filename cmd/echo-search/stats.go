package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/untoldecay/RuneEcho/internal/config"
	"github.com/untoldecay/RuneEcho/internal/storage/sqlite"
	"github.com/untoldecay/RuneEcho/internal/types"
	"github.com/untoldecay/RuneEcho/internal/ui"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the echo store",
	Long:  "Show entry, access-log and semantic-group totals with per-layer and per-role breakdowns.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := setupEnv(); err != nil {
			return err
		}
		ctx := cmd.Context()

		store, err := sqlite.Open(ctx, config.DBPath())
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		stats, err := store.Stats(ctx)
		if err != nil {
			return err
		}

		if statsJSON {
			data, err := json.MarshalIndent(stats, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}
		if ui.IsTerminal() {
			fmt.Println(ui.RenderStatsReport(stats, config.DBPath(), ui.GetWidth()))
			return nil
		}
		printPlainStats(stats)
		return nil
	},
}

func printPlainStats(stats *types.Stats) {
	fmt.Printf("entries: %d\n", stats.TotalEntries)
	fmt.Printf("access rows: %d\n", stats.TotalAccess)
	fmt.Printf("semantic groups: %d\n", stats.TotalGroups)
	if stats.LastIndexed != "" {
		fmt.Printf("last indexed: %s\n", stats.LastIndexed)
	}
	for _, kv := range sortedCounts(stats.ByLayer) {
		fmt.Printf("layer %s: %d\n", kv.key, kv.n)
	}
	for _, kv := range sortedCounts(stats.ByRole) {
		fmt.Printf("role %s: %d\n", kv.key, kv.n)
	}
}

type countRow struct {
	key string
	n   int
}

func sortedCounts(m map[string]int) []countRow {
	rows := make([]countRow, 0, len(m))
	for k, n := range m {
		rows = append(rows, countRow{k, n})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].key < rows[j].key })
	return rows
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(statsCmd)
}
