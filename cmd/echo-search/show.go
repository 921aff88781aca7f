package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/untoldecay/RuneEcho/internal/config"
	"github.com/untoldecay/RuneEcho/internal/storage/sqlite"
	"github.com/untoldecay/RuneEcho/internal/ui"
)

var showJSON bool

var showCmd = &cobra.Command{
	Use:   "show <id>...",
	Short: "Display echo entries by id",
	Long:  "Fetch entries by their 16-hex ids and render them with usage metadata (access count, group memberships, pending retry failures).",
	Args:  cobra.MinimumNArgs(1),
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

		entries, err := store.EntriesByIDs(ctx, args)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return fmt.Errorf("no entries found for the given ids")
		}

		counts, err := store.AccessCounts(ctx, args)
		if err != nil {
			return err
		}

		views := make([]ui.EntryView, 0, len(entries))
		for _, e := range entries {
			groupIDs, err := store.GroupIDsForEntries(ctx, []string{e.ID})
			if err != nil {
				return err
			}
			failures, err := store.FailureCount(ctx, e.ID)
			if err != nil {
				return err
			}
			views = append(views, ui.EntryView{
				Entry:       e,
				AccessCount: counts[e.ID],
				GroupIDs:    groupIDs,
				Failures:    failures,
			})
		}

		if showJSON {
			data, err := json.MarshalIndent(entries, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		for _, v := range views {
			if ui.IsTerminal() {
				fmt.Println(ui.RenderEntryBox(v))
				fmt.Println(ui.RenderMarkdown(v.Entry.Content))
				continue
			}
			fmt.Print(ui.PlainEntry(v))
		}
		return nil
	},
}

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "output raw entries as JSON")
	rootCmd.AddCommand(showCmd)
}
