package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/untoldecay/RuneEcho/internal/config"
	"github.com/untoldecay/RuneEcho/internal/indexer"
	"github.com/untoldecay/RuneEcho/internal/logging"
	"github.com/untoldecay/RuneEcho/internal/promote"
	"github.com/untoldecay/RuneEcho/internal/rpc"
	"github.com/untoldecay/RuneEcho/internal/storage/sqlite"
	"github.com/untoldecay/RuneEcho/internal/ui"
)

var reindexFlag bool

var rootCmd = &cobra.Command{
	Use:   "echo-search",
	Short: "Persistent echo memory for coding agents",
	Long: `echo-search indexes role-scoped MEMORY.md files into a SQLite FTS5
store and serves them over a stdio JSON-RPC tool protocol.

Without arguments it runs the tool server, reading newline-delimited
JSON-RPC requests on stdin and answering on stdout. With --reindex it
rebuilds the index once and exits.

Required environment: ECHO_DIR (root of the role directories) and
DB_PATH (SQLite database file).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.ConfigureColor()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := setupEnv(); err != nil {
			return err
		}
		if reindexFlag {
			return runReindexOnce(cmd.Context())
		}
		return runServer(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().BoolVar(&reindexFlag, "reindex", false, "rebuild the index from MEMORY.md files and exit")
}

// setupEnv validates the environment and wires the diagnostic log. All
// commands that touch the store go through here; a returned error is
// fatal with exit code 1.
func setupEnv() error {
	if err := config.Initialize(); err != nil {
		return err
	}
	logging.Setup(config.LogFile())
	return nil
}

// signalContext cancels on SIGINT/SIGTERM so the store closes cleanly.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runReindexOnce(parent context.Context) error {
	ctx, cancel := signalContext(parent)
	defer cancel()

	store, err := sqlite.Open(ctx, config.DBPath())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	if err := store.TrackBinaryVersion(ctx, Version); err != nil {
		logging.Warnf("version tracking failed: %v", err)
	}

	ix := indexer.New(store, config.EchoDir(), promote.New(store, config.EchoDir()))
	res, err := ix.Reindex(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Indexed %d entries from %d roles in %d ms\n", res.EntriesIndexed, len(res.Roles), res.TimeMS)
	if res.ObservationsPromoted > 0 {
		fmt.Printf("Promoted %d observations to inscribed\n", res.ObservationsPromoted)
	}
	if res.GroupsCreated > 0 {
		fmt.Printf("Computed %d semantic groups\n", res.GroupsCreated)
	}
	return nil
}

func runServer(parent context.Context) error {
	ctx, cancel := signalContext(parent)
	defer cancel()

	store, err := sqlite.Open(ctx, config.DBPath())
	if err != nil {
		return err
	}
	if err := store.TrackBinaryVersion(ctx, Version); err != nil {
		logging.Warnf("version tracking failed: %v", err)
	}

	rpc.ServerVersion = Version
	server := rpc.NewServer(store, config.DBPath(), config.EchoDir(), config.ConfigDir())
	defer func() { _ = server.Close() }()

	logging.Logf("echo-search %s serving on stdio (db=%s)", Version, config.DBPath())
	return server.Serve(ctx, os.Stdin, os.Stdout)
}
