// Command gemsieve is the mailbox-mining CLI: ingest a mailbox, run the
// pipeline stages, inspect gems, and serve the admin portal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "gemsieve",
	Short: "Mailbox intelligence pipeline — extract gems from your inbox",
	Long: `GemSieve mines a mailbox for commercial opportunities.

Messages flow through a staged pipeline: ingest, metadata, content,
entities, AI classification, profiling with gem detection, and scoring.
Each verb drives one piece of that pipeline; 'run --all-stages' drives
the whole thing and 'web' serves the admin portal on top of it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (default: $GEMSIEVE_CONFIG, ./config.yaml, ~/.config/gemsieve/config.yaml)")

	rootCmd.AddCommand(
		ingestCmd,
		parseCmd,
		classifyCmd,
		overrideCmd,
		overridesCmd,
		profileCmd,
		gemsCmd,
		generateCmd,
		relationshipCmd,
		relationshipsCmd,
		statsCmd,
		exportCmd,
		dbCmd,
		runCmd,
		webCmd,
	)
}
