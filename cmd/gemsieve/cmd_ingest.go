package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gemsieve/gemsieve/internal/ingest"
	"github.com/gemsieve/gemsieve/internal/mailbox"
)

var (
	ingestQuery string
	ingestSync  bool
	ingestAppnd bool
	ingestMbox  string
	ingestUser  string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest messages from the mailbox (stage 0)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()

		var provider mailbox.Provider
		if ingestMbox != "" {
			provider = mailbox.NewMboxProvider(ingestMbox, ingestUser)
			fmt.Printf("Reading mbox file: %s\n", ingestMbox)
		} else {
			fmt.Println("Authenticating with Gmail...")
			gp, err := mailbox.NewGmailProvider(ctx, a.cfg.Gmail.CredentialsFile, a.cfg.Gmail.TokenFile)
			if err != nil {
				return err
			}
			fmt.Printf("Authenticated as: %s\n", gp.UserEmail())
			provider = gp
		}

		engine := ingest.NewSyncEngine(provider, a.repos.Messages)
		query := ingestQuery
		if query == "" {
			query = a.cfg.Gmail.DefaultQuery
		}

		if ingestSync {
			fmt.Println("Running incremental sync...")
			stored, err := engine.Sync(ctx, query)
			if err != nil {
				return err
			}
			fmt.Printf("Sync complete: %d new messages.\n", stored)
			return nil
		}

		fmt.Printf("Full sync with query: %s\n", query)
		stored, err := engine.FullSync(ctx, query)
		if err != nil {
			return err
		}
		fmt.Printf("Ingestion complete: %d new messages stored.\n", stored)
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestQuery, "query", "q", "", "mailbox search query")
	ingestCmd.Flags().BoolVar(&ingestSync, "sync", false, "run incremental sync (falls back to full on expired history)")
	ingestCmd.Flags().BoolVar(&ingestAppnd, "append", false, "append to existing data (already-ingested messages are always skipped)")
	ingestCmd.Flags().StringVar(&ingestMbox, "mbox", "", "ingest from a local mbox file instead of Gmail")
	ingestCmd.Flags().StringVar(&ingestUser, "user", "", "your own address, for sent-by-user detection with --mbox")
}
