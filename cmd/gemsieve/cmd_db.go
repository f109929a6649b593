package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/gemsieve/gemsieve/internal/store"
)

var (
	dbReset   bool
	dbMigrate bool
	dbStats   bool
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database management: reset, migrate, or show row counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !dbReset && !dbMigrate && !dbStats {
			return cmd.Help()
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if dbReset {
			if err := store.Reset(a.db); err != nil {
				return err
			}
			fmt.Println("Database reset and initialized.")
			return nil
		}

		if dbMigrate {
			// openApp already migrates; this verb exists so scripts can
			// migrate explicitly without touching data.
			fmt.Println("Schema migrations applied.")
			return nil
		}

		counts, err := store.Stats(a.db)
		if err != nil {
			return err
		}
		tables := make([]string, 0, len(counts))
		for t := range counts {
			tables = append(tables, t)
		}
		sort.Strings(tables)
		fmt.Println("Table row counts:")
		for _, t := range tables {
			fmt.Printf("  %-30s %d\n", t, counts[t])
		}
		return nil
	},
}

func init() {
	dbCmd.Flags().BoolVar(&dbReset, "reset", false, "wipe and recreate the database")
	dbCmd.Flags().BoolVar(&dbMigrate, "migrate", false, "run pending schema migrations")
	dbCmd.Flags().BoolVar(&dbStats, "stats", false, "show row counts for all tables")
}
