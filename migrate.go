package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"whatsapp-reminders/db"
)

// listOnly mostra le migration applicate senza applicarne di nuove
var listOnly bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Applica le migration dello schema MySQL",
	Long: `Applica le migration dello schema MySQL usando la sezione database
della configurazione. Le migration già applicate vengono saltate.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&listOnly, "list", false, "elenca le migration già applicate")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}

	store, err := db.NewMySQLStore(cfg.Database.GetDSN(), logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	if !listOnly {
		if err := store.ApplyMigrations(ctx); err != nil {
			return err
		}
	}

	applied, err := store.AppliedMigrations(ctx)
	if err != nil {
		return err
	}
	for _, m := range applied {
		fmt.Fprintf(cmd.OutOrStdout(), "%3d  %s\n", m.Version, m.Description)
	}
	return nil
}
