package main

import (
	"github.com/spf13/cobra"

	"Atlas/storage/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update database tables",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		closeDB, err := openDatabase()
		if err != nil {
			return err
		}
		defer closeDB()

		if err := database.Migrate(); err != nil {
			return err
		}
		printSuccess("Migration completed")
		return nil
	},
}
