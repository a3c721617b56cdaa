package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"Atlas/internal/schedule"
)

// reconcileCmd 手动触发一次 forked_count 对账
var reconcileCmd = &cobra.Command{
	Use:   "reconcile-forks",
	Short: "Recompute forked_count from the fork ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		closeDB, err := openDatabase()
		if err != nil {
			return err
		}
		defer closeDB()

		fixed, err := schedule.GetForkCountScheduler().Reconcile(context.Background())
		if err != nil {
			return err
		}

		if fixed == 0 {
			printSuccess("All forked counts are consistent")
			return nil
		}
		printWarning(fmt.Sprintf("Corrected forked_count on %d itineraries", fixed))
		return nil
	},
}
