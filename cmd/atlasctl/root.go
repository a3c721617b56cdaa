package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"Atlas/config"
	"Atlas/pkg/logger"
	"Atlas/storage/database"
)

// rootCmd 运维工具，直接连数据库，不经过 HTTP
var rootCmd = &cobra.Command{
	Use:   "atlasctl",
	Short: "Atlas operator tool",
	Long: `atlasctl runs maintenance tasks against the Atlas database:
minting development tokens, seeding users, reconciling forked counts
and running schema migrations.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd, userCmd, reconcileCmd, migrateCmd)
}

// openDatabase 初始化数据库，返回关闭函数
func openDatabase() (func(), error) {
	if err := database.Init(); err != nil {
		return nil, fmt.Errorf("connect database %s:%s: %w", config.Cfg.PostgreSQLHost, config.Cfg.PostgreSQLPort, err)
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = database.Close(ctx)
	}, nil
}
