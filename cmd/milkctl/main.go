// milkctl - служебные команды: миграции, ручной прогон истечения, разбор подписки пользователя, сиды.
package main

import (
	"fmt"
	"os"

	"github.com/creative2126/milk-delivery-backend-sub001/database"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/config"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/logger"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	configPath string

	cfg *config.Config
	db  *gorm.DB
)

var rootCmd = &cobra.Command{
	Use:           "milkctl",
	Short:         "Maintenance commands for the milk subscription backend",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			if err := os.Setenv("CONFIG_PATH", configPath); err != nil {
				return err
			}
		}

		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		logger.Init(cfg.Server.Env)

		db, err = database.Open(cfg)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if db == nil {
			return
		}
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default: $CONFIG_PATH or config/config.yaml)")

	rootCmd.AddCommand(
		migrateCmd,
		expireCmd,
		inspectCmd,
		seedPlansCmd,
		createAdminCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
