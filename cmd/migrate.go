package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/logger"
	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return migrate(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

// migrate opens the store, which applies pending migrations for either driver.
func migrate(ctx context.Context) error {
	log, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		return fmt.Errorf("creating a logger: %w", err)
	}
	defer log.Sync()

	config, err := getConfig(viper.GetViper())
	if err != nil {
		return fmt.Errorf("getting a config: %w", err)
	}

	backend, err := store.Open(ctx, config.storeOptions())
	if err != nil {
		return fmt.Errorf("migrating %s store: %w", config.Store.Driver, err)
	}
	defer backend.Close()

	log.Info("schema is up to date", zap.String("store", config.Store.Driver))
	return nil
}
