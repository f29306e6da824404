package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/logger"
	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/matching"
	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/seed"
	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/store"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill the store with deterministic demo profiles",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runSeed(cmd)
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)

	defaults := seed.DefaultConfig()
	seedCmd.Flags().Int("count", defaults.Count, "number of profiles to create")
	seedCmd.Flags().Int64("seed", defaults.Seed, "RNG seed (deterministic)")
	seedCmd.Flags().Float64("like-rate", defaults.LikeRate, "chance that a user likes another (0..1)")
	seedCmd.Flags().Float64("pass-rate", defaults.PassRate, "chance that a user passes on another (0..1)")
}

func runSeed(cmd *cobra.Command) error {
	log, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		return fmt.Errorf("creating a logger: %w", err)
	}
	defer log.Sync()

	config, err := getConfig(viper.GetViper())
	if err != nil {
		return fmt.Errorf("getting a config: %w", err)
	}

	var cfg seed.Config
	flags := cmd.Flags()
	if cfg.Count, err = flags.GetInt("count"); err != nil {
		return err
	}
	if cfg.Seed, err = flags.GetInt64("seed"); err != nil {
		return err
	}
	if cfg.LikeRate, err = flags.GetFloat64("like-rate"); err != nil {
		return err
	}
	if cfg.PassRate, err = flags.GetFloat64("pass-rate"); err != nil {
		return err
	}

	ctx := cmd.Context()
	backend, err := store.Open(ctx, config.storeOptions())
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer backend.Close()

	// No publisher: seeded matches don't open conversations until a user does.
	engine := matching.NewEngine(backend, backend, nil, log, config.engineConfig())
	_, err = seed.Run(ctx, backend, engine, cfg, log)
	return err
}
