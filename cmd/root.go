package cmd

import (
	"errors"
	"log"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/events"
)

const (
	app = "matchcore"
)

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "matchcore ranks candidates, records likes and passes and forms matches",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is matchcore.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("store-driver", "sqlite", "storage backend: postgres or sqlite")
	rootCmd.PersistentFlags().String("dsn", "", "postgres connection string [env: DATABASE_URL]")
	rootCmd.PersistentFlags().String("sqlite-path", "matchcore.db", "sqlite database file")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("store.driver", rootCmd.PersistentFlags().Lookup("store-driver"))
	viper.BindPFlag("store.dsn", rootCmd.PersistentFlags().Lookup("dsn"))
	viper.BindPFlag("store.sqlite-path", rootCmd.PersistentFlags().Lookup("sqlite-path"))

	setDefaults(viper.GetViper())
	if err := bindEnv(viper.GetViper()); err != nil {
		log.Fatalf("binding environment variables: %v", err)
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("redis.channel", events.DefaultChannel)
	v.SetDefault("cors.origins", []string{
		"http://localhost:5173", "http://127.0.0.1:5173",
		"http://localhost:3001", "http://127.0.0.1:3001",
	})
	v.SetDefault("matching.score-workers", 8)
	v.SetDefault("matching.default-page-size", 10)
}

// bindEnv maps MATCHCORE_* variables onto config keys and keeps the short
// names deployments already use.
func bindEnv(v *viper.Viper) error {
	replacer := strings.NewReplacer(".", "_", "-", "_")
	v.SetEnvPrefix("MATCHCORE")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	for key, env := range map[string]string{
		"store.dsn":       "DATABASE_URL",
		"redis.addr":      "REDIS_ADDR",
		"auth.jwt-secret": "JWT_SECRET",
	} {
		prefixed := "MATCHCORE_" + strings.ToUpper(replacer.Replace(key))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return err
		}
	}
	return nil
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// The config file is optional unless one was named explicitly.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}
