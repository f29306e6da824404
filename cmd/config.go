package cmd

import (
	"errors"

	"github.com/spf13/viper"

	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/matching"
	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/store"
)

type Config struct {
	Addr     string          `mapstructure:"addr"`
	Debug    bool            `mapstructure:"debug"`
	JSON     bool            `mapstructure:"json"`
	Store    *StoreConfig    `mapstructure:"store"`
	Redis    *RedisConfig    `mapstructure:"redis"`
	Auth     *AuthConfig     `mapstructure:"auth"`
	CORS     *CORSConfig     `mapstructure:"cors"`
	Matching *MatchingConfig `mapstructure:"matching"`
}

type StoreConfig struct {
	Driver     string `mapstructure:"driver"`
	DSN        string `mapstructure:"dsn"`
	SQLitePath string `mapstructure:"sqlite-path"`
}

type RedisConfig struct {
	Addr    string `mapstructure:"addr"`
	Channel string `mapstructure:"channel"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt-secret"`
}

type CORSConfig struct {
	Origins []string `mapstructure:"origins"`
}

type MatchingConfig struct {
	ScoreWorkers    int `mapstructure:"score-workers"`
	DefaultPageSize int `mapstructure:"default-page-size"`
}

func getConfig(v *viper.Viper) (*Config, error) {
	var config *Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if config == nil {
		return nil, errors.New("empty config")
	}
	if config.Store == nil {
		config.Store = &StoreConfig{}
	}
	if config.Redis == nil {
		config.Redis = &RedisConfig{}
	}
	if config.Auth == nil {
		config.Auth = &AuthConfig{}
	}
	if config.CORS == nil {
		config.CORS = &CORSConfig{}
	}
	if config.Matching == nil {
		config.Matching = &MatchingConfig{}
	}
	return config, nil
}

func (c *Config) storeOptions() store.Options {
	return store.Options{Driver: c.Store.Driver, DSN: c.Store.DSN, SQLitePath: c.Store.SQLitePath}
}

func (c *Config) engineConfig() matching.Config {
	return matching.Config{
		ScoreWorkers:    c.Matching.ScoreWorkers,
		DefaultPageSize: c.Matching.DefaultPageSize,
	}
}
