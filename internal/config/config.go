// Package config loads layered configuration: yaml file, then environment
// (MNEMO_ prefix), then command-line flags, later layers winning.
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config is the runtime configuration of the engine.
type Config struct {
	Addr                   string  `koanf:"addr"`
	DBPath                 string  `koanf:"db_path"`
	ReposDir               string  `koanf:"repos_dir"`
	CleanupIntervalMinutes int     `koanf:"cleanup_interval_minutes"`
	NewCardsPerDay         int     `koanf:"new_cards_per_day"`
	CardsPerSession        int     `koanf:"cards_per_session"`
	DesiredRetention       float64 `koanf:"desired_retention"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:                   ":8080",
		DBPath:                 "mnemo.db",
		ReposDir:               "repos",
		CleanupIntervalMinutes: 10,
		NewCardsPerDay:         20,
		CardsPerSession:        50,
		DesiredRetention:       0.9,
	}
}

// Load builds the configuration from an optional yaml file, environment
// variables, and the given flag set, in ascending precedence.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return cfg, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("MNEMO_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "MNEMO_"))
	}), nil); err != nil {
		return cfg, fmt.Errorf("loading env config: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return cfg, fmt.Errorf("loading flag config: %w", err)
		}
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshalling config: %w", err)
	}
	return cfg, nil
}
