package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"
)

// fileConfig is the optional TOML config file carrying endpoint defaults.
// Flags set on the command line win over file values.
type fileConfig struct {
	Broker string `toml:"broker"`
	IBPG   string `toml:"ib_pg"`
	PG     string `toml:"pg"`
	Models string `toml:"models"`
}

func loadConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return fileConfig{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// applyConfig copies file values into flag targets the user did not set.
func applyConfig(fs *pflag.FlagSet, cfg fileConfig, targets map[string]*string) {
	values := map[string]string{
		"broker": cfg.Broker,
		"ib-pg":  cfg.IBPG,
		"pg":     cfg.PG,
		"models": cfg.Models,
	}
	for name, target := range targets {
		if value := values[name]; value != "" && !fs.Changed(name) {
			*target = value
		}
	}
}

// modelsEnv names the environment variable pointing at the models root.
const modelsEnv = "OIDBS_MODELS"

// resolveModelsRoot picks the models root: explicit flag, then environment,
// then ./models.
func resolveModelsRoot(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(modelsEnv); env != "" {
		return env
	}
	return "models"
}
