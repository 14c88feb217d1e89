package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/frederic-klein/stackdist/internal/registry"
)

const (
	// EnvPrefix prefixes environment overrides, e.g. STACKDIST_REPOSITORY.
	EnvPrefix = "STACKDIST"
	// FileName is the config file searched for without --config.
	FileName = ".stackdist"
)

// Config holds the package index settings.
type Config struct {
	Repository string `mapstructure:"repository"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	Workers    int    `mapstructure:"workers"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Repository: registry.DefaultURL,
		Workers:    4,
	}
}

// Load merges defaults, the config file, STACKDIST_* environment variables,
// and any changed flags in flags, in increasing precedence. An explicit path
// must exist; otherwise .stackdist.yaml is looked up in the working directory
// and then the home directory.
func Load(path string, flags *pflag.FlagSet) (*Config, string, error) {
	v := viper.New()

	defaults := Default()
	v.SetDefault("repository", defaults.Repository)
	v.SetDefault("username", defaults.Username)
	v.SetDefault("password", defaults.Password)
	v.SetDefault("workers", defaults.Workers)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, "", fmt.Errorf("reading config: %w", err)
		}
	}

	if flags != nil {
		for _, key := range []string{"repository", "username", "password", "workers"} {
			if f := flags.Lookup(key); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, "", fmt.Errorf("binding flag %s: %w", key, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("parsing config: %w", err)
	}
	if cfg.Workers < 1 {
		return nil, "", fmt.Errorf("workers must be at least 1, got %d", cfg.Workers)
	}

	used := v.ConfigFileUsed()
	if used != "" {
		used = filepath.Clean(used)
	}
	return &cfg, used, nil
}
