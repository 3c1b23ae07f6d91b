package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	redline "github.com/redlinehq/redline-go"
)

// Config holds CLI settings, loaded from YAML and overridable through
// environment variables and flags.
type Config struct {
	URL      string
	Mode     string
	Author   string
	LogLevel string
	CacheTTL time.Duration
}

// fileConfig is the on-disk YAML shape. Durations are parsed from
// strings like "12h".
type fileConfig struct {
	URL      string `yaml:"url"`
	Mode     string `yaml:"mode"`
	Author   string `yaml:"author"`
	LogLevel string `yaml:"log_level"`
	CacheTTL string `yaml:"cache_ttl"`
}

func defaultConfig() Config {
	return Config{
		Mode:     "editor",
		Author:   "Anonymous",
		LogLevel: "warn",
		CacheTTL: 12 * time.Hour,
	}
}

// defaultConfigPath returns the config file location, preferring
// REDLINE_CONFIG, then XDG_CONFIG_HOME, then ~/.config.
func defaultConfigPath() (string, error) {
	if path := os.Getenv("REDLINE_CONFIG"); path != "" {
		return path, nil
	}
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "redline", "config.yaml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "redline", "config.yaml"), nil
}

// loadConfig reads the config file at path, falling back to defaults
// when it does not exist, then applies environment overrides.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
		if fc.URL != "" {
			cfg.URL = fc.URL
		}
		if fc.Mode != "" {
			cfg.Mode = fc.Mode
		}
		if fc.Author != "" {
			cfg.Author = fc.Author
		}
		if fc.LogLevel != "" {
			cfg.LogLevel = fc.LogLevel
		}
		if fc.CacheTTL != "" {
			ttl, err := time.ParseDuration(fc.CacheTTL)
			if err != nil {
				return cfg, fmt.Errorf("parse cache_ttl %q: %w", fc.CacheTTL, err)
			}
			cfg.CacheTTL = ttl
		}
	}

	if v := os.Getenv("REDLINE_URL"); v != "" {
		cfg.URL = v
	}
	if v := os.Getenv("REDLINE_MODE"); v != "" {
		cfg.Mode = v
	}
	if v := os.Getenv("REDLINE_AUTHOR"); v != "" {
		cfg.Author = v
	}
	if v := os.Getenv("REDLINE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	return cfg, nil
}

func (c Config) mode() (redline.Mode, error) {
	switch c.Mode {
	case "editor", "":
		return redline.ModeEditor, nil
	case "commenter":
		return redline.ModeCommenter, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want editor or commenter)", c.Mode)
	}
}

func (c Config) logger() (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("parse log level %q: %w", c.LogLevel, err)
	}
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}
