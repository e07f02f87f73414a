// Package config loads mpgserve settings from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// DevelopmentEnv turns on debug logging and template hot reload.
const DevelopmentEnv = "development"

type Config struct {
	HTTP struct {
		Port           int           `yaml:"port"`
		Timeout        time.Duration `yaml:"timeout"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
	} `yaml:"http"`
	Model struct {
		Path string `yaml:"path"`
		// Name selects the registry row when Path is a SQLite database.
		Name string `yaml:"name"`
	} `yaml:"model"`
	Log struct {
		Level      string `yaml:"level"`
		Format     string `yaml:"format"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"log"`
	App struct {
		Env               string `yaml:"env"`
		Language          string `yaml:"language"`
		TemplatesDir      string `yaml:"templates_dir"`
		FragmentCacheSize int    `yaml:"fragment_cache_size"`
	} `yaml:"app"`
}

// Default is the stock deployment: port 5000, the artifact next to
// the binary, English UI.
func Default() *Config {
	var c Config
	c.HTTP.Port = 5000
	c.HTTP.Timeout = 30 * time.Second
	c.HTTP.AllowedOrigins = []string{"*"}
	c.Model.Path = "model_mpg_weight.json"
	c.Model.Name = "mpg_weight"
	c.Log.Level = "info"
	c.Log.Format = "console"
	c.Log.MaxSizeMB = 50
	c.Log.MaxBackups = 3
	c.Log.MaxAgeDays = 28
	c.App.Env = "production"
	c.App.Language = "en"
	c.App.FragmentCacheSize = 256
	return &c
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		file, err := os.Open(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			defer file.Close()
			// An empty or comment-only file decodes to io.EOF: no overrides.
			if err := yaml.NewDecoder(file).Decode(config); err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	if err := config.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.HTTP.Port = port
	}
	if v, ok := lookup("APP_ENV"); ok && v != "" {
		c.App.Env = v
	}
	if v, ok := lookup("MODEL_PATH"); ok && v != "" {
		c.Model.Path = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port %d out of range", c.HTTP.Port)
	}
	if c.HTTP.Timeout <= 0 {
		return errors.New("http.timeout must be positive")
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format %q, want console or json", c.Log.Format)
	}
	if c.App.FragmentCacheSize < 0 {
		return errors.New("app.fragment_cache_size must not be negative")
	}
	return nil
}

// Debug reports whether the process runs in development mode.
func (c *Config) Debug() bool {
	return c.App.Env == DevelopmentEnv
}
