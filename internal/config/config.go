// Package config loads the paperclipd daemon configuration from a TOML
// file, falling back to defaults when no file is present.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Limits   LimitsConfig   `toml:"limits"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type DatabaseConfig struct {
	// Path is the SQLite database file. ":memory:" keeps the ledger
	// in-process only.
	Path string `toml:"path"`
}

type LimitsConfig struct {
	// TxPerMinute caps signed transaction submissions per client IP.
	TxPerMinute int `toml:"tx_per_minute"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8420",
		},
		Database: DatabaseConfig{
			Path: "data/paperclip.db",
		},
		Limits: LimitsConfig{
			TxPerMinute: 60,
		},
	}
}

// Load reads the TOML config at path, layered over defaults. A missing
// file is not an error; the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Server.Addr == "" {
		return nil, fmt.Errorf("config %s: server.addr must not be empty", path)
	}
	if cfg.Limits.TxPerMinute <= 0 {
		return nil, fmt.Errorf("config %s: limits.tx_per_minute must be positive", path)
	}
	return cfg, nil
}
