// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package config

import "time"

// Config is the root configuration for a relaywire process. It is loaded
// from YAML with environment-variable overlays; see Load.
type Config struct {
	Environment string `yaml:"environment"`

	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	Relay      RelayConfig      `yaml:"relay"`
	SRP        SRPConfig        `yaml:"srp"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ServerConfig controls the direct WebSocket listener.
type ServerConfig struct {
	BindAddr          string        `yaml:"bind_addr"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
	WriteQueueSize    int           `yaml:"write_queue_size"`
	SubscriptionRetention time.Duration `yaml:"subscription_retention"`
}

// StoreConfig selects and configures the credential/session backends.
type StoreConfig struct {
	// Backend is "memory" or "postgres".
	Backend         string        `yaml:"backend"`
	JournalDir      string        `yaml:"journal_dir"`
	PostgresDSN     string        `yaml:"postgres_dsn"`
	SessionTTL      time.Duration `yaml:"session_ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// RelayConfig controls the pair server.
type RelayConfig struct {
	BindAddr        string        `yaml:"bind_addr"`
	PairTimeout     time.Duration `yaml:"pair_timeout"`
	RateLimitPerSec float64       `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int           `yaml:"rate_limit_burst"`
}

// SRPConfig controls the SRP-6a engine's parameters.
type SRPConfig struct {
	// GroupBits selects the RFC 5054 group; only 2048 is currently wired.
	GroupBits int `yaml:"group_bits"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MetricsConfig controls the Prometheus HTTP endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	BindAddr string `yaml:"bind_addr"`
}

// setDefaults fills zero-valued fields with the process defaults.
func setDefaults(cfg *Config) {
	if cfg.Server.BindAddr == "" {
		cfg.Server.BindAddr = ":8443"
	}
	if cfg.Server.HandshakeTimeout == 0 {
		cfg.Server.HandshakeTimeout = 30 * time.Second
	}
	if cfg.Server.WriteQueueSize == 0 {
		cfg.Server.WriteQueueSize = 256
	}
	if cfg.Server.SubscriptionRetention == 0 {
		cfg.Server.SubscriptionRetention = time.Hour
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "memory"
	}
	if cfg.Store.JournalDir == "" {
		cfg.Store.JournalDir = "./data"
	}
	if cfg.Store.SessionTTL == 0 {
		cfg.Store.SessionTTL = 24 * time.Hour
	}
	if cfg.Store.CleanupInterval == 0 {
		cfg.Store.CleanupInterval = 5 * time.Minute
	}
	if cfg.Relay.BindAddr == "" {
		cfg.Relay.BindAddr = ":8444"
	}
	if cfg.Relay.PairTimeout == 0 {
		cfg.Relay.PairTimeout = 15 * time.Second
	}
	if cfg.Relay.RateLimitPerSec == 0 {
		cfg.Relay.RateLimitPerSec = 64 * 1024 // bytes/sec
	}
	if cfg.Relay.RateLimitBurst == 0 {
		cfg.Relay.RateLimitBurst = 256 * 1024
	}
	if cfg.SRP.GroupBits == 0 {
		cfg.SRP.GroupBits = 2048
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Metrics.BindAddr == "" {
		cfg.Metrics.BindAddr = ":9090"
	}
}

// ValidationIssue describes one configuration problem found by Validate.
type ValidationIssue struct {
	Field   string
	Message string
	Level   string // "error" or "warning"
}

// Validate checks cfg for values that would make the process unable to
// start, returning zero or more issues. Only "error"-level issues are
// fatal to Load.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	if cfg.Store.Backend != "memory" && cfg.Store.Backend != "postgres" {
		issues = append(issues, ValidationIssue{
			Field:   "store.backend",
			Message: "must be \"memory\" or \"postgres\"",
			Level:   "error",
		})
	}
	if cfg.Store.Backend == "postgres" && cfg.Store.PostgresDSN == "" {
		issues = append(issues, ValidationIssue{
			Field:   "store.postgres_dsn",
			Message: "required when store.backend is \"postgres\"",
			Level:   "error",
		})
	}
	if cfg.SRP.GroupBits != 2048 {
		issues = append(issues, ValidationIssue{
			Field:   "srp.group_bits",
			Message: "only the 2048-bit RFC 5054 group is implemented",
			Level:   "error",
		})
	}
	return issues
}
