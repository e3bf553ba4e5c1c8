// Package config loads Parley client configuration.
//
// config.go - configuration types, defaults, and loading
//
// Configuration is read from a JSONC file (comments tolerated). Every
// field has a default so a missing file yields a usable configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ServerConfig holds backend endpoint settings.
type ServerConfig struct {
	// StreamURL is the request/response streaming endpoint (one POST per turn).
	StreamURL string `json:"stream_url"`
	// LiveURL is the persistent bidirectional stream endpoint.
	LiveURL string `json:"live_url"`
}

// TransportConfig holds settings shared by both transports.
type TransportConfig struct {
	// MaxHistoryTurns bounds the history included in outgoing payloads.
	// Older turns are dropped (and the drop logged), never reordered.
	MaxHistoryTurns int `json:"max_history_turns"`
	// SoftPayloadBytes triggers a warning when exceeded.
	SoftPayloadBytes int `json:"soft_payload_bytes"`
	// HardPayloadBytes triggers an error log when exceeded. The send
	// still proceeds; the threshold is advisory.
	HardPayloadBytes int `json:"hard_payload_bytes"`
	// PingIntervalSeconds is the persistent-stream heartbeat interval.
	PingIntervalSeconds int `json:"ping_interval_seconds"`
}

// HistoryConfig holds conversation persistence settings.
type HistoryConfig struct {
	DataDir       string `json:"data_dir"`
	RetentionDays int    `json:"retention_days"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Dir  string `json:"dir"`
	JSON bool   `json:"json"`
}

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Transport TransportConfig `json:"transport"`
	History   HistoryConfig   `json:"history"`
	Log       LogConfig       `json:"log"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			StreamURL: "http://127.0.0.1:8080/api/chat",
			LiveURL:   "ws://127.0.0.1:8080/api/chat/live",
		},
		Transport: TransportConfig{
			MaxHistoryTurns:     50,
			SoftPayloadBytes:    256 * 1024,
			HardPayloadBytes:    1024 * 1024,
			PingIntervalSeconds: 30,
		},
		History: HistoryConfig{
			DataDir:       defaultDataDir(),
			RetentionDays: 30,
		},
		Log: LogConfig{
			Dir:  "",
			JSON: false,
		},
	}
}

// Load reads configuration from path, applying defaults for any missing
// fields. A missing file is not an error; defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := json.Unmarshal(stripComments(data), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Transport.MaxHistoryTurns <= 0 {
		return fmt.Errorf("max_history_turns must be positive, got %d", c.Transport.MaxHistoryTurns)
	}
	if c.Transport.HardPayloadBytes < c.Transport.SoftPayloadBytes {
		return fmt.Errorf("hard_payload_bytes (%d) below soft_payload_bytes (%d)",
			c.Transport.HardPayloadBytes, c.Transport.SoftPayloadBytes)
	}
	if c.Transport.PingIntervalSeconds <= 0 {
		return fmt.Errorf("ping_interval_seconds must be positive, got %d", c.Transport.PingIntervalSeconds)
	}
	return nil
}

// PingInterval returns the heartbeat interval as a duration.
func (c *Config) PingInterval() time.Duration {
	return time.Duration(c.Transport.PingIntervalSeconds) * time.Second
}

// Retention returns the history retention window as a duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.History.RetentionDays) * 24 * time.Hour
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".parley"
	}
	return home + "/.parley"
}
