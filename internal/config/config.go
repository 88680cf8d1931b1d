package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
)

type Config struct {
	Audio    AudioConfig `json:"audio"`
	LogLevel string      `json:"log_level"`
}

type AudioConfig struct {
	// Device is the capture source: "<name> (input)", "<name> (output)",
	// or "default".
	Device string `json:"device"`
	// ChunkSeconds bounds each recording chunk.
	ChunkSeconds int `json:"chunk_seconds"`
	// SampleFormat is the stream encoding: "f32", "i32", "i16" or "i8".
	SampleFormat string `json:"sample_format"`
}

// Load reads the config from disk or returns defaults
func Load() (*Config, error) {
	path := configPath()

	// Default config
	cfg := &Config{
		Audio: AudioConfig{
			Device:       "default",
			ChunkSeconds: 30,
			SampleFormat: "f32",
		},
		LogLevel: "info",
	}

	// Load existing config if it exists
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	path := configPath()

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// configPath returns the platform-specific config file path
func configPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.config"
		}
	}

	return filepath.Join(base, "audioscribe", "config.json")
}
