// Package config loads the daemon configuration from a TOML file with
// environment overrides. Every field has a usable default, so portsided
// starts with no file at all.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/portsidehq/portside/internal/compose"
	"github.com/portsidehq/portside/internal/envflag"
)

// DefaultListen is where the daemon serves its API unless told
// otherwise.
const DefaultListen = "127.0.0.1:7333"

// Config is the persisted portsided configuration.
type Config struct {
	Listen    string          `toml:"listen"`
	StatePath string          `toml:"state_path"`
	Docker    DockerConfig    `toml:"docker"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// DockerConfig controls how the container runtime CLI is invoked.
type DockerConfig struct {
	Bin         string `toml:"bin"`
	LogTail     int    `toml:"log_tail"`
	LocalDomain string `toml:"local_domain"`
}

// TelemetryConfig toggles the OTEL exporters. Both default to off.
type TelemetryConfig struct {
	Metrics bool `toml:"metrics"`
	Traces  bool `toml:"traces"`
}

// Default returns the configuration used when no file and no overrides
// are present.
func Default() Config {
	return Config{
		Listen:    DefaultListen,
		StatePath: defaultStatePath(),
		Docker: DockerConfig{
			Bin:         compose.DefaultBin,
			LogTail:     compose.DefaultLogTail,
			LocalDomain: "orb.local",
		},
	}
}

// Load reads the TOML file at path (or the default location when path
// is empty), fills in defaults, and applies PORTSIDE_* environment
// overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = defaultConfigPath()
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// Defaults stand.
	default:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.fillDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("PORTSIDE_LISTEN")); v != "" {
		c.Listen = v
	}
	if v := strings.TrimSpace(os.Getenv("PORTSIDE_STATE_PATH")); v != "" {
		c.StatePath = v
	}
	if v := strings.TrimSpace(os.Getenv("PORTSIDE_DOCKER_BIN")); v != "" {
		c.Docker.Bin = v
	}
	if v := strings.TrimSpace(os.Getenv("PORTSIDE_LOCAL_DOMAIN")); v != "" {
		c.Docker.LocalDomain = v
	}
	if v := strings.TrimSpace(os.Getenv("PORTSIDE_LOG_TAIL")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Docker.LogTail = n
		}
	}
	if v, ok := os.LookupEnv("PORTSIDE_OTEL_METRICS"); ok {
		c.Telemetry.Metrics = envflag.IsTruthy(v)
	}
	if v, ok := os.LookupEnv("PORTSIDE_OTEL_TRACES"); ok {
		c.Telemetry.Traces = envflag.IsTruthy(v)
	}
}

func (c *Config) fillDefaults() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.StatePath == "" {
		c.StatePath = defaultStatePath()
	}
	if c.Docker.Bin == "" {
		c.Docker.Bin = compose.DefaultBin
	}
	if c.Docker.LogTail <= 0 {
		c.Docker.LogTail = compose.DefaultLogTail
	}
}

func baseDir() string {
	base, err := os.UserConfigDir()
	if err != nil || strings.TrimSpace(base) == "" {
		return filepath.Join(os.TempDir(), "portside")
	}
	return filepath.Join(base, "portside")
}

func defaultConfigPath() string {
	return filepath.Join(baseDir(), "config.toml")
}

func defaultStatePath() string {
	return filepath.Join(baseDir(), "attempts.json")
}
