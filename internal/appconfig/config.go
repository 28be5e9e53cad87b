package appconfig

import (
	"os"
	"path/filepath"

	"github.com/DannyMang/more-compute-sub000/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int             `mapstructure:"config_version" yaml:"config_version"`
	GatewayURL    string          `mapstructure:"gateway_url" yaml:"gateway_url"`
	StateDir      string          `mapstructure:"state_dir" yaml:"state_dir"`
	Reconnect     ReconnectConfig `mapstructure:"reconnect" yaml:"reconnect"`
	Engine        EngineConfig    `mapstructure:"engine" yaml:"engine"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// ReconnectConfig controls the connection manager's retry policy.
type ReconnectConfig struct {
	InitialBackoffMillis int `mapstructure:"initial_backoff_ms" yaml:"initial_backoff_ms"`
	MaxBackoffMillis     int `mapstructure:"max_backoff_ms" yaml:"max_backoff_ms"`
	MaxAttempts          int `mapstructure:"max_attempts" yaml:"max_attempts"`
}

// EngineConfig controls engine limits.
type EngineConfig struct {
	MaxOutputsPerCell int `mapstructure:"max_outputs_per_cell" yaml:"max_outputs_per_cell"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		GatewayURL:    "ws://127.0.0.1:8000/ws",
		StateDir:      filepath.Join(home, ".morecompute", "state"),
		Reconnect: ReconnectConfig{
			InitialBackoffMillis: 1000,
			MaxBackoffMillis:     30000,
			MaxAttempts:          5,
		},
		Engine: EngineConfig{
			MaxOutputsPerCell: schema.DefaultMaxOutputsPerCell,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".morecompute", "config.yaml"), nil
}
