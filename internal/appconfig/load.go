package appconfig

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load reads configuration from the provided path. If path is empty, uses
// DefaultConfigPath. A missing file yields defaults.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("gateway_url", cfg.GatewayURL)
	v.SetDefault("state_dir", cfg.StateDir)
	v.SetDefault("reconnect.initial_backoff_ms", cfg.Reconnect.InitialBackoffMillis)
	v.SetDefault("reconnect.max_backoff_ms", cfg.Reconnect.MaxBackoffMillis)
	v.SetDefault("reconnect.max_attempts", cfg.Reconnect.MaxAttempts)
	v.SetDefault("engine.max_outputs_per_cell", cfg.Engine.MaxOutputsPerCell)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return Config{}, err
			}
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WriteDefault writes the default configuration to path, refusing to
// overwrite an existing file.
func WriteDefault(path string) error {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return err
		}
		path = defaultPath
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	} else if !os.IsNotExist(err) {
		return err
	}
	cfg, err := DefaultConfig()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func validate(cfg Config) error {
	gateway := strings.TrimSpace(cfg.GatewayURL)
	if gateway == "" {
		return fmt.Errorf("gateway_url is required")
	}
	parsed, err := url.Parse(gateway)
	if err != nil {
		return fmt.Errorf("gateway_url is invalid: %w", err)
	}
	switch parsed.Scheme {
	case "ws", "wss":
	default:
		return fmt.Errorf("gateway_url must use ws or wss scheme, got %q", parsed.Scheme)
	}
	if cfg.Reconnect.InitialBackoffMillis <= 0 {
		return fmt.Errorf("reconnect.initial_backoff_ms must be positive")
	}
	if cfg.Reconnect.MaxBackoffMillis < cfg.Reconnect.InitialBackoffMillis {
		return fmt.Errorf("reconnect.max_backoff_ms must be >= reconnect.initial_backoff_ms")
	}
	if cfg.Reconnect.MaxAttempts <= 0 {
		return fmt.Errorf("reconnect.max_attempts must be positive")
	}
	if cfg.Engine.MaxOutputsPerCell <= 0 {
		return fmt.Errorf("engine.max_outputs_per_cell must be positive")
	}
	return nil
}
