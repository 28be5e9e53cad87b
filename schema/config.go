package schema

import "errors"

// DefaultMaxOutputsPerCell caps the output list length for one cell.
const DefaultMaxOutputsPerCell = 1000

// EngineConfig controls engine behavior.
type EngineConfig struct {
	// MaxOutputsPerCell caps a cell's output list during one execution.
	MaxOutputsPerCell int
}

// NormalizeEngineConfig applies defaults and validates the config.
func NormalizeEngineConfig(cfg EngineConfig) (EngineConfig, error) {
	if cfg.MaxOutputsPerCell == 0 {
		cfg.MaxOutputsPerCell = DefaultMaxOutputsPerCell
	}
	if cfg.MaxOutputsPerCell < 0 {
		return EngineConfig{}, errors.New("max outputs per cell must be positive")
	}
	return cfg, nil
}
