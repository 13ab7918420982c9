package config

import (
	env "github.com/caarlos0/env/v11"
)

// applyEnv layers environment overrides over the file config. Only fields
// carrying an env tag participate; everything else keeps its file value.
func applyEnv(cfg *Config) error {
	return env.Parse(cfg)
}
