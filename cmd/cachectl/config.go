package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// CacheSpec describes one cache alias to serve, as declared in a serve
// config file. Threshold/Interval of zero fall back to the command's
// --compaction-threshold/--compaction-interval flags.
type CacheSpec struct {
	Alias     string        `yaml:"alias"`
	Threshold int           `yaml:"compactionThreshold,omitempty"`
	Interval  time.Duration `yaml:"compactionInterval,omitempty"`
}

// ServeConfig is the YAML shape accepted by `serve --config`, an
// alternative to listing every `--cache` flag by hand.
type ServeConfig struct {
	Caches []CacheSpec `yaml:"caches"`
}

func loadServeConfig(path string) (ServeConfig, error) {
	var cfg ServeConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
