package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// config is both the command line and the optional YAML workload profile.
// Values present in the profile override the flags.
type config struct {
	Entries   int           `help:"Number of synthetic files." default:"10000" yaml:"entries"`
	CacheSize int           `help:"Cache capacity in entries." default:"1000" yaml:"cache_size"`
	Duration  time.Duration `help:"How long to run." default:"10s" yaml:"duration"`
	Parallel  int           `help:"Concurrent requesters (0 = GOMAXPROCS)." default:"0" yaml:"parallel"`
	FileSize  int           `help:"Size of each file in bytes." default:"4096" yaml:"file_size"`
	Seed      int64         `help:"Random seed (0 = time based)." default:"0" yaml:"seed"`
	Dir       string        `help:"Directory for the files (default: a fresh temp dir)." yaml:"dir"`

	Profile     string `help:"YAML workload profile." type:"path" yaml:"-"`
	MetricsAddr string `help:"Serve Prometheus metrics at addr (e.g. :8080); empty = disabled." yaml:"metrics_addr"`
	LogLevel    string `help:"Log level." enum:"debug,info,warn,error" default:"info" yaml:"log_level"`
}

// loadProfile merges the YAML profile, if any, into cfg.
func (cfg *config) loadProfile() error {
	if cfg.Profile == "" {
		return nil
	}
	b, err := os.ReadFile(cfg.Profile)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("profile %s: %w", cfg.Profile, err)
	}
	return nil
}

// normalize fills derived defaults and rejects unusable values.
func (cfg *config) normalize() error {
	if cfg.Parallel <= 0 {
		cfg.Parallel = runtime.GOMAXPROCS(0)
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	switch {
	case cfg.Entries <= 0:
		return fmt.Errorf("entries must be positive, got %d", cfg.Entries)
	case cfg.CacheSize <= 0:
		return fmt.Errorf("cache size must be positive, got %d", cfg.CacheSize)
	case cfg.FileSize <= 0:
		return fmt.Errorf("file size must be positive, got %d", cfg.FileSize)
	case cfg.Duration <= 0:
		return fmt.Errorf("duration must be positive, got %v", cfg.Duration)
	}
	return nil
}
