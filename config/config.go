// Package config loads simtask settings from TOML or YAML files and applies
// SIMTASK_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fyh275905/sofa-sub006/core"
	"gopkg.in/yaml.v3"
)

// Config is the file representation of a simtask deployment.
type Config struct {
	Scheduler SchedulerConfig `toml:"scheduler" yaml:"scheduler"`
	Log       LogConfig       `toml:"log" yaml:"log"`
	Metrics   MetricsConfig   `toml:"metrics" yaml:"metrics"`
	Tracing   TracingConfig   `toml:"tracing" yaml:"tracing"`
}

// SchedulerConfig tunes the worker pool.
type SchedulerConfig struct {
	Name        string   `toml:"name" yaml:"name"`
	Threads     int      `toml:"threads" yaml:"threads"`
	Allocator   string   `toml:"allocator" yaml:"allocator"`
	SlabSize    int      `toml:"slab_size" yaml:"slab_size"`
	SpinCount   int      `toml:"spin_count" yaml:"spin_count"`
	StealRounds int      `toml:"steal_rounds" yaml:"steal_rounds"`
	WaitBackoff Duration `toml:"wait_backoff" yaml:"wait_backoff"`
	PinThreads  bool     `toml:"pin_threads" yaml:"pin_threads"`
}

// LogConfig selects the log backend.
type LogConfig struct {
	Level     string `toml:"level" yaml:"level"`
	Format    string `toml:"format" yaml:"format"`
	Prefix    string `toml:"prefix" yaml:"prefix"`
	Timestamp bool   `toml:"timestamp" yaml:"timestamp"`
}

// MetricsConfig controls the Prometheus exporter and diagnostics server.
type MetricsConfig struct {
	Addr         string   `toml:"addr" yaml:"addr"`
	Namespace    string   `toml:"namespace" yaml:"namespace"`
	PollInterval Duration `toml:"poll_interval" yaml:"poll_interval"`
}

// TracingConfig controls span export.
type TracingConfig struct {
	File        string `toml:"file" yaml:"file"`
	ServiceName string `toml:"service_name" yaml:"service_name"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	def := core.DefaultSchedulerConfig()
	return &Config{
		Scheduler: SchedulerConfig{
			Name:        def.Name,
			Allocator:   core.AllocatorHeap,
			SpinCount:   def.SpinCount,
			StealRounds: def.StealRounds,
			WaitBackoff: Duration{def.WaitBackoff},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
			Prefix: "simtask",
		},
		Metrics: MetricsConfig{
			Namespace:    "simtask",
			PollInterval: Duration{time.Second},
		},
		Tracing: TracingConfig{
			ServiceName: "simtask",
		},
	}
}

// Load reads path on top of the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.decodeFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decodeFile(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		md, err := toml.DecodeFile(path, c)
		if err != nil {
			return fmt.Errorf("config: decode %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("config: unknown keys in %s: %v", path, undecoded)
		}
		return nil
	case ".yaml", ".yml":
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("config: open %s: %w", path, err)
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(c); err != nil {
			return fmt.Errorf("config: decode %s: %w", path, err)
		}
		return nil
	default:
		return fmt.Errorf("config: unsupported file type %q", filepath.Ext(path))
	}
}

// Environment variables read by ApplyEnv.
const (
	EnvThreads     = "SIMTASK_THREADS"
	EnvAllocator   = "SIMTASK_ALLOCATOR"
	EnvSpinCount   = "SIMTASK_SPIN_COUNT"
	EnvLogLevel    = "SIMTASK_LOG_LEVEL"
	EnvLogFormat   = "SIMTASK_LOG_FORMAT"
	EnvMetricsAddr = "SIMTASK_METRICS_ADDR"
)

// ApplyEnv overrides settings from the environment. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvThreads); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvThreads, err)
		}
		c.Scheduler.Threads = n
	}
	if v, ok := lookup(EnvSpinCount); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvSpinCount, err)
		}
		c.Scheduler.SpinCount = n
	}
	if v, ok := lookup(EnvAllocator); ok {
		c.Scheduler.Allocator = v
	}
	if v, ok := lookup(EnvLogLevel); ok {
		c.Log.Level = v
	}
	if v, ok := lookup(EnvLogFormat); ok {
		c.Log.Format = v
	}
	if v, ok := lookup(EnvMetricsAddr); ok {
		c.Metrics.Addr = v
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Scheduler.Threads < 0 {
		errs = append(errs, fmt.Errorf("scheduler.threads must be >= 0, got %d", c.Scheduler.Threads))
	}
	if c.Scheduler.SpinCount < 0 {
		errs = append(errs, fmt.Errorf("scheduler.spin_count must be >= 0, got %d", c.Scheduler.SpinCount))
	}
	if c.Scheduler.StealRounds < 0 {
		errs = append(errs, fmt.Errorf("scheduler.steal_rounds must be >= 0, got %d", c.Scheduler.StealRounds))
	}
	if c.Scheduler.WaitBackoff.Duration < 0 {
		errs = append(errs, errors.New("scheduler.wait_backoff must not be negative"))
	}
	if _, err := core.NewAllocator(c.Scheduler.Allocator, c.Scheduler.SlabSize); err != nil {
		errs = append(errs, fmt.Errorf("scheduler.allocator: %w", err))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text, json or console, got %q", c.Log.Format))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	return nil
}

// SchedulerConfig converts the scheduler section into a core.SchedulerConfig.
// logger and metrics may be nil to keep the core defaults.
func (c *Config) SchedulerConfig(logger core.Logger, metrics core.Metrics) (*core.SchedulerConfig, error) {
	alloc, err := core.NewAllocator(c.Scheduler.Allocator, c.Scheduler.SlabSize)
	if err != nil {
		return nil, err
	}
	out := core.DefaultSchedulerConfig()
	if c.Scheduler.Name != "" {
		out.Name = c.Scheduler.Name
	}
	out.SpinCount = c.Scheduler.SpinCount
	out.StealRounds = c.Scheduler.StealRounds
	out.WaitBackoff = c.Scheduler.WaitBackoff.Duration
	out.PinThreads = c.Scheduler.PinThreads
	out.Allocator = alloc
	if logger != nil {
		out.Logger = logger
	}
	if metrics != nil {
		out.Metrics = metrics
	}
	return out, nil
}
