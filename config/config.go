package config

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config is the engine configuration
type Config struct {
	Memory  MemoryConfig  `yaml:"memory"`
	Pool    PoolConfig    `yaml:"pool"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// MemoryConfig sizes the native linear memory, in 64 KiB pages.
type MemoryConfig struct {
	InitialPages uint32 `yaml:"initial_pages"`
	// MaxPages of 0 means the runtime limit (65536 pages = 4GB).
	MaxPages uint32 `yaml:"max_pages"`
}

// PoolConfig tunes the pool allocator
type PoolConfig struct {
	// MinBlockSize is the smallest block a pool takes from the allocator.
	// Must be a multiple of 4096.
	MinBlockSize uint32 `yaml:"min_block_size"`
}

// LogConfig selects the zap logger built for the engine
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
	Disabled    bool   `yaml:"disabled"`
}

// MetricsConfig controls prometheus collectors
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Memory: MemoryConfig{
			InitialPages: 1,
			MaxPages:     16384,
		},
		Pool: PoolConfig{
			MinBlockSize: 8192,
		},
		Log: LogConfig{
			Level:    "info",
			Disabled: true,
		},
		Metrics: MetricsConfig{
			Namespace: "nativecoll",
		},
	}
}

// Load reads a YAML configuration file on top of Default
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is chosen by the caller
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration on top of Default
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	content := substituteEnvVars(string(data))
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for inconsistent values
func (c *Config) Validate() error {
	if c.Memory.InitialPages == 0 {
		return fmt.Errorf("memory.initial_pages must be at least 1")
	}
	if c.Memory.InitialPages > 65536 || c.Memory.MaxPages > 65536 {
		return fmt.Errorf("memory pages exceed the 4GB address space")
	}
	if c.Memory.MaxPages != 0 && c.Memory.MaxPages < c.Memory.InitialPages {
		return fmt.Errorf("memory.max_pages (%d) below initial_pages (%d)", c.Memory.MaxPages, c.Memory.InitialPages)
	}
	if c.Pool.MinBlockSize == 0 || c.Pool.MinBlockSize%4096 != 0 {
		return fmt.Errorf("pool.min_block_size must be a positive multiple of 4096, got %d", c.Pool.MinBlockSize)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// Build creates the zap logger described by the configuration
func (l LogConfig) Build() (*zap.Logger, error) {
	if l.Disabled {
		return zap.NewNop(), nil
	}
	level, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}

	zcfg := zap.NewProductionConfig()
	if l.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	var b strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		b.WriteString(content[:start])
		b.WriteString(os.Getenv(content[start+2 : end]))
		content = content[end+1:]
	}
	b.WriteString(content)
	return b.String()
}
