package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/l3aro/jflow/internal/log"
)

// Dir is the per-project and per-user configuration directory name.
const Dir = ".jflow"

// FileName is the configuration file inside Dir.
const FileName = "config.yaml"

// Config holds all configuration for jflow
type Config struct {
	// BinaryAnalysis resolves externally-compiled classes through the
	// catalogs on the classpath and the bytecode cache.
	BinaryAnalysis bool `yaml:"binary_analysis" env:"JFLOW_BINARY_ANALYSIS"`

	// Classpath lists YAML class catalogs describing compiled classes.
	Classpath []string `yaml:"classpath,omitempty" env:"JFLOW_CLASSPATH"`

	// CacheDir holds the bytecode cache and dirty-tracking state. Relative
	// paths are resolved against the project directory.
	CacheDir string `yaml:"cache_dir" env:"JFLOW_CACHE_DIR"`

	// BytecodeCacheFile is the persisted external facts file name in CacheDir.
	BytecodeCacheFile string `yaml:"bytecode_cache_file" env:"JFLOW_BYTECODE_CACHE_FILE"`

	// RecursionCap bounds the routines one side-effect query may visit.
	RecursionCap int `yaml:"recursion_cap" env:"JFLOW_RECURSION_CAP"`

	// MaxCachedGraphs bounds the in-memory graph memo; 0 means unbounded.
	MaxCachedGraphs int `yaml:"max_cached_graphs" env:"JFLOW_MAX_CACHED_GRAPHS"`

	// BasicBlocks groups CFG nodes into basic blocks after each build.
	BasicBlocks bool `yaml:"basic_blocks" env:"JFLOW_BASIC_BLOCKS"`

	// Logging
	LogLevel string `yaml:"log_level" env:"JFLOW_LOG_LEVEL"`
	Verbose  bool   `yaml:"verbose" env:"JFLOW_VERBOSE"`
	JSONLogs bool   `yaml:"json_logs" env:"JFLOW_JSON_LOGS"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BinaryAnalysis:    false,
		Classpath:         nil,
		CacheDir:          filepath.Join(Dir, "cache"),
		BytecodeCacheFile: "bytecode.msgpack",
		RecursionCap:      5000,
		MaxCachedGraphs:   0,
		BasicBlocks:       false,
		LogLevel:          "info",
		Verbose:           false,
		JSONLogs:          false,
	}
}

// globalConfigFilePath returns the global config file path (~/.jflow/config.yaml)
func globalConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(Dir, FileName)
	}
	return filepath.Join(home, Dir, FileName)
}

// ProjectConfigFilePath returns the project-level config file path.
func ProjectConfigFilePath(projectDir string) string {
	return filepath.Join(projectDir, Dir, FileName)
}

// Load reads configuration with the following priority (highest to lowest):
// 1. Environment variables
// 2. Project-level config (<projectDir>/.jflow/config.yaml)
// 3. Global config (~/.jflow/config.yaml)
// 4. Defaults
func Load(projectDir string) (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range []string{globalConfigFilePath(), ProjectConfigFilePath(projectDir)} {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile reads configuration from a specific YAML file path
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if data, err := os.ReadFile(path); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the specified YAML file path.
// It creates parent directories if they don't exist.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("JFLOW_BINARY_ANALYSIS"); v != "" {
		cfg.BinaryAnalysis = parseBool(v)
	}
	if v := os.Getenv("JFLOW_CLASSPATH"); v != "" {
		cfg.Classpath = filepath.SplitList(v)
	}
	if v := os.Getenv("JFLOW_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv("JFLOW_BYTECODE_CACHE_FILE"); v != "" {
		cfg.BytecodeCacheFile = v
	}
	if v := os.Getenv("JFLOW_RECURSION_CAP"); v != "" {
		if i := parseInt(v); i > 0 {
			cfg.RecursionCap = i
		}
	}
	if v := os.Getenv("JFLOW_MAX_CACHED_GRAPHS"); v != "" {
		if i := parseInt(v); i >= 0 {
			cfg.MaxCachedGraphs = i
		}
	}
	if v := os.Getenv("JFLOW_BASIC_BLOCKS"); v != "" {
		cfg.BasicBlocks = parseBool(v)
	}
	if v := os.Getenv("JFLOW_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("JFLOW_VERBOSE"); v != "" {
		cfg.Verbose = parseBool(v)
	}
	if v := os.Getenv("JFLOW_JSON_LOGS"); v != "" {
		cfg.JSONLogs = parseBool(v)
	}
}

// Validate checks that the configuration has valid required fields
func (c *Config) Validate() error {
	if c.RecursionCap <= 0 {
		return fmt.Errorf("recursion_cap must be positive")
	}
	if c.MaxCachedGraphs < 0 {
		return fmt.Errorf("max_cached_graphs must be non-negative")
	}
	if c.CacheDir == "" {
		return fmt.Errorf("cache_dir is required")
	}
	if c.BytecodeCacheFile == "" {
		return fmt.Errorf("bytecode_cache_file is required")
	}
	if strings.ContainsRune(c.BytecodeCacheFile, filepath.Separator) {
		return fmt.Errorf("bytecode_cache_file must be a file name, got %s", c.BytecodeCacheFile)
	}
	for i, p := range c.Classpath {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("classpath entry %d is empty", i)
		}
	}
	if c.LogLevel != "" {
		if _, err := log.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("invalid log_level: %s", c.LogLevel)
		}
	}
	return nil
}

// Level returns the effective log level; Verbose forces debug.
func (c *Config) Level() log.Level {
	if c.Verbose {
		return log.DebugLevel
	}
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// CachePath resolves the cache directory against projectDir.
func (c *Config) CachePath(projectDir string) string {
	if filepath.IsAbs(c.CacheDir) {
		return c.CacheDir
	}
	return filepath.Join(projectDir, c.CacheDir)
}

// BytecodeCachePath returns the full bytecode cache path for projectDir.
func (c *Config) BytecodeCachePath(projectDir string) string {
	return filepath.Join(c.CachePath(projectDir), c.BytecodeCacheFile)
}

// CatalogPaths resolves the classpath catalogs against projectDir.
func (c *Config) CatalogPaths(projectDir string) []string {
	out := make([]string, len(c.Classpath))
	for i, p := range c.Classpath {
		if filepath.IsAbs(p) {
			out[i] = p
		} else {
			out[i] = filepath.Join(projectDir, p)
		}
	}
	return out
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

// parseInt attempts to parse a string as int
func parseInt(s string) int {
	var i int
	if _, err := fmt.Sscanf(s, "%d", &i); err != nil {
		return -1
	}
	return i
}
