package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Planner backend identifiers
const (
	PlannerOpenAI = "openai"
	PlannerClaude = "claude"
)

// PlannerConfig selects and configures the planner backend
type PlannerConfig struct {
	// Backend selects the planner implementation: "openai" or "claude"
	Backend string `yaml:"backend"`

	// Model is the model name requested from the backend
	Model string `yaml:"model"`

	// ClaudePath is the path to the claude CLI binary (backend=claude)
	ClaudePath string `yaml:"claude_path"`

	// Timeout is the maximum duration for a single planner call
	Timeout time.Duration `yaml:"-"`
}

// Config represents stagehand configuration options
type Config struct {
	// MaxReplanning bounds how many times a failed plan may be regenerated
	MaxReplanning int `yaml:"max_replanning"`

	// IntelligentValidation enables planner-backed plan review.
	// When false, every candidate plan is accepted as-is.
	IntelligentValidation bool `yaml:"intelligent_validation"`

	// AutoReplanning enables replanning after failed attempts.
	// When false, the replanning controller never recommends a replan.
	AutoReplanning bool `yaml:"auto_replanning"`

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogDir is the directory where run logs will be written
	LogDir string `yaml:"log_dir"`

	// HistoryPath is the path to the orchestration history database
	HistoryPath string `yaml:"history_path"`

	// SnapshotDir is the directory used for shell-step file snapshots
	SnapshotDir string `yaml:"snapshot_dir"`

	// ShellTimeout is the maximum execution time for shell tool commands
	ShellTimeout time.Duration `yaml:"-"`

	// Planner contains planner backend configuration
	Planner PlannerConfig `yaml:"planner"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		MaxReplanning:         5,
		IntelligentValidation: true,
		AutoReplanning:        true,
		LogLevel:              "info",
		LogDir:                ".stagehand/logs",
		HistoryPath:           ".stagehand/history.db",
		SnapshotDir:           ".stagehand/snapshots",
		ShellTimeout:          2 * time.Minute,
		Planner: PlannerConfig{
			Backend:    PlannerOpenAI,
			Model:      "gpt-4o-mini",
			ClaudePath: "claude",
			Timeout:    5 * time.Minute,
		},
	}
}

// LoadConfig loads configuration from the specified file path.
// If the file doesn't exist, returns default configuration without error.
// If the file exists but is malformed, returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Temporary struct so durations can be written as strings and
	// booleans can be distinguished from "not present".
	type plannerYAML struct {
		Backend    string `yaml:"backend"`
		Model      string `yaml:"model"`
		ClaudePath string `yaml:"claude_path"`
		Timeout    string `yaml:"timeout"`
	}
	type yamlConfig struct {
		MaxReplanning         *int        `yaml:"max_replanning"`
		IntelligentValidation *bool       `yaml:"intelligent_validation"`
		AutoReplanning        *bool       `yaml:"auto_replanning"`
		LogLevel              string      `yaml:"log_level"`
		LogDir                string      `yaml:"log_dir"`
		HistoryPath           string      `yaml:"history_path"`
		SnapshotDir           string      `yaml:"snapshot_dir"`
		ShellTimeout          string      `yaml:"shell_timeout"`
		Planner               plannerYAML `yaml:"planner"`
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if yamlCfg.MaxReplanning != nil {
		if *yamlCfg.MaxReplanning < 0 {
			return nil, fmt.Errorf("max_replanning cannot be negative: %d", *yamlCfg.MaxReplanning)
		}
		cfg.MaxReplanning = *yamlCfg.MaxReplanning
	}
	if yamlCfg.IntelligentValidation != nil {
		cfg.IntelligentValidation = *yamlCfg.IntelligentValidation
	}
	if yamlCfg.AutoReplanning != nil {
		cfg.AutoReplanning = *yamlCfg.AutoReplanning
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.LogDir != "" {
		cfg.LogDir = yamlCfg.LogDir
	}
	if yamlCfg.HistoryPath != "" {
		cfg.HistoryPath = yamlCfg.HistoryPath
	}
	if yamlCfg.SnapshotDir != "" {
		cfg.SnapshotDir = yamlCfg.SnapshotDir
	}
	if yamlCfg.ShellTimeout != "" {
		timeout, err := time.ParseDuration(yamlCfg.ShellTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid shell_timeout format %q: %w", yamlCfg.ShellTimeout, err)
		}
		cfg.ShellTimeout = timeout
	}
	if yamlCfg.Planner.Backend != "" {
		if yamlCfg.Planner.Backend != PlannerOpenAI && yamlCfg.Planner.Backend != PlannerClaude {
			return nil, fmt.Errorf("unknown planner backend %q", yamlCfg.Planner.Backend)
		}
		cfg.Planner.Backend = yamlCfg.Planner.Backend
	}
	if yamlCfg.Planner.Model != "" {
		cfg.Planner.Model = yamlCfg.Planner.Model
	}
	if yamlCfg.Planner.ClaudePath != "" {
		cfg.Planner.ClaudePath = yamlCfg.Planner.ClaudePath
	}
	if yamlCfg.Planner.Timeout != "" {
		timeout, err := time.ParseDuration(yamlCfg.Planner.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid planner timeout format %q: %w", yamlCfg.Planner.Timeout, err)
		}
		cfg.Planner.Timeout = timeout
	}

	return cfg, nil
}

// LoadConfigFromDir loads configuration from .stagehand/config.yaml in the
// specified directory. If the directory or file doesn't exist, returns
// default configuration without error.
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(filepath.Join(dir, ".stagehand", "config.yaml"))
}
