package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/scribe/pkg/redact"
	"github.com/cuemby/scribe/pkg/types"
)

// Config is the full logging configuration, loadable from YAML with
// SCRIBE_* environment overrides on top.
type Config struct {
	Enabled    bool   `yaml:"enabled"`
	LogDir     string `yaml:"log_dir"`
	Level      string `yaml:"level"`
	Structured bool   `yaml:"structured"`

	LogFunctionCalls   bool `yaml:"log_function_calls"`
	LogVariableChanges bool `yaml:"log_variable_changes"`

	SlowRequestThresholdMs int `yaml:"slow_request_threshold_ms"`
	SlowQueryThresholdMs   int `yaml:"slow_query_threshold_ms"`
	SlowFuncThresholdMs    int `yaml:"slow_func_threshold_ms"`

	RotationMaxBytes    int64 `yaml:"rotation_max_bytes"`
	RotationBackupCount int   `yaml:"rotation_backup_count"`
	RotationCompress    bool  `yaml:"rotation_compress"`

	SampleIntervalSeconds int `yaml:"sample_interval_seconds"`
	StatsWindowMinutes    int `yaml:"stats_window_minutes"`

	Strict bool `yaml:"strict"`

	RedactionRules []RedactionRule `yaml:"redaction_rules"`
}

// RedactionRule is the YAML form of one extra redaction policy entry.
// Rules from configuration are evaluated before the built-in defaults.
type RedactionRule struct {
	Kind    string `yaml:"kind"`    // field_substring, field_pattern, content_pattern
	Pattern string `yaml:"pattern"`
	Action  string `yaml:"action"` // mask, placeholder, drop
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Enabled:                true,
		LogDir:                 "./logs",
		Level:                  "debug",
		Structured:             true,
		LogFunctionCalls:       true,
		LogVariableChanges:     false,
		SlowRequestThresholdMs: 1000,
		SlowQueryThresholdMs:   100,
		SlowFuncThresholdMs:    500,
		RotationMaxBytes:       10 * 1024 * 1024,
		RotationBackupCount:    5,
		RotationCompress:       true,
		SampleIntervalSeconds:  30,
		StatsWindowMinutes:     5,
	}
}

// Load reads YAML from path on top of the defaults, then applies
// environment overrides. An empty path loads defaults plus environment
// only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if _, err := cfg.ParsedLevel(); err != nil {
		return nil, err
	}
	if _, err := cfg.Rules(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv("SCRIBE_ENABLED"); ok {
		c.Enabled = v == "true" || v == "1"
	}
	if v, ok := os.LookupEnv("SCRIBE_LOG_DIR"); ok {
		c.LogDir = v
	}
	if v, ok := os.LookupEnv("SCRIBE_LEVEL"); ok {
		c.Level = v
	}
	if v, ok := os.LookupEnv("SCRIBE_STRICT"); ok {
		c.Strict = v == "true" || v == "1"
	}
	if v, ok := os.LookupEnv("SCRIBE_STRUCTURED"); ok {
		c.Structured = v == "true" || v == "1"
	}
	intEnv("SCRIBE_SLOW_REQUEST_THRESHOLD_MS", &c.SlowRequestThresholdMs)
	intEnv("SCRIBE_SLOW_QUERY_THRESHOLD_MS", &c.SlowQueryThresholdMs)
	intEnv("SCRIBE_SLOW_FUNC_THRESHOLD_MS", &c.SlowFuncThresholdMs)
	intEnv("SCRIBE_ROTATION_BACKUP_COUNT", &c.RotationBackupCount)
	intEnv("SCRIBE_SAMPLE_INTERVAL_SECONDS", &c.SampleIntervalSeconds)
	intEnv("SCRIBE_STATS_WINDOW_MINUTES", &c.StatsWindowMinutes)
	if v, ok := os.LookupEnv("SCRIBE_ROTATION_MAX_BYTES"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.RotationMaxBytes = n
		}
	}
}

func intEnv(name string, dst *int) {
	if v, ok := os.LookupEnv(name); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// ParsedLevel returns the minimum level implied by the Level string.
func (c *Config) ParsedLevel() (types.Level, error) {
	return types.ParseLevel(c.Level)
}

// Rules compiles the configured redaction rules followed by the
// built-in defaults.
func (c *Config) Rules() ([]redact.Rule, error) {
	var rules []redact.Rule
	for _, rr := range c.RedactionRules {
		rule, err := compileRule(rr)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return append(rules, redact.DefaultRules()...), nil
}

func compileRule(rr RedactionRule) (redact.Rule, error) {
	var action redact.Action
	switch rr.Action {
	case "mask", "":
		action = redact.ActionMask
	case "placeholder":
		action = redact.ActionPlaceholder
	case "drop":
		action = redact.ActionDrop
	default:
		return redact.Rule{}, fmt.Errorf("unknown redaction action %q", rr.Action)
	}

	switch rr.Kind {
	case "field_substring", "":
		return redact.FieldRule(rr.Pattern, action), nil
	case "field_pattern":
		return redact.FieldPatternRule(rr.Pattern, action)
	case "content_pattern":
		return redact.ContentRule(rr.Pattern, action)
	default:
		return redact.Rule{}, fmt.Errorf("unknown redaction rule kind %q", rr.Kind)
	}
}

// SlowRequestThreshold returns the request latency above which a
// request is reported as slow.
func (c *Config) SlowRequestThreshold() time.Duration {
	return time.Duration(c.SlowRequestThresholdMs) * time.Millisecond
}

// SlowQueryThreshold returns the query latency above which a query is
// reported as slow.
func (c *Config) SlowQueryThreshold() time.Duration {
	return time.Duration(c.SlowQueryThresholdMs) * time.Millisecond
}

// SlowFuncThreshold returns the default threshold for wrapped
// functions without one of their own.
func (c *Config) SlowFuncThreshold() time.Duration {
	return time.Duration(c.SlowFuncThresholdMs) * time.Millisecond
}

// SampleInterval returns the resource sampler period.
func (c *Config) SampleInterval() time.Duration {
	return time.Duration(c.SampleIntervalSeconds) * time.Second
}

// StatsWindow returns the period between performance summaries.
func (c *Config) StatsWindow() time.Duration {
	return time.Duration(c.StatsWindowMinutes) * time.Minute
}
