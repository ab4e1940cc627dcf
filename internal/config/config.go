// Package config provides layered configuration loading.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/frontend-bootcamp/reqstate/internal/request"
)

// MemoryDataFile selects an in-memory store that is discarded on exit.
const MemoryDataFile = ":memory:"

// Config holds the resolved configuration.
type Config struct {
	// Store settings
	DataFile    string  `json:"data_file" yaml:"data_file"`
	Latency     string  `json:"latency,omitempty" yaml:"latency,omitempty"`
	FailureRate float64 `json:"failure_rate" yaml:"failure_rate"`

	// Request settings
	Timeout       string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	FailurePolicy string `json:"failure_policy" yaml:"failure_policy"`
	FreshTTL      string `json:"fresh_ttl" yaml:"fresh_ttl"`

	// Output settings
	Format string `json:"format" yaml:"format"`

	// Behavior preferences (overridable by flags)
	Stats   *bool `json:"stats,omitempty" yaml:"stats,omitempty"`
	Verbose *int  `json:"verbose,omitempty" yaml:"verbose,omitempty"`

	// Sources tracks where each value came from (for debugging).
	Sources map[string]string `json:"-" yaml:"-"`
}

// Source indicates where a config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceGlobal  Source = "global"
	SourceLocal   Source = "local"
	SourceEnv     Source = "env"
	SourceFlag    Source = "flag"
)

// FlagOverrides holds command-line flag values. Zero values mean "not set".
type FlagOverrides struct {
	DataFile       string
	Latency        string
	FailureRate    *float64
	Timeout        string
	ClearOnFailure bool
	Format         string
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		DataFile:      filepath.Join(stateDir(), "data.json"),
		FailurePolicy: request.RetainData.String(),
		FreshTTL:      "30s",
		Format:        "auto",
		Sources:       make(map[string]string),
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence: flags > env > local > global > defaults
func Load(overrides FlagOverrides) (*Config, error) {
	cfg := Default()

	for _, path := range candidates(GlobalConfigDir()) {
		loadFromFile(cfg, path, SourceGlobal)
	}
	if dir, err := os.Getwd(); err == nil {
		for _, path := range candidates(filepath.Join(dir, ".reqstate")) {
			loadFromFile(cfg, path, SourceLocal)
		}
	}

	LoadFromEnv(cfg)
	ApplyOverrides(cfg, overrides)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// candidates lists the config files looked up in dir, JSON before YAML so a
// YAML file in the same directory wins.
func candidates(dir string) []string {
	return []string{
		filepath.Join(dir, "config.json"),
		filepath.Join(dir, "config.yaml"),
		filepath.Join(dir, "config.yml"),
	}
}

func loadFromFile(cfg *Config, path string, source Source) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: Path is from trusted config locations
	if err != nil {
		return // File doesn't exist, skip
	}

	var fileCfg map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fileCfg)
	default:
		err = json.Unmarshal(data, &fileCfg)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: skipping malformed config at %s: %v\n", path, err)
		return
	}

	set := func(key string) { cfg.Sources[key] = string(source) }

	if v, ok := fileCfg["data_file"].(string); ok && v != "" {
		cfg.DataFile = expandHome(v)
		set("data_file")
	}
	if v := getStringOrNumber(fileCfg, "latency"); v != "" {
		cfg.Latency = v
		set("latency")
	}
	if v, ok := number(fileCfg["failure_rate"]); ok {
		cfg.FailureRate = v
		set("failure_rate")
	}
	if v := getStringOrNumber(fileCfg, "timeout"); v != "" {
		cfg.Timeout = v
		set("timeout")
	}
	if v, ok := fileCfg["failure_policy"].(string); ok && v != "" {
		cfg.FailurePolicy = v
		set("failure_policy")
	}
	if v := getStringOrNumber(fileCfg, "fresh_ttl"); v != "" {
		cfg.FreshTTL = v
		set("fresh_ttl")
	}
	if v, ok := fileCfg["format"].(string); ok && v != "" {
		cfg.Format = v
		set("format")
	}
	if v, ok := fileCfg["stats"].(bool); ok {
		cfg.Stats = &v
		set("stats")
	}
	if fv, ok := number(fileCfg["verbose"]); ok {
		iv := int(fv)
		if iv >= 0 && iv <= 2 && fv == float64(iv) {
			cfg.Verbose = &iv
			set("verbose")
		}
	}
}

// LoadFromEnv loads configuration from REQSTATE_* environment variables.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("REQSTATE_DATA_FILE"); v != "" {
		cfg.DataFile = expandHome(v)
		cfg.Sources["data_file"] = string(SourceEnv)
	}
	if v := os.Getenv("REQSTATE_LATENCY"); v != "" {
		cfg.Latency = v
		cfg.Sources["latency"] = string(SourceEnv)
	}
	if v := os.Getenv("REQSTATE_FAILURE_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.FailureRate = f
			cfg.Sources["failure_rate"] = string(SourceEnv)
		}
	}
	if v := os.Getenv("REQSTATE_TIMEOUT"); v != "" {
		cfg.Timeout = v
		cfg.Sources["timeout"] = string(SourceEnv)
	}
	if v := os.Getenv("REQSTATE_FAILURE_POLICY"); v != "" {
		cfg.FailurePolicy = v
		cfg.Sources["failure_policy"] = string(SourceEnv)
	}
	if v := os.Getenv("REQSTATE_STATS"); v != "" {
		if b, ok := parseEnvBool(v); ok {
			cfg.Stats = &b
			cfg.Sources["stats"] = string(SourceEnv)
		}
	}
}

// parseEnvBool parses a boolean environment variable strictly.
// Returns (value, true) for recognized values, (false, false) for unrecognized.
// Unrecognized values are ignored to preserve three-state pointer semantics.
func parseEnvBool(v string) (bool, bool) {
	switch strings.ToLower(v) {
	case "true", "1":
		return true, true
	case "false", "0":
		return false, true
	default:
		return false, false
	}
}

// number accepts the numeric types JSON and YAML decoders produce.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// getStringOrNumber extracts a value that may be either a string or a bare
// number. Bare numbers are read as milliseconds.
func getStringOrNumber(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	if n, ok := number(v); ok {
		return strconv.FormatInt(int64(n), 10) + "ms"
	}
	return ""
}

// ApplyOverrides applies non-empty flag overrides to cfg.
func ApplyOverrides(cfg *Config, o FlagOverrides) {
	if o.DataFile != "" {
		cfg.DataFile = o.DataFile
		cfg.Sources["data_file"] = string(SourceFlag)
	}
	if o.Latency != "" {
		cfg.Latency = o.Latency
		cfg.Sources["latency"] = string(SourceFlag)
	}
	if o.FailureRate != nil {
		cfg.FailureRate = *o.FailureRate
		cfg.Sources["failure_rate"] = string(SourceFlag)
	}
	if o.Timeout != "" {
		cfg.Timeout = o.Timeout
		cfg.Sources["timeout"] = string(SourceFlag)
	}
	if o.ClearOnFailure {
		cfg.FailurePolicy = request.ClearData.String()
		cfg.Sources["failure_policy"] = string(SourceFlag)
	}
	if o.Format != "" {
		cfg.Format = o.Format
		cfg.Sources["format"] = string(SourceFlag)
	}
}

// Validate checks that durations parse and rates are in range.
func (cfg *Config) Validate() error {
	for key, v := range map[string]string{"latency": cfg.Latency, "timeout": cfg.Timeout, "fresh_ttl": cfg.FreshTTL} {
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err != nil || d < 0 {
			return fmt.Errorf("invalid %s %q: want a duration like 500ms", key, v)
		}
	}
	if cfg.FailureRate < 0 || cfg.FailureRate > 1 {
		return fmt.Errorf("invalid failure_rate %v: want a value between 0 and 1", cfg.FailureRate)
	}
	if _, err := parsePolicy(cfg.FailurePolicy); err != nil {
		return err
	}
	return nil
}

// LatencyDuration returns the configured uniform latency. ok is false when
// no latency is configured and the store's per-operation defaults apply.
func (cfg *Config) LatencyDuration() (d time.Duration, ok bool) {
	if cfg.Latency == "" {
		return 0, false
	}
	d, err := time.ParseDuration(cfg.Latency)
	return d, err == nil
}

// TimeoutDuration returns the request timeout, zero when unset.
func (cfg *Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(cfg.Timeout)
	return d
}

// FreshTTLDuration returns how long fetched data stays fresh.
func (cfg *Config) FreshTTLDuration() time.Duration {
	d, _ := time.ParseDuration(cfg.FreshTTL)
	return d
}

// Policy returns the failure policy for request containers.
func (cfg *Config) Policy() request.FailurePolicy {
	p, _ := parsePolicy(cfg.FailurePolicy)
	return p
}

// InMemory reports whether the store should not be persisted.
func (cfg *Config) InMemory() bool {
	return cfg.DataFile == "" || cfg.DataFile == MemoryDataFile
}

func parsePolicy(s string) (request.FailurePolicy, error) {
	switch strings.ToLower(s) {
	case "", "retain":
		return request.RetainData, nil
	case "clear":
		return request.ClearData, nil
	default:
		return request.RetainData, fmt.Errorf("invalid failure_policy %q: want retain or clear", s)
	}
}

// Path helpers

// GlobalConfigDir returns the global config directory path.
func GlobalConfigDir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "reqstate")
}

func stateDir() string {
	dir := os.Getenv("XDG_STATE_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(dir, "reqstate")
}

func expandHome(path string) string {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
	}
	return path
}
