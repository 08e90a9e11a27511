// Package config loads actiscore settings from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/codeGROOVE-dev/actiscore/pkg/algorithm"
	"github.com/codeGROOVE-dev/actiscore/pkg/constants"
	"github.com/codeGROOVE-dev/actiscore/pkg/imputation"
	"github.com/codeGROOVE-dev/actiscore/pkg/nonwear"
	"github.com/codeGROOVE-dev/actiscore/pkg/pipeline"
	"github.com/codeGROOVE-dev/actiscore/pkg/sleepperiod"
	"github.com/codeGROOVE-dev/actiscore/pkg/sleepwake"
)

// NonwearDisabled as the nonwear id turns algorithm nonwear detection off.
const NonwearDisabled = "none"

// ErrInvalid is wrapped by Validate.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all settings.
type Config struct {
	Classifier     AlgorithmConfig   `yaml:"classifier"`
	Nonwear        AlgorithmConfig   `yaml:"nonwear"`
	PeriodDetector AlgorithmConfig   `yaml:"period_detector"`
	Cache          CacheConfig       `yaml:"cache"`
	Output         OutputConfig      `yaml:"output"`
	Timezone       string            `yaml:"timezone"`
	DiaryPath      string            `yaml:"diary"`
	Imputation     imputation.Config `yaml:"imputation"`
	EpochSeconds   float64           `yaml:"epoch_seconds"`
	Workers        int               `yaml:"workers"`
	InclusiveEnd   bool              `yaml:"inclusive_end"`
	PreferSensor   bool              `yaml:"prefer_sensor_nonwear"`
	UnionNonwear   bool              `yaml:"union_nonwear"`
}

// AlgorithmConfig names a registry entry and its parameters.
type AlgorithmConfig struct {
	Params algorithm.Params `yaml:"params,omitempty"`
	ID     string           `yaml:"id"`
}

// CacheConfig configures memoization.
type CacheConfig struct {
	Dir      string `yaml:"dir"`
	MaxMB    int    `yaml:"max_mb"`
	Disabled bool   `yaml:"disabled"`
}

// OutputConfig configures where records go.
type OutputConfig struct {
	// Path is a .csv or .xlsx export file.
	Path string `yaml:"path"`
	// Dialect is "sqlite" or "postgres"; empty disables the database.
	Dialect string `yaml:"dialect"`
	DSN     string `yaml:"dsn"`
}

// Default returns the reference configuration.
func Default() *Config {
	return &Config{
		Classifier:     AlgorithmConfig{ID: sleepwake.Registry.DefaultID()},
		Nonwear:        AlgorithmConfig{ID: nonwear.Registry.DefaultID()},
		PeriodDetector: AlgorithmConfig{ID: sleepperiod.Registry.DefaultID()},
		Cache:          CacheConfig{MaxMB: 256},
		Timezone:       "UTC",
		Imputation:     imputation.DefaultConfig(),
		EpochSeconds:   constants.DefaultEpochSeconds,
		Workers:        4,
		InclusiveEnd:   true,
		PreferSensor:   true,
	}
}

// Load reads path over the defaults and applies environment overrides. A
// missing file yields the defaults. envFile, when non-empty, is loaded into
// the process environment first; a missing env file is not an error.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading env file: %w", err)
		}
	}
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	str := map[string]*string{
		"ACTISCORE_CLASSIFIER":      &c.Classifier.ID,
		"ACTISCORE_NONWEAR":         &c.Nonwear.ID,
		"ACTISCORE_PERIOD_DETECTOR": &c.PeriodDetector.ID,
		"ACTISCORE_TIMEZONE":        &c.Timezone,
		"ACTISCORE_DIARY":           &c.DiaryPath,
		"ACTISCORE_CACHE_DIR":       &c.Cache.Dir,
		"ACTISCORE_OUTPUT":          &c.Output.Path,
		"ACTISCORE_DB_DIALECT":      &c.Output.Dialect,
		"ACTISCORE_DB_DSN":          &c.Output.DSN,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("ACTISCORE_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ACTISCORE_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v := os.Getenv("ACTISCORE_INCLUSIVE_END"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ACTISCORE_INCLUSIVE_END: %w", err)
		}
		c.InclusiveEnd = b
	}
	return nil
}

// Location resolves the timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Validate checks ids against the registries and basic ranges.
func (c *Config) Validate() error {
	var problems []string
	if c.Classifier.ID != "" && !sleepwake.Registry.Has(c.Classifier.ID) {
		problems = append(problems, fmt.Sprintf("unknown classifier %q", c.Classifier.ID))
	}
	if c.Nonwear.ID != "" && c.Nonwear.ID != NonwearDisabled && !nonwear.Registry.Has(c.Nonwear.ID) {
		problems = append(problems, fmt.Sprintf("unknown nonwear detector %q", c.Nonwear.ID))
	}
	if c.PeriodDetector.ID != "" && !sleepperiod.Registry.Has(c.PeriodDetector.ID) {
		problems = append(problems, fmt.Sprintf("unknown sleep period detector %q", c.PeriodDetector.ID))
	}
	if c.Workers < 1 {
		problems = append(problems, "workers must be at least 1")
	}
	if c.EpochSeconds <= 0 {
		problems = append(problems, "epoch_seconds must be positive")
	}
	if _, err := c.Location(); err != nil {
		problems = append(problems, fmt.Sprintf("timezone: %v", err))
	}
	switch c.Output.Dialect {
	case "", "sqlite", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("unknown database dialect %q", c.Output.Dialect))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// ScorerOptions builds the algorithm, timezone and window options for
// pipeline.New. Diary and cache are opened by the caller.
func (c *Config) ScorerOptions() ([]pipeline.Option, error) {
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}
	classifier, err := sleepwake.Registry.Create(c.Classifier.ID, c.Classifier.Params)
	if err != nil {
		return nil, err
	}
	detector, err := sleepperiod.Registry.Create(c.PeriodDetector.ID, withEpoch(c.PeriodDetector.Params, c.EpochSeconds))
	if err != nil {
		return nil, err
	}
	opts := []pipeline.Option{
		pipeline.WithClassifier(classifier),
		pipeline.WithPeriodDetector(detector),
		pipeline.WithLocation(loc),
		pipeline.WithInclusiveEnd(c.InclusiveEnd),
		pipeline.WithCombine(nonwear.CombineOptions{PreferSensor: c.PreferSensor, Union: c.UnionNonwear}),
	}
	if c.Nonwear.ID == NonwearDisabled {
		return append(opts, pipeline.WithoutNonwear()), nil
	}
	nw, err := nonwear.Registry.Create(c.Nonwear.ID, c.Nonwear.Params)
	if err != nil {
		return nil, err
	}
	return append(opts, pipeline.WithNonwear(nw)), nil
}

// withEpoch passes the configured epoch length to detectors that count
// epochs, unless the params already set it.
func withEpoch(p algorithm.Params, epochSeconds float64) algorithm.Params {
	out := algorithm.Params{}
	for k, v := range p {
		out[k] = v
	}
	if _, ok := out["epoch_seconds"]; !ok && epochSeconds > 0 {
		out["epoch_seconds"] = epochSeconds
	}
	return out
}
