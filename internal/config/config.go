// Package config loads and validates the simulation parameters: the engine
// resource directives from config.yaml plus the run controls supplied on the
// command line.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

const (
	DefaultTimeStep   = 1.0 // fs
	DefaultNumSteps   = 10000
	DefaultCommand    = "g16"
	DefaultTimeoutSec = 3600
	DefaultMaxRetries = 2
)

// Config carries everything a run needs. The yaml fields describe the engine
// invocation; the remaining fields are run controls set from flags.
type Config struct {
	Mem          string `yaml:"mem"`
	CPU          string `yaml:"cpu"`
	GPU          string `yaml:"gpu"`
	Checkpoint   string `yaml:"checkpoint"`
	KeyWords     string `yaml:"key_words"`
	Title        string `yaml:"title"`
	Charge       int    `yaml:"charge"`
	Multiplicity int    `yaml:"multiplicity"`

	Command    string  `yaml:"command"`
	TimeoutSec int     `yaml:"engine_timeout_sec"`
	MaxRetries int     `yaml:"max_retries"`
	InitTempK  float64 `yaml:"init_temp_k"`
	Seed       int64   `yaml:"seed"`
	Compress   bool    `yaml:"compress_trajectory"`

	TimeStep float64 `yaml:"-"`
	NumSteps int     `yaml:"-"`
	Freeze   []int   `yaml:"-"`
	Restart  bool    `yaml:"-"`
}

// Default returns a config with the documented defaults applied.
func Default() *Config {
	return &Config{
		Multiplicity: 1,
		Command:      DefaultCommand,
		TimeoutSec:   DefaultTimeoutSec,
		MaxRetries:   DefaultMaxRetries,
		TimeStep:     DefaultTimeStep,
		NumSteps:     DefaultNumSteps,
	}
}

// Load reads a yaml config file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations that cannot drive a trajectory. The
// keyword line must request force output: without it every step would fail
// at the parser instead, long after the engine burned its time.
func (c *Config) Validate() error {
	if c.TimeStep <= 0 {
		return fmt.Errorf("%w: time step must be positive, got %g", ErrInvalid, c.TimeStep)
	}
	if c.NumSteps <= 0 {
		return fmt.Errorf("%w: number of steps must be positive, got %d", ErrInvalid, c.NumSteps)
	}
	if c.KeyWords == "" {
		return fmt.Errorf("%w: key_words is required", ErrInvalid)
	}
	if !strings.Contains(strings.ToLower(c.KeyWords), "force") {
		return fmt.Errorf("%w: key_words %q does not request force output", ErrInvalid, c.KeyWords)
	}
	if c.Multiplicity < 1 {
		return fmt.Errorf("%w: multiplicity must be at least 1, got %d", ErrInvalid, c.Multiplicity)
	}
	if c.Command == "" {
		return fmt.Errorf("%w: engine command is empty", ErrInvalid)
	}
	if c.TimeoutSec <= 0 {
		return fmt.Errorf("%w: engine timeout must be positive, got %d", ErrInvalid, c.TimeoutSec)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max_retries must not be negative, got %d", ErrInvalid, c.MaxRetries)
	}
	if c.InitTempK < 0 {
		return fmt.Errorf("%w: init_temp_k must not be negative, got %g", ErrInvalid, c.InitTempK)
	}
	return nil
}

// Fingerprint identifies the structural parts of the configuration: the
// parts that must match for a checkpoint to be resumable. Fields like
// NumSteps or the engine command may change between runs without
// invalidating a checkpoint and are deliberately left out.
func (c *Config) Fingerprint() string {
	frozen := append([]int(nil), c.Freeze...)
	sort.Ints(frozen)
	canon := fmt.Sprintf("keywords=%s;charge=%d;mult=%d;dt=%.9g;freeze=%v",
		strings.TrimSpace(c.KeyWords), c.Charge, c.Multiplicity, c.TimeStep, frozen)
	sum := sha256.Sum256([]byte(canon))
	return hex.EncodeToString(sum[:])
}
