package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Mem = "4GB"
	cfg.CPU = "0-3"
	cfg.Checkpoint = "run.chk"
	cfg.KeyWords = "#P B3LYP/6-31G(d) Force"
	cfg.Title = "test run"
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.TimeStep != 1.0 {
		t.Errorf("default time step: got %f", cfg.TimeStep)
	}
	if cfg.NumSteps != 10000 {
		t.Errorf("default num steps: got %d", cfg.NumSteps)
	}
	if cfg.MaxRetries != 2 {
		t.Errorf("default retries: got %d", cfg.MaxRetries)
	}
	if cfg.TimeoutSec != 3600 {
		t.Errorf("default timeout: got %d", cfg.TimeoutSec)
	}
	if cfg.InitTempK != 0 {
		t.Error("initial velocities should default to zero temperature")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `mem: 8GB
cpu: 0-7
checkpoint: water.chk
key_words: "#P B3LYP/6-31G(d) Force"
title: water dynamics
charge: 0
multiplicity: 1
engine_timeout_sec: 600
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Mem != "8GB" {
		t.Errorf("mem: got %q", cfg.Mem)
	}
	if cfg.TimeoutSec != 600 {
		t.Errorf("timeout override: got %d", cfg.TimeoutSec)
	}
	// Untouched fields keep their defaults.
	if cfg.Command != "g16" {
		t.Errorf("command default: got %q", cfg.Command)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero time step", func(c *Config) { c.TimeStep = 0 }},
		{"negative steps", func(c *Config) { c.NumSteps = -1 }},
		{"missing keywords", func(c *Config) { c.KeyWords = "" }},
		{"no force directive", func(c *Config) { c.KeyWords = "#P B3LYP/6-31G(d)" }},
		{"zero multiplicity", func(c *Config) { c.Multiplicity = 0 }},
		{"empty command", func(c *Config) { c.Command = "" }},
		{"zero timeout", func(c *Config) { c.TimeoutSec = 0 }},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }},
		{"negative temperature", func(c *Config) { c.InitTempK = -10 }},
	}
	for _, tc := range cases {
		cfg := validConfig()
		tc.mutate(cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("%s: expected validation error", tc.name)
			continue
		}
		if !errors.Is(err, ErrInvalid) {
			t.Errorf("%s: error does not wrap ErrInvalid: %v", tc.name, err)
		}
	}
}

func TestFingerprintStability(t *testing.T) {
	a := validConfig()
	b := validConfig()
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("identical configs must fingerprint identically")
	}

	b.Freeze = []int{3, 1, 2}
	c := validConfig()
	c.Freeze = []int{1, 2, 3}
	if b.Fingerprint() != c.Fingerprint() {
		t.Error("freeze set order must not affect the fingerprint")
	}

	d := validConfig()
	d.TimeStep = 0.5
	if a.Fingerprint() == d.Fingerprint() {
		t.Error("changing the time step must change the fingerprint")
	}

	e := validConfig()
	e.NumSteps = 42
	if a.Fingerprint() != e.Fingerprint() {
		t.Error("step count must not affect the fingerprint")
	}
}
