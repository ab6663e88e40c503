// Package config loads and saves gymtrack's configuration.
//
// Config is stored at $XDG_CONFIG_HOME/gymtrack/config.yaml (defaults to
// ~/.config/gymtrack/config.yaml), or wherever GYMTRACK_CONFIG points.
// Every load and save is checked against an embedded CUE schema.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/google/renameio"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

const envConfig = "GYMTRACK_CONFIG"

// Duration is a time.Duration written as "90s", "1m" in YAML.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// MarshalJSON writes d in the same form as YAML.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config holds every tunable of the gymtrack binary.
type Config struct {
	Database string `yaml:"database" json:"database"`
	Driver   string `yaml:"driver" json:"driver"`

	GranularityMinutes int `yaml:"granularity_minutes" json:"granularity_minutes"`
	MaxMinutes         int `yaml:"max_minutes" json:"max_minutes"`

	TickInterval Duration `yaml:"tick_interval" json:"tick_interval"`
	LeaseTTL     Duration `yaml:"lease_ttl" json:"lease_ttl"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// AdminRecipients receive maintenance reports.
	AdminRecipients []string `yaml:"admin_recipients" json:"admin_recipients"`

	// NTPServer, when set, is queried at serve start-up to warn about
	// clock skew; reservation windows depend on the host clock.
	NTPServer string `yaml:"ntp_server,omitempty" json:"ntp_server,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Database:           filepath.Join(dataDir(), "gymtrack.db"),
		Driver:             "sqlite3",
		GranularityMinutes: 15,
		MaxMinutes:         180,
		TickInterval:       Duration(time.Minute),
		LeaseTTL:           Duration(3 * time.Minute),
		LogLevel:           "info",
		AdminRecipients:    []string{},
	}
}

// Path returns the config file location. GYMTRACK_CONFIG wins, then
// XDG_CONFIG_HOME, falling back to ~/.config/gymtrack/config.yaml.
func Path() string {
	if p := strings.TrimSpace(os.Getenv(envConfig)); p != "" {
		return p
	}
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".config", "gymtrack", "config.yaml")
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "gymtrack", "config.yaml")
}

func dataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "gymtrack")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "gymtrack")
}

// Load reads the config at path. A missing file yields Default (not an
// error). Fields absent from the file keep their defaults; unknown fields
// are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.AdminRecipients == nil {
		cfg.AdminRecipients = []string{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save validates c and writes it to path atomically, creating directories
// as needed.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks c against the CUE schema and the rules the schema cannot
// express.
func (c *Config) Validate() error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(c.fields()))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.MaxMinutes%c.GranularityMinutes != 0 {
		return fmt.Errorf("invalid config: max_minutes (%d) must be a multiple of granularity_minutes (%d)",
			c.MaxMinutes, c.GranularityMinutes)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("invalid config: tick_interval must be positive")
	}
	if c.LeaseTTL < c.TickInterval {
		return fmt.Errorf("invalid config: lease_ttl (%s) must be at least tick_interval (%s)",
			time.Duration(c.LeaseTTL), time.Duration(c.TickInterval))
	}
	return nil
}

// fields is the YAML view of c with plain values, as the schema sees it.
func (c *Config) fields() map[string]any {
	recipients := make([]any, 0, len(c.AdminRecipients))
	for _, r := range c.AdminRecipients {
		recipients = append(recipients, r)
	}

	m := map[string]any{
		"database":            c.Database,
		"driver":              c.Driver,
		"granularity_minutes": c.GranularityMinutes,
		"max_minutes":         c.MaxMinutes,
		"tick_interval":       time.Duration(c.TickInterval).String(),
		"lease_ttl":           time.Duration(c.LeaseTTL).String(),
		"log_level":           c.LogLevel,
		"admin_recipients":    recipients,
	}
	if c.NTPServer != "" {
		m["ntp_server"] = c.NTPServer
	}
	return m
}
