package internal

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sensiblebit/webidkit"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultPurpose labels certificates in a profile's certificate list.
	DefaultPurpose = "WebID"
	// DefaultConcurrency bounds parallel provisioning.
	DefaultConcurrency = 4
)

// KeyConfig selects the key size and signature digest of issued certificates.
type KeyConfig struct {
	Bits   int    `yaml:"bits"`
	Digest string `yaml:"digest"`
}

// ProfileSeed is a profile declared in the configuration file.
type ProfileSeed struct {
	Alias   string `yaml:"alias" validate:"required,max=64,printable"`
	Name    string `yaml:"name" validate:"required,max=64,printable"`
	WebID   string `yaml:"webid" validate:"required,webid"`
	Purpose string `yaml:"purpose,omitempty" validate:"printable"`
}

// Config is the YAML configuration file.
type Config struct {
	Engine      webidkit.EngineConfig `yaml:"engine"`
	Key         KeyConfig             `yaml:"key"`
	OutputDir   string                `yaml:"output_dir" validate:"printable"`
	Purpose     string                `yaml:"purpose" validate:"required,printable"`
	Concurrency int                   `yaml:"concurrency" validate:"gte=1,lte=64"`
	Profiles    []ProfileSeed         `yaml:"profiles" validate:"dive"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		OutputDir:   ".",
		Purpose:     DefaultPurpose,
		Concurrency: DefaultConcurrency,
	}
}

// ConfigOptions returns the key settings as issuer options.
func (c Config) ConfigOptions() webidkit.ConfigOptions {
	return webidkit.ConfigOptions{Bits: c.Key.Bits, Digest: c.Key.Digest}
}

// Validate checks field constraints, the key settings and alias uniqueness.
func (c Config) Validate() error {
	if err := webidkit.ValidateStruct(c); err != nil {
		return err
	}
	if err := webidkit.ValidateStruct(c.ConfigOptions()); err != nil {
		return err
	}
	seen := make(map[string]bool, len(c.Profiles))
	for _, p := range c.Profiles {
		if seen[p.Alias] {
			return &webidkit.ValidationError{Field: "Config.Profiles", Message: fmt.Sprintf("duplicate alias %q", p.Alias)}
		}
		seen[p.Alias] = true
	}
	return nil
}

// LoadConfig reads the YAML configuration at path. Unset fields take their
// DefaultConfig values; a profile without a purpose inherits the top-level
// one. Unknown keys are rejected.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("loading config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes and validates YAML configuration data.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parsing YAML: %w", err)
	}
	for i := range cfg.Profiles {
		if cfg.Profiles[i].Purpose == "" {
			cfg.Profiles[i].Purpose = cfg.Purpose
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SeedProfiles upserts every profile declared in cfg into db.
func SeedProfiles(db *DB, cfg Config) error {
	for _, p := range cfg.Profiles {
		if err := db.UpsertProfile(ProfileRecord{Alias: p.Alias, DisplayName: p.Name, WebID: p.WebID}); err != nil {
			return fmt.Errorf("seeding profile %s: %w", p.Alias, err)
		}
	}
	return nil
}
