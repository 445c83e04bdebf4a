// Package config implements TOML configuration loading and validation for
// pansave: the account list consumed by the adapter registry plus a small
// settings section. The config file is owned by the user; this layer only
// reads it and never writes accounts back.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pansave/pansave/internal/drive"
)

// Config is the top-level structure parsed from the TOML file.
type Config struct {
	Settings Settings  `toml:"settings"`
	Accounts []Account `toml:"account"`
}

// Settings holds global knobs.
type Settings struct {
	LogLevel string `toml:"log_level"`
	SaveRoot string `toml:"save_root"`
}

// Account is one configured provider credential as written by the user.
type Account struct {
	Name       string `toml:"name"`
	Provider   string `toml:"provider"`
	Credential string `toml:"credential"`
	Enabled    bool   `toml:"enabled"`
	Default    bool   `toml:"default"`
}

// DefaultConfig returns a Config with all default values.
func DefaultConfig() *Config {
	return &Config{
		Settings: Settings{
			LogLevel: "info",
			SaveRoot: "/pansave",
		},
	}
}

// knownProviders is the closed set of provider kinds accounts may declare.
var knownProviders = map[string]drive.Kind{
	string(drive.KindBaidu):  drive.KindBaidu,
	string(drive.KindAliyun): drive.KindAliyun,
	string(drive.KindXunlei): drive.KindXunlei,
}

// Validate checks account declarations: known provider kinds, unique names,
// non-empty credentials for enabled accounts, at most one default.
func Validate(cfg *Config) error {
	var errs []error

	seen := make(map[string]bool, len(cfg.Accounts))
	defaults := 0

	for i, acc := range cfg.Accounts {
		if acc.Name == "" {
			errs = append(errs, fmt.Errorf("account #%d: name is required", i+1))
		}

		if seen[acc.Name] {
			errs = append(errs, fmt.Errorf("account %q: duplicate name", acc.Name))
		}

		seen[acc.Name] = true

		if _, ok := knownProviders[acc.Provider]; !ok {
			errs = append(errs, fmt.Errorf("account %q: unknown provider %q", acc.Name, acc.Provider))
		}

		if acc.Enabled && acc.Credential == "" {
			errs = append(errs, fmt.Errorf("account %q: enabled but has no credential", acc.Name))
		}

		if acc.Default {
			defaults++
		}
	}

	if defaults > 1 {
		errs = append(errs, errors.New("at most one account may be marked default"))
	}

	return errors.Join(errs...)
}

// DriveAccounts converts the declared accounts into the form the adapter
// registry consumes.
func (c *Config) DriveAccounts() []drive.Account {
	out := make([]drive.Account, 0, len(c.Accounts))

	for _, acc := range c.Accounts {
		out = append(out, drive.Account{
			Name:       acc.Name,
			Kind:       knownProviders[acc.Provider],
			Credential: acc.Credential,
			Enabled:    acc.Enabled,
			Default:    acc.Default,
		})
	}

	return out
}

// DefaultConfigPath returns the config file location: $PANSAVE_CONFIG if
// set, otherwise $XDG_CONFIG_HOME/pansave/config.toml, otherwise
// ~/.config/pansave/config.toml.
func DefaultConfigPath() string {
	if p := os.Getenv("PANSAVE_CONFIG"); p != "" {
		return p
	}

	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			// No home directory: fall back to the working directory.
			return "config.toml"
		}

		base = filepath.Join(home, ".config")
	}

	return filepath.Join(base, "pansave", "config.toml")
}
