// Package config loads growup configuration from YAML with environment
// variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Backend kinds.
const (
	BackendGit    = "git"
	BackendMemory = "memory"
	BackendPebble = "pebble"
	BackendSQLite = "sqlite"
)

// Config is the root configuration structure.
type Config struct {
	Backend  BackendConfig  `yaml:"backend"`
	Database DatabaseConfig `yaml:"database"`
	Identity IdentityConfig `yaml:"identity"`
	Logging  LoggingConfig  `yaml:"logging"`
	S3       S3Config       `yaml:"s3"`
}

// BackendConfig selects the persistence backend.
type BackendConfig struct {
	Kind string `yaml:"kind"`
	Path string `yaml:"path"`
	// GitURL clones a remote repository into Path on first use (git only).
	GitURL string `yaml:"git_url"`
}

type DatabaseConfig struct {
	Name string `yaml:"name"`
	// VersionBumpOnOpen upgrades the database on every client operation.
	VersionBumpOnOpen bool `yaml:"version_bump_on_open"`
}

type IdentityConfig struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// S3Config configures export and import against s3:// URLs. Credentials
// fall back to the AWS default chain when empty.
type S3Config struct {
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// Load reads the YAML file at path on top of the defaults and applies
// environment overrides. An empty path uses defaults and environment only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			Kind: BackendGit,
			Path: "./data",
		},
		Database: DatabaseConfig{
			Name: "default",
		},
		Identity: IdentityConfig{
			Name:  "growup",
			Email: "growup@localhost",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		S3: S3Config{
			Region: "us-east-1",
		},
	}
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("GROWUP_BACKEND"); v != "" {
		cfg.Backend.Kind = v
	}
	if v := os.Getenv("GROWUP_PATH"); v != "" {
		cfg.Backend.Path = v
	}
	if v := os.Getenv("GROWUP_GIT_URL"); v != "" {
		cfg.Backend.GitURL = v
	}

	if v := os.Getenv("GROWUP_DB"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("GROWUP_VERSION_BUMP_ON_OPEN"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("GROWUP_VERSION_BUMP_ON_OPEN: %w", err)
		}
		cfg.Database.VersionBumpOnOpen = b
	}

	if v := os.Getenv("GROWUP_IDENTITY_NAME"); v != "" {
		cfg.Identity.Name = v
	}
	if v := os.Getenv("GROWUP_IDENTITY_EMAIL"); v != "" {
		cfg.Identity.Email = v
	}

	if v := os.Getenv("GROWUP_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("GROWUP_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("GROWUP_S3_REGION"); v != "" {
		cfg.S3.Region = v
	}
	if v := os.Getenv("GROWUP_S3_ENDPOINT"); v != "" {
		cfg.S3.Endpoint = v
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	switch c.Backend.Kind {
	case BackendGit, BackendPebble, BackendSQLite:
		if c.Backend.Path == "" {
			errs = append(errs, fmt.Sprintf("backend.path is required for %s", c.Backend.Kind))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Sprintf("backend.kind %q is not one of git, memory, pebble, sqlite", c.Backend.Kind))
	}
	if c.Backend.GitURL != "" && c.Backend.Kind != BackendGit {
		errs = append(errs, "backend.git_url requires the git backend")
	}

	if c.Database.Name == "" {
		errs = append(errs, "database.name is required")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "console", "json":
	default:
		errs = append(errs, fmt.Sprintf("logging.format %q is not console or json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
