// Package config loads the optional flatland.yaml configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	ferrors "github.com/go-drift/flatland/pkg/errors"
)

// FileName is the name of the configuration file looked up by LoadOptional.
const FileName = "flatland.yaml"

// DefaultProtocolVersion is the compositor protocol spoken when none is
// configured.
const DefaultProtocolVersion = "v1.0.0"

// ErrUnsupportedProtocol is returned for protocol versions outside v1.
var ErrUnsupportedProtocol = errors.New("unsupported protocol version")

// Config represents the optional flatland.yaml configuration.
type Config struct {
	Embedder     EmbedderConfig     `yaml:"embedder"`
	Presentation PresentationConfig `yaml:"presentation"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// EmbedderConfig contains embedder settings.
type EmbedderConfig struct {
	InterceptAllInput bool `yaml:"intercept_all_input,omitempty"`
	Strict            bool `yaml:"strict,omitempty"`
}

// PresentationConfig contains presentation pipeline settings.
type PresentationConfig struct {
	InitialCredits  *uint32 `yaml:"initial_credits,omitempty"`
	ProtocolVersion string  `yaml:"protocol_version,omitempty"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"`
}

// Resolved contains resolved configuration values.
type Resolved struct {
	InterceptAllInput bool
	Strict            bool
	InitialCredits    uint32
	ProtocolVersion   string
	LogLevel          slog.Level
}

// Default returns the configuration used when no file is present.
func Default() *Resolved {
	r, _ := (&Config{}).Resolve()
	return r
}

// LoadOptional reads flatland.yaml from dir if present.
func LoadOptional(dir string) (*Config, error) {
	cfg, err := Load(filepath.Join(dir, FileName))
	if errors.Is(err, os.ErrNotExist) {
		return &Config{}, nil
	}
	return cfg, err
}

// Load reads the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML configuration document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
	}
	return &cfg, nil
}

// Resolve applies defaults and validates the configuration.
func (c *Config) Resolve() (*Resolved, error) {
	credits := uint32(1)
	if c.Presentation.InitialCredits != nil {
		credits = *c.Presentation.InitialCredits
	}

	version := strings.TrimSpace(c.Presentation.ProtocolVersion)
	if version == "" {
		version = DefaultProtocolVersion
	}
	if err := validateProtocol(version); err != nil {
		return nil, invalid(err)
	}

	level := slog.LevelInfo
	if name := strings.TrimSpace(c.Logging.Level); name != "" {
		if err := level.UnmarshalText([]byte(name)); err != nil {
			return nil, invalid(fmt.Errorf("invalid logging.level %q: %w", name, err))
		}
	}

	return &Resolved{
		InterceptAllInput: c.Embedder.InterceptAllInput,
		Strict:            c.Embedder.Strict,
		InitialCredits:    credits,
		ProtocolVersion:   semver.Canonical(version),
		LogLevel:          level,
	}, nil
}

func invalid(err error) error {
	return ferrors.New("config.Resolve", ferrors.KindConfig, err)
}

func validateProtocol(version string) error {
	if !semver.IsValid(version) {
		return fmt.Errorf("invalid presentation.protocol_version %q: must be a semantic version like %s", version, DefaultProtocolVersion)
	}
	if semver.Major(version) != "v1" {
		return fmt.Errorf("%w: %s (supported: v1)", ErrUnsupportedProtocol, version)
	}
	return nil
}
