// Package config loads t3xtart configuration: scalar values, backend sections, journal colors
// and the master instruction prompt. every piece is resolved local → global → embedded defaults.
package config

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/umputun/t3xtart/pkg/artifact"
	"github.com/umputun/t3xtart/pkg/backend"
)

// localDirName is the per-project override directory looked up in the working directory.
const localDirName = ".t3xtart"

//go:embed defaults/config defaults/prompts/*.txt
var defaultsFS embed.FS

// DefaultsFS returns the embedded defaults filesystem.
func DefaultsFS() embed.FS { return defaultsFS }

// ColorConfig holds journal colors as "r,g,b" strings.
type ColorConfig struct {
	Generate  string
	Shape     string
	Deliver   string
	Warn      string
	Error     string
	Timestamp string
}

// Config is the fully resolved configuration.
type Config struct {
	Values
	Colors      ColorConfig
	Instruction string // master instruction, comment lines stripped

	configDir string
	localDir  string
}

// Load installs defaults into configDir (DefaultConfigDir if empty) and loads the configuration,
// with ./.t3xtart overriding the global directory when present.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return loadWithLocal(configDir, detectLocalDir())
}

// loadWithLocal loads from globalDir with an optional localDir override, empty localDir skips it.
func loadWithLocal(globalDir, localDir string) (*Config, error) {
	if err := newDefaultsInstaller(defaultsFS).Install(globalDir); err != nil {
		return nil, fmt.Errorf("install defaults: %w", err)
	}

	localConfig, localPrompts := "", ""
	if localDir != "" {
		localConfig = filepath.Join(localDir, "config")
		localPrompts = filepath.Join(localDir, "prompts")
	}
	globalConfig := filepath.Join(globalDir, "config")

	values, err := newValuesLoader(defaultsFS).Load(localConfig, globalConfig)
	if err != nil {
		return nil, fmt.Errorf("load values: %w", err)
	}
	colors, err := newColorLoader(defaultsFS).Load(localConfig, globalConfig)
	if err != nil {
		return nil, fmt.Errorf("load colors: %w", err)
	}
	prompts, err := newPromptLoader(defaultsFS).Load(localPrompts, filepath.Join(globalDir, "prompts"))
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	return &Config{
		Values:      values,
		Colors:      colors,
		Instruction: prompts.Instruction,
		configDir:   globalDir,
		localDir:    localDir,
	}, nil
}

// DefaultConfigDir returns $XDG_CONFIG_HOME/t3xtart, or ~/.config/t3xtart.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "t3xtart")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "t3xtart")
	}
	return filepath.Join(home, ".config", "t3xtart")
}

// detectLocalDir returns ./.t3xtart if it is a directory.
func detectLocalDir() string {
	info, err := os.Stat(localDirName)
	if err != nil || !info.IsDir() {
		return ""
	}
	return localDirName
}

// ConfigDir returns the global configuration directory.
func (c *Config) ConfigDir() string { return c.configDir }

// LocalDir returns the local override directory, empty if none was used.
func (c *Config) LocalDir() string { return c.localDir }

// Descriptors converts the backend sections into orchestrator candidates, keeping their order.
func (c *Config) Descriptors() []backend.Descriptor {
	res := make([]backend.Descriptor, 0, len(c.Backends))
	for _, b := range c.Backends {
		res = append(res, backend.Descriptor{
			Name:      b.Name,
			Kind:      backend.Kind(b.Kind),
			Endpoint:  b.Endpoint,
			Model:     b.Model,
			MaxOutput: b.MaxOutput,
			Timeout:   time.Duration(b.TimeoutMs) * time.Millisecond,
		})
	}
	return res
}

// Normalizer returns the shape normalizer for the configured line cap, density and padding.
func (c *Config) Normalizer() artifact.Normalizer {
	n := artifact.NewNormalizer(c.MaxLines)
	if c.DensityThresholdSet {
		n.DensityThreshold = c.DensityThreshold
	}
	if c.PadGlyph != "" {
		n.Filler = c.PadGlyph
	}
	return n
}

// KakaoTimeout returns the messaging call timeout.
func (c *Config) KakaoTimeout() time.Duration {
	return time.Duration(c.KakaoTimeoutMs) * time.Millisecond
}

// RefreshTimeout returns the credential refresh timeout.
func (c *Config) RefreshTimeout() time.Duration {
	return time.Duration(c.RefreshTimeoutMs) * time.Millisecond
}

// NotifyTimeout returns the notification delivery timeout.
func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.NotifyTimeoutMs) * time.Millisecond
}
