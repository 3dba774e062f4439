// Package config loads analyzer configuration the layered way: defaults,
// then an optional TOML file, then environment variables, then flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config holds all configuration for the analyzer.
type Config struct {
	Catalog      string   `koanf:"catalog"`       // catalog directory to load records from
	WebMode      bool     `koanf:"web"`           // serve the HTTP API instead of a one-shot report
	Port         int      `koanf:"port"`          // web server port
	Watch        bool     `koanf:"watch"`         // watch the catalog and rebuild on change
	CacheTTLSecs int      `koanf:"cache-ttl"`     // graph cache validity window, seconds
	TopN         int      `koanf:"top"`           // ranking size for most-referenced reports
	ExcludeTypes []string `koanf:"exclude-types"` // type names suppressed in orphan reports
	Verbosity    string   `koanf:"verbosity"`     // debug, info, warn, error
	JSONLogs     bool     `koanf:"json-logs"`     // emit JSON logs instead of console format
}

// CacheTTL returns the configured validity window as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSecs) * time.Second
}

// Load loads configuration from defaults, config file, environment
// variables, and flags. Priority: Flags > Env > Config File > Defaults.
func Load(f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	defaults := map[string]interface{}{
		"catalog":       ".",
		"web":           false,
		"port":          8080,
		"watch":         false,
		"cache-ttl":     30,
		"top":           10,
		"exclude-types": []string{},
		"verbosity":     "",
		"json-logs":     false,
	}
	if err := k.Load(makeMapProvider(defaults), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config File (optional) - asset-analyzer.toml
	// Missing file is fine; flags and env still apply.
	_ = k.Load(file.Provider("asset-analyzer.toml"), toml.Parser())

	// 3. Environment Variables
	// Prefix: ASSET_ANALYZER_ (e.g., ASSET_ANALYZER_PORT=9090)
	if err := k.Load(env.Provider("ASSET_ANALYZER_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(
			strings.TrimPrefix(s, "ASSET_ANALYZER_")), "_", "-")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]interface{}, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
