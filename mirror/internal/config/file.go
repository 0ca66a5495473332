// Package config handles dommirror configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level dommirror configuration.
type Config struct {
	Package PackageConfig `yaml:"package"`
	Policy  PolicyConfig  `yaml:"policy"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Sinks   []SinkConfig  `yaml:"sinks"`
	HTTP    HTTPConfig    `yaml:"http"`
	Script  ScriptConfig  `yaml:"script"`
}

// PackageConfig identifies the add-on package and its data files.
type PackageConfig struct {
	ID      string `yaml:"id"`
	DataDir string `yaml:"data_dir"`
	Page    string `yaml:"page"` // relative to data_dir
}

// PolicyConfig is the mirroring whitelist.
type PolicyConfig struct {
	Elements   []string `yaml:"elements"`
	Attributes []string `yaml:"attributes"`
	Styles     []string `yaml:"styles"`
}

// FetchConfig controls how the page is read.
type FetchConfig struct {
	Charset string        `yaml:"charset"`
	Timeout time.Duration `yaml:"timeout"`
}

// SinkConfig defines an output backend for change batches.
type SinkConfig struct {
	Type string `yaml:"type"` // stdout | webhook | journal
	URL  string `yaml:"url"`  // for webhook
	Path string `yaml:"path"` // for journal
}

// HTTPConfig controls the control surface.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// ScriptConfig points at an optional content script run after load.
type ScriptConfig struct {
	Path    string        `yaml:"path"`
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML configuration and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Package.ID == "" {
		c.Package.ID = "dommirror"
	}
	if c.Package.DataDir == "" {
		c.Package.DataDir = "data"
	}
	if c.Package.Page == "" {
		c.Package.Page = "main.html"
	}
	if len(c.Policy.Elements) == 0 {
		c.Policy.Elements = []string{"BUTTON"}
	}
	if len(c.Policy.Attributes) == 0 {
		c.Policy.Attributes = []string{"disabled", "style"}
	}
	if len(c.Policy.Styles) == 0 {
		c.Policy.Styles = []string{"background-image"}
	}
	if c.Fetch.Charset == "" {
		c.Fetch.Charset = "UTF-8"
	}
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = 30 * time.Second
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = "127.0.0.1:8088"
	}
	if c.Script.Timeout <= 0 {
		c.Script.Timeout = 5 * time.Second
	}
}

func (c *Config) validate() error {
	for i, s := range c.Sinks {
		switch s.Type {
		case "stdout":
		case "webhook":
			if s.URL == "" {
				return fmt.Errorf("config: sinks[%d]: webhook needs url", i)
			}
		case "journal":
			if s.Path == "" {
				return fmt.Errorf("config: sinks[%d]: journal needs path", i)
			}
		default:
			return fmt.Errorf("config: sinks[%d]: unknown type %q", i, s.Type)
		}
	}
	return nil
}
