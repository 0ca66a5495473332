package mirror

import (
	"github.com/hazyhaar/dommirror/mirror/internal/config"
)

// Config is the top-level dommirror configuration. Re-exported from internal.
type Config = config.Config

// PackageConfig identifies the add-on package and its data files.
type PackageConfig = config.PackageConfig

// PolicyConfig is the mirroring whitelist.
type PolicyConfig = config.PolicyConfig

// FetchConfig controls how the page is read.
type FetchConfig = config.FetchConfig

// SinkConfig defines an output backend.
type SinkConfig = config.SinkConfig

// HTTPConfig controls the control surface.
type HTTPConfig = config.HTTPConfig

// ScriptConfig points at an optional content script.
type ScriptConfig = config.ScriptConfig

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// ParseConfig decodes YAML configuration.
func ParseConfig(data []byte) (*Config, error) {
	return config.Parse(data)
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() *Config {
	return config.Default()
}

// PolicyFromConfig builds a Policy, falling back to DefaultPolicy for empty
// lists.
func PolicyFromConfig(pc PolicyConfig) Policy {
	p := Policy{Elements: pc.Elements, Attributes: pc.Attributes, Styles: pc.Styles}
	def := DefaultPolicy()
	if len(p.Elements) == 0 {
		p.Elements = def.Elements
	}
	if len(p.Attributes) == 0 {
		p.Attributes = def.Attributes
	}
	if len(p.Styles) == 0 {
		p.Styles = def.Styles
	}
	return p
}
