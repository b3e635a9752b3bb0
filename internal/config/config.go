// Package config loads and validates the run configuration.
//
// The surface is a YAML file; the parsed value is validated against an
// embedded CUE schema so a malformed config fails loudly, with positions,
// before any component is constructed. Everything the core consumes - mode,
// dispatch delay, credentials, file locations, source lists - is parsed and
// checked here, outside the core.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Mode selects the fetch origin for a run.
const (
	ModeLive   = "live"
	ModeReplay = "replay"
)

// ArchiveConfig locates the fetch journal and capture directory.
type ArchiveConfig struct {
	Dir     string `yaml:"dir" json:"dir"`
	Journal string `yaml:"journal" json:"journal"`
}

// SourcesConfig names the configured sources. Order of the primary list is
// significant: it fixes the merge override direction.
type SourcesConfig struct {
	Primary   []string `yaml:"primary" json:"primary"`
	Secondary []string `yaml:"secondary" json:"secondary"`
}

// Config is the full run configuration surface.
type Config struct {
	Mode            string        `yaml:"mode" json:"mode"`
	BaseURL         string        `yaml:"base_url" json:"base_url"`
	Token           string        `yaml:"token" json:"token"`
	DispatchDelayMS int           `yaml:"dispatch_delay_ms" json:"dispatch_delay_ms"`
	Archive         ArchiveConfig `yaml:"archive" json:"archive"`
	ZonesFile       string        `yaml:"zones_file" json:"zones_file"`
	Output          string        `yaml:"output" json:"output"`
	Sources         SourcesConfig `yaml:"sources" json:"sources"`
}

// DispatchDelay returns the minimum inter-dispatch delay as a duration.
func (c *Config) DispatchDelay() time.Duration {
	return time.Duration(c.DispatchDelayMS) * time.Millisecond
}

// BaseSource returns the base primary source - the first of the primary
// list, the one streamed in bulk and flushed at reconciliation.
func (c *Config) BaseSource() string {
	return c.Sources.Primary[0]
}

// DependentSources returns the primary sources fetched per discovered key:
// every primary except the base.
func (c *Config) DependentSources() []string {
	return append([]string(nil), c.Sources.Primary[1:]...)
}

// Load reads, defaults and validates a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}
	return cfg, nil
}

// applyDefaults fills the conventional registry source layout when the file
// leaves it unspecified.
func (c *Config) applyDefaults() {
	if len(c.Sources.Primary) == 0 {
		c.Sources.Primary = []string{"cdc", "quicksearch", "profile"}
	}
	if c.Sources.Secondary == nil {
		if c.ZonesFile != "" {
			c.Sources.Secondary = []string{"zones"}
		} else {
			c.Sources.Secondary = []string{}
		}
	}
}

// Validate unifies the config with the embedded CUE schema.
func (c *Config) Validate() error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("lookup #Config: %w", err)
	}

	val := ctx.Encode(c)
	if err := val.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	unified := def.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("config invalid:\n%s", cueerrors.Details(err, nil))
	}

	// The base source streams in bulk; the remaining primaries are fetched
	// per key. Fewer than two primaries means there is nothing to join.
	if len(c.Sources.Primary) < 2 {
		return fmt.Errorf("config invalid: at least two primary sources required, got %d", len(c.Sources.Primary))
	}

	return nil
}
