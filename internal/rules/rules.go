// Package rules loads the declarative rule catalog that drives the scanner.
package rules

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Spec is a single normalized rule: an identity plus the pattern it matches.
// Its position in the slice returned by Load is the rule's stable index,
// used throughout the scanning pipeline (anchor_to_rules, regex_cache).
type Spec struct {
	ID      string
	Name    string
	Pattern string
}

// ConfigError wraps a failure to read or parse the rule catalog.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("rules: %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// entry is the raw TOML shape of a single rule. Either Pattern or Regex may
// be set; Pattern wins when both are present.
type entry struct {
	ID      string  `toml:"id"`
	Name    *string `toml:"name"`
	Pattern *string `toml:"pattern"`
	Regex   *string `toml:"regex"`
}

type catalog struct {
	Rules []entry `toml:"rules"`
}

// Load reads and normalizes the rule catalog at path. Entries missing both
// pattern and regex fields are silently dropped; the order of the surviving
// entries becomes their stable index. Load only fails (ConfigError) when the
// file cannot be read or its top-level TOML structure cannot be parsed.
func Load(path string) ([]Spec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	var c catalog
	if _, err := toml.Decode(string(raw), &c); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	specs := make([]Spec, 0, len(c.Rules))
	for _, e := range c.Rules {
		pat := ""
		switch {
		case e.Pattern != nil:
			pat = *e.Pattern
		case e.Regex != nil:
			pat = *e.Regex
		default:
			continue
		}

		name := ""
		if e.Name != nil {
			name = *e.Name
		}
		specs = append(specs, Spec{ID: e.ID, Name: name, Pattern: pat})
	}

	return specs, nil
}
