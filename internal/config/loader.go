package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/alertbeacon/alertbeacon/internal/pattern"
	"github.com/alertbeacon/alertbeacon/internal/types"
)

// PatternFile is the on-disk shape of a severity table override:
//
//	patterns:
//	  critical: {on: 100ms, off: 100ms, repeat: 5, final: on}
type PatternFile struct {
	Patterns map[string]pattern.Pattern `yaml:"patterns"`
}

// LoadPatterns reads a pattern override file. Severity keys are matched
// case-insensitively and must name one of the enumerated severities.
func LoadPatterns(path string) (map[types.Severity]pattern.Pattern, error) {
	var file PatternFile
	if err := loadYAML(path, &file); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	// A file caught mid-save is empty; never treat that as "reset to defaults".
	if len(file.Patterns) == 0 {
		return nil, fmt.Errorf("%s: no patterns defined", path)
	}

	out := make(map[types.Severity]pattern.Pattern, len(file.Patterns))
	for name, p := range file.Patterns {
		sev := types.Severity(strings.ToLower(strings.TrimSpace(name)))
		if !sev.Valid() {
			return nil, fmt.Errorf("%s: unknown severity %q", path, name)
		}
		p.Name = string(sev)
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out[sev] = p
	}
	return out, nil
}

// ApplyPatterns loads path into table. An empty path is a no-op.
func ApplyPatterns(path string, table *pattern.Table) error {
	if path == "" {
		return nil
	}
	overrides, err := LoadPatterns(path)
	if err != nil {
		return err
	}
	return table.Replace(overrides)
}

// loadYAML loads a YAML file into a struct
func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}
