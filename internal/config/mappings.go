package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// MappingOverrides replaces or extends the built-in source-to-canonical lookup
// tables. Keys are source values (matched case-insensitively); values are
// canonical names, e.g.
//
//	status:
//	  hold: PENDING
//	  escalated: OPEN
//	priority:
//	  critical: URGENT
//	field-types:
//	  tagger: select
type MappingOverrides struct {
	Status     map[string]string `yaml:"status"`
	Priority   map[string]string `yaml:"priority"`
	FieldTypes map[string]string `yaml:"field-types"`
}

// Empty reports whether the overrides change nothing.
func (m *MappingOverrides) Empty() bool {
	return m == nil || (len(m.Status) == 0 && len(m.Priority) == 0 && len(m.FieldTypes) == 0)
}

// LoadMappingOverrides reads the mapping file at path. An empty path yields
// empty overrides; a configured path that cannot be read or parsed is an error.
func LoadMappingOverrides(path string) (*MappingOverrides, error) {
	if path == "" {
		return &MappingOverrides{}, nil
	}
	data, err := os.ReadFile(path) // #nosec G304 - operator-supplied mapping file
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping file: %w", err)
	}

	var m MappingOverrides
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse mapping file %s: %w", path, err)
	}
	m.Status = lowerKeys(m.Status)
	m.Priority = lowerKeys(m.Priority)
	m.FieldTypes = lowerKeys(m.FieldTypes)
	return &m, nil
}

func lowerKeys(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, val := range in {
		out[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(val)
	}
	return out
}
