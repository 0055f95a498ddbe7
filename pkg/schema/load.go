package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Decode parses a schema set.
//
// Input starting with '{' is read as JSON, allowing comments and trailing commas.
// Others are read as YAML.
func Decode(b []byte) (Set, error) {
	set := Set{}
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 {
		return set, nil
	}

	if trimmed[0] == '{' {
		if err := json.Unmarshal(jsonc.ToJSON(trimmed), &set); err != nil {
			return nil, fmt.Errorf("parsing schema set as json: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(trimmed, &set); err != nil {
			return nil, fmt.Errorf("parsing schema set as yaml: %w", err)
		}
	}

	for name, s := range set {
		if s == nil {
			delete(set, name)
			continue
		}
		for _, c := range s.Children {
			if _, ok := set[c]; !ok {
				return nil, fmt.Errorf("%w: %s (child of %s)", ErrSchemaNotFound, c, name)
			}
		}
	}
	return set, nil
}

// LoadFile reads a schema set from a file.
func LoadFile(path string) (Set, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(b)
}
