// Package manifest reads the description of objects to submit.
//
// A manifest is a tree: the principal object at the top, and the objects
// linked from it as children, each under the field of its parent.
// It is written in YAML, or in JSON with comments.
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ffportal/ffsubmit/pkg/schema"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

var ErrInvalidManifest = errors.New("manifest is invalid")

// Node is an object in a manifest.
type Node struct {
	// field of the parent which links this object. Required for children.
	Field string `yaml:"field,omitempty" json:"field,omitempty"`

	// item type. For a link to an abstract type, it chooses the concrete type.
	Type string `yaml:"type,omitempty" json:"type,omitempty"`

	Alias string `yaml:"alias,omitempty" json:"alias,omitempty"`

	// @id of an item in the portal. When given, the object is linked, not created.
	Existing string `yaml:"existing,omitempty" json:"existing,omitempty"`

	// field values of the first round.
	Values map[string]any `yaml:"values,omitempty" json:"values,omitempty"`

	// field values of the second round.
	RoundTwo map[string]any `yaml:"roundTwo,omitempty" json:"roundTwo,omitempty"`

	// path to the content of a file item. Relative paths are from the manifest.
	File string `yaml:"file,omitempty" json:"file,omitempty"`

	Children []Node `yaml:"children,omitempty" json:"children,omitempty"`
}

// Manifest is the whole tree to submit.
type Manifest struct {
	// "create" (default), "edit" or "clone".
	Mode string `yaml:"mode,omitempty" json:"mode,omitempty"`

	// @id of the item to edit or clone.
	ID string `yaml:"id,omitempty" json:"id,omitempty"`

	Node `yaml:",inline"`

	dir string
}

// SessionMode returns the mode as schema.Mode.
func (m *Manifest) SessionMode() (schema.Mode, error) {
	switch m.Mode {
	case "", "create":
		return schema.Create, nil
	case "edit":
		return schema.Edit, nil
	case "clone":
		return schema.Clone, nil
	default:
		return schema.Create, fmt.Errorf("%w: unknown mode %q", ErrInvalidManifest, m.Mode)
	}
}

// FilePath resolves File of n.
func (m *Manifest) FilePath(n *Node) string {
	if n.File == "" || filepath.IsAbs(n.File) {
		return n.File
	}
	return filepath.Join(m.dir, n.File)
}

// Verify checks the shape of the manifest.
func (m *Manifest) Verify() error {
	mode, err := m.SessionMode()
	if err != nil {
		return err
	}
	switch {
	case mode == schema.Create && m.Type == "":
		return fmt.Errorf("%w: type is required", ErrInvalidManifest)
	case mode != schema.Create && m.ID == "":
		return fmt.Errorf("%w: id is required to %s", ErrInvalidManifest, mode)
	case m.Existing != "":
		return fmt.Errorf("%w: the principal object cannot be an existing item", ErrInvalidManifest)
	}
	return verifyChildren("", m.Children)
}

func verifyChildren(path string, children []Node) error {
	for i, c := range children {
		here := fmt.Sprintf("%schildren[%d]", path, i)
		if c.Field == "" {
			return fmt.Errorf("%w: %s: field is required", ErrInvalidManifest, here)
		}
		if c.Existing != "" && (0 < len(c.Values) || 0 < len(c.Children) || c.File != "") {
			return fmt.Errorf("%w: %s: existing item cannot have values, file nor children", ErrInvalidManifest, here)
		}
		if err := verifyChildren(here+".", c.Children); err != nil {
			return err
		}
	}
	return nil
}

// Parse reads a manifest.
//
// Input starting with '{' is read as JSON (comments and trailing commas are allowed).
// Others are read as YAML.
func Parse(b []byte) (*Manifest, error) {
	m, err := decode(b)
	if err != nil {
		return nil, err
	}
	if err := m.Verify(); err != nil {
		return nil, err
	}
	return m, nil
}

func decode(b []byte) (*Manifest, error) {
	m := new(Manifest)
	trimmed := bytes.TrimSpace(b)
	if 0 < len(trimmed) && trimmed[0] == '{' {
		if err := json.Unmarshal(jsonc.ToJSON(trimmed), m); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidManifest, err)
		}
	} else if err := yaml.Unmarshal(trimmed, m); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidManifest, err)
	}
	return m, nil
}

// Load reads a manifest file.
func Load(path string) (*Manifest, error) {
	m, err := load(path)
	if err != nil {
		return nil, err
	}
	if err := m.Verify(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// LoadFor reads a manifest file to edit or clone the item id.
//
// Mode and ID in the file are replaced with the given ones.
func LoadFor(path string, mode schema.Mode, id string) (*Manifest, error) {
	m, err := load(path)
	if err != nil {
		return nil, err
	}
	m.Mode = mode.String()
	m.ID = id
	if err := m.Verify(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func load(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := decode(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if abs, err := filepath.Abs(filepath.Dir(path)); err == nil {
		m.dir = abs
	} else {
		m.dir = filepath.Dir(path)
	}
	return m, nil
}
