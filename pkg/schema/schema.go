// Package schema models the JSON-Schema-like type definitions served by the portal
// at /profiles/, together with the field inclusion rules of the submission flow.
package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrSchemaNotFound = errors.New("schema not found")

// Flags in `ff_flag`.
const (
	FlagClearEdit   = "clear edit"
	FlagClearClone  = "clear clone"
	FlagSecondRound = "second round"
)

const (
	// marker in `exclude_from` which hides the field from edit/create forms.
	ExcludeFromEditCreate = "FFedit-create"

	// `permission` value which restricts the field to admins.
	PermissionImportItems = "import_items"

	// name of the alias field.
	FieldAliases = "aliases"
)

// Schema of a item type.
type Schema struct {
	Title       string               `json:"title,omitempty" yaml:"title,omitempty"`
	ID          string               `json:"$id,omitempty" yaml:"$id,omitempty"`
	Description string               `json:"description,omitempty" yaml:"description,omitempty"`
	Type        string               `json:"type,omitempty" yaml:"type,omitempty"`
	Required    []string             `json:"required,omitempty" yaml:"required,omitempty"`
	Properties  map[string]*Property `json:"properties,omitempty" yaml:"properties,omitempty"`

	// Abstract types are never instantiated. Children lists their subtypes.
	Abstract bool     `json:"isAbstract,omitempty" yaml:"isAbstract,omitempty"`
	Children []string `json:"children,omitempty" yaml:"children,omitempty"`
}

// Property is a field definition.
type Property struct {
	Type          string               `json:"type,omitempty" yaml:"type,omitempty"`
	Title         string               `json:"title,omitempty" yaml:"title,omitempty"`
	Description   string               `json:"description,omitempty" yaml:"description,omitempty"`
	Format        string               `json:"format,omitempty" yaml:"format,omitempty"`
	LinkTo        string               `json:"linkTo,omitempty" yaml:"linkTo,omitempty"`
	Items         *Property            `json:"items,omitempty" yaml:"items,omitempty"`
	Properties    map[string]*Property `json:"properties,omitempty" yaml:"properties,omitempty"`
	Enum          []any                `json:"enum,omitempty" yaml:"enum,omitempty"`
	SuggestedEnum []any                `json:"suggested_enum,omitempty" yaml:"suggested_enum,omitempty"`
	Default       any                  `json:"default,omitempty" yaml:"default,omitempty"`
	Lookup        int                  `json:"lookup,omitempty" yaml:"lookup,omitempty"`

	CalculatedProperty bool     `json:"calculatedProperty,omitempty" yaml:"calculatedProperty,omitempty"`
	ExcludeFrom        []string `json:"exclude_from,omitempty" yaml:"exclude_from,omitempty"`
	Permission         string   `json:"permission,omitempty" yaml:"permission,omitempty"`
	FFFlag             string   `json:"ff_flag,omitempty" yaml:"ff_flag,omitempty"`
	S3Upload           bool     `json:"s3Upload,omitempty" yaml:"s3Upload,omitempty"`
	Attachment         bool     `json:"attachment,omitempty" yaml:"attachment,omitempty"`
}

// IsRequired reports whether field is listed in `required`.
func (s *Schema) IsRequired(field string) bool {
	for _, r := range s.Required {
		if r == field {
			return true
		}
	}
	return false
}

// FieldNames returns property names in lexical order.
func (s *Schema) FieldNames() []string {
	names := make([]string, 0, len(s.Properties))
	for n := range s.Properties {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// HasAliases reports whether the type accepts aliases.
func (s *Schema) HasAliases() bool {
	_, ok := s.Properties[FieldAliases]
	return ok
}

// HasSecondRound reports whether any field is flagged to be filled in round two.
func (s *Schema) HasSecondRound() bool {
	for _, p := range s.Properties {
		if p.FFFlag == FlagSecondRound {
			return true
		}
	}
	return false
}

// IsFileType reports whether items of the type carry an uploadable file.
func (s *Schema) IsFileType() bool {
	for _, p := range s.Properties {
		if p.S3Upload {
			return true
		}
	}
	return false
}

// Set is a collection of schemas keyed by type name (e.g. "Biosource").
type Set map[string]*Schema

// Lookup returns the schema of typeName.
//
// # Returns
//
// - *Schema
//
// - error: ErrSchemaNotFound if the type is unknown.
func (ss Set) Lookup(typeName string) (*Schema, error) {
	if s, ok := ss[typeName]; ok && s != nil {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrSchemaNotFound, typeName)
}

// ConcreteTypes returns instantiable types for typeName.
//
// For concrete types it is just typeName.
// For abstract types, it is the concrete descendants in lexical order.
func (ss Set) ConcreteTypes(typeName string) []string {
	seen := map[string]struct{}{}
	found := []string{}
	var walk func(string)
	walk = func(t string) {
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		s, ok := ss[t]
		if !ok {
			return
		}
		if !s.Abstract {
			found = append(found, t)
		}
		for _, c := range s.Children {
			walk(c)
		}
	}
	walk(typeName)
	sort.Strings(found)
	return found
}

// IsAmbiguous reports whether a link to typeName needs the user to choose a subtype.
func (ss Set) IsAmbiguous(typeName string) bool {
	return 1 < len(ss.ConcreteTypes(typeName))
}

// CollectionName returns the collection path segment of the type.
//
// The last word is pluralized: "Biosource" -> "biosources", "OntologyTerm" -> "ontology-terms".
// Subtypes of File and Experiment pluralize the family word instead:
// "FileFastq" -> "files-fastq", "ExperimentHiC" -> "experiments-hi-c".
func CollectionName(typeName string) string {
	var b strings.Builder
	for i, r := range typeName {
		if 'A' <= r && r <= 'Z' {
			if i != 0 {
				b.WriteRune('-')
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	words := strings.Split(b.String(), "-")
	if 1 < len(words) && pluralizesFamily(words) {
		words[0] = plural(words[0])
	} else {
		last := len(words) - 1
		words[last] = plural(words[last])
	}
	return strings.Join(words, "-")
}

// families named by the leading word, and the second words which are not members of them
// ("FileFormat" -> "file-formats", "ExperimentSet" -> "experiment-sets").
var families = map[string]map[string]bool{
	"file":       {"format": true, "set": true},
	"experiment": {"set": true, "type": true},
}

func pluralizesFamily(words []string) bool {
	excluded, ok := families[words[0]]
	return ok && !excluded[words[1]]
}

func plural(w string) string {
	switch {
	case strings.HasSuffix(w, "s"):
		return w + "es"
	case strings.HasSuffix(w, "y"):
		return strings.TrimSuffix(w, "y") + "ies"
	default:
		return w + "s"
	}
}
