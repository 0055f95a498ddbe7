package schema

import "strings"

// Kind is the closed set of field kinds the submission flow distinguishes.
type Kind int

const (
	Unknown Kind = iota
	Text
	Integer
	Number
	Boolean
	Enum
	SuggestedEnum
	LinkedObject
	Array
	EmbeddedObject
	Attachment
	FileUpload
)

func (k Kind) String() string {
	switch k {
	case Text:
		return "text"
	case Integer:
		return "integer"
	case Number:
		return "number"
	case Boolean:
		return "boolean"
	case Enum:
		return "enum"
	case SuggestedEnum:
		return "suggested enum"
	case LinkedObject:
		return "linked object"
	case Array:
		return "array"
	case EmbeddedObject:
		return "embedded object"
	case Attachment:
		return "attachment"
	case FileUpload:
		return "file upload"
	default:
		return "unknown"
	}
}

// Kind derives the field kind from the property definition.
func (p *Property) Kind() Kind {
	if p == nil {
		return Unknown
	}
	switch {
	case p.LinkTo != "":
		return LinkedObject
	case p.S3Upload:
		return FileUpload
	case p.Attachment:
		return Attachment
	case 0 < len(p.Enum):
		return Enum
	case 0 < len(p.SuggestedEnum):
		return SuggestedEnum
	}

	switch p.Type {
	case "array":
		return Array
	case "object":
		return EmbeddedObject
	case "string":
		return Text
	case "integer":
		return Integer
	case "number":
		return Number
	case "boolean":
		return Boolean
	default:
		return Unknown
	}
}

// Link is a path in the schema which refers to another item.
type Link struct {
	// dot-separated path, like "experiment_relation.experiment".
	Path string

	// target type.
	LinkTo string

	// true if the path holds many references.
	Multiple bool
}

// Links returns every linked-object path in lexical order of paths.
//
// It descends into arrays and embedded objects.
func (s *Schema) Links() []Link {
	links := []Link{}
	for _, name := range s.FieldNames() {
		links = append(links, propertyLinks(name, s.Properties[name], false)...)
	}
	return links
}

func propertyLinks(path string, p *Property, multiple bool) []Link {
	switch p.Kind() {
	case LinkedObject:
		return []Link{{Path: path, LinkTo: p.LinkTo, Multiple: multiple}}
	case Array:
		return propertyLinks(path, p.Items, true)
	case EmbeddedObject:
		ret := []Link{}
		sub := &Schema{Properties: p.Properties}
		for _, name := range sub.FieldNames() {
			ret = append(ret, propertyLinks(path+"."+name, p.Properties[name], multiple)...)
		}
		return ret
	default:
		return nil
	}
}

// LinkFields returns paths which can hold a child object, sorted.
//
// Calculated fields and fields excluded from forms are not in the result.
func (s *Schema) LinkFields() []string {
	paths := []string{}
	for _, l := range s.Links() {
		top, _, _ := strings.Cut(l.Path, ".")
		p := s.Properties[top]
		if p.CalculatedProperty || contains(p.ExcludeFrom, ExcludeFromEditCreate) {
			continue
		}
		paths = append(paths, l.Path)
	}
	return paths
}

// Field looks up a property by dot-separated path.
func (s *Schema) Field(path string) (*Property, bool) {
	props := s.Properties
	var cur *Property
	for _, seg := range strings.Split(path, ".") {
		if props == nil {
			return nil, false
		}
		p, ok := props[seg]
		if !ok {
			return nil, false
		}
		for p.Kind() == Array && p.Items != nil {
			p = p.Items
		}
		cur = p
		props = p.Properties
	}
	return cur, cur != nil
}

func contains(sli []string, s string) bool {
	for _, v := range sli {
		if v == s {
			return true
		}
	}
	return false
}
