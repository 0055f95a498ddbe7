package store

import (
	"fmt"
	"math"
	"sort"

	"github.com/ffportal/ffsubmit/pkg/api/types/items"
	"github.com/ffportal/ffsubmit/pkg/schema"
)

// validate checks body against sc and normalizes links into @ids.
//
// self is the @id of the item being patched, or "" for new items.
// Permission is checked only for touched fields.
func (s *Store) validate(actor Actor, sc *schema.Schema, self string, body map[string]any, touched []string) (map[string]any, error) {
	entries := []items.ErrorEntry{}
	rejected := map[string]struct{}{}
	reject := func(name string, format string, args ...any) {
		rejected[name] = struct{}{}
		entries = append(entries, items.ErrorEntry{
			Location: "body", Name: items.FieldPath(name), Description: fmt.Sprintf(format, args...),
		})
	}

	names := keysOf(body)
	sort.Strings(names)
	out := map[string]any{}
	for _, name := range names {
		v := body[name]
		if v == nil {
			continue
		}
		p, ok := sc.Properties[name]
		if !ok {
			reject(name, "Additional properties are not allowed ('%s' was unexpected)", name)
			continue
		}
		if contains(touched, name) {
			if p.CalculatedProperty {
				reject(name, "submission of calculatedProperty disallowed")
				continue
			}
			if p.Permission == schema.PermissionImportItems && !actor.Admin {
				reject(name, "permission %q required", p.Permission)
				continue
			}
		}
		nv, ok := s.value(name, p, v, reject)
		if ok {
			out[name] = nv
		}
	}
	for _, r := range sc.Required {
		if _, ok := rejected[r]; !ok && isBlank(out[r]) {
			reject(r, "'%s' is a required property", r)
		}
	}
	if 0 < len(entries) {
		return nil, &ValidationError{Entries: entries}
	}

	for _, a := range aliasesOf(out) {
		if owner, ok := s.names[a]; ok && owner != self {
			return nil, &ConflictError{Field: schema.FieldAliases, Value: a, Owner: owner}
		}
	}
	if sum, ok := out["md5sum"].(string); ok && sum != "" {
		if owner, ok := s.md5sums[sum]; ok && owner != self {
			return nil, &ConflictError{Field: "md5sum", Value: sum, Owner: owner}
		}
	}
	return out, nil
}

func (s *Store) value(path string, p *schema.Property, v any, reject func(string, string, ...any)) (any, bool) {
	switch p.Kind() {
	case schema.Text, schema.SuggestedEnum, schema.FileUpload:
		if _, ok := v.(string); !ok {
			reject(path, "%v is not of type 'string'", v)
			return nil, false
		}
		return v, true
	case schema.Enum:
		for _, e := range p.Enum {
			if fmt.Sprint(e) == fmt.Sprint(v) {
				return v, true
			}
		}
		reject(path, "%v is not one of %v", v, p.Enum)
		return nil, false
	case schema.Integer:
		switch n := v.(type) {
		case int, int64:
			return v, true
		case float64:
			if n == math.Trunc(n) {
				return v, true
			}
		}
		reject(path, "%v is not of type 'integer'", v)
		return nil, false
	case schema.Number:
		switch v.(type) {
		case int, int64, float64:
			return v, true
		}
		reject(path, "%v is not of type 'number'", v)
		return nil, false
	case schema.Boolean:
		if _, ok := v.(bool); !ok {
			reject(path, "%v is not of type 'boolean'", v)
			return nil, false
		}
		return v, true
	case schema.LinkedObject:
		ref, ok := v.(string)
		if !ok {
			reject(path, "%v is not of type 'string'", v)
			return nil, false
		}
		id, ok := s.resolve(ref)
		if !ok {
			reject(path, "Object %s not found", ref)
			return nil, false
		}
		t := TypeOf(s.items[id])
		if t != p.LinkTo && !contains(s.schemas.ConcreteTypes(p.LinkTo), t) {
			reject(path, "%s is a %s, not a %s", ref, t, p.LinkTo)
			return nil, false
		}
		return id, true
	case schema.Array:
		arr, ok := v.([]any)
		if !ok {
			reject(path, "%v is not of type 'array'", v)
			return nil, false
		}
		if p.Items == nil {
			return arr, true
		}
		ret := make([]any, 0, len(arr))
		valid := true
		for i, e := range arr {
			ne, ok := s.value(fmt.Sprintf("%s.%d", path, i), p.Items, e, reject)
			valid = valid && ok
			ret = append(ret, ne)
		}
		return ret, valid
	case schema.EmbeddedObject, schema.Attachment:
		obj, ok := v.(map[string]any)
		if !ok {
			reject(path, "%v is not of type 'object'", v)
			return nil, false
		}
		if len(p.Properties) == 0 {
			return obj, true
		}
		ret := map[string]any{}
		valid := true
		for k, e := range obj {
			sub, ok := p.Properties[k]
			if !ok {
				reject(path+"."+k, "Additional properties are not allowed ('%s' was unexpected)", k)
				valid = false
				continue
			}
			ne, ok := s.value(path+"."+k, sub, e, reject)
			valid = valid && ok
			ret[k] = ne
		}
		return ret, valid
	default:
		return v, true
	}
}

func isBlank(v any) bool {
	switch vv := v.(type) {
	case nil:
		return true
	case string:
		return vv == ""
	case []any:
		return len(vv) == 0
	}
	return false
}
