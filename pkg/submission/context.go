package submission

import (
	"errors"
	"fmt"
	"sort"
)

var ErrIncompleteChild = errors.New("child object is not submitted yet")

// Context is the field-value map of one object.
//
// Values are JSON-like (nil, bool, numbers, string, []any, map[string]any)
// or Key, which refers to another object in the session.
//
// Context has value semantics: methods never modify the receiver.
type Context map[string]any

// Clone returns a deep copy.
func (c Context) Clone() Context {
	if c == nil {
		return Context{}
	}
	ret := make(Context, len(c))
	for k, v := range c {
		ret[k] = cloneValue(v)
	}
	return ret
}

func cloneValue(v any) any {
	switch vv := v.(type) {
	case Context:
		return vv.Clone()
	case map[string]any:
		return map[string]any(Context(vv).Clone())
	case []any:
		ret := make([]any, len(vv))
		for i := range vv {
			ret[i] = cloneValue(vv[i])
		}
		return ret
	case []string:
		ret := make([]string, len(vv))
		copy(ret, vv)
		return ret
	default:
		return v
	}
}

// With returns a copy where field is set to value.
func (c Context) With(field string, value any) Context {
	ret := c.Clone()
	ret[field] = cloneValue(value)
	return ret
}

// Without returns a copy where field is removed.
func (c Context) Without(field string) Context {
	ret := c.Clone()
	delete(ret, field)
	return ret
}

// Get returns the value of field.
func (c Context) Get(field string) (any, bool) {
	v, ok := c[field]
	return v, ok
}

// Fields returns field names in lexical order.
func (c Context) Fields() []string {
	names := make([]string, 0, len(c))
	for k := range c {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// References reports whether any value in c refers to key.
func (c Context) References(key Key) bool {
	for _, v := range c {
		if valueReferences(v, key) {
			return true
		}
	}
	return false
}

func valueReferences(v any, key Key) bool {
	switch vv := v.(type) {
	case Key:
		return vv == key
	case string:
		return !key.IsPlaceholder() && vv == key.ID()
	case Context:
		return vv.References(key)
	case map[string]any:
		return Context(vv).References(key)
	case []any:
		for _, e := range vv {
			if valueReferences(e, key) {
				return true
			}
		}
	}
	return false
}

// ReferencedKeys returns every Key value found in c.
func (c Context) ReferencedKeys() []Key {
	found := []Key{}
	for _, f := range c.Fields() {
		found = collectKeys(c[f], found)
	}
	return found
}

func collectKeys(v any, acc []Key) []Key {
	switch vv := v.(type) {
	case Key:
		return append(acc, vv)
	case Context:
		for _, f := range vv.Fields() {
			acc = collectKeys(vv[f], acc)
		}
	case map[string]any:
		return collectKeys(Context(vv), acc)
	case []any:
		for _, e := range vv {
			acc = collectKeys(e, acc)
		}
	}
	return acc
}

// Replace returns a copy where every reference to from is replaced with to.
func (c Context) Replace(from Key, to any) Context {
	ret := make(Context, len(c))
	for k, v := range c {
		ret[k] = replaceValue(v, from, to)
	}
	return ret
}

func replaceValue(v any, from Key, to any) any {
	switch vv := v.(type) {
	case Key:
		if vv == from {
			return to
		}
		return vv
	case Context:
		return vv.Replace(from, to)
	case map[string]any:
		return map[string]any(Context(vv).Replace(from, to))
	case []any:
		ret := make([]any, len(vv))
		for i := range vv {
			ret[i] = replaceValue(vv[i], from, to)
		}
		return ret
	default:
		return cloneValue(v)
	}
}

// Resolve converts c into a JSON-ready payload.
//
// Key references are replaced with @id: persisted keys by their own id,
// placeholders through complete. Nil values are dropped.
//
// # Returns
//
// - map[string]any: payload.
//
// - error: ErrIncompleteChild if a placeholder has no entry in complete.
func (c Context) Resolve(complete map[Key]string) (map[string]any, error) {
	ret := map[string]any{}
	for k, v := range c {
		if v == nil {
			continue
		}
		r, err := resolveValue(v, complete)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		if r == nil {
			continue
		}
		ret[k] = r
	}
	return ret, nil
}

func resolveValue(v any, complete map[Key]string) (any, error) {
	switch vv := v.(type) {
	case Key:
		if !vv.IsPlaceholder() {
			return vv.ID(), nil
		}
		id, ok := complete[vv]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrIncompleteChild, vv)
		}
		return id, nil
	case Context:
		return vv.Resolve(complete)
	case map[string]any:
		return Context(vv).Resolve(complete)
	case []any:
		ret := make([]any, 0, len(vv))
		for _, e := range vv {
			if e == nil {
				continue
			}
			r, err := resolveValue(e, complete)
			if err != nil {
				return nil, err
			}
			ret = append(ret, r)
		}
		if len(ret) == 0 {
			return nil, nil
		}
		return ret, nil
	default:
		return v, nil
	}
}

// isEmpty reports whether v carries no value, as the portal sees it.
func isEmpty(v any) bool {
	switch vv := v.(type) {
	case nil:
		return true
	case string:
		return vv == ""
	case []any:
		return len(vv) == 0
	case map[string]any:
		return len(vv) == 0
	case Context:
		return len(vv) == 0
	}
	return false
}

// Unset returns a copy where references to key are dropped:
// scalar references become nil, array elements are spliced out.
func (c Context) Unset(key Key) Context {
	ret := make(Context, len(c))
	for k, v := range c {
		ret[k] = unsetValue(v, key)
	}
	return ret
}

func unsetValue(v any, key Key) any {
	switch vv := v.(type) {
	case Key:
		if vv == key {
			return nil
		}
		return vv
	case string:
		if !key.IsPlaceholder() && vv == key.ID() {
			return nil
		}
		return vv
	case Context:
		return vv.Unset(key)
	case map[string]any:
		return map[string]any(Context(vv).Unset(key))
	case []any:
		ret := make([]any, 0, len(vv))
		for _, e := range vv {
			if valueReferences(e, key) && !isContainer(e) {
				continue
			}
			ret = append(ret, unsetValue(e, key))
		}
		return ret
	default:
		return cloneValue(v)
	}
}

func isContainer(v any) bool {
	switch v.(type) {
	case Context, map[string]any, []any:
		return true
	}
	return false
}

// Step is one segment of a field path. Multiple marks array fields.
type Step struct {
	Field    string
	Multiple bool
}

// Prior is the value a scalar field held before Attach overwrote it.
type Prior struct {
	Value any
	Set   bool
}

// Attach returns a copy where key is put at path, and the value it overwrote.
//
// The last step is set, or appended to when it is Multiple.
// A Multiple step on the way gets a new element object holding the rest of the path.
// An object step on the way is created when missing.
func (c Context) Attach(path []Step, key Key) (Context, Prior) {
	ret, prior := attach(c, path, key)
	return Context(ret), prior
}

func attach(m map[string]any, path []Step, key Key) (map[string]any, Prior) {
	ret := map[string]any(Context(m).Clone())
	step := path[0]
	cur, had := ret[step.Field]

	switch {
	case len(path) == 1 && step.Multiple:
		arr, _ := cur.([]any)
		ret[step.Field] = append(arr, key)
		return ret, Prior{}
	case len(path) == 1:
		ret[step.Field] = key
		return ret, Prior{Value: cur, Set: had}
	case step.Multiple:
		arr, _ := cur.([]any)
		elem, _ := attach(nil, path[1:], key)
		ret[step.Field] = append(arr, elem)
		return ret, Prior{}
	default:
		sub, prior := attach(asObject(cur), path[1:], key)
		ret[step.Field] = sub
		return ret, prior
	}
}

// Detach returns a copy where key attached at path is taken back.
//
// Scalar fields get prior back. Objects left empty by the removal are dropped.
func (c Context) Detach(path []Step, key Key, prior Prior) Context {
	return Context(detach(c, path, key, prior))
}

func detach(m map[string]any, path []Step, key Key, prior Prior) map[string]any {
	ret := map[string]any(Context(m).Clone())
	step := path[0]
	cur, ok := ret[step.Field]
	if !ok || !valueReferences(cur, key) {
		return ret
	}

	switch {
	case len(path) == 1 && step.Multiple:
		arr, _ := cur.([]any)
		kept := make([]any, 0, len(arr))
		for _, e := range arr {
			if k, ok := e.(Key); ok && k == key {
				continue
			}
			kept = append(kept, e)
		}
		ret[step.Field] = kept
	case len(path) == 1:
		if k, ok := cur.(Key); !ok || k != key {
			break
		}
		if prior.Set {
			ret[step.Field] = prior.Value
		} else {
			delete(ret, step.Field)
		}
	case step.Multiple:
		arr, _ := cur.([]any)
		kept := make([]any, 0, len(arr))
		for _, e := range arr {
			sub := asObject(e)
			if sub == nil || !valueReferences(e, key) {
				kept = append(kept, e)
				continue
			}
			if sub = detach(sub, path[1:], key, Prior{}); len(sub) != 0 {
				kept = append(kept, sub)
			}
		}
		ret[step.Field] = kept
	default:
		obj := asObject(cur)
		if obj == nil {
			break
		}
		sub := detach(obj, path[1:], key, prior)
		if len(sub) == 0 {
			delete(ret, step.Field)
		} else {
			ret[step.Field] = sub
		}
	}
	return ret
}

func asObject(v any) map[string]any {
	switch vv := v.(type) {
	case Context:
		return vv
	case map[string]any:
		return vv
	}
	return nil
}
