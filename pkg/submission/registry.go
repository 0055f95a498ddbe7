package submission

import (
	"fmt"

	"github.com/ffportal/ffsubmit/pkg/schema"
)

// Registry holds per-key state of a session, in parallel maps over the same key space,
// and the hierarchy of keys.
//
// Registry is not safe for concurrent use.
type Registry struct {
	hierarchy Hierarchy

	contexts  map[Key]Context
	types     map[Key]string
	validity  map[Key]ValidationState
	display   map[Key]string
	linkField map[Key]string
	bookmarks map[Key][]string

	// placeholder key -> @id, for objects whose real submission succeeded.
	complete map[Key]string

	// keys waiting for the second round, in order of enqueueing.
	roundTwo []Key
}

func NewRegistry() *Registry {
	return &Registry{
		hierarchy: NewHierarchy(),
		contexts:  map[Key]Context{},
		types:     map[Key]string{},
		validity:  map[Key]ValidationState{},
		display:   map[Key]string{},
		linkField: map[Key]string{},
		bookmarks: map[Key][]string{},
		complete:  map[Key]string{},
	}
}

// Entry is a snapshot of one key.
type Entry struct {
	Key       Key             `yaml:"key" json:"key"`
	Type      string          `yaml:"type" json:"type"`
	Display   string          `yaml:"display" json:"display"`
	LinkField string          `yaml:"linkField,omitempty" json:"linkField,omitempty"`
	Validity  ValidationState `yaml:"validity" json:"validity"`
	Complete  string          `yaml:"complete,omitempty" json:"complete,omitempty"`
	Bookmarks []string        `yaml:"bookmarks,omitempty" json:"bookmarks,omitempty"`
	Context   Context         `yaml:"context,omitempty" json:"context,omitempty"`
}

// Has reports whether key has an entry.
func (r *Registry) Has(key Key) bool {
	_, ok := r.types[key]
	return ok
}

// Entry returns a snapshot of key.
func (r *Registry) Entry(key Key) (Entry, bool) {
	t, ok := r.types[key]
	if !ok {
		return Entry{}, false
	}
	bm := make([]string, len(r.bookmarks[key]))
	copy(bm, r.bookmarks[key])
	return Entry{
		Key:       key,
		Type:      t,
		Display:   r.display[key],
		LinkField: r.linkField[key],
		Validity:  r.validity[key],
		Complete:  r.complete[key],
		Bookmarks: bm,
		Context:   r.contexts[key].Clone(),
	}, true
}

// Keys returns every key with an entry, ordered deterministically.
func (r *Registry) Keys() []Key {
	keys := make([]Key, 0, len(r.types))
	for k := range r.types {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

// Hierarchy returns a copy of the hierarchy.
func (r *Registry) Hierarchy() Hierarchy {
	return r.hierarchy.Clone()
}

// Context returns a copy of the context of key.
func (r *Registry) Context(key Key) Context {
	return r.contexts[key].Clone()
}

func (r *Registry) Type(key Key) string {
	return r.types[key]
}

func (r *Registry) Display(key Key) string {
	return r.display[key]
}

func (r *Registry) Validity(key Key) ValidationState {
	return r.validity[key]
}

func (r *Registry) setValidity(key Key, vs ValidationState) {
	r.validity[key] = vs
}

// CompletionOf returns the @id of key, if its real submission succeeded.
func (r *Registry) CompletionOf(key Key) (string, bool) {
	id, ok := r.complete[key]
	return id, ok
}

// Completion returns a copy of the completion map.
func (r *Registry) Completion() map[Key]string {
	ret := make(map[Key]string, len(r.complete))
	for k, v := range r.complete {
		ret[k] = v
	}
	return ret
}

// Readiness evaluates key against current state.
func (r *Registry) Readiness(key Key) ValidationState {
	return Readiness(r.hierarchy, key, r.contexts[key], r.complete)
}

// SetContext replaces the context of key.
//
// Validity is re-evaluated with the context and hierarchy as they were before the replacement.
// Submitted keys stay Submitted.
func (r *Registry) SetContext(key Key, ctx Context) error {
	if !r.Has(key) {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	prevCtx := r.contexts[key]
	prevTree := r.hierarchy.Clone()
	r.contexts[key] = ctx.Clone()

	if r.validity[key] == Submitted {
		return nil
	}
	r.validity[key] = Readiness(prevTree, key, prevCtx, r.complete)
	return nil
}

// CreateEntry registers a new object.
//
// # Args
//
// - typeName, s: type of the object and its schema.
//
// - key: the key of the new object. It must be new in the registry.
//
// - parent: the key the new object is linked from. Ignored for Root.
//
// - link: the field of the parent.
//
// - alias: alias to be tagged. It is also the display label. Can be empty.
//
// - values: previous field values (for edit/clone). Can be nil.
//
// - opt: field inclusion option.
func (r *Registry) CreateEntry(
	typeName string, s *schema.Schema,
	key Key, parent Key, link string, alias string,
	values map[string]any, opt schema.FilterOption,
) error {
	if r.Has(key) {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, key)
	}
	if !key.IsRoot() {
		h, err := r.hierarchy.Insert(key, parent)
		if err != nil {
			return err
		}
		r.hierarchy = h
	}

	ctx := Context(schema.Filter(s, values, opt)).Clone()
	if alias != "" && s.HasAliases() {
		aliases := []any{alias}
		if prev, ok := ctx[schema.FieldAliases].([]any); ok {
			for _, a := range prev {
				if a != alias {
					aliases = append(aliases, a)
				}
			}
		}
		ctx[schema.FieldAliases] = aliases
	}

	display := alias
	if display == "" {
		display = fmt.Sprintf("My %s %s", typeName, key)
	}

	r.contexts[key] = ctx
	r.types[key] = typeName
	r.display[key] = display
	r.linkField[key] = link
	r.bookmarks[key] = s.LinkFields()
	r.validity[key] = Ready
	if !key.IsRoot() && r.Has(parent) && r.validity[parent] != Submitted {
		r.validity[parent] = NotReady
	}
	return nil
}

// AddExisting registers an object which is already in the portal.
//
// The object is placed into the hierarchy under parent, if it is not there yet.
func (r *Registry) AddExisting(id string, typeName string, display string, parent Key, link string) (Key, error) {
	key := Persisted(id)
	if !r.hierarchy.Contains(key) {
		h, err := r.hierarchy.Insert(key, parent)
		if err != nil {
			return key, err
		}
		r.hierarchy = h
	}
	if display == "" {
		display = id
	}
	r.types[key] = typeName
	r.display[key] = display
	r.linkField[key] = link
	r.validity[key] = Submitted
	if _, ok := r.contexts[key]; !ok {
		r.contexts[key] = Context{}
	}
	return key, nil
}

// Resolve maps a persisted id back to the placeholder it was promoted from, if any.
func (r *Registry) Resolve(key Key) (Key, bool) {
	if !key.IsPlaceholder() {
		for k, id := range r.complete {
			if id == key.ID() {
				return k, true
			}
		}
	}
	if r.Has(key) {
		return key, true
	}
	return Key{}, false
}

// RemoveEntry purges key and its descendants from every map and the round-two queue.
//
// # Args
//
// - key: key, or persisted id of a promoted key.
//
// - keepPersisted: if true, persisted descendants keep their registry rows
// (they are removed from the hierarchy only).
//
// # Returns
//
// - []Key: purged keys.
//
// - error: ErrUnknownKey if key is not registered.
func (r *Registry) RemoveEntry(key Key, keepPersisted bool) ([]Key, error) {
	k, ok := r.Resolve(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	targets := []Key{k}
	if sub, ok := r.hierarchy.SubtreeOf(k); ok {
		targets = append(targets, sub.Flatten()...)
	}
	r.hierarchy = r.hierarchy.Remove(k)

	purged := []Key{}
	for _, t := range targets {
		if keepPersisted && !t.IsPlaceholder() && t != k {
			continue
		}
		delete(r.contexts, t)
		delete(r.types, t)
		delete(r.validity, t)
		delete(r.display, t)
		delete(r.linkField, t)
		delete(r.bookmarks, t)
		delete(r.complete, t)
		r.dequeue(t)
		purged = append(purged, t)
	}
	return purged, nil
}

// Promote records a successful real submission of key.
//
// Rows of key are mirrored under Persisted(id); the placeholder keeps representing
// the editable object, the persisted key the submitted record.
func (r *Registry) Promote(key Key, id string, record map[string]any) Key {
	r.complete[key] = id
	pk := Persisted(id)
	r.types[pk] = r.types[key]
	r.display[pk] = r.display[key]
	r.linkField[pk] = r.linkField[key]
	r.bookmarks[pk] = r.bookmarks[key]
	r.contexts[pk] = Context(record).Clone()
	r.validity[pk] = Submitted
	return pk
}

// Record returns the stored portal record of a promoted key.
func (r *Registry) Record(key Key) (Context, bool) {
	id, ok := r.complete[key]
	if !ok {
		return nil, false
	}
	ctx, ok := r.contexts[Persisted(id)]
	return ctx.Clone(), ok
}

// Enqueue puts key into the round-two queue. Keys already queued are not added again.
func (r *Registry) Enqueue(key Key) bool {
	if r.InRoundTwo(key) {
		return false
	}
	r.roundTwo = append(r.roundTwo, key)
	return true
}

func (r *Registry) dequeue(key Key) bool {
	for i, k := range r.roundTwo {
		if k == key {
			r.roundTwo = append(r.roundTwo[:i:i], r.roundTwo[i+1:]...)
			return true
		}
	}
	return false
}

// InRoundTwo reports whether key is waiting in the round-two queue.
func (r *Registry) InRoundTwo(key Key) bool {
	for _, k := range r.roundTwo {
		if k == key {
			return true
		}
	}
	return false
}

// RoundTwoQueue returns a copy of the round-two queue.
func (r *Registry) RoundTwoQueue() []Key {
	ret := make([]Key, len(r.roundTwo))
	copy(ret, r.roundTwo)
	return ret
}

// Aliases returns every alias used in the session.
func (r *Registry) Aliases() map[string]Key {
	ret := map[string]Key{}
	for k, ctx := range r.contexts {
		as, ok := ctx[schema.FieldAliases].([]any)
		if !ok {
			continue
		}
		for _, a := range as {
			if s, ok := a.(string); ok && s != "" {
				if _, dup := ret[s]; !dup || k.IsPlaceholder() {
					ret[s] = k
				}
			}
		}
	}
	return ret
}

// Snapshot returns entries of every key.
func (r *Registry) Snapshot() []Entry {
	keys := r.Keys()
	ret := make([]Entry, 0, len(keys))
	for _, k := range keys {
		e, _ := r.Entry(k)
		ret = append(ret, e)
	}
	return ret
}
