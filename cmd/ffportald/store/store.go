// Package store is the in-memory item database of the development portal.
package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ffportal/ffsubmit/pkg/api/types/items"
	"github.com/ffportal/ffsubmit/pkg/schema"
	"github.com/google/uuid"
)

var (
	ErrMissing     = errors.New("item not found")
	ErrUnknownType = errors.New("unknown item type")
	ErrNotFileItem = errors.New("item has no file")
)

// ConflictError is returned when a unique key is taken by another item.
type ConflictError struct {
	Field string
	Value string
	Owner string
}

func (ce *ConflictError) Error() string {
	return fmt.Sprintf("%s %q conflicts with %s", ce.Field, ce.Value, ce.Owner)
}

// ValidationError is returned when a body fails validation against its schema.
type ValidationError struct {
	Entries []items.ErrorEntry
}

func (ve *ValidationError) Error() string {
	msgs := make([]string, 0, len(ve.Entries))
	for _, e := range ve.Entries {
		msgs = append(msgs, e.String())
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Actor is the user who makes a request.
type Actor struct {
	ID    string
	Admin bool
}

type upload struct {
	item    string
	content []byte
	md5sum  string
}

// Store holds items keyed by @id.
//
// Aliases and uuids of items are also looked up.
// Store is safe for concurrent use.
type Store struct {
	mux     sync.Mutex
	schemas schema.Set

	items   map[string]map[string]any
	names   map[string]string
	md5sums map[string]string

	// upload key -> pending upload.
	uploads map[string]*upload

	now func() time.Time
}

type Option func(*Store) *Store

// WithClock replaces the clock used to stamp "date_created".
func WithClock(now func() time.Time) Option {
	return func(s *Store) *Store {
		s.now = now
		return s
	}
}

func New(schemas schema.Set, options ...Option) *Store {
	s := &Store{
		schemas: schemas,
		items:   map[string]map[string]any{},
		names:   map[string]string{},
		md5sums: map[string]string{},
		uploads: map[string]*upload{},
		now:     time.Now,
	}
	for _, o := range options {
		s = o(s)
	}
	return s
}

// Schemas returns the schema set in use.
func (s *Store) Schemas() schema.Set {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.schemas
}

// SetSchemas replaces the schema set. Items stored are kept as they are.
func (s *Store) SetSchemas(set schema.Set) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.schemas = set
}

// Seed puts an item without validation.
//
// item should have "@id" and "@type". "uuid" is assigned when missing.
func (s *Store) Seed(item map[string]any) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	id, _ := item["@id"].(string)
	if id == "" {
		return fmt.Errorf("seed item has no @id: %v", item)
	}
	rec := clone(item)
	if _, ok := rec["uuid"]; !ok {
		rec["uuid"] = uuid.NewString()
	}
	s.put(id, rec)
	return nil
}

// Get looks up an item by @id, alias or uuid.
func (s *Store) Get(ref string) (map[string]any, bool) {
	s.mux.Lock()
	defer s.mux.Unlock()
	id, ok := s.resolve(ref)
	if !ok {
		return nil, false
	}
	return clone(s.items[id]), true
}

// IDs returns @ids of every item in lexical order.
func (s *Store) IDs() []string {
	s.mux.Lock()
	defer s.mux.Unlock()
	ids := make([]string, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Store) resolve(ref string) (string, bool) {
	if _, ok := s.items[ref]; ok {
		return ref, true
	}
	id, ok := s.names[strings.Trim(ref, "/")]
	return id, ok
}

func (s *Store) put(id string, rec map[string]any) {
	if prev, ok := s.items[id]; ok {
		for _, a := range aliasesOf(prev) {
			delete(s.names, a)
		}
	}
	s.items[id] = rec
	if u, ok := rec["uuid"].(string); ok && u != "" {
		s.names[u] = id
	}
	for _, a := range aliasesOf(rec) {
		s.names[a] = id
	}
	if sum, ok := rec["md5sum"].(string); ok && sum != "" {
		s.md5sums[sum] = id
	}
}

func aliasesOf(rec map[string]any) []string {
	ret := []string{}
	as, _ := rec[schema.FieldAliases].([]any)
	for _, a := range as {
		if str, ok := a.(string); ok && str != "" {
			ret = append(ret, str)
		}
	}
	return ret
}

// TypeOf returns the most specific type of an item.
func TypeOf(rec map[string]any) string {
	switch t := rec["@type"].(type) {
	case []any:
		if 0 < len(t) {
			s, _ := t[0].(string)
			return s
		}
	case []string:
		if 0 < len(t) {
			return t[0]
		}
	case string:
		return t
	}
	return ""
}

// Create validates body as an item of typeName and stores it.
//
// When checkOnly, nothing is stored and the returned record is nil.
//
// # Returns
//
// - map[string]any: the stored record, with "upload_credentials" for file items.
//
// - error: ErrUnknownType, *ValidationError or *ConflictError.
func (s *Store) Create(actor Actor, typeName string, body map[string]any, checkOnly bool) (map[string]any, error) {
	s.mux.Lock()
	defer s.mux.Unlock()

	sc, ok := s.schemas[typeName]
	if !ok || sc.Abstract {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typeName)
	}
	values, err := s.validate(actor, sc, "", body, keysOf(body))
	if err != nil {
		return nil, err
	}
	if checkOnly {
		return nil, nil
	}

	u := uuid.NewString()
	id := "/" + schema.CollectionName(typeName) + "/" + u + "/"
	rec := values
	rec["@id"] = id
	rec["@type"] = s.typeChain(typeName)
	rec["uuid"] = u
	rec["date_created"] = s.now().UTC().Format(time.RFC3339)
	if actor.ID != "" {
		rec["submitted_by"] = actor.ID
	}
	if _, ok := rec["status"]; !ok {
		if sc.IsFileType() {
			rec["status"] = items.FileStatusUploading
		} else {
			rec["status"] = "in review by lab"
		}
	}
	rec["display_title"] = displayTitle(rec)
	s.put(id, rec)

	ret := clone(rec)
	if sc.IsFileType() {
		ret["upload_credentials"] = s.issue(id)
	}
	return ret, nil
}

// Patch validates the item of id updated with body, and stores it.
//
// deleteFields are removed before body is applied.
func (s *Store) Patch(actor Actor, ref string, body map[string]any, deleteFields []string, checkOnly bool) (map[string]any, error) {
	s.mux.Lock()
	defer s.mux.Unlock()

	id, ok := s.resolve(ref)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissing, ref)
	}
	prev := s.items[id]
	typeName := TypeOf(prev)
	sc, ok := s.schemas[typeName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typeName)
	}

	merged := map[string]any{}
	for name, p := range sc.Properties {
		if v, ok := prev[name]; ok && !p.CalculatedProperty {
			merged[name] = v
		}
	}
	for _, f := range deleteFields {
		delete(merged, f)
	}
	for k, v := range body {
		merged[k] = v
	}

	// fields kept from the stored record are not checked for permission again.
	values, err := s.validate(actor, sc, id, merged, keysOf(body))
	if err != nil {
		return nil, err
	}
	if checkOnly {
		return nil, nil
	}

	rec := clone(prev)
	for _, f := range deleteFields {
		delete(rec, f)
	}
	for k, v := range values {
		rec[k] = v
	}
	for name, p := range sc.Properties {
		if _, ok := values[name]; !ok && !p.CalculatedProperty {
			delete(rec, name)
		}
	}
	if prevSum, ok := prev["md5sum"].(string); ok && prevSum != rec["md5sum"] {
		delete(s.md5sums, prevSum)
	}
	rec["display_title"] = displayTitle(rec)
	s.put(id, rec)

	ret := clone(rec)
	if _, ok := body["md5sum"]; ok && sc.IsFileType() {
		ret["upload_credentials"] = s.issue(id)
	}
	return ret, nil
}

// UploadCredentials issues a new upload key for a file item.
func (s *Store) UploadCredentials(ref string) (items.UploadCredentials, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	id, ok := s.resolve(ref)
	if !ok {
		return items.UploadCredentials{}, fmt.Errorf("%w: %s", ErrMissing, ref)
	}
	sc, ok := s.schemas[TypeOf(s.items[id])]
	if !ok || !sc.IsFileType() {
		return items.UploadCredentials{}, fmt.Errorf("%w: %s", ErrNotFileItem, id)
	}
	return s.issue(id), nil
}

func (s *Store) issue(id string) items.UploadCredentials {
	key := uuid.NewString()
	s.uploads[key] = &upload{item: id}
	return items.UploadCredentials{
		UploadURL: "/upload/" + key,
		Key:       strings.Trim(id, "/") + "/" + key,
		Bucket:    "ffportald",
	}
}

// Receive stores the content uploaded with the upload key.
//
// md5sum is the hex-encoded MD5 of content.
// When the item has "md5sum", it should match.
func (s *Store) Receive(key string, content []byte, md5sum string) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	up, ok := s.uploads[key]
	if !ok {
		return fmt.Errorf("%w: upload %s", ErrMissing, key)
	}
	rec := s.items[up.item]
	if expected, ok := rec["md5sum"].(string); ok && expected != "" && expected != md5sum {
		return &ValidationError{Entries: []items.ErrorEntry{{
			Location: "body", Name: "md5sum",
			Description: fmt.Sprintf("uploaded content has md5sum %s, expected %s", md5sum, expected),
		}}}
	}
	up.content = content
	up.md5sum = md5sum

	next := clone(rec)
	next["file_size"] = len(content)
	s.put(up.item, next)
	return nil
}

// Content returns the content uploaded lastly for the item.
func (s *Store) Content(id string) ([]byte, bool) {
	s.mux.Lock()
	defer s.mux.Unlock()
	for _, up := range s.uploads {
		if up.item == id && up.content != nil {
			return append([]byte{}, up.content...), true
		}
	}
	return nil, false
}

// typeChain lists typeName and its abstract ancestors, then "Item".
func (s *Store) typeChain(typeName string) []any {
	chain := []any{typeName}
	current := typeName
	for {
		parent := ""
		for _, name := range sortedNames(s.schemas) {
			if contains(s.schemas[name].Children, current) {
				parent = name
				break
			}
		}
		if parent == "" || containsAny(chain, parent) {
			break
		}
		chain = append(chain, parent)
		current = parent
	}
	return append(chain, "Item")
}

func displayTitle(rec map[string]any) string {
	if as := aliasesOf(rec); 0 < len(as) {
		return as[0]
	}
	if t, ok := rec["title"].(string); ok && t != "" {
		return t
	}
	u, _ := rec["uuid"].(string)
	return u
}

func sortedNames(set schema.Set) []string {
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func keysOf(m map[string]any) []string {
	ret := make([]string, 0, len(m))
	for k := range m {
		ret = append(ret, k)
	}
	return ret
}

func contains(sli []string, s string) bool {
	for _, v := range sli {
		if v == s {
			return true
		}
	}
	return false
}

func containsAny(sli []any, s string) bool {
	for _, v := range sli {
		if v == s {
			return true
		}
	}
	return false
}

func clone(m map[string]any) map[string]any {
	ret := make(map[string]any, len(m))
	for k, v := range m {
		ret[k] = cloneValue(v)
	}
	return ret
}

func cloneValue(v any) any {
	switch vv := v.(type) {
	case map[string]any:
		return clone(vv)
	case []any:
		ret := make([]any, len(vv))
		for i := range vv {
			ret[i] = cloneValue(vv[i])
		}
		return ret
	default:
		return v
	}
}
