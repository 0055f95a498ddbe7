package submission

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ffportal/ffsubmit/pkg/api/types/items"
	"github.com/ffportal/ffsubmit/pkg/schema"
	"golang.org/x/sync/errgroup"
)

var ErrAlreadyInitialized = errors.New("submission is already initialized")

// Principal describes the root object of a session.
type Principal struct {
	Mode schema.Mode

	// item type. For edit and clone, it can be empty; the type of the fetched item is used.
	Type string

	// @id of the item to edit or clone. Ignored in create mode.
	ID string

	// alias of the new object (create and clone).
	Alias string

	// initial field values of the new object (create). Ignored in edit and clone mode.
	Values map[string]any
}

// InitializePrincipal loads schemas and the acting user, and registers the root object.
//
// For edit and clone, the item is fetched from the database (not from the search index),
// and linked items found in it are registered as existing objects.
//
// When the fetched item has another @id than requested, the root starts from an empty context.
func (o *Orchestrator) InitializePrincipal(ctx context.Context, p Principal) error {
	o.mux.Lock()
	defer o.mux.Unlock()
	if o.initialized {
		return ErrAlreadyInitialized
	}
	if p.Mode != schema.Create && p.ID == "" {
		return fmt.Errorf("%s mode requires @id of the item", p.Mode)
	}

	set, err := o.schemas.Schemas(ctx)
	if err != nil {
		return err
	}

	var user *items.User
	var item map[string]any
	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		u, err := o.fetchUser(gctx)
		if err != nil {
			o.logger.Printf("cannot resolve the user: %s", err)
			return nil
		}
		user = u
		return nil
	})
	if p.Mode != schema.Create {
		eg.Go(func() error {
			it, err := o.fetchItem(gctx, p.ID)
			if err != nil {
				return err
			}
			item = it
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	typeName := p.Type
	if typeName == "" {
		typeName = itemType(item)
	}
	if typeName == "" {
		return fmt.Errorf("%w: type of the principal object is not known", schema.ErrSchemaNotFound)
	}

	var values map[string]any
	switch p.Mode {
	case schema.Create:
		values = p.Values
	default:
		if got, _ := item["@id"].(string); got != p.ID {
			o.logger.Printf(
				"%s: requested %s, got %q. starting from empty context",
				ErrIdentityMismatch, p.ID, got,
			)
		} else {
			values = item
		}
	}

	s, err := set.Lookup(typeName)
	if err != nil {
		o.logger.Printf("%s", err)
		return err
	}

	o.set = set
	o.user = user
	o.mode = p.Mode

	alias := p.Alias
	if p.Mode == schema.Edit {
		alias = ""
	}
	if err := o.reg.CreateEntry(typeName, s, Root, Root, "", alias, values, o.filterOption(false)); err != nil {
		return err
	}
	if p.Mode == schema.Edit {
		o.editID = p.ID
		o.original = o.reg.Context(Root)
		if title, _ := item["display_title"].(string); title != "" {
			o.reg.display[Root] = title
		} else {
			o.reg.display[Root] = p.ID
		}
	}

	if err := o.discoverLinks(Root, s, o.reg.Context(Root)); err != nil {
		return err
	}

	o.keyIter = 0
	o.active = Root
	o.initialized = true
	return nil
}

// discoverLinks registers every linked item found in ctx as an existing object under key.
func (o *Orchestrator) discoverLinks(key Key, s *schema.Schema, ctx Context) error {
	for _, l := range s.Links() {
		for _, id := range valuesAt(map[string]any(ctx), strings.Split(l.Path, ".")) {
			if id == "" || o.reg.hierarchy.Contains(Persisted(id)) {
				continue
			}
			if _, err := o.reg.AddExisting(id, l.LinkTo, id, key, l.Path); err != nil {
				return err
			}
		}
	}
	return nil
}

// valuesAt collects strings found at path, descending into arrays.
func valuesAt(v any, path []string) []string {
	switch vv := v.(type) {
	case []any:
		ret := []string{}
		for _, e := range vv {
			ret = append(ret, valuesAt(e, path)...)
		}
		return ret
	case map[string]any:
		if len(path) == 0 {
			if id, ok := vv["@id"].(string); ok {
				return []string{id}
			}
			return nil
		}
		return valuesAt(vv[path[0]], path[1:])
	case Context:
		return valuesAt(map[string]any(vv), path)
	case string:
		if len(path) == 0 {
			return []string{vv}
		}
	}
	return nil
}

func itemType(item map[string]any) string {
	switch t := item["@type"].(type) {
	case []any:
		if len(t) == 0 {
			return ""
		}
		s, _ := t[0].(string)
		return s
	case string:
		return t
	}
	return ""
}

func (o *Orchestrator) fetchUser(ctx context.Context) (*items.User, error) {
	resp, err := o.transport.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   "/me",
		Query:  url.Values{"frame": []string{"object"}},
	})
	if err != nil {
		return nil, err
	}
	if !resp.Succeeded() {
		return nil, fmt.Errorf("/me: %s", strings.Join(resp.Messages(), "; "))
	}
	u, err := items.Decode[items.User](resp.Body)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (o *Orchestrator) fetchItem(ctx context.Context, id string) (map[string]any, error) {
	resp, err := o.transport.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   id,
		Query: url.Values{
			"frame":     []string{"object"},
			"datastore": []string{"database"},
		},
	})
	if err != nil {
		return nil, err
	}
	if !resp.Succeeded() {
		return nil, fmt.Errorf("%s: %s", id, strings.Join(resp.Messages(), "; "))
	}
	return resp.Body, nil
}

// primaryLab returns the lab the user submits for. It is cached.
func (o *Orchestrator) primaryLab(ctx context.Context) (*items.Lab, error) {
	if o.lab != nil {
		return o.lab, nil
	}
	id := o.user.PrimaryLab()
	if id == "" {
		return nil, nil
	}
	resp, err := o.transport.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   id,
		Query:  url.Values{"frame": []string{"object"}},
	})
	if err != nil {
		return nil, err
	}
	if !resp.Succeeded() {
		return nil, fmt.Errorf("%s: %s", id, strings.Join(resp.Messages(), "; "))
	}
	lab, err := items.Decode[items.Lab](resp.Body)
	if err != nil {
		return nil, err
	}
	o.lab = &lab
	return o.lab, nil
}

// applyLabAward fills empty "lab" and "award" of payload with the user's first lab and its first award.
//
// User items are left as they are.
func (o *Orchestrator) applyLabAward(ctx context.Context, typeName string, s *schema.Schema, payload map[string]any) error {
	if typeName == "User" {
		return nil
	}
	_, hasLab := s.Properties["lab"]
	_, hasAward := s.Properties["award"]
	needLab := hasLab && isEmpty(payload["lab"])
	needAward := hasAward && isEmpty(payload["award"])
	if !needLab && !needAward {
		return nil
	}
	lab, err := o.primaryLab(ctx)
	if err != nil {
		return err
	}
	if lab == nil {
		return nil
	}
	if needLab {
		payload["lab"] = lab.ID
	}
	if needAward && 0 < len(lab.Awards) {
		payload["award"] = lab.Awards[0]
	}
	return nil
}

// AliasPrefix suggests the namespace of aliases, "<lab name>:".
//
// It is empty when the lab of the user is not known.
func (o *Orchestrator) AliasPrefix(ctx context.Context) string {
	o.mux.Lock()
	defer o.mux.Unlock()
	return o.aliasPrefix(ctx)
}

func (o *Orchestrator) aliasPrefix(ctx context.Context) string {
	lab, err := o.primaryLab(ctx)
	if err != nil || lab == nil || lab.Name == "" {
		return ""
	}
	return lab.Name + ":"
}
