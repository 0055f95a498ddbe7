package submission

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/ffportal/ffsubmit/pkg/schema"
)

// Stage of an object creation.
type Stage int

const (
	// waiting for SelectType.
	StageAmbiguousType Stage = iota + 1

	// waiting for SubmitAlias.
	StageAlias

	// the object is created.
	StageCreated
)

// Pending is the state of an object creation.
type Pending struct {
	Stage Stage

	// the key the new object is linked from, and its field path like "experiment_relation.experiment".
	Parent Key
	Field  string

	// key reserved for the new object.
	Key Key

	// concrete types to choose from. Set in StageAmbiguousType.
	Choices []string

	// chosen type.
	Type string

	// suggested alias namespace, like "my-lab:". Set in StageAlias.
	AliasPrefix string

	// message of the last rejected alias.
	AliasError string
}

type pendingCreate struct {
	Pending

	// where the reservation is put in the parent context.
	path []Step

	// value the reservation overwrote.
	prior Prior
}

var aliasFormat = regexp.MustCompile(`^\S+:\S+$`)

// InitCreateObj starts creating a new object linked from parent.field.
//
// The key of the new object is reserved and assigned to the parent field at once
// (set for scalar fields, appended for array fields). CancelCreate takes it back.
// For a field inside an array of objects, a new element object is appended to hold it.
//
// # Args
//
// - parent: the key the new object is linked from.
//
// - field: dot-separated path of a link field of parent, like "biosample" or "experiment_relation.experiment".
//
// - linkTo: type of the new object. When empty, the link target of the field is used.
//
// # Returns
//
// - Pending: StageAmbiguousType when linkTo has several concrete types,
// StageAlias when the type takes aliases, or StageCreated.
//
// - error
func (o *Orchestrator) InitCreateObj(ctx context.Context, parent Key, field string, linkTo string) (Pending, error) {
	o.mux.Lock()
	defer o.mux.Unlock()
	if err := o.guard(); err != nil {
		return Pending{}, err
	}
	if o.pending != nil {
		return Pending{}, ErrCreateInProgress
	}
	p, ok := o.reg.Resolve(parent)
	if !ok {
		return Pending{}, fmt.Errorf("%w: %s", ErrUnknownKey, parent)
	}
	ps, err := o.set.Lookup(o.reg.Type(p))
	if err != nil {
		o.logger.Printf("%s", err)
		return Pending{}, err
	}
	path, prop, ok := fieldPath(ps, field)
	if !ok {
		return Pending{}, fmt.Errorf("%s has no field %s", o.reg.Type(p), field)
	}
	if linkTo == "" {
		linkTo = prop.LinkTo
	}
	choices := o.set.ConcreteTypes(linkTo)
	if len(choices) == 0 {
		err := fmt.Errorf("%w: %q (linked from %s.%s)", schema.ErrSchemaNotFound, linkTo, o.reg.Type(p), field)
		o.logger.Printf("%s", err)
		return Pending{}, err
	}

	reserved := Placeholder(o.keyIter + 1)
	pctx, prior := o.reg.contexts[p].Attach(path, reserved)
	o.reg.contexts[p] = pctx

	o.pending = &pendingCreate{
		Pending: Pending{
			Parent:  p,
			Field:   field,
			Key:     reserved,
			Choices: choices,
		},
		path:  path,
		prior: prior,
	}

	if 1 < len(choices) {
		o.pending.Stage = StageAmbiguousType
		return o.pending.Pending, nil
	}
	return o.chooseType(ctx, choices[0])
}

// SelectType resolves an ambiguous link target.
func (o *Orchestrator) SelectType(ctx context.Context, typeName string) (Pending, error) {
	o.mux.Lock()
	defer o.mux.Unlock()
	if o.pending == nil || o.pending.Stage != StageAmbiguousType {
		return Pending{}, ErrNoPendingCreate
	}
	if !contains(o.pending.Choices, typeName) {
		return o.pending.Pending, fmt.Errorf("%s is not a choice: %v", typeName, o.pending.Choices)
	}
	return o.chooseType(ctx, typeName)
}

func (o *Orchestrator) chooseType(ctx context.Context, typeName string) (Pending, error) {
	s, err := o.set.Lookup(typeName)
	if err != nil {
		o.logger.Printf("%s", err)
		return o.pending.Pending, err
	}
	o.pending.Type = typeName
	if s.HasAliases() {
		o.pending.Stage = StageAlias
		o.pending.AliasPrefix = o.aliasPrefix(ctx)
		return o.pending.Pending, nil
	}
	return o.createObj("")
}

// SubmitAlias names the new object and creates it.
//
// The alias should be "<namespace>:<name>", unused in the session and unknown to the portal.
// When rejected, the creation stays in StageAlias.
func (o *Orchestrator) SubmitAlias(ctx context.Context, alias string) (Pending, error) {
	o.mux.Lock()
	defer o.mux.Unlock()
	if o.pending == nil || o.pending.Stage != StageAlias {
		return Pending{}, ErrNoPendingCreate
	}
	if err := o.checkAlias(ctx, alias); err != nil {
		o.pending.AliasError = err.Error()
		return o.pending.Pending, err
	}
	return o.createObj(alias)
}

func (o *Orchestrator) checkAlias(ctx context.Context, alias string) error {
	if !aliasFormat.MatchString(alias) {
		return fmt.Errorf("%w: %q", ErrInvalidAlias, alias)
	}
	if _, used := o.reg.Aliases()[alias]; used {
		return &AliasConflictError{Alias: alias}
	}
	resp, err := o.transport.Do(ctx, Request{Method: http.MethodGet, Path: "/" + alias})
	if err != nil {
		return err
	}
	if !resp.NotFound() {
		return &AliasConflictError{Alias: alias, Remote: true}
	}
	return nil
}

// CancelCreate abandons the object creation, and takes back the reservation from the parent field.
func (o *Orchestrator) CancelCreate() error {
	o.mux.Lock()
	defer o.mux.Unlock()
	if o.pending == nil {
		return ErrNoPendingCreate
	}
	pend := o.pending
	o.pending = nil

	pctx, ok := o.reg.contexts[pend.Parent]
	if !ok {
		return nil
	}
	o.reg.contexts[pend.Parent] = pctx.Detach(pend.path, pend.Key, pend.prior)
	return nil
}

// fieldPath resolves a dot-separated field path of s into steps, and returns the property at its end.
func fieldPath(s *schema.Schema, path string) ([]Step, *schema.Property, bool) {
	if _, ok := s.Field(path); !ok {
		return nil, nil, false
	}
	steps := []Step{}
	props := s.Properties
	var prop *schema.Property
	for _, seg := range strings.Split(path, ".") {
		prop = props[seg]
		multiple := false
		for prop.Kind() == schema.Array && prop.Items != nil {
			multiple = true
			prop = prop.Items
		}
		steps = append(steps, Step{Field: seg, Multiple: multiple})
		props = prop.Properties
	}
	return steps, prop, true
}

// Pending returns the object creation in progress.
func (o *Orchestrator) Pending() (Pending, bool) {
	o.mux.Lock()
	defer o.mux.Unlock()
	if o.pending == nil {
		return Pending{}, false
	}
	return o.pending.Pending, true
}

func (o *Orchestrator) createObj(alias string) (Pending, error) {
	pend := o.pending
	if pend.Key != Placeholder(o.keyIter+1) {
		panic(fmt.Sprintf(
			"inconsistent key allocation: reserved %s, next is %d", pend.Key, o.keyIter+1,
		))
	}
	s, err := o.set.Lookup(pend.Type)
	if err != nil {
		return pend.Pending, err
	}
	opt := o.filterOption(false)
	opt.Mode = schema.Create
	if err := o.reg.CreateEntry(pend.Type, s, pend.Key, pend.Parent, pend.Field, alias, nil, opt); err != nil {
		return pend.Pending, err
	}
	o.keyIter = pend.Key.Number()
	o.reg.setValidity(pend.Key, Ready)
	if o.reg.Validity(pend.Parent) != Submitted {
		o.reg.setValidity(pend.Parent, NotReady)
	}
	o.active = pend.Key
	o.pending = nil

	ret := pend.Pending
	ret.Stage = StageCreated
	ret.AliasError = ""
	return ret, nil
}
