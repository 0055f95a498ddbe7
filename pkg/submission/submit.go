package submission

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ffportal/ffsubmit/pkg/schema"
)

var ErrNoIdentity = errors.New("portal response has no @id")

type SubmitOption struct {
	// only validates the object. Nothing is persisted.
	TestOnly bool

	// do not raise alerts on failure.
	SuppressAlerts bool
}

// SubmitResult is the outcome of an accepted Submit.
type SubmitResult struct {
	Key Key

	// validity of Key after the submission.
	Validity ValidationState

	// @id of the object. Empty for check-only submissions.
	ID string

	// the record returned by the portal.
	Record map[string]any

	// true if Key has been put into the round-two queue by this submission.
	Enqueued bool

	// true if this submission (of the root) has started round two.
	RoundTwoStarted bool

	// true if Key is a file item waiting for its content. Use Upload, or FinishRoundTwo to skip.
	NeedsUpload bool

	// @id of the root when the whole session is finalized by this submission.
	Finalized string
}

// Submit sends the object of key to the portal.
//
// The request is:
//
// - PATCH to the @id of key, for objects in round two,
//
// - PATCH to the edited item, for the root in edit mode,
//
// - POST to "/{Type}/" otherwise.
//
// PATCHes carry `delete_fields` for fields cleared since the snapshot before editing.
// Objects which are NotReady are never submitted (ErrNotReady).
//
// When the portal rejects the request, the validity of key becomes Failed
// and *ValidationError is returned. Unless opt.SuppressAlerts, alerts are raised for each error.
func (o *Orchestrator) Submit(ctx context.Context, key Key, opt SubmitOption) (SubmitResult, error) {
	o.mux.Lock()
	defer o.mux.Unlock()
	if err := o.guard(); err != nil {
		return SubmitResult{}, err
	}
	if o.pending != nil {
		return SubmitResult{}, ErrCreateInProgress
	}
	k, ok := o.reg.Resolve(key)
	if !ok {
		return SubmitResult{}, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return o.submit(ctx, k, opt)
}

func (o *Orchestrator) submit(ctx context.Context, key Key, opt SubmitOption) (SubmitResult, error) {
	res := SubmitResult{Key: key}
	typeName := o.reg.Type(key)
	s, err := o.set.Lookup(typeName)
	if err != nil {
		o.logger.Printf("%s", err)
		return res, err
	}

	inRoundTwo := o.roundTwo && o.reg.InRoundTwo(key)
	vs := o.reg.Validity(key)
	if vs == Submitted && !inRoundTwo {
		return res, fmt.Errorf("%w: %s", ErrAlreadySubmitted, o.reg.Display(key))
	}
	if vs == NotReady {
		vs = o.reg.Readiness(key)
		o.reg.setValidity(key, vs)
		if vs == NotReady {
			return res, fmt.Errorf("%w: %s", ErrNotReady, o.reg.Display(key))
		}
	}

	payload, err := o.reg.contexts[key].Resolve(o.reg.complete)
	if err != nil {
		return res, fmt.Errorf("%w: %s", ErrNotReady, err)
	}

	fopt := o.filterOption(inRoundTwo)
	req := Request{Query: url.Values{}}
	var before Context
	switch {
	case inRoundTwo:
		id, ok := o.reg.CompletionOf(key)
		if !ok {
			panic(fmt.Sprintf("round-two key %s is not completed", key))
		}
		req.Method = http.MethodPatch
		req.Path = id
		record, _ := o.reg.Record(key)
		before = Context(schema.Filter(s, record, fopt))
	case key.IsRoot() && o.mode == schema.Edit:
		req.Method = http.MethodPatch
		req.Path = o.editID
		before = o.original
	default:
		req.Method = http.MethodPost
		req.Path = "/" + typeName + "/"
		if err := o.applyLabAward(ctx, typeName, s, payload); err != nil {
			return res, err
		}
	}
	req.Body = payload

	if opt.TestOnly {
		req.Query.Set("check_only", "true")
	}
	if req.Method == http.MethodPatch {
		if df := DeleteFields(s, before, payload, fopt); 0 < len(df) {
			req.Query.Set("delete_fields", strings.Join(df, ","))
		}
	}

	resp, err := o.transport.Do(ctx, req)
	if err != nil {
		o.reg.setValidity(key, Failed)
		if !opt.SuppressAlerts {
			o.alerts.Raise(key, "", err.Error())
		}
		return res, err
	}
	if !resp.Succeeded() {
		o.reg.setValidity(key, Failed)
		verr := &ValidationError{
			Key:      key,
			Display:  o.reg.Display(key),
			TestOnly: opt.TestOnly,
			Entries:  resp.Errors,
			Detail:   resp.Detail,
		}
		if verr.Detail == "" {
			verr.Detail = resp.Description
		}
		if !opt.SuppressAlerts {
			o.raise(verr)
		}
		return res, verr
	}
	o.alerts.ClearFor(key)

	if opt.TestOnly {
		o.reg.setValidity(key, Validated)
		res.Validity = Validated
		return res, nil
	}

	record, _ := resp.First()
	id, _ := record["@id"].(string)
	if id == "" && req.Method == http.MethodPatch {
		id = req.Path
	}
	if id == "" {
		o.reg.setValidity(key, Failed)
		return res, fmt.Errorf("%w: %s %s", ErrNoIdentity, req.Method, req.Path)
	}
	res.ID = id
	res.Record = record

	if inRoundTwo {
		if record != nil {
			o.reg.contexts[Persisted(id)] = Context(record).Clone()
		}
		if s.IsFileType() {
			o.reg.setValidity(key, Validated)
			res.Validity = Validated
			res.NeedsUpload = true
			return res, nil
		}
		res.Finalized = o.finishRoundTwo(key)
		res.Validity = Submitted
		return res, nil
	}

	o.reg.Promote(key, id, record)
	o.reg.setValidity(key, Submitted)
	res.Validity = Submitted
	if s.HasSecondRound() {
		res.Enqueued = o.reg.Enqueue(key)
	}

	if key.IsRoot() {
		if 0 < len(o.reg.roundTwo) {
			o.enterRoundTwo()
			res.RoundTwoStarted = true
		} else {
			o.finalize(id)
			res.Finalized = id
		}
		return res, nil
	}

	if parent, ok := o.reg.hierarchy.ParentOf(key); ok {
		if o.reg.Validity(parent) == NotReady {
			o.reg.setValidity(parent, o.reg.Readiness(parent))
		}
		o.active = parent
	}
	return res, nil
}

func (o *Orchestrator) raise(verr *ValidationError) {
	if len(verr.Entries) == 0 {
		o.alerts.Raise(verr.Key, "", verr.Error())
		return
	}
	for _, e := range verr.Entries {
		desc := e.Description
		if e.Name != "" {
			desc = fmt.Sprintf("%s: %s", verr.Display, e.Description)
		}
		o.alerts.Raise(verr.Key, string(e.Name), desc)
	}
}

func (o *Orchestrator) finalize(id string) {
	o.finalized = id
	o.roundTwo = false
	o.active = Root
	o.logger.Printf("submission is done: %s", id)
}
