// Package session drives a submission session along a manifest.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/ffportal/ffsubmit/cmd/ffsubmit/env"
	"github.com/ffportal/ffsubmit/cmd/ffsubmit/manifest"
	"github.com/ffportal/ffsubmit/pkg/schema"
	"github.com/ffportal/ffsubmit/pkg/submission"
	"github.com/google/uuid"
)

var ErrTypeRequired = errors.New("type should be chosen")

// name of the file, taken from the local path unless it is given in the manifest.
const fieldFilename = "filename"

// Progress builds a listener of upload progress for a file.
type Progress func(display string, path string) func(submission.UploadProgress)

// Session is a submission session built from a manifest.
type Session struct {
	orch     *submission.Orchestrator
	logger   *log.Logger
	env      env.FFEnv
	progress Progress

	m     *manifest.Manifest
	nodes map[submission.Key]*manifest.Node
}

type Option func(*Session) *Session

func WithLogger(l *log.Logger) Option {
	return func(s *Session) *Session {
		s.logger = l
		return s
	}
}

func WithEnv(e env.FFEnv) Option {
	return func(s *Session) *Session {
		s.env = e
		return s
	}
}

func WithProgress(p Progress) Option {
	return func(s *Session) *Session {
		s.progress = p
		return s
	}
}

func New(orch *submission.Orchestrator, options ...Option) *Session {
	s := &Session{
		orch:   orch,
		logger: log.New(io.Discard, "", 0),
		nodes:  map[submission.Key]*manifest.Node{},
	}
	for _, o := range options {
		s = o(s)
	}
	return s
}

// Orchestrator returns the orchestrator behind the session.
func (s *Session) Orchestrator() *submission.Orchestrator {
	return s.orch
}

// Build initializes the principal object of m, and creates (or links) every child.
//
// Nothing is submitted yet.
func (s *Session) Build(ctx context.Context, m *manifest.Manifest) error {
	mode, err := m.SessionMode()
	if err != nil {
		return err
	}
	s.m = m

	p := submission.Principal{
		Mode: mode, Type: m.Type, ID: m.ID, Alias: m.Alias,
	}
	if mode == schema.Create {
		p.Values = merge(s.env.DefaultsFor(m.Type), m.Values)
	}
	if err := s.orch.InitializePrincipal(ctx, p); err != nil {
		return err
	}
	if mode != schema.Create && 0 < len(m.Values) {
		if err := s.setValues(submission.Root, m.Values); err != nil {
			return err
		}
	}
	s.nodes[submission.Root] = &m.Node

	return s.buildChildren(ctx, submission.Root, m.Node.Children)
}

func (s *Session) buildChildren(ctx context.Context, parent submission.Key, children []manifest.Node) error {
	for i := range children {
		c := &children[i]
		if c.Existing != "" {
			if err := s.link(parent, c); err != nil {
				return err
			}
			continue
		}

		key, err := s.create(ctx, parent, c)
		if err != nil {
			return err
		}
		s.nodes[key] = c
		if err := s.buildChildren(ctx, key, c.Children); err != nil {
			return err
		}
	}
	return nil
}

// link registers an existing item, and refers it from the parent field.
func (s *Session) link(parent submission.Key, c *manifest.Node) error {
	if _, err := s.orch.AddExistingObj(c.Existing, "", c.Type, parent, c.Field); err != nil {
		return err
	}
	pctx := s.orch.Context(parent)
	if prop, ok := s.fieldOf(parent, c.Field); ok && prop.Kind() == schema.Array {
		arr, _ := pctx[c.Field].([]any)
		pctx[c.Field] = append(arr, c.Existing)
	} else {
		pctx[c.Field] = c.Existing
	}
	s.logger.Printf("linked: %s -> %s", c.Field, c.Existing)
	return s.orch.SetContext(parent, pctx)
}

func (s *Session) fieldOf(key submission.Key, field string) (*schema.Property, bool) {
	e, ok := s.orch.Entry(key)
	if !ok {
		return nil, false
	}
	sc, err := s.orch.Schemas().Lookup(e.Type)
	if err != nil {
		return nil, false
	}
	p, ok := sc.Properties[field]
	return p, ok
}

// create runs the creation flow for c: type choice, alias, then field values.
func (s *Session) create(ctx context.Context, parent submission.Key, c *manifest.Node) (submission.Key, error) {
	pending, err := s.orch.InitCreateObj(ctx, parent, c.Field, "")
	if err != nil {
		return submission.Key{}, err
	}

	if pending.Stage == submission.StageAmbiguousType {
		if c.Type == "" {
			s.orch.CancelCreate()
			return submission.Key{}, fmt.Errorf(
				"%w: %s accepts one of %v", ErrTypeRequired, c.Field, pending.Choices,
			)
		}
		if pending, err = s.orch.SelectType(ctx, c.Type); err != nil {
			s.orch.CancelCreate()
			return submission.Key{}, err
		}
	}

	if pending.Stage == submission.StageAlias {
		alias := c.Alias
		if alias == "" {
			alias = pending.AliasPrefix + uuid.NewString()
			s.logger.Printf("alias is not given for %s. generated: %s", c.Field, alias)
		}
		if pending, err = s.orch.SubmitAlias(ctx, alias); err != nil {
			s.orch.CancelCreate()
			return submission.Key{}, err
		}
	}

	key := pending.Key
	values := merge(s.env.DefaultsFor(pending.Type), c.Values)
	if err := s.setValues(key, values); err != nil {
		return key, err
	}
	return key, nil
}

func (s *Session) setValues(key submission.Key, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	ctx := s.orch.Context(key)
	for k, v := range values {
		ctx[k] = v
	}
	return s.orch.SetContext(key, ctx)
}

// postOrder lists placeholder keys, children first.
func (s *Session) postOrder() []submission.Key {
	h := s.orch.Hierarchy()
	var walk func(k submission.Key) []submission.Key
	walk = func(k submission.Key) []submission.Key {
		ret := []submission.Key{}
		for _, c := range h.Children(k) {
			ret = append(ret, walk(c)...)
		}
		if k.IsPlaceholder() {
			ret = append(ret, k)
		}
		return ret
	}
	return walk(submission.Root)
}

// Report is the outcome of validating one object.
type Report struct {
	Key     submission.Key
	Display string
	Type    string

	// nil when the object is accepted.
	Err error

	// true when the object cannot be validated until its children are submitted.
	Blocked bool
}

// Validate asks the portal to check every object without persisting them.
//
// Objects referring to new children cannot be checked, and they are reported as blocked.
func (s *Session) Validate(ctx context.Context) []Report {
	reports := []Report{}
	for _, k := range s.postOrder() {
		e, _ := s.orch.Entry(k)
		r := Report{Key: k, Display: e.Display, Type: e.Type}
		_, err := s.orch.Submit(ctx, k, submission.SubmitOption{TestOnly: true, SuppressAlerts: true})
		if errors.Is(err, submission.ErrNotReady) {
			r.Blocked = true
		} else {
			r.Err = err
		}
		reports = append(reports, r)
	}
	return reports
}

// Submit persists every object, children first, then runs the second round.
//
// # Returns
//
// - string: @id of the principal object.
//
// - error
func (s *Session) Submit(ctx context.Context) (string, error) {
	for _, k := range s.postOrder() {
		e, _ := s.orch.Entry(k)
		res, err := s.orch.Submit(ctx, k, submission.SubmitOption{})
		if err != nil {
			return "", fmt.Errorf("%s (%s): %w", e.Display, e.Type, err)
		}
		s.logger.Printf("submitted: %s -> %s", e.Display, res.ID)
		if res.Finalized != "" {
			return res.Finalized, nil
		}
	}

	for s.orch.Phase() == submission.RoundTwo {
		id, err := s.roundTwo(ctx, s.orch.Active())
		if err != nil {
			return "", err
		}
		if id != "" {
			return id, nil
		}
	}
	id, ok := s.orch.Finalized()
	if !ok {
		return "", fmt.Errorf("submission is not finalized (phase: %s)", s.orch.Phase())
	}
	return id, nil
}

// roundTwo completes one queued object.
func (s *Session) roundTwo(ctx context.Context, key submission.Key) (string, error) {
	e, _ := s.orch.Entry(key)
	node, ok := s.nodes[key]
	if !ok || (len(node.RoundTwo) == 0 && node.File == "") {
		return s.orch.SkipRoundTwo()
	}

	values := merge(nil, node.RoundTwo)
	if _, ok := values[fieldFilename]; !ok && node.File != "" {
		if v, ok := s.orch.Context(key)[fieldFilename]; ok && v == nil {
			values[fieldFilename] = filepath.Base(node.File)
		}
	}
	if err := s.setValues(key, values); err != nil {
		return "", err
	}
	res, err := s.orch.Submit(ctx, key, submission.SubmitOption{})
	if err != nil {
		return "", fmt.Errorf("%s (%s): round two: %w", e.Display, e.Type, err)
	}
	if res.Finalized != "" || !res.NeedsUpload {
		return res.Finalized, nil
	}

	path := s.m.FilePath(node)
	if path == "" {
		s.logger.Printf("no file is given for %s. upload is skipped", e.Display)
		return s.orch.FinishRoundTwo()
	}
	file, err := OpenFile(path)
	if err != nil {
		return "", err
	}
	var listener func(submission.UploadProgress)
	if s.progress != nil {
		listener = s.progress(e.Display, path)
	}
	s.logger.Printf("uploading: %s <- %s", e.Display, path)
	return s.orch.Upload(ctx, key, file, listener)
}

func merge(base map[string]any, over map[string]any) map[string]any {
	ret := map[string]any{}
	for k, v := range base {
		ret[k] = v
	}
	for k, v := range over {
		ret[k] = v
	}
	return ret
}

type localFile struct {
	path string
	size int64
}

// OpenFile makes a local file an upload source.
func OpenFile(path string) (submission.FileSource, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !stat.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", path)
	}
	return &localFile{path: path, size: stat.Size()}, nil
}

func (f *localFile) Size() int64 {
	return f.size
}

func (f *localFile) Open() (io.ReadCloser, error) {
	return os.Open(f.path)
}
