package submission

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/ffportal/ffsubmit/pkg/api/types/items"
	"github.com/ffportal/ffsubmit/pkg/schema"
)

// Phase is the orchestrator-wide state.
type Phase int

const (
	Initializing Phase = iota
	Editing
	AmbiguousTypeSelection
	AliasAssignment
	RoundTwo
	Done
)

func (p Phase) String() string {
	switch p {
	case Initializing:
		return "initializing"
	case Editing:
		return "editing"
	case AmbiguousTypeSelection:
		return "ambiguous type selection"
	case AliasAssignment:
		return "alias assignment"
	case RoundTwo:
		return "round two"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Orchestrator drives a submission session.
//
// It owns the registry and hierarchy, and is the only one sending requests to the portal.
// Methods are safe for concurrent use. While a file is being checksummed or uploaded,
// navigation and submission are refused with ErrBusy.
type Orchestrator struct {
	mux sync.Mutex

	transport Transport
	schemas   SchemaSource
	uploader  Uploader
	logger    *log.Logger
	chunkSize int64

	set         schema.Set
	user        *items.User
	lab         *items.Lab
	mode        schema.Mode
	editID      string
	original    Context
	initialized bool

	reg      *Registry
	keyIter  uint64
	active   Key
	roundTwo bool
	pending  *pendingCreate
	alerts   Alerts
	busy     bool

	finalized string
}

type Option func(*Orchestrator) *Orchestrator

// WithLogger sets the logger. By default, logs are discarded.
func WithLogger(logger *log.Logger) Option {
	return func(o *Orchestrator) *Orchestrator {
		o.logger = logger
		return o
	}
}

// WithUploader sets the file content uploader.
func WithUploader(u Uploader) Option {
	return func(o *Orchestrator) *Orchestrator {
		o.uploader = u
		return o
	}
}

// DefaultChunkSize is the read size of checksum computation.
const DefaultChunkSize int64 = 4 * 1024 * 1024

// WithChunkSize sets the read size of checksum computation.
//
// Non-positive size means DefaultChunkSize.
func WithChunkSize(size int64) Option {
	return func(o *Orchestrator) *Orchestrator {
		if size <= 0 {
			size = DefaultChunkSize
		}
		o.chunkSize = size
		return o
	}
}

func New(transport Transport, schemas SchemaSource, options ...Option) *Orchestrator {
	o := &Orchestrator{
		transport: transport,
		schemas:   schemas,
		logger:    log.New(io.Discard, "", 0),
		chunkSize: DefaultChunkSize,
		reg:       NewRegistry(),
	}
	for _, opt := range options {
		o = opt(o)
	}
	return o
}

// Active returns the key being edited.
func (o *Orchestrator) Active() Key {
	o.mux.Lock()
	defer o.mux.Unlock()
	return o.active
}

func (o *Orchestrator) Phase() Phase {
	o.mux.Lock()
	defer o.mux.Unlock()
	return o.phase()
}

func (o *Orchestrator) phase() Phase {
	switch {
	case !o.initialized:
		return Initializing
	case o.finalized != "":
		return Done
	case o.pending != nil && o.pending.Stage == StageAmbiguousType:
		return AmbiguousTypeSelection
	case o.pending != nil && o.pending.Stage == StageAlias:
		return AliasAssignment
	case o.roundTwo:
		return RoundTwo
	default:
		return Editing
	}
}

// Mode returns the mode of the principal object.
func (o *Orchestrator) Mode() schema.Mode {
	o.mux.Lock()
	defer o.mux.Unlock()
	return o.mode
}

func (o *Orchestrator) Validity(key Key) ValidationState {
	o.mux.Lock()
	defer o.mux.Unlock()
	return o.reg.Validity(key)
}

func (o *Orchestrator) Hierarchy() Hierarchy {
	o.mux.Lock()
	defer o.mux.Unlock()
	return o.reg.Hierarchy()
}

// Entry returns a snapshot of key.
func (o *Orchestrator) Entry(key Key) (Entry, bool) {
	o.mux.Lock()
	defer o.mux.Unlock()
	return o.reg.Entry(key)
}

// Snapshot returns entries of every key.
func (o *Orchestrator) Snapshot() []Entry {
	o.mux.Lock()
	defer o.mux.Unlock()
	return o.reg.Snapshot()
}

// Context returns a copy of the context of key.
func (o *Orchestrator) Context(key Key) Context {
	o.mux.Lock()
	defer o.mux.Unlock()
	return o.reg.Context(key)
}

// Finalized returns the @id of the principal object when the session is done.
func (o *Orchestrator) Finalized() (string, bool) {
	o.mux.Lock()
	defer o.mux.Unlock()
	return o.finalized, o.finalized != ""
}

func (o *Orchestrator) RoundTwoQueue() []Key {
	o.mux.Lock()
	defer o.mux.Unlock()
	return o.reg.RoundTwoQueue()
}

func (o *Orchestrator) Alerts() []Alert {
	o.mux.Lock()
	defer o.mux.Unlock()
	return o.alerts.List()
}

func (o *Orchestrator) DismissAlert(id string) {
	o.mux.Lock()
	defer o.mux.Unlock()
	o.alerts.Dismiss(id)
}

// Busy reports whether a file is being checksummed or uploaded.
func (o *Orchestrator) Busy() bool {
	o.mux.Lock()
	defer o.mux.Unlock()
	return o.busy
}

// Schemas returns the schema set loaded on initialization.
func (o *Orchestrator) Schemas() schema.Set {
	o.mux.Lock()
	defer o.mux.Unlock()
	return o.set
}

// User returns the acting user. It is nil when the user could not be fetched.
func (o *Orchestrator) User() *items.User {
	o.mux.Lock()
	defer o.mux.Unlock()
	return o.user
}

func (o *Orchestrator) filterOption(roundTwo bool) schema.FilterOption {
	return schema.FilterOption{Mode: o.mode, IsAdmin: o.user.IsAdmin(), RoundTwo: roundTwo}
}

func (o *Orchestrator) guard() error {
	if !o.initialized {
		return ErrNotInitialized
	}
	if o.busy {
		return ErrBusy
	}
	return nil
}

// SetContext replaces the context of key.
func (o *Orchestrator) SetContext(key Key, ctx Context) error {
	o.mux.Lock()
	defer o.mux.Unlock()
	if !o.initialized {
		return ErrNotInitialized
	}
	k, ok := o.reg.Resolve(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return o.reg.SetContext(k, ctx)
}

// SetActiveKey switches the key being edited.
//
// When the current key is Ready, it is validated silently (check-only, no alerts) before leaving.
// Readiness of the target is recomputed before switching.
func (o *Orchestrator) SetActiveKey(ctx context.Context, key Key) error {
	o.mux.Lock()
	defer o.mux.Unlock()
	if err := o.guard(); err != nil {
		return err
	}
	if o.pending != nil {
		return ErrCreateInProgress
	}
	target, ok := o.reg.Resolve(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if target == o.active {
		return nil
	}

	if o.reg.Validity(o.active) == Ready {
		if _, err := o.submit(ctx, o.active, SubmitOption{TestOnly: true, SuppressAlerts: true}); err != nil {
			o.logger.Printf("silent validation of %s: %s", o.reg.Display(o.active), err)
		}
	}

	if o.reg.Validity(target) == NotReady {
		o.reg.setValidity(target, o.reg.Readiness(target))
	}
	o.active = target
	return nil
}

// AddExistingObj registers an object which is already in the portal, under parent.
func (o *Orchestrator) AddExistingObj(id string, display string, typeName string, parent Key, field string) (Key, error) {
	o.mux.Lock()
	defer o.mux.Unlock()
	if !o.initialized {
		return Key{}, ErrNotInitialized
	}
	p, ok := o.reg.Resolve(parent)
	if !ok {
		return Key{}, fmt.Errorf("%w: %s", ErrUnknownKey, parent)
	}
	return o.reg.AddExisting(id, typeName, display, p, field)
}

// RemoveObj removes key and its descendants from the session.
//
// Descendants already persisted keep their registry rows; only their place in the hierarchy is lost.
// References to key in the parent context are dropped.
//
// # Returns
//
// - []Key: keys purged from the registry.
//
// - error
func (o *Orchestrator) RemoveObj(key Key) ([]Key, error) {
	o.mux.Lock()
	defer o.mux.Unlock()
	if err := o.guard(); err != nil {
		return nil, err
	}
	k, ok := o.reg.Resolve(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if k.IsRoot() {
		return nil, ErrRootIsNotRemovable
	}

	parent, hasParent := o.reg.hierarchy.ParentOf(k)
	id, wasComplete := o.reg.CompletionOf(k)

	purged, err := o.reg.RemoveEntry(k, true)
	if err != nil {
		return nil, err
	}
	for _, p := range purged {
		o.alerts.ClearFor(p)
	}

	if hasParent && o.reg.Has(parent) {
		pctx := o.reg.contexts[parent].Unset(k)
		if wasComplete {
			pctx = pctx.Unset(Persisted(id))
		}
		o.reg.contexts[parent] = pctx
		if o.reg.Validity(parent) == NotReady {
			o.reg.setValidity(parent, o.reg.Readiness(parent))
		}
	}

	for _, p := range purged {
		if p == o.active {
			if hasParent {
				o.active = parent
			} else {
				o.active = Root
			}
			break
		}
	}
	return purged, nil
}
