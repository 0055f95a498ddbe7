package submission

// ValidationState is the lifecycle state of a key.
type ValidationState int

const (
	// the object has incomplete children.
	NotReady ValidationState = iota

	// all children are complete; the object can be validated.
	Ready

	// the last validation or submission has been rejected.
	Failed

	// a check-only request has been accepted.
	Validated

	// the object is persisted. Terminal.
	Submitted
)

func (vs ValidationState) String() string {
	switch vs {
	case NotReady:
		return "not ready"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	case Validated:
		return "validated"
	case Submitted:
		return "submitted"
	default:
		return "unknown"
	}
}

func (vs ValidationState) MarshalText() ([]byte, error) {
	return []byte(vs.String()), nil
}

// Readiness decides whether key can be validated.
//
// A placeholder child directly under key blocks readiness
// when it is not in complete and ctx (the context of key) still refers to it.
// Persisted children never block.
//
// # Returns
//
// NotReady or Ready.
func Readiness(h Hierarchy, key Key, ctx Context, complete map[Key]string) ValidationState {
	tree := h.Clone()
	sub, ok := tree.SubtreeOf(key)
	if !ok {
		return Ready
	}
	for child := range sub {
		if !child.IsPlaceholder() {
			continue
		}
		if _, done := complete[child]; done {
			continue
		}
		if ctx.References(child) {
			return NotReady
		}
	}
	return Ready
}
