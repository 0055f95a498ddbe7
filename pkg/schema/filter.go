package schema

// Mode of the submission session.
type Mode int

const (
	Create Mode = iota
	Edit
	Clone
)

func (m Mode) String() string {
	switch m {
	case Create:
		return "create"
	case Edit:
		return "edit"
	case Clone:
		return "clone"
	default:
		return "unknown"
	}
}

// FilterOption is the situation a field is evaluated in.
type FilterOption struct {
	Mode Mode

	// the acting user belongs to the admin group.
	IsAdmin bool

	// the object is in its second submission round.
	RoundTwo bool
}

// Inclusion is the verdict of the field inclusion rule.
type Inclusion int

const (
	// the field is not a part of the object context.
	Excluded Inclusion = iota

	// the field is a part of the context, with its previous value.
	Included

	// the field is a part of the context, but its previous value is dropped.
	Cleared
)

// Include applies the field inclusion rule for a top-level property.
func Include(p *Property, opt FilterOption) Inclusion {
	if p == nil {
		return Excluded
	}
	if p.CalculatedProperty {
		return Excluded
	}
	if contains(p.ExcludeFrom, ExcludeFromEditCreate) {
		return Excluded
	}
	if p.Permission == PermissionImportItems && !opt.IsAdmin {
		return Excluded
	}
	if (p.FFFlag == FlagSecondRound) != opt.RoundTwo {
		return Excluded
	}

	switch {
	case p.FFFlag == FlagClearEdit && opt.Mode == Edit:
		return Cleared
	case p.FFFlag == FlagClearClone && opt.Mode == Clone:
		return Cleared
	}
	return Included
}

// Filter builds an object context from previous values.
//
// Every included field is in the result; fields without previous value
// (or cleared ones) are nil. Excluded fields and fields unknown to the schema are dropped.
func Filter(s *Schema, values map[string]any, opt FilterOption) map[string]any {
	ret := map[string]any{}
	for name, p := range s.Properties {
		switch Include(p, opt) {
		case Excluded:
			continue
		case Cleared:
			ret[name] = nil
		case Included:
			if v, ok := values[name]; ok {
				ret[name] = v
			} else {
				ret[name] = nil
			}
		}
	}
	return ret
}
