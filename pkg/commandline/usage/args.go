package usage

import (
	"errors"
	"fmt"
)

// Arg is a positional argument.
type Arg struct {
	Name string
	Help string

	Required   bool
	Repeatable bool
}

func (a Arg) String() string {
	s := a.Name
	if a.Repeatable {
		s += "..."
	}
	if a.Required {
		return "<" + s + ">"
	}
	return "[" + s + "]"
}

// Args is positional arguments, in order.
type Args []Arg

func (as Args) String() string {
	s := ""
	for _, a := range as {
		s += " " + a.String()
	}
	return s
}

var (
	ErrArgs      = errors.New("arguments error")
	ErrNotEnough = fmt.Errorf("%w: not enough", ErrArgs)
	ErrTooMany   = fmt.Errorf("%w: too many", ErrArgs)
)

// Parse assigns argv to arguments from the head.
//
// Repeatable and optional arguments take as many values as they can,
// leaving one value for each of the following required arguments.
// Every argument has its key in the result, even if it gets no values.
func (as Args) Parse(argv []string) (map[string][]string, error) {
	parsed := make(map[string][]string, len(as))
	rest := argv
	for i, a := range as {
		reserved := 0
		for _, b := range as[i+1:] {
			if b.Required {
				reserved++
			}
		}

		available := len(rest) - reserved
		if a.Required && available < 1 {
			return nil, ErrNotEnough
		}

		take := max(available, 0)
		if !a.Repeatable {
			take = min(take, 1)
		}
		parsed[a.Name] = append([]string{}, rest[:take]...)
		rest = rest[take:]
	}

	if 0 < len(rest) {
		return nil, ErrTooMany
	}
	return parsed, nil
}
