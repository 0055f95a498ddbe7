// Package usage defines flags and positional arguments of a command.
package usage

import (
	"flag"
	"strings"
)

// Usage is a pair of flags (bound to T) and positional arguments.
type Usage[T any] struct {
	values *T
	flags  Flags
	args   Args
}

// New builds a Usage.
//
// Fields of T tagged with "flag" become flags (see Bind),
// and the field values of defaults are their default values.
//
//	type Flags struct {
//		Set     kflg.Values `flag:"set,short=s,metavar=NAME=VALUE...,help=Field value."`
//		DryRun  bool        `flag:",help=do not send anything"` // --dry-run
//	}
//
//	usage.New(Flags{}, usage.Args{{Name: "MANIFEST", Required: true}})
func New[T any](defaults T, args Args) Usage[T] {
	values := defaults
	return Usage[T]{
		values: &values,
		flags:  Bind(&values),
		args:   args,
	}
}

func (u Usage[T]) Args() Args {
	return u.args
}

func (u Usage[T]) Flags() Flags {
	return u.flags
}

// SetFlags defines the flags in fs.
func (u Usage[T]) SetFlags(fs *flag.FlagSet) {
	u.flags.Register(fs)
}

func (u Usage[T]) String() string {
	return strings.TrimSpace(u.flags.String() + u.args.String())
}

// Parse reads positional arguments from argv, and returns them with the flag values.
//
// Call it after the FlagSet given to SetFlags has parsed the command line,
// with the arguments left by the FlagSet.
func (u Usage[T]) Parse(argv []string) (FlagSet[T], error) {
	args, err := u.args.Parse(argv)
	return FlagSet[T]{Flags: *u.values, Args: args}, err
}

// FlagSet is parsed flags and positional arguments.
type FlagSet[T any] struct {
	Flags T

	// values of positional arguments by their names
	Args map[string][]string
}
