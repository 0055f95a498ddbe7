// Package command adapts ffsubmit subcommands to github.com/google/subcommands.
package command

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	prof "github.com/ffportal/ffsubmit/cmd/ffsubmit/config/profiles"
	"github.com/ffportal/ffsubmit/cmd/ffsubmit/env"
	cerr "github.com/ffportal/ffsubmit/cmd/ffsubmit/errors"
	"github.com/ffportal/ffsubmit/cmd/ffsubmit/rest"
	"github.com/ffportal/ffsubmit/pkg/commandline/usage"
	"github.com/google/subcommands"
)

// Help message components.
type Help struct {
	// one line description, shown in the list of commands.
	Synopsis string

	// usage examples.
	Example string

	// long description. Synopsis is shown instead when empty.
	Detail string
}

// FFCommand is a subcommand which talks to the portal.
//
// Build turns it into a subcommands.Command, which resolves the profile and the ffenv,
// and then calls Execute.
type FFCommand[T any] interface {
	// Execute runs the command.
	//
	// Return ErrUsage (or an error wrapping it) for invalid flags or arguments.
	Execute(ctx context.Context, l *log.Logger, e env.FFEnv, c rest.Client, flags usage.FlagSet[T]) error

	Name() string

	// Usage returns flags and arguments. It should return the same thing on each call.
	Usage() usage.Usage[T]

	Help() Help
}

// ErrUsage means the command is invoked with invalid flags or arguments.
var ErrUsage = errors.New("usage error")

// Build wraps c as a subcommands.Command.
//
// commonFlags are the defaults of the flags shared by all commands.
func Build[T any](c FFCommand[T], commonFlags CommonFlags) subcommands.Command {
	cf := commonFlags
	return &command[T]{
		c:           c,
		usage:       c.Usage(),
		common:      &cf,
		commonFlags: usage.Bind(&cf),
	}
}

type command[T any] struct {
	c           FFCommand[T]
	usage       usage.Usage[T]
	common      *CommonFlags
	commonFlags usage.Flags
	parent      string
}

func (c *command[T]) SetParent(parent string) {
	c.parent = parent
}

func (c *command[T]) Name() string {
	return c.c.Name()
}

func (c *command[T]) Synopsis() string {
	return c.c.Help().Synopsis
}

func (c *command[T]) Usage() string {
	return BuildUsageMessage(
		strings.TrimSpace(c.parent+" "+c.Name()), c.c.Help(), c.usage, c.commonFlags...,
	)
}

func (c *command[T]) SetFlags(f *flag.FlagSet) {
	c.usage.SetFlags(f)
	c.commonFlags.Register(f)
}

func (c *command[T]) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	logger, _, ok := extract[*log.Logger](args)
	if !ok {
		return subcommands.ExitFailure
	}
	logger = log.New(logger.Writer(), nest(logger.Prefix(), c.Name()), logger.Flags())

	client, e, err := c.connect()
	if err != nil {
		logger.Println(err)
		return subcommands.ExitFailure
	}

	flg, err := c.usage.Parse(f.Args())
	if err != nil {
		logger.Println(err)
		c.explain(args)
		return subcommands.ExitUsageError
	}

	err = c.c.Execute(ctx, logger, *e, client, flg)
	if err == nil {
		return subcommands.ExitSuccess
	}

	var ce cerr.CUIError
	if c.common.Verbose && errors.As(err, &ce) {
		logger.Println(ce.Verbose())
	} else {
		logger.Println(err)
	}
	if errors.Is(err, ErrUsage) {
		c.explain(args)
		return subcommands.ExitUsageError
	}
	return subcommands.ExitFailure
}

// connect resolves the profile and the ffenv named by the common flags.
func (c *command[T]) connect() (rest.Client, *env.FFEnv, error) {
	cf := c.common
	askAdmin := "Ask the portal admin for an ffprofile, and run `ffsubmit init` with it."

	store, err := prof.LoadProfileStore(cf.ProfileStore)
	if errors.Is(err, prof.ErrProfileStoreNotFound) {
		return nil, nil, fmt.Errorf("ffprofile store (%s) is not found.\n%s", cf.ProfileStore, askAdmin)
	} else if err != nil {
		return nil, nil, fmt.Errorf("ffprofile store (%s) cannot be loaded: %w", cf.ProfileStore, err)
	}

	profile, ok := store[cf.Profile]
	if !ok {
		return nil, nil, fmt.Errorf("ffprofile %s is not in %s.\n%s", cf.Profile, cf.ProfileStore, askAdmin)
	}

	client, err := rest.NewClient(profile)
	if errors.Is(err, prof.ErrTokenExpired) {
		return nil, nil, fmt.Errorf(
			"the token of ffprofile %s (in %s) is expired: %w\n%s", cf.Profile, cf.ProfileStore, err, askAdmin,
		)
	} else if err != nil {
		return nil, nil, fmt.Errorf(
			"ffprofile %s (in %s) may be broken: %w\nRemove it from the store. %s", cf.Profile, cf.ProfileStore, err, askAdmin,
		)
	}

	e, err := env.LoadFFEnv(cf.Env)
	if err != nil {
		return nil, nil, fmt.Errorf("ffenv (%s) cannot be loaded: %w", cf.Env, err)
	}
	return client, e, nil
}

func (c *command[T]) explain(args []any) {
	if p, _, ok := extract[*subcommands.Commander](args); ok {
		p.ExplainCommand(os.Stderr, c)
	}
}

// nest makes a log prefix like "[ffsubmit item edit] " from "[ffsubmit item] " and "edit".
func nest(prefix string, name string) string {
	return "[" + strings.TrimSpace(strings.Trim(strings.TrimSpace(prefix), "[]")+" "+name) + "] "
}

// extract finds the first T in args, and returns it with the others.
func extract[T any](args []any) (T, []any, bool) {
	for i, arg := range args {
		if v, ok := arg.(T); ok {
			rest := append(append([]any{}, args[:i]...), args[i+1:]...)
			return v, rest, true
		}
	}
	return *new(T), args, false
}
