// Package init implements "ffsubmit init".
//
// It does not talk to the portal, so it is a plain subcommands.Command.
package init

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/subcommands"
	"gopkg.in/yaml.v3"

	ffcmd "github.com/ffportal/ffsubmit/cmd/ffsubmit/commandline/command"
	prof "github.com/ffportal/ffsubmit/cmd/ffsubmit/config/profiles"
	"github.com/ffportal/ffsubmit/pkg/commandline/usage"
)

const ARG_FF_PROFILE_FILE = "FF_PROFILE_FILE"

type Command struct {
	common      *ffcmd.CommonFlags
	commonFlags usage.Flags
	parent      string

	// directory to be marked with .ffprofile
	projectDir string
}

var _ subcommands.Command = &Command{}

type Option func(*Command)

// WithProjectDir sets the directory to be marked with .ffprofile. By default, it is the current directory.
func WithProjectDir(dir string) Option {
	return func(c *Command) {
		c.projectDir = dir
	}
}

func New(commonFlags ffcmd.CommonFlags, opt ...Option) subcommands.Command {
	cf := commonFlags
	c := &Command{
		common:      &cf,
		commonFlags: usage.Bind(&cf),
		projectDir:  ".",
	}
	for _, o := range opt {
		o(c)
	}
	return c
}

func (c *Command) SetParent(p string) {
	c.parent = p
}

func (*Command) Name() string {
	return "init"
}

func (*Command) usage() usage.Usage[struct{}] {
	return usage.New(
		struct{}{},
		usage.Args{
			{
				Name: ARG_FF_PROFILE_FILE, Required: true,
				Help: "ffprofile file, which you received from the portal admin.",
			},
		},
	)
}

func (*Command) help() ffcmd.Help {
	return ffcmd.Help{
		Synopsis: "initialize this directory as a submission project.",
		Detail: `
Register an ffprofile into your profile store, and use it in this directory.

"ffprofile" is a file which contains the endpoint of the portal and your access credential.
"{{ .Command }}" copies the given ffprofile into your profile store,
and marks the current directory with ".ffprofile" to use the profile.

The name of the profile is given by "--profile" ( default: current filepath ).
`,
		Example: `
	{{ .Command }} ./my-account.ffprofile.yaml
`,
	}
}

func (c *Command) Synopsis() string {
	return c.help().Synopsis
}

func (c *Command) Usage() string {
	return ffcmd.BuildUsageMessage(
		strings.TrimSpace(c.parent+" "+c.Name()), c.help(), c.usage(), c.commonFlags...,
	)
}

func (c *Command) SetFlags(f *flag.FlagSet) {
	c.commonFlags.Register(f)
}

func (c *Command) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	logger := log.New(os.Stderr, "", 0)
	for _, a := range args {
		if l, ok := a.(*log.Logger); ok {
			logger = l
		}
	}

	parsed, err := c.usage().Parse(f.Args())
	if err != nil {
		logger.Println(err)
		return subcommands.ExitUsageError
	}

	if err := c.register(parsed.Args[ARG_FF_PROFILE_FILE][0]); err != nil {
		logger.Println(err)
		return subcommands.ExitFailure
	}
	logger.Printf("profile %s is saved to %s", c.common.Profile, c.common.ProfileStore)
	return subcommands.ExitSuccess
}

// register adds the profile in profFile into the store, and marks the project directory.
func (c *Command) register(profFile string) error {
	cf := c.common

	content, err := os.ReadFile(profFile)
	if err != nil {
		return fmt.Errorf("cannot read ffprofile: %w", err)
	}
	p := new(prof.Profile)
	if err := yaml.Unmarshal(content, p); err != nil {
		return fmt.Errorf("%s is not an ffprofile: %w", profFile, err)
	}
	if err := p.Verify(); err != nil {
		return fmt.Errorf("%s: %w", profFile, err)
	}

	store, err := prof.LoadProfileStore(cf.ProfileStore)
	if errors.Is(err, prof.ErrProfileStoreNotFound) {
		store = prof.ProfileStore{}
	} else if err != nil {
		return fmt.Errorf("cannot load ffprofile store (%s): %w", cf.ProfileStore, err)
	}

	store[cf.Profile] = p
	if err := store.Save(cf.ProfileStore); err != nil {
		return err
	}

	marker := filepath.Join(c.projectDir, ".ffprofile")
	if err := os.WriteFile(marker, []byte(cf.Profile), 0600); err != nil {
		return fmt.Errorf("cannot write %s: %w", marker, err)
	}
	return nil
}
