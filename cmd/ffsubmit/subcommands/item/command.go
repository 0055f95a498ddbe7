// Package item provides commands changing an item already in the portal.
package item

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	ffcmd "github.com/ffportal/ffsubmit/cmd/ffsubmit/commandline/command"
	"github.com/ffportal/ffsubmit/cmd/ffsubmit/env"
	"github.com/ffportal/ffsubmit/cmd/ffsubmit/manifest"
	"github.com/ffportal/ffsubmit/cmd/ffsubmit/rest"
	"github.com/ffportal/ffsubmit/cmd/ffsubmit/subcommands/common"
	"github.com/ffportal/ffsubmit/cmd/ffsubmit/subcommands/submit"
	kflg "github.com/ffportal/ffsubmit/pkg/commandline/flag"
	"github.com/ffportal/ffsubmit/pkg/commandline/usage"
	"github.com/ffportal/ffsubmit/pkg/schema"
)

type Flags struct {
	Set         kflg.Values `flag:"set,short=s,metavar=NAME=VALUE...,help=Field value to be put. It can be specified multiple times."`
	Alias       string      `flag:"alias,metavar=ALIAS,help=Alias of the new item (clone only)."`
	DumpSession string      `flag:"dump-session,metavar=PATH,help=Write the final state of the session into PATH as YAML."`
}

type Command struct {
	mode        schema.Mode
	progressOut io.Writer
	output      io.Writer
}

type Option func(*Command) *Command

func WithProgressOut(w io.Writer) Option {
	return func(c *Command) *Command {
		c.progressOut = w
		return c
	}
}

func WithOutput(w io.Writer) Option {
	return func(c *Command) *Command {
		c.output = w
		return c
	}
}

func newCommand(mode schema.Mode, opt ...Option) *Command {
	c := &Command{
		mode:        mode,
		progressOut: os.Stderr,
		output:      os.Stdout,
	}
	for _, o := range opt {
		c = o(c)
	}
	return c
}

// NewEdit returns a command which patches an item.
func NewEdit(opt ...Option) ffcmd.FFCommand[Flags] {
	return newCommand(schema.Edit, opt...)
}

// NewClone returns a command which creates a new item from an existing one.
func NewClone(opt ...Option) ffcmd.FFCommand[Flags] {
	return newCommand(schema.Clone, opt...)
}

// Help of the command group of NewEdit and NewClone.
func Help() ffcmd.Help {
	return ffcmd.Help{
		Synopsis: "edit or clone items in the portal",
	}
}

func (cmd *Command) Name() string {
	return cmd.mode.String()
}

const (
	ARG_ID       = "ID"
	ARG_MANIFEST = "MANIFEST"
)

func (*Command) Usage() usage.Usage[Flags] {
	return usage.New(
		Flags{},
		usage.Args{
			{
				Name: ARG_ID, Required: true,
				Help: "@id of the item, like /experiments/4DNEX1234567/ .",
			},
			{
				Name: ARG_MANIFEST, Required: false,
				Help: "manifest file with values and new children. Its mode and id are replaced.",
			},
		},
	)
}

func (cmd *Command) Help() ffcmd.Help {
	if cmd.mode == schema.Clone {
		return ffcmd.Help{
			Synopsis: "create a new item by copying an item in the portal",
			Example: `
	{{ .Command }} --alias my-lab:exp-2 --set description=replicate /experiments/4DNEX1234567/
`,
			Detail: `
Create a new item of the same type as the given item, starting from its values.
Fields which identify the original item (like aliases and accessions) are not copied.

The @id of the new item is written to stdout.
`,
		}
	}
	return ffcmd.Help{
		Synopsis: "change fields of an item in the portal",
		Example: `
	{{ .Command }} --set description="hi-c on tissue" /experiments/4DNEX1234567/

To link new children described in a manifest:

	{{ .Command }} /experiments/4DNEX1234567/ ./new-files.yaml
`,
		Detail: `
Patch the item with the given values. Fields emptied by the manifest are deleted from the item.
New children in the manifest are submitted before the item is patched.
`,
	}
}

func (cmd *Command) Execute(
	ctx context.Context,
	l *log.Logger,
	e env.FFEnv,
	c rest.Client,
	flags usage.FlagSet[Flags],
) error {
	id := flags.Args[ARG_ID][0]
	m := &manifest.Manifest{Mode: cmd.mode.String(), ID: id}
	if mf := flags.Args[ARG_MANIFEST]; 0 < len(mf) {
		loaded, err := manifest.LoadFor(mf[0], cmd.mode, id)
		if err != nil {
			return fmt.Errorf("%w: %s", ffcmd.ErrUsage, err)
		}
		m = loaded
	}
	if cmd.mode == schema.Clone && flags.Flags.Alias != "" {
		m.Alias = flags.Flags.Alias
	}
	common.Overwrite(m, flags.Flags.Set)
	if err := m.Verify(); err != nil {
		return fmt.Errorf("%w: %s", ffcmd.ErrUsage, err)
	}

	s, err := common.NewSession(l, e, c, cmd.progressOut)
	if err != nil {
		return err
	}
	return submit.Run(ctx, l, s, m, flags.Flags.DumpSession, cmd.output)
}
