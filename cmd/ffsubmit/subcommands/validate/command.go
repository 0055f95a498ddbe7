package validate

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	ffcmd "github.com/ffportal/ffsubmit/cmd/ffsubmit/commandline/command"
	"github.com/ffportal/ffsubmit/cmd/ffsubmit/env"
	cerr "github.com/ffportal/ffsubmit/cmd/ffsubmit/errors"
	"github.com/ffportal/ffsubmit/cmd/ffsubmit/manifest"
	"github.com/ffportal/ffsubmit/cmd/ffsubmit/rest"
	"github.com/ffportal/ffsubmit/cmd/ffsubmit/subcommands/common"
	kflg "github.com/ffportal/ffsubmit/pkg/commandline/flag"
	"github.com/ffportal/ffsubmit/pkg/commandline/usage"
)

type Flags struct {
	Set kflg.Values `flag:"set,short=s,metavar=NAME=VALUE...,help=Field value of the principal object. It can be specified multiple times."`
}

type Command struct {
	output io.Writer
}

type Option func(*Command) *Command

func WithOutput(w io.Writer) Option {
	return func(c *Command) *Command {
		c.output = w
		return c
	}
}

func New(opt ...Option) ffcmd.FFCommand[Flags] {
	c := &Command{output: os.Stdout}
	for _, o := range opt {
		c = o(c)
	}
	return c
}

func (*Command) Name() string {
	return "validate"
}

const ARG_MANIFEST = "MANIFEST"

func (*Command) Usage() usage.Usage[Flags] {
	return usage.New(
		Flags{},
		usage.Args{
			{
				Name: ARG_MANIFEST, Required: true,
				Help: "manifest file to be checked.",
			},
		},
	)
}

func (*Command) Help() ffcmd.Help {
	return ffcmd.Help{
		Synopsis: "ask the portal to check objects in a manifest, without submitting them",
		Example: `
	{{ .Command }} ./experiment.yaml
`,
		Detail: `
Check each object in the manifest with the portal. Nothing is persisted.

Objects referring to new objects cannot be checked until their children are submitted.
They are reported as skipped.
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
	m, err := manifest.Load(flags.Args[ARG_MANIFEST][0])
	if err != nil {
		return fmt.Errorf("%w: %s", ffcmd.ErrUsage, err)
	}
	common.Overwrite(m, flags.Flags.Set)

	s, err := common.NewSession(l, e, c, io.Discard)
	if err != nil {
		return err
	}
	if err := s.Build(ctx, m); err != nil {
		return common.Explain(err)
	}

	reports := s.Validate(ctx)
	if failed := common.PrintReports(cmd.output, reports); 0 < failed {
		return cerr.NewCuiError(fmt.Sprintf("%d of %d object(s) are rejected", failed, len(reports)))
	}
	return nil
}
