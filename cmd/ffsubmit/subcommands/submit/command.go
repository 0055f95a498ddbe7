package submit

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
	"github.com/ffportal/ffsubmit/cmd/ffsubmit/session"
	"github.com/ffportal/ffsubmit/cmd/ffsubmit/subcommands/common"
	kflg "github.com/ffportal/ffsubmit/pkg/commandline/flag"
	"github.com/ffportal/ffsubmit/pkg/commandline/usage"
)

type Flags struct {
	Set         kflg.Values `flag:"set,short=s,metavar=NAME=VALUE...,help=Field value of the principal object. It can be specified multiple times."`
	DumpSession string      `flag:"dump-session,metavar=PATH,help=Write the final state of the session into PATH as YAML."`
}

type Command struct {
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

func New(opt ...Option) ffcmd.FFCommand[Flags] {
	c := &Command{
		progressOut: os.Stderr,
		output:      os.Stdout,
	}
	for _, o := range opt {
		c = o(c)
	}
	return c
}

func (*Command) Name() string {
	return "submit"
}

const ARG_MANIFEST = "MANIFEST"

func (*Command) Usage() usage.Usage[Flags] {
	return usage.New(
		Flags{},
		usage.Args{
			{
				Name: ARG_MANIFEST, Required: true,
				Help: "manifest file (YAML, or JSON with comments) describing objects to submit.",
			},
		},
	)
}

func (*Command) Help() ffcmd.Help {
	return ffcmd.Help{
		Synopsis: "submit objects described in a manifest to the portal",
		Example: `
To submit an experiment with its new biosample and a fastq file:

	{{ .Command }} ./experiment.yaml

To overwrite a field of the principal object:

	{{ .Command }} --set description="hi-c on tissue" ./experiment.yaml

To keep the state of the session for troubleshooting:

	{{ .Command }} --dump-session ./session.yaml ./experiment.yaml
`,
		Detail: `
Submit objects in the manifest, children first and the principal object last.

Objects with fields of the second round (like files) are revisited after the
principal object is submitted. Files given by "file" are checksummed and uploaded then.

The @id of the principal object is written to stdout.
Values in ffenv "defaults" are put into new objects, unless the manifest gives them.
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

	s, err := common.NewSession(l, e, c, cmd.progressOut)
	if err != nil {
		return err
	}
	return Run(ctx, l, s, m, flags.Flags.DumpSession, cmd.output)
}

// Run builds s along m and submits it, then writes the @id of the principal object into out.
//
// When dump is not empty, the state of the session is written there, even if the submission fails.
func Run(
	ctx context.Context, l *log.Logger, s *session.Session,
	m *manifest.Manifest, dump string, out io.Writer,
) error {
	if dump != "" {
		defer func() {
			if err := s.Dump().WriteTo(dump); err != nil {
				l.Printf("[WARN] cannot write the session into %s: %s", dump, err)
				return
			}
			l.Printf("session is written into %s", dump)
		}()
	}

	if err := s.Build(ctx, m); err != nil {
		return common.Explain(err)
	}
	id, err := s.Submit(ctx)
	if err != nil {
		return common.Explain(err)
	}
	l.Printf("[OK] done: %s", id)
	_, err = fmt.Fprintln(out, id)
	return err
}
