package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	ffcmd "github.com/ffportal/ffsubmit/cmd/ffsubmit/commandline/command"
	"github.com/ffportal/ffsubmit/cmd/ffsubmit/env"
	cerr "github.com/ffportal/ffsubmit/cmd/ffsubmit/errors"
	"github.com/ffportal/ffsubmit/cmd/ffsubmit/rest"
	"github.com/ffportal/ffsubmit/cmd/ffsubmit/session"
	"github.com/ffportal/ffsubmit/cmd/ffsubmit/subcommands/common"
	"github.com/ffportal/ffsubmit/pkg/commandline/usage"
	"github.com/ffportal/ffsubmit/pkg/submission"
)

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

func New(opt ...Option) ffcmd.FFCommand[struct{}] {
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
	return "upload"
}

const (
	ARG_ID   = "ID"
	ARG_FILE = "FILE"
)

func (*Command) Usage() usage.Usage[struct{}] {
	return usage.New(
		struct{}{},
		usage.Args{
			{
				Name: ARG_ID, Required: true,
				Help: "@id of the file item, like /files-fastq/4DNFI1234567/ .",
			},
			{
				Name: ARG_FILE, Required: true,
				Help: "file to be uploaded as the content of the item.",
			},
		},
	)
}

func (*Command) Help() ffcmd.Help {
	return ffcmd.Help{
		Synopsis: "upload the content of a file item already in the portal",
		Example: `
	{{ .Command }} /files-fastq/4DNFI1234567/ ./reads.fastq
`,
		Detail: `
Compute the MD5 checksum of the file, save it into the item, and upload the file.

When another file item has the same checksum, the upload is refused.
When the transfer fails, the status of the item becomes "upload failed".
Run this command again to retry.
`,
	}
}

func (cmd *Command) Execute(
	ctx context.Context,
	l *log.Logger,
	e env.FFEnv,
	c rest.Client,
	flags usage.FlagSet[struct{}],
) error {
	id := flags.Args[ARG_ID][0]
	path := flags.Args[ARG_FILE][0]

	file, err := session.OpenFile(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ffcmd.ErrUsage, err)
	}
	chunk, err := e.ChunkBytes()
	if err != nil {
		return err
	}

	progress := common.Progress(l, cmd.progressOut, common.IsTerminal(cmd.progressOut))
	uc := submission.NewUploadCoordinator(c, c, chunk, l)
	if err := uc.Run(ctx, id, file, progress(id, path)); err != nil {
		cce := new(submission.ChecksumConflictError)
		if errors.As(err, &cce) {
			return cerr.NewCuiError(
				fmt.Sprintf("%s is already uploaded as another file (md5sum: %s)", path, cce.MD5Sum),
				cerr.WithCause(err),
			)
		}
		return common.Explain(err)
	}

	_, err = fmt.Fprintln(cmd.output, id)
	return err
}
