package version

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ffportal/ffsubmit/pkg/buildtime"
	"github.com/google/subcommands"
)

type Command struct {
	output io.Writer
}

func New(output io.Writer) subcommands.Command {
	if output == nil {
		output = os.Stdout
	}
	return &Command{output: output}
}

func (*Command) Name() string {
	return "version"
}

func (*Command) Synopsis() string {
	return "show version of this command."
}

func (*Command) Usage() string {
	return "Usage: version\n\n  show version of this command.\n"
}

func (*Command) SetFlags(*flag.FlagSet) {}

func (c *Command) Execute(context.Context, *flag.FlagSet, ...interface{}) subcommands.ExitStatus {
	if _, err := fmt.Fprintln(c.output, buildtime.String()); err != nil {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
