package command

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/google/subcommands"
)

// Commander groups subcommands under a name, like "ffsubmit item".
//
// It is a subcommands.Command by itself.
type Commander struct {
	name     string
	help     Help
	commands []subcommands.Command
	parent   string
}

func NewCommander(name string, help Help) *Commander {
	return &Commander{name: name, help: help}
}

func (g *Commander) SetParent(parent string) {
	g.parent = parent
}

func (g *Commander) Register(cmd subcommands.Command) {
	g.commands = append(g.commands, cmd)
}

func (g *Commander) Name() string {
	return g.name
}

func (*Commander) SetFlags(*flag.FlagSet) {}

func (g *Commander) Synopsis() string {
	return g.help.Synopsis
}

func (g *Commander) fullName() string {
	return strings.TrimSpace(g.parent + " " + g.name)
}

func (g *Commander) Usage() string {
	description := g.help.Detail
	if description == "" {
		description = g.help.Synopsis
	}
	lines := []string{strings.TrimSpace(description)}

	if 0 < len(g.commands) {
		lines = append(lines, "", "Subcommands:")
		for _, cmd := range g.commands {
			lines = append(lines, fmt.Sprintf("\t%s\t%s", cmd.Name(), cmd.Synopsis()))
		}
	}
	return fill(strings.Join(lines, "\n")+"\n\n", g.fullName())
}

// Execute dispatches to the subcommand named by the first argument in f.
func (g *Commander) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	logger, rest, ok := extract[*log.Logger](args)
	if !ok {
		return subcommands.ExitFailure
	}
	_, rest, _ = extract[*subcommands.Commander](rest)

	l := log.New(logger.Writer(), nest(logger.Prefix(), g.name), logger.Flags())

	commander := subcommands.NewCommander(f, g.name)
	commander.Register(commander.HelpCommand(), "help")
	commander.Register(commander.FlagsCommand(), "help")
	commander.Register(commander.CommandsCommand(), "help")
	for _, cmd := range g.commands {
		if c, ok := cmd.(interface{ SetParent(string) }); ok {
			c.SetParent(g.fullName())
		}
		commander.Register(cmd, "")
	}

	return commander.Execute(ctx, append([]any{l, commander}, rest...)...)
}
