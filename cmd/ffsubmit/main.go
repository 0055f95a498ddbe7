package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path"

	ffcmd "github.com/ffportal/ffsubmit/cmd/ffsubmit/commandline/command"
	subinit "github.com/ffportal/ffsubmit/cmd/ffsubmit/subcommands/init"
	subitem "github.com/ffportal/ffsubmit/cmd/ffsubmit/subcommands/item"
	"github.com/ffportal/ffsubmit/cmd/ffsubmit/subcommands/logger"
	subschema "github.com/ffportal/ffsubmit/cmd/ffsubmit/subcommands/schema"
	subsubmit "github.com/ffportal/ffsubmit/cmd/ffsubmit/subcommands/submit"
	subupload "github.com/ffportal/ffsubmit/cmd/ffsubmit/subcommands/upload"
	subvalidate "github.com/ffportal/ffsubmit/cmd/ffsubmit/subcommands/validate"
	subver "github.com/ffportal/ffsubmit/cmd/ffsubmit/subcommands/version"
	"github.com/ffportal/ffsubmit/pkg/utils/try"
	"github.com/google/subcommands"
)

func main() {
	name := path.Base(os.Args[0])
	logger := logger.Default()
	logger.SetPrefix(fmt.Sprintf("[%s] ", name))

	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, os.Kill,
	)
	defer cancel()

	cf := try.To(ffcmd.DefaultCommonFlags(".")).OrFatal(logger)

	commander := subcommands.NewCommander(flag.CommandLine, name)
	commander.Register(commander.HelpCommand(), "help")
	commander.Register(commander.FlagsCommand(), "help")
	commander.Register(commander.CommandsCommand(), "help")

	commander.Register(subinit.New(cf), "")
	commander.Register(ffcmd.Build(subsubmit.New(), cf), "submission")
	commander.Register(ffcmd.Build(subvalidate.New(), cf), "submission")
	commander.Register(ffcmd.Build(subupload.New(), cf), "submission")

	item := ffcmd.NewCommander("item", subitem.Help())
	item.SetParent(name)
	item.Register(ffcmd.Build(subitem.NewEdit(), cf))
	item.Register(ffcmd.Build(subitem.NewClone(), cf))
	commander.Register(item, "submission")

	commander.Register(ffcmd.Build(subschema.New(), cf), "")
	commander.Register(subver.New(os.Stdout), "")

	flag.Parse()
	os.Exit(int(commander.Execute(ctx, logger, commander)))
}
