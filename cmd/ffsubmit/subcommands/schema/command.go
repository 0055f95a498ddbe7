package schema

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sort"

	ffcmd "github.com/ffportal/ffsubmit/cmd/ffsubmit/commandline/command"
	"github.com/ffportal/ffsubmit/cmd/ffsubmit/env"
	"github.com/ffportal/ffsubmit/cmd/ffsubmit/rest"
	"github.com/ffportal/ffsubmit/pkg/commandline/usage"
	ffschema "github.com/ffportal/ffsubmit/pkg/schema"
	"gopkg.in/yaml.v3"
)

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

func New(opt ...Option) ffcmd.FFCommand[struct{}] {
	c := &Command{output: os.Stdout}
	for _, o := range opt {
		c = o(c)
	}
	return c
}

func (*Command) Name() string {
	return "schema"
}

const ARG_TYPE = "TYPE"

func (*Command) Usage() usage.Usage[struct{}] {
	return usage.New(
		struct{}{},
		usage.Args{
			{
				Name: ARG_TYPE, Required: false,
				Help: "item type, like Experiment. When omitted, every type is listed.",
			},
		},
	)
}

func (*Command) Help() ffcmd.Help {
	return ffcmd.Help{
		Synopsis: "show fields of item types in the portal",
		Example: `
To list item types:

	{{ .Command }}

To show fields of FileFastq:

	{{ .Command }} FileFastq
`,
	}
}

// Field is a field of a type, as shown to the user.
type Field struct {
	Name        string `yaml:"name"`
	Kind        string `yaml:"kind"`
	Required    bool   `yaml:"required,omitempty"`
	LinkTo      string `yaml:"linkTo,omitempty"`
	Enum        []any  `yaml:"enum,omitempty"`
	SecondRound bool   `yaml:"secondRound,omitempty"`
	Calculated  bool   `yaml:"calculated,omitempty"`
	AdminOnly   bool   `yaml:"adminOnly,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// Summary of a type.
type Summary struct {
	Type          string   `yaml:"type"`
	Abstract      bool     `yaml:"abstract,omitempty"`
	ConcreteTypes []string `yaml:"concreteTypes,omitempty"`
	FileType      bool     `yaml:"fileType,omitempty"`
	Fields        []Field  `yaml:"fields,omitempty"`
}

// Summarize builds a summary of typeName in set.
func Summarize(set ffschema.Set, typeName string) (Summary, error) {
	s, err := set.Lookup(typeName)
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{Type: typeName, Abstract: s.Abstract, FileType: s.IsFileType()}
	if s.Abstract {
		sum.ConcreteTypes = set.ConcreteTypes(typeName)
	}
	for _, name := range s.FieldNames() {
		p := s.Properties[name]
		f := Field{
			Name:        name,
			Kind:        p.Kind().String(),
			Required:    s.IsRequired(name),
			SecondRound: p.FFFlag == ffschema.FlagSecondRound,
			Calculated:  p.CalculatedProperty,
			AdminOnly:   p.Permission == ffschema.PermissionImportItems,
			Description: p.Description,
		}
		target := p
		if p.Kind() == ffschema.Array && p.Items != nil {
			target = p.Items
		}
		f.LinkTo = target.LinkTo
		f.Enum = target.Enum
		if len(f.Enum) == 0 {
			f.Enum = target.SuggestedEnum
		}
		sum.Fields = append(sum.Fields, f)
	}
	return sum, nil
}

func (cmd *Command) Execute(
	ctx context.Context,
	l *log.Logger,
	e env.FFEnv,
	c rest.Client,
	flags usage.FlagSet[struct{}],
) error {
	set, err := c.Schemas(ctx)
	if err != nil {
		return err
	}

	args := flags.Args[ARG_TYPE]
	if len(args) == 0 {
		names := make([]string, 0, len(set))
		for n, s := range set {
			if s.Abstract {
				n += " (abstract)"
			}
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			if _, err := fmt.Fprintln(cmd.output, n); err != nil {
				return err
			}
		}
		return nil
	}

	sum, err := Summarize(set, args[0])
	if err != nil {
		return fmt.Errorf("%w: %s", ffcmd.ErrUsage, err)
	}
	enc := yaml.NewEncoder(cmd.output)
	enc.SetIndent(2)
	if err := enc.Encode(sum); err != nil {
		return err
	}
	return enc.Close()
}
