package usage_test

import (
	"flag"
	"testing"
	"time"

	"github.com/ffportal/ffsubmit/pkg/commandline/usage"
)

type list []string

func (l *list) String() string { return "" }

func (l *list) Set(v string) error {
	*l = append(*l, v)
	return nil
}

type allFlags struct {
	DryRun  bool          `flag:",help=do not send anything"`
	Alias   string        `flag:"alias,short=a,metavar=ALIAS,help=alias, for the new item"`
	Retry   int           `flag:""`
	Chunk   uint          `flag:""`
	Ratio   float64       `flag:""`
	Timeout time.Duration `flag:",short=t"`
	Tags    list          `flag:"tag,help=tag"`
	Ignored string
}

func TestBind(t *testing.T) {
	t.Run("tags are read", func(t *testing.T) {
		values := allFlags{Alias: "lab:x", Retry: 3, Timeout: time.Second}
		flags := usage.Bind(&values)

		names := []string{}
		for _, f := range flags {
			names = append(names, f.Name)
		}
		expected := []string{"dry-run", "alias", "retry", "chunk", "ratio", "timeout", "tag"}
		if len(names) != len(expected) {
			t.Fatalf("names: %v", names)
		}
		for i := range expected {
			if names[i] != expected[i] {
				t.Errorf("names: %v", names)
			}
		}

		if flags[1].Help != "alias, for the new item" || flags[1].Short != "a" || flags[1].MetaVar != "ALIAS" {
			t.Errorf("alias: %+v", flags[1])
		}

		if s := flags.String(); s != `[--dry-run] --alias|-a=ALIAS --retry=3 --chunk=0 --ratio=0 --timeout|-t="1s" --tag=` {
			t.Errorf("String() = %s", s)
		}
	})

	t.Run("flags write into the struct", func(t *testing.T) {
		values := allFlags{}
		fs := flag.NewFlagSet("test", flag.ContinueOnError)
		usage.Bind(&values).Register(fs)

		if err := fs.Parse([]string{
			"--dry-run", "-a", "lab:y", "--retry", "5", "--chunk", "8",
			"--ratio", "0.5", "-t", "2m", "--tag", "x", "--tag", "y",
		}); err != nil {
			t.Fatal(err)
		}

		if !values.DryRun || values.Alias != "lab:y" || values.Retry != 5 || values.Chunk != 8 ||
			values.Ratio != 0.5 || values.Timeout != 2*time.Minute ||
			len(values.Tags) != 2 || values.Tags[1] != "y" {
			t.Errorf("values: %+v", values)
		}
	})

	t.Run("it panics with unsupported types", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("no panic")
			}
		}()
		v := struct {
			C complex128 `flag:""`
		}{}
		usage.Bind(&v)
	})
}
