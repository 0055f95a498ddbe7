package validate_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ffportal/ffsubmit/cmd/ffsubmit/env"
	"github.com/ffportal/ffsubmit/cmd/ffsubmit/subcommands/logger"
	"github.com/ffportal/ffsubmit/cmd/ffsubmit/subcommands/validate"
	"github.com/ffportal/ffsubmit/internal/testutils/portal"
	"github.com/ffportal/ffsubmit/pkg/commandline/usage"
)

func TestValidate(t *testing.T) {
	type when struct {
		manifest string
	}
	type then struct {
		wantErr bool
		lines   []string
	}

	theory := func(when when, then then) func(*testing.T) {
		return func(t *testing.T) {
			p := portal.Start(t)
			path := filepath.Join(t.TempDir(), "manifest.yaml")
			if err := os.WriteFile(path, []byte(when.manifest), 0600); err != nil {
				t.Fatal(err)
			}
			before := len(p.Store.IDs())

			stdout := new(strings.Builder)
			testee := validate.New(validate.WithOutput(stdout))
			err := testee.Execute(
				context.Background(), logger.Null(), env.FFEnv{}, p.Client(t),
				usage.FlagSet[validate.Flags]{
					Args: map[string][]string{validate.ARG_MANIFEST: {path}},
				},
			)
			if (err != nil) != then.wantErr {
				t.Errorf("error: %v (expected error: %v)", err, then.wantErr)
			}

			actual := strings.Split(strings.TrimSpace(stdout.String()), "\n")
			if len(actual) != len(then.lines) {
				t.Fatalf("output:\n%s", stdout.String())
			}
			for i := range then.lines {
				if !strings.HasPrefix(actual[i], then.lines[i]) {
					t.Errorf("line %d: %q, expected to start with %q", i, actual[i], then.lines[i])
				}
			}

			if after := len(p.Store.IDs()); after != before {
				t.Errorf("items are created: %d -> %d", before, after)
			}
		}
	}

	t.Run("when every object is acceptable, it reports them", theory(
		when{
			manifest: `
type: Experiment
alias: test-lab:exp-1
children:
  - field: biosample
    alias: test-lab:bs-1
    values:
      description: liver
`,
		},
		then{
			lines: []string{
				"[OK]   test-lab:bs-1 (Biosample)",
				"[SKIP] test-lab:exp-1 (Experiment)",
			},
		},
	))

	t.Run("an object without new children is checked by itself", theory(
		when{
			manifest: `
type: Biosource
alias: test-lab:bsrc-1
values:
  biosource_type: stem cell
`,
		},
		then{
			lines: []string{"[OK]   test-lab:bsrc-1 (Biosource)"},
		},
	))

	t.Run("when the portal rejects an object, it fails", theory(
		when{
			manifest: `
type: Biosource
alias: test-lab:bsrc-1
values:
  biosource_type: plant
`,
		},
		then{
			wantErr: true,
			lines:   []string{"[NG]   test-lab:bsrc-1 (Biosource)"},
		},
	))
}
