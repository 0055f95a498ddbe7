package init_test

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"testing"

	ffcmd "github.com/ffportal/ffsubmit/cmd/ffsubmit/commandline/command"
	prof "github.com/ffportal/ffsubmit/cmd/ffsubmit/config/profiles"
	subinit "github.com/ffportal/ffsubmit/cmd/ffsubmit/subcommands/init"
	"github.com/ffportal/ffsubmit/cmd/ffsubmit/subcommands/logger"
	"github.com/ffportal/ffsubmit/pkg/utils/try"
	"github.com/google/subcommands"
)

func TestInit(t *testing.T) {
	run := func(t *testing.T, cf ffcmd.CommonFlags, project string, args ...string) subcommands.ExitStatus {
		t.Helper()
		testee := subinit.New(cf, subinit.WithProjectDir(project))
		fs := flag.NewFlagSet("init", flag.ContinueOnError)
		testee.SetFlags(fs)
		if err := fs.Parse(args); err != nil {
			t.Fatal(err)
		}
		return testee.Execute(context.Background(), fs, logger.Null())
	}

	t.Run("it registers the profile and marks the directory", func(t *testing.T) {
		home := t.TempDir()
		project := t.TempDir()
		profFile := filepath.Join(t.TempDir(), "account.yaml")
		if err := os.WriteFile(profFile, []byte(`
apiRoot: https://portal.example.com/
credential:
  key: KEY
  secret: SECRET
`), 0600); err != nil {
			t.Fatal(err)
		}

		store := filepath.Join(home, ".ffsubmit", "profile")
		cf := ffcmd.CommonFlags{Profile: "my-project", ProfileStore: store}
		if status := run(t, cf, project, profFile); status != subcommands.ExitSuccess {
			t.Fatalf("exit status: %d", status)
		}

		saved := try.To(prof.LoadProfileStore(store)).OrFatal(t)
		p, ok := saved["my-project"]
		if !ok {
			t.Fatalf("profile is not saved: %+v", saved)
		}
		if p.ApiRoot != "https://portal.example.com/" || p.Credential.Key != "KEY" || p.Credential.Secret != "SECRET" {
			t.Errorf("saved profile: %+v", p)
		}

		marker := try.To(os.ReadFile(filepath.Join(project, ".ffprofile"))).OrFatal(t)
		if string(marker) != "my-project" {
			t.Errorf(".ffprofile: %q", marker)
		}
	})

	t.Run("it refuses a broken profile", func(t *testing.T) {
		home := t.TempDir()
		project := t.TempDir()
		profFile := filepath.Join(t.TempDir(), "account.yaml")
		if err := os.WriteFile(profFile, []byte(`
apiRoot: not a url
credential:
  key: KEY
`), 0600); err != nil {
			t.Fatal(err)
		}

		store := filepath.Join(home, ".ffsubmit", "profile")
		cf := ffcmd.CommonFlags{Profile: "my-project", ProfileStore: store}
		if status := run(t, cf, project, profFile); status != subcommands.ExitFailure {
			t.Errorf("exit status: %d", status)
		}
		if _, err := os.Stat(store); !os.IsNotExist(err) {
			t.Errorf("profile store is written: %v", err)
		}
		if _, err := os.Stat(filepath.Join(project, ".ffprofile")); !os.IsNotExist(err) {
			t.Errorf(".ffprofile is written: %v", err)
		}
	})

	t.Run("it requires the profile file", func(t *testing.T) {
		cf := ffcmd.CommonFlags{
			Profile: "my-project", ProfileStore: filepath.Join(t.TempDir(), "profile"),
		}
		if status := run(t, cf, t.TempDir()); status != subcommands.ExitUsageError {
			t.Errorf("exit status: %d", status)
		}
	})
}
