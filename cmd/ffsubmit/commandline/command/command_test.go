package command_test

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	ffcmd "github.com/ffportal/ffsubmit/cmd/ffsubmit/commandline/command"
	"github.com/ffportal/ffsubmit/cmd/ffsubmit/env"
	cerr "github.com/ffportal/ffsubmit/cmd/ffsubmit/errors"
	"github.com/ffportal/ffsubmit/cmd/ffsubmit/rest"
	"github.com/ffportal/ffsubmit/pkg/cmp"
	"github.com/ffportal/ffsubmit/pkg/commandline/usage"
	"github.com/ffportal/ffsubmit/pkg/utils/try"
	"github.com/google/subcommands"
)

type MockFlags struct {
	Alias string `flag:"alias"`
	Retry int    `flag:"retry"`
}

type MockCommand struct {
	task func(context.Context, *log.Logger, env.FFEnv, rest.Client, usage.FlagSet[MockFlags]) error
}

func (MockCommand) Name() string {
	return "mock"
}

func (MockCommand) Help() ffcmd.Help {
	return ffcmd.Help{Synopsis: "mock"}
}

func (MockCommand) Usage() usage.Usage[MockFlags] {
	return usage.New(
		MockFlags{Alias: "default", Retry: 3},
		usage.Args{
			{Name: "ID", Required: true, Help: "@id of the item"},
			{Name: "FILE", Repeatable: true, Help: "files to upload"},
			{Name: "MANIFEST", Required: true, Help: "manifest file"},
		},
	)
}

func (m MockCommand) Execute(
	ctx context.Context, l *log.Logger, e env.FFEnv, c rest.Client, flags usage.FlagSet[MockFlags],
) error {
	return m.task(ctx, l, e, c, flags)
}

var testCommonFlags = ffcmd.CommonFlags{
	Profile:      "test",
	ProfileStore: "./testdata/home/.ffsubmit/profile",
	Env:          "./testdata/current/ffenv",
}

// run builds the command, parses argv and executes it.
//
// STDERR is discarded while it runs, since usage errors are explained there.
func run(
	t *testing.T, cf ffcmd.CommonFlags, l *log.Logger, argv []string,
	task func(context.Context, *log.Logger, env.FFEnv, rest.Client, usage.FlagSet[MockFlags]) error,
) subcommands.ExitStatus {
	t.Helper()

	cmd := ffcmd.Build[MockFlags](MockCommand{task: task}, cf)
	f := flag.NewFlagSet("test", flag.ContinueOnError)
	cmd.SetFlags(f)
	if err := f.Parse(argv); err != nil {
		t.Fatal(err)
	}

	devnull := try.To(os.OpenFile(os.DevNull, os.O_WRONLY, 0)).OrFatal(t)
	defer devnull.Close()
	stderr := os.Stderr
	os.Stderr = devnull
	defer func() { os.Stderr = stderr }()

	return cmd.Execute(context.Background(), f, l)
}

func TestFFCommand(t *testing.T) {
	expectFlagsAndArgs := func(t *testing.T, invoked *bool) func(context.Context, *log.Logger, env.FFEnv, rest.Client, usage.FlagSet[MockFlags]) error {
		return func(_ context.Context, _ *log.Logger, e env.FFEnv, _ rest.Client, flags usage.FlagSet[MockFlags]) error {
			*invoked = true
			if size := try.To(e.ChunkBytes()).OrFatal(t); size != 1024*1024 {
				t.Errorf("env.chunkSize: %d", size)
			}
			if lab := e.DefaultsFor("Biosource")["lab"]; lab != "/labs/test-lab/" {
				t.Errorf("env.defaults: %v", e.Defaults)
			}

			if expected := (MockFlags{Alias: "test-lab:exp-2", Retry: 5}); flags.Flags != expected {
				t.Errorf("flags\nwant: %+v\n got: %+v", expected, flags.Flags)
			}
			expected := map[string][]string{
				"ID":       {"/experiments/4DNEX1234567/"},
				"FILE":     {"a.fastq", "b.fastq"},
				"MANIFEST": {"m.yaml"},
			}
			if !cmp.MapEqWith(flags.Args, expected, cmp.SliceEq[string]) {
				t.Errorf("args\nwant: %+v\n got: %+v", expected, flags.Args)
			}
			return nil
		}
	}
	argv := []string{
		"--alias", "test-lab:exp-2", "--retry", "5",
		"/experiments/4DNEX1234567/", "a.fastq", "b.fastq", "m.yaml",
	}

	t.Run("common flags are given by default", func(t *testing.T) {
		invoked := false
		ret := run(t, testCommonFlags, log.New(new(strings.Builder), "", 0), argv, expectFlagsAndArgs(t, &invoked))
		if !invoked {
			t.Error("task is not invoked")
		}
		if ret != subcommands.ExitSuccess {
			t.Errorf("status: %d", ret)
		}
	})

	t.Run("common flags are given by the command line", func(t *testing.T) {
		invoked := false
		ret := run(
			t, ffcmd.CommonFlags{}, log.New(new(strings.Builder), "", 0),
			append([]string{
				"--env", "./testdata/current/ffenv",
				"--profile-store", "./testdata/home/.ffsubmit/profile",
				"--profile", "test",
			}, argv...),
			expectFlagsAndArgs(t, &invoked),
		)
		if !invoked {
			t.Error("task is not invoked")
		}
		if ret != subcommands.ExitSuccess {
			t.Errorf("status: %d", ret)
		}
	})

	t.Run("the logger is prefixed with the command name", func(t *testing.T) {
		logs := new(strings.Builder)
		run(
			t, testCommonFlags, log.New(logs, "[ffsubmit] ", 0), argv,
			func(_ context.Context, l *log.Logger, _ env.FFEnv, _ rest.Client, _ usage.FlagSet[MockFlags]) error {
				l.Println("hello")
				return nil
			},
		)
		if expected := "[ffsubmit mock] hello\n"; logs.String() != expected {
			t.Errorf("log: %q, want: %q", logs.String(), expected)
		}
	})

	for name, testcase := range map[string]struct {
		cf       ffcmd.CommonFlags
		argv     []string
		err      error
		invoked  bool
		expected subcommands.ExitStatus
	}{
		"unknown profile fails": {
			cf:       ffcmd.CommonFlags{Profile: "no-such-profile", ProfileStore: testCommonFlags.ProfileStore, Env: testCommonFlags.Env},
			argv:     argv,
			expected: subcommands.ExitFailure,
		},
		"missing profile store fails": {
			cf:       ffcmd.CommonFlags{Profile: "test", ProfileStore: "./testdata/nowhere", Env: testCommonFlags.Env},
			argv:     argv,
			expected: subcommands.ExitFailure,
		},
		"unreadable ffenv fails": {
			cf:       ffcmd.CommonFlags{Profile: "test", ProfileStore: testCommonFlags.ProfileStore, Env: "./testdata"},
			argv:     argv,
			expected: subcommands.ExitFailure,
		},
		"an error from the task fails": {
			cf: testCommonFlags, argv: argv, err: errors.New("fake error"),
			invoked: true, expected: subcommands.ExitFailure,
		},
		"too few arguments are a usage error": {
			cf: testCommonFlags, argv: []string{"/experiments/4DNEX1234567/"},
			expected: subcommands.ExitUsageError,
		},
		"ErrUsage from the task is a usage error": {
			cf: testCommonFlags, argv: argv, err: ffcmd.ErrUsage,
			invoked: true, expected: subcommands.ExitUsageError,
		},
	} {
		t.Run(name, func(t *testing.T) {
			invoked := false
			ret := run(
				t, testcase.cf, log.New(new(strings.Builder), "", 0), testcase.argv,
				func(context.Context, *log.Logger, env.FFEnv, rest.Client, usage.FlagSet[MockFlags]) error {
					invoked = true
					return testcase.err
				},
			)
			if invoked != testcase.invoked {
				t.Errorf("invoked: %v", invoked)
			}
			if ret != testcase.expected {
				t.Errorf("status: %d, want: %d", ret, testcase.expected)
			}
		})
	}
}

func TestFFCommand_Verbose(t *testing.T) {
	for name, testcase := range map[string]struct {
		verbose bool
		then    bool
	}{
		"with --verbose, causes are logged":    {verbose: true, then: true},
		"without --verbose, causes are hidden": {verbose: false, then: false},
	} {
		t.Run(name, func(t *testing.T) {
			logs := new(strings.Builder)
			argv := []string{"/experiments/4DNEX1234567/", "m.yaml"}
			if testcase.verbose {
				argv = append([]string{"--verbose"}, argv...)
			}

			ret := run(
				t, testCommonFlags, log.New(logs, "", 0), argv,
				func(context.Context, *log.Logger, env.FFEnv, rest.Client, usage.FlagSet[MockFlags]) error {
					return cerr.NewCuiError("submission failed", cerr.WithCause(errors.New("connection reset")))
				},
			)
			if ret != subcommands.ExitFailure {
				t.Errorf("status: %d", ret)
			}
			if actual := strings.Contains(logs.String(), "connection reset"); actual != testcase.then {
				t.Errorf("log:\n%s", logs.String())
			}
		})
	}
}

func TestBuildUsageMessage(t *testing.T) {
	actual := ffcmd.BuildUsageMessage(
		"ffsubmit mock",
		ffcmd.Help{
			Synopsis: "mock",
			Detail:   "run {{ .Command }}.",
			Example:  "{{ .Command }} /experiments/x/ m.yaml",
		},
		MockCommand{}.Usage(),
	)

	expected := strings.Join([]string{
		"Usage: ffsubmit mock --alias=default --retry=3 <ID> [FILE...] <MANIFEST>",
		"",
		"  run ffsubmit mock.",
		"",
		"Example:",
		"  ffsubmit mock /experiments/x/ m.yaml",
		"",
		"Arguments:",
		"  ID",
		"  \t@id of the item",
		"  FILE",
		"  \tfiles to upload",
		"  MANIFEST",
		"  \tmanifest file",
		"",
		"Flags:",
		"",
	}, "\n")
	if actual != expected {
		t.Errorf("message:\n%s\n--- want:\n%s", actual, expected)
	}
}

func TestDefaultCommonFlags(t *testing.T) {
	for name, dir := range map[string]string{
		"in the project directory": "./testdata/current",
		"in a descendant":          "./testdata/current/children/folder",
	} {
		t.Run(name, func(t *testing.T) {
			cf := try.To(ffcmd.DefaultCommonFlags(dir, ffcmd.WithHome("./testdata/home"))).OrFatal(t)

			if try.To(filepath.Abs(cf.ProfileStore)).OrFatal(t) != try.To(filepath.Abs("./testdata/home/.ffsubmit/profile")).OrFatal(t) {
				t.Errorf("profile store: %s", cf.ProfileStore)
			}
			if cf.Profile != "test" {
				t.Errorf("profile: %s", cf.Profile)
			}
			if cf.Env != try.To(filepath.Abs("./testdata/current/ffenv")).OrFatal(t) {
				t.Errorf("env: %s", cf.Env)
			}
		})
	}

	t.Run("without markers, the directory names the profile", func(t *testing.T) {
		dir := t.TempDir()
		cf := try.To(ffcmd.DefaultCommonFlags(dir, ffcmd.WithHome(dir))).OrFatal(t)
		if cf.Profile != dir || cf.Env != filepath.Join(dir, "ffenv") {
			t.Errorf("flags: %+v", cf)
		}
	})
}
