package upload_test

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	ffcmd "github.com/ffportal/ffsubmit/cmd/ffsubmit/commandline/command"
	"github.com/ffportal/ffsubmit/cmd/ffsubmit/env"
	cerr "github.com/ffportal/ffsubmit/cmd/ffsubmit/errors"
	"github.com/ffportal/ffsubmit/cmd/ffsubmit/subcommands/logger"
	"github.com/ffportal/ffsubmit/cmd/ffsubmit/subcommands/upload"
	"github.com/ffportal/ffsubmit/internal/testutils/portal"
	"github.com/ffportal/ffsubmit/pkg/commandline/usage"
)

const fastq = "/files-fastq/4DNFI1234567/"

func seed(t *testing.T, p *portal.Portal, id string, values map[string]any) {
	t.Helper()
	item := map[string]any{
		"@id":         id,
		"@type":       []any{"FileFastq", "File", "Item"},
		"file_format": "fastq",
		"lab":         "/labs/test-lab/",
		"award":       "/awards/1U01CA200059-01/",
		"status":      "uploading",
	}
	for k, v := range values {
		item[k] = v
	}
	if err := p.Store.Seed(item); err != nil {
		t.Fatal(err)
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reads.fastq")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestUpload(t *testing.T) {
	content := "@r1\nACGTACGT\n+\nFFFFFFFF\n"

	t.Run("it uploads the file as the content of the item", func(t *testing.T) {
		p := portal.Start(t)
		seed(t, p, fastq, nil)
		path := writeFile(t, content)

		stdout := new(strings.Builder)
		testee := upload.New(upload.WithOutput(stdout), upload.WithProgressOut(io.Discard))
		err := testee.Execute(
			context.Background(), logger.Null(), env.FFEnv{ChunkSize: "4B"}, p.Client(t),
			usage.FlagSet[struct{}]{
				Args: map[string][]string{
					upload.ARG_ID:   {fastq},
					upload.ARG_FILE: {path},
				},
			},
		)
		if err != nil {
			t.Fatal(err)
		}
		if actual := strings.TrimSpace(stdout.String()); actual != fastq {
			t.Errorf("stdout: %q", stdout.String())
		}

		item, _ := p.Store.Get(fastq)
		if sum := md5.Sum([]byte(content)); item["md5sum"] != hex.EncodeToString(sum[:]) {
			t.Errorf("md5sum: %v", item["md5sum"])
		}
		if item["status"] != "uploaded" {
			t.Errorf("status: %v", item["status"])
		}
		if got, _ := p.Store.Content(fastq); !bytes.Equal(got, []byte(content)) {
			t.Errorf("content: %q", got)
		}
	})

	t.Run("when another file has the same content, it refuses", func(t *testing.T) {
		p := portal.Start(t)
		path := writeFile(t, content)
		seed(t, p, fastq, nil)

		first := upload.New(upload.WithOutput(io.Discard), upload.WithProgressOut(io.Discard))
		if err := first.Execute(
			context.Background(), logger.Null(), env.FFEnv{}, p.Client(t),
			usage.FlagSet[struct{}]{
				Args: map[string][]string{upload.ARG_ID: {fastq}, upload.ARG_FILE: {path}},
			},
		); err != nil {
			t.Fatal(err)
		}

		another := "/files-fastq/4DNFI7654321/"
		seed(t, p, another, nil)
		stdout := new(strings.Builder)
		testee := upload.New(upload.WithOutput(stdout), upload.WithProgressOut(io.Discard))
		err := testee.Execute(
			context.Background(), logger.Null(), env.FFEnv{}, p.Client(t),
			usage.FlagSet[struct{}]{
				Args: map[string][]string{upload.ARG_ID: {another}, upload.ARG_FILE: {path}},
			},
		)

		var ce cerr.CUIError
		if !errors.As(err, &ce) {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(ce.Error(), "already uploaded") {
			t.Errorf("message: %s", ce.Error())
		}
		if stdout.Len() != 0 {
			t.Errorf("stdout: %q", stdout.String())
		}
		item, _ := p.Store.Get(another)
		if _, ok := item["md5sum"]; ok {
			t.Errorf("md5sum is saved: %v", item["md5sum"])
		}
	})

	t.Run("a missing file is a usage error", func(t *testing.T) {
		p := portal.Start(t)
		seed(t, p, fastq, nil)

		testee := upload.New(upload.WithOutput(io.Discard), upload.WithProgressOut(io.Discard))
		err := testee.Execute(
			context.Background(), logger.Null(), env.FFEnv{}, p.Client(t),
			usage.FlagSet[struct{}]{
				Args: map[string][]string{
					upload.ARG_ID:   {fastq},
					upload.ARG_FILE: {filepath.Join(t.TempDir(), "missing.fastq")},
				},
			},
		)
		if !errors.Is(err, ffcmd.ErrUsage) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
