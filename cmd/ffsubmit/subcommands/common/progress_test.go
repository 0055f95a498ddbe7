package common_test

import (
	"log"
	"strings"
	"testing"

	"github.com/ffportal/ffsubmit/cmd/ffsubmit/subcommands/common"
	"github.com/ffportal/ffsubmit/pkg/submission"
)

func TestProgress(t *testing.T) {
	t.Run("each change of the state is logged once", func(t *testing.T) {
		logs := new(strings.Builder)
		l := log.New(logs, "", 0)
		bars := new(strings.Builder)

		report := common.Progress(l, bars, false)("test-lab:fq-1", "./reads.fastq")
		for _, up := range []submission.UploadProgress{
			{State: submission.Checksumming, Done: 0, Total: 2048},
			{State: submission.Checksumming, Done: 1024, Total: 2048},
			{State: submission.Checksumming, Done: 2048, Total: 2048},
			{State: submission.ChecksumCommitted},
			{State: submission.Uploading, Done: 0, Total: 2048},
			{State: submission.Uploading, Done: 2048, Total: 2048},
			{State: submission.UploadComplete},
		} {
			report(up)
		}

		actual := strings.Split(strings.TrimSpace(logs.String()), "\n")
		expected := []string{
			submission.Checksumming.String() + ": ./reads.fastq (2.0 KiB)",
			"checksum of test-lab:fq-1 is saved",
			submission.Uploading.String() + ": ./reads.fastq (2.0 KiB)",
			"uploaded: test-lab:fq-1 <- ./reads.fastq",
		}
		if len(actual) != len(expected) {
			t.Fatalf("logs:\n%s", logs.String())
		}
		for i := range expected {
			if actual[i] != expected[i] {
				t.Errorf("line %d: %q, expected %q", i, actual[i], expected[i])
			}
		}
		if bars.Len() != 0 {
			t.Errorf("bars are drawn: %q", bars.String())
		}
	})

	t.Run("failure is logged as an error", func(t *testing.T) {
		logs := new(strings.Builder)
		report := common.Progress(log.New(logs, "", 0), new(strings.Builder), false)("fq", "a.fastq")
		report(submission.UploadProgress{State: submission.Uploading, Total: 10})
		report(submission.UploadProgress{State: submission.UploadFailed})

		if !strings.Contains(logs.String(), "[ERROR] upload failed: fq <- a.fastq") {
			t.Errorf("logs:\n%s", logs.String())
		}
	})

	t.Run("bars are drawn when requested", func(t *testing.T) {
		bars := new(strings.Builder)
		report := common.Progress(log.New(new(strings.Builder), "", 0), bars, true)("fq", "a.fastq")
		report(submission.UploadProgress{State: submission.Uploading, Done: 5, Total: 10})
		report(submission.UploadProgress{State: submission.UploadComplete})

		if !strings.Contains(bars.String(), "fq:") {
			t.Errorf("bars: %q", bars.String())
		}
	})
}

func TestIsTerminal(t *testing.T) {
	if common.IsTerminal(new(strings.Builder)) {
		t.Error("strings.Builder is a terminal")
	}
}
