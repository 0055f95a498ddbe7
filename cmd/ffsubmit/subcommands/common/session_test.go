package common_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	cerr "github.com/ffportal/ffsubmit/cmd/ffsubmit/errors"
	"github.com/ffportal/ffsubmit/cmd/ffsubmit/manifest"
	"github.com/ffportal/ffsubmit/cmd/ffsubmit/session"
	"github.com/ffportal/ffsubmit/cmd/ffsubmit/subcommands/common"
	"github.com/ffportal/ffsubmit/pkg/api/types/items"
	"github.com/ffportal/ffsubmit/pkg/cmp"
	"github.com/ffportal/ffsubmit/pkg/submission"
)

func TestOverwrite(t *testing.T) {
	t.Run("values are put into the principal object", func(t *testing.T) {
		m := &manifest.Manifest{}
		m.Values = map[string]any{"description": "a", "notes": "n"}
		common.Overwrite(m, map[string]any{"description": "b", "read_length": 100})

		expected := map[string]any{"description": "b", "notes": "n", "read_length": 100}
		if !cmp.MapEq(m.Values, expected) {
			t.Errorf("values: %v", m.Values)
		}
	})

	t.Run("no values keep the manifest as it is", func(t *testing.T) {
		m := &manifest.Manifest{}
		common.Overwrite(m, nil)
		if m.Values != nil {
			t.Errorf("values: %v", m.Values)
		}
	})
}

func TestExplain(t *testing.T) {
	t.Run("nil is nil", func(t *testing.T) {
		if err := common.Explain(nil); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("validation error lists entries", func(t *testing.T) {
		verr := &submission.ValidationError{
			Key:     submission.Persisted("/biosources/x/"),
			Display: "test-lab:bsrc-1",
			Entries: []items.ErrorEntry{
				{Location: "body", Name: "biosource_type", Description: "'plant' is not one of the enum"},
			},
		}
		err := common.Explain(fmt.Errorf("wrapped: %w", verr))

		var ce cerr.CUIError
		if !errors.As(err, &ce) {
			t.Fatalf("unexpected error: %v", err)
		}
		expected := "the portal rejects test-lab:bsrc-1\n  - biosource_type: 'plant' is not one of the enum"
		if ce.Error() != expected {
			t.Errorf("message:\n%s", ce.Error())
		}
		if !errors.Is(err, verr) {
			t.Error("cause is lost")
		}
	})

	t.Run("alias conflict tells where the alias is used", func(t *testing.T) {
		for remote, where := range map[bool]string{true: "in the portal", false: "in this manifest"} {
			err := common.Explain(&submission.AliasConflictError{Alias: "test-lab:x", Remote: remote})
			if !strings.HasSuffix(err.Error(), where) {
				t.Errorf("message (remote = %v): %s", remote, err)
			}
		}
	})

	t.Run("type required", func(t *testing.T) {
		err := common.Explain(fmt.Errorf("%w: files accepts one of [a b]", session.ErrTypeRequired))
		var ce cerr.CUIError
		if !errors.As(err, &ce) {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(ce.Verbose(), "\"type\"") {
			t.Errorf("verbose: %s", ce.Verbose())
		}
	})

	t.Run("other errors are passed through", func(t *testing.T) {
		expected := errors.New("fake error")
		if err := common.Explain(expected); err != expected {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestPrintReports(t *testing.T) {
	out := new(strings.Builder)
	failed := common.PrintReports(out, []session.Report{
		{Display: "test-lab:bs-1", Type: "Biosample"},
		{Display: "test-lab:bsrc-1", Type: "Biosource", Err: errors.New("rejected")},
		{Display: "test-lab:exp-1", Type: "Experiment", Blocked: true},
	})

	if failed != 1 {
		t.Errorf("failed: %d", failed)
	}
	expected := strings.Join([]string{
		"[OK]   test-lab:bs-1 (Biosample)",
		"[NG]   test-lab:bsrc-1 (Biosource): rejected",
		"[SKIP] test-lab:exp-1 (Experiment): waits for its new children",
		"",
	}, "\n")
	if out.String() != expected {
		t.Errorf("output:\n%s", out.String())
	}
}
