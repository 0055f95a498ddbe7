package errors_test

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"testing"

	xe "github.com/ffportal/ffsubmit/pkg/errors"
)

var errRoot = errors.New("root cause")

func loadSchemas() error {
	return xe.New("schemas are broken")
}

func TestTrace(t *testing.T) {
	_, thisFile, _, _ := runtime.Caller(0)

	t.Run("New knows where it is made", func(t *testing.T) {
		message := loadSchemas().Error()
		if !strings.Contains(message, "loadSchemas") {
			t.Errorf("function is missing: %s", message)
		}
		if !strings.Contains(message, `"`+thisFile+`"`) {
			t.Errorf("file is missing: %s", message)
		}
		if !strings.HasSuffix(message, "<- schemas are broken") {
			t.Errorf("text is missing: %s", message)
		}
	})

	t.Run("the cause can be unwrapped", func(t *testing.T) {
		err := xe.Wrap(fmt.Errorf("reading: %w", errRoot))
		if !errors.Is(err, errRoot) {
			t.Error("cause is lost")
		}
	})

	t.Run("note is in the message", func(t *testing.T) {
		err := xe.WrapWithNote("schemas.yaml", errRoot)
		if !strings.HasSuffix(err.Error(), "(schemas.yaml) <- root cause") {
			t.Errorf("message: %s", err.Error())
		}

		var traced *xe.Traced
		if !errors.As(err, &traced) {
			t.Fatalf("not traced: %T", err)
		}
		if traced.File != thisFile || traced.Line <= 0 || traced.Note != "schemas.yaml" {
			t.Errorf("trace: %+v", traced)
		}
	})
}
