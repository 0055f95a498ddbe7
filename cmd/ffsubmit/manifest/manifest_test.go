package manifest_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/ffportal/ffsubmit/cmd/ffsubmit/manifest"
	"github.com/ffportal/ffsubmit/pkg/schema"
	"github.com/ffportal/ffsubmit/pkg/utils/try"
)

func TestLoad(t *testing.T) {
	t.Run("yaml manifest with children", func(t *testing.T) {
		m := try.To(manifest.Load("./testdata/experiment.yaml")).OrFatal(t)

		if mode := try.To(m.SessionMode()).OrFatal(t); mode != schema.Create {
			t.Errorf("mode: %s", mode)
		}
		if m.Type != "Experiment" || m.Alias != "test-lab:exp-1" || m.Values["description"] != "hi-c on tissue" {
			t.Errorf("principal: %+v", m.Node)
		}
		if len(m.Children) != 2 {
			t.Fatalf("children: %+v", m.Children)
		}

		bs := m.Children[0]
		if bs.Field != "biosample" || len(bs.Children) != 1 || bs.Children[0].Existing != "/biosources/4DNSRV3SKQ8M/" {
			t.Errorf("biosample: %+v", bs)
		}

		fq := &m.Children[1]
		expected := try.To(filepath.Abs("./testdata/reads.fastq")).OrFatal(t)
		if actual := m.FilePath(fq); actual != expected {
			t.Errorf("file path: actual = %s, expected = %s", actual, expected)
		}
	})

	t.Run("json manifest with comments", func(t *testing.T) {
		m := try.To(manifest.Load("./testdata/clone.jsonc")).OrFatal(t)
		if mode := try.To(m.SessionMode()).OrFatal(t); mode != schema.Clone {
			t.Errorf("mode: %s", mode)
		}
		if m.ID != "/experiments/4DNEX1234567/" || m.Values["description"] != "cloned" {
			t.Errorf("manifest: %+v", m)
		}
	})
}

func TestLoadFor(t *testing.T) {
	t.Run("a manifest without type is accepted for edit", func(t *testing.T) {
		m := try.To(manifest.LoadFor("./testdata/children.yaml", schema.Edit, "/experiments/4DNEX1234567/")).OrFatal(t)
		if m.Mode != "edit" || m.ID != "/experiments/4DNEX1234567/" {
			t.Errorf("manifest: %+v", m)
		}
		if len(m.Children) != 1 || m.Values["description"] != "more files" {
			t.Errorf("node: %+v", m.Node)
		}
	})

	t.Run("mode and id in the file are replaced", func(t *testing.T) {
		m := try.To(manifest.LoadFor("./testdata/clone.jsonc", schema.Edit, "/experiments/4DNEX7654321/")).OrFatal(t)
		if m.Mode != "edit" || m.ID != "/experiments/4DNEX7654321/" {
			t.Errorf("manifest: %+v", m)
		}
	})

	t.Run("the same manifest is rejected by Load", func(t *testing.T) {
		if _, err := manifest.Load("./testdata/children.yaml"); !errors.Is(err, manifest.ErrInvalidManifest) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestParse_Invalid(t *testing.T) {
	for name, src := range map[string]string{
		"create without type":      `alias: a:b`,
		"edit without id":          `{"mode": "edit"}`,
		"unknown mode":             `{"mode": "delete", "type": "Biosource"}`,
		"existing principal":       `{"type": "Biosource", "existing": "/biosources/x/"}`,
		"child without field":      "type: Biosample\nchildren:\n  - type: Biosource\n",
		"existing child with file": "type: Experiment\nchildren:\n  - field: files\n    existing: /files-fastq/x/\n    file: a.fastq\n",
		"broken yaml":              "type: [",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := manifest.Parse([]byte(src)); !errors.Is(err, manifest.ErrInvalidManifest) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
