package session

import (
	"time"

	"github.com/ffportal/ffsubmit/pkg/submission"
	kio "github.com/ffportal/ffsubmit/pkg/utils/io"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Dump is a record of a session, for troubleshooting.
type Dump struct {
	Session   string             `yaml:"session"`
	Timestamp time.Time          `yaml:"timestamp"`
	Phase     string             `yaml:"phase"`
	Finalized string             `yaml:"finalized,omitempty"`
	Entries   []submission.Entry `yaml:"entries"`
	Hierarchy map[string]any     `yaml:"hierarchy"`
	Alerts    []submission.Alert `yaml:"alerts,omitempty"`
}

// Dump takes a record of the current state.
func (s *Session) Dump() Dump {
	finalized, _ := s.orch.Finalized()
	return Dump{
		Session:   uuid.NewString(),
		Timestamp: time.Now(),
		Phase:     s.orch.Phase().String(),
		Finalized: finalized,
		Entries:   s.orch.Snapshot(),
		Hierarchy: tree(s.orch.Hierarchy()),
		Alerts:    s.orch.Alerts(),
	}
}

func tree(h submission.Hierarchy) map[string]any {
	ret := map[string]any{}
	for k, sub := range h {
		ret[k.String()] = tree(sub)
	}
	return ret
}

// WriteTo writes d as YAML into a file at path. Missing directories are created.
func (d Dump) WriteTo(path string) error {
	f, err := kio.CreateAll(path, 0600, 0700)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return err
	}
	return enc.Close()
}
