// Package common holds parts shared by subcommands driving submission sessions.
package common

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/ffportal/ffsubmit/cmd/ffsubmit/env"
	cerr "github.com/ffportal/ffsubmit/cmd/ffsubmit/errors"
	"github.com/ffportal/ffsubmit/cmd/ffsubmit/manifest"
	"github.com/ffportal/ffsubmit/cmd/ffsubmit/rest"
	"github.com/ffportal/ffsubmit/cmd/ffsubmit/session"
	"github.com/ffportal/ffsubmit/pkg/submission"
)

// NewOrchestrator builds an orchestrator talking to the portal through c.
func NewOrchestrator(l *log.Logger, e env.FFEnv, c rest.Client) (*submission.Orchestrator, error) {
	chunk, err := e.ChunkBytes()
	if err != nil {
		return nil, err
	}
	return submission.New(
		c, c,
		submission.WithUploader(c),
		submission.WithLogger(l),
		submission.WithChunkSize(chunk),
	), nil
}

// NewSession builds a session on a new orchestrator.
//
// Upload progress is shown on progressOut.
func NewSession(l *log.Logger, e env.FFEnv, c rest.Client, progressOut io.Writer) (*session.Session, error) {
	orch, err := NewOrchestrator(l, e, c)
	if err != nil {
		return nil, err
	}
	return session.New(
		orch,
		session.WithLogger(l),
		session.WithEnv(e),
		session.WithProgress(Progress(l, progressOut, IsTerminal(progressOut))),
	), nil
}

// Overwrite puts values into the principal object of m.
func Overwrite(m *manifest.Manifest, values map[string]any) {
	if len(values) == 0 {
		return
	}
	if m.Values == nil {
		m.Values = map[string]any{}
	}
	for k, v := range values {
		m.Values[k] = v
	}
}

// Explain converts errors of sessions into errors for the user.
func Explain(err error) error {
	if err == nil {
		return nil
	}

	verr := new(submission.ValidationError)
	if errors.As(err, &verr) {
		lines := []string{}
		for _, e := range verr.Entries {
			lines = append(lines, "- "+e.String())
		}
		if len(lines) == 0 && verr.Detail != "" {
			lines = append(lines, verr.Detail)
		}
		return cerr.NewCuiError(
			fmt.Sprintf("the portal rejects %s", verr.Display),
			cerr.WithLines(lines...),
			cerr.WithCause(err),
		)
	}

	acerr := new(submission.AliasConflictError)
	if errors.As(err, &acerr) {
		where := "in this manifest"
		if acerr.Remote {
			where = "in the portal"
		}
		return cerr.NewCuiError(
			fmt.Sprintf("alias %s is already used %s", acerr.Alias, where),
			cerr.WithVerbose("choose another alias, or link the item with \"existing\""),
			cerr.WithCause(err),
		)
	}

	if errors.Is(err, session.ErrTypeRequired) {
		return cerr.NewCuiError(
			err.Error(),
			cerr.WithVerbose("set \"type\" of the object in the manifest"),
			cerr.WithCause(err),
		)
	}

	return err
}

// PrintReports writes results of validation, and returns the number of rejected objects.
func PrintReports(w io.Writer, reports []session.Report) int {
	failed := 0
	for _, r := range reports {
		switch {
		case r.Blocked:
			fmt.Fprintf(w, "[SKIP] %s (%s): waits for its new children\n", r.Display, r.Type)
		case r.Err != nil:
			failed++
			fmt.Fprintf(w, "[NG]   %s (%s): %s\n", r.Display, r.Type, r.Err)
		default:
			fmt.Fprintf(w, "[OK]   %s (%s)\n", r.Display, r.Type)
		}
	}
	return failed
}
