package store

import (
	"context"
	"time"

	xe "github.com/ffportal/ffsubmit/pkg/errors"
	"github.com/ffportal/ffsubmit/pkg/schema"
	"github.com/ffportal/ffsubmit/pkg/utils/filewatch"
)

// WatchSchemas reloads schemas of st from path whenever the file is modified, until ctx is done.
//
// A broken file is reported to onError, and the schemas in use are kept.
func WatchSchemas(ctx context.Context, st *Store, path string, onError func(error)) error {
	// editors save files in several steps.
	changes, err := filewatch.Debounced(ctx, 50*time.Millisecond, path)
	if err != nil {
		return xe.Wrap(err)
	}

	for range changes {
		set, err := schema.LoadFile(path)
		if err != nil {
			onError(xe.WrapWithNote(path, err))
			continue
		}
		st.SetSchemas(set)
	}
	return nil
}
