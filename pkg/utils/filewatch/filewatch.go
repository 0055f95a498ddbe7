// Package filewatch notifies changes of files.
package filewatch

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Debounced watches files at paths, and sends a value when they settle after changes.
//
// Changes closer than quiet to each other are notified once.
// Notifications not received yet are merged, so a slow receiver gets one value.
//
// Parent directories are watched instead of the files,
// so a file replaced by renaming another file is followed.
// Changes only of file modes are ignored.
//
// The channel is closed when ctx is done.
func Debounced(ctx context.Context, quiet time.Duration, paths ...string) (<-chan struct{}, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	targets := map[string]struct{}{}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			w.Close()
			return nil, err
		}
		targets[abs] = struct{}{}
		if err := w.Add(filepath.Dir(abs)); err != nil {
			w.Close()
			return nil, err
		}
	}

	changes := make(chan struct{}, 1)
	go func() {
		defer close(changes)
		defer w.Close()

		timer := time.NewTimer(quiet)
		timer.Stop()
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op == fsnotify.Chmod {
					continue
				}
				if _, ok := targets[filepath.Clean(ev.Name)]; !ok {
					continue
				}
				timer.Reset(quiet)
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			case <-timer.C:
				select {
				case changes <- struct{}{}:
				default:
				}
			}
		}
	}()
	return changes, nil
}
