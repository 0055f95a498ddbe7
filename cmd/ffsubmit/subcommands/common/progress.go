package common

import (
	"io"
	"log"
	"os"

	pb "github.com/cheggaaa/pb/v3"
	"github.com/dustin/go-humanize"
	"github.com/ffportal/ffsubmit/cmd/ffsubmit/session"
	"github.com/ffportal/ffsubmit/pkg/submission"
	"golang.org/x/term"
)

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// Progress reports checksums and uploads of files.
//
// Each change of the state is logged into l.
// When bars is true, progress bars are drawn on w while checksumming or uploading.
func Progress(l *log.Logger, w io.Writer, bars bool) session.Progress {
	return func(display string, path string) func(submission.UploadProgress) {
		var bar *pb.ProgressBar
		state := submission.UploadIdle

		return func(up submission.UploadProgress) {
			if up.State == state {
				if bar != nil {
					bar.SetCurrent(up.Done)
				}
				return
			}

			if bar != nil {
				bar.SetCurrent(bar.Total())
				bar.Finish()
				bar = nil
			}
			state = up.State

			switch up.State {
			case submission.Checksumming, submission.Uploading:
				l.Printf(
					"%s: %s (%s)",
					up.State, path, humanize.IBytes(uint64(up.Total)),
				)
				if !bars {
					return
				}
				bar = pb.New64(up.Total)
				bar.Set(pb.Bytes, true)
				bar.Set("prefix", ellipsis(display, 40)+":")
				bar.SetWriter(w)
				bar.Start()
				bar.SetCurrent(up.Done)
			case submission.ChecksumCommitted:
				l.Printf("checksum of %s is saved", display)
			case submission.UploadComplete:
				l.Printf("uploaded: %s <- %s", display, path)
			case submission.UploadFailed:
				l.Printf("[ERROR] upload failed: %s <- %s", display, path)
			}
		}
	}
}

func ellipsis(s string, length int) string {
	if len(s) <= length {
		return s
	}
	l := len(s)
	return "[...]" + s[l-length+5:]
}
