package submission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/ffportal/ffsubmit/pkg/api/types/items"
	kio "github.com/ffportal/ffsubmit/pkg/utils/io"
)

// UploadState is the state of an UploadCoordinator.
type UploadState int

const (
	UploadIdle UploadState = iota
	Checksumming
	ChecksumCommitted
	Uploading
	UploadComplete
	UploadFailed
)

func (us UploadState) String() string {
	switch us {
	case UploadIdle:
		return "idle"
	case Checksumming:
		return "checksumming"
	case ChecksumCommitted:
		return "checksum committed"
	case Uploading:
		return "uploading"
	case UploadComplete:
		return "complete"
	case UploadFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// UploadProgress is reported while checksumming and uploading.
type UploadProgress struct {
	ID    string
	State UploadState

	// 0..100
	Percent int

	Done  int64
	Total int64
}

func percent(done, total int64) int {
	if total <= 0 {
		return 100
	}
	p := int(done * 100 / total)
	if 100 < p {
		return 100
	}
	return p
}

// FileSource is the content of a file to be uploaded.
type FileSource interface {
	// Size in bytes.
	Size() int64

	// Open returns the content from its beginning. It is called once for checksum, once for upload.
	Open() (io.ReadCloser, error)
}

// UploadCoordinator checksums a file, commits the checksum to its file item, and uploads the content.
type UploadCoordinator struct {
	transport Transport
	uploader  Uploader
	logger    *log.Logger
	chunkSize int64

	mux   sync.Mutex
	state UploadState
}

func NewUploadCoordinator(transport Transport, uploader Uploader, chunkSize int64, logger *log.Logger) *UploadCoordinator {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &UploadCoordinator{
		transport: transport,
		uploader:  uploader,
		logger:    logger,
		chunkSize: chunkSize,
	}
}

func (uc *UploadCoordinator) State() UploadState {
	uc.mux.Lock()
	defer uc.mux.Unlock()
	return uc.state
}

func (uc *UploadCoordinator) setState(s UploadState) {
	uc.mux.Lock()
	defer uc.mux.Unlock()
	uc.state = s
}

// Run uploads file as the content of the file item id.
//
// # Args
//
// - ctx
//
// - id: @id of the file item.
//
// - file: content.
//
// - progress: called on each step. It can be nil.
//
// # Returns
//
// - error:
// *ChecksumConflictError when another file has the same MD5 (the state goes back to idle).
// *ValidationError when the portal rejects the checksum.
// *UploadTransportError when the transfer fails; the status of the item is set to "upload failed".
func (uc *UploadCoordinator) Run(ctx context.Context, id string, file FileSource, progress func(UploadProgress)) error {
	if progress == nil {
		progress = func(UploadProgress) {}
	}
	total := file.Size()
	report := func(s UploadState, done int64) {
		uc.setState(s)
		progress(UploadProgress{ID: id, State: s, Percent: percent(done, total), Done: done, Total: total})
	}

	report(Checksumming, 0)
	sum, err := uc.checksum(ctx, file, func(read int64) { report(Checksumming, read) })
	if err != nil {
		uc.setState(UploadFailed)
		return err
	}
	uc.logger.Printf("md5sum of %s: %s", id, sum)

	resp, err := uc.transport.Do(ctx, Request{
		Method: http.MethodPatch,
		Path:   id,
		Body:   map[string]any{"md5sum": sum},
	})
	if err != nil {
		uc.setState(UploadFailed)
		return err
	}
	if !resp.Succeeded() {
		if isChecksumConflict(resp) {
			uc.setState(UploadIdle)
			return &ChecksumConflictError{ID: id, MD5Sum: sum}
		}
		uc.setState(UploadFailed)
		return &ValidationError{
			Key: Persisted(id), Display: id,
			Entries: resp.Errors, Detail: resp.Detail,
		}
	}
	report(ChecksumCommitted, 0)

	creds, err := uc.credentials(ctx, id, resp)
	if err != nil {
		uc.setState(UploadFailed)
		return err
	}

	report(Uploading, 0)
	if err := uc.transfer(ctx, creds, file, func(sent int64) { report(Uploading, sent) }); err != nil {
		uc.setState(UploadFailed)
		if perr := uc.patchStatus(ctx, id, items.FileStatusUploadFailed); perr != nil {
			uc.logger.Printf("cannot mark %s as %q: %s", id, items.FileStatusUploadFailed, perr)
		}
		return &UploadTransportError{ID: id, Cause: err}
	}

	if err := uc.patchStatus(ctx, id, items.FileStatusUploaded); err != nil {
		uc.setState(UploadFailed)
		return &UploadTransportError{ID: id, Cause: err}
	}
	report(UploadComplete, total)
	return nil
}

func (uc *UploadCoordinator) checksum(ctx context.Context, file FileSource, onChunk func(int64)) (string, error) {
	f, err := file.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	return kio.ChunkedMD5(ctx, f, uc.chunkSize, onChunk)
}

func (uc *UploadCoordinator) transfer(ctx context.Context, creds items.UploadCredentials, file FileSource, onSent func(int64)) error {
	if uc.uploader == nil {
		return errors.New("no uploader is configured")
	}
	f, err := file.Open()
	if err != nil {
		return err
	}
	defer f.Close()
	return uc.uploader.Upload(ctx, creds, f, file.Size(), onSent)
}

// credentials are taken from the checksum PATCH response, or requested from "{id}upload/".
func (uc *UploadCoordinator) credentials(ctx context.Context, id string, resp *items.Response) (items.UploadCredentials, error) {
	if creds, ok := credentialsIn(resp); ok {
		return creds, nil
	}
	resp, err := uc.transport.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   strings.TrimSuffix(id, "/") + "/upload/",
	})
	if err != nil {
		return items.UploadCredentials{}, err
	}
	if !resp.Succeeded() {
		return items.UploadCredentials{}, fmt.Errorf(
			"cannot get upload credentials of %s: %s", id, strings.Join(resp.Messages(), "; "),
		)
	}
	if creds, ok := credentialsIn(resp); ok {
		return creds, nil
	}
	return items.UploadCredentials{}, fmt.Errorf("no upload credentials are issued for %s", id)
}

func credentialsIn(resp *items.Response) (items.UploadCredentials, bool) {
	candidates := []map[string]any{}
	if rec, ok := resp.First(); ok {
		candidates = append(candidates, rec)
	}
	if resp.Body != nil {
		candidates = append(candidates, resp.Body)
	}
	for _, c := range candidates {
		raw, ok := c["upload_credentials"]
		if !ok || raw == nil {
			continue
		}
		creds, err := items.Decode[items.UploadCredentials](raw)
		if err == nil && creds.UploadURL != "" {
			return creds, true
		}
	}
	return items.UploadCredentials{}, false
}

func (uc *UploadCoordinator) patchStatus(ctx context.Context, id string, status string) error {
	resp, err := uc.transport.Do(ctx, Request{
		Method: http.MethodPatch,
		Path:   id,
		Body:   map[string]any{"status": status},
	})
	if err != nil {
		return err
	}
	if !resp.Succeeded() {
		return fmt.Errorf("%s: %s", id, strings.Join(resp.Messages(), "; "))
	}
	return nil
}

// isChecksumConflict reports whether md5sum is rejected because another file has the same one.
//
// Other rejections of md5sum, like a malformed value, are not.
func isChecksumConflict(resp *items.Response) bool {
	if resp.StatusCode == http.StatusConflict {
		return true
	}
	for _, e := range resp.Errors {
		if e.Name == "md5sum" && strings.Contains(strings.ToLower(e.Description), "conflict") {
			return true
		}
	}
	return false
}

// Upload checksums and uploads file as the content of a round-two file object,
// then completes its round two.
//
// Navigation and submission are refused with ErrBusy until Upload returns.
// On failure, the key stays in the round-two queue and an alert is raised.
//
// # Returns
//
// - string: @id of the root when this completes the session, or "".
//
// - error: see UploadCoordinator.Run.
func (o *Orchestrator) Upload(ctx context.Context, key Key, file FileSource, progress func(UploadProgress)) (string, error) {
	o.mux.Lock()
	if err := o.guard(); err != nil {
		o.mux.Unlock()
		return "", err
	}
	k, ok := o.reg.Resolve(key)
	if !ok {
		o.mux.Unlock()
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if !o.roundTwo || !o.reg.InRoundTwo(k) {
		o.mux.Unlock()
		return "", fmt.Errorf("%w: %s", ErrNotRoundTwo, k)
	}
	id, _ := o.reg.CompletionOf(k)
	o.busy = true
	o.mux.Unlock()

	uc := NewUploadCoordinator(o.transport, o.uploader, o.chunkSize, o.logger)
	err := uc.Run(ctx, id, file, progress)

	o.mux.Lock()
	defer o.mux.Unlock()
	o.busy = false
	if err != nil {
		field := ""
		cce := new(ChecksumConflictError)
		if errors.As(err, &cce) {
			field = "md5sum"
		}
		o.reg.setValidity(k, Failed)
		o.alerts.Raise(k, field, err.Error())
		return "", err
	}
	o.alerts.ClearFor(k)
	return o.finishRoundTwo(k), nil
}
