package mock

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/ffportal/ffsubmit/cmd/ffsubmit/rest"
	"github.com/ffportal/ffsubmit/pkg/api/types/items"
	"github.com/ffportal/ffsubmit/pkg/schema"
	"github.com/ffportal/ffsubmit/pkg/submission"
)

type UploadArgs struct {
	Credentials items.UploadCredentials
	Content     []byte
	Size        int64
}

func New(t *testing.T) *mockClient {
	return &mockClient{t: t}
}

type mockClient struct {
	t    *testing.T
	mux  sync.Mutex
	Impl struct {
		Do      func(ctx context.Context, req submission.Request) (*items.Response, error)
		Schemas func(ctx context.Context) (schema.Set, error)
		Upload  func(ctx context.Context, creds items.UploadCredentials, content []byte) error
	}
	Calls struct {
		Do      []submission.Request
		Schemas int
		Upload  []UploadArgs
	}
}

var _ rest.Client = &mockClient{}

func (m *mockClient) Do(ctx context.Context, req submission.Request) (*items.Response, error) {
	m.t.Helper()

	m.mux.Lock()
	m.Calls.Do = append(m.Calls.Do, req)
	m.mux.Unlock()
	if m.Impl.Do == nil {
		m.t.Fatal("Do is not ready to be called")
	}
	return m.Impl.Do(ctx, req)
}

func (m *mockClient) Schemas(ctx context.Context) (schema.Set, error) {
	m.t.Helper()

	m.mux.Lock()
	m.Calls.Schemas += 1
	m.mux.Unlock()
	if m.Impl.Schemas == nil {
		m.t.Fatal("Schemas is not ready to be called")
	}
	return m.Impl.Schemas(ctx)
}

// Upload reads content through, and passes it to Impl.Upload.
func (m *mockClient) Upload(
	ctx context.Context, creds items.UploadCredentials,
	content io.Reader, size int64, progress func(sent int64),
) error {
	m.t.Helper()

	buf, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	if progress != nil {
		progress(int64(len(buf)))
	}

	m.mux.Lock()
	m.Calls.Upload = append(m.Calls.Upload, UploadArgs{Credentials: creds, Content: buf, Size: size})
	m.mux.Unlock()
	if m.Impl.Upload == nil {
		m.t.Fatal("Upload is not ready to be called")
	}
	return m.Impl.Upload(ctx, creds, buf)
}
