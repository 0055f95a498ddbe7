package submission

import (
	"context"
	"io"
	"net/url"

	"github.com/ffportal/ffsubmit/pkg/api/types/items"
	"github.com/ffportal/ffsubmit/pkg/schema"
)

// Request to the portal.
type Request struct {
	// http method, like http.MethodPost.
	Method string

	// path from the API root, like "/Biosource/" or "/biosources/abc/".
	Path string

	Query url.Values

	// JSON body. nil for no body.
	Body any
}

// Transport sends requests to the portal.
type Transport interface {
	// Do sends req.
	//
	// Rejections by the portal (4xx, 5xx with an error body) are returned as Response,
	// not as error. error is for failures of the transport itself:
	// network errors or bodies which are not JSON.
	Do(ctx context.Context, req Request) (*items.Response, error)
}

// SchemaSource provides schemas of item types.
type SchemaSource interface {
	Schemas(ctx context.Context) (schema.Set, error)
}

// Uploader transfers file content with upload credentials.
type Uploader interface {
	// Upload sends size bytes from content.
	//
	// progress is called with the number of bytes sent so far. It can be nil.
	Upload(
		ctx context.Context, creds items.UploadCredentials,
		content io.Reader, size int64, progress func(sent int64),
	) error
}
