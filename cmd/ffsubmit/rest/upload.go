package rest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	cerr "github.com/ffportal/ffsubmit/cmd/ffsubmit/errors"
	"github.com/ffportal/ffsubmit/pkg/api/types/items"
	kio "github.com/ffportal/ffsubmit/pkg/utils/io"
)

// Upload PUTs content to the upload URL in creds.
//
// Relative upload URLs are resolved against the API root,
// and they are sent with the credential of the profile. Absolute ones are presigned and sent as they are.
func (c *client) Upload(
	ctx context.Context, creds items.UploadCredentials,
	content io.Reader, size int64, progress func(sent int64),
) error {
	if creds.UploadURL == "" {
		return cerr.NewCuiError("upload credentials have no upload url")
	}

	u := creds.UploadURL
	relative := strings.HasPrefix(u, "/")
	if relative {
		u = c.apipath(u)
	}

	body := kio.NewProgressReader(content, progress)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, io.NopCloser(body))
	if err != nil {
		return err
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", "application/octet-stream")
	if relative {
		c.authorize(req)
	}

	resp, err := c.httpclient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := unmarshalResponseDiscardingPayload(resp, MessageFor{
		Status4xx: fmt.Sprintf("upload is rejected (status code = %d)", resp.StatusCode),
		Status5xx: fmt.Sprintf("server error (status code = %d)", resp.StatusCode),
	}); err != nil {
		return err
	}
	if sent := body.BytesRead(); sent != size {
		return fmt.Errorf("upload: %d bytes are sent, but expected %d bytes", sent, size)
	}
	return nil
}
