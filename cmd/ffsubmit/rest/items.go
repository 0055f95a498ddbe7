package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	cerr "github.com/ffportal/ffsubmit/cmd/ffsubmit/errors"
	"github.com/ffportal/ffsubmit/pkg/api/types/items"
	"github.com/ffportal/ffsubmit/pkg/schema"
	"github.com/ffportal/ffsubmit/pkg/submission"
	"github.com/ffportal/ffsubmit/pkg/utils/retry"
)

func (c *client) Do(ctx context.Context, r submission.Request) (*items.Response, error) {
	var body io.Reader
	if r.Body != nil {
		buf, err := json.Marshal(r.Body)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(buf)
	}

	u := c.apipath(r.Path)
	if 0 < len(r.Query) {
		u += "?" + r.Query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.httpclient.Do(req)
	if err != nil {
		return nil, cerr.NewCuiError(
			fmt.Sprintf("cannot reach the portal: %s %s", r.Method, r.Path),
			cerr.WithCause(err),
		)
	}
	defer resp.Body.Close()

	return decodeItemResponse(resp, MessageFor{
		Status4xx: fmt.Sprintf("%s %s is rejected (status code = %d)", r.Method, r.Path, resp.StatusCode),
		Status5xx: fmt.Sprintf("server error (status code = %d)", resp.StatusCode),
	})
}

// Schemas fetches every schema from /profiles/.
//
// While the portal answers 502, 503 or 504, it tries again up to the limit set by WithRetry.
func (c *client) Schemas(ctx context.Context) (schema.Set, error) {
	attempt := 0
	backoff := retry.Immediately(retry.ExponentialBackoff(c.interval, 2))
	return retry.Blocking(ctx, backoff, func() (schema.Set, error) {
		attempt += 1
		set, err := c.schemas(ctx, attempt < c.attempts)
		if errors.Is(err, errUnavailable) {
			return nil, retry.ErrRetry
		}
		return set, err
	})
}

var errUnavailable = errors.New("portal is unavailable")

func (c *client) schemas(ctx context.Context, retriable bool) (schema.Set, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apipath("profiles/"), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	resp, err := c.httpclient.Do(req)
	if err != nil {
		return nil, cerr.NewCuiError("cannot reach the portal: GET /profiles/", cerr.WithCause(err))
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		if retriable {
			return nil, errUnavailable
		}
	}
	if ClassOf(resp) != Status2xx {
		return nil, unmarshalResponseDiscardingPayload(resp, MessageFor{
			Status4xx: "schemas are not available",
			Status5xx: fmt.Sprintf("server error (status code = %d)", resp.StatusCode),
		})
	}

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	set, err := schema.Decode(buf)
	if err != nil {
		return nil, cerr.NewCuiError("schemas from the portal are broken", cerr.WithCause(err))
	}
	return set, nil
}
