package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	cerr "github.com/ffportal/ffsubmit/cmd/ffsubmit/errors"
	"github.com/ffportal/ffsubmit/pkg/api/types/items"
)

type MessageFor map[StatusClass]string

// decode item response.
//
// Rejections with a JSON body are returned as *items.Response.
//
// # Returns
//
// error if...
//
// - can not read response body
//
// - response body is not JSON
func decodeItemResponse(resp *http.Response, messageFor MessageFor) (*items.Response, error) {
	scr := ClassOf(resp)
	message, ok := messageFor[scr]
	if !ok {
		message = fmt.Sprintf("%s (status code = %d)", scr, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, cerr.NewCuiError(
			fmt.Sprintf("%s\ncannot read server message: %s", message, err.Error()),
			cerr.WithCause(err),
		)
	}

	ret := &items.Response{StatusCode: resp.StatusCode}
	if len(body) == 0 {
		if scr <= Status2xx {
			return ret, nil
		}
		return nil, cerr.NewCuiError(message)
	}

	if err := json.Unmarshal(body, ret); err != nil {
		return nil, cerr.NewCuiError(
			message,
			cerr.WithDetail(func(summary string) (string, error) {
				return summary + "\n" + string(body), nil
			}),
			cerr.WithCause(err),
		)
	}
	ret.StatusCode = resp.StatusCode
	if err := json.Unmarshal(body, &ret.Body); err != nil {
		// arrays and scalars are not items.
		ret.Body = nil
	}
	return ret, nil
}

// read whole body of a response which is expected to be success.
func unmarshalResponseDiscardingPayload(resp *http.Response, messageFor MessageFor) error {
	scr := ClassOf(resp)
	if scr <= Status2xx {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	message, ok := messageFor[scr]
	if !ok {
		message = scr.String()
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return cerr.NewCuiError(
			fmt.Sprintf("%s\ncannot read server message: %s", message, err.Error()),
			cerr.WithCause(err),
		)
	}
	return cerr.NewCuiError(
		message,
		cerr.WithDetail(func(summary string) (string, error) {
			return summary + "\n" + string(body), nil
		}),
	)
}
