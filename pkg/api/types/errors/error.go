package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ffportal/ffsubmit/pkg/api/types/items"
	"github.com/labstack/echo/v4"
)

// ErrorMessage is the body of a rejected request, in the shape the portal sends.
type ErrorMessage struct {
	items.Response

	Cause error `json:"-"`
}

func (e ErrorMessage) String() string {
	lines := []string{e.Title}
	if e.Description != "" {
		lines = append(lines, e.Description)
	}
	for _, ent := range e.Errors {
		lines = append(lines, "  "+ent.String())
	}
	if e.Cause != nil {
		lines = append(lines, fmt.Sprint(" caused by:", e.Cause.Error()))
	}
	return strings.Join(lines, "\n")
}

func (e ErrorMessage) Error() string {
	return e.String()
}

func (e ErrorMessage) Unwrap() error {
	return e.Cause
}

// MarshalJSON renders the body only. echo renders errors as {"message": ...} otherwise.
func (e ErrorMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Response)
}

type ErrorMessageOption func(in *ErrorMessage) *ErrorMessage

func WithDescription(description string) ErrorMessageOption {
	return func(in *ErrorMessage) *ErrorMessage {
		if description != "" {
			in.Description = description
		}
		return in
	}
}

func WithDetail(detail string) ErrorMessageOption {
	return func(in *ErrorMessage) *ErrorMessage {
		if detail != "" {
			in.Detail = detail
		}
		return in
	}
}

// WithEntries adds entries to "errors".
func WithEntries(entries ...items.ErrorEntry) ErrorMessageOption {
	return func(in *ErrorMessage) *ErrorMessage {
		in.Errors = append(in.Errors, entries...)
		return in
	}
}

func WithError(err error) ErrorMessageOption {
	return func(in *ErrorMessage) *ErrorMessage {
		if err != nil {
			in.Cause = err
		}
		return in
	}
}

// NewErrorMessage builds an error which echo renders as the portal error body.
//
// The title is the status text of code.
func NewErrorMessage(code int, opts ...ErrorMessageOption) *echo.HTTPError {
	msg := ErrorMessage{
		Response: items.Response{
			Status: items.StatusError,
			Code:   code,
			Title:  http.StatusText(code),
		},
	}
	for _, opt := range opts {
		msg = *opt(&msg)
	}

	he := echo.NewHTTPError(code, msg)
	if msg.Cause != nil {
		he = he.SetInternal(msg.Cause)
	}
	return he
}

func NotFound() *echo.HTTPError {
	return NewErrorMessage(
		http.StatusNotFound,
		WithDescription("The resource could not be found."),
	)
}

func Unauthorized(description string) *echo.HTTPError {
	return NewErrorMessage(http.StatusUnauthorized, WithDescription(description))
}

func BadRequest(description string, err error) *echo.HTTPError {
	return NewErrorMessage(
		http.StatusBadRequest,
		WithDescription(description),
		WithError(err),
	)
}

// Unprocessable rejects a body failing validation.
func Unprocessable(entries ...items.ErrorEntry) *echo.HTTPError {
	return NewErrorMessage(
		http.StatusUnprocessableEntity,
		WithDescription("Failed validation"),
		WithEntries(entries...),
	)
}

func Conflict(detail string, options ...ErrorMessageOption) *echo.HTTPError {
	return NewErrorMessage(
		http.StatusConflict,
		append([]ErrorMessageOption{WithDetail(detail)}, options...)...,
	)
}

func InternalServerError(err error) *echo.HTTPError {
	return NewErrorMessage(
		http.StatusInternalServerError,
		WithDescription("unexpected error"),
		WithError(err),
	)
}
