// Package items holds wire types of the portal item API.
package items

import (
	"encoding/json"
	"strings"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"

	// values of the `status` field of file items.
	FileStatusUploading    = "uploading"
	FileStatusUploaded     = "uploaded"
	FileStatusUploadFailed = "upload failed"
)

// Response is the envelope the portal returns for item requests.
//
// Collection requests (POST/PATCH) return "@graph".
// Failed requests carry "status": "error" with "errors" and/or "detail".
type Response struct {
	// HTTP status code. It is not a part of the body.
	StatusCode int `json:"-"`

	Status      string           `json:"status,omitempty"`
	Code        int              `json:"code,omitempty"`
	Title       string           `json:"title,omitempty"`
	Description string           `json:"description,omitempty"`
	Detail      string           `json:"detail,omitempty"`
	Graph       []map[string]any `json:"@graph,omitempty"`
	Errors      []ErrorEntry     `json:"errors,omitempty"`

	// whole decoded body, for item GETs which are not enveloped.
	Body map[string]any `json:"-"`
}

// Succeeded reports whether the request has been accepted.
func (r *Response) Succeeded() bool {
	if r == nil {
		return false
	}
	if r.StatusCode < 200 || 300 <= r.StatusCode {
		return false
	}
	// item GETs carry the status of the item itself, like "released".
	return r.Status != StatusError
}

// NotFound reports whether the requested resource does not exist.
func (r *Response) NotFound() bool {
	return r != nil && (r.StatusCode == 404 || r.Title == "Not Found")
}

// First returns the first object in "@graph".
func (r *Response) First() (map[string]any, bool) {
	if r == nil || len(r.Graph) == 0 {
		return nil, false
	}
	return r.Graph[0], true
}

// Messages returns human readable messages of a failed response.
func (r *Response) Messages() []string {
	msgs := []string{}
	for _, e := range r.Errors {
		msgs = append(msgs, e.String())
	}
	if len(msgs) == 0 && r.Detail != "" {
		msgs = append(msgs, r.Detail)
	}
	if len(msgs) == 0 && r.Description != "" {
		msgs = append(msgs, r.Description)
	}
	return msgs
}

// ErrorEntry is an element of "errors".
type ErrorEntry struct {
	Location    string    `json:"location,omitempty"`
	Name        FieldPath `json:"name,omitempty"`
	Description string    `json:"description"`
}

func (e ErrorEntry) String() string {
	if e.Name == "" {
		return e.Description
	}
	return string(e.Name) + ": " + e.Description
}

// FieldPath names the field an error is about.
//
// The portal sends it either as a string or as a list of path segments.
type FieldPath string

func (f *FieldPath) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = FieldPath(s)
		return nil
	}
	var segs []any
	if err := json.Unmarshal(b, &segs); err != nil {
		return err
	}
	strs := make([]string, 0, len(segs))
	for _, seg := range segs {
		switch v := seg.(type) {
		case string:
			strs = append(strs, v)
		default:
			b, _ := json.Marshal(v)
			strs = append(strs, string(b))
		}
	}
	*f = FieldPath(strings.Join(strs, "."))
	return nil
}

// User is the acting user, as returned by /me (frame=object).
type User struct {
	ID           string   `json:"@id"`
	Email        string   `json:"email,omitempty"`
	DisplayTitle string   `json:"display_title,omitempty"`
	Groups       []string `json:"groups,omitempty"`
	Lab          string   `json:"lab,omitempty"`
	SubmitsFor   []string `json:"submits_for,omitempty"`
}

// IsAdmin reports whether the user is in the admin group.
func (u *User) IsAdmin() bool {
	if u == nil {
		return false
	}
	for _, g := range u.Groups {
		if g == "admin" {
			return true
		}
	}
	return false
}

// PrimaryLab returns the lab the user submits for by default.
func (u *User) PrimaryLab() string {
	if u == nil {
		return ""
	}
	if 0 < len(u.SubmitsFor) {
		return u.SubmitsFor[0]
	}
	return u.Lab
}

// Lab is a lab item (frame=object).
type Lab struct {
	ID     string   `json:"@id"`
	Name   string   `json:"name,omitempty"`
	Title  string   `json:"title,omitempty"`
	Awards []string `json:"awards,omitempty"`
}

// UploadCredentials are issued for file items to upload their content.
type UploadCredentials struct {
	// presigned URL the content is PUT to.
	UploadURL string `json:"upload_url"`

	Key    string `json:"key,omitempty"`
	Bucket string `json:"bucket,omitempty"`
}

// Decode converts a JSON-like value into T.
func Decode[T any](v any) (T, error) {
	var ret T
	b, err := json.Marshal(v)
	if err != nil {
		return ret, err
	}
	err = json.Unmarshal(b, &ret)
	return ret, err
}
