package handlers_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ffportal/ffsubmit/internal/testutils/portal"
	"github.com/ffportal/ffsubmit/pkg/api/types/items"
	"github.com/ffportal/ffsubmit/pkg/schema"
	"github.com/ffportal/ffsubmit/pkg/utils/try"
	"github.com/labstack/echo/v4"
)

type request struct {
	method string
	target string
	body   string
	auth   func(*http.Request)
}

func asSubmitter(req *http.Request) {
	req.SetBasicAuth(portal.SubmitterKey, portal.SubmitterSecret)
}

func bearer(token string) func(*http.Request) {
	return func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func serve(e *echo.Echo, r request) *httptest.ResponseRecorder {
	var body io.Reader
	if r.body != "" {
		body = strings.NewReader(r.body)
	}
	req := httptest.NewRequest(r.method, r.target, body)
	if r.body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.auth != nil {
		r.auth(req)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) *items.Response {
	t.Helper()
	resp := items.Response{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("body is not JSON: %s (%s)", rec.Body.String(), err)
	}
	return &resp
}

func TestProfiles(t *testing.T) {
	e, _, _ := portal.New(t)
	rec := serve(e, request{method: http.MethodGet, target: "/profiles/"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status code: %d", rec.Code)
	}
	set := try.To(schema.Decode(rec.Body.Bytes())).OrFatal(t)
	if !set.IsAmbiguous("File") {
		t.Errorf("schemas: %v", set)
	}
}

func TestAuthentication(t *testing.T) {
	e, _, auth := portal.New(t)
	now := time.Now()
	valid := try.To(auth.IssueToken("submitter@example.com", time.Hour, now)).OrFatal(t)
	expired := try.To(auth.IssueToken("submitter@example.com", time.Hour, now.Add(-2*time.Hour))).OrFatal(t)
	unknown := try.To(auth.IssueToken("nobody@example.com", time.Hour, now)).OrFatal(t)

	for name, testcase := range map[string]struct {
		when func(*http.Request)
		then int
	}{
		"no credential": {when: nil, then: http.StatusUnauthorized},
		"access key":    {when: asSubmitter, then: http.StatusOK},
		"wrong secret": {
			when: func(req *http.Request) { req.SetBasicAuth(portal.SubmitterKey, "wrong") },
			then: http.StatusUnauthorized,
		},
		"bearer token":          {when: bearer(valid), then: http.StatusOK},
		"expired bearer token":  {when: bearer(expired), then: http.StatusUnauthorized},
		"token of unknown user": {when: bearer(unknown), then: http.StatusUnauthorized},
		"broken token":          {when: bearer("not.a.token"), then: http.StatusUnauthorized},
	} {
		t.Run(name, func(t *testing.T) {
			rec := serve(e, request{method: http.MethodGet, target: "/me", auth: testcase.when})
			if rec.Code != testcase.then {
				t.Fatalf("status code: actual = %d, expected = %d (%s)", rec.Code, testcase.then, rec.Body.String())
			}
			if rec.Code == http.StatusOK {
				u := try.To(items.Decode[items.User](json.RawMessage(rec.Body.Bytes()))).OrFatal(t)
				if u.ID != portal.SubmitterID || u.PrimaryLab() != "/labs/test-lab/" {
					t.Errorf("user: %+v", u)
				}
			} else if resp := decode(t, rec); resp.Status != items.StatusError {
				t.Errorf("body: %+v", resp)
			}
		})
	}
}

func TestItems(t *testing.T) {
	t.Run("POST with check_only validates without storing", func(t *testing.T) {
		e, st, _ := portal.New(t)
		before := len(st.IDs())
		rec := serve(e, request{
			method: http.MethodPost, target: "/Biosource/?check_only=true",
			body: `{"biosource_type": "tissue"}`, auth: asSubmitter,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("status code: %d (%s)", rec.Code, rec.Body.String())
		}
		if resp := decode(t, rec); resp.Status != items.StatusSuccess || len(resp.Graph) != 0 {
			t.Errorf("body: %+v", resp)
		}
		if after := len(st.IDs()); after != before {
			t.Errorf("items: %d -> %d", before, after)
		}
	})

	t.Run("POST stores, GET and lookup by alias find it", func(t *testing.T) {
		e, _, _ := portal.New(t)
		rec := serve(e, request{
			method: http.MethodPost, target: "/Biosource/",
			body: `{"aliases": ["test-lab:bsrc-9"], "biosource_type": "tissue"}`, auth: asSubmitter,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("status code: %d (%s)", rec.Code, rec.Body.String())
		}
		created, ok := decode(t, rec).First()
		if !ok {
			t.Fatal("no @graph")
		}
		id := created["@id"].(string)
		if !strings.HasPrefix(id, "/biosources/") {
			t.Errorf("@id: %s", id)
		}

		for _, target := range []string{id, "/test-lab:bsrc-9"} {
			got := serve(e, request{method: http.MethodGet, target: target + "?frame=object", auth: asSubmitter})
			if got.Code != http.StatusOK {
				t.Errorf("GET %s: %d", target, got.Code)
				continue
			}
			body := map[string]any{}
			if err := json.Unmarshal(got.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body["@id"] != id {
				t.Errorf("GET %s: %v", target, body)
			}
		}
	})

	t.Run("invalid body is rejected with errors", func(t *testing.T) {
		e, _, _ := portal.New(t)
		rec := serve(e, request{
			method: http.MethodPost, target: "/Biosource/",
			body: `{"biosource_type": "alien"}`, auth: asSubmitter,
		})
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status code: %d", rec.Code)
		}
		resp := decode(t, rec)
		if len(resp.Errors) != 1 || resp.Errors[0].Name != "biosource_type" {
			t.Errorf("errors: %+v", resp.Errors)
		}
	})

	t.Run("body which is not an object is a bad request", func(t *testing.T) {
		e, _, _ := portal.New(t)
		rec := serve(e, request{method: http.MethodPost, target: "/Biosource/", body: `[1, 2]`, auth: asSubmitter})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status code: %d", rec.Code)
		}
	})

	t.Run("PATCH with delete_fields", func(t *testing.T) {
		e, st, _ := portal.New(t)
		rec := serve(e, request{
			method: http.MethodPatch, target: "/experiments/4DNEX1234567/?delete_fields=description,award",
			body: `{"accession": "4DNEX7654321"}`, auth: asSubmitter,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("status code: %d (%s)", rec.Code, rec.Body.String())
		}
		got, _ := st.Get("/experiments/4DNEX1234567/")
		if _, ok := got["description"]; ok || got["accession"] != "4DNEX7654321" {
			t.Errorf("item: %v", got)
		}
	})

	t.Run("alias conflict is 409", func(t *testing.T) {
		e, _, _ := portal.New(t)
		rec := serve(e, request{
			method: http.MethodPatch, target: "/experiments/4DNEX1234567/",
			body: `{"aliases": ["test-lab:bs-0"]}`, auth: asSubmitter,
		})
		if rec.Code != http.StatusConflict {
			t.Fatalf("status code: %d", rec.Code)
		}
		if resp := decode(t, rec); len(resp.Errors) != 1 || resp.Errors[0].Name != "aliases" {
			t.Errorf("errors: %+v", resp.Errors)
		}
	})

	t.Run("missing items and unknown types are 404", func(t *testing.T) {
		e, _, _ := portal.New(t)
		for _, r := range []request{
			{method: http.MethodGet, target: "/biosources/none/", auth: asSubmitter},
			{method: http.MethodGet, target: "/test-lab:none", auth: asSubmitter},
			{method: http.MethodPatch, target: "/biosources/none/", body: `{}`, auth: asSubmitter},
			{method: http.MethodPost, target: "/Spaceship/", body: `{}`, auth: asSubmitter},
		} {
			rec := serve(e, r)
			if rec.Code != http.StatusNotFound {
				t.Errorf("%s %s: %d", r.method, r.target, rec.Code)
			}
			if resp := decode(t, rec); !resp.NotFound() {
				t.Errorf("%s %s: %+v", r.method, r.target, resp)
			}
		}
	})
}

func TestUpload(t *testing.T) {
	e, st, _ := portal.New(t)
	rec := serve(e, request{
		method: http.MethodPost, target: "/FileFastq/",
		body: `{"file_format": "fastq"}`, auth: asSubmitter,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status code: %d (%s)", rec.Code, rec.Body.String())
	}
	file, _ := decode(t, rec).First()
	id := file["@id"].(string)

	rec = serve(e, request{method: http.MethodGet, target: id + "upload/", auth: asSubmitter})
	if rec.Code != http.StatusOK {
		t.Fatalf("status code: %d (%s)", rec.Code, rec.Body.String())
	}
	graph, _ := decode(t, rec).First()
	creds := try.To(items.Decode[items.UploadCredentials](graph["upload_credentials"])).OrFatal(t)
	if !strings.HasPrefix(creds.UploadURL, "/upload/") {
		t.Fatalf("upload url: %s", creds.UploadURL)
	}

	content := "@r1\nACGT\n+\nIIII\n"
	req := httptest.NewRequest(http.MethodPut, creds.UploadURL, strings.NewReader(content))
	asSubmitter(req)
	put := httptest.NewRecorder()
	e.ServeHTTP(put, req)
	if put.Code != http.StatusOK {
		t.Fatalf("status code: %d (%s)", put.Code, put.Body.String())
	}

	got, ok := st.Content(id)
	if !ok || string(got) != content {
		t.Errorf("content: %q", got)
	}

	rec = serve(e, request{method: http.MethodGet, target: "/experiments/4DNEX1234567/upload/", auth: asSubmitter})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("upload credentials of non-file item: %d", rec.Code)
	}
}
