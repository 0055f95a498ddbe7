package submission_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/ffportal/ffsubmit/pkg/api/types/items"
	"github.com/ffportal/ffsubmit/pkg/schema"
	"github.com/ffportal/ffsubmit/pkg/submission"
)

func aliasesProp() *schema.Property {
	return &schema.Property{Type: "array", Items: &schema.Property{Type: "string"}}
}

func link(to string) *schema.Property {
	return &schema.Property{Type: "string", LinkTo: to}
}

func links(to string) *schema.Property {
	return &schema.Property{Type: "array", Items: link(to)}
}

func testSchemas() schema.Set {
	return schema.Set{
		"Experiment": {
			Title:    "Experiment",
			Required: []string{"biosample"},
			Properties: map[string]*schema.Property{
				"aliases":     aliasesProp(),
				"description": {Type: "string"},
				"biosample":   link("Biosample"),
				"files":       links("File"),
				"documents":   links("Document"),
				"lab":         link("Lab"),
				"award":       link("Award"),
				"notes":       {Type: "string", Permission: schema.PermissionImportItems},
				"status":      {Type: "string", CalculatedProperty: true},
				"accession":   {Type: "string", FFFlag: schema.FlagClearClone},
			},
		},
		"Biosample": {
			Title: "Biosample",
			Properties: map[string]*schema.Property{
				"aliases":   aliasesProp(),
				"biosource": links("Biosource"),
				"lab":       link("Lab"),
				"award":     link("Award"),
			},
		},
		"Biosource": {
			Title: "Biosource",
			Properties: map[string]*schema.Property{
				"aliases":        aliasesProp(),
				"title":          {Type: "string"},
				"biosource_type": {Type: "string", Enum: []any{"primary cell", "stem cell"}},
				"lab":            link("Lab"),
				"award":          link("Award"),
			},
		},
		"File": {
			Title:    "File",
			Abstract: true,
			Children: []string{"FileFastq", "FileProcessed"},
		},
		"FileFastq": {
			Title: "FileFastq",
			Properties: map[string]*schema.Property{
				"aliases":     aliasesProp(),
				"file_format": {Type: "string"},
				"filename":    {Type: "string", FFFlag: schema.FlagSecondRound, S3Upload: true},
				"md5sum":      {Type: "string", ExcludeFrom: []string{schema.ExcludeFromEditCreate}},
				"lab":         link("Lab"),
				"award":       link("Award"),
			},
		},
		"FileProcessed": {
			Title: "FileProcessed",
			Properties: map[string]*schema.Property{
				"aliases":     aliasesProp(),
				"file_format": {Type: "string"},
				"filename":    {Type: "string", FFFlag: schema.FlagSecondRound, S3Upload: true},
			},
		},
		"Document": {
			Title: "Document",
			Properties: map[string]*schema.Property{
				"description": {Type: "string"},
				"attachment":  {Type: "object", Attachment: true},
			},
		},
		"Lab": {
			Title:      "Lab",
			Properties: map[string]*schema.Property{"name": {Type: "string"}},
		},
		"Award": {
			Title:      "Award",
			Properties: map[string]*schema.Property{"name": {Type: "string"}},
		},
		"User": {
			Title: "User",
			Properties: map[string]*schema.Property{
				"email": {Type: "string"},
				"lab":   link("Lab"),
			},
		},
	}
}

type schemaSource struct {
	set schema.Set
}

func (ss schemaSource) Schemas(context.Context) (schema.Set, error) {
	return ss.set, nil
}

// fakePortal is an in-memory portal for tests.
type fakePortal struct {
	mux sync.Mutex

	records map[string]map[string]any
	serial  int

	// alias -> @id of existing items.
	aliases map[string]string

	// type name -> errors returned for POSTs and PATCHes of the type.
	reject map[string][]items.ErrorEntry

	// md5sums known to the portal.
	md5sums map[string]string

	// When set, it is called instead of the default behaviour.
	Impl func(req submission.Request) (*items.Response, error)

	Calls []submission.Request
}

func newFakePortal() *fakePortal {
	return &fakePortal{
		records: map[string]map[string]any{
			"/users/me/": {
				"@id": "/users/me/", "@type": []any{"User"},
				"groups": []any{"submitter"}, "submits_for": []any{"/labs/l1/"},
			},
			"/labs/l1/": {
				"@id": "/labs/l1/", "@type": []any{"Lab"},
				"name": "l1", "awards": []any{"/awards/a1/"},
			},
		},
		aliases: map[string]string{},
		reject:  map[string][]items.ErrorEntry{},
		md5sums: map[string]string{},
	}
}

func (fp *fakePortal) requests(method string) []submission.Request {
	fp.mux.Lock()
	defer fp.mux.Unlock()
	ret := []submission.Request{}
	for _, c := range fp.Calls {
		if c.Method == method {
			ret = append(ret, c)
		}
	}
	return ret
}

func (fp *fakePortal) record(id string) map[string]any {
	fp.mux.Lock()
	defer fp.mux.Unlock()
	return fp.records[id]
}

func (fp *fakePortal) put(id string, rec map[string]any) {
	fp.mux.Lock()
	defer fp.mux.Unlock()
	rec["@id"] = id
	fp.records[id] = rec
	if as, ok := rec["aliases"].([]any); ok {
		for _, a := range as {
			fp.aliases[a.(string)] = id
		}
	}
}

func notFound() *items.Response {
	return &items.Response{
		StatusCode: http.StatusNotFound, Status: items.StatusError,
		Code: http.StatusNotFound, Title: "Not Found",
	}
}

func rejected(errs []items.ErrorEntry) *items.Response {
	return &items.Response{
		StatusCode: http.StatusUnprocessableEntity, Status: items.StatusError,
		Code: http.StatusUnprocessableEntity, Title: "Unprocessable Entity",
		Errors: errs,
	}
}

func success(rec map[string]any) *items.Response {
	return &items.Response{
		StatusCode: http.StatusOK, Status: items.StatusSuccess,
		Graph: []map[string]any{rec},
	}
}

func copyMap(m map[string]any) map[string]any {
	ret := map[string]any{}
	for k, v := range m {
		ret[k] = v
	}
	return ret
}

func (fp *fakePortal) Do(_ context.Context, req submission.Request) (*items.Response, error) {
	fp.mux.Lock()
	fp.Calls = append(fp.Calls, req)
	impl := fp.Impl
	fp.mux.Unlock()
	if impl != nil {
		return impl(req)
	}

	fp.mux.Lock()
	defer fp.mux.Unlock()

	checkOnly := req.Query.Get("check_only") == "true"
	body, _ := req.Body.(map[string]any)

	switch req.Method {
	case http.MethodGet:
		if req.Path == "/me" {
			return &items.Response{StatusCode: http.StatusOK, Body: copyMap(fp.records["/users/me/"])}, nil
		}
		if strings.HasSuffix(req.Path, "/upload/") {
			id := strings.TrimSuffix(req.Path, "upload/")
			return success(map[string]any{
				"@id":                id,
				"upload_credentials": map[string]any{"upload_url": "https://s3.example.com" + id},
			}), nil
		}
		if id, ok := fp.aliases[strings.TrimPrefix(req.Path, "/")]; ok {
			return &items.Response{StatusCode: http.StatusOK, Body: copyMap(fp.records[id])}, nil
		}
		if rec, ok := fp.records[req.Path]; ok {
			return &items.Response{StatusCode: http.StatusOK, Body: copyMap(rec)}, nil
		}
		return notFound(), nil

	case http.MethodPost:
		typeName := strings.Trim(req.Path, "/")
		if errs, ok := fp.reject[typeName]; ok {
			return rejected(errs), nil
		}
		if checkOnly {
			return &items.Response{StatusCode: http.StatusOK, Status: items.StatusSuccess}, nil
		}
		fp.serial += 1
		id := fmt.Sprintf("/%s/%d/", schema.CollectionName(typeName), fp.serial)
		rec := copyMap(body)
		rec["@id"] = id
		rec["@type"] = []any{typeName}
		fp.records[id] = rec
		if as, ok := rec["aliases"].([]any); ok {
			for _, a := range as {
				fp.aliases[a.(string)] = id
			}
		}
		return success(copyMap(rec)), nil

	case http.MethodPatch:
		rec, ok := fp.records[req.Path]
		if !ok {
			return notFound(), nil
		}
		if ts, ok := rec["@type"].([]any); ok && 0 < len(ts) {
			if errs, ok := fp.reject[ts[0].(string)]; ok {
				return rejected(errs), nil
			}
		}
		if sum, ok := body["md5sum"].(string); ok {
			if other, ok := fp.md5sums[sum]; ok && other != req.Path {
				return &items.Response{
					StatusCode: http.StatusConflict, Status: items.StatusError,
					Code: http.StatusConflict, Title: "Conflict",
					Errors: []items.ErrorEntry{{Name: "md5sum", Description: "conflicts"}},
				}, nil
			}
		}
		if checkOnly {
			return &items.Response{StatusCode: http.StatusOK, Status: items.StatusSuccess}, nil
		}
		next := copyMap(rec)
		for k, v := range body {
			next[k] = v
		}
		if df := req.Query.Get("delete_fields"); df != "" {
			for _, f := range strings.Split(df, ",") {
				delete(next, f)
			}
		}
		if sum, ok := body["md5sum"].(string); ok {
			fp.md5sums[sum] = req.Path
		}
		fp.records[req.Path] = next
		return success(copyMap(next)), nil
	}
	return nil, fmt.Errorf("unsupported: %s %s", req.Method, req.Path)
}

// uploader records uploaded contents.
type uploader struct {
	mux      sync.Mutex
	Err      error
	Uploaded map[string][]byte
}

func (u *uploader) Upload(
	_ context.Context, creds items.UploadCredentials,
	content io.Reader, size int64, progress func(int64),
) error {
	if u.Err != nil {
		return u.Err
	}
	b, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	if progress != nil {
		progress(int64(len(b)))
	}
	u.mux.Lock()
	defer u.mux.Unlock()
	if u.Uploaded == nil {
		u.Uploaded = map[string][]byte{}
	}
	u.Uploaded[creds.UploadURL] = b
	return nil
}

type memFile []byte

func (m memFile) Size() int64 { return int64(len(m)) }

func (m memFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(m)), nil
}
