// Package handlers serves the item API of the development portal.
package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ffportal/ffsubmit/cmd/ffportald/store"
	apierr "github.com/ffportal/ffsubmit/pkg/api/types/errors"
	"github.com/ffportal/ffsubmit/pkg/api/types/items"
	xe "github.com/ffportal/ffsubmit/pkg/errors"
	kio "github.com/ffportal/ffsubmit/pkg/utils/io"
	"github.com/labstack/echo/v4"
)

// Register sets routes of the portal onto e.
func Register(e *echo.Echo, st *store.Store, auth *Authenticator) {
	e.GET("/profiles/", ProfilesHandler(st))

	g := e.Group("", auth.Middleware)
	g.GET("/me", MeHandler(st))
	g.POST("/:name/", CreateItemHandler(st, "name"))
	g.GET("/:name/:uuid/", GetItemHandler(st, "name", "uuid"))
	g.PATCH("/:name/:uuid/", PatchItemHandler(st, "name", "uuid"))
	g.GET("/:name/:uuid/upload/", UploadCredentialsHandler(st, "name", "uuid"))
	g.PUT("/upload/:key", PutUploadHandler(st, "key"))
	g.GET("/:name", LookupHandler(st, "name"))
}

type result struct {
	Status string           `json:"status"`
	Type   []string         `json:"@type"`
	Graph  []map[string]any `json:"@graph,omitempty"`
}

func success(graph ...map[string]any) result {
	return result{Status: items.StatusSuccess, Type: []string{"result"}, Graph: graph}
}

func ProfilesHandler(st *store.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, st.Schemas())
	}
}

func MeHandler(st *store.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		u, _ := actorOf(c)
		if rec, ok := st.Get(u.ID); ok {
			return c.JSON(http.StatusOK, rec)
		}
		return c.JSON(http.StatusOK, u.Item())
	}
}

func itemID(c echo.Context, nameKey, uuidKey string) string {
	return "/" + c.Param(nameKey) + "/" + c.Param(uuidKey) + "/"
}

func GetItemHandler(st *store.Store, nameKey, uuidKey string) echo.HandlerFunc {
	return func(c echo.Context) error {
		rec, ok := st.Get(itemID(c, nameKey, uuidKey))
		if !ok {
			return apierr.NotFound()
		}
		return c.JSON(http.StatusOK, rec)
	}
}

// LookupHandler finds an item by its alias or uuid.
func LookupHandler(st *store.Store, nameKey string) echo.HandlerFunc {
	return func(c echo.Context) error {
		rec, ok := st.Get(c.Param(nameKey))
		if !ok {
			return apierr.NotFound()
		}
		return c.JSON(http.StatusOK, rec)
	}
}

func decodeBody(c echo.Context) (map[string]any, error) {
	body := map[string]any{}
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil {
		return nil, apierr.BadRequest("body should be a JSON object", err)
	}
	return body, nil
}

func checkOnly(c echo.Context) bool {
	return c.QueryParam("check_only") == "true"
}

func CreateItemHandler(st *store.Store, nameKey string) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := decodeBody(c)
		if err != nil {
			return err
		}
		_, actor := actorOf(c)
		rec, err := st.Create(actor, c.Param(nameKey), body, checkOnly(c))
		if err != nil {
			return asHTTPError(err)
		}
		if rec == nil {
			return c.JSON(http.StatusOK, success())
		}
		c.Logger().Infof("created: %s", rec["@id"])
		return c.JSON(http.StatusCreated, success(rec))
	}
}

func PatchItemHandler(st *store.Store, nameKey, uuidKey string) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := decodeBody(c)
		if err != nil {
			return err
		}
		deleteFields := []string{}
		if df := c.QueryParam("delete_fields"); df != "" {
			deleteFields = strings.Split(df, ",")
		}
		_, actor := actorOf(c)
		rec, err := st.Patch(actor, itemID(c, nameKey, uuidKey), body, deleteFields, checkOnly(c))
		if err != nil {
			return asHTTPError(err)
		}
		if rec == nil {
			return c.JSON(http.StatusOK, success())
		}
		c.Logger().Infof("updated: %s", rec["@id"])
		return c.JSON(http.StatusOK, success(rec))
	}
}

func UploadCredentialsHandler(st *store.Store, nameKey, uuidKey string) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := itemID(c, nameKey, uuidKey)
		creds, err := st.UploadCredentials(id)
		if err != nil {
			return asHTTPError(err)
		}
		return c.JSON(http.StatusOK, success(map[string]any{
			"@id":                id,
			"upload_credentials": creds,
		}))
	}
}

// PutUploadHandler receives the content of a file item.
func PutUploadHandler(st *store.Store, keyKey string) echo.HandlerFunc {
	return func(c echo.Context) error {
		buf := new(bytes.Buffer)
		w := kio.NewMD5Writer(buf)
		if _, err := io.Copy(w, c.Request().Body); err != nil {
			return apierr.BadRequest("cannot read content", err)
		}
		sum := w.Hex()
		if err := st.Receive(c.Param(keyKey), buf.Bytes(), sum); err != nil {
			return asHTTPError(err)
		}
		c.Logger().Infof("received: %d bytes (md5sum: %s)", buf.Len(), sum)
		return c.JSON(http.StatusOK, success())
	}
}

func asHTTPError(err error) error {
	var verr *store.ValidationError
	var cerr *store.ConflictError
	switch {
	case errors.Is(err, store.ErrMissing), errors.Is(err, store.ErrUnknownType):
		return apierr.NotFound()
	case errors.Is(err, store.ErrNotFileItem):
		return apierr.BadRequest(err.Error(), err)
	case errors.As(err, &verr):
		return apierr.Unprocessable(verr.Entries...)
	case errors.As(err, &cerr):
		return apierr.Conflict(
			cerr.Error(),
			apierr.WithEntries(items.ErrorEntry{
				Location: "body", Name: items.FieldPath(cerr.Field), Description: cerr.Error(),
			}),
		)
	default:
		return apierr.InternalServerError(xe.Wrap(err))
	}
}
