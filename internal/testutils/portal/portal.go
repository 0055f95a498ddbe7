// Package portal starts the development portal for tests.
package portal

import (
	_ "embed"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/ffportal/ffsubmit/cmd/ffportald/config"
	"github.com/ffportal/ffsubmit/cmd/ffportald/handlers"
	"github.com/ffportal/ffsubmit/cmd/ffportald/store"
	prof "github.com/ffportal/ffsubmit/cmd/ffsubmit/config/profiles"
	"github.com/ffportal/ffsubmit/cmd/ffsubmit/rest"
	"github.com/ffportal/ffsubmit/pkg/schema"
	"github.com/labstack/echo/v4"
)

//go:embed testdata/schemas.yaml
var Schemas []byte

//go:embed testdata/portal.yaml
var Config []byte

// Well-known accounts in Config.
const (
	SubmitterKey    = "SUBMITKEY"
	SubmitterSecret = "submitsecret"
	SubmitterID     = "/users/submitter/"
	AdminKey        = "ADMINKEY"
	AdminSecret     = "adminsecret"
	TokenSecret     = "ffportald-test-secret"
)

// Portal is a running portal.
type Portal struct {
	Server *httptest.Server
	Store  *store.Store
	Auth   *handlers.Authenticator
}

func (p *Portal) URL() string {
	return p.Server.URL
}

// New builds an echo server of the portal seeded with Config.
func New(t *testing.T) (*echo.Echo, *store.Store, *handlers.Authenticator) {
	t.Helper()
	set, err := schema.Decode(Schemas)
	if err != nil {
		t.Fatal(err)
	}
	conf, err := config.Unmarshal(Config)
	if err != nil {
		t.Fatal(err)
	}

	st := store.New(set)
	for _, u := range conf.Users {
		if err := st.Seed(u.Item()); err != nil {
			t.Fatal(err)
		}
	}
	for _, it := range conf.Items {
		if err := st.Seed(it); err != nil {
			t.Fatal(err)
		}
	}
	auth := handlers.NewAuthenticator(conf.Users, conf.TokenSecret)

	e := echo.New()
	e.Logger.SetOutput(io.Discard)
	handlers.Register(e, st, auth)
	return e, st, auth
}

// Start runs the portal on a local port until the test ends.
func Start(t *testing.T) *Portal {
	t.Helper()
	e, st, auth := New(t)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return &Portal{Server: srv, Store: st, Auth: auth}
}

// Profile returns a profile to access the portal as the submitter.
func (p *Portal) Profile() *prof.Profile {
	return &prof.Profile{
		ApiRoot: p.URL(),
		Credential: prof.Credential{
			Key: SubmitterKey, Secret: SubmitterSecret,
		},
	}
}

// Client returns a client of the portal, as the submitter.
func (p *Portal) Client(t *testing.T) rest.Client {
	t.Helper()
	c, err := rest.NewClient(p.Profile())
	if err != nil {
		t.Fatal(err)
	}
	return c
}
