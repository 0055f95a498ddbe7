package rest

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	prof "github.com/ffportal/ffsubmit/cmd/ffsubmit/config/profiles"
	"github.com/ffportal/ffsubmit/pkg/submission"
	"github.com/ffportal/ffsubmit/pkg/utils"
)

// Client talks to the portal.
//
// It serves a submission session as its transport, schema source and uploader.
type Client interface {
	submission.Transport
	submission.SchemaSource
	submission.Uploader
}

type client struct {
	httpclient *http.Client
	api        string
	credential prof.Credential

	// tries of GET /profiles/ while the portal is unavailable.
	attempts int
	interval time.Duration
}

type Option func(*client) *client

// WithRetry sets how many times schemas are requested while the portal answers 502, 503 or 504.
//
// interval is the wait before the second try. It doubles for each following try.
func WithRetry(attempts int, interval time.Duration) Option {
	return func(c *client) *client {
		c.attempts = attempts
		c.interval = interval
		return c
	}
}

// NewClient creates a client for the portal of the profile.
//
// It returns the error of p.Verify for a broken or expired profile.
func NewClient(p *prof.Profile, opts ...Option) (Client, error) {
	if err := p.Verify(); err != nil {
		return nil, err
	}

	httpclient := new(http.Client)
	if p.Cert.CA != "" {
		tr, err := trusting(p.Cert.CA)
		if err != nil {
			return nil, err
		}
		httpclient.Transport = tr
	}

	c := &client{
		httpclient: httpclient,
		api:        strings.TrimSuffix(p.ApiRoot, "/"),
		credential: p.Credential,
		attempts:   3,
		interval:   500 * time.Millisecond,
	}
	for _, o := range opts {
		c = o(c)
	}
	return c, nil
}

// apipath joins path segments onto the API root.
//
// Trailing slash of the last segment is kept; the portal distinguishes "/Biosource/" and "/Biosource".
func (c *client) apipath(path ...string) string {
	trailing := 0 < len(path) && strings.HasSuffix(path[len(path)-1], "/")
	segments := append(
		[]string{c.api},
		utils.Map(path, func(p string) string { return strings.Trim(p, "/") })...,
	)

	u := strings.Join(segments, "/")
	if trailing {
		u += "/"
	}
	return u
}

func (c *client) authorize(req *http.Request) {
	switch cred := c.credential; {
	case cred.Token != "":
		req.Header.Set("Authorization", "Bearer "+cred.Token)
	case cred.Key != "":
		req.SetBasicAuth(cred.Key, cred.Secret)
	}
}

// trusting returns a transport which trusts the base64-encoded PEM CA certificate
// in addition to the system ones.
func trusting(b64ca string) (*http.Transport, error) {
	pem, err := base64.StdEncoding.DecodeString(b64ca)
	if err != nil {
		return nil, fmt.Errorf("cert.ca: %w", err)
	}

	pool, err := x509.SystemCertPool()
	if err != nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("cert.ca: no certificates")
	}

	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.TLSClientConfig = &tls.Config{RootCAs: pool}
	return tr, nil
}
