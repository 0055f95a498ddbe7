package profiles

import (
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	kio "github.com/ffportal/ffsubmit/pkg/utils/io"
	"github.com/golang-jwt/jwt/v5"
	yaml "gopkg.in/yaml.v3"
)

var (
	ErrProfileStoreNotFound = errors.New("ffprofile store is not found")
	ErrCannotSave           = errors.New("cannot save ffprofile store")
	ErrProfileInvalid       = errors.New("ffprofile is invalid")
	ErrTokenExpired         = errors.New("access token is expired")
)

// ProfileStore is a map from profile name to Profile.
type ProfileStore map[string]*Profile

type Cert struct {
	// base64 encoded CA certificate
	CA string `yaml:"ca,omitempty"`
}

// Credential to access the portal.
//
// Either Key/Secret pair (basic auth) or Token (bearer JWT) is used.
// When both are given, Token wins.
type Credential struct {
	Key    string `yaml:"key,omitempty"`
	Secret string `yaml:"secret,omitempty"`
	Token  string `yaml:"token,omitempty"`
}

// Profile is a profile for the portal.
type Profile struct {
	// endpoint of the portal
	ApiRoot string `yaml:"apiRoot"`

	// certificate for the portal.
	Cert Cert `yaml:"cert,omitempty"`

	Credential Credential `yaml:"credential,omitempty"`
}

func verifyUrl(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.IsAbs()
}

func verifyPEM(b64cert string) bool {
	bin, err := base64.StdEncoding.DecodeString(b64cert)
	if err != nil {
		return false
	}
	blk, _ := pem.Decode(bin)
	return blk != nil
}

// verifyToken checks the token is a JWT and not expired at now.
//
// The signature is not verified; it is the portal's business.
func verifyToken(token string, now time.Time) error {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return fmt.Errorf("%w: credential.token is not JWT: %s", ErrProfileInvalid, err)
	}
	if claims.ExpiresAt != nil && !now.Before(claims.ExpiresAt.Time) {
		return fmt.Errorf("%w (at %s)", ErrTokenExpired, claims.ExpiresAt.Time.Format(time.RFC3339))
	}
	return nil
}

// Verify returns ErrProfileInvalid or ErrTokenExpired (wrapped) for a bad profile.
func (p *Profile) Verify() error {
	return p.VerifyAt(time.Now())
}

// VerifyAt verifies Profile as of now.
func (p *Profile) VerifyAt(now time.Time) error {
	if !verifyUrl(p.ApiRoot) {
		return fmt.Errorf("%w: apiRoot is not URL: %s", ErrProfileInvalid, p.ApiRoot)
	}
	if p.Cert.CA != "" && !verifyPEM(p.Cert.CA) {
		return fmt.Errorf("%w: cert.ca is not PEM", ErrProfileInvalid)
	}

	cred := p.Credential
	if cred.Token != "" {
		return verifyToken(cred.Token, now)
	}
	if (cred.Key == "") != (cred.Secret == "") {
		return fmt.Errorf("%w: credential.key and credential.secret should be given together", ErrProfileInvalid)
	}
	return nil
}

// LoadProfileStore loads profile store from file.
func LoadProfileStore(path string) (ProfileStore, error) {
	buf, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w at %s", ErrProfileStoreNotFound, path)
	} else if err != nil {
		return nil, err
	}
	return Parse(buf)
}

// Parse reads a profile store written in YAML.
func Parse(buf []byte) (ProfileStore, error) {
	ps := ProfileStore{}
	if err := yaml.Unmarshal(buf, &ps); err != nil {
		return nil, err
	}
	return ps, nil
}

// Save writes the profile store into path, readable only by the current user.
//
// The content is written into a temporary file next to path and renamed,
// so path keeps the previous content on failure.
func (ps ProfileStore) Save(path string) error {
	buf, err := yaml.Marshal(ps)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("%w: %w", ErrCannotSave, err)
	}
	tmp := path + ".saving"
	f, err := kio.CreatePrivate(tmp)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCannotSave, err)
	}
	defer os.Remove(tmp)

	_, err = f.Write(buf)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCannotSave, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("%w: %w", ErrCannotSave, err)
	}
	return nil
}
