package handlers

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ffportal/ffsubmit/cmd/ffportald/config"
	"github.com/ffportal/ffsubmit/cmd/ffportald/store"
	apierr "github.com/ffportal/ffsubmit/pkg/api/types/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const userKey = "ffportald.user"

// Authenticator identifies users by access key pairs (basic) or HS256 bearer tokens.
type Authenticator struct {
	users  []config.User
	secret []byte
}

func NewAuthenticator(users []config.User, tokenSecret string) *Authenticator {
	return &Authenticator{users: users, secret: []byte(tokenSecret)}
}

// Users returns every account.
func (a *Authenticator) Users() []config.User {
	return append([]config.User{}, a.users...)
}

// Middleware rejects requests without valid credentials.
func (a *Authenticator) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		u, err := a.identify(c)
		if err != nil {
			c.Logger().Warnf("authentication failed: %s", err)
			return apierr.Unauthorized(err.Error())
		}
		c.Set(userKey, u)
		return next(c)
	}
}

func (a *Authenticator) identify(c echo.Context) (config.User, error) {
	if key, secret, ok := c.Request().BasicAuth(); ok {
		for _, u := range a.users {
			if u.Key != "" && u.Key == key && subtle.ConstantTimeCompare([]byte(u.Secret), []byte(secret)) == 1 {
				return u, nil
			}
		}
		return config.User{}, errors.New("access key is not valid")
	}

	h := c.Request().Header.Get(echo.HeaderAuthorization)
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok {
		return config.User{}, errors.New("login required")
	}
	if len(a.secret) == 0 {
		return config.User{}, errors.New("bearer tokens are not accepted")
	}

	claims := new(jwt.RegisteredClaims)
	if _, err := jwt.ParseWithClaims(
		token, claims,
		func(*jwt.Token) (any, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
	); err != nil {
		return config.User{}, fmt.Errorf("bearer token is not valid: %w", err)
	}
	for _, u := range a.users {
		if u.Email == claims.Subject {
			return u, nil
		}
	}
	return config.User{}, fmt.Errorf("unknown user: %s", claims.Subject)
}

// IssueToken signs a bearer token for the user with email.
func (a *Authenticator) IssueToken(email string, ttl time.Duration, now time.Time) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("token secret is not configured")
	}
	claims := jwt.RegisteredClaims{
		Subject:   email,
		Issuer:    "ffportald",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func actorOf(c echo.Context) (config.User, store.Actor) {
	u, _ := c.Get(userKey).(config.User)
	return u, store.Actor{ID: u.ID, Admin: u.IsAdmin()}
}
