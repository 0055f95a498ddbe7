// Package config reads the configuration file of the development portal.
package config

import (
	"fmt"
	"os"

	xe "github.com/ffportal/ffsubmit/pkg/errors"
	"gopkg.in/yaml.v3"
)

// User is an account of the portal.
type User struct {
	// @id of the user item. Generated from email when empty.
	ID    string `yaml:"id,omitempty"`
	Email string `yaml:"email"`

	// access key pair for basic authentication.
	Key    string `yaml:"key,omitempty"`
	Secret string `yaml:"secret,omitempty"`

	Groups     []string `yaml:"groups,omitempty"`
	Lab        string   `yaml:"lab,omitempty"`
	SubmitsFor []string `yaml:"submits_for,omitempty"`
}

// IsAdmin reports whether the user is in the admin group.
func (u User) IsAdmin() bool {
	for _, g := range u.Groups {
		if g == "admin" {
			return true
		}
	}
	return false
}

// Item converts the user into a user item.
func (u User) Item() map[string]any {
	item := map[string]any{
		"@id":           u.ID,
		"@type":         []any{"User", "Item"},
		"email":         u.Email,
		"display_title": u.Email,
	}
	if 0 < len(u.Groups) {
		item["groups"] = toAny(u.Groups)
	}
	if u.Lab != "" {
		item["lab"] = u.Lab
	}
	if 0 < len(u.SubmitsFor) {
		item["submits_for"] = toAny(u.SubmitsFor)
	}
	return item
}

type Config struct {
	// HMAC secret to verify bearer tokens (HS256). Bearer tokens are refused when empty.
	TokenSecret string `yaml:"tokenSecret,omitempty"`

	Users []User `yaml:"users"`

	// items stored at startup. Each should have "@id" and "@type".
	Items []map[string]any `yaml:"items,omitempty"`
}

// Unmarshal parses a configuration and fills defaults.
func Unmarshal(b []byte) (*Config, error) {
	conf := new(Config)
	if err := yaml.Unmarshal(b, conf); err != nil {
		return nil, xe.WrapWithNote("portal config", err)
	}
	for i := range conf.Users {
		u := &conf.Users[i]
		if u.Email == "" {
			return nil, fmt.Errorf("users[%d]: email is required", i)
		}
		if u.ID == "" {
			u.ID = "/users/" + u.Email + "/"
		}
	}
	return conf, nil
}

// Load reads a configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return Unmarshal(b)
}

func toAny(sli []string) []any {
	ret := make([]any, len(sli))
	for i := range sli {
		ret[i] = sli[i]
	}
	return ret
}
