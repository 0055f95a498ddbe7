// Package flag provides flag.Value types shared by subcommands.
package flag

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Values is a repeatable flag of field values, given as "NAME=VALUE".
//
// VALUE is read as a YAML flow value, so "read_length=100" gives a number
// and "tags=[a, b]" gives a list. Quote it to keep a string, like `count="100"`.
type Values map[string]any

func (v *Values) String() string {
	if v == nil || len(*v) == 0 {
		return ""
	}
	names := make([]string, 0, len(*v))
	for k := range *v {
		names = append(names, k)
	}
	sort.Strings(names)
	pairs := make([]string, 0, len(names))
	for _, k := range names {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, (*v)[k]))
	}
	return strings.Join(pairs, " ")
}

func (v *Values) Set(s string) error {
	name, raw, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return fmt.Errorf("%q should be NAME=VALUE", s)
	}

	var value any
	if strings.TrimSpace(raw) != "" {
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if value == nil {
		value = raw
	}
	if *v == nil {
		*v = Values{}
	}
	(*v)[name] = value
	return nil
}
