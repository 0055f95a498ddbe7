package command

import (
	"os"
	"path/filepath"
	"strings"
)

// CommonFlags are flags which all commands talking to the portal accept.
type CommonFlags struct {
	Profile      string `flag:",help=name of the ffprofile to use"`
	ProfileStore string `flag:",help=path to the ffprofile store"`
	Env          string `flag:",help=path to the ffenv file"`
	Verbose      bool   `flag:",help=print causes of errors"`
}

type detection struct {
	home string
}

type DetectionOption func(*detection)

// WithHome replaces the user home directory, where the profile store is placed.
func WithHome(home string) DetectionOption {
	return func(d *detection) {
		d.home = home
	}
}

// DefaultCommonFlags detects CommonFlags for a project directory.
//
// It looks for ".ffprofile" (a file holding the profile name in its first line)
// and "ffenv" in dir and its ancestors; the nearest ones win.
// Without ".ffprofile", the profile name is the absolute path of dir.
// Without "ffenv", it is dir/ffenv, which may not exist.
func DefaultCommonFlags(dir string, opt ...DetectionOption) (CommonFlags, error) {
	d := detection{}
	for _, o := range opt {
		o(&d)
	}
	if d.home == "" {
		d.home, _ = os.UserHomeDir()
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}

	cf := CommonFlags{
		Profile:      dir,
		ProfileStore: filepath.Join(d.home, ".ffsubmit", "profile"),
		Env:          filepath.Join(dir, "ffenv"),
	}

	if marker, ok := findUpward(dir, ".ffprofile"); ok {
		content, err := os.ReadFile(marker)
		if err != nil {
			return CommonFlags{}, err
		}
		first, _, _ := strings.Cut(string(content), "\n")
		cf.Profile = strings.TrimSpace(first)
	}
	if e, ok := findUpward(dir, "ffenv"); ok {
		cf.Env = e
	}
	return cf, nil
}

// findUpward returns the path of the regular file named name in dir or its nearest ancestor.
func findUpward(dir string, name string) (string, bool) {
	for {
		candidate := filepath.Join(dir, name)
		if s, err := os.Stat(candidate); err == nil && s.Mode().IsRegular() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
