package env

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// FFEnv is a project-local setting of submissions.
type FFEnv struct {
	// size of chunks to compute checksums of uploaded files, like "8 MiB".
	ChunkSize string `yaml:"chunkSize,omitempty"`

	// field values put into new objects of each type, unless given explicitly.
	Defaults map[string]map[string]any `yaml:"defaults,omitempty"`
}

func New() *FFEnv {
	return new(FFEnv)
}

// ChunkBytes returns ChunkSize in bytes. It is 0 when ChunkSize is empty.
func (fe FFEnv) ChunkBytes() (int64, error) {
	if fe.ChunkSize == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(fe.ChunkSize)
	if err != nil {
		return 0, fmt.Errorf("ffenv: chunkSize: %w", err)
	}
	return int64(n), nil
}

// DefaultsFor returns a copy of default values for typeName.
func (fe FFEnv) DefaultsFor(typeName string) map[string]any {
	ret := map[string]any{}
	for k, v := range fe.Defaults[typeName] {
		ret[k] = v
	}
	return ret
}

// LoadFFEnv reads ffenv file.
//
// When the file is missing, empty FFEnv is returned.
func LoadFFEnv(filepath string) (*FFEnv, error) {
	env := FFEnv{}

	content, err := os.ReadFile(filepath)
	if err != nil {
		if os.IsNotExist(err) {
			return &env, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(content, &env); err != nil {
		return nil, err
	}
	return &env, nil
}
