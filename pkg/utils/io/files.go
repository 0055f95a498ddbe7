package io

import (
	"io/fs"
	"os"
	"path/filepath"
)

// CreateAll creates the file at name together with its missing parent directories.
//
// New directories get dirMode, and the file gets fileMode.
// An existing file is truncated.
func CreateAll(name string, fileMode, dirMode fs.FileMode) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(name), dirMode); err != nil {
		return nil, err
	}
	return os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, fileMode)
}

// CreatePrivate opens an empty file readable and writable only by its owner.
//
// An existing file is truncated and its permission is narrowed to 0600.
func CreatePrivate(name string) (*os.File, error) {
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, err
	}
	if err := f.Chmod(0600); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}
