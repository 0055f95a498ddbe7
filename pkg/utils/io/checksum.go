// Package io has small io helpers shared by ffsubmit and ffportald.
package io

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
)

// MD5Writer writes bytes into dest, and hashes the bytes written.
type MD5Writer struct {
	dest io.Writer
	h    hash.Hash
}

func NewMD5Writer(dest io.Writer) *MD5Writer {
	return &MD5Writer{dest: dest, h: md5.New()}
}

func (w *MD5Writer) Write(p []byte) (int, error) {
	n, err := w.dest.Write(p)
	w.h.Write(p[:n])
	return n, err
}

// Hex returns the hex-encoded MD5 of the bytes written so far.
func (w *MD5Writer) Hex() string {
	return hex.EncodeToString(w.h.Sum(nil))
}

// ChunkedMD5 reads source through in chunks of chunkSize bytes, and returns hex-encoded MD5 of it.
//
// onChunk is called after each chunk with the number of bytes read so far. It can be nil.
// Reading stops when ctx is cancelled.
func ChunkedMD5(ctx context.Context, source io.Reader, chunkSize int64, onChunk func(read int64)) (string, error) {
	if chunkSize <= 0 {
		return "", fmt.Errorf("chunk size should be positive: %d", chunkSize)
	}

	h := md5.New()
	var read int64
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := io.CopyN(h, source, chunkSize)
		read += n
		if 0 < n && onChunk != nil {
			onChunk(read)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
