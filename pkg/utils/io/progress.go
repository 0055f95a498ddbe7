package io

import (
	"io"
	"sync"
)

// ProgressReader reports how many bytes have been read.
type ProgressReader interface {
	io.Reader

	// BytesRead returns the number of bytes read so far.
	BytesRead() int64
}

type progressReader struct {
	base   io.Reader
	onRead func(read int64)
	read   int64
	mux    sync.Mutex
}

// NewProgressReader wraps base.
//
// onRead is called after each Read which reads out some bytes,
// with the total number of bytes read so far. It can be nil.
func NewProgressReader(base io.Reader, onRead func(read int64)) ProgressReader {
	return &progressReader{base: base, onRead: onRead}
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.base.Read(buf)

	p.mux.Lock()
	p.read += int64(n)
	read := p.read
	p.mux.Unlock()

	if 0 < n && p.onRead != nil {
		p.onRead(read)
	}
	return n, err
}

func (p *progressReader) BytesRead() int64 {
	p.mux.Lock()
	defer p.mux.Unlock()
	return p.read
}
