// Package logger provides loggers given to subcommands.
package logger

import (
	"io"
	"log"
	"os"
)

// Null discards everything. Use it in tests.
func Null() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// Default writes messages to stderr without timestamps.
func Default() *log.Logger {
	return log.New(os.Stderr, "", 0)
}
