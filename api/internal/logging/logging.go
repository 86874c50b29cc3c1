package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Setup sends the standard logger to stderr and, when path is set, to the
// file at path as well. The returned func closes the file.
func Setup(path string) (func() error, error) {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	if strings.TrimSpace(path) == "" {
		log.SetOutput(os.Stderr)
		return func() error { return nil }, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	log.SetOutput(io.MultiWriter(os.Stderr, f))
	return f.Close, nil
}
