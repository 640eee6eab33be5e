package reader

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/eugenenazirov/secretconf/internal/confload"
)

const sourceFile = "file"

// Codes reported by the file reader.
const (
	CodeNotFound   = "NotFound"
	CodeReadFailed = "ReadFailed"
)

// File reads configuration text from a local file, typically a development
// stand-in for a secret. The file is read once per instance.
type File struct {
	path   string
	logger *zap.Logger

	mu     sync.Mutex
	cached *string
}

// NewFile returns a reader for the file at path. Only WithLogger applies.
func NewFile(path string, opts ...Option) *File {
	o := newOptions(opts)
	return &File{path: path, logger: o.logger}
}

// Read returns the file contents.
func (r *File) Read(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != nil {
		return *r.cached, nil
	}
	if err := ctx.Err(); err != nil {
		return "", r.fail(CodeCanceled, err)
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		code := CodeReadFailed
		if errors.Is(err, fs.ErrNotExist) {
			code = CodeNotFound
		}
		return "", r.fail(code, err)
	}

	text := string(data)
	r.cached = &text
	return text, nil
}

func (r *File) fail(code string, err error) error {
	r.logger.Error("failed to read config file",
		zap.String("path", r.path),
		zap.String("code", code),
		zap.Error(err),
	)
	return &confload.ReaderError{Source: sourceFile, Code: code, Err: err}
}
