// Package filesystem stores invoice documents in a local directory.
package filesystem

import (
	"context"
	"os"
	"path/filepath"

	"github.com/go-faster/errors"

	"github.com/xenking/velo-till/internal/domain/checkout"
)

var _ checkout.DocumentSaver = (*DocumentStore)(nil)

// DocumentStore implements checkout.DocumentSaver by writing files into Dir.
type DocumentStore struct {
	dir string
}

// NewDocumentStore returns a DocumentStore writing into dir, creating it when
// missing.
func NewDocumentStore(dir string) (*DocumentStore, error) {
	if dir == "" {
		return nil, errors.New("documents directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrapf(err, "create %s", dir)
	}
	return &DocumentStore{dir: dir}, nil
}

// Dir returns the target directory.
func (s *DocumentStore) Dir() string { return s.dir }

// Save writes content under the base name of name and returns the final
// path. The file appears atomically: it is written to a temporary file in the
// same directory and renamed. An existing file with the same name is
// replaced.
func (s *DocumentStore) Save(ctx context.Context, name string, content []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." {
		return "", errors.Errorf("invalid document name %q", name)
	}
	target := filepath.Join(s.dir, base)

	tmp, err := os.CreateTemp(s.dir, "."+base+".*")
	if err != nil {
		return "", errors.Wrap(err, "create temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return "", errors.Wrapf(err, "write %s", base)
	}
	if err := tmp.Close(); err != nil {
		return "", errors.Wrapf(err, "close %s", base)
	}
	if err := os.Chmod(tmp.Name(), 0o640); err != nil {
		return "", errors.Wrapf(err, "chmod %s", base)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", errors.Wrapf(err, "rename %s", base)
	}
	return target, nil
}

// Ready checks that the directory still exists and is a directory.
func (s *DocumentStore) Ready(context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return errors.Wrap(err, "stat documents directory")
	}
	if !info.IsDir() {
		return errors.Errorf("%s is not a directory", s.dir)
	}
	return nil
}
