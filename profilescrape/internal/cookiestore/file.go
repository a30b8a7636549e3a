package cookiestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/hazyhaar/linkscrape/profilescrape/internal/fault"
)

// FileStore keeps the jar as a pretty-printed JSON array in one file.
type FileStore struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewFileStore returns a store backed by path. The file is created on the
// first Save.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{path: path, logger: logger}
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(ctx context.Context) (Jar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("cookiestore: read failed, starting empty", "path", s.path, "error", err)
		}
		return Jar{}, nil
	}

	var jar Jar
	if err := json.Unmarshal(data, &jar); err != nil {
		var syntaxErr *json.SyntaxError
		kind := "type"
		if errors.As(err, &syntaxErr) {
			kind = "syntax"
		}
		s.logger.Warn("cookiestore: corrupt jar, starting empty", "path", s.path, "decode_error", kind)
		return Jar{}, nil
	}
	return jar.Dedupe(), nil
}

func (s *FileStore) Save(ctx context.Context, jar Jar) error {
	if err := ctx.Err(); err != nil {
		return fault.New(fault.ErrIO, "cookiestore.save", err)
	}
	if jar == nil {
		jar = Jar{}
	}
	data, err := json.MarshalIndent(jar.Dedupe(), "", "  ")
	if err != nil {
		return fault.New(fault.ErrIO, "cookiestore.save", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeAtomic(s.path, data); err != nil {
		return fault.New(fault.ErrIO, "cookiestore.save", err)
	}
	s.logger.Debug("cookiestore: saved", "path", s.path, "cookies", len(jar))
	return nil
}

// writeAtomic writes data to a temp file in path's directory, syncs it and
// renames it over path.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("chmod temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
