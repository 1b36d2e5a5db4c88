package cachefile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	// FileName is the default cache file name inside the data directory.
	FileName = "walletCache.json"

	filePerm = 0o600
	dirPerm  = 0o700
)

// ErrNoCache is returned by Read when no cache has been written yet.
var ErrNoCache = errors.New("cachefile: no cache file")

type Reader interface {
	Read(ctx context.Context) ([]byte, error)
}

type Writer interface {
	Write(ctx context.Context, data []byte) error
}

type ReadWriter interface {
	Reader
	Writer
}

// FileStore keeps the cache in a single file. Writes go to a temporary file
// that is renamed over the target, so readers never see a truncated file.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the cache file path.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoCache
	}
	if err != nil {
		return nil, fmt.Errorf("read cache file: %w", err)
	}
	return data, nil
}

func (s *FileStore) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), dirPerm); err != nil {
		return fmt.Errorf("mkdir cache dir: %w", err)
	}
	return atomicWriteFile(s.path, data, filePerm)
}

// Load reads and parses the cache file.
func Load(ctx context.Context, r Reader) (*File, error) {
	data, err := r.Read(ctx)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Save encodes and writes the cache file.
func Save(ctx context.Context, w Writer, f *File) error {
	data, err := Marshal(f)
	if err != nil {
		return err
	}
	return w.Write(ctx, data)
}

func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create tmp: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write tmp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync tmp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close tmp: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod tmp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
