package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a disklet path holds no file.
var ErrNotFound = errors.New("storage: file not found")

// Entry kinds reported by Disklet.List.
const (
	KindFile   = "file"
	KindFolder = "folder"
)

// Disklet is a small path-addressed file store. Wallets expose two of them:
// one synced across devices and one local to this device.
type Disklet interface {
	// Delete removes a file or a whole folder. Deleting a missing path is not an error.
	Delete(ctx context.Context, path string) error
	// GetData returns the bytes stored at path, or ErrNotFound.
	GetData(ctx context.Context, path string) ([]byte, error)
	// GetText returns the text stored at path, or ErrNotFound.
	GetText(ctx context.Context, path string) (string, error)
	// List returns the direct children of a folder, mapped to KindFile or KindFolder.
	List(ctx context.Context, path string) (map[string]string, error)
	// SetData stores bytes at path, creating parent folders implicitly.
	SetData(ctx context.Context, path string, data []byte) error
	// SetText stores text at path, creating parent folders implicitly.
	SetText(ctx context.Context, path string, text string) error
}
