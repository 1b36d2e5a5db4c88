package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MemoryDisklet is an in-memory Disklet. Contents vanish with the process.
type MemoryDisklet struct {
	mu    sync.RWMutex
	files map[string][]byte
}

func NewMemoryDisklet() *MemoryDisklet {
	return &MemoryDisklet{files: make(map[string][]byte)}
}

func (d *MemoryDisklet) Delete(ctx context.Context, path string) error {
	p := normalizePath(path)
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.files, p)
	prefix := p + "/"
	if p == "" {
		prefix = ""
	}
	for name := range d.files {
		if strings.HasPrefix(name, prefix) {
			delete(d.files, name)
		}
	}
	return nil
}

func (d *MemoryDisklet) GetData(ctx context.Context, path string) ([]byte, error) {
	p := normalizePath(path)
	d.mu.RLock()
	defer d.mu.RUnlock()
	data, ok := d.files[p]
	if !ok {
		return nil, fmt.Errorf("get %q: %w", p, ErrNotFound)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (d *MemoryDisklet) GetText(ctx context.Context, path string) (string, error) {
	data, err := d.GetData(ctx, path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (d *MemoryDisklet) List(ctx context.Context, path string) (map[string]string, error) {
	p := normalizePath(path)
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string]string)
	if _, ok := d.files[p]; ok {
		out[p] = KindFile
		return out, nil
	}

	prefix := p + "/"
	if p == "" {
		prefix = ""
	}
	for name := range d.files {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := strings.TrimPrefix(name, prefix)
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			out[prefix+rest[:i]] = KindFolder
		} else {
			out[name] = KindFile
		}
	}
	return out, nil
}

func (d *MemoryDisklet) SetData(ctx context.Context, path string, data []byte) error {
	p := normalizePath(path)
	if p == "" {
		return fmt.Errorf("set: empty path")
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.files[p] = buf
	return nil
}

func (d *MemoryDisklet) SetText(ctx context.Context, path string, text string) error {
	return d.SetData(ctx, path, []byte(text))
}

func normalizePath(path string) string {
	parts := strings.Split(path, "/")
	kept := parts[:0]
	for _, part := range parts {
		if part == "" || part == "." {
			continue
		}
		kept = append(kept, part)
	}
	return strings.Join(kept, "/")
}
