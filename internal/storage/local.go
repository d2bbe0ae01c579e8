package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Local stores share units as plain directories under a root. The staging
// area lives under <root>/temp and is not reported by ListDirs
type Local struct {
	Root string
}

func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(filepath.Join(root, "temp"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root, %w", err)
	}

	return &Local{Root: root}, nil
}

func (l *Local) Put(_ context.Context, dir, name string, r io.Reader, _ int64) (int64, error) {
	if err := os.MkdirAll(filepath.Join(l.Root, dir), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create blob directory, %w", err)
	}

	f, err := os.Create(filepath.Join(l.Root, dir, name))
	if err != nil {
		return 0, fmt.Errorf("failed to create blob, %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, r)
	if err != nil {
		return n, fmt.Errorf("failed to write blob, %w", err)
	}

	return n, nil
}

func (l *Local) Open(_ context.Context, dir, name string) (io.ReadCloser, int64, error) {
	f, err := os.Open(filepath.Join(l.Root, dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("failed to open blob, %w", err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("failed to stat blob, %w", err)
	}

	return f, stat.Size(), nil
}

func (l *Local) Stat(_ context.Context, dir, name string) (int64, error) {
	stat, err := os.Stat(filepath.Join(l.Root, dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to stat blob, %w", err)
	}

	return stat.Size(), nil
}

func (l *Local) ReadFile(_ context.Context, dir, name string) ([]byte, error) {
	b, err := os.ReadFile(filepath.Join(l.Root, dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read blob, %w", err)
	}

	return b, nil
}

func (l *Local) WriteFile(_ context.Context, dir, name string, data []byte) error {
	if err := os.MkdirAll(filepath.Join(l.Root, dir), 0o755); err != nil {
		return fmt.Errorf("failed to create blob directory, %w", err)
	}

	if err := os.WriteFile(filepath.Join(l.Root, dir, name), data, 0o644); err != nil {
		return fmt.Errorf("failed to write blob, %w", err)
	}

	return nil
}

func (l *Local) List(_ context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(l.Root, dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to list blob directory, %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}

	return names, nil
}

func (l *Local) ListDirs(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(l.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to list storage root, %w", err)
	}

	dirs := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && e.Name() != "temp" {
			dirs = append(dirs, e.Name())
		}
	}

	return dirs, nil
}

func (l *Local) Remove(_ context.Context, dir, name string) error {
	err := os.Remove(filepath.Join(l.Root, dir, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove blob, %w", err)
	}

	return nil
}

func (l *Local) RemoveDir(_ context.Context, dir string) error {
	if err := os.RemoveAll(filepath.Join(l.Root, dir)); err != nil {
		return fmt.Errorf("failed to remove blob directory, %w", err)
	}

	return nil
}
