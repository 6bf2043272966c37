package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// FileStore serves assets from a local directory.
type FileStore struct {
	basePath string
}

// NewFileStore creates the base directory if missing.
func NewFileStore(basePath string) (*FileStore, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("storage base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

// Put writes r to key, replacing any previous file.
func (f *FileStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	target := f.path(key)
	tmp, err := os.CreateTemp(f.basePath, ".upload-*")
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("move file: %w", err)
	}
	return nil
}

func (f *FileStore) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	info, err := f.Stat(ctx, key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	file, err := os.Open(f.path(key))
	if err != nil {
		return nil, ObjectInfo{}, fmt.Errorf("open file: %w", err)
	}
	return file, info, nil
}

func (f *FileStore) Stat(_ context.Context, key string) (ObjectInfo, error) {
	st, err := os.Stat(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return ObjectInfo{}, fmt.Errorf("stat %s: %w", key, ErrObjectNotFound)
	}
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("stat file: %w", err)
	}
	if st.IsDir() {
		return ObjectInfo{}, fmt.Errorf("stat %s: %w", key, ErrObjectNotFound)
	}
	return ObjectInfo{
		Key:          key,
		Size:         st.Size(),
		ContentType:  ContentTypeFor(key),
		LastModified: st.ModTime().UTC(),
	}, nil
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.basePath, safeFilename(key))
}

// ContentTypeFor guesses a MIME type from the file extension.
func ContentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md":
		return "text/markdown; charset=utf-8"
	case ".pdf":
		return "application/pdf"
	}
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func safeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, string(os.PathSeparator), "_")
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "asset"
	}
	return name
}
