package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"sync"

	"techwire-be/internal/logger"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

var ErrEmptyName = errors.New("storage: object name is required")

// Store persists blobs and returns their public URL and key.
type Store interface {
	Store(ctx context.Context, data []byte, name, contentType string) (url, key string, err error)
}

// FSStore keeps blobs on an afero filesystem served under baseURL.
type FSStore struct {
	fs      afero.Fs
	baseURL string

	// serializes key allocation so concurrent uploads never share a name
	mu sync.Mutex
}

func NewFSStore(fs afero.Fs, baseURL string) *FSStore {
	return &FSStore{fs: fs, baseURL: strings.TrimRight(baseURL, "/")}
}

// NewOSStore roots an FSStore at dir on the local disk.
func NewOSStore(dir, baseURL string) (*FSStore, error) {
	osfs := afero.NewOsFs()
	if err := osfs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return NewFSStore(afero.NewBasePathFs(osfs, dir), baseURL), nil
}

func (s *FSStore) Fs() afero.Fs { return s.fs }

func (s *FSStore) Store(ctx context.Context, data []byte, name, contentType string) (string, string, error) {
	log := logger.FromCtx(ctx).With(zap.String("layer", "storage"), zap.String("method", "Store"))

	key := cleanKey(name)
	if key == "" {
		return "", "", ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key, err := s.uniqueKey(key)
	if err != nil {
		return "", "", err
	}

	if dir := path.Dir(key); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return "", "", fmt.Errorf("create blob dir: %w", err)
		}
	}
	if err := afero.WriteFile(s.fs, key, data, 0o644); err != nil {
		log.Error("failed to write blob", zap.String("key", key), zap.Error(err))
		return "", "", fmt.Errorf("write blob %s: %w", key, err)
	}

	log.Info("blob stored",
		zap.String("key", key),
		zap.String("content_type", contentType),
		zap.Int("bytes", len(data)),
	)
	return s.baseURL + "/" + key, key, nil
}

// uniqueKey appends (1), (2), ... before the extension until the key is free.
func (s *FSStore) uniqueKey(key string) (string, error) {
	ext := path.Ext(key)
	base := strings.TrimSuffix(key, ext)

	candidate := key
	for n := 1; ; n++ {
		_, err := s.fs.Stat(candidate)
		if errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("stat blob %s: %w", candidate, err)
		}
		candidate = fmt.Sprintf("%s(%d)%s", base, n, ext)
	}
}

func cleanKey(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	key := strings.TrimPrefix(path.Clean("/"+name), "/")
	if key == "." {
		return ""
	}
	return key
}
