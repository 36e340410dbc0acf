package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileCache stores a snapshot as JSON on local disk.
type FileCache[T any] struct {
	Path string
}

type cacheEnvelope[T any] struct {
	RefreshedAt time.Time `json:"refreshed_at"`
	Items       []T       `json:"items"`
}

func NewFileCache[T any](path string) *FileCache[T] {
	return &FileCache[T]{Path: path}
}

func (c *FileCache[T]) Load(ctx context.Context) ([]T, time.Time, error) {
	_ = ctx
	b, err := os.ReadFile(c.Path)
	if err != nil {
		return nil, time.Time{}, err
	}
	var env cacheEnvelope[T]
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, time.Time{}, fmt.Errorf("decode cache %s: %w", c.Path, err)
	}
	return env.Items, env.RefreshedAt, nil
}

// Save writes through a temp file so readers never see a partial cache.
func (c *FileCache[T]) Save(ctx context.Context, items []T, refreshedAt time.Time) error {
	_ = ctx
	b, err := json.Marshal(cacheEnvelope[T]{RefreshedAt: refreshedAt, Items: items})
	if err != nil {
		return err
	}
	dir := filepath.Dir(c.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".corpus-cache-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), c.Path)
}
