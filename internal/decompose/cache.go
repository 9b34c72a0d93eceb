package decompose

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/natefinch/atomic"

	"github.com/mesh-intelligence/storysync/pkg/types"
)

// Cache stores descriptors per parent as <dir>/<parent>.tasks.json.
type Cache struct {
	dir string
}

// NewCache returns a cache rooted at dir.
func NewCache(dir string) *Cache {
	if dir == "" {
		dir = types.DefaultCacheDir
	}
	return &Cache{dir: dir}
}

// Path returns the cache file for a parent.
func (c *Cache) Path(parent int) string {
	return filepath.Join(c.dir, strconv.Itoa(parent)+".tasks.json")
}

// Load returns the cached descriptors for parent. The second result is false
// when there is no usable cache entry; a malformed file counts as a miss.
func (c *Cache) Load(parent int) ([]types.ChildDescriptor, bool) {
	data, err := os.ReadFile(c.Path(parent))
	if err != nil {
		return nil, false
	}
	return decodeCached(data)
}

// Store writes descriptors for parent as indented JSON.
func (c *Cache) Store(parent int, descs []types.ChildDescriptor) error {
	if descs == nil {
		descs = []types.ChildDescriptor{}
	}
	data, err := json.MarshalIndent(descs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	if err := atomic.WriteFile(c.Path(parent), bytes.NewReader(append(data, '\n'))); err != nil {
		return fmt.Errorf("write cache for parent %d: %w", parent, err)
	}
	return nil
}

// Remove deletes the cache entry for parent. A missing entry is not an error.
func (c *Cache) Remove(parent int) error {
	err := os.Remove(c.Path(parent))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
