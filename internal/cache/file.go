package cache

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mrz1836/satchel/internal/fileutil"
)

// FileName is the cache file kept in each account directory.
const FileName = "balances.json"

// ErrCorruptCache indicates the cache file is malformed JSON.
var ErrCorruptCache = errors.New("cache file is corrupted")

// FileStorage persists a BalanceCache as JSON.
type FileStorage struct {
	path string
}

// NewFileStorage creates a new file-based cache storage.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// Save writes the cache atomically.
func (s *FileStorage) Save(c *BalanceCache) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := fileutil.WriteJSON(s.path, c); err != nil {
		return fmt.Errorf("writing balance cache: %w", err)
	}
	return nil
}

// Load reads the cache. A missing file yields an empty cache; a corrupt one
// is moved aside and also yields an empty cache along with ErrCorruptCache.
func (s *FileStorage) Load() (*BalanceCache, error) {
	var c BalanceCache
	err := fileutil.ReadJSON(s.path, &c)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return NewBalanceCache(), nil
	case err != nil:
		corruptPath := fmt.Sprintf("%s.corrupt.%d", s.path, time.Now().UTC().UnixNano())
		if renameErr := os.Rename(s.path, corruptPath); renameErr != nil {
			return NewBalanceCache(), fmt.Errorf("%w: %w (also failed to move file: %w)", ErrCorruptCache, err, renameErr)
		}
		return NewBalanceCache(), fmt.Errorf("%w: %w (moved to %s)", ErrCorruptCache, err, corruptPath)
	}

	if c.Entries == nil {
		c.Entries = make(map[string]BalanceCacheEntry)
	}
	return &c, nil
}

// Delete removes the cache file.
func (s *FileStorage) Delete() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing cache file: %w", err)
	}
	return nil
}

// Path returns the cache file path.
func (s *FileStorage) Path() string {
	return s.path
}
