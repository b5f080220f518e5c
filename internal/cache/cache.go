// Package cache keeps expensive capability output (OCR text) between runs.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/ppiankov/chronicle/internal/model"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// ContentKey derives a key from the bytes of a source document, so a renamed file still
// hits and an edited file misses
func ContentKey(namespace string, content []byte) string {
	hash := sha256.Sum256(content)
	return "chronicle:" + namespace + ":v1:" + hex.EncodeToString(hash[:])
}

// FromConfig builds the configured cache, or nil when caching is disabled
func FromConfig(cfg model.CacheConfig) Cache {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Dir == "" {
		return NewMemoryCache(cfg.MemoryTTL, 10*time.Minute)
	}
	return NewLayeredCache(cfg.MemoryTTL, cfg.Dir, cfg.DiskTTL)
}
