package quota

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CacheMaxAge is the shared expiry applied to the whole local record.
const CacheMaxAge = 30 * 24 * time.Hour

// cacheRecord is the single JSON record the local cache holds: every feature
// counter plus one shared write timestamp.
type cacheRecord struct {
	Counters map[string]int `json:"counters"`
	SavedAt  time.Time      `json:"saved_at"`
}

// CacheStore is the file-backed local usage cache.
type CacheStore struct {
	path string
}

// NewCacheStore creates a CacheStore and ensures its directory exists.
func NewCacheStore(dataDir string) (*CacheStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", dataDir, err)
	}
	return &CacheStore{path: filepath.Join(dataDir, "usage_cache.json")}, nil
}

// Load reads the cached counters. A record older than CacheMaxAge is
// discarded entirely and an empty set is returned; a missing or unreadable
// file also yields an empty set.
func (s *CacheStore) Load(now time.Time) map[Feature]int {
	counters := make(map[Feature]int)

	data, err := os.ReadFile(s.path)
	if err != nil {
		return counters
	}

	var rec cacheRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		fmt.Printf("Warning: discarding unreadable usage cache: %v\n", err)
		return counters
	}

	if now.Sub(rec.SavedAt) > CacheMaxAge {
		_ = os.Remove(s.path)
		return counters
	}

	for feature, count := range rec.Counters {
		counters[Feature(feature)] = count
	}
	return counters
}

// Save writes every counter plus the shared timestamp.
func (s *CacheStore) Save(counters map[Feature]int, now time.Time) error {
	rec := cacheRecord{Counters: make(map[string]int, len(counters)), SavedAt: now}
	for feature, count := range counters {
		rec.Counters[string(feature)] = count
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal usage cache: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write usage cache: %w", err)
	}
	return nil
}
