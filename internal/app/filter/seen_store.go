package filter

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// SeenStore remembers a bounded number of keys. The Bloom filter answers most
// negative lookups; the LRU holds the authoritative key set and evicts the
// oldest key once capacity is exceeded.
type SeenStore struct {
	mu                sync.RWMutex
	capacity          int
	falsePositiveRate float64
	bloom             *bloom.BloomFilter
	keys              *lru.Cache[string, struct{}]
}

// NewSeenStore creates a store holding up to capacity keys.
func NewSeenStore(capacity int, falsePositiveRate float64) *SeenStore {
	if capacity <= 0 {
		capacity = 1
	}
	keys, _ := lru.New[string, struct{}](capacity)
	return &SeenStore{
		capacity:          capacity,
		falsePositiveRate: falsePositiveRate,
		bloom:             bloom.NewWithEstimates(uint(capacity), falsePositiveRate),
		keys:              keys,
	}
}

// Has reports whether key was added and not yet evicted.
func (s *SeenStore) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.bloom.TestString(key) {
		return false
	}
	return s.keys.Contains(key)
}

// Add remembers key.
func (s *SeenStore) Add(key string) {
	if key == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bloom.AddString(key)
	s.keys.Add(key, struct{}{})
}

// Size returns the number of remembered keys.
func (s *SeenStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keys.Len()
}

// Clear forgets every key.
func (s *SeenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bloom = bloom.NewWithEstimates(uint(s.capacity), s.falsePositiveRate)
	s.keys.Purge()
}
