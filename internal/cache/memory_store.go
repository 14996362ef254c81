package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"quality-guardian/internal/domain"
)

// MemoryStore keeps entries in an in-process LRU with TTL eviction.
// Nearest is a linear scan; capacity is bounded, so the scan cost is too.
// The underlying LRU is safe for concurrent use.
type MemoryStore struct {
	entries *expirable.LRU[uuid.UUID, Entry]
}

// NewMemoryStore creates a bounded in-memory store. Entries expire after
// ttl and the least recently used entry is evicted beyond size.
func NewMemoryStore(size int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: expirable.NewLRU[uuid.UUID, Entry](size, nil, ttl),
	}
}

func (s *MemoryStore) Nearest(_ context.Context, fingerprint []float32) (*Entry, float32, error) {
	var best *Entry
	var bestSim float32
	for _, entry := range s.entries.Values() {
		sim := domain.CosineSimilarity(fingerprint, entry.Fingerprint)
		if best == nil || sim > bestSim {
			e := entry
			best = &e
			bestSim = sim
		}
	}
	if best == nil {
		return nil, 0, nil
	}
	return best, bestSim, nil
}

func (s *MemoryStore) Put(_ context.Context, entry Entry) error {
	s.entries.Add(entry.ID, entry)
	return nil
}

// Len reports the current number of cached entries.
func (s *MemoryStore) Len() int {
	return s.entries.Len()
}

var _ Store = (*MemoryStore)(nil)
