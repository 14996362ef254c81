package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"quality-guardian/internal/domain"
)

// Entry is one stored fingerprint → record mapping. The record is the
// cache's own copy, independent of the one returned to the caller.
type Entry struct {
	ID          uuid.UUID
	Fingerprint []float32
	Record      domain.DetectionRecord
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Store is the index backing the similarity cache. Implementations must
// be safe for concurrent lookups and stores; a stale read (missing an
// in-flight write) is acceptable.
type Store interface {
	// Nearest returns the unexpired entry closest to the fingerprint and
	// its cosine similarity, or nil when the store is empty.
	Nearest(ctx context.Context, fingerprint []float32) (*Entry, float32, error)

	// Put inserts or overwrites an entry.
	Put(ctx context.Context, entry Entry) error
}

// SimilarityCache deduplicates near-identical (question, answer) pairs.
// It is probabilistic: a hit requires similarity at or above the
// configured threshold, checked on every lookup. The cache is always
// optional; any fingerprinting or store failure degrades to a miss/no-op.
type SimilarityCache struct {
	encoder   domain.VectorEncoder
	store     Store
	threshold float32
	ttl       time.Duration
	logger    *slog.Logger
}

// New builds a similarity cache over the given store.
func New(encoder domain.VectorEncoder, store Store, threshold float32, ttl time.Duration, logger *slog.Logger) *SimilarityCache {
	return &SimilarityCache{
		encoder:   encoder,
		store:     store,
		threshold: threshold,
		ttl:       ttl,
		logger:    logger,
	}
}

// Lookup fingerprints the request and searches for the nearest stored
// entry. The threshold guard runs here, not only at insert time: a false
// hit across dissimilar requests is the failure mode this cache must
// never exhibit.
func (c *SimilarityCache) Lookup(ctx context.Context, req domain.DetectionRequest) (*domain.DetectionRecord, bool) {
	fingerprint, err := c.fingerprint(ctx, req)
	if err != nil {
		c.logger.Warn("cache_fingerprint_failed", slog.String("error", err.Error()))
		return nil, false
	}

	entry, similarity, err := c.store.Nearest(ctx, fingerprint)
	if err != nil {
		c.logger.Warn("cache_lookup_failed", slog.String("error", err.Error()))
		return nil, false
	}
	if entry == nil || similarity < c.threshold {
		return nil, false
	}
	if time.Now().After(entry.ExpiresAt) {
		return nil, false
	}

	c.logger.Debug("cache_hit",
		slog.String("entry_id", entry.ID.String()),
		slog.Float64("similarity", float64(similarity)))

	record := entry.Record
	return &record, true
}

// Store fingerprints the request and saves its own copy of the record.
// Failures are logged and swallowed; the cache never blocks a result.
func (c *SimilarityCache) Store(ctx context.Context, req domain.DetectionRequest, record domain.DetectionRecord) {
	fingerprint, err := c.fingerprint(ctx, req)
	if err != nil {
		c.logger.Warn("cache_fingerprint_failed", slog.String("error", err.Error()))
		return
	}

	now := time.Now()
	entry := Entry{
		ID:          uuid.New(),
		Fingerprint: fingerprint,
		Record:      record,
		CreatedAt:   now,
		ExpiresAt:   now.Add(c.ttl),
	}
	if err := c.store.Put(ctx, entry); err != nil {
		c.logger.Warn("cache_store_failed", slog.String("error", err.Error()))
	}
}

func (c *SimilarityCache) fingerprint(ctx context.Context, req domain.DetectionRequest) ([]float32, error) {
	vectors, err := c.encoder.Encode(ctx, []string{req.Question + "\n" + req.CandidateAnswer})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, errors.New("embedder returned no fingerprint")
	}
	return vectors[0], nil
}
