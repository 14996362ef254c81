package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"quality-guardian/internal/domain"
)

// PostgresStore persists cache entries in a pgvector table so warm
// results survive restarts and are shared across replicas. Nearest uses
// the cosine distance operator with an expiry predicate.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger

	reapInterval time.Duration
	stopChan     chan struct{}
}

// NewPostgresStore creates a store over the given pool.
func NewPostgresStore(pool *pgxpool.Pool, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{
		pool:         pool,
		logger:       logger,
		reapInterval: time.Minute,
		stopChan:     make(chan struct{}),
	}
}

func (s *PostgresStore) Nearest(ctx context.Context, fingerprint []float32) (*Entry, float32, error) {
	query := `
		SELECT id, fingerprint, record, created_at, expires_at,
		       1 - (fingerprint <=> $1) AS similarity
		FROM guardian_cache_entries
		WHERE expires_at > now()
		ORDER BY fingerprint <=> $1
		LIMIT 1
	`
	row := s.pool.QueryRow(ctx, query, pgvector.NewVector(fingerprint))

	var entry Entry
	var vec pgvector.Vector
	var recordJSON []byte
	var similarity float32
	err := row.Scan(&entry.ID, &vec, &recordJSON, &entry.CreatedAt, &entry.ExpiresAt, &similarity)
	if err == pgx.ErrNoRows {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query nearest entry: %w", err)
	}

	entry.Fingerprint = vec.Slice()
	var record domain.DetectionRecord
	if err := json.Unmarshal(recordJSON, &record); err != nil {
		return nil, 0, fmt.Errorf("failed to decode cached record: %w", err)
	}
	entry.Record = record
	return &entry, similarity, nil
}

func (s *PostgresStore) Put(ctx context.Context, entry Entry) error {
	recordJSON, err := json.Marshal(entry.Record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	query := `
		INSERT INTO guardian_cache_entries (id, fingerprint, record, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET fingerprint = EXCLUDED.fingerprint,
		    record = EXCLUDED.record,
		    expires_at = EXCLUDED.expires_at
	`
	_, err = s.pool.Exec(ctx, query,
		entry.ID, pgvector.NewVector(entry.Fingerprint), recordJSON, entry.CreatedAt, entry.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to insert cache entry: %w", err)
	}
	return nil
}

// StartReaper launches a background loop that deletes expired entries.
func (s *PostgresStore) StartReaper() {
	s.logger.Info("Starting cache reaper")
	go s.reap()
}

// StopReaper stops the background loop.
func (s *PostgresStore) StopReaper() {
	s.logger.Info("Stopping cache reaper")
	close(s.stopChan)
}

func (s *PostgresStore) reap() {
	ticker := time.NewTicker(s.reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			tag, err := s.pool.Exec(ctx, `DELETE FROM guardian_cache_entries WHERE expires_at < now()`)
			cancel()
			if err != nil {
				s.logger.Warn("cache_reap_failed", slog.String("error", err.Error()))
				continue
			}
			if tag.RowsAffected() > 0 {
				s.logger.Info("cache_reaped", slog.Int64("deleted", tag.RowsAffected()))
			}
		}
	}
}

var _ Store = (*PostgresStore)(nil)
