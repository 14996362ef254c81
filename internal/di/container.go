package di

import (
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"quality-guardian/internal/adapter/augur"
	"quality-guardian/internal/adapter/searchhttp"
	"quality-guardian/internal/cache"
	"quality-guardian/internal/decision"
	"quality-guardian/internal/domain"
	"quality-guardian/internal/ensemble"
	"quality-guardian/internal/infra/config"
	"quality-guardian/internal/infra/httpclient"
	"quality-guardian/internal/pipeline"
	"quality-guardian/internal/scorer"
	"quality-guardian/internal/telemetry"
)

// Stage weights used by the final aggregation. Later stages carry more
// authority: they consume more signal and run only when earlier stages
// were inconclusive.
const (
	stageAWeight = 0.5
	stageBWeight = 1.0
	stageCWeight = 1.5
	stageDWeight = 2.0
)

// ApplicationComponents holds all wired dependencies for the service.
type ApplicationComponents struct {
	Scheduler *pipeline.Scheduler
	Cache     *cache.SimilarityCache
	Registry  *prometheus.Registry

	// CacheReaper is non-nil only with the postgres cache backend; the
	// caller owns its lifecycle.
	CacheReaper *cache.PostgresStore
}

// NewApplicationComponents wires the cascade from config. pool may be
// nil when the cache backend is memory.
func NewApplicationComponents(cfg *config.Config, pool *pgxpool.Pool, log *slog.Logger) *ApplicationComponents {
	// External clients share one pooled transport.
	embedder := augur.NewOllamaEmbedder(cfg.AugurURL, cfg.EmbeddingModel, cfg.AugurTimeout)
	embedder.Client = httpclient.NewPooledClient(time.Duration(cfg.AugurTimeout) * time.Second)

	judge := augur.NewOllamaJudge(cfg.JudgeURL, cfg.JudgeModel, cfg.JudgeTimeout, cfg.JudgeMaxQPS)
	judge.Client = httpclient.NewPooledClient(time.Duration(cfg.JudgeTimeout) * time.Second)

	retriever := searchhttp.NewRetriever(cfg.SearchIndexerURL, cfg.SearchIndexerTimeout)
	retriever.Client = httpclient.NewPooledClient(time.Duration(cfg.SearchIndexerTimeout) * time.Second)

	// Similarity cache.
	var store cache.Store
	var reaper *cache.PostgresStore
	if cfg.CacheBackend == "postgres" && pool != nil {
		pgStore := cache.NewPostgresStore(pool, log)
		store = pgStore
		reaper = pgStore
	} else {
		store = cache.NewMemoryStore(cfg.CacheSize, cfg.CacheTTL)
	}
	simCache := cache.New(embedder, store, float32(cfg.CacheThreshold), cfg.CacheTTL, log)

	// Stage B ensemble: local probes plus any configured remote ones.
	probes := scorer.DefaultProbeModels()
	for name, url := range cfg.ProbeEndpoints() {
		remote := augur.NewRemoteProbe(name, cfg.RemoteProbeWeight, url, cfg.ProbeTimeout)
		remote.Client = httpclient.NewPooledClient(time.Duration(cfg.ProbeTimeout) * time.Second)
		probes = append(probes, remote)
	}

	scorers := []domain.StageScorer{
		scorer.NewHeuristicScorer(scorer.DefaultHeuristicWeights(), stageAWeight),
		ensemble.NewScorer(probes, cfg.MemberTimeout, cfg.EnsembleExpected, stageBWeight, log),
		scorer.NewContextVerifyScorer(embedder, retriever, cfg.RetrieveLimit, cfg.ContextExpected, stageCWeight, log),
		scorer.NewJudgeScorer(judge, simCache, cfg.JudgeExpected, stageDWeight, log),
	}

	policy := pipeline.NewPolicy(pipeline.Thresholds{
		TerminateAfterA: cfg.TerminateAfterA,
		StageBLow:       cfg.StageBLow,
		FlagProbability: cfg.FlagProbability,
		UncertainLow:    cfg.UncertainLow,
		UncertainHigh:   cfg.UncertainHigh,
	})

	engine := decision.NewEngine(
		decision.Thresholds{Accept: cfg.AcceptBelow, Regenerate: cfg.RegenerateAbove},
		ensemble.DefaultIntervalConfig(),
		log,
	)

	registry := prometheus.NewRegistry()
	sink := telemetry.NewMultiSink(
		telemetry.NewSlogSink(log),
		telemetry.NewMetricsSink(registry),
	)

	scheduler := pipeline.NewScheduler(scorers, policy, engine, simCache, sink, log)

	return &ApplicationComponents{
		Scheduler:   scheduler,
		Cache:       simCache,
		Registry:    registry,
		CacheReaper: reaper,
	}
}
