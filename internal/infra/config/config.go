package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env  string
	Port string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// AugurURL serves embeddings; JudgeURL the judge model. They may
	// point at the same Ollama instance.
	AugurURL       string
	EmbeddingModel string
	AugurTimeout   int
	JudgeURL       string
	JudgeModel     string
	JudgeTimeout   int
	JudgeMaxQPS    float64

	SearchIndexerURL     string
	SearchIndexerTimeout int
	RetrieveLimit        int

	// Probe services joining the Stage B ensemble, comma-separated
	// name=url pairs. Empty means local probes only.
	RemoteProbes      string
	RemoteProbeWeight float64
	ProbeTimeout      int

	CacheBackend   string // "memory" or "postgres"
	CacheSize      int
	CacheTTL       time.Duration
	CacheThreshold float64

	DefaultBudget    time.Duration
	MemberTimeout    time.Duration
	EnsembleExpected time.Duration
	ContextExpected  time.Duration
	JudgeExpected    time.Duration

	TerminateAfterA float64
	StageBLow       float64
	FlagProbability float64
	UncertainLow    float64
	UncertainHigh   float64
	AcceptBelow     float64
	RegenerateAbove float64
}

func Load() *Config {
	return &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "9020"),

		DBHost:     getEnv("DB_HOST", "guardian-db"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "guardian_user"),
		DBPassword: getSecret("DB_PASSWORD", "DB_PASSWORD_FILE", "guardian_password"),
		DBName:     getEnv("DB_NAME", "guardian_db"),

		AugurURL:       getEnvWithAlt("AUGUR_EXTERNAL", "AUGUR_EXTERNAL_URL", "http://augur-external:11434"),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "embeddinggemma"),
		AugurTimeout:   getEnvInt("AUGUR_TIMEOUT_SECONDS", 30),
		JudgeURL:       getEnvWithAlt("AUGUR_JUDGE_URL", "AUGUR_EXTERNAL_URL", "http://augur-external:11435"),
		JudgeModel:     getEnv("AUGUR_JUDGE_MODEL", "gpt-oss20b-cpu"),
		JudgeTimeout:   getEnvInt("JUDGE_TIMEOUT_SECONDS", 120),
		JudgeMaxQPS:    getEnvFloat("JUDGE_MAX_QPS", 2),

		SearchIndexerURL:     getEnv("SEARCH_INDEXER_URL", "http://search-indexer:9005"),
		SearchIndexerTimeout: getEnvInt("SEARCH_INDEXER_TIMEOUT_SECONDS", 5),
		RetrieveLimit:        getEnvInt("RETRIEVE_LIMIT", 3),

		RemoteProbes:      getEnv("REMOTE_PROBES", ""),
		RemoteProbeWeight: getEnvFloat("REMOTE_PROBE_WEIGHT", 1.0),
		ProbeTimeout:      getEnvInt("PROBE_TIMEOUT_SECONDS", 5),

		CacheBackend:   getEnv("CACHE_BACKEND", "memory"),
		CacheSize:      getEnvInt("CACHE_SIZE", 4096),
		CacheTTL:       getEnvDuration("CACHE_TTL", time.Hour),
		CacheThreshold: getEnvFloat("CACHE_SIMILARITY_THRESHOLD", 0.92),

		DefaultBudget:    getEnvDuration("DETECTION_BUDGET", 5*time.Second),
		MemberTimeout:    getEnvDuration("ENSEMBLE_MEMBER_TIMEOUT", 500*time.Millisecond),
		EnsembleExpected: getEnvDuration("ENSEMBLE_EXPECTED_LATENCY", 200*time.Millisecond),
		ContextExpected:  getEnvDuration("CONTEXT_EXPECTED_LATENCY", 800*time.Millisecond),
		JudgeExpected:    getEnvDuration("JUDGE_EXPECTED_LATENCY", 2*time.Second),

		TerminateAfterA: getEnvFloat("THRESHOLD_TERMINATE_AFTER_A", 0.95),
		StageBLow:       getEnvFloat("THRESHOLD_STAGE_B_LOW", 0.70),
		FlagProbability: getEnvFloat("THRESHOLD_FLAG_PROBABILITY", 0.80),
		UncertainLow:    getEnvFloat("THRESHOLD_UNCERTAIN_LOW", 0.35),
		UncertainHigh:   getEnvFloat("THRESHOLD_UNCERTAIN_HIGH", 0.65),
		AcceptBelow:     getEnvFloat("THRESHOLD_ACCEPT_BELOW", 0.3),
		RegenerateAbove: getEnvFloat("THRESHOLD_REGENERATE_ABOVE", 0.7),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getSecret(envKey, fileEnvKey, fallback string) string {
	// 1. Try direct environment variable
	if value, ok := os.LookupEnv(envKey); ok {
		return value
	}

	// 2. Try reading from file specified by fileEnvKey
	if filePath, ok := os.LookupEnv(fileEnvKey); ok {
		content, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}

	return fallback
}

func getEnvWithAlt(key, altKey, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	if value, ok := os.LookupEnv(altKey); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// ProbeEndpoints parses the REMOTE_PROBES value into name → URL pairs.
// Malformed entries are skipped.
func (c *Config) ProbeEndpoints() map[string]string {
	endpoints := make(map[string]string)
	for _, part := range strings.Split(c.RemoteProbes, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, url, ok := strings.Cut(part, "=")
		if !ok || name == "" || url == "" {
			continue
		}
		endpoints[name] = url
	}
	return endpoints
}
