package domain

import "context"

// VectorEncoder defines the interface for generating embeddings.
// Used by the similarity cache for fingerprints and by Stage C for
// answer/context agreement scoring.
type VectorEncoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	Version() string
}

// Document is one knowledge-base entry returned by retrieval.
type Document struct {
	ID      string
	Title   string
	Content string
	Score   float32
}

// DocumentRetriever looks up knowledge-base documents for Stage C when the
// request does not carry its own reference context.
type DocumentRetriever interface {
	Retrieve(ctx context.Context, query string, limit int) ([]Document, error)
}

// JudgeClient wraps the expensive LLM-as-judge call used by Stage D.
// Judge returns correctness in [0,1] (1 = candidate matches reference).
type JudgeClient interface {
	Judge(ctx context.Context, question, answer, context string) (float64, error)
	ModelName() string
}

// ProbeModel is one member of the Stage B ensemble. Predict returns
// P(hallucinated) in [0,1] for the extracted features.
type ProbeModel interface {
	Name() string
	Weight() float64
	Predict(ctx context.Context, req DetectionRequest, features TextFeatures) (float64, error)
}
