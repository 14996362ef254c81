package guardian_http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"quality-guardian/internal/domain"
	"quality-guardian/internal/infra/config"
)

// maxBatchSize bounds one batch call; larger batches should be split by
// the caller.
const maxBatchSize = 50

// batchConcurrency caps how many detections a single batch runs at once.
const batchConcurrency = 8

// Detector is the pipeline surface the handler depends on.
type Detector interface {
	Detect(ctx context.Context, req domain.DetectionRequest) (domain.DetectionRecord, error)
}

type Handler struct {
	detector Detector
	cfg      *config.Config
}

func NewHandler(detector Detector, cfg *config.Config) *Handler {
	return &Handler{
		detector: detector,
		cfg:      cfg,
	}
}

type detectRequest struct {
	Question               string `json:"question"`
	CandidateAnswer        string `json:"candidate_answer"`
	ReferenceContext       string `json:"reference_context,omitempty"`
	UseContextVerification bool   `json:"use_context_verification"`
	MaxVerification        bool   `json:"max_verification"`
	ModelName              string `json:"model_name,omitempty"`
	TimeoutMs              int64  `json:"timeout_ms,omitempty"`
}

func (r detectRequest) toDomain(defaultBudget time.Duration) domain.DetectionRequest {
	timeout := time.Duration(r.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = defaultBudget
	}
	return domain.DetectionRequest{
		Question:               r.Question,
		CandidateAnswer:        r.CandidateAnswer,
		ReferenceContext:       r.ReferenceContext,
		UseContextVerification: r.UseContextVerification,
		MaxVerification:        r.MaxVerification,
		ModelName:              r.ModelName,
		Timeout:                timeout,
	}
}

// Detect classifies one (question, answer) pair.
// (POST /v1/detect)
func (h *Handler) Detect(ctx echo.Context) error {
	var req detectRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	record, err := h.detector.Detect(ctx.Request().Context(), req.toDomain(h.cfg.DefaultBudget))
	if err != nil {
		if errors.Is(err, domain.ErrMalformedRequest) {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return ctx.JSON(http.StatusOK, record)
}

type batchRequest struct {
	Items []detectRequest `json:"items"`
}

type batchItemResult struct {
	Record *domain.DetectionRecord `json:"record,omitempty"`
	Error  string                  `json:"error,omitempty"`
}

type batchResponse struct {
	Results []batchItemResult `json:"results"`
}

// DetectBatch classifies up to maxBatchSize pairs concurrently. One
// malformed item fails that item, not the batch.
// (POST /v1/detect/batch)
func (h *Handler) DetectBatch(ctx echo.Context) error {
	var req batchRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if len(req.Items) == 0 {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "items is required"})
	}
	if len(req.Items) > maxBatchSize {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "too many items"})
	}

	results := make([]batchItemResult, len(req.Items))
	g, gctx := errgroup.WithContext(ctx.Request().Context())
	g.SetLimit(batchConcurrency)
	for i, item := range req.Items {
		g.Go(func() error {
			record, err := h.detector.Detect(gctx, item.toDomain(h.cfg.DefaultBudget))
			if err != nil {
				results[i] = batchItemResult{Error: err.Error()}
				return nil
			}
			results[i] = batchItemResult{Record: &record}
			return nil
		})
	}
	_ = g.Wait()

	return ctx.JSON(http.StatusOK, batchResponse{Results: results})
}

// Config exposes the active thresholds and budgets for debugging.
// (GET /v1/config)
func (h *Handler) Config(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]interface{}{
		"thresholds": map[string]float64{
			"terminate_after_a": h.cfg.TerminateAfterA,
			"stage_b_low":       h.cfg.StageBLow,
			"flag_probability":  h.cfg.FlagProbability,
			"uncertain_low":     h.cfg.UncertainLow,
			"uncertain_high":    h.cfg.UncertainHigh,
			"accept_below":      h.cfg.AcceptBelow,
			"regenerate_above":  h.cfg.RegenerateAbove,
		},
		"budgets": map[string]string{
			"default":           h.cfg.DefaultBudget.String(),
			"ensemble_member":   h.cfg.MemberTimeout.String(),
			"ensemble_expected": h.cfg.EnsembleExpected.String(),
			"context_expected":  h.cfg.ContextExpected.String(),
			"judge_expected":    h.cfg.JudgeExpected.String(),
		},
		"cache": map[string]interface{}{
			"backend":              h.cfg.CacheBackend,
			"similarity_threshold": h.cfg.CacheThreshold,
			"ttl":                  h.cfg.CacheTTL.String(),
		},
	})
}
