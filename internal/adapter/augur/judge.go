package augur

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/time/rate"

	"quality-guardian/internal/domain"
)

const judgePromptTemplate = `You are a strict fact-checking judge.

Question: %s
Candidate answer: %s
Reference material: %s

Rate the factual correctness of the candidate answer on a scale of 0-100,
where 0 means entirely fabricated and 100 means fully supported.
Reply with the number only.`

// fallbackCorrectness is used when the judge reply carries no parsable
// rating. A neutral 50 keeps the stage informative without letting a
// garbled reply swing the verdict either way.
const fallbackCorrectness = 50

type judgeChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type judgeChatRequest struct {
	Model     string                 `json:"model"`
	Messages  []judgeChatMessage     `json:"messages"`
	Stream    bool                   `json:"stream"`
	KeepAlive int                    `json:"keep_alive"`
	Options   map[string]interface{} `json:"options,omitempty"`
}

type judgeChatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

// OllamaJudge sends the judge prompt to Ollama's chat endpoint and parses
// the 0-100 rating out of the reply. A rate limiter caps how often the
// expensive model is hit regardless of request volume.
type OllamaJudge struct {
	BaseURL string
	Model   string
	Client  *http.Client
	limiter *rate.Limiter
}

// NewOllamaJudge constructs a judge client. maxPerSecond bounds the call
// rate; zero or negative disables the limit.
func NewOllamaJudge(baseURL, model string, timeoutSeconds int, maxPerSecond float64) *OllamaJudge {
	timeout := 120 * time.Second
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	var limiter *rate.Limiter
	if maxPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(maxPerSecond), 1)
	}
	return &OllamaJudge{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		Client:  &http.Client{Timeout: timeout},
		limiter: limiter,
	}
}

// Judge returns correctness in [0,1] (1 = fully supported by reference).
func (j *OllamaJudge) Judge(ctx context.Context, question, answer, reference string) (float64, error) {
	if j.limiter != nil {
		if err := j.limiter.Wait(ctx); err != nil {
			return 0, fmt.Errorf("judge rate limit wait: %w", err)
		}
	}

	start := time.Now()
	if reference == "" {
		reference = "(none provided)"
	}
	prompt := fmt.Sprintf(judgePromptTemplate, question, answer, reference)

	reqBody := judgeChatRequest{
		Model:     j.Model,
		Messages:  []judgeChatMessage{{Role: "user", Content: prompt}},
		Stream:    false,
		KeepAlive: -1,
		Options: map[string]interface{}{
			"temperature": 0.0,
		},
	}
	jsonPayload, err := json.Marshal(reqBody)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal judge request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", j.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonPayload))
	if err != nil {
		return 0, fmt.Errorf("failed to create judge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to call judge endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("judge endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var chatResp judgeChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return 0, fmt.Errorf("failed to decode judge response: %w", err)
	}

	rating := parseRating(chatResp.Message.Content)
	slog.Info("judge_completed",
		slog.String("model", j.Model),
		slog.Int("rating", rating),
		slog.Duration("elapsed", time.Since(start)),
	)
	return float64(rating) / 100, nil
}

func (j *OllamaJudge) ModelName() string {
	return j.Model
}

// parseRating extracts the first integer from the reply and clamps it to
// [0,100]. Replies with no number fall back to the neutral rating.
func parseRating(reply string) int {
	fields := strings.FieldsFunc(reply, func(r rune) bool {
		return !unicode.IsDigit(r)
	})
	if len(fields) == 0 {
		return fallbackCorrectness
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return fallbackCorrectness
	}
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

var _ domain.JudgeClient = (*OllamaJudge)(nil)
