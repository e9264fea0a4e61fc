// Package analysis turns fetched destination content into a structured
// analysis result: summary, tags, safety rating, and classification.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/jonesrussell/linkguard/internal/config"
	"github.com/jonesrussell/linkguard/internal/domain"
	"github.com/jonesrussell/linkguard/internal/logger"
	"github.com/jonesrussell/linkguard/internal/retry"
	"github.com/jonesrussell/linkguard/internal/textai"
)

// ErrUnparseableResult indicates the provider returned a completion that
// does not contain the expected JSON document. It is fatal; retrying the
// same prompt is unlikely to help.
var ErrUnparseableResult = errors.New("analysis completion is not valid JSON")

// Generator produces a text completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Engine analyzes destination content. Content at or below the chunk
// threshold is analyzed in a single structured call; longer content is
// summarized chunk by chunk and reduced, with safety and classification
// taken from the first chunk.
type Engine struct {
	client  Generator
	cfg     config.AnalysisConfig
	limiter *rate.Limiter
	log     logger.Logger
}

// NewEngine creates an analysis engine.
func NewEngine(client Generator, cfg config.AnalysisConfig, log logger.Logger) *Engine {
	return &Engine{
		client:  client,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(cfg.ChunkPacing), 1),
		log:     log,
	}
}

// Analyze produces the full analysis result for the given content. Content
// below the minimum length short-circuits to the deterministic fallback
// without any provider call.
func (e *Engine) Analyze(ctx context.Context, content string) (*domain.AnalysisResult, error) {
	if len(content) < e.cfg.MinContent {
		return domain.FallbackResult(), nil
	}

	if len(content) <= e.cfg.ChunkThreshold {
		return e.analyzeSingle(ctx, content)
	}
	return e.analyzeChunked(ctx, content)
}

// analyzeSingle handles content that fits in one structured call.
func (e *Engine) analyzeSingle(ctx context.Context, content string) (*domain.AnalysisResult, error) {
	text, err := e.generate(ctx, fullAnalysisPrompt(content))
	if err != nil {
		return nil, err
	}

	var result domain.AnalysisResult
	if err := parseJSON(text, &result); err != nil {
		return nil, err
	}
	sanitize(&result)
	return &result, nil
}

// analyzeChunked splits the content, summarizes each chunk in order, and
// reduces the summaries into the final result. The first chunk carries the
// most identifying content, so its structured call also produces the
// safety rating and classification.
func (e *Engine) analyzeChunked(ctx context.Context, content string) (*domain.AnalysisResult, error) {
	chunks := splitChunks(content, e.cfg.ChunkThreshold)
	e.log.Debug("Analyzing long content in chunks",
		logger.Int("chunks", len(chunks)),
		logger.Int("length", len(content)),
	)

	summaries := make([]string, 0, len(chunks))

	if err := e.pace(ctx); err != nil {
		return nil, err
	}
	text, err := e.generate(ctx, firstChunkPrompt(chunks[0]))
	if err != nil {
		return nil, err
	}
	var first firstChunkResult
	if err := parseJSON(text, &first); err != nil {
		return nil, err
	}
	summaries = append(summaries, first.Summary)

	for _, chunk := range chunks[1:] {
		if err := e.pace(ctx); err != nil {
			return nil, err
		}
		summary, err := e.generate(ctx, chunkSummaryPrompt(chunk))
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, strings.TrimSpace(summary))
	}

	if err := e.pace(ctx); err != nil {
		return nil, err
	}
	text, err = e.generate(ctx, reducePrompt(summaries))
	if err != nil {
		return nil, err
	}
	var reduced reduceResult
	if err := parseJSON(text, &reduced); err != nil {
		return nil, err
	}

	result := &domain.AnalysisResult{
		Summary:        reduced.Summary,
		Tags:           reduced.Tags,
		Safety:         first.Safety,
		Classification: first.Classification,
	}
	sanitize(result)
	return result, nil
}

func (e *Engine) pace(ctx context.Context) error {
	if err := e.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("chunk pacing: %w", err)
	}
	return nil
}

// generate calls the provider with bounded retry. Rate limits are retried
// after the provider's suggested wait when it gives one; credential and
// parse failures abort immediately.
func (e *Engine) generate(ctx context.Context, prompt string) (string, error) {
	var text string

	cfg := retry.Config{
		MaxAttempts:  e.cfg.RetryAttempts,
		InitialDelay: e.cfg.RetryWait,
		MaxDelay:     e.cfg.RetryWait * 4,
		Multiplier:   2.0,
		IsRetryable: func(err error) bool {
			if errors.Is(err, textai.ErrUnauthorized) || errors.Is(err, textai.ErrMalformedResponse) {
				return false
			}
			if _, ok := textai.IsRateLimit(err); ok {
				return true
			}
			return retry.DefaultIsRetryable(err)
		},
		DelayFor: func(err error) (time.Duration, bool) {
			if wait, ok := textai.IsRateLimit(err); ok && wait > 0 {
				return wait, true
			}
			return 0, false
		},
	}

	err := retry.Do(ctx, cfg, func() error {
		out, genErr := e.client.Generate(ctx, prompt)
		if genErr != nil {
			return genErr
		}
		text = out
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("provider generate: %w", err)
	}
	return text, nil
}

// firstChunkResult is the structured output of the first chunk's call.
type firstChunkResult struct {
	Summary        string                `json:"summary"`
	Safety         domain.Safety         `json:"safety"`
	Classification domain.Classification `json:"classification"`
}

// reduceResult is the structured output of the reduce call.
type reduceResult struct {
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
}

// parseJSON extracts the JSON document from a completion, tolerating
// surrounding prose and markdown fences.
func parseJSON(text string, v any) error {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("%w: no JSON object found", ErrUnparseableResult)
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), v); err != nil {
		return fmt.Errorf("%w: %v", ErrUnparseableResult, err)
	}
	return nil
}

// sanitize clamps and normalizes provider output so invalid values never
// reach storage.
func sanitize(result *domain.AnalysisResult) {
	if result.Safety.Rating < 1 {
		result.Safety.Rating = 1
	}
	if result.Safety.Rating > 5 {
		result.Safety.Rating = 5
	}
	result.Classification.Category = domain.ValidCategory(result.Classification.Category)
	if result.Classification.Confidence < 0 {
		result.Classification.Confidence = 0
	}
	if result.Classification.Confidence > 1 {
		result.Classification.Confidence = 1
	}
	if result.Tags == nil {
		result.Tags = []string{}
	}
	result.Summary = strings.TrimSpace(result.Summary)
}

// splitChunks cuts content into pieces of at most size bytes, backing off
// to a rune boundary so no chunk carries a torn multi-byte sequence.
func splitChunks(content string, size int) []string {
	if size <= 0 {
		return []string{content}
	}
	var chunks []string
	for len(content) > size {
		cut := size
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		if cut == 0 {
			cut = size
		}
		chunks = append(chunks, content[:cut])
		content = content[cut:]
	}
	if len(content) > 0 {
		chunks = append(chunks, content)
	}
	return chunks
}
