package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"
)

const (
	// DefaultMaxRetries is the number of additional attempts after the first.
	DefaultMaxRetries = 2

	// DefaultMinConfidence is the score at or above which a non-final
	// attempt is accepted. The final attempt is accepted at any confidence.
	DefaultMinConfidence = 30

	defaultBackoffUnit    = time.Second
	defaultAttemptTimeout = 60 * time.Second
)

// Orchestrator composes Normalize, an Engine, and Clean into an
// attempt-with-retries extraction.
type Orchestrator struct {
	engine         Engine
	maxRetries     int
	minConfidence  float64
	backoffUnit    time.Duration
	attemptTimeout time.Duration
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

func WithMaxRetries(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

func WithMinConfidence(c float64) OrchestratorOption {
	return func(o *Orchestrator) { o.minConfidence = c }
}

func WithBackoffUnit(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.backoffUnit = d
		}
	}
}

func WithAttemptTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.attemptTimeout = d
		}
	}
}

func NewOrchestrator(engine Engine, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		engine:         engine,
		maxRetries:     DefaultMaxRetries,
		minConfidence:  DefaultMinConfidence,
		backoffUnit:    defaultBackoffUnit,
		attemptTimeout: defaultAttemptTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ExtractFromFile runs the full pipeline against the image at path. Each
// attempt normalizes the image, recognizes it, and cleans the text. A
// non-final attempt below the confidence floor is retried; an engine error at
// a non-final attempt backs off linearly before the next try. The final
// attempt's result is accepted at any confidence; a final-attempt error is
// returned as ErrExtractionFailed.
func (o *Orchestrator) ExtractFromFile(ctx context.Context, path string, opts Options) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("%w: read %s: %w", ErrPreprocessingFailed, path, err)
	}
	return o.Extract(ctx, data, opts)
}

// Extract is ExtractFromFile for an in-memory image.
func (o *Orchestrator) Extract(ctx context.Context, data []byte, opts Options) (Result, error) {
	opts = opts.withDefaults()
	if err := ValidateLanguage(opts.Language); err != nil {
		return Result{}, err
	}

	attempts := o.maxRetries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		final := attempt == attempts

		res, err := o.attempt(ctx, data, opts)
		if err != nil {
			lastErr = err
			if final {
				break
			}
			slog.Warn("extraction attempt failed, retrying",
				"attempt", attempt, "error", err)
			if err := o.backoff(ctx, attempt); err != nil {
				return Result{}, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
			}
			continue
		}

		if res.Confidence >= o.minConfidence || final {
			return res, nil
		}
		slog.Info("low confidence result, retrying",
			"attempt", attempt, "confidence", res.Confidence)
	}

	return Result{}, fmt.Errorf("%w after %d attempts: %w", ErrExtractionFailed, attempts, lastErr)
}

func (o *Orchestrator) attempt(ctx context.Context, data []byte, opts Options) (Result, error) {
	normalized, err := Normalize(data)
	if err != nil {
		return Result{}, err
	}

	attemptCtx, cancel := context.WithTimeout(ctx, o.attemptTimeout)
	defer cancel()

	res, err := o.engine.Recognize(attemptCtx, normalized, opts)
	if err != nil {
		return Result{}, err
	}
	res.Text = Clean(res.Text)
	return res, nil
}

// backoff waits attempt*backoffUnit or until ctx is done.
func (o *Orchestrator) backoff(ctx context.Context, attempt int) error {
	t := time.NewTimer(time.Duration(attempt) * o.backoffUnit)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
