package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/noveltoon/backend/internal/pipeline"
	"github.com/noveltoon/backend/internal/pkg/httpx"
)

type Decision int

const (
	Retryable Decision = iota
	Fatal
)

// Classifier decides whether a failed attempt is worth repeating.
type Classifier func(error) Decision

type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func DefaultPolicy(attempts int) Policy {
	if attempts <= 0 {
		attempts = 3
	}
	return Policy{Attempts: attempts, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
}

// DefaultClassifier treats transport-shaped errors (timeouts, 5xx, 408/429)
// as retryable and every typed pipeline error except ExternalServiceError
// as fatal.
func DefaultClassifier(err error) Decision {
	var pe *pipeline.Error
	if errors.As(err, &pe) {
		if pe.Kind == pipeline.KindExternalService {
			return Retryable
		}
		return Fatal
	}
	if httpx.IsRetryableError(err) {
		return Retryable
	}
	return Fatal
}

// Do runs op up to p.Attempts times with exponential backoff (base*2^i,
// ±20% jitter). A fatal classification or context cancellation returns
// immediately; exhausting attempts maps the last error to
// ExternalServiceError.
func Do[T any](ctx context.Context, p Policy, classify Classifier, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if classify == nil {
		classify = DefaultClassifier
	}

	var lastErr error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, pipeline.NewError(pipeline.KindCancelled, "cancelled before attempt", err)
		}

		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			return zero, pipeline.NewError(pipeline.KindCancelled, "cancelled during attempt", ctx.Err())
		}
		if classify(err) == Fatal {
			return zero, err
		}
		lastErr = err

		if attempt == p.Attempts-1 {
			break
		}
		delay := p.BaseDelay << uint(attempt)
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
		timer := time.NewTimer(httpx.JitterSleep(delay))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, pipeline.NewError(pipeline.KindCancelled, "cancelled during backoff", ctx.Err())
		case <-timer.C:
		}
	}

	return zero, pipeline.NewError(pipeline.KindExternalService,
		fmt.Sprintf("retries exhausted after %d attempts", p.Attempts), lastErr)
}
