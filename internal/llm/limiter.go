package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited spaces out calls to the wrapped Completer. Callers wait for a
// token; a cancelled context ends the wait with an error.
type RateLimited struct {
	next    Completer
	limiter *rate.Limiter
}

// NewRateLimited wraps next with a limit of perSecond requests and a burst of
// one. A non-positive rate returns next unchanged.
func NewRateLimited(next Completer, perSecond float64) Completer {
	if perSecond <= 0 {
		return next
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), 1)}
}

func (r *RateLimited) Complete(ctx context.Context, prompt string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("completion rate limit: %w", err)
	}
	return r.next.Complete(ctx, prompt)
}
