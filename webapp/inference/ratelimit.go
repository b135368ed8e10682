package inference

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

/**
RateLimitedClient holds every call until the shared limiter allows it, so that concurrent jobs
do not exceed the provider's request quota between them
*/
type RateLimitedClient struct {
	inner   Client
	limiter *rate.Limiter
}

func NewRateLimitedClient(inner Client, perMinute int, burst int) *RateLimitedClient {
	if burst <= 0 {
		burst = 1
	}
	var limit rate.Limit
	if perMinute <= 0 {
		limit = rate.Inf
	} else {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return &RateLimitedClient{
		inner:   inner,
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (c *RateLimitedClient) Complete(ctx context.Context, req Request) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return c.inner.Complete(ctx, req)
}
