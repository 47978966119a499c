package goAuthClient

import (
	"context"

	"github.com/MrEthical07/goAuthClient/api"
)

// WithRequestID attaches a request id to ctx. Every API call made on ctx sends
// it as X-Request-ID and audit events record it; without one a random id is
// generated per request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return api.WithRequestID(ctx, id)
}

func requestIDFromContext(ctx context.Context) string {
	return api.RequestIDFromContext(ctx)
}
