package api

import (
	"context"
	"fmt"
	"log/slog"
)

// withFallback is the demo/mock policy shared by the student endpoints.
// In demo mode call is never made. Otherwise any failure resolves to a fresh
// fallback value; only a done context is reported as an error.
func withFallback[T any](
	ctx context.Context,
	logger *slog.Logger,
	op string,
	useMock bool,
	fallback func() T,
	call func(context.Context) (T, error),
) (T, error) {
	if useMock {
		return fallback(), nil
	}

	v, err := call(ctx)
	if err == nil {
		return v, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		var zero T
		return zero, fmt.Errorf("%s: %w", op, ctxErr)
	}

	logger.Warn("api call failed, falling back to mock data",
		"op", op,
		"error", err)
	return fallback(), nil
}
