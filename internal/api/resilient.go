package api

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"

	"github.com/felixgeelhaar/chatsql/internal/config"
)

// resilience wraps student-facing calls with a circuit breaker around a
// retrier. Only transport failures, 429 and 5xx count as failures, so an
// expired session never opens the breaker.
type resilience struct {
	circuitBreaker circuitbreaker.CircuitBreaker[*response]
	retrier        retry.Retry[*response]
}

func newResilience(cfg config.ResilienceConfig, logger *slog.Logger) *resilience {
	if !cfg.Enabled {
		return nil
	}

	threshold := cfg.FailureThreshold
	if threshold <= 0 {
		threshold = 5
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	multiplier := cfg.Multiplier
	if multiplier < 1 {
		multiplier = 2.0
	}

	r := &resilience{}

	r.circuitBreaker = circuitbreaker.New[*response](circuitbreaker.Config{
		MaxRequests: 1,
		Interval:    seconds(cfg.BreakerIntervalSecs, 60),
		Timeout:     seconds(cfg.BreakerTimeoutSecs, 30),
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return int(counts.ConsecutiveFailures) >= threshold
		},
		OnStateChange: func(from, to circuitbreaker.State) {
			logger.Warn("backend circuit breaker state change",
				"from", from.String(),
				"to", to.String())
		},
	})

	r.retrier = retry.New[*response](retry.Config{
		MaxAttempts:   maxAttempts,
		InitialDelay:  millis(cfg.InitialDelayMS, 200),
		MaxDelay:      millis(cfg.MaxDelayMS, 2000),
		Multiplier:    multiplier,
		BackoffPolicy: retry.BackoffExponential,
		Jitter:        true,
		IsRetryable:   isRetryable,
	})

	return r
}

func (r *resilience) execute(ctx context.Context, op func(context.Context) (*response, error)) (*response, error) {
	return r.circuitBreaker.Execute(ctx, func(ctx context.Context) (*response, error) {
		return r.retrier.Do(ctx, op)
	})
}

// isRetryable retries transport failures and overloaded/broken upstreams,
// never a cancelled context
func isRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}

	var ne *NetworkError
	return errors.As(err, &ne)
}

func seconds(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Second
}

func millis(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Millisecond
}
