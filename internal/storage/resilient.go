package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"
)

// lookup carries a Get result through fortify so a missing key is a
// successful call rather than a breaker failure
type lookup struct {
	value []byte
	found bool
}

// ResilientConfig holds retry and circuit breaker settings for remote
// backends
type ResilientConfig struct {
	MaxAttempts      int
	InitialDelay     time.Duration
	MaxDelay         time.Duration
	FailureThreshold int
	OpenTimeout      time.Duration
	Logger           *slog.Logger
}

// DefaultResilientConfig returns settings suited to an interactive session
func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		MaxAttempts:      3,
		InitialDelay:     100 * time.Millisecond,
		MaxDelay:         2 * time.Second,
		FailureThreshold: 3,
		OpenTimeout:      30 * time.Second,
	}
}

// ResilientKV wraps a KV with retry and a circuit breaker
type ResilientKV struct {
	kv          KV
	name        string
	readBreaker circuitbreaker.CircuitBreaker[lookup]
	readRetry   retry.Retry[lookup]
	writeBreak  circuitbreaker.CircuitBreaker[struct{}]
	writeRetry  retry.Retry[struct{}]
}

var _ KV = (*ResilientKV)(nil)

// NewResilientKV wraps kv. name identifies the backend in log lines.
func NewResilientKV(kv KV, name string, cfg ResilientConfig) *ResilientKV {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	readyToTrip := func(counts circuitbreaker.Counts) bool {
		return int(counts.ConsecutiveFailures) >= cfg.FailureThreshold
	}
	onStateChange := func(from, to circuitbreaker.State) {
		logger.Warn("storage circuit breaker state change",
			"backend", name,
			"from", from.String(),
			"to", to.String())
	}
	retryable := func(err error) bool {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}

	return &ResilientKV{
		kv:   kv,
		name: name,
		readBreaker: circuitbreaker.New[lookup](circuitbreaker.Config{
			MaxRequests:   1,
			Interval:      time.Minute,
			Timeout:       cfg.OpenTimeout,
			ReadyToTrip:   readyToTrip,
			OnStateChange: onStateChange,
		}),
		readRetry: retry.New[lookup](retry.Config{
			MaxAttempts:   cfg.MaxAttempts,
			InitialDelay:  cfg.InitialDelay,
			MaxDelay:      cfg.MaxDelay,
			Multiplier:    2.0,
			BackoffPolicy: retry.BackoffExponential,
			Jitter:        true,
			IsRetryable:   retryable,
		}),
		writeBreak: circuitbreaker.New[struct{}](circuitbreaker.Config{
			MaxRequests:   1,
			Interval:      time.Minute,
			Timeout:       cfg.OpenTimeout,
			ReadyToTrip:   readyToTrip,
			OnStateChange: onStateChange,
		}),
		writeRetry: retry.New[struct{}](retry.Config{
			MaxAttempts:   cfg.MaxAttempts,
			InitialDelay:  cfg.InitialDelay,
			MaxDelay:      cfg.MaxDelay,
			Multiplier:    2.0,
			BackoffPolicy: retry.BackoffExponential,
			Jitter:        true,
			IsRetryable:   retryable,
		}),
	}
}

// Get reads through the breaker, retrying transient failures
func (r *ResilientKV) Get(ctx context.Context, key string) ([]byte, error) {
	res, err := r.readBreaker.Execute(ctx, func(ctx context.Context) (lookup, error) {
		return r.readRetry.Do(ctx, func(ctx context.Context) (lookup, error) {
			v, err := r.kv.Get(ctx, key)
			if errors.Is(err, ErrNotFound) {
				return lookup{}, nil
			}
			if err != nil {
				return lookup{}, err
			}
			return lookup{value: v, found: true}, nil
		})
	})
	if err != nil {
		return nil, err
	}
	if !res.found {
		return nil, ErrNotFound
	}
	return res.value, nil
}

// Put writes through the breaker, retrying transient failures
func (r *ResilientKV) Put(ctx context.Context, key string, value []byte) error {
	_, err := r.writeBreak.Execute(ctx, func(ctx context.Context) (struct{}, error) {
		return r.writeRetry.Do(ctx, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, r.kv.Put(ctx, key, value)
		})
	})
	return err
}

// Delete writes through the breaker. A missing key is not retried.
func (r *ResilientKV) Delete(ctx context.Context, key string) error {
	var notFound bool
	_, err := r.writeBreak.Execute(ctx, func(ctx context.Context) (struct{}, error) {
		return r.writeRetry.Do(ctx, func(ctx context.Context) (struct{}, error) {
			err := r.kv.Delete(ctx, key)
			if errors.Is(err, ErrNotFound) {
				notFound = true
				return struct{}{}, nil
			}
			return struct{}{}, err
		})
	})
	if err != nil {
		return err
	}
	if notFound {
		return ErrNotFound
	}
	return nil
}
