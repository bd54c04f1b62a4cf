package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/IshaanNene/newsgoat/internal/config"
	"github.com/IshaanNene/newsgoat/internal/types"
)

// BackoffFunc returns the delay before retry number attempt (1-based).
type BackoffFunc func(attempt int) time.Duration

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// JitterBackoff returns uniform(lo, hi) scaled by the attempt number.
func JitterBackoff(lo, hi time.Duration, rng *rand.Rand) BackoffFunc {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	var mu sync.Mutex
	return func(attempt int) time.Duration {
		mu.Lock()
		f := rng.Float64()
		mu.Unlock()
		base := lo + time.Duration(f*float64(hi-lo))
		return base * time.Duration(attempt)
	}
}

// ExponentialBackoff returns base * 2^(attempt-1), capped at ceiling.
func ExponentialBackoff(base, ceiling time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		d := base
		for i := 1; i < attempt; i++ {
			d *= 2
			if d >= ceiling {
				return ceiling
			}
		}
		return min(d, ceiling)
	}
}

// SleepContext is the default SleepFunc.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retrier wraps a Fetcher with bounded retries. Each attempt gets its own
// timeout; delays between attempts never decrease.
type Retrier struct {
	next      Fetcher
	attempts  int
	timeout   time.Duration
	backoff   BackoffFunc
	sleep     SleepFunc
	onAttempt func(req *types.Request, attempt int, err error)
	logger    *slog.Logger
}

// RetryOption configures a Retrier.
type RetryOption func(*Retrier)

// WithAttempts sets the maximum number of attempts.
func WithAttempts(n int) RetryOption {
	return func(r *Retrier) {
		if n > 0 {
			r.attempts = n
		}
	}
}

// WithTimeout bounds every individual attempt.
func WithTimeout(d time.Duration) RetryOption {
	return func(r *Retrier) { r.timeout = d }
}

// WithBackoff sets the delay schedule.
func WithBackoff(b BackoffFunc) RetryOption {
	return func(r *Retrier) { r.backoff = b }
}

// WithSleep replaces the wait between attempts, mostly for tests.
func WithSleep(s SleepFunc) RetryOption {
	return func(r *Retrier) { r.sleep = s }
}

// WithAttemptHook is called after every attempt with its outcome.
func WithAttemptHook(fn func(req *types.Request, attempt int, err error)) RetryOption {
	return func(r *Retrier) { r.onAttempt = fn }
}

// NewRetrier wraps next. Defaults: 3 attempts, jitter backoff in
// [0.5s, 2s] scaled by attempt.
func NewRetrier(next Fetcher, logger *slog.Logger, opts ...RetryOption) *Retrier {
	r := &Retrier{
		next:     next,
		attempts: 3,
		backoff:  JitterBackoff(500*time.Millisecond, 2*time.Second, nil),
		sleep:    SleepContext,
		logger:   logger.With("component", "retrier", "fetcher", next.Type()),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RetryOptionsFromConfig maps the engine settings onto retry options.
func RetryOptionsFromConfig(cfg config.EngineConfig) []RetryOption {
	backoff := JitterBackoff(cfg.BackoffMin, cfg.BackoffMax, nil)
	if cfg.BackoffStrategy == "exponential" {
		backoff = ExponentialBackoff(cfg.BackoffMin, cfg.BackoffMax)
	}
	return []RetryOption{
		WithAttempts(cfg.MaxAttempts),
		WithTimeout(cfg.RequestTimeout),
		WithBackoff(backoff),
	}
}

// Fetch tries the wrapped fetcher until it succeeds, fails with a
// non-retryable error, or runs out of attempts. Exhaustion yields a
// NetworkError with Retryable=false.
func (r *Retrier) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	var (
		lastErr error
		prev    time.Duration
	)

	for attempt := 1; attempt <= r.attempts; attempt++ {
		if attempt > 1 {
			delay := max(r.backoff(attempt-1), prev)
			var ne *types.NetworkError
			if errors.As(lastErr, &ne) && ne.RetryAfter > delay {
				delay = ne.RetryAfter
			}
			prev = delay

			r.logger.Debug("retrying", "url", req.URLString(), "attempt", attempt, "delay", delay)
			if err := r.sleep(ctx, delay); err != nil {
				return nil, exhausted(req, attempt-1, err)
			}
		}

		resp, timedOut, err := r.try(ctx, req)
		if r.onAttempt != nil {
			r.onAttempt(req, attempt, err)
		}
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, exhausted(req, attempt, ctx.Err())
		}
		if !timedOut && !retryable(err) {
			return nil, exhausted(req, attempt, err)
		}
		r.logger.Warn("fetch attempt failed", "url", req.URLString(), "attempt", attempt, "error", err)
	}

	return nil, exhausted(req, r.attempts, lastErr)
}

// try runs one attempt. timedOut is set when the attempt's own deadline
// expired while ctx is still live; that is always worth another attempt,
// whatever the wrapped fetcher concluded from its expired context.
func (r *Retrier) try(ctx context.Context, req *types.Request) (resp *types.Response, timedOut bool, err error) {
	timeout := r.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	if timeout <= 0 {
		resp, err = r.next.Fetch(ctx, req)
		return resp, false, err
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	resp, err = r.next.Fetch(attemptCtx, req)
	timedOut = err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded)
	return resp, timedOut, err
}

// Close closes the wrapped fetcher.
func (r *Retrier) Close() error { return r.next.Close() }

// Type reports the wrapped fetcher's type.
func (r *Retrier) Type() string { return r.next.Type() }

func retryable(err error) bool {
	var ne *types.NetworkError
	if errors.As(err, &ne) {
		return ne.Retryable
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// exhausted flattens the final error into a terminal NetworkError.
func exhausted(req *types.Request, attempts int, err error) *types.NetworkError {
	out := &types.NetworkError{URL: req.URLString(), Attempts: attempts, Err: err}
	var ne *types.NetworkError
	if errors.As(err, &ne) {
		out.StatusCode = ne.StatusCode
		out.Err = ne.Err
	}
	return out
}
