package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/amazonlight/internal/metrics"
)

// Throttle is satisfied by ratelimit.AdaptiveRateLimiter.
type Throttle interface {
	Wait(ctx context.Context) error
	RecordSuccess()
	RecordError()
}

// SleepFunc pauses between attempts.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retrier runs the bounded attempt loop shared by every fetcher variant.
type retrier struct {
	source      string
	maxAttempts int
	backoffUnit time.Duration
	detector    *Detector
	throttle    Throttle
	sleep       SleepFunc
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

func newRetrier(source string, opts Options) *retrier {
	r := &retrier{
		source:      source,
		maxAttempts: opts.MaxAttempts,
		backoffUnit: opts.BackoffUnit,
		detector:    NewDetector(opts.AntiBotIndicators),
		throttle:    opts.Throttle,
		sleep:       opts.Sleep,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
	}
	if r.maxAttempts < 1 {
		r.maxAttempts = 1
	}
	if r.sleep == nil {
		r.sleep = sleepContext
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// backoff is linear: the pause before attempt n+1 is n units.
func (r *retrier) backoff(attempt int) time.Duration {
	return time.Duration(attempt) * r.backoffUnit
}

// run issues get up to maxAttempts times. It stops at the first success and
// never makes more than maxAttempts requests.
func (r *retrier) run(ctx context.Context, get func(ctx context.Context) (*Response, error)) Outcome {
	var last Outcome

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := r.backoff(attempt - 1)
			r.metrics.IncRetry(r.source)
			r.logger.Info("retrying fetch", "attempt", attempt, "delay", delay, "reason", last.Reason)

			if err := r.sleep(ctx, delay); err != nil {
				return r.finish(Transient(r.source, ReasonCanceled, err), attempt-1)
			}
		}

		if r.throttle != nil {
			if err := r.throttle.Wait(ctx); err != nil {
				return r.finish(Transient(r.source, ReasonCanceled, err), attempt-1)
			}
		}

		last = r.attempt(ctx, get, attempt)
		if last.OK() {
			if r.throttle != nil {
				r.throttle.RecordSuccess()
			}
			return r.finish(last, attempt)
		}

		if last.Reason == ReasonAntiBot && r.throttle != nil {
			r.throttle.RecordError()
		}
		r.logger.Warn("fetch attempt failed",
			"attempt", attempt,
			"max_attempts", r.maxAttempts,
			"reason", last.Reason,
			"status_code", last.StatusCode,
			"error", last.cause,
		)
	}

	terminal := Terminal(r.source, last.Reason, r.maxAttempts, last.cause)
	terminal.StatusCode = last.StatusCode
	return r.finish(terminal, r.maxAttempts)
}

func (r *retrier) attempt(ctx context.Context, get func(ctx context.Context) (*Response, error), attempt int) Outcome {
	r.metrics.IncAttempt(r.source)
	start := time.Now()
	resp, err := get(ctx)
	r.metrics.ObserveDuration(r.source, time.Since(start))

	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	}

	var o Outcome
	switch {
	case resp == nil || resp.Body == "":
		if err == nil {
			err = fmt.Errorf("empty response body (status %d)", statusCode)
		}
		o = Transient(r.source, ReasonFetchFailed, err)
	default:
		if indicator, blocked := r.detector.Detect(resp.Body); blocked {
			o = Transient(r.source, ReasonAntiBot, fmt.Errorf("%w: page contains %q", ErrAntiBot, indicator))
		} else if resp.StatusCode >= 400 {
			o = Transient(r.source, ReasonFetchFailed, fmt.Errorf("unexpected status code: %d", resp.StatusCode))
		} else {
			o = Success(r.source, resp.Body, attempt)
		}
	}

	o.StatusCode = statusCode
	return o
}

func (r *retrier) finish(o Outcome, attempts int) Outcome {
	o.Attempts = attempts
	r.metrics.IncOutcome(r.source, o.Status.String(), o.Reason)
	return o
}
