package shopify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"metal-pricer/internal/adapters/shopify/dto"
)

const (
	throttledCode = "THROTTLED"

	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = time.Second
)

// RetryPolicy retries throttled calls with a linearly growing delay:
// BaseDelay * attempt after the n-th failed attempt.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Sleep       func(ctx context.Context, delay time.Duration) error
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: defaultRetryAttempts,
		BaseDelay:   defaultRetryBaseDelay,
		Sleep:       sleepWithContext,
	}
}

// Do calls fn until it succeeds, fails with a non-throttled error or the
// attempt budget is spent. onRetry runs before every sleep.
func (p RetryPolicy) Do(ctx context.Context, fn func(attempt int) error, onRetry func(attempt int, delay time.Duration, err error)) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepWithContext
	}

	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		if err == nil {
			return attempt, nil
		}
		if !isThrottled(err) {
			return attempt, err
		}
		if attempt >= maxAttempts {
			return attempt, fmt.Errorf("retries exhausted after %d attempts: %w", attempt, err)
		}
		delay := p.BaseDelay * time.Duration(attempt)
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
		if err := sleep(ctx, delay); err != nil {
			return attempt, err
		}
	}
}

type throttledError struct {
	cause error
}

func (e *throttledError) Error() string {
	return fmt.Sprintf("shopify throttled: %v", e.cause)
}

func (e *throttledError) Unwrap() error {
	return e.cause
}

func isThrottled(err error) bool {
	var throttled *throttledError
	return errors.As(err, &throttled)
}

type httpStatusError struct {
	statusCode int
	status     string
	body       string
}

func (e *httpStatusError) Error() string {
	if strings.TrimSpace(e.body) == "" {
		return fmt.Sprintf("shopify request failed: %s", e.status)
	}
	return fmt.Sprintf("shopify request failed: %s: %s", e.status, e.body)
}

func newHTTPStatusError(statusCode int, status string, body []byte) error {
	return &httpStatusError{
		statusCode: statusCode,
		status:     status,
		body:       strings.TrimSpace(string(body)),
	}
}

func isRateLimitedHTTPError(err error) bool {
	var httpErr *httpStatusError
	if errors.As(err, &httpErr) {
		return httpErr.statusCode == http.StatusTooManyRequests
	}
	return false
}

func isThrottleGraphQLError(errs []dto.GraphQLError) bool {
	for _, e := range errs {
		if strings.Contains(strings.ToLower(e.Message), "throttled") {
			return true
		}
		if code, ok := e.Extensions["code"].(string); ok && strings.EqualFold(code, throttledCode) {
			return true
		}
	}
	return false
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
