package httputil

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/obfx/themecheck/internal/logging"
)

var log = logging.L("httputil")

// RetryConfig controls the retry behavior for HTTP requests.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterFrac    float64 // ±fraction of delay to randomize (e.g. 0.3 = ±30%)
}

// DefaultRetryConfig returns the backoff shape used when retries are enabled.
// MaxRetries is 0: a theme check is a single request unless configured otherwise.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    0,
		InitialDelay:  1 * time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		JitterFrac:    0.3,
	}
}

// isRetryableStatus returns true for HTTP status codes that are safe to retry.
func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable ||
		code == http.StatusGatewayTimeout
}

func (cfg RetryConfig) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = cfg.InitialDelay
	exp.MaxInterval = cfg.MaxDelay
	exp.Multiplier = cfg.BackoffFactor
	exp.RandomizationFactor = cfg.JitterFrac
	exp.MaxElapsedTime = 0
	exp.Reset()

	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(retries)), ctx)
}

// Do executes an HTTP request with retry logic. The request body must be
// provided separately as a byte slice so it can be replayed on retries.
// Network errors and retryable statuses are retried up to cfg.MaxRetries
// times. When the last attempt still gets a retryable status, that response
// is returned so the caller can inspect its body.
func Do(ctx context.Context, client *http.Client, method, url string, body []byte, headers http.Header, cfg RetryConfig) (*http.Response, error) {
	var resp *http.Response
	attempt := 0

	operation := func() error {
		attempt++
		last := attempt > cfg.MaxRetries

		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return backoff.Permanent(err)
		}
		for k, vals := range headers {
			for _, v := range vals {
				req.Header.Add(k, v)
			}
		}

		r, err := client.Do(req)
		if err != nil {
			return err
		}

		if isRetryableStatus(r.StatusCode) && !last {
			r.Body.Close()
			return &RetryableStatusError{StatusCode: r.StatusCode, URL: url}
		}

		resp = r
		return nil
	}

	notify := func(err error, delay time.Duration) {
		log.Debug("retrying request",
			"attempt", attempt+1,
			"delay", delay,
			"url", url,
			"error", err,
		)
	}

	if err := backoff.RetryNotify(operation, cfg.backOff(ctx), notify); err != nil {
		if cfg.MaxRetries > 0 {
			log.Warn("all retries exhausted",
				"method", method,
				"url", url,
				"attempts", attempt,
				"error", err,
			)
		}
		return nil, err
	}
	return resp, nil
}

// RetryableStatusError indicates the server returned a retryable HTTP status.
type RetryableStatusError struct {
	StatusCode int
	URL        string
}

func (e *RetryableStatusError) Error() string {
	return "request to " + e.URL + " failed with status " + http.StatusText(e.StatusCode)
}
