// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared across stages.
package httputil

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"
)

// RetryBaseDelay controls the base duration for exponential backoff.
// Tests override this to avoid real sleeps.
var RetryBaseDelay = time.Second

// RetryMaxDelay caps a single backoff wait.
var RetryMaxDelay = 32 * time.Second

const defaultMaxRetries = 4

// ErrAuth marks an HTTP 401 or 403 response. Credential problems do not
// heal on their own, so callers stop instead of retrying.
var ErrAuth = errors.New("authentication rejected")

// DoWithRetry executes an HTTP request and retries transient failures
// with exponential backoff: transport errors, HTTP 5xx, and HTTP 429.
// The delay starts at RetryBaseDelay (1 s) and doubles each attempt up
// to RetryMaxDelay (32 s): 1 s, 2 s, 4 s, 8 s, 16 s. A 429 carrying a
// numeric Retry-After header waits that long instead.
//
// When maxRetries is 0 the default (4, five attempts total) is used.
// HTTP 401 and 403 return ErrAuth immediately. If the context is
// cancelled during a backoff wait the function returns ctx.Err().
// After exhausting retries the last response is returned so the caller
// can inspect it, or the last transport error if there was no response.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	for attempt := 0; ; attempt++ {
		resp, err := client.Do(req.Clone(ctx))
		if err == nil {
			switch {
			case resp.StatusCode == http.StatusUnauthorized ||
				resp.StatusCode == http.StatusForbidden:
				drain(resp)
				return nil, &authError{status: resp.StatusCode}
			case resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
				return resp, nil
			}
		}

		// Out of attempts: surface the last outcome as-is.
		if attempt >= maxRetries {
			if err != nil {
				return nil, err
			}
			return resp, nil
		}

		backoff := backoffDelay(attempt)
		if err == nil {
			if resp.StatusCode == http.StatusTooManyRequests {
				if d, ok := retryAfter(resp); ok {
					backoff = d
				}
			}
			drain(resp)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// authError wraps ErrAuth with the concrete status code.
type authError struct {
	status int
}

func (e *authError) Error() string {
	return "http " + strconv.Itoa(e.status) + ": " + ErrAuth.Error()
}

func (e *authError) Unwrap() error { return ErrAuth }

// backoffDelay returns the capped exponential delay for an attempt.
func backoffDelay(attempt int) time.Duration {
	d := time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
	if d > RetryMaxDelay {
		d = RetryMaxDelay
	}
	return d
}

// retryAfter reads a numeric Retry-After header. The HTTP-date form is
// rare on the APIs we call and falls back to normal backoff.
func retryAfter(resp *http.Response) (time.Duration, bool) {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

// drain empties and closes a response body so the connection can be
// reused across retries.
func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
