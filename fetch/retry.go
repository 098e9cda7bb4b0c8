package fetch

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"
)

const (
	retryBase   = 1 * time.Second
	retryFactor = 2.0
	retryCap    = 30 * time.Second
	retryMax    = 3 // retries after the first attempt
)

// getWithRetry performs an HTTP GET with exponential backoff on transient
// failures (transport errors, 5xx responses), per §4.4 step 3. 4xx responses
// are returned as a terminal error without retry.
func getWithRetry(ctx context.Context, client *http.Client, rawURL string) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= retryMax; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoffDelay(attempt)):
			case <-ctx.Done():
				return nil, errCancelled(ctx)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %s", resp.Status)
			continue
		}
		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, fmt.Errorf("client error: %s", resp.Status)
		}
		return resp, nil
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", retryMax+1, lastErr)
}

// backoffDelay computes the wait before retry attempt n (n >= 1): base,
// base*factor, base*factor^2, ..., capped.
func backoffDelay(attempt int) time.Duration {
	d := float64(retryBase) * math.Pow(retryFactor, float64(attempt-1))
	if d > float64(retryCap) {
		d = float64(retryCap)
	}
	return time.Duration(d)
}

func errCancelled(ctx context.Context) error {
	return fmt.Errorf("cancelled: %w", ctx.Err())
}
