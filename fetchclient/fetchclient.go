// Package fetchclient downloads the subtitle attachment named by a
// JobCommand at admission time (spec §4.7, "download the attached
// subtitle payload"). It reuses the teacher's retryablehttp+backoff
// client shape (clients/file_copy.go) rather than a bare http.Get.
package fetchclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-retryablehttp"
	pnerrors "github.com/relayforge/mediaforge/errors"
	"github.com/relayforge/mediaforge/metrics"
)

const maxFetchDuration = 2 * time.Minute

// Client downloads subtitle payloads over HTTP with bounded retries,
// reporting outcomes through clientMetrics.
type Client struct {
	metrics    metrics.ClientMetrics
	httpClient *http.Client
}

func New(clientMetrics metrics.ClientMetrics) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 5
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.CheckRetry = metrics.HttpRetryHook
	rc.HTTPClient.Timeout = maxFetchDuration
	return &Client{metrics: clientMetrics, httpClient: rc.StandardClient()}
}

// FetchSubtitle retrieves the full subtitle payload at url. Retries are
// bounded by backoff.Retry wrapping the retryablehttp client's own
// exponential policy, matching CopyFileWithDecryption's shape.
func (c *Client) FetchSubtitle(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	op := func() error {
		ctx, cancel := context.WithTimeout(ctx, maxFetchDuration)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(pnerrors.Unretriable(fmt.Errorf("fetchclient: building request: %w", err)))
		}

		res, err := metrics.MonitorRequest(c.metrics, c.httpClient, req)
		if err != nil {
			return fmt.Errorf("fetchclient: requesting %s: %w", url, err)
		}
		defer res.Body.Close()

		if res.StatusCode >= 300 {
			err := fmt.Errorf("fetchclient: bad status from %s: %d", url, res.StatusCode)
			if res.StatusCode < 500 {
				return backoff.Permanent(pnerrors.Unretriable(err))
			}
			return err
		}

		body, err = io.ReadAll(res.Body)
		return err
	}

	boff := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
	if err := backoff.Retry(op, boff); err != nil {
		return nil, err
	}
	return body, nil
}
