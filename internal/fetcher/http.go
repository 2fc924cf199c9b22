package fetcher

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/hitrate-cli/internal/resilience"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent string
	Timeout   time.Duration
	Retry     resilience.RetryConfig
}

// HTTPFetcher downloads files over HTTP(S), retrying 429 and 5xx responses.
type HTTPFetcher struct {
	opts   HTTPOptions
	client *http.Client
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = "hitrate/1.0"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 2 * time.Minute
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = resilience.DefaultRetryConfig()
	}
	if opts.Retry.OnRetry == nil {
		opts.Retry.OnRetry = resilience.LogRetry("http", "download")
	}
	return &HTTPFetcher{opts: opts, client: &http.Client{Timeout: opts.Timeout}}
}

// Download fetches the URL and returns the response body.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	return resilience.Do(ctx, f.opts.Retry, func(ctx context.Context) (io.ReadCloser, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "http: create request")
		}
		req.Header.Set("User-Agent", f.opts.UserAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "http: get")
		}
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			statusErr := eris.Errorf("http: unexpected status %d", resp.StatusCode)
			if resilience.IsTransientStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
			}
			return nil, statusErr
		}
		return resp.Body, nil
	})
}
