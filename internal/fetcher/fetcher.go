// Package fetcher retrieves page HTML with timeout, bounded retry, and a
// politeness delay shared across all workers. Every failure is classified
// and soft: callers skip the target, the run continues.
package fetcher

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jonesrussell/countyscan/internal/config"
	"github.com/jonesrussell/countyscan/internal/logger"
	"github.com/jonesrussell/countyscan/internal/urlutil"
)

// Status code boundaries used when routing responses.
const (
	statusSuccessLow   = 200
	statusSuccessHigh  = 299
	statusTooManyReqs  = 429
	statusServerErrLow = 500
)

// acceptHeader mirrors what a browser sends; some county CMSes answer
// differently without it.
const acceptHeader = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

// Fetcher performs polite, retrying HTTP GETs.
type Fetcher struct {
	client       *http.Client
	gate         *Gate
	userAgent    string
	maxRetries   int
	retryDelay   time.Duration
	maxBodySize  int64
	log          logger.Interface
}

// New creates a Fetcher. The gate is injected rather than owned so
// discovery and extraction workers share one politeness clock.
func New(cfg config.FetchConfig, gate *Gate, log logger.Interface) *Fetcher {
	return &Fetcher{
		client:      &http.Client{Timeout: cfg.RequestTimeout},
		gate:        gate,
		userAgent:   cfg.UserAgent,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
		maxBodySize: cfg.MaxBodySize,
		log:         log,
	}
}

// Fetch retrieves the URL's HTML. Transient failures (connection errors,
// 429/5xx) are retried up to the configured count with linear backoff;
// timeouts and 4xx are not retried. The returned error is always a *Error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	host, err := urlutil.Host(rawURL)
	if err != nil {
		return nil, &Error{Kind: KindMalformed, URL: rawURL, Err: err}
	}

	var lastErr *Error

	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			if sleepErr := sleepCtx(ctx, time.Duration(attempt)*f.retryDelay); sleepErr != nil {
				return nil, &Error{Kind: KindConnection, URL: rawURL, Err: sleepErr}
			}
			f.log.Debug("retrying fetch", "url", rawURL, "attempt", attempt)
		}

		if gateErr := f.gate.Wait(ctx, host); gateErr != nil {
			return nil, &Error{Kind: KindConnection, URL: rawURL, Err: gateErr}
		}

		body, status, doErr := f.do(ctx, rawURL)
		if doErr != nil {
			if isTimeout(doErr) {
				return nil, &Error{Kind: KindTimeout, URL: rawURL, Err: doErr}
			}
			// Connection-level failure: retryable.
			lastErr = &Error{Kind: KindConnection, URL: rawURL, Err: doErr}
			continue
		}

		switch {
		case status >= statusSuccessLow && status <= statusSuccessHigh:
			if len(body) == 0 {
				return nil, &Error{Kind: KindMalformed, URL: rawURL, Err: errors.New("empty response body")}
			}
			return body, nil
		case status == statusTooManyReqs || status >= statusServerErrLow:
			lastErr = &Error{Kind: KindHTTPStatus, URL: rawURL, StatusCode: status}
			continue
		default:
			// 3xx past the client's redirect handling, or 4xx: not retried.
			return nil, &Error{Kind: KindHTTPStatus, URL: rawURL, StatusCode: status}
		}
	}

	return nil, lastErr
}

// do performs a single HTTP GET and reads a size-capped body.
func (f *Fetcher) do(ctx context.Context, rawURL string) (body []byte, status int, err error) {
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if reqErr != nil {
		return nil, 0, reqErr
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, doErr := f.client.Do(req)
	if doErr != nil {
		return nil, 0, doErr
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, f.maxBodySize)

	body, readErr := io.ReadAll(limited)
	if readErr != nil {
		return nil, resp.StatusCode, readErr
	}

	return body, resp.StatusCode, nil
}

// isTimeout reports whether the request failed by exceeding its deadline.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// http.Client wraps its own timeout in a url.Error with this text.
	return strings.Contains(err.Error(), "Client.Timeout exceeded")
}

// sleepCtx sleeps for d or returns early when ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
