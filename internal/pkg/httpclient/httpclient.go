// Package httpclient provides the resilient HTTP transport used for all
// outbound calls to the circulation system and the book-info service.
//
// Each attempt runs under its own deadline. Transport-level errors and
// HTTP 5xx responses are retried with exponential backoff; 4xx responses
// are returned as-is so callers can classify them. A circuit breaker sits
// in front of the retry loop so a dead upstream stops consuming the full
// retry budget on every call.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"libtrack/internal/core/domain"
)

// Options controls retry behavior for a single logical call
type Options struct {
	Timeout     time.Duration // per-attempt deadline
	MaxRetries  int           // retries after the first attempt
	BackoffBase time.Duration // backoff = BackoffBase * 2^attempt
}

// DefaultOptions matches the loan-client call profile (a few seconds per
// attempt, small retry budget).
func DefaultOptions() Options {
	return Options{
		Timeout:     5 * time.Second,
		MaxRetries:  2,
		BackoffBase: 300 * time.Millisecond,
	}
}

// Client executes HTTP requests with retry, backoff and a circuit breaker
type Client struct {
	http *http.Client
	cb   *gobreaker.CircuitBreaker[*http.Response]
}

// New creates a resilient client. The breaker opens after a sustained
// failure rate so a dead upstream fails fast instead of burning retries.
func New(name string) *Client {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("⚡ Circuit breaker [%s]: %s -> %s", name, from.String(), to.String())
		},
	})

	return &Client{
		// Attempt deadlines come from Options; no client-wide timeout here
		http: &http.Client{},
		cb:   cb,
	}
}

// Do executes the request with per-attempt deadlines and bounded retries.
// The response body is the caller's to close. Requests with a body must
// set GetBody (http.NewRequest does this for common reader types).
func (c *Client) Do(ctx context.Context, req *http.Request, opts Options) (*http.Response, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = DefaultOptions().BackoffBase
	}

	var lastErr error

	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := opts.BackoffBase * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := c.attempt(ctx, req, opts.Timeout)
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				// An open breaker means the upstream is effectively down,
				// so it surfaces the same way an exhausted 5xx would
				return nil, &domain.UpstreamError{
					StatusCode: http.StatusServiceUnavailable,
					Body:       "circuit breaker open",
				}
			}
			if ctx.Err() != nil {
				// Parent context gone; retrying is pointless
				return nil, err
			}
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 && attempt < opts.MaxRetries {
			// Drain so the connection can be reused, then retry
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			lastErr = fmt.Errorf("upstream returned %d", resp.StatusCode)
			continue
		}

		// 2xx, 4xx, or final 5xx: the caller classifies
		return resp, nil
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", opts.MaxRetries+1, lastErr)
}

// attempt runs one request under its own deadline, through the breaker
func (c *Client) attempt(ctx context.Context, req *http.Request, timeout time.Duration) (*http.Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)

	r := req.Clone(attemptCtx)
	if req.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			cancel()
			return nil, fmt.Errorf("rewind request body: %w", err)
		}
		r.Body = body
	}

	resp, err := c.cb.Execute(func() (*http.Response, error) {
		resp, err := c.http.Do(r)
		if err != nil {
			return nil, err
		}
		// 5xx counts against the breaker even though we hand it back
		if resp.StatusCode >= 500 {
			return resp, fmt.Errorf("upstream returned %d", resp.StatusCode)
		}
		return resp, nil
	})
	if err != nil {
		if resp == nil {
			cancel()
			return nil, err
		}
		// Breaker counted the 5xx as a failure; the retry loop decides
	}

	// The caller closes the body; tie the attempt context to it so the
	// deadline is released when the body is closed.
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	b.cancel()
	return b.ReadCloser.Close()
}
