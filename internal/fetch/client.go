// Package fetch reads burst samples from remote SAFE containers with ranged
// HTTPS requests, authenticating against Earthdata Login where the data pool
// redirects to it.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/robert-malhotra/s1bursts/internal/burst"
)

// DefaultEDLHost is the Earthdata Login host the data pool redirects to.
const DefaultEDLHost = "urs.earthdata.nasa.gov"

// Observer receives request outcomes. internal/metrics implements it.
type Observer interface {
	ObserveRequest(outcome string, bytes int64, elapsed time.Duration)
	ObserveRetry()
}

// Client issues ranged GET requests.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	retry      RetryPolicy
	observer   Observer
	netrc      *Netrc
	edlHost    string
	userAgent  string
}

// NewClient creates a new fetch client. timeout bounds each request.
func NewClient(timeout time.Duration) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{
		logger:    slog.Default(),
		retry:     DefaultRetryPolicy,
		edlHost:   DefaultEDLHost,
		userAgent: "s1bursts/1.0",
	}
	c.httpClient = &http.Client{
		Timeout: timeout,
		Jar:     jar,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
		CheckRedirect: c.checkRedirect,
	}
	return c
}

// WithLogger sets a custom logger for the client
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	c.logger = logger
	return c
}

// WithRetry sets the retry policy for transient failures.
func (c *Client) WithRetry(policy RetryPolicy) *Client {
	c.retry = policy
	return c
}

// WithObserver reports every request outcome to o.
func (c *Client) WithObserver(o Observer) *Client {
	c.observer = o
	return c
}

// WithCredentials authenticates requests to edlHost with credentials from
// netrc. An empty edlHost keeps DefaultEDLHost.
func (c *Client) WithCredentials(netrc *Netrc, edlHost string) *Client {
	c.netrc = netrc
	if edlHost != "" {
		c.edlHost = edlHost
	}
	return c
}

// WithTransport replaces the HTTP transport.
func (c *Client) WithTransport(rt http.RoundTripper) *Client {
	c.httpClient.Transport = rt
	return c
}

// checkRedirect adds basic auth when the data pool hands the request to the
// login host.
func (c *Client) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return fmt.Errorf("stopped after %d redirects", len(via))
	}
	c.authorize(req)
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if req.URL.Hostname() != c.edlHost {
		return
	}
	if cred, ok := c.netrc.Lookup(c.edlHost); ok {
		req.SetBasicAuth(cred.Login, cred.Password)
	}
}

// FetchRange fetches the container bytes of a resolved range with a single
// ranged request spanning all segments, and returns the segments
// concatenated.
func (c *Client) FetchRange(ctx context.Context, url string, r burst.ByteRange) ([]byte, error) {
	if r.Span() <= 0 {
		return nil, fmt.Errorf("fetch %s: empty byte range", url)
	}

	body, _, err := c.Get(ctx, url, r.Offset, r.End()-1)
	if err != nil {
		return nil, err
	}
	return Extract(body, r.Offset, r)
}

// Size returns the length of a remote file, learned from the Content-Range of
// a one byte request.
func (c *Client) Size(ctx context.Context, url string) (int64, error) {
	_, total, err := c.Get(ctx, url, 0, 0)
	if err != nil {
		return 0, err
	}
	if total < 0 {
		return 0, fmt.Errorf("%w: %s did not report its size", ErrRemoteRange, url)
	}
	return total, nil
}

// Get fetches bytes [start, end] of url, retrying transient failures. It
// returns the body and the total size from Content-Range, or -1 when the
// server reported none.
func (c *Client) Get(ctx context.Context, url string, start, end int64) ([]byte, int64, error) {
	var (
		body     []byte
		total    int64
		attempts int
	)
	op := func() error {
		attempts++
		began := time.Now()
		var err error
		body, total, err = c.get(ctx, url, start, end)
		c.observe(err, int64(len(body)), time.Since(began))
		switch {
		case err == nil:
			return nil
		case ctx.Err() != nil:
			return backoff.Permanent(ctx.Err())
		case !Transient(err):
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, delay time.Duration) {
		c.logger.WarnContext(ctx, "retrying ranged request",
			slog.String("url", url),
			slog.Int("attempt", attempts),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)
		if c.observer != nil {
			c.observer.ObserveRetry()
		}
	}

	err := backoff.RetryNotify(op, backoff.WithContext(c.retry.NewBackOff(), ctx), notify)
	switch {
	case err == nil:
		return body, total, nil
	case ctx.Err() != nil:
		return nil, 0, ctx.Err()
	case Transient(err):
		return nil, 0, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, err)
	}
	return nil, 0, err
}

// get performs one ranged request.
func (c *Client) get(ctx context.Context, url string, start, end int64) ([]byte, int64, error) {
	// Create the HTTP request
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))
	req.Header.Set("User-Agent", c.userAgent)
	c.authorize(req)

	c.logger.DebugContext(ctx, "executing ranged request",
		slog.String("url", url),
		slog.Int64("start", start),
		slog.Int64("end", end),
	)

	// Execute the request
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("ranged request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusPartialContent:
	case resp.StatusCode == http.StatusOK:
		return nil, 0, fmt.Errorf("%w: %s answered bytes=%d-%d with 200", ErrRemoteRange, url, start, end)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, 0, fmt.Errorf("%w: %s returned %d", ErrAuthentication, url, resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, 0, &StatusError{URL: url, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	first, last, total, err := parseContentRange(resp.Header.Get("Content-Range"))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s: %v", ErrRemoteRange, url, err)
	}
	if first != start || (last != end && !(total >= 0 && last == total-1 && last < end)) {
		return nil, 0, fmt.Errorf("%w: asked for bytes %d-%d of %s, got %d-%d", ErrRemoteRange, start, end, url, first, last)
	}

	want := last - first + 1
	body := make([]byte, want)
	if _, err := io.ReadFull(resp.Body, body); err != nil {
		return nil, 0, fmt.Errorf("failed to read range body: %w", err)
	}
	return body, total, nil
}

func (c *Client) observe(err error, n int64, elapsed time.Duration) {
	if c.observer == nil {
		return
	}
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrAuthentication):
		outcome = "auth"
	case errors.Is(err, ErrRemoteRange):
		outcome = "range"
	case Transient(err):
		outcome = "transient"
	default:
		outcome = "error"
	}
	c.observer.ObserveRequest(outcome, n, elapsed)
}

// parseContentRange parses "bytes first-last/total". total is -1 for "*".
func parseContentRange(v string) (first, last, total int64, err error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(v), "bytes ")
	if !ok {
		return 0, 0, 0, fmt.Errorf("missing or malformed Content-Range %q", v)
	}
	span, size, ok := strings.Cut(rest, "/")
	if !ok {
		return 0, 0, 0, fmt.Errorf("malformed Content-Range %q", v)
	}
	a, b, ok := strings.Cut(span, "-")
	if !ok {
		return 0, 0, 0, fmt.Errorf("malformed Content-Range %q", v)
	}
	if first, err = strconv.ParseInt(a, 10, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("malformed Content-Range %q: %w", v, err)
	}
	if last, err = strconv.ParseInt(b, 10, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("malformed Content-Range %q: %w", v, err)
	}
	total = -1
	if size != "*" {
		if total, err = strconv.ParseInt(size, 10, 64); err != nil {
			return 0, 0, 0, fmt.Errorf("malformed Content-Range %q: %w", v, err)
		}
	}
	return first, last, total, nil
}

// Extract cuts the segments of r out of span, whose first byte sits at
// container offset base, and concatenates them.
func Extract(span []byte, base int64, r burst.ByteRange) ([]byte, error) {
	segments := r.Segments
	if len(segments) == 0 {
		segments = []burst.Segment{{Offset: r.Offset, Length: r.Length}}
	}

	out := make([]byte, 0, r.Length)
	for _, s := range segments {
		lo, hi := s.Offset-base, s.End()-base
		if lo < 0 || hi > int64(len(span)) {
			return nil, fmt.Errorf("segment %d+%d outside fetched bytes %d+%d", s.Offset, s.Length, base, len(span))
		}
		out = append(out, span[lo:hi]...)
	}
	return out, nil
}
