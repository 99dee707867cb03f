// Package fetch implements the HTTP transport collaborator using gocolly.
// Every request is preceded by a fixed politeness delay and bounded by a
// request timeout. There is no retry: a failed fetch is recorded and left
// for the next invocation of the pass that needed it.
package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"github.com/klingogbang/archive/internal/metrics"
)

// Response is the result of one fetch.
type Response struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// ContentType returns the declared media type without parameters.
func (r Response) ContentType() string {
	ct := r.Headers.Get("Content-Type")
	if idx := strings.IndexByte(ct, ';'); idx >= 0 {
		ct = ct[:idx]
	}
	return strings.TrimSpace(ct)
}

// Text decodes the body as ISO-8859-1, the single-byte Western charset the
// source site serves. This preserves Icelandic diacritics that a UTF-8
// interpretation would mangle.
func (r Response) Text() string {
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(r.Body)
	if err != nil {
		return string(r.Body)
	}
	return string(decoded)
}

// Getter is the fetch interface the collection passes consume.
type Getter interface {
	Get(ctx context.Context, url string) (Response, error)
}

// AttemptRecorder receives the audit record of each fetch attempt.
type AttemptRecorder interface {
	LogScrape(ctx context.Context, url, status string, errorMessage *string, responseCode *int) error
}

// Config controls client behavior.
type Config struct {
	UserAgent string
	Delay     time.Duration
	Timeout   time.Duration
	// Transport overrides the HTTP transport (tests inject a mock here).
	Transport http.RoundTripper
}

// Client fetches single URLs through a Colly collector.
type Client struct {
	cfg       Config
	transport http.RoundTripper
	logger    *zap.Logger
	recorder  AttemptRecorder
}

// New builds a Client.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	transport := cfg.Transport
	if transport == nil {
		transport = newHTTPTransport()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, transport: transport, logger: logger}
}

// SetRecorder wires the scrape-attempt audit log. Optional; a nil recorder
// means attempts are not audited.
func (c *Client) SetRecorder(r AttemptRecorder) {
	c.recorder = r
}

// Get fetches one URL. Non-2xx statuses are errors. The politeness delay
// runs before the request and honors context cancellation.
func (c *Client) Get(ctx context.Context, url string) (Response, error) {
	if err := c.pause(ctx); err != nil {
		return Response{}, err
	}

	var (
		result   Response
		fetchErr error
	)
	collector := colly.NewCollector(colly.AllowURLRevisit())
	if c.cfg.UserAgent != "" {
		collector.UserAgent = c.cfg.UserAgent
	}
	collector.SetRequestTimeout(c.cfg.Timeout)
	collector.WithTransport(c.transport)

	collector.OnResponse(func(r *colly.Response) {
		result = Response{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			result.StatusCode = r.StatusCode
		}
		fetchErr = err
	})

	metrics.TotalRequests.Inc()
	if err := c.runCollector(ctx, collector, url, &fetchErr); err != nil {
		metrics.TotalRequestErrors.Inc()
		c.record(ctx, url, "failed", err, result.StatusCode)
		return Response{}, err
	}
	c.record(ctx, url, "success", nil, result.StatusCode)
	return result, nil
}

func (c *Client) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("fetch %s: %w", url, err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("fetch %s: %w", url, *fetchErr)
		}
		return nil
	}
}

// pause enforces the fixed inter-request spacing. This is politeness toward
// the source site, not a correctness mechanism.
func (c *Client) pause(ctx context.Context) error {
	if c.cfg.Delay <= 0 {
		return nil
	}
	timer := time.NewTimer(c.cfg.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func (c *Client) record(ctx context.Context, url, status string, fetchErr error, statusCode int) {
	if c.recorder == nil {
		return
	}
	var errMsg *string
	if fetchErr != nil {
		msg := fetchErr.Error()
		errMsg = &msg
	}
	var code *int
	if statusCode != 0 {
		code = &statusCode
	}
	if err := c.recorder.LogScrape(ctx, url, status, errMsg, code); err != nil {
		c.logger.Warn("Failed to record scrape attempt", zap.String("url", url), zap.Error(err))
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
	}
}
