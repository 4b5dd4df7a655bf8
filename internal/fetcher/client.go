// Package fetcher is the polite HTTP client every remote source goes
// through: one request at a time per client, a minimum gap between
// requests, bounded retries, and failures reported as values.
package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/benashkar/golf-tracker/internal/metrics"
	"github.com/benashkar/golf-tracker/internal/resilience"
)

// DefaultUserAgent identifies the scraper to remote sites.
const DefaultUserAgent = "GolfTracker/1.0 (Local News Research; github.com/golf-tracker)"

// Kind selects how a response body is decoded.
type Kind string

const (
	KindHTML Kind = "html"
	KindJSON Kind = "json"
	KindRaw  Kind = "raw"
)

// Request describes one logical fetch.
type Request struct {
	URL    string
	Kind   Kind
	Method string // defaults to GET
	Params url.Values
	Header http.Header
	Body   []byte
}

// Options configures a Client.
type Options struct {
	// Name labels log lines and metrics, usually the source name.
	Name      string
	UserAgent string
	// Timeout bounds each HTTP attempt. Default 30s.
	Timeout time.Duration
	// MinDelay is the minimum gap between consecutive attempts.
	MinDelay   time.Duration
	Retry      resilience.RetryPolicy
	Metrics    *metrics.Metrics
	HTTPClient *http.Client
}

// Client performs rate-limited, retrying fetches. A Client is meant to be
// used by one job at a time.
type Client struct {
	name    string
	ua      string
	http    *http.Client
	limiter *rate.Limiter
	policy  resilience.RetryPolicy
	metrics *metrics.Metrics
}

// New creates a Client.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Name == "" {
		opts.Name = "default"
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if opts.MinDelay > 0 {
		lim = rate.NewLimiter(rate.Every(opts.MinDelay), 1)
	}
	return &Client{
		name:    opts.Name,
		ua:      opts.UserAgent,
		http:    hc,
		limiter: lim,
		policy:  opts.Retry,
		metrics: opts.Metrics,
	}
}

// Name returns the client label.
func (c *Client) Name() string { return c.name }

// Fetch performs req and never returns a Go error: remote problems are
// described by Outcome.Failure.
func (c *Client) Fetch(ctx context.Context, req Request) *Outcome {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	target, err := buildURL(req.URL, req.Params)
	if err != nil {
		out := &Outcome{URL: req.URL}
		out.Failure = &Failure{Kind: FailureTransport, URL: req.URL, Err: err}
		c.record(out)
		return out
	}

	out := &Outcome{URL: target}
	retryable := c.policy.AllowsMethod(method)

	for retry := 0; ; retry++ {
		out.Attempts = retry + 1
		out.Retries = retry

		if err := c.limiter.Wait(ctx); err != nil {
			out.Failure = &Failure{Kind: FailureTransport, URL: target, Err: eris.Wrap(err, "fetcher: rate limiter wait")}
			break
		}

		resp, body, err := c.do(ctx, method, target, req)
		canRetry := retryable && retry < c.policy.MaxRetries && ctx.Err() == nil

		if err != nil {
			if canRetry && c.policy.RetryableError(err) {
				c.backoff(ctx, retry+1, target, err)
				continue
			}
			kind := FailureTransport
			if resilience.IsTimeout(err) {
				kind = FailureTimeout
			}
			out.Failure = &Failure{Kind: kind, URL: target, Err: err}
			break
		}

		out.Status = resp.StatusCode
		if c.policy.RetryableStatus(resp.StatusCode) && canRetry {
			c.backoff(ctx, retry+1, target, eris.Errorf("fetcher: status %d", resp.StatusCode))
			continue
		}
		if resp.StatusCode >= http.StatusBadRequest {
			out.Failure = &Failure{Kind: FailureHTTP, Status: resp.StatusCode, URL: target}
			break
		}

		out.Body = body
		c.decode(out, req.Kind)
		break
	}

	c.record(out)
	return out
}

func (c *Client) do(ctx context.Context, method, target string, req Request) (*http.Response, []byte, error) {
	var rdr io.Reader
	if req.Body != nil {
		rdr = bytes.NewReader(req.Body)
	}
	hreq, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return nil, nil, eris.Wrap(err, "fetcher: create request")
	}
	hreq.Header.Set("User-Agent", c.ua)
	switch req.Kind {
	case KindJSON:
		hreq.Header.Set("Accept", "application/json")
		if req.Body != nil {
			hreq.Header.Set("Content-Type", "application/json")
		}
	case KindHTML:
		hreq.Header.Set("Accept", "text/html,application/xhtml+xml")
	}
	for k, vs := range req.Header {
		hreq.Header.Del(k)
		for _, v := range vs {
			hreq.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(hreq)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	return resp, body, nil
}

func (c *Client) decode(out *Outcome, kind Kind) {
	switch kind {
	case KindJSON:
		var v any
		if err := json.Unmarshal(out.Body, &v); err != nil {
			out.Failure = &Failure{Kind: FailureInvalidJSON, Status: out.Status, URL: out.URL, Err: err}
			return
		}
		out.JSON = v
	case KindHTML:
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(out.Body))
		if err != nil {
			out.Failure = &Failure{Kind: FailureTransport, Status: out.Status, URL: out.URL, Err: eris.Wrap(err, "fetcher: parse html")}
			return
		}
		out.Doc = doc
	}
}

func (c *Client) backoff(ctx context.Context, retry int, target string, cause error) {
	zap.L().Warn("fetch failed, retrying",
		zap.String("client", c.name),
		zap.String("url", target),
		zap.Int("retry", retry),
		zap.Error(cause),
	)
	if c.policy.OnRetry != nil {
		c.policy.OnRetry(retry, cause)
	}
	_ = c.policy.Wait(ctx, retry)
}

func (c *Client) record(out *Outcome) {
	c.metrics.AddRetries(c.name, out.Retries)
	if out.Failure != nil {
		c.metrics.IncFetch(c.name, string(out.Failure.Kind))
		zap.L().Warn("fetch failed",
			zap.String("client", c.name),
			zap.String("url", out.URL),
			zap.Int("attempts", out.Attempts),
			zap.Error(out.Failure),
		)
		return
	}
	c.metrics.IncFetch(c.name, "ok")
	zap.L().Debug("fetched",
		zap.String("client", c.name),
		zap.String("url", out.URL),
		zap.Int("status", out.Status),
		zap.Int("attempts", out.Attempts),
	)
}

func buildURL(raw string, params url.Values) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", eris.Wrapf(err, "fetcher: parse url %q", raw)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", eris.Errorf("fetcher: url %q is not absolute", raw)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// FailureKind classifies a failed fetch.
type FailureKind string

const (
	FailureTimeout     FailureKind = "timeout"
	FailureHTTP        FailureKind = "http_error"
	FailureTransport   FailureKind = "transport_error"
	FailureInvalidJSON FailureKind = "invalid_json"
)

// Failure describes why a fetch produced no usable content.
type Failure struct {
	Kind   FailureKind
	Status int
	URL    string
	Err    error
}

func (f *Failure) Error() string {
	switch f.Kind {
	case FailureTimeout:
		return "Timeout: " + f.URL
	case FailureHTTP:
		return fmt.Sprintf("HTTP %d: %s", f.Status, f.URL)
	case FailureInvalidJSON:
		return "Invalid JSON: " + f.URL
	default:
		if f.Err != nil {
			return fmt.Sprintf("Request failed: %s: %v", f.URL, f.Err)
		}
		return "Request failed: " + f.URL
	}
}

func (f *Failure) Unwrap() error { return f.Err }

// Outcome is the result of Fetch.
type Outcome struct {
	URL    string
	Status int
	// Attempts counts HTTP attempts made; Retries is Attempts-1.
	Attempts int
	Retries  int
	Doc      *goquery.Document
	JSON     any
	Body     []byte
	Failure  *Failure
}

// OK reports whether the fetch produced content.
func (o *Outcome) OK() bool { return o != nil && o.Failure == nil }

// Err returns the failure as an error, or nil.
func (o *Outcome) Err() error {
	if o == nil {
		return eris.New("fetcher: nil outcome")
	}
	if o.Failure == nil {
		return nil
	}
	return o.Failure
}

// IsStatus reports whether err is an HTTP failure with the given status.
func IsStatus(err error, status int) bool {
	var f *Failure
	return errors.As(err, &f) && f.Kind == FailureHTTP && f.Status == status
}

// DecodeJSON decodes a successful outcome's body into T.
func DecodeJSON[T any](o *Outcome) (T, error) {
	var v T
	if err := o.Err(); err != nil {
		return v, err
	}
	if err := json.Unmarshal(o.Body, &v); err != nil {
		return v, &Failure{Kind: FailureInvalidJSON, Status: o.Status, URL: o.URL, Err: err}
	}
	return v, nil
}
