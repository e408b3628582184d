// Package oddsapi is the client for the odds-api.io value-bets feed.
package oddsapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/evbets/evboard/internal/domain"
)

const valueBetsPath = "/v3/value-bets"

// maxBodyBytes bounds a single feed response.
const maxBodyBytes = 32 << 20

// Response is one fetched and extracted feed batch.
type Response struct {
	Extraction
	Bookmaker string
	Body      []byte
	FetchedAt time.Time
}

// Client fetches value bets for one bookmaker at a time.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    domain.RateLimiter
	perMinute  int
	now        func() time.Time
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimiter caps outbound requests at perMinute across every process
// sharing the limiter.
func WithRateLimiter(rl domain.RateLimiter, perMinute int) Option {
	return func(c *Client) {
		c.limiter = rl
		c.perMinute = perMinute
	}
}

// NewClient creates a feed client.
//
// baseURL is the API root, e.g. "https://api.odds-api.io".
func NewClient(baseURL, apiKey string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// FetchValueBets requests the value bets for bookmaker with expanded event
// details. A body in an unknown envelope is returned with Shape
// ShapeUnrecognized and a nil error. Cancellation of ctx surfaces as an
// error wrapping context.Canceled.
func (c *Client) FetchValueBets(ctx context.Context, bookmaker string) (Response, error) {
	if c.limiter != nil && c.perMinute > 0 {
		ok, err := c.limiter.Allow(ctx, "feed:"+bookmaker, c.perMinute, time.Minute)
		if err != nil {
			return Response{}, fmt.Errorf("oddsapi: rate limiter: %w", err)
		}
		if !ok {
			return Response{}, fmt.Errorf("oddsapi: fetch %s: %w", bookmaker, domain.ErrRateLimited)
		}
	}

	params := url.Values{}
	params.Set("apiKey", c.apiKey)
	params.Set("bookmaker", bookmaker)
	params.Set("includeEventDetails", "true")

	body, err := c.doGet(ctx, valueBetsPath+"?"+params.Encode())
	if err != nil {
		return Response{}, fmt.Errorf("oddsapi: fetch %s: %w", bookmaker, err)
	}

	return Response{
		Extraction: Extract(body),
		Bookmaker:  bookmaker,
		Body:       body,
		FetchedAt:  c.now(),
	}, nil
}

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %s", c.redact(err.Error()))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.redactErr(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

// redactErr strips the API key from transport errors, which embed the
// request URL, while keeping the error chain intact.
func (c *Client) redactErr(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		ue.URL = c.redact(ue.URL)
		return fmt.Errorf("http request: %w", ue)
	}
	return fmt.Errorf("http request: %s", c.redact(err.Error()))
}

func (c *Client) redact(s string) string {
	if c.apiKey == "" {
		return s
	}
	s = strings.ReplaceAll(s, url.QueryEscape(c.apiKey), "***")
	return strings.ReplaceAll(s, c.apiKey, "***")
}

func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	if len(bodyStr) > 512 {
		bodyStr = bodyStr[:512]
	}
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
