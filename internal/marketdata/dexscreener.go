// Package marketdata queries the DexScreener token API.
package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"solana-pool-sniper/internal/observability"
	"solana-pool-sniper/internal/retry"
)

// DefaultBaseURL is the public DexScreener endpoint.
const DefaultBaseURL = "https://api.dexscreener.com/latest/dex"

// ErrDecode means the response body was not the expected JSON.
var ErrDecode = errors.New("decode market data response")

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("dexscreener: status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the request may succeed on retry.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Pair is the subset of a DexScreener pair the sniper reads.
type Pair struct {
	ChainID     string `json:"chainId"`
	DexID       string `json:"dexId"`
	PairAddress string `json:"pairAddress"`
	Liquidity   *struct {
		USD float64 `json:"usd"`
	} `json:"liquidity,omitempty"`
	PairCreatedAt int64 `json:"pairCreatedAt"`
}

type tokensResponse struct {
	SchemaVersion string `json:"schemaVersion"`
	Pairs         []Pair `json:"pairs"`
}

// Client is a rate-limited DexScreener client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	policy     retry.Policy
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithRateLimit caps request rate. rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetryPolicy sets the retry policy for transient failures.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client. The default limit is 5 requests per second.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(5), 5),
		policy:     retry.DefaultPolicy(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("component", "dexscreener"))
	c.policy.Classify = classify
	return c
}

// Pairs returns the trading pairs known for mint.
func (c *Client) Pairs(ctx context.Context, mint string) ([]Pair, error) {
	policy := c.policy
	policy.OnRetry = func(attempt int, wait time.Duration, err error) {
		observability.RecordRetry("dexscreener")
		c.logger.Debug("retry token lookup",
			zap.String("mint", mint),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	var pairs []Pair
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		var err error
		pairs, err = c.fetchPairs(ctx, mint)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pairs, nil
}

// IsNew reports whether mint has no trading pairs yet.
func (c *Client) IsNew(ctx context.Context, mint string) (bool, error) {
	pairs, err := c.Pairs(ctx, mint)
	if err != nil {
		return false, err
	}
	return len(pairs) == 0, nil
}

func (c *Client) fetchPairs(ctx context.Context, mint string) ([]Pair, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/tokens/%s", c.baseURL, url.PathEscape(mint))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dexscreener request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read dexscreener response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 256)}
	}

	var parsed tokensResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return parsed.Pairs, nil
}

func classify(err error) retry.Class {
	if errors.Is(err, ErrDecode) || retry.IsExhausted(err) {
		return retry.Fatal
	}
	var se *StatusError
	if errors.As(err, &se) && !se.Temporary() {
		return retry.Fatal
	}
	return retry.Retryable
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
