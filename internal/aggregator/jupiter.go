// Package aggregator talks to the Jupiter swap API.
package aggregator

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/observability"
)

// DefaultBaseURL is the public Jupiter v6 endpoint.
const DefaultBaseURL = "https://quote-api.jup.ag/v6"

// ErrDecode means a response could not be interpreted. Never retried.
var ErrDecode = errors.New("decode aggregator response")

// StatusError is a non-2xx response. Always retryable.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("jupiter %s: status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// QuoteRequest asks for an exact-in route.
type QuoteRequest struct {
	InputMint   string
	OutputMint  string
	Amount      uint64
	SlippageBps int
}

// SwapRequest asks for a serialized swap transaction for a quote.
type SwapRequest struct {
	Quote                         *domain.Quote
	UserPublicKey                 string
	ComputeUnitPriceMicroLamports uint64 // 0 omits the priority fee
}

// Client is a Jupiter HTTP client. Each call makes exactly one request.
type Client struct {
	baseURL    string
	httpClient *http.Client
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

// NewClient creates a Jupiter client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type quoteResponse struct {
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	InAmount   string `json:"inAmount"`
	OutAmount  string `json:"outAmount"`
	Error      string `json:"error"`
}

// Quote fetches a route for req.
func (c *Client) Quote(ctx context.Context, req QuoteRequest) (*domain.Quote, error) {
	q := url.Values{}
	q.Set("inputMint", req.InputMint)
	q.Set("outputMint", req.OutputMint)
	q.Set("amount", strconv.FormatUint(req.Amount, 10))
	q.Set("slippageBps", strconv.Itoa(req.SlippageBps))

	body, err := c.do(ctx, http.MethodGet, "quote", c.baseURL+"/quote?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var parsed quoteResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: quote: %v", ErrDecode, err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("%w: quote: %s", ErrDecode, parsed.Error)
	}

	inAmount, err := strconv.ParseUint(parsed.InAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: quote inAmount %q", ErrDecode, parsed.InAmount)
	}
	outAmount, err := strconv.ParseUint(parsed.OutAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: quote outAmount %q", ErrDecode, parsed.OutAmount)
	}

	inputMint, outputMint := parsed.InputMint, parsed.OutputMint
	if inputMint == "" {
		inputMint = req.InputMint
	}
	if outputMint == "" {
		outputMint = req.OutputMint
	}

	return &domain.Quote{
		InputMint:   inputMint,
		OutputMint:  outputMint,
		InAmount:    inAmount,
		OutAmount:   outAmount,
		SlippageBps: req.SlippageBps,
		Raw:         json.RawMessage(body),
	}, nil
}

type swapPayload struct {
	QuoteResponse                 json.RawMessage `json:"quoteResponse"`
	UserPublicKey                 string          `json:"userPublicKey"`
	WrapAndUnwrapSol              bool            `json:"wrapAndUnwrapSol"`
	ComputeUnitPriceMicroLamports uint64          `json:"computeUnitPriceMicroLamports,omitempty"`
}

type swapResponse struct {
	SwapTransaction      string `json:"swapTransaction"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// SwapTransaction builds the unsigned, serialized swap transaction for req.Quote.
func (c *Client) SwapTransaction(ctx context.Context, req SwapRequest) ([]byte, error) {
	if req.Quote == nil || len(req.Quote.Raw) == 0 {
		return nil, fmt.Errorf("%w: swap: missing quote payload", ErrDecode)
	}

	payload, err := json.Marshal(swapPayload{
		QuoteResponse:                 req.Quote.Raw,
		UserPublicKey:                 req.UserPublicKey,
		WrapAndUnwrapSol:              true,
		ComputeUnitPriceMicroLamports: req.ComputeUnitPriceMicroLamports,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal swap request: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, "swap", c.baseURL+"/swap", payload)
	if err != nil {
		return nil, err
	}

	var parsed swapResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: swap: %v", ErrDecode, err)
	}
	if parsed.SwapTransaction == "" {
		return nil, fmt.Errorf("%w: swap: no swapTransaction in response", ErrDecode)
	}

	raw, err := base64.StdEncoding.DecodeString(parsed.SwapTransaction)
	if err != nil {
		return nil, fmt.Errorf("%w: swap transaction base64: %v", ErrDecode, err)
	}
	return raw, nil
}

func (c *Client) do(ctx context.Context, method, endpoint, target string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	observability.RecordRPCLatency("jupiter_"+endpoint, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("jupiter %s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read jupiter %s response: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(body)
		if len(msg) > 256 {
			msg = msg[:256]
		}
		return nil, &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: msg}
	}
	return body, nil
}
