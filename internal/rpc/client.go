package rpc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/MSB0095/sol-beast-sub004/internal/logger"
)

// Client issues one logical JSON-RPC read against every configured endpoint
// concurrently and returns the first schema-valid success. It performs no
// retries of its own; callers that poll (the position monitor) retry on
// their own schedule.
type Client struct {
	endpoints  []string
	http       *http.Client
	limiters   map[string]*rate.Limiter
	timeout    time.Duration
	commitment string

	reqID atomic.Int64
}

type Options struct {
	// RequestTimeout bounds each endpoint attempt independently, so one
	// hung endpoint cannot stall the race past the others' responses.
	RequestTimeout time.Duration
	// RateLimit is requests/second per endpoint; zero disables limiting.
	RateLimit  float64
	Burst      int
	Commitment string
}

func New(endpoints []string, opts Options) (*Client, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("rpc client requires at least one endpoint")
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 8 * time.Second
	}
	if opts.Commitment == "" {
		opts.Commitment = "confirmed"
	}
	limiters := make(map[string]*rate.Limiter, len(endpoints))
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		for _, ep := range endpoints {
			limiters[ep] = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
		}
	}
	return &Client{
		endpoints:  endpoints,
		http:       &http.Client{Timeout: opts.RequestTimeout},
		limiters:   limiters,
		timeout:    opts.RequestTimeout,
		commitment: opts.Commitment,
	}, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type raceResult struct {
	endpoint string
	body     gjson.Result
	err      error
}

// Call races method across all endpoints and returns the winning response's
// `result` field. If every endpoint fails it returns *AggregateError; it
// never silently substitutes a default.
func (c *Client) Call(ctx context.Context, method string, params any) (gjson.Result, error) {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.reqID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return gjson.Result{}, fmt.Errorf("rpc marshal %s: %w", method, err)
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan raceResult, len(c.endpoints))
	for _, ep := range c.endpoints {
		go func(ep string) {
			res, err := c.post(raceCtx, ep, payload)
			results <- raceResult{endpoint: ep, body: res, err: err}
		}(ep)
	}

	agg := &AggregateError{Method: method}
	for range c.endpoints {
		select {
		case <-ctx.Done():
			return gjson.Result{}, ctx.Err()
		case r := <-results:
			if r.err == nil {
				// Winner: remaining in-flight requests are cancelled via
				// raceCtx and their results discarded.
				return r.body, nil
			}
			agg.Failures = append(agg.Failures, EndpointError{Endpoint: r.endpoint, Err: r.err})
		}
	}
	return gjson.Result{}, agg
}

func (c *Client) post(ctx context.Context, endpoint string, payload []byte) (gjson.Result, error) {
	if lim := c.limiters[endpoint]; lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return gjson.Result{}, err
		}
	}
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return gjson.Result{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, fmt.Errorf("status %d", resp.StatusCode)
	}
	parsed := gjson.ParseBytes(body)
	if rpcErr := parsed.Get("error"); rpcErr.Exists() {
		return gjson.Result{}, fmt.Errorf("rpc error %s: %s",
			rpcErr.Get("code").Raw, rpcErr.Get("message").String())
	}
	result := parsed.Get("result")
	if !result.Exists() {
		return gjson.Result{}, fmt.Errorf("response missing result field")
	}
	return result, nil
}

// GetTransaction fetches parsed transaction details for a signature.
func (c *Client) GetTransaction(ctx context.Context, signature string) (gjson.Result, error) {
	return c.Call(ctx, "getTransaction", []any{
		signature,
		map[string]any{
			"encoding":                       "jsonParsed",
			"commitment":                     c.commitment,
			"maxSupportedTransactionVersion": 0,
		},
	})
}

// GetAccountInfo fetches and base64-decodes an account's data blob.
func (c *Client) GetAccountInfo(ctx context.Context, address string) ([]byte, error) {
	result, err := c.Call(ctx, "getAccountInfo", []any{
		address,
		map[string]any{"encoding": "base64", "commitment": c.commitment},
	})
	if err != nil {
		return nil, err
	}
	value := result.Get("value")
	if !value.Exists() || value.Type == gjson.Null {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
	}
	encoded := value.Get("data.0").String()
	if encoded == "" {
		return nil, fmt.Errorf("account %s: empty data field", address)
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("account %s: base64 decode: %w", address, err)
	}
	logger.Debugf("[RPC] account %s: %d bytes", address, len(raw))
	return raw, nil
}
