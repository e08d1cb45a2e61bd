package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/newplayman/kraken-conformance/internal/metrics"
)

// KrakenRESTClient issues public and private REST calls. HTTPClient is
// injectable so tests can point it at httptest.
type KrakenRESTClient struct {
	BaseURL    string
	APIKey     string
	APISecret  string
	OTPSecret  string
	HTTPClient *http.Client
	Limiter    RateLimiter
	MaxRetries int
	RetryDelay time.Duration
}

// ServerTime holds the decoded /public/Time result.
type ServerTime struct {
	UnixTime int64  `json:"unixtime"`
	RFC1123  string `json:"rfc1123"`
}

// AssetPair holds the fields of one pair entry the harness cares about.
type AssetPair struct {
	Altname       string `json:"altname"`
	Base          string `json:"base"`
	Quote         string `json:"quote"`
	PairDecimals  int    `json:"pair_decimals"`
	LotDecimals   int    `json:"lot_decimals"`
	LotMultiplier int    `json:"lot_multiplier"`
}

// OpenOrder describes one entry of the private open-orders result.
type OpenOrder struct {
	Status string `json:"status"`
	Vol    string `json:"vol"`
	Descr  struct {
		Pair      string `json:"pair"`
		Type      string `json:"type"`
		OrderType string `json:"ordertype"`
		Price     string `json:"price"`
	} `json:"descr"`
}

// envelope is the fixed response wrapper: errors first, result second.
type envelope struct {
	Error  []string        `json:"error"`
	Result json.RawMessage `json:"result"`
}

// GetPublic fetches one public endpoint and returns the raw body. Format
// judgment stays with the caller; only transport and status failures are
// errors here.
func (c *KrakenRESTClient) GetPublic(ctx context.Context, endpoint string) ([]byte, error) {
	if c == nil || c.HTTPClient == nil {
		return nil, fmt.Errorf("http client not set")
	}
	resp, err := c.sendWithRetry(ctx, http.MethodGet, endpoint, nil, nil)
	if err != nil {
		return nil, err
	}
	body, _ := io.ReadAll(resp.Body)
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("get %s status %d: %s", endpoint, resp.StatusCode, bytes.TrimSpace(body))
	}
	return body, nil
}

// ParseServerTime decodes a server-time response body.
func ParseServerTime(body []byte) (ServerTime, error) {
	var st ServerTime
	result, err := decodeEnvelope(body)
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(result, &st); err != nil {
		return st, fmt.Errorf("decode server time: %w", err)
	}
	return st, nil
}

// ParseAssetPairs decodes an asset-pair response body into a pair map.
func ParseAssetPairs(body []byte) (map[string]AssetPair, error) {
	result, err := decodeEnvelope(body)
	if err != nil {
		return nil, err
	}
	pairs := make(map[string]AssetPair)
	if err := json.Unmarshal(result, &pairs); err != nil {
		return nil, fmt.Errorf("decode asset pairs: %w", err)
	}
	return pairs, nil
}

// GetServerTime calls the public server-time endpoint. It returns the raw
// body for schema validation alongside the decoded result.
func (c *KrakenRESTClient) GetServerTime(ctx context.Context, endpoint string) (ServerTime, []byte, error) {
	body, err := c.GetPublic(ctx, endpoint)
	if err != nil {
		return ServerTime{}, nil, err
	}
	st, err := ParseServerTime(body)
	return st, body, err
}

// GetAssetPairs calls the public asset-pair endpoint. It returns the raw
// body for schema validation alongside the decoded pair map.
func (c *KrakenRESTClient) GetAssetPairs(ctx context.Context, endpoint string) (map[string]AssetPair, []byte, error) {
	body, err := c.GetPublic(ctx, endpoint)
	if err != nil {
		return nil, nil, err
	}
	pairs, err := ParseAssetPairs(body)
	return pairs, body, err
}

// OpenOrders calls the private open-orders endpoint. The request body is
// the url-encoded nonce and one-time password; the signature over path,
// nonce and body goes into the API-Sign header.
func (c *KrakenRESTClient) OpenOrders(ctx context.Context, endpoint string) (map[string]OpenOrder, []byte, error) {
	if c == nil || c.HTTPClient == nil {
		return nil, nil, fmt.Errorf("http client not set")
	}
	code, err := OTPCode(c.OTPSecret)
	if err != nil {
		return nil, nil, err
	}
	nonce := NextNonce()
	reqBody := EncodeBody(nonce, code)
	sig, err := Sign(c.APISecret, endpoint, nonce, reqBody)
	if err != nil {
		return nil, nil, err
	}
	headers := map[string]string{
		"API-Key":      c.APIKey,
		"API-Sign":     sig,
		"Content-Type": "application/x-www-form-urlencoded",
	}
	resp, err := c.sendWithRetry(ctx, http.MethodPost, endpoint, headers, []byte(reqBody))
	if err != nil {
		return nil, nil, err
	}
	body, _ := io.ReadAll(resp.Body)
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, body, fmt.Errorf("open orders status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	result, err := decodeEnvelope(body)
	if err != nil {
		return nil, body, err
	}
	var raw struct {
		Open map[string]OpenOrder `json:"open"`
	}
	if err := json.Unmarshal(result, &raw); err != nil {
		return nil, body, fmt.Errorf("decode open orders: %w", err)
	}
	return raw.Open, body, nil
}

// decodeEnvelope unwraps the response envelope. The exchange reports
// request-level failures as HTTP 200 with a non-empty error array.
func decodeEnvelope(body []byte) (json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(env.Error) > 0 {
		return nil, fmt.Errorf("api error: %s", strings.Join(env.Error, ", "))
	}
	return env.Result, nil
}

func (c *KrakenRESTClient) waitLimit() {
	if c != nil && c.Limiter != nil {
		c.Limiter.Wait()
	}
}

func (c *KrakenRESTClient) sendWithRetry(ctx context.Context, method, endpoint string, headers map[string]string, body []byte) (*http.Response, error) {
	maxAttempts := c.MaxRetries
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	delay := c.RetryDelay
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		c.waitLimit()
		start := time.Now()
		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			metrics.ObserveRequest(endpoint, "error", time.Since(start))
			lastErr = err
		} else {
			metrics.ObserveRequest(endpoint, strconv.Itoa(resp.StatusCode), time.Since(start))
			if resp.StatusCode == http.StatusTooManyRequests {
				lastErr = fmt.Errorf("status %d", resp.StatusCode)
				resp.Body.Close()
			} else {
				return resp, nil
			}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay * time.Duration(attempt+1)):
		}
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", maxAttempts, lastErr)
}

// NewDefaultHTTPClient provides an http.Client with a sane timeout.
func NewDefaultHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
