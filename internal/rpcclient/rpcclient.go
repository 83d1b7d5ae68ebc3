// Package rpcclient is the messenger's JSON-RPC gateway to the chain RPC
// provider: an HTTP half for one-shot calls (blockhash, transaction
// submission, account/transaction lookups, signature pagination) and a
// WebSocket half for the live log subscription used by listen.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/mr-tron/base58"
	"golang.org/x/net/http2"
	"golang.org/x/time/rate"
)

const jsonrpcVersion = "2.0"

// historyPageLimit is the default page size for signature pagination.
const historyPageLimit = 1000

type jsonrpcRequest struct {
	Version string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type jsonrpcResponse struct {
	Version string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpcError   `json:"error,omitempty"`
}

type jsonrpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *jsonrpcError) Error() string {
	return fmt.Sprintf("rpcclient: rpc error %d: %s", e.Code, e.Message)
}

// Observer receives one notification per completed JSON-RPC call, for
// callers that want request counts, error counts, or latency histograms
// without this package importing a metrics library directly.
type Observer func(method string, err error, latency time.Duration)

// Client is an HTTP JSON-RPC client for a single chain RPC endpoint, with
// a paired WebSocket endpoint for log subscriptions (derived from the HTTP
// URL by default: https→wss, http→ws).
type Client struct {
	httpURL    string
	wsURL      string
	httpClient *http.Client
	limiter    *rate.Limiter
	idCounter  uint64
	observe    Observer
}

// Option configures a Client at construction.
type Option func(*Client)

// WithHTTPTimeout overrides the default per-request HTTP timeout.
func WithHTTPTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithWSURL overrides the WebSocket endpoint derived from the HTTP URL.
func WithWSURL(wsURL string) Option {
	return func(c *Client) { c.wsURL = wsURL }
}

// WithRequestsPerSecond overrides the outbound call rate limit applied to
// every JSON-RPC call the client makes.
func WithRequestsPerSecond(rps float64) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), int(rps)+1) }
}

// WithObserver registers a callback invoked after every JSON-RPC call
// completes (success or failure), for request/error/latency metrics.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observe = o }
}

// New builds a Client for rpcURL. The HTTP transport is configured for
// HTTP/2 connection reuse against providers that serve it.
func New(rpcURL string, opts ...Option) *Client {
	transport := &http.Transport{}
	_ = http2.ConfigureTransport(transport)

	c := &Client{
		httpURL:    rpcURL,
		wsURL:      deriveWSURL(rpcURL),
		httpClient: &http.Client{Transport: transport, Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(20), 20),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WSURL returns the WebSocket endpoint this client will dial for subscriptions.
func (c *Client) WSURL() string {
	return c.wsURL
}

func deriveWSURL(rpcURL string) string {
	u, err := url.Parse(rpcURL)
	if err != nil {
		return rpcURL
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	return u.String()
}

func (c *Client) call(ctx context.Context, method string, params []interface{}, result interface{}) (err error) {
	start := time.Now()
	defer func() {
		if c.observe != nil {
			c.observe(method, err, time.Since(start))
		}
	}()

	if err = c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rpcclient: rate limit wait: %w", err)
	}

	id := atomic.AddUint64(&c.idCounter, 1)
	body, err := json.Marshal(jsonrpcRequest{
		Version: jsonrpcVersion,
		ID:      id,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("rpcclient: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.httpURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("rpcclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rpcclient: %s: %w", method, err)
	}
	defer resp.Body.Close()

	var rpcResp jsonrpcResponse
	if err = json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("rpcclient: decode %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		err = rpcResp.Error
		return err
	}
	if result == nil {
		return nil
	}
	err = json.Unmarshal(rpcResp.Result, result)
	return err
}

// GetLatestBlockhash fetches the blockhash a new transaction should target.
func (c *Client) GetLatestBlockhash(ctx context.Context) ([32]byte, error) {
	var out struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getLatestBlockhash", nil, &out); err != nil {
		return [32]byte{}, err
	}

	raw, err := base64.StdEncoding.DecodeString(out.Value.Blockhash)
	if err != nil || len(raw) != 32 {
		// Providers may return base58; fall back there if base64 decode
		// doesn't yield 32 bytes.
		var bh [32]byte
		decoded, decErr := base58.Decode(out.Value.Blockhash)
		if decErr != nil || len(decoded) != 32 {
			return [32]byte{}, fmt.Errorf("rpcclient: unexpected blockhash encoding %q", out.Value.Blockhash)
		}
		copy(bh[:], decoded)
		return bh, nil
	}

	var bh [32]byte
	copy(bh[:], raw)
	return bh, nil
}

// SendTransaction submits a fully signed transaction and returns its signature.
func (c *Client) SendTransaction(ctx context.Context, signedTx []byte) (string, error) {
	var sig string
	params := []interface{}{
		base64.StdEncoding.EncodeToString(signedTx),
		map[string]interface{}{"encoding": "base64"},
	}
	if err := c.call(ctx, "sendTransaction", params, &sig); err != nil {
		return "", err
	}
	return sig, nil
}

// SignatureStatus is one signature's confirmation state.
type SignatureStatus struct {
	Slot               uint64      `json:"slot"`
	ConfirmationStatus string      `json:"confirmationStatus"`
	Err                interface{} `json:"err"`
}

// Confirmed reports whether the status is "confirmed" or "finalized".
func (s SignatureStatus) Confirmed() bool {
	return s.ConfirmationStatus == "confirmed" || s.ConfirmationStatus == "finalized"
}

// GetSignatureStatuses fetches the confirmation status of each signature.
// A nil entry in the result means the provider has no record of that signature.
func (c *Client) GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error) {
	var out struct {
		Value []*SignatureStatus `json:"value"`
	}
	params := []interface{}{signatures, map[string]interface{}{"searchTransactionHistory": true}}
	if err := c.call(ctx, "getSignatureStatuses", params, &out); err != nil {
		return nil, err
	}
	return out.Value, nil
}

// SignatureInfo is one entry from GetSignaturesForAddress.
type SignatureInfo struct {
	Signature string      `json:"signature"`
	Slot      uint64      `json:"slot"`
	BlockTime *int64      `json:"blockTime"`
	Err       interface{} `json:"err"`
}

// GetSignaturesForAddress fetches up to limit signatures mentioning
// address, walking backwards from before (empty for the most recent page).
func (c *Client) GetSignaturesForAddress(ctx context.Context, address string, before string, limit int) ([]SignatureInfo, error) {
	if limit <= 0 {
		limit = historyPageLimit
	}
	opts := map[string]interface{}{"limit": limit}
	if before != "" {
		opts["before"] = before
	}

	var out []SignatureInfo
	if err := c.call(ctx, "getSignaturesForAddress", []interface{}{address, opts}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TransactionMeta carries the parts of a transaction's metadata this
// client needs: the log messages events are parsed from.
type TransactionMeta struct {
	LogMessages []string    `json:"logMessages"`
	Err         interface{} `json:"err"`
}

// TransactionInfo is the result of GetTransaction.
type TransactionInfo struct {
	Slot      uint64           `json:"slot"`
	BlockTime *int64           `json:"blockTime"`
	Meta      *TransactionMeta `json:"meta"`
}

// GetTransaction fetches a confirmed transaction by signature.
func (c *Client) GetTransaction(ctx context.Context, signature string) (*TransactionInfo, error) {
	var out *TransactionInfo
	params := []interface{}{
		signature,
		map[string]interface{}{"encoding": "json", "maxSupportedTransactionVersion": 0},
	}
	if err := c.call(ctx, "getTransaction", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AccountInfo is the result of GetAccountInfo.
type AccountInfo struct {
	Data  []byte
	Owner string
}

// GetAccountInfo fetches raw account data, base64-decoded. Returns
// (nil, nil) if the account does not exist; callers that only need
// absence semantics (e.g. lookup_encryption_key) treat both nil and error
// as "not found".
func (c *Client) GetAccountInfo(ctx context.Context, address string) (*AccountInfo, error) {
	var out struct {
		Value *struct {
			Data  [2]string `json:"data"`
			Owner string    `json:"owner"`
		} `json:"value"`
	}

	params := []interface{}{address, map[string]interface{}{"encoding": "base64"}}
	if err := c.call(ctx, "getAccountInfo", params, &out); err != nil {
		return nil, err
	}
	if out.Value == nil {
		return nil, nil
	}

	data, err := base64.StdEncoding.DecodeString(out.Value.Data[0])
	if err != nil {
		return nil, fmt.Errorf("rpcclient: decode account data: %w", err)
	}

	return &AccountInfo{Data: data, Owner: out.Value.Owner}, nil
}
