package rpcclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestServer(t *testing.T, handler func(method string) (interface{}, *jsonrpcError)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req jsonrpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		result, rpcErr := handler(req.Method)
		resp := jsonrpcResponse{Version: jsonrpcVersion, ID: req.ID, Error: rpcErr}
		if rpcErr == nil {
			raw, err := json.Marshal(result)
			if err != nil {
				t.Fatalf("marshal result: %v", err)
			}
			resp.Result = raw
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestGetLatestBlockhash(t *testing.T) {
	var want [32]byte
	want[0] = 0xAB

	srv := newTestServer(t, func(method string) (interface{}, *jsonrpcError) {
		if method != "getLatestBlockhash" {
			t.Errorf("got method %q", method)
		}
		return map[string]interface{}{
			"value": map[string]interface{}{
				"blockhash": base64.StdEncoding.EncodeToString(want[:]),
			},
		}, nil
	})
	defer srv.Close()

	c := New(srv.URL)
	got, err := c.GetLatestBlockhash(context.Background())
	if err != nil {
		t.Fatalf("GetLatestBlockhash: %v", err)
	}
	if got != want {
		t.Errorf("got %x, want %x", got, want)
	}
}

func TestSendTransaction(t *testing.T) {
	srv := newTestServer(t, func(method string) (interface{}, *jsonrpcError) {
		if method != "sendTransaction" {
			t.Errorf("got method %q", method)
		}
		return "5sigBase58", nil
	})
	defer srv.Close()

	c := New(srv.URL)
	sig, err := c.SendTransaction(context.Background(), []byte("signed-tx-bytes"))
	if err != nil {
		t.Fatalf("SendTransaction: %v", err)
	}
	if sig != "5sigBase58" {
		t.Errorf("got %q", sig)
	}
}

func TestSendTransaction_PropagatesRPCError(t *testing.T) {
	srv := newTestServer(t, func(method string) (interface{}, *jsonrpcError) {
		return nil, &jsonrpcError{Code: -32002, Message: "Transaction simulation failed"}
	})
	defer srv.Close()

	c := New(srv.URL)
	if _, err := c.SendTransaction(context.Background(), []byte("x")); err == nil {
		t.Error("expected an error from a failed simulation")
	}
}

func TestWithObserver_ReportsMethodAndError(t *testing.T) {
	srv := newTestServer(t, func(method string) (interface{}, *jsonrpcError) {
		if method == "sendTransaction" {
			return nil, &jsonrpcError{Code: -32002, Message: "simulation failed"}
		}
		return map[string]interface{}{
			"value": map[string]interface{}{"blockhash": base64.StdEncoding.EncodeToString(make([]byte, 32))},
		}, nil
	})
	defer srv.Close()

	type observation struct {
		method string
		failed bool
	}
	var observed []observation
	c := New(srv.URL, WithObserver(func(method string, err error, _ time.Duration) {
		observed = append(observed, observation{method: method, failed: err != nil})
	}))

	if _, err := c.GetLatestBlockhash(context.Background()); err != nil {
		t.Fatalf("GetLatestBlockhash: %v", err)
	}
	if _, err := c.SendTransaction(context.Background(), []byte("x")); err == nil {
		t.Fatal("expected an error from a failed simulation")
	}

	if len(observed) != 2 {
		t.Fatalf("expected 2 observations, got %d: %+v", len(observed), observed)
	}
	if observed[0].method != "getLatestBlockhash" || observed[0].failed {
		t.Errorf("observation[0] = %+v, want getLatestBlockhash/ok", observed[0])
	}
	if observed[1].method != "sendTransaction" || !observed[1].failed {
		t.Errorf("observation[1] = %+v, want sendTransaction/failed", observed[1])
	}
}

func TestGetAccountInfo_NotFound(t *testing.T) {
	srv := newTestServer(t, func(method string) (interface{}, *jsonrpcError) {
		return map[string]interface{}{"value": nil}, nil
	})
	defer srv.Close()

	c := New(srv.URL)
	acc, err := c.GetAccountInfo(context.Background(), "someaddress")
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}
	if acc != nil {
		t.Errorf("expected nil account, got %+v", acc)
	}
}

func TestGetAccountInfo_Found(t *testing.T) {
	data := []byte("registry account bytes")
	srv := newTestServer(t, func(method string) (interface{}, *jsonrpcError) {
		return map[string]interface{}{
			"value": map[string]interface{}{
				"data":  [2]string{base64.StdEncoding.EncodeToString(data), "base64"},
				"owner": "ProgramOwnerAddress",
			},
		}, nil
	})
	defer srv.Close()

	c := New(srv.URL)
	acc, err := c.GetAccountInfo(context.Background(), "someaddress")
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}
	if acc == nil {
		t.Fatal("expected a non-nil account")
	}
	if string(acc.Data) != string(data) {
		t.Errorf("got data %q, want %q", acc.Data, data)
	}
	if acc.Owner != "ProgramOwnerAddress" {
		t.Errorf("got owner %q", acc.Owner)
	}
}

func TestGetSignaturesForAddress_PassesBeforeAndLimit(t *testing.T) {
	var gotParams []interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req jsonrpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		gotParams = req.Params

		resp := jsonrpcResponse{Version: jsonrpcVersion, ID: req.ID, Result: json.RawMessage(`[]`)}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := New(srv.URL)
	if _, err := c.GetSignaturesForAddress(context.Background(), "prog", "cursor123", 50); err != nil {
		t.Fatalf("GetSignaturesForAddress: %v", err)
	}

	if len(gotParams) != 2 {
		t.Fatalf("got %d params, want 2", len(gotParams))
	}
	opts, ok := gotParams[1].(map[string]interface{})
	if !ok {
		t.Fatalf("second param not a map: %#v", gotParams[1])
	}
	if opts["before"] != "cursor123" {
		t.Errorf("before = %v, want cursor123", opts["before"])
	}
	if int(opts["limit"].(float64)) != 50 {
		t.Errorf("limit = %v, want 50", opts["limit"])
	}
}

func TestGetTransaction_ReturnsLogMessages(t *testing.T) {
	srv := newTestServer(t, func(method string) (interface{}, *jsonrpcError) {
		return map[string]interface{}{
			"slot":      uint64(12345),
			"blockTime": 1700000000,
			"meta": map[string]interface{}{
				"logMessages": []string{"Program log: hi", "Program data: AAAA"},
			},
		}, nil
	})
	defer srv.Close()

	c := New(srv.URL)
	tx, err := c.GetTransaction(context.Background(), "sig1")
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if tx.Meta == nil || len(tx.Meta.LogMessages) != 2 {
		t.Fatalf("got %+v", tx)
	}
}

func TestDeriveWSURL(t *testing.T) {
	tests := []struct{ rpc, want string }{
		{"https://api.mainnet-beta.solana.com", "wss://api.mainnet-beta.solana.com"},
		{"http://localhost:8899", "ws://localhost:8899"},
	}
	for _, tc := range tests {
		if got := deriveWSURL(tc.rpc); got != tc.want {
			t.Errorf("deriveWSURL(%q) = %q, want %q", tc.rpc, got, tc.want)
		}
	}
}
