package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// rpcServer answers every JSON-RPC request with the value returned by result.
func rpcServer(t *testing.T, result func(req rpcRequest) interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result(req),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestHTTPClient_GetTransaction(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) interface{} {
		if req.Method != "getTransaction" {
			t.Errorf("expected method getTransaction, got %s", req.Method)
		}
		cfg, _ := req.Params[1].(map[string]interface{})
		if cfg["commitment"] != "confirmed" {
			t.Errorf("expected confirmed commitment, got %v", cfg["commitment"])
		}
		if cfg["encoding"] != "json" {
			t.Errorf("expected json encoding, got %v", cfg["encoding"])
		}

		return map[string]interface{}{
			"slot":      int64(123456),
			"blockTime": int64(1700000000),
			"meta": map[string]interface{}{
				"err":         nil,
				"logMessages": []string{"Program log: initialize2"},
				"loadedAddresses": map[string]interface{}{
					"writable": []string{"lw1"},
					"readonly": []string{"lr1", "lr2"},
				},
			},
			"transaction": map[string]interface{}{
				"signatures": []string{"testsig123"},
				"message": map[string]interface{}{
					"accountKeys": []string{"addr1", "addr2", "prog"},
					"instructions": []map[string]interface{}{
						{"programIdIndex": 2, "accounts": []int{0, 1}, "data": "2"},
					},
				},
			},
		}
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)

	tx, err := client.GetTransaction(context.Background(), "testsig123")
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if tx == nil {
		t.Fatal("expected transaction, got nil")
	}

	if tx.Slot != 123456 {
		t.Errorf("expected slot 123456, got %d", tx.Slot)
	}
	if tx.BlockTime != 1700000000 {
		t.Errorf("expected blockTime 1700000000, got %d", tx.BlockTime)
	}
	if tx.Meta == nil || tx.Meta.Err != nil {
		t.Fatalf("expected successful meta, got %+v", tx.Meta)
	}
	if len(tx.Meta.LoadedAddresses.Writable) != 1 || len(tx.Meta.LoadedAddresses.Readonly) != 2 {
		t.Errorf("unexpected loaded addresses: %+v", tx.Meta.LoadedAddresses)
	}
	if tx.Message == nil || len(tx.Message.AccountKeys) != 3 {
		t.Fatalf("expected 3 account keys, got %+v", tx.Message)
	}
	if len(tx.Message.Instructions) != 1 {
		t.Fatalf("expected 1 instruction, got %d", len(tx.Message.Instructions))
	}
	ix := tx.Message.Instructions[0]
	if ix.ProgramIDIndex != 2 || len(ix.Accounts) != 2 || ix.Data != "2" {
		t.Errorf("unexpected instruction: %+v", ix)
	}
}

func TestHTTPClient_GetTransaction_NotFound(t *testing.T) {
	server := rpcServer(t, func(rpcRequest) interface{} { return nil })
	defer server.Close()

	client := NewHTTPClient(server.URL)

	tx, err := client.GetTransaction(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if tx != nil {
		t.Errorf("expected nil for not found, got %+v", tx)
	}
}

func TestHTTPClient_GetTransaction_FailedOnChain(t *testing.T) {
	server := rpcServer(t, func(rpcRequest) interface{} {
		return map[string]interface{}{
			"slot": int64(7),
			"meta": map[string]interface{}{
				"err": map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}},
			},
			"transaction": map[string]interface{}{
				"message": map[string]interface{}{"accountKeys": []string{"a"}},
			},
		}
	})
	defer server.Close()

	tx, err := NewHTTPClient(server.URL).GetTransaction(context.Background(), "sig")
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if tx.Meta == nil || tx.Meta.Err == nil {
		t.Fatalf("expected meta error to be preserved, got %+v", tx.Meta)
	}
}

func TestHTTPClient_SendTransaction(t *testing.T) {
	raw := []byte{1, 2, 3, 4}

	server := rpcServer(t, func(req rpcRequest) interface{} {
		if req.Method != "sendTransaction" {
			t.Errorf("expected method sendTransaction, got %s", req.Method)
		}
		if req.Params[0] != base64.StdEncoding.EncodeToString(raw) {
			t.Errorf("unexpected payload %v", req.Params[0])
		}
		cfg, _ := req.Params[1].(map[string]interface{})
		if cfg["encoding"] != "base64" || cfg["skipPreflight"] != true {
			t.Errorf("unexpected config %v", cfg)
		}
		if cfg["maxRetries"] != float64(0) {
			t.Errorf("expected maxRetries 0, got %v", cfg["maxRetries"])
		}
		return "5igSig"
	})
	defer server.Close()

	zero := 0
	sig, err := NewHTTPClient(server.URL).SendTransaction(context.Background(), raw, SendOptions{
		SkipPreflight: true,
		MaxRetries:    &zero,
	})
	if err != nil {
		t.Fatalf("SendTransaction: %v", err)
	}
	if sig != "5igSig" {
		t.Errorf("expected signature 5igSig, got %s", sig)
	}
}

func TestHTTPClient_SimulateTransaction(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) interface{} {
		cfg, _ := req.Params[1].(map[string]interface{})
		if cfg["sigVerify"] != false || cfg["replaceRecentBlockhash"] != true {
			t.Errorf("unexpected config %v", cfg)
		}
		return map[string]interface{}{
			"context": map[string]interface{}{"slot": 1},
			"value": map[string]interface{}{
				"err":           "InsufficientFundsForFee",
				"logs":          []string{"Program log: fail"},
				"unitsConsumed": 1200,
			},
		}
	})
	defer server.Close()

	sim, err := NewHTTPClient(server.URL).SimulateTransaction(context.Background(), []byte{9})
	if err != nil {
		t.Fatalf("SimulateTransaction: %v", err)
	}
	if !sim.Failed() {
		t.Error("expected simulation failure")
	}
	if sim.UnitsConsumed != 1200 {
		t.Errorf("expected 1200 units, got %d", sim.UnitsConsumed)
	}
}

func TestHTTPClient_GetSignatureStatuses(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) interface{} {
		return map[string]interface{}{
			"context": map[string]interface{}{"slot": 10},
			"value": []interface{}{
				map[string]interface{}{"slot": 9, "confirmations": 1, "err": nil, "confirmationStatus": "confirmed"},
				nil,
			},
		}
	})
	defer server.Close()

	statuses, err := NewHTTPClient(server.URL).GetSignatureStatuses(context.Background(), "a", "b")
	if err != nil {
		t.Fatalf("GetSignatureStatuses: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if !statuses[0].Landed() {
		t.Errorf("expected first status landed, got %+v", statuses[0])
	}
	if statuses[1] != nil {
		t.Errorf("expected nil for unknown signature, got %+v", statuses[1])
	}
}

func TestHTTPClient_Retry(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := attempts.Add(1)
		if count < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  int64(999),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(3),
		WithRetryDelay(10*time.Millisecond),
	)

	slot, err := client.GetSlot(context.Background())
	if err != nil {
		t.Fatalf("GetSlot: %v", err)
	}
	if slot != 999 {
		t.Errorf("expected slot 999, got %d", slot)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestHTTPClient_RPCError(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error": map[string]interface{}{
				"code":    -32600,
				"message": "Invalid Request",
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithRetryDelay(time.Millisecond))

	_, err := client.GetSlot(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	rpcErr, ok := err.(*RPCError)
	if !ok {
		t.Fatalf("expected *RPCError, got %T", err)
	}
	if rpcErr.Code != -32600 {
		t.Errorf("expected code -32600, got %d", rpcErr.Code)
	}
	if attempts.Load() != 1 {
		t.Errorf("expected RPC error not to be retried, got %d attempts", attempts.Load())
	}
}

func TestHTTPClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	_, err := client.GetSlot(ctx)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
