// internal/server/server_test.go
//
// server 層的端對端測試：以 httptest.Server 模擬完整請求流程，
// 驗證 REST API 與帳本的整合、錯誤碼對應，以及成功變更後 persist 鉤子的觸發。
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bankledger/internal/ledger"
)

// doJSON 送出 JSON 請求並檢查狀態碼；out 不為 nil 時解析回應。
func doJSON(t *testing.T, c *http.Client, method, url string, body any, wantCode int, out any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	require.Equal(t, wantCode, resp.StatusCode, "%s %s: %s", method, url, raw)
	if out != nil {
		require.NoError(t, json.Unmarshal(raw, out))
	}
}

func newTestServer(t *testing.T, persist func() error) (*httptest.Server, *ledger.Store) {
	t.Helper()
	store := ledger.New()
	ts := httptest.NewServer(NewServer(store, persist, nil).Router())
	t.Cleanup(ts.Close)
	return ts, store
}

func TestHTTPFlowAndPersistHook(t *testing.T) {
	var persistCalls int32
	ts, _ := newTestServer(t, func() error {
		atomic.AddInt32(&persistCalls, 1)
		return nil
	})
	cli := ts.Client()

	// 建立客戶與帳戶
	var alice ledger.CustomerInfo
	doJSON(t, cli, "POST", ts.URL+"/customers", map[string]any{"id": 1001, "name": "Alice"}, 201, &alice)
	assert.Equal(t, "Alice", alice.Name)
	doJSON(t, cli, "POST", ts.URL+"/api/v1/customers", map[string]any{"id": 1002, "name": "Bob"}, 201, nil)
	doJSON(t, cli, "POST", ts.URL+"/customers/1001/accounts", map[string]any{"number": 2001}, 201, nil)
	doJSON(t, cli, "POST", ts.URL+"/customers/1002/accounts", map[string]any{"number": 2002, "opening": "10"}, 201, nil)

	// 存款與提款
	var mv movementResponse
	doJSON(t, cli, "POST", ts.URL+"/customers/1001/accounts/2001/deposit", map[string]any{"amount": 500}, 200, &mv)
	assert.Equal(t, 1, mv.Transaction.Seq)
	assert.True(t, mv.Account.Balance.Equal(decimal.NewFromInt(500)))
	doJSON(t, cli, "POST", ts.URL+"/customers/1001/accounts/2001/withdraw", map[string]any{"amount": "100"}, 200, &mv)
	assert.True(t, mv.Account.Balance.Equal(decimal.NewFromInt(400)))

	// 轉帳至其他客戶的帳戶
	var tr struct {
		Message string             `json:"message"`
		From    ledger.AccountInfo `json:"from"`
		Out     ledger.Transaction `json:"out"`
		In      ledger.Transaction `json:"in"`
	}
	doJSON(t, cli, "POST", ts.URL+"/customers/1001/transfer", map[string]any{"from": 2001, "to": 2002, "amount": 200}, 200, &tr)
	assert.Equal(t, "transfer success", tr.Message)
	assert.True(t, tr.From.Balance.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, tr.Out.Ref, tr.In.Ref)

	var bob ledger.AccountInfo
	doJSON(t, cli, "GET", ts.URL+"/api/v1/customers/1002/accounts/2002", nil, 200, &bob)
	assert.True(t, bob.Balance.Equal(decimal.NewFromInt(210)))

	var accts []ledger.AccountInfo
	doJSON(t, cli, "GET", ts.URL+"/customers/1001/accounts", nil, 200, &accts)
	require.Len(t, accts, 1)
	assert.Equal(t, ledger.AccountNumber(2001), accts[0].Number)

	var txs []ledger.Transaction
	doJSON(t, cli, "GET", ts.URL+"/customers/1001/accounts/2001/transactions", nil, 200, &txs)
	require.Len(t, txs, 3)
	assert.Equal(t, ledger.KindTransfer, txs[2].Kind)
	assert.Equal(t, ledger.AccountNumber(2002), txs[2].Counterparty)

	var cs []ledger.CustomerInfo
	doJSON(t, cli, "GET", ts.URL+"/customers", nil, 200, &cs)
	assert.Len(t, cs, 2)

	// 2 客戶 + 2 帳戶 + 存款 + 提款 + 轉帳
	assert.Equal(t, int32(7), atomic.LoadInt32(&persistCalls))
}

func TestTransactionsAsLines(t *testing.T) {
	ts, store := newTestServer(t, nil)
	_, err := store.AddCustomer(1, "A")
	require.NoError(t, err)
	_, err = store.AddAccount(1, 10, decimal.Zero)
	require.NoError(t, err)
	_, err = store.Deposit(1, 10, decimal.RequireFromString("12.5"))
	require.NoError(t, err)

	resp, err := ts.Client().Get(ts.URL + "/customers/1/accounts/10/transactions?format=lines")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain"))
	assert.True(t, strings.HasPrefix(string(body), "1,Deposit,12.50,"), "body=%q", body)
}

func TestErrorStatusMapping(t *testing.T) {
	var persistCalls int32
	ts, store := newTestServer(t, func() error {
		atomic.AddInt32(&persistCalls, 1)
		return nil
	})
	cli := ts.Client()
	_, err := store.AddCustomer(1001, "Alice")
	require.NoError(t, err)
	_, err = store.AddAccount(1001, 2001, decimal.NewFromInt(50))
	require.NoError(t, err)

	cases := []struct {
		name, method, path string
		body               any
		want               int
	}{
		{"unknown customer", "GET", "/customers/9/accounts", nil, 404},
		{"unknown account", "GET", "/customers/1001/accounts/9", nil, 404},
		{"deposit to unknown account", "POST", "/customers/1001/accounts/9/deposit", map[string]any{"amount": 1}, 404},
		{"transfer to unknown account", "POST", "/customers/1001/transfer", map[string]any{"from": 2001, "to": 9, "amount": 1}, 404},
		{"duplicate customer", "POST", "/customers", map[string]any{"id": 1001, "name": "Again"}, 409},
		{"duplicate account", "POST", "/customers/1001/accounts", map[string]any{"number": 2001}, 409},
		{"insufficient funds", "POST", "/customers/1001/accounts/2001/withdraw", map[string]any{"amount": 51}, 409},
		{"zero amount", "POST", "/customers/1001/accounts/2001/deposit", map[string]any{"amount": 0}, 400},
		{"negative opening", "POST", "/customers/1001/accounts", map[string]any{"number": 2005, "opening": -1}, 400},
		{"same account", "POST", "/customers/1001/transfer", map[string]any{"from": 2001, "to": 2001, "amount": 1}, 400},
		{"empty name", "POST", "/customers", map[string]any{"id": 5, "name": " "}, 400},
		{"bad customer id", "GET", "/customers/abc/accounts", nil, 400},
		{"bad account number", "GET", "/customers/1001/accounts/x1", nil, 400},
		{"bad json", "POST", "/customers/1001/accounts/2001/deposit", "{bad json}", 400},
		{"method not allowed", "GET", "/customers/1001/transfer", nil, 405},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out map[string]string
			if tc.want == 405 {
				doJSON(t, cli, tc.method, ts.URL+tc.path, tc.body, tc.want, nil)
				return
			}
			if s, ok := tc.body.(string); ok {
				req, err := http.NewRequest(tc.method, ts.URL+tc.path, strings.NewReader(s))
				require.NoError(t, err)
				resp, err := cli.Do(req)
				require.NoError(t, err)
				resp.Body.Close()
				assert.Equal(t, tc.want, resp.StatusCode)
				return
			}
			doJSON(t, cli, tc.method, ts.URL+tc.path, tc.body, tc.want, &out)
			assert.NotEmpty(t, out["error"])
		})
	}

	assert.Zero(t, atomic.LoadInt32(&persistCalls), "failed requests must not persist")
	info, err := store.Balance(1001, 2001)
	require.NoError(t, err)
	assert.True(t, info.Balance.Equal(decimal.NewFromInt(50)))
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	ts, store := newTestServer(t, nil)
	require.NoError(t, store.Close())
	doJSON(t, ts.Client(), "GET", ts.URL+"/customers", nil, 503, nil)
	doJSON(t, ts.Client(), "POST", ts.URL+"/customers", map[string]any{"id": 1, "name": "A"}, 503, nil)
}

func TestPersistFailureDoesNotFailRequest(t *testing.T) {
	ts, store := newTestServer(t, func() error {
		return errors.New("disk full")
	})
	doJSON(t, ts.Client(), "POST", ts.URL+"/customers", map[string]any{"id": 1, "name": "A"}, 201, nil)
	_, ok := store.Customer(1)
	assert.True(t, ok)
}

// TestMutationSucceedsWhenStoreClosesConcurrently 帳本在變更完成後、回應前被關閉：
// 仍回報成功（省略餘額）並呼叫 persist。
func TestMutationSucceedsWhenStoreClosesConcurrently(t *testing.T) {
	for _, tc := range []struct {
		name, path string
		body       map[string]any
	}{
		{"deposit", "/customers/1001/accounts/2001/deposit", map[string]any{"amount": 5}},
		{"transfer", "/customers/1001/transfer", map[string]any{"from": 2001, "to": 2002, "amount": 5}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var (
				store        *ledger.Store
				persistCalls int32
			)
			store = ledger.New(ledger.WithObserver(ledger.ObserverFunc(func(e ledger.Event) {
				if e.Err == nil {
					_ = store.Close()
				}
			})))
			_, err := store.AddCustomer(1001, "Alice")
			require.NoError(t, err)
			_, err = store.AddAccount(1001, 2001, decimal.NewFromInt(50))
			require.NoError(t, err)
			_, err = store.AddAccount(1001, 2002, decimal.Zero)
			require.NoError(t, err)

			ts := httptest.NewServer(NewServer(store, func() error {
				atomic.AddInt32(&persistCalls, 1)
				return nil
			}, nil).Router())
			defer ts.Close()

			var out map[string]json.RawMessage
			doJSON(t, ts.Client(), "POST", ts.URL+tc.path, tc.body, 200, &out)
			assert.NotContains(t, out, "account")
			assert.NotContains(t, out, "from")
			assert.Equal(t, int32(1), atomic.LoadInt32(&persistCalls))
		})
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, 500, statusFor(ledger.ErrPersistence))
	assert.Equal(t, 500, statusFor(errors.New("boom")))
	assert.Equal(t, 503, statusFor(ledger.ErrStoreClosed))
}

func TestHealthAndMetrics(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	var h map[string]string
	doJSON(t, ts.Client(), "GET", ts.URL+"/health", nil, 200, &h)
	assert.Equal(t, "ok", h["status"])
	doJSON(t, ts.Client(), "GET", ts.URL+"/api/v1/health", nil, 200, nil)

	resp, err := ts.Client().Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "go_goroutines")
}
