// internal/server/handler.go
//
// Package server 提供帳本的 HTTP RESTful 介面。
// 每個 handler 僅負責：
//  1. 解析路徑參數與 JSON 請求
//  2. 呼叫 ledger.Store
//  3. 回傳 JSON 回應
//  4. 成功變更狀態後呼叫 persist()
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bankledger/internal/ledger"
)

// Server 為 HTTP 層核心結構。
//   - Store：帳本。
//   - persist：持久化鉤子，可為 nil。
//   - Metrics：/metrics 使用的 handler，預設為 promhttp.Handler()。
type Server struct {
	Store   *ledger.Store
	Metrics http.Handler
	persist func() error
	log     *zap.Logger
}

// NewServer 建立新的 HTTP 伺服器；persist 若不為 nil 會於每次成功變更後呼叫。
func NewServer(store *ledger.Store, persist func() error, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{Store: store, Metrics: promhttp.Handler(), persist: persist, log: log}
}

// afterMutation 於成功變更後保存狀態。保存失敗不影響已完成的操作，只記錄錯誤。
func (s *Server) afterMutation(r *http.Request) {
	if s.persist == nil {
		return
	}
	if err := s.persist(); err != nil {
		s.log.Error("persist after mutation failed",
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
}

// decode 解析 JSON 請求內容；失敗時包裝為 errBadRequest。
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func customerParam(r *http.Request) (ledger.CustomerID, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "cid"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: customer id %q", errBadRequest, chi.URLParam(r, "cid"))
	}
	return ledger.CustomerID(id), nil
}

func accountParams(r *http.Request) (ledger.CustomerID, ledger.AccountNumber, error) {
	cid, err := customerParam(r)
	if err != nil {
		return 0, 0, err
	}
	num, err := strconv.ParseInt(chi.URLParam(r, "num"), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: account number %q", errBadRequest, chi.URLParam(r, "num"))
	}
	return cid, ledger.AccountNumber(num), nil
}

// health：GET /health。
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// listCustomers：GET /customers。
func (s *Server) listCustomers(w http.ResponseWriter, r *http.Request) {
	cs, err := s.Store.Customers()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

// addCustomer：POST /customers {id, name}。
func (s *Server) addCustomer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	c, err := s.Store.AddCustomer(ledger.CustomerID(req.ID), req.Name)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c.Info())
	s.afterMutation(r)
}

// listAccounts：GET /customers/{cid}/accounts。
func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	cid, err := customerParam(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	accts, err := s.Store.Accounts(cid)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accts)
}

// addAccount：POST /customers/{cid}/accounts {number, opening}。
func (s *Server) addAccount(w http.ResponseWriter, r *http.Request) {
	cid, err := customerParam(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	var req struct {
		Number  int64           `json:"number"`
		Opening decimal.Decimal `json:"opening"`
	}
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	info, err := s.Store.AddAccount(cid, ledger.AccountNumber(req.Number), req.Opening)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
	s.afterMutation(r)
}

// getAccount：GET /customers/{cid}/accounts/{num}。
func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	cid, num, err := accountParams(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	info, err := s.Store.Balance(cid, num)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// transactions：GET /customers/{cid}/accounts/{num}/transactions[?format=lines]。
// format=lines 時以純文字輸出每筆交易的 id,kind,amount,timestamp。
func (s *Server) transactions(w http.ResponseWriter, r *http.Request) {
	cid, num, err := accountParams(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	txs, err := s.Store.History(cid, num)
	if err != nil {
		writeErr(w, err)
		return
	}
	if r.URL.Query().Get("format") == "lines" {
		var b strings.Builder
		for _, t := range txs {
			b.WriteString(t.Line())
			b.WriteByte('\n')
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(b.String()))
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// movementResponse 的 Account 為操作後重新讀取的餘額；讀取失敗時省略。
type movementResponse struct {
	Transaction ledger.Transaction  `json:"transaction"`
	Account     *ledger.AccountInfo `json:"account,omitempty"`
}

// balanceAfter 於變更成功後重新讀取餘額。變更已生效，讀取失敗只記錄日誌。
func (s *Server) balanceAfter(r *http.Request, cid ledger.CustomerID, num ledger.AccountNumber) *ledger.AccountInfo {
	info, err := s.Store.Balance(cid, num)
	if err != nil {
		s.log.Warn("balance re-read after mutation failed",
			zap.String("path", r.URL.Path),
			zap.Error(err))
		return nil
	}
	return &info
}

// deposit：POST /customers/{cid}/accounts/{num}/deposit {amount}。
func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	s.movement(w, r, s.Store.Deposit)
}

// withdraw：POST /customers/{cid}/accounts/{num}/withdraw {amount}。
func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	s.movement(w, r, s.Store.Withdraw)
}

func (s *Server) movement(w http.ResponseWriter, r *http.Request,
	op func(ledger.CustomerID, ledger.AccountNumber, decimal.Decimal) (ledger.Transaction, error)) {
	cid, num, err := accountParams(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	var req amountRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	tx, err := op(cid, num, req.Amount)
	if err != nil {
		writeErr(w, err)
		return
	}
	defer s.afterMutation(r)
	writeJSON(w, http.StatusOK, movementResponse{Transaction: tx, Account: s.balanceAfter(r, cid, num)})
}

// transfer：POST /customers/{cid}/transfer {from, to, amount}。
// from 必須屬於該客戶；to 可為任何客戶的帳戶。
func (s *Server) transfer(w http.ResponseWriter, r *http.Request) {
	cid, err := customerParam(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	var req struct {
		From   int64           `json:"from"`
		To     int64           `json:"to"`
		Amount decimal.Decimal `json:"amount"`
	}
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	out, in, err := s.Store.Transfer(cid, ledger.AccountNumber(req.From), ledger.AccountNumber(req.To), req.Amount)
	if err != nil {
		writeErr(w, err)
		return
	}
	defer s.afterMutation(r)
	resp := map[string]any{
		"message": "transfer success",
		"out":     out,
		"in":      in,
	}
	if from := s.balanceAfter(r, cid, ledger.AccountNumber(req.From)); from != nil {
		resp["from"] = from
	}
	writeJSON(w, http.StatusOK, resp)
}
