// internal/server/response.go
//
// 統一 HTTP 回應格式：成功回應為 JSON，錯誤回應為 {"error": "..."}。
// 狀態碼由 statusFor 依領域錯誤決定，handler 不需自行判斷。
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"bankledger/internal/ledger"
)

// errBadRequest 代表請求本身格式錯誤（JSON、路徑參數）。
var errBadRequest = errors.New("bad request")

// writeJSON 統一輸出成功回應。
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr 統一輸出錯誤回應，狀態碼由錯誤種類決定。
func writeErr(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

// statusFor 將領域錯誤對應到 HTTP 狀態碼。
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrCustomerNotFound), errors.Is(err, ledger.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrDuplicateCustomer),
		errors.Is(err, ledger.ErrDuplicateAccount),
		errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrSameAccount),
		errors.Is(err, ledger.ErrInvalidName),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrStoreClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
