// internal/ledger/errors.go
//
// 本檔集中定義帳本的領域錯誤（domain errors）。
// 呼叫端以 errors.Is 判斷錯誤類別；HTTP 層再轉換成對應的狀態碼。

package ledger

import "errors"

var (
	// ErrCustomerNotFound 代表客戶不存在。對應 404。
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrAccountNotFound 代表帳戶不存在。對應 404。
	ErrAccountNotFound = errors.New("account not found")

	// ErrDuplicateCustomer 代表客戶 ID 已被使用。對應 409。
	ErrDuplicateCustomer = errors.New("duplicate customer")

	// ErrDuplicateAccount 代表帳號已被使用。對應 409。
	ErrDuplicateAccount = errors.New("duplicate account")

	// ErrInsufficientFunds 代表餘額不足，提款或轉帳被拒絕。對應 409。
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidAmount 代表金額非法（<=0，或開戶餘額為負）。對應 400。
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrSameAccount 代表轉帳來源與目標帳戶相同。對應 400。
	ErrSameAccount = errors.New("source and target are the same account")

	// ErrInvalidName 代表客戶名稱為空或含控制字元。對應 400。
	ErrInvalidName = errors.New("customer name must be non-empty without control characters")

	// ErrStoreClosed 代表帳本已關閉，不再接受任何操作。對應 503。
	ErrStoreClosed = errors.New("ledger store is closed")

	// ErrPersistence 代表備份檔無法讀取或寫入。對應 500。
	ErrPersistence = errors.New("persistence failure")
)
