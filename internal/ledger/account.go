// internal/ledger/account.go
//
// Account 持有餘額與只可追加的交易紀錄。
// 每個帳戶自帶互斥鎖：餘額檢查與變更在同一個臨界區內完成；
// 轉帳依固定順序同時鎖住兩個帳戶，兩邊的變更對外永遠一起可見。

package ledger

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account represents a bank account owned by exactly one customer.
type Account struct {
	mu      sync.Mutex
	number  AccountNumber
	owner   CustomerID
	opening decimal.Decimal
	balance decimal.Decimal
	txs     []Transaction
}

// AccountInfo 為帳戶餘額的唯讀快照。
type AccountInfo struct {
	Number   AccountNumber   `json:"number"`
	Customer CustomerID      `json:"customer_id"`
	Balance  decimal.Decimal `json:"balance"`
}

// String 對應原本 displayBalance 的輸出格式。
func (i AccountInfo) String() string {
	return fmt.Sprintf("Account Number: %d, Balance: $%s", i.Number, i.Balance.StringFixed(2))
}

// Statement 為帳戶的完整對帳單：餘額加上全部交易歷史。
type Statement struct {
	AccountInfo
	Opening      decimal.Decimal `json:"opening"`
	Transactions []Transaction   `json:"transactions"`
}

func newAccount(owner CustomerID, number AccountNumber, opening decimal.Decimal) *Account {
	return &Account{number: number, owner: owner, opening: opening, balance: opening}
}

// Number 回傳帳號。
func (a *Account) Number() AccountNumber { return a.number }

// Owner 回傳所屬客戶 ID。
func (a *Account) Owner() CustomerID { return a.owner }

// Opening 回傳開戶餘額。
func (a *Account) Opening() decimal.Decimal { return a.opening }

// Balance 回傳目前餘額。
func (a *Account) Balance() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance
}

// Info 回傳餘額快照。
func (a *Account) Info() AccountInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.infoLocked()
}

func (a *Account) infoLocked() AccountInfo {
	return AccountInfo{Number: a.number, Customer: a.owner, Balance: a.balance}
}

// Details 回傳 "帳號,餘額" 單行摘要，用於文字匯出。
func (a *Account) Details() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return strconv.FormatInt(int64(a.number), 10) + "," + a.balance.StringFixed(2)
}

// Transactions 回傳交易紀錄的拷貝，依發生順序排列。
func (a *Account) Transactions() []Transaction {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Transaction, len(a.txs))
	copy(out, a.txs)
	return out
}

// Statement 回傳餘額與交易歷史，兩者取自同一時間點。
func (a *Account) Statement() Statement {
	a.mu.Lock()
	defer a.mu.Unlock()
	txs := make([]Transaction, len(a.txs))
	copy(txs, a.txs)
	return Statement{AccountInfo: a.infoLocked(), Opening: a.opening, Transactions: txs}
}

// Deposit 存款：金額需 > 0。
func (a *Account) Deposit(amount decimal.Decimal) (Transaction, error) {
	if err := validAmount(amount); err != nil {
		return Transaction{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.balance = a.balance.Add(amount)
	return a.record(KindDeposit, DirectionIn, amount, 0, uuid.New(), time.Now()), nil
}

// Withdraw 提款：金額需 > 0 且不得超過餘額；失敗時狀態不變。
func (a *Account) Withdraw(amount decimal.Decimal) (Transaction, error) {
	if err := validAmount(amount); err != nil {
		return Transaction{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if amount.GreaterThan(a.balance) {
		return Transaction{}, fmt.Errorf("account %d: %w", a.number, ErrInsufficientFunds)
	}
	a.balance = a.balance.Sub(amount)
	return a.record(KindWithdrawal, DirectionOut, amount, 0, uuid.New(), time.Now()), nil
}

// Transfer 由 a 轉帳至 target。只檢查來源餘額；
// 兩邊各追加一筆 Transfer 紀錄（序號各自獨立、Ref 相同）。
// 回傳來源端（out）與目標端（in）的交易紀錄。
func (a *Account) Transfer(target *Account, amount decimal.Decimal) (out, in Transaction, err error) {
	if err := validAmount(amount); err != nil {
		return Transaction{}, Transaction{}, err
	}
	if target == nil {
		return Transaction{}, Transaction{}, ErrAccountNotFound
	}
	if target == a {
		return Transaction{}, Transaction{}, ErrSameAccount
	}

	first, second := lockOrder(a, target)
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	if amount.GreaterThan(a.balance) {
		return Transaction{}, Transaction{}, fmt.Errorf("account %d: %w", a.number, ErrInsufficientFunds)
	}
	a.balance = a.balance.Sub(amount)
	target.balance = target.balance.Add(amount)

	ref, now := uuid.New(), time.Now()
	out = a.record(KindTransfer, DirectionOut, amount, target.number, ref, now)
	in = target.record(KindTransfer, DirectionIn, amount, a.number, ref, now)
	return out, in, nil
}

// record 追加一筆交易；呼叫端須持有 a.mu。
func (a *Account) record(kind Kind, dir Direction, amount decimal.Decimal, counter AccountNumber, ref uuid.UUID, now time.Time) Transaction {
	t := Transaction{
		Seq:          len(a.txs) + 1,
		Kind:         kind,
		Direction:    dir,
		Amount:       amount,
		Time:         now,
		Counterparty: counter,
		Ref:          ref,
	}
	a.txs = append(a.txs, t)
	return t
}

// lockOrder 以 (帳號, 客戶 ID) 遞增順序排列兩個帳戶，
// 反方向的並行轉帳因此取得鎖的順序一致，不會互相死結。
func lockOrder(x, y *Account) (*Account, *Account) {
	if x.number < y.number || (x.number == y.number && x.owner < y.owner) {
		return x, y
	}
	return y, x
}

func validAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s must be > 0", ErrInvalidAmount, amount.String())
	}
	return nil
}
