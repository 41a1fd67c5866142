// internal/ledger/customer.go

package ledger

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// Customer 擁有多個帳戶，以帳號為索引，並保留建立順序供列表使用。
type Customer struct {
	mu       sync.RWMutex
	store    *Store // 所屬帳本；為 nil 時不做跨客戶檢查
	id       CustomerID
	name     string
	accounts map[AccountNumber]*Account
	order    []AccountNumber
}

// CustomerInfo 為客戶的唯讀摘要。
type CustomerInfo struct {
	ID       CustomerID      `json:"id"`
	Name     string          `json:"name"`
	Accounts []AccountNumber `json:"accounts"`
}

func newCustomer(id CustomerID, name string) *Customer {
	return &Customer{id: id, name: name, accounts: make(map[AccountNumber]*Account)}
}

func (c *Customer) ID() CustomerID { return c.id }

func (c *Customer) Name() string { return c.name }

// AddAccount 以指定帳號開戶，開戶餘額可省略（預設 0）且不得為負。
// 屬於 Store 的客戶經由 Store 開戶：帳號在整個帳本中必須唯一，帳本關閉後回傳 ErrStoreClosed。
func (c *Customer) AddAccount(number AccountNumber, opening ...decimal.Decimal) (*Account, error) {
	bal := decimal.Zero
	if len(opening) > 0 {
		bal = opening[0]
	}
	if c.store != nil {
		return c.store.addAccount(c, number, bal)
	}
	return c.addAccount(number, bal)
}

// addAccount 檢查開戶餘額與此客戶下的帳號是否重複後開戶。
func (c *Customer) addAccount(number AccountNumber, opening decimal.Decimal) (*Account, error) {
	if opening.IsNegative() {
		return nil, fmt.Errorf("%w: opening balance %s is negative", ErrInvalidAmount, opening.String())
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.accounts[number]; ok {
		return nil, fmt.Errorf("account %d: %w", number, ErrDuplicateAccount)
	}
	a := newAccount(c.id, number, opening)
	c.attachLocked(a)
	return a, nil
}

// attachLocked 將帳戶掛入索引；呼叫端須持有 c.mu。
func (c *Customer) attachLocked(a *Account) {
	c.accounts[a.number] = a
	c.order = append(c.order, a.number)
}

// Account 依帳號查詢；不存在時 ok 為 false。
func (c *Customer) Account(number AccountNumber) (*Account, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.accounts[number]
	return a, ok
}

// Accounts 依建立順序回傳所有帳戶。
func (c *Customer) Accounts() []*Account {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Account, 0, len(c.order))
	for _, n := range c.order {
		out = append(out, c.accounts[n])
	}
	return out
}

// Info 回傳客戶摘要。
func (c *Customer) Info() CustomerInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	nums := make([]AccountNumber, len(c.order))
	copy(nums, c.order)
	return CustomerInfo{ID: c.id, Name: c.name, Accounts: nums}
}
