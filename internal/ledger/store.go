// internal/ledger/store.go

// Package ledger 定義帳本核心：客戶、帳戶、交易與統籌所有操作的 Store。
//
// 鎖的層級固定為 Store → Customer → Account：
//   - Store.mu 寫鎖用於結構變更（新增客戶、開戶）與快照；帳務操作只持讀鎖。
//   - Customer.mu 保護帳戶索引。
//   - Account.mu 保護餘額與交易紀錄；轉帳依帳號順序同時鎖住兩個帳戶。
//
// 快照在 Store 寫鎖下產生，因此不會看到只完成一半的轉帳。
package ledger

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bankledger/internal/storage"
)

// Store 為聚合根：擁有全部客戶，並負責備份檔的載入與保存。
type Store struct {
	mu        sync.RWMutex
	saveMu    sync.Mutex // 序列化 Save/Close，避免較舊的快照覆蓋較新的
	path      string
	log       *zap.Logger
	obs       Observer
	customers map[CustomerID]*Customer
	order     []CustomerID
	closed    bool
}

// Option 設定 Store。
type Option func(*Store)

// WithLogger 設定結構化日誌；預設不輸出。
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithObserver 設定帳務事件的接收者（指標、訊息佇列等）。
func WithObserver(o Observer) Option {
	return func(s *Store) { s.obs = o }
}

// New 建立沒有備份檔的記憶體帳本；Save 與 Close 不會寫入任何檔案。
func New(opts ...Option) *Store {
	s := &Store{
		log:       zap.NewNop(),
		customers: make(map[CustomerID]*Customer),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open 載入 path 指定的備份檔並回傳就緒的 Store。
// 檔案不存在時以空帳本啟動；檔案無法讀取或內容損毀時回傳 ErrPersistence
// （損毀時同時符合 storage.ErrCorruptFile）。
func Open(path string, opts ...Option) (*Store, error) {
	s := New(opts...)
	s.path = path

	snap, err := storage.LoadSnapshot(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.log.Info("no ledger file found, starting empty", zap.String("path", path))
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("%w: load %s: %w", ErrPersistence, path, err)
	}
	if err := s.restore(snap); err != nil {
		return nil, fmt.Errorf("%w: load %s: %w", ErrPersistence, path, err)
	}
	s.log.Info("ledger loaded", zap.String("path", path), zap.Int("customers", len(s.order)))
	return s, nil
}

// Path 回傳備份檔路徑；記憶體帳本為空字串。
func (s *Store) Path() string { return s.path }

// Save 將目前狀態寫入備份檔並覆蓋原檔。
func (s *Store) Save() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	return s.write(snap)
}

// Close 保存狀態並關閉帳本。即使保存失敗，帳本仍進入關閉狀態；重複呼叫不做任何事。
func (s *Store) Close() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	snap := s.snapshotLocked()
	s.mu.Unlock()
	return s.write(snap)
}

func (s *Store) write(snap storage.Snapshot) error {
	if s.path == "" {
		return nil
	}
	if err := storage.SaveSnapshot(s.path, snap); err != nil {
		s.log.Error("save ledger failed", zap.String("path", s.path), zap.Error(err))
		return fmt.Errorf("%w: save %s: %w", ErrPersistence, s.path, err)
	}
	s.log.Debug("ledger saved", zap.String("path", s.path), zap.Int("customers", len(snap.Customers)))
	return nil
}

// AddCustomer 新增客戶；ID 重複回傳 ErrDuplicateCustomer，名稱空白或含控制字元回傳 ErrInvalidName。
func (s *Store) AddCustomer(id CustomerID, name string) (*Customer, error) {
	if strings.TrimSpace(name) == "" || strings.ContainsFunc(name, unicode.IsControl) {
		return nil, ErrInvalidName
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	if _, ok := s.customers[id]; ok {
		return nil, fmt.Errorf("customer %d: %w", id, ErrDuplicateCustomer)
	}
	c := newCustomer(id, name)
	c.store = s
	s.customers[id] = c
	s.order = append(s.order, id)
	s.log.Debug("customer added", zap.Int64("customer_id", int64(id)))
	return c, nil
}

// Customer 依 ID 查詢客戶；不存在或帳本已關閉時 ok 為 false。
func (s *Store) Customer(id CustomerID) (*Customer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false
	}
	c, ok := s.customers[id]
	return c, ok
}

// Customers 依建立順序列出所有客戶摘要。
func (s *Store) Customers() ([]CustomerInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	out := make([]CustomerInfo, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.customers[id].Info())
	}
	return out, nil
}

// AddAccount 為客戶開戶。帳號在整個帳本中必須唯一。
func (s *Store) AddAccount(cid CustomerID, number AccountNumber, opening decimal.Decimal) (AccountInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return AccountInfo{}, ErrStoreClosed
	}
	c, err := s.customerLocked(cid)
	if err != nil {
		return AccountInfo{}, err
	}
	a, err := s.addAccountLocked(c, number, opening)
	if err != nil {
		return AccountInfo{}, err
	}
	return a.Info(), nil
}

// addAccount 為 Customer.AddAccount 的實作，與 AddAccount 做相同的檢查。
func (s *Store) addAccount(c *Customer, number AccountNumber, opening decimal.Decimal) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	return s.addAccountLocked(c, number, opening)
}

// addAccountLocked 確認帳號在整個帳本中未被使用後開戶；呼叫端須持有 s.mu 寫鎖。
func (s *Store) addAccountLocked(c *Customer, number AccountNumber, opening decimal.Decimal) (*Account, error) {
	if a, ok := s.findAccountLocked(number); ok {
		return nil, fmt.Errorf("account %d (customer %d): %w", number, a.Owner(), ErrDuplicateAccount)
	}
	return c.addAccount(number, opening)
}

// Accounts 列出客戶名下所有帳戶的餘額。
func (s *Store) Accounts(cid CustomerID) ([]AccountInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	c, err := s.customerLocked(cid)
	if err != nil {
		return nil, err
	}
	accts := c.Accounts()
	out := make([]AccountInfo, 0, len(accts))
	for _, a := range accts {
		out = append(out, a.Info())
	}
	return out, nil
}

// Balance 查詢單一帳戶餘額。
func (s *Store) Balance(cid CustomerID, number AccountNumber) (AccountInfo, error) {
	a, err := s.lookup(cid, number)
	if err != nil {
		return AccountInfo{}, err
	}
	return a.Info(), nil
}

// History 回傳帳戶的完整交易紀錄。
func (s *Store) History(cid CustomerID, number AccountNumber) ([]Transaction, error) {
	a, err := s.lookup(cid, number)
	if err != nil {
		return nil, err
	}
	return a.Transactions(), nil
}

// Statement 回傳帳戶餘額與交易紀錄。
func (s *Store) Statement(cid CustomerID, number AccountNumber) (Statement, error) {
	a, err := s.lookup(cid, number)
	if err != nil {
		return Statement{}, err
	}
	return a.Statement(), nil
}

// Deposit 存款至客戶名下的帳戶。
func (s *Store) Deposit(cid CustomerID, number AccountNumber, amount decimal.Decimal) (Transaction, error) {
	start := time.Now()
	tx, err := func() (Transaction, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		a, err := s.accountLocked(cid, number)
		if err != nil {
			return Transaction{}, err
		}
		return a.Deposit(amount)
	}()
	s.emit(Event{Kind: KindDeposit, Customer: cid, Account: number, Amount: amount, Ref: tx.Ref}, start, err)
	return tx, err
}

// Withdraw 自客戶名下的帳戶提款；餘額不足回傳 ErrInsufficientFunds。
func (s *Store) Withdraw(cid CustomerID, number AccountNumber, amount decimal.Decimal) (Transaction, error) {
	start := time.Now()
	tx, err := func() (Transaction, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		a, err := s.accountLocked(cid, number)
		if err != nil {
			return Transaction{}, err
		}
		return a.Withdraw(amount)
	}()
	s.emit(Event{Kind: KindWithdrawal, Customer: cid, Account: number, Amount: amount, Ref: tx.Ref}, start, err)
	return tx, err
}

// Transfer 自客戶名下的 from 帳戶轉帳至 to 帳戶。
// to 以帳號在整個帳本中查找，可屬於其他客戶。
func (s *Store) Transfer(cid CustomerID, from, to AccountNumber, amount decimal.Decimal) (out, in Transaction, err error) {
	start := time.Now()
	out, in, err = func() (Transaction, Transaction, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		src, err := s.accountLocked(cid, from)
		if err != nil {
			return Transaction{}, Transaction{}, err
		}
		dst, ok := s.findAccountLocked(to)
		if !ok {
			return Transaction{}, Transaction{}, fmt.Errorf("account %d: %w", to, ErrAccountNotFound)
		}
		return src.Transfer(dst, amount)
	}()
	s.emit(Event{Kind: KindTransfer, Customer: cid, Account: from, Counterparty: to, Amount: amount, Ref: out.Ref}, start, err)
	return out, in, err
}

func (s *Store) emit(e Event, start time.Time, err error) {
	e.Time = start
	e.Elapsed = time.Since(start)
	e.Err = err
	if err != nil {
		s.log.Debug("ledger operation rejected",
			zap.String("kind", string(e.Kind)),
			zap.Int64("customer_id", int64(e.Customer)),
			zap.Int64("account", int64(e.Account)),
			zap.Error(err))
	}
	if s.obs != nil {
		s.obs.Observe(e)
	}
}

// lookup 在讀鎖下解析帳戶，供唯讀查詢使用。
func (s *Store) lookup(cid CustomerID, number AccountNumber) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accountLocked(cid, number)
}

// accountLocked 解析客戶名下的帳戶；呼叫端須持有 s.mu。
func (s *Store) accountLocked(cid CustomerID, number AccountNumber) (*Account, error) {
	if s.closed {
		return nil, ErrStoreClosed
	}
	c, err := s.customerLocked(cid)
	if err != nil {
		return nil, err
	}
	a, ok := c.Account(number)
	if !ok {
		return nil, fmt.Errorf("account %d: %w", number, ErrAccountNotFound)
	}
	return a, nil
}

func (s *Store) customerLocked(cid CustomerID) (*Customer, error) {
	c, ok := s.customers[cid]
	if !ok {
		return nil, fmt.Errorf("customer %d: %w", cid, ErrCustomerNotFound)
	}
	return c, nil
}

// findAccountLocked 在所有客戶中依帳號查找帳戶；呼叫端須持有 s.mu。
func (s *Store) findAccountLocked(number AccountNumber) (*Account, bool) {
	for _, id := range s.order {
		if a, ok := s.customers[id].Account(number); ok {
			return a, true
		}
	}
	return nil, false
}
