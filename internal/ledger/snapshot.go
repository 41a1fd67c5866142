// internal/ledger/snapshot.go
//
// Store 與 storage.Snapshot 之間的轉換。
// 還原時逐筆重播交易歷史並驗證：序號連續、金額為正、種類與方向相符、
// 過程中餘額不為負、最後餘額等於開戶餘額加總帶符號金額。任一不符即視為檔案損毀。

package ledger

import (
	"fmt"
	"strings"

	"bankledger/internal/storage"
)

// Snapshot 匯出目前帳本狀態（含完整交易歷史）。
func (s *Store) Snapshot() storage.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() storage.Snapshot {
	snap := storage.Snapshot{Meta: storage.Meta{Note: "bankledger state"}}
	for _, id := range s.order {
		c := s.customers[id]
		pc := storage.PersistCustomer{ID: int64(id), Name: c.Name()}
		for _, a := range c.Accounts() {
			st := a.Statement()
			pa := storage.PersistAccount{
				Number:  int64(st.Number),
				Opening: st.Opening,
				Balance: st.Balance,
			}
			for _, t := range st.Transactions {
				pa.Transactions = append(pa.Transactions, storage.PersistTransaction{
					Seq:          t.Seq,
					Kind:         string(t.Kind),
					Direction:    string(t.Direction),
					Amount:       t.Amount,
					Time:         t.Time,
					Counterparty: int64(t.Counterparty),
					Ref:          t.Ref,
				})
			}
			pc.Accounts = append(pc.Accounts, pa)
		}
		snap.Customers = append(snap.Customers, pc)
	}
	return snap
}

// restore 由快照重建帳本；只在 Open 期間、Store 尚未對外公開時呼叫。
func (s *Store) restore(snap storage.Snapshot) error {
	seen := make(map[AccountNumber]CustomerID)
	for _, pc := range snap.Customers {
		cid := CustomerID(pc.ID)
		if _, dup := s.customers[cid]; dup {
			return corrupt("duplicate customer %d", cid)
		}
		if strings.TrimSpace(pc.Name) == "" {
			return corrupt("customer %d has an empty name", cid)
		}
		c := newCustomer(cid, pc.Name)
		c.store = s
		for _, pa := range pc.Accounts {
			num := AccountNumber(pa.Number)
			if owner, dup := seen[num]; dup {
				return corrupt("duplicate account %d (customers %d and %d)", num, owner, cid)
			}
			a, err := restoreAccount(cid, pa)
			if err != nil {
				return err
			}
			seen[num] = cid
			c.attachLocked(a)
		}
		s.customers[cid] = c
		s.order = append(s.order, cid)
	}
	return nil
}

func restoreAccount(owner CustomerID, pa storage.PersistAccount) (*Account, error) {
	num := AccountNumber(pa.Number)
	if pa.Opening.IsNegative() {
		return nil, corrupt("account %d: negative opening balance %s", num, pa.Opening)
	}
	a := newAccount(owner, num, pa.Opening)
	running := pa.Opening
	for i, pt := range pa.Transactions {
		if pt.Seq != i+1 {
			return nil, corrupt("account %d: transaction %d has id %d", num, i+1, pt.Seq)
		}
		kind, err := ParseKind(pt.Kind)
		if err != nil {
			return nil, corrupt("account %d transaction %d: %v", num, pt.Seq, err)
		}
		dir, err := ParseDirection(pt.Direction)
		if err != nil {
			return nil, corrupt("account %d transaction %d: %v", num, pt.Seq, err)
		}
		if (kind == KindDeposit && dir != DirectionIn) || (kind == KindWithdrawal && dir != DirectionOut) {
			return nil, corrupt("account %d transaction %d: %s cannot be %s", num, pt.Seq, kind, dir)
		}
		if !pt.Amount.IsPositive() {
			return nil, corrupt("account %d transaction %d: non-positive amount %s", num, pt.Seq, pt.Amount)
		}
		t := Transaction{
			Seq:          pt.Seq,
			Kind:         kind,
			Direction:    dir,
			Amount:       pt.Amount,
			Time:         pt.Time,
			Counterparty: AccountNumber(pt.Counterparty),
			Ref:          pt.Ref,
		}
		running = running.Add(t.Signed())
		if running.IsNegative() {
			return nil, corrupt("account %d: balance negative after transaction %d", num, pt.Seq)
		}
		a.txs = append(a.txs, t)
	}
	if !running.Equal(pa.Balance) {
		return nil, corrupt("account %d: balance %s does not match history total %s", num, pa.Balance, running)
	}
	a.balance = pa.Balance
	return a, nil
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", storage.ErrCorruptFile, fmt.Sprintf(format, args...))
}
