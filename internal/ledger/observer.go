// internal/ledger/observer.go

package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event 描述一次存款、提款或轉帳的結果，失敗時 Err 不為 nil。
// 轉帳事件的 Account 為來源帳戶，Counterparty 為目標帳戶。
type Event struct {
	Kind         Kind
	Customer     CustomerID
	Account      AccountNumber
	Counterparty AccountNumber
	Amount       decimal.Decimal
	Ref          uuid.UUID
	Time         time.Time
	Elapsed      time.Duration
	Err          error
}

// Observer 於每次帳務操作結束後被呼叫（已釋放所有鎖）。實作不應阻塞。
type Observer interface {
	Observe(Event)
}

// ObserverFunc 讓一般函式滿足 Observer。
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

// Observers 將事件依序轉送給多個 Observer。
type Observers []Observer

func (obs Observers) Observe(e Event) {
	for _, o := range obs {
		if o != nil {
			o.Observe(e)
		}
	}
}
