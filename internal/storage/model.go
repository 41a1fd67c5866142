// internal/storage/model.go
//
// 定義持久化層的資料模型。
// 此層只描述「存什麼」，不涉入帳本的商業規則；
// 帳本 (ledger) 負責在 Snapshot 與記憶體物件之間轉換並檢查一致性。
package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FormatVersion 為目前的快照結構版本，文字格式的標頭與 JSON 的 _meta.version 皆使用此值。
const FormatVersion = 1

// Meta 為快照的中繼資料。
type Meta struct {
	Storage   string    `json:"storage"`        // 儲存類型，例如 "json_snapshot"、"text_ledger"
	Version   int       `json:"version"`        // 結構版本號
	Timestamp time.Time `json:"timestamp"`      // 快照建立時間
	Note      string    `json:"note,omitempty"` // 備註
}

// PersistTransaction 為單筆交易的序列化格式。
// Kind 與 Direction 以字串保存，由 ledger 負責解析與驗證。
type PersistTransaction struct {
	Seq          int             `json:"id"`
	Kind         string          `json:"type"`
	Direction    string          `json:"direction"`
	Amount       decimal.Decimal `json:"amount"`
	Time         time.Time       `json:"time"`
	Counterparty int64           `json:"counter_account,omitempty"`
	Ref          uuid.UUID       `json:"ref"`
}

// PersistAccount 為帳戶的序列化格式，含開戶餘額、目前餘額與完整交易歷史。
type PersistAccount struct {
	Number       int64                `json:"number"`
	Opening      decimal.Decimal      `json:"opening"`
	Balance      decimal.Decimal      `json:"balance"`
	Transactions []PersistTransaction `json:"transactions"`
}

// PersistCustomer 為客戶的序列化格式；Accounts 依建立順序排列。
type PersistCustomer struct {
	ID       int64            `json:"id"`
	Name     string           `json:"name"`
	Accounts []PersistAccount `json:"accounts"`
}

// Snapshot 為帳本狀態的完整快照，用於整體載入與保存。
type Snapshot struct {
	Meta      Meta              `json:"_meta"`
	Customers []PersistCustomer `json:"customers"`
}
