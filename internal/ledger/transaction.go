// internal/ledger/transaction.go

package ledger

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CustomerID 為客戶在帳本中的唯一識別碼。
type CustomerID int64

// AccountNumber 為帳號；在整個帳本內唯一。
type AccountNumber int64

// Kind 為交易種類。
type Kind string

const (
	KindDeposit    Kind = "Deposit"
	KindWithdrawal Kind = "Withdrawal"
	KindTransfer   Kind = "Transfer"
)

// ParseKind 將文字轉為 Kind；未知種類回傳錯誤。
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindDeposit, KindWithdrawal, KindTransfer:
		return k, nil
	}
	return "", fmt.Errorf("unknown transaction kind %q", s)
}

// Direction 表示資金流向：in 為入帳，out 為出帳。
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// ParseDirection 將文字轉為 Direction。
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case DirectionIn, DirectionOut:
		return d, nil
	}
	return "", fmt.Errorf("unknown direction %q", s)
}

// Transaction 為單筆帳務紀錄，建立後不可變更。
// Seq 在所屬帳戶內由 1 起連續遞增；同一筆轉帳的兩邊以相同 Ref 關聯。
type Transaction struct {
	Seq          int             `json:"id"`
	Kind         Kind            `json:"type"`
	Direction    Direction       `json:"direction"`
	Amount       decimal.Decimal `json:"amount"`
	Time         time.Time       `json:"time"`
	Counterparty AccountNumber   `json:"counter_account,omitempty"`
	Ref          uuid.UUID       `json:"ref"`
}

// Signed 回傳帶符號金額：入帳為正、出帳為負。
func (t Transaction) Signed() decimal.Decimal {
	if t.Direction == DirectionOut {
		return t.Amount.Neg()
	}
	return t.Amount
}

// String 回傳人類可讀的單行描述。
func (t Transaction) String() string {
	return fmt.Sprintf("Transaction ID: %d, Type: %s, Amount: %s, Date: %s",
		t.Seq, t.Kind, t.Amount.StringFixed(2), t.Time.Format(time.RFC1123))
}

// Line 回傳匯出用的 id,kind,amount,timestamp 格式（timestamp 為 Unix 秒）。
func (t Transaction) Line() string {
	return strconv.Itoa(t.Seq) + "," + string(t.Kind) + "," + t.Amount.StringFixed(2) + "," +
		strconv.FormatInt(t.Time.Unix(), 10)
}
