// internal/storage/textstore.go
//
// 行導向的文字備份檔格式（預設）。每行一筆 CSV 記錄，第一欄為記錄標籤：
//
//	L,<version>
//	C,<customerID>,<name>
//	A,<accountNumber>,<opening>,<balance>
//	T,<seq>,<kind>,<direction>,<amount>,<time RFC3339Nano>,<counterparty>,<ref>
//
// A 屬於前一筆 C，T 屬於前一筆 A。名稱含逗號或引號時由 CSV 自動加引號。
// 解析時逐欄檢查欄位數與型別，任何錯誤都附上行號並包裝為 ErrCorruptFile。

package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const textStorage = "text_ledger"

const (
	tagHeader      = "L"
	tagCustomer    = "C"
	tagAccount     = "A"
	tagTransaction = "T"
)

// 各記錄的欄位數（含標籤）。
var fieldCount = map[string]int{
	tagHeader:      2,
	tagCustomer:    3,
	tagAccount:     4,
	tagTransaction: 8,
}

func encodeText(w io.Writer, snap Snapshot) error {
	cw := csv.NewWriter(w)
	write := func(rec ...string) {
		// csv.Writer 會記住第一個錯誤，最後由 Error() 統一回報
		_ = cw.Write(rec)
	}
	write(tagHeader, strconv.Itoa(FormatVersion))
	for _, c := range snap.Customers {
		write(tagCustomer, strconv.FormatInt(c.ID, 10), c.Name)
		for _, a := range c.Accounts {
			write(tagAccount, strconv.FormatInt(a.Number, 10), a.Opening.String(), a.Balance.String())
			for _, t := range a.Transactions {
				write(tagTransaction,
					strconv.Itoa(t.Seq),
					t.Kind,
					t.Direction,
					t.Amount.String(),
					t.Time.UTC().Format(time.RFC3339Nano),
					strconv.FormatInt(t.Counterparty, 10),
					t.Ref.String(),
				)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func decodeText(r io.Reader) (Snapshot, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.Comment = '#'

	snap := Snapshot{Meta: Meta{Storage: textStorage}}
	var (
		cust       *PersistCustomer
		acct       *PersistAccount
		seenHeader bool
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Snapshot{}, fmt.Errorf("%w: %v", ErrCorruptFile, err)
		}
		line, _ := cr.FieldPos(0)
		bad := func(format string, args ...any) error {
			return fmt.Errorf("%w: line %d: %s", ErrCorruptFile, line, fmt.Sprintf(format, args...))
		}

		tag := rec[0]
		want, ok := fieldCount[tag]
		if !ok {
			return Snapshot{}, bad("unknown record tag %q", tag)
		}
		if len(rec) != want {
			return Snapshot{}, bad("record %s has %d fields, want %d", tag, len(rec), want)
		}
		if !seenHeader && tag != tagHeader {
			return Snapshot{}, bad("missing %s header", tagHeader)
		}

		switch tag {
		case tagHeader:
			if seenHeader {
				return Snapshot{}, bad("duplicate header")
			}
			v, err := strconv.Atoi(rec[1])
			if err != nil || v != FormatVersion {
				return Snapshot{}, bad("unsupported format version %q", rec[1])
			}
			snap.Meta.Version = v
			seenHeader = true

		case tagCustomer:
			id, err := strconv.ParseInt(rec[1], 10, 64)
			if err != nil {
				return Snapshot{}, bad("customer id: %v", err)
			}
			snap.Customers = append(snap.Customers, PersistCustomer{ID: id, Name: rec[2]})
			cust = &snap.Customers[len(snap.Customers)-1]
			acct = nil

		case tagAccount:
			if cust == nil {
				return Snapshot{}, bad("account record before any customer")
			}
			num, err := strconv.ParseInt(rec[1], 10, 64)
			if err != nil {
				return Snapshot{}, bad("account number: %v", err)
			}
			opening, err := decimal.NewFromString(rec[2])
			if err != nil {
				return Snapshot{}, bad("opening balance: %v", err)
			}
			balance, err := decimal.NewFromString(rec[3])
			if err != nil {
				return Snapshot{}, bad("balance: %v", err)
			}
			cust.Accounts = append(cust.Accounts, PersistAccount{Number: num, Opening: opening, Balance: balance})
			acct = &cust.Accounts[len(cust.Accounts)-1]

		case tagTransaction:
			if acct == nil {
				return Snapshot{}, bad("transaction record before any account")
			}
			t, err := parseTransaction(rec)
			if err != nil {
				return Snapshot{}, bad("%v", err)
			}
			acct.Transactions = append(acct.Transactions, t)
		}
	}
	if !seenHeader {
		// 空檔視為空帳本
		snap.Meta.Version = FormatVersion
	}
	return snap, nil
}

func parseTransaction(rec []string) (PersistTransaction, error) {
	seq, err := strconv.Atoi(rec[1])
	if err != nil {
		return PersistTransaction{}, fmt.Errorf("transaction id: %w", err)
	}
	amount, err := decimal.NewFromString(rec[4])
	if err != nil {
		return PersistTransaction{}, fmt.Errorf("transaction amount: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, rec[5])
	if err != nil {
		return PersistTransaction{}, fmt.Errorf("transaction time: %w", err)
	}
	counter, err := strconv.ParseInt(rec[6], 10, 64)
	if err != nil {
		return PersistTransaction{}, fmt.Errorf("transaction counterparty: %w", err)
	}
	ref, err := uuid.Parse(rec[7])
	if err != nil {
		return PersistTransaction{}, fmt.Errorf("transaction ref: %w", err)
	}
	return PersistTransaction{
		Seq:          seq,
		Kind:         rec[2],
		Direction:    rec[3],
		Amount:       amount,
		Time:         ts,
		Counterparty: counter,
		Ref:          ref,
	}, nil
}
