// internal/ledger/account_test.go
//
// Account 與 Customer 的單元測試：存提款、轉帳、餘額不變量、交易序號與重複帳號。

package ledger

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// historyTotal 為 opening 加上所有帶符號交易金額。
func historyTotal(a *Account) decimal.Decimal {
	sum := a.Opening()
	for _, t := range a.Transactions() {
		sum = sum.Add(t.Signed())
	}
	return sum
}

func TestAccountDepositWithdraw(t *testing.T) {
	a := newAccount(1001, 2001, decimal.Zero)

	tx, err := a.Deposit(d(500))
	require.NoError(t, err)
	assert.Equal(t, 1, tx.Seq)
	assert.Equal(t, KindDeposit, tx.Kind)
	assert.Equal(t, DirectionIn, tx.Direction)
	assert.False(t, tx.Time.IsZero())

	tx, err = a.Withdraw(d(100))
	require.NoError(t, err)
	assert.Equal(t, 2, tx.Seq)
	assert.Equal(t, KindWithdrawal, tx.Kind)
	assert.True(t, a.Balance().Equal(d(400)), "balance=%s", a.Balance())

	_, err = a.Withdraw(d(1000))
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.True(t, a.Balance().Equal(d(400)))
	assert.Len(t, a.Transactions(), 2)
}

func TestAccountRejectsNonPositiveAmounts(t *testing.T) {
	a := newAccount(1, 10, d(100))
	b := newAccount(1, 11, decimal.Zero)

	for _, amt := range []decimal.Decimal{decimal.Zero, d(-5)} {
		_, err := a.Deposit(amt)
		assert.ErrorIs(t, err, ErrInvalidAmount)
		_, err = a.Withdraw(amt)
		assert.ErrorIs(t, err, ErrInvalidAmount)
		_, _, err = a.Transfer(b, amt)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	}
	assert.True(t, a.Balance().Equal(d(100)))
	assert.Empty(t, a.Transactions())
	assert.Empty(t, b.Transactions())
}

func TestAccountTransfer(t *testing.T) {
	a := newAccount(1001, 2001, decimal.Zero)
	b := newAccount(1002, 2002, decimal.Zero)
	_, err := a.Deposit(d(400))
	require.NoError(t, err)
	_, err = b.Deposit(d(5))
	require.NoError(t, err)

	out, in, err := a.Transfer(b, d(200))
	require.NoError(t, err)

	assert.True(t, a.Balance().Equal(d(200)))
	assert.True(t, b.Balance().Equal(d(205)))

	// 兩邊序號各自獨立，Ref 相同
	assert.Equal(t, 2, out.Seq)
	assert.Equal(t, 2, in.Seq)
	assert.Equal(t, out.Ref, in.Ref)
	assert.Equal(t, DirectionOut, out.Direction)
	assert.Equal(t, DirectionIn, in.Direction)
	assert.Equal(t, AccountNumber(2002), out.Counterparty)
	assert.Equal(t, AccountNumber(2001), in.Counterparty)
}

func TestAccountTransferRejected(t *testing.T) {
	a := newAccount(1, 10, d(50))
	b := newAccount(2, 20, d(7))

	_, _, err := a.Transfer(b, d(51))
	require.ErrorIs(t, err, ErrInsufficientFunds)
	_, _, err = a.Transfer(a, d(1))
	require.ErrorIs(t, err, ErrSameAccount)
	_, _, err = a.Transfer(nil, d(1))
	require.ErrorIs(t, err, ErrAccountNotFound)

	assert.True(t, a.Balance().Equal(d(50)))
	assert.True(t, b.Balance().Equal(d(7)))
	assert.Empty(t, a.Transactions())
	assert.Empty(t, b.Transactions())
}

func TestAccountBalanceMatchesHistory(t *testing.T) {
	a := newAccount(1, 10, d(30))
	b := newAccount(2, 20, decimal.Zero)

	ops := []func() error{
		func() error { _, err := a.Deposit(decimal.RequireFromString("12.75")); return err },
		func() error { _, err := a.Withdraw(d(1000)); return err },
		func() error { _, _, err := a.Transfer(b, decimal.RequireFromString("20.5")); return err },
		func() error { _, err := b.Withdraw(d(3)); return err },
		func() error { _, _, err := b.Transfer(a, d(100)); return err },
		func() error { _, _, err := b.Transfer(a, decimal.RequireFromString("0.5")); return err },
	}
	for _, op := range ops {
		if err := op(); err != nil && !errors.Is(err, ErrInsufficientFunds) {
			t.Fatalf("unexpected error: %v", err)
		}
		assert.True(t, a.Balance().Equal(historyTotal(a)), "a balance=%s history=%s", a.Balance(), historyTotal(a))
		assert.True(t, b.Balance().Equal(historyTotal(b)), "b balance=%s history=%s", b.Balance(), historyTotal(b))
		assert.False(t, a.Balance().IsNegative())
		assert.False(t, b.Balance().IsNegative())
	}
	assert.True(t, a.Balance().Add(b.Balance()).Equal(decimal.RequireFromString("39.75")))
}

// TestConcurrentOppositeTransfers 雙方同時互轉，總額不變、無負餘額、不死結。
func TestConcurrentOppositeTransfers(t *testing.T) {
	a := newAccount(1, 10, d(1000))
	b := newAccount(2, 20, d(1000))

	const n = 200
	var wg sync.WaitGroup
	wg.Add(2 * n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, _, err := a.Transfer(b, d(1)); err != nil {
				t.Errorf("a->b: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, _, err := b.Transfer(a, d(1)); err != nil {
				t.Errorf("b->a: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.True(t, a.Balance().Add(b.Balance()).Equal(d(2000)))
	assert.Len(t, a.Transactions(), 2*n)
	assert.Len(t, b.Transactions(), 2*n)
	assert.True(t, a.Balance().Equal(historyTotal(a)))
}

func TestTransactionRendering(t *testing.T) {
	a := newAccount(1, 10, decimal.Zero)
	tx, err := a.Deposit(d(500))
	require.NoError(t, err)

	line := tx.Line()
	parts := strings.Split(line, ",")
	require.Len(t, parts, 4)
	assert.Equal(t, "1", parts[0])
	assert.Equal(t, "Deposit", parts[1])
	assert.Equal(t, "500.00", parts[2])

	assert.Contains(t, tx.String(), "Transaction ID: 1, Type: Deposit, Amount: 500.00")
	assert.Equal(t, "Account Number: 10, Balance: $500.00", a.Info().String())
	assert.Equal(t, "10,500.00", a.Details())
}

func TestCustomerAccounts(t *testing.T) {
	c := newCustomer(1001, "Alice")

	a, err := c.AddAccount(2001)
	require.NoError(t, err)
	assert.True(t, a.Balance().IsZero())

	_, err = c.AddAccount(2003, d(75))
	require.NoError(t, err)

	_, err = c.AddAccount(2001)
	require.ErrorIs(t, err, ErrDuplicateAccount)
	_, err = c.AddAccount(2004, d(-1))
	require.ErrorIs(t, err, ErrInvalidAmount)

	got, ok := c.Account(2003)
	require.True(t, ok)
	assert.True(t, got.Balance().Equal(d(75)))
	_, ok = c.Account(9999)
	assert.False(t, ok)

	var nums []AccountNumber
	for _, a := range c.Accounts() {
		nums = append(nums, a.Number())
	}
	assert.Equal(t, []AccountNumber{2001, 2003}, nums)
	assert.Equal(t, CustomerInfo{ID: 1001, Name: "Alice", Accounts: []AccountNumber{2001, 2003}}, c.Info())
}

func TestParseKindAndDirection(t *testing.T) {
	for _, k := range []Kind{KindDeposit, KindWithdrawal, KindTransfer} {
		got, err := ParseKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("Refund")
	assert.Error(t, err)

	_, err = ParseDirection("sideways")
	assert.Error(t, err)
	dir, err := ParseDirection("out")
	require.NoError(t, err)
	assert.Equal(t, DirectionOut, dir)
}
