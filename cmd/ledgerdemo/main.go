// cmd/ledgerdemo/main.go

// 主控台示範：建立 Alice 與 Bob、存提款、轉帳並列出帳戶。
// 使用 -data 指定備份檔；重複執行時沿用既有的客戶與帳戶，交易接續累積。

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bankledger/internal/config"
	"bankledger/internal/ledger"
)

func main() {
	dataFile := flag.String("data", "customers.txt", "ledger backing file (.json selects the JSON snapshot format)")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	cfg := config.AppConfig{LogLevel: "warn"}
	if *verbose {
		cfg.LogLevel = "debug"
	}
	logger, err := config.NewLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	store, err := ledger.Open(*dataFile, ledger.WithLogger(logger))
	if err != nil {
		logger.Fatal("failed to open ledger", zap.String("path", *dataFile), zap.Error(err))
	}

	runErr := demo(os.Stdout, store)
	if err := store.Close(); err != nil {
		logger.Error("failed to save ledger", zap.Error(err))
		os.Exit(1)
	}
	if runErr != nil {
		logger.Error("demo failed", zap.Error(runErr))
		os.Exit(1)
	}
}

func demo(w io.Writer, s *ledger.Store) error {
	for _, c := range []struct {
		id   ledger.CustomerID
		name string
		acct ledger.AccountNumber
	}{
		{1001, "Alice", 2001},
		{1002, "Bob", 2002},
	} {
		if _, err := s.AddCustomer(c.id, c.name); err != nil && !errors.Is(err, ledger.ErrDuplicateCustomer) {
			return err
		}
		if _, err := s.AddAccount(c.id, c.acct, decimal.Zero); err != nil && !errors.Is(err, ledger.ErrDuplicateAccount) {
			return err
		}
	}

	if _, err := s.Deposit(1001, 2001, decimal.NewFromInt(500)); err != nil {
		return err
	}
	if _, err := s.Withdraw(1001, 2001, decimal.NewFromInt(100)); err != nil {
		return err
	}
	if err := viewAccounts(w, s, 1001); err != nil {
		return err
	}

	if _, _, err := s.Transfer(1001, 2001, 2002, decimal.NewFromInt(200)); err != nil {
		return err
	}
	if err := viewAccounts(w, s, 1001); err != nil {
		return err
	}
	return viewAccounts(w, s, 1002)
}

func viewAccounts(w io.Writer, s *ledger.Store, cid ledger.CustomerID) error {
	c, ok := s.Customer(cid)
	if !ok {
		return fmt.Errorf("customer %d: %w", cid, ledger.ErrCustomerNotFound)
	}
	fmt.Fprintf(w, "Accounts for Customer: %s\n", c.Name())
	accts, err := s.Accounts(cid)
	if err != nil {
		return err
	}
	for _, a := range accts {
		st, err := s.Statement(cid, a.Number)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, st.AccountInfo)
		fmt.Fprintln(w, "Transaction History:")
		for _, t := range st.Transactions {
			fmt.Fprintln(w, t)
		}
	}
	return nil
}
