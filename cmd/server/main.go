// cmd/server/main.go

// 帳本 HTTP 服務：提供客戶、帳戶、存提款與轉帳的 RESTful API。
// 啟動時載入備份檔，每次成功變更後（可關閉）與結束時保存狀態。

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"bankledger/internal/config"
	"bankledger/internal/events"
	"bankledger/internal/ledger"
	"bankledger/internal/metrics"
	"bankledger/internal/server"
)

func main() {
	cfg := config.Load()

	logger, err := config.NewLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.AppConfig, logger *zap.Logger) (err error) {
	observers := ledger.Observers{metrics.NewRecorder(prometheus.DefaultRegisterer)}
	if cfg.RabbitURL != "" {
		pub, err := events.Dial(cfg.RabbitURL, cfg.RabbitExchange, logger)
		if err != nil {
			return err
		}
		defer pub.Close()
		observers = append(observers, pub)
	} else {
		logger.Info("RABBITMQ_URL not set, ledger events disabled")
	}

	store, err := ledger.Open(cfg.DataFile, ledger.WithLogger(logger), ledger.WithObserver(observers))
	if err != nil {
		return err
	}
	// 任何離開路徑都嘗試保存
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to save ledger on close", zap.Error(cerr))
			if err == nil {
				err = cerr
			}
		}
	}()

	var persist func() error
	if cfg.SaveOnMutation {
		persist = store.Save
	}

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      server.NewServer(store, persist, logger).Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ledger server running",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("data_file", cfg.DataFile))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
