// internal/config/config.go
//
// 服務設定：由環境變數（或 .env）讀取，未設定時使用預設值。
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// AppConfig 為 cmd/server 啟動所需的全部設定。
type AppConfig struct {
	DataFile       string // 備份檔路徑；副檔名 .json 時使用 JSON 快照
	HTTPAddr       string
	LogLevel       string // debug / info / warn / error
	RabbitURL      string // 空字串表示不發佈事件
	RabbitExchange string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	SaveOnMutation bool // 每次成功變更後立即寫檔
}

// Load 讀取 .env（若存在）後組出設定。.env 不會覆蓋已存在的環境變數。
func Load() AppConfig {
	_ = godotenv.Load()

	return AppConfig{
		DataFile:       getEnv("LEDGER_DATA_FILE", "customers.txt"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "info")),
		RabbitURL:      getEnv("RABBITMQ_URL", ""),
		RabbitExchange: getEnv("RABBITMQ_EXCHANGE", "ledger.events"),
		ReadTimeout:    getEnvAsDuration("HTTP_READ_TIMEOUT", 5*time.Second),
		WriteTimeout:   getEnvAsDuration("HTTP_WRITE_TIMEOUT", 10*time.Second),
		SaveOnMutation: getEnvAsBool("SAVE_ON_MUTATION", true),
	}
}

// NewLogger 依 LogLevel 建立 zap logger：debug 使用開發模式輸出，其餘為 JSON 格式。
func NewLogger(cfg AppConfig) (*zap.Logger, error) {
	if cfg.LogLevel == "debug" {
		return zap.NewDevelopment()
	}
	zc := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return fallback
}
