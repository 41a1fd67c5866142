// internal/events/publisher.go
//
// Package events 將成功的帳務操作以 JSON 訊息發佈到 RabbitMQ topic exchange。
// Routing key 為 ledger.<kind>，例如 ledger.deposit、ledger.transfer。
// Observe 只把事件放入佇列，由背景 worker 發佈；佇列滿或發佈失敗時記錄日誌後丟棄，
// 帳務操作不會因 broker 阻塞而變慢。
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bankledger/internal/ledger"
)

const (
	publishTimeout = 5 * time.Second
	queueSize      = 1024
)

// Message 為發佈到 exchange 的訊息內容。
type Message struct {
	EventID        string          `json:"eventId"`
	EventType      string          `json:"eventType"`
	EventTimestamp string          `json:"eventTimestamp"`
	CustomerID     int64           `json:"customerId"`
	Account        int64           `json:"account"`
	Counterparty   int64           `json:"counterparty,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Ref            string          `json:"ref"`
}

// RoutingKey 回傳事件種類對應的 routing key。
func RoutingKey(k ledger.Kind) string {
	return "ledger." + strings.ToLower(string(k))
}

// NewMessage 由帳本事件組出訊息，每次呼叫產生新的 EventID。
func NewMessage(e ledger.Event) Message {
	return Message{
		EventID:        uuid.NewString(),
		EventType:      RoutingKey(e.Kind),
		EventTimestamp: e.Time.UTC().Format(time.RFC3339Nano),
		CustomerID:     int64(e.Customer),
		Account:        int64(e.Account),
		Counterparty:   int64(e.Counterparty),
		Amount:         e.Amount,
		Ref:            e.Ref.String(),
	}
}

// channel 為 Publisher 用到的 *amqp.Channel 方法。
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher 實作 ledger.Observer。
type Publisher struct {
	mu       sync.Mutex // 同一 channel 的發佈需序列化
	conn     *amqp.Connection
	ch       channel
	exchange string
	timeout  time.Duration
	log      *zap.Logger

	stateMu sync.RWMutex // 保護 closed 與 queue 的關閉
	closed  bool
	queue   chan ledger.Event
	done    chan struct{}
}

// Dial 連線至 RabbitMQ 並宣告 durable topic exchange。
func Dial(url, exchange string, log *zap.Logger) (*Publisher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	log.Info("RabbitMQ publisher initialized", zap.String("exchange", exchange))
	p := newPublisher(ch, exchange, log)
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, exchange string, log *zap.Logger) *Publisher {
	return newPublisherWith(ch, exchange, log, queueSize, publishTimeout)
}

func newPublisherWith(ch channel, exchange string, log *zap.Logger, size int, timeout time.Duration) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Publisher{
		ch:       ch,
		exchange: exchange,
		timeout:  timeout,
		log:      log,
		queue:    make(chan ledger.Event, size),
		done:     make(chan struct{}),
	}
	go p.run()
	return p
}

// run 依序發佈佇列中的事件，直到佇列被 Close 關閉並清空。
func (p *Publisher) run() {
	defer close(p.done)
	for e := range p.queue {
		if err := p.Publish(context.Background(), e); err != nil {
			p.log.Warn("publish ledger event failed",
				zap.String("kind", string(e.Kind)),
				zap.String("ref", e.Ref.String()),
				zap.Error(err))
		}
	}
}

// Observe 將成功的操作放入發佈佇列後立即返回；失敗的操作不發佈。
func (p *Publisher) Observe(e ledger.Event) {
	if e.Err != nil {
		return
	}
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- e:
	default:
		p.log.Warn("ledger event queue full, event dropped",
			zap.String("kind", string(e.Kind)),
			zap.String("ref", e.Ref.String()))
	}
}

// Publish 同步發佈單一事件。
func (p *Publisher) Publish(ctx context.Context, e ledger.Event) error {
	msg := NewMessage(e)
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(ctx,
		p.exchange,    // exchange
		msg.EventType, // routing key
		false,         // mandatory
		false,         // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.EventID,
			Timestamp:    e.Time,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Close 停止接收事件，等待佇列中剩餘的事件發佈完畢後關閉 channel 與連線。
// 重複呼叫只回傳 nil。
func (p *Publisher) Close() error {
	p.stateMu.Lock()
	if p.closed {
		p.stateMu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.stateMu.Unlock()
	<-p.done

	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
