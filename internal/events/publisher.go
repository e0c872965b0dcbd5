package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Event names emitted on the stock topic.
const (
	OrderCreated    = "order.created"
	OrderStatusSet  = "order.status_changed"
	StockAdjusted   = "stock.adjusted"
	StockTransfered = "stock.transferred"
	POReceived      = "purchase_order.received"
)

// Envelope is the wire shape of every published event.
type Envelope struct {
	Event      string    `json:"event"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// Publisher buffers events in memory and writes them to Kafka from a single
// goroutine, so request handlers never block on the broker. A nil *Publisher
// is valid and drops everything, which is how deployments without Kafka run.
type Publisher struct {
	w       *kafka.Writer
	log     *zap.Logger
	inbox   chan kafka.Message
	closeCh chan struct{}
}

func NewPublisher(brokers []string, topic string, buf int, log *zap.Logger) *Publisher {
	if len(brokers) == 0 {
		return nil
	}
	return &Publisher{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        true,
		},
		log:     log,
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

// Start runs the writer loop until ctx is canceled, then flushes the buffer.
// The inbox is never closed: handlers may still be publishing while shutdown
// drains, and closing under them would panic mid-request.
func (p *Publisher) Start(ctx context.Context) {
	if p == nil {
		return
	}
	go func() {
		defer close(p.closeCh)
		for {
			select {
			case <-ctx.Done():
				p.drain()
				_ = p.w.Close()
				return
			case m := <-p.inbox:
				p.write(m)
			}
		}
	}()
}

// drain flushes whatever is buffered without waiting for more.
func (p *Publisher) drain() {
	for {
		select {
		case m := <-p.inbox:
			p.write(m)
		default:
			return
		}
	}
}

func (p *Publisher) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		p.log.Warn("event publish failed",
			zap.String("key", string(m.Key)),
			zap.Error(err))
	}
}

// Publish enqueues one event. It never blocks or panics in the caller: when
// the buffer is full or the publisher has stopped, the event is dropped with
// a warning. Events are best-effort signals and the database stays the source
// of truth.
func (p *Publisher) Publish(event, key string, payload any) {
	if p == nil {
		return
	}
	value, err := json.Marshal(Envelope{
		Event:      event,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		p.log.Warn("event marshal failed", zap.String("event", event), zap.Error(err))
		return
	}
	select {
	case <-p.closeCh:
		p.log.Warn("publisher stopped, dropping event", zap.String("event", event), zap.String("key", key))
		return
	default:
	}
	select {
	case p.inbox <- kafka.Message{Key: []byte(key), Value: value, Time: time.Now()}:
	default:
		p.log.Warn("event buffer full, dropping", zap.String("event", event), zap.String("key", key))
	}
}

// WaitClosed blocks until the writer loop has flushed and exited.
func (p *Publisher) WaitClosed() {
	if p == nil {
		return
	}
	<-p.closeCh
}
