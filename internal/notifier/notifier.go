// Package notifier publishes order lifecycle events to Kafka.
// Publishing is fire-and-forget: a full buffer or a broker outage is
// logged and the event is dropped, never surfaced to the caller.
package notifier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/KretovDmitry/order-store-service/pkg/logger"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Topic carrying every order lifecycle event. The partition key is
// the order ID so all events of one order keep their relative order.
const Topic = "order.events"

// Envelope wraps every published event.
type Envelope struct {
	EventID      string          `json:"event_id"`
	EventType    string          `json:"event_type"`
	EventVersion int             `json:"event_version"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Producer     string          `json:"producer"`
	OrderID      string          `json:"order_id"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

type Producer struct {
	w       *kafka.Writer
	inbox   chan kafka.Message
	closeCh chan struct{}
	service string
	logger  logger.Logger
}

func NewProducer(brokers []string, buf int, service string, logger logger.Logger) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
		service: service,
		logger:  logger,
	}
}

// Start runs the single writer goroutine draining the inbox. On
// context cancellation the remaining buffered messages are flushed
// before the writer closes.
func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		for {
			select {
			case <-ctx.Done():
				close(p.inbox)
				for m := range p.inbox {
					p.write(m)
				}
				if err := p.w.Close(); err != nil {
					p.logger.Errorf("close kafka writer: %s", err)
				}
				return
			case m, ok := <-p.inbox:
				if !ok {
					if err := p.w.Close(); err != nil {
						p.logger.Errorf("close kafka writer: %s", err)
					}
					return
				}
				p.write(m)
			}
		}
	}()
}

func (p *Producer) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.w.WriteMessages(ctx, m); err != nil {
		p.logger.Errorf("publish %s: %s", string(m.Key), err)
	}
}

// Notify enqueues one lifecycle event. It never blocks: when the
// buffer is full the event is dropped with a log line.
func (p *Producer) Notify(eventType, orderID string, payload interface{}) {
	env := Envelope{
		EventID:      uuid.NewString(),
		EventType:    eventType,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     p.service,
		OrderID:      orderID,
	}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			p.logger.Errorf("marshal %s payload: %s", eventType, err)
			return
		}
		env.Payload = data
	}

	value, err := json.Marshal(env)
	if err != nil {
		p.logger.Errorf("marshal %s envelope: %s", eventType, err)
		return
	}

	msg := kafka.Message{
		Key:   []byte(orderID),
		Value: value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "x-event-type", Value: []byte(eventType)},
			{Key: "x-event-version", Value: []byte("1")},
		},
	}

	select {
	case p.inbox <- msg:
	default:
		p.logger.Warnf("event buffer full, dropping %s for order %s", eventType, orderID)
	}
}

// WaitClosed blocks until the writer goroutine has flushed and exited.
func (p *Producer) WaitClosed() { <-p.closeCh }
