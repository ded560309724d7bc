// Package kafka publishes chat activity events to a broker topic. Delivery
// is best-effort; downstream consumers (notification fan-out, analytics)
// tolerate gaps.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"adopet/internal/app/policies"
	domainchat "adopet/internal/domain/chat"
)

// Publisher emits chat activity events through a sarama sync producer.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewPublisher connects an idempotent sync producer.
func NewPublisher(brokers []string, topic string, cfg *sarama.Config) (*Publisher, error) {
	if topic == "" {
		return nil, fmt.Errorf("kafka: topic is required")
	}
	if cfg == nil {
		cfg = sarama.NewConfig()
	}
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Producer.Return.Successes = true
	cfg.Net.MaxOpenRequests = 1
	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka: create producer: %w", err)
	}
	return &Publisher{producer: producer, topic: topic}, nil
}

type envelope struct {
	Event       string    `json:"event"`
	Aggregate   string    `json:"aggregate_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Correlation string    `json:"correlation_id,omitempty"`
	Sender      string    `json:"sender_id,omitempty"`
	Kind        string    `json:"kind,omitempty"`
	Owner       string    `json:"owner_id,omitempty"`
}

// Publish sends one event keyed by conversation id so per-conversation
// ordering is preserved within a partition.
func (p *Publisher) Publish(ctx context.Context, event domainchat.DomainEvent) error {
	env := envelope{
		Event:      event.EventName(),
		Aggregate:  event.AggregateID(),
		OccurredAt: event.OccurredAt().UTC(),
	}
	switch e := event.(type) {
	case domainchat.MessageAppended:
		env.Correlation = e.CorrelationID
		env.Sender = e.SenderID
		env.Kind = string(e.Kind)
	case domainchat.ConversationDeleted:
		env.Owner = e.OwnerID
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("kafka: encode event: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.AggregateID()),
		Value: sarama.ByteEncoder(payload),
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("kafka: send: %w", err)
	}
	return nil
}

// Close shuts the producer down.
func (p *Publisher) Close() error {
	if p.producer == nil {
		return nil
	}
	return p.producer.Close()
}

var _ policies.ActivityPublisher = (*Publisher)(nil)
