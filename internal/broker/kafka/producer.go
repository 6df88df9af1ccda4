package kafka

import (
	"ShopTalk/internal/config"
	"ShopTalk/internal/lib/sl"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
)

// envelope is the wire shape of one chat lifecycle event. Messages for the
// same session share a key, so they land on one partition in order.
type envelope struct {
	Event     string      `json:"event"`
	SessionID string      `json:"session_id"`
	At        time.Time   `json:"at"`
	Payload   interface{} `json:"payload,omitempty"`
}

// Producer publishes chat lifecycle events for downstream consumers such as
// analytics and CRM sync.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	log      *slog.Logger
}

func NewProducer(conf *config.Config, log *slog.Logger) (*Producer, error) {
	if !conf.Kafka.Enabled {
		return nil, nil
	}

	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(conf.Kafka.Brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return &Producer{
		producer: producer,
		topic:    conf.Kafka.Topic,
		log:      log.With(sl.Module("kafka")),
	}, nil
}

func (p *Producer) Publish(event, sessionID string, payload interface{}) error {
	data, err := json.Marshal(envelope{
		Event:     event,
		SessionID: sessionID,
		At:        time.Now(),
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(sessionID),
		Value: sarama.ByteEncoder(data),
	})
	if err != nil {
		return fmt.Errorf("send event %s: %w", event, err)
	}

	p.log.Debug("event published",
		slog.String("event", event),
		slog.String("session_id", sessionID),
		slog.Int64("offset", offset),
		slog.Int("partition", int(partition)),
	)

	return nil
}

func (p *Producer) Close() error {
	return p.producer.Close()
}
