package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	"github.com/Maycon01282/bot2/internal/domain/event"
)

const sendTimeout = 5 * time.Second

var (
	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_events_published_total",
		Help: "Events published to Kafka by type",
	}, []string{"type"})
	publishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_publish_errors_total",
		Help: "Failed Kafka publish attempts",
	})
)

type Config struct {
	Brokers []string
	Topic   string
}

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(cfg Config) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		MaxAttempts:            5,
		ReadTimeout:            10 * time.Second,
		WriteTimeout:           10 * time.Second,
		RequiredAcks:           kafka.RequireAll,
		Async:                  false,
		AllowAutoTopicCreation: true,
	}

	return &Producer{writer: w}
}

func (p *Producer) send(ctx context.Context, key, value []byte) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: value}); err != nil {
		return fmt.Errorf("failed to write message to %s: %w", p.writer.Topic, err)
	}
	return nil
}

// Publish writes msg keyed by its correlation id, so every status change of
// one payment lands on the same partition.
func (p *Producer) Publish(ctx context.Context, msg event.Message) error {
	value, err := encode(msg)
	if err != nil {
		publishErrors.Inc()
		return err
	}

	if err := p.send(ctx, partitionKey(msg), value); err != nil {
		publishErrors.Inc()
		return err
	}
	eventsPublished.WithLabelValues(msg.Type).Inc()
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

func encode(msg event.Message) ([]byte, error) {
	value, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", msg.Type, err)
	}
	return value, nil
}

func partitionKey(msg event.Message) []byte {
	if msg.Key != "" {
		return []byte(msg.Key)
	}
	return []byte(msg.ID)
}
