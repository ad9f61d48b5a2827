package repository

import (
	"context"

	"VoltX/internal/domain/models"
	domrepo "VoltX/internal/domain/repository"
	pkgkafka "VoltX/pkg/kafka"
	applogger "VoltX/pkg/logger"
)

// KafkaEventPublisher emits engine events, keyed by symbol so a symbol's events
// stay ordered within a partition.
type KafkaEventPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

var _ domrepo.EventPublisher = (*KafkaEventPublisher)(nil)

func NewKafkaEventPublisher(producer *pkgkafka.Producer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, e models.Event) error {
	key := e.Symbol
	if key == "" {
		key = string(e.Type)
	}
	return p.producer.Publish(ctx, p.topic, []byte(key), e)
}

func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// KafkaCandlePublisher republishes closed candles in the schema the candle
// consumer reads, so a second engine can follow this one's feed.
type KafkaCandlePublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

var _ domrepo.CandleStore = (*KafkaCandlePublisher)(nil)

func NewKafkaCandlePublisher(producer *pkgkafka.Producer, topic string) *KafkaCandlePublisher {
	return &KafkaCandlePublisher{producer: producer, topic: topic}
}

func (p *KafkaCandlePublisher) StoreCandles(ctx context.Context, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(candles))
	for i, c := range candles {
		msgs[i] = pkgkafka.Message{
			Key: []byte(c.Symbol),
			Value: map[string]interface{}{
				"symbol": c.Symbol,
				"tf":     string(c.Timeframe),
				"t":      c.OpenTime.UnixMilli(),
				"o":      c.Open,
				"h":      c.High,
				"l":      c.Low,
				"c":      c.Close,
				"v":      c.Volume,
				"closed": c.Closed,
			},
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

// Close leaves the shared producer to the event publisher.
func (p *KafkaCandlePublisher) Close() error { return nil }

// KafkaLogPublisher ships aggregated log entries.
type KafkaLogPublisher struct {
	producer *pkgkafka.Producer
}

var _ applogger.Publisher = (*KafkaLogPublisher)(nil)

func NewKafkaLogPublisher(producer *pkgkafka.Producer) *KafkaLogPublisher {
	return &KafkaLogPublisher{producer: producer}
}

func (p *KafkaLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}
