package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"VoltX/internal/domain/models"
	domrepo "VoltX/internal/domain/repository"
	mid "VoltX/internal/middleware"
	pkgkafka "VoltX/pkg/kafka"
	"VoltX/pkg/util"
)

// KafkaCandlesHandler consumes candles published by an upstream collector and
// feeds them to the engine through the pipeline.
type KafkaCandlesHandler struct {
	topic   string
	proc    mid.Proc
	metrics domrepo.Metrics
}

func NewKafkaCandlesHandler(topic string, proc mid.Proc, metrics domrepo.Metrics) *KafkaCandlesHandler {
	return &KafkaCandlesHandler{topic: topic, proc: proc, metrics: metrics}
}

func (h *KafkaCandlesHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, tf, t, o, h, l, c, v, closed}; t in seconds or ms.
// Undecodable or invalid candles are counted once and returned as permanent
// errors so the consumer does not retry them.
func (h *KafkaCandlesHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Symbol string  `json:"symbol"`
		TF     string  `json:"tf"`
		T      int64   `json:"t"`
		O      float64 `json:"o"`
		H      float64 `json:"h"`
		L      float64 `json:"l"`
		C      float64 `json:"c"`
		V      float64 `json:"v"`
		Closed *bool   `json:"closed"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return pkgkafka.Permanent(fmt.Errorf("decode candle: %w", err))
	}
	openTime := util.FromUnixAuto(m.T)
	c := &models.Candle{
		Symbol:    strings.ToUpper(m.Symbol),
		Timeframe: models.NormalizeTimeframe(m.TF, models.TF1m),
		Open:      m.O,
		High:      m.H,
		Low:       m.L,
		Close:     m.C,
		Volume:    m.V,
		OpenTime:  openTime,
		Closed:    m.Closed == nil || *m.Closed,
	}
	if err := c.Validate(); err != nil {
		h.metrics.RecordError("consumer_invalid")
		return pkgkafka.Permanent(fmt.Errorf("candle %s: %w", c.Symbol, err))
	}
	// E2E latency from candle close to now (approx)
	h.metrics.RecordLatency("ingest_e2e", time.Since(c.End()))

	start := time.Now()
	err := h.proc.Process(ctx, c)
	h.metrics.RecordLatency("consumer_process", time.Since(start))
	if err != nil {
		h.metrics.RecordError("consumer_process")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaCandlesHandler)(nil)
