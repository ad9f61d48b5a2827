package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"VoltX/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
)

// MessageHandler handles messages from one topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

type consumerMetrics struct {
	depth    *prometheus.GaugeVec
	latency  *prometheus.HistogramVec
	failures *prometheus.CounterVec
}

func newConsumerMetrics(reg prometheus.Registerer) *consumerMetrics {
	return &consumerMetrics{
		depth: register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "voltx_kafka_consumer_queue_depth",
			Help: "Messages fetched but not yet handled, per worker.",
		}, []string{"worker"})),
		latency: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voltx_kafka_consumer_handle_seconds",
			Help:    "Handling time per message including retries.",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"topic"})),
		failures: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voltx_kafka_consumer_failed_total",
			Help: "Messages that exhausted their retries.",
		}, []string{"topic"})),
	}
}

type delivery struct {
	topic string
	km    kafka.Message
}

// Consumer reads registered topics through a consumer group. Every partition
// is pinned to one worker so records with the same key are handled in order.
type Consumer struct {
	cfg      *ConsumerConfig
	log      *logger.Logger
	handlers map[string]MessageHandler
	readers  map[string]*kafka.Reader
	lanes    []chan delivery
	dlq      *kafka.Writer
	hook     ConsumerHook
	metrics  *consumerMetrics

	ctx      context.Context
	cancel   context.CancelFunc
	readWG   sync.WaitGroup
	workWG   sync.WaitGroup
	stopOnce sync.Once
}

func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:     "voltx",
		WorkerCount: 1,
		BufferSize:  64,
		RetryMax:    3,
		BackoffMin:  50 * time.Millisecond,
		BackoffMax:  2 * time.Second,
		MinBytes:    1,
		MaxBytes:    10e6,
		Registerer:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Consumer{
		cfg:      cfg,
		log:      cfg.Logger,
		handlers: make(map[string]MessageHandler),
		readers:  make(map[string]*kafka.Reader),
		lanes:    make([]chan delivery, cfg.WorkerCount),
		hook:     noopHook{},
		metrics:  newConsumerMetrics(cfg.Registerer),
		ctx:      ctx,
		cancel:   cancel,
	}
	for i := range c.lanes {
		c.lanes[i] = make(chan delivery, cfg.BufferSize)
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Topic: cfg.DLQTopic, Balancer: &kafka.Hash{}}
	}
	return c, nil
}

// RegisterHandler must be called before Start.
func (c *Consumer) RegisterHandler(h MessageHandler) {
	if _, ok := c.handlers[h.Topic()]; ok {
		c.log.Warn("kafka consumer: handler already registered", logger.String("topic", h.Topic()))
		return
	}
	c.handlers[h.Topic()] = h
}

// WithConsumerHook replaces the lifecycle hook.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return fmt.Errorf("no handlers registered")
	}
	for i, lane := range c.lanes {
		c.workWG.Add(1)
		go c.work(i, lane)
	}
	for topic := range c.handlers {
		r := kafka.NewReader(kafka.ReaderConfig{
			Brokers:  c.cfg.Brokers,
			Topic:    topic,
			GroupID:  c.cfg.GroupID,
			MinBytes: c.cfg.MinBytes,
			MaxBytes: c.cfg.MaxBytes,
		})
		c.readers[topic] = r
		c.readWG.Add(1)
		go c.read(topic, r)
	}
	c.log.Info("kafka consumer started",
		logger.String("group", c.cfg.GroupID),
		logger.Int("topics", len(c.readers)),
		logger.Int("workers", len(c.lanes)))
	return nil
}

// Stop halts fetching, lets workers drain what was fetched, then closes readers.
func (c *Consumer) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		c.cancel()
		c.readWG.Wait()
		for _, lane := range c.lanes {
			close(lane)
		}
		done := make(chan struct{})
		go func() {
			c.workWG.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = fmt.Errorf("kafka consumer drain: %w", ctx.Err())
		}
		for topic, r := range c.readers {
			if cerr := r.Close(); cerr != nil {
				c.log.Warn("kafka consumer: close reader", logger.String("topic", topic), logger.Error(cerr))
			}
		}
		if c.dlq != nil {
			_ = c.dlq.Close()
		}
		c.log.Info("kafka consumer stopped")
	})
	return err
}

func (c *Consumer) read(topic string, r *kafka.Reader) {
	defer c.readWG.Done()
	for {
		km, err := r.FetchMessage(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.log.Warn("kafka consumer: fetch", logger.String("topic", topic), logger.Error(err))
			sleepCtx(c.ctx, c.cfg.BackoffMin)
			continue
		}
		i := laneFor(km.Partition, len(c.lanes))
		select {
		case c.lanes[i] <- delivery{topic: topic, km: km}:
			c.metrics.depth.WithLabelValues(laneLabel(i)).Set(float64(len(c.lanes[i])))
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Consumer) work(i int, lane <-chan delivery) {
	defer c.workWG.Done()
	for d := range lane {
		start := time.Now()
		attempts, err := c.process(d.topic, d.km)
		c.metrics.latency.WithLabelValues(d.topic).Observe(time.Since(start).Seconds())
		c.metrics.depth.WithLabelValues(laneLabel(i)).Set(float64(len(lane)))
		c.settle(d, err, attempts)
	}
}

// process runs the handler with hooks and retries. It does no Kafka I/O.
func (c *Consumer) process(topic string, km kafka.Message) (attempts int, err error) {
	h, ok := c.handlers[topic]
	if !ok {
		return 0, fmt.Errorf("no handler for topic %s", topic)
	}
	for attempts = 1; ; attempts++ {
		err = c.attempt(h, topic, km)
		if err == nil || attempts > c.cfg.RetryMax || IsPermanent(err) {
			return attempts, err
		}
		c.hook.OnError(c.ctx, topic, km, km.Value, err)
		if !sleepCtx(c.ctx, backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempts)) {
			return attempts, err
		}
	}
}

func (c *Consumer) attempt(h MessageHandler, topic string, km kafka.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	ctx, data, err := c.hook.BeforeHandle(context.Background(), topic, km, km.Value)
	if err != nil {
		return err
	}
	err = h.Handle(ctx, data)
	c.hook.AfterHandle(ctx, topic, km, err)
	return err
}

// settle parks a failed message on the DLQ, then commits. A failed message is
// committed even without a DLQ so one bad record cannot stall its partition.
func (c *Consumer) settle(d delivery, err error, attempts int) {
	if err != nil {
		c.metrics.failures.WithLabelValues(d.topic).Inc()
		c.hook.OnError(context.Background(), d.topic, d.km, d.km.Value, err)
		c.log.Error("kafka consumer: message failed",
			logger.String("topic", d.topic),
			logger.Int("partition", d.km.Partition),
			logger.Int64("offset", d.km.Offset),
			logger.Int("attempts", attempts),
			logger.Error(err))
		if c.dlq != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			derr := c.dlq.WriteMessages(ctx, kafka.Message{
				Key:     d.km.Key,
				Value:   d.km.Value,
				Headers: []kafka.Header{{Key: "source_topic", Value: []byte(d.topic)}, {Key: "error", Value: []byte(err.Error())}},
			})
			cancel()
			if derr != nil {
				c.log.Error("kafka consumer: dlq write", logger.Error(derr))
			}
		}
	}
	r := c.readers[d.topic]
	if r == nil {
		return
	}
	for i := 1; i <= 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		cerr := r.CommitMessages(ctx, d.km)
		cancel()
		if cerr == nil {
			return
		}
		if i == 3 {
			c.log.Warn("kafka consumer: commit", logger.String("topic", d.topic), logger.Error(cerr))
			return
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, i))
	}
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks a handler error as not worth retrying. The message goes
// straight to the DLQ (when configured) and is committed.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent reports whether err or anything it wraps was marked Permanent.
func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

func laneFor(partition, lanes int) int {
	if lanes <= 1 || partition < 0 {
		return 0
	}
	return partition % lanes
}

func laneLabel(i int) string { return fmt.Sprintf("%d", i) }

// backoffWithJitter doubles from min up to max and subtracts up to half.
func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	d := min
	for i := 1; i < attempt && d < max; i++ {
		d *= 2
	}
	if d > max {
		d = max
	}
	return d - time.Duration(rand.Int63n(int64(d)/2+1))
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
