package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"VoltX/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "voltx:queue"

type keys struct{ pending, retry, dead string }

func newKeys(prefix string) keys {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return keys{pending: prefix + ":pending", retry: prefix + ":retry", dead: prefix + ":dlq"}
}

// RedisPublisher pushes messages onto a Redis list.
type RedisPublisher struct {
	client *redis.Client
	keys   keys
	now    func() time.Time
}

var _ Publisher = (*RedisPublisher)(nil)

func NewRedisPublisher(client *redis.Client, prefix string) *RedisPublisher {
	return &RedisPublisher{client: client, keys: newKeys(prefix), now: time.Now}
}

func (p *RedisPublisher) Publish(ctx context.Context, msgType string, payload interface{}) error {
	msg, err := NewMessage(msgType, payload, p.now())
	if err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := p.client.LPush(ctx, p.keys.pending, data).Err(); err != nil {
		return fmt.Errorf("lpush %s: %w", p.keys.pending, err)
	}
	return nil
}

// RedisConsumer pops messages and dispatches them to registered jobs. Failed
// messages wait in a sorted set until due and end in a dead-letter list.
type RedisConsumer struct {
	log    *logger.Logger
	cfg    Config
	client *redis.Client
	keys   keys
	jobs   map[string]Job

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewRedisConsumer(l *logger.Logger, cfg Config, client *redis.Client, prefix string, jobs ...Job) *RedisConsumer {
	if l == nil {
		l = logger.Nop()
	}
	c := &RedisConsumer{
		log:    l,
		cfg:    cfg.withDefaults(),
		client: client,
		keys:   newKeys(prefix),
		jobs:   make(map[string]Job, len(jobs)),
	}
	for _, j := range jobs {
		if _, dup := c.jobs[j.Type()]; dup {
			l.Warn("job already registered", logger.String("job", j.Name()))
			continue
		}
		c.jobs[j.Type()] = j
	}
	return c
}

func (c *RedisConsumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return fmt.Errorf("queue consumer already running")
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err := c.client.Ping(pctx).Err()
	cancel()
	if err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	runCtx, stop := context.WithCancel(ctx)
	c.cancel = stop
	c.running = true
	for i := 0; i < c.cfg.Workers; i++ {
		c.wg.Add(1)
		go c.work(runCtx, i)
	}
	c.wg.Add(1)
	go c.promoteRetries(runCtx)

	c.log.Info("queue consumer started",
		logger.Int("workers", c.cfg.Workers),
		logger.String("queue", c.keys.pending))
	return nil
}

func (c *RedisConsumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	c.cancel()
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		c.log.Info("queue consumer stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue consumer stop: %w", ctx.Err())
	}
}

func (c *RedisConsumer) work(ctx context.Context, id int) {
	defer c.wg.Done()
	for ctx.Err() == nil {
		res, err := c.client.BRPop(ctx, time.Second, c.keys.pending).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			c.log.Error("brpop failed", logger.Int("worker", id), logger.Error(err))
			sleep(ctx, time.Second)
			continue
		}
		if len(res) < 2 {
			continue
		}
		var msg Message
		if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
			c.log.Error("drop undecodable message", logger.Error(err))
			continue
		}
		c.dispatch(ctx, msg)
	}
}

func (c *RedisConsumer) dispatch(ctx context.Context, msg Message) {
	job, ok := c.jobs[msg.Type]
	if !ok {
		c.log.Error("no job for message", logger.String("type", msg.Type), logger.String("id", msg.ID))
		c.bury(msg)
		return
	}
	err := job.Handle(ctx, msg.Payload)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}

	msg.Attempts++
	msg.LastError = err.Error()
	at, retry := c.cfg.RetryAt(time.Now(), msg.Attempts)
	if !retry {
		c.log.Error("retries exhausted",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()),
			logger.Int("attempts", msg.Attempts),
			logger.Error(err))
		c.bury(msg)
		return
	}
	c.log.Warn("job failed, retry scheduled",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts),
		logger.Time("retry_at", at),
		logger.Error(err))
	data, _ := json.Marshal(msg)
	if err := c.client.ZAdd(context.Background(), c.keys.retry, redis.Z{Score: float64(at.Unix()), Member: data}).Err(); err != nil {
		c.log.Error("schedule retry", logger.Error(err))
	}
}

func (c *RedisConsumer) bury(msg Message) {
	data, _ := json.Marshal(msg)
	if err := c.client.LPush(context.Background(), c.keys.dead, data).Err(); err != nil {
		c.log.Error("dead-letter push", logger.Error(err))
	}
}

// promoteRetries moves due messages from the retry set back to the pending list.
func (c *RedisConsumer) promoteRetries(ctx context.Context) {
	defer c.wg.Done()
	t := time.NewTicker(c.cfg.RetryScan)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			due, err := c.client.ZRangeByScore(ctx, c.keys.retry, &redis.ZRangeBy{
				Min: "-inf",
				Max: strconv.FormatInt(now.Unix(), 10),
			}).Result()
			if err != nil {
				if ctx.Err() == nil {
					c.log.Error("scan retries", logger.Error(err))
				}
				continue
			}
			for _, m := range due {
				pipe := c.client.TxPipeline()
				pipe.ZRem(ctx, c.keys.retry, m)
				pipe.LPush(ctx, c.keys.pending, m)
				if _, err := pipe.Exec(ctx); err != nil && ctx.Err() == nil {
					c.log.Error("promote retry", logger.Error(err))
				}
			}
		}
	}
}

// Backlog reports pending, retrying and dead-lettered message counts.
func (c *RedisConsumer) Backlog(ctx context.Context) (pending, retrying, dead int64, err error) {
	pipe := c.client.Pipeline()
	p := pipe.LLen(ctx, c.keys.pending)
	r := pipe.ZCard(ctx, c.keys.retry)
	d := pipe.LLen(ctx, c.keys.dead)
	if _, err = pipe.Exec(ctx); err != nil {
		return 0, 0, 0, fmt.Errorf("queue backlog: %w", err)
	}
	return p.Val(), r.Val(), d.Val(), nil
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
