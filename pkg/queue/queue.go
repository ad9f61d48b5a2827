package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Publisher enqueues a typed message.
type Publisher interface {
	Publish(ctx context.Context, msgType string, payload interface{}) error
}

// Job handles every message of one type.
type Job interface {
	Name() string
	Type() string
	Handle(ctx context.Context, payload json.RawMessage) error
}

// Config controls the consumer side.
type Config struct {
	Workers    int
	RetryLimit int
	RetryDelay time.Duration // first retry; doubles per attempt
	RetryMax   time.Duration
	RetryScan  time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 5 * time.Second
	}
	if c.RetryMax < c.RetryDelay {
		c.RetryMax = 8 * c.RetryDelay
	}
	if c.RetryScan <= 0 {
		c.RetryScan = time.Second
	}
	return c
}

// RetryAt returns when a message that has failed attempts times is due again,
// and false once the retry budget is spent.
func (c Config) RetryAt(now time.Time, attempts int) (time.Time, bool) {
	c = c.withDefaults()
	if attempts > c.RetryLimit {
		return time.Time{}, false
	}
	d := c.RetryDelay
	for i := 1; i < attempts && d < c.RetryMax; i++ {
		d *= 2
	}
	if d > c.RetryMax {
		d = c.RetryMax
	}
	return now.Add(d), true
}

// Message is the envelope stored in Redis.
type Message struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	LastError  string          `json:"last_error,omitempty"`
}

func NewMessage(msgType string, payload interface{}, now time.Time) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	return Message{ID: uuid.NewString(), Type: msgType, Payload: raw, EnqueuedAt: now}, nil
}

// Decode unmarshals a job payload into T.
func Decode[T any](payload json.RawMessage) (T, error) {
	var v T
	if len(payload) == 0 {
		return v, fmt.Errorf("empty payload")
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, fmt.Errorf("decode %T: %w", v, err)
	}
	return v, nil
}
