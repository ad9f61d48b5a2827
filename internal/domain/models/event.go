package models

import "time"

type EventType string

const (
	EventSignalGenerated       EventType = "SIGNAL_GENERATED"
	EventPositionOpened        EventType = "POSITION_OPENED"
	EventPositionClosed        EventType = "POSITION_CLOSED"
	EventPositionCancelled     EventType = "POSITION_CANCELLED"
	EventCircuitBreakerTripped EventType = "CIRCUIT_BREAKER_TRIPPED"
	EventCircuitBreakerReset   EventType = "CIRCUIT_BREAKER_RESET"
	EventRegimeChanged         EventType = "REGIME_CHANGED"
	EventRiskViolation         EventType = "RISK_VIOLATION"
	EventOrderFailed           EventType = "ORDER_FAILED"
	EventExitEscalated         EventType = "EXIT_ESCALATED"
)

// Event is an observability record. Fields holds the relevant numeric values.
type Event struct {
	Type      EventType          `json:"type"`
	Symbol    string             `json:"symbol,omitempty"`
	Strategy  Strategy           `json:"strategy,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
	Reason    string             `json:"reason,omitempty"`
	Fields    map[string]float64 `json:"fields,omitempty"`
}

// NewEvent builds an event with an initialized field map.
func NewEvent(t EventType, symbol string, strategy Strategy, at time.Time) Event {
	return Event{Type: t, Symbol: symbol, Strategy: strategy, Timestamp: at, Fields: map[string]float64{}}
}

// With sets a numeric field and returns the event for chaining.
func (e Event) With(key string, v float64) Event {
	if e.Fields == nil {
		e.Fields = map[string]float64{}
	}
	e.Fields[key] = v
	return e
}

// Alert is an urgent notification for operators.
type Alert struct {
	Symbol     string    `json:"symbol"`
	Strategy   Strategy  `json:"strategy"`
	PositionID string    `json:"position_id"`
	Attempts   int       `json:"attempts"`
	LastError  string    `json:"last_error"`
	RaisedAt   time.Time `json:"raised_at"`
}
