package usecase

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"VoltX/internal/domain/models"
	"VoltX/pkg/queue"
)

func TestAlertJobForwardsDecodedPayload(t *testing.T) {
	pub := &fakePublisher{}
	j := NewAlertJob(pub, nil)
	if j.Type() != AlertMessageType {
		t.Fatalf("unexpected type %s", j.Type())
	}
	msg, err := queue.NewMessage(AlertMessageType, models.Alert{
		Symbol:     "BTCUSDT",
		Strategy:   models.StrategyVBS,
		PositionID: "p1",
		Attempts:   6,
		RaisedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}, time.Now())
	if err != nil {
		t.Fatalf("message: %v", err)
	}
	// round trip through the stored envelope
	raw, _ := json.Marshal(msg)
	var stored queue.Message
	if err := json.Unmarshal(raw, &stored); err != nil {
		t.Fatalf("envelope: %v", err)
	}
	if err := j.Handle(context.Background(), stored.Payload); err != nil {
		t.Fatalf("handle: %v", err)
	}
	ev, ok := pub.last(models.EventExitEscalated)
	if !ok || ev.Symbol != "BTCUSDT" || ev.Fields["attempts"] != 6 {
		t.Fatalf("unexpected event %+v", ev)
	}
	if err := j.Handle(context.Background(), json.RawMessage(`42`)); err == nil {
		t.Fatalf("expected error for a bad payload")
	}
}
