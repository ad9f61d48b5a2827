package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"VoltX/internal/domain/models"
	domrepo "VoltX/internal/domain/repository"
	"VoltX/pkg/logger"
	"VoltX/pkg/queue"
)

// AlertMessageType is the queue message type of urgent exit alerts.
const AlertMessageType = "exit_alert"

// AlertJob consumes urgent alerts from the queue, logs them at error level and
// forwards them to the event topic where paging integrations subscribe.
type AlertJob struct {
	publisher domrepo.EventPublisher
	log       *logger.Logger
}

func NewAlertJob(publisher domrepo.EventPublisher, log *logger.Logger) *AlertJob {
	if log == nil {
		log = logger.Nop()
	}
	return &AlertJob{publisher: publisher, log: log}
}

func (j *AlertJob) Name() string { return "exit-alert-forwarder" }

func (j *AlertJob) Type() string { return AlertMessageType }

func (j *AlertJob) Handle(ctx context.Context, payload json.RawMessage) error {
	a, err := queue.Decode[models.Alert](payload)
	if err != nil {
		return fmt.Errorf("alert payload: %w", err)
	}
	j.log.Error("URGENT: exit not filled",
		logger.String("symbol", a.Symbol),
		logger.String("strategy", string(a.Strategy)),
		logger.String("position_id", a.PositionID),
		logger.Int("attempts", a.Attempts),
		logger.String("last_error", a.LastError),
	)
	if j.publisher == nil {
		return nil
	}
	ev := models.NewEvent(models.EventExitEscalated, a.Symbol, a.Strategy, a.RaisedAt).With("attempts", float64(a.Attempts))
	ev.Reason = "ALERT"
	return j.publisher.Publish(ctx, ev)
}

var _ queue.Job = (*AlertJob)(nil)
