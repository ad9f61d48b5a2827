package repository

import (
	"context"

	"VoltX/internal/domain/models"
	domrepo "VoltX/internal/domain/repository"
	applogger "VoltX/pkg/logger"
)

// LogEventPublisher writes events to the application log. It stands in for the
// Kafka publisher when no brokers are configured.
type LogEventPublisher struct {
	l *applogger.Logger
}

var _ domrepo.EventPublisher = (*LogEventPublisher)(nil)

func NewLogEventPublisher(l *applogger.Logger) *LogEventPublisher {
	if l == nil {
		l = applogger.Nop()
	}
	return &LogEventPublisher{l: l}
}

func (p *LogEventPublisher) Publish(_ context.Context, e models.Event) error {
	fields := []applogger.Field{
		applogger.String("type", string(e.Type)),
		applogger.String("symbol", e.Symbol),
		applogger.String("strategy", string(e.Strategy)),
		applogger.String("reason", e.Reason),
	}
	for k, v := range e.Fields {
		fields = append(fields, applogger.Float64(k, v))
	}
	p.l.Info("Event", fields...)
	return nil
}

func (p *LogEventPublisher) Close() error { return nil }
