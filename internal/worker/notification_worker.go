package worker

import (
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/repository"
	"github.com/spec-kit/ticket-bot/internal/service"
)

// Sinks are the optional consumers of lifecycle events. Nil members are skipped.
type Sinks struct {
	Notifications *service.NotificationService
	Stream        *events.RedisStreamSink
	Audit         *repository.AuditRepository
}

// StartEventSinks subscribes every configured sink to the dispatcher.
func StartEventSinks(dispatcher events.Dispatcher, sinks Sinks) {
	if dispatcher == nil {
		return
	}
	if sinks.Notifications != nil {
		sinks.Notifications.RegisterHandlers()
	}
	if sinks.Stream != nil {
		sinks.Stream.Register(dispatcher)
	}
	if sinks.Audit != nil {
		events.SubscribeAll(dispatcher, sinks.Audit.Record)
	}
}
