package engine

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("github.com/ankitpatel990/neuvox/internal/engine")

var (
	turnsTotal         metric.Int64Counter
	sessionsCreated    metric.Int64Counter
	sessionsTerminated metric.Int64Counter
	callbacksDue       metric.Int64Counter
)

func init() {
	var err error
	turnsTotal, err = meter.Int64Counter("engine.turns.total",
		metric.WithDescription("Turns processed"))
	if err != nil {
		turnsTotal, _ = meter.Int64Counter("engine.turns.total.fallback")
	}
	sessionsCreated, err = meter.Int64Counter("engine.sessions.created",
		metric.WithDescription("Sessions created on first reference"))
	if err != nil {
		sessionsCreated, _ = meter.Int64Counter("engine.sessions.created.fallback")
	}
	sessionsTerminated, err = meter.Int64Counter("engine.sessions.terminated",
		metric.WithDescription("Sessions that reached the terminal state"))
	if err != nil {
		sessionsTerminated, _ = meter.Int64Counter("engine.sessions.terminated.fallback")
	}
	callbacksDue, err = meter.Int64Counter("engine.callbacks.due",
		metric.WithDescription("Terminal callbacks that became due"))
	if err != nil {
		callbacksDue, _ = meter.Int64Counter("engine.callbacks.due.fallback")
	}
}
