package session

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("github.com/ankitpatel990/neuvox/internal/session")

var sessionsGauge metric.Int64Gauge

func init() {
	var err error
	sessionsGauge, err = meter.Int64Gauge("sessions.stored.count",
		metric.WithDescription("Current number of stored sessions"))
	if err != nil {
		sessionsGauge, _ = meter.Int64Gauge("sessions.stored.count.fallback")
	}
}

// recordSessionsGauge refreshes the stored-sessions gauge after writes and
// purges so it tracks the actual row count.
func recordSessionsGauge(ctx context.Context, s *Store) {
	count, err := s.Count(ctx)
	if err != nil {
		return
	}
	sessionsGauge.Record(ctx, count)
}
