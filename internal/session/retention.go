package session

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// RunRetention purges terminated sessions with no activity for
// retentionDays. The engine's invariants only cover live sessions;
// retention is purely a storage concern and is safe to run while turns
// are being processed.
func RunRetention(ctx context.Context, store *Store, retentionDays int) {
	if store == nil || retentionDays <= 0 {
		return
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	purged, err := store.PurgeTerminated(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("retention: purge failed")
		return
	}
	if purged > 0 {
		log.Info().Int64("purged", purged).Int("retention_days", retentionDays).
			Msg("session_retention_completed")
	}
}

// RetentionSweeper runs RunRetention on a cron schedule.
type RetentionSweeper struct {
	cron  *cron.Cron
	store *Store
	days  int
}

// NewRetentionSweeper registers the sweep on the given cron expression
// (standard 5-field format, e.g. "0 3 * * *" for 03:00 daily).
func NewRetentionSweeper(store *Store, cronExpr string, retentionDays int) (*RetentionSweeper, error) {
	sw := &RetentionSweeper{cron: cron.New(), store: store, days: retentionDays}
	_, err := sw.cron.AddFunc(cronExpr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		RunRetention(ctx, sw.store, sw.days)
	})
	if err != nil {
		return nil, fmt.Errorf("registering retention cron %q: %w", cronExpr, err)
	}
	return sw, nil
}

// Start begins the scheduled sweeps.
func (sw *RetentionSweeper) Start() {
	sw.cron.Start()
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (sw *RetentionSweeper) Stop() {
	ctx := sw.cron.Stop()
	<-ctx.Done()
}
