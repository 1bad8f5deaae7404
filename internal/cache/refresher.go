package cache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Refresher force-refreshes the reference cache on a cron schedule
type Refresher struct {
	cron    *cron.Cron
	manager *Manager
	spec    string // cron spec, e.g. "@every 30m" or "*/30 * * * *"
	logger  *slog.Logger
}

// NewRefresher creates a Refresher for manager. The schedule is validated
// when the Refresher starts.
func NewRefresher(manager *Manager, spec string, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		manager: manager,
		spec:    spec,
		logger:  logger.With("component", "refresher"),
	}
}

// Start registers the refresh job and starts the scheduler
func (r *Refresher) Start(ctx context.Context) error {
	_, err := r.cron.AddFunc(r.spec, func() {
		r.refresh(ctx)
	})
	if err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", r.spec, err)
	}

	r.cron.Start()
	r.logger.Info("reference refresh scheduled", "schedule", r.spec)
	return nil
}

// Stop halts the scheduler and waits for a running refresh to finish
func (r *Refresher) Stop() {
	<-r.cron.Stop().Done()
	r.logger.Info("reference refresh stopped")
}

func (r *Refresher) refresh(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	snap := r.manager.Initialize(ctx, true)
	r.logger.Debug("scheduled refresh complete",
		"pathways", len(snap.Pathways),
		"providers", len(snap.Providers),
	)
}
