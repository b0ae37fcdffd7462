package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/tastenmo/spienx-hub/internal/domain/model"
)

// refreshRequest represents a manual sync trigger for one mirror.
type refreshRequest struct {
	repositoryID int64
	done         chan error
}

// SyncScheduler periodically dispatches mirror synchronization. Each cycle it
// lists auto-sync mirrors and dispatches SyncMirror for those whose last sync
// is older than their interval, skipping mirrors at or over the consecutive
// failure cap until a manual sync resets them.
type SyncScheduler struct {
	lifecycle  *LifecycleManager
	interval   time.Duration
	failureCap int
	refreshCh  chan refreshRequest
	logger     *slog.Logger
	now        func() time.Time
}

// NewSyncScheduler creates a SyncScheduler. interval is the poll cadence;
// failureCap disables auto-sync for mirrors with that many consecutive
// failures.
func NewSyncScheduler(lifecycle *LifecycleManager, interval time.Duration, failureCap int, logger *slog.Logger) *SyncScheduler {
	return &SyncScheduler{
		lifecycle:  lifecycle,
		interval:   interval,
		failureCap: failureCap,
		refreshCh:  make(chan refreshRequest),
		logger:     logger,
		now:        time.Now,
	}
}

// Start begins the scheduling loop. It runs an immediate cycle, then cycles
// on the configured interval, and also listens for manual refresh requests.
// Start blocks until the context is canceled.
func (s *SyncScheduler) Start(ctx context.Context) {
	s.cycle(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync scheduler stopped")
			return
		case <-ticker.C:
			s.cycle(ctx)
		case req := <-s.refreshCh:
			_, err := s.lifecycle.DispatchSync(ctx, req.repositoryID)
			req.done <- err
		}
	}
}

// RefreshMirror triggers an immediate sync dispatch for one mirror,
// bypassing the interval and failure-cap checks. It blocks until the dispatch
// is accepted or the context is canceled.
func (s *SyncScheduler) RefreshMirror(ctx context.Context, repositoryID int64) error {
	done := make(chan error, 1)
	req := refreshRequest{repositoryID: repositoryID, done: done}

	select {
	case s.refreshCh <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cycle dispatches sync for every due mirror. Partial failures are logged and
// do not stop the cycle.
func (s *SyncScheduler) cycle(ctx context.Context) {
	mirrors, err := s.lifecycle.repos.ListAutoSyncMirrors(ctx)
	if err != nil {
		s.logger.Error("failed to list auto-sync mirrors", "error", err)
		return
	}

	var dispatched int
	for _, mirror := range mirrors {
		if !s.due(mirror) {
			continue
		}
		if _, err := s.lifecycle.DispatchSync(ctx, mirror.Repository.ID); err != nil {
			s.logger.Error("failed to dispatch mirror sync",
				"repository", mirror.Repository.ID, "error", err)
			continue
		}
		dispatched++
	}

	if dispatched > 0 {
		s.logger.Info("sync cycle dispatched", "mirrors", dispatched, "candidates", len(mirrors))
	}
}

// due reports whether a mirror should be synced this cycle.
func (s *SyncScheduler) due(mirror model.Mirror) bool {
	if s.failureCap > 0 && mirror.Settings.ConsecutiveFailures >= s.failureCap {
		s.logger.Warn("mirror auto-sync disabled after repeated failures",
			"repository", mirror.Repository.ID,
			"consecutive_failures", mirror.Settings.ConsecutiveFailures)
		return false
	}
	if mirror.Settings.LastSyncedAt == nil {
		return true
	}
	interval := time.Duration(mirror.Settings.SyncIntervalSeconds) * time.Second
	return s.now().Sub(*mirror.Settings.LastSyncedAt) >= interval
}
