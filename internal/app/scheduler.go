package app

import (
	"context"
	"time"

	"github.com/bobmcallan/ghostwatch/internal/models"
)

// CycleStatus records the outcome of the most recent refresh cycles.
type CycleStatus struct {
	Cycles        int       `json:"cycles"`
	Failures      int       `json:"failures"`
	LastRun       time.Time `json:"last_run,omitempty"`
	LastSuccess   time.Time `json:"last_success,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
	LastElapsed   string    `json:"last_elapsed,omitempty"`
	KnownEntities int       `json:"known_entities"`
}

// Status returns a copy of the current cycle status.
func (a *App) Status() CycleStatus {
	a.statusMu.RLock()
	defer a.statusMu.RUnlock()
	return a.status
}

// RunCycle refreshes the snapshot and reconciles the entity set, returning
// the entities discovered by this cycle. On failure the previous snapshot
// and the known set are left untouched.
func (a *App) RunCycle(ctx context.Context) ([]models.EntityDescriptor, error) {
	start := time.Now()
	snap, err := a.Snapshots.Refresh(ctx)

	var added []models.EntityDescriptor
	if err == nil {
		added = a.Reconciler.Reconcile(snap)
	}
	known := len(a.Reconciler.Known())

	a.statusMu.Lock()
	a.status.Cycles++
	a.status.LastRun = start
	a.status.LastElapsed = time.Since(start).String()
	a.status.KnownEntities = known
	if err != nil {
		a.status.Failures++
		a.status.LastError = err.Error()
	} else {
		a.status.LastSuccess = start
		a.status.LastError = ""
	}
	a.statusMu.Unlock()

	if err != nil {
		a.Logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("Refresh cycle failed")
		return nil, err
	}

	for _, d := range added {
		a.Logger.Info().
			Str("key", string(d.Key)).
			Str("name", d.Name).
			Str("device", d.DeviceName).
			Msg("Entity published")
	}

	a.Logger.Info().
		Int("new_entities", len(added)).
		Int("known_entities", known).
		Int("degraded", len(snap.Degraded)).
		Dur("elapsed", time.Since(start)).
		Msg("Refresh cycle complete")

	return added, nil
}

// startRefreshScheduler runs one cycle immediately, then one per interval
// until ctx is cancelled.
func startRefreshScheduler(ctx context.Context, a *App, interval time.Duration) {
	a.RunCycle(ctx) //nolint:errcheck // logged and recorded in status

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.Logger.Info().Msg("Refresh scheduler: stopped")
			return
		case <-ticker.C:
			a.RunCycle(ctx) //nolint:errcheck // logged and recorded in status
		}
	}
}

// StartScheduler launches the background refresh goroutine.
func (a *App) StartScheduler() {
	if a.schedulerCancel != nil {
		return
	}
	interval := a.Config.Sync.GetInterval()
	schedulerCtx, schedulerCancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	a.schedulerCancel = schedulerCancel
	a.schedulerDone = done

	a.Logger.Info().Dur("interval", interval).Msg("Refresh scheduler: started")
	go func() {
		defer close(done)
		startRefreshScheduler(schedulerCtx, a, interval)
	}()
}

// StopScheduler cancels the scheduler and waits for an in-flight cycle to
// return. It is safe to call when the scheduler was never started.
func (a *App) StopScheduler() {
	if a.schedulerCancel == nil {
		return
	}
	a.schedulerCancel()
	<-a.schedulerDone
	a.schedulerCancel = nil
	a.schedulerDone = nil
}
