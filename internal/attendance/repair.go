package attendance

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"artwink/internal/metrics"
	"artwink/internal/queue"
	"artwink/internal/studio"
)

// Repairer reapplies counter changes published by Service. Delivery is at
// least once; a message redelivered after a successful apply adjusts twice.
type Repairer struct {
	store       studio.Store
	jobs        Publisher
	log         *zap.Logger
	MaxAttempts int
	Backoff     time.Duration
}

// NewRepairer builds a repairer that requeues failures on jobs.
func NewRepairer(store studio.Store, jobs Publisher, log *zap.Logger) *Repairer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Repairer{store: store, jobs: jobs, log: log, MaxAttempts: 5, Backoff: time.Second}
}

// Handle applies one repair message. Transient failures are requeued with
// an increasing delay until MaxAttempts; unknown students are dropped.
func (r *Repairer) Handle(ctx context.Context, msg queue.Message) error {
	adj, err := queue.DecodeCounterAdjust(msg)
	if err != nil {
		metrics.CounterRepairs.WithLabelValues("invalid").Inc()
		return err
	}
	log := r.log.With(zap.String("student_id", adj.StudentID), zap.Int("delta", adj.Delta), zap.Int("attempt", adj.Attempt))

	err = r.store.AdjustRemainingClasses(ctx, adj.StudentID, adj.Delta)
	switch {
	case err == nil:
		metrics.CounterRepairs.WithLabelValues("applied").Inc()
		log.Info("counter repaired", zap.String("record_id", adj.RecordID))
		return nil
	case errors.Is(err, studio.ErrNotFound):
		metrics.CounterRepairs.WithLabelValues("dropped").Inc()
		log.Warn("counter repair dropped, student gone")
		return nil
	}

	adj.Attempt++
	if adj.Attempt >= r.MaxAttempts {
		metrics.CounterRepairs.WithLabelValues("dropped").Inc()
		log.Error("counter repair gave up", zap.Error(err))
		return err
	}
	metrics.CounterRepairs.WithLabelValues("retry").Inc()
	log.Warn("counter repair failed, requeueing", zap.Error(err))

	select {
	case <-time.After(r.Backoff * time.Duration(adj.Attempt)):
	case <-ctx.Done():
		return ctx.Err()
	}
	next, err := queue.NewCounterAdjust(adj)
	if err != nil {
		return err
	}
	return r.jobs.Publish(ctx, next)
}
