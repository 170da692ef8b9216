// Package audit keeps the append-only log of auth attempts. Writes are
// best-effort and never affect the outcome returned to the caller.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/congo-pay/custody_auth/internal/apperr"
	"github.com/congo-pay/custody_auth/internal/metrics"
	"github.com/congo-pay/custody_auth/internal/notification"
)

const defaultWriteTimeout = 5 * time.Second

// Recorder persists records in the background.
type Recorder struct {
	repo     Repository
	logger   *slog.Logger
	metrics  *metrics.Metrics
	notifier notification.Notifier
	timeout  time.Duration
	nowF     func() time.Time

	wg sync.WaitGroup
}

// NewRecorder builds a recorder. metrics and notifier may be nil.
func NewRecorder(repo Repository, logger *slog.Logger, m *metrics.Metrics, notifier notification.Notifier, timeout time.Duration) *Recorder {
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}
	return &Recorder{
		repo:     repo,
		logger:   logger,
		metrics:  m,
		notifier: notifier,
		timeout:  timeout,
		nowF:     time.Now,
	}
}

// Record schedules rec for persistence and returns immediately. The write
// runs detached from the request context.
func (r *Recorder) Record(rec Record) {
	if r == nil || r.repo == nil {
		return
	}
	if rec.ID == "" {
		rec.ID = ulid.Make().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.nowF().UTC()
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := r.repo.Append(ctx, rec); err != nil {
			r.degraded(ctx, rec, err)
		}
	}()
}

func (r *Recorder) degraded(ctx context.Context, rec Record, cause error) {
	err := apperr.Wrap(apperr.KindAuditWriteFailed, "audit", "audit write failed", cause)
	r.metrics.AuditWriteFailed()
	if r.logger != nil {
		r.logger.Error("audit write failed",
			slog.String("audit_id", rec.ID),
			slog.String("intent", rec.Intent),
			slog.String("request_id", rec.RequestID),
			slog.String("kind", string(apperr.KindOf(err))),
			slog.Any("error", cause),
		)
	}
	if r.notifier != nil {
		_ = r.notifier.Send(ctx, notification.Message{
			Kind:    notification.KindAuditDegraded,
			Subject: rec.ID,
			Body:    fmt.Sprintf("%s attempt not persisted: %v", rec.Intent, cause),
		})
	}
}

// Drain waits for in-flight writes or for ctx to end.
func (r *Recorder) Drain(ctx context.Context) error {
	if r == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
