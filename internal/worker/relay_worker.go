package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/event-notifier/internal/repository"
)

// RawPublisher publishes an already-encoded notification body.
type RawPublisher interface {
	PublishRaw(ctx context.Context, eventID int64, body []byte) error
}

// RelayWorker polls the outbox for unpublished notifications and hands them
// to the broker.
//
// Rows are marked published only after the broker confirms, so a crash
// between publish and mark re-sends the row: delivery stays at-least-once.
type RelayWorker struct {
	repo      repository.OutboxRepository
	pub       RawPublisher
	interval  time.Duration
	batchSize int
	logger    *zap.Logger

	// OnPending reports the backlog after each poll. Optional.
	OnPending func(n int)
}

func NewRelayWorker(
	repo repository.OutboxRepository,
	pub RawPublisher,
	interval time.Duration,
	batchSize int,
	logger *zap.Logger,
) *RelayWorker {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &RelayWorker{repo: repo, pub: pub, interval: interval, batchSize: batchSize, logger: logger}
}

// Run ticks every interval and relays any pending rows.
// Stops cleanly when ctx is cancelled.
func (rw *RelayWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	rw.logger.Info("outbox relay started", zap.Duration("interval", rw.interval))

	for {
		select {
		case <-ctx.Done():
			rw.logger.Info("outbox relay stopping")
			return
		case <-ticker.C:
			rw.Poll(ctx)
		}
	}
}

// Poll relays one batch. Publishing stops at the first failure: the broker is
// most likely down and the remaining rows would fail the same way.
func (rw *RelayWorker) Poll(ctx context.Context) {
	entries, err := rw.repo.FetchPending(ctx, rw.batchSize)
	if err != nil {
		rw.logger.Error("outbox poll error", zap.Error(err))
		return
	}

	published := 0
	for _, e := range entries {
		if err := rw.pub.PublishRaw(ctx, e.EventID, e.Payload); err != nil {
			rw.logger.Warn("outbox publish failed",
				zap.Int64("outbox_id", e.ID),
				zap.Int64("event_id", e.EventID),
				zap.Int("attempts", e.Attempts+1),
				zap.Error(err),
			)
			if merr := rw.repo.MarkFailed(ctx, e.ID, err.Error()); merr != nil {
				rw.logger.Error("failed to record outbox failure",
					zap.Int64("outbox_id", e.ID), zap.Error(merr))
			}
			break
		}

		if err := rw.repo.MarkPublished(ctx, e.ID, time.Now().UTC()); err != nil {
			rw.logger.Error("failed to mark outbox entry published",
				zap.Int64("outbox_id", e.ID), zap.Error(err))
			continue
		}
		published++
	}

	if published > 0 {
		rw.logger.Info("relayed outbox notifications", zap.Int("count", published))
	}

	if rw.OnPending != nil {
		if n, err := rw.repo.CountPending(ctx); err == nil {
			rw.OnPending(n)
		}
	}
}
