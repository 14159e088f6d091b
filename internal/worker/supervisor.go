package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hoopcentral/achievements-worker/internal/models"
)

// QueueDriver is the slice of the queue store the supervisor needs.
type QueueDriver interface {
	ClaimBatch(ctx context.Context, limit int) ([]models.QueueItem, error)
	MarkDone(ctx context.Context, queueIDs []int64) error
	MarkRetry(ctx context.Context, queueID int64, errMsg string) error
	LoadEvents(ctx context.Context, eventIDs []string) (map[string]*models.Event, error)
}

// EventProcessor handles one event; an error means retry the item.
type EventProcessor interface {
	ProcessEvent(ctx context.Context, ev *models.Event) error
}

// Supervisor is the single cooperative loop: claim a batch, process items in
// queue_id order, report outcomes. It checks for cancellation between
// iterations and never preempts mid-event.
type Supervisor struct {
	queue        QueueDriver
	pipeline     EventProcessor
	logger       *zap.SugaredLogger
	batchLimit   int
	pollInterval time.Duration
}

func NewSupervisor(queue QueueDriver, pipeline EventProcessor, logger *zap.SugaredLogger, batchLimit int, pollInterval time.Duration) *Supervisor {
	return &Supervisor{
		queue:        queue,
		pipeline:     pipeline,
		logger:       logger,
		batchLimit:   batchLimit,
		pollInterval: pollInterval,
	}
}

// errorSleep caps the backoff after a failed iteration.
func (s *Supervisor) errorSleep() time.Duration {
	d := 5 * s.pollInterval
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}

// Run drives the loop until ctx is cancelled. Iteration-level errors (store
// unavailable, markDone failures) are logged and absorbed with a sleep; no
// item is lost because unacknowledged claims resurface after the lease TTL.
func (s *Supervisor) Run(ctx context.Context) error {
	s.logger.Infow("supervisor started",
		"batch_limit", s.batchLimit,
		"poll_interval", s.pollInterval,
	)

	for {
		if ctx.Err() != nil {
			s.logger.Info("supervisor stopping")
			return nil
		}

		if err := s.runBatch(ctx); err != nil {
			if ctx.Err() != nil {
				s.logger.Info("supervisor stopping")
				return nil
			}
			loopErrors.Inc()
			s.logger.Errorw("supervisor iteration failed", "error", err)
			sleep(ctx, s.errorSleep())
		}
	}
}

func (s *Supervisor) runBatch(ctx context.Context) error {
	start := time.Now()

	batch, err := s.queue.ClaimBatch(ctx, s.batchLimit)
	if err != nil {
		return err
	}
	batchSize.Observe(float64(len(batch)))
	if len(batch) == 0 {
		sleep(ctx, s.pollInterval)
		return nil
	}

	eventIDs := make([]string, 0, len(batch))
	seen := make(map[string]struct{}, len(batch))
	for _, item := range batch {
		if _, ok := seen[item.EventID]; ok {
			continue
		}
		seen[item.EventID] = struct{}{}
		eventIDs = append(eventIDs, item.EventID)
	}

	events, err := s.queue.LoadEvents(ctx, eventIDs)
	if err != nil {
		return err
	}

	var doneIDs []int64
	for _, item := range batch {
		ev, ok := events[item.EventID]
		if !ok {
			if err := s.queue.MarkRetry(ctx, item.QueueID, "event missing"); err != nil {
				return err
			}
			eventsRetried.Inc()
			continue
		}

		if procErr := s.pipeline.ProcessEvent(ctx, ev); procErr != nil {
			s.logger.Warnw("event processing failed, rescheduling",
				"queue_id", item.QueueID,
				"event_id", item.EventID,
				"error", procErr,
			)
			if err := s.queue.MarkRetry(ctx, item.QueueID, procErr.Error()); err != nil {
				return err
			}
			eventsRetried.Inc()
			continue
		}
		doneIDs = append(doneIDs, item.QueueID)
	}

	if err := s.queue.MarkDone(ctx, doneIDs); err != nil {
		return err
	}
	eventsProcessed.Add(float64(len(doneIDs)))
	batchDuration.Observe(time.Since(start).Seconds())
	return nil
}

// sleep waits for d or until ctx is cancelled, whichever comes first.
func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
