package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/hoopcentral/achievements-worker/internal/models"
)

// QueueStore drives the event_queue table. Claims take row locks with
// SKIP LOCKED so concurrent workers never lease overlapping items.
type QueueStore struct {
	db          DB
	logger      *zap.SugaredLogger
	maxAttempts int32
	leaseTTL    time.Duration
}

func NewQueueStore(db DB, logger *zap.SugaredLogger, maxAttempts int, leaseTTL time.Duration) *QueueStore {
	return &QueueStore{
		db:          db,
		logger:      logger,
		maxAttempts: int32(maxAttempts),
		leaseTTL:    leaseTTL,
	}
}

// ClaimBatch atomically moves up to limit visible queued rows to processing
// and returns them in queue_id order. Rows stuck in processing longer than
// the lease TTL (a worker died mid-batch) are reclaimed by the same query.
func (s *QueueStore) ClaimBatch(ctx context.Context, limit int) ([]models.QueueItem, error) {
	const q = `
		WITH picked AS (
			SELECT queue_id
			FROM event_queue
			WHERE (status = 'queued' AND visible_at <= now())
			   OR (status = 'processing' AND updated_at < $2)
			ORDER BY queue_id
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE event_queue eq
		SET status = 'processing', updated_at = now()
		FROM picked
		WHERE eq.queue_id = picked.queue_id
		RETURNING eq.queue_id, eq.event_id, eq.attempts
	`

	rows, err := s.db.Query(ctx, q, limit, time.Now().Add(-s.leaseTTL))
	if err != nil {
		return nil, fmt.Errorf("claim batch: %w", err)
	}
	defer rows.Close()

	var items []models.QueueItem
	for rows.Next() {
		item := models.QueueItem{Status: models.StatusProcessing}
		if err := rows.Scan(&item.QueueID, &item.EventID, &item.Attempts); err != nil {
			return nil, fmt.Errorf("claim batch scan: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim batch rows: %w", err)
	}

	// UPDATE ... RETURNING does not guarantee CTE order.
	sort.Slice(items, func(i, j int) bool { return items[i].QueueID < items[j].QueueID })

	return items, nil
}

// MarkDone bulk-transitions processing rows to done. Ids not in processing
// are left alone, which makes the call safe to repeat.
func (s *QueueStore) MarkDone(ctx context.Context, queueIDs []int64) error {
	if len(queueIDs) == 0 {
		return nil
	}
	_, err := s.db.Exec(ctx, `
		UPDATE event_queue
		SET status = 'done', updated_at = now()
		WHERE queue_id = ANY($1) AND status = 'processing'
	`, queueIDs)
	if err != nil {
		return fmt.Errorf("mark done: %w", err)
	}
	return nil
}

// MarkRetry reschedules one item after a failure. The read-modify-write on
// attempts runs in a transaction under a row lock so two workers racing on
// the same item cannot lose an increment. Attempt exhaustion parks the row
// in the error state with the failure message preserved.
func (s *QueueStore) MarkRetry(ctx context.Context, queueID int64, errMsg string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("mark retry begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var attempts int32
	err = tx.QueryRow(ctx, `
		SELECT attempts FROM event_queue WHERE queue_id = $1 FOR UPDATE
	`, queueID).Scan(&attempts)
	if err != nil {
		return fmt.Errorf("mark retry select: %w", err)
	}

	attempts++
	if attempts >= s.maxAttempts {
		_, err = tx.Exec(ctx, `
			UPDATE event_queue
			SET status = 'error', attempts = $2, last_error = $3, updated_at = now()
			WHERE queue_id = $1
		`, queueID, attempts, errMsg)
		if err == nil {
			s.logger.Errorw("queue item exhausted retries",
				"queue_id", queueID,
				"attempts", attempts,
				"error", errMsg,
			)
		}
	} else {
		_, err = tx.Exec(ctx, `
			UPDATE event_queue
			SET status = 'queued', attempts = $2, last_error = $3,
			    visible_at = $4, updated_at = now()
			WHERE queue_id = $1
		`, queueID, attempts, errMsg, time.Now().Add(Backoff(attempts)))
	}
	if err != nil {
		return fmt.Errorf("mark retry update: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("mark retry commit: %w", err)
	}
	return nil
}

// Backoff returns the retry delay after the given attempt count:
// 2^min(attempts, 7) minutes, so 2m, 4m, 8m ... capped at 128m.
func Backoff(attempts int32) time.Duration {
	exp := attempts
	if exp > 7 {
		exp = 7
	}
	return time.Duration(1<<uint(exp)) * time.Minute
}

// QueueLag counts queued rows that are currently visible. Health reporting
// only; the supervisor never reads it.
func (s *QueueStore) QueueLag(ctx context.Context) (int64, error) {
	var lag int64
	err := s.db.QueryRow(ctx, `
		SELECT count(*) FROM event_queue
		WHERE status = 'queued' AND visible_at <= now()
	`).Scan(&lag)
	if err != nil {
		return 0, fmt.Errorf("queue lag: %w", err)
	}
	return lag, nil
}

// LoadEvents fetches the events referenced by a claimed batch, keyed by
// event_id. Items whose event is missing simply have no map entry.
func (s *QueueStore) LoadEvents(ctx context.Context, eventIDs []string) (map[string]*models.Event, error) {
	events := make(map[string]*models.Event, len(eventIDs))
	if len(eventIDs) == 0 {
		return events, nil
	}

	rows, err := s.db.Query(ctx, `
		SELECT event_id, event_type, payload,
		       COALESCE(player_id, ''), COALESCE(match_id, ''),
		       COALESCE(season_id, ''), COALESCE(league_id, ''),
		       COALESCE(game_year, ''), occurred_at
		FROM events
		WHERE event_id = ANY($1)
	`, eventIDs)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		ev := &models.Event{}
		var payload []byte
		err := rows.Scan(
			&ev.EventID, &ev.EventType, &payload,
			&ev.PlayerID, &ev.MatchID,
			&ev.SeasonID, &ev.LeagueID,
			&ev.GameYear, &ev.OccurredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("load events scan: %w", err)
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &ev.Payload); err != nil {
				s.logger.Warnw("event payload is not a JSON object",
					"event_id", ev.EventID,
					"error", err,
				)
			}
		}
		if ev.Payload == nil {
			ev.Payload = map[string]any{}
		}
		events[ev.EventID] = ev
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load events rows: %w", err)
	}
	return events, nil
}
