package worker

import (
	"context"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/hoopcentral/achievements-worker/internal/models"
)

// Archiver ships processed stat events to ClickHouse for offline analytics.
// Writes are buffered and batched; when the buffer is full the event is
// dropped rather than blocking the pipeline. The archive is best effort and
// the relational store remains the source of truth.
type Archiver struct {
	ch     driver.Conn
	logger *zap.SugaredLogger

	jobs chan archiveJob
	wg   sync.WaitGroup

	batchMax      int
	flushInterval time.Duration
}

type archiveJob struct {
	event       *models.Event
	stats       models.PerGameStats
	processedAt time.Time
}

func NewArchiver(ch driver.Conn, logger *zap.SugaredLogger) *Archiver {
	return &Archiver{
		ch:            ch,
		logger:        logger,
		jobs:          make(chan archiveJob, 4096),
		batchMax:      500,
		flushInterval: time.Second,
	}
}

// Start launches the background flusher.
func (a *Archiver) Start() {
	a.wg.Add(1)
	go a.run()
	a.logger.Info("event archiver started")
}

// Stop drains the buffer, flushes it and waits for the flusher to exit.
// Archive must not be called after Stop.
func (a *Archiver) Stop() {
	close(a.jobs)
	a.wg.Wait()
	a.logger.Info("event archiver stopped")
}

// Archive enqueues one processed event. Drops when the buffer is full.
func (a *Archiver) Archive(ev *models.Event, stats models.PerGameStats) {
	select {
	case a.jobs <- archiveJob{event: ev, stats: stats, processedAt: time.Now()}:
	default:
		a.logger.Warnw("archive buffer full, dropping event", "event_id", ev.EventID)
	}
}

func (a *Archiver) run() {
	defer a.wg.Done()

	batch := make([]archiveJob, 0, a.batchMax)
	ticker := time.NewTicker(a.flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := a.flush(batch); err != nil {
			a.logger.Errorw("archive flush failed", "batch_size", len(batch), "error", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case job, ok := <-a.jobs:
			if !ok {
				flush()
				return
			}
			batch = append(batch, job)
			if len(batch) >= a.batchMax {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (a *Archiver) flush(batch []archiveJob) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	chBatch, err := a.ch.PrepareBatch(ctx, `
		INSERT INTO achievements.processed_stat_events (
			event_id, player_id, match_id, season_id, league_id, game_year,
			points, ast, reb, stl, blk, tov, minutes,
			fgm, fga, tpm, tpa, ftm, fta,
			occurred_at, processed_at
		)
	`)
	if err != nil {
		return err
	}

	for _, job := range batch {
		ev, s := job.event, job.stats
		err := chBatch.Append(
			ev.EventID, ev.PlayerID, ev.MatchID, ev.SeasonID, ev.LeagueID, ev.GameYear,
			s.Points, s.Ast, s.Reb, s.Stl, s.Blk, s.Tov, s.Minutes,
			s.Fgm, s.Fga, s.Tpm, s.Tpa, s.Ftm, s.Fta,
			ev.OccurredAt, job.processedAt,
		)
		if err != nil {
			a.logger.Warnw("failed to append event to archive batch",
				"event_id", ev.EventID,
				"error", err,
			)
		}
	}

	return chBatch.Send()
}
