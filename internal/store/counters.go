package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/hoopcentral/achievements-worker/internal/models"
)

// CounterStore maintains per-player aggregate rows. All writes are single
// conflict-upserts, so concurrent workers updating the same player serialize
// inside Postgres and both land (addition and OR are commutative).
type CounterStore struct {
	db     DB
	logger *zap.SugaredLogger
}

func NewCounterStore(db DB, logger *zap.SugaredLogger) *CounterStore {
	return &CounterStore{db: db, logger: logger}
}

// CounterSet is one player's aggregate pair. Either side is nil until the
// player has accumulated in that scope.
type CounterSet struct {
	Career *models.PlayerCounters
	Season *models.PlayerCounters
}

const counterUpsert = `
	INSERT INTO player_counters (
		player_id, scope, season_id, games_played,
		pts_total, ast_total, reb_total, stl_total, blk_total,
		tov_total, minutes_total, fgm_total, fga_total,
		tpm_total, tpa_total, ftm_total, fta_total,
		has_50pt_game, has_triple_double, has_double_double,
		max_pts_game, max_ast_game, max_reb_game, max_stl_game, max_blk_game,
		updated_at
	) VALUES (
		$1, $2, $3, 1,
		$4, $5, $6, $7, $8,
		$9, $10, $11, $12,
		$13, $14, $15, $16,
		$17, $18, $19,
		$4, $5, $6, $7, $8,
		now()
	)
	ON CONFLICT (player_id, scope, season_id) DO UPDATE SET
		games_played      = player_counters.games_played + 1,
		pts_total         = player_counters.pts_total + EXCLUDED.pts_total,
		ast_total         = player_counters.ast_total + EXCLUDED.ast_total,
		reb_total         = player_counters.reb_total + EXCLUDED.reb_total,
		stl_total         = player_counters.stl_total + EXCLUDED.stl_total,
		blk_total         = player_counters.blk_total + EXCLUDED.blk_total,
		tov_total         = player_counters.tov_total + EXCLUDED.tov_total,
		minutes_total     = player_counters.minutes_total + EXCLUDED.minutes_total,
		fgm_total         = player_counters.fgm_total + EXCLUDED.fgm_total,
		fga_total         = player_counters.fga_total + EXCLUDED.fga_total,
		tpm_total         = player_counters.tpm_total + EXCLUDED.tpm_total,
		tpa_total         = player_counters.tpa_total + EXCLUDED.tpa_total,
		ftm_total         = player_counters.ftm_total + EXCLUDED.ftm_total,
		fta_total         = player_counters.fta_total + EXCLUDED.fta_total,
		has_50pt_game     = player_counters.has_50pt_game OR EXCLUDED.has_50pt_game,
		has_triple_double = player_counters.has_triple_double OR EXCLUDED.has_triple_double,
		has_double_double = player_counters.has_double_double OR EXCLUDED.has_double_double,
		max_pts_game      = GREATEST(player_counters.max_pts_game, EXCLUDED.max_pts_game),
		max_ast_game      = GREATEST(player_counters.max_ast_game, EXCLUDED.max_ast_game),
		max_reb_game      = GREATEST(player_counters.max_reb_game, EXCLUDED.max_reb_game),
		max_stl_game      = GREATEST(player_counters.max_stl_game, EXCLUDED.max_stl_game),
		max_blk_game      = GREATEST(player_counters.max_blk_game, EXCLUDED.max_blk_game),
		updated_at        = now()
`

// UpdateCareer folds one game into the player's career row.
func (s *CounterStore) UpdateCareer(ctx context.Context, playerID string, stats models.PerGameStats) error {
	return s.upsert(ctx, playerID, models.ScopeCareer, "", stats)
}

// UpdateSeason folds one game into the player's row for the given season.
func (s *CounterStore) UpdateSeason(ctx context.Context, playerID, seasonID string, stats models.PerGameStats) error {
	if seasonID == "" {
		return fmt.Errorf("update season: empty season_id for player %s", playerID)
	}
	return s.upsert(ctx, playerID, models.ScopeSeason, seasonID, stats)
}

func (s *CounterStore) upsert(ctx context.Context, playerID, scope, seasonID string, stats models.PerGameStats) error {
	d := stats.DoubleDigitCount()
	_, err := s.db.Exec(ctx, counterUpsert,
		playerID, scope, seasonID,
		stats.Points, stats.Ast, stats.Reb, stats.Stl, stats.Blk,
		stats.Tov, stats.Minutes, stats.Fgm, stats.Fga,
		stats.Tpm, stats.Tpa, stats.Ftm, stats.Fta,
		stats.Points >= 50, d >= 3, d >= 2,
	)
	if err != nil {
		return fmt.Errorf("counter upsert %s/%s: %w", playerID, scope, err)
	}
	return nil
}

// Fetch reads the player's career row and, when seasonID is non-empty, the
// season row, in a single query.
func (s *CounterStore) Fetch(ctx context.Context, playerID, seasonID string) (CounterSet, error) {
	rows, err := s.db.Query(ctx, `
		SELECT player_id, scope, season_id, games_played,
		       pts_total, ast_total, reb_total, stl_total, blk_total,
		       tov_total, minutes_total, fgm_total, fga_total,
		       tpm_total, tpa_total, ftm_total, fta_total,
		       has_50pt_game, has_triple_double, has_double_double,
		       max_pts_game, max_ast_game, max_reb_game, max_stl_game, max_blk_game
		FROM player_counters
		WHERE player_id = $1
		  AND ((scope = 'career' AND season_id = '')
		    OR (scope = 'season' AND season_id = $2))
	`, playerID, seasonID)
	if err != nil {
		return CounterSet{}, fmt.Errorf("fetch counters: %w", err)
	}
	defer rows.Close()

	var set CounterSet
	for rows.Next() {
		c, err := scanCounters(rows)
		if err != nil {
			return CounterSet{}, err
		}
		switch c.Scope {
		case models.ScopeCareer:
			set.Career = c
		case models.ScopeSeason:
			set.Season = c
		}
	}
	if err := rows.Err(); err != nil {
		return CounterSet{}, fmt.Errorf("fetch counters rows: %w", err)
	}
	return set, nil
}

func scanCounters(row pgx.Rows) (*models.PlayerCounters, error) {
	c := &models.PlayerCounters{}
	err := row.Scan(
		&c.PlayerID, &c.Scope, &c.SeasonID, &c.GamesPlayed,
		&c.PtsTotal, &c.AstTotal, &c.RebTotal, &c.StlTotal, &c.BlkTotal,
		&c.TovTotal, &c.MinutesTotal, &c.FgmTotal, &c.FgaTotal,
		&c.TpmTotal, &c.TpaTotal, &c.FtmTotal, &c.FtaTotal,
		&c.Has50PtGame, &c.HasTripleDouble, &c.HasDoubleDouble,
		&c.MaxPtsGame, &c.MaxAstGame, &c.MaxRebGame, &c.MaxStlGame, &c.MaxBlkGame,
	)
	if err != nil {
		return nil, fmt.Errorf("scan counters: %w", err)
	}
	return c, nil
}
