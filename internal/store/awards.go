package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/hoopcentral/achievements-worker/internal/models"
)

// AwardStore is the idempotent award ledger. The uniqueness constraint on
// (player_id, rule_id, scope_key, level) is what makes re-delivered events
// and concurrent workers converge on exactly one award row.
type AwardStore struct {
	db     DB
	logger *zap.SugaredLogger
}

func NewAwardStore(db DB, logger *zap.SugaredLogger) *AwardStore {
	return &AwardStore{db: db, logger: logger}
}

// InsertAward writes a new award and returns its id. When the idempotency
// tuple already exists it returns "" with no error: "already awarded" is a
// normal outcome, not a failure.
func (s *AwardStore) InsertAward(ctx context.Context, a *models.Award) (string, error) {
	awardID := a.AwardID
	if awardID == "" {
		awardID = uuid.NewString()
	}

	var inserted string
	err := s.db.QueryRow(ctx, `
		INSERT INTO player_awards (
			award_id, player_id, rule_id, scope_key, level,
			title, tier, match_id, season_id, league_id, game_year,
			awarded_at, stats, issuer, version
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15
		)
		ON CONFLICT (player_id, rule_id, scope_key, level) DO NOTHING
		RETURNING award_id
	`,
		awardID, a.PlayerID, a.RuleID, a.ScopeKey, a.Level,
		a.Title, a.Tier, a.MatchID, a.SeasonID, a.LeagueID, a.GameYear,
		a.AwardedAt, []byte(a.Stats), a.Issuer, a.Version,
	).Scan(&inserted)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("insert award: %w", err)
	}
	return inserted, nil
}

// AttachAssetURL sets the rendered badge URL. Unconditional write: concurrent
// re-renders of the same award produce identical URLs by construction, so
// last writer wins is safe.
func (s *AwardStore) AttachAssetURL(ctx context.Context, awardID, url string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE player_awards SET asset_svg_url = $2 WHERE award_id = $1
	`, awardID, url)
	if err != nil {
		return fmt.Errorf("attach asset url: %w", err)
	}
	if tag.RowsAffected() == 0 {
		s.logger.Warnw("attach asset url matched no award", "award_id", awardID)
	}
	return nil
}
