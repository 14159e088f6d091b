package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hoopcentral/achievements-worker/internal/models"
)

// RuleStore loads active achievement rules filtered by game year, league and
// season. An optional Redis client caches filter results with a short TTL;
// rule deactivation is honoured within one TTL, which the contract allows.
type RuleStore struct {
	db       DB
	redis    *redis.Client
	cacheTTL time.Duration
	logger   *zap.SugaredLogger
	validate *validator.Validate
}

func NewRuleStore(db DB, redisClient *redis.Client, cacheTTL time.Duration, logger *zap.SugaredLogger) *RuleStore {
	return &RuleStore{
		db:       db,
		redis:    redisClient,
		cacheTTL: cacheTTL,
		logger:   logger,
		validate: validator.New(),
	}
}

// FetchCandidateRules returns active rules whose filters are unset or match
// the given event scoping, ordered by rule_id for stable iteration.
// Empty arguments match only rules with the corresponding filter unset.
func (s *RuleStore) FetchCandidateRules(ctx context.Context, gameYear, leagueID, seasonID string) ([]models.Rule, error) {
	cacheKey := fmt.Sprintf("rules:%s|%s|%s", gameYear, leagueID, seasonID)

	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var rules []models.Rule
			if json.Unmarshal(cached, &rules) == nil {
				return rules, nil
			}
		}
	}

	rows, err := s.db.Query(ctx, `
		SELECT rule_id, title, COALESCE(tier, ''), scope, predicate, is_active,
		       COALESCE(game_year, ''), COALESCE(league_id, ''), COALESCE(season_id, ''),
		       created_at, updated_at
		FROM achievement_rules
		WHERE is_active = true
		  AND scope IN ('per_game', 'season', 'career')
		  AND (game_year IS NULL OR game_year = $1)
		  AND (league_id IS NULL OR league_id = $2)
		  AND (season_id IS NULL OR season_id = $3)
		ORDER BY rule_id
	`, gameYear, leagueID, seasonID)
	if err != nil {
		return nil, fmt.Errorf("fetch rules: %w", err)
	}
	defer rows.Close()

	var rules []models.Rule
	for rows.Next() {
		var r models.Rule
		var predicate []byte
		err := rows.Scan(
			&r.RuleID, &r.Title, &r.Tier, &r.Scope, &predicate, &r.IsActive,
			&r.GameYear, &r.LeagueID, &r.SeasonID,
			&r.CreatedAt, &r.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("fetch rules scan: %w", err)
		}
		r.Predicate = json.RawMessage(predicate)

		// A single malformed rule row must not take the pipeline down.
		if err := s.validate.Struct(&r); err != nil {
			s.logger.Warnw("skipping invalid rule row", "rule_id", r.RuleID, "error", err)
			continue
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch rules rows: %w", err)
	}

	if s.redis != nil {
		if data, err := json.Marshal(rules); err == nil {
			if err := s.redis.Set(ctx, cacheKey, data, s.cacheTTL).Err(); err != nil {
				s.logger.Warnw("rule cache write failed", "error", err)
			}
		}
	}

	return rules, nil
}
