package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hoopcentral/achievements-worker/internal/canonjson"
	"github.com/hoopcentral/achievements-worker/internal/models"
	"github.com/hoopcentral/achievements-worker/internal/predicate"
	"github.com/hoopcentral/achievements-worker/internal/store"
)

// CounterUpdater aggregates per-game stats into career and season rows.
type CounterUpdater interface {
	UpdateCareer(ctx context.Context, playerID string, stats models.PerGameStats) error
	UpdateSeason(ctx context.Context, playerID, seasonID string, stats models.PerGameStats) error
	Fetch(ctx context.Context, playerID, seasonID string) (store.CounterSet, error)
}

// RuleFetcher loads active rules for an event's scoping.
type RuleFetcher interface {
	FetchCandidateRules(ctx context.Context, gameYear, leagueID, seasonID string) ([]models.Rule, error)
}

// AwardLedger issues awards idempotently and attaches badge URLs.
type AwardLedger interface {
	InsertAward(ctx context.Context, a *models.Award) (string, error)
	AttachAssetURL(ctx context.Context, awardID, url string) error
}

// BadgeUploader renders and stores a badge, returning its public URL.
type BadgeUploader interface {
	GenerateAndUpload(ctx context.Context, a *models.Award) (string, error)
}

// EventArchiver receives processed stat events for analytics. Best effort;
// the pipeline never blocks on it.
type EventArchiver interface {
	Archive(ev *models.Event, stats models.PerGameStats)
}

const issuer = "achievements-worker"

// Pipeline runs the per-event work: stats extraction, counter upserts,
// rule evaluation, award creation and badge rendering.
type Pipeline struct {
	counters CounterUpdater
	rules    RuleFetcher
	awards   AwardLedger
	badges   BadgeUploader
	archiver EventArchiver // nil when analytics is disabled
	logger   *zap.SugaredLogger
	now      func() time.Time
}

func NewPipeline(counters CounterUpdater, rules RuleFetcher, awards AwardLedger, badges BadgeUploader, archiver EventArchiver, logger *zap.SugaredLogger) *Pipeline {
	return &Pipeline{
		counters: counters,
		rules:    rules,
		awards:   awards,
		badges:   badges,
		archiver: archiver,
		logger:   logger,
		now:      time.Now,
	}
}

// ProcessEvent handles one event end to end. A returned error means the
// queue item must be retried; nil means it can be marked done. Unknown
// event types are drained as successes so they cannot wedge the queue.
func (p *Pipeline) ProcessEvent(ctx context.Context, ev *models.Event) error {
	switch ev.EventType {
	case models.EventPlayerStat:
		return p.processStatEvent(ctx, ev)
	case models.EventMatch:
		return nil
	default:
		p.logger.Infow("ignoring unknown event type",
			"event_id", ev.EventID,
			"event_type", ev.EventType,
		)
		eventsSkipped.Inc()
		return nil
	}
}

func (p *Pipeline) processStatEvent(ctx context.Context, ev *models.Event) error {
	if ev.PlayerID == "" {
		return fmt.Errorf("player_stat_event %s has no player_id", ev.EventID)
	}

	stats := models.ExtractStats(ev.Payload)

	if err := p.counters.UpdateCareer(ctx, ev.PlayerID, stats); err != nil {
		return fmt.Errorf("update career: %w", err)
	}
	if ev.SeasonID != "" {
		if err := p.counters.UpdateSeason(ctx, ev.PlayerID, ev.SeasonID, stats); err != nil {
			return fmt.Errorf("update season: %w", err)
		}
	}

	counters, err := p.counters.Fetch(ctx, ev.PlayerID, ev.SeasonID)
	if err != nil {
		return fmt.Errorf("fetch counters: %w", err)
	}

	evalCtx := predicate.Context{
		PerGame: stats.Map(),
		Season:  counters.Season.ContextMap(),
		Career:  counters.Career.ContextMap(),
	}

	rules, err := p.rules.FetchCandidateRules(ctx, ev.GameYear, ev.LeagueID, ev.SeasonID)
	if err != nil {
		return fmt.Errorf("fetch rules: %w", err)
	}

	// Rule failures never short-circuit the remaining rules, but any
	// failure retries the whole item so the missing award or badge is
	// eventually issued. Idempotent inserts absorb the re-run.
	var failedRules int
	var firstErr error
	for i := range rules {
		rule := &rules[i]
		if err := p.processRule(ctx, ev, rule, stats, evalCtx); err != nil {
			p.logger.Errorw("rule processing failed",
				"event_id", ev.EventID,
				"rule_id", rule.RuleID,
				"error", err,
			)
			failedRules++
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if p.archiver != nil {
		p.archiver.Archive(ev, stats)
	}

	if failedRules > 0 {
		return fmt.Errorf("%d rule(s) failed for event %s: %w", failedRules, ev.EventID, firstErr)
	}
	return nil
}

func (p *Pipeline) processRule(ctx context.Context, ev *models.Event, rule *models.Rule, stats models.PerGameStats, evalCtx predicate.Context) error {
	node := predicate.Parse(rule.Predicate)
	if !node.Valid() {
		// User-authored rules are sandboxed: malformed is false, never fatal.
		p.logger.Warnw("malformed rule predicate",
			"rule_id", rule.RuleID,
			"event_id", ev.EventID,
		)
		return nil
	}
	if !node.EvalBool(evalCtx) {
		return nil
	}

	snapshot, err := canonjson.Marshal(map[string]any{
		"per_game":       stats.Map(),
		"season":         evalCtx.Season,
		"career":         evalCtx.Career,
		"rule_predicate": rule.Predicate,
	})
	if err != nil {
		return fmt.Errorf("stats snapshot: %w", err)
	}

	award := &models.Award{
		PlayerID:  ev.PlayerID,
		RuleID:    rule.RuleID,
		ScopeKey:  scopeKey(rule.Scope, ev),
		Level:     1,
		Title:     rule.Title,
		Tier:      rule.Tier,
		MatchID:   ev.MatchID,
		SeasonID:  ev.SeasonID,
		LeagueID:  ev.LeagueID,
		GameYear:  ev.GameYear,
		AwardedAt: p.now().UTC(),
		Stats:     snapshot,
		Issuer:    issuer,
		Version:   1,
	}

	awardID, err := p.awards.InsertAward(ctx, award)
	if err != nil {
		return fmt.Errorf("insert award: %w", err)
	}
	if awardID == "" {
		// Already awarded on a previous delivery.
		return nil
	}
	award.AwardID = awardID
	awardsIssued.Inc()

	p.logger.Infow("award issued",
		"player_id", ev.PlayerID,
		"rule_id", rule.RuleID,
		"award_id", awardID,
		"title", rule.Title,
		"tier", rule.Tier,
	)

	url, err := p.badges.GenerateAndUpload(ctx, award)
	if err != nil {
		return fmt.Errorf("render badge: %w", err)
	}
	if err := p.awards.AttachAssetURL(ctx, awardID, url); err != nil {
		return fmt.Errorf("attach badge url: %w", err)
	}
	badgesUploaded.Inc()
	return nil
}

// scopeKey distinguishes awardable contexts within a rule's scope: the
// match for per_game, the season for season, empty for career.
func scopeKey(scope string, ev *models.Event) string {
	switch scope {
	case models.ScopePerGame:
		return ev.MatchID
	case models.ScopeSeason:
		return ev.SeasonID
	default:
		return ""
	}
}
