package models

import (
	"encoding/json"
	"time"
)

// QueueStatus is the lifecycle state of a queue item.
type QueueStatus string

const (
	StatusQueued     QueueStatus = "queued"
	StatusProcessing QueueStatus = "processing"
	StatusDone       QueueStatus = "done"
	StatusError      QueueStatus = "error"
)

// Event types the worker understands. Anything else is drained as a no-op.
const (
	EventPlayerStat = "player_stat_event"
	EventMatch      = "match_event"
)

// Rule scopes. ScopeKey derivation depends on these.
const (
	ScopePerGame = "per_game"
	ScopeSeason  = "season"
	ScopeCareer  = "career"
)

// Event is an immutable record produced by the upstream ingest service.
// Optional ids are empty strings when absent.
type Event struct {
	EventID    string         `json:"event_id"`
	EventType  string         `json:"event_type"`
	Payload    map[string]any `json:"payload"`
	PlayerID   string         `json:"player_id,omitempty"`
	MatchID    string         `json:"match_id,omitempty"`
	SeasonID   string         `json:"season_id,omitempty"`
	LeagueID   string         `json:"league_id,omitempty"`
	GameYear   string         `json:"game_year,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// QueueItem is a lease record over an Event. Items are created exogenously
// in "queued" and driven through processing/done/error by the worker.
type QueueItem struct {
	QueueID   int64       `json:"queue_id"`
	EventID   string      `json:"event_id"`
	Status    QueueStatus `json:"status"`
	Attempts  int32       `json:"attempts"`
	VisibleAt time.Time   `json:"visible_at"`
	LastError string      `json:"last_error,omitempty"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Rule is a declarative achievement definition. Filter fields are empty
// strings when the rule applies everywhere.
type Rule struct {
	RuleID    string          `json:"rule_id" validate:"required"`
	Title     string          `json:"title" validate:"required"`
	Tier      string          `json:"tier"`
	Scope     string          `json:"scope" validate:"oneof=per_game season career"`
	Predicate json.RawMessage `json:"predicate" validate:"required"`
	IsActive  bool            `json:"is_active"`
	GameYear  string          `json:"game_year,omitempty"`
	LeagueID  string          `json:"league_id,omitempty"`
	SeasonID  string          `json:"season_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Award is an issued achievement. The idempotency tuple is
// (player_id, rule_id, scope_key, level); scope_key is the empty string for
// career awards so the store can enforce uniqueness without NULL semantics.
type Award struct {
	AwardID     string          `json:"award_id"`
	PlayerID    string          `json:"player_id"`
	RuleID      string          `json:"rule_id"`
	ScopeKey    string          `json:"scope_key"`
	Level       int32           `json:"level"`
	Title       string          `json:"title"`
	Tier        string          `json:"tier"`
	MatchID     string          `json:"match_id,omitempty"`
	SeasonID    string          `json:"season_id,omitempty"`
	LeagueID    string          `json:"league_id,omitempty"`
	GameYear    string          `json:"game_year,omitempty"`
	AwardedAt   time.Time       `json:"awarded_at"`
	Stats       json.RawMessage `json:"stats"`
	Issuer      string          `json:"issuer"`
	Version     int32           `json:"version"`
	AssetSVGURL string          `json:"asset_svg_url,omitempty"`
}

// PlayerCounters is one aggregate row keyed by (player_id, scope, season_id).
// SeasonID is empty exactly when Scope is career.
type PlayerCounters struct {
	PlayerID    string `json:"player_id"`
	Scope       string `json:"scope"`
	SeasonID    string `json:"season_id,omitempty"`
	GamesPlayed int64  `json:"games_played"`

	PtsTotal     float64 `json:"pts_total"`
	AstTotal     float64 `json:"ast_total"`
	RebTotal     float64 `json:"reb_total"`
	StlTotal     float64 `json:"stl_total"`
	BlkTotal     float64 `json:"blk_total"`
	TovTotal     float64 `json:"tov_total"`
	MinutesTotal float64 `json:"minutes_total"`
	FgmTotal     float64 `json:"fgm_total"`
	FgaTotal     float64 `json:"fga_total"`
	TpmTotal     float64 `json:"tpm_total"`
	TpaTotal     float64 `json:"tpa_total"`
	FtmTotal     float64 `json:"ftm_total"`
	FtaTotal     float64 `json:"fta_total"`

	Has50PtGame     bool `json:"has_50pt_game"`
	HasTripleDouble bool `json:"has_triple_double"`
	HasDoubleDouble bool `json:"has_double_double"`

	MaxPtsGame float64 `json:"max_pts_game"`
	MaxAstGame float64 `json:"max_ast_game"`
	MaxRebGame float64 `json:"max_reb_game"`
	MaxStlGame float64 `json:"max_stl_game"`
	MaxBlkGame float64 `json:"max_blk_game"`
}

// ContextMap flattens a counters row into the evaluation context shape,
// e.g. "season.pts_total" or "career.has_triple_double".
func (c *PlayerCounters) ContextMap() map[string]any {
	if c == nil {
		return map[string]any{}
	}
	return map[string]any{
		"games_played":      float64(c.GamesPlayed),
		"pts_total":         c.PtsTotal,
		"ast_total":         c.AstTotal,
		"reb_total":         c.RebTotal,
		"stl_total":         c.StlTotal,
		"blk_total":         c.BlkTotal,
		"tov_total":         c.TovTotal,
		"minutes_total":     c.MinutesTotal,
		"fgm_total":         c.FgmTotal,
		"fga_total":         c.FgaTotal,
		"tpm_total":         c.TpmTotal,
		"tpa_total":         c.TpaTotal,
		"ftm_total":         c.FtmTotal,
		"fta_total":         c.FtaTotal,
		"has_50pt_game":     c.Has50PtGame,
		"has_triple_double": c.HasTripleDouble,
		"has_double_double": c.HasDoubleDouble,
		"max_pts_game":      c.MaxPtsGame,
		"max_ast_game":      c.MaxAstGame,
		"max_reb_game":      c.MaxRebGame,
		"max_stl_game":      c.MaxStlGame,
		"max_blk_game":      c.MaxBlkGame,
	}
}
