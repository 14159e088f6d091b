// Dev utility: seeds a couple of achievement rules and queued stat events so
// a locally running worker has something to chew on.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type seedRule struct {
	RuleID    string
	Title     string
	Tier      string
	Scope     string
	Predicate string
}

var rules = []seedRule{
	{"rule-50-bomb", "50 Bomb", "Gold", "per_game", `{">=": ["per_game.points", 50]}`},
	{"rule-triple-double", "Triple Double", "Silver", "per_game", `{"and": [{">=": ["per_game.points", 10]}, {">=": ["per_game.ast", 10]}, {">=": ["per_game.reb", 10]}]}`},
	{"rule-td-flag", "Triple Double Club", "Platinum", "career", `{"==": ["career.has_triple_double", true]}`},
	{"rule-1k-points", "Thousand Point Season", "Legendary", "season", `{">=": ["season.pts_total", 1000]}`},
}

func main() {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	for _, r := range rules {
		_, err := pool.Exec(ctx, `
			INSERT INTO achievement_rules (rule_id, title, tier, scope, predicate, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, true, now(), now())
			ON CONFLICT (rule_id) DO UPDATE SET
				title = EXCLUDED.title, tier = EXCLUDED.tier,
				scope = EXCLUDED.scope, predicate = EXCLUDED.predicate,
				is_active = true, updated_at = now()
		`, r.RuleID, r.Title, r.Tier, r.Scope, r.Predicate)
		if err != nil {
			log.Fatalf("seed rule %s: %v", r.RuleID, err)
		}
	}
	fmt.Printf("seeded %d rules\n", len(rules))

	payloads := []map[string]any{
		{"points": 52, "ast": 4, "reb": 6, "minutes": 38},
		{"points": 12, "ast": 11, "reb": 10, "stl": 2, "blk": 1, "minutes": 41},
		{"points": 8, "ast": 3, "reb": 5, "minutes": 22},
	}

	for i, p := range payloads {
		payload, err := json.Marshal(p)
		if err != nil {
			log.Fatalf("marshal payload: %v", err)
		}
		eventID := fmt.Sprintf("seed-event-%d-%d", time.Now().Unix(), i)
		_, err = pool.Exec(ctx, `
			INSERT INTO events (event_id, event_type, payload, player_id, match_id, season_id, league_id, game_year, occurred_at)
			VALUES ($1, 'player_stat_event', $2, 'seed-player-1', $3, 'season-2026', 'league-1', '2026', now())
			ON CONFLICT (event_id) DO NOTHING
		`, eventID, payload, fmt.Sprintf("seed-match-%d", i))
		if err != nil {
			log.Fatalf("seed event: %v", err)
		}
		_, err = pool.Exec(ctx, `
			INSERT INTO event_queue (event_id, status, attempts, visible_at, updated_at)
			VALUES ($1, 'queued', 0, now(), now())
		`, eventID)
		if err != nil {
			log.Fatalf("seed queue item: %v", err)
		}
	}
	fmt.Printf("seeded %d queued events\n", len(payloads))
}
