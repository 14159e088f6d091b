package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/hoopcentral/achievements-worker/internal/models"
)

func testAwardRecord() *models.Award {
	return &models.Award{
		PlayerID:  "player-1",
		RuleID:    "rule-50-bomb",
		ScopeKey:  "match-9",
		Level:     1,
		Title:     "50 Bomb",
		Tier:      "Gold",
		AwardedAt: time.Date(2026, 3, 14, 19, 26, 53, 0, time.UTC),
		Stats:     json.RawMessage(`{}`),
		Issuer:    "achievements-worker",
		Version:   1,
	}
}

func TestInsertAwardGeneratesID(t *testing.T) {
	row := &mockRow{values: []any{"generated"}}
	db := &mockDB{row: row}
	s := NewAwardStore(db, zap.NewNop().Sugar())

	// The scripted row echoes "generated" rather than the real id; what
	// matters here is that a uuid was passed as $1.
	id, err := s.InsertAward(context.Background(), testAwardRecord())
	if err != nil {
		t.Fatalf("InsertAward: %v", err)
	}
	if id == "" {
		t.Fatal("insert should return an id")
	}
	if generated, ok := row.args[0].(string); !ok || generated == "" {
		t.Errorf("award_id arg = %v, want generated uuid", row.args[0])
	}
}

func TestInsertAwardKeepsProvidedID(t *testing.T) {
	row := &mockRow{values: []any{"award-keep"}}
	db := &mockDB{row: row}
	s := NewAwardStore(db, zap.NewNop().Sugar())

	a := testAwardRecord()
	a.AwardID = "award-keep"
	id, err := s.InsertAward(context.Background(), a)
	if err != nil {
		t.Fatalf("InsertAward: %v", err)
	}
	if id != "award-keep" || row.args[0] != "award-keep" {
		t.Errorf("id = %q, args[0] = %v", id, row.args[0])
	}
}

func TestInsertAwardDuplicate(t *testing.T) {
	// ON CONFLICT DO NOTHING returns no row for an existing tuple.
	db := &mockDB{}
	s := NewAwardStore(db, zap.NewNop().Sugar())

	id, err := s.InsertAward(context.Background(), testAwardRecord())
	if err != nil {
		t.Fatalf("duplicate must not error: %v", err)
	}
	if id != "" {
		t.Errorf("duplicate should return empty id, got %q", id)
	}
}

func TestAttachAssetURL(t *testing.T) {
	db := &mockDB{execTag: pgconn.NewCommandTag("UPDATE 1")}
	s := NewAwardStore(db, zap.NewNop().Sugar())

	if err := s.AttachAssetURL(context.Background(), "award-1", "https://cdn.test/b.svg"); err != nil {
		t.Fatalf("AttachAssetURL: %v", err)
	}
	args := db.execArgs[0]
	if args[0] != "award-1" || args[1] != "https://cdn.test/b.svg" {
		t.Errorf("args = %v", args)
	}
}

func TestAttachAssetURLNoMatch(t *testing.T) {
	db := &mockDB{execTag: pgconn.NewCommandTag("UPDATE 0")}
	s := NewAwardStore(db, zap.NewNop().Sugar())

	// A vanished award row is logged, not fatal.
	if err := s.AttachAssetURL(context.Background(), "award-gone", "https://cdn.test/b.svg"); err != nil {
		t.Fatalf("AttachAssetURL: %v", err)
	}
}
