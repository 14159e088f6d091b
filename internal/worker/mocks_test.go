package worker

import (
	"context"
	"fmt"

	"github.com/hoopcentral/achievements-worker/internal/models"
	"github.com/hoopcentral/achievements-worker/internal/store"
)

type mockCounters struct {
	careerCalls []string
	seasonCalls []string
	careerErr   error
	seasonErr   error
	fetchErr    error
	set         store.CounterSet
}

func (m *mockCounters) UpdateCareer(_ context.Context, playerID string, _ models.PerGameStats) error {
	m.careerCalls = append(m.careerCalls, playerID)
	return m.careerErr
}

func (m *mockCounters) UpdateSeason(_ context.Context, playerID, seasonID string, _ models.PerGameStats) error {
	m.seasonCalls = append(m.seasonCalls, playerID+"/"+seasonID)
	return m.seasonErr
}

func (m *mockCounters) Fetch(_ context.Context, _, _ string) (store.CounterSet, error) {
	return m.set, m.fetchErr
}

type mockRules struct {
	rules []models.Rule
	err   error
}

func (m *mockRules) FetchCandidateRules(_ context.Context, _, _, _ string) ([]models.Rule, error) {
	return m.rules, m.err
}

type mockAwards struct {
	inserted   []*models.Award
	attached   map[string]string
	insertErr  error
	attachErr  error
	duplicates map[string]bool // rule ids that report "already awarded"
	nextID     int
}

func newMockAwards() *mockAwards {
	return &mockAwards{attached: map[string]string{}, duplicates: map[string]bool{}}
}

func (m *mockAwards) InsertAward(_ context.Context, a *models.Award) (string, error) {
	if m.insertErr != nil {
		return "", m.insertErr
	}
	if m.duplicates[a.RuleID] {
		return "", nil
	}
	m.nextID++
	id := fmt.Sprintf("award-%d", m.nextID)
	cp := *a
	cp.AwardID = id
	m.inserted = append(m.inserted, &cp)
	return id, nil
}

func (m *mockAwards) AttachAssetURL(_ context.Context, awardID, url string) error {
	if m.attachErr != nil {
		return m.attachErr
	}
	m.attached[awardID] = url
	return nil
}

type mockBadges struct {
	uploaded []string
	err      error
}

func (m *mockBadges) GenerateAndUpload(_ context.Context, a *models.Award) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	url := "https://cdn.test/badges/" + a.PlayerID + "/" + a.AwardID + ".svg"
	m.uploaded = append(m.uploaded, a.AwardID)
	return url, nil
}

type mockArchiver struct {
	events []string
}

func (m *mockArchiver) Archive(ev *models.Event, _ models.PerGameStats) {
	m.events = append(m.events, ev.EventID)
}

// mockQueue scripts the supervisor's view of the queue. Each ClaimBatch call
// pops the next batch; outcomes are recorded for assertions.
type mockQueue struct {
	batches  [][]models.QueueItem
	events   map[string]*models.Event
	claimErr error
	loadErr  error
	doneErr  error
	retryErr error
	done     []int64
	retried  map[int64]string
	claimIdx int
}

func newMockQueue() *mockQueue {
	return &mockQueue{events: map[string]*models.Event{}, retried: map[int64]string{}}
}

func (m *mockQueue) ClaimBatch(_ context.Context, _ int) ([]models.QueueItem, error) {
	if m.claimErr != nil {
		return nil, m.claimErr
	}
	if m.claimIdx >= len(m.batches) {
		return nil, nil
	}
	b := m.batches[m.claimIdx]
	m.claimIdx++
	return b, nil
}

func (m *mockQueue) MarkDone(_ context.Context, queueIDs []int64) error {
	if m.doneErr != nil {
		return m.doneErr
	}
	m.done = append(m.done, queueIDs...)
	return nil
}

func (m *mockQueue) MarkRetry(_ context.Context, queueID int64, errMsg string) error {
	if m.retryErr != nil {
		return m.retryErr
	}
	m.retried[queueID] = errMsg
	return nil
}

func (m *mockQueue) LoadEvents(_ context.Context, eventIDs []string) (map[string]*models.Event, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	out := make(map[string]*models.Event, len(eventIDs))
	for _, id := range eventIDs {
		if ev, ok := m.events[id]; ok {
			out[id] = ev
		}
	}
	return out, nil
}

// mockProcessor fails the event ids listed in failing.
type mockProcessor struct {
	processed []string
	failing   map[string]error
}

func (m *mockProcessor) ProcessEvent(_ context.Context, ev *models.Event) error {
	if err, ok := m.failing[ev.EventID]; ok {
		return err
	}
	m.processed = append(m.processed, ev.EventID)
	return nil
}
