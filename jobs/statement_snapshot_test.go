package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/aegis-hfm/aegis-hfm/internal/facility"
	"github.com/aegis-hfm/aegis-hfm/internal/statement"
)

type stubGenerator struct {
	requests []statement.GenerateRequest
	resp     statement.FinancialStatementResponse
	err      error
}

func (s *stubGenerator) Generate(ctx context.Context, req statement.GenerateRequest) (statement.FinancialStatementResponse, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return statement.FinancialStatementResponse{}, s.err
	}
	return s.resp, nil
}

type stubSnapshotStore struct {
	existing     map[int64]*statement.Snapshot
	saved        []statement.Snapshot
	failFacility int64
}

func (s *stubSnapshotStore) SaveSnapshot(ctx context.Context, snap statement.Snapshot) error {
	if s.failFacility != 0 && snap.FacilityID == s.failFacility {
		return errors.New("insert failed")
	}
	s.saved = append(s.saved, snap)
	return nil
}

func (s *stubSnapshotStore) LatestSnapshot(ctx context.Context, statementCode string, facilityID, reportingPeriodID int64) (*statement.Snapshot, error) {
	return s.existing[facilityID], nil
}

func newJobCache(t *testing.T) *statement.Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return statement.NewCache(client, time.Minute)
}

func snapshotTask(t *testing.T, facilityIDs []int64) *asynq.Task {
	t.Helper()
	task, err := NewStatementSnapshotTask(StatementSnapshotPayload{
		Scope: StatementScope{
			StatementCode:     statement.CodeCashFlow,
			ProjectID:         1,
			ReportingPeriodID: 3,
			FacilityIDs:       facilityIDs,
			ProjectType:       "HEALTH",
		},
	})
	if err != nil {
		t.Fatalf("NewStatementSnapshotTask: %v", err)
	}
	return task
}

func TestSnapshotJobSavesPerFacilityAndBumpsCache(t *testing.T) {
	ctx := context.Background()
	gen := &stubGenerator{resp: statement.FinancialStatementResponse{
		Statement: statement.StatementPayload{
			Totals: map[string]float64{statement.LineCashEnd: 42500},
		},
	}}
	store := &stubSnapshotStore{}
	cache := newJobCache(t)
	before, err := cache.Version(ctx)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}

	job := NewStatementSnapshotJob(gen, store, cache, nil, nil)
	if err := job.Handle(ctx, snapshotTask(t, []int64{1, 2})); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(store.saved) != 2 {
		t.Fatalf("saved %d snapshots, want 2", len(store.saved))
	}
	for _, snap := range store.saved {
		if snap.EndingCash != 42500 {
			t.Fatalf("ending cash = %v, want 42500", snap.EndingCash)
		}
		if snap.StatementCode != statement.CodeCashFlow || snap.ReportingPeriodID != 3 {
			t.Fatalf("snapshot scope = %+v", snap)
		}
	}
	for _, req := range gen.requests {
		if req.Level != facility.LevelFacility || req.FacilityID == nil {
			t.Fatalf("generation not scoped to one facility: %+v", req)
		}
	}

	after, err := cache.Version(ctx)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if after != before+1 {
		t.Fatalf("cache version = %d, want %d", after, before+1)
	}
}

func TestSnapshotJobBumpsCacheAfterPartialFailure(t *testing.T) {
	ctx := context.Background()
	gen := &stubGenerator{}
	store := &stubSnapshotStore{failFacility: 2}
	cache := newJobCache(t)
	before, err := cache.Version(ctx)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}

	job := NewStatementSnapshotJob(gen, store, cache, nil, nil)
	if err := job.Handle(ctx, snapshotTask(t, []int64{1, 2})); err == nil {
		t.Fatal("expected error from failing facility")
	}

	if len(store.saved) != 1 {
		t.Fatalf("saved %d snapshots, want 1", len(store.saved))
	}
	// Facility 1's snapshot landed, so cached statements are stale even
	// though the run failed on facility 2.
	after, err := cache.Version(ctx)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if after != before+1 {
		t.Fatalf("cache version = %d, want %d after partial save", after, before+1)
	}
}

func TestSnapshotJobSkipsExistingSnapshots(t *testing.T) {
	ctx := context.Background()
	gen := &stubGenerator{}
	store := &stubSnapshotStore{existing: map[int64]*statement.Snapshot{
		1: {StatementCode: statement.CodeCashFlow, FacilityID: 1, ReportingPeriodID: 3},
	}}
	cache := newJobCache(t)
	before, err := cache.Version(ctx)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}

	job := NewStatementSnapshotJob(gen, store, cache, nil, nil)
	if err := job.Handle(ctx, snapshotTask(t, []int64{1})); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(gen.requests) != 0 {
		t.Fatalf("generator invoked %d times for an existing snapshot", len(gen.requests))
	}
	if len(store.saved) != 0 {
		t.Fatalf("saved %d snapshots, want 0", len(store.saved))
	}
	after, err := cache.Version(ctx)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if after != before {
		t.Fatalf("cache version moved to %d with nothing saved", after)
	}
}

func TestWarmupUsesConfiguredScopes(t *testing.T) {
	gen := &stubGenerator{}
	job := NewStatementWarmupJob(gen, nil, nil, nil)

	task, err := NewStatementWarmupTask(StatementWarmupPayload{
		Scopes: []StatementScope{{
			StatementCode:     statement.CodeBalanceSheet,
			ProjectID:         1,
			ReportingPeriodID: 3,
			FacilityIDs:       []int64{1, 2},
			ProjectType:       "HEALTH",
		}},
	})
	if err != nil {
		t.Fatalf("NewStatementWarmupTask: %v", err)
	}
	if err := job.Handle(context.Background(), task); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(gen.requests) != 1 {
		t.Fatalf("generator invoked %d times, want 1", len(gen.requests))
	}
	req := gen.requests[0]
	if req.Level != facility.LevelProvince || len(req.AccessibleFacilityIDs) != 2 {
		t.Fatalf("warmup request = %+v", req)
	}
}
