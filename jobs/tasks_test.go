package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"

	"github.com/aegis-hfm/aegis-hfm/internal/facility"
	"github.com/aegis-hfm/aegis-hfm/internal/statement"
)

func TestNewStatementWarmupTask(t *testing.T) {
	fid := int64(7)
	task, err := NewStatementWarmupTask(StatementWarmupPayload{
		Scopes: []StatementScope{{
			StatementCode:     statement.CodeCashFlow,
			ProjectID:         1,
			ReportingPeriodID: 3,
			Level:             facility.LevelFacility,
			FacilityID:        &fid,
			FacilityIDs:       []int64{7},
			ProjectType:       "HEALTH",
		}},
	})
	if err != nil {
		t.Fatalf("NewStatementWarmupTask: %v", err)
	}
	if task.Type() != TaskStatementWarmup {
		t.Fatalf("task type = %q, want %q", task.Type(), TaskStatementWarmup)
	}

	var decoded StatementWarmupPayload
	if err := json.Unmarshal(task.Payload(), &decoded); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if len(decoded.Scopes) != 1 {
		t.Fatalf("scopes = %d, want 1", len(decoded.Scopes))
	}
	scope := decoded.Scopes[0]
	if scope.StatementCode != statement.CodeCashFlow || scope.FacilityID == nil || *scope.FacilityID != 7 {
		t.Fatalf("scope did not survive the round trip: %+v", scope)
	}
}

func TestWarmupHandleRejectsMalformedPayload(t *testing.T) {
	job := NewStatementWarmupJob(nil, nil, nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskStatementWarmup, []byte("{not json")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("err = %v, want SkipRetry", err)
	}
}

func TestSnapshotHandleRejectsIncompleteScope(t *testing.T) {
	job := NewStatementSnapshotJob(nil, nil, nil, nil, nil)

	task, err := NewStatementSnapshotTask(StatementSnapshotPayload{
		Scope: StatementScope{StatementCode: statement.CodeCashFlow},
	})
	if err != nil {
		t.Fatalf("NewStatementSnapshotTask: %v", err)
	}
	if err := job.Handle(context.Background(), task); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("err = %v, want SkipRetry", err)
	}
}

func TestWarmupHandleRequiresPoolForDiscovery(t *testing.T) {
	job := NewStatementWarmupJob(nil, nil, nil, nil)

	task, err := NewStatementWarmupTask(StatementWarmupPayload{})
	if err != nil {
		t.Fatalf("NewStatementWarmupTask: %v", err)
	}
	if err := job.Handle(context.Background(), task); err == nil {
		t.Fatal("expected error when no pool is configured for scope discovery")
	}
}
