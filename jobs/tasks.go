package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/aegis-hfm/aegis-hfm/internal/facility"
	"github.com/aegis-hfm/aegis-hfm/internal/statement"
)

// StatementGenerator is the generation contract the jobs depend on. The
// warmup job is handed the cache-fronted variant, the snapshot job the plain
// service.
type StatementGenerator interface {
	Generate(ctx context.Context, req statement.GenerateRequest) (statement.FinancialStatementResponse, error)
}

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStatementWarmup pre-generates statements into the cache.
	TaskStatementWarmup = "statement:warmup"
	// TaskStatementSnapshot persists generated statements for carryforward.
	TaskStatementSnapshot = "statement:snapshot"
)

// StatementScope identifies one generation scope a job operates on.
type StatementScope struct {
	StatementCode     string         `json:"statement_code"`
	ProjectID         int64          `json:"project_id"`
	ReportingPeriodID int64          `json:"reporting_period_id"`
	Level             facility.Level `json:"level"`
	FacilityID        *int64         `json:"facility_id,omitempty"`
	FacilityIDs       []int64        `json:"facility_ids"`
	ProjectType       string         `json:"project_type"`
}

// StatementWarmupPayload drives one cache warmup run.
type StatementWarmupPayload struct {
	Scopes []StatementScope `json:"scopes"`
}

// NewStatementWarmupTask constructs a warmup task.
func NewStatementWarmupTask(payload StatementWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStatementWarmup, data), nil
}

// StatementSnapshotPayload drives one snapshot persistence run. Snapshots
// are taken per facility so the next period's carryforward can read them.
type StatementSnapshotPayload struct {
	Scope StatementScope `json:"scope"`
}

// NewStatementSnapshotTask constructs a snapshot task.
func NewStatementSnapshotTask(payload StatementSnapshotPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStatementSnapshot, data), nil
}
