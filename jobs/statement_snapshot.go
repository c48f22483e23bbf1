package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/aegis-hfm/aegis-hfm/internal/facility"
	jobmetrics "github.com/aegis-hfm/aegis-hfm/internal/jobs"
	"github.com/aegis-hfm/aegis-hfm/internal/statement"
)

// SnapshotStore persists generated statements and answers whether a scope
// already has one.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap statement.Snapshot) error
	LatestSnapshot(ctx context.Context, statementCode string, facilityID, reportingPeriodID int64) (*statement.Snapshot, error)
}

// StatementSnapshotJob generates per-facility statements at period close and
// persists them. Cash flow snapshots carry the ending cash balance the next
// period reads back as its beginning balance.
type StatementSnapshotJob struct {
	Statements StatementGenerator
	Store      SnapshotStore
	Cache      *statement.Cache
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
}

// NewStatementSnapshotJob wires dependencies for the snapshot handler.
func NewStatementSnapshotJob(gen StatementGenerator, store SnapshotStore, cache *statement.Cache, logger *slog.Logger, metrics *jobmetrics.Metrics) *StatementSnapshotJob {
	return &StatementSnapshotJob{
		Statements: gen,
		Store:      store,
		Cache:      cache,
		Logger:     logger,
		Metrics:    metrics,
	}
}

// Handle processes statement snapshot tasks.
func (j *StatementSnapshotJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("statement snapshot: handler not configured")
	}
	var payload StatementSnapshotPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	scope := payload.Scope
	if scope.StatementCode == "" || scope.ProjectID == 0 || scope.ReportingPeriodID == 0 {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskStatementSnapshot)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(
		slog.String("statement_code", scope.StatementCode),
		slog.Int64("project_id", scope.ProjectID),
		slog.Int64("period_id", scope.ReportingPeriodID))
	logger.Info("starting statement snapshot")

	facilityIDs := scope.FacilityIDs
	if scope.FacilityID != nil {
		facilityIDs = []int64{*scope.FacilityID}
	}
	if len(facilityIDs) == 0 {
		logger.Info("no facilities in snapshot scope")
		return resultErr
	}

	start := time.Now()
	saved := 0
	skipped := 0
	// New snapshots feed the next period's carryforward, so cached
	// statements built before this run are stale. The bump must happen even
	// when a later facility fails mid-run.
	defer func() {
		if saved == 0 {
			return
		}
		if err := j.Cache.Bump(ctx); err != nil {
			logger.Warn("bump statement cache", slog.Any("error", err))
		}
	}()
	for _, facilityID := range facilityIDs {
		err := j.snapshotFacility(ctx, scope, facilityID)
		switch {
		case errors.Is(err, statement.ErrSnapshotExists):
			skipped++
		case err != nil:
			resultErr = err
			logger.Error("snapshot facility", slog.Int64("facility_id", facilityID), slog.Any("error", err))
			return resultErr
		default:
			saved++
		}
	}

	logger.Info("completed statement snapshot",
		slog.Int("saved", saved),
		slog.Int("skipped", skipped),
		slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *StatementSnapshotJob) snapshotFacility(ctx context.Context, scope StatementScope, facilityID int64) error {
	scopeCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	existing, err := j.Store.LatestSnapshot(scopeCtx, scope.StatementCode, facilityID, scope.ReportingPeriodID)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("snapshot %s/%d/%d: %w", scope.StatementCode, facilityID, scope.ReportingPeriodID, statement.ErrSnapshotExists)
	}

	resp, err := j.Statements.Generate(scopeCtx, statement.GenerateRequest{
		StatementCode:         scope.StatementCode,
		ProjectID:             scope.ProjectID,
		ReportingPeriodID:     scope.ReportingPeriodID,
		Level:                 facility.LevelFacility,
		FacilityID:            &facilityID,
		AccessibleFacilityIDs: []int64{facilityID},
		ProjectType:           scope.ProjectType,
	})
	if err != nil {
		return err
	}

	snap := statement.Snapshot{
		StatementCode:     scope.StatementCode,
		ProjectID:         scope.ProjectID,
		ProjectType:       scope.ProjectType,
		FacilityID:        facilityID,
		ReportingPeriodID: scope.ReportingPeriodID,
		Payload:           resp,
	}
	if scope.StatementCode == statement.CodeCashFlow {
		snap.EndingCash = resp.Statement.Totals[statement.LineCashEnd]
	}
	return j.Store.SaveSnapshot(scopeCtx, snap)
}

func (j *StatementSnapshotJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskStatementSnapshot))
	}
	return slog.Default().With(slog.String("job", TaskStatementSnapshot))
}

func (j *StatementSnapshotJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
