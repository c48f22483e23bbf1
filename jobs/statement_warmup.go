package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aegis-hfm/aegis-hfm/internal/facility"
	jobmetrics "github.com/aegis-hfm/aegis-hfm/internal/jobs"
	"github.com/aegis-hfm/aegis-hfm/internal/statement"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// warmupStatementCodes are the comparative statements worth pre-generating.
// Budget-vs-actual is cheap enough to build on demand.
var warmupStatementCodes = []string{
	statement.CodeRevenueExpenditure,
	statement.CodeBalanceSheet,
	statement.CodeCashFlow,
	statement.CodeNetAssetsChanges,
}

// StatementWarmupJob pre-populates the statement cache for active scopes.
// The generator must be the cache-fronted service, otherwise warming is a
// no-op.
type StatementWarmupJob struct {
	Statements StatementGenerator
	Pool       *pgxpool.Pool
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
}

// NewStatementWarmupJob wires dependencies for the warmup handler.
func NewStatementWarmupJob(gen StatementGenerator, pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *StatementWarmupJob {
	return &StatementWarmupJob{
		Statements: gen,
		Pool:       pool,
		Logger:     logger,
		Metrics:    metrics,
	}
}

// Handle processes statement warmup tasks. An empty payload discovers scopes
// from the reported event data instead.
func (j *StatementWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("statement warmup: handler not configured")
	}
	var payload StatementWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskStatementWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting statement warmup")

	scopes := payload.Scopes
	if len(scopes) == 0 {
		discovered, err := j.discoverScopes(ctx)
		if err != nil {
			resultErr = err
			logger.Error("discover warmup scopes", slog.Any("error", err))
			return resultErr
		}
		scopes = discovered
	}
	if len(scopes) == 0 {
		logger.Info("no scopes discovered for warmup")
		return resultErr
	}

	start := time.Now()
	warmed := 0
	for _, scope := range scopes {
		if err := j.warmScope(ctx, scope); err != nil {
			resultErr = err
			logger.Error("warm scope",
				slog.String("statement_code", scope.StatementCode),
				slog.Int64("project_id", scope.ProjectID),
				slog.Int64("period_id", scope.ReportingPeriodID),
				slog.Any("error", err))
			return resultErr
		}
		warmed++
	}

	logger.Info("completed statement warmup", slog.Int("scopes", warmed), slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *StatementWarmupJob) warmScope(ctx context.Context, scope StatementScope) error {
	if j.Statements == nil {
		return nil
	}
	// Tighten each scope execution with a timeout to avoid long-running jobs.
	scopeCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	req := statement.GenerateRequest{
		StatementCode:         scope.StatementCode,
		ProjectID:             scope.ProjectID,
		ReportingPeriodID:     scope.ReportingPeriodID,
		Level:                 scope.Level,
		FacilityID:            scope.FacilityID,
		AccessibleFacilityIDs: scope.FacilityIDs,
		ProjectType:           scope.ProjectType,
	}
	if req.Level == "" {
		req.Level = facility.LevelProvince
	}
	// Scopes configured by hand omit the facility set; warm the full one.
	if len(req.AccessibleFacilityIDs) == 0 && req.FacilityID == nil && j.Pool != nil {
		ids, err := j.allFacilityIDs(scopeCtx)
		if err != nil {
			return err
		}
		req.AccessibleFacilityIDs = ids
	}
	_, err := j.Statements.Generate(scopeCtx, req)
	return err
}

// discoverScopes expands every project and period with reported execution
// data into province-wide warmup scopes for each comparative statement.
func (j *StatementWarmupJob) discoverScopes(ctx context.Context) ([]StatementScope, error) {
	if j.Pool == nil {
		return nil, errors.New("statement warmup: pool not configured")
	}
	rows, err := j.Pool.Query(ctx, `SELECT DISTINCT ed.project_id, p.project_type, ed.reporting_period_id
FROM event_data ed
JOIN projects p ON p.id = ed.project_id
ORDER BY ed.project_id, ed.reporting_period_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type scopeRow struct {
		projectID   int64
		projectType string
		periodID    int64
	}
	var base []scopeRow
	for rows.Next() {
		var row scopeRow
		if err := rows.Scan(&row.projectID, &row.projectType, &row.periodID); err != nil {
			return nil, err
		}
		base = append(base, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(base) == 0 {
		return nil, nil
	}

	facilityIDs, err := j.allFacilityIDs(ctx)
	if err != nil {
		return nil, err
	}

	scopes := make([]StatementScope, 0, len(base)*len(warmupStatementCodes))
	for _, row := range base {
		for _, code := range warmupStatementCodes {
			scopes = append(scopes, StatementScope{
				StatementCode:     code,
				ProjectID:         row.projectID,
				ReportingPeriodID: row.periodID,
				Level:             facility.LevelProvince,
				FacilityIDs:       facilityIDs,
				ProjectType:       row.projectType,
			})
		}
	}
	return scopes, nil
}

func (j *StatementWarmupJob) allFacilityIDs(ctx context.Context) ([]int64, error) {
	rows, err := j.Pool.Query(ctx, `SELECT id FROM facilities ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (j *StatementWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskStatementWarmup))
	}
	return slog.Default().With(slog.String("job", TaskStatementWarmup))
}

func (j *StatementWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
