package statement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for templates, event
// data, reporting periods and statement snapshots.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ActiveTemplate loads the active template version for a statement code.
// Template lines live as JSONB; order within the document is display order.
func (r *Repository) ActiveTemplate(ctx context.Context, statementCode string) (StatementTemplate, error) {
	const query = `SELECT id, statement_code, statement_name, version, lines
FROM statement_templates
WHERE statement_code = $1 AND is_active
ORDER BY version DESC
LIMIT 1`
	var tmpl StatementTemplate
	var rawLines []byte
	err := r.pool.QueryRow(ctx, query, statementCode).Scan(
		&tmpl.ID, &tmpl.StatementCode, &tmpl.StatementName, &tmpl.Version, &rawLines)
	if errors.Is(err, pgx.ErrNoRows) {
		return StatementTemplate{}, fmt.Errorf("template %s: %w", statementCode, ErrTemplateNotFound)
	}
	if err != nil {
		return StatementTemplate{}, err
	}
	if err := json.Unmarshal(rawLines, &tmpl.Lines); err != nil {
		return StatementTemplate{}, fmt.Errorf("statement: decode template %s lines: %w", statementCode, err)
	}
	return tmpl, nil
}

// EnsureSeedTemplates inserts the embedded template charts for any statement
// code that has no stored version yet. Existing templates are never touched.
func (r *Repository) EnsureSeedTemplates(ctx context.Context) error {
	seeds, err := SeedTemplates()
	if err != nil {
		return err
	}
	const query = `INSERT INTO statement_templates (statement_code, statement_name, version, lines, is_active)
SELECT $1, $2, $3, $4, TRUE
WHERE NOT EXISTS (SELECT 1 FROM statement_templates WHERE statement_code = $1)`
	for _, tmpl := range seeds {
		rawLines, err := json.Marshal(tmpl.Lines)
		if err != nil {
			return err
		}
		if _, err := r.pool.Exec(ctx, query, tmpl.StatementCode, tmpl.StatementName, tmpl.Version, rawLines); err != nil {
			return fmt.Errorf("statement: seed template %s: %w", tmpl.StatementCode, err)
		}
	}
	return nil
}

// FetchRawEvents returns the planning/execution amounts matching the filter
// set. Empty facility or event code slices match nothing and everything
// respectively.
func (r *Repository) FetchRawEvents(ctx context.Context, projectID int64, facilityIDs []int64, reportingPeriodID int64, entityTypes []EntityType, eventCodes []string) ([]RawEventRow, error) {
	const query = `SELECT ed.facility_id, ed.reporting_period_id, ed.event_id, COALESCE(fe.code, ''), ed.amount
FROM event_data ed
LEFT JOIN financial_events fe ON fe.id = ed.event_id
WHERE ed.project_id = $1
  AND ed.facility_id = ANY($2)
  AND ed.reporting_period_id = $3
  AND ed.entity_type = ANY($4)
  AND (cardinality($5::text[]) = 0 OR fe.code = ANY($5))`
	types := make([]string, len(entityTypes))
	for i, et := range entityTypes {
		types[i] = string(et)
	}
	if eventCodes == nil {
		eventCodes = []string{}
	}
	rows, err := r.pool.Query(ctx, query, projectID, facilityIDs, reportingPeriodID, types, eventCodes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RawEventRow
	for rows.Next() {
		var row RawEventRow
		if err := rows.Scan(&row.FacilityID, &row.ReportingPeriodID, &row.EventID, &row.EventCode, &row.Amount); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListEvents returns the financial event registry.
func (r *Repository) ListEvents(ctx context.Context) ([]EventRef, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code FROM financial_events ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []EventRef
	for rows.Next() {
		var ev EventRef
		if err := rows.Scan(&ev.ID, &ev.Code); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// GetReportingPeriod loads one reporting period.
func (r *Repository) GetReportingPeriod(ctx context.Context, id int64) (ReportingPeriod, error) {
	const query = `SELECT id, name, start_date, end_date FROM reporting_periods WHERE id = $1`
	var p ReportingPeriod
	err := r.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.Name, &p.StartDate, &p.EndDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return ReportingPeriod{}, fmt.Errorf("period %d: %w", id, ErrPeriodNotFound)
	}
	if err != nil {
		return ReportingPeriod{}, err
	}
	return p, nil
}

// PreviousPeriod resolves the period immediately preceding the given one by
// end date. Returns nil when the chain ends.
func (r *Repository) PreviousPeriod(ctx context.Context, id int64) (*ReportingPeriod, error) {
	const query = `SELECT p.id, p.name, p.start_date, p.end_date
FROM reporting_periods p
JOIN reporting_periods cur ON cur.id = $1
WHERE p.end_date < cur.start_date OR (p.end_date = cur.start_date AND p.id <> cur.id)
ORDER BY p.end_date DESC, p.id DESC
LIMIT 1`
	var p ReportingPeriod
	err := r.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.Name, &p.StartDate, &p.EndDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ProjectExists reports whether the project is registered.
func (r *Repository) ProjectExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// EndingCash returns a facility's snapshotted ending cash for a period.
func (r *Repository) EndingCash(ctx context.Context, facilityID, reportingPeriodID int64, projectType string) (float64, bool, error) {
	const query = `SELECT ending_cash FROM statement_snapshots
WHERE facility_id = $1 AND reporting_period_id = $2 AND project_type = $3 AND statement_code = $4`
	var balance float64
	err := r.pool.QueryRow(ctx, query, facilityID, reportingPeriodID, projectType, CodeCashFlow).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return balance, true, nil
}

// GetFacilityDescriptors loads display metadata for the given facilities.
func (r *Repository) GetFacilityDescriptors(ctx context.Context, facilityIDs []int64) (map[int64]FacilityInfo, error) {
	const query = `SELECT f.id, f.name, f.facility_type, COALESCE(d.name, '')
FROM facilities f
LEFT JOIN districts d ON d.id = f.district_id
WHERE f.id = ANY($1)`
	rows, err := r.pool.Query(ctx, query, facilityIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]FacilityInfo, len(facilityIDs))
	for rows.Next() {
		var info FacilityInfo
		if err := rows.Scan(&info.ID, &info.Name, &info.Type, &info.District); err != nil {
			return nil, err
		}
		out[info.ID] = info
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Snapshot is a persisted generated statement, keyed by scope. The ending
// cash column feeds the next period's carryforward.
type Snapshot struct {
	StatementCode     string
	ProjectID         int64
	ProjectType       string
	FacilityID        int64
	ReportingPeriodID int64
	EndingCash        float64
	Payload           FinancialStatementResponse
}

// SaveSnapshot persists a generated statement for one facility scope.
// A duplicate scope surfaces as ErrSnapshotExists.
func (r *Repository) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	payload, err := json.Marshal(snap.Payload)
	if err != nil {
		return err
	}
	const query = `INSERT INTO statement_snapshots
(statement_code, project_id, project_type, facility_id, reporting_period_id, ending_cash, payload, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`
	_, err = r.pool.Exec(ctx, query,
		snap.StatementCode, snap.ProjectID, snap.ProjectType, snap.FacilityID,
		snap.ReportingPeriodID, snap.EndingCash, payload)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("snapshot %s/%d/%d: %w", snap.StatementCode, snap.FacilityID, snap.ReportingPeriodID, ErrSnapshotExists)
		}
		return err
	}
	return nil
}

// LatestSnapshot loads the stored statement for a scope, if any.
func (r *Repository) LatestSnapshot(ctx context.Context, statementCode string, facilityID, reportingPeriodID int64) (*Snapshot, error) {
	const query = `SELECT statement_code, project_id, project_type, facility_id, reporting_period_id, ending_cash, payload
FROM statement_snapshots
WHERE statement_code = $1 AND facility_id = $2 AND reporting_period_id = $3
ORDER BY created_at DESC
LIMIT 1`
	var snap Snapshot
	var payload []byte
	err := r.pool.QueryRow(ctx, query, statementCode, facilityID, reportingPeriodID).Scan(
		&snap.StatementCode, &snap.ProjectID, &snap.ProjectType, &snap.FacilityID,
		&snap.ReportingPeriodID, &snap.EndingCash, &payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &snap.Payload); err != nil {
		return nil, err
	}
	return &snap, nil
}
