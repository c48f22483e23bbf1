package statementhttp

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/aegis-hfm/aegis-hfm/internal/facility"
	"github.com/aegis-hfm/aegis-hfm/internal/statement"
)

// statementQuery is the decoded and validated request surface for the
// statement endpoints.
type statementQuery struct {
	StatementCode     string `validate:"required,oneof=REV_EXP BAL_SHEET CASH_FLOW NET_ASSETS BUDGET_ACTUAL"`
	ProjectID         int64  `validate:"required,gt=0"`
	ReportingPeriodID int64  `validate:"required,gt=0"`
	Level             string `validate:"required,oneof=FACILITY DISTRICT PROVINCE"`
	FacilityID        *int64
	ProjectType       string
}

func parseStatementQuery(r *http.Request, code string) (statementQuery, error) {
	q := statementQuery{
		StatementCode: code,
		Level:         strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("level"))),
		ProjectType:   strings.TrimSpace(r.URL.Query().Get("project_type")),
	}
	if q.Level == "" {
		q.Level = string(facility.LevelFacility)
	}
	var err error
	if q.ProjectID, err = parseID(r.URL.Query().Get("project_id")); err != nil {
		return q, errBadParam("project_id")
	}
	if q.ReportingPeriodID, err = parseID(r.URL.Query().Get("period_id")); err != nil {
		return q, errBadParam("period_id")
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("facility_id")); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			return q, errBadParam("facility_id")
		}
		q.FacilityID = &id
	}
	return q, nil
}

func (q statementQuery) toRequest(accessible []int64) statement.GenerateRequest {
	return statement.GenerateRequest{
		StatementCode:         q.StatementCode,
		ProjectID:             q.ProjectID,
		ReportingPeriodID:     q.ReportingPeriodID,
		Level:                 facility.Level(q.Level),
		FacilityID:            q.FacilityID,
		AccessibleFacilityIDs: accessible,
		ProjectType:           q.ProjectType,
	}
}

func parseID(raw string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
}

type badParamError string

func (e badParamError) Error() string { return "invalid parameter " + string(e) }

func errBadParam(name string) error { return badParamError(name) }
