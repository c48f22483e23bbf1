package statementhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/aegis-hfm/aegis-hfm/internal/shared"
	"github.com/aegis-hfm/aegis-hfm/internal/statement"
)

type fakeService struct {
	lastReq   statement.GenerateRequest
	resp      statement.FinancialStatementResponse
	budget    statement.BudgetVsActualStatement
	err       error
	generated int
}

func (f *fakeService) Generate(_ context.Context, req statement.GenerateRequest) (statement.FinancialStatementResponse, error) {
	f.lastReq = req
	f.generated++
	return f.resp, f.err
}

func (f *fakeService) GenerateBudgetVsActual(_ context.Context, req statement.GenerateRequest) (statement.BudgetVsActualStatement, error) {
	f.lastReq = req
	return f.budget, f.err
}

type staticScope []int64

func (s staticScope) AccessibleFacilities(*http.Request) ([]int64, error) {
	if len(s) == 0 {
		return nil, fmt.Errorf("no scope")
	}
	return s, nil
}

func newTestRouter(svc StatementService, scope AccessProvider) http.Handler {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc, scope)
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func sampleResponse() statement.FinancialStatementResponse {
	return statement.FinancialStatementResponse{
		Statement: statement.StatementPayload{
			StatementCode: statement.CodeBalanceSheet,
			Lines: []statement.StatementLine{
				{
					Description:        "Cash and cash equivalents",
					CurrentPeriodValue: 100000,
					Formatting:         statement.LineFormatting{Kind: statement.KindItem},
					Metadata:           statement.LineMetadata{LineCode: "CASH_EQUIVALENTS", State: statement.StateComputed},
					Variance:           &statement.VarianceEntry{Current: 100000, Previous: 80000, Absolute: 20000, Percentage: 25},
				},
			},
		},
		Validation: statement.Validation{IsValid: true},
	}
}

func TestHandleStatementOK(t *testing.T) {
	svc := &fakeService{resp: sampleResponse()}
	router := newTestRouter(svc, staticScope{10, 11})

	req := httptest.NewRequest(http.MethodGet, "/statements/bal_sheet?project_id=7&period_id=3&level=DISTRICT", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, statement.CodeBalanceSheet, svc.lastReq.StatementCode)
	require.Equal(t, []int64{10, 11}, svc.lastReq.AccessibleFacilityIDs)

	var resp statement.FinancialStatementResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Validation.IsValid)
	require.Len(t, resp.Statement.Lines, 1)
}

func TestHandleStatementValidation(t *testing.T) {
	svc := &fakeService{resp: sampleResponse()}
	router := newTestRouter(svc, staticScope{10})

	cases := []struct {
		name string
		url  string
	}{
		{"missing project", "/statements/bal_sheet?period_id=3&level=DISTRICT"},
		{"missing period", "/statements/bal_sheet?project_id=7&level=DISTRICT"},
		{"bad level", "/statements/bal_sheet?project_id=7&period_id=3&level=PLANET"},
		{"bad code", "/statements/nonsense?project_id=7&period_id=3&level=DISTRICT"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.url, nil))
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Zero(t, svc.generated)
		})
	}
}

func TestHandleStatementErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{statement.ErrTemplateNotFound, http.StatusNotFound},
		{statement.ErrPeriodNotFound, http.StatusNotFound},
		{statement.ErrProjectNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		svc := &fakeService{err: tc.err}
		router := newTestRouter(svc, staticScope{10})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/statements/cash_flow?project_id=7&period_id=3&level=DISTRICT", nil))
		require.Equal(t, tc.code, rec.Code, "error %v", tc.err)
	}
}

func TestHandleStatementAccessDenied(t *testing.T) {
	svc := &fakeService{err: fmt.Errorf("facility 9: %w", shared.ErrAccessDenied)}
	router := newTestRouter(svc, staticScope{10})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/statements/bal_sheet?project_id=7&period_id=3&level=FACILITY&facility_id=9", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)
	// A lone request is never served from another caller's flight.
	require.Empty(t, rec.Header().Get("X-Coalesced"))
}

func TestHandleStatementNoScope(t *testing.T) {
	svc := &fakeService{resp: sampleResponse()}
	router := newTestRouter(svc, staticScope(nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/statements/bal_sheet?project_id=7&period_id=3&level=DISTRICT", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandleBudgetRoute(t *testing.T) {
	svc := &fakeService{budget: statement.BudgetVsActualStatement{
		StatementCode:     statement.CodeBudgetVsActual,
		ReportingPeriodID: 3,
	}}
	router := newTestRouter(svc, staticScope{10})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/statements/budget_actual?project_id=7&period_id=3&level=DISTRICT", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stmt statement.BudgetVsActualStatement
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stmt))
	require.Equal(t, statement.CodeBudgetVsActual, stmt.StatementCode)
}

func TestHandleCSVExport(t *testing.T) {
	svc := &fakeService{resp: sampleResponse()}
	router := newTestRouter(svc, staticScope{10})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/statements/bal_sheet/export.csv?project_id=7&period_id=3&level=DISTRICT", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	require.Contains(t, rec.Header().Get("Content-Disposition"), "bal_sheet_7_3.csv")

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\r\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "line_code")
	require.Contains(t, lines[1], "CASH_EQUIVALENTS")
	require.Contains(t, lines[1], "20000.00")
}

func TestHeaderScope(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Facility-Scope", "10, 11,12")

	ids, err := HeaderScope{}.AccessibleFacilities(req)
	require.NoError(t, err)
	require.Equal(t, []int64{10, 11, 12}, ids)

	req.Header.Set("X-Facility-Scope", "10,abc")
	_, err = HeaderScope{}.AccessibleFacilities(req)
	require.Error(t, err)

	req.Header.Del("X-Facility-Scope")
	_, err = HeaderScope{}.AccessibleFacilities(req)
	require.Error(t, err)
}
