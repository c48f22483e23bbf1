package statementhttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/aegis-hfm/aegis-hfm/internal/facility"
	"github.com/aegis-hfm/aegis-hfm/internal/observability"
	"github.com/aegis-hfm/aegis-hfm/internal/platform/httpx"
	"github.com/aegis-hfm/aegis-hfm/internal/shared"
	"github.com/aegis-hfm/aegis-hfm/internal/statement"
)

// StatementService defines the generation contract used by the handler.
type StatementService interface {
	Generate(ctx context.Context, req statement.GenerateRequest) (statement.FinancialStatementResponse, error)
	GenerateBudgetVsActual(ctx context.Context, req statement.GenerateRequest) (statement.BudgetVsActualStatement, error)
}

// AccessProvider yields the facility IDs the caller may aggregate over.
// Wired to the deployment's identity layer; tests supply a static set.
type AccessProvider interface {
	AccessibleFacilities(r *http.Request) ([]int64, error)
}

// HeaderScope reads the accessible facility set from the X-Facility-Scope
// header populated by the authenticating proxy.
type HeaderScope struct{}

// AccessibleFacilities implements AccessProvider.
func (HeaderScope) AccessibleFacilities(r *http.Request) ([]int64, error) {
	raw := strings.TrimSpace(r.Header.Get("X-Facility-Scope"))
	if raw == "" {
		return nil, fmt.Errorf("statementhttp: missing facility scope")
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("statementhttp: malformed facility scope")
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Handler coordinates HTTP requests for statement generation.
type Handler struct {
	logger    *slog.Logger
	service   StatementService
	access    AccessProvider
	validator *validator.Validate
	metrics   *observability.Metrics
}

// NewHandler constructs the statement HTTP handler.
func NewHandler(logger *slog.Logger, service StatementService, access AccessProvider) *Handler {
	if access == nil {
		access = HeaderScope{}
	}
	return &Handler{
		logger:    logger,
		service:   service,
		access:    access,
		validator: validator.New(),
	}
}

// WithMetrics attaches generation metrics recording.
func (h *Handler) WithMetrics(m *observability.Metrics) *Handler {
	h.metrics = m
	return h
}

func (h *Handler) handleStatement(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}
	if req.StatementCode == statement.CodeBudgetVsActual {
		h.respondBudget(w, r, req)
		return
	}

	start := time.Now()
	key := strings.Join(statementFlightKey(req), ":")
	value, err, coalesced := singleflightGenerate(r.Context(), key, func(ctx context.Context) (interface{}, error) {
		return h.service.Generate(ctx, req)
	})
	if err != nil {
		if h.metrics != nil {
			h.metrics.ObserveGeneration(req.StatementCode, time.Since(start), 0, 0, true)
		}
		h.respondError(w, r, err)
		return
	}
	resp, okCast := value.(statement.FinancialStatementResponse)
	if !okCast {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if h.metrics != nil && !coalesced {
		h.metrics.ObserveGeneration(req.StatementCode, time.Since(start),
			len(resp.Validation.Warnings), len(resp.Validation.Errors), false)
	}
	if coalesced {
		w.Header().Set("X-Coalesced", "1")
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) respondBudget(w http.ResponseWriter, r *http.Request, req statement.GenerateRequest) {
	stmt, err := h.service.GenerateBudgetVsActual(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stmt)
}

func (h *Handler) handleCSV(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}
	resp, err := h.service.Generate(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	filename := fmt.Sprintf("%s_%d_%d.csv", strings.ToLower(req.StatementCode), req.ProjectID, req.ReportingPeriodID)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := writeStatementCSV(w, resp); err != nil {
		h.logger.Error("statement csv export failed", slog.Any("error", err))
	}
}

func (h *Handler) decodeRequest(w http.ResponseWriter, r *http.Request) (statement.GenerateRequest, bool) {
	code := strings.ToUpper(routeParam(r, "code"))
	query, err := parseStatementQuery(r, code)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return statement.GenerateRequest{}, false
	}
	if err := h.validator.Struct(query); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validationDetail(err))
		return statement.GenerateRequest{}, false
	}
	accessible, err := h.access.AccessibleFacilities(r)
	if err != nil {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
		return statement.GenerateRequest{}, false
	}
	return query.toRequest(accessible), true
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, statement.ErrTemplateNotFound),
		errors.Is(err, statement.ErrPeriodNotFound),
		errors.Is(err, statement.ErrProjectNotFound),
		errors.Is(err, facility.ErrFacilityNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrAccessDenied):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, facility.ErrInvalidLevel),
		errors.Is(err, facility.ErrFacilityRequired):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		httpx.Problem(w, http.StatusServiceUnavailable, "Timeout", "statement generation interrupted")
	default:
		h.logger.Error("statement generation failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func validationDetail(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		names := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			names = append(names, fe.Field())
		}
		return "invalid fields: " + strings.Join(names, ", ")
	}
	return err.Error()
}

// statementFlightKey identifies identical in-flight generations. Scope IDs
// are included because two callers with different access must never share a
// result.
func statementFlightKey(req statement.GenerateRequest) []string {
	ids := make([]string, len(req.AccessibleFacilityIDs))
	for i, id := range req.AccessibleFacilityIDs {
		ids[i] = strconv.FormatInt(id, 10)
	}
	parts := []string{
		req.StatementCode,
		strconv.FormatInt(req.ProjectID, 10),
		strconv.FormatInt(req.ReportingPeriodID, 10),
		string(req.Level),
		strings.Join(ids, ","),
	}
	if req.FacilityID != nil {
		parts = append(parts, strconv.FormatInt(*req.FacilityID, 10))
	}
	return parts
}
