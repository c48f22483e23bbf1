package statement

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aegis-hfm/aegis-hfm/internal/facility"
	"github.com/aegis-hfm/aegis-hfm/internal/shared"
	"github.com/aegis-hfm/aegis-hfm/internal/statement/formula"
)

// PeriodSource resolves reporting periods and their adjacency.
type PeriodSource interface {
	GetReportingPeriod(ctx context.Context, id int64) (ReportingPeriod, error)
	PreviousPeriod(ctx context.Context, id int64) (*ReportingPeriod, error)
}

// ProjectSource verifies project existence.
type ProjectSource interface {
	ProjectExists(ctx context.Context, id int64) (bool, error)
}

// Default event codes backing the working capital calculation and the manual
// beginning-cash entry. Overridable through ServiceConfig for deployments
// with a different chart.
var (
	DefaultReceivableEventCodes = []string{"EXEC_RECEIVABLES"}
	DefaultPayableEventCodes    = []string{"EXEC_PAYABLES"}
)

// EventCashBegin is the execution event carrying a manually entered
// beginning cash balance.
const EventCashBegin = "EXEC_CASH_BEGIN"

// ServiceConfig groups the collaborators the statement service needs.
type ServiceConfig struct {
	Templates    TemplateRepository
	Events       EventSource
	Facilities   FacilityMetadataSource
	Periods      PeriodSource
	Projects     ProjectSource
	Resolver     *facility.Resolver
	EndingCash   EndingCashSource
	Budget       BudgetMapping
	Logger       *slog.Logger

	ReceivableEventCodes []string
	PayableEventCodes    []string
	CustomMappings       map[string]float64
}

// Service runs the statement generation pipeline. Each invocation is a pure
// function of its inputs; all intermediate structures are request-local, so
// concurrent invocations need no coordination.
type Service struct {
	loader          *Loader
	aggregator      *Aggregator
	facilities      FacilityMetadataSource
	periods         PeriodSource
	projects        ProjectSource
	resolver        *facility.Resolver
	carryforward    *Carryforward
	budget          *BudgetProcessor
	logger          *slog.Logger
	receivableCodes []string
	payableCodes    []string
	customMappings  map[string]float64
	now             func() time.Time
	newID           func() string
}

// NewService wires the pipeline.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	receivables := cfg.ReceivableEventCodes
	if receivables == nil {
		receivables = DefaultReceivableEventCodes
	}
	payables := cfg.PayableEventCodes
	if payables == nil {
		payables = DefaultPayableEventCodes
	}
	return &Service{
		loader:          NewLoader(cfg.Templates),
		aggregator:      NewAggregator(cfg.Events),
		facilities:      cfg.Facilities,
		periods:         cfg.Periods,
		projects:        cfg.Projects,
		resolver:        cfg.Resolver,
		carryforward:    NewCarryforward(cfg.EndingCash),
		budget:          NewBudgetProcessor(cfg.Budget),
		logger:          logger,
		receivableCodes: receivables,
		payableCodes:    payables,
		customMappings:  cfg.CustomMappings,
		now:             time.Now,
		newID:           func() string { return uuid.NewString() },
	}
}

// GenerateRequest describes one statement generation invocation.
type GenerateRequest struct {
	StatementCode         string
	ProjectID             int64
	ReportingPeriodID     int64
	Level                 facility.Level
	FacilityID            *int64
	AccessibleFacilityIDs []int64
	ProjectType           string
}

// Generate runs the full pipeline for the comparative statements
// (revenue & expenditure, balance sheet, cash flow, net assets changes).
// Budget-vs-actual has its own entry point, GenerateBudgetVsActual.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (FinancialStatementResponse, error) {
	start := s.now()
	var warnings []string

	env, err := s.prepare(ctx, req, &warnings)
	if err != nil {
		return FinancialStatementResponse{}, err
	}

	filters := DataFilters{
		ProjectID:         req.ProjectID,
		FacilityIDs:       env.facilityIDs,
		ReportingPeriodID: req.ReportingPeriodID,
		EntityTypes:       []EntityType{EntityExecution},
	}

	current, previous, err := s.collectBothPeriods(ctx, filters, env)
	if err != nil {
		return FinancialStatementResponse{}, err
	}
	if env.previousPeriod == nil {
		warnings = append(warnings, "no previous reporting period available; prior-period values default to 0")
	}

	comparison := CalculatePeriodComparisons(current, previous)

	var wcCurrent, wcPrevious *WorkingCapitalResult
	var cfCurrent, cfPrevious *CarryforwardResult
	if req.StatementCode == CodeCashFlow {
		wcCurrent, wcPrevious, cfCurrent, cfPrevious, err = s.cashFlowSideCalculations(ctx, req, filters, env, current, previous, &warnings)
		if err != nil {
			return FinancialStatementResponse{}, err
		}
	}

	currentValues := s.evaluatePeriod(env.template, env.ordered, current, previous.EventTotals, wcCurrent, cfCurrent, &warnings)
	previousValues := s.evaluatePeriod(env.template, env.ordered, previous, nil, wcPrevious, cfPrevious, nil)

	lines := assembleLines(env.template, currentValues, previousValues, comparison.HasPreviousPeriodData)

	facilities, facilityWarnings, err := FacilityBreakdown(ctx, s.facilities, env.facilityIDs, current)
	if err != nil {
		return FinancialStatementResponse{}, err
	}
	warnings = append(warnings, facilityWarnings...)

	validation := ValidateCalculations(req.StatementCode, lines)
	validation.Warnings = append(warnings, validation.Warnings...)
	if cfCurrent != nil {
		validation.Warnings = append(validation.Warnings, cfCurrent.Warnings...)
	}

	// Cancellation check: a cancelled context must never yield a partial
	// statement.
	if err := ctx.Err(); err != nil {
		return FinancialStatementResponse{}, err
	}

	resp := FinancialStatementResponse{
		Statement: StatementPayload{
			StatementCode: env.template.StatementCode,
			StatementName: env.template.StatementName,
			Lines:         lines,
			Totals:        collectTotals(lines),
			Metadata: StatementMetadata{
				ProjectID:          req.ProjectID,
				ReportingPeriodID:  req.ReportingPeriodID,
				PreviousPeriodID:   env.previousPeriodID(),
				FacilitiesIncluded: facilities,
				Aggregation:        current.Metadata,
				Carryforward:       cfCurrent,
				WorkingCapital:     wcCurrent,
			},
		},
		Validation: validation,
		Performance: Performance{
			RequestID:   s.newID(),
			GeneratedAt: start,
			Duration:    s.now().Sub(start),
		},
	}

	s.logger.Info("statement generated",
		slog.String("statement_code", req.StatementCode),
		slog.Int64("reporting_period_id", req.ReportingPeriodID),
		slog.Int("facilities", len(env.facilityIDs)),
		slog.Int("warnings", len(resp.Validation.Warnings)),
		slog.Duration("duration", resp.Performance.Duration),
	)
	return resp, nil
}

// GenerateBudgetVsActual pairs planning and execution aggregates per
// template line for the budget-vs-actual statement.
func (s *Service) GenerateBudgetVsActual(ctx context.Context, req GenerateRequest) (BudgetVsActualStatement, error) {
	var warnings []string
	req.StatementCode = CodeBudgetVsActual
	env, err := s.prepare(ctx, req, &warnings)
	if err != nil {
		return BudgetVsActualStatement{}, err
	}

	var planning, execution AggregatedData
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.aggregator.events.FetchRawEvents(gctx, req.ProjectID, env.facilityIDs, req.ReportingPeriodID, []EntityType{EntityPlanning}, env.planningCodes(s.budget.Mapping()))
		if err != nil {
			return err
		}
		planning = AggregateByEvent(rows, env.idToCode)
		return nil
	})
	g.Go(func() error {
		rows, err := s.aggregator.events.FetchRawEvents(gctx, req.ProjectID, env.facilityIDs, req.ReportingPeriodID, []EntityType{EntityExecution}, env.eventCodes)
		if err != nil {
			return err
		}
		execution = AggregateByEvent(rows, env.idToCode)
		return nil
	})
	if err := g.Wait(); err != nil {
		return BudgetVsActualStatement{}, err
	}

	stmt := s.budget.GenerateStatement(env.template, planning, execution, req.ReportingPeriodID)
	stmt.Warnings = append(warnings, stmt.Warnings...)

	if err := ctx.Err(); err != nil {
		return BudgetVsActualStatement{}, err
	}
	return stmt, nil
}

// requestEnv carries the per-request derived state shared by the pipeline
// stages.
type requestEnv struct {
	template       StatementTemplate
	ordered        []TemplateLine
	facilityIDs    []int64
	period         ReportingPeriod
	previousPeriod *ReportingPeriod
	idToCode       map[int64]string
	eventCodes     []string
}

func (e *requestEnv) previousPeriodID() *int64 {
	if e.previousPeriod == nil {
		return nil
	}
	id := e.previousPeriod.ID
	return &id
}

// planningCodes translates the template's execution codes into planning
// buckets for the budget fetch.
func (e *requestEnv) planningCodes(mapping BudgetMapping) []string {
	seen := make(map[string]struct{})
	var codes []string
	for _, code := range e.eventCodes {
		mapped := mapping.PlanningCode(code)
		if _, ok := seen[mapped]; ok {
			continue
		}
		seen[mapped] = struct{}{}
		codes = append(codes, mapped)
	}
	sort.Strings(codes)
	return codes
}

func (s *Service) prepare(ctx context.Context, req GenerateRequest, warnings *[]string) (*requestEnv, error) {
	scope := shared.NewAccessScope(req.AccessibleFacilityIDs)
	facilityIDs, err := s.resolver.Resolve(ctx, req.Level, req.FacilityID, scope)
	if err != nil {
		return nil, err
	}

	tmpl, shapeWarnings, err := s.loader.Load(ctx, req.StatementCode)
	if err != nil {
		return nil, err
	}
	*warnings = append(*warnings, shapeWarnings...)

	if s.projects != nil {
		exists, err := s.projects.ProjectExists(ctx, req.ProjectID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("project %d: %w", req.ProjectID, ErrProjectNotFound)
		}
	}

	period, err := s.periods.GetReportingPeriod(ctx, req.ReportingPeriodID)
	if err != nil {
		return nil, err
	}
	previous, err := s.periods.PreviousPeriod(ctx, req.ReportingPeriodID)
	if err != nil {
		return nil, err
	}

	idToCode, err := s.aggregator.EventCodeTable(ctx)
	if err != nil {
		return nil, err
	}
	tmpl, refWarnings := ResolveEventRefs(tmpl, idToCode)
	*warnings = append(*warnings, refWarnings...)

	ordered, orderWarnings := orderTemplateLines(tmpl)
	*warnings = append(*warnings, orderWarnings...)

	env := &requestEnv{
		template:       tmpl,
		ordered:        ordered,
		facilityIDs:    facilityIDs,
		period:         period,
		previousPeriod: previous,
		idToCode:       idToCode,
		eventCodes:     collectEventCodes(tmpl, s.receivableCodes, s.payableCodes),
	}
	return env, nil
}

// collectBothPeriods fetches and aggregates the current and previous period
// rows concurrently. Both fetches share the same filters except the period.
func (s *Service) collectBothPeriods(ctx context.Context, filters DataFilters, env *requestEnv) (AggregatedData, AggregatedData, error) {
	var current, previous AggregatedData
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.aggregator.events.FetchRawEvents(gctx, filters.ProjectID, filters.FacilityIDs, filters.ReportingPeriodID, filters.EntityTypes, env.eventCodes)
		if err != nil {
			return fmt.Errorf("statement: fetch current period events: %w", err)
		}
		current = AggregateByEvent(rows, env.idToCode)
		return nil
	})
	if env.previousPeriod != nil {
		prevID := env.previousPeriod.ID
		g.Go(func() error {
			rows, err := s.aggregator.events.FetchRawEvents(gctx, filters.ProjectID, filters.FacilityIDs, prevID, filters.EntityTypes, env.eventCodes)
			if err != nil {
				return fmt.Errorf("statement: fetch previous period events: %w", err)
			}
			previous = AggregateByEvent(rows, env.idToCode)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return AggregatedData{}, AggregatedData{}, err
	}
	if previous.EventTotals == nil {
		previous = AggregateByEvent(nil, env.idToCode)
	}
	return current, previous, nil
}

// cashFlowSideCalculations derives the working capital adjustments and the
// carryforward beginning cash for both displayed periods. The previous
// period's adjustment needs the period before it; when the chain ends the
// previous adjustment is zero with a warning.
func (s *Service) cashFlowSideCalculations(ctx context.Context, req GenerateRequest, filters DataFilters, env *requestEnv, current, previous AggregatedData, warnings *[]string) (*WorkingCapitalResult, *WorkingCapitalResult, *CarryforwardResult, *CarryforwardResult, error) {
	wcCurrent := CalculateWorkingCapital(current, previous, s.receivableCodes, s.payableCodes)

	var prePrevious AggregatedData
	var prePreviousID *int64
	if env.previousPeriod != nil {
		pre, err := s.periods.PreviousPeriod(ctx, env.previousPeriod.ID)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		if pre != nil {
			id := pre.ID
			prePreviousID = &id
			rows, err := s.aggregator.events.FetchRawEvents(ctx, filters.ProjectID, filters.FacilityIDs, id, filters.EntityTypes, env.eventCodes)
			if err != nil {
				return nil, nil, nil, nil, fmt.Errorf("statement: fetch pre-previous period events: %w", err)
			}
			prePrevious = AggregateByEvent(rows, env.idToCode)
		} else {
			*warnings = append(*warnings, "no period precedes the previous period; prior working capital changes default to 0")
		}
	}
	wcPrevious := CalculateWorkingCapital(previous, prePrevious, s.receivableCodes, s.payableCodes)

	cfCurrent, err := s.carryforward.BeginningCash(ctx, env.previousPeriodID(), env.facilityIDs, req.ProjectType, current.EventTotals[EventCashBegin])
	if err != nil {
		return nil, nil, nil, nil, err
	}
	var cfPrevious *CarryforwardResult
	if env.previousPeriod != nil {
		cf, err := s.carryforward.BeginningCash(ctx, prePreviousID, env.facilityIDs, req.ProjectType, previous.EventTotals[EventCashBegin])
		if err != nil {
			return nil, nil, nil, nil, err
		}
		cfPrevious = &cf
	}
	return &wcCurrent, &wcPrevious, &cfCurrent, cfPrevious, nil
}

// lineOutcome is the three-state evaluation result for one line in one
// period.
type lineOutcome struct {
	value      float64
	state      LineState
	isComputed bool
}

// evaluatePeriod runs every template line through the evaluation precedence
// for a single period: (1) working capital override, (2) statement-specific
// processing, (3) calculation formula, (4) special-total registry,
// (5) event-mapping sum. Exactly one path executes per line; a computed zero
// never falls through.
func (s *Service) evaluatePeriod(tmpl StatementTemplate, ordered []TemplateLine, agg AggregatedData, previousEventTotals map[string]float64, wc *WorkingCapitalResult, cf *CarryforwardResult, warnings *[]string) map[string]lineOutcome {
	outcomes := make(map[string]lineOutcome, len(ordered))
	values := make(map[string]float64, len(ordered))

	warn := func(format string, args ...any) {
		if warnings != nil {
			*warnings = append(*warnings, fmt.Sprintf(format, args...))
		}
	}

	for _, line := range ordered {
		outcome := s.evaluateLine(tmpl.StatementCode, line, agg, previousEventTotals, values, wc, cf, warn)
		outcome.value = round2(outcome.value)
		outcomes[line.LineCode] = outcome
		values[line.LineCode] = outcome.value
	}
	return outcomes
}

func (s *Service) evaluateLine(statementCode string, line TemplateLine, agg AggregatedData, previousEventTotals map[string]float64, values map[string]float64, wc *WorkingCapitalResult, cf *CarryforwardResult, warn func(string, ...any)) lineOutcome {
	// (1) Working capital override. A zero adjustment is still a computed
	// value and must not fall through to the event-mapping sum.
	if wc != nil {
		switch line.LineCode {
		case LineChangesReceivables:
			return lineOutcome{value: wc.ReceivablesChange.CashFlowAdjustment, state: StateComputed, isComputed: true}
		case LineChangesPayables:
			return lineOutcome{value: wc.PayablesChange.CashFlowAdjustment, state: StateComputed, isComputed: true}
		}
	}

	// (2) Statement-specific processing.
	if statementCode == CodeCashFlow && line.LineCode == LineCashBegin && cf != nil {
		return lineOutcome{value: cf.BeginningCash, state: StateComputed, isComputed: true}
	}
	if statementCode == CodeNetAssetsChanges && line.Metadata["net_assets_column"] != "" {
		value, backed := sumLineEvents(line, agg)
		state := StateComputed
		if !backed {
			state = StateMissingData
		}
		return lineOutcome{value: value, state: state, isComputed: true}
	}

	// (3) Calculation formula.
	if line.CalculationFormula != "" {
		result, err := evaluateLineFormula(line.CalculationFormula, agg.EventTotals, values, previousEventTotals, s.customMappings)
		if err != nil {
			warn("line %s: formula error: %v", line.LineCode, err)
			return lineOutcome{state: StateMissingData}
		}
		for _, symbol := range result.Unresolved {
			warn("line %s: formula references unresolved symbol %s; treated as 0", line.LineCode, symbol)
		}
		return lineOutcome{value: result.Value, state: StateComputed, isComputed: true}
	}

	// (4) Special total registry.
	if value, ok := SpecialTotal(line.LineCode, values, wc); ok {
		return lineOutcome{value: value, state: StateComputed, isComputed: true}
	}

	// (5) Default: sum of mapped event amounts.
	if line.Formatting.Kind == KindSection {
		return lineOutcome{state: StateNotApplicable}
	}
	value, backed := sumLineEvents(line, agg)
	if !backed {
		return lineOutcome{state: StateMissingData}
	}
	return lineOutcome{value: value, state: StateComputed}
}

func sumLineEvents(line TemplateLine, agg AggregatedData) (float64, bool) {
	backed := false
	var total float64
	for _, ref := range line.EventMappings {
		if v, ok := agg.EventTotals[ref.Code]; ok {
			backed = true
			total += v
		}
	}
	return total, backed
}

func assembleLines(tmpl StatementTemplate, current, previous map[string]lineOutcome, hasPrevious bool) []StatementLine {
	lines := make([]StatementLine, 0, len(tmpl.Lines))
	for _, line := range tmpl.Lines {
		cur := current[line.LineCode]
		prev := previous[line.LineCode]

		out := StatementLine{
			ID:                  line.LineCode,
			Description:         line.Description,
			CurrentPeriodValue:  cur.value,
			PreviousPeriodValue: prev.value,
			Formatting:          line.Formatting,
			Metadata: LineMetadata{
				LineCode:   line.LineCode,
				EventCodes: eventCodesOf(line),
				Formula:    line.CalculationFormula,
				IsComputed: cur.isComputed,
				State:      cur.state,
			},
		}
		if hasPrevious && line.Formatting.Kind != KindSection {
			entry := VarianceEntry{
				Current:  cur.value,
				Previous: prev.value,
				Absolute: round2(cur.value - prev.value),
			}
			if prev.value == 0 {
				entry.ZeroBaseline = true
			} else {
				entry.Percentage = round2((cur.value - prev.value) / abs(prev.value) * 100)
			}
			out.Variance = &entry
		}
		out.DisplayFormatting = displayFormattingFor(out)
		lines = append(lines, out)
	}
	return lines
}

func collectTotals(lines []StatementLine) map[string]float64 {
	totals := make(map[string]float64)
	for _, line := range lines {
		switch line.Formatting.Kind {
		case KindTotal, KindSubtotal:
			totals[line.Metadata.LineCode] = line.CurrentPeriodValue
		}
	}
	return totals
}

// collectEventCodes unions every event code a statement request needs:
// template mappings, formula references, the working-capital balances and
// the manual beginning-cash entry. Formula references include line codes,
// which simply match no event rows.
func collectEventCodes(tmpl StatementTemplate, receivableCodes, payableCodes []string) []string {
	seen := make(map[string]struct{})
	add := func(codes ...string) {
		for _, code := range codes {
			if code == "" {
				continue
			}
			seen[code] = struct{}{}
		}
	}
	for _, line := range tmpl.Lines {
		for _, ref := range line.EventMappings {
			add(ref.Code)
		}
		if line.CalculationFormula != "" {
			add(formula.References(line.CalculationFormula)...)
		}
	}
	add(receivableCodes...)
	add(payableCodes...)
	add(EventCashBegin)

	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
