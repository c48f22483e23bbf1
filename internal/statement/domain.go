package statement

import (
	"errors"
	"time"
)

// Statement codes supported by the engine. A template must exist for a code
// before a statement can be generated.
const (
	CodeRevenueExpenditure = "REV_EXP"
	CodeBalanceSheet       = "BAL_SHEET"
	CodeCashFlow           = "CASH_FLOW"
	CodeNetAssetsChanges   = "NET_ASSETS"
	CodeBudgetVsActual     = "BUDGET_ACTUAL"
)

// EntityType distinguishes planning (budget) rows from execution (actual) rows.
type EntityType string

const (
	// EntityPlanning marks budget figures captured during planning.
	EntityPlanning EntityType = "PLANNING"
	// EntityExecution marks actuals captured during execution.
	EntityExecution EntityType = "EXECUTION"
)

// LineKind tags a template line explicitly instead of inferring structure
// from description text at runtime.
type LineKind string

const (
	// KindItem is a regular data or formula line.
	KindItem LineKind = "ITEM"
	// KindSection is a non-numeric section header.
	KindSection LineKind = "SECTION"
	// KindSubtotal is an intermediate aggregate line.
	KindSubtotal LineKind = "SUBTOTAL"
	// KindTotal is a statement-level aggregate line.
	KindTotal LineKind = "TOTAL"
)

// LineState is the explicit three-state outcome of evaluating one line for
// one period. Zero is a legitimate computed value and is never conflated
// with missing data.
type LineState string

const (
	// StateComputed means the value was produced by one evaluation path.
	StateComputed LineState = "COMPUTED"
	// StateNotApplicable marks lines without numeric semantics (sections).
	StateNotApplicable LineState = "NOT_APPLICABLE"
	// StateMissingData means no source rows backed the line; value is 0.
	StateMissingData LineState = "MISSING_DATA"
)

// LineFormatting carries display hints authored on the template.
type LineFormatting struct {
	IndentLevel int      `json:"indent_level"`
	Bold        bool     `json:"bold"`
	Kind        LineKind `json:"kind"`
}

// EventRef points at a financial event either by numeric identifier or by
// canonical code. IDs are resolved to codes once per request.
type EventRef struct {
	ID   int64  `json:"id,omitempty"`
	Code string `json:"code,omitempty"`
}

// TemplateLine is one row of a statement template. A line is exactly one of:
// a data line (EventMappings), a formula line (CalculationFormula), or a
// special total resolved through the fixed registry.
type TemplateLine struct {
	LineCode           string            `json:"line_code"`
	Description        string            `json:"description"`
	EventMappings      []EventRef        `json:"event_mappings,omitempty"`
	CalculationFormula string            `json:"calculation_formula,omitempty"`
	Formatting         LineFormatting    `json:"formatting"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	DisplayOrder       int               `json:"display_order"`
}

// StatementTemplate is the immutable versioned definition of a statement.
// Line ordering defines display order only, never evaluation order.
type StatementTemplate struct {
	ID            int64
	StatementCode string
	StatementName string
	Version       int
	Lines         []TemplateLine
}

// DataFilters drive which raw rows are summed during aggregation.
type DataFilters struct {
	ProjectID         int64
	FacilityIDs       []int64
	ReportingPeriodID int64
	EntityTypes       []EntityType
}

// RawEventRow is a single raw planning/execution amount as delivered by the
// event data source. Either EventID or EventCode is set.
type RawEventRow struct {
	FacilityID        int64
	ReportingPeriodID int64
	EventID           int64
	EventCode         string
	Amount            float64
}

// AggregationMetadata summarises one aggregation pass.
type AggregationMetadata struct {
	TotalEvents     int           `json:"total_events"`
	TotalFacilities int           `json:"total_facilities"`
	TotalAmount     float64       `json:"total_amount"`
	ProcessingTime  time.Duration `json:"processing_time"`
}

// AggregatedData holds per-event, per-facility and per-period totals for one
// filter set. Immutable once built.
type AggregatedData struct {
	EventTotals    map[string]float64 `json:"event_totals"`
	FacilityTotals map[int64]float64  `json:"facility_totals"`
	PeriodTotals   map[int64]float64  `json:"period_totals"`
	Metadata       AggregationMetadata
}

// VarianceEntry captures current-vs-previous movement for one key.
// ZeroBaseline flags a division-by-zero percentage that was forced to 0.
type VarianceEntry struct {
	Current      float64 `json:"current"`
	Previous     float64 `json:"previous"`
	Absolute     float64 `json:"absolute"`
	Percentage   float64 `json:"percentage"`
	ZeroBaseline bool    `json:"zero_baseline,omitempty"`
}

// PeriodComparison pairs two aggregations with per-event variances.
type PeriodComparison struct {
	Current               AggregatedData
	Previous              AggregatedData
	Variances             map[string]VarianceEntry
	HasPreviousPeriodData bool
}

// LineMetadata travels with an output line for downstream consumers.
type LineMetadata struct {
	LineCode   string    `json:"line_code"`
	EventCodes []string  `json:"event_codes,omitempty"`
	Formula    string    `json:"formula,omitempty"`
	IsComputed bool      `json:"is_computed"`
	State      LineState `json:"state"`
}

// DisplayFormatting holds pre-rendered strings for UI/export consumers.
type DisplayFormatting struct {
	CurrentFormatted  string `json:"current_formatted"`
	PreviousFormatted string `json:"previous_formatted"`
}

// StatementLine is one assembled output row. Created fresh per generation
// request and never mutated after assembly.
type StatementLine struct {
	ID                  string            `json:"id"`
	Description         string            `json:"description"`
	CurrentPeriodValue  float64           `json:"current_period_value"`
	PreviousPeriodValue float64           `json:"previous_period_value"`
	Variance            *VarianceEntry    `json:"variance,omitempty"`
	Formatting          LineFormatting    `json:"formatting"`
	Metadata            LineMetadata      `json:"metadata"`
	DisplayFormatting   DisplayFormatting `json:"display_formatting"`
}

// WorkingCapitalSide is one half (receivables or payables) of the working
// capital result. Change is always current minus previous.
type WorkingCapitalSide struct {
	CurrentBalance     float64  `json:"current_balance"`
	PreviousBalance    float64  `json:"previous_balance"`
	Change             float64  `json:"change"`
	CashFlowAdjustment float64  `json:"cash_flow_adjustment"`
	EventCodes         []string `json:"event_codes"`
}

// WorkingCapitalResult carries both signed cash-flow adjustments.
type WorkingCapitalResult struct {
	ReceivablesChange WorkingCapitalSide `json:"receivables_change"`
	PayablesChange    WorkingCapitalSide `json:"payables_change"`
}

// CarryforwardSource identifies how the beginning cash balance was resolved.
type CarryforwardSource string

const (
	// SourceCarryforward means the prior period ending balance was used.
	SourceCarryforward CarryforwardSource = "CARRYFORWARD"
	// SourceCarryforwardAggregated sums prior ending balances across facilities.
	SourceCarryforwardAggregated CarryforwardSource = "CARRYFORWARD_AGGREGATED"
	// SourceManualEntry preserves an operator-entered beginning balance.
	SourceManualEntry CarryforwardSource = "MANUAL_ENTRY"
)

// CarryforwardResult is the resolved beginning cash position.
type CarryforwardResult struct {
	Source        CarryforwardSource `json:"source"`
	BeginningCash float64            `json:"beginning_cash"`
	Discrepancy   *float64           `json:"discrepancy,omitempty"`
	Warnings      []string           `json:"warnings,omitempty"`
}

// FacilityInfo describes a facility included in the aggregation. HasData is
// true iff the facility contributed a non-zero amount.
type FacilityInfo struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	District string `json:"district"`
	HasData  bool   `json:"has_data"`
}

// EquationCheck reports the accounting-equation validation of a balance sheet.
type EquationCheck struct {
	Assets      float64 `json:"assets"`
	Liabilities float64 `json:"liabilities"`
	NetAssets   float64 `json:"net_assets"`
	Difference  float64 `json:"difference"`
	IsValid     bool    `json:"is_valid"`
}

// Validation accumulates recoverable warnings and fatal errors detected over
// an assembled statement.
type Validation struct {
	IsValid            bool           `json:"is_valid"`
	AccountingEquation *EquationCheck `json:"accounting_equation,omitempty"`
	BusinessRules      []string       `json:"business_rules,omitempty"`
	Warnings           []string       `json:"warnings,omitempty"`
	Errors             []string       `json:"errors,omitempty"`
}

// Performance reports per-request timing for observability consumers.
type Performance struct {
	RequestID   string        `json:"request_id"`
	GeneratedAt time.Time     `json:"generated_at"`
	Duration    time.Duration `json:"duration"`
}

// StatementMetadata describes the scope a statement was generated over.
type StatementMetadata struct {
	ProjectID          int64          `json:"project_id"`
	ReportingPeriodID  int64          `json:"reporting_period_id"`
	PreviousPeriodID   *int64         `json:"previous_period_id,omitempty"`
	FacilitiesIncluded []FacilityInfo `json:"facilities_included"`
	Aggregation        AggregationMetadata
	Carryforward       *CarryforwardResult   `json:"carryforward,omitempty"`
	WorkingCapital     *WorkingCapitalResult `json:"working_capital,omitempty"`
}

// StatementPayload is the numeric content of one generated statement.
type StatementPayload struct {
	StatementCode string             `json:"statement_code"`
	StatementName string             `json:"statement_name"`
	Lines         []StatementLine    `json:"lines"`
	Totals        map[string]float64 `json:"totals"`
	Metadata      StatementMetadata  `json:"metadata"`
}

// FinancialStatementResponse is the full result handed to collaborators.
type FinancialStatementResponse struct {
	Statement   StatementPayload `json:"statement"`
	Validation  Validation       `json:"validation"`
	Performance Performance      `json:"performance"`
}

// BudgetLine pairs a budget figure with its actual for one template line.
// PerformancePct is nil when the budget is zero.
type BudgetLine struct {
	LineCode       string         `json:"line_code"`
	Description    string         `json:"description"`
	Budget         float64        `json:"budget"`
	Actual         float64        `json:"actual"`
	Variance       float64        `json:"variance"`
	PerformancePct *float64       `json:"performance_pct,omitempty"`
	Formatting     LineFormatting `json:"formatting"`
}

// BudgetTotals sums the statement-level budget position.
type BudgetTotals struct {
	Budget         float64  `json:"budget"`
	Actual         float64  `json:"actual"`
	Variance       float64  `json:"variance"`
	PerformancePct *float64 `json:"performance_pct,omitempty"`
}

// BudgetVsActualStatement is the assembled budget-vs-actual output.
type BudgetVsActualStatement struct {
	StatementCode     string       `json:"statement_code"`
	ReportingPeriodID int64        `json:"reporting_period_id"`
	Lines             []BudgetLine `json:"lines"`
	Totals            BudgetTotals `json:"totals"`
	Warnings          []string     `json:"warnings,omitempty"`
}

// ReportingPeriod is the minimal period metadata the engine needs. The
// previous period is resolved through caller-visible adjacency.
type ReportingPeriod struct {
	ID        int64
	Name      string
	StartDate time.Time
	EndDate   time.Time
}

// Fatal sentinel errors. Everything else the pipeline can degrade into
// validation warnings.
var (
	// ErrTemplateNotFound indicates no active template exists for the code.
	ErrTemplateNotFound = errors.New("statement: template not found")
	// ErrPeriodNotFound indicates the reporting period does not exist.
	ErrPeriodNotFound = errors.New("statement: reporting period not found")
	// ErrProjectNotFound indicates the project does not exist.
	ErrProjectNotFound = errors.New("statement: project not found")
	// ErrSnapshotExists indicates a snapshot already exists for the scope.
	ErrSnapshotExists = errors.New("statement: snapshot already exists")
)
