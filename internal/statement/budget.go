package statement

import (
	"fmt"
	"sort"
)

// BudgetMapping translates execution event codes to their planning
// counterparts. The shipped mapping collapses several execution categories
// onto shared planning buckets; it is injectable configuration so a
// corrected mapping can be substituted without a code change.
type BudgetMapping map[string]string

// DefaultBudgetMapping returns the mapping in production use today.
func DefaultBudgetMapping() BudgetMapping {
	return BudgetMapping{
		"EXEC_SALARIES_BASE":      "PLAN_COMPENSATION",
		"EXEC_SALARIES_ALLOWANCE": "PLAN_COMPENSATION",
		"EXEC_SOCIAL_SECURITY":    "PLAN_COMPENSATION",
		"EXEC_DRUGS":              "PLAN_GOODS_SERVICES",
		"EXEC_SUPPLIES":           "PLAN_GOODS_SERVICES",
		"EXEC_MAINTENANCE":        "PLAN_GOODS_SERVICES",
		"EXEC_UTILITIES":          "PLAN_GOODS_SERVICES",
		"EXEC_TRANSFERS":          "PLAN_TRANSFERS",
		"EXEC_TRAINING":           "PLAN_CAPACITY",
		"EXEC_SUPERVISION":        "PLAN_CAPACITY",
	}
}

// PlanningCode resolves an execution code to its planning bucket. Codes
// without a mapping fall back to themselves so that symmetric charts still
// pair correctly.
func (m BudgetMapping) PlanningCode(executionCode string) string {
	if mapped, ok := m[executionCode]; ok {
		return mapped
	}
	return executionCode
}

// BudgetProcessor pairs planning and execution aggregates per template line.
type BudgetProcessor struct {
	mapping BudgetMapping
}

// NewBudgetProcessor constructs the processor with the provided mapping;
// a nil mapping falls back to the shipped default.
func NewBudgetProcessor(mapping BudgetMapping) *BudgetProcessor {
	if mapping == nil {
		mapping = DefaultBudgetMapping()
	}
	return &BudgetProcessor{mapping: mapping}
}

// Mapping exposes the execution-to-planning translation table in use.
func (p *BudgetProcessor) Mapping() BudgetMapping {
	return p.mapping
}

// GenerateStatement builds the budget-vs-actual statement for one template.
// Per line: actual sums the mapped execution codes, budget sums the planning
// translations of those codes, variance is budget minus actual, and the
// performance percentage is left nil when the budget is zero.
func (p *BudgetProcessor) GenerateStatement(tmpl StatementTemplate, planning, execution AggregatedData, reportingPeriodID int64) BudgetVsActualStatement {
	stmt := BudgetVsActualStatement{
		StatementCode:     tmpl.StatementCode,
		ReportingPeriodID: reportingPeriodID,
		Lines:             make([]BudgetLine, 0, len(tmpl.Lines)),
	}

	for _, line := range tmpl.Lines {
		if line.Formatting.Kind == KindSection {
			stmt.Lines = append(stmt.Lines, BudgetLine{
				LineCode:    line.LineCode,
				Description: line.Description,
				Formatting:  line.Formatting,
			})
			continue
		}

		executionCodes := eventCodesOf(line)
		planningCodes := p.planningCodesFor(executionCodes)

		actual := round2(SumEventCodes(execution, executionCodes))
		budget := round2(SumEventCodes(planning, planningCodes))

		bl := BudgetLine{
			LineCode:    line.LineCode,
			Description: line.Description,
			Budget:      budget,
			Actual:      actual,
			Variance:    round2(budget - actual),
			Formatting:  line.Formatting,
		}
		if budget != 0 {
			pct := round2(actual / budget * 100)
			bl.PerformancePct = &pct
		}
		stmt.Lines = append(stmt.Lines, bl)

		if line.Formatting.Kind == KindItem {
			stmt.Totals.Budget += budget
			stmt.Totals.Actual += actual
		}
		if budget == 0 && actual != 0 {
			stmt.Warnings = append(stmt.Warnings,
				fmt.Sprintf("line %s has actuals %.2f with no budget allocation", line.LineCode, actual))
		}
	}

	stmt.Totals.Budget = round2(stmt.Totals.Budget)
	stmt.Totals.Actual = round2(stmt.Totals.Actual)
	stmt.Totals.Variance = round2(stmt.Totals.Budget - stmt.Totals.Actual)
	if stmt.Totals.Budget != 0 {
		pct := round2(stmt.Totals.Actual / stmt.Totals.Budget * 100)
		stmt.Totals.PerformancePct = &pct
	}
	return stmt
}

// planningCodesFor translates and deduplicates; the mapping is many-to-one,
// so two execution codes sharing a bucket must not double-count the budget.
func (p *BudgetProcessor) planningCodesFor(executionCodes []string) []string {
	seen := make(map[string]struct{}, len(executionCodes))
	codes := make([]string, 0, len(executionCodes))
	for _, code := range executionCodes {
		mapped := p.mapping.PlanningCode(code)
		if _, ok := seen[mapped]; ok {
			continue
		}
		seen[mapped] = struct{}{}
		codes = append(codes, mapped)
	}
	sort.Strings(codes)
	return codes
}

func eventCodesOf(line TemplateLine) []string {
	codes := make([]string, 0, len(line.EventMappings))
	for _, ref := range line.EventMappings {
		if ref.Code != "" {
			codes = append(codes, ref.Code)
		}
	}
	return codes
}
