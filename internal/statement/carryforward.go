package statement

import (
	"context"
	"fmt"
	"math"
)

// LineCashBegin is the manual beginning-cash entry captured in execution
// data. A non-zero value here is operator intent and is never overwritten.
const LineCashBegin = "CASH_EQUIVALENTS_BEGIN"

// EndingCashSource resolves a facility's computed ending cash for a prior
// period, typically from a persisted statement snapshot. The boolean reports
// whether a balance was found.
type EndingCashSource interface {
	EndingCash(ctx context.Context, facilityID, reportingPeriodID int64, projectType string) (float64, bool, error)
}

// Carryforward resolves the beginning cash balance for a statement request.
type Carryforward struct {
	source EndingCashSource
}

// NewCarryforward constructs the carryforward service.
func NewCarryforward(source EndingCashSource) *Carryforward {
	return &Carryforward{source: source}
}

// BeginningCash resolves the opening cash position.
//
// Resolution order: a non-zero manual entry in the current execution data
// wins and is preserved as MANUAL_ENTRY; otherwise the prior period's ending
// cash carries forward, summed across facilities when the scope spans more
// than one. A mismatch between a manual entry and the computed carryforward
// is reported as a discrepancy warning, never auto-corrected.
func (c *Carryforward) BeginningCash(ctx context.Context, previousPeriodID *int64, facilityIDs []int64, projectType string, manualEntry float64) (CarryforwardResult, error) {
	if c == nil {
		return CarryforwardResult{}, fmt.Errorf("statement: carryforward service not initialised")
	}

	carried, found, err := c.priorEndingCash(ctx, previousPeriodID, facilityIDs, projectType)
	if err != nil {
		return CarryforwardResult{}, err
	}

	if manualEntry != 0 {
		result := CarryforwardResult{Source: SourceManualEntry, BeginningCash: round2(manualEntry)}
		if found && math.Abs(manualEntry-carried) >= 0.01 {
			diff := round2(manualEntry - carried)
			result.Discrepancy = &diff
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"manual beginning cash %.2f differs from prior period ending cash %.2f by %.2f",
				manualEntry, carried, diff))
		}
		return result, nil
	}

	source := SourceCarryforward
	if len(facilityIDs) > 1 {
		source = SourceCarryforwardAggregated
	}
	result := CarryforwardResult{Source: source, BeginningCash: round2(carried)}
	if previousPeriodID == nil {
		result.Warnings = append(result.Warnings, "no previous reporting period; beginning cash defaults to 0")
	} else if !found {
		result.Warnings = append(result.Warnings, "no prior ending cash balance recorded; beginning cash defaults to 0")
	}
	return result, nil
}

func (c *Carryforward) priorEndingCash(ctx context.Context, previousPeriodID *int64, facilityIDs []int64, projectType string) (float64, bool, error) {
	if previousPeriodID == nil || c.source == nil {
		return 0, false, nil
	}
	var total float64
	anyFound := false
	for _, facilityID := range facilityIDs {
		balance, found, err := c.source.EndingCash(ctx, facilityID, *previousPeriodID, projectType)
		if err != nil {
			return 0, false, fmt.Errorf("statement: prior ending cash for facility %d: %w", facilityID, err)
		}
		if found {
			anyFound = true
			total += balance
		}
	}
	return total, anyFound, nil
}
