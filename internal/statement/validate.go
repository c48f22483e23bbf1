package statement

import (
	"fmt"
	"math"
)

// equationEpsilon is the tolerance, in currency units, for the accounting
// equation and cash reconciliation checks.
const equationEpsilon = 0.01

// ValidateCalculations checks statement-specific invariants over assembled
// lines. Mismatches degrade to warnings except for non-finite values, which
// should be impossible and are reported as errors.
func ValidateCalculations(statementCode string, lines []StatementLine) Validation {
	validation := Validation{IsValid: true}

	values := make(map[string]float64, len(lines))
	for _, line := range lines {
		values[line.Metadata.LineCode] = line.CurrentPeriodValue
		if !isFinite(line.CurrentPeriodValue) || !isFinite(line.PreviousPeriodValue) {
			validation.Errors = append(validation.Errors,
				fmt.Sprintf("line %s produced a non-finite value", line.Metadata.LineCode))
			validation.IsValid = false
		}
	}

	switch statementCode {
	case CodeBalanceSheet:
		check := EquationCheck{
			Assets:      values[LineTotalAssets],
			Liabilities: values[LineTotalLiabilities],
			NetAssets:   values[LineTotalNetAssets],
		}
		check.Difference = round2(check.Assets - check.Liabilities - check.NetAssets)
		check.IsValid = math.Abs(check.Difference) <= equationEpsilon
		validation.AccountingEquation = &check
		if !check.IsValid {
			validation.Warnings = append(validation.Warnings, fmt.Sprintf(
				"accounting equation out of balance: assets %.2f - liabilities %.2f - net assets %.2f = %.2f",
				check.Assets, check.Liabilities, check.NetAssets, check.Difference))
			validation.BusinessRules = append(validation.BusinessRules, "ACCOUNTING_EQUATION")
		}
	case CodeCashFlow:
		begin := values[LineCashBegin]
		increase := values[LineNetIncreaseCash]
		end := values[LineCashEnd]
		if math.Abs(end-(begin+increase)) > equationEpsilon {
			validation.Warnings = append(validation.Warnings, fmt.Sprintf(
				"cash reconciliation mismatch: ending cash %.2f differs from beginning %.2f plus net increase %.2f",
				end, begin, increase))
			validation.BusinessRules = append(validation.BusinessRules, "CASH_RECONCILIATION")
		}
	}

	return validation
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
