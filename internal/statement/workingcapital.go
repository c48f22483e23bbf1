package statement

// Line codes the working capital calculator overrides on the cash flow
// statement. These never fall through to event-mapping sums, even when the
// computed adjustment is zero.
const (
	LineChangesReceivables = "CHANGES_RECEIVABLES"
	LineChangesPayables    = "CHANGES_PAYABLES"
)

// CalculateWorkingCapital derives signed cash-flow adjustments from the
// receivable and payable balance movement between two periods.
//
// Sign convention: an increase in receivables consumes cash (adjustment is
// the negated change); an increase in payables releases cash (adjustment
// equals the change).
func CalculateWorkingCapital(current, previous AggregatedData, receivableCodes, payableCodes []string) WorkingCapitalResult {
	return WorkingCapitalResult{
		ReceivablesChange: workingCapitalSide(current, previous, receivableCodes, -1),
		PayablesChange:    workingCapitalSide(current, previous, payableCodes, 1),
	}
}

func workingCapitalSide(current, previous AggregatedData, codes []string, sign float64) WorkingCapitalSide {
	cur := SumEventCodes(current, codes)
	prev := SumEventCodes(previous, codes)
	change := round2(cur - prev)
	return WorkingCapitalSide{
		CurrentBalance:     round2(cur),
		PreviousBalance:    round2(prev),
		Change:             change,
		CashFlowAdjustment: round2(sign * change),
		EventCodes:         append([]string(nil), codes...),
	}
}
