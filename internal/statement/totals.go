package statement

// Line codes participating in the fixed special-total registry. These are
// computed procedurally from already-produced line values, never through the
// general expression evaluator.
const (
	LineCashEquivalents       = "CASH_EQUIVALENTS"
	LineReceivablesExchange   = "RECEIVABLES_EXCHANGE"
	LineAdvancePayments       = "ADVANCE_PAYMENTS"
	LineDirectInvestments     = "DIRECT_INVESTMENTS"
	LineNonCurrentReceivables = "NON_CURRENT_RECEIVABLES"
	LinePayables              = "PAYABLES"
	LinePaymentsInAdvance     = "PAYMENTS_RECEIVED_ADVANCE"
	LineDirectBorrowings      = "DIRECT_BORROWINGS"
	LineAccumulatedSurplus    = "ACCUMULATED_SURPLUS"
	LineSurplusOfPeriod       = "SURPLUS_OF_PERIOD"
	LinePriorYearAdjustments  = "PRIOR_YEAR_ADJUSTMENTS"

	LineTotalCurrentAssets      = "TOTAL_CURRENT_ASSETS"
	LineTotalNonCurrentAssets   = "TOTAL_NON_CURRENT_ASSETS"
	LineTotalAssets             = "TOTAL_ASSETS"
	LineTotalCurrentLiabilities = "TOTAL_CURRENT_LIABILITIES"
	LineTotalNonCurrentLiab     = "TOTAL_NON_CURRENT_LIABILITIES"
	LineTotalLiabilities        = "TOTAL_LIABILITIES"
	LineTotalNetAssets          = "TOTAL_NET_ASSETS"
	LineTotalLiabNetAssets      = "TOTAL_LIABILITIES_NET_ASSETS"

	LineTotalRevenues  = "TOTAL_REVENUES"
	LineTotalExpenses  = "TOTAL_EXPENSES"
	LineSurplusDeficit = "SURPLUS_DEFICIT"

	LineNetCashOperating = "NET_CASH_FLOW_OPERATING"
	LineNetCashInvesting = "NET_CASH_FLOW_INVESTING"
	LineNetCashFinancing = "NET_CASH_FLOW_FINANCING"
	LineNetIncreaseCash  = "NET_INCREASE_CASH"
	LineCashEnd          = "CASH_EQUIVALENTS_END"

	LineTransfersPublic       = "TRANSFERS_PUBLIC_ENTITIES"
	LineGrantsDonations       = "GRANTS_DONATIONS"
	LineServiceFees           = "SERVICE_FEES"
	LineOtherRevenue          = "OTHER_REVENUE"
	LineCompensationEmployees = "COMPENSATION_EMPLOYEES"
	LineGoodsServices         = "GOODS_SERVICES"
	LineGrantsTransfers       = "GRANTS_TRANSFERS"
	LineSocialAssistance      = "SOCIAL_ASSISTANCE"
	LineFinanceCosts          = "FINANCE_COSTS"
	LineOtherExpenses         = "OTHER_EXPENSES"
)

type totalsInput struct {
	values         map[string]float64
	workingCapital *WorkingCapitalResult
}

func (in totalsInput) sum(codes ...string) float64 {
	var total float64
	for _, code := range codes {
		total += in.values[code]
	}
	return total
}

type specialTotalFn func(in totalsInput) float64

// specialTotals is the fixed registry of procedurally computed lines. Each
// entry reads only already-computed line values (plus the working capital
// result where the statement provides one).
var specialTotals = map[string]specialTotalFn{
	LineTotalCurrentAssets: func(in totalsInput) float64 {
		return in.sum(LineCashEquivalents, LineReceivablesExchange, LineAdvancePayments)
	},
	LineTotalNonCurrentAssets: func(in totalsInput) float64 {
		return in.sum(LineDirectInvestments, LineNonCurrentReceivables)
	},
	LineTotalAssets: func(in totalsInput) float64 {
		return in.sum(LineTotalCurrentAssets, LineTotalNonCurrentAssets)
	},
	LineTotalCurrentLiabilities: func(in totalsInput) float64 {
		return in.sum(LinePayables, LinePaymentsInAdvance)
	},
	LineTotalNonCurrentLiab: func(in totalsInput) float64 {
		return in.sum(LineDirectBorrowings)
	},
	LineTotalLiabilities: func(in totalsInput) float64 {
		return in.sum(LineTotalCurrentLiabilities, LineTotalNonCurrentLiab)
	},
	LineTotalNetAssets: func(in totalsInput) float64 {
		return in.sum(LineAccumulatedSurplus, LineSurplusOfPeriod, LinePriorYearAdjustments)
	},
	LineTotalLiabNetAssets: func(in totalsInput) float64 {
		return in.sum(LineTotalLiabilities, LineTotalNetAssets)
	},
	LineTotalRevenues: func(in totalsInput) float64 {
		return in.sum(LineTransfersPublic, LineGrantsDonations, LineServiceFees, LineOtherRevenue)
	},
	LineTotalExpenses: func(in totalsInput) float64 {
		return in.sum(LineCompensationEmployees, LineGoodsServices, LineGrantsTransfers,
			LineSocialAssistance, LineFinanceCosts, LineOtherExpenses)
	},
	LineSurplusDeficit: func(in totalsInput) float64 {
		return in.values[LineTotalRevenues] - in.values[LineTotalExpenses]
	},
	LineNetCashOperating: func(in totalsInput) float64 {
		base := in.values[LineTotalRevenues] - in.values[LineTotalExpenses]
		if in.workingCapital != nil {
			base += in.workingCapital.ReceivablesChange.CashFlowAdjustment
			base += in.workingCapital.PayablesChange.CashFlowAdjustment
		}
		return base
	},
	LineNetIncreaseCash: func(in totalsInput) float64 {
		return in.sum(LineNetCashOperating, LineNetCashInvesting, LineNetCashFinancing)
	},
	LineCashEnd: func(in totalsInput) float64 {
		return in.values[LineCashBegin] + in.values[LineNetIncreaseCash]
	},
}

// specialTotalRefs mirrors the registry with the line codes each entry reads,
// so the dependency ordering sees registry lines the same way it sees formula
// lines. Must stay in sync with specialTotals.
var specialTotalRefs = map[string][]string{
	LineTotalCurrentAssets:      {LineCashEquivalents, LineReceivablesExchange, LineAdvancePayments},
	LineTotalNonCurrentAssets:   {LineDirectInvestments, LineNonCurrentReceivables},
	LineTotalAssets:             {LineTotalCurrentAssets, LineTotalNonCurrentAssets},
	LineTotalCurrentLiabilities: {LinePayables, LinePaymentsInAdvance},
	LineTotalNonCurrentLiab:     {LineDirectBorrowings},
	LineTotalLiabilities:        {LineTotalCurrentLiabilities, LineTotalNonCurrentLiab},
	LineTotalNetAssets:          {LineAccumulatedSurplus, LineSurplusOfPeriod, LinePriorYearAdjustments},
	LineTotalLiabNetAssets:      {LineTotalLiabilities, LineTotalNetAssets},
	LineTotalRevenues:           {LineTransfersPublic, LineGrantsDonations, LineServiceFees, LineOtherRevenue},
	LineTotalExpenses: {LineCompensationEmployees, LineGoodsServices, LineGrantsTransfers,
		LineSocialAssistance, LineFinanceCosts, LineOtherExpenses},
	LineSurplusDeficit:   {LineTotalRevenues, LineTotalExpenses},
	LineNetCashOperating: {LineTotalRevenues, LineTotalExpenses},
	LineNetIncreaseCash:  {LineNetCashOperating, LineNetCashInvesting, LineNetCashFinancing},
	LineCashEnd:          {LineCashBegin, LineNetIncreaseCash},
}

// SpecialTotalRefs lists the line codes a registry entry reads. Nil for
// non-registry codes.
func SpecialTotalRefs(lineCode string) []string {
	return specialTotalRefs[lineCode]
}

// SpecialTotal evaluates a registry line against computed values. The second
// return reports registry membership so callers can fall through to the
// event-mapping path for ordinary lines.
func SpecialTotal(lineCode string, values map[string]float64, workingCapital *WorkingCapitalResult) (float64, bool) {
	fn, ok := specialTotals[lineCode]
	if !ok {
		return 0, false
	}
	return round2(fn(totalsInput{values: values, workingCapital: workingCapital})), true
}

// IsSpecialTotal reports whether the line code belongs to the registry.
func IsSpecialTotal(lineCode string) bool {
	_, ok := specialTotals[lineCode]
	return ok
}
