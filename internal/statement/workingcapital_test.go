package statement

import "testing"

func wcAgg(receivables, payables float64) AggregatedData {
	return AggregateByEvent([]RawEventRow{
		{FacilityID: 1, EventCode: "EXEC_RECEIVABLES", Amount: receivables},
		{FacilityID: 1, EventCode: "EXEC_PAYABLES", Amount: payables},
	}, nil)
}

func TestCalculateWorkingCapitalSigns(t *testing.T) {
	current := wcAgg(30000, 8000)
	previous := wcAgg(20000, 10000)

	wc := CalculateWorkingCapital(current, previous, DefaultReceivableEventCodes, DefaultPayableEventCodes)

	// Receivables grew by 10000, consuming cash.
	if wc.ReceivablesChange.Change != 10000 {
		t.Fatalf("receivables change = %v, want 10000", wc.ReceivablesChange.Change)
	}
	if wc.ReceivablesChange.CashFlowAdjustment != -10000 {
		t.Fatalf("receivables adjustment = %v, want -10000", wc.ReceivablesChange.CashFlowAdjustment)
	}
	// Payables shrank by 2000, consuming cash as well.
	if wc.PayablesChange.Change != -2000 {
		t.Fatalf("payables change = %v, want -2000", wc.PayablesChange.Change)
	}
	if wc.PayablesChange.CashFlowAdjustment != -2000 {
		t.Fatalf("payables adjustment = %v, want -2000", wc.PayablesChange.CashFlowAdjustment)
	}
}

func TestCalculateWorkingCapitalZeroChange(t *testing.T) {
	current := wcAgg(15000, 4000)
	previous := wcAgg(15000, 4000)

	wc := CalculateWorkingCapital(current, previous, DefaultReceivableEventCodes, DefaultPayableEventCodes)
	if wc.ReceivablesChange.CashFlowAdjustment != 0 || wc.PayablesChange.CashFlowAdjustment != 0 {
		t.Fatalf("flat balances must produce zero adjustments: %+v", wc)
	}
	if wc.ReceivablesChange.CurrentBalance != 15000 || wc.ReceivablesChange.PreviousBalance != 15000 {
		t.Fatalf("balances not carried: %+v", wc.ReceivablesChange)
	}
}

func TestCalculateWorkingCapitalNoPreviousData(t *testing.T) {
	current := wcAgg(9000, 3000)

	wc := CalculateWorkingCapital(current, AggregatedData{}, DefaultReceivableEventCodes, DefaultPayableEventCodes)
	if wc.ReceivablesChange.CashFlowAdjustment != -9000 {
		t.Fatalf("receivables adjustment = %v, want -9000", wc.ReceivablesChange.CashFlowAdjustment)
	}
	if wc.PayablesChange.CashFlowAdjustment != 3000 {
		t.Fatalf("payables adjustment = %v, want 3000", wc.PayablesChange.CashFlowAdjustment)
	}
}
