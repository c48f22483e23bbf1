package statement

import (
	"context"
	"testing"
)

func TestAggregateByEvent(t *testing.T) {
	rows := []RawEventRow{
		{FacilityID: 1, ReportingPeriodID: 5, EventCode: "EXEC_DRUGS", Amount: 100},
		{FacilityID: 1, ReportingPeriodID: 5, EventCode: "EXEC_DRUGS", Amount: 50},
		{FacilityID: 2, ReportingPeriodID: 5, EventID: 42, Amount: 30},
		{FacilityID: 2, ReportingPeriodID: 5, EventID: 99, Amount: 7},
	}
	agg := AggregateByEvent(rows, map[int64]string{42: "EXEC_SUPPLIES"})

	if got := agg.EventTotals["EXEC_DRUGS"]; got != 150 {
		t.Fatalf("EXEC_DRUGS total = %v, want 150", got)
	}
	if got := agg.EventTotals["EXEC_SUPPLIES"]; got != 30 {
		t.Fatalf("EXEC_SUPPLIES total = %v, want 30", got)
	}
	if len(agg.EventTotals) != 2 {
		t.Fatalf("event totals = %v, unresolved id must be dropped", agg.EventTotals)
	}
	// The unresolved row still counts toward facility and period totals.
	if got := agg.FacilityTotals[2]; got != 37 {
		t.Fatalf("facility 2 total = %v, want 37", got)
	}
	if got := agg.PeriodTotals[5]; got != 187 {
		t.Fatalf("period total = %v, want 187", got)
	}
	if agg.Metadata.TotalAmount != 187 || agg.Metadata.TotalFacilities != 2 {
		t.Fatalf("metadata = %+v", agg.Metadata)
	}
}

func TestAggregateByEventEmpty(t *testing.T) {
	agg := AggregateByEvent(nil, nil)
	if len(agg.EventTotals) != 0 || agg.Metadata.TotalAmount != 0 {
		t.Fatalf("empty aggregation not zero-valued: %+v", agg)
	}
}

func TestCalculatePeriodComparisons(t *testing.T) {
	current := AggregateByEvent([]RawEventRow{
		{FacilityID: 1, EventCode: "A", Amount: 120},
		{FacilityID: 1, EventCode: "B", Amount: 10},
	}, nil)
	previous := AggregateByEvent([]RawEventRow{
		{FacilityID: 1, EventCode: "A", Amount: 100},
		{FacilityID: 1, EventCode: "C", Amount: 40},
	}, nil)

	cmp := CalculatePeriodComparisons(current, previous)
	if !cmp.HasPreviousPeriodData {
		t.Fatal("HasPreviousPeriodData = false")
	}

	a := cmp.Variances["A"]
	if a.Absolute != 20 || a.Percentage != 20 || a.ZeroBaseline {
		t.Fatalf("variance A = %+v", a)
	}
	// Present only in the current period: percentage suppressed, flagged.
	b := cmp.Variances["B"]
	if !b.ZeroBaseline || b.Percentage != 0 || b.Absolute != 10 {
		t.Fatalf("variance B = %+v", b)
	}
	// Present only in the previous period: -100%.
	c := cmp.Variances["C"]
	if c.Percentage != -100 || c.Absolute != -40 {
		t.Fatalf("variance C = %+v", c)
	}
}

func TestCalculatePeriodComparisonsNegativeBaseline(t *testing.T) {
	current := AggregateByEvent([]RawEventRow{{FacilityID: 1, EventCode: "A", Amount: -50}}, nil)
	previous := AggregateByEvent([]RawEventRow{{FacilityID: 1, EventCode: "A", Amount: -100}}, nil)

	// Divisor is |previous| so the sign of the movement survives.
	got := CalculatePeriodComparisons(current, previous).Variances["A"]
	if got.Percentage != 50 {
		t.Fatalf("variance pct = %v, want 50", got.Percentage)
	}
}

func TestFacilityBreakdownKeepsEmptyFacilities(t *testing.T) {
	agg := AggregateByEvent([]RawEventRow{{FacilityID: 2, EventCode: "A", Amount: 10}}, nil)
	meta := stubFacilityMeta{
		1: {ID: 1, Name: "Mahenge Dispensary", Type: "DISPENSARY", District: "Ulanga"},
		2: {ID: 2, Name: "Ifakara Hospital", Type: "HOSPITAL", District: "Kilombero"},
	}

	infos, warnings, err := FacilityBreakdown(context.Background(), meta, []int64{2, 1}, agg)
	if err != nil {
		t.Fatalf("FacilityBreakdown: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("infos = %+v, want both facilities", infos)
	}
	if infos[0].ID != 1 || infos[1].ID != 2 {
		t.Fatalf("breakdown not sorted by id: %+v", infos)
	}
	if infos[0].HasData || !infos[1].HasData {
		t.Fatalf("HasData flags wrong: %+v", infos)
	}
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want one no-data warning", warnings)
	}
}

func TestSumEventCodes(t *testing.T) {
	agg := AggregateByEvent([]RawEventRow{
		{FacilityID: 1, EventCode: "A", Amount: 5},
		{FacilityID: 1, EventCode: "B", Amount: 7},
	}, nil)
	if got := SumEventCodes(agg, []string{"A", "B", "MISSING"}); got != 12 {
		t.Fatalf("sum = %v, want 12", got)
	}
}
