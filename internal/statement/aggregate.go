package statement

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"
)

// EventSource abstracts the raw planning/execution rows and the event code
// registry the engine consumes. Implemented by the pgx repository.
type EventSource interface {
	FetchRawEvents(ctx context.Context, projectID int64, facilityIDs []int64, reportingPeriodID int64, entityTypes []EntityType, eventCodes []string) ([]RawEventRow, error)
	ListEvents(ctx context.Context) ([]EventRef, error)
}

// EventData groups the raw rows collected for a statement request.
type EventData struct {
	CurrentPeriod         []RawEventRow
	PreviousPeriod        []RawEventRow
	HasPreviousPeriodData bool
}

// Aggregator sums raw event rows into the totals the formula engine reads.
type Aggregator struct {
	events EventSource
	now    func() time.Time
}

// NewAggregator constructs the aggregation engine.
func NewAggregator(events EventSource) *Aggregator {
	return &Aggregator{events: events, now: time.Now}
}

// CollectEventData fetches current-period rows and, when an adjacent previous
// period is supplied, the previous-period rows under the same filters.
func (a *Aggregator) CollectEventData(ctx context.Context, filters DataFilters, eventCodes []string, previousPeriodID *int64) (EventData, error) {
	if a == nil || a.events == nil {
		return EventData{}, fmt.Errorf("statement: aggregator not initialised")
	}
	current, err := a.events.FetchRawEvents(ctx, filters.ProjectID, filters.FacilityIDs, filters.ReportingPeriodID, filters.EntityTypes, eventCodes)
	if err != nil {
		return EventData{}, fmt.Errorf("statement: fetch current period events: %w", err)
	}
	data := EventData{CurrentPeriod: current}
	if previousPeriodID != nil {
		previous, err := a.events.FetchRawEvents(ctx, filters.ProjectID, filters.FacilityIDs, *previousPeriodID, filters.EntityTypes, eventCodes)
		if err != nil {
			return EventData{}, fmt.Errorf("statement: fetch previous period events: %w", err)
		}
		data.PreviousPeriod = previous
		data.HasPreviousPeriodData = len(previous) > 0
	}
	return data, nil
}

// EventCodeTable resolves numeric event identifiers to canonical codes.
// Built once per request from the registry.
func (a *Aggregator) EventCodeTable(ctx context.Context) (map[int64]string, error) {
	if a == nil || a.events == nil {
		return nil, fmt.Errorf("statement: aggregator not initialised")
	}
	events, err := a.events.ListEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("statement: list events: %w", err)
	}
	table := make(map[int64]string, len(events))
	for _, ev := range events {
		if ev.ID != 0 && ev.Code != "" {
			table[ev.ID] = ev.Code
		}
	}
	return table, nil
}

// AggregateByEvent sums raw rows into per-event, per-facility and per-period
// totals. Rows carrying only a numeric event ID are resolved through the
// ID-to-code table; rows that resolve to no code are dropped from event
// totals but still count toward facility and period totals.
func AggregateByEvent(rows []RawEventRow, idToCode map[int64]string) AggregatedData {
	start := time.Now()
	agg := AggregatedData{
		EventTotals:    make(map[string]float64),
		FacilityTotals: make(map[int64]float64),
		PeriodTotals:   make(map[int64]float64),
	}
	for _, row := range rows {
		code := row.EventCode
		if code == "" {
			code = idToCode[row.EventID]
		}
		if code != "" {
			agg.EventTotals[code] += row.Amount
		}
		agg.FacilityTotals[row.FacilityID] += row.Amount
		agg.PeriodTotals[row.ReportingPeriodID] += row.Amount
		agg.Metadata.TotalAmount += row.Amount
	}
	agg.Metadata.TotalEvents = len(agg.EventTotals)
	agg.Metadata.TotalFacilities = len(agg.FacilityTotals)
	agg.Metadata.ProcessingTime = time.Since(start)
	return agg
}

// CalculatePeriodComparisons derives absolute and percentage variances for
// every event code present in either period. Missing keys default to 0, and
// a zero previous balance forces the percentage to 0 with ZeroBaseline set.
func CalculatePeriodComparisons(current, previous AggregatedData) PeriodComparison {
	comparison := PeriodComparison{
		Current:               current,
		Previous:              previous,
		Variances:             make(map[string]VarianceEntry),
		HasPreviousPeriodData: len(previous.EventTotals) > 0,
	}
	codes := make(map[string]struct{}, len(current.EventTotals))
	for code := range current.EventTotals {
		codes[code] = struct{}{}
	}
	for code := range previous.EventTotals {
		codes[code] = struct{}{}
	}
	for code := range codes {
		cur := current.EventTotals[code]
		prev := previous.EventTotals[code]
		entry := VarianceEntry{
			Current:  round2(cur),
			Previous: round2(prev),
			Absolute: round2(cur - prev),
		}
		if prev == 0 {
			entry.ZeroBaseline = true
		} else {
			entry.Percentage = round2((cur - prev) / math.Abs(prev) * 100)
		}
		comparison.Variances[code] = entry
	}
	return comparison
}

// SumEventCodes totals the aggregated amounts for the provided codes.
// Codes absent from the aggregation contribute 0.
func SumEventCodes(agg AggregatedData, codes []string) float64 {
	var total float64
	for _, code := range codes {
		total += agg.EventTotals[code]
	}
	return total
}

// FacilityMetadataSource supplies facility descriptors for breakdown output.
type FacilityMetadataSource interface {
	GetFacilityDescriptors(ctx context.Context, facilityIDs []int64) (map[int64]FacilityInfo, error)
}

// FacilityBreakdown annotates the requested facilities with whether they
// contributed data. A zero-contribution facility stays in the result and is
// reported through the returned warnings, never dropped.
func FacilityBreakdown(ctx context.Context, source FacilityMetadataSource, facilityIDs []int64, agg AggregatedData) ([]FacilityInfo, []string, error) {
	descriptors := make(map[int64]FacilityInfo, len(facilityIDs))
	if source != nil {
		fetched, err := source.GetFacilityDescriptors(ctx, facilityIDs)
		if err != nil {
			return nil, nil, fmt.Errorf("statement: facility descriptors: %w", err)
		}
		descriptors = fetched
	}
	infos := make([]FacilityInfo, 0, len(facilityIDs))
	var warnings []string
	for _, id := range facilityIDs {
		info, ok := descriptors[id]
		if !ok {
			info = FacilityInfo{ID: id, Name: fmt.Sprintf("Facility %d", id)}
		}
		info.HasData = agg.FacilityTotals[id] != 0
		if !info.HasData {
			warnings = append(warnings, fmt.Sprintf("facility %s (%d) contributed no data for the selected period", info.Name, id))
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos, warnings, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
