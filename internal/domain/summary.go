package domain

import (
	"sort"
	"time"
)

// Dataset is one consistent read of the five base relations. A nil slice
// behaves as an empty relation; the aggregation degrades that axis to its
// zero/null defaults instead of failing.
type Dataset struct {
	Regions       []Region
	Alerts        []Alert
	Resources     []Resource
	Distributions []DistributionEvent
	Rainfall      []RainfallReading
}

// Summary is the result of one aggregation pass: the full derived row set
// plus join diagnostics. UnmatchedResources counts resource rows whose
// location matched no region_name; UnmatchedAlerts counts active alert
// rows whose region matched no region_name. Both are observability
// signals only and never alter the rows.
type Summary struct {
	Rows               []RegionSummary
	AsOf               time.Time
	RefreshedAt        time.Time
	UnmatchedResources int
	UnmatchedAlerts    int
}

// alertAgg accumulates per-region alert state.
type alertAgg struct {
	count   int64
	maxRank int
}

// rainAgg accumulates per-region rainfall state.
type rainAgg struct {
	latestDate time.Time
	latestMM   *float64
	hasLatest  bool
	windowSum  float64
	windowN    int
}

// ComputeSummary computes one RegionSummary row per distinct region_name
// in ds.Regions, applying the aggregation rules documented in the package
// comment. asOf is the reference civil date (truncated to UTC midnight);
// pass Today() outside of tests. The computation is pure: identical
// inputs and asOf produce identical rows except LastRefreshed, which is
// stamped once from the package clock for the whole row set.
func ComputeSummary(ds Dataset, asOf time.Time) Summary {
	asOf = DateOnly(asOf)
	windowStart := asOf.AddDate(0, 0, -7)
	refreshedAt := Now()

	// Anchor on the region set: distinct names, first occurrence wins,
	// output sorted by name for deterministic row order.
	regions := make([]Region, 0, len(ds.Regions))
	names := make(map[string]struct{}, len(ds.Regions))
	ids := make(map[int64]string, len(ds.Regions))
	for _, r := range ds.Regions {
		if _, dup := names[r.Name]; dup {
			continue
		}
		names[r.Name] = struct{}{}
		if r.ID != nil {
			if _, dup := ids[*r.ID]; !dup {
				ids[*r.ID] = r.Name
			}
		}
		regions = append(regions, r)
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i].Name < regions[j].Name })

	sum := Summary{AsOf: asOf, RefreshedAt: refreshedAt}

	// Alerts: active iff expiry_date >= asOf; count and max severity rank.
	alerts := make(map[string]*alertAgg)
	for _, a := range ds.Alerts {
		if DateOnly(a.ExpiryDate).Before(asOf) {
			continue
		}
		if _, known := names[a.Region]; !known {
			sum.UnmatchedAlerts++
			continue
		}
		agg := alerts[a.Region]
		if agg == nil {
			agg = &alertAgg{}
			alerts[a.Region] = agg
		}
		agg.count++
		if rank := SeverityRank(a.Severity); rank > agg.maxRank {
			agg.maxRank = rank
		}
	}

	// Resources: sum quantity_available grouped by location.
	resources := make(map[string]int64)
	for _, r := range ds.Resources {
		if _, known := names[r.Location]; !known {
			sum.UnmatchedResources++
			continue
		}
		resources[r.Location] += r.QuantityAvailable
	}

	// Distributions: trailing 7-day sum grouped by region_id.
	distributions := make(map[int64]int64)
	for _, d := range ds.Distributions {
		if d.RegionID == nil {
			continue
		}
		if DateOnly(d.DateDistributed).Before(windowStart) {
			continue
		}
		distributions[*d.RegionID] += d.QuantitySent
	}

	// Rainfall: latest reading (last in source order wins date ties) and
	// trailing 7-day mean over readings with a rainfall value.
	rain := make(map[string]*rainAgg)
	for _, r := range ds.Rainfall {
		agg := rain[r.Region]
		if agg == nil {
			agg = &rainAgg{}
			rain[r.Region] = agg
		}
		date := DateOnly(r.Date)
		if !agg.hasLatest || !date.Before(agg.latestDate) {
			agg.hasLatest = true
			agg.latestDate = date
			agg.latestMM = r.RainfallMM
		}
		if !date.Before(windowStart) && r.RainfallMM != nil {
			agg.windowSum += *r.RainfallMM
			agg.windowN++
		}
	}

	sum.Rows = make([]RegionSummary, 0, len(regions))
	for _, reg := range regions {
		row := RegionSummary{
			RegionName:    reg.Name,
			Population:    reg.Population,
			RiskLevel:     reg.RiskLevel,
			LastRefreshed: refreshedAt,
		}
		if agg, ok := alerts[reg.Name]; ok {
			row.ActiveAlertsCount = agg.count
			if label, ok := rankLabel[agg.maxRank]; ok {
				row.HighestActiveSeverity = &label
			}
		}
		row.TotalResourcesAvailable = resources[reg.Name]
		if reg.ID != nil && ids[*reg.ID] == reg.Name {
			row.DistributionsLast7d = distributions[*reg.ID]
		}
		if agg, ok := rain[reg.Name]; ok {
			row.LatestRainfallMM = agg.latestMM
			if agg.windowN > 0 {
				avg := agg.windowSum / float64(agg.windowN)
				row.AvgRainfall7d = &avg
			}
		}
		sum.Rows = append(sum.Rows, row)
	}

	return sum
}
