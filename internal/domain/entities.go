package domain

import "time"

// Severity labels as they appear in the alerts table. Any other value
// ranks 0 and is excluded from the max-severity aggregation.
const (
	SeverityLow      = "Low"
	SeverityModerate = "Moderate"
	SeverityHigh     = "High"
	SeverityCritical = "Critical"
)

// severityRank orders severities for the highest-active-severity
// aggregation: Low < Moderate < High < Critical.
var severityRank = map[string]int{
	SeverityLow:      1,
	SeverityModerate: 2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// rankLabel maps a rank back to its label. Rank 0 has no label.
var rankLabel = map[int]string{
	1: SeverityLow,
	2: SeverityModerate,
	3: SeverityHigh,
	4: SeverityCritical,
}

// SeverityRank returns the numeric rank of a severity label, 0 for
// unknown or empty values.
func SeverityRank(severity string) int {
	return severityRank[severity]
}

// Region is one row of affected_regions. ID is a pointer because the CSV
// mirror may lack the region_id column entirely; a nil id simply never
// matches a distribution row.
type Region struct {
	ID         *int64
	Name       string
	Population *int64
	RiskLevel  *string
}

// Alert is one row of alerts. Region is a free-text name, not a foreign key.
type Alert struct {
	ID         int64
	Region     string
	Severity   string
	DateIssued time.Time
	ExpiryDate time.Time
}

// Resource is one row of resources. Location matches region_name by
// convention only.
type Resource struct {
	ID                int64
	Type              string
	QuantityAvailable int64
	Location          string
	Status            string
}

// DistributionEvent is one row of distribution_log. RegionID mirrors
// Region.ID's nullability; nil never joins.
type DistributionEvent struct {
	LogID           int64
	RegionID        *int64
	ResourceID      int64
	QuantitySent    int64
	DateDistributed time.Time
}

// RainfallReading is one row of rainfall_data. RainfallMM is a pointer so
// a mirror file missing the column degrades to null rather than 0.0.
type RainfallReading struct {
	Region       string
	Date         time.Time
	RainfallMM   *float64
	TemperatureC *float64
	Humidity     *float64
}

// RegionSummary is one row of the derived mv_region_dashboard table.
// It is rebuilt wholesale on every refresh and carries no state that
// cannot be recomputed from the base relations and the as-of date.
type RegionSummary struct {
	RegionName              string
	Population              *int64
	RiskLevel               *string
	ActiveAlertsCount       int64
	HighestActiveSeverity   *string
	TotalResourcesAvailable int64
	DistributionsLast7d     int64
	LatestRainfallMM        *float64
	AvgRainfall7d           *float64
	LastRefreshed           time.Time
}

// DateOnly truncates t to its UTC civil date. All date comparisons in the
// aggregation run at whole-day granularity.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
