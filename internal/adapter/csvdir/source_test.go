package csvdir

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cloudburst-mgmt/summary-refresh-service/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func i64(v int64) *int64       { return &v }
func f64(v float64) *float64   { return &v }
func str(s string) *string     { return &s }
func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func TestMirrorRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := domain.Dataset{
		Regions: []domain.Region{
			{ID: i64(1), Name: "North District", Population: i64(50000), RiskLevel: str("High")},
			{ID: i64(2), Name: "South District"},
		},
		Alerts: []domain.Alert{
			{ID: 10, Region: "North District", Severity: domain.SeverityCritical,
				DateIssued: day("2026-08-15"), ExpiryDate: day("2026-08-25")},
		},
		Resources: []domain.Resource{
			{ID: 7, Type: "Water", QuantityAvailable: 300, Location: "North District", Status: "Available"},
		},
		Distributions: []domain.DistributionEvent{
			{LogID: 1, RegionID: i64(1), ResourceID: 7, QuantitySent: 40, DateDistributed: day("2026-08-18")},
			{LogID: 2, ResourceID: 7, QuantitySent: 10, DateDistributed: day("2026-08-18")},
		},
		Rainfall: []domain.RainfallReading{
			{Region: "North District", Date: day("2026-08-19"), RainfallMM: f64(120.5),
				TemperatureC: f64(24), Humidity: f64(88)},
			{Region: "North District", Date: day("2026-08-12")},
		},
	}

	require.NoError(t, WriteMirror(dir, want))
	src := NewSource(dir, slog.Default())
	ctx := context.Background()

	got := domain.Dataset{}
	var err error
	got.Regions, err = src.Regions(ctx)
	require.NoError(t, err)
	got.Alerts, err = src.Alerts(ctx)
	require.NoError(t, err)
	got.Resources, err = src.Resources(ctx)
	require.NoError(t, err)
	got.Distributions, err = src.Distributions(ctx)
	require.NoError(t, err)
	got.Rainfall, err = src.Rainfall(ctx)
	require.NoError(t, err)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("dataset changed across mirror round trip (-want +got):\n%s", diff)
	}
}

func TestSource_MissingFilesAreEmptyRelations(t *testing.T) {
	src := NewSource(t.TempDir(), slog.Default())
	ctx := context.Background()

	regions, err := src.Regions(ctx)
	require.NoError(t, err)
	assert.Empty(t, regions)

	rainfall, err := src.Rainfall(ctx)
	require.NoError(t, err)
	assert.Empty(t, rainfall)
}

func TestSource_BlankFileIsEmptyRelation(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, AlertsFile), []byte("\n  \n"), 0o644))

	src := NewSource(dir, slog.Default())
	alerts, err := src.Alerts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestSource_MissingColumnsDegradeToNull(t *testing.T) {
	dir := t.TempDir()
	csv := "region_id,region_name\n1,North District\n2,South District\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, RegionsFile), []byte(csv), 0o644))

	src := NewSource(dir, slog.Default())
	regions, err := src.Regions(context.Background())
	require.NoError(t, err)

	require.Len(t, regions, 2)
	assert.Equal(t, "North District", regions[0].Name)
	assert.Nil(t, regions[0].Population)
	assert.Nil(t, regions[0].RiskLevel)
}

func TestSource_MalformedCellsDegradePerValue(t *testing.T) {
	dir := t.TempDir()
	csv := strings.Join([]string{
		"region,date,rainfall_mm,temperature_c,humidity",
		"North District,2026-08-19,120.5,24.0,88",
		"North District,not-a-date,abc,,",
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, RainfallFile), []byte(csv), 0o644))

	src := NewSource(dir, slog.Default())
	readings, err := src.Rainfall(context.Background())
	require.NoError(t, err)
	require.Len(t, readings, 2)

	assert.Equal(t, day("2026-08-19"), readings[0].Date)
	require.NotNil(t, readings[0].RainfallMM)
	assert.Equal(t, 120.5, *readings[0].RainfallMM)

	assert.True(t, readings[1].Date.IsZero())
	assert.Nil(t, readings[1].RainfallMM)
	assert.Nil(t, readings[1].TemperatureC)
}

func TestSource_DateTimeAndRFC3339Accepted(t *testing.T) {
	dir := t.TempDir()
	csv := strings.Join([]string{
		"alert_id,region,severity,date_issued,expiry_date",
		"1,North District,High,2026-08-15 06:30:00,2026-08-25T00:00:00Z",
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, AlertsFile), []byte(csv), 0o644))

	src := NewSource(dir, slog.Default())
	alerts, err := src.Alerts(context.Background())
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	assert.Equal(t, time.Date(2026, 8, 15, 6, 30, 0, 0, time.UTC), alerts[0].DateIssued)
	assert.Equal(t, day("2026-08-25"), alerts[0].ExpiryDate)
}

func TestWriteSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", SummaryFile)
	rows := []domain.RegionSummary{
		{
			RegionName:              "North District",
			Population:              i64(50000),
			RiskLevel:               str("High"),
			ActiveAlertsCount:       2,
			HighestActiveSeverity:   str(domain.SeverityCritical),
			TotalResourcesAvailable: 300,
			DistributionsLast7d:     40,
			LatestRainfallMM:        f64(120.5),
			AvgRainfall7d:           f64(95.25),
			LastRefreshed:           time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
		},
		{RegionName: "South District", LastRefreshed: time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)},
	}

	require.NoError(t, WriteSummary(path, rows))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)

	assert.Equal(t,
		"region_name,population,risk_level,active_alerts_count,highest_active_severity,"+
			"total_resources_available,distributions_last_7d,latest_rainfall_mm,avg_rainfall_7d,last_refreshed",
		lines[0])
	assert.Equal(t, "North District,50000,High,2,Critical,300,40,120.5,95.25,2026-08-20 12:00:00", lines[1])
	assert.Equal(t, "South District,,,0,,0,0,,,2026-08-20 12:00:00", lines[2])
}
