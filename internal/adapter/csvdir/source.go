// Package csvdir adapts a directory of CSV mirror files to the refresh
// interfaces. The files carry the same names and headers as the MySQL
// base tables, so either path feeds the same aggregation.
package csvdir

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cloudburst-mgmt/summary-refresh-service/internal/domain"
	"github.com/jszwec/csvutil"
)

// Mirror file names, matching the base table names.
const (
	RegionsFile       = "affected_regions.csv"
	AlertsFile        = "alerts.csv"
	ResourcesFile     = "resources.csv"
	RainfallFile      = "rainfall_data.csv"
	DistributionsFile = "distribution_log.csv"
)

// SummaryFile is the default output name for a flat-file summary.
const SummaryFile = "mv_region_dashboard.csv"

// Source reads the five mirror CSVs from a directory. A missing or empty
// file is an empty relation, not an error; the mirrors are produced by an
// export job that may lag behind the live tables.
type Source struct {
	dir    string
	logger *slog.Logger
}

func NewSource(dir string, logger *slog.Logger) *Source {
	return &Source{dir: dir, logger: logger}
}

func (s *Source) Name() string { return "csv" }

// Record shapes mirror the CSV headers. Everything decodes as a string
// first so a malformed cell degrades that one value instead of failing
// the whole file.

type regionRecord struct {
	RegionID   string `csv:"region_id"`
	RegionName string `csv:"region_name"`
	Population string `csv:"population"`
	RiskLevel  string `csv:"risk_level"`
}

type alertRecord struct {
	AlertID    string `csv:"alert_id"`
	Region     string `csv:"region"`
	Severity   string `csv:"severity"`
	DateIssued string `csv:"date_issued"`
	ExpiryDate string `csv:"expiry_date"`
}

type resourceRecord struct {
	ResourceID        string `csv:"resource_id"`
	ResourceType      string `csv:"resource_type"`
	QuantityAvailable string `csv:"quantity_available"`
	Location          string `csv:"location"`
	Status            string `csv:"status"`
}

type distributionRecord struct {
	LogID           string `csv:"log_id"`
	RegionID        string `csv:"region_id"`
	ResourceID      string `csv:"resource_id"`
	QuantitySent    string `csv:"quantity_sent"`
	DateDistributed string `csv:"date_distributed"`
}

type rainfallRecord struct {
	Region       string `csv:"region"`
	Date         string `csv:"date"`
	RainfallMM   string `csv:"rainfall_mm"`
	TemperatureC string `csv:"temperature_c"`
	Humidity     string `csv:"humidity"`
}

func (s *Source) Regions(_ context.Context) ([]domain.Region, error) {
	var records []regionRecord
	if err := s.readFile(RegionsFile, &records); err != nil {
		return nil, err
	}
	regions := make([]domain.Region, 0, len(records))
	for _, rec := range records {
		regions = append(regions, domain.Region{
			ID:         parseIntPtr(rec.RegionID),
			Name:       rec.RegionName,
			Population: parseIntPtr(rec.Population),
			RiskLevel:  strPtr(rec.RiskLevel),
		})
	}
	return regions, nil
}

func (s *Source) Alerts(_ context.Context) ([]domain.Alert, error) {
	var records []alertRecord
	if err := s.readFile(AlertsFile, &records); err != nil {
		return nil, err
	}
	alerts := make([]domain.Alert, 0, len(records))
	for _, rec := range records {
		alerts = append(alerts, domain.Alert{
			ID:         parseInt(rec.AlertID),
			Region:     rec.Region,
			Severity:   rec.Severity,
			DateIssued: parseDate(rec.DateIssued),
			ExpiryDate: parseDate(rec.ExpiryDate),
		})
	}
	return alerts, nil
}

func (s *Source) Resources(_ context.Context) ([]domain.Resource, error) {
	var records []resourceRecord
	if err := s.readFile(ResourcesFile, &records); err != nil {
		return nil, err
	}
	resources := make([]domain.Resource, 0, len(records))
	for _, rec := range records {
		resources = append(resources, domain.Resource{
			ID:                parseInt(rec.ResourceID),
			Type:              rec.ResourceType,
			QuantityAvailable: parseInt(rec.QuantityAvailable),
			Location:          rec.Location,
			Status:            rec.Status,
		})
	}
	return resources, nil
}

func (s *Source) Distributions(_ context.Context) ([]domain.DistributionEvent, error) {
	var records []distributionRecord
	if err := s.readFile(DistributionsFile, &records); err != nil {
		return nil, err
	}
	events := make([]domain.DistributionEvent, 0, len(records))
	for _, rec := range records {
		events = append(events, domain.DistributionEvent{
			LogID:           parseInt(rec.LogID),
			RegionID:        parseIntPtr(rec.RegionID),
			ResourceID:      parseInt(rec.ResourceID),
			QuantitySent:    parseInt(rec.QuantitySent),
			DateDistributed: parseDate(rec.DateDistributed),
		})
	}
	return events, nil
}

func (s *Source) Rainfall(_ context.Context) ([]domain.RainfallReading, error) {
	var records []rainfallRecord
	if err := s.readFile(RainfallFile, &records); err != nil {
		return nil, err
	}
	readings := make([]domain.RainfallReading, 0, len(records))
	for _, rec := range records {
		readings = append(readings, domain.RainfallReading{
			Region:       rec.Region,
			Date:         parseDate(rec.Date),
			RainfallMM:   parseFloatPtr(rec.RainfallMM),
			TemperatureC: parseFloatPtr(rec.TemperatureC),
			Humidity:     parseFloatPtr(rec.Humidity),
		})
	}
	return readings, nil
}

// readFile decodes one mirror CSV into out. Absent and blank files yield
// an empty slice.
func (s *Source) readFile(name string, out any) error {
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Debug("mirror file absent, treating as empty", "file", name)
			return nil
		}
		return fmt.Errorf("read %s: %w", name, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil
	}
	if err := csvutil.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

// summaryRecord is the flat-file rendering of a summary row, columns in
// the derived table's order. Pointer fields marshal to empty cells when
// nil.
type summaryRecord struct {
	RegionName              string   `csv:"region_name"`
	Population              *int64   `csv:"population"`
	RiskLevel               *string  `csv:"risk_level"`
	ActiveAlertsCount       int64    `csv:"active_alerts_count"`
	HighestActiveSeverity   *string  `csv:"highest_active_severity"`
	TotalResourcesAvailable int64    `csv:"total_resources_available"`
	DistributionsLast7d     int64    `csv:"distributions_last_7d"`
	LatestRainfallMM        *float64 `csv:"latest_rainfall_mm"`
	AvgRainfall7d           *float64 `csv:"avg_rainfall_7d"`
	LastRefreshed           string   `csv:"last_refreshed"`
}

// WriteSummary renders rows as a CSV at path, overwriting any previous
// file wholesale.
func WriteSummary(path string, rows []domain.RegionSummary) error {
	records := make([]summaryRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, summaryRecord{
			RegionName:              row.RegionName,
			Population:              row.Population,
			RiskLevel:               row.RiskLevel,
			ActiveAlertsCount:       row.ActiveAlertsCount,
			HighestActiveSeverity:   row.HighestActiveSeverity,
			TotalResourcesAvailable: row.TotalResourcesAvailable,
			DistributionsLast7d:     row.DistributionsLast7d,
			LatestRainfallMM:        row.LatestRainfallMM,
			AvgRainfall7d:           row.AvgRainfall7d,
			LastRefreshed:           row.LastRefreshed.UTC().Format(time.DateTime),
		})
	}

	data, err := csvutil.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write summary csv: %w", err)
	}
	return nil
}

// WriteMirror writes ds out as the five mirror CSVs under dir, in the
// format Source reads back. Used by the mock-data generator and tests.
func WriteMirror(dir string, ds domain.Dataset) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create mirror directory: %w", err)
	}

	regions := make([]regionRecord, 0, len(ds.Regions))
	for _, r := range ds.Regions {
		regions = append(regions, regionRecord{
			RegionID:   formatIntPtr(r.ID),
			RegionName: r.Name,
			Population: formatIntPtr(r.Population),
			RiskLevel:  deref(r.RiskLevel),
		})
	}

	alerts := make([]alertRecord, 0, len(ds.Alerts))
	for _, a := range ds.Alerts {
		alerts = append(alerts, alertRecord{
			AlertID:    strconv.FormatInt(a.ID, 10),
			Region:     a.Region,
			Severity:   a.Severity,
			DateIssued: formatDate(a.DateIssued),
			ExpiryDate: formatDate(a.ExpiryDate),
		})
	}

	resources := make([]resourceRecord, 0, len(ds.Resources))
	for _, r := range ds.Resources {
		resources = append(resources, resourceRecord{
			ResourceID:        strconv.FormatInt(r.ID, 10),
			ResourceType:      r.Type,
			QuantityAvailable: strconv.FormatInt(r.QuantityAvailable, 10),
			Location:          r.Location,
			Status:            r.Status,
		})
	}

	events := make([]distributionRecord, 0, len(ds.Distributions))
	for _, e := range ds.Distributions {
		events = append(events, distributionRecord{
			LogID:           strconv.FormatInt(e.LogID, 10),
			RegionID:        formatIntPtr(e.RegionID),
			ResourceID:      strconv.FormatInt(e.ResourceID, 10),
			QuantitySent:    strconv.FormatInt(e.QuantitySent, 10),
			DateDistributed: formatDate(e.DateDistributed),
		})
	}

	readings := make([]rainfallRecord, 0, len(ds.Rainfall))
	for _, r := range ds.Rainfall {
		readings = append(readings, rainfallRecord{
			Region:       r.Region,
			Date:         formatDate(r.Date),
			RainfallMM:   formatFloatPtr(r.RainfallMM),
			TemperatureC: formatFloatPtr(r.TemperatureC),
			Humidity:     formatFloatPtr(r.Humidity),
		})
	}

	files := []struct {
		name    string
		records any
	}{
		{RegionsFile, regions},
		{AlertsFile, alerts},
		{ResourcesFile, resources},
		{RainfallFile, readings},
		{DistributionsFile, events},
	}
	for _, f := range files {
		data, err := csvutil.Marshal(f.records)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", f.name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, f.name), data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", f.name, err)
		}
	}
	return nil
}

// dateLayouts covers the formats the export job has been seen producing.
var dateLayouts = []string{time.DateOnly, time.DateTime, time.RFC3339}

// parseDate returns the zero time for blank or unparsable cells, which
// the aggregation treats as outside every window.
func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.DateOnly)
}

func parseInt(s string) int64 {
	v, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return v
}

func parseIntPtr(s string) *int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseFloatPtr(s string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &v
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatIntPtr(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
