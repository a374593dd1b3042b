// Command genmock generates a deterministic set of CSV mirror files for
// local development and tests. The files use the same names and headers
// as the MySQL base tables, so both the db and files refresh paths can
// run against them.
//
// Usage:
//
//	go run ./cmd/genmock -out csv_sheets -regions 8 -days 14 -seed 42
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/cloudburst-mgmt/summary-refresh-service/internal/adapter/csvdir"
	"github.com/cloudburst-mgmt/summary-refresh-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

var regionNames = []string{
	"North District", "South District", "East District", "West District",
	"Central District", "Riverside", "Hill Valley", "Lakeshore",
	"Harbor Point", "Old Town", "Greenfield", "Stonebridge",
}

var riskLevels = []string{"Low", "Medium", "High", "Severe"}

var severities = []string{
	domain.SeverityLow, domain.SeverityModerate,
	domain.SeverityHigh, domain.SeverityCritical,
}

var resourceTypes = []string{"Water", "Food", "Tents", "Medicine", "Blankets"}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "csv_sheets", "output directory for mirror CSVs")
	regions := flag.Int("regions", 8, "number of regions to generate")
	days := flag.Int("days", 14, "days of rainfall and distribution history")
	seed := flag.Int64("seed", 42, "random seed for reproducible output")
	flag.Parse()

	if *regions < 1 || *regions > len(regionNames) {
		return fmt.Errorf("-regions must be between 1 and %d", len(regionNames))
	}

	// Fix the clock so date windows in the generated data line up the same
	// way on every run with the same seed.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2026, time.August, 20, 6, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	ds := generate(rand.New(rand.NewSource(*seed)), *regions, *days)

	if err := csvdir.WriteMirror(*out, ds); err != nil {
		return fmt.Errorf("writing mirror files: %w", err)
	}

	log.Printf("regions: %d", len(ds.Regions))
	log.Printf("alerts: %d", len(ds.Alerts))
	log.Printf("resources: %d", len(ds.Resources))
	log.Printf("rainfall readings: %d", len(ds.Rainfall))
	log.Printf("distribution events: %d", len(ds.Distributions))
	log.Printf("wrote mirror files to %s", *out)

	printStats(ds)
	return nil
}

func generate(rng *rand.Rand, regionCount, days int) domain.Dataset {
	today := domain.Today()
	var ds domain.Dataset

	for i := 0; i < regionCount; i++ {
		id := int64(i + 1)
		pop := int64(10000 + rng.Intn(490000))
		risk := riskLevels[rng.Intn(len(riskLevels))]
		ds.Regions = append(ds.Regions, domain.Region{
			ID:         &id,
			Name:       regionNames[i],
			Population: &pop,
			RiskLevel:  &risk,
		})
	}

	alertID := int64(0)
	for _, reg := range ds.Regions {
		for n := rng.Intn(4); n > 0; n-- {
			alertID++
			issued := today.AddDate(0, 0, -rng.Intn(days))
			// Roughly a third of alerts are already expired.
			expiry := issued.AddDate(0, 0, rng.Intn(10)-3)
			ds.Alerts = append(ds.Alerts, domain.Alert{
				ID:         alertID,
				Region:     reg.Name,
				Severity:   severities[rng.Intn(len(severities))],
				DateIssued: issued,
				ExpiryDate: expiry,
			})
		}
	}

	resourceID := int64(0)
	for _, reg := range ds.Regions {
		for n := 1 + rng.Intn(3); n > 0; n-- {
			resourceID++
			ds.Resources = append(ds.Resources, domain.Resource{
				ID:                resourceID,
				Type:              resourceTypes[rng.Intn(len(resourceTypes))],
				QuantityAvailable: int64(10 + rng.Intn(500)),
				Location:          reg.Name,
				Status:            "Available",
			})
		}
	}

	for _, reg := range ds.Regions {
		for d := days; d > 0; d-- {
			if rng.Intn(3) == 0 {
				continue
			}
			mm := rng.Float64() * 150
			temp := 18 + rng.Float64()*14
			hum := 50 + rng.Float64()*45
			ds.Rainfall = append(ds.Rainfall, domain.RainfallReading{
				Region:       reg.Name,
				Date:         today.AddDate(0, 0, -d),
				RainfallMM:   &mm,
				TemperatureC: &temp,
				Humidity:     &hum,
			})
		}
	}

	logID := int64(0)
	for _, reg := range ds.Regions {
		for n := rng.Intn(6); n > 0; n-- {
			logID++
			regionID := *reg.ID
			ds.Distributions = append(ds.Distributions, domain.DistributionEvent{
				LogID:           logID,
				RegionID:        &regionID,
				ResourceID:      int64(1 + rng.Intn(int(resourceID))),
				QuantitySent:    int64(5 + rng.Intn(100)),
				DateDistributed: today.AddDate(0, 0, -rng.Intn(days)),
			})
		}
	}

	return ds
}

// printStats runs the aggregation over the generated data and prints the
// resulting rows, handy for updating test assertions.
func printStats(ds domain.Dataset) {
	sum := domain.ComputeSummary(ds, domain.Today())

	fmt.Println("\n=== Aggregated summary for the generated data ===")
	for _, row := range sum.Rows {
		severity := "-"
		if row.HighestActiveSeverity != nil {
			severity = *row.HighestActiveSeverity
		}
		avg := "-"
		if row.AvgRainfall7d != nil {
			avg = fmt.Sprintf("%.2f", *row.AvgRainfall7d)
		}
		fmt.Printf("  %-18s alerts=%d severity=%-8s resources=%-4d distributions_7d=%-4d avg_rain_7d=%s\n",
			row.RegionName, row.ActiveAlertsCount, severity,
			row.TotalResourcesAvailable, row.DistributionsLast7d, avg)
	}
}
