// Command check performs consistency checks between the live MySQL base
// tables, the CSV mirror files, and the persisted mv_region_dashboard
// table. It recomputes the summary from both sources and reports any
// divergence, which usually means the mirror export is stale or the
// derived table missed a refresh.
//
// Usage:
//
//	go run ./cmd/check -csv-dir csv_sheets
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	csvadapter "github.com/cloudburst-mgmt/summary-refresh-service/internal/adapter/csvdir"
	mysqladapter "github.com/cloudburst-mgmt/summary-refresh-service/internal/adapter/mysql"
	"github.com/cloudburst-mgmt/summary-refresh-service/internal/config"
	"github.com/cloudburst-mgmt/summary-refresh-service/internal/domain"
	"github.com/cloudburst-mgmt/summary-refresh-service/internal/observability"
	"github.com/cloudburst-mgmt/summary-refresh-service/internal/refresh"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/joho/godotenv"
)

// phase tracks pass/fail for one check phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	csvDir := flag.String("csv-dir", "", "mirror directory (default from CSV_DIR)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		os.Exit(1)
	}
	if *csvDir == "" {
		*csvDir = cfg.CSVDir
	}

	if code := run(cfg, *csvDir); code != 0 {
		os.Exit(code)
	}
}

func run(cfg *config.Config, csvDir string) int {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	fmt.Println("=== Region Summary Consistency Check ===")
	fmt.Println()

	store, err := mysqladapter.Open(cfg.Database, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: connect to database: %v\n", err)
		return 1
	}
	defer store.Close()

	refresher := refresh.New(logger, observability.NewMetricsForTesting(), nil)

	dbSum, err := refresher.Compute(ctx, store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: compute from database: %v\n", err)
		return 1
	}

	csvSum, err := refresher.Compute(ctx, csvadapter.NewSource(csvDir, logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: compute from mirror files: %v\n", err)
		return 1
	}

	phases := []*phase{
		checkSourceAgreement(dbSum, csvSum),
		checkDerivedTable(ctx, store, dbSum),
		checkJoinHygiene(dbSum),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Rows: %d from database, %d from mirror files\n",
		len(dbSum.Rows), len(csvSum.Rows))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll checks passed.")
		return 0
	}
	fmt.Println("\nCheck FAILED.")
	return 1
}

// ignoreTimestamps drops the refresh timestamp from comparisons, since
// the two computations necessarily run at different instants.
var ignoreTimestamps = cmpopts.IgnoreFields(domain.RegionSummary{}, "LastRefreshed")

// checkSourceAgreement recomputes the summary from both sources and
// compares row for row.
func checkSourceAgreement(dbSum, csvSum domain.Summary) *phase {
	p := &phase{name: "Phase 1: Source Agreement (db vs files)"}

	if len(dbSum.Rows) != len(csvSum.Rows) {
		p.errorf("row count: database produced %d, mirror files produced %d",
			len(dbSum.Rows), len(csvSum.Rows))
	}
	if diff := cmp.Diff(dbSum.Rows, csvSum.Rows, ignoreTimestamps); diff != "" {
		p.errorf("summaries diverge (-db +files):\n%s", diff)
	}
	return p
}

// checkDerivedTable compares the persisted mv_region_dashboard rows with
// a fresh computation from the same base tables.
func checkDerivedTable(ctx context.Context, store *mysqladapter.Store, dbSum domain.Summary) *phase {
	p := &phase{name: "Phase 2: Derived Table (stored vs computed)"}

	stored, err := store.Summaries(ctx)
	if err != nil {
		p.errorf("read mv_region_dashboard: %v", err)
		return p
	}
	if len(stored) == 0 {
		p.errorf("mv_region_dashboard is empty; run a refresh first")
		return p
	}
	if diff := cmp.Diff(dbSum.Rows, stored, ignoreTimestamps); diff != "" {
		p.errorf("stored table diverges from base tables (-computed +stored):\n%s", diff)
	}
	return p
}

// checkJoinHygiene reports base rows that no region claims. They are not
// errors for the refresh itself but usually indicate data-entry drift in
// location and region spellings.
func checkJoinHygiene(dbSum domain.Summary) *phase {
	p := &phase{name: "Phase 3: Join Hygiene (orphaned rows)"}

	if dbSum.UnmatchedResources > 0 {
		p.errorf("%d resource rows have locations matching no region", dbSum.UnmatchedResources)
	}
	if dbSum.UnmatchedAlerts > 0 {
		p.errorf("%d alert rows name no known region", dbSum.UnmatchedAlerts)
	}
	return p
}
