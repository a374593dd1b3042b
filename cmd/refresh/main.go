// Command refresh runs one refresh of mv_region_dashboard and exits. It
// can read either the live MySQL base tables or a directory of CSV mirror
// files, persist the result to MySQL, and write it out as a CSV.
//
// Usage:
//
//	go run ./cmd/refresh -source db
//	go run ./cmd/refresh -source files -csv-dir csv_sheets -persist=false -output-csv out/summary.csv
//
// Exit codes: 0 on success, 1 when the summary could not be computed,
// 2 when it was computed but a persistence target failed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	csvadapter "github.com/cloudburst-mgmt/summary-refresh-service/internal/adapter/csvdir"
	mysqladapter "github.com/cloudburst-mgmt/summary-refresh-service/internal/adapter/mysql"
	"github.com/cloudburst-mgmt/summary-refresh-service/internal/config"
	"github.com/cloudburst-mgmt/summary-refresh-service/internal/domain"
	"github.com/cloudburst-mgmt/summary-refresh-service/internal/observability"
	"github.com/cloudburst-mgmt/summary-refresh-service/internal/refresh"
	"github.com/joho/godotenv"
)

const (
	exitOK            = 0
	exitComputeFailed = 1
	exitPersistFailed = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	source := flag.String("source", "db", "base data source: db or files")
	csvDir := flag.String("csv-dir", "", "mirror directory for -source files (default from CSV_DIR)")
	outputCSV := flag.String("output-csv", "", "also write the summary to this CSV path")
	persist := flag.Bool("persist", true, "write the summary into MySQL")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return exitComputeFailed
	}
	if *csvDir == "" {
		*csvDir = cfg.CSVDir
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	refresher := refresh.New(logger, metrics, nil)

	ctx := context.Background()

	// A failed database connection is only fatal when the database is the
	// source. On the files path the computation proceeds and the error is
	// held back until persistence, which is the whole point of the mirror:
	// it works while the live store is down.
	var src refresh.Source
	var store refresh.SummaryStore
	var storeErr error

	switch *source {
	case "db":
		db, err := mysqladapter.Open(cfg.Database, logger)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			return exitComputeFailed
		}
		defer db.Close()
		src = db
		store = db
	case "files":
		src = csvadapter.NewSource(*csvDir, logger)
		if *persist {
			db, err := mysqladapter.Open(cfg.Database, logger)
			if err != nil {
				storeErr = err
			} else {
				defer db.Close()
				store = db
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown -source %q (want db or files)\n", *source)
		return exitComputeFailed
	}

	sum, err := refresher.Compute(ctx, src)
	if err != nil {
		logger.Error("summary computation failed", "error", err)
		return exitComputeFailed
	}
	logger.Info("summary computed", "source", src.Name(), "rows", len(sum.Rows))

	code := writeTargets(ctx, logger, refresher, sum, store, storeErr, *outputCSV, *persist)

	if !*persist && *outputCSV == "" {
		printSummary(sum)
	}
	return code
}

// writeTargets fans a computed summary out to the requested persistence
// targets: the output CSV first, then MySQL. Target failures never mask
// the successful computation; they map to exitPersistFailed.
func writeTargets(ctx context.Context, logger *slog.Logger, refresher *refresh.Refresher, sum domain.Summary, store refresh.SummaryStore, storeErr error, outputCSV string, persist bool) int {
	code := exitOK

	if outputCSV != "" {
		if err := csvadapter.WriteSummary(outputCSV, sum.Rows); err != nil {
			logger.Error("failed to write summary csv", "path", outputCSV, "error", err)
			code = exitPersistFailed
		} else {
			logger.Info("summary csv written", "path", outputCSV)
		}
	}

	if persist {
		switch {
		case storeErr != nil:
			logger.Error("failed to connect to database", "error", storeErr)
			code = exitPersistFailed
		default:
			if err := refresher.Persist(ctx, store, sum); err != nil {
				logger.Error("failed to persist summary", "error", err)
				code = exitPersistFailed
			} else {
				logger.Info("summary persisted", "rows", len(sum.Rows))
			}
		}
	}

	return code
}

// printSummary renders a plain-text preview when no persistence target
// was requested.
func printSummary(sum domain.Summary) {
	fmt.Printf("as of %s, %d regions:\n", sum.AsOf.Format(time.DateOnly), len(sum.Rows))
	for _, row := range sum.Rows {
		severity := "-"
		if row.HighestActiveSeverity != nil {
			severity = *row.HighestActiveSeverity
		}
		fmt.Printf("  %-30s alerts=%d (%s) resources=%d distributions_7d=%d\n",
			row.RegionName, row.ActiveAlertsCount, severity,
			row.TotalResourcesAvailable, row.DistributionsLast7d)
	}
	if sum.UnmatchedResources > 0 || sum.UnmatchedAlerts > 0 {
		fmt.Printf("  (unmatched: %d resources, %d alerts)\n",
			sum.UnmatchedResources, sum.UnmatchedAlerts)
	}
}
