// Package mysql adapts the live MySQL base store to the refresh
// interfaces: five full-table scans in, one derived table out.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudburst-mgmt/summary-refresh-service/internal/config"
	"github.com/cloudburst-mgmt/summary-refresh-service/internal/domain"
	"github.com/cloudburst-mgmt/summary-refresh-service/internal/refresh"
	_ "github.com/go-sql-driver/mysql"
)

const summaryTable = "mv_region_dashboard"

// summaryColumns is the derived table's column set in its exact order.
// Downstream dashboard pages select these by name, so order and spelling
// are part of the read contract.
var summaryColumns = []string{
	"region_name",
	"population",
	"risk_level",
	"active_alerts_count",
	"highest_active_severity",
	"total_resources_available",
	"distributions_last_7d",
	"latest_rainfall_mm",
	"avg_rainfall_7d",
	"last_refreshed",
}

// Store reads the five base relations and owns the derived summary table.
// It implements refresh.Source and refresh.SummaryStore.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open connects to MySQL, configures the pool, and verifies the
// connection with a ping.
func Open(cfg config.DatabaseConfig, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// NewStore wraps an existing connection, mainly for tests.
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Name() string { return "mysql" }

// Regions scans affected_regions.
func (s *Store) Regions(ctx context.Context) ([]domain.Region, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT region_id, region_name, population, risk_level FROM affected_regions`)
	if err != nil {
		return nil, fmt.Errorf("scan affected_regions: %w", err)
	}
	defer rows.Close()

	var regions []domain.Region
	for rows.Next() {
		var (
			id         sql.NullInt64
			name       string
			population sql.NullInt64
			riskLevel  sql.NullString
		)
		if err := rows.Scan(&id, &name, &population, &riskLevel); err != nil {
			return nil, fmt.Errorf("scan affected_regions row: %w", err)
		}
		regions = append(regions, domain.Region{
			ID:         nullInt(id),
			Name:       name,
			Population: nullInt(population),
			RiskLevel:  nullStr(riskLevel),
		})
	}
	return regions, rows.Err()
}

// Alerts scans alerts.
func (s *Store) Alerts(ctx context.Context) ([]domain.Alert, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT alert_id, region, severity, date_issued, expiry_date FROM alerts`)
	if err != nil {
		return nil, fmt.Errorf("scan alerts: %w", err)
	}
	defer rows.Close()

	var alerts []domain.Alert
	for rows.Next() {
		var (
			a          domain.Alert
			region     sql.NullString
			severity   sql.NullString
			dateIssued sql.NullTime
			expiry     sql.NullTime
		)
		if err := rows.Scan(&a.ID, &region, &severity, &dateIssued, &expiry); err != nil {
			return nil, fmt.Errorf("scan alerts row: %w", err)
		}
		a.Region = region.String
		a.Severity = severity.String
		a.DateIssued = dateIssued.Time
		a.ExpiryDate = expiry.Time
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// Resources scans resources.
func (s *Store) Resources(ctx context.Context) ([]domain.Resource, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT resource_id, resource_type, quantity_available, location, status FROM resources`)
	if err != nil {
		return nil, fmt.Errorf("scan resources: %w", err)
	}
	defer rows.Close()

	var resources []domain.Resource
	for rows.Next() {
		var (
			r        domain.Resource
			typ      sql.NullString
			quantity sql.NullInt64
			location sql.NullString
			status   sql.NullString
		)
		if err := rows.Scan(&r.ID, &typ, &quantity, &location, &status); err != nil {
			return nil, fmt.Errorf("scan resources row: %w", err)
		}
		r.Type = typ.String
		r.QuantityAvailable = quantity.Int64
		r.Location = location.String
		r.Status = status.String
		resources = append(resources, r)
	}
	return resources, rows.Err()
}

// Distributions scans distribution_log.
func (s *Store) Distributions(ctx context.Context) ([]domain.DistributionEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT log_id, region_id, resource_id, quantity_sent, date_distributed FROM distribution_log`)
	if err != nil {
		return nil, fmt.Errorf("scan distribution_log: %w", err)
	}
	defer rows.Close()

	var events []domain.DistributionEvent
	for rows.Next() {
		var (
			e          domain.DistributionEvent
			regionID   sql.NullInt64
			resourceID sql.NullInt64
			quantity   sql.NullInt64
			date       sql.NullTime
		)
		if err := rows.Scan(&e.LogID, &regionID, &resourceID, &quantity, &date); err != nil {
			return nil, fmt.Errorf("scan distribution_log row: %w", err)
		}
		e.RegionID = nullInt(regionID)
		e.ResourceID = resourceID.Int64
		e.QuantitySent = quantity.Int64
		e.DateDistributed = date.Time
		events = append(events, e)
	}
	return events, rows.Err()
}

// Rainfall scans rainfall_data ordered by (date, id) so the
// latest-reading tie-break resolves to the highest id.
func (s *Store) Rainfall(ctx context.Context) ([]domain.RainfallReading, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT region, date, rainfall_mm, temperature_c, humidity FROM rainfall_data ORDER BY date, id`)
	if err != nil {
		return nil, fmt.Errorf("scan rainfall_data: %w", err)
	}
	defer rows.Close()

	var readings []domain.RainfallReading
	for rows.Next() {
		var (
			r        domain.RainfallReading
			region   sql.NullString
			date     sql.NullTime
			mm       sql.NullFloat64
			tempC    sql.NullFloat64
			humidity sql.NullFloat64
		)
		if err := rows.Scan(&region, &date, &mm, &tempC, &humidity); err != nil {
			return nil, fmt.Errorf("scan rainfall_data row: %w", err)
		}
		r.Region = region.String
		r.Date = date.Time
		r.RainfallMM = nullFloat(mm)
		r.TemperatureC = nullFloat(tempC)
		r.Humidity = nullFloat(humidity)
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

// EnsureSchema creates the derived table if absent and verifies that an
// existing table carries exactly the expected columns in order. A table
// with a different shape is a refresh.ErrSchemaConflict, never something
// to write into.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			region_name VARCHAR(255) PRIMARY KEY,
			population INT NULL,
			risk_level VARCHAR(50) NULL,
			active_alerts_count INT NOT NULL DEFAULT 0,
			highest_active_severity VARCHAR(20) NULL,
			total_resources_available INT NOT NULL DEFAULT 0,
			distributions_last_7d INT NOT NULL DEFAULT 0,
			latest_rainfall_mm DECIMAL(10,2) NULL,
			avg_rainfall_7d DECIMAL(10,2) NULL,
			last_refreshed TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		) ENGINE=InnoDB`, summaryTable)

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create %s: %w", summaryTable, err)
	}
	return s.verifySchema(ctx)
}

func (s *Store) verifySchema(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT COLUMN_NAME
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`, summaryTable)
	if err != nil {
		return fmt.Errorf("describe %s: %w", summaryTable, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return fmt.Errorf("describe %s: %w", summaryTable, err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if len(cols) != len(summaryColumns) {
		return fmt.Errorf("%w: %s has columns [%s], want [%s]",
			refresh.ErrSchemaConflict, summaryTable,
			strings.Join(cols, ", "), strings.Join(summaryColumns, ", "))
	}
	for i, want := range summaryColumns {
		if cols[i] != want {
			return fmt.Errorf("%w: %s column %d is %q, want %q",
				refresh.ErrSchemaConflict, summaryTable, i, cols[i], want)
		}
	}
	return nil
}

// ReplaceAll clears the derived table and bulk-inserts rows in one
// transaction. DELETE rather than TRUNCATE: TRUNCATE is DDL in MySQL and
// commits implicitly, which would let readers observe an empty table
// mid-refresh.
func (s *Store) ReplaceAll(ctx context.Context, rows []domain.RegionSummary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin summary transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", summaryTable)); err != nil {
		return fmt.Errorf("clear %s: %w", summaryTable, err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		summaryTable, strings.Join(summaryColumns, ", ")))
	if err != nil {
		return fmt.Errorf("prepare summary insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx,
			row.RegionName,
			row.Population,
			row.RiskLevel,
			row.ActiveAlertsCount,
			row.HighestActiveSeverity,
			row.TotalResourcesAvailable,
			row.DistributionsLast7d,
			row.LatestRainfallMM,
			row.AvgRainfall7d,
			row.LastRefreshed,
		); err != nil {
			return fmt.Errorf("insert summary row %q: %w", row.RegionName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit summary transaction: %w", err)
	}

	s.logger.Debug("summary table replaced", "rows", len(rows))
	return nil
}

// Summaries reads the derived table back, mainly for verification tools
// and tests. Rows come back ordered by region_name.
func (s *Store) Summaries(ctx context.Context) ([]domain.RegionSummary, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT %s FROM %s ORDER BY region_name`,
		strings.Join(summaryColumns, ", "), summaryTable))
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", summaryTable, err)
	}
	defer rows.Close()

	var summaries []domain.RegionSummary
	for rows.Next() {
		var (
			row      domain.RegionSummary
			pop      sql.NullInt64
			risk     sql.NullString
			severity sql.NullString
			latest   sql.NullFloat64
			avg      sql.NullFloat64
		)
		if err := rows.Scan(
			&row.RegionName,
			&pop,
			&risk,
			&row.ActiveAlertsCount,
			&severity,
			&row.TotalResourcesAvailable,
			&row.DistributionsLast7d,
			&latest,
			&avg,
			&row.LastRefreshed,
		); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", summaryTable, err)
		}
		row.Population = nullInt(pop)
		row.RiskLevel = nullStr(risk)
		row.HighestActiveSeverity = nullStr(severity)
		row.LatestRainfallMM = nullFloat(latest)
		row.AvgRainfall7d = nullFloat(avg)
		summaries = append(summaries, row)
	}
	return summaries, rows.Err()
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func nullStr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}
