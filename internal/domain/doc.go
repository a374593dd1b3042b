// Package domain models the Cloudburst disaster-management base relations
// and the per-region dashboard summary derived from them.
//
// # Base Relations
//
// Five tables (mirrored as CSV files with identical column headers) feed
// the summary:
//
//	affected_regions(region_id, region_name, population, risk_level, ...)
//	alerts(alert_id, region, alert_message, severity, date_issued, expiry_date)
//	resources(resource_id, resource_type, quantity_available, location, status, ...)
//	rainfall_data(id, region, date, rainfall_mm, temperature_c, humidity)
//	distribution_log(log_id, region_id, resource_id, quantity_sent, date_distributed, ...)
//
// # Join Conventions
//
// The region set is the left anchor: every distinct region_name produces
// exactly one summary row, even with no matching data on any other axis.
//
// alerts.region and resources.location join against region_name by exact,
// case-sensitive string equality. The source system has no referential
// integrity on these columns, so a typo or casing mismatch silently drops
// that row's contribution. [ComputeSummary] counts such rows as
// diagnostics instead of fixing them, because the dashboard has always
// behaved this way and "fixing" the join would change published numbers.
//
// distribution_log joins by the numeric region_id. It is the only
// aggregation keyed on the id rather than the name.
//
// # Date Conventions
//
// All windowing is whole-day granularity with no timezone normalization:
// dates are truncated to UTC midnight before comparison. An alert is
// active iff expiry_date >= the as-of date. The trailing 7-day windows
// (distributions, rainfall average) include rows dated exactly 7 days
// before the as-of date and have no upper bound, matching the original
// SQL's `>= CURDATE() - INTERVAL 7 DAY`.
//
// # Severity Ranking
//
// Low=1, Moderate=2, High=3, Critical=4. Unrecognized severities rank 0
// and never win the max; if every active alert for a region ranks 0 the
// summary carries a null severity label, not "Low".
//
// # Tie-breaks
//
// When several rainfall readings share a region's maximum date, the last
// reading in source order wins. The MySQL source orders readings by
// (date, id), so ties resolve to the highest id; the CSV source uses file
// order. Duplicate region_name rows in the region set keep the first
// occurrence.
package domain
