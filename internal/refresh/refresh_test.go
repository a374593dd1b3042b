package refresh_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/cloudburst-mgmt/summary-refresh-service/internal/domain"
	"github.com/cloudburst-mgmt/summary-refresh-service/internal/observability"
	"github.com/cloudburst-mgmt/summary-refresh-service/internal/refresh"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockSource struct {
	ds         domain.Dataset
	regionsErr error
	alertsErr  error
}

func (m *mockSource) Name() string { return "mock" }

func (m *mockSource) Regions(_ context.Context) ([]domain.Region, error) {
	return m.ds.Regions, m.regionsErr
}

func (m *mockSource) Alerts(_ context.Context) ([]domain.Alert, error) {
	return m.ds.Alerts, m.alertsErr
}

func (m *mockSource) Resources(_ context.Context) ([]domain.Resource, error) {
	return m.ds.Resources, nil
}

func (m *mockSource) Distributions(_ context.Context) ([]domain.DistributionEvent, error) {
	return m.ds.Distributions, nil
}

func (m *mockSource) Rainfall(_ context.Context) ([]domain.RainfallReading, error) {
	return m.ds.Rainfall, nil
}

type mockStore struct {
	schemaErr    error
	replaceErr   error
	schemaCalls  int
	replaced     [][]domain.RegionSummary
	replaceOrder []string
}

func (m *mockStore) EnsureSchema(_ context.Context) error {
	m.schemaCalls++
	m.replaceOrder = append(m.replaceOrder, "schema")
	return m.schemaErr
}

func (m *mockStore) ReplaceAll(_ context.Context, rows []domain.RegionSummary) error {
	m.replaceOrder = append(m.replaceOrder, "replace")
	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.replaced = append(m.replaced, rows)
	return nil
}

type mockNotifier struct {
	calls  int
	source string
	err    error
}

func (m *mockNotifier) NotifyRefreshed(_ context.Context, _ domain.Summary, source string) error {
	m.calls++
	m.source = source
	return m.err
}

func testDataset() domain.Dataset {
	id := int64(1)
	return domain.Dataset{
		Regions: []domain.Region{{ID: &id, Name: "North"}},
		Alerts: []domain.Alert{
			{Region: "North", Severity: domain.SeverityHigh, ExpiryDate: domain.Today().AddDate(0, 0, 3)},
		},
		Resources: []domain.Resource{{Location: "North", QuantityAvailable: 20}},
	}
}

func newRefresher(n refresh.Notifier) *refresh.Refresher {
	return refresh.New(slog.Default(), observability.NewMetricsForTesting(), n)
}

// --- tests ---

func TestRefresh_HappyPath(t *testing.T) {
	src := &mockSource{ds: testDataset()}
	store := &mockStore{}
	r := newRefresher(nil)

	sum, err := r.Refresh(context.Background(), src, store)
	require.NoError(t, err)

	require.Len(t, sum.Rows, 1)
	assert.Equal(t, "North", sum.Rows[0].RegionName)
	assert.Equal(t, int64(1), sum.Rows[0].ActiveAlertsCount)
	assert.Equal(t, int64(20), sum.Rows[0].TotalResourcesAvailable)

	require.Len(t, store.replaced, 1)
	assert.Equal(t, sum.Rows, store.replaced[0])
	assert.Equal(t, []string{"schema", "replace"}, store.replaceOrder)
	assert.NoError(t, r.CheckReadiness(context.Background()))
}

func TestRefresh_RegionScanFailureIsFatal(t *testing.T) {
	src := &mockSource{regionsErr: errors.New("connection refused")}
	store := &mockStore{}
	r := newRefresher(nil)

	_, err := r.Refresh(context.Background(), src, store)

	require.ErrorIs(t, err, refresh.ErrSourceUnavailable)
	assert.Zero(t, store.schemaCalls, "store must not be touched when the source is down")
	assert.Empty(t, store.replaced)
	assert.Error(t, r.CheckReadiness(context.Background()))
}

func TestRefresh_PartialDataDegrades(t *testing.T) {
	src := &mockSource{ds: testDataset(), alertsErr: errors.New("table missing")}
	store := &mockStore{}
	r := newRefresher(nil)

	sum, err := r.Refresh(context.Background(), src, store)
	require.NoError(t, err)

	require.Len(t, sum.Rows, 1)
	assert.Equal(t, int64(0), sum.Rows[0].ActiveAlertsCount, "alerts axis degrades to zero")
	assert.Nil(t, sum.Rows[0].HighestActiveSeverity)
	assert.Equal(t, int64(20), sum.Rows[0].TotalResourcesAvailable, "other axes unaffected")
}

func TestRefresh_SchemaConflictAbortsBeforeWrite(t *testing.T) {
	src := &mockSource{ds: testDataset()}
	store := &mockStore{schemaErr: refresh.ErrSchemaConflict}
	r := newRefresher(nil)

	_, err := r.Refresh(context.Background(), src, store)

	require.ErrorIs(t, err, refresh.ErrSchemaConflict)
	assert.Equal(t, []string{"schema"}, store.replaceOrder, "no write after schema failure")
	assert.Error(t, r.CheckReadiness(context.Background()))
}

func TestRefresh_WriteFailurePropagates(t *testing.T) {
	src := &mockSource{ds: testDataset()}
	store := &mockStore{replaceErr: errors.New("deadlock")}
	r := newRefresher(nil)

	_, err := r.Refresh(context.Background(), src, store)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "replace summary rows")
	assert.Error(t, r.CheckReadiness(context.Background()))
}

func TestRefresh_NilStoreIsComputeOnly(t *testing.T) {
	src := &mockSource{ds: testDataset()}
	r := newRefresher(nil)

	sum, err := r.Refresh(context.Background(), src, nil)
	require.NoError(t, err)
	assert.Len(t, sum.Rows, 1)
	assert.NoError(t, r.CheckReadiness(context.Background()))
}

func TestRefresh_NotifierCalledOnSuccess(t *testing.T) {
	src := &mockSource{ds: testDataset()}
	n := &mockNotifier{}
	r := newRefresher(n)

	_, err := r.Refresh(context.Background(), src, &mockStore{})
	require.NoError(t, err)
	assert.Equal(t, 1, n.calls)
	assert.Equal(t, "mock", n.source)
}

func TestRefresh_NotifierFailureDoesNotFailRefresh(t *testing.T) {
	src := &mockSource{ds: testDataset()}
	n := &mockNotifier{err: errors.New("broker down")}
	r := newRefresher(n)

	_, err := r.Refresh(context.Background(), src, &mockStore{})
	require.NoError(t, err)
	assert.Equal(t, 1, n.calls)
}

func TestRefresh_NotifierNotCalledOnFailure(t *testing.T) {
	src := &mockSource{regionsErr: errors.New("down")}
	n := &mockNotifier{}
	r := newRefresher(n)

	_, err := r.Refresh(context.Background(), src, &mockStore{})
	require.Error(t, err)
	assert.Zero(t, n.calls)
}

func TestRefresh_IdempotentAcrossRuns(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	src := &mockSource{ds: testDataset()}
	store := &mockStore{}
	r := newRefresher(nil)

	first, err := r.Refresh(context.Background(), src, store)
	require.NoError(t, err)
	second, err := r.Refresh(context.Background(), src, store)
	require.NoError(t, err)

	assert.Equal(t, first.Rows, second.Rows)
	require.Len(t, store.replaced, 2)
}

func TestLastSummary(t *testing.T) {
	src := &mockSource{ds: testDataset()}
	r := newRefresher(nil)

	_, ok := r.LastSummary()
	assert.False(t, ok, "no summary before the first refresh")

	want, err := r.Refresh(context.Background(), src, &mockStore{})
	require.NoError(t, err)

	got, ok := r.LastSummary()
	require.True(t, ok)
	assert.Equal(t, want.Rows, got.Rows)
}

func TestPersist_UsesSameContract(t *testing.T) {
	src := &mockSource{ds: testDataset()}
	store := &mockStore{}
	r := newRefresher(nil)

	sum, err := r.Compute(context.Background(), src)
	require.NoError(t, err)

	require.NoError(t, r.Persist(context.Background(), store, sum))
	assert.Equal(t, []string{"schema", "replace"}, store.replaceOrder)
	require.Len(t, store.replaced, 1)
	assert.Equal(t, sum.Rows, store.replaced[0])
}
