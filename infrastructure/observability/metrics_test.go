package observability

import (
	"context"
	"testing"
	"time"

	"casino/config"
	"casino/events"
	"casino/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestProvider(t *testing.T) (*MetricsProvider, *sdkmetric.ManualReader) {
	t.Helper()
	cfg := config.NewTestConfig()
	cfg.MetricsEnabled = true

	reader := sdkmetric.NewManualReader()
	mp := NewMetricsProvider(cfg)
	require.NoError(t, mp.start(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return mp, reader
}

// sum adds up every data point of an int64 sum metric
func sum(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			data, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			for _, dp := range data.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestMetricsProvider_DisabledIsNoop(t *testing.T) {
	mp := NewMetricsProvider(config.NewTestConfig())
	require.NoError(t, mp.Initialize(context.Background()))

	assert.NotPanics(t, func() {
		mp.RecordLedgerEntry(models.EntryKindDebit)
		mp.RecordActionRejected(models.GameCraps, models.KindValidation)
		mp.UpdateActiveTables(models.GameCraps, 1)
	})
	assert.False(t, mp.isEnabled())
}

func TestMetricsProvider_UnknownExporter(t *testing.T) {
	cfg := config.NewTestConfig()
	cfg.MetricsEnabled = true
	cfg.MetricsExporter = "carrier-pigeon"

	err := NewMetricsProvider(cfg).Initialize(context.Background())
	require.Error(t, err)
}

func TestMetricsProvider_Counters(t *testing.T) {
	mp, reader := newTestProvider(t)

	mp.RecordActionRejected(models.GamePoker, models.KindPrecondition)
	mp.RecordActionRejected(models.GamePoker, models.KindValidation)
	mp.UpdateActiveTables(models.GamePoker, 1)
	mp.UpdateActiveTables(models.GamePoker, 1)
	mp.UpdateActiveTables(models.GamePoker, -1)

	assert.Equal(t, int64(2), sum(t, reader, ActionsRejectedTotal))
	assert.Equal(t, int64(1), sum(t, reader, TablesActive))
}

func TestMetricsProvider_AttachCountsBusEvents(t *testing.T) {
	mp, reader := newTestProvider(t)
	bus := events.NewBus()
	mp.Attach(bus)

	ctx := context.Background()
	bus.Emit(ctx, events.LedgerEntryRecordedEvent{Kind: models.EntryKindDebit})
	bus.Emit(ctx, events.LedgerEntryRecordedEvent{Kind: models.EntryKindCredit})
	bus.Emit(ctx, events.RoundResolvedEvent{Game: models.GameBaccarat})
	bus.Emit(ctx, events.TableCreatedEvent{Game: models.GameBaccarat})

	require.Eventually(t, func() bool {
		return sum(t, reader, LedgerEntriesTotal) == 2 &&
			sum(t, reader, RoundsResolvedTotal) == 1 &&
			sum(t, reader, TablesActive) == 1
	}, time.Second, 10*time.Millisecond)
}
