package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"casino/config"
	"casino/events"
	"casino/models"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
)

// MetricsProvider manages the OpenTelemetry instruments for the casino
type MetricsProvider struct {
	config        *config.Config
	meterProvider *sdkmetric.MeterProvider
	initialized   bool
	enabled       bool
	mu            sync.RWMutex

	ledgerEntriesCounter   metric.Int64Counter
	roundsResolvedCounter  metric.Int64Counter
	actionsRejectedCounter metric.Int64Counter
	tablesActiveGauge      metric.Int64UpDownCounter
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg *config.Config) *MetricsProvider {
	return &MetricsProvider{config: cfg}
}

// Initialize sets up the exporter chosen in config
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		return nil
	}

	if !mp.config.MetricsEnabled {
		log.Info("Metrics disabled")
		mp.initialized = true
		return nil
	}

	var (
		exporter sdkmetric.Exporter
		err      error
	)
	switch mp.config.MetricsExporter {
	case "console":
		exporter, err = stdoutmetric.New()
		if err != nil {
			return fmt.Errorf("failed to create console exporter: %w", err)
		}
		log.Info("Using console metric exporter")

	case "otlp":
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		exporter, err = otlpmetricgrpc.New(dialCtx,
			otlpmetricgrpc.WithEndpoint(mp.config.OTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		log.WithField("endpoint", mp.config.OTLPEndpoint).Info("Using OTLP metric exporter")

	case "none":
		log.Info("Metrics export disabled (exporter 'none')")
		mp.initialized = true
		return nil

	default:
		return fmt.Errorf("unknown metrics exporter: %s", mp.config.MetricsExporter)
	}

	reader := sdkmetric.NewPeriodicReader(exporter,
		sdkmetric.WithInterval(time.Duration(mp.config.MetricsExportInterval)*time.Second),
	)
	if err := mp.start(reader); err != nil {
		return err
	}
	otel.SetMeterProvider(mp.meterProvider)
	log.Info("Metrics provider initialized")
	return nil
}

// start builds the meter provider around reader. Caller holds mp.mu.
func (mp *MetricsProvider) start(reader sdkmetric.Reader) error {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(mp.config.ServiceName),
			attribute.String("environment", mp.config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	mp.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	if err := mp.createInstruments(mp.meterProvider.Meter("casino")); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	mp.initialized = true
	mp.enabled = true
	return nil
}

func (mp *MetricsProvider) createInstruments(meter metric.Meter) error {
	var err error

	mp.ledgerEntriesCounter, err = meter.Int64Counter(
		LedgerEntriesTotal,
		metric.WithDescription("Total number of ledger entries written"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create ledger entries counter: %w", err)
	}

	mp.roundsResolvedCounter, err = meter.Int64Counter(
		RoundsResolvedTotal,
		metric.WithDescription("Total number of resolved rounds"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create rounds resolved counter: %w", err)
	}

	mp.actionsRejectedCounter, err = meter.Int64Counter(
		ActionsRejectedTotal,
		metric.WithDescription("Total number of player actions rejected"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create actions rejected counter: %w", err)
	}

	// UpDownCounter for gauge-like behavior
	mp.tablesActiveGauge, err = meter.Int64UpDownCounter(
		TablesActive,
		metric.WithDescription("Current number of open tables"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create tables active gauge: %w", err)
	}

	return nil
}

// Shutdown flushes and stops the meter provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}

// RecordLedgerEntry counts one committed ledger entry
func (mp *MetricsProvider) RecordLedgerEntry(kind models.EntryKind) {
	if !mp.isEnabled() {
		return
	}
	mp.ledgerEntriesCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(LabelKind, string(kind))),
	)
}

// RecordRoundResolved counts one resolved round
func (mp *MetricsProvider) RecordRoundResolved(game models.GameType) {
	if !mp.isEnabled() {
		return
	}
	mp.roundsResolvedCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(LabelGame, string(game))),
	)
}

// RecordActionRejected counts a rejected player action by error kind
func (mp *MetricsProvider) RecordActionRejected(game models.GameType, kind models.ErrorKind) {
	if !mp.isEnabled() {
		return
	}
	mp.actionsRejectedCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelGame, string(game)),
			attribute.String(LabelKind, string(kind)),
		),
	)
}

// UpdateActiveTables moves the open table count for a game
func (mp *MetricsProvider) UpdateActiveTables(game models.GameType, delta int64) {
	if !mp.isEnabled() {
		return
	}
	mp.tablesActiveGauge.Add(context.Background(), delta,
		metric.WithAttributes(attribute.String(LabelGame, string(game))),
	)
}

// Attach feeds the provider from domain events on the bus
func (mp *MetricsProvider) Attach(bus *events.Bus) {
	bus.Subscribe(events.EventTypeLedgerEntryRecorded, func(_ context.Context, e events.Event) {
		mp.RecordLedgerEntry(e.(events.LedgerEntryRecordedEvent).Kind)
	})
	bus.Subscribe(events.EventTypeRoundResolved, func(_ context.Context, e events.Event) {
		mp.RecordRoundResolved(e.(events.RoundResolvedEvent).Game)
	})
	bus.Subscribe(events.EventTypeTableCreated, func(_ context.Context, e events.Event) {
		mp.UpdateActiveTables(e.(events.TableCreatedEvent).Game, 1)
	})
	bus.Subscribe(events.EventTypeTableRemoved, func(_ context.Context, e events.Event) {
		mp.UpdateActiveTables(e.(events.TableRemovedEvent).Game, -1)
	})
}

func (mp *MetricsProvider) isEnabled() bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.initialized && mp.enabled
}
