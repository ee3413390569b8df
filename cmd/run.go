package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"casino/config"
	"casino/database"
	"casino/events"
	"casino/gateway"
	"casino/infrastructure"
	"casino/infrastructure/observability"
	"casino/models"
	"casino/repository"
	"casino/repository/memory"
	"casino/service"
	"casino/table"

	"github.com/coder/quartz"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// Run initializes and starts the application
func Run(ctx context.Context) error {
	cfg := config.Get()
	setupLogging(cfg)

	log.WithFields(log.Fields{
		"environment": cfg.Environment,
		"storage":     cfg.StorageBackend,
	}).Info("Starting casino server...")

	clock := quartz.NewReal()
	eventBus := events.NewBus()

	log.Info("Initializing storage...")
	uowFactory, closeStorage, err := setupStorage(ctx, cfg, eventBus, clock)
	if err != nil {
		return err
	}
	defer closeStorage()
	log.Info("Storage initialized successfully")

	log.Info("Initializing metrics...")
	metrics := observability.NewMetricsProvider(cfg)
	if err := metrics.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	metrics.Attach(eventBus)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := metrics.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("Failed to shut down metrics")
		}
	}()

	var natsClient *infrastructure.NATSClient
	if cfg.NATSServers != "" {
		log.Info("Connecting to NATS...")
		natsClient, err = setupNATS(ctx, cfg, eventBus)
		if err != nil {
			return err
		}
		defer natsClient.Close()
	} else {
		log.Info("NATS_SERVERS not set, event forwarding disabled")
	}

	log.Info("Initializing services...")
	walletService := service.NewWalletService(uowFactory)
	userService := service.NewUserService(uowFactory, cfg.StartingBalance)
	statsService := service.NewStatsService(uowFactory)
	log.Info("Services initialized successfully")

	registry := table.NewRegistry(table.Config{
		Seats:   cfg.SeatsPerGame,
		Wallet:  walletService,
		Stats:   statsService,
		Emitter: eventBus,
		Clock:   clock,
	})
	defer registry.Close()

	for _, game := range models.GameTypes {
		if _, err := registry.CreateTable(ctx, game, fmt.Sprintf("%s main", game), models.ModeMultiplayer); err != nil {
			return fmt.Errorf("failed to open standing %s table: %w", game, err)
		}
	}

	gw := gateway.New(registry, userService, walletService, statsService, metrics)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gw.HandleWebSocket)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if natsClient != nil && !natsClient.IsConnected() {
			http.Error(w, "nats disconnected", http.StatusServiceUnavailable)
			return
		}
		_, _ = fmt.Fprintf(w, "ok connections=%d\n", gw.ConnectionCount())
	})
	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", cfg.ListenAddr).Info("Listening for connections")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down casino server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		gw.CloseAll()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Shutdown completed")
	return nil
}

func setupLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("Unknown LOG_LEVEL, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetOutput(os.Stdout)

	if cfg.Environment == "production" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

// setupStorage opens the configured backend and returns a cleanup func
func setupStorage(ctx context.Context, cfg *config.Config, bus *events.Bus, clock quartz.Clock) (service.UnitOfWorkFactory, func(), error) {
	if cfg.StorageBackend == config.StorageBackendMemory {
		log.Warn("Using in-memory storage, balances are lost on restart")
		return memory.NewUnitOfWorkFactory(memory.NewStore(clock), bus), func() {}, nil
	}

	databaseURL := cfg.GetDatabaseURL()

	log.Info("Running database migrations...")
	if err := database.RunMigrationsWithURL(databaseURL); err != nil {
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return repository.NewUnitOfWorkFactory(db, bus), func() {
		log.Info("Closing database connection...")
		db.Close()
	}, nil
}

func setupNATS(ctx context.Context, cfg *config.Config, bus *events.Bus) (*infrastructure.NATSClient, error) {
	client := infrastructure.NewNATSClient(infrastructure.NATSConfig{
		Servers: cfg.NATSServers,
		Name:    cfg.ServiceName,
		Stream:  cfg.NATSStream,
	})
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}

	mapper := infrastructure.NewEventSubjectMapper()
	if err := client.EnsureStream(mapper.GetAllSubjects()); err != nil {
		_ = client.Close()
		return nil, err
	}

	infrastructure.NewNATSEventPublisher(client, mapper, cfg.ServiceName).Attach(bus)
	return client, nil
}
