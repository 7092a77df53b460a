package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	app_service "cred-credit-engine/internal/application/service"
	"cred-credit-engine/internal/domain/entity"
	"cred-credit-engine/internal/domain/repository"
	domain_service "cred-credit-engine/internal/domain/service"
	"cred-credit-engine/internal/infrastructure/config"
	"cred-credit-engine/internal/infrastructure/database"
	"cred-credit-engine/internal/infrastructure/httpapi"
	"cred-credit-engine/internal/infrastructure/logger"
	"cred-credit-engine/internal/infrastructure/messaging"
	"cred-credit-engine/internal/infrastructure/scheduler"
	"cred-credit-engine/internal/infrastructure/storage"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

const batchFlushInterval = 5 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	log, err := logger.NewLogger(cfg.App.LogLevel)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		fx.Supply(cfg),
		fx.Supply(log),
		fx.Supply(&cfg.NATS),
		fx.Supply(&cfg.Neo4J),
		fx.Supply(&cfg.Ledger),

		// Infrastructure providers
		fx.Provide(
			database.NewNeo4JClient,
			database.NewNeo4JTransactionRepository,
			provideKeyValueStore,
			provideCreditStateRepository,
			messaging.NewNATSConsumer,
		),

		// Domain services
		fx.Provide(
			domain_service.NewCreditScorer,
		),

		// Application providers
		fx.Provide(
			app_service.NewCreditLedgerService,
			provideCreditService,
			scheduler.NewDelinquencyTracker,
		),

		// Lifecycle hooks
		fx.Invoke(startNeo4J),
		fx.Invoke(startConsumer),
		fx.Invoke(startDelinquencyTracker),
		fx.Invoke(startAPIServer),

		fx.WithLogger(func() fxevent.Logger {
			return fxevent.NopLogger
		}),
	)

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		log.Error("Failed to start application", zap.Error(err))
		os.Exit(1)
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down application...")

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.Stop(stopCtx); err != nil {
		log.Error("Failed to stop application gracefully", zap.Error(err))
		os.Exit(1)
	}

	log.Info("Application stopped successfully")
}

// storageBackend pairs the selected key-value store with its health check
type storageBackend struct {
	store repository.KeyValueStore
	check httpapi.HealthCheck
}

// provideKeyValueStore selects the credit state backend from configuration
func provideKeyValueStore(
	lifecycle fx.Lifecycle,
	cfg *config.Config,
	neo4jClient *database.Neo4JClient,
	log *logger.Logger,
) (*storageBackend, error) {
	switch cfg.Storage.Backend {
	case config.StorageBackendMemory:
		log.Warn("Using in-memory credit state storage; state is lost on restart")
		return &storageBackend{store: storage.NewMemoryStore()}, nil

	case config.StorageBackendNeo4J:
		if !cfg.Neo4J.Enabled {
			return nil, fmt.Errorf("storage backend %q requires neo4j.enabled", cfg.Storage.Backend)
		}
		return &storageBackend{store: database.NewNeo4JKeyValueStore(neo4jClient, log)}, nil

	case config.StorageBackendRedis:
		store, err := storage.NewRedisStore(&cfg.Redis, log)
		if err != nil {
			return nil, err
		}
		lifecycle.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := store.Ping(ctx); err != nil {
					return fmt.Errorf("failed to connect to Redis: %w", err)
				}
				log.Info("Successfully connected to Redis")
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return store.Close()
			},
		})
		return &storageBackend{store: store, check: store.Ping}, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func provideCreditStateRepository(backend *storageBackend, cfg *config.Config, log *logger.Logger) repository.CreditStateRepository {
	return storage.NewCreditStateStore(backend.store, cfg.Storage.Namespace, log)
}

func provideCreditService(
	transactionRepo repository.TransactionRepository,
	ledger domain_service.CreditLedger,
	scorer *domain_service.CreditScorer,
	cfg *config.Config,
	log *logger.Logger,
) domain_service.CreditService {
	return app_service.NewCreditApplicationService(transactionRepo, ledger, scorer, app_service.CreditServiceOptions{
		HistoryLimit:     cfg.Scoring.HistoryLimit,
		AutoRepayExecute: cfg.Ledger.AutoRepayExecute,
	}, log)
}

// startNeo4J connects the history index before anything reads from it
func startNeo4J(lifecycle fx.Lifecycle, cfg *config.Config, neo4jClient *database.Neo4JClient, log *logger.Logger) {
	if !cfg.Neo4J.Enabled {
		log.Warn("Neo4J is disabled; wallet assessments will use the default score")
		return
	}

	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Connecting to Neo4J database")
			if err := neo4jClient.Connect(ctx); err != nil {
				return fmt.Errorf("failed to connect to Neo4J: %w", err)
			}
			log.Info("Successfully connected to Neo4J database")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := neo4jClient.Close(ctx); err != nil {
				log.Error("Failed to close Neo4J connection", zap.Error(err))
			}
			return nil
		},
	})
}

// startConsumer connects NATS and starts the transfer and verification loops
func startConsumer(
	lifecycle fx.Lifecycle,
	consumer *messaging.NATSConsumer,
	creditService domain_service.CreditService,
	log *logger.Logger,
	cfg *config.Config,
) {
	runCtx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("NATS Configuration",
				zap.String("url", cfg.NATS.URL),
				zap.String("stream_name", cfg.NATS.StreamName),
				zap.String("subject_prefix", cfg.NATS.SubjectPrefix),
				zap.String("verification_subject", cfg.NATS.VerificationSubject),
				zap.Bool("enabled", cfg.NATS.Enabled),
			)

			if err := consumer.Connect(ctx); err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}

			wg.Add(2)
			go func() {
				defer wg.Done()
				processTransactions(runCtx, consumer.GetTransactionChannel(), creditService, log, cfg)
			}()
			go func() {
				defer wg.Done()
				processVerifications(runCtx, consumer.GetVerificationChannel(), creditService, log)
			}()

			log.Info("Event consumer started successfully")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Stopping event consumer...")
			err := consumer.Disconnect()
			cancel()
			wg.Wait()
			return err
		},
	})
}

func startDelinquencyTracker(lifecycle fx.Lifecycle, tracker *scheduler.DelinquencyTracker) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return tracker.Start()
		},
		OnStop: tracker.Stop,
	})
}

// startAPIServer serves health and the credit API
func startAPIServer(
	lifecycle fx.Lifecycle,
	cfg *config.Config,
	creditService domain_service.CreditService,
	ledger domain_service.CreditLedger,
	backend *storageBackend,
	consumer *messaging.NATSConsumer,
	neo4jClient *database.Neo4JClient,
	log *logger.Logger,
) {
	checks := map[string]httpapi.HealthCheck{}
	if backend.check != nil {
		checks["storage"] = backend.check
	}
	if cfg.Neo4J.Enabled {
		checks["neo4j"] = func(ctx context.Context) error {
			if !neo4jClient.IsConnected(ctx) {
				return database.ErrNotConnected
			}
			return nil
		}
	}
	if cfg.NATS.Enabled {
		checks["nats"] = func(ctx context.Context) error {
			if !consumer.IsConnected() {
				return fmt.Errorf("nats not connected")
			}
			return nil
		}
	}

	handler := httpapi.NewHandler(creditService, ledger, checks, cfg.Health.Timeout, log)
	server := httpapi.NewServer(cfg.App.HTTPPort, handler, log)

	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return server.Start()
		},
		OnStop: server.Stop,
	})
}

// processTransactions batches transfers and hands full batches to a worker pool
func processTransactions(
	ctx context.Context,
	msgChan <-chan *messaging.Delivery[*entity.Transaction],
	creditService domain_service.CreditService,
	log *logger.Logger,
	cfg *config.Config,
) {
	batchSize := max(cfg.App.BatchSize, 1)
	workers := max(cfg.App.WorkerPoolSize, 1)

	batch := make([]*messaging.Delivery[*entity.Transaction], 0, batchSize)
	ticker := time.NewTicker(batchFlushInterval)
	defer ticker.Stop()

	jobChan := make(chan []*messaging.Delivery[*entity.Transaction], workers)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			log.Info("Starting batch processing worker", zap.Int("worker_id", workerID))

			for job := range jobChan {
				// Batches in flight at shutdown still finish against live storage
				if err := settleBatch(context.Background(), creditService, job, log); err != nil {
					log.Error("Failed to process transaction batch",
						zap.Error(err),
						zap.Int("worker_id", workerID),
						zap.Int("batch_size", len(job)))
				}
			}
		}(i)
	}

	flush := func() {
		if len(batch) == 0 {
			return
		}
		job := make([]*messaging.Delivery[*entity.Transaction], len(batch))
		copy(job, batch)
		jobChan <- job
		batch = batch[:0]
	}

	defer func() {
		flush()
		close(jobChan)
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case delivery, ok := <-msgChan:
			if !ok {
				return
			}
			batch = append(batch, delivery)
			if len(batch) >= batchSize {
				flush()
			}

		case <-ticker.C:
			flush()
		}
	}
}

// settleBatch processes a batch and acks its messages only once the batch
// is applied. A failed batch is nacked for redelivery.
func settleBatch(
	ctx context.Context,
	creditService domain_service.CreditService,
	deliveries []*messaging.Delivery[*entity.Transaction],
	log *logger.Logger,
) error {
	txs := make([]*entity.Transaction, len(deliveries))
	for i, d := range deliveries {
		txs[i] = d.Payload
	}

	if err := creditService.ProcessTransactionBatch(ctx, txs); err != nil {
		hashes := make([]string, 0, len(txs))
		for _, tx := range txs {
			if tx != nil {
				hashes = append(hashes, tx.Hash)
			}
		}
		log.Warn("Requesting redelivery of transaction batch", zap.Strings("tx_hashes", hashes))
		for _, d := range deliveries {
			if nakErr := d.Nak(); nakErr != nil {
				log.Warn("Failed to nak transaction", zap.String("tx_hash", d.Payload.Hash), zap.Error(nakErr))
			}
		}
		return err
	}

	for _, d := range deliveries {
		if err := d.Ack(); err != nil {
			log.Warn("Failed to ack transaction", zap.String("tx_hash", d.Payload.Hash), zap.Error(err))
		}
	}
	return nil
}

// processVerifications applies verified income to credit lines as events arrive
func processVerifications(
	ctx context.Context,
	events <-chan *messaging.Delivery[*entity.VerificationEvent],
	creditService domain_service.CreditService,
	log *logger.Logger,
) {
	for {
		select {
		case <-ctx.Done():
			return
		case delivery, ok := <-events:
			if !ok {
				return
			}
			settleVerification(ctx, creditService, delivery, log)
		}
	}
}

// settleVerification acks an applied event and one that can never apply.
// Other failures are nacked for redelivery.
func settleVerification(
	ctx context.Context,
	creditService domain_service.CreditService,
	delivery *messaging.Delivery[*entity.VerificationEvent],
	log *logger.Logger,
) {
	event := delivery.Payload
	settle := delivery.Ack

	if _, err := creditService.ApplyVerifiedIncome(ctx, event); err != nil {
		log.Error("Failed to apply verified income",
			zap.String("wallet", event.WalletAddress),
			zap.Error(err))
		if !errors.Is(err, domain_service.ErrInvalidWalletAddress) {
			settle = delivery.Nak
		}
	}

	if err := settle(); err != nil {
		log.Warn("Failed to settle verification event",
			zap.String("wallet", event.WalletAddress),
			zap.Error(err))
	}
}
