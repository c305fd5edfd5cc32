package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fekuna/omnipos-sales-service/config"
	"github.com/fekuna/omnipos-sales-service/internal/client"
	clientRepoPkg "github.com/fekuna/omnipos-sales-service/internal/client/repository"
	"github.com/fekuna/omnipos-sales-service/internal/inventory"
	invCache "github.com/fekuna/omnipos-sales-service/internal/inventory/cache"
	invH "github.com/fekuna/omnipos-sales-service/internal/inventory/handler"
	invListenerPkg "github.com/fekuna/omnipos-sales-service/internal/inventory/listener"
	invRepoPkg "github.com/fekuna/omnipos-sales-service/internal/inventory/repository"
	invUCPkg "github.com/fekuna/omnipos-sales-service/internal/inventory/usecase"
	"github.com/fekuna/omnipos-sales-service/internal/order"
	orderH "github.com/fekuna/omnipos-sales-service/internal/order/handler"
	orderLockerPkg "github.com/fekuna/omnipos-sales-service/internal/order/locker"
	orderPubPkg "github.com/fekuna/omnipos-sales-service/internal/order/publisher"
	orderRepoPkg "github.com/fekuna/omnipos-sales-service/internal/order/repository"
	orderUCPkg "github.com/fekuna/omnipos-sales-service/internal/order/usecase"
	"github.com/fekuna/omnipos-sales-service/internal/pkg/broker"
	"github.com/fekuna/omnipos-sales-service/internal/pkg/cache"
	"github.com/fekuna/omnipos-sales-service/internal/pkg/database/postgres"
	"github.com/fekuna/omnipos-sales-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-sales-service/internal/pkg/telemetry"
	"github.com/fekuna/omnipos-sales-service/internal/pkg/txm"
	"github.com/fekuna/omnipos-sales-service/internal/product"
	prodRepoPkg "github.com/fekuna/omnipos-sales-service/internal/product/repository"
	"github.com/fekuna/omnipos-sales-service/internal/storage/memory"
	"github.com/fekuna/omnipos-sales-service/internal/tax"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// repositories is the storage a driver provides.
type repositories struct {
	products  product.Repository
	clients   client.Repository
	inventory inventory.Repository
	orders    order.Repository
	tx        txm.Manager
	close     func() error

	memory *memory.Store // Set for the memory driver only
}

func main() {
	// 1. Load Configuration
	_ = godotenv.Load() // Load .env file if it exists
	cfg := config.LoadEnv()

	// 2. Initialize Logger
	logConfig := &logger.ZapLoggerConfig{
		IsDevelopment:     false,
		Encoding:          "json",
		Level:             cfg.Logger.Level,
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	}

	if cfg.Server.AppEnv == "development" || cfg.Server.AppEnv == "dev" {
		logConfig.IsDevelopment = true
		logConfig.Encoding = cfg.Logger.Encoding
	}

	appLogger := logger.NewZapLogger(logConfig)
	defer appLogger.Sync()

	// 3. Initialize Storage
	repos, err := openStorage(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Could not initialize storage", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer repos.close()

	// 4. Initialize Redis (optional: stock cache and order locks)
	var (
		stockCache  inventory.Cache
		orderLocker order.Locker
	)
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedisClient(&cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			appLogger.Warn("Could not connect to Redis, running without stock cache and order locks", zap.Error(err))
		} else {
			defer redisClient.Close()
			appLogger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))

			stockCache = invCache.NewStockCache(redisClient.Client, cfg.Redis.StockTTL, appLogger)
			orderLocker = orderLockerPkg.NewRedisLocker(redisClient, orderLockerPkg.Config{
				TTL:     cfg.Redis.LockTTL,
				Retries: cfg.Redis.LockRetries,
				Backoff: cfg.Redis.LockBackoff,
			}, appLogger)
		}
	}

	// 5. Initialize Kafka
	var (
		kafkaConsumer  *broker.KafkaConsumer
		orderPublisher order.EventPublisher
	)
	if cfg.Kafka.Enabled {
		kafkaConsumer = broker.NewConsumer(&broker.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.ReceiptsTopic,
			GroupID: cfg.Kafka.ReceiptsGroupID,
		})
		defer kafkaConsumer.Close()

		kafkaProducer := broker.NewProducer(&broker.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.OrdersTopic,
		})
		defer kafkaProducer.Close()
		orderPublisher = orderPubPkg.NewKafkaPublisher(kafkaProducer)

		appLogger.Info("Kafka configured",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("receipts_topic", cfg.Kafka.ReceiptsTopic),
			zap.String("orders_topic", cfg.Kafka.OrdersTopic),
		)
	}

	// 6. Initialize Metrics and Tax tables
	metrics := telemetry.NewSalesMetrics(prometheus.DefaultRegisterer)
	calculator := tax.NewCalculator(tax.NewResolver(tax.NewRateTable(cfg.Tax.TableConfig())))

	// 7. Initialize UseCases
	invUC := invUCPkg.NewInventoryUseCase(repos.inventory, repos.products, repos.tx, stockCache, metrics, appLogger)
	orderUC := orderUCPkg.NewOrderUseCase(
		repos.orders, repos.products, repos.clients, invUC, calculator, repos.tx,
		orderLocker, orderPublisher, metrics,
		orderUCPkg.Config{
			NumberPrefix:        cfg.Order.NumberPrefix,
			AllowCancelInvoiced: cfg.Order.AllowCancelInvoiced,
		},
		appLogger,
	)

	// 8. Seed the memory driver
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if repos.memory != nil && cfg.Storage.SeedFile != "" {
		if err := seedMemory(ctx, repos.memory, cfg.Storage.SeedFile, invUC); err != nil {
			appLogger.Fatal("Could not seed in-memory storage", zap.String("file", cfg.Storage.SeedFile), zap.Error(err))
		}
		appLogger.Info("In-memory storage seeded", zap.String("file", cfg.Storage.SeedFile))
	}

	// 9. Start Listeners
	if kafkaConsumer != nil {
		receiptListener := invListenerPkg.NewReceiptListener(kafkaConsumer, invUC, appLogger)
		go receiptListener.Start(ctx)
	}

	// 10. Start Metrics Server
	metricsServer := &http.Server{
		Addr:              normalizePort(cfg.Metrics.Port),
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("metrics server failed", zap.Error(err))
		}
	}()

	// 11. Start gRPC Server
	port := normalizePort(cfg.Server.GRPCPort)
	lis, err := net.Listen("tcp", port)
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}

	grpcServer := grpc.NewServer()

	// Register Services
	orderH.Register(grpcServer, orderH.NewOrderHandler(orderUC, appLogger))
	invH.Register(grpcServer, invH.NewInventoryHandler(invUC, appLogger))

	healthServer := health.NewServer()
	healthServer.SetServingStatus(orderH.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(invH.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	// Register Reflection
	reflection.Register(grpcServer)

	appLogger.Info("Starting gRPC server", zap.String("port", port), zap.String("storage", cfg.Storage.Driver))

	// Graceful Shutdown
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			appLogger.Fatal("failed to serve", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	healthServer.Shutdown()
	cancel()
	grpcServer.GracefulStop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = metricsServer.Shutdown(shutdownCtx)
	appLogger.Info("Server stopped")
}

func openStorage(cfg *config.Config, appLogger logger.ZapLogger) (*repositories, error) {
	if cfg.Storage.Driver == "memory" {
		appLogger.Warn("Using in-memory storage, data is lost on exit")
		if cfg.Storage.SeedFile == "" {
			appLogger.Warn("No STORAGE_SEED_FILE set, the catalog starts empty")
		}
		store := memory.NewStore()
		return &repositories{
			products:  store.Products(),
			clients:   store.Clients(),
			inventory: store.Inventory(),
			orders:    store.Orders(),
			tx:        store.TxManager(),
			close:     func() error { return nil },
			memory:    store,
		}, nil
	}

	db, err := postgres.NewPostgres(&postgres.Config{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		DBName:          cfg.Postgres.DBName,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
		LockTimeout:     time.Duration(cfg.Postgres.LockTimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return nil, err
	}
	appLogger.Info("Connected to PostgreSQL database", zap.String("db_name", cfg.Postgres.DBName))

	if cfg.Postgres.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		appLogger.Info("Database migrations applied")
	}

	return &repositories{
		products:  prodRepoPkg.NewPGRepository(db),
		clients:   clientRepoPkg.NewPGRepository(db),
		inventory: invRepoPkg.NewPGRepository(db),
		orders:    orderRepoPkg.NewPGRepository(db),
		tx:        txm.NewSQLManager(db),
		close:     db.Close,
	}, nil
}

// seedMemory loads the fixture's catalog and books its opening stock through
// the inventory engine.
func seedMemory(ctx context.Context, store *memory.Store, path string, stock inventory.UseCase) error {
	fixture, err := memory.LoadFixture(path)
	if err != nil {
		return err
	}
	receipt := store.Seed(fixture)
	if receipt == nil {
		return nil
	}
	_, err = stock.RecordReceipt(ctx, receipt)
	return err
}

func normalizePort(port string) string {
	if !strings.HasPrefix(port, ":") && !strings.Contains(port, ":") {
		return ":" + port
	}
	return port
}
