package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/oms-cart/internal/adapter/handler"
	"github.com/rl1809/oms-cart/internal/adapter/messaging"
	"github.com/rl1809/oms-cart/internal/adapter/storage"
	"github.com/rl1809/oms-cart/internal/config"
	"github.com/rl1809/oms-cart/internal/core/service"
	"github.com/rl1809/oms-cart/internal/logger"
	"github.com/rl1809/oms-cart/internal/metrics"
	"github.com/rl1809/oms-cart/internal/port"
)

type store interface {
	port.CatalogRepository
	port.OrderRepository
	storage.Seeder
}

type cache interface {
	port.CacheRepository
	SetStock(ctx context.Context, productID string, quantity int) error
}

type publisher interface {
	port.EventPublisher
	Close() error
}

func main() {
	configPath := flag.String("config", "", "path to a config file (yaml, json or toml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logr, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logr.Sync()

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logr.Warn("close resource", zap.Error(err))
			}
		}
		logr.Info("connections closed")
	}()

	db, closeDB, err := openStore(ctx, cfg, logr)
	if err != nil {
		return err
	}
	closers = append(closers, closeDB)

	stock, closeCache, err := openCache(ctx, cfg, logr)
	if err != nil {
		return err
	}
	closers = append(closers, closeCache)
	if err := syncStock(ctx, db, stock); err != nil {
		return err
	}

	var events publisher = messaging.NoopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		events = messaging.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logr)
		logr.Info("publishing order events", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}
	closers = append(closers, events.Close)

	catalog := service.NewCatalogService(db)
	orders := service.NewOrderService(stock, db, events, cfg.Workers.QueueSize, logr)
	carts := service.NewCartService(catalog, orders, m, logr, cfg.Session.IdleTTL, cfg.Session.SweepInterval)
	dashboard := service.NewDashboardService(catalog, orders)

	var workers sync.WaitGroup
	worker := service.NewOrderWorker(db, stock, events, m, logr)
	for i := 0; i < cfg.Workers.Count; i++ {
		workers.Add(1)
		go func(id int) {
			defer workers.Done()
			worker.Run(id, orders.GetOrderQueue())
		}(i)
	}
	logr.Info("started order workers", zap.Int("count", cfg.Workers.Count))

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	janitorDone := make(chan struct{})
	go func() {
		defer close(janitorDone)
		carts.Run(janitorCtx)
	}()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	handler.RegisterCartServiceServer(grpcServer, handler.NewGRPCHandler(carts, logr))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.GRPC.Addr, err)
	}
	go func() {
		logr.Info("gRPC server listening", zap.String("addr", cfg.GRPC.Addr))
		if err := grpcServer.Serve(lis); err != nil {
			logr.Error("gRPC server error", zap.Error(err))
		}
	}()

	httpHandler := handler.NewHTTPHandler(catalog, carts, orders, dashboard, m, logr, cfg.HTTP.RequestTimeout)
	httpServer := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: otelhttp.NewHandler(httpHandler.Routes(), "http"),
	}
	go func() {
		logr.Info("HTTP server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("HTTP server error", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logr.Warn("HTTP shutdown", zap.Error(err))
	}
	logr.Info("HTTP server stopped")

	healthServer.Shutdown()
	grpcServer.GracefulStop()
	logr.Info("gRPC server stopped")

	stopJanitor()
	<-janitorDone

	// queued orders are still drained by the workers
	orders.Close()
	workers.Wait()
	logr.Info("workers stopped")
	return nil
}

func noClose() error { return nil }

func openStore(ctx context.Context, cfg *config.Config, logr *zap.Logger) (store, func() error, error) {
	var s store = storage.NewMemoryStore()
	closer := noClose
	if cfg.Storage.Driver == "mysql" {
		db, err := sql.Open("mysql", cfg.MySQL.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open mysql: %w", err)
		}
		db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ping mysql: %w", err)
		}
		if cfg.MySQL.Migrate {
			if err := storage.Migrate(db); err != nil {
				db.Close()
				return nil, nil, err
			}
		}
		logr.Info("connected to mysql")
		s, closer = storage.NewMySQLAdapter(db), db.Close
	} else {
		logr.Info("using in-memory store")
	}

	if cfg.Storage.Seed {
		if err := storage.Seed(ctx, s); err != nil {
			closer()
			return nil, nil, fmt.Errorf("seed store: %w", err)
		}
		logr.Info("seeded demo catalog and orders")
	}
	return s, closer, nil
}

func openCache(ctx context.Context, cfg *config.Config, logr *zap.Logger) (cache, func() error, error) {
	if cfg.Cache.Driver != "redis" {
		logr.Info("using in-memory stock cache")
		return storage.NewMemoryCache(), noClose, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	logr.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))
	return storage.NewRedisAdapter(rdb), rdb.Close, nil
}

// syncStock copies the catalog stock into the reservation cache.
func syncStock(ctx context.Context, catalog port.CatalogRepository, c cache) error {
	products, err := catalog.ListProducts(ctx)
	if err != nil {
		return fmt.Errorf("list products: %w", err)
	}
	for _, p := range products {
		if err := c.SetStock(ctx, p.ID, p.Stock); err != nil {
			return fmt.Errorf("sync stock %s: %w", p.ID, err)
		}
	}
	return nil
}
