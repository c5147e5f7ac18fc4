package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/oms-cart/internal/adapter/messaging"
	"github.com/rl1809/oms-cart/internal/adapter/storage"
	"github.com/rl1809/oms-cart/internal/core/domain"
	"github.com/rl1809/oms-cart/internal/core/service"
	"github.com/rl1809/oms-cart/internal/metrics"
	"github.com/rl1809/oms-cart/internal/port"
)

const productID = "stress-item"

type stockCache interface {
	port.CacheRepository
	SetStock(ctx context.Context, productID string, quantity int) error
	Stock(ctx context.Context, productID string) (int, error)
}

func main() {
	redisAddr := flag.String("redis", "localhost:6379", "redis address, empty for the in-memory cache")
	initialStock := flag.Int("stock", 20, "units of the contested product")
	sessions := flag.Int("sessions", 50, "concurrent shopper sessions")
	flag.Parse()

	ctx := context.Background()

	var cache stockCache = storage.NewMemoryCache()
	if *redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: *redisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
		defer rdb.Close()

		// Clear previous test data
		rdb.Del(ctx, "stock:"+productID)
		keys, _ := rdb.Keys(ctx, "checkout:stress-*").Result()
		for _, k := range keys {
			rdb.Del(ctx, k)
		}
		cache = storage.NewRedisAdapter(rdb)
	}

	store := storage.NewMemoryStore()
	err := store.UpsertProduct(ctx, domain.Product{
		ID:       productID,
		SKU:      "STRESS-1",
		Name:     "Contested Item",
		Category: "Stress",
		Price:    decimal.RequireFromString("9.99"),
		Stock:    *initialStock,
		MinStock: 1,
	})
	if err != nil {
		log.Fatalf("failed to create product: %v", err)
	}
	if err := cache.SetStock(ctx, productID, *initialStock); err != nil {
		log.Fatalf("failed to set stock: %v", err)
	}

	logr := zap.NewNop()
	m := metrics.New(prometheus.NewRegistry())
	orders := service.NewOrderService(cache, store, messaging.NoopPublisher{}, *sessions, logr)
	carts := service.NewCartService(service.NewCatalogService(store), orders, m, logr, time.Hour, time.Minute)

	var workers sync.WaitGroup
	worker := service.NewOrderWorker(store, cache, messaging.NoopPublisher{}, m, logr)
	for i := 0; i < 4; i++ {
		workers.Add(1)
		go func(id int) {
			defer workers.Done()
			worker.Run(id, orders.GetOrderQueue())
		}(i)
	}

	// Every session holds one unit before the race starts
	for i := 0; i < *sessions; i++ {
		if _, err := carts.AddItem(ctx, session(i), productID, 1); err != nil {
			log.Fatalf("failed to fill cart %d: %v", i, err)
		}
	}

	var successCount atomic.Int32
	var failCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *sessions; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			customer := domain.Customer{TenantID: "stress", UserID: session(n), Name: session(n)}
			_, err := carts.Checkout(ctx, session(n), fmt.Sprintf("stress-%d", n), customer)
			if err == nil {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	orders.Close()
	workers.Wait()

	success := int(successCount.Load())
	fail := int(failCount.Load())
	expected := min(*initialStock, *sessions)

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", *initialStock)
	fmt.Printf("Sessions:         %d\n", *sessions)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	passed := true
	if success == expected && fail == *sessions-expected {
		fmt.Printf("PASS: exactly %d checkouts succeeded\n", expected)
	} else {
		fmt.Printf("FAIL: expected %d success/%d fail, got %d/%d\n", expected, *sessions-expected, success, fail)
		passed = false
	}

	cached, _ := cache.Stock(ctx, productID)
	persisted, _ := store.GetProduct(ctx, productID)
	fmt.Printf("Final Cache Stock: %d\n", cached)
	fmt.Printf("Final Store Stock: %d\n", persisted.Stock)

	if want := *initialStock - expected; cached == want && persisted.Stock == want {
		fmt.Printf("PASS: stock settled at %d\n", want)
	} else {
		fmt.Printf("FAIL: expected stock %d in cache and store\n", want)
		passed = false
	}

	if !passed {
		os.Exit(1)
	}
}

func session(n int) string {
	return fmt.Sprintf("shopper-%d", n)
}
