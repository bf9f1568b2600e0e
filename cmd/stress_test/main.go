package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/fund-engine/internal/adapter/storage"
	"github.com/rl1809/fund-engine/internal/core/config"
	"github.com/rl1809/fund-engine/internal/core/domain"
	"github.com/rl1809/fund-engine/internal/core/service"
)

const (
	initialBalance = 30000000
	totalRequests  = 50
	instances      = 3
)

func main() {
	ctx := context.Background()
	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	defer db.Close()
	if err := storage.MigrateMySQL(ctx, db); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}

	accountID := "stress-" + uuid.NewString()
	if _, err := db.ExecContext(ctx, `INSERT INTO accounts (id, balance, initial_balance) VALUES (?, ?, ?)`,
		accountID, initialBalance, initialBalance); err != nil {
		log.Fatalf("failed to create account: %v", err)
	}

	store := storage.NewMySQLAdapter(db)
	cache := storage.NewRedisAdapter(rdb)

	// Several coordinators share Redis and MySQL, like separate server processes.
	coords := make([]*service.Coordinator, instances)
	for i := range coords {
		guard := service.NewGuard(cache, service.GuardConfig{AcquireTimeout: 10 * time.Second}, logger)
		catalog := service.NewFundCatalog(store, time.Minute, logger)
		coords[i] = service.NewCoordinator(store, catalog, guard, nil, logger)
	}

	funds, err := coords[0].ListFunds(ctx)
	if err != nil || len(funds) == 0 {
		log.Fatalf("failed to load funds: %v", err)
	}

	// Counters
	var successCount, rejectCount, conflictCount, failCount atomic.Int32

	// Spawn concurrent subscribe/cancel requests
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			coord := coords[i%instances]
			fund := funds[i%len(funds)]

			var err error
			if i%3 == 2 {
				_, err = coord.Cancel(ctx, service.CancelRequest{AccountID: accountID, FundID: fund.ID})
			} else {
				_, err = coord.Subscribe(ctx, service.SubscribeRequest{
					AccountID:      accountID,
					FundID:         fund.ID,
					Amount:         fund.MinimumInvestment,
					IdempotencyKey: fmt.Sprintf("stress-%d", i),
				})
			}

			switch {
			case err == nil:
				successCount.Add(1)
			case domain.IsValidation(err):
				rejectCount.Add(1)
			case domain.IsRetryable(err):
				conflictCount.Add(1)
			default:
				failCount.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	view, err := coords[0].GetBalance(ctx, accountID)
	if err != nil {
		log.Fatalf("failed to read balance: %v", err)
	}
	report, err := service.NewReconciler(store, nil, logger).ReconcileAccount(ctx, accountID)
	if err != nil {
		log.Fatalf("failed to reconcile: %v", err)
	}

	// Results
	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Balance:  %d\n", initialBalance)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Committed:        %d\n", successCount.Load())
	fmt.Printf("Rejected:         %d\n", rejectCount.Load())
	fmt.Printf("Conflicted:       %d\n", conflictCount.Load())
	fmt.Printf("Failed:           %d\n", failCount.Load())
	fmt.Printf("Final Balance:    %d\n", view.Balance)
	fmt.Printf("Invested:         %d\n", view.TotalInvested)
	fmt.Printf("Ledger Rows:      %d\n", report.Transactions)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	// Assertions
	if view.Balance >= 0 {
		fmt.Println("PASS: balance never negative")
	} else {
		fmt.Printf("FAIL: balance is %d\n", view.Balance)
	}

	if view.Balance+view.TotalInvested == initialBalance {
		fmt.Println("PASS: balance + invested equals initial balance")
	} else {
		fmt.Printf("FAIL: balance + invested = %d, expected %d\n", view.Balance+view.TotalInvested, initialBalance)
	}

	if int(successCount.Load()) == report.Transactions && report.Consistent() {
		fmt.Println("PASS: ledger replays to the stored balance")
	} else {
		fmt.Printf("FAIL: %d committed, %d ledger rows, drifts %v\n", successCount.Load(), report.Transactions, report.Drifts)
	}

	if failCount.Load() > 0 {
		fmt.Printf("FAIL: %d requests hit internal errors\n", failCount.Load())
	}
}
