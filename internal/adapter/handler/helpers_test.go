package handler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rl1809/fund-engine/internal/adapter/identity"
	"github.com/rl1809/fund-engine/internal/adapter/storage"
	"github.com/rl1809/fund-engine/internal/core/domain"
	"github.com/rl1809/fund-engine/internal/core/service"
)

type testEnv struct {
	deps     Dependencies
	store    *storage.MemoryAdapter
	verifier *identity.JWTVerifier
}

func newTestEnv(t *testing.T, rateLimit int) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := storage.NewMemoryAdapter()
	store.PutFund(domain.Fund{ID: "1", Name: "FPV_BTG_PACTUAL_RECAUDADORA", MinimumInvestment: 75000, Category: domain.FundCategoryFPV, Active: true})
	store.PutFund(domain.Fund{ID: "3", Name: "DEUDAPRIVADA", MinimumInvestment: 50000, Category: domain.FundCategoryFIC, Active: true})
	store.PutAccount("acc-1", 500000)
	store.PutAccount("acc-2", 500000)

	cache := storage.NewMemoryCache()
	guard := service.NewGuard(cache, service.GuardConfig{
		AcquireTimeout: time.Second,
		RateLimit:      rateLimit,
		RateWindow:     time.Minute,
	}, logger)
	catalog := service.NewFundCatalog(store, time.Minute, logger)

	currency, err := domain.NewCurrency("USD")
	require.NoError(t, err)

	verifier := identity.NewJWTVerifier("test-secret")
	return &testEnv{
		store:    store,
		verifier: verifier,
		deps: Dependencies{
			Coordinator: service.NewCoordinator(store, catalog, guard, nil, logger),
			Reconciler:  service.NewReconciler(store, guard, logger),
			Guard:       guard,
			Verifier:    verifier,
			Currency:    currency,
			Checks:      map[string]Pinger{"store": store, "cache": cache},
			Logger:      logger,
		},
	}
}

func (e *testEnv) token(t *testing.T, accountID string, role domain.Role) string {
	t.Helper()
	tok, err := e.verifier.Issue(accountID, role, time.Hour)
	require.NoError(t, err)
	return tok
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return context.DeadlineExceeded }
