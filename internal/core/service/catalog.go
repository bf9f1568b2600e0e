package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rl1809/fund-engine/internal/core/domain"
)

const catalogLoadTimeout = 5 * time.Second

// FundSource is the part of the store the catalog reads from.
type FundSource interface {
	ListFunds(ctx context.Context) ([]domain.Fund, error)
}

// FundCatalog serves read-mostly fund definitions from a snapshot that is
// reloaded from the store once it is older than ttl. A zero ttl disables caching.
type FundCatalog struct {
	source FundSource
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	loads singleflight.Group

	mu       sync.RWMutex
	funds    []domain.Fund
	byID     map[string]domain.Fund
	loadedAt time.Time
}

func NewFundCatalog(source FundSource, ttl time.Duration, logger *slog.Logger) *FundCatalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &FundCatalog{
		source: source,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// Lookup returns the fund whether or not it is active.
func (c *FundCatalog) Lookup(ctx context.Context, fundID string) (domain.Fund, error) {
	_, byID, err := c.snapshot(ctx)
	if err != nil {
		return domain.Fund{}, err
	}

	fund, ok := byID[fundID]
	if !ok {
		return domain.Fund{}, fmt.Errorf("%w: %s", domain.ErrFundNotFound, fundID)
	}
	return fund, nil
}

// ListActive returns the active funds in catalog insertion order.
func (c *FundCatalog) ListActive(ctx context.Context) ([]domain.Fund, error) {
	funds, _, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	active := make([]domain.Fund, 0, len(funds))
	for _, f := range funds {
		if f.Active {
			active = append(active, f)
		}
	}
	return active, nil
}

// Invalidate forces the next read to reload from the store.
func (c *FundCatalog) Invalidate() {
	c.mu.Lock()
	c.loadedAt = time.Time{}
	c.mu.Unlock()
}

func (c *FundCatalog) snapshot(ctx context.Context) ([]domain.Fund, map[string]domain.Fund, error) {
	c.mu.RLock()
	fresh := c.byID != nil && c.ttl > 0 && c.now().Sub(c.loadedAt) < c.ttl
	funds, byID := c.funds, c.byID
	c.mu.RUnlock()
	if fresh {
		return funds, byID, nil
	}

	// The reload is shared by every waiter, so one caller going away must not fail the rest.
	if _, err, _ := c.loads.Do("funds", func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), catalogLoadTimeout)
		defer cancel()
		return nil, c.reload(loadCtx)
	}); err != nil {
		return nil, nil, fmt.Errorf("load fund catalog: %w", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.funds, c.byID, nil
}

func (c *FundCatalog) reload(ctx context.Context) error {
	rows, err := c.source.ListFunds(ctx)
	if err != nil {
		return err
	}

	funds := make([]domain.Fund, 0, len(rows))
	byID := make(map[string]domain.Fund, len(rows))
	for _, f := range rows {
		if !f.Valid() {
			c.logger.Error("skipping invalid fund definition",
				"fund_id", f.ID,
				"minimum_investment", f.MinimumInvestment,
			)
			continue
		}
		funds = append(funds, f)
		byID[f.ID] = f
	}

	c.mu.Lock()
	c.funds, c.byID, c.loadedAt = funds, byID, c.now()
	c.mu.Unlock()
	return nil
}
