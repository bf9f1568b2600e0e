package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/rl1809/fund-engine/internal/core/domain"
	"github.com/rl1809/fund-engine/internal/port"
)

type ReconciliationReport struct {
	AccountID       string
	Balance         domain.Amount
	InitialBalance  domain.Amount
	ReplayedBalance domain.Amount
	Invested        domain.Amount
	Transactions    int
	Drifts          []string
}

func (r ReconciliationReport) Consistent() bool {
	return len(r.Drifts) == 0
}

// Reconciler replays each account's ledger from its initial balance and checks
// it against the stored balance and the open subscriptions.
type Reconciler struct {
	db     port.DatabaseRepository
	guard  *Guard
	logger *slog.Logger
}

// NewReconciler builds a reconciler. With a non-nil guard each account is
// checked while holding its lock so in-flight operations cannot skew the read.
func NewReconciler(db port.DatabaseRepository, guard *Guard, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{db: db, guard: guard, logger: logger}
}

func (r *Reconciler) ReconcileAccount(ctx context.Context, accountID string) (ReconciliationReport, error) {
	if r.guard != nil {
		release, err := r.guard.Acquire(ctx, accountID)
		if err != nil {
			return ReconciliationReport{}, err
		}
		defer release()
	}

	acc, err := r.db.GetAccount(ctx, accountID)
	if err != nil {
		return ReconciliationReport{}, fmt.Errorf("get account: %w", err)
	}
	if acc == nil {
		return ReconciliationReport{}, fmt.Errorf("%w: %s", domain.ErrInvalidAccountReference, accountID)
	}
	recs, err := r.db.ListTransactions(ctx, accountID)
	if err != nil {
		return ReconciliationReport{}, fmt.Errorf("list transactions: %w", err)
	}
	subs, err := r.db.ListActiveSubscriptions(ctx, accountID)
	if err != nil {
		return ReconciliationReport{}, fmt.Errorf("list subscriptions: %w", err)
	}

	report := ReconciliationReport{
		AccountID:      acc.ID,
		Balance:        acc.Balance,
		InitialBalance: acc.InitialBalance,
		Transactions:   len(recs),
	}

	// Ledger is newest first; replay oldest first.
	running := acc.InitialBalance
	for _, rec := range slices.Backward(recs) {
		if rec.Status != domain.TransactionStatusCompleted {
			continue
		}
		if !rec.Consistent() {
			report.Drifts = append(report.Drifts, fmt.Sprintf("transaction %s: before %d after %d does not match amount %d", rec.ID, rec.BalanceBefore, rec.BalanceAfter, rec.Amount))
		}
		if rec.BalanceBefore != running {
			report.Drifts = append(report.Drifts, fmt.Sprintf("transaction %s: starts at %d, replay is at %d", rec.ID, rec.BalanceBefore, running))
		}
		running += rec.Delta()
	}
	report.ReplayedBalance = running

	for _, sub := range subs {
		report.Invested += sub.Amount
	}

	if running != acc.Balance {
		report.Drifts = append(report.Drifts, fmt.Sprintf("stored balance %d, replayed %d", acc.Balance, running))
	}
	if acc.Balance+report.Invested != acc.InitialBalance {
		report.Drifts = append(report.Drifts, fmt.Sprintf("balance %d plus invested %d does not equal initial %d", acc.Balance, report.Invested, acc.InitialBalance))
	}
	return report, nil
}

// ReconcileAll checks every account and logs the ones that drifted.
func (r *Reconciler) ReconcileAll(ctx context.Context) ([]ReconciliationReport, error) {
	ids, err := r.db.ListAccountIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	reports := make([]ReconciliationReport, 0, len(ids))
	for _, id := range ids {
		report, err := r.ReconcileAccount(ctx, id)
		if err != nil {
			r.logger.Warn("reconcile skipped", "account_id", id, "error", err)
			continue
		}
		if !report.Consistent() {
			r.logger.Error("balance drift detected",
				"account_id", id,
				"balance", report.Balance,
				"replayed_balance", report.ReplayedBalance,
				"drifts", report.Drifts,
			)
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// Run reconciles every interval until ctx is done.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reports, err := r.ReconcileAll(ctx)
			if err != nil {
				r.logger.Error("reconcile failed", "error", err)
				continue
			}
			r.logger.Debug("reconcile finished", "accounts", len(reports))
		}
	}
}
