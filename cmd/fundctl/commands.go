package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/subcommands"

	"github.com/rl1809/fund-engine/internal/adapter/identity"
	"github.com/rl1809/fund-engine/internal/adapter/storage"
	"github.com/rl1809/fund-engine/internal/core/config"
	"github.com/rl1809/fund-engine/internal/core/domain"
	"github.com/rl1809/fund-engine/internal/core/service"
	"github.com/rl1809/fund-engine/internal/port"
)

var commands = []subcommands.Command{
	&reconcileCmd{},
	&balanceCmd{},
	&historyCmd{},
	&tokenCmd{},
}

// env is what every command needs: the store and the display currency.
type env struct {
	db       port.DatabaseRepository
	currency domain.Currency
	logger   *slog.Logger
	close    func()
}

func openEnv(ctx context.Context) (*env, error) {
	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	currency, err := domain.NewCurrency(cfg.Currency)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return &env{
		db:       storage.NewMySQLAdapter(db),
		currency: currency,
		logger:   logger,
		close:    func() { db.Close() },
	}, nil
}

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintln(os.Stderr, err)
	return subcommands.ExitFailure
}

type reconcileCmd struct {
	account string
}

func (*reconcileCmd) Name() string     { return "reconcile" }
func (*reconcileCmd) Synopsis() string { return "replay ledgers and report balance drift" }
func (*reconcileCmd) Usage() string {
	return `fundctl reconcile [-account <id>]

  Replays the ledger of one account, or of every account, from its initial
  balance and compares the result with the stored balance and the open
  subscriptions. Exits non-zero when any account drifted.
`
}

func (c *reconcileCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "account", "", "Only reconcile this account.")
}

func (c *reconcileCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := openEnv(ctx)
	if err != nil {
		return fail(err)
	}
	defer e.close()

	rec := service.NewReconciler(e.db, nil, e.logger)

	var reports []service.ReconciliationReport
	if c.account != "" {
		report, err := rec.ReconcileAccount(ctx, c.account)
		if err != nil {
			return fail(err)
		}
		reports = append(reports, report)
	} else if reports, err = rec.ReconcileAll(ctx); err != nil {
		return fail(err)
	}

	if !writeReconcile(os.Stdout, e.currency, reports) {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// writeReconcile prints one line per account and reports whether all were consistent.
func writeReconcile(w io.Writer, c domain.Currency, reports []service.ReconciliationReport) bool {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ACCOUNT\tBALANCE\tREPLAYED\tINVESTED\tROWS\tSTATUS")

	ok := true
	for _, r := range reports {
		status := "ok"
		if !r.Consistent() {
			status, ok = "DRIFT", false
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			r.AccountID, c.String(r.Balance), c.String(r.ReplayedBalance), c.String(r.Invested), r.Transactions, status)
	}
	tw.Flush()

	for _, r := range reports {
		for _, d := range r.Drifts {
			fmt.Fprintf(w, "%s: %s\n", r.AccountID, d)
		}
	}
	return ok
}

type balanceCmd struct{}

func (*balanceCmd) Name() string     { return "balance" }
func (*balanceCmd) Synopsis() string { return "show an account balance and its open subscriptions" }
func (*balanceCmd) Usage() string {
	return `fundctl balance <account>
`
}
func (*balanceCmd) SetFlags(*flag.FlagSet) {}

func (*balanceCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	e, err := openEnv(ctx)
	if err != nil {
		return fail(err)
	}
	defer e.close()

	acc, err := service.NewBalanceLedger(e.db).Account(ctx, f.Arg(0))
	if err != nil {
		return fail(err)
	}
	subs, err := e.db.ListActiveSubscriptions(ctx, acc.ID)
	if err != nil {
		return fail(err)
	}

	fmt.Printf("Account:  %s\n", acc.ID)
	fmt.Printf("Balance:  %s\n", e.currency.Display(acc.Balance))
	fmt.Printf("Initial:  %s\n", e.currency.Display(acc.InitialBalance))

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\nFUND\tAMOUNT\tSINCE")
	for _, s := range subs {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.FundID, e.currency.String(s.Amount), s.CreatedAt.Format(time.DateTime))
	}
	tw.Flush()
	return subcommands.ExitSuccess
}

type historyCmd struct {
	limit int
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "list an account's ledger, newest first" }
func (*historyCmd) Usage() string {
	return `fundctl history [-n <limit>] <account>
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "n", 20, "Maximum number of rows; 0 for all.")
}

func (c *historyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	e, err := openEnv(ctx)
	if err != nil {
		return fail(err)
	}
	defer e.close()

	recs, err := e.db.ListTransactions(ctx, f.Arg(0))
	if err != nil {
		return fail(err)
	}
	if c.limit > 0 && len(recs) > c.limit {
		recs = recs[:c.limit]
	}
	writeHistory(os.Stdout, e.currency, recs)
	return subcommands.ExitSuccess
}

func writeHistory(w io.Writer, c domain.Currency, recs []domain.TransactionRecord) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tKIND\tFUND\tAMOUNT\tBEFORE\tAFTER\tID")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.CreatedAt.Format(time.DateTime), r.Kind, r.FundName,
			c.String(r.Amount), c.String(r.BalanceBefore), c.String(r.BalanceAfter), r.ID)
	}
	tw.Flush()
}

type tokenCmd struct {
	role string
	ttl  time.Duration
}

func (*tokenCmd) Name() string     { return "token" }
func (*tokenCmd) Synopsis() string { return "issue an access token signed with JWT_SECRET" }
func (*tokenCmd) Usage() string {
	return `fundctl token [-role client|advisor|admin] [-ttl 1h] <account>
`
}

func (c *tokenCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.role, "role", string(domain.RoleClient), "Role carried by the token.")
	f.DurationVar(&c.ttl, "ttl", time.Hour, "Token lifetime.")
}

func (c *tokenCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	cfg := config.Load()
	if cfg.JWTSecret == "" {
		return fail(fmt.Errorf("JWT_SECRET is not set"))
	}

	token, err := identity.NewJWTVerifier(cfg.JWTSecret).Issue(f.Arg(0), domain.Role(c.role), c.ttl)
	if err != nil {
		return fail(err)
	}
	fmt.Println(token)
	return subcommands.ExitSuccess
}
