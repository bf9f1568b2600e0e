package handler

import (
	"time"

	"github.com/rl1809/fund-engine/internal/adapter/handler/pb"
	"github.com/rl1809/fund-engine/internal/core/domain"
	"github.com/rl1809/fund-engine/internal/core/service"
)

// Both transports render the same messages; amounts leave as decimal strings.

func toTransaction(c domain.Currency, rec *domain.TransactionRecord) *pb.TransactionResponse {
	return &pb.TransactionResponse{
		TransactionId: rec.ID,
		AccountId:     rec.AccountID,
		FundId:        rec.FundID,
		FundName:      rec.FundName,
		Kind:          string(rec.Kind),
		Amount:        c.String(rec.Amount),
		BalanceBefore: c.String(rec.BalanceBefore),
		BalanceAfter:  c.String(rec.BalanceAfter),
		Status:        string(rec.Status),
		CreatedAt:     rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toTransactions(c domain.Currency, recs []domain.TransactionRecord) *pb.ListTransactionsResponse {
	out := &pb.ListTransactionsResponse{Transactions: make([]*pb.TransactionResponse, 0, len(recs))}
	for i := range recs {
		out.Transactions = append(out.Transactions, toTransaction(c, &recs[i]))
	}
	return out
}

func toBalance(c domain.Currency, v *service.BalanceView) *pb.BalanceResponse {
	out := &pb.BalanceResponse{
		AccountId:     v.AccountID,
		Currency:      c.Code,
		Balance:       c.String(v.Balance),
		TotalInvested: c.String(v.TotalInvested),
		Subscriptions: make([]*pb.SubscriptionInfo, 0, len(v.ActiveSubscriptions)),
	}
	for _, s := range v.ActiveSubscriptions {
		out.Subscriptions = append(out.Subscriptions, &pb.SubscriptionInfo{
			FundId:       s.FundID,
			FundName:     s.FundName,
			Amount:       c.String(s.Amount),
			SubscribedAt: s.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	return out
}

func toFund(c domain.Currency, f domain.Fund) *pb.Fund {
	return &pb.Fund{
		Id:                f.ID,
		Name:              f.Name,
		MinimumInvestment: c.String(f.MinimumInvestment),
		Category:          string(f.Category),
	}
}

func toFunds(c domain.Currency, funds []domain.Fund) *pb.ListFundsResponse {
	out := &pb.ListFundsResponse{Funds: make([]*pb.Fund, 0, len(funds))}
	for _, f := range funds {
		out.Funds = append(out.Funds, toFund(c, f))
	}
	return out
}

type reconcileResponse struct {
	AccountID       string   `json:"account_id"`
	Consistent      bool     `json:"consistent"`
	Balance         string   `json:"balance"`
	InitialBalance  string   `json:"initial_balance"`
	ReplayedBalance string   `json:"replayed_balance"`
	Invested        string   `json:"invested"`
	Transactions    int      `json:"transactions"`
	Drifts          []string `json:"drifts,omitempty"`
}

func toReconcile(c domain.Currency, r service.ReconciliationReport) reconcileResponse {
	return reconcileResponse{
		AccountID:       r.AccountID,
		Consistent:      r.Consistent(),
		Balance:         c.String(r.Balance),
		InitialBalance:  c.String(r.InitialBalance),
		ReplayedBalance: c.String(r.ReplayedBalance),
		Invested:        c.String(r.Invested),
		Transactions:    r.Transactions,
		Drifts:          r.Drifts,
	}
}
