package handler

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rl1809/fund-engine/internal/adapter/handler/pb"
	"github.com/rl1809/fund-engine/internal/core/service"
)

const idempotencyKeyMetadata = "idempotency-key"

type GRPCHandler struct {
	pb.UnimplementedFundServiceServer
	deps Dependencies
}

func NewGRPCHandler(deps Dependencies) *GRPCHandler {
	return &GRPCHandler{deps: deps}
}

// UnaryInterceptor authenticates every call from the "authorization" metadata
// and applies the per-account rate limit.
func (h *GRPCHandler) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		id, err := h.deps.Verifier.Verify(ctx, bearerToken(firstMetadata(ctx, "authorization")))
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "unauthenticated")
		}
		if h.deps.Guard != nil {
			if err := h.deps.Guard.Allow(ctx, id.AccountID); err != nil {
				return nil, h.toStatus(info.FullMethod, err)
			}
		}
		return handler(withIdentity(ctx, id), req)
	}
}

func (h *GRPCHandler) Subscribe(ctx context.Context, req *pb.SubscribeRequest) (*pb.TransactionResponse, error) {
	id, _ := identityFrom(ctx)

	if req.GetFundId() == "" {
		return nil, status.Error(codes.InvalidArgument, "missing required fields")
	}
	amount, err := h.deps.Currency.Parse(strings.TrimSpace(req.GetAmount()))
	if err != nil || amount <= 0 {
		return nil, status.Error(codes.InvalidArgument, "invalid amount")
	}

	rec, err := h.deps.Coordinator.Subscribe(ctx, service.SubscribeRequest{
		AccountID:      id.AccountID,
		FundID:         req.GetFundId(),
		Amount:         amount,
		IdempotencyKey: firstMetadata(ctx, idempotencyKeyMetadata),
	})
	if err != nil {
		return nil, h.toStatus(pb.FundService_Subscribe_FullMethodName, err)
	}
	return toTransaction(h.deps.Currency, rec), nil
}

func (h *GRPCHandler) Cancel(ctx context.Context, req *pb.CancelRequest) (*pb.TransactionResponse, error) {
	id, _ := identityFrom(ctx)

	if req.GetFundId() == "" {
		return nil, status.Error(codes.InvalidArgument, "missing required fields")
	}

	rec, err := h.deps.Coordinator.Cancel(ctx, service.CancelRequest{
		AccountID:      id.AccountID,
		FundID:         req.GetFundId(),
		IdempotencyKey: firstMetadata(ctx, idempotencyKeyMetadata),
	})
	if err != nil {
		return nil, h.toStatus(pb.FundService_Cancel_FullMethodName, err)
	}
	return toTransaction(h.deps.Currency, rec), nil
}

func (h *GRPCHandler) GetBalance(ctx context.Context, _ *pb.GetBalanceRequest) (*pb.BalanceResponse, error) {
	id, _ := identityFrom(ctx)

	view, err := h.deps.Coordinator.GetBalance(ctx, id.AccountID)
	if err != nil {
		return nil, h.toStatus(pb.FundService_GetBalance_FullMethodName, err)
	}
	return toBalance(h.deps.Currency, view), nil
}

func (h *GRPCHandler) ListTransactions(ctx context.Context, _ *pb.ListTransactionsRequest) (*pb.ListTransactionsResponse, error) {
	id, _ := identityFrom(ctx)

	recs, err := h.deps.Coordinator.ListTransactions(ctx, id.AccountID)
	if err != nil {
		return nil, h.toStatus(pb.FundService_ListTransactions_FullMethodName, err)
	}
	return toTransactions(h.deps.Currency, recs), nil
}

func (h *GRPCHandler) ListFunds(ctx context.Context, _ *pb.ListFundsRequest) (*pb.ListFundsResponse, error) {
	funds, err := h.deps.Coordinator.ListFunds(ctx)
	if err != nil {
		return nil, h.toStatus(pb.FundService_ListFunds_FullMethodName, err)
	}
	return toFunds(h.deps.Currency, funds), nil
}

func (h *GRPCHandler) toStatus(method string, err error) error {
	info := classify(err)
	if info.code == codes.Internal {
		h.deps.logger().Error("grpc call failed", "method", method, "error", err)
	}
	return status.Error(info.code, info.message)
}

func firstMetadata(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}
	return ""
}
