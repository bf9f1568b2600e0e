package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/grpc/codes"

	"github.com/rl1809/fund-engine/internal/core/domain"
	"github.com/rl1809/fund-engine/internal/core/service"
	"github.com/rl1809/fund-engine/internal/port"
)

const IdempotencyKeyHeader = "Idempotency-Key"

// Pinger is anything the health endpoint can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies is shared by the HTTP and gRPC transports.
type Dependencies struct {
	Coordinator *service.Coordinator
	Reconciler  *service.Reconciler
	Guard       *service.Guard
	Verifier    port.IdentityVerifier
	Currency    domain.Currency
	Checks      map[string]Pinger
	Logger      *slog.Logger
}

func (d Dependencies) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

type identityKey struct{}

func withIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func identityFrom(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(domain.Identity)
	return id, ok
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// errorInfo maps a core error to what each transport reports.
type errorInfo struct {
	httpStatus int
	code       codes.Code
	message    string
	retryable  bool
}

func classify(err error) errorInfo {
	switch {
	case errors.Is(err, domain.ErrFundNotFound),
		errors.Is(err, domain.ErrSubscriptionNotFound),
		errors.Is(err, domain.ErrInvalidAccountReference):
		return errorInfo{http.StatusNotFound, codes.NotFound, err.Error(), false}
	case errors.Is(err, domain.ErrBelowMinimumInvestment):
		return errorInfo{http.StatusBadRequest, codes.InvalidArgument, err.Error(), false}
	case errors.Is(err, domain.ErrFundInactive),
		errors.Is(err, domain.ErrInsufficientFunds):
		return errorInfo{http.StatusBadRequest, codes.FailedPrecondition, err.Error(), false}
	case errors.Is(err, domain.ErrDuplicateSubscription):
		return errorInfo{http.StatusConflict, codes.AlreadyExists, err.Error(), false}
	case errors.Is(err, domain.ErrIdempotencyKeyReuse):
		return errorInfo{http.StatusUnprocessableEntity, codes.InvalidArgument, err.Error(), false}
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return errorInfo{http.StatusConflict, codes.Aborted, "account is busy, retry later", true}
	case errors.Is(err, domain.ErrRateLimited):
		return errorInfo{http.StatusTooManyRequests, codes.ResourceExhausted, "too many requests", true}
	case errors.Is(err, context.DeadlineExceeded):
		return errorInfo{http.StatusGatewayTimeout, codes.DeadlineExceeded, "request timed out", false}
	case errors.Is(err, context.Canceled):
		return errorInfo{499, codes.Canceled, "request canceled", false}
	}
	return errorInfo{http.StatusInternalServerError, codes.Internal, "internal error", false}
}
