package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/fund-engine/internal/core/service"
)

// maxBodyBytes caps request bodies on the write endpoints.
const maxBodyBytes = 1 << 20

type HTTPHandler struct {
	deps Dependencies
}

type SubscribeHTTPRequest struct {
	FundID string `json:"fund_id"`
	// Amount accepts either a JSON number or a decimal string.
	Amount decimal.Decimal `json:"amount"`
}

type CancelHTTPRequest struct {
	FundID string `json:"fund_id"`
}

type ErrorHTTPResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func NewHTTPHandler(deps Dependencies) *HTTPHandler {
	return &HTTPHandler{deps: deps}
}

// Routes returns the API mux. Everything but /health requires a bearer token.
func (h *HTTPHandler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.HealthCheck)

	mux.Handle("POST /api/funds/subscribe", h.authenticated(h.Subscribe))
	mux.Handle("POST /api/funds/cancel", h.authenticated(h.Cancel))
	mux.Handle("GET /api/funds", h.authenticated(h.ListFunds))
	mux.Handle("GET /api/funds/{id}", h.authenticated(h.GetFund))
	mux.Handle("GET /api/user/balance", h.authenticated(h.GetBalance))
	mux.Handle("GET /api/user/transactions", h.authenticated(h.ListTransactions))
	mux.Handle("GET /api/admin/reconcile/{accountID}", h.authenticated(h.adminOnly(h.Reconcile)))

	return h.logRequests(mux)
}

func (h *HTTPHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	var req SubscribeHTTPRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeBodyError(w, err)
		return
	}
	if req.FundID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorHTTPResponse{Message: "missing required fields"})
		return
	}
	amount, err := h.deps.Currency.Parse(req.Amount.String())
	if err != nil || amount <= 0 {
		writeJSON(w, http.StatusBadRequest, ErrorHTTPResponse{Message: "invalid amount"})
		return
	}

	rec, err := h.deps.Coordinator.Subscribe(r.Context(), service.SubscribeRequest{
		AccountID:      id.AccountID,
		FundID:         req.FundID,
		Amount:         amount,
		IdempotencyKey: r.Header.Get(IdempotencyKeyHeader),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransaction(h.deps.Currency, rec))
}

func (h *HTTPHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	var req CancelHTTPRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeBodyError(w, err)
		return
	}
	if req.FundID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorHTTPResponse{Message: "missing required fields"})
		return
	}

	rec, err := h.deps.Coordinator.Cancel(r.Context(), service.CancelRequest{
		AccountID:      id.AccountID,
		FundID:         req.FundID,
		IdempotencyKey: r.Header.Get(IdempotencyKeyHeader),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransaction(h.deps.Currency, rec))
}

func (h *HTTPHandler) ListFunds(w http.ResponseWriter, r *http.Request) {
	funds, err := h.deps.Coordinator.ListFunds(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFunds(h.deps.Currency, funds))
}

func (h *HTTPHandler) GetFund(w http.ResponseWriter, r *http.Request) {
	fund, err := h.deps.Coordinator.GetFund(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFund(h.deps.Currency, fund))
}

func (h *HTTPHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	view, err := h.deps.Coordinator.GetBalance(r.Context(), id.AccountID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalance(h.deps.Currency, view))
}

func (h *HTTPHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	recs, err := h.deps.Coordinator.ListTransactions(r.Context(), id.AccountID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactions(h.deps.Currency, recs))
}

func (h *HTTPHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.deps.Reconciler.ReconcileAccount(r.Context(), r.PathValue("accountID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReconcile(h.deps.Currency, report))
}

// HealthCheck probes every configured dependency.
func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.deps.Checks))
	for name, p := range h.deps.Checks {
		if err := p.Ping(ctx); err != nil {
			checks[name] = "down"
			status = http.StatusServiceUnavailable
			h.deps.logger().Warn("health check failed", "dependency", name, "error", err)
			continue
		}
		checks[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	writeJSON(w, status, map[string]any{"status": overall, "checks": checks})
}

func (h *HTTPHandler) authenticated(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := h.deps.Verifier.Verify(r.Context(), bearerToken(r.Header.Get("Authorization")))
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeJSON(w, http.StatusUnauthorized, ErrorHTTPResponse{Message: "unauthenticated"})
			return
		}
		if h.deps.Guard != nil {
			if err := h.deps.Guard.Allow(r.Context(), id.AccountID); err != nil {
				h.writeError(w, err)
				return
			}
		}
		next(w, r.WithContext(withIdentity(r.Context(), id)))
	})
}

func (h *HTTPHandler) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if id, _ := identityFrom(r.Context()); !id.IsAdmin() {
			writeJSON(w, http.StatusForbidden, ErrorHTTPResponse{Message: "forbidden"})
			return
		}
		next(w, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *HTTPHandler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.deps.logger().Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	info := classify(err)
	if info.retryable && h.deps.Guard != nil {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(h.deps.Guard.RetryAfter(err))))
	}
	writeJSON(w, info.httpStatus, ErrorHTTPResponse{Message: info.message})
}

func retryAfterSeconds(d time.Duration) int {
	if s := int(d.Round(time.Second) / time.Second); s > 0 {
		return s
	}
	return 1
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func writeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, ErrorHTTPResponse{Message: "request body too large"})
		return
	}
	writeJSON(w, http.StatusBadRequest, ErrorHTTPResponse{Message: "invalid request body"})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
