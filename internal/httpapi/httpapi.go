package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"stockroom/backend/internal/domain"
	"stockroom/backend/internal/service"
	"stockroom/backend/internal/store"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	log           *zap.Logger
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string, log *zap.Logger) *API {
	if log == nil {
		log = zap.NewNop()
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		log:           log,
	}
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

var (
	managers = []string{domain.RoleAdmin, domain.RoleStockManager}
	anyone   = []string{domain.RoleAdmin, domain.RoleStockManager, domain.RoleEmployee}
)

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", a.handleHealth)
	mux.HandleFunc("POST /api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("POST /api/v1/users", a.requireAuth(a.handleCreateAccount, domain.RoleAdmin))

	mux.HandleFunc("GET /api/v1/items", a.requireAuth(a.handleListItems, anyone...))
	mux.HandleFunc("POST /api/v1/items", a.requireAuth(a.handleCreateItem, managers...))
	mux.HandleFunc("GET /api/v1/items/{id}", a.requireAuth(a.handleGetItem, anyone...))
	mux.HandleFunc("POST /api/v1/items/{id}/retire", a.requireAuth(a.handleRetireItem, managers...))
	mux.HandleFunc("GET /api/v1/items/{id}/splits", a.requireAuth(a.handleItemSplits, anyone...))
	mux.HandleFunc("GET /api/v1/items/{id}/reconciliation", a.requireAuth(a.handleReconcile, managers...))

	mux.HandleFunc("GET /api/v1/locations", a.requireAuth(a.handleListLocations, anyone...))
	mux.HandleFunc("POST /api/v1/locations", a.requireAuth(a.handleCreateLocation, managers...))
	mux.HandleFunc("POST /api/v1/locations/{id}/status", a.requireAuth(a.handleLocationStatus, managers...))

	mux.HandleFunc("POST /api/v1/stock/issues", a.requireAuth(a.handleIssue, managers...))
	mux.HandleFunc("POST /api/v1/stock/adjustments", a.requireAuth(a.handleAdjust, managers...))
	mux.HandleFunc("GET /api/v1/stock/adjustments", a.requireAuth(a.handleListAdjustments, managers...))
	mux.HandleFunc("POST /api/v1/stock/moves", a.requireAuth(a.handleMove, managers...))
	mux.HandleFunc("POST /api/v1/stock/bins", a.requireAuth(a.handleAssignBin, managers...))
	mux.HandleFunc("GET /api/v1/stock/transactions", a.requireAuth(a.handleListTransactions, managers...))

	mux.HandleFunc("GET /api/v1/stock-ins", a.requireAuth(a.handleListStockIns, managers...))
	mux.HandleFunc("POST /api/v1/stock-ins", a.requireAuth(a.handleCreateStockIn, managers...))
	mux.HandleFunc("GET /api/v1/stock-ins/{id}", a.requireAuth(a.handleGetStockIn, managers...))
	mux.HandleFunc("DELETE /api/v1/stock-ins/{id}", a.requireAuth(a.handleDiscardStockIn, managers...))
	mux.HandleFunc("POST /api/v1/stock-ins/{id}/receive", a.requireAuth(a.handleReceiveStockIn, managers...))
	mux.HandleFunc("POST /api/v1/stock-ins/{id}/cancel", a.requireAuth(a.handleCancelStockIn, managers...))

	mux.HandleFunc("GET /api/v1/suppliers", a.requireAuth(a.handleListSuppliers, managers...))
	mux.HandleFunc("POST /api/v1/suppliers", a.requireAuth(a.handleCreateSupplier, managers...))

	mux.HandleFunc("GET /api/v1/purchase-orders", a.requireAuth(a.handleListPurchaseOrders, managers...))
	mux.HandleFunc("POST /api/v1/purchase-orders", a.requireAuth(a.handleCreatePurchaseOrder, managers...))
	mux.HandleFunc("GET /api/v1/purchase-orders/{id}", a.requireAuth(a.handleGetPurchaseOrder, managers...))
	mux.HandleFunc("GET /api/v1/purchase-orders/{id}/history", a.requireAuth(a.handlePurchaseOrderHistory, managers...))
	mux.HandleFunc("POST /api/v1/purchase-orders/{id}/order", a.requireAuth(a.handleMarkOrdered, managers...))
	mux.HandleFunc("POST /api/v1/purchase-orders/{id}/receipts", a.requireAuth(a.handleRecordReceipt, managers...))
	mux.HandleFunc("POST /api/v1/purchase-orders/{id}/cancel", a.requireAuth(a.handleCancelPurchaseOrder, managers...))

	mux.HandleFunc("GET /api/v1/requests", a.requireAuth(a.handleListRequests, anyone...))
	mux.HandleFunc("POST /api/v1/requests", a.requireAuth(a.handleSubmitRequest, anyone...))
	mux.HandleFunc("GET /api/v1/requests/{id}", a.requireAuth(a.handleGetRequest, anyone...))
	mux.HandleFunc("POST /api/v1/requests/{id}/approve", a.requireAuth(a.handleApproveRequest, managers...))
	mux.HandleFunc("POST /api/v1/requests/{id}/reject", a.requireAuth(a.handleRejectRequest, managers...))
	mux.HandleFunc("POST /api/v1/requests/{id}/confirm", a.requireAuth(a.handleConfirmRequest, managers...))
	mux.HandleFunc("POST /api/v1/requests/{id}/fulfill", a.requireAuth(a.handleFulfillRequest, managers...))
	mux.HandleFunc("POST /api/v1/requests/{id}/close", a.requireAuth(a.handleCloseRequest, managers...))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			a.writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			a.writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			a.writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		a.writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, errInvalidCredentials) || strings.Contains(err.Error(), "inactive") {
			a.writeError(w, http.StatusUnauthorized, err)
			return
		}
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req domain.AccountCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	account, err := a.auth.CreateAccount(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": account})
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.log.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(startedAt)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func parseTimeParam(raw string) (*time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid time %q: want RFC3339", trimmed)
	}
	return &ts, nil
}

// statusFor maps ledger and service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrBusy):
		return http.StatusServiceUnavailable
	case errors.Is(err, store.ErrNegativeStock),
		errors.Is(err, store.ErrInsufficientStock),
		errors.Is(err, store.ErrOverReceipt),
		errors.Is(err, store.ErrCapacityExceeded),
		errors.Is(err, store.ErrInactiveLocation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrInvalidDocumentState),
		errors.Is(err, store.ErrInvalidTransition),
		errors.Is(err, store.ErrAlreadyProcessed),
		errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	a.writeError(w, status, err)
}

func (a *API) writeError(w http.ResponseWriter, status int, err error) {
	// 5xx responses get a generic message; the cause only goes to the log.
	msg := err.Error()
	if status >= 500 && status != http.StatusServiceUnavailable {
		a.log.Error("internal error", zap.Int("status", status), zap.Error(err))
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
