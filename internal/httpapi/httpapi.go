package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"salonpos/backend/internal/domain"
	"salonpos/backend/internal/logging"
	"salonpos/backend/internal/service"
	"salonpos/backend/internal/store"
)

const registerHeader = "X-Register-ID"

type API struct {
	service         *service.Service
	auth            *AuthManager
	allowedOrigin   string
	defaultRegister string
	loginLimiter    *attemptLimiter
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string, defaultRegister string) *API {
	if strings.TrimSpace(defaultRegister) == "" {
		defaultRegister = "main"
	}
	return &API{
		service:         svc,
		auth:            auth,
		allowedOrigin:   allowedOrigin,
		defaultRegister: defaultRegister,
		loginLimiter:    newAttemptLimiter(5, time.Minute),
	}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	staff := []string{domain.RoleCashier, domain.RoleManager}
	manager := []string{domain.RoleManager}

	mux.HandleFunc("GET /healthz", a.handleHealth)
	mux.HandleFunc("POST /api/v1/auth/login", a.handleLogin)

	mux.HandleFunc("GET /api/v1/catalog", a.requireAuth(a.handleCatalog, staff...))

	mux.HandleFunc("GET /api/v1/cart", a.requireAuth(a.handleCart, staff...))
	mux.HandleFunc("POST /api/v1/cart/items", a.requireAuth(a.handleCartAddLine, staff...))
	mux.HandleFunc("PATCH /api/v1/cart/items/{lineID}", a.requireAuth(a.handleCartUpdateLine, staff...))
	mux.HandleFunc("POST /api/v1/cart/discount", a.requireAuth(a.handleCartDiscount, staff...))
	mux.HandleFunc("POST /api/v1/cart/tip", a.requireAuth(a.handleCartTip, staff...))
	mux.HandleFunc("POST /api/v1/cart/parties", a.requireAuth(a.handleCartParties, staff...))
	mux.HandleFunc("POST /api/v1/cart/reset", a.requireAuth(a.handleCartReset, staff...))
	mux.HandleFunc("POST /api/v1/cart/checkout", a.requireAuth(a.handleCartCheckout, staff...))

	mux.HandleFunc("POST /api/v1/checkout", a.requireAuth(a.handleCheckout, staff...))
	mux.HandleFunc("GET /api/v1/sales/{idOrReceipt}", a.requireAuth(a.handleSale, staff...))

	mux.HandleFunc("GET /api/v1/cash-ledger", a.requireAuth(a.handleCashLedger, staff...))
	mux.HandleFunc("PUT /api/v1/cash-ledger/opening-float", a.requireAuth(a.handleOpeningFloat, manager...))
	mux.HandleFunc("POST /api/v1/cash-ledger/movements", a.requireAuth(a.handleCashMovement, staff...))

	mux.HandleFunc("GET /api/v1/expenses", a.requireAuth(a.handleListExpenses, manager...))
	mux.HandleFunc("POST /api/v1/expenses", a.requireAuth(a.handleRecordExpense, manager...))

	mux.HandleFunc("GET /api/v1/day-close/preview", a.requireAuth(a.handleDayClosePreview, manager...))
	mux.HandleFunc("POST /api/v1/day-close/finalize", a.requireAuth(a.handleDayCloseFinalize, manager...))

	mux.HandleFunc("GET /api/v1/receipt-sequence", a.requireAuth(a.handleReceiptSequence, manager...))
	mux.HandleFunc("PUT /api/v1/receipt-sequence", a.requireAuth(a.handleConfigureReceiptSequence, manager...))
	mux.HandleFunc("PUT /api/v1/stock/{productID}", a.requireAuth(a.handleSetStock, manager...))
	mux.HandleFunc("GET /api/v1/audit-logs", a.requireAuth(a.handleAuditLogs, manager...))

	return logging.AccessLog(a.withMiddleware(mux))
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, "unauthorized", errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, "forbidden", errors.New("forbidden role"))
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

// register resolves the register a request is made from.
func (a *API) register(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(registerHeader)); id != "" {
		return id
	}
	return a.defaultRegister
}

// session keys the open cart of the authenticated user at one register.
func (a *API) session(r *http.Request) string {
	actor, _ := service.ActorFromContext(r.Context())
	return actor.Username + "@" + a.register(r)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, "rate_limited", errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, domain.ReasonInvalidRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, errInvalidCredentials) || errors.Is(err, errInactiveAccount) {
			writeError(w, http.StatusUnauthorized, "unauthorized", err)
			return
		}
		writeError(w, http.StatusInternalServerError, domain.ReasonPersistence, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleCatalog(w http.ResponseWriter, r *http.Request) {
	items, err := a.service.ListCatalog(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 50, 100)
	logs, err := a.service.ListAuditLogs(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"audit_logs": logs})
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+registerHeader)
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
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

type errorBody struct {
	Reason     string                  `json:"reason"`
	Message    string                  `json:"message"`
	Shortfalls []domain.StockShortfall `json:"shortfalls,omitempty"`
}

// writeServiceError maps the service error taxonomy onto status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	var validation *domain.ValidationError
	var conflict *domain.ConflictError
	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Reason, err)
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, map[string]any{
			"ok": false,
			"error": errorBody{
				Reason:     conflict.Reason,
				Message:    conflict.Message,
				Shortfalls: conflict.Shortfalls,
			},
		})
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	default:
		writeError(w, http.StatusInternalServerError, domain.ReasonPersistence, err)
	}
}

func writeError(w http.ResponseWriter, status int, reason string, err error) {
	// 5xx bodies stay generic; the cause goes to the log only.
	msg := err.Error()
	if status >= 500 {
		log.Error().Err(err).Int("status", status).Msg("internal error")
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"ok":    false,
		"error": errorBody{Reason: reason, Message: msg},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
