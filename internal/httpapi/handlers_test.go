package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"salonpos/backend/internal/cartstore"
	"salonpos/backend/internal/domain"
	"salonpos/backend/internal/sequence"
	"salonpos/backend/internal/service"
	"salonpos/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	repo.PutUser(domain.UserAccount{Username: "manager", PasswordHash: mustHashPassword(t, "manager123"), Role: domain.RoleManager, Active: true})
	repo.PutUser(domain.UserAccount{Username: "cashier", PasswordHash: mustHashPassword(t, "cashier123"), Role: domain.RoleCashier, Active: true})

	svc := service.New(repo, cartstore.NewMemory(), sequence.New(repo, "main", "KS-", 10001), service.Options{})
	auth := NewAuthManager("test-secret-key-with-at-least-32-bytes", time.Hour, repo)

	return New(svc, auth, "*", "main")
}

// mustHashPassword generates a bcrypt hash of the given password or fails the test.
func mustHashPassword(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(hash)
}

func login(t *testing.T, handler http.Handler, username, password string) string {
	t.Helper()

	body, _ := json.Marshal(domain.LoginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()

	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("%s login failed, status %d (body: %s)", username, res.Code, res.Body.String())
	}

	var payload domain.LoginResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode login response failed: %v", err)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		t.Fatalf("expected access token in login response")
	}
	return payload.AccessToken
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

type errorResponse struct {
	OK    bool      `json:"ok"`
	Error errorBody `json:"error"`
}

func decodeError(t *testing.T, res *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var payload errorResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if payload.OK {
		t.Fatalf("error response must carry ok:false")
	}
	return payload.Error
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	handler := newTestAPI(t).Handler()

	res := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{Username: "manager", Password: "nope"})
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
}

func TestCartRoutesRequireAuth(t *testing.T) {
	handler := newTestAPI(t).Handler()

	res := doJSON(t, handler, http.MethodGet, "/api/v1/cart", "", nil)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
}

func TestDayCloseRequiresManager(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler, "cashier", "cashier123")

	res := doJSON(t, handler, http.MethodGet, "/api/v1/day-close/preview", token, nil)
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier, got %d", res.Code)
	}
}

func TestCartCheckoutOverHTTP(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler, "cashier", "cashier123")

	res := doJSON(t, handler, http.MethodPost, "/api/v1/cart/items", token, domain.AddCartLineRequest{
		Kind: domain.KindService, CatalogID: "cut", Quantity: decimal.NewFromInt(1),
	})
	if res.Code != http.StatusOK {
		t.Fatalf("add cut: %d %s", res.Code, res.Body.String())
	}
	res = doJSON(t, handler, http.MethodPost, "/api/v1/cart/items", token, domain.AddCartLineRequest{
		Kind: domain.KindProduct, CatalogID: "shampoo", Quantity: decimal.NewFromInt(2),
	})
	if res.Code != http.StatusOK {
		t.Fatalf("add shampoo: %d %s", res.Code, res.Body.String())
	}
	res = doJSON(t, handler, http.MethodPost, "/api/v1/cart/discount", token, domain.Discount{Percent: decimal.NewFromInt(10)})
	if res.Code != http.StatusOK {
		t.Fatalf("discount: %d %s", res.Code, res.Body.String())
	}

	var view domain.CartView
	if err := json.NewDecoder(res.Body).Decode(&view); err != nil {
		t.Fatalf("decode cart: %v", err)
	}
	if view.Totals == nil || !view.Totals.Total.Equal(decimal.RequireFromString("79.02")) {
		t.Fatalf("cart totals = %+v", view.Totals)
	}

	res = doJSON(t, handler, http.MethodPost, "/api/v1/cart/checkout", token, domain.CartCheckoutRequest{
		Payments: []domain.PaymentInput{{Method: domain.PaymentCash, Amount: decimal.RequireFromString("80")}},
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("checkout: %d %s", res.Code, res.Body.String())
	}
	var receipt domain.CheckoutResponse
	if err := json.NewDecoder(res.Body).Decode(&receipt); err != nil {
		t.Fatalf("decode checkout: %v", err)
	}
	if !receipt.OK || receipt.ReceiptNumber != "KS-10001" {
		t.Fatalf("checkout response = %+v", receipt)
	}

	res = doJSON(t, handler, http.MethodGet, "/api/v1/sales/KS-10001", token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("sale lookup: %d %s", res.Code, res.Body.String())
	}

	res = doJSON(t, handler, http.MethodGet, "/api/v1/cart", token, nil)
	if err := json.NewDecoder(res.Body).Decode(&view); err != nil {
		t.Fatalf("decode cart: %v", err)
	}
	if len(view.Cart.Lines) != 0 {
		t.Fatalf("cart should be empty after checkout, got %d lines", len(view.Cart.Lines))
	}
}

func TestCartsAreScopedByRegister(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler, "cashier", "cashier123")

	raw, _ := json.Marshal(domain.AddCartLineRequest{Kind: domain.KindService, CatalogID: "beard", Quantity: decimal.NewFromInt(1)})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(registerHeader, "till-2")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("add on till-2: %d %s", res.Code, res.Body.String())
	}

	res = doJSON(t, handler, http.MethodGet, "/api/v1/cart", token, nil)
	var view domain.CartView
	if err := json.NewDecoder(res.Body).Decode(&view); err != nil {
		t.Fatalf("decode cart: %v", err)
	}
	if len(view.Cart.Lines) != 0 {
		t.Fatalf("default register should not see till-2 cart")
	}
}

func TestCheckoutErrorsMapToStatus(t *testing.T) {
	handler := newTestAPI(t).Handler()
	cashier := login(t, handler, "cashier", "cashier123")
	manager := login(t, handler, "manager", "manager123")

	res := doJSON(t, handler, http.MethodPost, "/api/v1/checkout", cashier, domain.CheckoutRequest{
		Lines:    []domain.CheckoutLine{{Kind: domain.KindProduct, CatalogID: "wax", Quantity: decimal.NewFromInt(1)}},
		Payments: []domain.PaymentInput{{Method: domain.PaymentCard, Amount: decimal.RequireFromString("10.00")}},
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("short payment: expected 400, got %d", res.Code)
	}
	if body := decodeError(t, res); body.Reason != domain.ReasonPaymentShort {
		t.Fatalf("reason = %q", body.Reason)
	}

	res = doJSON(t, handler, http.MethodPut, "/api/v1/stock/wax", manager, domain.StockUpdateRequest{Qty: 1})
	if res.Code != http.StatusOK {
		t.Fatalf("set stock: %d %s", res.Code, res.Body.String())
	}
	res = doJSON(t, handler, http.MethodPost, "/api/v1/checkout", cashier, domain.CheckoutRequest{
		Lines:    []domain.CheckoutLine{{Kind: domain.KindProduct, CatalogID: "wax", Quantity: decimal.NewFromInt(3)}},
		Payments: []domain.PaymentInput{{Method: domain.PaymentCard, Amount: decimal.RequireFromString("42.00")}},
	})
	if res.Code != http.StatusConflict {
		t.Fatalf("short stock: expected 409, got %d", res.Code)
	}
	body := decodeError(t, res)
	if body.Reason != domain.ReasonInsufficientStock || len(body.Shortfalls) != 1 || body.Shortfalls[0].Missing != 2 {
		t.Fatalf("conflict body = %+v", body)
	}

	res = doJSON(t, handler, http.MethodGet, "/api/v1/sales/KS-99999", cashier, nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("unknown sale: expected 404, got %d", res.Code)
	}
}

func TestDayCloseOverHTTP(t *testing.T) {
	handler := newTestAPI(t).Handler()
	manager := login(t, handler, "manager", "manager123")
	date := time.Now().UTC().Format(domain.DateLayout)

	res := doJSON(t, handler, http.MethodPut, "/api/v1/cash-ledger/opening-float", manager, domain.OpeningFloatRequest{Date: date, Amount: decimal.NewFromInt(100)})
	if res.Code != http.StatusOK {
		t.Fatalf("opening float: %d %s", res.Code, res.Body.String())
	}

	res = doJSON(t, handler, http.MethodGet, "/api/v1/day-close/preview?date="+date, manager, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("preview: %d %s", res.Code, res.Body.String())
	}
	var report domain.DayCloseReport
	if err := json.NewDecoder(res.Body).Decode(&report); err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if !report.ExpectedCash.Equal(decimal.NewFromInt(100)) || report.Finalized {
		t.Fatalf("preview = %+v", report)
	}

	res = doJSON(t, handler, http.MethodPost, "/api/v1/day-close/finalize", manager, domain.FinalizeRequest{Date: date, CountedCash: decimal.RequireFromString("98.50")})
	if res.Code != http.StatusOK {
		t.Fatalf("finalize: %d %s", res.Code, res.Body.String())
	}
	var finalized domain.FinalizeResponse
	if err := json.NewDecoder(res.Body).Decode(&finalized); err != nil {
		t.Fatalf("decode finalize: %v", err)
	}
	if !finalized.OK || !finalized.Difference.Equal(decimal.RequireFromString("-1.50")) {
		t.Fatalf("finalize = %+v", finalized)
	}

	res = doJSON(t, handler, http.MethodPost, "/api/v1/cash-ledger/movements", manager, domain.CashMovementRequest{Date: date, Kind: "in", Amount: decimal.NewFromInt(5)})
	if res.Code != http.StatusConflict {
		t.Fatalf("movement after finalize: expected 409, got %d", res.Code)
	}

	res = doJSON(t, handler, http.MethodGet, "/api/v1/day-close/preview?date=03.02.2026", manager, nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("bad date: expected 400, got %d", res.Code)
	}
}

func TestReceiptSequenceAdmin(t *testing.T) {
	handler := newTestAPI(t).Handler()
	manager := login(t, handler, "manager", "manager123")

	res := doJSON(t, handler, http.MethodGet, "/api/v1/receipt-sequence", manager, nil)
	var seq domain.ReceiptSequence
	if err := json.NewDecoder(res.Body).Decode(&seq); err != nil {
		t.Fatalf("decode sequence: %v", err)
	}
	if seq.Prefix != "KS-" || seq.Next != 10001 {
		t.Fatalf("initial sequence = %+v", seq)
	}

	res = doJSON(t, handler, http.MethodPut, "/api/v1/receipt-sequence", manager, domain.ReceiptSequenceUpdate{Prefix: "SAL-", Next: 20000})
	if res.Code != http.StatusOK {
		t.Fatalf("configure: %d %s", res.Code, res.Body.String())
	}
	res = doJSON(t, handler, http.MethodPut, "/api/v1/receipt-sequence", manager, domain.ReceiptSequenceUpdate{Next: 5})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("rewind: expected 400, got %d", res.Code)
	}
	if body := decodeError(t, res); body.Reason != domain.ReasonSequenceRewind {
		t.Fatalf("reason = %q", body.Reason)
	}
}

func TestUnknownFieldsAreRejected(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler, "cashier", "cashier123")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/tip", strings.NewReader(`{"amount":"2","extra":true}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}
