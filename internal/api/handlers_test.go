package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/paymybuddy/payment-service/internal/app"
	"github.com/paymybuddy/payment-service/internal/domain"
	"github.com/paymybuddy/payment-service/internal/store"
	"github.com/shopspring/decimal"
)

type stubUsers struct {
	users        map[uuid.UUID]*domain.User
	result       domain.Result
	err          error
	authUser     *domain.User
	lastRegister *domain.RegisterRequest
}

func (s *stubUsers) CurrentUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	if u, ok := s.users[userID]; ok {
		return u, nil
	}
	return nil, app.ErrCurrentUserNotFound
}

func (s *stubUsers) ResolveByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	if u, ok := s.users[userID]; ok {
		return u, nil
	}
	return nil, store.ErrUserNotFound
}

func (s *stubUsers) Register(ctx context.Context, req *domain.RegisterRequest) (domain.Result, error) {
	s.lastRegister = req
	return s.result, s.err
}

func (s *stubUsers) UpdateProfile(ctx context.Context, current *domain.User, req *domain.UpdateProfileRequest) (domain.Result, error) {
	return s.result, s.err
}

func (s *stubUsers) Authenticate(ctx context.Context, req domain.LoginRequest) (*domain.User, domain.Result, error) {
	if s.authUser == nil {
		return nil, domain.Fail("Invalid email or password"), nil
	}
	return s.authUser, domain.Ok("Login successful"), nil
}

type stubConnections struct {
	friends []domain.User
}

func (s *stubConnections) Add(ctx context.Context, user *domain.User, friendEmail domain.Email) (domain.Result, error) {
	return domain.Ok(friendEmail.String() + " has been added to your connections"), nil
}

func (s *stubConnections) Friends(ctx context.Context, userID uuid.UUID) ([]domain.User, error) {
	return s.friends, nil
}

type stubTransfers struct {
	result   domain.Result
	err      error
	receiver *domain.User
	amount   decimal.Decimal
}

func (s *stubTransfers) Transfer(ctx context.Context, sender, receiver *domain.User, description string, amount decimal.Decimal) (domain.Result, error) {
	s.receiver = receiver
	s.amount = amount
	return s.result, s.err
}

func (s *stubTransfers) UserTransactionViews(ctx context.Context, userID uuid.UUID) ([]domain.UserTransaction, error) {
	return []domain.UserTransaction{}, nil
}

func (s *stubTransfers) AdminTransactionViews(ctx context.Context) ([]domain.AdminTransaction, error) {
	return []domain.AdminTransaction{}, nil
}

type stubBilling struct {
	deleted int64
}

func (s *stubBilling) CreateInvoice(ctx context.Context, userID uuid.UUID) (*domain.Invoice, domain.Result, error) {
	return nil, domain.Fail("No transactions found for this user"), nil
}

func (s *stubBilling) Invoice(ctx context.Context, invoiceID int64) (*domain.Invoice, error) {
	return nil, app.ErrBillingUserUnavailable
}

func (s *stubBilling) InvoicesForUser(ctx context.Context, userID uuid.UUID) ([]domain.Invoice, error) {
	return []domain.Invoice{}, nil
}

func (s *stubBilling) DeleteInvoice(ctx context.Context, invoiceID int64) {
	s.deleted = invoiceID
}

type stubLimiter struct {
	count int
}

func (s *stubLimiter) ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (int, int, error) {
	s.count++
	return s.count, 42, nil
}

type testServer struct {
	router    http.Handler
	tokens    *TokenIssuer
	users     *stubUsers
	transfers *stubTransfers
	billing   *stubBilling
	limiter   *stubLimiter
	alice     *domain.User
	bob       *domain.User
	admin     *domain.User
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	alice := &domain.User{ID: uuid.New(), Role: domain.RoleUser, Name: "Alice", Email: "alice@test.com", Balance: decimal.RequireFromString("10.00")}
	bob := &domain.User{ID: uuid.New(), Role: domain.RoleUser, Name: "Bob", Email: "bob@test.com"}
	admin := &domain.User{ID: uuid.New(), Role: domain.RoleAdmin, Name: "Admin", Email: "admin@test.com"}

	s := &testServer{
		tokens:    NewTokenIssuer("test-secret", time.Hour),
		users:     &stubUsers{users: map[uuid.UUID]*domain.User{alice.ID: alice, bob.ID: bob, admin.ID: admin}},
		transfers: &stubTransfers{},
		billing:   &stubBilling{},
		limiter:   &stubLimiter{},
		alice:     alice,
		bob:       bob,
		admin:     admin,
	}
	h := NewHandlers(s.users, &stubConnections{friends: []domain.User{*bob}}, s.transfers, s.billing, s.tokens, s.limiter,
		RateLimits{TransfersPerMinute: 2, LoginsPerMinute: 5})
	s.router = NewRouter(h, []string{"http://*"})
	return s
}

func (s *testServer) do(t *testing.T, method, path, body string, as *domain.User) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		token, _, err := s.tokens.Issue(as)
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) domain.Result {
	t.Helper()
	var result domain.Result
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return result
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "healthy" {
		t.Fatalf("unexpected health response: %d %q", rec.Code, rec.Body.String())
	}
}

func TestRegisterHandler_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		result domain.Result
		err    error
		body   string
		want   int
	}{
		{name: "created", result: domain.Ok("Your registration was successful"), body: `{"name":"Carol","email":"Carol@Test.com","password":"Secret1!"}`, want: http.StatusCreated},
		{name: "business failure", result: domain.Fail("This email is already used"), body: `{"name":"Carol","email":"carol@test.com","password":"Secret1!"}`, want: http.StatusUnprocessableEntity},
		{name: "fatal error", err: app.ErrInvalidArgument, body: `{"name":"","email":"","password":""}`, want: http.StatusInternalServerError},
		{name: "malformed body", body: `{`, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			s.users.result, s.users.err = tt.result, tt.err

			rec := s.do(t, http.MethodPost, "/api/register", tt.body, nil)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRegisterHandler_CanonicalizesEmail(t *testing.T) {
	s := newTestServer(t)
	s.users.result = domain.Ok("Your registration was successful")

	s.do(t, http.MethodPost, "/api/register", `{"name":"Carol","email":"  Carol@Test.COM ","password":"Secret1!"}`, nil)
	if s.users.lastRegister == nil || s.users.lastRegister.Email != "carol@test.com" {
		t.Fatalf("expected canonical email, got %+v", s.users.lastRegister)
	}
}

func TestRegisterHandler_FatalErrorHidesDetails(t *testing.T) {
	s := newTestServer(t)
	s.users.err = errors.New("pq: connection refused")

	rec := s.do(t, http.MethodPost, "/api/register", `{"name":"Carol","email":"carol@test.com","password":"Secret1!"}`, nil)
	if rec.Code != http.StatusInternalServerError || strings.Contains(rec.Body.String(), "connection refused") {
		t.Fatalf("expected generic 500, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestLoginHandler(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/login", `{"email":"alice@test.com","password":"wrong"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	s.users.authUser = s.alice
	rec = s.do(t, http.MethodPost, "/api/login", `{"email":"alice@test.com","password":"Secret1!"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp loginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	claims, err := s.tokens.Parse(resp.Token)
	if err != nil || claims.Subject != s.alice.ID.String() {
		t.Fatalf("expected usable token for alice, got claims=%+v err=%v", claims, err)
	}
}

func TestProfileHandler_UnknownTokenSubject(t *testing.T) {
	s := newTestServer(t)
	ghost := &domain.User{ID: uuid.New(), Role: domain.RoleUser}

	if rec := s.do(t, http.MethodGet, "/api/profile", "", ghost); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/api/profile", "", s.alice); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestTransferHandler(t *testing.T) {
	s := newTestServer(t)
	s.transfers.result = domain.Fail("Your balance of 10.00 € is insufficient")

	body := `{"receiver_id":"` + s.bob.ID.String() + `","description":"lunch","amount":"12.50"}`
	rec := s.do(t, http.MethodPost, "/api/transfers", body, s.alice)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if result := decodeResult(t, rec); result.Success || result.Message == "" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if s.transfers.receiver != s.bob || !s.transfers.amount.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("unexpected transfer arguments: receiver=%v amount=%s", s.transfers.receiver, s.transfers.amount)
	}
}

func TestTransferHandler_UnknownReceiverIsFatal(t *testing.T) {
	s := newTestServer(t)
	body := `{"receiver_id":"` + uuid.NewString() + `","description":"lunch","amount":"1.00"}`
	if rec := s.do(t, http.MethodPost, "/api/transfers", body, s.alice); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestTransferHandler_RateLimited(t *testing.T) {
	s := newTestServer(t)
	s.transfers.result = domain.Ok("The transfer of 1.00 € has been completed")
	body := `{"receiver_id":"` + s.bob.ID.String() + `","description":"lunch","amount":"1.00"}`

	for i := 0; i < 2; i++ {
		if rec := s.do(t, http.MethodPost, "/api/transfers", body, s.alice); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}
	rec := s.do(t, http.MethodPost, "/api/transfers", body, s.alice)
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") != "42" {
		t.Fatalf("expected 429 with Retry-After, got %d %q", rec.Code, rec.Header().Get("Retry-After"))
	}
}

func TestTransferPageHandler(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/api/transfers", "", s.alice)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var page domain.TransferPageResponse
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !page.Balance.Equal(s.alice.Balance) || len(page.Friends) != 1 || page.Friends[0].ID != s.bob.ID {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestAdminRoutes_RequireAdminRole(t *testing.T) {
	s := newTestServer(t)

	paths := []struct{ method, path string }{
		{http.MethodGet, "/api/admin/transactions"},
		{http.MethodPost, "/api/billing/" + s.alice.ID.String()},
		{http.MethodGet, "/api/billing/invoice/1"},
		{http.MethodGet, "/api/billing/user/" + s.alice.ID.String()},
		{http.MethodDelete, "/api/billing/1"},
	}
	for _, p := range paths {
		if rec := s.do(t, p.method, p.path, "", s.alice); rec.Code != http.StatusForbidden {
			t.Fatalf("%s %s as USER: expected 403, got %d", p.method, p.path, rec.Code)
		}
		if rec := s.do(t, p.method, p.path, "", nil); rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s anonymous: expected 401, got %d", p.method, p.path, rec.Code)
		}
	}

	if rec := s.do(t, http.MethodGet, "/api/admin/transactions", "", s.admin); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", rec.Code)
	}
}

func TestBillingHandlers(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{name: "invoice without transactions", method: http.MethodPost, path: "/api/billing/" + s.bob.ID.String(), want: http.StatusNotFound},
		{name: "invalid user id", method: http.MethodPost, path: "/api/billing/not-a-uuid", want: http.StatusBadRequest},
		{name: "invoice unavailable", method: http.MethodGet, path: "/api/billing/invoice/7", want: http.StatusNotFound},
		{name: "invalid invoice id", method: http.MethodGet, path: "/api/billing/invoice/abc", want: http.StatusBadRequest},
		{name: "user invoices", method: http.MethodGet, path: "/api/billing/user/" + s.alice.ID.String(), want: http.StatusOK},
		{name: "delete invoice", method: http.MethodDelete, path: "/api/billing/9", want: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := s.do(t, tt.method, tt.path, "", s.admin); rec.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}

	if s.billing.deleted != 9 {
		t.Fatalf("expected invoice 9 deleted, got %d", s.billing.deleted)
	}
}
