/**
 * @description
 * This file contains the HTTP handlers for the payment service. Handlers parse the
 * request, resolve the authenticated user, call the application services and map
 * their outcome onto a status code: successful results are 200, rejected business
 * results are 422 with the same body, and fatal errors are logged and answered
 * with a generic 500.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: URL parameters.
 * - internal/app, internal/domain, internal/store: services, models and sentinel errors.
 * - pkg/logger: structured error logging.
 */

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/paymybuddy/payment-service/internal/app"
	"github.com/paymybuddy/payment-service/internal/domain"
	"github.com/paymybuddy/payment-service/internal/store"
	"github.com/paymybuddy/payment-service/pkg/logger"
	"github.com/shopspring/decimal"
)

const rateLimitWindow = time.Minute

// UserService is the subset of app.UserService used by the handlers.
type UserService interface {
	CurrentUser(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	ResolveByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	Register(ctx context.Context, req *domain.RegisterRequest) (domain.Result, error)
	UpdateProfile(ctx context.Context, current *domain.User, req *domain.UpdateProfileRequest) (domain.Result, error)
	Authenticate(ctx context.Context, req domain.LoginRequest) (*domain.User, domain.Result, error)
}

// ConnectionService is the subset of app.ConnectionService used by the handlers.
type ConnectionService interface {
	Add(ctx context.Context, user *domain.User, friendEmail domain.Email) (domain.Result, error)
	Friends(ctx context.Context, userID uuid.UUID) ([]domain.User, error)
}

// TransferService is the subset of app.TransferService used by the handlers.
type TransferService interface {
	Transfer(ctx context.Context, sender, receiver *domain.User, description string, amount decimal.Decimal) (domain.Result, error)
	UserTransactionViews(ctx context.Context, userID uuid.UUID) ([]domain.UserTransaction, error)
	AdminTransactionViews(ctx context.Context) ([]domain.AdminTransaction, error)
}

// BillingService is the subset of app.BillingService used by the handlers.
type BillingService interface {
	CreateInvoice(ctx context.Context, userID uuid.UUID) (*domain.Invoice, domain.Result, error)
	Invoice(ctx context.Context, invoiceID int64) (*domain.Invoice, error)
	InvoicesForUser(ctx context.Context, userID uuid.UUID) ([]domain.Invoice, error)
	DeleteInvoice(ctx context.Context, invoiceID int64)
}

// RateLimits holds the per-minute request budgets. Zero disables a limit.
type RateLimits struct {
	TransfersPerMinute int
	LoginsPerMinute    int
}

// Handlers holds the services the HTTP handlers use.
type Handlers struct {
	users       UserService
	connections ConnectionService
	transfers   TransferService
	billing     BillingService
	tokens      *TokenIssuer
	limiter     app.RateLimiter
	limits      RateLimits
}

// NewHandlers creates the handler set. limiter may be nil.
func NewHandlers(
	users UserService,
	connections ConnectionService,
	transfers TransferService,
	billing BillingService,
	tokens *TokenIssuer,
	limiter app.RateLimiter,
	limits RateLimits,
) *Handlers {
	return &Handlers{
		users:       users,
		connections: connections,
		transfers:   transfers,
		billing:     billing,
		tokens:      tokens,
		limiter:     limiter,
		limits:      limits,
	}
}

type loginResponse struct {
	domain.Result
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

type invoiceResponse struct {
	domain.Result
	Invoice *domain.Invoice `json:"invoice,omitempty"`
}

// RegisterHandler creates a USER account.
func (h *Handlers) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.users.Register(r.Context(), &req)
	if err != nil {
		writeInternalError(w, "register", err)
		return
	}
	writeResult(w, http.StatusCreated, result)
}

// LoginHandler verifies credentials and issues a session token.
func (h *Handlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if h.rateLimited(w, r.Context(), "login", req.Email.Canonical().String(), h.limits.LoginsPerMinute) {
		return
	}

	user, result, err := h.users.Authenticate(r.Context(), req)
	if err != nil {
		writeInternalError(w, "login", err)
		return
	}
	if !result.Success {
		writeJSON(w, http.StatusUnauthorized, result)
		return
	}

	token, expiresAt, err := h.tokens.Issue(user)
	if err != nil {
		writeInternalError(w, "login", err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Result: result, Token: token, ExpiresAt: expiresAt})
}

// GetProfileHandler returns the authenticated user's profile.
func (h *Handlers) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r, "get_profile")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, user.Profile())
}

// UpdateProfileHandler changes the authenticated user's name, email or password.
func (h *Handlers) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r, "update_profile")
	if !ok {
		return
	}

	var req domain.UpdateProfileRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.users.UpdateProfile(r.Context(), user, &req)
	if err != nil {
		writeInternalError(w, "update_profile", err)
		return
	}
	writeResult(w, http.StatusOK, result)
}

// ListConnectionsHandler returns the authenticated user's friends.
func (h *Handlers) ListConnectionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "User ID not found in context")
		return
	}

	friends, err := h.connections.Friends(r.Context(), userID)
	if err != nil {
		writeInternalError(w, "list_connections", err)
		return
	}
	writeJSON(w, http.StatusOK, friendResponses(friends))
}

// AddConnectionHandler adds a friend by email.
func (h *Handlers) AddConnectionHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r, "add_connection")
	if !ok {
		return
	}

	var req domain.ConnectionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.connections.Add(r.Context(), user, req.Email)
	if err != nil {
		writeInternalError(w, "add_connection", err)
		return
	}
	writeResult(w, http.StatusOK, result)
}

// TransferPageHandler returns the balance, friends and sent transactions of
// the authenticated user.
func (h *Handlers) TransferPageHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r, "transfer_page")
	if !ok {
		return
	}

	friends, err := h.connections.Friends(r.Context(), user.ID)
	if err != nil {
		writeInternalError(w, "transfer_page", err)
		return
	}
	transactions, err := h.transfers.UserTransactionViews(r.Context(), user.ID)
	if err != nil {
		writeInternalError(w, "transfer_page", err)
		return
	}

	writeJSON(w, http.StatusOK, domain.TransferPageResponse{
		Balance:      user.Balance,
		Friends:      friendResponses(friends),
		Transactions: transactions,
	})
}

// TransferHandler sends money to a friend.
func (h *Handlers) TransferHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r, "transfer")
	if !ok {
		return
	}
	if h.rateLimited(w, r.Context(), "transfer", user.ID.String(), h.limits.TransfersPerMinute) {
		return
	}

	var req domain.TransferRequest
	if !decodeBody(w, r, &req) {
		return
	}

	receiver, err := h.users.ResolveByID(r.Context(), req.ReceiverID)
	if err != nil {
		writeInternalError(w, "transfer", err)
		return
	}

	result, err := h.transfers.Transfer(r.Context(), user, receiver, req.Description, req.Amount)
	if err != nil {
		writeInternalError(w, "transfer", err)
		return
	}
	writeResult(w, http.StatusOK, result)
}

// AdminTransactionsHandler lists every transaction with both parties' names.
func (h *Handlers) AdminTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	transactions, err := h.transfers.AdminTransactionViews(r.Context())
	if err != nil {
		writeInternalError(w, "admin_transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, transactions)
}

// CreateInvoiceHandler builds an invoice for the user in the URL.
func (h *Handlers) CreateInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID format")
		return
	}

	invoice, result, err := h.billing.CreateInvoice(r.Context(), userID)
	if err != nil {
		writeInternalError(w, "create_invoice", err)
		return
	}
	if !result.Success {
		writeJSON(w, http.StatusNotFound, result)
		return
	}
	writeJSON(w, http.StatusCreated, invoiceResponse{Result: result, Invoice: invoice})
}

// GetInvoiceHandler returns the invoice with the id in the URL.
func (h *Handlers) GetInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := invoiceIDParam(w, r, "invoiceID")
	if !ok {
		return
	}

	invoice, err := h.billing.Invoice(r.Context(), invoiceID)
	if err != nil {
		if errors.Is(err, app.ErrBillingUserUnavailable) {
			writeError(w, http.StatusNotFound, "Invoice not found")
			return
		}
		writeInternalError(w, "get_invoice", err)
		return
	}
	writeJSON(w, http.StatusOK, invoice)
}

// UserInvoicesHandler lists the invoices of the user in the URL.
func (h *Handlers) UserInvoicesHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID format")
		return
	}

	invoices, err := h.billing.InvoicesForUser(r.Context(), userID)
	if err != nil {
		writeInternalError(w, "user_invoices", err)
		return
	}
	writeJSON(w, http.StatusOK, invoices)
}

// DeleteInvoiceHandler deletes the invoice with the id in the URL.
func (h *Handlers) DeleteInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := invoiceIDParam(w, r, "id")
	if !ok {
		return
	}
	h.billing.DeleteInvoice(r.Context(), invoiceID)
	w.WriteHeader(http.StatusNoContent)
}

// currentUser loads the authenticated user. A token for a user that no longer
// exists is rejected as unauthorized.
func (h *Handlers) currentUser(w http.ResponseWriter, r *http.Request, endpoint string) (*domain.User, bool) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "User ID not found in context")
		return nil, false
	}

	user, err := h.users.CurrentUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, app.ErrCurrentUserNotFound) || errors.Is(err, store.ErrUserNotFound) {
			logger.Log.Warn("authenticated user not found",
				logger.String("endpoint", endpoint),
				logger.Stringer("user_id", userID),
			)
			writeError(w, http.StatusUnauthorized, "User not found")
			return nil, false
		}
		writeInternalError(w, endpoint, err)
		return nil, false
	}
	return user, true
}

// rateLimited consumes one request from the subject's budget and writes a 429
// when it is exhausted. Limiter failures let the request through.
func (h *Handlers) rateLimited(w http.ResponseWriter, ctx context.Context, scope, subject string, limit int) bool {
	if h.limiter == nil || limit <= 0 {
		return false
	}

	count, retryAfter, err := h.limiter.ConsumeRateLimit(ctx, scope, subject, limit, rateLimitWindow)
	if err != nil {
		logger.Log.Warn("rate limiter unavailable",
			logger.String("scope", scope),
			logger.Error(err),
		)
		return false
	}
	if count <= limit {
		return false
	}

	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	writeError(w, http.StatusTooManyRequests, "Too many requests, please try again later")
	return true
}

func friendResponses(friends []domain.User) []domain.FriendResponse {
	out := make([]domain.FriendResponse, 0, len(friends))
	for _, friend := range friends {
		out = append(out, domain.FriendResponse{ID: friend.ID, Name: friend.Name, Email: friend.Email})
	}
	return out
}

func invoiceIDParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	invoiceID, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || invoiceID <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid invoice ID")
		return 0, false
	}
	return invoiceID, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// writeResult writes a business result. Rejections are 422.
func writeResult(w http.ResponseWriter, successStatus int, result domain.Result) {
	if result.Success {
		writeJSON(w, successStatus, result)
		return
	}
	writeJSON(w, http.StatusUnprocessableEntity, result)
}

func writeInternalError(w http.ResponseWriter, endpoint string, err error) {
	logger.Log.Error("request failed",
		logger.String("component", "api"),
		logger.String("endpoint", endpoint),
		logger.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
