package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/paymybuddy/payment-service/internal/domain"
	"github.com/paymybuddy/payment-service/internal/store"
	"github.com/paymybuddy/payment-service/pkg/logger"
	"github.com/shopspring/decimal"
)

// ErrBillingUserUnavailable is returned when no account can back a simulated invoice.
var ErrBillingUserUnavailable = errors.New("no user available for billing")

// BillingService computes invoices from users' sent transactions. Invoices are
// simulated: they are logged, never persisted.
type BillingService struct {
	repo          store.Repository
	demoUserEmail domain.Email
	nextInvoiceID atomic.Int64
}

// NewBillingService creates a billing service. demoUserEmail selects the account
// used for invoice lookups by id; when blank the first USER account is used.
func NewBillingService(repo store.Repository, demoUserEmail domain.Email) *BillingService {
	return &BillingService{
		repo:          repo,
		demoUserEmail: demoUserEmail.Canonical(),
	}
}

// CreateInvoice builds an invoice for userID's sent transactions. A user with
// no transactions gets a rejected Result and no invoice.
func (s *BillingService) CreateInvoice(ctx context.Context, userID uuid.UUID) (*domain.Invoice, domain.Result, error) {
	transactions, err := s.repo.FindTransactionsBySenderID(ctx, userID)
	if err != nil {
		return nil, domain.Result{}, fmt.Errorf("failed to load transactions for billing: %w", err)
	}
	if len(transactions) == 0 {
		return nil, domain.Fail(msgNoTransactions), nil
	}

	invoice := buildInvoice(s.nextInvoiceID.Add(1), userID, transactions)
	logger.Log.Info("invoice created",
		logger.Any("invoice_id", invoice.InvoiceID),
		logger.Stringer("user_id", userID),
		logger.Int("transactions", len(invoice.Transactions)),
		logger.String("total", invoice.Amount.StringFixed(domain.MoneyScale)),
	)
	return invoice, domain.Ok(fmt.Sprintf(msgInvoiceCreated, invoice.InvoiceID, len(invoice.Transactions), invoice.Amount.StringFixed(domain.MoneyScale))), nil
}

// Invoice returns a simulated invoice for invoiceID built from the demo account.
func (s *BillingService) Invoice(ctx context.Context, invoiceID int64) (*domain.Invoice, error) {
	user, err := s.demoUser(ctx)
	if err != nil {
		return nil, err
	}
	transactions, err := s.repo.FindTransactionsBySenderID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions for billing: %w", err)
	}
	return buildInvoice(invoiceID, user.ID, transactions), nil
}

// InvoicesForUser returns two simulated invoices with ids 1 and 2 that share
// the same content.
func (s *BillingService) InvoicesForUser(ctx context.Context, userID uuid.UUID) ([]domain.Invoice, error) {
	transactions, err := s.repo.FindTransactionsBySenderID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions for billing: %w", err)
	}
	return []domain.Invoice{
		*buildInvoice(1, userID, transactions),
		*buildInvoice(2, userID, transactions),
	}, nil
}

// DeleteInvoice only records the request.
func (s *BillingService) DeleteInvoice(ctx context.Context, invoiceID int64) {
	logger.Log.Info("invoice deleted", logger.Any("invoice_id", invoiceID))
}

// RunBillingCycle creates an invoice for every USER account that sent money.
func (s *BillingService) RunBillingCycle(ctx context.Context) error {
	users, err := s.repo.FindUsersByRole(ctx, domain.RoleUser)
	if err != nil {
		return fmt.Errorf("failed to list users for billing: %w", err)
	}

	invoiced := 0
	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return err
		}
		invoice, _, err := s.CreateInvoice(ctx, user.ID)
		if err != nil {
			logger.Log.Error("billing failed for user", logger.Stringer("user_id", user.ID), logger.Error(err))
			continue
		}
		if invoice != nil {
			invoiced++
		}
	}

	logger.Log.Info("billing cycle finished",
		logger.Int("users", len(users)),
		logger.Int("invoices", invoiced),
	)
	return nil
}

func (s *BillingService) demoUser(ctx context.Context) (*domain.User, error) {
	if !s.demoUserEmail.IsBlank() {
		user, err := s.repo.FindUserByEmail(ctx, s.demoUserEmail)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, store.ErrUserNotFound) {
			return nil, fmt.Errorf("failed to load billing demo user: %w", err)
		}
	}

	users, err := s.repo.FindUsersByRole(ctx, domain.RoleUser)
	if err != nil {
		return nil, fmt.Errorf("failed to list users for billing: %w", err)
	}
	if len(users) == 0 {
		return nil, ErrBillingUserUnavailable
	}
	return &users[0], nil
}

func buildInvoice(invoiceID int64, userID uuid.UUID, transactions []domain.Transaction) *domain.Invoice {
	total := decimal.Zero
	for _, tx := range transactions {
		total = total.Add(tx.Amount)
	}
	if transactions == nil {
		transactions = []domain.Transaction{}
	}
	return &domain.Invoice{
		InvoiceID:    invoiceID,
		UserID:       userID,
		Transactions: transactions,
		Amount:       total.Round(domain.MoneyScale),
	}
}
