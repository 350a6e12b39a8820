/**
 * @description
 * This file contains the transfer engine. `TransferService` moves money between
 * two users' internal balances and records the ledger entry.
 *
 * Key features:
 * - Layered validation: structural checks and integrity checks fail with an error,
 *   insufficient funds is a rejected Result.
 * - The debit, the credit and the ledger append commit in one unit of work. Both
 *   user rows are locked before the balance check, so concurrent transfers from the
 *   same sender cannot overdraw it.
 * - A transfer.completed event is published only after commit.
 *
 * @dependencies
 * - github.com/shopspring/decimal: exact decimal arithmetic.
 * - internal/domain, internal/store: models and data access.
 * - pkg/rabbitmq: event publishing.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/paymybuddy/payment-service/internal/domain"
	"github.com/paymybuddy/payment-service/internal/store"
	"github.com/paymybuddy/payment-service/pkg/logger"
	"github.com/paymybuddy/payment-service/pkg/rabbitmq"
	"github.com/shopspring/decimal"
)

// TransferService provides money transfers and ledger retrieval.
type TransferService struct {
	repo   store.Repository
	events eventSink
}

// NewTransferService creates a new transfer service instance.
func NewTransferService(repo store.Repository, producer rabbitmq.Publisher, exchange string) *TransferService {
	return &TransferService{
		repo:   repo,
		events: newEventSink(producer, exchange),
	}
}

// Transfer debits sender and credits receiver by amount and appends a ledger
// entry. On success the Balance fields of sender and receiver are updated to
// the committed values.
func (s *TransferService) Transfer(ctx context.Context, sender, receiver *domain.User, description string, amount decimal.Decimal) (domain.Result, error) {
	description = strings.TrimSpace(description)
	if err := validateTransferArguments(sender, receiver, description, amount); err != nil {
		return domain.Result{}, err
	}
	if sender.ID == receiver.ID {
		return domain.Result{}, fmt.Errorf("%w: user %s attempted a transfer to themselves", ErrIntegrity, sender.ID)
	}

	uow, err := s.repo.Begin(ctx)
	if err != nil {
		return domain.Result{}, fmt.Errorf("failed to start transfer: %w", err)
	}
	defer func() {
		if rbErr := uow.Rollback(ctx); rbErr != nil {
			logger.Log.Warn("transfer rollback failed", logger.Error(rbErr))
		}
	}()

	connected, err := uow.ConnectionExists(ctx, sender.ID, receiver.ID)
	if err != nil {
		return domain.Result{}, fmt.Errorf("failed to check connection: %w", err)
	}
	if !connected {
		return domain.Result{}, fmt.Errorf("%w: no connection from %s to %s", ErrIntegrity, sender.ID, receiver.ID)
	}

	locked, err := uow.LockUsers(ctx, sender.ID, receiver.ID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return domain.Result{}, fmt.Errorf("%w: transfer party vanished: %v", ErrIntegrity, err)
		}
		return domain.Result{}, fmt.Errorf("failed to lock transfer parties: %w", err)
	}
	lockedSender, lockedReceiver := locked[sender.ID], locked[receiver.ID]
	if lockedSender == nil || lockedReceiver == nil {
		return domain.Result{}, fmt.Errorf("%w: transfer party vanished", ErrIntegrity)
	}

	if lockedSender.Balance.LessThan(amount) {
		return domain.Fail(fmt.Sprintf(msgInsufficient, lockedSender.Balance.StringFixed(domain.MoneyScale))), nil
	}

	amount = amount.Round(domain.MoneyScale)
	senderBalance := lockedSender.Balance.Sub(amount)
	receiverBalance := lockedReceiver.Balance.Add(amount)

	entry := &domain.Transaction{
		ID:          uuid.New(),
		SenderID:    sender.ID,
		ReceiverID:  receiver.ID,
		Description: description,
		Amount:      amount,
	}
	if err := uow.AppendTransaction(ctx, entry); err != nil {
		return domain.Result{}, fmt.Errorf("failed to append ledger entry: %w", err)
	}
	if err := uow.UpdateUserBalance(ctx, sender.ID, senderBalance); err != nil {
		return domain.Result{}, fmt.Errorf("failed to debit sender: %w", err)
	}
	if err := uow.UpdateUserBalance(ctx, receiver.ID, receiverBalance); err != nil {
		return domain.Result{}, fmt.Errorf("failed to credit receiver: %w", err)
	}
	if err := uow.Commit(ctx); err != nil {
		return domain.Result{}, fmt.Errorf("failed to commit transfer: %w", err)
	}

	sender.Balance = senderBalance
	receiver.Balance = receiverBalance

	logger.Log.Info("transfer completed",
		logger.Stringer("transaction_id", entry.ID),
		logger.Stringer("sender_id", sender.ID),
		logger.Stringer("receiver_id", receiver.ID),
		logger.String("amount", amount.StringFixed(domain.MoneyScale)),
	)
	s.events.publish(ctx, domain.EventTransferCompleted, domain.TransferCompletedEvent{
		TransactionID: entry.ID,
		SenderID:      sender.ID,
		ReceiverID:    receiver.ID,
		Amount:        amount,
		Timestamp:     time.Now().UTC(),
	})

	return domain.Ok(fmt.Sprintf(msgTransferDone, amount.StringFixed(domain.MoneyScale))), nil
}

func validateTransferArguments(sender, receiver *domain.User, description string, amount decimal.Decimal) error {
	if sender == nil || receiver == nil {
		return fmt.Errorf("%w: sender and receiver are required", ErrInvalidArgument)
	}
	if description == "" {
		return fmt.Errorf("%w: description is blank", ErrInvalidArgument)
	}
	if utf8.RuneCountInString(description) > domain.MaxDescriptionLength {
		return fmt.Errorf("%w: description exceeds %d characters", ErrInvalidArgument, domain.MaxDescriptionLength)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidArgument, amount.String())
	}
	if !amount.Equal(amount.Round(domain.MoneyScale)) {
		return fmt.Errorf("%w: amount %s has more than %d decimal places", ErrInvalidArgument, amount.String(), domain.MoneyScale)
	}
	return nil
}

// ListTransactionsFor returns the entries userID sent, newest first.
func (s *TransferService) ListTransactionsFor(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error) {
	transactions, err := s.repo.FindTransactionsBySenderID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions for %s: %w", userID, err)
	}
	if transactions == nil {
		transactions = []domain.Transaction{}
	}
	return transactions, nil
}

// ListAllTransactions returns every ledger entry, newest first.
func (s *TransferService) ListAllTransactions(ctx context.Context) ([]domain.Transaction, error) {
	transactions, err := s.repo.FindAllTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	if transactions == nil {
		transactions = []domain.Transaction{}
	}
	return transactions, nil
}

// UserTransactionViews returns the entries userID sent with receiver names.
func (s *TransferService) UserTransactionViews(ctx context.Context, userID uuid.UUID) ([]domain.UserTransaction, error) {
	transactions, err := s.ListTransactionsFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(transactions))
	for _, tx := range transactions {
		ids = append(ids, tx.ReceiverID)
	}
	users, err := loadUsers(ctx, s.repo, ids)
	if err != nil {
		return nil, err
	}

	views := make([]domain.UserTransaction, 0, len(transactions))
	for _, tx := range transactions {
		receiver, ok := users[tx.ReceiverID]
		if !ok {
			return nil, fmt.Errorf("%w: transaction %s references missing receiver %s", ErrIntegrity, tx.ID, tx.ReceiverID)
		}
		views = append(views, domain.UserTransaction{
			CreatedAt:   tx.CreatedAt,
			FriendName:  receiver.Name,
			Description: tx.Description,
			Amount:      tx.Amount,
		})
	}
	return views, nil
}

// AdminTransactionViews returns every ledger entry with both party names.
func (s *TransferService) AdminTransactionViews(ctx context.Context) ([]domain.AdminTransaction, error) {
	transactions, err := s.ListAllTransactions(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, 2*len(transactions))
	for _, tx := range transactions {
		ids = append(ids, tx.SenderID, tx.ReceiverID)
	}
	users, err := loadUsers(ctx, s.repo, ids)
	if err != nil {
		return nil, err
	}

	views := make([]domain.AdminTransaction, 0, len(transactions))
	for _, tx := range transactions {
		sender, okSender := users[tx.SenderID]
		receiver, okReceiver := users[tx.ReceiverID]
		if !okSender || !okReceiver {
			return nil, fmt.Errorf("%w: transaction %s references a missing user", ErrIntegrity, tx.ID)
		}
		views = append(views, domain.AdminTransaction{
			CreatedAt:    tx.CreatedAt,
			SenderName:   sender.Name,
			ReceiverName: receiver.Name,
			Description:  tx.Description,
			Amount:       tx.Amount,
		})
	}
	return views, nil
}
