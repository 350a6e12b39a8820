/**
 * @description
 * This file defines the `Repository` interface, the contract for every data access
 * operation the payment service needs, and the `UnitOfWork` used to apply a transfer
 * atomically. Services depend on these interfaces only, so the PostgreSQL
 * implementation can be swapped for in-memory fakes in tests.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/google/uuid: identifiers.
 * - github.com/shopspring/decimal: balances.
 * - internal/domain: the service's domain models.
 */

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/paymybuddy/payment-service/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrDuplicateName       = errors.New("name already exists")
	ErrDuplicateEmail      = errors.New("email already exists")
	ErrDuplicateConnection = errors.New("connection already exists")
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// User directory
	FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	FindUserByEmail(ctx context.Context, email domain.Email) (*domain.User, error)
	FindUsersByIDs(ctx context.Context, userIDs []uuid.UUID) ([]domain.User, error)
	FindUsersByRole(ctx context.Context, role domain.Role) ([]domain.User, error)
	ExistsUserByName(ctx context.Context, name string) (bool, error)
	ExistsUserByEmail(ctx context.Context, email domain.Email) (bool, error)
	CreateUser(ctx context.Context, user *domain.User) error
	// UpdateUserProfile writes name, email and password hash. Balance and role
	// are never touched here.
	UpdateUserProfile(ctx context.Context, user *domain.User) error

	// Connection graph
	ConnectionExists(ctx context.Context, userID, friendID uuid.UUID) (bool, error)
	CreateConnection(ctx context.Context, conn *domain.Connection) error
	// FindConnectionsByUserID returns edges owned by userID in insertion order.
	FindConnectionsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Connection, error)

	// Transaction ledger (newest first)
	FindTransactionsBySenderID(ctx context.Context, senderID uuid.UUID) ([]domain.Transaction, error)
	FindAllTransactions(ctx context.Context) ([]domain.Transaction, error)

	// Begin opens a unit of work. Callers must Commit or Rollback it.
	Begin(ctx context.Context) (UnitOfWork, error)
}

// UnitOfWork is a scoped database transaction. Writes made through it become
// visible only after Commit; Rollback discards them and is safe to call after
// Commit.
type UnitOfWork interface {
	ConnectionExists(ctx context.Context, userID, friendID uuid.UUID) (bool, error)
	// LockUsers loads and exclusively locks the given user rows until the unit
	// of work ends. Rows are locked in id order.
	LockUsers(ctx context.Context, userIDs ...uuid.UUID) (map[uuid.UUID]*domain.User, error)
	UpdateUserBalance(ctx context.Context, userID uuid.UUID, balance decimal.Decimal) error
	AppendTransaction(ctx context.Context, tx *domain.Transaction) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
