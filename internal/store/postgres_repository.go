/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains the hand-written queries for the users, connections and transactions
 * tables, and the pgx-backed unit of work used by transfers.
 *
 * @dependencies
 * - context, errors, fmt: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paymybuddy/payment-service/internal/domain"
	"github.com/shopspring/decimal"
)

const uniqueViolationCode = "23505"

const userColumns = `id, created_at, role, name, email, password_hash, balance`

// rowScanner is implemented by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var user domain.User
	var role, email string
	err := row.Scan(&user.ID, &user.CreatedAt, &role, &user.Name, &email, &user.PasswordHash, &user.Balance)
	if err != nil {
		return nil, err
	}
	user.Role = domain.Role(role)
	user.Email = domain.Email(email)
	return &user, nil
}

// mapUniqueViolation converts a unique-constraint failure into the matching
// sentinel error. Other errors are returned unchanged.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolationCode {
		return err
	}
	switch pgErr.ConstraintName {
	case "users_name_key":
		return ErrDuplicateName
	case "users_email_key":
		return ErrDuplicateEmail
	case "connections_user_friend_key":
		return ErrDuplicateConnection
	default:
		return err
	}
}

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindUserByID retrieves a user from the database by their ID.
func (r *PostgresRepository) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// FindUserByEmail retrieves a user by canonical email.
func (r *PostgresRepository) FindUserByEmail(ctx context.Context, email domain.Email) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	user, err := scanUser(r.db.QueryRow(ctx, query, email.Canonical().String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// FindUsersByIDs returns the users that exist among userIDs, in no particular order.
func (r *PostgresRepository) FindUsersByIDs(ctx context.Context, userIDs []uuid.UUID) ([]domain.User, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		ids = append(ids, id.String())
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1::uuid[])`
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// FindUsersByRole lists users with the given role ordered by name.
func (r *PostgresRepository) FindUsersByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role = $1 ORDER BY name`
	rows, err := r.db.Query(ctx, query, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func (r *PostgresRepository) ExistsUserByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE name = $1)`, name).Scan(&exists)
	return exists, err
}

func (r *PostgresRepository) ExistsUserByEmail(ctx context.Context, email domain.Email) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email.Canonical().String()).Scan(&exists)
	return exists, err
}

// CreateUser inserts a new user. CreatedAt is filled from the database.
func (r *PostgresRepository) CreateUser(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, role, name, email, password_hash, balance)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		user.ID, string(user.Role), user.Name, user.Email.String(), user.PasswordHash, user.Balance,
	).Scan(&user.CreatedAt)
	if err != nil {
		return mapUniqueViolation(err)
	}
	return nil
}

// UpdateUserProfile persists identity fields only.
func (r *PostgresRepository) UpdateUserProfile(ctx context.Context, user *domain.User) error {
	query := `UPDATE users SET name = $1, email = $2, password_hash = $3 WHERE id = $4`
	tag, err := r.db.Exec(ctx, query, user.Name, user.Email.String(), user.PasswordHash, user.ID)
	if err != nil {
		return mapUniqueViolation(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *PostgresRepository) ConnectionExists(ctx context.Context, userID, friendID uuid.UUID) (bool, error) {
	return connectionExists(ctx, r.db, userID, friendID)
}

// CreateConnection inserts a directed edge. CreatedAt is filled from the database.
func (r *PostgresRepository) CreateConnection(ctx context.Context, conn *domain.Connection) error {
	query := `
		INSERT INTO connections (id, user_id, friend_id)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query, conn.ID, conn.UserID, conn.FriendID).Scan(&conn.CreatedAt)
	if err != nil {
		return mapUniqueViolation(err)
	}
	return nil
}

func (r *PostgresRepository) FindConnectionsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Connection, error) {
	query := `
		SELECT id, user_id, friend_id, created_at
		FROM connections
		WHERE user_id = $1
		ORDER BY created_at, id
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var connections []domain.Connection
	for rows.Next() {
		var c domain.Connection
		if err := rows.Scan(&c.ID, &c.UserID, &c.FriendID, &c.CreatedAt); err != nil {
			return nil, err
		}
		connections = append(connections, c)
	}
	return connections, rows.Err()
}

// FindTransactionsBySenderID lists ledger entries sent by senderID, newest first.
func (r *PostgresRepository) FindTransactionsBySenderID(ctx context.Context, senderID uuid.UUID) ([]domain.Transaction, error) {
	query := `
		SELECT id, sender_id, receiver_id, description, amount, created_at
		FROM transactions
		WHERE sender_id = $1
		ORDER BY created_at DESC, id
	`
	return r.queryTransactions(ctx, query, senderID)
}

// FindAllTransactions lists every ledger entry, newest first.
func (r *PostgresRepository) FindAllTransactions(ctx context.Context) ([]domain.Transaction, error) {
	query := `
		SELECT id, sender_id, receiver_id, description, amount, created_at
		FROM transactions
		ORDER BY created_at DESC, id
	`
	return r.queryTransactions(ctx, query)
}

func (r *PostgresRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]domain.Transaction, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		if err := rows.Scan(&tx.ID, &tx.SenderID, &tx.ReceiverID, &tx.Description, &tx.Amount, &tx.CreatedAt); err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

// Begin starts a database transaction wrapped as a UnitOfWork.
func (r *PostgresRepository) Begin(ctx context.Context) (UnitOfWork, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &postgresUnitOfWork{tx: tx}, nil
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func connectionExists(ctx context.Context, q queryRower, userID, friendID uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM connections WHERE user_id = $1 AND friend_id = $2)`
	err := q.QueryRow(ctx, query, userID, friendID).Scan(&exists)
	return exists, err
}

type postgresUnitOfWork struct {
	tx pgx.Tx
}

func (u *postgresUnitOfWork) ConnectionExists(ctx context.Context, userID, friendID uuid.UUID) (bool, error) {
	return connectionExists(ctx, u.tx, userID, friendID)
}

// LockUsers uses FOR UPDATE so concurrent transfers touching the same users
// serialize on the row locks. Ordering by id keeps lock acquisition
// consistent across transactions.
func (u *postgresUnitOfWork) LockUsers(ctx context.Context, userIDs ...uuid.UUID) (map[uuid.UUID]*domain.User, error) {
	sorted := append([]uuid.UUID(nil), userIDs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].String() < sorted[j].String() })

	locked := make(map[uuid.UUID]*domain.User, len(sorted))
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	for _, id := range sorted {
		if _, seen := locked[id]; seen {
			continue
		}
		user, err := scanUser(u.tx.QueryRow(ctx, query, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrUserNotFound
			}
			return nil, err
		}
		locked[id] = user
	}
	return locked, nil
}

func (u *postgresUnitOfWork) UpdateUserBalance(ctx context.Context, userID uuid.UUID, balance decimal.Decimal) error {
	tag, err := u.tx.Exec(ctx, `UPDATE users SET balance = $1 WHERE id = $2`, balance, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (u *postgresUnitOfWork) AppendTransaction(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions (id, sender_id, receiver_id, description, amount)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	return u.tx.QueryRow(ctx, query, tx.ID, tx.SenderID, tx.ReceiverID, tx.Description, tx.Amount).Scan(&tx.CreatedAt)
}

func (u *postgresUnitOfWork) Commit(ctx context.Context) error {
	return u.tx.Commit(ctx)
}

func (u *postgresUnitOfWork) Rollback(ctx context.Context) error {
	err := u.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}
