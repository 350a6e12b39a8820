package app

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paymybuddy/payment-service/internal/domain"
	"github.com/paymybuddy/payment-service/internal/store"
	"github.com/shopspring/decimal"
)

// memoryRepo is an in-memory store.Repository. Units of work stage their
// writes on a copy of the state and are serialized by txMu, which stands in
// for the row locks taken by the PostgreSQL implementation.
type memoryRepo struct {
	mu   sync.Mutex
	txMu sync.Mutex

	users        map[uuid.UUID]domain.User
	connections  []domain.Connection
	transactions []domain.Transaction
	clock        time.Time

	createUserErr        error
	createConnectionErr  error
	appendErr            error
	balanceErrFor        uuid.UUID
	commitErr            error
	findByEmailErr       error
	beginCalls           int
	updateProfileCalls   int
	createConnectionCall int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		users: make(map[uuid.UUID]domain.User),
		clock: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (r *memoryRepo) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

// addUser seeds a user with the given balance.
func (r *memoryRepo) addUser(name, email, balance string) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	user := domain.User{
		ID:           uuid.New(),
		CreatedAt:    r.tick(),
		Role:         domain.RoleUser,
		Name:         name,
		Email:        domain.NewEmail(email),
		PasswordHash: "hash",
		Balance:      decimal.RequireFromString(balance),
	}
	r.users[user.ID] = user
	copied := user
	return &copied
}

func (r *memoryRepo) connect(userID, friendID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connections = append(r.connections, domain.Connection{
		ID:        uuid.New(),
		UserID:    userID,
		FriendID:  friendID,
		CreatedAt: r.tick(),
	})
}

func (r *memoryRepo) user(id uuid.UUID) domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id]
}

func (r *memoryRepo) transactionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.transactions)
}

func (r *memoryRepo) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return &user, nil
}

func (r *memoryRepo) FindUserByEmail(ctx context.Context, email domain.Email) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findByEmailErr != nil {
		return nil, r.findByEmailErr
	}
	for _, user := range r.users {
		if user.Email == email.Canonical() {
			u := user
			return &u, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (r *memoryRepo) FindUsersByIDs(ctx context.Context, userIDs []uuid.UUID) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var users []domain.User
	for _, id := range userIDs {
		if user, ok := r.users[id]; ok {
			users = append(users, user)
		}
	}
	return users, nil
}

func (r *memoryRepo) FindUsersByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var users []domain.User
	for _, user := range r.users {
		if user.Role == role {
			users = append(users, user)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

func (r *memoryRepo) ExistsUserByName(ctx context.Context, name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepo) ExistsUserByEmail(ctx context.Context, email domain.Email) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email.Canonical() {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepo) CreateUser(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createUserErr != nil {
		return r.createUserErr
	}
	for _, existing := range r.users {
		if existing.Name == user.Name {
			return store.ErrDuplicateName
		}
		if existing.Email == user.Email {
			return store.ErrDuplicateEmail
		}
	}
	user.CreatedAt = r.tick()
	r.users[user.ID] = *user
	return nil
}

func (r *memoryRepo) UpdateUserProfile(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateProfileCalls++
	existing, ok := r.users[user.ID]
	if !ok {
		return store.ErrUserNotFound
	}
	existing.Name = user.Name
	existing.Email = user.Email
	existing.PasswordHash = user.PasswordHash
	r.users[user.ID] = existing
	return nil
}

func (r *memoryRepo) ConnectionExists(ctx context.Context, userID, friendID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connectionExistsLocked(userID, friendID), nil
}

func (r *memoryRepo) connectionExistsLocked(userID, friendID uuid.UUID) bool {
	for _, c := range r.connections {
		if c.UserID == userID && c.FriendID == friendID {
			return true
		}
	}
	return false
}

func (r *memoryRepo) CreateConnection(ctx context.Context, conn *domain.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createConnectionCall++
	if r.createConnectionErr != nil {
		return r.createConnectionErr
	}
	if r.connectionExistsLocked(conn.UserID, conn.FriendID) {
		return store.ErrDuplicateConnection
	}
	conn.CreatedAt = r.tick()
	r.connections = append(r.connections, *conn)
	return nil
}

func (r *memoryRepo) FindConnectionsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Connection
	for _, c := range r.connections {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memoryRepo) FindTransactionsBySenderID(ctx context.Context, senderID uuid.UUID) ([]domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Transaction
	for _, tx := range r.transactions {
		if tx.SenderID == senderID {
			out = append(out, tx)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *memoryRepo) FindAllTransactions(ctx context.Context) ([]domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]domain.Transaction(nil), r.transactions...)
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(txs []domain.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].CreatedAt.After(txs[j].CreatedAt) })
}

func (r *memoryRepo) Begin(ctx context.Context) (store.UnitOfWork, error) {
	r.txMu.Lock()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beginCalls++

	users := make(map[uuid.UUID]domain.User, len(r.users))
	for id, user := range r.users {
		users[id] = user
	}
	return &memoryUnitOfWork{
		repo:         r,
		users:        users,
		transactions: append([]domain.Transaction(nil), r.transactions...),
	}, nil
}

type memoryUnitOfWork struct {
	repo         *memoryRepo
	users        map[uuid.UUID]domain.User
	transactions []domain.Transaction
	done         bool
}

func (u *memoryUnitOfWork) ConnectionExists(ctx context.Context, userID, friendID uuid.UUID) (bool, error) {
	return u.repo.ConnectionExists(ctx, userID, friendID)
}

func (u *memoryUnitOfWork) LockUsers(ctx context.Context, userIDs ...uuid.UUID) (map[uuid.UUID]*domain.User, error) {
	locked := make(map[uuid.UUID]*domain.User, len(userIDs))
	for _, id := range userIDs {
		user, ok := u.users[id]
		if !ok {
			return nil, store.ErrUserNotFound
		}
		locked[id] = &user
	}
	return locked, nil
}

func (u *memoryUnitOfWork) UpdateUserBalance(ctx context.Context, userID uuid.UUID, balance decimal.Decimal) error {
	if u.repo.balanceErrFor == userID {
		return errors.New("balance write failed")
	}
	user, ok := u.users[userID]
	if !ok {
		return store.ErrUserNotFound
	}
	user.Balance = balance
	u.users[userID] = user
	return nil
}

func (u *memoryUnitOfWork) AppendTransaction(ctx context.Context, tx *domain.Transaction) error {
	if u.repo.appendErr != nil {
		return u.repo.appendErr
	}
	u.repo.mu.Lock()
	tx.CreatedAt = u.repo.tick()
	u.repo.mu.Unlock()
	u.transactions = append(u.transactions, *tx)
	return nil
}

func (u *memoryUnitOfWork) Commit(ctx context.Context) error {
	if u.done {
		return errors.New("unit of work already finished")
	}
	if u.repo.commitErr != nil {
		return u.repo.commitErr
	}
	u.repo.mu.Lock()
	u.repo.users = u.users
	u.repo.transactions = u.transactions
	u.repo.mu.Unlock()
	u.done = true
	u.repo.txMu.Unlock()
	return nil
}

func (u *memoryUnitOfWork) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	u.repo.txMu.Unlock()
	return nil
}

// recordingPublisher captures published routing keys.
type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (p *recordingPublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	return p.err
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}
