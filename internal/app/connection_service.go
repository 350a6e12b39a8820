package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paymybuddy/payment-service/internal/domain"
	"github.com/paymybuddy/payment-service/internal/store"
	"github.com/paymybuddy/payment-service/pkg/logger"
	"github.com/paymybuddy/payment-service/pkg/rabbitmq"
)

// ConnectionService manages directed "may send money to" edges. Adding a
// connection never creates the reverse edge.
type ConnectionService struct {
	repo   store.Repository
	events eventSink
}

// NewConnectionService creates a new connection service instance.
func NewConnectionService(repo store.Repository, producer rabbitmq.Publisher, exchange string) *ConnectionService {
	return &ConnectionService{
		repo:   repo,
		events: newEventSink(producer, exchange),
	}
}

// Add connects user to the account registered under friendEmail. The email is
// free-form user input, so every rejection is a Result; only a nil user or a
// storage failure is returned as an error.
func (s *ConnectionService) Add(ctx context.Context, user *domain.User, friendEmail domain.Email) (domain.Result, error) {
	if user == nil {
		return domain.Result{}, fmt.Errorf("%w: add connection without a user", ErrInvalidArgument)
	}
	if friendEmail.IsBlank() {
		return domain.Fail(msgEmailRequired), nil
	}
	email := friendEmail.Canonical()
	if !email.Valid() {
		return domain.Fail(msgInvalidEmail), nil
	}

	friend, err := s.repo.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return domain.Fail(fmt.Sprintf(msgUnknownUser, email)), nil
		}
		return domain.Result{}, fmt.Errorf("failed to resolve friend by email: %w", err)
	}
	if friend.ID == user.ID {
		return domain.Fail(msgAddSelf), nil
	}

	exists, err := s.repo.ConnectionExists(ctx, user.ID, friend.ID)
	if err != nil {
		return domain.Result{}, fmt.Errorf("failed to check connection: %w", err)
	}
	if exists {
		return domain.Fail(fmt.Sprintf(msgAlreadyAdded, friend.Name)), nil
	}

	conn := &domain.Connection{
		ID:       uuid.New(),
		UserID:   user.ID,
		FriendID: friend.ID,
	}
	if err := s.repo.CreateConnection(ctx, conn); err != nil {
		if errors.Is(err, store.ErrDuplicateConnection) {
			return domain.Fail(fmt.Sprintf(msgAlreadyAdded, friend.Name)), nil
		}
		return domain.Result{}, fmt.Errorf("failed to create connection: %w", err)
	}

	logger.Log.Info("connection added",
		logger.Stringer("user_id", user.ID),
		logger.Stringer("friend_id", friend.ID),
	)
	s.events.publish(ctx, domain.EventConnectionAdded, domain.ConnectionAddedEvent{
		UserID:    user.ID,
		FriendID:  friend.ID,
		Timestamp: time.Now().UTC(),
	})
	return domain.Ok(fmt.Sprintf(msgConnectionAdded, friend.Name)), nil
}

// Friends returns the users userID may send money to, in the order the
// connections were created. A connection pointing at a missing user is an
// integrity error.
func (s *ConnectionService) Friends(ctx context.Context, userID uuid.UUID) ([]domain.User, error) {
	connections, err := s.repo.FindConnectionsByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	if len(connections) == 0 {
		return []domain.User{}, nil
	}

	ids := make([]uuid.UUID, 0, len(connections))
	for _, c := range connections {
		ids = append(ids, c.FriendID)
	}
	byID, err := loadUsers(ctx, s.repo, ids)
	if err != nil {
		return nil, err
	}

	friends := make([]domain.User, 0, len(connections))
	for _, c := range connections {
		friend, ok := byID[c.FriendID]
		if !ok {
			return nil, fmt.Errorf("%w: connection %s references missing user %s", ErrIntegrity, c.ID, c.FriendID)
		}
		friends = append(friends, friend)
	}
	return friends, nil
}

// loadUsers fetches users by id and indexes them.
func loadUsers(ctx context.Context, repo store.Repository, ids []uuid.UUID) (map[uuid.UUID]domain.User, error) {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	unique := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	users, err := repo.FindUsersByIDs(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	byID := make(map[uuid.UUID]domain.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return byID, nil
}
