/**
 * @description
 * UserService owns registration, profile updates and password authentication.
 * Registration and profile updates share one validation routine; the mode and
 * the currently stored record decide which uniqueness checks apply.
 *
 * Validation layers:
 * - Structural problems (nil request, blank name or email, missing password on
 *   registration) are fatal and returned as ErrInvalidArgument.
 * - Business problems are returned as a rejected domain.Result. The first
 *   failing check wins.
 *
 * @dependencies
 * - internal/store: user directory access.
 * - pkg/rabbitmq: user.registered events.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"regexp"
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

const nameMaxLength = 100

var namePattern = regexp.MustCompile(`^[A-Za-zÀ-ÖØ-öø-ÿ0-9 -]+$`)

type validationMode int

const (
	modeCreate validationMode = iota
	modeUpdate
)

// identityCandidate is normalized input awaiting validation.
type identityCandidate struct {
	name     string
	email    domain.Email
	password string
}

// UserService provides registration, profile and lookup operations.
type UserService struct {
	repo   store.Repository
	hasher PasswordHasher
	events eventSink
}

// NewUserService creates a new user service instance.
func NewUserService(repo store.Repository, hasher PasswordHasher, producer rabbitmq.Publisher, exchange string) *UserService {
	return &UserService{
		repo:   repo,
		hasher: hasher,
		events: newEventSink(producer, exchange),
	}
}

// ResolveByID loads a user. A missing user is reported as store.ErrUserNotFound.
func (s *UserService) ResolveByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user %s: %w", userID, err)
	}
	return user, nil
}

// ResolveByEmail loads a user by email, ignoring case and surrounding spaces.
func (s *UserService) ResolveByEmail(ctx context.Context, email domain.Email) (*domain.User, error) {
	user, err := s.repo.FindUserByEmail(ctx, email.Canonical())
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// CurrentUser loads the authenticated user. Failure to find them is fatal.
func (s *UserService) CurrentUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrCurrentUserNotFound, userID)
		}
		return nil, fmt.Errorf("failed to load current user: %w", err)
	}
	return user, nil
}

// ListByRole lists users holding role.
func (s *UserService) ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	users, err := s.repo.FindUsersByRole(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("failed to list users by role: %w", err)
	}
	return users, nil
}

// Register validates req and creates a USER account with a zero balance.
func (s *UserService) Register(ctx context.Context, req *domain.RegisterRequest) (domain.Result, error) {
	if req == nil {
		return domain.Result{}, fmt.Errorf("%w: registration request is nil", ErrInvalidArgument)
	}
	candidate := identityCandidate{
		name:     strings.TrimSpace(req.Name),
		email:    req.Email.Canonical(),
		password: req.Password,
	}

	result, err := s.validateIdentity(ctx, candidate, modeCreate, nil)
	if err != nil || !result.Success {
		return result, err
	}

	user, result, err := s.createUser(ctx, candidate, domain.RoleUser)
	if err != nil || !result.Success {
		return result, err
	}

	logger.Log.Info("user registered", logger.Stringer("user_id", user.ID))
	s.events.publish(ctx, domain.EventUserRegistered, domain.UserRegisteredEvent{
		UserID:    user.ID,
		Email:     user.Email,
		Timestamp: time.Now().UTC(),
	})
	return domain.Ok(msgRegistered), nil
}

// UpdateProfile changes the name, email and optionally the password of
// current. A blank password keeps the existing one. Balance and role are
// never modified.
func (s *UserService) UpdateProfile(ctx context.Context, current *domain.User, req *domain.UpdateProfileRequest) (domain.Result, error) {
	if current == nil {
		return domain.Result{}, fmt.Errorf("%w: profile update without a current user", ErrCurrentUserNotFound)
	}
	if req == nil {
		return domain.Result{}, fmt.Errorf("%w: profile update request is nil", ErrInvalidArgument)
	}
	candidate := identityCandidate{
		name:     strings.TrimSpace(req.Name),
		email:    req.Email.Canonical(),
		password: req.Password,
	}

	result, err := s.validateIdentity(ctx, candidate, modeUpdate, current)
	if err != nil || !result.Success {
		return result, err
	}

	updated := *current
	updated.Name = candidate.name
	updated.Email = candidate.email
	if strings.TrimSpace(candidate.password) != "" {
		hash, err := s.hasher.Hash(candidate.password)
		if err != nil {
			return domain.Result{}, fmt.Errorf("failed to hash password: %w", err)
		}
		updated.PasswordHash = hash
	}

	if err := s.repo.UpdateUserProfile(ctx, &updated); err != nil {
		if rejected, ok := duplicateResult(err); ok {
			return rejected, nil
		}
		return domain.Result{}, fmt.Errorf("failed to update user %s: %w", current.ID, err)
	}

	current.Name = updated.Name
	current.Email = updated.Email
	current.PasswordHash = updated.PasswordHash
	return domain.Ok(msgProfileUpdated), nil
}

// Authenticate verifies email and password. Unknown email and wrong password
// produce the same rejected Result.
func (s *UserService) Authenticate(ctx context.Context, req domain.LoginRequest) (*domain.User, domain.Result, error) {
	email := req.Email.Canonical()
	if email.IsBlank() || req.Password == "" {
		return nil, domain.Fail(msgBadCredentials), nil
	}

	user, err := s.repo.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, domain.Fail(msgBadCredentials), nil
		}
		return nil, domain.Result{}, fmt.Errorf("failed to load user for login: %w", err)
	}
	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		return nil, domain.Fail(msgBadCredentials), nil
	}
	return user, domain.Ok(msgLoggedIn), nil
}

// EnsureAdmin creates an ADMIN account with the given identity unless a user
// with that email already exists.
func (s *UserService) EnsureAdmin(ctx context.Context, name string, email domain.Email, password string) error {
	candidate := identityCandidate{
		name:     strings.TrimSpace(name),
		email:    email.Canonical(),
		password: password,
	}
	exists, err := s.repo.ExistsUserByEmail(ctx, candidate.email)
	if err != nil {
		return fmt.Errorf("failed to check admin account: %w", err)
	}
	if exists {
		return nil
	}

	result, err := s.validateIdentity(ctx, candidate, modeCreate, nil)
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("%w: admin account rejected: %s", ErrInvalidArgument, result.Message)
	}

	user, result, err := s.createUser(ctx, candidate, domain.RoleAdmin)
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("%w: admin account rejected: %s", ErrInvalidArgument, result.Message)
	}
	logger.Log.Info("admin account created", logger.Stringer("user_id", user.ID))
	return nil
}

func (s *UserService) createUser(ctx context.Context, candidate identityCandidate, role domain.Role) (*domain.User, domain.Result, error) {
	hash, err := s.hasher.Hash(candidate.password)
	if err != nil {
		return nil, domain.Result{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.New(),
		Role:         role,
		Name:         candidate.name,
		Email:        candidate.email,
		PasswordHash: hash,
		Balance:      decimal.Zero,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if rejected, ok := duplicateResult(err); ok {
			return nil, rejected, nil
		}
		return nil, domain.Result{}, fmt.Errorf("failed to create user: %w", err)
	}
	return user, domain.Ok(msgRegistered), nil
}

// validateIdentity checks candidate in precedence order. A Result with
// Success set means the candidate may be persisted.
func (s *UserService) validateIdentity(ctx context.Context, candidate identityCandidate, mode validationMode, current *domain.User) (domain.Result, error) {
	if candidate.name == "" {
		return domain.Result{}, fmt.Errorf("%w: name is blank", ErrInvalidArgument)
	}
	if candidate.email.IsBlank() {
		return domain.Result{}, fmt.Errorf("%w: email is blank", ErrInvalidArgument)
	}
	if mode == modeCreate && strings.TrimSpace(candidate.password) == "" {
		return domain.Result{}, fmt.Errorf("%w: password is blank", ErrInvalidArgument)
	}
	if mode == modeUpdate && current == nil {
		return domain.Result{}, fmt.Errorf("%w: no current record for update", ErrCurrentUserNotFound)
	}

	nameChanged := mode == modeCreate || candidate.name != current.Name
	emailChanged := mode == modeCreate || candidate.email != current.Email.Canonical()
	passwordGiven := strings.TrimSpace(candidate.password) != ""

	if mode == modeUpdate && !nameChanged && !emailChanged && !passwordGiven {
		return domain.Fail(msgNothingChanged), nil
	}

	if utf8.RuneCountInString(candidate.name) > nameMaxLength {
		return domain.Fail(msgNameTooLong), nil
	}
	if !namePattern.MatchString(candidate.name) {
		return domain.Fail(msgInvalidName), nil
	}
	if nameChanged {
		taken, err := s.repo.ExistsUserByName(ctx, candidate.name)
		if err != nil {
			return domain.Result{}, fmt.Errorf("failed to check name uniqueness: %w", err)
		}
		if taken {
			return domain.Fail(msgNameTaken), nil
		}
	}

	if !candidate.email.Valid() {
		return domain.Fail(msgInvalidEmail), nil
	}
	if emailChanged {
		taken, err := s.repo.ExistsUserByEmail(ctx, candidate.email)
		if err != nil {
			return domain.Result{}, fmt.Errorf("failed to check email uniqueness: %w", err)
		}
		if taken {
			return domain.Fail(msgEmailTaken), nil
		}
	}

	if passwordGiven && !passwordIsStrong(candidate.password) {
		return domain.Fail(msgWeakPassword), nil
	}

	return domain.Ok(""), nil
}

// duplicateResult maps unique-constraint failures raised by concurrent writes
// to the Result the uniqueness checks would have produced.
func duplicateResult(err error) (domain.Result, bool) {
	switch {
	case errors.Is(err, store.ErrDuplicateName):
		return domain.Fail(msgNameTaken), true
	case errors.Is(err, store.ErrDuplicateEmail):
		return domain.Fail(msgEmailTaken), true
	default:
		return domain.Result{}, false
	}
}
