/**
 * @description
 * Core domain models for the payment service: users and the request shapes used
 * to register, update a profile and log in.
 *
 * @notes
 * - Balances use shopspring/decimal with two fractional digits. Floating point
 *   is never used for money.
 * - Request shapes share fields by embedding Identity and Email rather than
 *   through a type hierarchy.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Role is the authorization role of a user.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// MoneyScale is the number of fractional digits kept for amounts and balances.
const MoneyScale int32 = 2

// User maps to the `users` table.
type User struct {
	ID           uuid.UUID       `json:"id"`
	CreatedAt    time.Time       `json:"created_at"`
	Role         Role            `json:"role"`
	Name         string          `json:"name"`
	Email        Email           `json:"email"`
	PasswordHash string          `json:"-"`
	Balance      decimal.Decimal `json:"balance"`
}

// IsAdmin reports whether the user carries the ADMIN role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Identity holds the fields shared by registration and profile updates.
type Identity struct {
	Name  string `json:"name"`
	Email Email  `json:"email"`
}

// RegisterRequest is the payload for creating an account.
type RegisterRequest struct {
	Identity
	Password string `json:"password"`
}

// UpdateProfileRequest is the payload for changing a profile. A blank
// password means "keep the current password".
type UpdateProfileRequest struct {
	Identity
	Password string `json:"password"`
}

// LoginRequest is the payload for password authentication.
type LoginRequest struct {
	Email    Email  `json:"email"`
	Password string `json:"password"`
}

// ProfileResponse is the public view of a user.
type ProfileResponse struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Email     Email           `json:"email"`
	Role      Role            `json:"role"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

// Profile returns the public view of u.
func (u *User) Profile() ProfileResponse {
	return ProfileResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		Balance:   u.Balance,
		CreatedAt: u.CreatedAt,
	}
}
