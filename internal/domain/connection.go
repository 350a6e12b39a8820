package domain

import (
	"time"

	"github.com/google/uuid"
)

// Connection is a directed edge: UserID may send money to FriendID.
// It maps to the `connections` table.
type Connection struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	FriendID  uuid.UUID `json:"friend_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ConnectionRequest is the payload for adding a friend by email.
type ConnectionRequest struct {
	Email Email `json:"email"`
}

// FriendResponse is the public view of a connected user.
type FriendResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email Email     `json:"email"`
}
