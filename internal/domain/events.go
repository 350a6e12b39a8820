package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Routing keys for events published on the service exchange.
const (
	EventUserRegistered    = "user.registered"
	EventConnectionAdded   = "connection.added"
	EventTransferCompleted = "transfer.completed"
)

// UserRegisteredEvent is published after a new account is persisted.
type UserRegisteredEvent struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     Email     `json:"email"`
	Timestamp time.Time `json:"timestamp"`
}

// ConnectionAddedEvent is published after a directed edge is created.
type ConnectionAddedEvent struct {
	UserID    uuid.UUID `json:"user_id"`
	FriendID  uuid.UUID `json:"friend_id"`
	Timestamp time.Time `json:"timestamp"`
}

// TransferCompletedEvent is published after a transfer commits.
type TransferCompletedEvent struct {
	TransactionID uuid.UUID       `json:"transaction_id"`
	SenderID      uuid.UUID       `json:"sender_id"`
	ReceiverID    uuid.UUID       `json:"receiver_id"`
	Amount        decimal.Decimal `json:"amount"`
	Timestamp     time.Time       `json:"timestamp"`
}
