/**
 * @description
 * Ledger models. A Transaction is written once by a completed transfer and is
 * never updated or deleted afterwards.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxDescriptionLength bounds Transaction.Description, matching the column width.
const MaxDescriptionLength = 255

// Transaction maps to the `transactions` table.
type Transaction struct {
	ID          uuid.UUID       `json:"id"`
	SenderID    uuid.UUID       `json:"sender_id"`
	ReceiverID  uuid.UUID       `json:"receiver_id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	CreatedAt   time.Time       `json:"created_at"`
}

// TransferRequest is the payload for sending money to a connected user.
type TransferRequest struct {
	ReceiverID  uuid.UUID       `json:"receiver_id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// UserTransaction is the sender-side view of a ledger entry.
type UserTransaction struct {
	CreatedAt   time.Time       `json:"created_at"`
	FriendName  string          `json:"friend_name"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// AdminTransaction is the system-wide view of a ledger entry.
type AdminTransaction struct {
	CreatedAt    time.Time       `json:"created_at"`
	SenderName   string          `json:"sender_name"`
	ReceiverName string          `json:"receiver_name"`
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
}

// TransferPageResponse backs the transfer screen: who the user can pay and
// what they have already sent.
type TransferPageResponse struct {
	Balance      decimal.Decimal   `json:"balance"`
	Friends      []FriendResponse  `json:"friends"`
	Transactions []UserTransaction `json:"transactions"`
}
