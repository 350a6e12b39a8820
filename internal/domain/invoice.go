package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Invoice is a billing summary computed from a user's sent transactions.
// Invoices are not persisted.
type Invoice struct {
	InvoiceID    int64           `json:"invoice_id"`
	UserID       uuid.UUID       `json:"user_id"`
	Transactions []Transaction   `json:"transactions"`
	Amount       decimal.Decimal `json:"amount"`
}
