// Package api defines the core interfaces and data structures for cashsync.
package api

import (
	"context"

	"github.com/shopspring/decimal"
)

// ParsedTransaction is a notification classified into a ledger transaction.
// A value returned without error always has every field populated.
type ParsedTransaction struct {
	// Amount is positive for money received and negative for money spent.
	Amount decimal.Decimal
	// Payee is the counterparty display name.
	Payee string
	Memo  string
	// AccountID is the ledger account the transaction posts against.
	AccountID string
	// CategoryID is optional; an empty value is sent as null.
	CategoryID string
	// Rule names the classifier rule that produced the transaction.
	Rule string
}

// Thread is a single notification in the mailbox.
type Thread interface {
	ID() string
	Subject() string
	// FirstMessageBody returns the plain-text body of the first message.
	// Implementations may fetch it lazily.
	FirstMessageBody(ctx context.Context) (string, error)
}

// Inbox lists notifications by label and moves them between labels.
type Inbox interface {
	Threads(ctx context.Context, label string) ([]Thread, error)
	RemoveLabel(ctx context.Context, t Thread, label string) error
	MarkRead(ctx context.Context, t Thread) error
	AddLabel(ctx context.Context, t Thread, label string) error
}

// Submitter sends a parsed transaction to the ledger.
type Submitter interface {
	Submit(ctx context.Context, txn ParsedTransaction) error
}

// Categories maps payee names to ledger category ids.
type Categories map[string]string

// CategoryLookup returns the category id for a payee.
// Returns an empty string if the payee is not mapped.
func (c Categories) CategoryLookup(payee string) string {
	if id, exists := c[payee]; exists {
		return id
	}
	return ""
}
