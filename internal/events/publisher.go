// Package events publishes operation-accepted notifications for downstream
// consumers. Publishing is best-effort: a failed publish never rolls back a
// ledger mutation.
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// OperationAccepted is emitted after every successful ledger mutation.
type OperationAccepted struct {
	TransactionID string          `json:"transaction_id"`
	SourceAccount string          `json:"source_account"`
	TargetAccount string          `json:"target_account,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	OperationType string          `json:"operation_type"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// Publisher delivers events to an external sink.
type Publisher interface {
	Publish(ctx context.Context, event OperationAccepted) error
}

// Nop discards every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, OperationAccepted) error { return nil }
