package bank

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionID identifies one accepted operation. IDs are unique for the
// lifetime of the server and their generation order is the canonical log order.
type TransactionID string

// OperationType tags a log entry with the kind of mutation it records.
type OperationType string

const (
	OpCreateAccount OperationType = "create_account"
	OpDeposit       OperationType = "deposit"
	OpWithdraw      OperationType = "withdraw"
	OpTransfer      OperationType = "transfer"
)

// Operation is one immutable entry of the bank's append-only log.
// TargetAccount is set only for transfers.
type Operation struct {
	ID            TransactionID   `json:"id"`
	SourceAccount string          `json:"source_account"`
	TargetAccount string          `json:"target_account,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Type          OperationType   `json:"operation_type"`
}

// IDGenerator produces the next TransactionID. The bank calls it exactly once
// per accepted operation.
type IDGenerator func() TransactionID

// UUIDGenerator is the default IDGenerator.
func UUIDGenerator() TransactionID {
	return TransactionID(uuid.NewString())
}
