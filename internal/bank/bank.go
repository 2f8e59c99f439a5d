// Package bank implements the in-memory ledger: named accounts, their
// balances, and the immutable operation log. It is a pure state machine with
// no I/O and no internal locking; the processing actor is its only owner and
// serializes every call.
package bank

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Bank owns the account balances, the ordered operation log, and a
// per-account index of transaction ids referencing each account.
type Bank struct {
	accounts       map[string]decimal.Decimal
	history        []Operation
	byID           map[TransactionID]int
	accountHistory map[string][]TransactionID
	nextID         IDGenerator
}

// New returns an empty bank using UUIDGenerator for transaction ids.
func New() *Bank {
	return NewWithGenerator(UUIDGenerator)
}

// NewWithGenerator returns an empty bank with a caller-supplied id source.
func NewWithGenerator(gen IDGenerator) *Bank {
	return &Bank{
		accounts:       make(map[string]decimal.Decimal),
		byID:           make(map[TransactionID]int),
		accountHistory: make(map[string][]TransactionID),
		nextID:         gen,
	}
}

// record appends an accepted operation to the log and to the history index of
// every account it references. Must be called once per successful mutation.
func (b *Bank) record(op Operation) {
	b.byID[op.ID] = len(b.history)
	b.history = append(b.history, op)
	b.accountHistory[op.SourceAccount] = append(b.accountHistory[op.SourceAccount], op.ID)
	// keyed on the operation type, not the target string: the empty string is
	// a valid account name
	if op.Type == OpTransfer {
		b.accountHistory[op.TargetAccount] = append(b.accountHistory[op.TargetAccount], op.ID)
	}
}

// CreateAccount registers a new account with a zero balance.
func (b *Bank) CreateAccount(account string) (TransactionID, error) {
	if _, ok := b.accounts[account]; ok {
		return "", errDuplicate(account)
	}
	b.accounts[account] = decimal.Zero
	id := b.nextID()
	b.record(Operation{
		ID:            id,
		SourceAccount: account,
		Amount:        decimal.Zero,
		Type:          OpCreateAccount,
	})
	return id, nil
}

// Deposit credits amount to the account. Amount must be positive.
func (b *Bank) Deposit(account string, amount decimal.Decimal) (TransactionID, error) {
	balance, ok := b.accounts[account]
	if !ok {
		return "", errNotFound(account)
	}
	if amount.Cmp(decimal.Zero) <= 0 {
		return "", errNegative(account, amount)
	}
	b.accounts[account] = balance.Add(amount)
	id := b.nextID()
	b.record(Operation{
		ID:            id,
		SourceAccount: account,
		Amount:        amount,
		Type:          OpDeposit,
	})
	return id, nil
}

// Withdraw debits amount from the account. The balance never goes negative.
func (b *Bank) Withdraw(account string, amount decimal.Decimal) (TransactionID, error) {
	balance, ok := b.accounts[account]
	if !ok {
		return "", errNotFound(account)
	}
	if amount.Cmp(decimal.Zero) <= 0 {
		return "", errNegative(account, amount)
	}
	if balance.Cmp(amount) < 0 {
		return "", errInsufficient(account, amount, balance)
	}
	b.accounts[account] = balance.Sub(amount)
	id := b.nextID()
	b.record(Operation{
		ID:            id,
		SourceAccount: account,
		Amount:        amount,
		Type:          OpWithdraw,
	})
	return id, nil
}

// Transfer moves amount from sender to receiver as one indivisible step and
// logs a single operation indexed under both accounts.
func (b *Bank) Transfer(sender, receiver string, amount decimal.Decimal) (TransactionID, error) {
	if sender == receiver {
		return "", errSameAccount(sender)
	}
	senderBalance, ok := b.accounts[sender]
	if !ok {
		return "", errNotFound(sender)
	}
	receiverBalance, ok := b.accounts[receiver]
	if !ok {
		return "", errNotFound(receiver)
	}
	if amount.Cmp(decimal.Zero) <= 0 {
		return "", errNegative(sender, amount)
	}
	if senderBalance.Cmp(amount) < 0 {
		return "", errInsufficient(sender, amount, senderBalance)
	}
	b.accounts[sender] = senderBalance.Sub(amount)
	b.accounts[receiver] = receiverBalance.Add(amount)
	id := b.nextID()
	b.record(Operation{
		ID:            id,
		SourceAccount: sender,
		TargetAccount: receiver,
		Amount:        amount,
		Type:          OpTransfer,
	})
	return id, nil
}

// GetBalance returns the current balance of the account.
func (b *Bank) GetBalance(account string) (decimal.Decimal, error) {
	balance, ok := b.accounts[account]
	if !ok {
		return decimal.Zero, errNotFound(account)
	}
	return balance, nil
}

// GetHistory returns a copy of the full operation log in acceptance order.
func (b *Bank) GetHistory() []Operation {
	out := make([]Operation, len(b.history))
	copy(out, b.history)
	return out
}

// GetAccountHistory returns the operations referencing the account, as source
// or target, in acceptance order.
func (b *Bank) GetAccountHistory(account string) ([]Operation, error) {
	if _, ok := b.accounts[account]; !ok {
		return nil, errNotFound(account)
	}
	ids := b.accountHistory[account]
	out := make([]Operation, 0, len(ids))
	for _, id := range ids {
		out = append(out, b.history[b.byID[id]])
	}
	return out, nil
}

// GetOperationByID looks up a logged operation by its transaction id.
func (b *Bank) GetOperationByID(id TransactionID) (Operation, bool) {
	i, ok := b.byID[id]
	if !ok {
		return Operation{}, false
	}
	return b.history[i], true
}

// Replay builds a fresh bank by applying each operation's effect in order,
// carrying the recorded transaction ids instead of generating new ones. The
// log is produced by this package and assumed internally consistent; an
// inconsistent log is a programming error and panics.
func Replay(ops []Operation) *Bank {
	target := NewWithGenerator(func() TransactionID {
		panic("bank: replay must not generate ids")
	})
	for _, op := range ops {
		target.apply(op)
	}
	return target
}

func (b *Bank) apply(op Operation) {
	switch op.Type {
	case OpCreateAccount:
		if _, ok := b.accounts[op.SourceAccount]; ok {
			panic(fmt.Sprintf("bank: replayed create of existing account %q", op.SourceAccount))
		}
		b.accounts[op.SourceAccount] = decimal.Zero
	case OpDeposit:
		b.accounts[op.SourceAccount] = b.mustBalance(op.SourceAccount).Add(op.Amount)
	case OpWithdraw:
		b.accounts[op.SourceAccount] = b.mustBalance(op.SourceAccount).Sub(op.Amount)
	case OpTransfer:
		b.accounts[op.SourceAccount] = b.mustBalance(op.SourceAccount).Sub(op.Amount)
		b.accounts[op.TargetAccount] = b.mustBalance(op.TargetAccount).Add(op.Amount)
	default:
		panic(fmt.Sprintf("bank: replayed unknown operation type %q", op.Type))
	}
	b.record(op)
}

func (b *Bank) mustBalance(account string) decimal.Decimal {
	balance, ok := b.accounts[account]
	if !ok {
		panic(fmt.Sprintf("bank: replayed operation on unknown account %q", account))
	}
	return balance
}
