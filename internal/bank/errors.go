package bank

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind discriminates the business error variants.
type Kind int

const (
	// AccountDuplication: CreateAccount on an existing name.
	AccountDuplication Kind = iota
	// AccountNotFound: any operation referencing an unknown name.
	AccountNotFound
	// AmountNegative: amount <= 0 on deposit, withdraw or transfer.
	AmountNegative
	// InsufficientFunds: withdrawal or transfer exceeds the available balance.
	InsufficientFunds
	// SameAccountTransfer: transfer source equals target.
	SameAccountTransfer
)

// Error is the single tagged business error type. Amount and Balance are set
// only for the kinds that carry them, so callers can branch programmatically
// instead of parsing messages.
type Error struct {
	Kind    Kind
	Account string
	Amount  decimal.Decimal
	Balance decimal.Decimal
}

func (e *Error) Error() string {
	switch e.Kind {
	case AccountDuplication:
		return fmt.Sprintf("account %q already exists", e.Account)
	case AccountNotFound:
		return fmt.Sprintf("account %q does not exist", e.Account)
	case AmountNegative:
		return fmt.Sprintf("amount must be positive: account %q amount %s", e.Account, e.Amount)
	case InsufficientFunds:
		return fmt.Sprintf("insufficient funds for account %q: balance %s requested %s",
			e.Account, e.Balance, e.Amount)
	case SameAccountTransfer:
		return fmt.Sprintf("cannot transfer to the same account %q", e.Account)
	}
	return fmt.Sprintf("unknown bank error for account %q", e.Account)
}

func errDuplicate(account string) *Error {
	return &Error{Kind: AccountDuplication, Account: account}
}

func errNotFound(account string) *Error {
	return &Error{Kind: AccountNotFound, Account: account}
}

func errNegative(account string, amount decimal.Decimal) *Error {
	return &Error{Kind: AmountNegative, Account: account, Amount: amount}
}

func errInsufficient(account string, amount, balance decimal.Decimal) *Error {
	return &Error{Kind: InsufficientFunds, Account: account, Amount: amount, Balance: balance}
}

func errSameAccount(account string) *Error {
	return &Error{Kind: SameAccountTransfer, Account: account}
}
