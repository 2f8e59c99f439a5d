// Package protocol defines the request/response message set of the ledger
// wire protocol and its framing: one self-describing JSON document per
// message, newline-delimited.
package protocol

import (
	"fmt"

	"github.com/shopspring/decimal"

	"bankledger/internal/bank"
)

// RequestType discriminates request payload variants.
type RequestType string

const (
	ReqPing                 RequestType = "ping"
	ReqOpenAccount          RequestType = "open_account"
	ReqDeposit              RequestType = "deposit"
	ReqWithdraw             RequestType = "withdraw"
	ReqTransfer             RequestType = "transfer"
	ReqGetBalance           RequestType = "get_balance"
	ReqGetHistory           RequestType = "get_history"
	ReqGetHistoryForAccount RequestType = "get_history_for_account"
	ReqCloseConnection      RequestType = "close_connection"
)

// Request is one client message. Account is the subject of single-account
// operations; Sender/Receiver are set only for transfers.
type Request struct {
	Type     RequestType     `json:"type"`
	Account  string          `json:"account,omitempty"`
	Sender   string          `json:"sender,omitempty"`
	Receiver string          `json:"receiver,omitempty"`
	Amount   decimal.Decimal `json:"amount"`
}

// ResponseType discriminates response payload variants. Insufficient funds
// and same-account transfers get their own variants so clients can branch on
// them without parsing messages.
type ResponseType string

const (
	RespHandShakeEstablished ResponseType = "handshake_established"
	RespAccountCreated       ResponseType = "account_created"
	RespAccountCreatedError  ResponseType = "account_created_error"
	RespDepositSuccess       ResponseType = "deposit_success"
	RespDepositError         ResponseType = "deposit_error"
	RespWithdrawSuccess      ResponseType = "withdraw_success"
	RespWithdrawalError      ResponseType = "withdrawal_error"
	RespInsufficientFunds    ResponseType = "insufficient_funds"
	RespTransferSuccess      ResponseType = "transfer_success"
	RespSameAccountError     ResponseType = "same_account_error"
	RespBalance              ResponseType = "balance"
	RespHistory              ResponseType = "history"
	RespError                ResponseType = "error"
	RespDeserializeError     ResponseType = "deserialize_error"
)

// Response is one server message. Exactly one Response is written per
// Request, in request order.
type Response struct {
	Type          ResponseType       `json:"type"`
	TransactionID bank.TransactionID `json:"transaction_id,omitempty"`
	Message       string             `json:"message,omitempty"`
	Account       string             `json:"account,omitempty"`
	Amount        decimal.Decimal    `json:"amount"`
	Balance       decimal.Decimal    `json:"balance"`
	Operations    []bank.Operation   `json:"operations,omitempty"`
}

func (r Response) String() string {
	switch r.Type {
	case RespBalance:
		return fmt.Sprintf("%s(%s)", r.Type, r.Balance)
	case RespHistory:
		return fmt.Sprintf("%s(%d operations)", r.Type, len(r.Operations))
	case RespInsufficientFunds:
		return fmt.Sprintf("%s(account=%s balance=%s requested=%s)",
			r.Type, r.Account, r.Balance, r.Amount)
	default:
		if r.Message != "" {
			return fmt.Sprintf("%s(%s)", r.Type, r.Message)
		}
		return string(r.Type)
	}
}
