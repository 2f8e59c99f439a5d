// Package client is the Go client for the ledger wire protocol: it dials the
// server, performs the mandatory ping handshake, and exposes one typed method
// per protocol operation with strict request/response alternation.
package client

import (
	"bufio"
	"fmt"
	"net"
	"time"

	"github.com/op/go-logging"
	"github.com/shopspring/decimal"

	"bankledger/internal/bank"
	"bankledger/internal/protocol"
)

const (
	connectRetries = 3
	retryInterval  = 2 * time.Second
)

// ErrBadHandshake reports a handshake reply other than
// handshake_established.
type ErrBadHandshake struct {
	Got protocol.ResponseType
}

func (e *ErrBadHandshake) Error() string {
	return fmt.Sprintf("bad handshake: received %s", e.Got)
}

// ServerError is a structured failure reported by the server. For
// insufficient_funds the Amount and Balance fields are populated so callers
// can branch without parsing the message.
type ServerError struct {
	Type    protocol.ResponseType
	Message string
	Account string
	Amount  decimal.Decimal
	Balance decimal.Decimal
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Type, e.Message)
	}
	return string(e.Type)
}

// UnexpectedResponseError reports a response whose variant matches neither
// the success nor the failure shape of the request that was sent.
type UnexpectedResponseError struct {
	Want protocol.ResponseType
	Got  protocol.ResponseType
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("unexpected response: want %s, got %s", e.Want, e.Got)
}

// Client is a single-connection ledger client. It is not safe for concurrent
// use: the protocol is strictly one request, one response.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
	log    *logging.Logger
}

// Connect dials the server with bounded retries and performs the handshake.
func Connect(address string, log *logging.Logger) (*Client, error) {
	var conn net.Conn
	var err error
	for attempt := 1; attempt <= connectRetries; attempt++ {
		log.Infof("action: connect | attempt: %d/%d | server: %v", attempt, connectRetries, address)
		conn, err = net.Dial("tcp", address)
		if err == nil {
			break
		}
		log.Warningf("action: connect | result: fail | attempt: %d/%d | error: %v",
			attempt, connectRetries, err)
		if attempt < connectRetries {
			time.Sleep(retryInterval)
		}
	}
	if err != nil {
		log.Criticalf("action: connect | result: fail_all_retries | server: %v | error: %v", address, err)
		return nil, err
	}

	c := &Client{conn: conn, reader: bufio.NewReader(conn), log: log}
	if err := c.handshake(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	log.Infof("action: connect | result: success | server: %v", address)
	return c, nil
}

func (c *Client) handshake() error {
	resp, err := c.roundTrip(protocol.Request{Type: protocol.ReqPing})
	if err != nil {
		return err
	}
	if resp.Type != protocol.RespHandShakeEstablished {
		return &ErrBadHandshake{Got: resp.Type}
	}
	return nil
}

// Close tells the server to drop the session, then closes the socket. No
// response is expected for close_connection.
func (c *Client) Close() error {
	_ = protocol.WriteMessage(c.conn, protocol.Request{Type: protocol.ReqCloseConnection})
	return c.conn.Close()
}

func (c *Client) roundTrip(req protocol.Request) (protocol.Response, error) {
	if err := protocol.WriteMessage(c.conn, req); err != nil {
		return protocol.Response{}, err
	}
	return protocol.ReadResponse(c.reader)
}

func serverError(resp protocol.Response) *ServerError {
	return &ServerError{
		Type:    resp.Type,
		Message: resp.Message,
		Account: resp.Account,
		Amount:  resp.Amount,
		Balance: resp.Balance,
	}
}

// transact runs one request expecting a transaction id back. failure is the
// operation's dedicated error variant; insufficient_funds and
// same_account_error are accepted for every operation that can produce them.
func (c *Client) transact(req protocol.Request, want, failure protocol.ResponseType) (bank.TransactionID, error) {
	resp, err := c.roundTrip(req)
	if err != nil {
		return "", err
	}
	switch resp.Type {
	case want:
		return resp.TransactionID, nil
	case failure, protocol.RespInsufficientFunds, protocol.RespSameAccountError, protocol.RespError:
		return "", serverError(resp)
	default:
		return "", &UnexpectedResponseError{Want: want, Got: resp.Type}
	}
}

// CreateAccount opens a new named account with a zero balance.
func (c *Client) CreateAccount(account string) (bank.TransactionID, error) {
	return c.transact(
		protocol.Request{Type: protocol.ReqOpenAccount, Account: account},
		protocol.RespAccountCreated, protocol.RespAccountCreatedError)
}

// Deposit credits amount to the account.
func (c *Client) Deposit(account string, amount decimal.Decimal) (bank.TransactionID, error) {
	return c.transact(
		protocol.Request{Type: protocol.ReqDeposit, Account: account, Amount: amount},
		protocol.RespDepositSuccess, protocol.RespDepositError)
}

// Withdraw debits amount from the account.
func (c *Client) Withdraw(account string, amount decimal.Decimal) (bank.TransactionID, error) {
	return c.transact(
		protocol.Request{Type: protocol.ReqWithdraw, Account: account, Amount: amount},
		protocol.RespWithdrawSuccess, protocol.RespWithdrawalError)
}

// Transfer moves amount from sender to receiver.
func (c *Client) Transfer(sender, receiver string, amount decimal.Decimal) (bank.TransactionID, error) {
	return c.transact(
		protocol.Request{Type: protocol.ReqTransfer, Sender: sender, Receiver: receiver, Amount: amount},
		protocol.RespTransferSuccess, protocol.RespError)
}

// GetBalance returns the current balance of the account.
func (c *Client) GetBalance(account string) (decimal.Decimal, error) {
	resp, err := c.roundTrip(protocol.Request{Type: protocol.ReqGetBalance, Account: account})
	if err != nil {
		return decimal.Zero, err
	}
	switch resp.Type {
	case protocol.RespBalance:
		return resp.Balance, nil
	case protocol.RespError:
		return decimal.Zero, serverError(resp)
	default:
		return decimal.Zero, &UnexpectedResponseError{Want: protocol.RespBalance, Got: resp.Type}
	}
}

// GetHistory returns the full operation log in acceptance order.
func (c *Client) GetHistory() ([]bank.Operation, error) {
	return c.history(protocol.Request{Type: protocol.ReqGetHistory})
}

// GetHistoryForAccount returns the operations referencing the account.
func (c *Client) GetHistoryForAccount(account string) ([]bank.Operation, error) {
	return c.history(protocol.Request{Type: protocol.ReqGetHistoryForAccount, Account: account})
}

func (c *Client) history(req protocol.Request) ([]bank.Operation, error) {
	resp, err := c.roundTrip(req)
	if err != nil {
		return nil, err
	}
	switch resp.Type {
	case protocol.RespHistory:
		return resp.Operations, nil
	case protocol.RespError:
		return nil, serverError(resp)
	default:
		return nil, &UnexpectedResponseError{Want: protocol.RespHistory, Got: resp.Type}
	}
}
