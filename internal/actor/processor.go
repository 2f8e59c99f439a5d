// Package actor serializes all ledger access onto a single worker goroutine.
// Connection handlers submit requests and block on a per-request reply
// channel; only the worker ever touches the bank, so every mutation across
// the whole server forms one total order without locks. That order is the
// canonical log order.
package actor

import (
	"context"
	"errors"
	"time"

	"github.com/op/go-logging"
	"github.com/shopspring/decimal"

	"bankledger/internal/bank"
	"bankledger/internal/events"
	"bankledger/internal/protocol"
)

// queueSize bounds the submission channel. FIFO order is what matters;
// a full queue applies backpressure to connection goroutines.
const queueSize = 1024

type envelope struct {
	req   protocol.Request
	reply chan protocol.Response
}

// Processor is the single logical owner of one bank instance.
type Processor struct {
	bank      *bank.Bank
	publisher events.Publisher
	requests  chan envelope
	done      chan struct{}
	log       *logging.Logger
}

// New wires a processor around the given bank. The bank must not be touched
// by anyone else once the processor starts.
func New(b *bank.Bank, publisher events.Publisher, log *logging.Logger) *Processor {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Processor{
		bank:      b,
		publisher: publisher,
		requests:  make(chan envelope, queueSize),
		done:      make(chan struct{}),
		log:       log,
	}
}

// Start launches the worker goroutine.
func (p *Processor) Start() {
	go p.run()
}

// Stop drains the queue and waits for the worker to exit. No Submit may be
// in flight or issued after Stop.
func (p *Processor) Stop() {
	close(p.requests)
	<-p.done
}

func (p *Processor) run() {
	defer close(p.done)
	for env := range p.requests {
		env.reply <- p.apply(env.req)
	}
}

// Submit enqueues the request and blocks until the worker has applied it.
// Requests are applied strictly in enqueue order.
func (p *Processor) Submit(req protocol.Request) protocol.Response {
	reply := make(chan protocol.Response, 1)
	p.requests <- envelope{req: req, reply: reply}
	return <-reply
}

func (p *Processor) apply(req protocol.Request) protocol.Response {
	switch req.Type {
	case protocol.ReqPing:
		return protocol.Response{Type: protocol.RespHandShakeEstablished}
	case protocol.ReqOpenAccount:
		return p.openAccount(req.Account)
	case protocol.ReqDeposit:
		return p.deposit(req.Account, req.Amount)
	case protocol.ReqWithdraw:
		return p.withdraw(req.Account, req.Amount)
	case protocol.ReqTransfer:
		return p.transfer(req.Sender, req.Receiver, req.Amount)
	case protocol.ReqGetBalance:
		return p.getBalance(req.Account)
	case protocol.ReqGetHistory:
		return protocol.Response{Type: protocol.RespHistory, Operations: p.bank.GetHistory()}
	case protocol.ReqGetHistoryForAccount:
		return p.getAccountHistory(req.Account)
	default:
		p.log.Errorf("action: apply | result: fail | error: unknown request type %q", req.Type)
		return protocol.Response{Type: protocol.RespError, Message: "unknown request type"}
	}
}

func (p *Processor) openAccount(account string) protocol.Response {
	id, err := p.bank.CreateAccount(account)
	if err != nil {
		p.log.Infof("action: open_account | result: fail | account: %s | error: %v", account, err)
		return protocol.Response{Type: protocol.RespAccountCreatedError, Message: err.Error()}
	}
	p.log.Infof("action: open_account | result: success | account: %s | tx: %s", account, id)
	p.publish(id, account, "", decimal.Zero, bank.OpCreateAccount)
	return protocol.Response{Type: protocol.RespAccountCreated, TransactionID: id}
}

func (p *Processor) deposit(account string, amount decimal.Decimal) protocol.Response {
	id, err := p.bank.Deposit(account, amount)
	if err != nil {
		p.log.Infof("action: deposit | result: fail | account: %s | amount: %s | error: %v",
			account, amount, err)
		return errorResponse(err, protocol.RespDepositError)
	}
	p.log.Infof("action: deposit | result: success | account: %s | amount: %s | tx: %s",
		account, amount, id)
	p.publish(id, account, "", amount, bank.OpDeposit)
	return protocol.Response{Type: protocol.RespDepositSuccess, TransactionID: id}
}

func (p *Processor) withdraw(account string, amount decimal.Decimal) protocol.Response {
	id, err := p.bank.Withdraw(account, amount)
	if err != nil {
		p.log.Infof("action: withdraw | result: fail | account: %s | amount: %s | error: %v",
			account, amount, err)
		return errorResponse(err, protocol.RespWithdrawalError)
	}
	p.log.Infof("action: withdraw | result: success | account: %s | amount: %s | tx: %s",
		account, amount, id)
	p.publish(id, account, "", amount, bank.OpWithdraw)
	return protocol.Response{Type: protocol.RespWithdrawSuccess, TransactionID: id}
}

func (p *Processor) transfer(sender, receiver string, amount decimal.Decimal) protocol.Response {
	id, err := p.bank.Transfer(sender, receiver, amount)
	if err != nil {
		p.log.Infof("action: transfer | result: fail | sender: %s | receiver: %s | amount: %s | error: %v",
			sender, receiver, amount, err)
		return errorResponse(err, protocol.RespError)
	}
	p.log.Infof("action: transfer | result: success | sender: %s | receiver: %s | amount: %s | tx: %s",
		sender, receiver, amount, id)
	p.publish(id, sender, receiver, amount, bank.OpTransfer)
	return protocol.Response{Type: protocol.RespTransferSuccess, TransactionID: id}
}

func (p *Processor) getBalance(account string) protocol.Response {
	balance, err := p.bank.GetBalance(account)
	if err != nil {
		return protocol.Response{Type: protocol.RespError, Message: err.Error()}
	}
	return protocol.Response{Type: protocol.RespBalance, Balance: balance}
}

func (p *Processor) getAccountHistory(account string) protocol.Response {
	history, err := p.bank.GetAccountHistory(account)
	if err != nil {
		return protocol.Response{Type: protocol.RespError, Message: err.Error()}
	}
	return protocol.Response{Type: protocol.RespHistory, Operations: history}
}

// errorResponse maps a bank error to its response variant. Insufficient funds
// and same-account transfers keep their structured fields on the wire; every
// other kind falls back to the operation's error variant.
func errorResponse(err error, fallback protocol.ResponseType) protocol.Response {
	var bankErr *bank.Error
	if errors.As(err, &bankErr) {
		switch bankErr.Kind {
		case bank.InsufficientFunds:
			return protocol.Response{
				Type:    protocol.RespInsufficientFunds,
				Message: bankErr.Error(),
				Account: bankErr.Account,
				Amount:  bankErr.Amount,
				Balance: bankErr.Balance,
			}
		case bank.SameAccountTransfer:
			return protocol.Response{
				Type:    protocol.RespSameAccountError,
				Message: bankErr.Error(),
				Account: bankErr.Account,
			}
		}
	}
	return protocol.Response{Type: fallback, Message: err.Error()}
}

func (p *Processor) publish(id bank.TransactionID, source, target string,
	amount decimal.Decimal, opType bank.OperationType) {
	event := events.OperationAccepted{
		TransactionID: string(id),
		SourceAccount: source,
		TargetAccount: target,
		Amount:        amount,
		OperationType: string(opType),
		OccurredAt:    time.Now().UTC(),
	}
	if err := p.publisher.Publish(context.Background(), event); err != nil {
		p.log.Warningf("action: publish_event | result: fail | tx: %s | error: %v", id, err)
	}
}
