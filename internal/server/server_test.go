package server

import (
	"bufio"
	"errors"
	"net"
	"sync"
	"testing"

	"github.com/op/go-logging"
	"github.com/shopspring/decimal"

	"bankledger/internal/actor"
	"bankledger/internal/bank"
	"bankledger/internal/client"
	"bankledger/internal/protocol"
)

var testLog = logging.MustGetLogger("server-test")

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// startServer runs a server on an ephemeral port and returns its address.
func startServer(t *testing.T) string {
	t.Helper()
	proc := actor.New(bank.New(), nil, testLog)
	proc.Start()

	srv := New("127.0.0.1:0", proc, testLog)
	if err := srv.Listen(); err != nil {
		t.Fatal(err)
	}
	go func() {
		_ = srv.Serve()
	}()
	t.Cleanup(func() {
		srv.Shutdown()
		proc.Stop()
	})
	return srv.Addr().String()
}

func connect(t *testing.T, address string) *client.Client {
	t.Helper()
	c, err := client.Connect(address, testLog)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestEndToEndScenario(t *testing.T) {
	address := startServer(t)
	c := connect(t, address)

	if _, err := c.CreateAccount("Alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.CreateAccount("Bob"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Deposit("Alice", dec("100.0")); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Transfer("Alice", "Bob", dec("50.0")); err != nil {
		t.Fatal(err)
	}

	aliceBalance, err := c.GetBalance("Alice")
	if err != nil {
		t.Fatal(err)
	}
	bobBalance, err := c.GetBalance("Bob")
	if err != nil {
		t.Fatal(err)
	}
	if !aliceBalance.Equal(dec("50.0")) || !bobBalance.Equal(dec("50.0")) {
		t.Fatalf("balances: alice %s bob %s, want 50/50", aliceBalance, bobBalance)
	}

	history, err := c.GetHistory()
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 4 {
		t.Fatalf("history len = %d, want 4", len(history))
	}
	wantTypes := []bank.OperationType{bank.OpCreateAccount, bank.OpCreateAccount, bank.OpDeposit, bank.OpTransfer}
	for i, want := range wantTypes {
		if history[i].Type != want {
			t.Fatalf("history[%d].Type = %s, want %s", i, history[i].Type, want)
		}
	}

	aliceHistory, err := c.GetHistoryForAccount("Alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(aliceHistory) != 3 {
		t.Fatalf("alice history len = %d, want 3", len(aliceHistory))
	}
	bobHistory, err := c.GetHistoryForAccount("Bob")
	if err != nil {
		t.Fatal(err)
	}
	if len(bobHistory) != 2 {
		t.Fatalf("bob history len = %d, want 2", len(bobHistory))
	}
}

func TestServerErrorsAreBranchable(t *testing.T) {
	address := startServer(t)
	c := connect(t, address)

	if _, err := c.CreateAccount("Alice"); err != nil {
		t.Fatal(err)
	}

	_, err := c.CreateAccount("Alice")
	var serverErr *client.ServerError
	if !errors.As(err, &serverErr) || serverErr.Type != protocol.RespAccountCreatedError {
		t.Fatalf("duplicate create: %v", err)
	}

	_, err = c.Deposit("Alice", dec("-5"))
	if !errors.As(err, &serverErr) || serverErr.Type != protocol.RespDepositError {
		t.Fatalf("negative deposit: %v", err)
	}

	if _, err := c.Deposit("Alice", dec("30")); err != nil {
		t.Fatal(err)
	}
	_, err = c.Withdraw("Alice", dec("100"))
	if !errors.As(err, &serverErr) || serverErr.Type != protocol.RespInsufficientFunds {
		t.Fatalf("overdraft: %v", err)
	}
	if !serverErr.Balance.Equal(dec("30")) || !serverErr.Amount.Equal(dec("100")) {
		t.Fatalf("overdraft fields: %+v", serverErr)
	}

	_, err = c.Transfer("Alice", "Alice", dec("5"))
	if !errors.As(err, &serverErr) || serverErr.Type != protocol.RespSameAccountError {
		t.Fatalf("same-account transfer: %v", err)
	}

	// connection must still be usable after business errors
	balance, err := c.GetBalance("Alice")
	if err != nil {
		t.Fatal(err)
	}
	if !balance.Equal(dec("30")) {
		t.Fatalf("balance = %s, want 30", balance)
	}
}

func TestHandshakeRequired(t *testing.T) {
	address := startServer(t)

	conn, err := net.Dial("tcp", address)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	// skipping ping: the first real request must be rejected
	if err := protocol.WriteMessage(conn, protocol.Request{Type: protocol.ReqGetHistory}); err != nil {
		t.Fatal(err)
	}
	resp, err := protocol.ReadResponse(bufio.NewReader(conn))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Type != protocol.RespError {
		t.Fatalf("response = %s, want error", resp)
	}
}

func TestMalformedFrameKeepsConnection(t *testing.T) {
	address := startServer(t)

	conn, err := net.Dial("tcp", address)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	reader := bufio.NewReader(conn)

	if err := protocol.WriteMessage(conn, protocol.Request{Type: protocol.ReqPing}); err != nil {
		t.Fatal(err)
	}
	resp, err := protocol.ReadResponse(reader)
	if err != nil || resp.Type != protocol.RespHandShakeEstablished {
		t.Fatalf("handshake: %v %s", err, resp)
	}

	if _, err := conn.Write([]byte("this is not json\n")); err != nil {
		t.Fatal(err)
	}
	resp, err = protocol.ReadResponse(reader)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Type != protocol.RespDeserializeError {
		t.Fatalf("response = %s, want deserialize_error", resp)
	}

	// and the session continues
	if err := protocol.WriteMessage(conn, protocol.Request{Type: protocol.ReqOpenAccount, Account: "Alice"}); err != nil {
		t.Fatal(err)
	}
	resp, err = protocol.ReadResponse(reader)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Type != protocol.RespAccountCreated {
		t.Fatalf("response = %s, want account_created", resp)
	}
}

func TestCloseConnection(t *testing.T) {
	address := startServer(t)

	conn, err := net.Dial("tcp", address)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	reader := bufio.NewReader(conn)

	if err := protocol.WriteMessage(conn, protocol.Request{Type: protocol.ReqPing}); err != nil {
		t.Fatal(err)
	}
	if _, err := protocol.ReadResponse(reader); err != nil {
		t.Fatal(err)
	}

	if err := protocol.WriteMessage(conn, protocol.Request{Type: protocol.ReqCloseConnection}); err != nil {
		t.Fatal(err)
	}
	// no response; the server shuts down both directions
	if _, err := protocol.ReadResponse(reader); err == nil {
		t.Fatal("expected end of stream after close_connection")
	}
}

// Many connections issuing interleaved mutations against shared accounts:
// the server-side order must be a single sequential history that reproduces
// the observed balances, with no negative balance and no lost update.
func TestConcurrentConnections(t *testing.T) {
	address := startServer(t)

	setup := connect(t, address)
	accounts := []string{"A", "B", "C"}
	for _, account := range accounts {
		if _, err := setup.CreateAccount(account); err != nil {
			t.Fatal(err)
		}
		if _, err := setup.Deposit(account, dec("100")); err != nil {
			t.Fatal(err)
		}
	}

	const clients = 6
	const opsPerClient = 40
	var wg sync.WaitGroup
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := client.Connect(address, testLog)
			if err != nil {
				t.Error(err)
				return
			}
			defer c.Close()
			for j := 0; j < opsPerClient; j++ {
				from := accounts[(i+j)%len(accounts)]
				to := accounts[(i+j+1)%len(accounts)]
				switch j % 3 {
				case 0:
					_, err = c.Deposit(from, dec("4.5"))
				case 1:
					_, err = c.Withdraw(from, dec("6"))
				case 2:
					_, err = c.Transfer(from, to, dec("9.75"))
				}
				var serverErr *client.ServerError
				if err != nil && !errors.As(err, &serverErr) {
					t.Errorf("client %d op %d: %v", i, j, err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	history, err := setup.GetHistory()
	if err != nil {
		t.Fatal(err)
	}
	replayed := bank.Replay(history)

	total := decimal.Zero
	for _, account := range accounts {
		balance, err := setup.GetBalance(account)
		if err != nil {
			t.Fatal(err)
		}
		if balance.IsNegative() {
			t.Fatalf("negative balance for %s: %s", account, balance)
		}
		total = total.Add(balance)

		replayedBalance, err := replayed.GetBalance(account)
		if err != nil {
			t.Fatal(err)
		}
		if !balance.Equal(replayedBalance) {
			t.Fatalf("%s: observed %s != replayed %s", account, balance, replayedBalance)
		}
	}

	netFlow := decimal.Zero
	for _, op := range history {
		switch op.Type {
		case bank.OpDeposit:
			netFlow = netFlow.Add(op.Amount)
		case bank.OpWithdraw:
			netFlow = netFlow.Sub(op.Amount)
		}
	}
	if !total.Equal(netFlow) {
		t.Fatalf("total balance %s != net deposits minus withdrawals %s", total, netFlow)
	}
}
