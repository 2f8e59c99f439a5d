// Command client talks to the ledger server. One subcommand per protocol
// operation, plus "demo" which runs a scripted two-account session.
//
//	client open <account>
//	client deposit <account> <amount>
//	client withdraw <account> <amount>
//	client transfer <sender> <receiver> <amount>
//	client balance <account>
//	client history
//	client account-history <account>
//	client demo
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/op/go-logging"
	"github.com/shopspring/decimal"

	"bankledger/internal/bank"
	"bankledger/internal/client"
	"bankledger/internal/config"
)

var log = logging.MustGetLogger("client")

func usage() {
	fmt.Fprintln(os.Stderr, "usage: client <open|deposit|withdraw|transfer|balance|history|account-history|demo> [args]")
	os.Exit(2)
}

func main() {
	_ = godotenv.Load()

	v, err := config.Init()
	if err != nil {
		log.Criticalf("action: config | result: fail | error: %v", err)
		os.Exit(1)
	}
	if err := config.InitLogger(v.GetString("log.level")); err != nil {
		log.Criticalf("action: init_logger | result: fail | error: %v", err)
		os.Exit(1)
	}

	if len(os.Args) < 2 {
		usage()
	}
	command := os.Args[1]
	args := os.Args[2:]

	c, err := client.Connect(v.GetString("server.address"), log)
	if err != nil {
		os.Exit(1)
	}
	defer c.Close()

	if err := run(c, command, args); err != nil {
		log.Errorf("action: %s | result: fail | error: %v", command, err)
		os.Exit(1)
	}
}

func run(c *client.Client, command string, args []string) error {
	switch command {
	case "open":
		account := wantArgs(args, 1)[0]
		id, err := c.CreateAccount(account)
		if err != nil {
			return err
		}
		fmt.Printf("account %s created, tx %s\n", account, id)
	case "deposit":
		a := wantArgs(args, 2)
		id, err := c.Deposit(a[0], mustAmount(a[1]))
		if err != nil {
			return err
		}
		fmt.Printf("deposited %s to %s, tx %s\n", a[1], a[0], id)
	case "withdraw":
		a := wantArgs(args, 2)
		id, err := c.Withdraw(a[0], mustAmount(a[1]))
		if err != nil {
			return err
		}
		fmt.Printf("withdrew %s from %s, tx %s\n", a[1], a[0], id)
	case "transfer":
		a := wantArgs(args, 3)
		id, err := c.Transfer(a[0], a[1], mustAmount(a[2]))
		if err != nil {
			return err
		}
		fmt.Printf("transferred %s from %s to %s, tx %s\n", a[2], a[0], a[1], id)
	case "balance":
		account := wantArgs(args, 1)[0]
		balance, err := c.GetBalance(account)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s\n", account, balance)
	case "history":
		history, err := c.GetHistory()
		if err != nil {
			return err
		}
		printHistory(history)
	case "account-history":
		account := wantArgs(args, 1)[0]
		history, err := c.GetHistoryForAccount(account)
		if err != nil {
			return err
		}
		printHistory(history)
	case "demo":
		return demo(c)
	default:
		usage()
	}
	return nil
}

func wantArgs(args []string, n int) []string {
	if len(args) != n {
		usage()
	}
	return args
}

func mustAmount(s string) decimal.Decimal {
	amount, err := decimal.NewFromString(s)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad amount %q: %v\n", s, err)
		os.Exit(2)
	}
	return amount
}

func printHistory(history []bank.Operation) {
	for _, op := range history {
		if op.TargetAccount != "" {
			fmt.Printf("%s  %-14s %s -> %s  %s\n", op.ID, op.Type, op.SourceAccount, op.TargetAccount, op.Amount)
			continue
		}
		fmt.Printf("%s  %-14s %s  %s\n", op.ID, op.Type, op.SourceAccount, op.Amount)
	}
}

// demo opens two accounts, moves money between them, and prints the
// resulting balances and histories.
func demo(c *client.Client) error {
	for _, account := range []string{"Alice", "Bob"} {
		if _, err := c.CreateAccount(account); err != nil {
			return err
		}
	}
	if _, err := c.Deposit("Alice", decimal.RequireFromString("100.0")); err != nil {
		return err
	}
	if _, err := c.Transfer("Alice", "Bob", decimal.RequireFromString("50.0")); err != nil {
		return err
	}
	for _, account := range []string{"Alice", "Bob"} {
		balance, err := c.GetBalance(account)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s\n", account, balance)
	}
	history, err := c.GetHistory()
	if err != nil {
		return err
	}
	printHistory(history)
	return nil
}
