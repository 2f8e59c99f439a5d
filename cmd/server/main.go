package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/op/go-logging"

	"bankledger/internal/actor"
	"bankledger/internal/bank"
	"bankledger/internal/config"
	"bankledger/internal/events"
	"bankledger/internal/events/kafka"
	"bankledger/internal/server"
)

var log = logging.MustGetLogger("server")

func main() {
	// .env is optional, real env variables win either way
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
	log.Infof("action: config | result: success | address: %s | log_level: %s",
		v.GetString("server.address"), v.GetString("log.level"))

	var publisher events.Publisher = events.Nop{}
	if brokers := config.Brokers(v); len(brokers) > 0 {
		kafkaPublisher := kafka.NewPublisher(brokers, v.GetString("kafka.topic"))
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
		log.Infof("action: init_publisher | result: success | brokers: %v | topic: %s",
			brokers, v.GetString("kafka.topic"))
	}

	proc := actor.New(bank.New(), publisher, log)
	proc.Start()

	srv := server.New(v.GetString("server.address"), proc, log)

	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		sig := <-ch
		log.Infof("action: shutdown | result: in_progress | signal: %v", sig)
		srv.Shutdown()
	}()

	if err := srv.Run(); err != nil {
		log.Criticalf("action: serve | result: fail | error: %v", err)
		os.Exit(1)
	}
	// wait for in-flight handlers before stopping the actor
	srv.Shutdown()
	proc.Stop()
	log.Infof("action: shutdown | result: success")
}
