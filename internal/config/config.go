// Package config loads configuration from environment variables and an
// optional config.yaml, and sets up the process logger.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/op/go-logging"
	"github.com/spf13/viper"
)

// Init builds the viper instance. Environment variables use the BANK_ prefix
// and take precedence over config.yaml; nested keys map dots to underscores
// (server.address -> BANK_SERVER_ADDRESS).
func Init() (*viper.Viper, error) {
	v := viper.New()

	v.AutomaticEnv()
	v.SetEnvPrefix("bank")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("server.address", "127.0.0.1:3333")
	v.SetDefault("log.level", "info")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "ledger.operations")

	// config file is optional, env variables cover everything
	v.SetConfigFile("./config.yaml")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigParseError); ok {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}
	return v, nil
}

// Brokers returns the kafka broker list. A YAML list comes through as-is;
// an env value (BANK_KAFKA_BROKERS) is comma-separated, which viper does not
// split on its own.
func Brokers(v *viper.Viper) []string {
	var out []string
	for _, entry := range v.GetStringSlice("kafka.brokers") {
		for _, broker := range strings.Split(entry, ",") {
			if broker = strings.TrimSpace(broker); broker != "" {
				out = append(out, broker)
			}
		}
	}
	return out
}

// InitLogger configures the go-logging backend with the given level for the
// whole process.
func InitLogger(logLevel string) error {
	baseBackend := logging.NewLogBackend(os.Stdout, "", 0)
	format := logging.MustStringFormatter(
		`%{time:2006-01-02 15:04:05} %{level:.5s}     %{message}`,
	)
	backendFormatter := logging.NewBackendFormatter(baseBackend, format)

	backendLeveled := logging.AddModuleLevel(backendFormatter)
	logLevelCode, err := logging.LogLevel(logLevel)
	if err != nil {
		return err
	}
	backendLeveled.SetLevel(logLevelCode, "")

	logging.SetBackend(backendLeveled)
	return nil
}
