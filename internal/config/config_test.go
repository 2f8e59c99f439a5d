package config

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefaults(t *testing.T) {
	v, err := Init()
	if err != nil {
		t.Fatal(err)
	}
	if got := v.GetString("server.address"); got != "127.0.0.1:3333" {
		t.Fatalf("server.address = %s, want 127.0.0.1:3333", got)
	}
	if got := v.GetString("log.level"); got != "info" {
		t.Fatalf("log.level = %s, want info", got)
	}
	if got := Brokers(v); len(got) != 0 {
		t.Fatalf("brokers = %v, want none", got)
	}
}

func TestEnvOverridesDefaults(t *testing.T) {
	t.Setenv("BANK_SERVER_ADDRESS", "0.0.0.0:4444")
	v, err := Init()
	if err != nil {
		t.Fatal(err)
	}
	if got := v.GetString("server.address"); got != "0.0.0.0:4444" {
		t.Fatalf("server.address = %s, want 0.0.0.0:4444", got)
	}
}

func TestBrokersFromEnvAreCommaSeparated(t *testing.T) {
	t.Setenv("BANK_KAFKA_BROKERS", "a:9092,b:9092, c:9092")
	v, err := Init()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a:9092", "b:9092", "c:9092"}
	if diff := cmp.Diff(want, Brokers(v)); diff != "" {
		t.Fatalf("brokers mismatch (-want +got):\n%s", diff)
	}
}
