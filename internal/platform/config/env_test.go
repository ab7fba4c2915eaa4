package config

import "testing"

type envTarget struct {
	Name string `env:"DUET_SPACE_CONFIG_TEST_NAME"`
	Port int    `env:"DUET_SPACE_CONFIG_TEST_PORT" envDefault:"8080"`
}

func TestParseEnvAppliesValuesAndDefaults(t *testing.T) {
	t.Setenv("DUET_SPACE_CONFIG_TEST_NAME", "rendezvous")

	var target envTarget
	if err := ParseEnv(&target); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if target.Name != "rendezvous" {
		t.Fatalf("name = %q, want rendezvous", target.Name)
	}
	if target.Port != 8080 {
		t.Fatalf("port = %d, want default 8080", target.Port)
	}
}

func TestParseEnvRejectsMalformedValues(t *testing.T) {
	t.Setenv("DUET_SPACE_CONFIG_TEST_PORT", "not-a-number")

	var target envTarget
	if err := ParseEnv(&target); err == nil {
		t.Fatal("expected error for malformed int")
	}
}
