package config

import (
	"os"
	"testing"
)

func TestGetEnv(t *testing.T) {
	if err := os.Setenv("TEST_CONFIG_KEY", "custom"); err != nil {
		t.Fatalf("Failed to set env var: %v", err)
	}
	defer os.Unsetenv("TEST_CONFIG_KEY")

	if got := getEnv("TEST_CONFIG_KEY", "default"); got != "custom" {
		t.Errorf("Expected custom, got %s", got)
	}
	if got := getEnv("TEST_CONFIG_MISSING", "default"); got != "default" {
		t.Errorf("Expected default, got %s", got)
	}
}

func TestGetEnvEmptyFallsBack(t *testing.T) {
	if err := os.Setenv("TEST_CONFIG_EMPTY", ""); err != nil {
		t.Fatalf("Failed to set env var: %v", err)
	}
	defer os.Unsetenv("TEST_CONFIG_EMPTY")

	if got := getEnv("TEST_CONFIG_EMPTY", "default"); got != "default" {
		t.Errorf("Expected default for empty value, got %s", got)
	}
}

func TestParseHours(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int64
	}{
		{name: "valid", input: "12", want: 12},
		{name: "default on garbage", input: "abc", want: 3},
		{name: "default on empty", input: "", want: 3},
		{name: "default on zero", input: "0", want: 3},
		{name: "default on negative", input: "-1", want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseHours(tt.input); got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got)
			}
		})
	}
}
