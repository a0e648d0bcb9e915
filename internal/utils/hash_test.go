package utils

import (
	"testing"
)

func TestHashString(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "simple string",
			input: "hello world",
		},
		{
			name:  "empty string",
			input: "",
		},
		{
			name:  "raw key",
			input: "sk-1234567890abcdef",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash := HashString(tt.input)

			// SHA256 produces 64 hex characters
			if len(hash) != 64 {
				t.Errorf("HashString() length = %d, want 64", len(hash))
			}

			if !IsKeyHash(hash) {
				t.Errorf("IsKeyHash(%s) = false", hash)
			}
		})
	}
}

func TestKeyHash(t *testing.T) {
	const raw = "sk-test"
	hashed := HashString(raw)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"raw key is hashed", raw, hashed},
		{"hash passes through", hashed, hashed},
		{"non key passes through", "plain", "plain"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KeyHash(tt.input); got != tt.want {
				t.Errorf("KeyHash(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsKeyHash(t *testing.T) {
	if IsKeyHash("sk-abc") {
		t.Error("raw key reported as hash")
	}
	if IsKeyHash("zz" + HashString("x")[2:]) {
		t.Error("non hex string reported as hash")
	}
}

func TestKeyAlias(t *testing.T) {
	full := FullKeyAlias("user-1", "laptop")
	if full != "user-1:laptop" {
		t.Errorf("FullKeyAlias() = %s", full)
	}
	if got := ShortKeyAlias("user-1", full); got != "laptop" {
		t.Errorf("ShortKeyAlias() = %s, want laptop", got)
	}
	if got := ShortKeyAlias("user-2", full); got != full {
		t.Errorf("ShortKeyAlias() with other owner = %s, want unchanged", got)
	}
}
