package token

import (
	"encoding/base64"
	"errors"
	"testing"
)

func TestDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		memberID int64
		secret   string
	}{
		{name: "simple", memberID: 42, secret: "s3cret"},
		{name: "negative id", memberID: -7, secret: "x"},
		{name: "empty secret", memberID: 1, secret: ""},
		{name: "large id", memberID: 9223372036854775807, secret: "edge"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			memberID, secret, err := Decode(Encode(tt.memberID, tt.secret))
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if memberID != tt.memberID {
				t.Errorf("Expected member id %d, got %d", tt.memberID, memberID)
			}
			if secret != tt.secret {
				t.Errorf("Expected secret %q, got %q", tt.secret, secret)
			}
		})
	}
}

func TestDecodeUnpadded(t *testing.T) {
	raw := base64.RawURLEncoding.EncodeToString([]byte("5:abc"))

	memberID, secret, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if memberID != 5 || secret != "abc" {
		t.Errorf("Expected (5, abc), got (%d, %s)", memberID, secret)
	}
}

func TestDecodeInvalid(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{name: "not base64", token: "%%%"},
		{name: "empty", token: ""},
		{name: "no colon", token: base64.URLEncoding.EncodeToString([]byte("42"))},
		{name: "two colons", token: base64.URLEncoding.EncodeToString([]byte("42:a:b"))},
		{name: "non-integer id", token: base64.URLEncoding.EncodeToString([]byte("abc:secret"))},
		{name: "non-utf8 payload", token: base64.URLEncoding.EncodeToString([]byte{0xff, 0xfe, ':', 'x'})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode(tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Expected ErrInvalidToken, got %v", err)
			}
		})
	}
}
