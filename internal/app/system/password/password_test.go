package password_test

import (
	"strings"
	"testing"

	"github.com/openrsvp/backstage/internal/app/system/password"
)

func TestIsValid(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"empty", "", false},
		{"too short", "abc123", false},
		{"long enough but no digit", "abcdefghij", false},
		{"long enough but no letter", "1234567890", false},
		{"letters and digits", "abcdefghi1", true},
		{"symbols do not count as letters", "!!!!!!!!!!1", false},
		{"mixed with symbols", "pass-word-99", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := password.IsValid(tt.in); got != tt.want {
				t.Errorf("IsValid(%q): got %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestGenerate(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		p, err := password.Generate()
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if !password.IsValid(p) {
			t.Errorf("generated password %q fails the strength policy", p)
		}
		if strings.ContainsAny(p, "Il1O0") {
			t.Errorf("generated password %q contains ambiguous characters", p)
		}
		if seen[p] {
			t.Errorf("generated password %q repeated", p)
		}
		seen[p] = true
	}
}

func TestBcryptRoundTrip(t *testing.T) {
	enc := password.NewBcrypt()

	hash, err := enc.Hash("correct-horse-9")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "correct-horse-9" {
		t.Fatal("hash must not equal the plaintext")
	}
	if !enc.Matches("correct-horse-9", hash) {
		t.Error("Matches should accept the original plaintext")
	}
	if enc.Matches("wrong-horse-9", hash) {
		t.Error("Matches should reject a different plaintext")
	}
	if enc.Matches("correct-horse-9", "not-a-bcrypt-hash") {
		t.Error("Matches should reject a malformed hash")
	}
}
