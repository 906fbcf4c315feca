package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestHashPasswordAndCheckPasswordBcrypt(t *testing.T) {
	hash, err := HashPassword("s3cretpass")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if hash == "" || hash == "s3cretpass" {
		t.Fatalf("unexpected hash %q", hash)
	}
	if !CheckPassword("s3cretpass", hash) {
		t.Fatalf("expected bcrypt password check to pass")
	}
	if CheckPassword("wrong", hash) {
		t.Fatalf("expected bcrypt password check to fail")
	}
	if CheckPassword("s3cretpass", "not-a-bcrypt-hash") {
		t.Fatalf("expected malformed hash to fail")
	}
}

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		password string
		ok       bool
	}{
		{"journal2024", true},
		{"short1", false},
		{"allletters", false},
		{"1234567890", false},
		{strings.Repeat("a1", 40), false},
	}
	for _, tc := range cases {
		err := ValidatePassword(tc.password)
		if tc.ok && err != nil {
			t.Fatalf("ValidatePassword(%q) unexpected error: %v", tc.password, err)
		}
		if !tc.ok && !errors.Is(err, ErrWeakPassword) {
			t.Fatalf("ValidatePassword(%q) = %v, want ErrWeakPassword", tc.password, err)
		}
	}
}
