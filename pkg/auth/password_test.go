package auth

import "testing"

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if hash == "correct horse battery staple" {
		t.Fatalf("hash should not equal plaintext")
	}
	if !CheckPassword("correct horse battery staple", hash) {
		t.Fatalf("expected password to validate")
	}
	if CheckPassword("wrong password", hash) {
		t.Fatalf("expected wrong password to fail")
	}
}

func TestCheckPasswordRejectsGarbageHash(t *testing.T) {
	if CheckPassword("anything", "not-a-bcrypt-hash") {
		t.Fatalf("expected malformed hash to fail validation")
	}
}
