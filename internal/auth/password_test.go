package auth

import "testing"

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("pw")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if hash == "pw" {
		t.Fatal("hash must not equal the plaintext password")
	}
	if !CheckPassword(hash, "pw") {
		t.Error("correct password rejected")
	}
	if CheckPassword(hash, "wrong") {
		t.Error("wrong password accepted")
	}
}
