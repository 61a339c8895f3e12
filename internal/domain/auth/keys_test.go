package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestHashKeyArgon2id_Verify(t *testing.T) {
	hash, err := HashKeyArgon2id("s3cret")
	if err != nil {
		t.Fatalf("HashKeyArgon2id() error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Fatalf("hash = %q, want PHC argon2id format", hash)
	}

	ok, err := VerifyKey("s3cret", hash)
	if err != nil || !ok {
		t.Errorf("VerifyKey(correct) = %v, %v", ok, err)
	}
	ok, err = VerifyKey("wrong", hash)
	if err != nil || ok {
		t.Errorf("VerifyKey(wrong) = %v, %v", ok, err)
	}
}

func TestVerifyKey_SHA256Forms(t *testing.T) {
	prefixed := HashKeySHA256("s3cret")
	bare := strings.TrimPrefix(prefixed, "sha256:")

	for _, stored := range []string{prefixed, bare, strings.ToUpper(bare)} {
		ok, err := VerifyKey("s3cret", stored)
		if err != nil || !ok {
			t.Errorf("VerifyKey(%q) = %v, %v; want match", stored, ok, err)
		}
	}
}

func TestDetectHashType(t *testing.T) {
	tests := []struct {
		stored string
		want   string
	}{
		{"$argon2id$v=19$m=48128,t=1,p=1$c2FsdA$aGFzaA", HashArgon2id},
		{"sha256:abc", HashSHA256},
		{strings.Repeat("a", 64), HashSHA256},
		{strings.Repeat("z", 64), HashUnknown},
		{"plaintext", HashUnknown},
		{"", HashUnknown},
	}
	for _, tt := range tests {
		if got := DetectHashType(tt.stored); got != tt.want {
			t.Errorf("DetectHashType(%q) = %q, want %q", tt.stored, got, tt.want)
		}
	}
}

func TestVerifyKey_MalformedArgon2idDoesNotPanic(t *testing.T) {
	_, err := VerifyKey("x", "$argon2id$v=19$m=0,t=0,p=0$c2FsdA$aGFzaA")
	if err == nil {
		t.Error("VerifyKey() with malformed parameters should fail")
	}
}

func TestKeyRing(t *testing.T) {
	ring, err := NewKeyRing([]Key{
		{Name: "ci", Hash: HashKeySHA256("ci-key")},
		{Name: "editor", Hash: HashKeySHA256("editor-key")},
	})
	if err != nil {
		t.Fatalf("NewKeyRing() error: %v", err)
	}
	if ring.Len() != 2 {
		t.Errorf("Len() = %d, want 2", ring.Len())
	}

	name, err := ring.Verify("editor-key")
	if err != nil || name != "editor" {
		t.Errorf("Verify(editor-key) = %q, %v", name, err)
	}
	if _, err := ring.Verify("nope"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Verify(nope) error = %v, want ErrInvalidKey", err)
	}
	if _, err := ring.Verify(""); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Verify(\"\") error = %v, want ErrInvalidKey", err)
	}
}

func TestNewKeyRing_RejectsUnknownHash(t *testing.T) {
	_, err := NewKeyRing([]Key{{Name: "bad", Hash: "plaintext"}})
	if !errors.Is(err, ErrUnknownHashType) {
		t.Errorf("NewKeyRing() error = %v, want ErrUnknownHashType", err)
	}
}
