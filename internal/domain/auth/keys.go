// Package auth verifies the API keys clients present to the bridge.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
)

var (
	// ErrInvalidKey is returned when no configured key matches.
	ErrInvalidKey = errors.New("invalid api key")

	// ErrUnknownHashType is returned for stored hashes in an unrecognized format.
	ErrUnknownHashType = errors.New("unknown hash type")
)

// Hash formats accepted in configuration.
const (
	HashArgon2id = "argon2id"
	HashSHA256   = "sha256"
	HashUnknown  = "unknown"
)

// argon2idParams follow the OWASP minimum for Argon2id.
var argon2idParams = &argon2id.Params{
	Memory:      47 * 1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// Key is a named API key as stored in configuration.
type Key struct {
	Name string
	Hash string
}

// KeyRing holds the configured keys. The zero KeyRing accepts nothing.
type KeyRing struct {
	keys []Key
}

// NewKeyRing validates every stored hash and returns the ring.
func NewKeyRing(keys []Key) (*KeyRing, error) {
	for _, k := range keys {
		if DetectHashType(k.Hash) == HashUnknown {
			return nil, fmt.Errorf("key %q: %w", k.Name, ErrUnknownHashType)
		}
	}
	return &KeyRing{keys: append([]Key(nil), keys...)}, nil
}

// Len returns the number of configured keys.
func (r *KeyRing) Len() int {
	return len(r.keys)
}

// Verify returns the name of the key matching raw, or ErrInvalidKey.
func (r *KeyRing) Verify(raw string) (string, error) {
	if raw == "" {
		return "", ErrInvalidKey
	}
	for _, k := range r.keys {
		ok, err := VerifyKey(raw, k.Hash)
		if err != nil {
			continue
		}
		if ok {
			return k.Name, nil
		}
	}
	return "", ErrInvalidKey
}

// HashKeyArgon2id returns an Argon2id PHC string for raw, e.g.
// $argon2id$v=19$m=48128,t=1,p=1$<salt>$<hash>.
func HashKeyArgon2id(raw string) (string, error) {
	return argon2id.CreateHash(raw, argon2idParams)
}

// HashKeySHA256 returns the prefixed SHA-256 form "sha256:<hex>".
func HashKeySHA256(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return HashSHA256 + ":" + hex.EncodeToString(sum[:])
}

// DetectHashType classifies a stored hash.
func DetectHashType(stored string) string {
	switch {
	case strings.HasPrefix(stored, "$argon2id$"):
		return HashArgon2id
	case strings.HasPrefix(stored, HashSHA256+":"):
		return HashSHA256
	case len(stored) == sha256.Size*2 && isHex(stored):
		return HashSHA256
	default:
		return HashUnknown
	}
}

func isHex(s string) bool {
	_, err := hex.DecodeString(s)
	return err == nil
}

// VerifyKey reports whether raw matches stored. SHA-256 comparisons are
// constant time.
func VerifyKey(raw, stored string) (bool, error) {
	switch DetectHashType(stored) {
	case HashArgon2id:
		return compareArgon2id(raw, stored)
	case HashSHA256:
		want := strings.ToLower(strings.TrimPrefix(stored, HashSHA256+":"))
		got := strings.TrimPrefix(HashKeySHA256(raw), HashSHA256+":")
		return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1, nil
	default:
		return false, ErrUnknownHashType
	}
}

// compareArgon2id converts panics from malformed parameters (t=0, p=0) in
// the argon2 package into errors.
func compareArgon2id(raw, stored string) (match bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			match = false
			err = fmt.Errorf("invalid argon2id hash parameters: %v", r)
		}
	}()
	return argon2id.ComparePasswordAndHash(raw, stored)
}
