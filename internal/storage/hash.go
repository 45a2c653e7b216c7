package storage

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// bcryptCost trades hashing latency against brute-force resistance.
	// Cost 10 is roughly 60ms per hash; raise to 12 for hardening.
	bcryptCost  = 10
	bcryptLimit = 72
)

// HashAPIKey generates a bcrypt hash of the API key for storage. Only the
// hash is ever persisted.
//
// Bcrypt has a 72-byte input limit; longer keys are pre-hashed with SHA-256
// so the full key still contributes to the digest.
func HashAPIKey(apiKey string) (string, error) {
	if apiKey == "" {
		return "", ErrKeyNil
	}

	hash, err := bcrypt.GenerateFromPassword(bcryptInput(apiKey), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash API key: %w", err)
	}

	return string(hash), nil
}

// CompareAPIKeyHash checks an API key against a stored bcrypt hash.
// Returns false for any error condition (empty inputs, invalid hash format).
func CompareAPIKeyHash(hash, apiKey string) bool {
	if hash == "" || apiKey == "" {
		return false
	}

	return bcrypt.CompareHashAndPassword([]byte(hash), bcryptInput(apiKey)) == nil
}

// bcryptInput prepares a key for bcrypt, pre-hashing when it exceeds the
// 72-byte limit. Hashing and comparison must use the same preparation.
func bcryptInput(apiKey string) []byte {
	if len(apiKey) > bcryptLimit {
		sum := sha256.Sum256([]byte(apiKey))

		return sum[:]
	}

	return []byte(apiKey)
}
