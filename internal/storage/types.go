package storage

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// API key format constants.
	randomBytesSize = 32
	apiKeyLength    = 76 // "herdbook_ak_" + 64 hex chars
	prefixLen       = 16 // Show "herdbook_ak_1234"
	suffixLen       = 4  // Show last 4 chars

	apiKeyPrefix = "herdbook_ak_"
)

var (
	// ErrKeyAlreadyExists is returned when attempting to add a key that already exists.
	ErrKeyAlreadyExists = errors.New("API key already exists")
	// ErrKeyNotFound is returned when attempting to operate on a non-existent key.
	ErrKeyNotFound = errors.New("API key not found")
	// ErrKeyNil is returned when a nil API key is provided.
	ErrKeyNil = errors.New("API key cannot be nil")
	// ErrKeyNameEmpty is returned when the key name is empty during key generation.
	ErrKeyNameEmpty = errors.New("key name cannot be empty")
	// ErrKeyStringEmpty is returned when key string is empty during parsing.
	ErrKeyStringEmpty = errors.New("key string cannot be empty")
	// ErrInvalidKeyFormat is returned when an API key doesn't match the expected format.
	ErrInvalidKeyFormat = errors.New("invalid API key format")
	// ErrInvalidKeyLength is returned when the API key length is incorrect.
	ErrInvalidKeyLength = errors.New("invalid API key length")
)

// APIKey represents an API key with its permissions.
type APIKey struct {
	ID          string     `json:"id"`
	Key         string     `json:"key"`
	Name        string     `json:"name"`
	Permissions []string   `json:"permissions"`
	CreatedAt   time.Time  `json:"createdAt"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	Active      bool       `json:"active"`
}

// APIKeyStore defines the interface for API key storage and retrieval.
type APIKeyStore interface {
	// FindByKey retrieves an API key by its key value
	FindByKey(ctx context.Context, key string) (*APIKey, bool)
	// Add stores a new API key
	Add(ctx context.Context, apiKey *APIKey) error
	// Update modifies an existing API key
	Update(ctx context.Context, apiKey *APIKey) error
	// Delete removes an API key
	Delete(ctx context.Context, keyID string) error
	// List returns all active API keys
	List(ctx context.Context) ([]*APIKey, error)
	// HealthCheck verifies the backing store is reachable
	HealthCheck(ctx context.Context) error
}

// ValidateKey performs constant-time comparison of the provided key against this API key.
func (ak *APIKey) ValidateKey(providedKey string) bool {
	if providedKey == "" || ak.Key == "" {
		return false
	}

	if !ak.Active {
		return false
	}

	if ak.ExpiresAt != nil && time.Now().After(*ak.ExpiresAt) {
		return false
	}

	return SecureCompare(ak.Key, providedKey)
}

// HasPermission checks if the API key has a specific permission.
func (ak *APIKey) HasPermission(permission string) bool {
	for _, p := range ak.Permissions {
		if p == permission {
			return true
		}
	}

	return false
}

// SecureCompare performs constant-time comparison of two strings to prevent timing attacks.
func SecureCompare(a, b string) bool {
	if len(a) != len(b) {
		// Compare against a dummy string of the same length to keep the
		// comparison constant time even on a length mismatch.
		dummy := make([]byte, len(a))
		subtle.ConstantTimeCompare([]byte(a), dummy)

		return false
	}

	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// MaskKey masks an API key for logging by showing only the prefix and suffix.
// Designed for the 76-character herdbook key format:
// "herdbook_ak_" + 64 hex chars.
func MaskKey(key string) string {
	if key == "" {
		return ""
	}

	keyLen := len(key)

	if keyLen == apiKeyLength {
		maskedLen := keyLen - prefixLen - suffixLen

		return key[:prefixLen] + strings.Repeat("*", maskedLen) + key[keyLen-suffixLen:]
	}

	// Any other length (testing, development, etc.) is masked completely.
	return strings.Repeat("*", keyLen)
}

// GenerateAPIKey creates a new secure API key.
func GenerateAPIKey(name string) (string, error) {
	if name == "" {
		return "", ErrKeyNameEmpty
	}

	randomBytes := make([]byte, randomBytesSize)

	_, err := rand.Read(randomBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	return apiKeyPrefix + hex.EncodeToString(randomBytes), nil // pragma: allowlist secret
}

// ParseAPIKey extracts the API key from various header formats.
func ParseAPIKey(keyString string) (string, error) {
	if keyString == "" {
		return "", ErrKeyStringEmpty
	}

	keyString = strings.TrimPrefix(keyString, "Bearer ")

	if !strings.HasPrefix(keyString, apiKeyPrefix) {
		return "", ErrInvalidKeyFormat
	}

	if len(keyString) != apiKeyLength {
		return "", ErrInvalidKeyLength
	}

	return keyString, nil
}
