package storage

import (
	"strings"
	"testing"
	"time"
)

func TestKeyValidation(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	apiKey := &APIKey{
		ID:          "api-key-1",
		Key:         "test-key-123",
		Name:        "Farm Gateway",
		Permissions: []string{"movements:write", "reports:read"},
		CreatedAt:   time.Now(),
		ExpiresAt:   nil,
		Active:      true,
	}

	tests := []struct {
		name     string
		key      string
		expected bool
	}{
		{
			name:     "valid API key matches",
			key:      "test-key-123",
			expected: true,
		},
		{
			name:     "invalid API key does not match",
			key:      "wrong-key",
			expected: false,
		},
		{
			name:     "empty key fails validation",
			key:      "",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := apiKey.ValidateKey(tt.key)
			if result != tt.expected {
				t.Errorf("ValidateKey(%q) = %v, want %v", tt.key, result, tt.expected)
			}
		})
	}

	t.Run("inactive API key fails validation", func(t *testing.T) {
		inactiveKey := &APIKey{
			ID:     "api-key-2",
			Key:    "inactive-key",
			Active: false,
		}

		if inactiveKey.ValidateKey("inactive-key") {
			t.Error("ValidateKey on inactive key = true, want false")
		}
	})

	t.Run("expired API key fails validation", func(t *testing.T) {
		pastTime := time.Now().Add(-time.Hour)
		expiredKey := &APIKey{
			ID:        "api-key-3",
			Key:       "expired-key",
			Active:    true,
			ExpiresAt: &pastTime,
		}

		if expiredKey.ValidateKey("expired-key") {
			t.Error("ValidateKey on expired key = true, want false")
		}
	})
}

func TestKeyPermissions(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	apiKey := &APIKey{
		ID:          "api-key-1",
		Key:         "test-key-123",
		Name:        "Farm Gateway",
		Permissions: []string{"movements:write", "reports:read", "registry:write"},
		Active:      true,
	}

	tests := []struct {
		name       string
		permission string
		expected   bool
	}{
		{
			name:       "has movements write permission",
			permission: "movements:write",
			expected:   true,
		},
		{
			name:       "has reports read permission",
			permission: "reports:read",
			expected:   true,
		},
		{
			name:       "does not have admin permission",
			permission: "admin:write",
			expected:   false,
		},
		{
			name:       "empty permission string",
			permission: "",
			expected:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := apiKey.HasPermission(tt.permission)
			if result != tt.expected {
				t.Errorf("HasPermission(%q) = %v, want %v", tt.permission, result, tt.expected)
			}
		})
	}
}

func TestSecureCompare(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	tests := []struct {
		name     string
		key1     string
		key2     string
		expected bool
	}{
		{
			name:     "identical keys match",
			key1:     "herdbook_ak_1234567890abcdef",
			key2:     "herdbook_ak_1234567890abcdef",
			expected: true,
		},
		{
			name:     "different keys don't match",
			key1:     "herdbook_ak_1234567890abcdef",
			key2:     "herdbook_ak_abcdef1234567890",
			expected: false,
		},
		{
			name:     "different length keys don't match",
			key1:     "herdbook_ak_1234567890abcdef",
			key2:     "herdbook_ak_1234",
			expected: false,
		},
		{
			name:     "empty keys match",
			key1:     "",
			key2:     "",
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SecureCompare(tt.key1, tt.key2)
			if result != tt.expected {
				t.Errorf("SecureCompare(%q, %q) = %v, want %v", tt.key1, tt.key2, result, tt.expected)
			}
		})
	}
}

func TestKeyMasking(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	fullKey := apiKeyPrefix + strings.Repeat("1234567890abcdef", 4)

	tests := []struct {
		name     string
		key      string
		expected string
	}{
		{
			name:     "standard 76-char herdbook API key",
			key:      fullKey,
			expected: fullKey[:prefixLen] + strings.Repeat("*", apiKeyLength-prefixLen-suffixLen) + fullKey[apiKeyLength-suffixLen:],
		},
		{
			name:     "non-standard key (testing/dev)",
			key:      "test-key-123",
			expected: "************",
		},
		{
			name:     "empty key",
			key:      "",
			expected: "",
		},
		{
			name:     "very short key",
			key:      "ab",
			expected: "**",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MaskKey(tt.key)
			if result != tt.expected {
				t.Errorf("MaskKey(%q) = %q, want %q", tt.key, result, tt.expected)
			}
		})
	}
}

func TestGenerateAPIKey(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	tests := []struct {
		name    string
		keyName string
		wantErr bool
	}{
		{
			name:    "valid name generates key",
			keyName: "farm-gateway",
			wantErr: false,
		},
		{
			name:    "empty name fails",
			keyName: "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := GenerateAPIKey(tt.keyName)

			if tt.wantErr {
				if err == nil {
					t.Errorf("GenerateAPIKey(%q) expected error, got nil", tt.keyName)
				}

				return
			}

			if err != nil {
				t.Errorf("GenerateAPIKey(%q) unexpected error: %v", tt.keyName, err)

				return
			}

			if !strings.HasPrefix(key, apiKeyPrefix) {
				t.Errorf("GenerateAPIKey(%q) = %q, want %q prefix", tt.keyName, key, apiKeyPrefix)
			}

			if len(key) != apiKeyLength {
				t.Errorf("GenerateAPIKey(%q) key length = %d, want %d", tt.keyName, len(key), apiKeyLength)
			}
		})
	}
}

func TestParseAPIKey(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	fullKey := apiKeyPrefix + strings.Repeat("1234567890abcdef", 4)

	tests := []struct {
		name      string
		keyString string
		expected  string
		wantErr   bool
	}{
		{
			name:      "valid API key with Bearer prefix",
			keyString: "Bearer " + fullKey,
			expected:  fullKey,
			wantErr:   false,
		},
		{
			name:      "API key without Bearer prefix",
			keyString: fullKey,
			expected:  fullKey,
			wantErr:   false,
		},
		{
			name:      "invalid key format",
			keyString: "invalid-key-format",
			expected:  "",
			wantErr:   true,
		},
		{
			name:      "truncated key",
			keyString: apiKeyPrefix + "1234",
			expected:  "",
			wantErr:   true,
		},
		{
			name:      "empty key string",
			keyString: "",
			expected:  "",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := ParseAPIKey(tt.keyString)

			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseAPIKey(%q) expected error, got nil", tt.keyString)
				}

				return
			}

			if err != nil {
				t.Errorf("ParseAPIKey(%q) unexpected error: %v", tt.keyString, err)

				return
			}

			if key != tt.expected {
				t.Errorf("ParseAPIKey(%q) = %q, want %q", tt.keyString, key, tt.expected)
			}
		})
	}
}
