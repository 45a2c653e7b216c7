package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"

	"github.com/herdbook-io/herdbook/internal/config"
)

func setupPersistentKeyStore(ctx context.Context, t *testing.T) (*PersistentKeyStore, *config.TestDatabase) {
	t.Helper()

	testDB := config.SetupTestDatabase(ctx, t)
	t.Cleanup(func() {
		_ = testDB.Connection.Close()
		_ = testcontainers.TerminateContainer(testDB.Container)
	})

	store, err := NewPersistentKeyStore(NewConnectionFromDB(testDB.Connection))
	if err != nil {
		t.Fatalf("Failed to create key store: %v", err)
	}

	return store, testDB
}

func TestPersistentKeyStoreLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	store, testDB := setupPersistentKeyStore(ctx, t)

	rawKey, err := GenerateAPIKey("farm-gateway")
	if err != nil {
		t.Fatalf("GenerateAPIKey() error = %v", err)
	}

	apiKey := &APIKey{
		ID:          "key-1",
		Key:         rawKey,
		Name:        "Farm Gateway",
		Permissions: []string{"movements:write", "reports:read"},
		CreatedAt:   time.Now().UTC(),
		Active:      true,
	}

	t.Run("add and find by raw key", func(t *testing.T) {
		if err := store.Add(ctx, apiKey); err != nil {
			t.Fatalf("Add() error = %v", err)
		}

		found, ok := store.FindByKey(ctx, rawKey)
		if !ok {
			t.Fatal("FindByKey() = false after Add")
		}

		if found.ID != "key-1" || found.Name != "Farm Gateway" {
			t.Errorf("FindByKey() = %+v", found)
		}

		// Only the bcrypt hash is persisted; the raw key never comes back.
		if found.Key == rawKey {
			t.Error("FindByKey() returned the raw key")
		}
	})

	t.Run("raw key is never stored", func(t *testing.T) {
		var stored string

		err := testDB.Connection.QueryRowContext(ctx,
			`SELECT key_hash FROM api_keys WHERE id = $1`, apiKey.ID).Scan(&stored)
		if err != nil {
			t.Fatalf("Failed to read stored hash: %v", err)
		}

		if stored == rawKey {
			t.Fatal("database stores the raw key instead of a hash")
		}

		if !CompareAPIKeyHash(stored, rawKey) {
			t.Error("stored hash does not verify against the raw key")
		}
	})

	t.Run("wrong key is not found", func(t *testing.T) {
		otherKey, err := GenerateAPIKey("other")
		if err != nil {
			t.Fatalf("GenerateAPIKey() error = %v", err)
		}

		if _, ok := store.FindByKey(ctx, otherKey); ok {
			t.Error("FindByKey() = true for a key that was never added")
		}
	})

	t.Run("update changes metadata", func(t *testing.T) {
		apiKey.Name = "Farm Gateway v2"
		apiKey.Permissions = []string{"movements:write"}

		if err := store.Update(ctx, apiKey); err != nil {
			t.Fatalf("Update() error = %v", err)
		}

		found, ok := store.FindByKey(ctx, rawKey)
		if !ok {
			t.Fatal("FindByKey() = false after update")
		}

		if found.Name != "Farm Gateway v2" || len(found.Permissions) != 1 {
			t.Errorf("updated key = %+v", found)
		}
	})

	t.Run("soft delete hides the key but keeps the row", func(t *testing.T) {
		if err := store.Delete(ctx, apiKey.ID); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}

		if _, ok := store.FindByKey(ctx, rawKey); ok {
			t.Error("FindByKey() = true after delete")
		}

		var active bool

		err := testDB.Connection.QueryRowContext(ctx,
			`SELECT active FROM api_keys WHERE id = $1`, apiKey.ID).Scan(&active)
		if err != nil {
			t.Fatalf("deleted key row is gone: %v", err)
		}

		if active {
			t.Error("deleted key still active")
		}
	})

	t.Run("operations are audited", func(t *testing.T) {
		var count int

		err := testDB.Connection.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM api_key_audit_log WHERE api_key_id = $1`, apiKey.ID).Scan(&count)
		if err != nil {
			t.Fatalf("Failed to count audit rows: %v", err)
		}

		// created, updated, deleted
		if count != 3 {
			t.Errorf("audit log rows = %d, want 3", count)
		}
	})

	t.Run("delete of unknown key fails", func(t *testing.T) {
		if err := store.Delete(ctx, "no-such-key"); !errors.Is(err, ErrKeyNotFound) {
			t.Errorf("Delete() = %v, want ErrKeyNotFound", err)
		}
	})
}

func TestPersistentKeyStoreList(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	store, _ := setupPersistentKeyStore(ctx, t)

	for i, name := range []string{"gateway-a", "gateway-b"} {
		rawKey, err := GenerateAPIKey(name)
		if err != nil {
			t.Fatalf("GenerateAPIKey() error = %v", err)
		}

		err = store.Add(ctx, &APIKey{
			ID:          name,
			Key:         rawKey,
			Name:        name,
			Permissions: []string{"movements:write"},
			CreatedAt:   time.Now().UTC().Add(time.Duration(i) * time.Second),
			Active:      true,
		})
		if err != nil {
			t.Fatalf("Add(%q) error = %v", name, err)
		}
	}

	keys, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if len(keys) != 2 {
		t.Fatalf("len(keys) = %d, want 2", len(keys))
	}

	for _, key := range keys {
		if key.Key == "" || !isMasked(key.Key) {
			t.Errorf("List() key %q is not masked", key.ID)
		}
	}
}

// isMasked reports whether a key value is fully or partially starred out.
func isMasked(key string) bool {
	for _, r := range key {
		if r == '*' {
			return true
		}
	}

	return false
}
