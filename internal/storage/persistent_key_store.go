package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/herdbook-io/herdbook/internal/config"
)

const (
	keyCreated = "created"
	keyUpdated = "updated"
	keyDeleted = "deleted"
)

// PersistentKeyStore implements APIKeyStore with a PostgreSQL backend.
// Keys are stored as bcrypt hashes; deletion is soft to preserve the audit
// trail.
type PersistentKeyStore struct {
	conn   *Connection
	logger *slog.Logger
}

// Compile-time interface assertion.
var _ APIKeyStore = (*PersistentKeyStore)(nil)

// NewPersistentKeyStore creates a PostgreSQL-backed key store.
func NewPersistentKeyStore(conn *Connection) (*PersistentKeyStore, error) {
	if conn == nil {
		return nil, ErrNoDatabaseConnection
	}

	return &PersistentKeyStore{
		conn: conn,
		logger: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelDebug),
		})),
	}, nil
}

// HealthCheck verifies database connectivity.
func (s *PersistentKeyStore) HealthCheck(ctx context.Context) error {
	return s.conn.HealthCheck(ctx)
}

// FindByKey retrieves an API key by its key value using bcrypt hash
// comparison. Queries all active keys and compares hashes in memory,
// acceptable while key counts stay small (<1000 keys, ~60ms per compare).
// Returns (nil, false) if the key is not found or invalid.
func (s *PersistentKeyStore) FindByKey(ctx context.Context, key string) (*APIKey, bool) {
	if key == "" {
		return nil, false
	}

	query := `
		SELECT id, key_hash, name, permissions, created_at, expires_at, active
		FROM api_keys
		WHERE active = TRUE
	`

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, false
	}

	defer func() {
		_ = rows.Close()
	}()

	var keyFound *APIKey

	for rows.Next() {
		apiKey, err := scanAPIKey(rows.Scan)
		if err != nil {
			continue
		}

		// apiKey.Key holds the stored hash at this point.
		if CompareAPIKeyHash(apiKey.Key, key) {
			apiKey.Key = MaskKey(apiKey.Key)
			keyFound = apiKey

			break
		}
	}

	if err := rows.Err(); err != nil {
		s.logger.Error("failed to find key", slog.String("error", err.Error()))

		return nil, false
	}

	return keyFound, keyFound != nil
}

// Add stores a new API key with bcrypt hashing and audit logging.
func (s *PersistentKeyStore) Add(ctx context.Context, apiKey *APIKey) error {
	if apiKey == nil { // pragma: allowlist secret
		return ErrKeyNil
	}

	// Bcrypt produces a different hash for the same input, so duplicate
	// detection has to compare against existing active keys.
	if existing, found := s.FindByKey(ctx, apiKey.Key); found && existing != nil {
		return ErrKeyAlreadyExists
	}

	keyHash, err := HashAPIKey(apiKey.Key)
	if err != nil {
		return fmt.Errorf("failed to hash API key: %w", err)
	}

	permissionsJSON, err := permissionsToJSON(apiKey.Permissions)
	if err != nil {
		return fmt.Errorf("failed to serialize permissions: %w", err)
	}

	query := `
		INSERT INTO api_keys (id, key_hash, name, permissions, created_at, expires_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = s.conn.ExecContext(
		ctx,
		query,
		apiKey.ID,
		keyHash,
		apiKey.Name,
		permissionsJSON,
		apiKey.CreatedAt,
		apiKey.ExpiresAt,
		apiKey.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to insert API key: %w", err)
	}

	if err := s.logAudit(ctx, keyCreated, apiKey.ID, keyHash); err != nil {
		// Audit logging is best-effort; failures are logged, not fatal.
		s.logger.Error(
			"failed to write an audit log entry for API key operation",
			slog.String("operation", keyCreated),
			slog.String("error", err.Error()),
		)
	}

	return nil
}

// Update modifies name, permissions, active status and expiration of an
// existing key. The key hash itself cannot be updated.
func (s *PersistentKeyStore) Update(ctx context.Context, apiKey *APIKey) error {
	if apiKey == nil { // pragma: allowlist secret
		return ErrKeyNil
	}

	if apiKey.ID == "" {
		return ErrKeyNotFound
	}

	permissionsJSON, err := permissionsToJSON(apiKey.Permissions)
	if err != nil {
		return fmt.Errorf("failed to serialize permissions: %w", err)
	}

	query := `
		UPDATE api_keys
		SET name = $1, permissions = $2, active = $3, expires_at = $4, updated_at = now()
		WHERE id = $5
	`

	result, err := s.conn.ExecContext(
		ctx,
		query,
		apiKey.Name,
		permissionsJSON,
		apiKey.Active,
		apiKey.ExpiresAt,
		apiKey.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update API key: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrKeyNotFound
	}

	if err := s.logAudit(ctx, keyUpdated, apiKey.ID, ""); err != nil {
		s.logger.Error(
			"failed to write an audit log entry for API key operation",
			slog.String("operation", keyUpdated),
			slog.String("error", err.Error()),
		)
	}

	return nil
}

// Delete soft-deletes an API key by setting active=FALSE. The row stays in
// place for the audit trail.
func (s *PersistentKeyStore) Delete(ctx context.Context, keyID string) error {
	if keyID == "" {
		return ErrKeyNotFound
	}

	query := `
		UPDATE api_keys
		SET active = FALSE, updated_at = now()
		WHERE id = $1
	`

	result, err := s.conn.ExecContext(ctx, query, keyID)
	if err != nil {
		return fmt.Errorf("failed to delete API key: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrKeyNotFound
	}

	if err := s.logAudit(ctx, keyDeleted, keyID, ""); err != nil {
		s.logger.Error(
			"failed to write an audit log entry for API key operation",
			slog.String("operation", keyDeleted),
			slog.String("error", err.Error()),
		)
	}

	return nil
}

// List returns all active API keys with masked key hashes.
func (s *PersistentKeyStore) List(ctx context.Context) ([]*APIKey, error) {
	query := `
		SELECT id, key_hash, name, permissions, created_at, expires_at, active
		FROM api_keys
		WHERE active = TRUE
		ORDER BY created_at DESC
	`

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query API keys: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	keys := []*APIKey{}

	for rows.Next() {
		apiKey, err := scanAPIKey(rows.Scan)
		if err != nil {
			continue
		}

		apiKey.Key = MaskKey(apiKey.Key)
		keys = append(keys, apiKey)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return keys, nil
}

// scanAPIKey reads one api_keys row. The Key field receives the stored
// hash; callers mask or compare it as appropriate.
func scanAPIKey(scan func(dest ...any) error) (*APIKey, error) {
	var (
		apiKey          APIKey
		permissionsJSON []byte
	)

	err := scan(
		&apiKey.ID,
		&apiKey.Key,
		&apiKey.Name,
		&permissionsJSON,
		&apiKey.CreatedAt,
		&apiKey.ExpiresAt,
		&apiKey.Active,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(permissionsJSON, &apiKey.Permissions); err != nil {
		return nil, err
	}

	return &apiKey, nil
}

// permissionsToJSON converts a permissions slice to JSON for JSONB storage.
func permissionsToJSON(permissions []string) ([]byte, error) {
	if permissions == nil {
		permissions = []string{}
	}

	return json.Marshal(permissions)
}

// logAudit writes an audit log entry for an API key operation.
func (s *PersistentKeyStore) logAudit(ctx context.Context, operation, keyID, keyHash string) error {
	query := `
		INSERT INTO api_key_audit_log (api_key_id, operation, masked_key, metadata)
		VALUES ($1, $2, $3, '{}')
	`

	_, err := s.conn.ExecContext(ctx, query, keyID, operation, MaskKey(keyHash))
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	return nil
}
