package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/herdbook-io/herdbook/internal/aliasing"
	"github.com/herdbook-io/herdbook/internal/config"
	"github.com/herdbook-io/herdbook/internal/inventory"
)

// Sentinel errors for inventory storage operations.
var (
	// ErrInventoryStoreFailed is returned when an infrastructure-level
	// storage operation fails. Domain errors pass through unwrapped.
	ErrInventoryStoreFailed = errors.New("inventory storage failed")

	// Compile-time interface assertions. Methods are spread across
	// movement_store.go, transfer_store.go, report_store.go and
	// registry_store.go (same package, same type).
	_ inventory.Recorder    = (*InventoryStore)(nil)
	_ inventory.Transferrer = (*InventoryStore)(nil)
	_ inventory.Reporter    = (*InventoryStore)(nil)
	_ inventory.Registry    = (*InventoryStore)(nil)
	_ inventory.References  = (*InventoryStore)(nil)
)

type (
	// InventoryStore implements the inventory service interfaces with a
	// PostgreSQL backend.
	//
	// Concurrency protocol, applied to every balance mutation:
	//  1. SELECT ... FOR UPDATE locks the balance row for the transaction.
	//  2. Validations run against the locked quantity.
	//  3. The ledger row is inserted.
	//  4. The snapshot UPDATE carries a version predicate; zero affected
	//     rows means another transaction won the race and the whole
	//     transaction rolls back with ErrConcurrencyConflict.
	//
	// The row lock makes the version conflict near-impossible in practice;
	// the predicate stays as the last line of defense if any code path ever
	// mutates a balance without taking the lock.
	InventoryStore struct {
		conn     *Connection
		logger   *slog.Logger
		hooks    []CommitHook
		resolver *aliasing.Resolver // Optional alias resolver for seeder name adoption
	}

	// CommitHook observes movements after their transaction has committed.
	// Hooks must not block; slow consumers should buffer internally.
	CommitHook func(ctx context.Context, movements []*inventory.Movement)

	// InventoryStoreOption configures optional InventoryStore behavior.
	InventoryStoreOption func(*InventoryStore)

	// lockedBalance is a balance row read under FOR UPDATE.
	lockedBalance struct {
		id         string
		farmID     string
		categoryID string
		quantity   int
		version    int64
	}
)

// WithCommitHook registers a post-commit observer, e.g. the movement feed
// publisher. Hooks run in registration order after a successful commit;
// they never see rolled-back movements.
func WithCommitHook(hook CommitHook) InventoryStoreOption {
	return func(s *InventoryStore) {
		s.hooks = append(s.hooks, hook)
	}
}

// WithAliasResolver sets the category name alias resolver used by the
// seeder to adopt legacy category names. If not set, only exact canonical
// names are adopted.
//
// Example:
//
//	cfg, _ := aliasing.LoadConfigFromEnv()
//	store, err := storage.NewInventoryStore(conn,
//	    storage.WithAliasResolver(aliasing.NewResolver(cfg)))
func WithAliasResolver(r *aliasing.Resolver) InventoryStoreOption {
	return func(s *InventoryStore) {
		s.resolver = r
	}
}

// NewInventoryStore creates a PostgreSQL-backed inventory store.
// Returns ErrNoDatabaseConnection if conn is nil.
func NewInventoryStore(conn *Connection, opts ...InventoryStoreOption) (*InventoryStore, error) {
	if conn == nil {
		return nil, ErrNoDatabaseConnection
	}

	store := &InventoryStore{
		conn: conn,
		logger: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
		})),
	}

	for _, opt := range opts {
		opt(store)
	}

	return store, nil
}

// HealthCheck verifies database connectivity.
func (s *InventoryStore) HealthCheck(ctx context.Context) error {
	if s.conn == nil {
		return ErrNoDatabaseConnection
	}

	return s.conn.HealthCheck(ctx)
}

// RecordEntry implements inventory.Recorder.
func (s *InventoryStore) RecordEntry(ctx context.Context, req inventory.MovementRequest) (*inventory.Movement, error) {
	return s.recordSingle(ctx, req, inventory.MovementEntry)
}

// RecordExit implements inventory.Recorder.
func (s *InventoryStore) RecordExit(ctx context.Context, req inventory.MovementRequest) (*inventory.Movement, error) {
	return s.recordSingle(ctx, req, inventory.MovementExit)
}

// recordSingle wraps one movement in its own transaction and notifies
// post-commit hooks on success.
func (s *InventoryStore) recordSingle(
	ctx context.Context,
	req inventory.MovementRequest,
	direction inventory.MovementType,
) (*inventory.Movement, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to begin transaction: %w", ErrInventoryStoreFailed, err)
	}

	defer func() {
		_ = tx.Rollback() // Safe to call even after commit
	}()

	var movement *inventory.Movement

	if direction == inventory.MovementEntry {
		movement, err = s.entryInTx(ctx, tx, req, "")
	} else {
		movement, err = s.exitInTx(ctx, tx, req)
	}

	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: failed to commit transaction: %w", ErrInventoryStoreFailed, err)
	}

	s.logger.Info("movement recorded",
		slog.String("movement_id", movement.ID),
		slog.String("operation", string(movement.OperationType)),
		slog.String("farm_id", movement.FarmID),
		slog.String("category_id", movement.CategoryID),
		slog.Int("quantity", movement.Quantity),
	)

	s.notifyHooks(ctx, movement)

	return movement, nil
}

// entryInTx records an entry movement inside an existing transaction. The
// composite operations in transfer_store.go call this directly so both legs
// share one transaction; relatedMovementID links the entry back to its exit
// leg and is empty for standalone entries.
func (s *InventoryStore) entryInTx(
	ctx context.Context,
	tx *sql.Tx,
	req inventory.MovementRequest,
	relatedMovementID string,
) (*inventory.Movement, error) {
	if err := validateMovementRequest(req, inventory.MovementEntry); err != nil {
		return nil, err
	}

	balance, err := lockBalance(ctx, tx, req.FarmID, req.CategoryID)
	if err != nil {
		return nil, err
	}

	movement, err := insertMovement(ctx, tx, balance, req, inventory.MovementEntry, relatedMovementID)
	if err != nil {
		return nil, err
	}

	newQty := balance.quantity + req.Quantity
	if err := updateSnapshot(ctx, tx, balance, newQty); err != nil {
		return nil, err
	}

	return movement, nil
}

// exitInTx records an exit movement inside an existing transaction. Fails
// with ErrInsufficientStock before touching the ledger when the locked
// balance cannot cover the quantity.
func (s *InventoryStore) exitInTx(
	ctx context.Context,
	tx *sql.Tx,
	req inventory.MovementRequest,
) (*inventory.Movement, error) {
	if err := validateMovementRequest(req, inventory.MovementExit); err != nil {
		return nil, err
	}

	balance, err := lockBalance(ctx, tx, req.FarmID, req.CategoryID)
	if err != nil {
		return nil, err
	}

	if err := inventory.RequireSufficient(balance.quantity, req.Quantity, req.FarmID, req.CategoryID); err != nil {
		return nil, err
	}

	movement, err := insertMovement(ctx, tx, balance, req, inventory.MovementExit, "")
	if err != nil {
		return nil, err
	}

	newQty := balance.quantity - req.Quantity
	if err := updateSnapshot(ctx, tx, balance, newQty); err != nil {
		return nil, err
	}

	return movement, nil
}

// validateMovementRequest runs every pure validation before any database
// work: quantity, operation vocabulary, direction, companion references,
// actor and metadata.
func validateMovementRequest(req inventory.MovementRequest, direction inventory.MovementType) error {
	if err := inventory.RequirePositive(req.Quantity); err != nil {
		return err
	}

	if err := inventory.RequireDirection(req.Operation, direction); err != nil {
		return err
	}

	if err := inventory.RequireCompanions(req.Operation, req.ClientID, req.DeathReasonID); err != nil {
		return err
	}

	if req.ActorID == "" {
		return fmt.Errorf("%w: movement requires an actor", inventory.ErrInvalidOperation)
	}

	if req.Metadata != nil {
		if err := req.Metadata.Validate(); err != nil {
			return fmt.Errorf("%w: %w", inventory.ErrInvalidOperation, err)
		}
	}

	return nil
}

// lockBalance reads the balance row for a (farm, category) pair under
// FOR UPDATE. The row-level lock serializes concurrent mutations of the
// same balance: between this read and the snapshot update, no other
// transaction can lock, update or delete the row. The lock is released when
// the transaction commits or rolls back.
func lockBalance(ctx context.Context, tx *sql.Tx, farmID, categoryID string) (*lockedBalance, error) {
	query := `
		SELECT id, farm_id, category_id, current_quantity, version
		FROM stock_balances
		WHERE farm_id = $1 AND category_id = $2
		FOR UPDATE
	`

	var balance lockedBalance

	err := tx.QueryRowContext(ctx, query, farmID, categoryID).Scan(
		&balance.id, &balance.farmID, &balance.categoryID, &balance.quantity, &balance.version,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: farm %q category %q",
			inventory.ErrStockBalanceNotFound, farmID, categoryID)
	}

	if err != nil {
		// Opposing composite operations can lock the same two balances in
		// opposite order. PostgreSQL aborts one with a deadlock error;
		// surface it as a retriable conflict.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && (pqErr.Code == "40P01" || pqErr.Code == "40001") {
			return nil, fmt.Errorf("%w: %w", inventory.ErrConcurrencyConflict, err)
		}

		return nil, fmt.Errorf("%w: failed to lock stock balance: %w", ErrInventoryStoreFailed, err)
	}

	return &balance, nil
}

// insertMovement appends one ledger row. The ledger is append-only; the
// database trigger rejects any later UPDATE or DELETE.
func insertMovement(
	ctx context.Context,
	tx *sql.Tx,
	balance *lockedBalance,
	req inventory.MovementRequest,
	direction inventory.MovementType,
	relatedMovementID string,
) (*inventory.Movement, error) {
	occurredAt := resolveEventTime(req.Timestamp)

	metadataJSON, err := marshalJSONB(req.Metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal metadata: %w", ErrInventoryStoreFailed, err)
	}

	movement := &inventory.Movement{
		ID:                uuid.NewString(),
		BalanceID:         balance.id,
		FarmID:            balance.farmID,
		CategoryID:        balance.categoryID,
		MovementType:      direction,
		OperationType:     req.Operation,
		Quantity:          req.Quantity,
		Timestamp:         occurredAt,
		RelatedMovementID: relatedMovementID,
		ClientID:          req.ClientID,
		DeathReasonID:     req.DeathReasonID,
		Metadata:          req.Metadata,
		CreatedBy:         req.ActorID,
		SourceIP:          req.SourceIP,
	}

	query := `
		INSERT INTO animal_movements
			(id, balance_id, movement_type, operation_type, quantity, occurred_at,
			 related_movement_id, client_id, death_reason_id, metadata, created_by, source_ip)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, '{}'::jsonb), $11, $12)
		RETURNING created_at
	`

	err = tx.QueryRowContext(ctx, query,
		movement.ID,
		balance.id,
		string(direction),
		string(req.Operation),
		req.Quantity,
		occurredAt,
		nullString(relatedMovementID),
		nullString(req.ClientID),
		nullString(req.DeathReasonID),
		metadataJSON,
		req.ActorID,
		nullString(req.SourceIP),
	).Scan(&movement.CreatedAt)
	if err != nil {
		return nil, classifyInsertError(err)
	}

	return movement, nil
}

// updateSnapshot applies the new quantity with the optimistic version
// predicate. Zero affected rows means the observed version is stale.
func updateSnapshot(ctx context.Context, tx *sql.Tx, balance *lockedBalance, newQuantity int) error {
	query := `
		UPDATE stock_balances
		SET current_quantity = $1, version = version + 1, updated_at = now()
		WHERE id = $2 AND version = $3
	`

	result, err := tx.ExecContext(ctx, query, newQuantity, balance.id, balance.version)
	if err != nil {
		return classifySnapshotError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to get rows affected: %w", ErrInventoryStoreFailed, err)
	}

	if affected == 0 {
		return fmt.Errorf("%w: balance %s at version %d",
			inventory.ErrConcurrencyConflict, balance.id, balance.version)
	}

	return nil
}

// classifyInsertError maps PostgreSQL errors on ledger inserts to domain
// errors where a domain meaning exists.
func classifyInsertError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// Class 23503 = foreign_key_violation: a dangling client, death
		// reason or actor reference.
		if pqErr.Code == "23503" {
			return fmt.Errorf("%w: unknown reference: %s", inventory.ErrInvalidOperation, pqErr.Constraint)
		}
	}

	return fmt.Errorf("%w: failed to insert movement: %w", ErrInventoryStoreFailed, err)
}

// classifySnapshotError maps PostgreSQL errors on snapshot updates. The
// CHECK constraint on current_quantity is the database-level backstop for
// the non-negativity invariant.
func classifySnapshotError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// Class 23514 = check_violation.
		if pqErr.Code == "23514" && strings.Contains(pqErr.Constraint, "current_quantity") {
			return fmt.Errorf("%w: snapshot update would drive stock negative", inventory.ErrInsufficientStock)
		}
	}

	return fmt.Errorf("%w: failed to update stock balance: %w", ErrInventoryStoreFailed, err)
}

// resolveEventTime fills in a missing event timestamp. Composite operations
// resolve it once up front so every leg shares the same occurred_at.
func resolveEventTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}

	return t
}

// notifyHooks delivers committed movements to registered hooks.
func (s *InventoryStore) notifyHooks(ctx context.Context, movements ...*inventory.Movement) {
	if len(s.hooks) == 0 {
		return
	}

	for _, hook := range s.hooks {
		hook(ctx, movements)
	}
}

// IsConnectionError reports whether err indicates a lost database
// connection rather than a data fault.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	// Class 08 = Connection Exception.
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return strings.HasPrefix(string(pqErr.Code), "08")
	}

	return errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn)
}

// marshalJSONB marshals metadata to a JSONB parameter, NULL when empty so
// the column default applies through the COALESCE in the insert.
func marshalJSONB(data inventory.Metadata) (sql.NullString, error) {
	if len(data) == 0 {
		return sql.NullString{Valid: false}, nil // SQL NULL
	}

	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return sql.NullString{Valid: false}, err
	}

	return sql.NullString{String: string(jsonBytes), Valid: true}, nil
}

// nullString converts an optional string to its NULL-safe SQL form.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}

	return sql.NullString{String: s, Valid: true}
}
