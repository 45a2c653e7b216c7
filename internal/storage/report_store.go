package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/herdbook-io/herdbook/internal/inventory"
)

// Report queries. Every figure here is computed from the movement ledger,
// never read from the snapshot, so reports stay correct even when a
// snapshot has drifted. VerifyBalance is the tool that finds such drift.

const defaultMovementLimit = 100

// signedSum is the ledger aggregation used by every stock figure.
const signedSum = `COALESCE(SUM(CASE WHEN m.movement_type = 'ENTRY' THEN m.quantity ELSE -m.quantity END), 0)`

// OpeningStock implements inventory.Reporter. Returns the signed ledger sum
// strictly before at, clamped at zero.
func (s *InventoryStore) OpeningStock(ctx context.Context, farmID, categoryID string, at time.Time) (int, error) {
	return s.stockAt(ctx, farmID, categoryID, "m.occurred_at < $3", at)
}

// ClosingStock implements inventory.Reporter. Returns the signed ledger sum
// up to and including at, clamped at zero.
func (s *InventoryStore) ClosingStock(ctx context.Context, farmID, categoryID string, at time.Time) (int, error) {
	return s.stockAt(ctx, farmID, categoryID, "m.occurred_at <= $3", at)
}

func (s *InventoryStore) stockAt(
	ctx context.Context,
	farmID, categoryID, timePredicate string,
	at time.Time,
) (int, error) {
	if err := s.requireBalance(ctx, farmID, categoryID); err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM animal_movements m
		JOIN stock_balances b ON b.id = m.balance_id
		WHERE b.farm_id = $1 AND b.category_id = $2 AND %s
	`, signedSum, timePredicate)

	var sum int
	if err := s.conn.QueryRowContext(ctx, query, farmID, categoryID, at).Scan(&sum); err != nil {
		return 0, fmt.Errorf("%w: failed to compute stock: %w", ErrInventoryStoreFailed, err)
	}

	return clampStock(sum), nil
}

// PeriodReport implements inventory.Reporter. One query computes the
// pre-period sum and the in-period entry and exit totals; closing stock is
// derived so that opening + entries - exits = closing always holds on the
// raw sums.
func (s *InventoryStore) PeriodReport(
	ctx context.Context,
	farmID, categoryID string,
	from, to time.Time,
) (*inventory.PeriodReport, error) {
	if err := s.requireBalance(ctx, farmID, categoryID); err != nil {
		return nil, err
	}

	query := `
		SELECT
			COALESCE(SUM(CASE WHEN m.movement_type = 'ENTRY' THEN m.quantity ELSE -m.quantity END)
				FILTER (WHERE m.occurred_at < $3), 0),
			COALESCE(SUM(m.quantity) FILTER (
				WHERE m.movement_type = 'ENTRY' AND m.occurred_at >= $3 AND m.occurred_at <= $4), 0),
			COALESCE(SUM(m.quantity) FILTER (
				WHERE m.movement_type = 'EXIT' AND m.occurred_at >= $3 AND m.occurred_at <= $4), 0)
		FROM animal_movements m
		JOIN stock_balances b ON b.id = m.balance_id
		WHERE b.farm_id = $1 AND b.category_id = $2 AND m.occurred_at <= $4
	`

	var rawOpening, entries, exits int

	err := s.conn.QueryRowContext(ctx, query, farmID, categoryID, from, to).
		Scan(&rawOpening, &entries, &exits)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to compute period report: %w", ErrInventoryStoreFailed, err)
	}

	return &inventory.PeriodReport{
		FarmID:       farmID,
		CategoryID:   categoryID,
		From:         from,
		To:           to,
		OpeningStock: clampStock(rawOpening),
		Entries:      entries,
		Exits:        exits,
		ClosingStock: clampStock(rawOpening + entries - exits),
	}, nil
}

// Movements implements inventory.Reporter. Filter fields are combined with
// AND; zero values are ignored. Results are newest first unless the filter
// asks for ascending order, the order period listings use.
func (s *InventoryStore) Movements(
	ctx context.Context,
	filter inventory.MovementFilter,
) ([]*inventory.Movement, error) {
	conditions := []string{"1=1"}
	args := []any{}

	addCondition := func(clause string, value any) {
		args = append(args, value)
		conditions = append(conditions, strings.Replace(clause, "?", "$"+strconv.Itoa(len(args)), 1))
	}

	if filter.FarmID != "" {
		addCondition("b.farm_id = ?", filter.FarmID)
	}

	if filter.CategoryID != "" {
		addCondition("b.category_id = ?", filter.CategoryID)
	}

	if filter.Operation != "" {
		addCondition("m.operation_type = ?", string(filter.Operation))
	}

	if !filter.From.IsZero() {
		addCondition("m.occurred_at >= ?", filter.From)
	}

	if !filter.To.IsZero() {
		addCondition("m.occurred_at <= ?", filter.To)
	}

	if !filter.Before.IsZero() {
		addCondition("m.occurred_at < ?", filter.Before)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultMovementLimit
	}

	args = append(args, limit)

	order := "DESC"
	if filter.Ascending {
		order = "ASC"
	}

	query := fmt.Sprintf(`
		SELECT m.id, m.balance_id, b.farm_id, b.category_id, m.movement_type,
		       m.operation_type, m.quantity, m.occurred_at, m.related_movement_id,
		       m.client_id, m.death_reason_id, m.metadata, m.created_by,
		       m.created_at, m.source_ip
		FROM animal_movements m
		JOIN stock_balances b ON b.id = m.balance_id
		WHERE %s
		ORDER BY m.occurred_at %s, m.created_at %s
		LIMIT $%d
	`, strings.Join(conditions, " AND "), order, order, len(args))

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query movements: %w", ErrInventoryStoreFailed, err)
	}

	defer func() {
		_ = rows.Close()
	}()

	movements := []*inventory.Movement{}

	for rows.Next() {
		movement, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}

		movements = append(movements, movement)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating movements: %w", ErrInventoryStoreFailed, err)
	}

	return movements, nil
}

// VerifyBalance implements inventory.Reporter. Compares one snapshot
// against the signed sum of its ledger.
func (s *InventoryStore) VerifyBalance(
	ctx context.Context,
	farmID, categoryID string,
) (*inventory.BalanceVerification, error) {
	query := fmt.Sprintf(`
		SELECT b.id, b.farm_id, b.category_id, b.current_quantity, %s, COUNT(m.id)
		FROM stock_balances b
		LEFT JOIN animal_movements m ON m.balance_id = b.id
		WHERE b.farm_id = $1 AND b.category_id = $2
		GROUP BY b.id, b.farm_id, b.category_id, b.current_quantity
	`, signedSum)

	var v inventory.BalanceVerification

	err := s.conn.QueryRowContext(ctx, query, farmID, categoryID).Scan(
		&v.BalanceID, &v.FarmID, &v.CategoryID, &v.SnapshotQty, &v.LedgerQty, &v.MovementCount,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: farm %q category %q",
			inventory.ErrStockBalanceNotFound, farmID, categoryID)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: failed to verify balance: %w", ErrInventoryStoreFailed, err)
	}

	v.Consistent = v.SnapshotQty == v.LedgerQty

	return &v, nil
}

// VerifyAllBalances implements inventory.Reporter. Returns only the
// snapshots whose quantity no longer matches their ledger sum.
func (s *InventoryStore) VerifyAllBalances(ctx context.Context) ([]*inventory.BalanceVerification, error) {
	query := fmt.Sprintf(`
		SELECT b.id, b.farm_id, b.category_id, b.current_quantity, %s, COUNT(m.id)
		FROM stock_balances b
		LEFT JOIN animal_movements m ON m.balance_id = b.id
		GROUP BY b.id, b.farm_id, b.category_id, b.current_quantity
		HAVING b.current_quantity <> %s
		ORDER BY b.farm_id, b.category_id
	`, signedSum, signedSum)

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to verify balances: %w", ErrInventoryStoreFailed, err)
	}

	defer func() {
		_ = rows.Close()
	}()

	drifted := []*inventory.BalanceVerification{}

	for rows.Next() {
		var v inventory.BalanceVerification

		err := rows.Scan(&v.BalanceID, &v.FarmID, &v.CategoryID, &v.SnapshotQty, &v.LedgerQty, &v.MovementCount)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan verification row: %w", ErrInventoryStoreFailed, err)
		}

		v.Consistent = false
		drifted = append(drifted, &v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating verification rows: %w", ErrInventoryStoreFailed, err)
	}

	return drifted, nil
}

// requireBalance distinguishes "no movements yet" (a valid zero report)
// from "no such balance" (a caller error).
func (s *InventoryStore) requireBalance(ctx context.Context, farmID, categoryID string) error {
	var exists bool

	err := s.conn.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM stock_balances WHERE farm_id = $1 AND category_id = $2)`,
		farmID, categoryID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("%w: failed to check balance existence: %w", ErrInventoryStoreFailed, err)
	}

	if !exists {
		return fmt.Errorf("%w: farm %q category %q", inventory.ErrStockBalanceNotFound, farmID, categoryID)
	}

	return nil
}

// scanMovement reads one ledger row with its nullable columns.
func scanMovement(rows *sql.Rows) (*inventory.Movement, error) {
	var (
		movement      inventory.Movement
		movementType  string
		operationType string
		related       sql.NullString
		clientID      sql.NullString
		deathReasonID sql.NullString
		metadataJSON  []byte
		sourceIP      sql.NullString
	)

	err := rows.Scan(
		&movement.ID, &movement.BalanceID, &movement.FarmID, &movement.CategoryID,
		&movementType, &operationType, &movement.Quantity, &movement.Timestamp,
		&related, &clientID, &deathReasonID, &metadataJSON,
		&movement.CreatedBy, &movement.CreatedAt, &sourceIP,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to scan movement: %w", ErrInventoryStoreFailed, err)
	}

	movement.MovementType = inventory.MovementType(movementType)
	movement.OperationType = inventory.OperationType(operationType)
	movement.RelatedMovementID = related.String
	movement.ClientID = clientID.String
	movement.DeathReasonID = deathReasonID.String
	movement.SourceIP = sourceIP.String

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &movement.Metadata); err != nil {
			return nil, fmt.Errorf("%w: failed to decode movement metadata: %w", ErrInventoryStoreFailed, err)
		}
	}

	return &movement, nil
}

// clampStock floors a raw ledger sum at zero for presentation. Raw sums can
// go negative only when ledger history predates balance materialization.
func clampStock(sum int) int {
	if sum < 0 {
		return 0
	}

	return sum
}
