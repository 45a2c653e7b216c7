package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/herdbook-io/herdbook/internal/inventory"
)

// Composite operations. Each one wraps an exit leg and an entry leg (two of
// them for a full weaning) in a single transaction: a failure in any leg
// rolls back every leg, so the ledger never shows half a transfer.

// Transfer implements inventory.Transferrer. Stock leaves the source farm
// as TRANSFER_OUT and arrives at the target farm as TRANSFER_IN, same
// category, same quantity.
func (s *InventoryStore) Transfer(ctx context.Context, req inventory.TransferRequest) (*inventory.MovementPair, error) {
	if err := inventory.RequireTransferParams(req.SourceFarmID, req.TargetFarmID); err != nil {
		return nil, err
	}

	if err := inventory.RequirePositive(req.Quantity); err != nil {
		return nil, err
	}

	// Both legs share one event timestamp; resolving it per leg would split
	// the pair across two instants.
	req.Timestamp = resolveEventTime(req.Timestamp)

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to begin transaction: %w", ErrInventoryStoreFailed, err)
	}

	defer func() {
		_ = tx.Rollback() // Safe to call even after commit
	}()

	exitMeta := req.Metadata.Clone()
	exitMeta[inventory.MetaTransferKind] = inventory.TransferKindFarm
	exitMeta[inventory.MetaTargetFarm] = req.TargetFarmID

	out, err := s.exitInTx(ctx, tx, inventory.MovementRequest{
		FarmID:     req.SourceFarmID,
		CategoryID: req.CategoryID,
		Operation:  inventory.OpTransferOut,
		Quantity:   req.Quantity,
		Timestamp:  req.Timestamp,
		Metadata:   exitMeta,
		ActorID:    req.ActorID,
		SourceIP:   req.SourceIP,
	})
	if err != nil {
		return nil, err
	}

	entryMeta := req.Metadata.Clone()
	entryMeta[inventory.MetaTransferKind] = inventory.TransferKindFarm
	entryMeta[inventory.MetaSourceFarm] = req.SourceFarmID

	in, err := s.entryInTx(ctx, tx, inventory.MovementRequest{
		FarmID:     req.TargetFarmID,
		CategoryID: req.CategoryID,
		Operation:  inventory.OpTransferIn,
		Quantity:   req.Quantity,
		Timestamp:  req.Timestamp,
		Metadata:   entryMeta,
		ActorID:    req.ActorID,
		SourceIP:   req.SourceIP,
	}, out.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: failed to commit transfer: %w", ErrInventoryStoreFailed, err)
	}

	s.logger.Info("transfer recorded",
		slog.String("source_farm_id", req.SourceFarmID),
		slog.String("target_farm_id", req.TargetFarmID),
		slog.String("category_id", req.CategoryID),
		slog.Int("quantity", req.Quantity),
	)

	s.notifyHooks(ctx, out, in)

	return &inventory.MovementPair{Out: out, In: in}, nil
}

// ChangeCategory implements inventory.Transferrer. Stock leaves the source
// category as CATEGORY_CHANGE_OUT and enters the target category as
// CATEGORY_CHANGE_IN, same farm, same quantity.
func (s *InventoryStore) ChangeCategory(
	ctx context.Context,
	req inventory.CategoryChangeRequest,
) (*inventory.MovementPair, error) {
	if err := inventory.RequireCategoryChangeParams(req.SourceCategoryID, req.TargetCategoryID); err != nil {
		return nil, err
	}

	if err := inventory.RequirePositive(req.Quantity); err != nil {
		return nil, err
	}

	req.Timestamp = resolveEventTime(req.Timestamp)

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to begin transaction: %w", ErrInventoryStoreFailed, err)
	}

	defer func() {
		_ = tx.Rollback() // Safe to call even after commit
	}()

	pair, err := s.categoryChangeInTx(ctx, tx, req, inventory.TransferKindCategory)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: failed to commit category change: %w", ErrInventoryStoreFailed, err)
	}

	s.logger.Info("category change recorded",
		slog.String("farm_id", req.FarmID),
		slog.String("source_category_id", req.SourceCategoryID),
		slog.String("target_category_id", req.TargetCategoryID),
		slog.Int("quantity", req.Quantity),
	)

	s.notifyHooks(ctx, pair.Out, pair.In)

	return pair, nil
}

// Wean implements inventory.Transferrer. Male calves become two-year
// steers, female calves become two-year heifers, both promotions in one
// transaction. Requires the system categories installed by the seeder.
func (s *InventoryStore) Wean(ctx context.Context, req inventory.WeaningRequest) (*inventory.WeaningResult, error) {
	if err := inventory.RequireWeaningParams(req.FarmID, req.Males, req.Females); err != nil {
		return nil, err
	}

	// One event timestamp for all four movements of a full weaning.
	req.Timestamp = resolveEventTime(req.Timestamp)

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to begin transaction: %w", ErrInventoryStoreFailed, err)
	}

	defer func() {
		_ = tx.Rollback() // Safe to call even after commit
	}()

	result := &inventory.WeaningResult{}

	var committed []*inventory.Movement

	if req.Males > 0 {
		pair, err := s.weanPairInTx(ctx, tx, req, inventory.SlugMaleCalf, req.Males)
		if err != nil {
			return nil, err
		}

		result.Males = pair
		committed = append(committed, pair.Out, pair.In)
	}

	if req.Females > 0 {
		pair, err := s.weanPairInTx(ctx, tx, req, inventory.SlugFemaleCalf, req.Females)
		if err != nil {
			return nil, err
		}

		result.Females = pair
		committed = append(committed, pair.Out, pair.In)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: failed to commit weaning: %w", ErrInventoryStoreFailed, err)
	}

	s.logger.Info("weaning recorded",
		slog.String("farm_id", req.FarmID),
		slog.Int("males", req.Males),
		slog.Int("females", req.Females),
	)

	s.notifyHooks(ctx, committed...)

	return result, nil
}

// categoryChangeInTx runs the two legs of a category change inside an
// existing transaction. kind distinguishes a plain reclassification from a
// weaning promotion in the ledger metadata.
func (s *InventoryStore) categoryChangeInTx(
	ctx context.Context,
	tx *sql.Tx,
	req inventory.CategoryChangeRequest,
	kind string,
) (*inventory.MovementPair, error) {
	exitOp, entryOp := inventory.OpCategoryChangeOut, inventory.OpCategoryChangeIn
	if kind == inventory.TransferKindWeaning {
		exitOp, entryOp = inventory.OpWeaningOut, inventory.OpWeaningIn
	}

	exitMeta := req.Metadata.Clone()
	exitMeta[inventory.MetaTransferKind] = kind
	exitMeta[inventory.MetaTargetCategory] = req.TargetCategoryID

	out, err := s.exitInTx(ctx, tx, inventory.MovementRequest{
		FarmID:     req.FarmID,
		CategoryID: req.SourceCategoryID,
		Operation:  exitOp,
		Quantity:   req.Quantity,
		Timestamp:  req.Timestamp,
		Metadata:   exitMeta,
		ActorID:    req.ActorID,
		SourceIP:   req.SourceIP,
	})
	if err != nil {
		return nil, err
	}

	entryMeta := req.Metadata.Clone()
	entryMeta[inventory.MetaTransferKind] = kind
	entryMeta[inventory.MetaSourceCategory] = req.SourceCategoryID

	in, err := s.entryInTx(ctx, tx, inventory.MovementRequest{
		FarmID:     req.FarmID,
		CategoryID: req.TargetCategoryID,
		Operation:  entryOp,
		Quantity:   req.Quantity,
		Timestamp:  req.Timestamp,
		Metadata:   entryMeta,
		ActorID:    req.ActorID,
		SourceIP:   req.SourceIP,
	}, out.ID)
	if err != nil {
		return nil, err
	}

	return &inventory.MovementPair{Out: out, In: in}, nil
}

// weanPairInTx promotes one calf category according to the weaning rules.
func (s *InventoryStore) weanPairInTx(
	ctx context.Context,
	tx *sql.Tx,
	req inventory.WeaningRequest,
	sourceSlug string,
	quantity int,
) (*inventory.MovementPair, error) {
	targetSlug := inventory.WeaningRules[sourceSlug]

	sourceID, err := categoryIDBySlugInTx(ctx, tx, sourceSlug)
	if err != nil {
		return nil, err
	}

	targetID, err := categoryIDBySlugInTx(ctx, tx, targetSlug)
	if err != nil {
		return nil, err
	}

	return s.categoryChangeInTx(ctx, tx, inventory.CategoryChangeRequest{
		FarmID:           req.FarmID,
		SourceCategoryID: sourceID,
		TargetCategoryID: targetID,
		Quantity:         quantity,
		Timestamp:        req.Timestamp,
		Metadata:         req.Metadata,
		ActorID:          req.ActorID,
		SourceIP:         req.SourceIP,
	}, inventory.TransferKindWeaning)
}

// categoryIDBySlugInTx resolves a system category slug inside a
// transaction. A missing slug means the seeder never ran on this database.
func categoryIDBySlugInTx(ctx context.Context, tx *sql.Tx, slug string) (string, error) {
	var id string

	err := tx.QueryRowContext(ctx,
		`SELECT id FROM animal_categories WHERE slug = $1 AND active = TRUE`, slug,
	).Scan(&id)

	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: slug %q", inventory.ErrWeaningCategoryNotFound, slug)
	}

	if err != nil {
		return "", fmt.Errorf("%w: failed to resolve category slug: %w", ErrInventoryStoreFailed, err)
	}

	return id, nil
}
