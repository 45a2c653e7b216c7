package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/testcontainers/testcontainers-go"

	"github.com/herdbook-io/herdbook/internal/aliasing"
	"github.com/herdbook-io/herdbook/internal/config"
	"github.com/herdbook-io/herdbook/internal/inventory"
)

// inventoryFixture holds the store plus the registry rows most tests need:
// one farm, one custom category and one audit actor.
type inventoryFixture struct {
	store      *InventoryStore
	db         *config.TestDatabase
	actorID    string
	farmID     string
	categoryID string
}

func setupInventoryStore(ctx context.Context, t *testing.T, opts ...InventoryStoreOption) (*InventoryStore, *config.TestDatabase) {
	t.Helper()

	testDB := config.SetupTestDatabase(ctx, t)
	t.Cleanup(func() {
		_ = testDB.Connection.Close()
		_ = testcontainers.TerminateContainer(testDB.Container)
	})

	store, err := NewInventoryStore(NewConnectionFromDB(testDB.Connection), opts...)
	if err != nil {
		t.Fatalf("Failed to create inventory store: %v", err)
	}

	return store, testDB
}

func setupInventoryFixture(ctx context.Context, t *testing.T) *inventoryFixture {
	t.Helper()

	store, testDB := setupInventoryStore(ctx, t)

	actor, err := store.CreateUser(ctx, "Test Operator")
	if err != nil {
		t.Fatalf("Failed to create actor: %v", err)
	}

	farm, err := store.CreateFarm(ctx, "Fazenda Teste")
	if err != nil {
		t.Fatalf("Failed to create farm: %v", err)
	}

	category, err := store.CreateCategory(ctx, "Gado Geral", "", 1)
	if err != nil {
		t.Fatalf("Failed to create category: %v", err)
	}

	return &inventoryFixture{
		store:      store,
		db:         testDB,
		actorID:    actor.ID,
		farmID:     farm.ID,
		categoryID: category.ID,
	}
}

// seedStock records a purchase so exit tests start from a known quantity.
func (f *inventoryFixture) seedStock(ctx context.Context, t *testing.T, quantity int) {
	t.Helper()

	_, err := f.store.RecordEntry(ctx, inventory.MovementRequest{
		FarmID:     f.farmID,
		CategoryID: f.categoryID,
		Operation:  inventory.OpPurchase,
		Quantity:   quantity,
		ActorID:    f.actorID,
	})
	if err != nil {
		t.Fatalf("Failed to seed stock: %v", err)
	}
}

func (f *inventoryFixture) currentQuantity(ctx context.Context, t *testing.T) int {
	t.Helper()

	balance, err := f.store.Balance(ctx, f.farmID, f.categoryID)
	if err != nil {
		t.Fatalf("Failed to read balance: %v", err)
	}

	return balance.CurrentQuantity
}

func TestRecordMovements(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	f := setupInventoryFixture(ctx, t)

	t.Run("entry increments the snapshot", func(t *testing.T) {
		movement, err := f.store.RecordEntry(ctx, inventory.MovementRequest{
			FarmID:     f.farmID,
			CategoryID: f.categoryID,
			Operation:  inventory.OpBirth,
			Quantity:   10,
			ActorID:    f.actorID,
			Metadata:   inventory.Metadata{inventory.MetaObservation: "lote da manhã"},
		})
		if err != nil {
			t.Fatalf("RecordEntry() error = %v", err)
		}

		if movement.ID == "" || movement.BalanceID == "" {
			t.Errorf("movement missing identifiers: %+v", movement)
		}

		if movement.MovementType != inventory.MovementEntry {
			t.Errorf("MovementType = %q, want ENTRY", movement.MovementType)
		}

		if got := f.currentQuantity(ctx, t); got != 10 {
			t.Errorf("balance after entry = %d, want 10", got)
		}
	})

	t.Run("exit decrements the snapshot", func(t *testing.T) {
		_, err := f.store.RecordExit(ctx, inventory.MovementRequest{
			FarmID:     f.farmID,
			CategoryID: f.categoryID,
			Operation:  inventory.OpSlaughter,
			Quantity:   3,
			ActorID:    f.actorID,
		})
		if err != nil {
			t.Fatalf("RecordExit() error = %v", err)
		}

		if got := f.currentQuantity(ctx, t); got != 7 {
			t.Errorf("balance after exit = %d, want 7", got)
		}
	})

	t.Run("exit beyond stock is rejected", func(t *testing.T) {
		before := f.currentQuantity(ctx, t)

		_, err := f.store.RecordExit(ctx, inventory.MovementRequest{
			FarmID:     f.farmID,
			CategoryID: f.categoryID,
			Operation:  inventory.OpSlaughter,
			Quantity:   before + 1,
			ActorID:    f.actorID,
		})
		if !errors.Is(err, inventory.ErrInsufficientStock) {
			t.Fatalf("RecordExit() error = %v, want ErrInsufficientStock", err)
		}

		if got := f.currentQuantity(ctx, t); got != before {
			t.Errorf("balance changed on rejected exit: %d, want %d", got, before)
		}
	})

	t.Run("exit draining the balance to zero succeeds", func(t *testing.T) {
		remaining := f.currentQuantity(ctx, t)

		_, err := f.store.RecordExit(ctx, inventory.MovementRequest{
			FarmID:     f.farmID,
			CategoryID: f.categoryID,
			Operation:  inventory.OpSlaughter,
			Quantity:   remaining,
			ActorID:    f.actorID,
		})
		if err != nil {
			t.Fatalf("RecordExit() error = %v", err)
		}

		if got := f.currentQuantity(ctx, t); got != 0 {
			t.Errorf("balance after full drain = %d, want 0", got)
		}
	})

	t.Run("unknown balance is rejected", func(t *testing.T) {
		_, err := f.store.RecordEntry(ctx, inventory.MovementRequest{
			FarmID:     "00000000-0000-0000-0000-000000000000",
			CategoryID: f.categoryID,
			Operation:  inventory.OpBirth,
			Quantity:   1,
			ActorID:    f.actorID,
		})
		if !errors.Is(err, inventory.ErrStockBalanceNotFound) {
			t.Errorf("RecordEntry() error = %v, want ErrStockBalanceNotFound", err)
		}
	})

	t.Run("exit operation through entry endpoint is rejected", func(t *testing.T) {
		_, err := f.store.RecordEntry(ctx, inventory.MovementRequest{
			FarmID:     f.farmID,
			CategoryID: f.categoryID,
			Operation:  inventory.OpSale,
			Quantity:   1,
			ActorID:    f.actorID,
			ClientID:   "irrelevant",
		})
		if !errors.Is(err, inventory.ErrInvalidOperation) {
			t.Errorf("RecordEntry() error = %v, want ErrInvalidOperation", err)
		}
	})

	t.Run("missing actor is rejected", func(t *testing.T) {
		_, err := f.store.RecordEntry(ctx, inventory.MovementRequest{
			FarmID:     f.farmID,
			CategoryID: f.categoryID,
			Operation:  inventory.OpBirth,
			Quantity:   1,
		})
		if !errors.Is(err, inventory.ErrInvalidOperation) {
			t.Errorf("RecordEntry() error = %v, want ErrInvalidOperation", err)
		}
	})
}

func TestMovementCompanionReferences(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	f := setupInventoryFixture(ctx, t)
	f.seedStock(ctx, t, 20)

	client, err := f.store.CreateClient(ctx, "Frigorífico Central")
	if err != nil {
		t.Fatalf("CreateClient() error = %v", err)
	}

	reason, err := f.store.CreateDeathReason(ctx, "Doença")
	if err != nil {
		t.Fatalf("CreateDeathReason() error = %v", err)
	}

	t.Run("sale without client is rejected", func(t *testing.T) {
		_, err := f.store.RecordExit(ctx, inventory.MovementRequest{
			FarmID:     f.farmID,
			CategoryID: f.categoryID,
			Operation:  inventory.OpSale,
			Quantity:   2,
			ActorID:    f.actorID,
		})
		if !errors.Is(err, inventory.ErrInvalidOperation) {
			t.Errorf("RecordExit() error = %v, want ErrInvalidOperation", err)
		}
	})

	t.Run("sale with client is recorded", func(t *testing.T) {
		movement, err := f.store.RecordExit(ctx, inventory.MovementRequest{
			FarmID:     f.farmID,
			CategoryID: f.categoryID,
			Operation:  inventory.OpSale,
			Quantity:   2,
			ActorID:    f.actorID,
			ClientID:   client.ID,
			Metadata:   inventory.Metadata{inventory.MetaPrice: 1850.0},
		})
		if err != nil {
			t.Fatalf("RecordExit() error = %v", err)
		}

		if movement.ClientID != client.ID {
			t.Errorf("ClientID = %q, want %q", movement.ClientID, client.ID)
		}
	})

	t.Run("death without reason is rejected", func(t *testing.T) {
		_, err := f.store.RecordExit(ctx, inventory.MovementRequest{
			FarmID:     f.farmID,
			CategoryID: f.categoryID,
			Operation:  inventory.OpDeath,
			Quantity:   1,
			ActorID:    f.actorID,
		})
		if !errors.Is(err, inventory.ErrInvalidOperation) {
			t.Errorf("RecordExit() error = %v, want ErrInvalidOperation", err)
		}
	})

	t.Run("death with reason is recorded", func(t *testing.T) {
		movement, err := f.store.RecordExit(ctx, inventory.MovementRequest{
			FarmID:        f.farmID,
			CategoryID:    f.categoryID,
			Operation:     inventory.OpDeath,
			Quantity:      1,
			ActorID:       f.actorID,
			DeathReasonID: reason.ID,
		})
		if err != nil {
			t.Fatalf("RecordExit() error = %v", err)
		}

		if movement.DeathReasonID != reason.ID {
			t.Errorf("DeathReasonID = %q, want %q", movement.DeathReasonID, reason.ID)
		}
	})

	t.Run("dangling client reference is rejected by the database", func(t *testing.T) {
		_, err := f.store.RecordExit(ctx, inventory.MovementRequest{
			FarmID:     f.farmID,
			CategoryID: f.categoryID,
			Operation:  inventory.OpSale,
			Quantity:   1,
			ActorID:    f.actorID,
			ClientID:   "11111111-1111-1111-1111-111111111111",
		})
		if !errors.Is(err, inventory.ErrInvalidOperation) {
			t.Errorf("RecordExit() error = %v, want ErrInvalidOperation", err)
		}
	})
}

func TestTransferBetweenFarms(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	f := setupInventoryFixture(ctx, t)
	f.seedStock(ctx, t, 50)

	targetFarm, err := f.store.CreateFarm(ctx, "Fazenda Destino")
	if err != nil {
		t.Fatalf("CreateFarm() error = %v", err)
	}

	t.Run("transfer moves stock atomically", func(t *testing.T) {
		pair, err := f.store.Transfer(ctx, inventory.TransferRequest{
			SourceFarmID: f.farmID,
			TargetFarmID: targetFarm.ID,
			CategoryID:   f.categoryID,
			Quantity:     20,
			ActorID:      f.actorID,
		})
		if err != nil {
			t.Fatalf("Transfer() error = %v", err)
		}

		if pair.Out.OperationType != inventory.OpTransferOut {
			t.Errorf("Out.OperationType = %q, want TRANSFER_OUT", pair.Out.OperationType)
		}

		if pair.In.OperationType != inventory.OpTransferIn {
			t.Errorf("In.OperationType = %q, want TRANSFER_IN", pair.In.OperationType)
		}

		if pair.In.RelatedMovementID != pair.Out.ID {
			t.Errorf("In.RelatedMovementID = %q, want %q", pair.In.RelatedMovementID, pair.Out.ID)
		}

		// A transfer is one event; both legs carry the same occurred_at even
		// when the caller leaves the timestamp to the server.
		if !pair.Out.Timestamp.Equal(pair.In.Timestamp) {
			t.Errorf("leg timestamps differ: out=%v in=%v", pair.Out.Timestamp, pair.In.Timestamp)
		}

		if pair.Out.Timestamp.IsZero() {
			t.Error("defaulted timestamp is zero")
		}

		if got := f.currentQuantity(ctx, t); got != 30 {
			t.Errorf("source balance = %d, want 30", got)
		}

		targetBalance, err := f.store.Balance(ctx, targetFarm.ID, f.categoryID)
		if err != nil {
			t.Fatalf("Balance() error = %v", err)
		}

		if targetBalance.CurrentQuantity != 20 {
			t.Errorf("target balance = %d, want 20", targetBalance.CurrentQuantity)
		}
	})

	t.Run("insufficient source stock rolls back both legs", func(t *testing.T) {
		_, err := f.store.Transfer(ctx, inventory.TransferRequest{
			SourceFarmID: f.farmID,
			TargetFarmID: targetFarm.ID,
			CategoryID:   f.categoryID,
			Quantity:     1000,
			ActorID:      f.actorID,
		})
		if !errors.Is(err, inventory.ErrInsufficientStock) {
			t.Fatalf("Transfer() error = %v, want ErrInsufficientStock", err)
		}

		if got := f.currentQuantity(ctx, t); got != 30 {
			t.Errorf("source balance after failed transfer = %d, want 30", got)
		}

		targetBalance, err := f.store.Balance(ctx, targetFarm.ID, f.categoryID)
		if err != nil {
			t.Fatalf("Balance() error = %v", err)
		}

		if targetBalance.CurrentQuantity != 20 {
			t.Errorf("target balance after failed transfer = %d, want 20", targetBalance.CurrentQuantity)
		}
	})

	t.Run("same farm transfer is rejected", func(t *testing.T) {
		_, err := f.store.Transfer(ctx, inventory.TransferRequest{
			SourceFarmID: f.farmID,
			TargetFarmID: f.farmID,
			CategoryID:   f.categoryID,
			Quantity:     1,
			ActorID:      f.actorID,
		})
		if !errors.Is(err, inventory.ErrInvalidOperation) {
			t.Errorf("Transfer() error = %v, want ErrInvalidOperation", err)
		}
	})
}

func TestCategoryChange(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	f := setupInventoryFixture(ctx, t)
	f.seedStock(ctx, t, 15)

	target, err := f.store.CreateCategory(ctx, "Engorda", "", 2)
	if err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}

	pair, err := f.store.ChangeCategory(ctx, inventory.CategoryChangeRequest{
		FarmID:           f.farmID,
		SourceCategoryID: f.categoryID,
		TargetCategoryID: target.ID,
		Quantity:         6,
		ActorID:          f.actorID,
	})
	if err != nil {
		t.Fatalf("ChangeCategory() error = %v", err)
	}

	if pair.Out.OperationType != inventory.OpCategoryChangeOut {
		t.Errorf("Out.OperationType = %q, want CATEGORY_CHANGE_OUT", pair.Out.OperationType)
	}

	if kind := pair.Out.Metadata.String(inventory.MetaTransferKind); kind != inventory.TransferKindCategory {
		t.Errorf("transfer kind = %q, want %q", kind, inventory.TransferKindCategory)
	}

	if !pair.Out.Timestamp.Equal(pair.In.Timestamp) {
		t.Errorf("leg timestamps differ: out=%v in=%v", pair.Out.Timestamp, pair.In.Timestamp)
	}

	if got := f.currentQuantity(ctx, t); got != 9 {
		t.Errorf("source category balance = %d, want 9", got)
	}

	targetBalance, err := f.store.Balance(ctx, f.farmID, target.ID)
	if err != nil {
		t.Fatalf("Balance() error = %v", err)
	}

	if targetBalance.CurrentQuantity != 6 {
		t.Errorf("target category balance = %d, want 6", targetBalance.CurrentQuantity)
	}
}

func TestWeaning(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	f := setupInventoryFixture(ctx, t)

	t.Run("weaning before seeding fails", func(t *testing.T) {
		_, err := f.store.Wean(ctx, inventory.WeaningRequest{
			FarmID:  f.farmID,
			Males:   5,
			Females: 5,
			ActorID: f.actorID,
		})
		if !errors.Is(err, inventory.ErrWeaningCategoryNotFound) {
			t.Fatalf("Wean() error = %v, want ErrWeaningCategoryNotFound", err)
		}
	})

	if _, err := f.store.SeedSystemCategories(ctx); err != nil {
		t.Fatalf("SeedSystemCategories() error = %v", err)
	}

	maleCalves, err := f.store.CategoryBySlug(ctx, inventory.SlugMaleCalf)
	if err != nil {
		t.Fatalf("CategoryBySlug() error = %v", err)
	}

	femaleCalves, err := f.store.CategoryBySlug(ctx, inventory.SlugFemaleCalf)
	if err != nil {
		t.Fatalf("CategoryBySlug() error = %v", err)
	}

	for _, seed := range []struct {
		categoryID string
		quantity   int
	}{
		{maleCalves.ID, 12},
		{femaleCalves.ID, 8},
	} {
		_, err := f.store.RecordEntry(ctx, inventory.MovementRequest{
			FarmID:     f.farmID,
			CategoryID: seed.categoryID,
			Operation:  inventory.OpBirth,
			Quantity:   seed.quantity,
			ActorID:    f.actorID,
		})
		if err != nil {
			t.Fatalf("RecordEntry() error = %v", err)
		}
	}

	t.Run("weaning promotes both sexes in one transaction", func(t *testing.T) {
		result, err := f.store.Wean(ctx, inventory.WeaningRequest{
			FarmID:  f.farmID,
			Males:   10,
			Females: 8,
			ActorID: f.actorID,
		})
		if err != nil {
			t.Fatalf("Wean() error = %v", err)
		}

		if result.Males == nil || result.Females == nil {
			t.Fatalf("weaning result incomplete: %+v", result)
		}

		if result.Males.Out.OperationType != inventory.OpWeaningOut {
			t.Errorf("male Out.OperationType = %q, want WEANING_OUT", result.Males.Out.OperationType)
		}

		// All four movements of a full weaning record the same event time.
		for _, movement := range []*inventory.Movement{
			result.Males.In, result.Females.Out, result.Females.In,
		} {
			if !movement.Timestamp.Equal(result.Males.Out.Timestamp) {
				t.Errorf("weaning timestamps differ: %v vs %v",
					movement.Timestamp, result.Males.Out.Timestamp)
			}
		}

		steers, err := f.store.CategoryBySlug(ctx, inventory.SlugSteer2Y)
		if err != nil {
			t.Fatalf("CategoryBySlug() error = %v", err)
		}

		steerBalance, err := f.store.Balance(ctx, f.farmID, steers.ID)
		if err != nil {
			t.Fatalf("Balance() error = %v", err)
		}

		if steerBalance.CurrentQuantity != 10 {
			t.Errorf("steer balance = %d, want 10", steerBalance.CurrentQuantity)
		}

		heifers, err := f.store.CategoryBySlug(ctx, inventory.SlugHeifer2Y)
		if err != nil {
			t.Fatalf("CategoryBySlug() error = %v", err)
		}

		heiferBalance, err := f.store.Balance(ctx, f.farmID, heifers.ID)
		if err != nil {
			t.Fatalf("Balance() error = %v", err)
		}

		if heiferBalance.CurrentQuantity != 8 {
			t.Errorf("heifer balance = %d, want 8", heiferBalance.CurrentQuantity)
		}

		maleCalfBalance, err := f.store.Balance(ctx, f.farmID, maleCalves.ID)
		if err != nil {
			t.Fatalf("Balance() error = %v", err)
		}

		if maleCalfBalance.CurrentQuantity != 2 {
			t.Errorf("male calf balance = %d, want 2", maleCalfBalance.CurrentQuantity)
		}
	})

	t.Run("insufficient calves roll back every leg", func(t *testing.T) {
		_, err := f.store.Wean(ctx, inventory.WeaningRequest{
			FarmID:  f.farmID,
			Males:   2,
			Females: 500,
			ActorID: f.actorID,
		})
		if !errors.Is(err, inventory.ErrInsufficientStock) {
			t.Fatalf("Wean() error = %v, want ErrInsufficientStock", err)
		}

		// The male leg above would have succeeded alone; the female failure
		// must undo it.
		maleCalfBalance, err := f.store.Balance(ctx, f.farmID, maleCalves.ID)
		if err != nil {
			t.Fatalf("Balance() error = %v", err)
		}

		if maleCalfBalance.CurrentQuantity != 2 {
			t.Errorf("male calf balance after rollback = %d, want 2", maleCalfBalance.CurrentQuantity)
		}
	})
}

func TestLedgerImmutability(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	f := setupInventoryFixture(ctx, t)

	movement, err := f.store.RecordEntry(ctx, inventory.MovementRequest{
		FarmID:     f.farmID,
		CategoryID: f.categoryID,
		Operation:  inventory.OpBirth,
		Quantity:   5,
		ActorID:    f.actorID,
	})
	if err != nil {
		t.Fatalf("RecordEntry() error = %v", err)
	}

	_, err = f.db.Connection.ExecContext(ctx,
		`UPDATE animal_movements SET quantity = 999 WHERE id = $1`, movement.ID)
	if err == nil {
		t.Error("UPDATE on animal_movements succeeded, want trigger rejection")
	}

	_, err = f.db.Connection.ExecContext(ctx,
		`DELETE FROM animal_movements WHERE id = $1`, movement.ID)
	if err == nil {
		t.Error("DELETE on animal_movements succeeded, want trigger rejection")
	}

	// The failed statements must not have touched the row.
	var quantity int
	err = f.db.Connection.QueryRowContext(ctx,
		`SELECT quantity FROM animal_movements WHERE id = $1`, movement.ID).Scan(&quantity)

	if err != nil {
		t.Fatalf("Failed to re-read movement: %v", err)
	}

	if quantity != 5 {
		t.Errorf("quantity = %d, want 5", quantity)
	}
}

func TestOptimisticVersionConflict(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	f := setupInventoryFixture(ctx, t)
	f.seedStock(ctx, t, 10)

	balance, err := f.store.Balance(ctx, f.farmID, f.categoryID)
	if err != nil {
		t.Fatalf("Balance() error = %v", err)
	}

	// Simulate a stale read: apply the snapshot update with a version the
	// database has already moved past.
	tx, err := f.db.Connection.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx() error = %v", err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	stale := &lockedBalance{
		id:         balance.ID,
		farmID:     balance.FarmID,
		categoryID: balance.CategoryID,
		quantity:   balance.CurrentQuantity,
		version:    balance.Version - 1,
	}

	err = updateSnapshot(ctx, tx, stale, 42)
	if !errors.Is(err, inventory.ErrConcurrencyConflict) {
		t.Errorf("updateSnapshot() with stale version = %v, want ErrConcurrencyConflict", err)
	}

	if !inventory.Retriable(err) {
		t.Error("version conflict should be retriable")
	}
}

func TestSeedSystemCategories(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	f := setupInventoryFixture(ctx, t)

	t.Run("first run creates all system categories", func(t *testing.T) {
		report, err := f.store.SeedSystemCategories(ctx)
		if err != nil {
			t.Fatalf("SeedSystemCategories() error = %v", err)
		}

		want := len(inventory.SystemCategories)
		if report.Created != want || report.Adopted != 0 || report.Skipped != 0 {
			t.Errorf("report = %+v, want created=%d adopted=0 skipped=0", report, want)
		}
	})

	t.Run("second run skips everything", func(t *testing.T) {
		report, err := f.store.SeedSystemCategories(ctx)
		if err != nil {
			t.Fatalf("SeedSystemCategories() error = %v", err)
		}

		want := len(inventory.SystemCategories)
		if report.Created != 0 || report.Adopted != 0 || report.Skipped != want {
			t.Errorf("report = %+v, want created=0 adopted=0 skipped=%d", report, want)
		}
	})

	t.Run("seeding materializes balances on every farm", func(t *testing.T) {
		balances, err := f.store.FarmBalances(ctx, f.farmID)
		if err != nil {
			t.Fatalf("FarmBalances() error = %v", err)
		}

		// One balance for the fixture category plus one per system category.
		want := len(inventory.SystemCategories) + 1
		if len(balances) != want {
			t.Errorf("len(balances) = %d, want %d", len(balances), want)
		}

		for _, balance := range balances {
			if balance.CurrentQuantity != 0 && balance.CategoryID != f.categoryID {
				t.Errorf("materialized balance %s has quantity %d, want 0",
					balance.ID, balance.CurrentQuantity)
			}
		}
	})

	t.Run("drifted system category is repaired", func(t *testing.T) {
		// Deactivate one system category and skew its display order behind
		// the store's back.
		_, err := f.db.Connection.ExecContext(ctx, `
			UPDATE animal_categories SET active = FALSE, is_system = FALSE, display_order = 99
			WHERE slug = $1
		`, inventory.SlugBulls)
		if err != nil {
			t.Fatalf("Failed to drift category: %v", err)
		}

		report, err := f.store.SeedSystemCategories(ctx)
		if err != nil {
			t.Fatalf("SeedSystemCategories() error = %v", err)
		}

		if report.Updated != 1 || report.Skipped != len(inventory.SystemCategories)-1 {
			t.Errorf("report = %+v, want updated=1 skipped=%d",
				report, len(inventory.SystemCategories)-1)
		}

		repaired, err := f.store.CategoryBySlug(ctx, inventory.SlugBulls)
		if err != nil {
			t.Fatalf("CategoryBySlug() error = %v", err)
		}

		if !repaired.Active || !repaired.IsSystem {
			t.Errorf("category not repaired: active=%v system=%v", repaired.Active, repaired.IsSystem)
		}

		if repaired.DisplayOrder == 99 {
			t.Error("display order was not restored")
		}
	})
}

func TestSeederAdoption(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	resolver := aliasing.NewResolver(&aliasing.Config{
		CategoryAliases: map[string]string{
			"Bois 2 anos": inventory.SlugSteer2Y,
		},
	})

	store, _ := setupInventoryStore(ctx, t, WithAliasResolver(resolver))

	// A canonical-name match and an alias match, both unslugged.
	if _, err := store.CreateCategory(ctx, "Touros", "", 1); err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}

	legacy, err := store.CreateCategory(ctx, "Bois 2 anos", "", 7)
	if err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}

	report, err := store.SeedSystemCategories(ctx)
	if err != nil {
		t.Fatalf("SeedSystemCategories() error = %v", err)
	}

	if report.Adopted != 2 {
		t.Errorf("report.Adopted = %d, want 2", report.Adopted)
	}

	if report.Created != len(inventory.SystemCategories)-2 {
		t.Errorf("report.Created = %d, want %d", report.Created, len(inventory.SystemCategories)-2)
	}

	// The legacy category must now carry the system slug, not sit next to a
	// duplicate.
	adopted, err := store.CategoryBySlug(ctx, inventory.SlugSteer2Y)
	if err != nil {
		t.Fatalf("CategoryBySlug() error = %v", err)
	}

	if adopted.ID != legacy.ID {
		t.Errorf("adopted category ID = %q, want legacy ID %q", adopted.ID, legacy.ID)
	}

	if adopted.Name != "Bois 2 anos" {
		t.Errorf("adopted category kept name %q, want original preserved", adopted.Name)
	}

	if !adopted.IsSystem {
		t.Error("adopted category is not flagged as system")
	}
}

func TestBalanceMaterialization(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	f := setupInventoryFixture(ctx, t)

	t.Run("new farm gets balances for existing categories", func(t *testing.T) {
		farm, err := f.store.CreateFarm(ctx, "Fazenda Nova")
		if err != nil {
			t.Fatalf("CreateFarm() error = %v", err)
		}

		balance, err := f.store.Balance(ctx, farm.ID, f.categoryID)
		if err != nil {
			t.Fatalf("Balance() error = %v", err)
		}

		if balance.CurrentQuantity != 0 {
			t.Errorf("new balance quantity = %d, want 0", balance.CurrentQuantity)
		}
	})

	t.Run("new category gets balances for existing farms", func(t *testing.T) {
		category, err := f.store.CreateCategory(ctx, "Bezerros Desmama", "", 5)
		if err != nil {
			t.Fatalf("CreateCategory() error = %v", err)
		}

		balance, err := f.store.Balance(ctx, f.farmID, category.ID)
		if err != nil {
			t.Fatalf("Balance() error = %v", err)
		}

		if balance.CurrentQuantity != 0 {
			t.Errorf("new balance quantity = %d, want 0", balance.CurrentQuantity)
		}
	})

	t.Run("duplicate names are rejected", func(t *testing.T) {
		if _, err := f.store.CreateFarm(ctx, "Fazenda Nova"); !errors.Is(err, ErrDuplicateName) {
			t.Errorf("CreateFarm() duplicate = %v, want ErrDuplicateName", err)
		}

		if _, err := f.store.CreateCategory(ctx, "Bezerros Desmama", "", 5); !errors.Is(err, ErrDuplicateName) {
			t.Errorf("CreateCategory() duplicate = %v, want ErrDuplicateName", err)
		}
	})

	t.Run("inactive farms get no new balances", func(t *testing.T) {
		retired, err := f.store.CreateFarm(ctx, "Fazenda Desativada")
		if err != nil {
			t.Fatalf("CreateFarm() error = %v", err)
		}

		_, err = f.db.Connection.ExecContext(ctx,
			`UPDATE farms SET active = FALSE WHERE id = $1`, retired.ID)
		if err != nil {
			t.Fatalf("Failed to deactivate farm: %v", err)
		}

		category, err := f.store.CreateCategory(ctx, "Recria", "", 6)
		if err != nil {
			t.Fatalf("CreateCategory() error = %v", err)
		}

		if _, err := f.store.Balance(ctx, retired.ID, category.ID); !errors.Is(err, inventory.ErrStockBalanceNotFound) {
			t.Errorf("Balance() on retired farm = %v, want ErrStockBalanceNotFound", err)
		}

		// Active farms still get the new category.
		if _, err := f.store.Balance(ctx, f.farmID, category.ID); err != nil {
			t.Errorf("Balance() on active farm error = %v", err)
		}

		// The seeder's materialization honors the same boundary.
		if _, err := f.store.SeedSystemCategories(ctx); err != nil {
			t.Fatalf("SeedSystemCategories() error = %v", err)
		}

		steers, err := f.store.CategoryBySlug(ctx, inventory.SlugSteer2Y)
		if err != nil {
			t.Fatalf("CategoryBySlug() error = %v", err)
		}

		if _, err := f.store.Balance(ctx, retired.ID, steers.ID); !errors.Is(err, inventory.ErrStockBalanceNotFound) {
			t.Errorf("seeded Balance() on retired farm = %v, want ErrStockBalanceNotFound", err)
		}

		if _, err := f.store.Balance(ctx, f.farmID, steers.ID); err != nil {
			t.Errorf("seeded Balance() on active farm error = %v", err)
		}
	})
}
