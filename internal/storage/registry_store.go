package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/herdbook-io/herdbook/internal/aliasing"
	"github.com/herdbook-io/herdbook/internal/inventory"
)

// Registry operations: farms, categories, balance materialization and the
// system category seeder.
//
// Materialization keeps the (farm, category) cross product complete: every
// farm creation inserts a zero balance for every active category, and every
// category creation inserts one for every active farm. Movements therefore
// never have to create balance rows on the fly.

var (
	// ErrDuplicateName is returned when a farm or category name collides
	// with an existing one.
	ErrDuplicateName = errors.New("name already exists")

	// ErrEmptyName is returned when a farm or category name is blank.
	ErrEmptyName = errors.New("name cannot be empty")
)

// CreateFarm implements inventory.Registry.
func (s *InventoryStore) CreateFarm(ctx context.Context, name string) (*inventory.Farm, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyName
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to begin transaction: %w", ErrInventoryStoreFailed, err)
	}

	defer func() {
		_ = tx.Rollback() // Safe to call even after commit
	}()

	farm := &inventory.Farm{
		ID:     uuid.NewString(),
		Name:   strings.TrimSpace(name),
		Active: true,
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO farms (id, name) VALUES ($1, $2) RETURNING created_at, updated_at`,
		farm.ID, farm.Name,
	).Scan(&farm.CreatedAt, &farm.UpdatedAt)
	if err != nil {
		return nil, classifyRegistryError(err, "farm")
	}

	// Materialize a zero balance for every active category.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO stock_balances (id, farm_id, category_id)
		SELECT gen_random_uuid(), $1, c.id
		FROM animal_categories c
		WHERE c.active = TRUE
		ON CONFLICT (farm_id, category_id) DO NOTHING
	`, farm.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to materialize balances: %w", ErrInventoryStoreFailed, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: failed to commit farm creation: %w", ErrInventoryStoreFailed, err)
	}

	s.logger.Info("farm created",
		slog.String("farm_id", farm.ID),
		slog.String("name", farm.Name),
	)

	return farm, nil
}

// CreateCategory implements inventory.Registry. Custom categories have no
// slug and can be deactivated later; only the seeder creates system ones.
func (s *InventoryStore) CreateCategory(
	ctx context.Context,
	name, description string,
	displayOrder int,
) (*inventory.AnimalCategory, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyName
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to begin transaction: %w", ErrInventoryStoreFailed, err)
	}

	defer func() {
		_ = tx.Rollback() // Safe to call even after commit
	}()

	category := &inventory.AnimalCategory{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(name),
		Description:  description,
		IsSystem:     false,
		Active:       true,
		DisplayOrder: displayOrder,
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO animal_categories (id, name, description, display_order)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, category.ID, category.Name, category.Description, category.DisplayOrder,
	).Scan(&category.CreatedAt)
	if err != nil {
		return nil, classifyRegistryError(err, "category")
	}

	if err := materializeCategoryBalances(ctx, tx, category.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: failed to commit category creation: %w", ErrInventoryStoreFailed, err)
	}

	s.logger.Info("category created",
		slog.String("category_id", category.ID),
		slog.String("name", category.Name),
	)

	return category, nil
}

// SeedSystemCategories implements inventory.Registry. One transaction per
// pass; safe to run on every deployment.
//
// Per system category, in order:
//  1. Slug already present: force the system and active flags back on and
//     refresh description and display order if they drifted (updated);
//     otherwise leave the row untouched (skipped).
//  2. An unslugged category matches the canonical name or a configured
//     alias: adopt it by setting the slug and system flag (adopted).
//  3. Otherwise create the category fresh (created).
//
// Every pass ends by materializing balances for all (active farm, system
// category) pairs, covering categories adopted or created mid-lifecycle.
func (s *InventoryStore) SeedSystemCategories(ctx context.Context) (*inventory.SeedReport, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to begin transaction: %w", ErrInventoryStoreFailed, err)
	}

	defer func() {
		_ = tx.Rollback() // Safe to call even after commit
	}()

	adoptable, err := unsluggedCategories(ctx, tx)
	if err != nil {
		return nil, err
	}

	report := &inventory.SeedReport{}

	for _, spec := range inventory.SystemCategories {
		existing, err := systemCategoryBySlugInTx(ctx, tx, spec.Slug)

		switch {
		case err == nil:
			changed, err := syncSystemCategory(ctx, tx, existing, spec)
			if err != nil {
				return nil, err
			}

			if changed {
				report.Updated++

				s.logger.Info("repaired drifted system category",
					slog.String("slug", spec.Slug),
					slog.String("category_id", existing.id),
				)
			} else {
				report.Skipped++
			}

			continue
		case !errors.Is(err, sql.ErrNoRows):
			return nil, fmt.Errorf("%w: failed to check slug %q: %w", ErrInventoryStoreFailed, spec.Slug, err)
		}

		if adoptID := s.findAdoptable(adoptable, spec); adoptID != "" {
			// The name stays as the legacy one; everything else follows the
			// canonical definition so the next pass skips this row.
			_, err := tx.ExecContext(ctx, `
				UPDATE animal_categories
				SET slug = $1, description = $2, is_system = TRUE, active = TRUE, display_order = $3
				WHERE id = $4
			`, spec.Slug, spec.Description, spec.DisplayOrder, adoptID)
			if err != nil {
				return nil, fmt.Errorf("%w: failed to adopt category for slug %q: %w",
					ErrInventoryStoreFailed, spec.Slug, err)
			}

			delete(adoptable, adoptID)

			report.Adopted++

			s.logger.Info("adopted existing category",
				slog.String("slug", spec.Slug),
				slog.String("category_id", adoptID),
			)

			continue
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO animal_categories (id, name, slug, description, is_system, display_order)
			VALUES ($1, $2, $3, $4, TRUE, $5)
		`, uuid.NewString(), spec.Name, spec.Slug, spec.Description, spec.DisplayOrder)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to create system category %q: %w",
				ErrInventoryStoreFailed, spec.Slug, err)
		}

		report.Created++
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO stock_balances (id, farm_id, category_id)
		SELECT gen_random_uuid(), f.id, c.id
		FROM farms f
		CROSS JOIN animal_categories c
		WHERE f.active = TRUE AND c.is_system = TRUE
		ON CONFLICT (farm_id, category_id) DO NOTHING
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to materialize system balances: %w", ErrInventoryStoreFailed, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: failed to commit seeding: %w", ErrInventoryStoreFailed, err)
	}

	s.logger.Info("system categories seeded",
		slog.Int("created", report.Created),
		slog.Int("adopted", report.Adopted),
		slog.Int("updated", report.Updated),
		slog.Int("skipped", report.Skipped),
	)

	return report, nil
}

// Balance implements inventory.Registry.
func (s *InventoryStore) Balance(ctx context.Context, farmID, categoryID string) (*inventory.StockBalance, error) {
	var balance inventory.StockBalance

	err := s.conn.QueryRowContext(ctx, `
		SELECT id, farm_id, category_id, current_quantity, version, updated_at
		FROM stock_balances
		WHERE farm_id = $1 AND category_id = $2
	`, farmID, categoryID).Scan(
		&balance.ID, &balance.FarmID, &balance.CategoryID,
		&balance.CurrentQuantity, &balance.Version, &balance.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: farm %q category %q",
			inventory.ErrStockBalanceNotFound, farmID, categoryID)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: failed to read balance: %w", ErrInventoryStoreFailed, err)
	}

	return &balance, nil
}

// FarmBalances implements inventory.Registry.
func (s *InventoryStore) FarmBalances(ctx context.Context, farmID string) ([]*inventory.StockBalance, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT b.id, b.farm_id, b.category_id, b.current_quantity, b.version, b.updated_at
		FROM stock_balances b
		JOIN animal_categories c ON c.id = b.category_id
		WHERE b.farm_id = $1
		ORDER BY c.display_order, c.name
	`, farmID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query farm balances: %w", ErrInventoryStoreFailed, err)
	}

	defer func() {
		_ = rows.Close()
	}()

	balances := []*inventory.StockBalance{}

	for rows.Next() {
		var balance inventory.StockBalance

		err := rows.Scan(
			&balance.ID, &balance.FarmID, &balance.CategoryID,
			&balance.CurrentQuantity, &balance.Version, &balance.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan balance: %w", ErrInventoryStoreFailed, err)
		}

		balances = append(balances, &balance)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating balances: %w", ErrInventoryStoreFailed, err)
	}

	return balances, nil
}

// Farms implements inventory.Registry.
func (s *InventoryStore) Farms(ctx context.Context) ([]*inventory.Farm, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, name, active, created_at, updated_at
		FROM farms
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query farms: %w", ErrInventoryStoreFailed, err)
	}

	defer func() {
		_ = rows.Close()
	}()

	farms := []*inventory.Farm{}

	for rows.Next() {
		var farm inventory.Farm

		err := rows.Scan(&farm.ID, &farm.Name, &farm.Active, &farm.CreatedAt, &farm.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan farm: %w", ErrInventoryStoreFailed, err)
		}

		farms = append(farms, &farm)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating farms: %w", ErrInventoryStoreFailed, err)
	}

	return farms, nil
}

// Categories implements inventory.Registry.
func (s *InventoryStore) Categories(ctx context.Context, includeInactive bool) ([]*inventory.AnimalCategory, error) {
	query := `
		SELECT id, name, slug, description, is_system, active, display_order, created_at
		FROM animal_categories
	`
	if !includeInactive {
		query += ` WHERE active = TRUE`
	}

	query += ` ORDER BY display_order, name`

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query categories: %w", ErrInventoryStoreFailed, err)
	}

	defer func() {
		_ = rows.Close()
	}()

	categories := []*inventory.AnimalCategory{}

	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}

		categories = append(categories, category)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating categories: %w", ErrInventoryStoreFailed, err)
	}

	return categories, nil
}

// CategoryBySlug implements inventory.Registry.
func (s *InventoryStore) CategoryBySlug(ctx context.Context, slug string) (*inventory.AnimalCategory, error) {
	var (
		category inventory.AnimalCategory
		dbSlug   sql.NullString
	)

	err := s.conn.QueryRowContext(ctx, `
		SELECT id, name, slug, description, is_system, active, display_order, created_at
		FROM animal_categories
		WHERE slug = $1
	`, slug).Scan(
		&category.ID, &category.Name, &dbSlug, &category.Description,
		&category.IsSystem, &category.Active, &category.DisplayOrder, &category.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: slug %q", inventory.ErrWeaningCategoryNotFound, slug)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: failed to read category: %w", ErrInventoryStoreFailed, err)
	}

	category.Slug = dbSlug.String

	return &category, nil
}

// findAdoptable matches an unslugged category to a system spec, first via
// the alias table, then via the normalized canonical name.
func (s *InventoryStore) findAdoptable(adoptable map[string]string, spec inventory.SystemCategorySpec) string {
	for id, name := range adoptable {
		if s.resolver != nil && s.resolver.Resolve(name) == spec.Slug {
			return id
		}

		if aliasing.Normalize(name) == aliasing.Normalize(spec.Name) {
			return id
		}
	}

	return ""
}

// systemCategoryRow is the slice of a category row the seeder compares
// against its canonical definition.
type systemCategoryRow struct {
	id           string
	description  string
	isSystem     bool
	active       bool
	displayOrder int
}

// systemCategoryBySlugInTx reads the seeder-relevant fields of the category
// carrying slug. Returns sql.ErrNoRows untouched when the slug is absent.
func systemCategoryBySlugInTx(ctx context.Context, tx *sql.Tx, slug string) (*systemCategoryRow, error) {
	var row systemCategoryRow

	err := tx.QueryRowContext(ctx, `
		SELECT id, description, is_system, active, display_order
		FROM animal_categories
		WHERE slug = $1
	`, slug).Scan(&row.id, &row.description, &row.isSystem, &row.active, &row.displayOrder)
	if err != nil {
		return nil, err
	}

	return &row, nil
}

// syncSystemCategory repairs a slugged category that drifted from its
// canonical definition: the system and active flags are forced back on,
// description and display order are refreshed. The name is left alone so
// adopted legacy names survive reruns. Reports whether anything changed.
func syncSystemCategory(
	ctx context.Context,
	tx *sql.Tx,
	existing *systemCategoryRow,
	spec inventory.SystemCategorySpec,
) (bool, error) {
	if existing.isSystem && existing.active &&
		existing.description == spec.Description &&
		existing.displayOrder == spec.DisplayOrder {
		return false, nil
	}

	_, err := tx.ExecContext(ctx, `
		UPDATE animal_categories
		SET description = $1, display_order = $2, is_system = TRUE, active = TRUE
		WHERE id = $3
	`, spec.Description, spec.DisplayOrder, existing.id)
	if err != nil {
		return false, fmt.Errorf("%w: failed to update system category %q: %w",
			ErrInventoryStoreFailed, spec.Slug, err)
	}

	return true, nil
}

// unsluggedCategories returns id -> name for categories without a slug,
// the only candidates for adoption.
func unsluggedCategories(ctx context.Context, tx *sql.Tx) (map[string]string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, name FROM animal_categories WHERE slug IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list adoptable categories: %w", ErrInventoryStoreFailed, err)
	}

	defer func() {
		_ = rows.Close()
	}()

	result := make(map[string]string)

	for rows.Next() {
		var id, name string

		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("%w: failed to scan category: %w", ErrInventoryStoreFailed, err)
		}

		result[id] = name
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating categories: %w", ErrInventoryStoreFailed, err)
	}

	return result, nil
}

// materializeCategoryBalances inserts a zero balance for the category on
// every active farm.
func materializeCategoryBalances(ctx context.Context, tx *sql.Tx, categoryID string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO stock_balances (id, farm_id, category_id)
		SELECT gen_random_uuid(), f.id, $1
		FROM farms f
		WHERE f.active = TRUE
		ON CONFLICT (farm_id, category_id) DO NOTHING
	`, categoryID)
	if err != nil {
		return fmt.Errorf("%w: failed to materialize balances: %w", ErrInventoryStoreFailed, err)
	}

	return nil
}

// classifyRegistryError maps unique violations to ErrDuplicateName.
func classifyRegistryError(err error, entity string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicateName, entity)
	}

	return fmt.Errorf("%w: failed to insert %s: %w", ErrInventoryStoreFailed, entity, err)
}

// scanCategory reads one category row with its nullable slug.
func scanCategory(rows *sql.Rows) (*inventory.AnimalCategory, error) {
	var (
		category inventory.AnimalCategory
		dbSlug   sql.NullString
	)

	err := rows.Scan(
		&category.ID, &category.Name, &dbSlug, &category.Description,
		&category.IsSystem, &category.Active, &category.DisplayOrder, &category.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to scan category: %w", ErrInventoryStoreFailed, err)
	}

	category.Slug = dbSlug.String

	return &category, nil
}
