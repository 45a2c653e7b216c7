package inventory

import (
	"context"
	"time"
)

type (
	// MovementRequest carries everything needed to record one ledger event.
	// Timestamp is event time and may be backdated; the zero value means now.
	// ClientID and DeathReasonID are required only for the operations that
	// demand them (sales and donations, deaths).
	MovementRequest struct {
		FarmID        string        `json:"farmId"`
		CategoryID    string        `json:"categoryId"`
		Operation     OperationType `json:"operation"`
		Quantity      int           `json:"quantity"`
		Timestamp     time.Time     `json:"timestamp,omitempty"`
		ClientID      string        `json:"clientId,omitempty"`
		DeathReasonID string        `json:"deathReasonId,omitempty"`
		Metadata      Metadata      `json:"metadata,omitempty"`
		ActorID       string        `json:"-"`
		SourceIP      string        `json:"-"`
	}

	// TransferRequest moves animals of one category between two farms.
	TransferRequest struct {
		SourceFarmID string    `json:"sourceFarmId"`
		TargetFarmID string    `json:"targetFarmId"`
		CategoryID   string    `json:"categoryId"`
		Quantity     int       `json:"quantity"`
		Timestamp    time.Time `json:"timestamp,omitempty"`
		Metadata     Metadata  `json:"metadata,omitempty"`
		ActorID      string    `json:"-"`
		SourceIP     string    `json:"-"`
	}

	// CategoryChangeRequest reclassifies animals within one farm.
	CategoryChangeRequest struct {
		FarmID           string    `json:"farmId"`
		SourceCategoryID string    `json:"sourceCategoryId"`
		TargetCategoryID string    `json:"targetCategoryId"`
		Quantity         int       `json:"quantity"`
		Timestamp        time.Time `json:"timestamp,omitempty"`
		Metadata         Metadata  `json:"metadata,omitempty"`
		ActorID          string    `json:"-"`
		SourceIP         string    `json:"-"`
	}

	// WeaningRequest promotes calves to their yearling categories on one
	// farm. Either quantity may be zero, but not both.
	WeaningRequest struct {
		FarmID    string    `json:"farmId"`
		Males     int       `json:"males"`
		Females   int       `json:"females"`
		Timestamp time.Time `json:"timestamp,omitempty"`
		Metadata  Metadata  `json:"metadata,omitempty"`
		ActorID   string    `json:"-"`
		SourceIP  string    `json:"-"`
	}

	// WeaningResult holds the movement pairs of a weaning. A pair is nil
	// when the corresponding quantity was zero.
	WeaningResult struct {
		Males   *MovementPair `json:"males,omitempty"`
		Females *MovementPair `json:"females,omitempty"`
	}

	// Recorder is the write interface for single movements. Each call is one
	// atomic transaction: insert the ledger row and update the snapshot, or
	// neither.
	Recorder interface {
		// RecordEntry records an entry-direction movement and increases the
		// snapshot.
		RecordEntry(ctx context.Context, req MovementRequest) (*Movement, error)

		// RecordExit records an exit-direction movement and decreases the
		// snapshot. Fails with ErrInsufficientStock when the balance cannot
		// cover the quantity.
		RecordExit(ctx context.Context, req MovementRequest) (*Movement, error)
	}

	// Transferrer is the write interface for composite operations. Each call
	// wraps its exit and entry legs in one transaction; a failed leg rolls
	// back the whole operation.
	Transferrer interface {
		// Transfer moves stock between farms.
		Transfer(ctx context.Context, req TransferRequest) (*MovementPair, error)

		// ChangeCategory reclassifies stock within one farm.
		ChangeCategory(ctx context.Context, req CategoryChangeRequest) (*MovementPair, error)

		// Wean promotes male calves to two-year steers and female calves to
		// two-year heifers, all in one transaction.
		Wean(ctx context.Context, req WeaningRequest) (*WeaningResult, error)
	}

	// BalanceVerification is the result of checking one snapshot against the
	// signed sum of its ledger.
	BalanceVerification struct {
		BalanceID     string `json:"balanceId"`
		FarmID        string `json:"farmId"`
		CategoryID    string `json:"categoryId"`
		SnapshotQty   int    `json:"snapshotQuantity"`
		LedgerQty     int    `json:"ledgerQuantity"`
		MovementCount int    `json:"movementCount"`
		Consistent    bool   `json:"consistent"`
	}

	// PeriodReport decomposes one balance's activity over a time window,
	// computed entirely from the ledger.
	PeriodReport struct {
		FarmID       string    `json:"farmId"`
		CategoryID   string    `json:"categoryId"`
		From         time.Time `json:"from"`
		To           time.Time `json:"to"`
		OpeningStock int       `json:"openingStock"`
		Entries      int       `json:"entries"`
		Exits        int       `json:"exits"`
		ClosingStock int       `json:"closingStock"`
	}

	// MovementFilter narrows ledger queries. Zero-value fields are ignored.
	// To is an inclusive upper bound on event time; Before is a strict one,
	// used to list the movements preceding a reporting period. Results are
	// newest first unless Ascending is set.
	MovementFilter struct {
		FarmID     string
		CategoryID string
		Operation  OperationType
		From       time.Time
		To         time.Time
		Before     time.Time
		Ascending  bool
		Limit      int
	}

	// Reporter is the read interface over the ledger. All figures are
	// computed from movements, never from the snapshot, so reports stay
	// correct even if a snapshot has drifted.
	Reporter interface {
		// OpeningStock returns the signed ledger sum strictly before at,
		// clamped at zero.
		OpeningStock(ctx context.Context, farmID, categoryID string, at time.Time) (int, error)

		// ClosingStock returns the signed ledger sum up to and including at,
		// clamped at zero.
		ClosingStock(ctx context.Context, farmID, categoryID string, at time.Time) (int, error)

		// PeriodReport returns opening stock, period entries and exits, and
		// closing stock for the window.
		PeriodReport(ctx context.Context, farmID, categoryID string, from, to time.Time) (*PeriodReport, error)

		// Movements lists ledger rows matching the filter, newest first by
		// default, oldest first with Ascending.
		Movements(ctx context.Context, filter MovementFilter) ([]*Movement, error)

		// VerifyBalance checks one snapshot against its ledger sum.
		VerifyBalance(ctx context.Context, farmID, categoryID string) (*BalanceVerification, error)

		// VerifyAllBalances checks every snapshot, returning only those that
		// have drifted from their ledger.
		VerifyAllBalances(ctx context.Context) ([]*BalanceVerification, error)
	}

	// Registry manages farms, categories and the snapshot materialization
	// that keeps the (farm, category) cross product complete.
	Registry interface {
		// CreateFarm creates a farm and materializes a zero balance for
		// every active category.
		CreateFarm(ctx context.Context, name string) (*Farm, error)

		// CreateCategory creates a custom category and materializes a zero
		// balance for it on every farm.
		CreateCategory(ctx context.Context, name, description string, displayOrder int) (*AnimalCategory, error)

		// SeedSystemCategories installs the nine system categories.
		// Idempotent: existing slugs are left untouched, matching names are
		// adopted, missing ones are created. Returns counts per outcome.
		SeedSystemCategories(ctx context.Context) (*SeedReport, error)

		// Balance returns the snapshot for one (farm, category) pair.
		Balance(ctx context.Context, farmID, categoryID string) (*StockBalance, error)

		// FarmBalances returns every snapshot of a farm ordered by category
		// display order.
		FarmBalances(ctx context.Context, farmID string) ([]*StockBalance, error)

		// Farms lists all farms.
		Farms(ctx context.Context) ([]*Farm, error)

		// Categories lists categories, optionally including inactive ones.
		Categories(ctx context.Context, includeInactive bool) ([]*AnimalCategory, error)

		// CategoryBySlug resolves a system category by its reserved slug.
		CategoryBySlug(ctx context.Context, slug string) (*AnimalCategory, error)
	}

	// References manages the lookup entities movements point at: buyers,
	// mortality causes and audit actors.
	References interface {
		// CreateClient stores a buyer or donee.
		CreateClient(ctx context.Context, name string) (*Client, error)

		// CreateDeathReason stores a mortality cause.
		CreateDeathReason(ctx context.Context, name string) (*DeathReason, error)

		// CreateUser stores an audit actor.
		CreateUser(ctx context.Context, displayName string) (*Actor, error)

		// Clients lists active clients ordered by name.
		Clients(ctx context.Context) ([]*Client, error)

		// DeathReasons lists death reasons ordered by name.
		DeathReasons(ctx context.Context) ([]*DeathReason, error)
	}

	// SeedReport summarizes one idempotent seeding pass. Updated counts
	// slugged categories whose flags or canonical fields had drifted and
	// were repaired.
	SeedReport struct {
		Created int `json:"created"`
		Adopted int `json:"adopted"`
		Updated int `json:"updated"`
		Skipped int `json:"skipped"`
	}
)
