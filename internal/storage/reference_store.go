package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/herdbook-io/herdbook/internal/inventory"
)

// Reference entities are owned by the surrounding administration modules;
// the inventory core only needs to create and list them so sales, deaths
// and audit actors can be referenced by the ledger.

// CreateClient stores a buyer or donee.
func (s *InventoryStore) CreateClient(ctx context.Context, name string) (*inventory.Client, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyName
	}

	client := &inventory.Client{ID: uuid.NewString(), Name: strings.TrimSpace(name)}

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO clients (id, name) VALUES ($1, $2)`, client.ID, client.Name)
	if err != nil {
		return nil, classifyRegistryError(err, "client")
	}

	return client, nil
}

// CreateDeathReason stores a mortality cause.
func (s *InventoryStore) CreateDeathReason(ctx context.Context, name string) (*inventory.DeathReason, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyName
	}

	reason := &inventory.DeathReason{ID: uuid.NewString(), Name: strings.TrimSpace(name)}

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO death_reasons (id, name) VALUES ($1, $2)`, reason.ID, reason.Name)
	if err != nil {
		return nil, classifyRegistryError(err, "death reason")
	}

	return reason, nil
}

// CreateUser stores an audit actor.
func (s *InventoryStore) CreateUser(ctx context.Context, displayName string) (*inventory.Actor, error) {
	if strings.TrimSpace(displayName) == "" {
		return nil, ErrEmptyName
	}

	actor := &inventory.Actor{ID: uuid.NewString(), Name: strings.TrimSpace(displayName)}

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO users (id, display_name) VALUES ($1, $2)`, actor.ID, actor.Name)
	if err != nil {
		return nil, classifyRegistryError(err, "user")
	}

	return actor, nil
}

// Clients lists all clients ordered by name.
func (s *InventoryStore) Clients(ctx context.Context) ([]*inventory.Client, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, name FROM clients WHERE active = TRUE ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query clients: %w", ErrInventoryStoreFailed, err)
	}

	defer func() {
		_ = rows.Close()
	}()

	clients := []*inventory.Client{}

	for rows.Next() {
		var client inventory.Client

		if err := rows.Scan(&client.ID, &client.Name); err != nil {
			return nil, fmt.Errorf("%w: failed to scan client: %w", ErrInventoryStoreFailed, err)
		}

		clients = append(clients, &client)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating clients: %w", ErrInventoryStoreFailed, err)
	}

	return clients, nil
}

// DeathReasons lists all death reasons ordered by name.
func (s *InventoryStore) DeathReasons(ctx context.Context) ([]*inventory.DeathReason, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, name FROM death_reasons ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query death reasons: %w", ErrInventoryStoreFailed, err)
	}

	defer func() {
		_ = rows.Close()
	}()

	reasons := []*inventory.DeathReason{}

	for rows.Next() {
		var reason inventory.DeathReason

		if err := rows.Scan(&reason.ID, &reason.Name); err != nil {
			return nil, fmt.Errorf("%w: failed to scan death reason: %w", ErrInventoryStoreFailed, err)
		}

		reasons = append(reasons, &reason)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating death reasons: %w", ErrInventoryStoreFailed, err)
	}

	return reasons, nil
}
