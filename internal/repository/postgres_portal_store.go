package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"casefiling/backend/pkg/models"
)

// PostgresPortalStore is a PostgreSQL implementation of PortalStore.
type PostgresPortalStore struct {
	db *pgxpool.Pool
}

// NewPostgresPortalStore creates a new PostgresPortalStore.
func NewPostgresPortalStore(db *pgxpool.Pool) *PostgresPortalStore {
	return &PostgresPortalStore{db: db}
}

// PortalExists reports whether a portal with the given ID is registered.
func (s *PostgresPortalStore) PortalExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM portals WHERE id = $1)", id).Scan(&exists)
	return exists, err
}

// CreatePortal registers a portal.
func (s *PostgresPortalStore) CreatePortal(ctx context.Context, p *models.Portal) error {
	_, err := s.db.Exec(ctx,
		"INSERT INTO portals (id, name, base_url, created_at) VALUES ($1, $2, $3, $4)",
		p.ID, p.Name, p.BaseURL, p.CreatedAt)
	return translate(err)
}

// ListPortals returns every registered portal ordered by ID.
func (s *PostgresPortalStore) ListPortals(ctx context.Context) ([]*models.Portal, error) {
	rows, err := s.db.Query(ctx, "SELECT id, name, base_url, created_at FROM portals ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var portals []*models.Portal
	for rows.Next() {
		var p models.Portal
		if err := rows.Scan(&p.ID, &p.Name, &p.BaseURL, &p.CreatedAt); err != nil {
			return nil, err
		}
		portals = append(portals, &p)
	}
	return portals, rows.Err()
}
