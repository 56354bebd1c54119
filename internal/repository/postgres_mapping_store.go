package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"casefiling/backend/pkg/models"
)

const mappingColumns = "id, template_id, portal_id, mappings, created_by, updated_by, created_at, updated_at"

// PostgresMappingStore is a PostgreSQL implementation of MappingStore.
// Soft-deleted rows are invisible to every read.
type PostgresMappingStore struct {
	db *pgxpool.Pool
}

// NewPostgresMappingStore creates a new PostgresMappingStore.
func NewPostgresMappingStore(db *pgxpool.Pool) *PostgresMappingStore {
	return &PostgresMappingStore{db: db}
}

// Create inserts a mapping; the partial unique index rejects a second active
// mapping for the same template and portal.
func (s *PostgresMappingStore) Create(ctx context.Context, m *models.FieldMapping) error {
	mappings, err := json.Marshal(m.Mappings)
	if err != nil {
		return fmt.Errorf("failed to marshal mappings: %w", err)
	}
	_, err = s.db.Exec(ctx,
		"INSERT INTO field_mappings ("+mappingColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		m.ID, m.TemplateID, m.PortalID, mappings, m.CreatedBy, m.UpdatedBy, m.CreatedAt, m.UpdatedAt)
	return translate(err)
}

func (s *PostgresMappingStore) Get(ctx context.Context, id string) (*models.FieldMapping, error) {
	row := s.db.QueryRow(ctx,
		"SELECT "+mappingColumns+" FROM field_mappings WHERE id = $1 AND deleted_at IS NULL", id)
	return scanMapping(row)
}

func (s *PostgresMappingStore) FindByTemplatePortal(ctx context.Context, templateID, portalID string) (*models.FieldMapping, error) {
	row := s.db.QueryRow(ctx,
		"SELECT "+mappingColumns+" FROM field_mappings WHERE template_id = $1 AND portal_id = $2 AND deleted_at IS NULL",
		templateID, portalID)
	return scanMapping(row)
}

func (s *PostgresMappingStore) ListByTemplate(ctx context.Context, templateID string) ([]*models.FieldMapping, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+mappingColumns+" FROM field_mappings WHERE template_id = $1 AND deleted_at IS NULL ORDER BY created_at",
		templateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mappings []*models.FieldMapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}

// Update never writes template_id or portal_id.
func (s *PostgresMappingStore) Update(ctx context.Context, m *models.FieldMapping) error {
	mappings, err := json.Marshal(m.Mappings)
	if err != nil {
		return fmt.Errorf("failed to marshal mappings: %w", err)
	}
	tag, err := s.db.Exec(ctx,
		"UPDATE field_mappings SET mappings = $1, updated_by = $2, updated_at = $3 WHERE id = $4 AND deleted_at IS NULL",
		mappings, m.UpdatedBy, m.UpdatedAt, m.ID)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresMappingStore) Delete(ctx context.Context, id, deletedBy string, at time.Time) error {
	tag, err := s.db.Exec(ctx,
		"UPDATE field_mappings SET deleted_at = $1, deleted_by = $2 WHERE id = $3 AND deleted_at IS NULL",
		at, deletedBy, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanMapping(row pgx.Row) (*models.FieldMapping, error) {
	var (
		m        models.FieldMapping
		mappings []byte
	)
	err := row.Scan(&m.ID, &m.TemplateID, &m.PortalID, &mappings, &m.CreatedBy, &m.UpdatedBy, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	if err := json.Unmarshal(mappings, &m.Mappings); err != nil {
		return nil, fmt.Errorf("failed to decode mappings of %s: %w", m.ID, err)
	}
	return &m, nil
}
