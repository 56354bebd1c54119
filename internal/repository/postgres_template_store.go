package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"casefiling/backend/pkg/models"
)

const templateColumns = "id, family_id, version, name, description, status, sections, created_by, updated_by, created_at, updated_at, published_at"

// PostgresTemplateStore is a PostgreSQL implementation of TemplateStore.
type PostgresTemplateStore struct {
	db *pgxpool.Pool
}

// NewPostgresTemplateStore creates a new PostgresTemplateStore.
func NewPostgresTemplateStore(db *pgxpool.Pool) *PostgresTemplateStore {
	return &PostgresTemplateStore{db: db}
}

// Create inserts a version record. The (family_id, version) unique constraint
// turns a lost version race into ErrConflict.
func (s *PostgresTemplateStore) Create(ctx context.Context, tpl *models.FormTemplate) error {
	sections, err := json.Marshal(tpl.Sections)
	if err != nil {
		return fmt.Errorf("failed to marshal sections: %w", err)
	}
	_, err = s.db.Exec(ctx,
		"INSERT INTO form_templates ("+templateColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)",
		tpl.ID, tpl.FamilyID, tpl.Version, tpl.Name, tpl.Description, string(tpl.Status), sections,
		tpl.CreatedBy, tpl.UpdatedBy, tpl.CreatedAt, tpl.UpdatedAt, tpl.PublishedAt)
	return translate(err)
}

// Get retrieves a version record by its ID.
func (s *PostgresTemplateStore) Get(ctx context.Context, id string) (*models.FormTemplate, error) {
	row := s.db.QueryRow(ctx, "SELECT "+templateColumns+" FROM form_templates WHERE id = $1", id)
	return scanTemplate(row)
}

// Update replaces the mutable columns when the stored status matches expected.
func (s *PostgresTemplateStore) Update(ctx context.Context, tpl *models.FormTemplate, expected models.TemplateStatus) error {
	sections, err := json.Marshal(tpl.Sections)
	if err != nil {
		return fmt.Errorf("failed to marshal sections: %w", err)
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE form_templates
		 SET name = $1, description = $2, status = $3, sections = $4, updated_by = $5, updated_at = $6, published_at = $7
		 WHERE id = $8 AND status = $9`,
		tpl.Name, tpl.Description, string(tpl.Status), sections, tpl.UpdatedBy, tpl.UpdatedAt, tpl.PublishedAt,
		tpl.ID, string(expected))
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, tpl.ID); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

// Head returns the highest version of a family.
func (s *PostgresTemplateStore) Head(ctx context.Context, familyID string) (*models.FormTemplate, error) {
	row := s.db.QueryRow(ctx,
		"SELECT "+templateColumns+" FROM form_templates WHERE family_id = $1 ORDER BY version DESC LIMIT 1", familyID)
	return scanTemplate(row)
}

// LatestPublished returns the highest PUBLISHED version of a family.
func (s *PostgresTemplateStore) LatestPublished(ctx context.Context, familyID string) (*models.FormTemplate, error) {
	row := s.db.QueryRow(ctx,
		"SELECT "+templateColumns+" FROM form_templates WHERE family_id = $1 AND status = $2 ORDER BY version DESC LIMIT 1",
		familyID, string(models.TemplateStatusPublished))
	return scanTemplate(row)
}

// ListVersions returns all versions of a family, oldest first.
func (s *PostgresTemplateStore) ListVersions(ctx context.Context, familyID string) ([]*models.FormTemplate, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+templateColumns+" FROM form_templates WHERE family_id = $1 ORDER BY version ASC", familyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []*models.FormTemplate
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, tpl)
	}
	return templates, rows.Err()
}

func scanTemplate(row pgx.Row) (*models.FormTemplate, error) {
	var (
		tpl      models.FormTemplate
		status   string
		sections []byte
	)
	err := row.Scan(&tpl.ID, &tpl.FamilyID, &tpl.Version, &tpl.Name, &tpl.Description, &status, &sections,
		&tpl.CreatedBy, &tpl.UpdatedBy, &tpl.CreatedAt, &tpl.UpdatedAt, &tpl.PublishedAt)
	if err != nil {
		return nil, translate(err)
	}
	tpl.Status = models.TemplateStatus(status)
	if err := json.Unmarshal(sections, &tpl.Sections); err != nil {
		return nil, fmt.Errorf("failed to decode sections of template %s: %w", tpl.ID, err)
	}
	return &tpl, nil
}
