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

const submissionColumns = "id, case_id, template_id, template_family_id, template_version, data, status, missing_fields, portal_id, mapping_id, portal_payload, created_by, created_at, updated_at"

// PostgresSubmissionStore is a PostgreSQL implementation of SubmissionStore.
type PostgresSubmissionStore struct {
	db *pgxpool.Pool
}

// NewPostgresSubmissionStore creates a new PostgresSubmissionStore.
func NewPostgresSubmissionStore(db *pgxpool.Pool) *PostgresSubmissionStore {
	return &PostgresSubmissionStore{db: db}
}

// Save inserts a submission.
func (s *PostgresSubmissionStore) Save(ctx context.Context, sub *models.FormSubmission) error {
	data, err := json.Marshal(sub.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal submission data: %w", err)
	}
	var payload []byte
	if sub.PortalPayload != nil {
		if payload, err = json.Marshal(sub.PortalPayload); err != nil {
			return fmt.Errorf("failed to marshal portal payload: %w", err)
		}
	}
	_, err = s.db.Exec(ctx,
		"INSERT INTO form_submissions ("+submissionColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)",
		sub.ID, sub.CaseID, sub.TemplateID, sub.TemplateFamily, sub.TemplateVersion, data, string(sub.Status),
		sub.MissingFields, sub.PortalID, sub.MappingID, payload, sub.CreatedBy, sub.CreatedAt, sub.UpdatedAt)
	return translate(err)
}

// Get retrieves a submission by its ID.
func (s *PostgresSubmissionStore) Get(ctx context.Context, id string) (*models.FormSubmission, error) {
	row := s.db.QueryRow(ctx, "SELECT "+submissionColumns+" FROM form_submissions WHERE id = $1", id)
	return scanSubmission(row)
}

// ListByCase returns a case's submissions, oldest first.
func (s *PostgresSubmissionStore) ListByCase(ctx context.Context, caseID string) ([]*models.FormSubmission, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+submissionColumns+" FROM form_submissions WHERE case_id = $1 ORDER BY created_at, id", caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var submissions []*models.FormSubmission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		submissions = append(submissions, sub)
	}
	return submissions, rows.Err()
}

// UpdateStatus is a compare-and-set on the status column.
func (s *PostgresSubmissionStore) UpdateStatus(ctx context.Context, id string, from, to models.SubmissionStatus, at time.Time) error {
	tag, err := s.db.Exec(ctx,
		"UPDATE form_submissions SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4",
		string(to), at, id, string(from))
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

func scanSubmission(row pgx.Row) (*models.FormSubmission, error) {
	var (
		sub     models.FormSubmission
		status  string
		data    []byte
		payload []byte
	)
	err := row.Scan(&sub.ID, &sub.CaseID, &sub.TemplateID, &sub.TemplateFamily, &sub.TemplateVersion, &data, &status,
		&sub.MissingFields, &sub.PortalID, &sub.MappingID, &payload, &sub.CreatedBy, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	sub.Status = models.SubmissionStatus(status)
	if err := json.Unmarshal(data, &sub.Data); err != nil {
		return nil, fmt.Errorf("failed to decode data of submission %s: %w", sub.ID, err)
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &sub.PortalPayload); err != nil {
			return nil, fmt.Errorf("failed to decode portal payload of submission %s: %w", sub.ID, err)
		}
	}
	return &sub, nil
}
