package repository

import (
	"context"
	"errors"
	"time"

	"casefiling/backend/pkg/models"
)

// Sentinel errors for storage facts. Services translate them into apperr kinds.
var (
	// ErrNotFound is returned when the record does not exist (or is soft-deleted).
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a conditional write lost against a concurrent
	// writer or would violate a uniqueness constraint.
	ErrConflict = errors.New("conflicting write")
)

// TemplateStore owns template version records. Records are keyed by ID and
// unique on (FamilyID, Version).
type TemplateStore interface {
	// Create inserts a new version record. It returns ErrConflict when the
	// (FamilyID, Version) pair is already taken.
	Create(ctx context.Context, tpl *models.FormTemplate) error
	// Get retrieves a version record by its ID.
	Get(ctx context.Context, id string) (*models.FormTemplate, error)
	// Update replaces a version record only if its stored status equals
	// expected. It returns ErrConflict otherwise.
	Update(ctx context.Context, tpl *models.FormTemplate, expected models.TemplateStatus) error
	// Head returns the highest version of a family.
	Head(ctx context.Context, familyID string) (*models.FormTemplate, error)
	// LatestPublished returns the highest PUBLISHED version of a family.
	LatestPublished(ctx context.Context, familyID string) (*models.FormTemplate, error)
	// ListVersions returns every version of a family in ascending order.
	ListVersions(ctx context.Context, familyID string) ([]*models.FormTemplate, error)
}

// MappingStore owns field mapping records.
type MappingStore interface {
	// Create inserts a mapping. It returns ErrConflict when an active mapping
	// already exists for the same template and portal.
	Create(ctx context.Context, m *models.FieldMapping) error
	Get(ctx context.Context, id string) (*models.FieldMapping, error)
	FindByTemplatePortal(ctx context.Context, templateID, portalID string) (*models.FieldMapping, error)
	ListByTemplate(ctx context.Context, templateID string) ([]*models.FieldMapping, error)
	// Update persists the mutable parts of a mapping: Mappings, UpdatedBy, UpdatedAt.
	Update(ctx context.Context, m *models.FieldMapping) error
	// Delete soft-deletes a mapping.
	Delete(ctx context.Context, id, deletedBy string, at time.Time) error
}

// SubmissionStore persists generated submissions. Inserts are append-only.
type SubmissionStore interface {
	Save(ctx context.Context, s *models.FormSubmission) error
	Get(ctx context.Context, id string) (*models.FormSubmission, error)
	ListByCase(ctx context.Context, caseID string) ([]*models.FormSubmission, error)
	// UpdateStatus moves a submission from one status to another. It returns
	// ErrConflict when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id string, from, to models.SubmissionStatus, at time.Time) error
}

// PortalStore backs the portal registry.
type PortalStore interface {
	PortalExists(ctx context.Context, id string) (bool, error)
	CreatePortal(ctx context.Context, p *models.Portal) error
	ListPortals(ctx context.Context) ([]*models.Portal, error)
}
