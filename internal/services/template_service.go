package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"casefiling/backend/internal/audit"
	"casefiling/backend/internal/repository"
	"casefiling/backend/pkg/apperr"
	"casefiling/backend/pkg/models"
)

const defaultVersionAttempts = 5

// TemplateService manages form template families and their versions.
type TemplateService struct {
	store   repository.TemplateStore
	auditor Auditor
	logger  Logger

	now             func() time.Time
	versionAttempts int
}

// NewTemplateService creates a new TemplateService.
func NewTemplateService(store repository.TemplateStore, auditor Auditor, logger Logger) *TemplateService {
	return &TemplateService{
		store:           store,
		auditor:         auditor,
		logger:          logger,
		now:             time.Now,
		versionAttempts: defaultVersionAttempts,
	}
}

// CreateTemplate starts a new family at version 1 in DRAFT.
func (s *TemplateService) CreateTemplate(ctx context.Context, def models.TemplateDefinition, authorID string) (*models.FormTemplate, error) {
	if err := ValidateDefinition(def); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	tpl := &models.FormTemplate{
		ID:          uuid.New().String(),
		FamilyID:    uuid.New().String(),
		Version:     1,
		Name:        def.Name,
		Description: def.Description,
		Status:      models.TemplateStatusDraft,
		Sections:    def.Sections,
		CreatedBy:   authorID,
		UpdatedBy:   authorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, tpl); err != nil {
		return nil, apperr.Internal("create template", err)
	}

	s.logger.Info("template created", "templateId", tpl.ID, "familyId", tpl.FamilyID)
	s.record(ctx, tpl, audit.ActionTemplateCreated, authorID, nil)
	return tpl, nil
}

// GetTemplate returns a template version by ID.
func (s *TemplateService) GetTemplate(ctx context.Context, templateID string) (*models.FormTemplate, error) {
	tpl, err := s.store.Get(ctx, templateID)
	if err != nil {
		return nil, templateErr(err, templateID)
	}
	return tpl, nil
}

// GetCurrentPublished returns the highest PUBLISHED version of a family.
func (s *TemplateService) GetCurrentPublished(ctx context.Context, familyID string) (*models.FormTemplate, error) {
	tpl, err := s.store.LatestPublished(ctx, familyID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("published template family", familyID)
		}
		return nil, apperr.Internal("load published template", err)
	}
	return tpl, nil
}

// ListVersions returns every version of a family, oldest first.
func (s *TemplateService) ListVersions(ctx context.Context, familyID string) ([]*models.FormTemplate, error) {
	versions, err := s.store.ListVersions(ctx, familyID)
	if err != nil {
		return nil, apperr.Internal("list template versions", err)
	}
	if len(versions) == 0 {
		return nil, apperr.NotFound("template family", familyID)
	}
	return versions, nil
}

// ResolveTemplate accepts a version ID or a family ID. A family ID resolves
// to the family's current published version.
func (s *TemplateService) ResolveTemplate(ctx context.Context, id string) (*models.FormTemplate, error) {
	tpl, err := s.store.Get(ctx, id)
	if err == nil {
		return tpl, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Internal("load template", err)
	}

	tpl, err = s.store.LatestPublished(ctx, id)
	if err != nil {
		return nil, templateErr(err, id)
	}
	return tpl, nil
}

// PublishTemplate moves a DRAFT version to PUBLISHED.
func (s *TemplateService) PublishTemplate(ctx context.Context, templateID, authorID string) (*models.FormTemplate, error) {
	tpl, err := s.store.Get(ctx, templateID)
	if err != nil {
		return nil, templateErr(err, templateID)
	}
	if tpl.Status != models.TemplateStatusDraft {
		return nil, apperr.InvalidState("template %s is %s; only DRAFT templates can be published", templateID, tpl.Status)
	}

	now := s.now().UTC()
	tpl.Status = models.TemplateStatusPublished
	tpl.PublishedAt = &now
	tpl.UpdatedAt = now
	tpl.UpdatedBy = authorID
	if err := s.store.Update(ctx, tpl, models.TemplateStatusDraft); err != nil {
		return nil, s.conditionalWriteErr(err, templateID)
	}

	s.logger.Info("template published", "templateId", tpl.ID, "version", tpl.Version)
	s.record(ctx, tpl, audit.ActionTemplatePublished, authorID, nil)
	return tpl, nil
}

// ArchiveTemplate retires a version so it can no longer originate submissions.
func (s *TemplateService) ArchiveTemplate(ctx context.Context, templateID, authorID string) (*models.FormTemplate, error) {
	tpl, err := s.store.Get(ctx, templateID)
	if err != nil {
		return nil, templateErr(err, templateID)
	}
	if tpl.Status == models.TemplateStatusArchived {
		return nil, apperr.InvalidState("template %s is already archived", templateID)
	}

	previous := tpl.Status
	tpl.Status = models.TemplateStatusArchived
	tpl.UpdatedAt = s.now().UTC()
	tpl.UpdatedBy = authorID
	if err := s.store.Update(ctx, tpl, previous); err != nil {
		return nil, s.conditionalWriteErr(err, templateID)
	}

	s.record(ctx, tpl, audit.ActionTemplateArchived, authorID, map[string]any{"previousStatus": previous})
	return tpl, nil
}

// UpdateTemplate edits a DRAFT in place, or, when createNewVersion is set,
// appends a new DRAFT version to the family with the patch applied over the
// family's latest version.
func (s *TemplateService) UpdateTemplate(ctx context.Context, templateID string, patch models.TemplatePatch, authorID string, createNewVersion bool) (*models.FormTemplate, error) {
	current, err := s.store.Get(ctx, templateID)
	if err != nil {
		return nil, templateErr(err, templateID)
	}
	if createNewVersion {
		return s.appendVersion(ctx, current.FamilyID, patch, authorID)
	}

	if current.Status != models.TemplateStatusDraft {
		return nil, apperr.InvalidState("template %s is %s; request a new version to change it", templateID, current.Status)
	}
	def := current.Definition().Apply(patch)
	if err := ValidateDefinition(def); err != nil {
		return nil, err
	}

	current.Name = def.Name
	current.Description = def.Description
	current.Sections = def.Sections
	current.UpdatedAt = s.now().UTC()
	current.UpdatedBy = authorID
	if err := s.store.Update(ctx, current, models.TemplateStatusDraft); err != nil {
		return nil, s.conditionalWriteErr(err, templateID)
	}

	s.record(ctx, current, audit.ActionTemplateUpdated, authorID, nil)
	return current, nil
}

// appendVersion allocates head+1 and retries against the new head when a
// concurrent writer takes the slot first.
func (s *TemplateService) appendVersion(ctx context.Context, familyID string, patch models.TemplatePatch, authorID string) (*models.FormTemplate, error) {
	for attempt := 1; attempt <= s.versionAttempts; attempt++ {
		head, err := s.store.Head(ctx, familyID)
		if err != nil {
			return nil, templateErr(err, familyID)
		}
		def := head.Definition().Apply(patch)
		if err := ValidateDefinition(def); err != nil {
			return nil, err
		}

		now := s.now().UTC()
		next := &models.FormTemplate{
			ID:          uuid.New().String(),
			FamilyID:    familyID,
			Version:     head.Version + 1,
			Name:        def.Name,
			Description: def.Description,
			Status:      models.TemplateStatusDraft,
			Sections:    def.Sections,
			CreatedBy:   authorID,
			UpdatedBy:   authorID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		err = s.store.Create(ctx, next)
		if err == nil {
			s.logger.Info("template version created", "templateId", next.ID, "familyId", familyID, "version", next.Version)
			s.record(ctx, next, audit.ActionTemplateVersioned, authorID, map[string]any{"basedOn": head.ID})
			return next, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return nil, apperr.Internal("create template version", err)
		}
		s.logger.Debug("template version slot taken, retrying", "familyId", familyID, "version", next.Version, "attempt", attempt)
	}
	return nil, apperr.InvalidState("could not allocate a new version for family %s after %d attempts", familyID, s.versionAttempts)
}

func (s *TemplateService) conditionalWriteErr(err error, templateID string) error {
	switch {
	case errors.Is(err, repository.ErrConflict):
		return apperr.InvalidState("template %s was modified concurrently", templateID)
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("template", templateID)
	}
	return apperr.Internal("update template", err)
}

func (s *TemplateService) record(ctx context.Context, tpl *models.FormTemplate, action, userID string, details map[string]any) {
	if details == nil {
		details = map[string]any{}
	}
	details["familyId"] = tpl.FamilyID
	details["version"] = tpl.Version
	details["status"] = tpl.Status
	s.auditor.Record(ctx, audit.Event{
		EntityType: audit.EntityTemplate,
		EntityID:   tpl.ID,
		Action:     action,
		UserID:     userID,
		Details:    details,
	})
}

func templateErr(err error, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("template", id)
	}
	return apperr.Internal("load template", err)
}
