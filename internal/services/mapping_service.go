package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"casefiling/backend/internal/audit"
	"casefiling/backend/internal/repository"
	"casefiling/backend/pkg/apperr"
	"casefiling/backend/pkg/models"
)

// MappingService manages the translation tables between template fields and
// portal fields. It reads templates but never writes them.
type MappingService struct {
	store     repository.MappingStore
	templates repository.TemplateStore
	portals   PortalRegistry
	auditor   Auditor
	logger    Logger
	now       func() time.Time
}

// NewMappingService creates a new MappingService.
func NewMappingService(store repository.MappingStore, templates repository.TemplateStore, portals PortalRegistry, auditor Auditor, logger Logger) *MappingService {
	return &MappingService{
		store:     store,
		templates: templates,
		portals:   portals,
		auditor:   auditor,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateMapping registers a mapping for one template version and one portal.
func (s *MappingService) CreateMapping(ctx context.Context, templateID, portalID string, mappings map[string]models.PortalFieldRef, authorID string) (*models.FieldMapping, error) {
	tpl, err := s.templates.Get(ctx, templateID)
	if err != nil {
		return nil, templateErr(err, templateID)
	}
	exists, err := s.portals.PortalExists(ctx, portalID)
	if err != nil {
		return nil, apperr.Dependency("portal lookup", err)
	}
	if !exists {
		return nil, apperr.NotFound("portal", portalID)
	}
	if err := validateMappings(tpl, mappings); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	m := &models.FieldMapping{
		ID:         uuid.New().String(),
		TemplateID: templateID,
		PortalID:   portalID,
		Mappings:   models.CloneMappings(mappings),
		CreatedBy:  authorID,
		UpdatedBy:  authorID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.Create(ctx, m); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperr.InvalidState("an active mapping already exists for template %s and portal %s", templateID, portalID)
		}
		return nil, apperr.Internal("create mapping", err)
	}

	s.logger.Info("mapping created", "mappingId", m.ID, "templateId", templateID, "portalId", portalID)
	s.record(ctx, m, audit.ActionMappingCreated, authorID)
	return m, nil
}

// GetMapping returns an active mapping.
func (s *MappingService) GetMapping(ctx context.Context, mappingID string) (*models.FieldMapping, error) {
	m, err := s.store.Get(ctx, mappingID)
	if err != nil {
		return nil, mappingErr(err, mappingID)
	}
	return m, nil
}

// FindMapping returns the active mapping for a template version and portal.
func (s *MappingService) FindMapping(ctx context.Context, templateID, portalID string) (*models.FieldMapping, error) {
	m, err := s.store.FindByTemplatePortal(ctx, templateID, portalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("mapping for portal", portalID)
		}
		return nil, apperr.Internal("find mapping", err)
	}
	return m, nil
}

// ListMappings returns the active mappings of a template version.
func (s *MappingService) ListMappings(ctx context.Context, templateID string) ([]*models.FieldMapping, error) {
	list, err := s.store.ListByTemplate(ctx, templateID)
	if err != nil {
		return nil, apperr.Internal("list mappings", err)
	}
	return list, nil
}

// UpdateMapping replaces the mapping table. TemplateID and PortalID may be
// echoed back unchanged but never altered.
func (s *MappingService) UpdateMapping(ctx context.Context, mappingID string, upd models.MappingUpdate, authorID string) (*models.FieldMapping, error) {
	m, err := s.store.Get(ctx, mappingID)
	if err != nil {
		return nil, mappingErr(err, mappingID)
	}
	if upd.TemplateID != nil && *upd.TemplateID != m.TemplateID {
		return nil, apperr.ImmutableField("templateId")
	}
	if upd.PortalID != nil && *upd.PortalID != m.PortalID {
		return nil, apperr.ImmutableField("portalId")
	}
	if upd.Mappings == nil {
		return m, nil
	}

	tpl, err := s.templates.Get(ctx, m.TemplateID)
	if err != nil {
		return nil, templateErr(err, m.TemplateID)
	}
	if err := validateMappings(tpl, upd.Mappings); err != nil {
		return nil, err
	}

	m.Mappings = models.CloneMappings(upd.Mappings)
	m.UpdatedBy = authorID
	m.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, m); err != nil {
		return nil, mappingErr(err, mappingID)
	}

	s.record(ctx, m, audit.ActionMappingUpdated, authorID)
	return m, nil
}

// DeleteMapping soft-deletes a mapping. Submissions that reference it keep
// their stored payloads.
func (s *MappingService) DeleteMapping(ctx context.Context, mappingID, authorID string) error {
	m, err := s.store.Get(ctx, mappingID)
	if err != nil {
		return mappingErr(err, mappingID)
	}
	if err := s.store.Delete(ctx, mappingID, authorID, s.now().UTC()); err != nil {
		return mappingErr(err, mappingID)
	}

	s.logger.Info("mapping deleted", "mappingId", mappingID)
	s.record(ctx, m, audit.ActionMappingDeleted, authorID)
	return nil
}

// ResolvePortalField returns the portal target of one internal field.
func (s *MappingService) ResolvePortalField(ctx context.Context, mappingID, fieldID string) (models.PortalFieldRef, error) {
	m, err := s.store.Get(ctx, mappingID)
	if err != nil {
		return models.PortalFieldRef{}, mappingErr(err, mappingID)
	}
	ref, ok := m.Resolve(fieldID)
	if !ok {
		return models.PortalFieldRef{}, apperr.NotFound("mapped field", fieldID)
	}
	return ref, nil
}

func (s *MappingService) record(ctx context.Context, m *models.FieldMapping, action, userID string) {
	s.auditor.Record(ctx, audit.Event{
		EntityType: audit.EntityMapping,
		EntityID:   m.ID,
		Action:     action,
		UserID:     userID,
		Details: map[string]any{
			"templateId": m.TemplateID,
			"portalId":   m.PortalID,
			"fields":     len(m.Mappings),
		},
	})
}

// validateMappings checks referential integrity against the template and the
// shape of every entry. Offending field IDs are reported in sorted order.
func validateMappings(tpl *models.FormTemplate, mappings map[string]models.PortalFieldRef) error {
	if len(mappings) == 0 {
		return apperr.Validation("mappings must not be empty")
	}

	fieldIDs := make([]string, 0, len(mappings))
	for id := range mappings {
		fieldIDs = append(fieldIDs, id)
	}
	sort.Strings(fieldIDs)

	declared := tpl.FieldIndex()
	var unknown []string
	for _, id := range fieldIDs {
		if _, ok := declared[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		return apperr.Validation("mapped fields are not declared by template "+tpl.ID, unknown...)
	}

	var invalid []string
	targets := make(map[string]bool, len(mappings))
	for _, id := range fieldIDs {
		ref := mappings[id]
		if ref.PortalField == "" || targets[ref.PortalField] {
			invalid = append(invalid, id)
			continue
		}
		targets[ref.PortalField] = true
		if ref.Transform != nil {
			if err := ref.Transform.Validate(); err != nil {
				invalid = append(invalid, id)
			}
		}
	}
	if len(invalid) > 0 {
		return apperr.Validation("mapping entries need a unique portalField and a well-formed transform", invalid...)
	}
	return nil
}

func mappingErr(err error, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("mapping", id)
	}
	return apperr.Internal("mapping store", err)
}
