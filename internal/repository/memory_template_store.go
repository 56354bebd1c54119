package repository

import (
	"context"
	"sort"
	"sync"

	"casefiling/backend/pkg/models"
)

// InMemoryTemplateStore keeps template versions in process. Used by tests and
// by the server when no database is configured.
type InMemoryTemplateStore struct {
	mu       sync.RWMutex
	byID     map[string]*models.FormTemplate
	families map[string]map[int]string // family -> version -> id
}

// NewInMemoryTemplateStore creates an empty store.
func NewInMemoryTemplateStore() *InMemoryTemplateStore {
	return &InMemoryTemplateStore{
		byID:     make(map[string]*models.FormTemplate),
		families: make(map[string]map[int]string),
	}
}

// Create inserts a version record if its (family, version) slot is free.
func (s *InMemoryTemplateStore) Create(_ context.Context, tpl *models.FormTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[tpl.ID]; ok {
		return ErrConflict
	}
	versions, ok := s.families[tpl.FamilyID]
	if !ok {
		versions = make(map[int]string)
		s.families[tpl.FamilyID] = versions
	}
	if _, taken := versions[tpl.Version]; taken {
		return ErrConflict
	}
	versions[tpl.Version] = tpl.ID
	s.byID[tpl.ID] = tpl.Clone()
	return nil
}

// Get retrieves a version record by ID.
func (s *InMemoryTemplateStore) Get(_ context.Context, id string) (*models.FormTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tpl, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return tpl.Clone(), nil
}

// Update replaces a record when its stored status matches expected.
func (s *InMemoryTemplateStore) Update(_ context.Context, tpl *models.FormTemplate, expected models.TemplateStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[tpl.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Status != expected || current.FamilyID != tpl.FamilyID || current.Version != tpl.Version {
		return ErrConflict
	}
	s.byID[tpl.ID] = tpl.Clone()
	return nil
}

// Head returns the highest version in a family.
func (s *InMemoryTemplateStore) Head(_ context.Context, familyID string) (*models.FormTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.sortedVersions(familyID)
	if len(versions) == 0 {
		return nil, ErrNotFound
	}
	return versions[len(versions)-1].Clone(), nil
}

// LatestPublished returns the highest PUBLISHED version in a family.
func (s *InMemoryTemplateStore) LatestPublished(_ context.Context, familyID string) (*models.FormTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.sortedVersions(familyID)
	for i := len(versions) - 1; i >= 0; i-- {
		if versions[i].Status == models.TemplateStatusPublished {
			return versions[i].Clone(), nil
		}
	}
	return nil, ErrNotFound
}

// ListVersions returns every version of a family, oldest first.
func (s *InMemoryTemplateStore) ListVersions(_ context.Context, familyID string) ([]*models.FormTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.sortedVersions(familyID)
	out := make([]*models.FormTemplate, len(versions))
	for i, v := range versions {
		out[i] = v.Clone()
	}
	return out, nil
}

// sortedVersions must be called with the lock held.
func (s *InMemoryTemplateStore) sortedVersions(familyID string) []*models.FormTemplate {
	ids := s.families[familyID]
	out := make([]*models.FormTemplate, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.byID[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out
}
