package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"casefiling/backend/pkg/models"
)

// InMemoryMappingStore keeps field mappings in process.
type InMemoryMappingStore struct {
	mu       sync.RWMutex
	mappings map[string]*models.FieldMapping
}

// NewInMemoryMappingStore creates an empty store.
func NewInMemoryMappingStore() *InMemoryMappingStore {
	return &InMemoryMappingStore{mappings: make(map[string]*models.FieldMapping)}
}

func (s *InMemoryMappingStore) Create(_ context.Context, m *models.FieldMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.mappings[m.ID]; ok {
		return ErrConflict
	}
	for _, existing := range s.mappings {
		if existing.DeletedAt == nil && existing.TemplateID == m.TemplateID && existing.PortalID == m.PortalID {
			return ErrConflict
		}
	}
	s.mappings[m.ID] = m.Clone()
	return nil
}

func (s *InMemoryMappingStore) Get(_ context.Context, id string) (*models.FieldMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.mappings[id]
	if !ok || m.DeletedAt != nil {
		return nil, ErrNotFound
	}
	return m.Clone(), nil
}

func (s *InMemoryMappingStore) FindByTemplatePortal(_ context.Context, templateID, portalID string) (*models.FieldMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.mappings {
		if m.DeletedAt == nil && m.TemplateID == templateID && m.PortalID == portalID {
			return m.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemoryMappingStore) ListByTemplate(_ context.Context, templateID string) ([]*models.FieldMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.FieldMapping
	for _, m := range s.mappings {
		if m.DeletedAt == nil && m.TemplateID == templateID {
			out = append(out, m.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Update only touches the mutable columns; template and portal stay as stored.
func (s *InMemoryMappingStore) Update(_ context.Context, m *models.FieldMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.mappings[m.ID]
	if !ok || current.DeletedAt != nil {
		return ErrNotFound
	}
	current.Mappings = models.CloneMappings(m.Mappings)
	current.UpdatedBy = m.UpdatedBy
	current.UpdatedAt = m.UpdatedAt
	return nil
}

func (s *InMemoryMappingStore) Delete(_ context.Context, id, deletedBy string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.mappings[id]
	if !ok || current.DeletedAt != nil {
		return ErrNotFound
	}
	current.DeletedAt = &at
	current.DeletedBy = deletedBy
	return nil
}

// InMemorySubmissionStore keeps submissions in process.
type InMemorySubmissionStore struct {
	mu          sync.RWMutex
	submissions map[string]*models.FormSubmission
	order       []string
}

// NewInMemorySubmissionStore creates an empty store.
func NewInMemorySubmissionStore() *InMemorySubmissionStore {
	return &InMemorySubmissionStore{submissions: make(map[string]*models.FormSubmission)}
}

func (s *InMemorySubmissionStore) Save(_ context.Context, sub *models.FormSubmission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.submissions[sub.ID]; ok {
		return ErrConflict
	}
	s.submissions[sub.ID] = sub.Clone()
	s.order = append(s.order, sub.ID)
	return nil
}

func (s *InMemorySubmissionStore) Get(_ context.Context, id string) (*models.FormSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.submissions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return sub.Clone(), nil
}

// ListByCase returns a case's submissions in insertion order.
func (s *InMemorySubmissionStore) ListByCase(_ context.Context, caseID string) ([]*models.FormSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.FormSubmission
	for _, id := range s.order {
		if sub := s.submissions[id]; sub.CaseID == caseID {
			out = append(out, sub.Clone())
		}
	}
	return out, nil
}

func (s *InMemorySubmissionStore) UpdateStatus(_ context.Context, id string, from, to models.SubmissionStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.submissions[id]
	if !ok {
		return ErrNotFound
	}
	if sub.Status != from {
		return ErrConflict
	}
	sub.Status = to
	sub.UpdatedAt = at
	return nil
}

// Count returns the number of stored submissions.
func (s *InMemorySubmissionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.submissions)
}

// InMemoryPortalStore is a fixed or seeded set of portals.
type InMemoryPortalStore struct {
	mu      sync.RWMutex
	portals map[string]*models.Portal
}

// NewInMemoryPortalStore creates a store pre-populated with portals.
func NewInMemoryPortalStore(portals ...*models.Portal) *InMemoryPortalStore {
	s := &InMemoryPortalStore{portals: make(map[string]*models.Portal)}
	for _, p := range portals {
		cp := *p
		s.portals[p.ID] = &cp
	}
	return s
}

func (s *InMemoryPortalStore) PortalExists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.portals[id]
	return ok, nil
}

func (s *InMemoryPortalStore) CreatePortal(_ context.Context, p *models.Portal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.portals[p.ID]; ok {
		return ErrConflict
	}
	cp := *p
	s.portals[p.ID] = &cp
	return nil
}

func (s *InMemoryPortalStore) ListPortals(_ context.Context) ([]*models.Portal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Portal, 0, len(s.portals))
	for _, p := range s.portals {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
