package services

import (
	"context"
	"errors"
	"time"

	"casefiling/backend/internal/audit"
	"casefiling/backend/internal/repository"
	"casefiling/backend/pkg/apperr"
	"casefiling/backend/pkg/models"
)

// SubmissionService reads submissions and applies status updates reported by
// portal-submission collaborators.
type SubmissionService struct {
	store   repository.SubmissionStore
	auditor Auditor
	logger  Logger
	now     func() time.Time
}

// NewSubmissionService creates a new SubmissionService.
func NewSubmissionService(store repository.SubmissionStore, auditor Auditor, logger Logger) *SubmissionService {
	return &SubmissionService{store: store, auditor: auditor, logger: logger, now: time.Now}
}

// Save persists a submission after checking its status invariant.
func (s *SubmissionService) Save(ctx context.Context, sub *models.FormSubmission) error {
	if err := sub.Validate(); err != nil {
		return apperr.Validation(err.Error(), "status")
	}
	if err := s.store.Save(ctx, sub); err != nil {
		return apperr.Internal("save submission", err)
	}
	return nil
}

// GetByID returns a submission.
func (s *SubmissionService) GetByID(ctx context.Context, id string) (*models.FormSubmission, error) {
	sub, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, submissionErr(err, id)
	}
	return sub, nil
}

// ListByCase returns a case's submissions, oldest first.
func (s *SubmissionService) ListByCase(ctx context.Context, caseID string) ([]*models.FormSubmission, error) {
	list, err := s.store.ListByCase(ctx, caseID)
	if err != nil {
		return nil, apperr.Internal("list submissions", err)
	}
	return list, nil
}

// UpdateStatus records a portal outcome. Only SUBMITTED and FAILED can be
// reported, and SUBMITTED is final.
func (s *SubmissionService) UpdateStatus(ctx context.Context, id string, status models.SubmissionStatus, userID string) (*models.FormSubmission, error) {
	if !status.Valid() {
		return nil, apperr.Validation("unknown submission status "+string(status), "status")
	}
	sub, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, submissionErr(err, id)
	}
	if !models.CanTransition(sub.Status, status) {
		return nil, apperr.InvalidState("submission %s cannot move from %s to %s", id, sub.Status, status)
	}

	previous := sub.Status
	now := s.now().UTC()
	if err := s.store.UpdateStatus(ctx, id, previous, status, now); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperr.InvalidState("submission %s status changed concurrently", id)
		}
		return nil, submissionErr(err, id)
	}
	sub.Status = status
	sub.UpdatedAt = now

	s.logger.Info("submission status updated", "submissionId", id, "from", previous, "to", status)
	s.auditor.Record(ctx, audit.Event{
		EntityType: audit.EntitySubmission,
		EntityID:   id,
		Action:     audit.ActionSubmissionStatus,
		UserID:     userID,
		Details:    map[string]any{"from": previous, "to": status},
	})
	return sub, nil
}

func submissionErr(err error, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("submission", id)
	}
	return apperr.Internal("submission store", err)
}
