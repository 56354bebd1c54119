package models

import (
	"fmt"
	"time"
)

// SubmissionStatus is the lifecycle state of a generated submission.
type SubmissionStatus string

const (
	SubmissionStatusGenerated  SubmissionStatus = "GENERATED"
	SubmissionStatusIncomplete SubmissionStatus = "INCOMPLETE"
	SubmissionStatusSubmitted  SubmissionStatus = "SUBMITTED"
	SubmissionStatusFailed     SubmissionStatus = "FAILED"
)

// Valid reports whether s is a known status.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case SubmissionStatusGenerated, SubmissionStatusIncomplete, SubmissionStatusSubmitted, SubmissionStatusFailed:
		return true
	}
	return false
}

// submissionTransitions lists the status changes portal collaborators may report.
var submissionTransitions = map[SubmissionStatus][]SubmissionStatus{
	SubmissionStatusGenerated: {SubmissionStatusSubmitted, SubmissionStatusFailed},
	SubmissionStatusFailed:    {SubmissionStatusSubmitted, SubmissionStatusFailed},
}

// CanTransition reports whether a submission in status from may move to to.
func CanTransition(from, to SubmissionStatus) bool {
	for _, allowed := range submissionTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// FormSubmission is the persisted result of one generation attempt.
type FormSubmission struct {
	ID              string           `json:"id"`
	CaseID          string           `json:"caseId"`
	TemplateID      string           `json:"templateId"`
	TemplateFamily  string           `json:"templateFamilyId"`
	TemplateVersion int              `json:"templateVersion"`
	Data            map[string]any   `json:"data"`
	Status          SubmissionStatus `json:"status"`
	MissingFields   []string         `json:"missingFields,omitempty"`
	PortalID        string           `json:"portalId,omitempty"`
	MappingID       string           `json:"mappingId,omitempty"`
	PortalPayload   map[string]any   `json:"portalPayload,omitempty"` // derived view, data is authoritative
	CreatedBy       string           `json:"createdBy"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// Validate enforces that missing fields are recorded if and only if the
// submission is INCOMPLETE.
func (s *FormSubmission) Validate() error {
	if !s.Status.Valid() {
		return fmt.Errorf("unknown submission status %q", s.Status)
	}
	incomplete := s.Status == SubmissionStatusIncomplete
	if incomplete && len(s.MissingFields) == 0 {
		return fmt.Errorf("incomplete submission must list missing fields")
	}
	if !incomplete && len(s.MissingFields) > 0 {
		return fmt.Errorf("%s submission must not list missing fields", s.Status)
	}
	return nil
}

// Clone returns a copy whose maps and slices are not shared.
func (s *FormSubmission) Clone() *FormSubmission {
	if s == nil {
		return nil
	}
	c := *s
	c.Data = cloneValues(s.Data)
	c.PortalPayload = cloneValues(s.PortalPayload)
	if s.MissingFields != nil {
		c.MissingFields = append([]string(nil), s.MissingFields...)
	}
	return &c
}

func cloneValues(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue copies the containers produced by JSON decoding. Scalars are
// returned as is.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneValues(t)
	case []any:
		if t == nil {
			return t
		}
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// GenerationRequest is the input to the generation engine.
type GenerationRequest struct {
	TemplateID     string         `json:"templateId"`
	CaseID         string         `json:"caseId"`
	FormData       map[string]any `json:"formData"`
	UserID         string         `json:"-"`
	TargetPortalID string         `json:"targetPortalId,omitempty"`
}

// GenerationResult is either a stored submission or the list of required
// fields that could not be resolved.
type GenerationResult struct {
	Success       bool            `json:"success"`
	Message       string          `json:"message"`
	MissingFields []string        `json:"missingFields,omitempty"`
	Submission    *FormSubmission `json:"submission,omitempty"`
}
