package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"casefiling/backend/internal/audit"
	"casefiling/backend/internal/observability"
	"casefiling/backend/internal/repository"
	"casefiling/backend/pkg/apperr"
	"casefiling/backend/pkg/models"
)

// Engine assembles form data for a case, checks it against the template and
// persists the result. It owns no state of its own.
type Engine struct {
	templates   *TemplateService
	mappings    repository.MappingStore
	submissions repository.SubmissionStore
	resolver    *Resolver
	auditor     Auditor
	logger      Logger
	metrics     Metrics
	now         func() time.Time
}

// NewEngine creates a new Engine.
func NewEngine(templates *TemplateService, mappings repository.MappingStore, submissions repository.SubmissionStore, resolver *Resolver, auditor Auditor, logger Logger, metrics Metrics) *Engine {
	if metrics == nil {
		metrics = observability.NewNop()
	}
	return &Engine{
		templates:   templates,
		mappings:    mappings,
		submissions: submissions,
		resolver:    resolver,
		auditor:     auditor,
		logger:      logger,
		metrics:     metrics,
		now:         time.Now,
	}
}

// GenerateForm builds and stores a submission. Missing required fields are
// not an error: the result reports them and nothing is persisted.
func (e *Engine) GenerateForm(ctx context.Context, req models.GenerationRequest) (res *models.GenerationResult, err error) {
	start := e.now()
	ctx, span := observability.StartSpan(ctx, "engine.generate_form",
		attribute.String("template.id", req.TemplateID),
		attribute.String("case.id", req.CaseID),
		attribute.String("portal.id", req.TargetPortalID),
	)
	defer func() {
		outcome := observability.OutcomeError
		if err == nil {
			outcome = observability.OutcomeGenerated
			if !res.Success {
				outcome = observability.OutcomeIncomplete
			}
		}
		e.metrics.RecordGeneration(ctx, outcome, e.now().Sub(start))
		observability.EndSpan(span, err)
	}()

	if req.TemplateID == "" || req.CaseID == "" {
		var missing []string
		if req.TemplateID == "" {
			missing = append(missing, "templateId")
		}
		if req.CaseID == "" {
			missing = append(missing, "caseId")
		}
		return nil, apperr.Validation("generation request is incomplete", missing...)
	}

	tpl, err := e.templates.ResolveTemplate(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}
	if tpl.Status == models.TemplateStatusArchived {
		return nil, apperr.InvalidState("template %s is archived and cannot originate submissions", tpl.ID)
	}

	data, err := e.assemble(ctx, tpl, req)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, f := range tpl.Fields() {
		if _, ok := data[f.ID]; f.Required && !ok {
			missing = append(missing, f.ID)
		}
	}
	if len(missing) > 0 {
		e.logger.Info("form generation incomplete", "templateId", tpl.ID, "caseId", req.CaseID, "missing", missing)
		return &models.GenerationResult{
			Success:       false,
			Message:       "missing required fields: " + strings.Join(missing, ", "),
			MissingFields: missing,
		}, nil
	}

	now := e.now().UTC()
	sub := &models.FormSubmission{
		ID:              uuid.New().String(),
		CaseID:          req.CaseID,
		TemplateID:      tpl.ID,
		TemplateFamily:  tpl.FamilyID,
		TemplateVersion: tpl.Version,
		Data:            data,
		Status:          models.SubmissionStatusGenerated,
		CreatedBy:       req.UserID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if req.TargetPortalID != "" {
		mapping, err := e.mappings.FindByTemplatePortal(ctx, tpl.ID, req.TargetPortalID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperr.NotFound("mapping for portal", req.TargetPortalID)
			}
			return nil, apperr.Internal("find mapping", err)
		}
		payload, err := translate(tpl, data, mapping)
		if err != nil {
			return nil, err
		}
		sub.PortalID = req.TargetPortalID
		sub.MappingID = mapping.ID
		sub.PortalPayload = payload
	}

	if err := sub.Validate(); err != nil {
		return nil, apperr.Internal("build submission", err)
	}
	if err := e.submissions.Save(ctx, sub); err != nil {
		return nil, apperr.Internal("save submission", err)
	}

	e.logger.Info("form generated", "submissionId", sub.ID, "templateId", tpl.ID, "caseId", req.CaseID, "portalId", req.TargetPortalID)
	e.auditor.Record(ctx, audit.Event{
		EntityType: audit.EntitySubmission,
		EntityID:   sub.ID,
		Action:     audit.ActionFormGenerated,
		UserID:     req.UserID,
		Details: map[string]any{
			"caseId":          sub.CaseID,
			"templateId":      sub.TemplateID,
			"templateVersion": sub.TemplateVersion,
			"portalId":        sub.PortalID,
		},
	})
	return &models.GenerationResult{Success: true, Message: "form generated", Submission: sub}, nil
}

// assemble computes the defined value of every field. Caller input wins over
// case data, including an empty string. A null in formData blanks the field
// and suppresses the lookup. Keys the template does not declare are ignored.
func (e *Engine) assemble(ctx context.Context, tpl *models.FormTemplate, req models.GenerationRequest) (map[string]any, error) {
	data := make(map[string]any)
	var lookups []models.Field
	for _, f := range tpl.Fields() {
		v, supplied := req.FormData[f.ID]
		switch {
		case supplied && v != nil:
			data[f.ID] = v
		case supplied:
			// explicit blank
		case f.SourcePath != "":
			lookups = append(lookups, f)
		}
	}

	resolved, err := e.resolver.Resolve(ctx, req.CaseID, lookups)
	if err != nil {
		return nil, err
	}
	for id, v := range resolved {
		data[id] = v
	}
	return data, nil
}

// translate renames fields to portal field names and applies transforms.
// Fields without a mapping entry are left out of the payload.
func translate(tpl *models.FormTemplate, data map[string]any, mapping *models.FieldMapping) (map[string]any, error) {
	payload := make(map[string]any, len(mapping.Mappings))
	for _, f := range tpl.Fields() {
		ref, mapped := mapping.Resolve(f.ID)
		v, defined := data[f.ID]
		if !mapped || !defined {
			continue
		}
		if ref.Transform != nil {
			out, err := ref.Transform.Apply(v)
			if err != nil {
				return nil, apperr.Validation(fmt.Sprintf("transform %s failed: %v", ref.Transform.Kind, err), f.ID)
			}
			v = out
		}
		payload[ref.PortalField] = v
	}
	return payload, nil
}
