package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"casefiling/backend/internal/audit"
	"casefiling/backend/internal/casedata"
	"casefiling/backend/pkg/apperr"
	"casefiling/backend/pkg/models"
)

const passportPath = "documents.passport.number"

func TestGenerateFormMissingRequiredField(t *testing.T) {
	src := new(MockCaseData)
	src.On("Resolve", mock.Anything, "case-1", passportPath).Return(nil, false, nil)
	f := newFixture(t, src)
	tpl := f.publishedT1(t)

	res, err := f.engine.GenerateForm(context.Background(), models.GenerationRequest{
		TemplateID: tpl.ID,
		CaseID:     "case-1",
		FormData:   map[string]any{"fullName": "A. Smith"},
		UserID:     "user-1",
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, []string{"passportNumber"}, res.MissingFields)
	assert.Nil(t, res.Submission)
	assert.Equal(t, 0, f.submissionStore.Count())
	src.AssertExpectations(t)
}

func TestGenerateFormFromFormData(t *testing.T) {
	f := newFixture(t, nil)
	tpl := f.publishedT1(t)

	res, err := f.engine.GenerateForm(context.Background(), models.GenerationRequest{
		TemplateID: tpl.ID,
		CaseID:     "case-1",
		FormData:   map[string]any{"fullName": "A. Smith", "passportNumber": "X123"},
		UserID:     "user-1",
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	sub := res.Submission
	assert.Equal(t, models.SubmissionStatusGenerated, sub.Status)
	assert.Equal(t, map[string]any{"fullName": "A. Smith", "passportNumber": "X123"}, sub.Data)
	assert.Empty(t, sub.MissingFields)
	assert.Equal(t, tpl.FamilyID, sub.TemplateFamily)
	assert.Equal(t, 1, sub.TemplateVersion)
	assert.Equal(t, "user-1", sub.CreatedBy)
	assert.Nil(t, sub.PortalPayload)

	stored, err := f.submissions.GetByID(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, sub.Data, stored.Data)
	assert.Equal(t, []string{audit.ActionTemplateCreated, audit.ActionTemplatePublished, audit.ActionFormGenerated}, f.sink.Actions())
}

func TestGenerateFormTranslatesForPortal(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tpl := f.publishedT1(t)
	m, err := f.mappings.CreateMapping(ctx, tpl.ID, portalP, map[string]models.PortalFieldRef{
		"passportNumber": {PortalField: "pp_no", Transform: &models.TransformSpec{Kind: models.TransformStripWhitespace}},
	}, "admin-1")
	require.NoError(t, err)

	res, err := f.engine.GenerateForm(ctx, models.GenerationRequest{
		TemplateID:     tpl.ID,
		CaseID:         "case-1",
		FormData:       map[string]any{"fullName": "A. Smith", "passportNumber": " X123 "},
		TargetPortalID: portalP,
	})
	require.NoError(t, err)
	require.True(t, res.Success)

	sub := res.Submission
	assert.Equal(t, map[string]any{"pp_no": "X123"}, sub.PortalPayload)
	assert.Equal(t, " X123 ", sub.Data["passportNumber"], "stored data keeps the untranslated value")
	assert.Equal(t, "A. Smith", sub.Data["fullName"], "unmapped fields stay in data")
	assert.Equal(t, portalP, sub.PortalID)
	assert.Equal(t, m.ID, sub.MappingID)
}

func TestGenerateFormNoMappingForPortal(t *testing.T) {
	f := newFixture(t, nil)
	tpl := f.publishedT1(t)

	_, err := f.engine.GenerateForm(context.Background(), models.GenerationRequest{
		TemplateID:     tpl.ID,
		CaseID:         "case-1",
		FormData:       map[string]any{"fullName": "A. Smith", "passportNumber": "X123"},
		TargetPortalID: portalP,
	})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	assert.Equal(t, 0, f.submissionStore.Count())
}

func TestGenerateFormTransformFailure(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tpl := f.publishedT1(t)
	_, err := f.mappings.CreateMapping(ctx, tpl.ID, portalP, map[string]models.PortalFieldRef{
		"fullName": {PortalField: "dob", Transform: &models.TransformSpec{Kind: models.TransformDateFormat, From: "YYYY-MM-DD", To: "MM/DD/YYYY"}},
	}, "admin-1")
	require.NoError(t, err)

	_, err = f.engine.GenerateForm(ctx, models.GenerationRequest{
		TemplateID:     tpl.ID,
		CaseID:         "case-1",
		FormData:       map[string]any{"fullName": "A. Smith", "passportNumber": "X123"},
		TargetPortalID: portalP,
	})
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Equal(t, []string{"fullName"}, appErr.Fields)
	assert.Equal(t, 0, f.submissionStore.Count())
}

func TestFormDataOverridesResolver(t *testing.T) {
	src := new(MockCaseData)
	f := newFixture(t, src)
	tpl := f.publishedT1(t)

	t.Run("non-empty value", func(t *testing.T) {
		res, err := f.engine.GenerateForm(context.Background(), models.GenerationRequest{
			TemplateID: tpl.ID,
			CaseID:     "case-1",
			FormData:   map[string]any{"fullName": "A. Smith", "passportNumber": "CORRECTED"},
		})
		require.NoError(t, err)
		assert.Equal(t, "CORRECTED", res.Submission.Data["passportNumber"])
	})

	t.Run("empty string is explicit input", func(t *testing.T) {
		res, err := f.engine.GenerateForm(context.Background(), models.GenerationRequest{
			TemplateID: tpl.ID,
			CaseID:     "case-1",
			FormData:   map[string]any{"fullName": "A. Smith", "passportNumber": ""},
		})
		require.NoError(t, err)
		require.True(t, res.Success)
		assert.Equal(t, "", res.Submission.Data["passportNumber"])
	})

	t.Run("null blanks the field", func(t *testing.T) {
		res, err := f.engine.GenerateForm(context.Background(), models.GenerationRequest{
			TemplateID: tpl.ID,
			CaseID:     "case-1",
			FormData:   map[string]any{"fullName": "A. Smith", "passportNumber": nil},
		})
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, []string{"passportNumber"}, res.MissingFields)
	})

	src.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerateFormUsesCaseData(t *testing.T) {
	docs := casedata.NewDocumentSource()
	docs.Put("case-1", map[string]any{
		"documents": map[string]any{"passport": map[string]any{"number": "P998"}},
	})
	f := newFixture(t, docs)
	tpl := f.publishedT1(t)

	res, err := f.engine.GenerateForm(context.Background(), models.GenerationRequest{
		TemplateID: tpl.ID,
		CaseID:     "case-1",
		FormData:   map[string]any{"fullName": "A. Smith", "unknownField": "ignored"},
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, map[string]any{"fullName": "A. Smith", "passportNumber": "P998"}, res.Submission.Data)
}

func TestGenerateFormIsDeterministic(t *testing.T) {
	docs := casedata.NewDocumentSource()
	f := newFixture(t, docs)
	def := t1Definition()
	def.Sections[1].Fields = append(def.Sections[1].Fields,
		models.Field{ID: "dob", Type: models.FieldTypeDate, Required: true, SourcePath: "applicant.dob"},
		models.Field{ID: "country", Type: models.FieldTypeText, Required: true, SourcePath: "applicant.country"},
	)
	tpl, err := f.templates.CreateTemplate(context.Background(), def, "admin-1")
	require.NoError(t, err)

	req := models.GenerationRequest{TemplateID: tpl.ID, CaseID: "case-1", FormData: map[string]any{}}
	first, err := f.engine.GenerateForm(context.Background(), req)
	require.NoError(t, err)
	second, err := f.engine.GenerateForm(context.Background(), req)
	require.NoError(t, err)

	expected := []string{"fullName", "passportNumber", "dob", "country"}
	assert.Equal(t, expected, first.MissingFields)
	assert.Equal(t, first.MissingFields, second.MissingFields)
}

func TestGenerateFormTemplateStates(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	data := map[string]any{"fullName": "A. Smith", "passportNumber": "X123"}

	t.Run("draft can generate", func(t *testing.T) {
		draft := f.createT1(t)
		res, err := f.engine.GenerateForm(ctx, models.GenerationRequest{TemplateID: draft.ID, CaseID: "c", FormData: data})
		require.NoError(t, err)
		assert.True(t, res.Success)
	})

	t.Run("archived is rejected", func(t *testing.T) {
		tpl := f.publishedT1(t)
		_, err := f.templates.ArchiveTemplate(ctx, tpl.ID, "admin-1")
		require.NoError(t, err)

		before := f.submissionStore.Count()
		_, err = f.engine.GenerateForm(ctx, models.GenerationRequest{TemplateID: tpl.ID, CaseID: "c", FormData: data})
		assert.True(t, apperr.IsKind(err, apperr.KindInvalidState))
		assert.Equal(t, before, f.submissionStore.Count())
	})

	t.Run("unknown template", func(t *testing.T) {
		_, err := f.engine.GenerateForm(ctx, models.GenerationRequest{TemplateID: "missing", CaseID: "c", FormData: data})
		assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	})

	t.Run("family id uses current published version", func(t *testing.T) {
		v1 := f.publishedT1(t)
		_, err := f.templates.UpdateTemplate(ctx, v1.ID, models.TemplatePatch{Name: strPtr("draft v2")}, "admin-1", true)
		require.NoError(t, err)

		res, err := f.engine.GenerateForm(ctx, models.GenerationRequest{TemplateID: v1.FamilyID, CaseID: "c", FormData: data})
		require.NoError(t, err)
		assert.Equal(t, v1.ID, res.Submission.TemplateID)
	})

	t.Run("request needs template and case", func(t *testing.T) {
		_, err := f.engine.GenerateForm(ctx, models.GenerationRequest{})
		var appErr *apperr.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, []string{"templateId", "caseId"}, appErr.Fields)
	})
}

func TestGenerateFormDependencyFailure(t *testing.T) {
	src := new(MockCaseData)
	src.On("Resolve", mock.Anything, "case-1", passportPath).Return(nil, false, errors.New("connection refused"))
	f := newFixture(t, src)
	tpl := f.publishedT1(t)

	_, err := f.engine.GenerateForm(context.Background(), models.GenerationRequest{
		TemplateID: tpl.ID,
		CaseID:     "case-1",
		FormData:   map[string]any{"fullName": "A. Smith"},
	})
	assert.True(t, apperr.IsKind(err, apperr.KindDependency))
	assert.Equal(t, 0, f.submissionStore.Count())
}

type slowSource struct{}

func (slowSource) Resolve(ctx context.Context, _, _ string) (any, bool, error) {
	select {
	case <-time.After(5 * time.Second):
		return "late", true, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

func TestGenerateFormResolverTimeout(t *testing.T) {
	f := newFixture(t, nil)
	f.engine.resolver = NewResolver(slowSource{}, nil, 20*time.Millisecond, 2)
	tpl := f.publishedT1(t)

	_, err := f.engine.GenerateForm(context.Background(), models.GenerationRequest{
		TemplateID: tpl.ID,
		CaseID:     "case-1",
		FormData:   map[string]any{"fullName": "A. Smith"},
	})
	require.True(t, apperr.IsKind(err, apperr.KindDependency))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAuditFailureDoesNotFailGeneration(t *testing.T) {
	f := newFixture(t, nil)
	tpl := f.publishedT1(t)
	f.sink.FailWith(errors.New("kafka down"))

	res, err := f.engine.GenerateForm(context.Background(), models.GenerationRequest{
		TemplateID: tpl.ID,
		CaseID:     "case-1",
		FormData:   map[string]any{"fullName": "A. Smith", "passportNumber": "X123"},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, f.submissionStore.Count())
}
