package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"casefiling/backend/internal/audit"
	"casefiling/backend/internal/logging"
	"casefiling/backend/internal/observability"
	"casefiling/backend/internal/repository"
	"casefiling/backend/pkg/models"
)

// MockCaseData is a mock implementation of the CaseDataSource interface.
type MockCaseData struct {
	mock.Mock
}

func (m *MockCaseData) Resolve(ctx context.Context, caseID, sourcePath string) (any, bool, error) {
	args := m.Called(ctx, caseID, sourcePath)
	return args.Get(0), args.Bool(1), args.Error(2)
}

type fixture struct {
	templateStore   *repository.InMemoryTemplateStore
	mappingStore    *repository.InMemoryMappingStore
	submissionStore *repository.InMemorySubmissionStore
	sink            *audit.MemorySink

	templates   *TemplateService
	mappings    *MappingService
	submissions *SubmissionService
	engine      *Engine
}

const portalP = "portal-p"

func newFixture(t *testing.T, source CaseDataSource) *fixture {
	t.Helper()
	logger := logging.NewNop()
	metrics := observability.NewNop()
	sink := audit.NewMemorySink()
	auditor := audit.NewEmitter(sink, logger, metrics)

	f := &fixture{
		templateStore:   repository.NewInMemoryTemplateStore(),
		mappingStore:    repository.NewInMemoryMappingStore(),
		submissionStore: repository.NewInMemorySubmissionStore(),
		sink:            sink,
	}
	portals := repository.NewInMemoryPortalStore(&models.Portal{ID: portalP, Name: "Portal P"})

	f.templates = NewTemplateService(f.templateStore, auditor, logger)
	f.mappings = NewMappingService(f.mappingStore, f.templateStore, portals, auditor, logger)
	f.submissions = NewSubmissionService(f.submissionStore, auditor, logger)
	resolver := NewResolver(source, metrics, time.Second, 4)
	f.engine = NewEngine(f.templates, f.mappingStore, f.submissionStore, resolver, auditor, logger, metrics)
	return f
}

// t1Definition is a template with required fullName and passportNumber and an
// optional notes field. passportNumber can come from case documents.
func t1Definition() models.TemplateDefinition {
	return models.TemplateDefinition{
		Name:        "T1",
		Description: "Petition for alien relative",
		Sections: []models.Section{
			{
				ID:    "applicant",
				Title: "Applicant",
				Fields: []models.Field{
					{ID: "fullName", Label: "Full name", Type: models.FieldTypeText, Required: true},
					{ID: "passportNumber", Label: "Passport number", Type: models.FieldTypeText, Required: true, SourcePath: "documents.passport.number"},
				},
			},
			{
				ID:    "extra",
				Title: "Additional information",
				Fields: []models.Field{
					{ID: "notes", Label: "Notes", Type: models.FieldTypeText},
				},
			},
		},
	}
}

func (f *fixture) createT1(t *testing.T) *models.FormTemplate {
	t.Helper()
	tpl, err := f.templates.CreateTemplate(context.Background(), t1Definition(), "admin-1")
	require.NoError(t, err)
	return tpl
}

func (f *fixture) publishedT1(t *testing.T) *models.FormTemplate {
	t.Helper()
	tpl := f.createT1(t)
	tpl, err := f.templates.PublishTemplate(context.Background(), tpl.ID, "admin-1")
	require.NoError(t, err)
	return tpl
}

func strPtr(s string) *string { return &s }
