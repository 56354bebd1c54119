package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casefiling/backend/internal/audit"
	"casefiling/backend/internal/logging"
	"casefiling/backend/internal/observability"
	"casefiling/backend/internal/repository"
	"casefiling/backend/internal/services"
	"casefiling/backend/pkg/models"
)

func newSeeder() (*seeder, *repository.InMemoryTemplateStore, *repository.InMemoryMappingStore) {
	logger := logging.NewNop()
	auditor := audit.NewEmitter(audit.NewMemorySink(), logger, observability.NewNop())
	templates := repository.NewInMemoryTemplateStore()
	mappings := repository.NewInMemoryMappingStore()
	portals := repository.NewInMemoryPortalStore()
	return &seeder{
		portals:   portals,
		templates: services.NewTemplateService(templates, auditor, logger),
		mappings:  services.NewMappingService(mappings, templates, portals, auditor, logger),
		logger:    logger,
	}, templates, mappings
}

func TestSeedDevFixture(t *testing.T) {
	fx, err := LoadFixture(filepath.Join("testdata", "dev.yaml"))
	require.NoError(t, err)
	require.Len(t, fx.Templates, 2)
	assert.Equal(t, models.TransformEnumRelabel, fx.Mappings[0].Mappings["relationship"].Transform.Kind)

	s, templateStore, mappingStore := newSeeder()
	ctx := context.Background()
	sum, err := s.apply(ctx, fx, "seed-test")
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Portals)
	assert.Equal(t, 2, sum.Templates)
	assert.Equal(t, 1, sum.Mappings)

	i130, err := templateStore.Get(ctx, sum.TemplateIDs["i130"])
	require.NoError(t, err)
	assert.Equal(t, models.TemplateStatusPublished, i130.Status)
	i765, err := templateStore.Get(ctx, sum.TemplateIDs["i765-draft"])
	require.NoError(t, err)
	assert.Equal(t, models.TemplateStatusDraft, i765.Status)

	list, err := mappingStore.ListByTemplate(ctx, i130.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "uscis", list[0].PortalID)
	assert.Equal(t, "petitioner_dob", list[0].Mappings["petitionerBirthDate"].PortalField)

	// a second run skips portals that already exist
	sum, err = s.apply(ctx, &Fixture{Portals: fx.Portals}, "seed-test")
	require.NoError(t, err)
	assert.Zero(t, sum.Portals)
}

func TestLoadFixtureRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("portals:\n  - id: x\n    nmae: typo\n"), 0o600))
	_, err := LoadFixture(path)
	assert.Error(t, err)
}

func TestApplyRejectsUnknownTemplateKey(t *testing.T) {
	s, _, _ := newSeeder()
	_, err := s.apply(context.Background(), &Fixture{
		Mappings: []MappingFixture{{Template: "missing", Portal: "uscis"}},
	}, "seed-test")
	assert.ErrorContains(t, err, "missing")
}
