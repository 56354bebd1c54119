package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"casefiling/backend/pkg/models"
)

func TestPostgresStores(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2)),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate container: %s", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()

	require.NoError(t, Migrate(ctx, pool))
	// Migrate is idempotent.
	require.NoError(t, Migrate(ctx, pool))

	templates := NewPostgresTemplateStore(pool)
	mappings := NewPostgresMappingStore(pool)
	submissions := NewPostgresSubmissionStore(pool)
	portals := NewPostgresPortalStore(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, portals.CreatePortal(ctx, &models.Portal{ID: "uscis", Name: "USCIS", CreatedAt: now}))

	family := uuid.New().String()
	v1 := &models.FormTemplate{
		ID:       uuid.New().String(),
		FamilyID: family,
		Version:  1,
		Name:     "I-130",
		Status:   models.TemplateStatusDraft,
		Sections: []models.Section{{ID: "applicant", Fields: []models.Field{
			{ID: "fullName", Type: models.FieldTypeText, Required: true},
			{ID: "passportNumber", Type: models.FieldTypeText, Required: true, SourcePath: "documents.passport.number"},
		}}},
		CreatedBy: "admin-1",
		CreatedAt: now,
		UpdatedAt: now,
	}

	t.Run("templates", func(t *testing.T) {
		require.NoError(t, templates.Create(ctx, v1))

		dup := v1.Clone()
		dup.ID = uuid.New().String()
		assert.ErrorIs(t, templates.Create(ctx, dup), ErrConflict)

		got, err := templates.Get(ctx, v1.ID)
		require.NoError(t, err)
		assert.Equal(t, v1.Sections, got.Sections)
		assert.Equal(t, models.TemplateStatusDraft, got.Status)

		published := v1.Clone()
		published.Status = models.TemplateStatusPublished
		published.PublishedAt = &now
		require.NoError(t, templates.Update(ctx, published, models.TemplateStatusDraft))
		assert.ErrorIs(t, templates.Update(ctx, published, models.TemplateStatusDraft), ErrConflict)

		latest, err := templates.LatestPublished(ctx, family)
		require.NoError(t, err)
		assert.Equal(t, v1.ID, latest.ID)

		_, err = templates.Get(ctx, uuid.New().String())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("mappings", func(t *testing.T) {
		m := &models.FieldMapping{
			ID:         uuid.New().String(),
			TemplateID: v1.ID,
			PortalID:   "uscis",
			Mappings: map[string]models.PortalFieldRef{
				"passportNumber": {PortalField: "pp_no", Transform: &models.TransformSpec{Kind: models.TransformTrim}},
			},
			CreatedBy: "admin-1",
			CreatedAt: now,
			UpdatedAt: now,
		}
		require.NoError(t, mappings.Create(ctx, m))

		second := m.Clone()
		second.ID = uuid.New().String()
		assert.ErrorIs(t, mappings.Create(ctx, second), ErrConflict)

		found, err := mappings.FindByTemplatePortal(ctx, v1.ID, "uscis")
		require.NoError(t, err)
		assert.Equal(t, models.TransformTrim, found.Mappings["passportNumber"].Transform.Kind)

		require.NoError(t, mappings.Delete(ctx, m.ID, "admin-1", now))
		_, err = mappings.Get(ctx, m.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("submissions", func(t *testing.T) {
		sub := &models.FormSubmission{
			ID:              uuid.New().String(),
			CaseID:          "case-1",
			TemplateID:      v1.ID,
			TemplateFamily:  family,
			TemplateVersion: 1,
			Data:            map[string]any{"fullName": "A. Smith", "passportNumber": " X123 "},
			Status:          models.SubmissionStatusGenerated,
			PortalID:        "uscis",
			PortalPayload:   map[string]any{"pp_no": "X123"},
			CreatedBy:       "user-1",
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		require.NoError(t, submissions.Save(ctx, sub))

		list, err := submissions.ListByCase(ctx, "case-1")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, sub.Data, list[0].Data)
		assert.Equal(t, sub.PortalPayload, list[0].PortalPayload)
		assert.Empty(t, list[0].MissingFields)

		require.NoError(t, submissions.UpdateStatus(ctx, sub.ID, models.SubmissionStatusGenerated, models.SubmissionStatusSubmitted, now))
		assert.ErrorIs(t, submissions.UpdateStatus(ctx, sub.ID, models.SubmissionStatusGenerated, models.SubmissionStatusFailed, now), ErrConflict)
	})
}
