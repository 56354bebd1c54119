package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"casefiling/backend/pkg/models"
)

const (
	templateKeyPrefix = "formtpl:v1:"
	// generation keys are bumped on every write so an in-flight fill
	// started before the write cannot land.
	templateGenPrefix = "formtpl:gen:"
)

// CachedTemplateStore is a read-through Redis cache in front of a TemplateStore.
// Only lookups by version ID are cached; family queries always reach the
// underlying store since they change whenever a version is added or published.
type CachedTemplateStore struct {
	next   TemplateStore
	client *redis.Client
	ttl    time.Duration
	logger Logger
}

// Logger is the subset of the application logger used by the repository layer.
type Logger interface {
	Warn(msg string, args ...any)
}

// NewCachedTemplateStore wraps next with a Redis cache.
func NewCachedTemplateStore(next TemplateStore, client *redis.Client, ttl time.Duration, logger Logger) *CachedTemplateStore {
	return &CachedTemplateStore{next: next, client: client, ttl: ttl, logger: logger}
}

func (s *CachedTemplateStore) Create(ctx context.Context, tpl *models.FormTemplate) error {
	return s.next.Create(ctx, tpl)
}

// Get serves from Redis when possible. Cache failures fall back to the store.
func (s *CachedTemplateStore) Get(ctx context.Context, id string) (*models.FormTemplate, error) {
	key := templateKeyPrefix + id
	raw, err := s.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var tpl models.FormTemplate
		if jsonErr := json.Unmarshal(raw, &tpl); jsonErr == nil {
			return &tpl, nil
		}
		s.warn("discarding undecodable cached template", "id", id)
	case !errors.Is(err, redis.Nil):
		s.warn("template cache read failed", "id", id, "error", err)
	}

	var (
		tpl     *models.FormTemplate
		loadErr error
		loaded  bool
	)
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		tpl, loadErr = s.next.Get(ctx, id)
		loaded = true
		if loadErr != nil {
			return nil
		}
		encoded, err := json.Marshal(tpl)
		if err != nil {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, s.ttl)
			return nil
		})
		return err
	}, templateGenPrefix+id)
	switch {
	case errors.Is(err, redis.TxFailedErr):
		// a concurrent write bumped the generation; leave the key empty
	case err != nil:
		s.warn("template cache write failed", "id", id, "error", err)
	}

	if !loaded {
		tpl, loadErr = s.next.Get(ctx, id)
	}
	if loadErr != nil {
		return nil, loadErr
	}
	return tpl, nil
}

// Update writes through, then bumps the generation and drops the cached copy.
func (s *CachedTemplateStore) Update(ctx context.Context, tpl *models.FormTemplate, expected models.TemplateStatus) error {
	err := s.next.Update(ctx, tpl, expected)
	s.invalidate(ctx, tpl.ID)
	return err
}

func (s *CachedTemplateStore) Head(ctx context.Context, familyID string) (*models.FormTemplate, error) {
	return s.next.Head(ctx, familyID)
}

func (s *CachedTemplateStore) LatestPublished(ctx context.Context, familyID string) (*models.FormTemplate, error) {
	return s.next.LatestPublished(ctx, familyID)
}

func (s *CachedTemplateStore) ListVersions(ctx context.Context, familyID string) ([]*models.FormTemplate, error) {
	return s.next.ListVersions(ctx, familyID)
}

func (s *CachedTemplateStore) invalidate(ctx context.Context, id string) {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, templateGenPrefix+id)
		pipe.Del(ctx, templateKeyPrefix+id)
		return nil
	})
	if err != nil {
		s.warn("template cache invalidation failed", "id", id, "error", err)
	}
}

func (s *CachedTemplateStore) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
