package services

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"casefiling/backend/internal/observability"
	"casefiling/backend/pkg/apperr"
	"casefiling/backend/pkg/models"
)

// Resolver fetches values for fields that declare a source path. Lookups for
// one generation run concurrently under a shared deadline.
type Resolver struct {
	source         CaseDataSource
	metrics        Metrics
	timeout        time.Duration
	maxConcurrency int
}

// NewResolver creates a new Resolver. A nil source resolves nothing and nil
// metrics records nothing.
func NewResolver(source CaseDataSource, metrics Metrics, timeout time.Duration, maxConcurrency int) *Resolver {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	if metrics == nil {
		metrics = observability.NewNop()
	}
	return &Resolver{source: source, metrics: metrics, timeout: timeout, maxConcurrency: maxConcurrency}
}

type lookup struct {
	value any
	found bool
}

// Resolve returns the values found for fields, keyed by field ID. Fields
// without a source path are skipped. Unavailable data is simply absent from
// the result; a collaborator failure or timeout aborts with a Dependency error.
func (r *Resolver) Resolve(ctx context.Context, caseID string, fields []models.Field) (map[string]any, error) {
	resolved := make(map[string]any)
	if r.source == nil || len(fields) == 0 {
		return resolved, nil
	}

	ctx, span := observability.StartSpan(ctx, "resolver.resolve",
		attribute.String("case.id", caseID),
		attribute.Int("fields", len(fields)),
	)
	var err error
	defer func() { observability.EndSpan(span, err) }()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	results := make([]lookup, len(fields))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.maxConcurrency)
	for i, f := range fields {
		if f.SourcePath == "" {
			continue
		}
		g.Go(func() error {
			v, found, lookupErr := r.source.Resolve(gctx, caseID, f.SourcePath)
			if lookupErr != nil {
				r.metrics.RecordLookup(gctx, observability.LookupError)
				return fmt.Errorf("resolving %s for field %s: %w", f.SourcePath, f.ID, lookupErr)
			}
			if found {
				r.metrics.RecordLookup(gctx, observability.LookupHit)
			} else {
				r.metrics.RecordLookup(gctx, observability.LookupUnavailable)
			}
			results[i] = lookup{value: v, found: found}
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, apperr.Dependency("case data lookup", err)
	}

	for i, f := range fields {
		if results[i].found {
			resolved[f.ID] = results[i].value
		}
	}
	return resolved, nil
}
