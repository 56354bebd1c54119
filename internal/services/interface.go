package services

import (
	"context"
	"time"

	"casefiling/backend/internal/audit"
)

// CaseDataSource looks up case and document values by source path.
type CaseDataSource interface {
	// Resolve returns the value at sourcePath for caseID. found is false when
	// the data is unavailable; err is reserved for hard collaborator failures.
	Resolve(ctx context.Context, caseID, sourcePath string) (value any, found bool, err error)
}

// PortalRegistry answers whether a government portal is known.
type PortalRegistry interface {
	PortalExists(ctx context.Context, portalID string) (bool, error)
}

// Logger is the logging surface used by services.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Auditor records audit events. Implementations must not fail the caller.
type Auditor interface {
	Record(ctx context.Context, ev audit.Event)
}

// Metrics is the instrumentation used by generation and resolution.
type Metrics interface {
	RecordGeneration(ctx context.Context, outcome string, d time.Duration)
	RecordLookup(ctx context.Context, result string)
}
