package audit

import (
	"context"
	"sync"
	"time"
)

// Actions recorded by the service.
const (
	ActionTemplateCreated   = "template.created"
	ActionTemplateVersioned = "template.versioned"
	ActionTemplateUpdated   = "template.updated"
	ActionTemplatePublished = "template.published"
	ActionTemplateArchived  = "template.archived"
	ActionMappingCreated    = "mapping.created"
	ActionMappingUpdated    = "mapping.updated"
	ActionMappingDeleted    = "mapping.deleted"
	ActionFormGenerated     = "form.generated"
	ActionSubmissionStatus  = "submission.status_changed"
)

// Entity types.
const (
	EntityTemplate   = "form_template"
	EntityMapping    = "field_mapping"
	EntitySubmission = "form_submission"
)

// Event captures a state change made by a user. It is transport-agnostic so
// any sink can carry it.
type Event struct {
	EntityType string         `json:"entityType"`
	EntityID   string         `json:"entityId"`
	Action     string         `json:"action"`
	UserID     string         `json:"userId"`
	Details    map[string]any `json:"details,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Sink delivers audit events somewhere durable.
type Sink interface {
	Emit(ctx context.Context, ev Event) error
}

// Logger is the logging surface the emitter needs.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// FailureRecorder counts dropped events.
type FailureRecorder interface {
	RecordAuditFailure(ctx context.Context, action string)
}

// Emitter sends events to a sink. Delivery failures are logged and counted
// but never surface to the caller, so auditing cannot fail a business write.
type Emitter struct {
	sink    Sink
	logger  Logger
	metrics FailureRecorder
	now     func() time.Time
}

// NewEmitter creates an Emitter. metrics may be nil.
func NewEmitter(sink Sink, logger Logger, metrics FailureRecorder) *Emitter {
	return &Emitter{sink: sink, logger: logger, metrics: metrics, now: time.Now}
}

// Record stamps ev if needed and hands it to the sink.
func (e *Emitter) Record(ctx context.Context, ev Event) {
	if e == nil || e.sink == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = e.now().UTC()
	}
	if err := e.sink.Emit(ctx, ev); err != nil {
		e.logger.Error("audit event dropped",
			"action", ev.Action,
			"entityId", ev.EntityID,
			"error", err,
		)
		if e.metrics != nil {
			e.metrics.RecordAuditFailure(ctx, ev.Action)
		}
	}
}

// LogSink writes events to the application log.
type LogSink struct {
	logger Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(_ context.Context, ev Event) error {
	s.logger.Info("audit",
		"entityType", ev.EntityType,
		"entityId", ev.EntityID,
		"action", ev.Action,
		"userId", ev.UserID,
		"details", ev.Details,
		"timestamp", ev.Timestamp,
	)
	return nil
}

// MemorySink keeps events in memory.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Emit(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

// FailWith makes subsequent Emit calls return err. Pass nil to recover.
func (s *MemorySink) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Events returns a copy of everything emitted so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// Actions lists the recorded actions in order.
func (s *MemorySink) Actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Action
	}
	return out
}
