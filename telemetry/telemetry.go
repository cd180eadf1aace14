// Package telemetry defines the fire-and-forget event sink boundary.
//
// The controller emits named events with structured properties; sinks deliver
// them to downstream systems. Delivery is best-effort: the core never depends
// on telemetry succeeding, and a nil or failing sink must not affect archive
// operations.
package telemetry

import (
	"context"
	"time"
)

// Event names emitted by the extraction and creation workflows.
const (
	EventPasswordPrompted    = "password_prompted"
	EventPasswordSubmitted   = "password_submitted"
	EventPasswordDismissed   = "password_dismissed"
	EventExtractionSucceeded = "extraction_succeeded"
	EventExtractionFailed    = "extraction_failed"
	EventArchiveCreated      = "archive_created"
	EventCreateFailed        = "create_failed"
)

// Event is a named telemetry event with structured properties.
type Event struct {
	Name       string         `json:"name"`
	Timestamp  string         `json:"timestamp"` // ISO 8601
	Properties map[string]any `json:"properties,omitempty"`
}

// NewEvent builds an event stamped with the current time.
func NewEvent(name string, properties map[string]any) *Event {
	return &Event{
		Name:       name,
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		Properties: properties,
	}
}

// Sink delivers telemetry events to a downstream system.
type Sink interface {
	// Emit sends one event. Must respect context cancellation.
	Emit(ctx context.Context, event *Event) error

	// Close releases sink resources.
	Close() error
}

// Nop is a Sink that discards everything.
type Nop struct{}

func (Nop) Emit(context.Context, *Event) error { return nil }
func (Nop) Close() error                       { return nil }
