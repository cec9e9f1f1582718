// Package audit records security-relevant events for later review.
//
// Events flow through an asynchronous Writer so that audit persistence never
// sits on the login hot path: enqueueing is non-blocking, and a full queue
// drops the event rather than stalling the caller.
package audit

import (
	"context"
	"time"
)

// Event is one audit log entry.
type Event struct {
	ID          string         `json:"id"`
	EventType   string         `json:"eventType"`
	Severity    string         `json:"severity"`
	PrincipalID string         `json:"principalId"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// ListFilter narrows List results. Zero values mean "no filter".
type ListFilter struct {
	PrincipalID string
	EventType   string
	Limit       int
}

// Store persists audit events.
type Store interface {
	AppendBatch(ctx context.Context, events []*Event) error
	List(ctx context.Context, filter ListFilter) ([]*Event, error)
}
