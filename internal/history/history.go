// Package history persists login attempts as an append-only record stream.
//
// Each login attempt (successful or failed) becomes one immutable Record.
// Records are never updated or deleted by this service; retention is an
// external concern. The anomaly detector reads this stream to derive
// behavioral patterns, so the store contract is deliberately narrow:
// append, plus a few indexed reads by principal, success flag, and time.
package history

import (
	"context"
	"time"
)

// Record is one login attempt. Immutable once written.
type Record struct {
	ID          string    `json:"id"`
	PrincipalID string    `json:"principalId"`
	Success     bool      `json:"success"`
	IPAddress   string    `json:"ipAddress"`
	UserAgent   string    `json:"userAgent"`
	Country     string    `json:"country,omitempty"` // best-effort geolocation
	City        string    `json:"city,omitempty"`
	RiskScore   *int      `json:"riskScore,omitempty"` // nil until scored
	CreatedAt   time.Time `json:"createdAt"`
}

// Store is the login-history access contract.
type Store interface {
	// Append inserts one record. Records are never mutated after this.
	Append(ctx context.Context, rec *Record) error

	// ListSuccessful returns up to limit successful records for the
	// principal, newest first.
	ListSuccessful(ctx context.Context, principalID string, limit int) ([]*Record, error)

	// LastSuccessful returns the most recent successful record for the
	// principal, or nil if none exists.
	LastSuccessful(ctx context.Context, principalID string) (*Record, error)

	// CountFailedSince counts failed records for the principal with
	// CreatedAt >= since.
	CountFailedSince(ctx context.Context, principalID string, since time.Time) (int, error)

	// ListByPrincipal returns up to limit records (any outcome) for the
	// principal, newest first.
	ListByPrincipal(ctx context.Context, principalID string, limit int) ([]*Record, error)
}
